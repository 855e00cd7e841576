package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/nas-ai/uploads-api/src/config"
	"github.com/nas-ai/uploads-api/src/services/operations"
)

const jobTimeout = 10 * time.Minute

var (
	mu         sync.Mutex
	cronRunner *cron.Cron
	repairSvc  *operations.MarkerRepairService
	journalSvc *operations.JournalService
	cfgRef     *config.Config
	logger     *logrus.Logger
	cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
)

// StartMaintenanceScheduler registers the marker repair sweep and journal
// pruning. An empty schedule disables the corresponding job.
func StartMaintenanceScheduler(repair *operations.MarkerRepairService, journal *operations.JournalService, cfg *config.Config, log *logrus.Logger) error {
	if repair == nil {
		return fmt.Errorf("marker repair service is required")
	}
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	mu.Lock()
	defer mu.Unlock()

	repairSvc = repair
	journalSvc = journal
	cfgRef = cfg
	logger = log

	return startLocked()
}

// Stop halts the scheduler and waits for running jobs.
func Stop() {
	mu.Lock()
	defer mu.Unlock()

	if cronRunner != nil {
		ctx := cronRunner.Stop()
		<-ctx.Done()
		cronRunner = nil
	}
}

// Entries returns the number of registered jobs.
func Entries() int {
	mu.Lock()
	defer mu.Unlock()

	if cronRunner == nil {
		return 0
	}
	return len(cronRunner.Entries())
}

func startLocked() error {
	repairSpec := strings.TrimSpace(cfgRef.MarkerRepairSchedule)
	pruneSpec := strings.TrimSpace(cfgRef.JournalPruneSchedule)

	for name, spec := range map[string]string{"marker repair": repairSpec, "journal prune": pruneSpec} {
		if spec == "" {
			continue
		}
		if _, err := cronParser.Parse(spec); err != nil {
			return fmt.Errorf("invalid %s schedule: %w", name, err)
		}
	}

	if cronRunner != nil {
		ctx := cronRunner.Stop()
		<-ctx.Done()
	}

	cronRunner = cron.New(cron.WithParser(cronParser))

	// Capture globals to local variables to avoid data race in closure
	repair := repairSvc
	journal := journalSvc
	retention := cfgRef.JournalRetentionDays
	log := logger

	if repairSpec != "" {
		if _, err := cronRunner.AddFunc(repairSpec, func() { runRepairJob(repair, log) }); err != nil {
			return fmt.Errorf("register marker repair job: %w", err)
		}
	}
	if pruneSpec != "" && journal.Enabled() {
		if _, err := cronRunner.AddFunc(pruneSpec, func() { runPruneJob(journal, retention, log) }); err != nil {
			return fmt.Errorf("register journal prune job: %w", err)
		}
	}

	cronRunner.Start()

	if log != nil {
		log.WithFields(logrus.Fields{
			"marker_repair": repairSpec,
			"journal_prune": pruneSpec,
			"jobs":          len(cronRunner.Entries()),
		}).Info("maintenance scheduler started")
	}

	return nil
}

func runRepairJob(svc *operations.MarkerRepairService, log *logrus.Logger) {
	if svc == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if _, err := svc.Run(ctx); err != nil && log != nil {
		log.WithError(err).Error("maintenance scheduler: marker repair failed")
	}
}

func runPruneJob(svc *operations.JournalService, retentionDays int, log *logrus.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if _, err := svc.Prune(ctx, retentionDays); err != nil && log != nil {
		log.WithError(err).Error("maintenance scheduler: journal prune failed")
	}
}
