package operations

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/nas-ai/uploads-api/src/metrics"
	"github.com/nas-ai/uploads-api/src/services/content"
	"github.com/sirupsen/logrus"
)

// MarkerRepairService makes sure every directory under the uploads root
// carries the protective marker. Directories created implicitly by nested
// mkdir or by imports only get one on their leaf.
type MarkerRepairService struct {
	root   string
	logger *logrus.Logger
}

func NewMarkerRepairService(root string, logger *logrus.Logger) *MarkerRepairService {
	return &MarkerRepairService{root: root, logger: logger}
}

// Run walks the root and writes every missing marker. Symlinked
// directories are not followed.
func (s *MarkerRepairService) Run(ctx context.Context) (int, error) {
	start := time.Now()
	repaired := 0

	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			s.logger.WithError(err).WithField("path", p).Warn("Marker repair: cannot read entry")
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !d.IsDir() {
			return nil
		}

		if _, statErr := os.Lstat(filepath.Join(p, content.MarkerFileName)); statErr == nil {
			return nil
		} else if !os.IsNotExist(statErr) {
			return nil
		}

		if writeErr := content.WriteMarker(p); writeErr != nil {
			s.logger.WithError(writeErr).WithField("path", p).Warn("Marker repair: write failed")
			return nil
		}
		repaired++
		return nil
	})

	metrics.RecordMarkersRepaired(repaired)
	fields := logrus.Fields{
		"repaired":    repaired,
		"duration_ms": time.Since(start).Milliseconds(),
	}
	if err != nil {
		s.logger.WithError(err).WithFields(fields).Warn("Marker repair aborted")
		return repaired, err
	}
	if repaired > 0 {
		s.logger.WithFields(fields).Info("Marker repair finished")
	}
	return repaired, nil
}
