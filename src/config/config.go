package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// Collision policies applied when a merge or import meets an existing file.
const (
	CollisionOverwrite = "overwrite"
	CollisionSkip      = "skip"
	CollisionRename    = "rename"
)

// Auth modes
const (
	AuthModeToken    = "token"
	AuthModePassword = "password"
)

// Config holds all runtime settings. It is built once at startup and passed
// down explicitly; nothing below main reads the environment.
type Config struct {
	Port            string
	Environment     string
	LogLevel        string
	CORSOrigins     []string
	DisplayOrigins  []string
	RateLimitPerMin int

	UploadsRoot      string
	MaxUploadBytes   int64
	AllowedMimeTypes []string
	SniffUploads     bool
	CollisionPolicy  string
	TransferRoots    []string

	AuthMode     string
	WriteToken   string
	ReadToken    string
	Username     string
	Password     string
	PasswordHash string

	LockBackend string
	LockTTLSec  int
	RedisURL    string

	JournalDriver        string
	JournalDSN           string
	JournalRetentionDays int
	DBMaxOpenConns       int
	DBMaxIdleConns       int
	DBConnMaxLifetime    string

	MarkerRepairSchedule string
	JournalPruneSchedule string

	BlobProvider    string
	BlobToken       string
	BlobAPIURL      string
	BlobAPIVersion  string
	BlobMaxBytes    int64
	BlobRetries     int
	BlobHosts       []string
	S3Endpoint      string
	S3Region        string
	S3Bucket        string
	S3AccessKey     string
	S3SecretKey     string
	S3PublicURL     string
	S3UsePathStyle  bool
	BlobTimeoutSecs int
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("display_origins", []string{})
	v.SetDefault("rate_limit_per_min", 120)

	v.SetDefault("storage.uploads_root", "./public/uploads")
	v.SetDefault("storage.max_upload_bytes", int64(10*1024*1024))
	v.SetDefault("storage.allowed_mime_types", []string{
		"image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp", "image/svg+xml",
	})
	v.SetDefault("storage.sniff_uploads", true)
	v.SetDefault("storage.collision_policy", CollisionOverwrite)
	v.SetDefault("storage.transfer_roots", []string{})

	v.SetDefault("auth.mode", AuthModeToken)

	v.SetDefault("locking.backend", "memory")
	v.SetDefault("locking.ttl", 300)

	v.SetDefault("journal.driver", "")
	v.SetDefault("journal.retention_days", 30)
	v.SetDefault("journal.max_open_conns", 10)
	v.SetDefault("journal.max_idle_conns", 5)
	v.SetDefault("journal.conn_max_lifetime", "5m")

	v.SetDefault("scheduler.marker_repair", "*/30 * * * *")
	v.SetDefault("scheduler.journal_prune", "15 3 * * *")

	v.SetDefault("blob.api_url", "https://blob.vercel-storage.com")
	v.SetDefault("blob.api_version", "7")
	v.SetDefault("blob.max_bytes", int64(100*1024*1024))
	v.SetDefault("blob.retries", 0)
	v.SetDefault("blob.allowed_hosts", []string{"*.blob.vercel-storage.com"})
	v.SetDefault("blob.timeout", 60)
	v.SetDefault("blob.s3.region", "us-east-1")
	v.SetDefault("blob.s3.use_path_style", true)
}

// LoadConfig reads defaults, an optional config file and the environment.
// FAIL-FAST: returns an error for missing secrets or malformed settings.
func LoadConfig() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/uploads-api")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:            v.GetString("port"),
		Environment:     v.GetString("environment"),
		LogLevel:        v.GetString("log_level"),
		CORSOrigins:     splitList(v.GetStringSlice("cors_origins")),
		DisplayOrigins:  splitList(v.GetStringSlice("display_origins")),
		RateLimitPerMin: v.GetInt("rate_limit_per_min"),

		UploadsRoot:      v.GetString("storage.uploads_root"),
		MaxUploadBytes:   v.GetInt64("storage.max_upload_bytes"),
		AllowedMimeTypes: splitList(v.GetStringSlice("storage.allowed_mime_types")),
		SniffUploads:     v.GetBool("storage.sniff_uploads"),
		CollisionPolicy:  strings.ToLower(strings.TrimSpace(v.GetString("storage.collision_policy"))),
		TransferRoots:    splitList(v.GetStringSlice("storage.transfer_roots")),

		AuthMode:     strings.ToLower(strings.TrimSpace(v.GetString("auth.mode"))),
		WriteToken:   v.GetString("auth.write_token"),
		ReadToken:    v.GetString("auth.read_token"),
		Username:     v.GetString("auth.username"),
		Password:     v.GetString("auth.password"),
		PasswordHash: v.GetString("auth.password_hash"),

		LockBackend: strings.ToLower(v.GetString("locking.backend")),
		LockTTLSec:  v.GetInt("locking.ttl"),
		RedisURL:    v.GetString("redis.url"),

		JournalDriver:        v.GetString("journal.driver"),
		JournalDSN:           v.GetString("journal.dsn"),
		JournalRetentionDays: v.GetInt("journal.retention_days"),
		DBMaxOpenConns:       v.GetInt("journal.max_open_conns"),
		DBMaxIdleConns:       v.GetInt("journal.max_idle_conns"),
		DBConnMaxLifetime:    v.GetString("journal.conn_max_lifetime"),

		MarkerRepairSchedule: v.GetString("scheduler.marker_repair"),
		JournalPruneSchedule: v.GetString("scheduler.journal_prune"),

		BlobProvider:    strings.ToLower(v.GetString("blob.provider")),
		BlobToken:       v.GetString("blob.token"),
		BlobAPIURL:      v.GetString("blob.api_url"),
		BlobAPIVersion:  v.GetString("blob.api_version"),
		BlobMaxBytes:    v.GetInt64("blob.max_bytes"),
		BlobRetries:     v.GetInt("blob.retries"),
		BlobHosts:       splitList(v.GetStringSlice("blob.allowed_hosts")),
		BlobTimeoutSecs: v.GetInt("blob.timeout"),
		S3Endpoint:      v.GetString("blob.s3.endpoint"),
		S3Region:        v.GetString("blob.s3.region"),
		S3Bucket:        v.GetString("blob.s3.bucket"),
		S3AccessKey:     v.GetString("blob.s3.access_key"),
		S3SecretKey:     v.GetString("blob.s3.secret_key"),
		S3PublicURL:     v.GetString("blob.s3.public_url"),
		S3UsePathStyle:  v.GetBool("blob.s3.use_path_style"),
	}

	if err := loadSecretFiles(v, cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadSecretFiles lets every secret be supplied as a mounted file (*_FILE).
func loadSecretFiles(v *viper.Viper, cfg *Config) error {
	targets := map[string]*string{
		"auth.write_token_file":   &cfg.WriteToken,
		"auth.read_token_file":    &cfg.ReadToken,
		"auth.password_file":      &cfg.Password,
		"auth.password_hash_file": &cfg.PasswordHash,
		"blob.token_file":         &cfg.BlobToken,
		"blob.s3.secret_key_file": &cfg.S3SecretKey,
		"journal.dsn_file":        &cfg.JournalDSN,
	}
	for key, dst := range targets {
		path := strings.TrimSpace(v.GetString(key))
		if path == "" {
			continue
		}
		secret, err := readSecretFromFile(path)
		if err != nil {
			return err
		}
		*dst = secret
	}
	return nil
}

// Validate checks cross-field rules.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.UploadsRoot) == "" {
		return fmt.Errorf("CRITICAL: storage.uploads_root is required")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("storage.max_upload_bytes must be positive")
	}

	switch c.AuthMode {
	case AuthModeToken:
		if err := ValidateSharedToken("auth.write_token", c.WriteToken); err != nil {
			return err
		}
		if c.ReadToken != "" {
			if err := ValidateSharedToken("auth.read_token", c.ReadToken); err != nil {
				return err
			}
		}
	case AuthModePassword:
		if err := ValidateCredentials(c.Username, c.Password, c.PasswordHash); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown auth.mode %q", c.AuthMode)
	}

	switch c.CollisionPolicy {
	case CollisionOverwrite, CollisionSkip, CollisionRename:
	default:
		return fmt.Errorf("unknown storage.collision_policy %q", c.CollisionPolicy)
	}

	switch c.LockBackend {
	case "memory", "none", "":
	case "redis":
		if c.RedisURL == "" {
			return fmt.Errorf("locking.backend=redis requires redis.url")
		}
	default:
		return fmt.Errorf("unknown locking.backend %q", c.LockBackend)
	}

	switch c.JournalDriver {
	case "", "sqlite3", "postgres":
	default:
		return fmt.Errorf("unknown journal.driver %q", c.JournalDriver)
	}
	if c.JournalDriver != "" && c.JournalDSN == "" {
		return fmt.Errorf("journal.driver=%s requires journal.dsn", c.JournalDriver)
	}

	for name, spec := range map[string]string{
		"scheduler.marker_repair": c.MarkerRepairSchedule,
		"scheduler.journal_prune": c.JournalPruneSchedule,
	} {
		if strings.TrimSpace(spec) == "" {
			continue
		}
		if _, err := cronParser.Parse(spec); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}

	switch c.BlobProvider {
	case "", "vercel":
	case "s3":
		if c.S3Bucket == "" {
			return fmt.Errorf("blob.provider=s3 requires blob.s3.bucket")
		}
	default:
		return fmt.Errorf("unknown blob.provider %q", c.BlobProvider)
	}

	return nil
}

// splitList accepts both YAML lists and comma separated env values.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
