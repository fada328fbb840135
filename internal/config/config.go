package config

import (
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/semmidev/mudvault/internal/adapter/compressor"
	"github.com/semmidev/mudvault/internal/adapter/packager"
	"github.com/semmidev/mudvault/internal/domain"
)

const TargetPlaceholder = "{target}"

// DefaultKeepLast applies when no retention limit is configured at all.
const DefaultKeepLast = 4

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Source    SourceConfig    `mapstructure:"source"`
	Remote    RemoteConfig    `mapstructure:"remote"`
	Retention RetentionConfig `mapstructure:"retention"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	DryRun    bool            `mapstructure:"dry_run"`
}

type AppConfig struct {
	Name          string `mapstructure:"name"`
	LogLevel      string `mapstructure:"log_level"`
	LogFile       string `mapstructure:"log_file"`
	LogTimestamps bool   `mapstructure:"log_timestamps"`
}

// SourceConfig describes what is archived. Directory and Prefix may contain
// {target}, replaced by the positional target identifier.
type SourceConfig struct {
	Directory string   `mapstructure:"directory"`
	Prefix    string   `mapstructure:"prefix"`
	Format    string   `mapstructure:"format"`
	Excludes  []string `mapstructure:"excludes"`
	TempDir   string   `mapstructure:"temp_dir"`
}

type RemoteConfig struct {
	Type   string       `mapstructure:"type"`
	Folder string       `mapstructure:"folder"`
	GDrive GDriveConfig `mapstructure:"gdrive"`
	S3     S3Config     `mapstructure:"s3"`
	Local  LocalConfig  `mapstructure:"local"`
}

type GDriveConfig struct {
	// Credentials is either a service account key or OAuth client secrets,
	// told apart by its "type" field. TokenFile is only read for the latter.
	Credentials string `mapstructure:"credentials_file"`
	TokenFile   string `mapstructure:"token_file"`
	Trash       bool   `mapstructure:"trash"`
	AuthAddr    string `mapstructure:"auth_addr"`
}

type S3Config struct {
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Endpoint  string `mapstructure:"endpoint"`
	PathStyle bool   `mapstructure:"path_style"`
}

type LocalConfig struct {
	Path string `mapstructure:"path"`
}

type RetentionConfig struct {
	Tiers    domain.RetentionTiers `mapstructure:",squash"`
	KeepLast int                   `mapstructure:"keep_last"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
}

type TelegramConfig struct {
	BotToken     string `mapstructure:"bot_token"`
	ChatID       string `mapstructure:"chat_id"`
	OnlyFailures bool   `mapstructure:"only_failures"`
}

type ScheduleConfig struct {
	Jobs []JobConfig `mapstructure:"jobs"`
}

type JobConfig struct {
	Target   string `mapstructure:"target"`
	Schedule string `mapstructure:"schedule"`
}

// flagKeys maps command line flags onto configuration keys.
var flagKeys = map[string]string{
	"log-level":      "app.log_level",
	"log-file":       "app.log_file",
	"log-timestamps": "app.log_timestamps",
	"source":         "source.directory",
	"prefix":         "source.prefix",
	"format":         "source.format",
	"exclude":        "source.excludes",
	"temp-dir":       "source.temp_dir",
	"remote":         "remote.type",
	"folder":         "remote.folder",
	"credentials":    "remote.gdrive.credentials_file",
	"token-file":     "remote.gdrive.token_file",
	"trash":          "remote.gdrive.trash",
	"auth-addr":      "remote.gdrive.auth_addr",
	"bucket":         "remote.s3.bucket",
	"region":         "remote.s3.region",
	"endpoint":       "remote.s3.endpoint",
	"local-path":     "remote.local.path",
	"keep-days":      "retention.days",
	"keep-weeks":     "retention.weeks",
	"keep-months":    "retention.months",
	"keep-years":     "retention.years",
	"keep-last":      "retention.keep_last",
	"dry-run":        "dry_run",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "mudvault")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_timestamps", true)
	v.SetDefault("source.directory", TargetPlaceholder)
	v.SetDefault("source.format", string(compressor.FormatXz))
	v.SetDefault("source.excludes", packager.DefaultExcludes)
	v.SetDefault("remote.type", "gdrive")
	v.SetDefault("remote.folder", "Mud Backups")
	v.SetDefault("remote.gdrive.credentials_file", "credentials.json")
	v.SetDefault("remote.gdrive.token_file", "token.json")
	v.SetDefault("remote.gdrive.auth_addr", "localhost:8085")
	v.SetDefault("remote.s3.region", "us-east-1")
	v.SetDefault("retention.days", 0)
	v.SetDefault("retention.weeks", 0)
	v.SetDefault("retention.months", 0)
	v.SetDefault("retention.years", 0)
	v.SetDefault("retention.keep_last", 0)
}

// envOnlyKeys are settings without a flag, mostly secrets, that can still be
// given as MUDVAULT_* variables.
var envOnlyKeys = []string{
	"app.name",
	"remote.s3.access_key",
	"remote.s3.secret_key",
	"remote.s3.path_style",
	"notify.telegram.bot_token",
	"notify.telegram.chat_id",
	"notify.telegram.only_failures",
}

// bindEnv registers every key with the environment. AutomaticEnv alone is
// not consulted by Unmarshal for keys viper has not seen elsewhere.
func bindEnv(v *viper.Viper) error {
	keys := slices.Concat(slices.Collect(maps.Values(flagKeys)), envOnlyKeys)
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}
	return nil
}

// Load reads the optional config file at path, then the MUDVAULT_*
// environment, then any flags the user set explicitly.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("MUDVAULT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindEnv(v); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrConfig, err)
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: failed to read config: %w", domain.ErrConfig, err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("%w: failed to bind flag %s: %w", domain.ErrConfig, name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal config: %w", domain.ErrConfig, err)
	}

	// Without any limit, keep the newest DefaultKeepLast backups.
	if cfg.Retention.KeepLast == 0 && cfg.Retention.Tiers.IsZero() {
		cfg.Retention.KeepLast = DefaultKeepLast
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: invalid config: %w", domain.ErrConfig, err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.Source.Directory == "" {
		errs = append(errs, errors.New("source.directory is required"))
	}
	if _, err := compressor.ParseFormat(c.Source.Format); err != nil {
		errs = append(errs, fmt.Errorf("source.format: %w", err))
	}
	for _, pattern := range c.Source.Excludes {
		if _, err := filepath.Match(pattern, ""); err != nil {
			errs = append(errs, fmt.Errorf("source.excludes: invalid pattern %q", pattern))
		}
	}

	if c.Remote.Folder == "" {
		errs = append(errs, errors.New("remote.folder is required"))
	}
	switch c.Remote.Type {
	case "gdrive":
		if c.Remote.GDrive.Credentials == "" {
			errs = append(errs, errors.New("remote.gdrive.credentials_file is required"))
		}
	case "s3":
		if c.Remote.S3.Bucket == "" {
			errs = append(errs, errors.New("remote.s3.bucket is required"))
		}
	case "local":
		if c.Remote.Local.Path == "" {
			errs = append(errs, errors.New("remote.local.path is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("remote.type: unknown type %q", c.Remote.Type))
	}

	r := c.Retention
	for name, n := range map[string]int{
		"days": r.Tiers.Days, "weeks": r.Tiers.Weeks, "months": r.Tiers.Months,
		"years": r.Tiers.Years, "keep_last": r.KeepLast,
	} {
		if n < 0 {
			errs = append(errs, fmt.Errorf("retention.%s must not be negative", name))
		}
	}
	if r.KeepLast > 0 && !r.Tiers.IsZero() {
		errs = append(errs, errors.New("retention.keep_last cannot be combined with day/week/month/year limits"))
	}

	for i, job := range c.Schedule.Jobs {
		if job.Target == "" {
			errs = append(errs, fmt.Errorf("schedule.jobs[%d]: target is required", i))
		}
		if job.Schedule == "" {
			errs = append(errs, fmt.Errorf("schedule.jobs[%d]: schedule is required", i))
		}
	}

	return errors.Join(errs...)
}

// SourceDir is the directory archived for target.
func (c *Config) SourceDir(target string) string {
	return strings.ReplaceAll(c.Source.Directory, TargetPlaceholder, target)
}

// Prefix is the backup name prefix for target. It defaults to the base name
// of the source directory.
func (c *Config) Prefix(target string) string {
	if c.Source.Prefix != "" {
		return strings.ReplaceAll(c.Source.Prefix, TargetPlaceholder, target)
	}
	return filepath.Base(filepath.Clean(c.SourceDir(target)))
}
