package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port           int                   `yaml:"port"`
	Env            string                `yaml:"env"` // "development" | "production"
	Timezone       string                `yaml:"timezone"`
	JWTSecret      string                `yaml:"jwt_secret"`
	AllowedOrigins []string              `yaml:"allowed_origins"`
	Database       DatabaseRuntimeConfig `yaml:"database"`
	Redis          RedisRuntimeConfig    `yaml:"redis"`
	Mongo          MongoRuntimeConfig    `yaml:"mongo"`
	Store          StoreConfig           `yaml:"store"`
	Paths          RuntimePathsConfig    `yaml:"paths"`
	Backup         BackupConfig          `yaml:"backup"`

	DSN      string `yaml:"-"` // MySQL DSN derived from Database
	RedisURL string `yaml:"-"`
}

type DatabaseRuntimeConfig struct {
	DSN       string            `yaml:"dsn"`
	Host      string            `yaml:"host"`
	Port      int               `yaml:"port"`
	User      string            `yaml:"user"`
	Password  string            `yaml:"password"`
	Name      string            `yaml:"name"`
	Charset   string            `yaml:"charset"`
	ParseTime bool              `yaml:"parse_time"`
	Loc       string            `yaml:"loc"`
	Params    map[string]string `yaml:"params"`
}

type RedisRuntimeConfig struct {
	Enable   bool              `yaml:"enable"`
	URL      string            `yaml:"url"`
	Host     string            `yaml:"host"`
	Port     int               `yaml:"port"`
	Username string            `yaml:"username"`
	Password string            `yaml:"password"`
	DB       int               `yaml:"db"`
	TLS      bool              `yaml:"tls"`
	Params   map[string]string `yaml:"params"`
}

type MongoRuntimeConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

// StoreConfig selects the table-store backend.
type StoreConfig struct {
	Driver string `yaml:"driver"` // mysql | mongo | memory
}

type RuntimePathsConfig struct {
	Logs    string `yaml:"logs"`
	Backups string `yaml:"backups"`
}

type BackupConfig struct {
	MaxArtifactBytes int64     `yaml:"max_artifact_bytes"`
	HistoryLimit     int       `yaml:"history_limit"`
	Formats          []string  `yaml:"formats"`
	Collections      []string  `yaml:"collections"`
	AutoEnable       bool      `yaml:"auto_enable"`
	AutoInterval     string    `yaml:"auto_interval"`
	S3               S3Options `yaml:"s3"`
}

type S3Options struct {
	Enable          bool   `yaml:"enable"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	PathStyleAccess bool   `yaml:"path_style_access"`
	Path            string `yaml:"path"`
}

// rawAppConfig accepts legacy flat keys next to the structured sections.
type rawAppConfig struct {
	AppConfig   `yaml:",inline"`
	NodeEnv     string `yaml:"node_env"`
	BackupDir   string `yaml:"backup_dir"`
	LogDir      string `yaml:"log_dir"`
	TimeZone    string `yaml:"time_zone"`
	RedisEnable *bool  `yaml:"redis_enable"`
}

// Load reads the YAML file at configPath over the defaults and validates it.
func Load(configPath string) (*AppConfig, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = DefaultConfigPath
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}

	cfg, err := Parse(content)
	if err != nil {
		return nil, fmt.Errorf("config file %q: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML content over the defaults.
func Parse(content []byte) (*AppConfig, error) {
	raw := rawAppConfig{AppConfig: Default()}
	if len(bytes.TrimSpace(content)) > 0 {
		decoder := yaml.NewDecoder(bytes.NewReader(content))
		decoder.KnownFields(true)
		if err := decoder.Decode(&raw); err != nil {
			return nil, fmt.Errorf("parse: %w", err)
		}
	}

	cfg := raw.AppConfig
	applyLegacyKeys(&cfg, raw)
	applyEnvOverrides(&cfg)
	normalize(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration.
func Default() AppConfig {
	cfg := AppConfig{
		Port: defaultPort,
		Env:  defaultEnv,
		Database: DatabaseRuntimeConfig{
			Host:      defaultDBHost,
			Port:      defaultDBPort,
			User:      defaultDBUser,
			Password:  defaultDBPassword,
			Name:      defaultDBName,
			Charset:   defaultDBCharset,
			ParseTime: true,
			Loc:       defaultDBLoc,
		},
		Redis: RedisRuntimeConfig{
			Enable: true,
			Host:   defaultRedisHost,
			Port:   defaultRedisPort,
			DB:     defaultRedisDB,
		},
		Mongo: MongoRuntimeConfig{
			URI:      defaultMongoURI,
			Database: defaultMongoDB,
		},
		Store: StoreConfig{Driver: StoreDriverMySQL},
		Paths: RuntimePathsConfig{
			Logs:    defaultLogsDir,
			Backups: defaultBackupsDir,
		},
		Backup: BackupConfig{
			MaxArtifactBytes: defaultMaxArtifactBytes,
			HistoryLimit:     defaultHistoryLimit,
			Formats:          append([]string(nil), defaultBackupFormats...),
			AutoEnable:       true,
			AutoInterval:     defaultAutoInterval,
			S3:               S3Options{Path: defaultS3PathTemplate},
		},
	}
	cfg.DSN = cfg.Database.DSNValue()
	cfg.RedisURL = cfg.Redis.URLValue()
	return cfg
}

func applyLegacyKeys(cfg *AppConfig, raw rawAppConfig) {
	if v := strings.TrimSpace(raw.NodeEnv); v != "" {
		cfg.Env = v
	}
	if v := strings.TrimSpace(raw.BackupDir); v != "" {
		cfg.Paths.Backups = v
	}
	if v := strings.TrimSpace(raw.LogDir); v != "" {
		cfg.Paths.Logs = v
	}
	if v := strings.TrimSpace(raw.TimeZone); v != "" {
		cfg.Timezone = v
	}
	if raw.RedisEnable != nil {
		cfg.Redis.Enable = *raw.RedisEnable
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	if dir := strings.TrimSpace(os.Getenv(EnvBackupDir)); dir != "" {
		cfg.Paths.Backups = dir
	}
	if dir := strings.TrimSpace(os.Getenv(EnvLogDir)); dir != "" {
		cfg.Paths.Logs = dir
	}
}

func normalize(cfg *AppConfig) {
	cfg.Env = normalizeEnv(cfg.Env)
	cfg.Timezone = strings.TrimSpace(cfg.Timezone)
	cfg.JWTSecret = strings.TrimSpace(cfg.JWTSecret)
	cfg.AllowedOrigins = normalizeOrigins(cfg.AllowedOrigins)
	cfg.Database = normalizeDatabaseConfig(cfg.Database)
	cfg.Redis = normalizeRedisConfig(cfg.Redis)
	cfg.Mongo = normalizeMongoConfig(cfg.Mongo)
	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = StoreDriverMySQL
	}
	cfg.Paths = normalizeRuntimePaths(cfg.Paths)
	cfg.Backup = normalizeBackupConfig(cfg.Backup)
	cfg.DSN = cfg.Database.DSNValue()
	cfg.RedisURL = cfg.Redis.URLValue()
}

// Validate checks ranges and enumerations.
func (c *AppConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d, expected 1-65535", c.Port)
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database.port %d, expected 1-65535", c.Database.Port)
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		return fmt.Errorf("invalid redis.port %d, expected 1-65535", c.Redis.Port)
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("invalid redis.db %d, expected >= 0", c.Redis.DB)
	}
	switch c.Store.Driver {
	case StoreDriverMySQL, StoreDriverMongo, StoreDriverMemory:
	default:
		return fmt.Errorf("invalid store.driver %q, expected mysql, mongo or memory", c.Store.Driver)
	}
	if c.Backup.MaxArtifactBytes <= 0 {
		return fmt.Errorf("invalid backup.max_artifact_bytes %d, expected > 0", c.Backup.MaxArtifactBytes)
	}
	if c.Backup.HistoryLimit <= 0 {
		return fmt.Errorf("invalid backup.history_limit %d, expected > 0", c.Backup.HistoryLimit)
	}
	for _, format := range c.Backup.Formats {
		if _, ok := knownBackupFormats[format]; !ok {
			return fmt.Errorf("invalid backup.formats entry %q, expected sql, bson or excel", format)
		}
	}
	if _, err := c.AutoBackupInterval(); err != nil {
		return err
	}
	return nil
}

func (c *AppConfig) IsDev() bool {
	return strings.EqualFold(c.Env, defaultEnv)
}

func (c *AppConfig) LogDir() string {
	if c == nil {
		return ResolveRuntimePath("", defaultLogsDir)
	}
	return ResolveRuntimePath(c.Paths.Logs, defaultLogsDir)
}

func (c *AppConfig) BackupDir() string {
	if c == nil {
		return ResolveRuntimePath("", defaultBackupsDir)
	}
	return ResolveRuntimePath(c.Paths.Backups, defaultBackupsDir)
}

// AutoBackupInterval parses backup.auto_interval.
func (c *AppConfig) AutoBackupInterval() (time.Duration, error) {
	raw := strings.TrimSpace(c.Backup.AutoInterval)
	if raw == "" {
		raw = defaultAutoInterval
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid backup.auto_interval %q: %w", raw, err)
	}
	if d < time.Minute {
		return 0, fmt.Errorf("invalid backup.auto_interval %q, expected >= 1m", raw)
	}
	return d, nil
}
