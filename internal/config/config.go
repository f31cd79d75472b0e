package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"
)

// Storage backends for pages.
const (
	BackendSiteAPI = "siteapi"
	BackendSQL     = "sql"
	BackendMongo   = "mongo"
	BackendS3      = "s3"
	BackendFile    = "file"
)

type Config struct {
	DataDir  string         `toml:"data_dir"`
	LogLevel string         `toml:"log_level"`
	HTTP     HTTPConfig     `toml:"http"`
	Storage  StorageConfig  `toml:"storage"`
	Secrets  SecretConfig   `toml:"secrets"`
	Autosave AutosaveConfig `toml:"autosave"`
	Editor   EditorConfig   `toml:"editor"`
}

type HTTPConfig struct {
	Addr           string   `toml:"addr"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

type StorageConfig struct {
	Backend string        `toml:"backend"`
	SiteAPI SiteAPIConfig `toml:"siteapi"`
	SQL     SQLConfig     `toml:"sql"`
	Mongo   MongoConfig   `toml:"mongo"`
	S3      S3Config      `toml:"s3"`
	File    FileConfig    `toml:"file"`
}

type SiteAPIConfig struct {
	BaseURL string   `toml:"base_url"`
	Timeout Duration `toml:"timeout"`
}

type SQLConfig struct {
	Driver   string `toml:"driver"` // sqlite, postgres, mysql
	Path     string `toml:"path"`
	DSN      string `toml:"dsn"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

type MongoConfig struct {
	URI        string `toml:"uri"`
	Database   string `toml:"database"`
	Collection string `toml:"collection"`
}

type S3Config struct {
	Bucket string `toml:"bucket"`
	Prefix string `toml:"prefix"`
	Region string `toml:"region"`
}

type FileConfig struct {
	Dir   string `toml:"dir"`
	Watch bool   `toml:"watch"`
}

type SecretConfig struct {
	Backend string `toml:"backend"` // file or keychain
	Dir     string `toml:"dir"`
}

type AutosaveConfig struct {
	Enabled   bool   `toml:"enabled"`
	Schedule  string `toml:"schedule"`
	MaxDrafts int    `toml:"max_drafts"`
}

type EditorConfig struct {
	HistoryLimit int `toml:"history_limit"`
}

type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func DefaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "pagebuilder"), nil
}

func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".config", "pagebuilder", "config.toml"), nil
}

func Default() (*Config, error) {
	dataDir, err := DefaultDataDir()
	if err != nil {
		return nil, err
	}
	c := &Config{DataDir: dataDir}
	c.setDefaults()
	return c, nil
}

// Load reads the TOML file at path, falling back to defaults when it does
// not exist, then applies environment overrides.
func Load(path string) (*Config, error) {
	c := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logrus.WithField("path", path).Debug("no config file, using defaults")
	case err != nil:
		return nil, fmt.Errorf("reading config file: %w", err)
	default:
		if err := toml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("unmarshaling config: %w", err)
		}
	}

	if c.DataDir == "" {
		dataDir, err := DefaultDataDir()
		if err != nil {
			return nil, err
		}
		c.DataDir = dataDir
	}
	c.applyEnv()
	c.setDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadEnv loads the given .env files into the process environment. Missing
// files are skipped; existing variables win.
func LoadEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = "127.0.0.1:8088"
	}
	if len(c.HTTP.AllowedOrigins) == 0 {
		c.HTTP.AllowedOrigins = []string{"http://localhost:*", "http://127.0.0.1:*"}
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendSQL
	}
	if c.Storage.SiteAPI.Timeout.Duration == 0 {
		c.Storage.SiteAPI.Timeout = Duration{15 * time.Second}
	}
	if c.Storage.SQL.Driver == "" {
		c.Storage.SQL.Driver = "sqlite"
	}
	if c.Storage.SQL.Path == "" {
		c.Storage.SQL.Path = filepath.Join(c.DataDir, "pagebuilder.db")
	}
	if c.Storage.Mongo.Database == "" {
		c.Storage.Mongo.Database = "pagebuilder"
	}
	if c.Storage.Mongo.Collection == "" {
		c.Storage.Mongo.Collection = "pages"
	}
	if c.Storage.File.Dir == "" {
		c.Storage.File.Dir = filepath.Join(c.DataDir, "pages")
	}
	if c.Secrets.Backend == "" {
		c.Secrets.Backend = "file"
	}
	if c.Secrets.Dir == "" {
		c.Secrets.Dir = filepath.Join(c.DataDir, "secrets")
	}
	if c.Autosave.Schedule == "" {
		c.Autosave.Schedule = "@every 30s"
	}
	if c.Autosave.MaxDrafts <= 0 {
		c.Autosave.MaxDrafts = 20
	}
	if c.Editor.HistoryLimit <= 0 {
		c.Editor.HistoryLimit = 50
	}
}

// applyEnv lets secrets and deployment specifics stay out of the file.
func (c *Config) applyEnv() {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	str("PAGEBUILDER_LOG_LEVEL", &c.LogLevel)
	str("PAGEBUILDER_HTTP_ADDR", &c.HTTP.Addr)
	str("PAGEBUILDER_STORAGE", &c.Storage.Backend)
	str("PAGEBUILDER_SITE_API_URL", &c.Storage.SiteAPI.BaseURL)
	str("PAGEBUILDER_SQL_DRIVER", &c.Storage.SQL.Driver)
	str("PAGEBUILDER_SQL_DSN", &c.Storage.SQL.DSN)
	str("PAGEBUILDER_SQL_PASSWORD", &c.Storage.SQL.Password)
	str("PAGEBUILDER_MONGO_URI", &c.Storage.Mongo.URI)
	str("PAGEBUILDER_S3_BUCKET", &c.Storage.S3.Bucket)
	str("PAGEBUILDER_S3_REGION", &c.Storage.S3.Region)
	if v := os.Getenv("PAGEBUILDER_SQL_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Storage.SQL.Port = port
		} else {
			logrus.WithField("value", v).Warn("ignoring invalid PAGEBUILDER_SQL_PORT")
		}
	}
}

func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level: %w", err)
	}
	switch c.Storage.Backend {
	case BackendSiteAPI:
		if c.Storage.SiteAPI.BaseURL == "" {
			return errors.New("storage.siteapi.base_url is required for the siteapi backend")
		}
	case BackendSQL:
		switch c.Storage.SQL.Driver {
		case "sqlite", "postgres", "mysql":
		default:
			return fmt.Errorf("unsupported storage.sql.driver %q", c.Storage.SQL.Driver)
		}
	case BackendMongo:
		if c.Storage.Mongo.URI == "" {
			return errors.New("storage.mongo.uri is required for the mongo backend")
		}
	case BackendS3:
		if c.Storage.S3.Bucket == "" {
			return errors.New("storage.s3.bucket is required for the s3 backend")
		}
	case BackendFile:
	default:
		return fmt.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}
	switch c.Secrets.Backend {
	case "file", "keychain":
	default:
		return fmt.Errorf("unknown secrets.backend %q", c.Secrets.Backend)
	}
	return nil
}

// ConfigureLogging applies LogLevel to the global logrus logger.
func (c *Config) ConfigureLogging() {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
