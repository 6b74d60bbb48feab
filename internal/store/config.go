package store

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "PELOTOURNEY_"

type Config struct {
	BaseURL        string        `yaml:"base_url" json:"base_url" env:"BASE_URL" validate:"required,url"`
	TournamentID   int64         `yaml:"tournament_id" json:"tournament_id" env:"TOURNAMENT_ID" validate:"gt=0"`
	SearchDebounce time.Duration `yaml:"search_debounce" json:"search_debounce" env:"SEARCH_DEBOUNCE" validate:"gt=0"`
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout" env:"REQUEST_TIMEOUT" validate:"gt=0"`
	JoinPolicy     string        `yaml:"join_policy" json:"join_policy" env:"JOIN_POLICY" validate:"oneof=fail skip"`
	JournalPath    string        `yaml:"journal_path" json:"journal_path" env:"JOURNAL_PATH"`
	LogFile        string        `yaml:"log_file" json:"log_file" env:"LOG_FILE"`
	LogLevel       string        `yaml:"log_level" json:"log_level" env:"LOG_LEVEL" validate:"oneof=trace debug info warn warning error"`
}

func DefaultConfig() Config {
	return Config{
		SearchDebounce: 250 * time.Millisecond,
		RequestTimeout: 10 * time.Second,
		JoinPolicy:     "fail",
		LogLevel:       "info",
	}
}

// ConfigDir is $XDG_CONFIG_HOME/pelotourney (or the OS equivalent).
func ConfigDir() (string, error) {
	if v := strings.TrimSpace(os.Getenv(EnvPrefix + "CONFIG_DIR")); v != "" {
		return v, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "pelotourney"), nil
}

func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// DefaultJournalPath sits next to the config file.
func DefaultJournalPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "journal.sqlite"), nil
}

// LoadConfig layers defaults, the YAML file at path and PELOTOURNEY_*
// environment variables. An empty path uses ConfigPath; a missing file is
// not an error. The result is not validated; callers apply flags first.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	explicit := strings.TrimSpace(path) != ""
	if !explicit {
		p, err := ConfigPath()
		if err != nil {
			return cfg, err
		}
		path = p
	}
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decodeYAML(b, &cfg); err != nil {
			return cfg, fmt.Errorf("%s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, fmt.Errorf("config from environment: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

func decodeYAML(b []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) normalize() {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	c.JoinPolicy = strings.ToLower(strings.TrimSpace(c.JoinPolicy))
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.JournalPath = strings.TrimSpace(c.JournalPath)
	c.LogFile = strings.TrimSpace(c.LogFile)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	c.normalize()
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (got %v)", yamlName(fe.StructField()), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func yamlName(field string) string {
	switch field {
	case "BaseURL":
		return "base_url"
	case "TournamentID":
		return "tournament_id"
	case "SearchDebounce":
		return "search_debounce"
	case "RequestTimeout":
		return "request_timeout"
	case "JoinPolicy":
		return "join_policy"
	case "LogLevel":
		return "log_level"
	default:
		return strings.ToLower(field)
	}
}

// SaveConfig writes cfg as YAML, creating the directory if needed.
func SaveConfig(path string, cfg Config) error {
	if strings.TrimSpace(path) == "" {
		p, err := ConfigPath()
		if err != nil {
			return err
		}
		path = p
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return atomicWriteFile(dir, ".config-*.yaml", path, b, 0o600)
}

func atomicWriteFile(dir, tmpPattern, path string, b []byte, perm os.FileMode) error {
	f, err := os.CreateTemp(dir, tmpPattern)
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp, perm); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
