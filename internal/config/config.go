// Package config loads Tidewatch settings from a YAML file, a .env file and
// TIDEWATCH_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/tidewatch/tidewatch/internal/tide"
)

// EnvPrefix prefixes every environment override: weather.api_key is read
// from TIDEWATCH_WEATHER_API_KEY.
const EnvPrefix = "TIDEWATCH"

// DefaultFile is the config file looked up when none is given.
const DefaultFile = "tidewatch.yaml"

// Calendar backends.
const (
	BackendNone   = "none"
	BackendICS    = "ics"
	BackendCalDAV = "caldav"
	BackendGoogle = "google"
)

// Token stores for the google backend.
const (
	TokenStoreMemory   = "memory"
	TokenStoreFile     = "file"
	TokenStorePostgres = "postgres"
)

// ErrInvalid wraps every validation failure from Load.
var ErrInvalid = errors.New("invalid configuration")

// Accessor reads one setting by dotted key ("weather.api_key").
type Accessor interface {
	Get(key string) (any, bool)
}

// Settings is the typed configuration.
type Settings struct {
	Log       LogSettings       `mapstructure:"log"`
	Server    ServerSettings    `mapstructure:"server"`
	Location  LocationSettings  `mapstructure:"location"`
	Display   DisplaySettings   `mapstructure:"display"`
	Refresh   RefreshSettings   `mapstructure:"refresh"`
	Weather   WeatherSettings   `mapstructure:"weather"`
	Tide      TideSettings      `mapstructure:"tide"`
	Sun       SunSettings       `mapstructure:"sun"`
	Calendar  CalendarSettings  `mapstructure:"calendar"`
	Auth      AuthSettings      `mapstructure:"auth"`
	Database  DatabaseSettings  `mapstructure:"database"`
	Telemetry TelemetrySettings `mapstructure:"telemetry"`
	Trigger   TriggerSettings   `mapstructure:"trigger"`
}

type LogSettings struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type ServerSettings struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RequireTLS      bool          `mapstructure:"require_tls"`
}

type LocationSettings struct {
	Latitude  float64 `mapstructure:"latitude"`
	Longitude float64 `mapstructure:"longitude"`
	Timezone  string  `mapstructure:"timezone"`
}

type DisplaySettings struct {
	ThresholdHour int    `mapstructure:"threshold_hour"`
	Locale        string `mapstructure:"locale"`
	Seed          int64  `mapstructure:"seed"`
}

type RefreshSettings struct {
	Interval          time.Duration `mapstructure:"interval"`
	ModeCheckInterval time.Duration `mapstructure:"mode_check_interval"`
	RetryBase         time.Duration `mapstructure:"retry_base"`
	MaxRetries        int           `mapstructure:"max_retries"`
}

type WeatherSettings struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

type TideSettings struct {
	Stations []tide.Station `mapstructure:"stations"`
	BaseURL  string         `mapstructure:"base_url"`
}

type SunSettings struct {
	BaseURL string `mapstructure:"base_url"`
}

type CalendarSettings struct {
	Backend string         `mapstructure:"backend"`
	ICS     ICSSettings    `mapstructure:"ics"`
	CalDAV  CalDAVSettings `mapstructure:"caldav"`
	Google  GoogleSettings `mapstructure:"google"`
}

type ICSSettings struct {
	URL   string `mapstructure:"url"`
	Relay string `mapstructure:"relay"`
	Label string `mapstructure:"label"`
	Color string `mapstructure:"color"`
}

type CalDAVSettings struct {
	ProxyURL    string `mapstructure:"proxy_url"`
	Username    string `mapstructure:"username"`
	AppPassword string `mapstructure:"app_password"`
	Label       string `mapstructure:"label"`
	Color       string `mapstructure:"color"`
}

type GoogleSettings struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	CalendarID   string `mapstructure:"calendar_id"`
	TokenStore   string `mapstructure:"token_store"`
	TokenFile    string `mapstructure:"token_file"`
	ListenAddr   string `mapstructure:"listen_addr"`
}

type AuthSettings struct {
	SigningKey string        `mapstructure:"signing_key"`
	Issuer     string        `mapstructure:"issuer"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
}

type DatabaseSettings struct {
	URL             string        `mapstructure:"url"`
	MaxConns        int           `mapstructure:"max_conns"`
	MinConns        int           `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type TelemetrySettings struct {
	Enabled      bool   `mapstructure:"enabled"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	Environment  string `mapstructure:"environment"`
}

type TriggerSettings struct {
	DayBoundary        bool   `mapstructure:"day_boundary"`
	PubSubProject      string `mapstructure:"pubsub_project"`
	PubSubSubscription string `mapstructure:"pubsub_subscription"`
}

// Options control where Load reads from.
type Options struct {
	// File is an explicit config path. Empty looks for DefaultFile in the
	// working directory and tolerates its absence.
	File string

	// EnvFile is a dotenv file loaded into the process environment before
	// reading. Empty tries ".env" and tolerates its absence.
	EnvFile string
}

// Config is a loaded configuration. It implements Accessor.
type Config struct {
	v *viper.Viper
}

// New reads configuration sources without decoding them.
func New(opts Options) (*Config, error) {
	if err := loadEnvFile(opts.EnvFile); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigType("yaml")
	if opts.File != "" {
		v.SetConfigFile(opts.File)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", opts.File, err)
		}
	} else if _, err := os.Stat(DefaultFile); err == nil {
		v.SetConfigFile(DefaultFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", DefaultFile, err)
		}
	}

	return &Config{v: v}, nil
}

// Load reads and decodes configuration into Settings.
func Load(opts Options) (*Settings, *Config, error) {
	cfg, err := New(opts)
	if err != nil {
		return nil, nil, err
	}
	s, err := cfg.Settings()
	if err != nil {
		return nil, nil, err
	}
	return s, cfg, nil
}

// Get returns the value at a dotted key. Environment overrides win over the
// file, which wins over defaults.
func (c *Config) Get(key string) (any, bool) {
	if !c.v.IsSet(key) {
		return nil, false
	}
	return c.v.Get(key), true
}

// File returns the config file in use, or "".
func (c *Config) File() string {
	return c.v.ConfigFileUsed()
}

// Settings decodes and validates the typed configuration.
func (c *Config) Settings() (*Settings, error) {
	var s Settings
	if err := c.v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if len(s.Tide.Stations) == 0 {
		s.Tide.Stations = append([]tide.Station(nil), tide.DefaultStations...)
	}
	s.Calendar.Backend = strings.ToLower(strings.TrimSpace(s.Calendar.Backend))
	if s.Calendar.Backend == "" {
		s.Calendar.Backend = BackendNone
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks ranges and enumerations. Missing provider credentials are
// not errors here; the affected fetcher reports them as config failures.
func (s *Settings) Validate() error {
	if s.Display.ThresholdHour < 0 || s.Display.ThresholdHour > 23 {
		return fmt.Errorf("%w: display.threshold_hour must be 0-23, got %d", ErrInvalid, s.Display.ThresholdHour)
	}
	if s.Server.Port <= 0 || s.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port must be 1-65535, got %d", ErrInvalid, s.Server.Port)
	}
	if s.Refresh.Interval <= 0 {
		return fmt.Errorf("%w: refresh.interval must be positive", ErrInvalid)
	}
	switch s.Calendar.Backend {
	case BackendNone, BackendICS, BackendCalDAV, BackendGoogle:
	default:
		return fmt.Errorf("%w: calendar.backend %q is not one of none, ics, caldav, google", ErrInvalid, s.Calendar.Backend)
	}
	switch s.Calendar.Google.TokenStore {
	case TokenStoreMemory, TokenStoreFile, TokenStorePostgres:
	default:
		return fmt.Errorf("%w: calendar.google.token_store %q is not one of memory, file, postgres", ErrInvalid, s.Calendar.Google.TokenStore)
	}
	for i, st := range s.Tide.Stations {
		if st.ID == "" {
			return fmt.Errorf("%w: tide.stations[%d] has no id", ErrInvalid, i)
		}
	}
	return nil
}

func loadEnvFile(path string) error {
	if path == "" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load .env: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.require_tls", false)

	v.SetDefault("location.latitude", 36.9741)
	v.SetDefault("location.longitude", -122.0308)
	v.SetDefault("location.timezone", "America/Los_Angeles")

	v.SetDefault("display.threshold_hour", 17)
	v.SetDefault("display.locale", "en")
	v.SetDefault("display.seed", 0)

	v.SetDefault("refresh.interval", 30*time.Minute)
	v.SetDefault("refresh.mode_check_interval", 60*time.Second)
	v.SetDefault("refresh.retry_base", 5*time.Second)
	v.SetDefault("refresh.max_retries", 3)

	v.SetDefault("weather.api_key", "")
	v.SetDefault("weather.base_url", "")
	v.SetDefault("tide.base_url", "")
	v.SetDefault("sun.base_url", "")

	v.SetDefault("calendar.backend", BackendNone)
	v.SetDefault("calendar.ics.url", "")
	v.SetDefault("calendar.ics.relay", "")
	v.SetDefault("calendar.ics.label", "Calendar")
	v.SetDefault("calendar.ics.color", "")
	v.SetDefault("calendar.caldav.proxy_url", "")
	v.SetDefault("calendar.caldav.username", "")
	v.SetDefault("calendar.caldav.app_password", "")
	v.SetDefault("calendar.caldav.label", "Calendar")
	v.SetDefault("calendar.caldav.color", "")
	v.SetDefault("calendar.google.client_id", "")
	v.SetDefault("calendar.google.client_secret", "")
	v.SetDefault("calendar.google.calendar_id", "primary")
	v.SetDefault("calendar.google.token_store", TokenStoreFile)
	v.SetDefault("calendar.google.token_file", "tidewatch-tokens.yaml")
	v.SetDefault("calendar.google.listen_addr", "127.0.0.1:8089")

	v.SetDefault("auth.signing_key", "")
	v.SetDefault("auth.issuer", "tidewatch")
	v.SetDefault("auth.token_ttl", 24*time.Hour)

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 4)
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4317")
	v.SetDefault("telemetry.environment", "development")

	v.SetDefault("trigger.day_boundary", true)
	v.SetDefault("trigger.pubsub_project", "")
	v.SetDefault("trigger.pubsub_subscription", "")
}
