// Package config provides application configuration loaded from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	App        AppConfig
	Fees       FeesConfig
	Accounting AccountingConfig
	Notify     NotifyConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port          string
	ReadTimeout   int // seconds
	WriteTimeout  int // seconds
	IdleTimeout   int // seconds
	SessionSecret string
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver   string // postgres | sqlite
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	Path     string // sqlite file
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Dev        bool
	Migrations bool
	Seed       bool
	DBDebug    bool
}

// FeesConfig tunes the fee engine.
type FeesConfig struct {
	Currency        string
	MinorUnits      int
	DefaultDueMonth int
	DefaultDueDay   int
	NumberRetries   int
}

// AccountingConfig selects the external accounting provider.
type AccountingConfig struct {
	Provider string
	BaseURL  string
	Token    string
	RealmID  string
	Timeout  time.Duration
}

// NotifyConfig holds reminder delivery settings.
type NotifyConfig struct {
	DefaultChannel string
	SendgridAPIKey string
	FromEmail      string
	FromName       string
	WatiURL        string
	WatiAPIKey     string
}

// DSN returns the PostgreSQL connection string in key=value format.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// URL returns the PostgreSQL connection string in URL format, as golang-migrate expects it.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// IsSQLite reports whether the sqlite driver is selected.
func (d DatabaseConfig) IsSQLite() bool {
	return strings.EqualFold(d.Driver, "sqlite")
}

func defaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("server.read_timeout", 15)
	v.SetDefault("server.write_timeout", 15)
	v.SetDefault("server.idle_timeout", 60)
	v.SetDefault("session.secret", "devsessionsecret")

	v.SetDefault("db.driver", "postgres")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "fees")
	v.SetDefault("db.password", "fees123")
	v.SetDefault("db.name", "fees")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.path", "fees.db")
	v.SetDefault("db.debug", false)
	v.SetDefault("db.seed", false)

	v.SetDefault("dev", true)
	v.SetDefault("migrations", false)

	v.SetDefault("fees.currency", "UGX")
	v.SetDefault("fees.minor_units", 2)
	v.SetDefault("fees.default_due_month", 12)
	v.SetDefault("fees.default_due_day", 31)
	v.SetDefault("fees.number_retries", 5)

	v.SetDefault("accounting.provider", "none")
	v.SetDefault("accounting.base_url", "")
	v.SetDefault("accounting.token", "")
	v.SetDefault("accounting.realm_id", "")
	v.SetDefault("accounting.timeout", "10s")

	v.SetDefault("notify.channel", "console")
	v.SetDefault("sendgrid.api_key", "")
	v.SetDefault("notify.from_email", "no-reply@school.local")
	v.SetDefault("notify.from_name", "School Bursar")
	v.SetDefault("wati.url", "")
	v.SetDefault("wati.api_key", "")
}

// Load reads .env (when present) and the process environment.
// Keys map to upper-cased env names with dots replaced by underscores,
// so db.host is read from DB_HOST.
func Load() *Config {
	_ = godotenv.Load()
	return FromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	defaults(v)
	return v
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Port:          v.GetString("port"),
			ReadTimeout:   v.GetInt("server.read_timeout"),
			WriteTimeout:  v.GetInt("server.write_timeout"),
			IdleTimeout:   v.GetInt("server.idle_timeout"),
			SessionSecret: v.GetString("session.secret"),
		},
		Database: DatabaseConfig{
			Driver:   v.GetString("db.driver"),
			Host:     v.GetString("db.host"),
			Port:     v.GetInt("db.port"),
			User:     v.GetString("db.user"),
			Password: v.GetString("db.password"),
			DBName:   v.GetString("db.name"),
			SSLMode:  v.GetString("db.sslmode"),
			Path:     v.GetString("db.path"),
		},
		App: AppConfig{
			Dev:        v.GetBool("dev"),
			Migrations: v.GetBool("migrations"),
			Seed:       v.GetBool("db.seed"),
			DBDebug:    v.GetBool("db.debug"),
		},
		Fees: FeesConfig{
			Currency:        v.GetString("fees.currency"),
			MinorUnits:      v.GetInt("fees.minor_units"),
			DefaultDueMonth: v.GetInt("fees.default_due_month"),
			DefaultDueDay:   v.GetInt("fees.default_due_day"),
			NumberRetries:   v.GetInt("fees.number_retries"),
		},
		Accounting: AccountingConfig{
			Provider: v.GetString("accounting.provider"),
			BaseURL:  v.GetString("accounting.base_url"),
			Token:    v.GetString("accounting.token"),
			RealmID:  v.GetString("accounting.realm_id"),
			Timeout:  v.GetDuration("accounting.timeout"),
		},
		Notify: NotifyConfig{
			DefaultChannel: v.GetString("notify.channel"),
			SendgridAPIKey: v.GetString("sendgrid.api_key"),
			FromEmail:      v.GetString("notify.from_email"),
			FromName:       v.GetString("notify.from_name"),
			WatiURL:        v.GetString("wati.url"),
			WatiAPIKey:     v.GetString("wati.api_key"),
		},
	}
}
