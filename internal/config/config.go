package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type Config struct {
	Debug    bool
	HTTPAddr string
	SiteID   string

	DBDriver string // sqlite|postgres
	DBDSN    string

	AuthSecret string
	TokenTTL   time.Duration

	CORSOrigins []string

	// Bootstrap admin, created on startup when no admin exists.
	AdminEmail    string
	AdminPassword string

	RequestTimeout time.Duration
}

// Load reads an optional .env file (ENV_FILE, default ".env") and then
// resolves every key from the environment with defaults.
func Load() (Config, error) {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return Config{}, errors.Wrapf(err, "config: load %s", envFile)
		}
	} else if !os.IsNotExist(err) {
		return Config{}, errors.Wrapf(err, "config: stat %s", envFile)
	}
	return FromViper(newViper()), nil
}

// FromEnv is Load without the .env file.
func FromEnv() Config {
	return FromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", false)
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("site_id", "local")
	v.SetDefault("db_driver", "sqlite")
	v.SetDefault("db_dsn", "")
	v.SetDefault("auth_hmac_secret", "examdesk-dev-secret")
	v.SetDefault("token_ttl", 8*time.Hour)
	v.SetDefault("cors_origins", "http://localhost:3000")
	v.SetDefault("admin_email", "")
	v.SetDefault("admin_password", "")
	v.SetDefault("request_timeout", 30*time.Second)
	v.AutomaticEnv()
	return v
}

func FromViper(v *viper.Viper) Config {
	return Config{
		Debug:          v.GetBool("debug"),
		HTTPAddr:       v.GetString("http_addr"),
		SiteID:         v.GetString("site_id"),
		DBDriver:       strings.ToLower(v.GetString("db_driver")),
		DBDSN:          v.GetString("db_dsn"),
		AuthSecret:     v.GetString("auth_hmac_secret"),
		TokenTTL:       v.GetDuration("token_ttl"),
		CORSOrigins:    splitCSV(v.GetString("cors_origins")),
		AdminEmail:     strings.TrimSpace(v.GetString("admin_email")),
		AdminPassword:  v.GetString("admin_password"),
		RequestTimeout: v.GetDuration("request_timeout"),
	}
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
