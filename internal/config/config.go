package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mosaichq/license-api/internal/ierr"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	License  LicenseConfig
	Stripe   StripeConfig
	JWT      JWTConfig
	Admin    AdminConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port           string        `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"readTimeout"`
	WriteTimeout   time.Duration `mapstructure:"writeTimeout"`
	IdleTimeout    time.Duration `mapstructure:"idleTimeout"`
	ShutdownPeriod time.Duration `mapstructure:"shutdownPeriod"`
}

type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxOpenConns    int           `mapstructure:"maxOpenConns"`
	MaxIdleConns    int           `mapstructure:"maxIdleConns"`
	ConnMaxLifetime time.Duration `mapstructure:"connMaxLifetime"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LicenseConfig holds the secrets the issuance and manual-admin surfaces
// depend on. Neither has a usable default: the service refuses to start
// without them rather than degrading to an unkeyed hash or an open endpoint.
type LicenseConfig struct {
	HMACSecret string `mapstructure:"hmacSecret"`
	AdminToken string `mapstructure:"adminToken"`
}

type StripeConfig struct {
	WebhookSecret string `mapstructure:"webhookSecret"`
}

type JWTConfig struct {
	Secret   string        `mapstructure:"secret"`
	TokenTTL time.Duration `mapstructure:"tokenTTL"`
}

type AdminConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

func LoadConfig(configPath string) (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found or error loading it, relying on environment variables and config file")
	}

	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.readTimeout", 5*time.Second)
	viper.SetDefault("server.writeTimeout", 10*time.Second)
	viper.SetDefault("server.idleTimeout", 120*time.Second)
	viper.SetDefault("server.shutdownPeriod", 15*time.Second)

	viper.SetDefault("database.maxOpenConns", 25)
	viper.SetDefault("database.maxIdleConns", 25)
	viper.SetDefault("database.connMaxLifetime", 5*time.Minute)

	viper.SetDefault("redis.db", "0")

	viper.SetDefault("jwt.tokenTTL", 12*time.Hour)
	viper.SetDefault("admin.username", "admin")

	viper.SetDefault("log.level", "info")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AllowEmptyEnv(true)

	if configPath != "" {
		viper.SetConfigFile(configPath)
		if err := viper.ReadInConfig(); err != nil {
			log.Printf("Warning: could not read config file: %s. Error: %v\n", configPath, err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate fails closed: a missing secret is a startup error, never a
// silently weaker runtime.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("%w: database.url is required", ierr.ErrConfiguration)
	}
	if c.License.HMACSecret == "" {
		return fmt.Errorf("%w: license.hmacSecret is required", ierr.ErrConfiguration)
	}
	if c.License.AdminToken == "" {
		return fmt.Errorf("%w: license.adminToken is required", ierr.ErrConfiguration)
	}
	if c.Stripe.WebhookSecret == "" {
		return fmt.Errorf("%w: stripe.webhookSecret is required", ierr.ErrConfiguration)
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("%w: jwt.secret is required", ierr.ErrConfiguration)
	}
	if c.Admin.Password == "" {
		return fmt.Errorf("%w: admin.password is required", ierr.ErrConfiguration)
	}
	return nil
}
