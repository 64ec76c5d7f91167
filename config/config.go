package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port     string         `yaml:"port"`
	Mongo    MongoConfig    `yaml:"mongo"`
	Redis    RedisConfig    `yaml:"redis"`
	AMQP     AMQPConfig     `yaml:"amqp"`
	Auth     AuthConfig     `yaml:"auth"`
	Tracking TrackingConfig `yaml:"tracking"`
	Queue    QueueConfig    `yaml:"queue"`
	Uploads  UploadConfig   `yaml:"uploads"`
}

type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type AMQPConfig struct {
	URL string `yaml:"url"`
}

type AuthConfig struct {
	JWTSecret    string `yaml:"jwt_secret"`
	TicketSecret string `yaml:"ticket_secret"`
}

type TrackingConfig struct {
	MinInterval   time.Duration `yaml:"min_interval"`
	CacheTTL      time.Duration `yaml:"cache_ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	ActiveWindow  time.Duration `yaml:"active_window"`
}

type QueueConfig struct {
	DefaultServiceMinutes int `yaml:"default_service_minutes"`
}

type UploadConfig struct {
	Dir string `yaml:"dir"`
}

func Default() Config {
	return Config{
		Port:  ":8080",
		Mongo: MongoConfig{Database: "carwash"},
		Redis: RedisConfig{PoolSize: 10},
		Tracking: TrackingConfig{
			MinInterval:   30 * time.Second,
			CacheTTL:      5 * time.Minute,
			SweepInterval: time.Minute,
			ActiveWindow:  5 * time.Minute,
		},
		Queue:   QueueConfig{DefaultServiceMinutes: 30},
		Uploads: UploadConfig{Dir: "static/uploads"},
	}
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment, in that order of precedence (environment wins).
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found; using system environment")
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		expanded := []byte(os.ExpandEnv(string(data)))
		if err := yaml.Unmarshal(expanded, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if cfg.Port != "" && cfg.Port[0] != ':' {
		cfg.Port = ":" + cfg.Port
	}
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Port, "PORT")
	setString(&cfg.Mongo.URI, "MONGO_URI")
	setString(&cfg.Mongo.Database, "MONGO_DB")
	setString(&cfg.Redis.Address, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setString(&cfg.AMQP.URL, "AMQP_URL")
	setString(&cfg.Auth.JWTSecret, "JWT_SECRET")
	setString(&cfg.Auth.TicketSecret, "TICKET_SECRET")
	setString(&cfg.Uploads.Dir, "UPLOAD_DIR")

	if err := setInt(&cfg.Redis.DB, "REDIS_DB"); err != nil {
		return err
	}
	if err := setInt(&cfg.Queue.DefaultServiceMinutes, "DEFAULT_SERVICE_MINUTES"); err != nil {
		return err
	}
	for key, dst := range map[string]*time.Duration{
		"LOCATION_MIN_INTERVAL":   &cfg.Tracking.MinInterval,
		"LOCATION_CACHE_TTL":      &cfg.Tracking.CacheTTL,
		"LOCATION_SWEEP_INTERVAL": &cfg.Tracking.SweepInterval,
		"ACTIVE_DRIVER_WINDOW":    &cfg.Tracking.ActiveWindow,
	} {
		if err := setDuration(dst, key); err != nil {
			return err
		}
	}
	return nil
}

func (c Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Tracking.MinInterval <= 0 || c.Tracking.CacheTTL <= 0 || c.Tracking.SweepInterval <= 0 {
		return fmt.Errorf("tracking intervals must be positive")
	}
	if c.Queue.DefaultServiceMinutes < 1 {
		return fmt.Errorf("default service duration must be at least 1 minute")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}
