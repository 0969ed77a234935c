package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Logger     LoggerConfig     `mapstructure:"logger"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Simulation SimulationConfig `mapstructure:"simulation"`
	Sink       SinkConfig       `mapstructure:"sink"`
	Catalog    CatalogConfig    `mapstructure:"catalog"`
	Postgres   PostgresConfig   `mapstructure:"postgres"`
	Gateway    GatewayConfig    `mapstructure:"gateway"`
	Processor  ProcessorConfig  `mapstructure:"processor"`
	Profiling  ProfilingConfig  `mapstructure:"profiling"`
}

type AppConfig struct {
	Port string `mapstructure:"port"`
	Env  string `mapstructure:"env"` // e.g., "local", "prod"
}

type LoggerConfig struct {
	Level       string `mapstructure:"level"`
	Encoding    string `mapstructure:"encoding"` // "json" or "console"
	Development bool   `mapstructure:"development"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

// SimulationConfig tunes the price process, the rolling window and the anomaly rules.
type SimulationConfig struct {
	Interval            time.Duration `mapstructure:"interval"`
	WindowCapacity      int           `mapstructure:"window_capacity"`
	ShortWindow         int           `mapstructure:"short_window"`
	LongWindow          int           `mapstructure:"long_window"`
	SpikeThreshold      float64       `mapstructure:"spike_threshold"` // percent
	DeviationMultiplier float64       `mapstructure:"deviation_multiplier"`
	BandFloor           float64       `mapstructure:"band_floor"`
	BandCeiling         float64       `mapstructure:"band_ceiling"`
	ReversionDeadZone   float64       `mapstructure:"reversion_dead_zone"`
	ReversionSpeed      float64       `mapstructure:"reversion_speed"`
	Seed                int64         `mapstructure:"seed"` // 0 = seeded from the clock
	DispatchConcurrency int           `mapstructure:"dispatch_concurrency"`
}

// SinkConfig selects where analytics records are streamed.
type SinkConfig struct {
	Types      []string      `mapstructure:"types"` // any of "http", "kafka", "redis", "log"
	GatewayURL string        `mapstructure:"gateway_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type CatalogConfig struct {
	Source  string          `mapstructure:"source"` // "static", "file" or "postgres"
	Path    string          `mapstructure:"path"`
	Symbols []CatalogSymbol `mapstructure:"symbols"`
}

type CatalogSymbol struct {
	Ticker string `mapstructure:"ticker"`
	Name   string `mapstructure:"name"`
	Type   string `mapstructure:"type"`
}

type PostgresConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	PasswordFile string `mapstructure:"password_file"`
	Database     string `mapstructure:"database"`
	SSLMode      string `mapstructure:"sslmode"`
}

type GatewayConfig struct {
	Port         string   `mapstructure:"port"`
	ValidTickers []string `mapstructure:"valid_tickers"` // empty accepts any ticker
}

type ProcessorConfig struct {
	NumWorkers int `mapstructure:"num_workers"`
}

type ProfilingConfig struct {
	ServerAddress string `mapstructure:"server_address"` // empty disables pyroscope
}

var (
	sinkTypes      = map[string]bool{"http": true, "kafka": true, "redis": true, "log": true}
	catalogSources = map[string]bool{"static": true, "file": true, "postgres": true}
)

// LoadConfig reads configuration from .env file, environment variables, and defaults.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// .env populates the real process environment so viper's AutomaticEnv sees it
	if err := godotenv.Load(); err != nil {
		log.Println("Note: No .env file found, relying on System Env Vars")
	}

	setDefaults(v)

	// "simulation.interval" -> "SIMULATION_INTERVAL"
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnv(v, "app.port", "app.env")
	bindEnv(v, "logger.level", "logger.encoding", "logger.development")
	bindEnv(v, "redis.addr", "redis.password", "redis.db")
	bindEnv(v, "kafka.brokers", "kafka.topic", "kafka.group_id")
	bindEnv(v, "simulation.interval", "simulation.window_capacity", "simulation.short_window",
		"simulation.long_window", "simulation.spike_threshold", "simulation.deviation_multiplier",
		"simulation.band_floor", "simulation.band_ceiling", "simulation.reversion_dead_zone",
		"simulation.reversion_speed", "simulation.seed", "simulation.dispatch_concurrency")
	bindEnv(v, "sink.types", "sink.gateway_url", "sink.timeout")
	bindEnv(v, "catalog.source", "catalog.path")
	bindEnv(v, "postgres.host", "postgres.port", "postgres.user", "postgres.password",
		"postgres.password_file", "postgres.database", "postgres.sslmode")
	bindEnv(v, "gateway.port", "gateway.valid_tickers")
	bindEnv(v, "processor.num_workers")
	bindEnv(v, "profiling.server_address")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.port", ":8081")
	v.SetDefault("app.env", "local")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.encoding", "json")
	v.SetDefault("logger.development", false)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "analytics_ticks")
	v.SetDefault("kafka.group_id", "analytics-processor-group")

	v.SetDefault("simulation.interval", "5s")
	v.SetDefault("simulation.window_capacity", 100)
	v.SetDefault("simulation.short_window", 5)
	v.SetDefault("simulation.long_window", 20)
	v.SetDefault("simulation.spike_threshold", 5.0)
	v.SetDefault("simulation.deviation_multiplier", 2.0)
	v.SetDefault("simulation.band_floor", 0.7)
	v.SetDefault("simulation.band_ceiling", 1.4)
	v.SetDefault("simulation.reversion_dead_zone", 0.10)
	v.SetDefault("simulation.reversion_speed", 0.01)
	v.SetDefault("simulation.seed", 0)
	v.SetDefault("simulation.dispatch_concurrency", 1)

	v.SetDefault("sink.types", []string{"http"})
	v.SetDefault("sink.gateway_url", "http://localhost:8080")
	v.SetDefault("sink.timeout", "3s")

	v.SetDefault("catalog.source", "static")
	v.SetDefault("catalog.path", "catalog.yaml")
	v.SetDefault("catalog.symbols", []map[string]string{
		{"ticker": "BTC", "name": "Bitcoin", "type": "CRYPTO"},
		{"ticker": "ETH", "name": "Ethereum", "type": "CRYPTO"},
		{"ticker": "SOL", "name": "Solana", "type": "CRYPTO"},
		{"ticker": "AAPL", "name": "Apple Inc.", "type": "STOCK"},
		{"ticker": "GOOGL", "name": "Alphabet Inc.", "type": "STOCK"},
		{"ticker": "MSFT", "name": "Microsoft Corporation", "type": "STOCK"},
		{"ticker": "AMZN", "name": "Amazon.com Inc.", "type": "STOCK"},
		{"ticker": "TSLA", "name": "Tesla Inc.", "type": "STOCK"},
	})

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.password", "postgres")
	v.SetDefault("postgres.password_file", "")
	v.SetDefault("postgres.database", "stockmarket")
	v.SetDefault("postgres.sslmode", "disable")

	v.SetDefault("gateway.port", ":8080")
	v.SetDefault("gateway.valid_tickers", []string{"BTC", "ETH", "SOL", "AAPL", "GOOGL", "MSFT", "AMZN", "TSLA"})
	v.SetDefault("processor.num_workers", 4)
	v.SetDefault("profiling.server_address", "")
}

// Validate rejects configurations the simulator cannot run with.
func (c *Config) Validate() error {
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka brokers cannot be empty")
	}

	s := c.Simulation
	if s.Interval <= 0 {
		return fmt.Errorf("simulation interval must be positive, got %s", s.Interval)
	}
	if s.ShortWindow <= 0 || s.LongWindow < s.ShortWindow {
		return fmt.Errorf("invalid moving average windows: short=%d long=%d", s.ShortWindow, s.LongWindow)
	}
	if s.WindowCapacity < s.LongWindow {
		return fmt.Errorf("window capacity %d is smaller than long window %d", s.WindowCapacity, s.LongWindow)
	}
	if s.BandFloor <= 0 || s.BandCeiling <= s.BandFloor {
		return fmt.Errorf("invalid price band: floor=%v ceiling=%v", s.BandFloor, s.BandCeiling)
	}
	if s.SpikeThreshold <= 0 {
		return fmt.Errorf("spike threshold must be positive, got %v", s.SpikeThreshold)
	}
	if s.DeviationMultiplier <= 0 {
		return fmt.Errorf("deviation multiplier must be positive, got %v", s.DeviationMultiplier)
	}
	if s.ReversionDeadZone < 0 {
		return fmt.Errorf("reversion dead zone must not be negative, got %v", s.ReversionDeadZone)
	}
	if s.ReversionSpeed <= 0 {
		return fmt.Errorf("reversion speed must be positive, got %v", s.ReversionSpeed)
	}
	if s.DispatchConcurrency < 1 {
		return fmt.Errorf("dispatch concurrency must be at least 1, got %d", s.DispatchConcurrency)
	}

	if c.Sink.Timeout <= 0 {
		return fmt.Errorf("sink timeout must be positive, got %s", c.Sink.Timeout)
	}
	for _, t := range c.Sink.Types {
		if !sinkTypes[t] {
			return fmt.Errorf("unknown sink type %q", t)
		}
	}
	if !catalogSources[c.Catalog.Source] {
		return fmt.Errorf("unknown catalog source %q", c.Catalog.Source)
	}

	return nil
}

// bindEnv is a helper to bind multiple keys at once
func bindEnv(v *viper.Viper, keys ...string) {
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			log.Printf("Could not bind env var for key %s: %v", key, err)
		}
	}
}
