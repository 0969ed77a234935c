package catalog

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/shubham-shewale/market-analytics/pkg/config"
	"github.com/shubham-shewale/market-analytics/pkg/models"
)

const (
	defaultPostgresHost    = "localhost"
	defaultPostgresPort    = 5432
	defaultPostgresSSLMode = "disable"
)

// symbolRow maps the catalog's `symbols` table.
type symbolRow struct {
	ID     int64  `gorm:"column:id;primaryKey"`
	Ticker string `gorm:"column:ticker"`
	Name   string `gorm:"column:name"`
	Type   string `gorm:"column:type"`
}

func (symbolRow) TableName() string { return "symbols" }

// PostgresSource reads the catalog from the shared Postgres database.
type PostgresSource struct {
	db *gorm.DB
}

// NewPostgresSource opens a connection pool. The password is read from PasswordFile when set
// (Docker secrets), falling back to Password if the file cannot be read.
func NewPostgresSource(cfg config.PostgresConfig) (*PostgresSource, error) {
	db, err := gorm.Open(postgres.Open(DSN(cfg)), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return &PostgresSource{db: db}, nil
}

func (p *PostgresSource) Symbols(ctx context.Context) ([]models.Symbol, error) {
	var rows []symbolRow
	if err := p.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query symbols: %w", err)
	}

	symbols := make([]models.Symbol, len(rows))
	for i, r := range rows {
		symbols[i] = models.Symbol{ID: r.ID, Ticker: r.Ticker, Name: r.Name, SymbolType: r.Type}
	}
	return symbols, nil
}

func (p *PostgresSource) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// DSN builds a postgres:// connection URL from the config.
func DSN(cfg config.PostgresConfig) string {
	host := cfg.Host
	if host == "" {
		host = defaultPostgresHost
	}
	port := cfg.Port
	if port == 0 {
		port = defaultPostgresPort
	}
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = defaultPostgresSSLMode
	}

	password := cfg.Password
	if cfg.PasswordFile != "" {
		raw, err := os.ReadFile(cfg.PasswordFile)
		if err == nil {
			password = strings.TrimSpace(string(raw))
		}
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", host, port),
	}
	if cfg.User != "" {
		if password != "" {
			u.User = url.UserPassword(cfg.User, password)
		} else {
			u.User = url.User(cfg.User)
		}
	}
	if cfg.Database != "" {
		u.Path = "/" + cfg.Database
	}

	query := url.Values{}
	query.Set("sslmode", sslMode)
	u.RawQuery = query.Encode()

	return u.String()
}
