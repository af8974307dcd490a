package backend

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/ripplekit/storebridge/internal/core"
)

// TierServer identifies the server-process MySQL engine, the last
// selection tier before the non-persistent stand-in.
const TierServer = "server"

// MySQLConfig holds connection settings for the server tier.
type MySQLConfig struct {
	Host              string        `yaml:"host" json:"host"`
	Port              int           `yaml:"port" json:"port"`
	Database          string        `yaml:"database" json:"database"`
	Username          string        `yaml:"username" json:"username"`
	Password          string        `yaml:"password,omitempty" json:"password,omitempty"`
	MaxOpenConns      int           `yaml:"max_open_conns,omitempty" json:"max_open_conns,omitempty"`
	MaxIdleConns      int           `yaml:"max_idle_conns,omitempty" json:"max_idle_conns,omitempty"`
	ConnMaxLifetime   time.Duration `yaml:"conn_max_lifetime,omitempty" json:"conn_max_lifetime,omitempty"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout,omitempty" json:"connection_timeout,omitempty"`
}

type mysqlDialect struct{}

func (mysqlDialect) createTableSQL(table *core.TableSchema) []string {
	cols := make([]string, 0, len(table.Columns)+4)
	var indexes []string
	for _, col := range table.Columns {
		ddl := col.Name + " " + mysqlColumnType(col)
		if col.Name == core.ColumnID {
			ddl += " PRIMARY KEY"
		}
		cols = append(cols, ddl)
		if col.Indexed {
			indexes = append(indexes, fmt.Sprintf("INDEX idx_%s (%s)", strings.TrimPrefix(col.Name, "_"), col.Name))
		}
	}
	cols = append(cols, indexes...)
	return []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table.Name, strings.Join(cols, ", ")),
	}
}

func (mysqlDialect) upsertSQL(table string, columns []string) string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	return fmt.Sprintf("REPLACE INTO %s (%s) VALUES (%s)",
		table, strings.Join(columns, ", "), placeholders)
}

func mysqlColumnType(col core.ColumnSchema) string {
	switch col.Type {
	case core.ColumnTypeNumber:
		return "DOUBLE"
	case core.ColumnTypeBoolean:
		return "TINYINT(1)"
	default:
		// Indexed string columns need a bounded key length.
		if col.Indexed || col.Name == core.ColumnID {
			return "VARCHAR(191)"
		}
		return "TEXT"
	}
}

// NewMySQL connects to the server-process engine.
func NewMySQL(ctx context.Context, cfg MySQLConfig) (core.Backend, error) {
	if cfg.Host == "" || cfg.Database == "" {
		return nil, fmt.Errorf("host and database are required")
	}
	if cfg.Port == 0 {
		cfg.Port = 3306
	}
	if cfg.ConnectionTimeout == 0 {
		cfg.ConnectionTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&timeout=%s",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database, cfg.ConnectionTimeout)
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectionTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &sqlStore{db: db, dialect: mysqlDialect{}, tier: TierServer}, nil
}

// MySQLFactory returns the factory for the server-process tier.
func MySQLFactory(cfg MySQLConfig) core.BackendFactory {
	return FactoryFunc{
		ID: TierServer,
		Build: func(ctx context.Context, schema *core.NativeSchema) (core.Backend, error) {
			b, err := NewMySQL(ctx, cfg)
			if err != nil {
				return nil, err
			}
			if err := b.Initialize(ctx, schema); err != nil {
				b.Close()
				return nil, err
			}
			return b, nil
		},
	}
}
