package backend

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ripplekit/storebridge/internal/core"
	_ "modernc.org/sqlite"
)

// TierLocal identifies the in-process embedded SQLite engine, the first
// and preferred selection tier.
const TierLocal = "local"

type sqliteDialect struct{}

func (sqliteDialect) createTableSQL(table *core.TableSchema) []string {
	cols := make([]string, 0, len(table.Columns))
	for _, col := range table.Columns {
		ddl := col.Name + " " + sqliteColumnType(col.Type)
		if col.Name == core.ColumnID {
			ddl += " PRIMARY KEY"
		}
		cols = append(cols, ddl)
	}
	stmts := []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table.Name, strings.Join(cols, ", ")),
	}
	for _, col := range table.Columns {
		if col.Indexed {
			stmts = append(stmts, fmt.Sprintf(
				"CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s (%s)",
				strings.TrimPrefix(table.Name, "_"), strings.TrimPrefix(col.Name, "_"), table.Name, col.Name))
		}
	}
	return stmts
}

func (sqliteDialect) upsertSQL(table string, columns []string) string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	return fmt.Sprintf("INSERT OR REPLACE INTO %s (%s) VALUES (%s)",
		table, strings.Join(columns, ", "), placeholders)
}

func sqliteColumnType(ct core.ColumnType) string {
	switch ct {
	case core.ColumnTypeNumber:
		return "REAL"
	case core.ColumnTypeBoolean:
		return "INTEGER"
	default:
		return "TEXT"
	}
}

// NewSQLite opens (or creates) an embedded SQLite database at path.
// Use ":memory:" for a throwaway in-process database.
func NewSQLite(ctx context.Context, path string) (core.Backend, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// The embedded engine serializes writers through one connection.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &sqlStore{db: db, dialect: sqliteDialect{}, tier: TierLocal}, nil
}

// SQLiteFactory returns the factory for the embedded SQLite tier.
func SQLiteFactory(path string) core.BackendFactory {
	return FactoryFunc{
		ID: TierLocal,
		Build: func(ctx context.Context, schema *core.NativeSchema) (core.Backend, error) {
			b, err := NewSQLite(ctx, path)
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
