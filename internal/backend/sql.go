package backend

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/ripplekit/storebridge/internal/core"
)

// dialect abstracts the DDL and upsert differences between the embedded
// SQLite tier and the MySQL server tier.
type dialect interface {
	// createTableSQL returns the DDL statements creating a table and its
	// secondary indexes.
	createTableSQL(table *core.TableSchema) []string

	// upsertSQL returns the insert-or-replace statement for the columns.
	upsertSQL(table string, columns []string) string
}

// sqlStore implements core.Backend over database/sql, shared by the
// sqlite and mysql tiers. Records are stored in typed columns per the
// translated table schema.
type sqlStore struct {
	db      *sql.DB
	dialect dialect
	tier    string

	mu     sync.RWMutex
	schema *core.NativeSchema
	closed bool
}

// Kind returns the tier identifier.
func (s *sqlStore) Kind() string { return s.tier }

// Initialize creates every schema table and its indexes.
func (s *sqlStore) Initialize(ctx context.Context, schema *core.NativeSchema) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return core.ErrBackendClosed
	}
	for _, table := range schema.Tables {
		for _, stmt := range s.dialect.createTableSQL(table) {
			if _, err := s.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to create table %q: %w", table.Name, err)
			}
		}
	}
	s.schema = schema
	return nil
}

func (s *sqlStore) tableSchema(table string) (*core.TableSchema, error) {
	if s.schema == nil {
		return nil, fmt.Errorf("backend is not initialized")
	}
	ts, ok := s.schema.Tables[table]
	if !ok {
		return nil, fmt.Errorf("unknown table %q", table)
	}
	return ts, nil
}

// Get retrieves a record by id.
func (s *sqlStore) Get(ctx context.Context, table, id string) (core.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, core.ErrBackendClosed
	}
	ts, err := s.tableSchema(table)
	if err != nil {
		return nil, err
	}
	return sqlGet(ctx, s.db, ts, id)
}

// List returns every record of a table in the engine's natural fetch
// order.
func (s *sqlStore) List(ctx context.Context, table string) ([]core.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, core.ErrBackendClosed
	}
	ts, err := s.tableSchema(table)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s", columnList(ts), ts.Name)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list table %q: %w", table, err)
	}
	defer rows.Close()

	records := make([]core.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows, ts)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate table %q: %w", table, err)
	}
	return records, nil
}

// Write runs fn inside one SQL transaction.
func (s *sqlStore) Write(ctx context.Context, fn func(tx core.WriteTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return core.ErrBackendClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	wtx := &sqlWriteTx{store: s, tx: tx}
	if err := fn(wtx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (after: %w)", rbErr, err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Reset drops every schema table.
func (s *sqlStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return core.ErrBackendClosed
	}
	if s.schema == nil {
		return nil
	}
	for name := range s.schema.Tables {
		if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+name); err != nil {
			return fmt.Errorf("failed to drop table %q: %w", name, err)
		}
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *sqlStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// sqlWriteTx applies write operations through one *sql.Tx.
type sqlWriteTx struct {
	store *sqlStore
	tx    *sql.Tx
}

func (w *sqlWriteTx) Get(ctx context.Context, table, id string) (core.Record, error) {
	ts, err := w.store.tableSchema(table)
	if err != nil {
		return nil, err
	}
	return sqlGet(ctx, w.tx, ts, id)
}

func (w *sqlWriteTx) Put(ctx context.Context, table string, record core.Record) error {
	ts, err := w.store.tableSchema(table)
	if err != nil {
		return err
	}
	columns := make([]string, 0, len(ts.Columns))
	args := make([]interface{}, 0, len(ts.Columns))
	for _, col := range ts.Columns {
		columns = append(columns, col.Name)
		args = append(args, toSQLValue(record[col.Name]))
	}
	stmt := w.store.dialect.upsertSQL(ts.Name, columns)
	if _, err := w.tx.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("failed to upsert into %q: %w", table, err)
	}
	return nil
}

func (w *sqlWriteTx) Delete(ctx context.Context, table, id string) error {
	ts, err := w.store.tableSchema(table)
	if err != nil {
		return err
	}
	if _, err := w.tx.ExecContext(ctx, "DELETE FROM "+ts.Name+" WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete from %q: %w", table, err)
	}
	return nil
}

func (w *sqlWriteTx) DeleteAll(ctx context.Context, table string) error {
	ts, err := w.store.tableSchema(table)
	if err != nil {
		return err
	}
	if _, err := w.tx.ExecContext(ctx, "DELETE FROM "+ts.Name); err != nil {
		return fmt.Errorf("failed to clear table %q: %w", table, err)
	}
	return nil
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func sqlGet(ctx context.Context, q querier, ts *core.TableSchema, id string) (core.Record, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", columnList(ts), ts.Name)
	row := q.QueryRowContext(ctx, query, id)
	rec, err := scanRecord(row, ts)
	if err == sql.ErrNoRows {
		return nil, core.ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func columnList(ts *core.TableSchema) string {
	names := make([]string, 0, len(ts.Columns))
	for _, col := range ts.Columns {
		names = append(names, col.Name)
	}
	return strings.Join(names, ", ")
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanRecord reads one row into native record shape, coercing values to
// the canonical representation for each column type. NULL columns are
// omitted from the record.
func scanRecord(row rowScanner, ts *core.TableSchema) (core.Record, error) {
	values := make([]interface{}, len(ts.Columns))
	ptrs := make([]interface{}, len(ts.Columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := row.Scan(ptrs...); err != nil {
		return nil, err
	}

	rec := make(core.Record, len(ts.Columns))
	for i, col := range ts.Columns {
		v := values[i]
		if v == nil {
			continue
		}
		switch col.Type {
		case core.ColumnTypeNumber:
			switch n := v.(type) {
			case float64:
				rec[col.Name] = n
			case int64:
				rec[col.Name] = float64(n)
			case []byte:
				rec[col.Name] = parseFloat(string(n))
			}
		case core.ColumnTypeBoolean:
			switch b := v.(type) {
			case bool:
				rec[col.Name] = b
			case int64:
				rec[col.Name] = b != 0
			case []byte:
				rec[col.Name] = string(b) == "1" || strings.EqualFold(string(b), "true")
			}
		default:
			switch s := v.(type) {
			case string:
				rec[col.Name] = s
			case []byte:
				rec[col.Name] = string(s)
			default:
				rec[col.Name] = fmt.Sprintf("%v", s)
			}
		}
	}
	return rec, nil
}

func parseFloat(s string) float64 {
	var f float64
	fmt.Sscanf(s, "%g", &f)
	return f
}

// toSQLValue converts a record value into a driver-compatible argument.
func toSQLValue(v interface{}) interface{} {
	switch b := v.(type) {
	case nil:
		return nil
	case bool:
		if b {
			return int64(1)
		}
		return int64(0)
	default:
		return v
	}
}
