package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ripplekit/storebridge/internal/core"
)

// TierAsync identifies the Redis engine, probed after the in-process
// tier. Reads and writes leave the process, so calls are asynchronous
// from the adapter's point of view.
const TierAsync = "async"

// RedisConfig holds connection settings for the Redis tier.
type RedisConfig struct {
	Addr         string        `yaml:"addr" json:"addr"`
	Password     string        `yaml:"password,omitempty" json:"password,omitempty"`
	DB           int           `yaml:"db,omitempty" json:"db,omitempty"`
	PoolSize     int           `yaml:"pool_size,omitempty" json:"pool_size,omitempty"`
	DialTimeout  time.Duration `yaml:"dial_timeout,omitempty" json:"dial_timeout,omitempty"`
	ReadTimeout  time.Duration `yaml:"read_timeout,omitempty" json:"read_timeout,omitempty"`
	WriteTimeout time.Duration `yaml:"write_timeout,omitempty" json:"write_timeout,omitempty"`
	KeyPrefix    string        `yaml:"key_prefix,omitempty" json:"key_prefix,omitempty"`
}

// Redis stores each table as a hash of id -> JSON record plus a list of
// ids preserving insertion order for the natural fetch order.
type Redis struct {
	client *redis.Client
	prefix string
	closed bool
}

// NewRedis connects to a Redis server and verifies the connection.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "sb"
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &Redis{client: client, prefix: prefix}, nil
}

// RedisFactory returns the factory for the Redis tier.
func RedisFactory(cfg RedisConfig) core.BackendFactory {
	return FactoryFunc{
		ID: TierAsync,
		Build: func(ctx context.Context, schema *core.NativeSchema) (core.Backend, error) {
			b, err := NewRedis(ctx, cfg)
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

// Kind returns the tier identifier.
func (r *Redis) Kind() string { return TierAsync }

func (r *Redis) hashKey(table string) string  { return r.prefix + ":" + table }
func (r *Redis) orderKey(table string) string { return r.prefix + ":" + table + ":order" }

// Initialize records nothing; Redis structures are created lazily.
func (r *Redis) Initialize(context.Context, *core.NativeSchema) error {
	if r.closed {
		return core.ErrBackendClosed
	}
	return nil
}

// Get retrieves a record by id.
func (r *Redis) Get(ctx context.Context, table, id string) (core.Record, error) {
	if r.closed {
		return nil, core.ErrBackendClosed
	}
	data, err := r.client.HGet(ctx, r.hashKey(table), id).Bytes()
	if err == redis.Nil {
		return nil, core.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s/%s: %w", table, id, err)
	}
	return decodeRecord(data)
}

// List returns every record of a table in insertion order.
func (r *Redis) List(ctx context.Context, table string) ([]core.Record, error) {
	if r.closed {
		return nil, core.ErrBackendClosed
	}
	ids, err := r.client.LRange(ctx, r.orderKey(table), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list table %q: %w", table, err)
	}
	if len(ids) == 0 {
		return []core.Record{}, nil
	}
	values, err := r.client.HMGet(ctx, r.hashKey(table), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch records for table %q: %w", table, err)
	}
	records := make([]core.Record, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		rec, err := decodeRecord([]byte(s))
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// redisTx buffers mutations and flushes them through one pipeline on
// commit. Reads inside the transaction observe the committed state plus
// the transaction's own staged puts and deletes.
type redisTx struct {
	backend *Redis
	staged  map[string]map[string]core.Record // table -> id -> record, nil record marks delete
	cleared map[string]bool
}

func (tx *redisTx) stage(table string) map[string]core.Record {
	t, ok := tx.staged[table]
	if !ok {
		t = make(map[string]core.Record)
		tx.staged[table] = t
	}
	return t
}

func (tx *redisTx) Get(ctx context.Context, table, id string) (core.Record, error) {
	if t, ok := tx.staged[table]; ok {
		if rec, ok := t[id]; ok {
			if rec == nil {
				return nil, core.ErrRecordNotFound
			}
			return rec.Clone(), nil
		}
	}
	if tx.cleared[table] {
		return nil, core.ErrRecordNotFound
	}
	return tx.backend.Get(ctx, table, id)
}

func (tx *redisTx) Put(_ context.Context, table string, record core.Record) error {
	id := record.ID()
	if id == "" {
		return fmt.Errorf("record is missing an id")
	}
	tx.stage(table)[id] = record.Clone()
	return nil
}

func (tx *redisTx) Delete(_ context.Context, table, id string) error {
	tx.stage(table)[id] = nil
	return nil
}

func (tx *redisTx) DeleteAll(_ context.Context, table string) error {
	tx.cleared[table] = true
	tx.staged[table] = make(map[string]core.Record)
	return nil
}

// Write stages fn's mutations and applies them through one transactional
// pipeline, so concurrent writers never observe a partial batch.
func (r *Redis) Write(ctx context.Context, fn func(tx core.WriteTx) error) error {
	if r.closed {
		return core.ErrBackendClosed
	}
	tx := &redisTx{
		backend: r,
		staged:  make(map[string]map[string]core.Record),
		cleared: make(map[string]bool),
	}
	if err := fn(tx); err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	for table := range tx.cleared {
		pipe.Del(ctx, r.hashKey(table), r.orderKey(table))
	}
	for table, recs := range tx.staged {
		for id, rec := range recs {
			if rec == nil {
				pipe.HDel(ctx, r.hashKey(table), id)
				pipe.LRem(ctx, r.orderKey(table), 0, id)
				continue
			}
			data, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("failed to marshal record %s/%s: %w", table, id, err)
			}
			exists, err := r.client.HExists(ctx, r.hashKey(table), id).Result()
			if err != nil {
				return fmt.Errorf("failed to check record %s/%s: %w", table, id, err)
			}
			pipe.HSet(ctx, r.hashKey(table), id, data)
			if !exists && !tx.cleared[table] {
				pipe.RPush(ctx, r.orderKey(table), id)
			} else if tx.cleared[table] {
				pipe.RPush(ctx, r.orderKey(table), id)
			}
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to commit write pipeline: %w", err)
	}
	return nil
}

// Reset removes every key under the backend's prefix.
func (r *Redis) Reset(ctx context.Context) error {
	if r.closed {
		return core.ErrBackendClosed
	}
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, r.prefix+":*", 500).Result()
		if err != nil {
			return fmt.Errorf("failed to scan keys: %w", err)
		}
		if len(keys) > 0 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("failed to delete keys: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// Close closes the client connection.
func (r *Redis) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.client.Close()
}

func decodeRecord(data []byte) (core.Record, error) {
	var rec core.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return rec, nil
}
