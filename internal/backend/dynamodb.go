package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/ripplekit/storebridge/internal/core"
)

// TierDurable identifies the DynamoDB engine, the remote durable tier
// probed after the Redis tier.
const TierDurable = "durable"

// transactChunk is the DynamoDB TransactWriteItems item limit.
const transactChunk = 25

// DynamoDBConfig holds connection settings for the durable tier.
type DynamoDBConfig struct {
	Region          string `yaml:"region" json:"region"`
	TableName       string `yaml:"table_name" json:"table_name"`
	Endpoint        string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" json:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" json:"secret_access_key,omitempty"`
}

// dynamoItem is the stored shape: one DynamoDB table holds every adapter
// table, partitioned by table name and sorted by record id.
type dynamoItem struct {
	TableName string      `dynamodbav:"table_name"`
	ID        string      `dynamodbav:"id"`
	Record    core.Record `dynamodbav:"record"`
	StoredAt  time.Time   `dynamodbav:"stored_at"`
}

// DynamoDB implements the durable tier over one pre-provisioned table.
type DynamoDB struct {
	client    *dynamodb.Client
	tableName string
	closed    bool
}

// NewDynamoDB connects to DynamoDB and verifies the backing table exists.
func NewDynamoDB(ctx context.Context, cfg DynamoDBConfig) (*DynamoDB, error) {
	if cfg.Region == "" {
		return nil, fmt.Errorf("region is required")
	}
	if cfg.TableName == "" {
		return nil, fmt.Errorf("table name is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}

	var clientOptions []func(*dynamodb.Options)
	if cfg.Endpoint != "" {
		clientOptions = append(clientOptions, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	client := dynamodb.NewFromConfig(awsCfg, clientOptions...)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := client.DescribeTable(pingCtx, &dynamodb.DescribeTableInput{
		TableName: aws.String(cfg.TableName),
	}); err != nil {
		return nil, fmt.Errorf("failed to connect to DynamoDB table %s: %w", cfg.TableName, err)
	}
	return &DynamoDB{client: client, tableName: cfg.TableName}, nil
}

// DynamoDBFactory returns the factory for the durable tier.
func DynamoDBFactory(cfg DynamoDBConfig) core.BackendFactory {
	return FactoryFunc{
		ID: TierDurable,
		Build: func(ctx context.Context, schema *core.NativeSchema) (core.Backend, error) {
			b, err := NewDynamoDB(ctx, cfg)
			if err != nil {
				return nil, err
			}
			if err := b.Initialize(ctx, schema); err != nil {
				return nil, err
			}
			return b, nil
		},
	}
}

// Kind returns the tier identifier.
func (d *DynamoDB) Kind() string { return TierDurable }

// Initialize verifies nothing further; the backing table is
// pre-provisioned and shared across adapter tables.
func (d *DynamoDB) Initialize(context.Context, *core.NativeSchema) error {
	if d.closed {
		return core.ErrBackendClosed
	}
	return nil
}

func (d *DynamoDB) itemKey(table, id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"table_name": &types.AttributeValueMemberS{Value: table},
		"id":         &types.AttributeValueMemberS{Value: id},
	}
}

// Get retrieves a record by id.
func (d *DynamoDB) Get(ctx context.Context, table, id string) (core.Record, error) {
	if d.closed {
		return nil, core.ErrBackendClosed
	}
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key:       d.itemKey(table, id),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get %s/%s: %w", table, id, err)
	}
	if out.Item == nil {
		return nil, core.ErrRecordNotFound
	}
	var item dynamoItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal item %s/%s: %w", table, id, err)
	}
	return item.Record, nil
}

// List returns every record of a table in key order.
func (d *DynamoDB) List(ctx context.Context, table string) ([]core.Record, error) {
	if d.closed {
		return nil, core.ErrBackendClosed
	}
	records := make([]core.Record, 0)
	var startKey map[string]types.AttributeValue
	for {
		out, err := d.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                aws.String(d.tableName),
			KeyConditionExpression:   aws.String("#tn = :t"),
			ExpressionAttributeNames: map[string]string{"#tn": "table_name"},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":t": &types.AttributeValueMemberS{Value: table},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to query table %q: %w", table, err)
		}
		for _, raw := range out.Items {
			var item dynamoItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				return nil, fmt.Errorf("failed to unmarshal item in table %q: %w", table, err)
			}
			records = append(records, item.Record)
		}
		if out.LastEvaluatedKey == nil {
			return records, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

// dynamoTx stages mutations; commit flushes them through
// TransactWriteItems in chunks of the service limit.
type dynamoTx struct {
	backend *DynamoDB
	staged  map[string]map[string]core.Record // nil record marks delete
	cleared map[string]bool
}

func (tx *dynamoTx) stage(table string) map[string]core.Record {
	t, ok := tx.staged[table]
	if !ok {
		t = make(map[string]core.Record)
		tx.staged[table] = t
	}
	return t
}

func (tx *dynamoTx) Get(ctx context.Context, table, id string) (core.Record, error) {
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

func (tx *dynamoTx) Put(_ context.Context, table string, record core.Record) error {
	id := record.ID()
	if id == "" {
		return fmt.Errorf("record is missing an id")
	}
	tx.stage(table)[id] = record.Clone()
	return nil
}

func (tx *dynamoTx) Delete(_ context.Context, table, id string) error {
	tx.stage(table)[id] = nil
	return nil
}

func (tx *dynamoTx) DeleteAll(ctx context.Context, table string) error {
	existing, err := tx.backend.List(ctx, table)
	if err != nil {
		return err
	}
	t := tx.stage(table)
	for _, rec := range existing {
		t[rec.ID()] = nil
	}
	tx.cleared[table] = true
	return nil
}

// Write stages fn's mutations and flushes them in transactional chunks.
// Chunks beyond the first are applied sequentially; a mid-flush failure
// can leave earlier chunks committed, which is the closest this engine
// comes to the write-transaction contract.
func (d *DynamoDB) Write(ctx context.Context, fn func(tx core.WriteTx) error) error {
	if d.closed {
		return core.ErrBackendClosed
	}
	tx := &dynamoTx{
		backend: d,
		staged:  make(map[string]map[string]core.Record),
		cleared: make(map[string]bool),
	}
	if err := fn(tx); err != nil {
		return err
	}

	items := make([]types.TransactWriteItem, 0)
	now := time.Now()
	for table, recs := range tx.staged {
		for id, rec := range recs {
			if rec == nil {
				items = append(items, types.TransactWriteItem{
					Delete: &types.Delete{
						TableName: aws.String(d.tableName),
						Key:       d.itemKey(table, id),
					},
				})
				continue
			}
			av, err := attributevalue.MarshalMap(dynamoItem{
				TableName: table,
				ID:        id,
				Record:    rec,
				StoredAt:  now,
			})
			if err != nil {
				return fmt.Errorf("failed to marshal record %s/%s: %w", table, id, err)
			}
			items = append(items, types.TransactWriteItem{
				Put: &types.Put{TableName: aws.String(d.tableName), Item: av},
			})
		}
	}

	for start := 0; start < len(items); start += transactChunk {
		end := start + transactChunk
		if end > len(items) {
			end = len(items)
		}
		if _, err := d.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
			TransactItems: items[start:end],
		}); err != nil {
			return fmt.Errorf("failed to commit write batch: %w", err)
		}
	}
	return nil
}

// Reset deletes every item in the backing table.
func (d *DynamoDB) Reset(ctx context.Context) error {
	if d.closed {
		return core.ErrBackendClosed
	}
	var startKey map[string]types.AttributeValue
	for {
		out, err := d.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:                aws.String(d.tableName),
			ProjectionExpression:     aws.String("#tn, id"),
			ExpressionAttributeNames: map[string]string{"#tn": "table_name"},
			ExclusiveStartKey:        startKey,
		})
		if err != nil {
			return fmt.Errorf("failed to scan table: %w", err)
		}
		for _, raw := range out.Items {
			var item dynamoItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				return fmt.Errorf("failed to unmarshal key item: %w", err)
			}
			if _, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
				TableName: aws.String(d.tableName),
				Key:       d.itemKey(item.TableName, item.ID),
			}); err != nil {
				return fmt.Errorf("failed to delete item %s/%s: %w", item.TableName, item.ID, err)
			}
		}
		if out.LastEvaluatedKey == nil {
			return nil
		}
		startKey = out.LastEvaluatedKey
	}
}

// Close marks the backend closed; the SDK client holds no resources that
// need explicit release.
func (d *DynamoDB) Close() error {
	d.closed = true
	return nil
}
