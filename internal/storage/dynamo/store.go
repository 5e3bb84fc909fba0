// Package dynamo implements the remote storage driver on DynamoDB.
//
// Each table stores items shaped {key: S, value: B}. Bulk reloads write
// in batches and temporarily raise provisioned write capacity to a
// floor, restoring the previous value afterwards even when the load
// fails. Creating over a non-empty table destroys and recreates it
// with its previous schema and throughput settings.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/louisbranch/teryt-cache/internal/codec"
	"github.com/louisbranch/teryt-cache/internal/storage"
)

const (
	keyAttr   = "key"
	valueAttr = "value"

	// reloadWriteCapacity is the write-capacity floor applied to
	// provisioned tables for the duration of a bulk reload.
	reloadWriteCapacity = 10

	batchSize   = 25
	waitTimeout = 5 * time.Minute
)

// API is the subset of the DynamoDB client the driver depends on.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	UpdateTable(ctx context.Context, params *dynamodb.UpdateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateTableOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DeleteTable(ctx context.Context, params *dynamodb.DeleteTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteTableOutput, error)
}

// Driver provides a DynamoDB-backed storage driver.
type Driver struct {
	api API
}

// New creates a driver on top of a DynamoDB client.
func New(api API) *Driver {
	return &Driver{api: api}
}

// Table opens an existing table. It fails with ErrNotInitialized when
// the table does not exist.
func (d *Driver) Table(ctx context.Context, name string, c codec.Codec) (storage.Table, error) {
	if _, err := d.api.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(name)}); err != nil {
		var missing *types.ResourceNotFoundException
		if errors.As(err, &missing) {
			return nil, fmt.Errorf("table %s: %w", name, storage.ErrNotInitialized)
		}
		return nil, fmt.Errorf("describe table %s: %w", name, err)
	}
	return &table{api: d.api, name: name, codec: c}, nil
}

// Create returns an empty handle for the named table. When the table
// already holds items it is destroyed and recreated with its previous
// key schema and throughput settings.
func (d *Driver) Create(ctx context.Context, name string, c codec.Codec) (storage.Table, error) {
	out, err := d.api.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(name)})
	if err != nil {
		var missing *types.ResourceNotFoundException
		if errors.As(err, &missing) {
			return nil, fmt.Errorf("table %s: %w", name, storage.ErrNotInitialized)
		}
		return nil, fmt.Errorf("describe table %s: %w", name, err)
	}

	if out.Table.ItemCount != nil && *out.Table.ItemCount > 0 {
		if err := d.recreate(ctx, name, out.Table); err != nil {
			return nil, err
		}
	}
	return &table{api: d.api, name: name, codec: c}, nil
}

// GetOrCreate opens the named table without destroying its contents.
func (d *Driver) GetOrCreate(ctx context.Context, name string, c codec.Codec) (storage.Table, error) {
	return &table{api: d.api, name: name, codec: c}, nil
}

func (d *Driver) recreate(ctx context.Context, name string, desc *types.TableDescription) error {
	input := &dynamodb.CreateTableInput{
		TableName:            aws.String(name),
		KeySchema:            desc.KeySchema,
		AttributeDefinitions: desc.AttributeDefinitions,
	}
	if desc.BillingModeSummary != nil && desc.BillingModeSummary.BillingMode == types.BillingModePayPerRequest {
		input.BillingMode = types.BillingModePayPerRequest
	} else if desc.ProvisionedThroughput != nil {
		input.ProvisionedThroughput = &types.ProvisionedThroughput{
			ReadCapacityUnits:  desc.ProvisionedThroughput.ReadCapacityUnits,
			WriteCapacityUnits: desc.ProvisionedThroughput.WriteCapacityUnits,
		}
	}

	if _, err := d.api.DeleteTable(ctx, &dynamodb.DeleteTableInput{TableName: aws.String(name)}); err != nil {
		return fmt.Errorf("delete table %s: %w", name, err)
	}
	notExists := dynamodb.NewTableNotExistsWaiter(d.api)
	if err := notExists.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(name)}, waitTimeout); err != nil {
		return fmt.Errorf("wait for table %s deletion: %w", name, err)
	}

	if _, err := d.api.CreateTable(ctx, input); err != nil {
		return fmt.Errorf("recreate table %s: %w", name, err)
	}
	exists := dynamodb.NewTableExistsWaiter(d.api)
	if err := exists.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(name)}, waitTimeout); err != nil {
		return fmt.Errorf("wait for table %s creation: %w", name, err)
	}
	return nil
}

type table struct {
	api   API
	name  string
	codec codec.Codec
}

func (t *table) Get(ctx context.Context, key string, out any) error {
	resp, err := t.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(t.name),
		Key: map[string]types.AttributeValue{
			keyAttr: &types.AttributeValueMemberS{Value: key},
		},
	})
	if err != nil {
		return fmt.Errorf("get %s[%s]: %w", t.name, key, err)
	}
	if resp.Item == nil {
		return fmt.Errorf("%s[%s]: %w", t.name, key, storage.ErrKeyNotFound)
	}
	value, ok := resp.Item[valueAttr].(*types.AttributeValueMemberB)
	if !ok {
		return fmt.Errorf("%s[%s]: item has no binary value attribute", t.name, key)
	}
	return t.codec.Unmarshal(value.Value, out)
}

func (t *table) Put(ctx context.Context, key string, v any) error {
	payload, err := t.codec.Marshal(v)
	if err != nil {
		return err
	}
	_, err = t.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(t.name),
		Item:      item(key, payload),
	})
	if err != nil {
		return fmt.Errorf("put %s[%s]: %w", t.name, key, err)
	}
	return nil
}

func (t *table) Delete(ctx context.Context, key string) error {
	_, err := t.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(t.name),
		ConditionExpression: aws.String("attribute_exists(#k)"),
		ExpressionAttributeNames: map[string]string{
			"#k": keyAttr,
		},
		Key: map[string]types.AttributeValue{
			keyAttr: &types.AttributeValueMemberS{Value: key},
		},
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return fmt.Errorf("%s[%s]: %w", t.name, key, storage.ErrKeyNotFound)
		}
		return fmt.Errorf("delete %s[%s]: %w", t.name, key, err)
	}
	return nil
}

func (t *table) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	var startKey map[string]types.AttributeValue
	for {
		resp, err := t.api.Scan(ctx, &dynamodb.ScanInput{
			TableName:            aws.String(t.name),
			ProjectionExpression: aws.String("#k"),
			ExpressionAttributeNames: map[string]string{
				"#k": keyAttr,
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", t.name, err)
		}
		for _, it := range resp.Items {
			if k, ok := it[keyAttr].(*types.AttributeValueMemberS); ok {
				keys = append(keys, k.Value)
			}
		}
		if resp.LastEvaluatedKey == nil {
			return keys, nil
		}
		startKey = resp.LastEvaluatedKey
	}
}

// Reload batch-writes every entry. For provisioned tables the write
// capacity is raised to reloadWriteCapacity first and restored in a
// deferred cleanup regardless of the outcome. Capacity updates are
// best-effort: on-demand tables have no capacity to manage, and a
// failed restore must not mask the reload result.
func (t *table) Reload(ctx context.Context, contents map[string]any) (err error) {
	previous, provisioned := t.writeCapacity(ctx)
	if provisioned && previous < reloadWriteCapacity {
		if err := t.setWriteCapacity(ctx, reloadWriteCapacity); err != nil {
			log.Printf("raise write capacity for %s: %v", t.name, err)
		}
		defer func() {
			if err := t.setWriteCapacity(context.WithoutCancel(ctx), previous); err != nil {
				log.Printf("restore write capacity for %s: %v", t.name, err)
			}
		}()
	}

	batch := make([]types.WriteRequest, 0, batchSize)
	for key, v := range contents {
		payload, err := t.codec.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s[%s]: %w", t.name, key, err)
		}
		batch = append(batch, types.WriteRequest{
			PutRequest: &types.PutRequest{Item: item(key, payload)},
		})
		if len(batch) == batchSize {
			if err := t.flush(ctx, batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		return t.flush(ctx, batch)
	}
	return nil
}

func (t *table) flush(ctx context.Context, batch []types.WriteRequest) error {
	pending := batch
	for len(pending) > 0 {
		resp, err := t.api.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{t.name: pending},
		})
		if err != nil {
			return fmt.Errorf("batch write %s: %w", t.name, err)
		}
		pending = resp.UnprocessedItems[t.name]
	}
	return nil
}

func (t *table) writeCapacity(ctx context.Context) (units int64, provisioned bool) {
	out, err := t.api.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(t.name)})
	if err != nil || out.Table == nil {
		return 0, false
	}
	if out.Table.BillingModeSummary != nil && out.Table.BillingModeSummary.BillingMode == types.BillingModePayPerRequest {
		return 0, false
	}
	tp := out.Table.ProvisionedThroughput
	if tp == nil || tp.WriteCapacityUnits == nil || *tp.WriteCapacityUnits == 0 {
		return 0, false
	}
	return *tp.WriteCapacityUnits, true
}

func (t *table) setWriteCapacity(ctx context.Context, units int64) error {
	out, err := t.api.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(t.name)})
	if err != nil {
		return err
	}
	read := int64(1)
	if tp := out.Table.ProvisionedThroughput; tp != nil && tp.ReadCapacityUnits != nil {
		read = *tp.ReadCapacityUnits
	}
	_, err = t.api.UpdateTable(ctx, &dynamodb.UpdateTableInput{
		TableName: aws.String(t.name),
		ProvisionedThroughput: &types.ProvisionedThroughput{
			ReadCapacityUnits:  aws.Int64(read),
			WriteCapacityUnits: aws.Int64(units),
		},
	})
	return err
}

func item(key string, payload []byte) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		keyAttr:   &types.AttributeValueMemberS{Value: key},
		valueAttr: &types.AttributeValueMemberB{Value: payload},
	}
}
