package dynamo

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/louisbranch/teryt-cache/internal/codec"
	"github.com/louisbranch/teryt-cache/internal/storage"
)

// fakeAPI is an in-memory stand-in for the DynamoDB client.
type fakeAPI struct {
	items map[string]map[string][]byte
	desc  map[string]*types.TableDescription

	capacityUpdates []int64
	batchCalls      int
	deferOnce       bool
	failBatch       bool
	deletedTables   int
	createdTables   int
	lastCreate      *dynamodb.CreateTableInput
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		items: make(map[string]map[string][]byte),
		desc:  make(map[string]*types.TableDescription),
	}
}

func (f *fakeAPI) addTable(name string, desc *types.TableDescription) {
	f.items[name] = make(map[string][]byte)
	desc.TableName = aws.String(name)
	desc.TableStatus = types.TableStatusActive
	f.desc[name] = desc
}

func (f *fakeAPI) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	key := params.Key["key"].(*types.AttributeValueMemberS).Value
	rows, ok := f.items[*params.TableName]
	if !ok {
		return nil, &types.ResourceNotFoundException{}
	}
	payload, ok := rows[key]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
		"key":   &types.AttributeValueMemberS{Value: key},
		"value": &types.AttributeValueMemberB{Value: payload},
	}}, nil
}

func (f *fakeAPI) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	key := params.Item["key"].(*types.AttributeValueMemberS).Value
	value := params.Item["value"].(*types.AttributeValueMemberB).Value
	rows, ok := f.items[*params.TableName]
	if !ok {
		return nil, &types.ResourceNotFoundException{}
	}
	rows[key] = value
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeAPI) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	key := params.Key["key"].(*types.AttributeValueMemberS).Value
	rows, ok := f.items[*params.TableName]
	if !ok {
		return nil, &types.ResourceNotFoundException{}
	}
	if _, ok := rows[key]; !ok {
		return nil, &types.ConditionalCheckFailedException{}
	}
	delete(rows, key)
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeAPI) Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	rows, ok := f.items[*params.TableName]
	if !ok {
		return nil, &types.ResourceNotFoundException{}
	}
	out := &dynamodb.ScanOutput{}
	for key := range rows {
		out.Items = append(out.Items, map[string]types.AttributeValue{
			"key": &types.AttributeValueMemberS{Value: key},
		})
	}
	return out, nil
}

func (f *fakeAPI) BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	f.batchCalls++
	if f.failBatch {
		return nil, errors.New("throughput exceeded")
	}
	out := &dynamodb.BatchWriteItemOutput{}
	for name, requests := range params.RequestItems {
		rows, ok := f.items[name]
		if !ok {
			return nil, &types.ResourceNotFoundException{}
		}
		if f.deferOnce {
			// Push the last request back once, like a throttled write.
			f.deferOnce = false
			last := requests[len(requests)-1]
			requests = requests[:len(requests)-1]
			out.UnprocessedItems = map[string][]types.WriteRequest{name: {last}}
		}
		for _, req := range requests {
			key := req.PutRequest.Item["key"].(*types.AttributeValueMemberS).Value
			value := req.PutRequest.Item["value"].(*types.AttributeValueMemberB).Value
			rows[key] = value
		}
	}
	return out, nil
}

func (f *fakeAPI) DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	desc, ok := f.desc[*params.TableName]
	if !ok {
		return nil, &types.ResourceNotFoundException{}
	}
	return &dynamodb.DescribeTableOutput{Table: desc}, nil
}

func (f *fakeAPI) UpdateTable(ctx context.Context, params *dynamodb.UpdateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateTableOutput, error) {
	desc, ok := f.desc[*params.TableName]
	if !ok {
		return nil, &types.ResourceNotFoundException{}
	}
	f.capacityUpdates = append(f.capacityUpdates, *params.ProvisionedThroughput.WriteCapacityUnits)
	desc.ProvisionedThroughput = &types.ProvisionedThroughputDescription{
		ReadCapacityUnits:  params.ProvisionedThroughput.ReadCapacityUnits,
		WriteCapacityUnits: params.ProvisionedThroughput.WriteCapacityUnits,
	}
	return &dynamodb.UpdateTableOutput{}, nil
}

func (f *fakeAPI) CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	f.createdTables++
	f.lastCreate = params
	desc := &types.TableDescription{
		KeySchema:            params.KeySchema,
		AttributeDefinitions: params.AttributeDefinitions,
	}
	if params.ProvisionedThroughput != nil {
		desc.ProvisionedThroughput = &types.ProvisionedThroughputDescription{
			ReadCapacityUnits:  params.ProvisionedThroughput.ReadCapacityUnits,
			WriteCapacityUnits: params.ProvisionedThroughput.WriteCapacityUnits,
		}
	}
	f.addTable(*params.TableName, desc)
	return &dynamodb.CreateTableOutput{}, nil
}

func (f *fakeAPI) DeleteTable(ctx context.Context, params *dynamodb.DeleteTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteTableOutput, error) {
	f.deletedTables++
	delete(f.items, *params.TableName)
	delete(f.desc, *params.TableName)
	return &dynamodb.DeleteTableOutput{}, nil
}

func provisionedDesc(write int64, itemCount int64) *types.TableDescription {
	return &types.TableDescription{
		ItemCount: aws.Int64(itemCount),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("key"), KeyType: types.KeyTypeHash},
		},
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("key"), AttributeType: types.ScalarAttributeTypeS},
		},
		ProvisionedThroughput: &types.ProvisionedThroughputDescription{
			ReadCapacityUnits:  aws.Int64(1),
			WriteCapacityUnits: aws.Int64(write),
		},
	}
}

func TestTableMissing(t *testing.T) {
	driver := New(newFakeAPI())
	if _, err := driver.Table(context.Background(), "units", codec.JSON{}); !errors.Is(err, storage.ErrNotInitialized) {
		t.Fatalf("expected not-initialized error, got %v", err)
	}
}

func TestGetPutDelete(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	api.addTable("units", provisionedDesc(1, 0))
	driver := New(api)

	table, err := driver.Table(ctx, "units", codec.JSON{})
	if err != nil {
		t.Fatalf("open table: %v", err)
	}
	if err := table.Put(ctx, "02", "dolnośląskie"); err != nil {
		t.Fatalf("put: %v", err)
	}
	var out string
	if err := table.Get(ctx, "02", &out); err != nil {
		t.Fatalf("get: %v", err)
	}
	if out != "dolnośląskie" {
		t.Fatalf("expected stored value, got %q", out)
	}
	if err := table.Delete(ctx, "02"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := table.Get(ctx, "02", &out); !errors.Is(err, storage.ErrKeyNotFound) {
		t.Fatalf("expected key-not-found, got %v", err)
	}
	if err := table.Delete(ctx, "02"); !errors.Is(err, storage.ErrKeyNotFound) {
		t.Fatalf("expected conditional delete failure, got %v", err)
	}
}

func TestCreateRecreatesNonEmptyTable(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	api.addTable("units", provisionedDesc(5, 3))
	driver := New(api)

	if _, err := driver.Create(ctx, "units", codec.JSON{}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if api.deletedTables != 1 || api.createdTables != 1 {
		t.Fatalf("expected one delete and one create, got %d/%d", api.deletedTables, api.createdTables)
	}
	if api.lastCreate.ProvisionedThroughput == nil || *api.lastCreate.ProvisionedThroughput.WriteCapacityUnits != 5 {
		t.Fatalf("expected throughput preserved, got %+v", api.lastCreate.ProvisionedThroughput)
	}
	if len(api.lastCreate.KeySchema) != 1 || *api.lastCreate.KeySchema[0].AttributeName != "key" {
		t.Fatalf("expected key schema preserved, got %+v", api.lastCreate.KeySchema)
	}
}

func TestCreateKeepsEmptyTable(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	api.addTable("units", provisionedDesc(5, 0))
	driver := New(api)

	if _, err := driver.Create(ctx, "units", codec.JSON{}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if api.deletedTables != 0 || api.createdTables != 0 {
		t.Fatalf("expected empty table to be kept, got %d/%d", api.deletedTables, api.createdTables)
	}
}

func TestReloadRaisesAndRestoresWriteCapacity(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	api.addTable("units", provisionedDesc(2, 0))
	driver := New(api)

	table, err := driver.Table(ctx, "units", codec.JSON{})
	if err != nil {
		t.Fatalf("open table: %v", err)
	}
	contents := make(map[string]any, 30)
	for i := 0; i < 30; i++ {
		contents[string(rune('a'+i))] = i
	}
	if err := table.Reload(ctx, contents); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(api.capacityUpdates) != 2 || api.capacityUpdates[0] != 10 || api.capacityUpdates[1] != 2 {
		t.Fatalf("expected capacity raised to 10 then restored to 2, got %v", api.capacityUpdates)
	}
	if api.batchCalls < 2 {
		t.Fatalf("expected batched writes, got %d calls", api.batchCalls)
	}
	if len(api.items["units"]) != 30 {
		t.Fatalf("expected 30 items written, got %d", len(api.items["units"]))
	}
}

func TestReloadRestoresCapacityAfterFailure(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	api.addTable("units", provisionedDesc(2, 0))
	api.failBatch = true
	driver := New(api)

	table, err := driver.Table(ctx, "units", codec.JSON{})
	if err != nil {
		t.Fatalf("open table: %v", err)
	}
	if err := table.Reload(ctx, map[string]any{"02": "a"}); err == nil {
		t.Fatal("expected reload failure")
	}
	if len(api.capacityUpdates) != 2 || api.capacityUpdates[1] != 2 {
		t.Fatalf("expected capacity restored despite failure, got %v", api.capacityUpdates)
	}
}

func TestReloadRetriesUnprocessedItems(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	api.addTable("units", provisionedDesc(10, 0))
	api.deferOnce = true
	driver := New(api)

	table, err := driver.Table(ctx, "units", codec.JSON{})
	if err != nil {
		t.Fatalf("open table: %v", err)
	}
	if err := table.Reload(ctx, map[string]any{"02": "a", "04": "b"}); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if api.batchCalls != 2 {
		t.Fatalf("expected unprocessed items to be retried, got %d calls", api.batchCalls)
	}
	if len(api.items["units"]) != 2 {
		t.Fatalf("expected both items written, got %d", len(api.items["units"]))
	}
}

func TestReloadSkipsCapacityOnDemand(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	desc := provisionedDesc(0, 0)
	desc.ProvisionedThroughput = nil
	desc.BillingModeSummary = &types.BillingModeSummary{BillingMode: types.BillingModePayPerRequest}
	api.addTable("units", desc)
	driver := New(api)

	table, err := driver.Table(ctx, "units", codec.JSON{})
	if err != nil {
		t.Fatalf("open table: %v", err)
	}
	if err := table.Reload(ctx, map[string]any{"02": "a"}); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(api.capacityUpdates) != 0 {
		t.Fatalf("expected no capacity updates, got %v", api.capacityUpdates)
	}
}

func TestKeysScansAllPages(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	api.addTable("units", provisionedDesc(1, 0))
	driver := New(api)

	table, err := driver.Table(ctx, "units", codec.JSON{})
	if err != nil {
		t.Fatalf("open table: %v", err)
	}
	for _, key := range []string{"02", "04", "14"} {
		if err := table.Put(ctx, key, key); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	keys, err := table.Keys(ctx)
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if len(keys) != 3 {
		t.Fatalf("expected 3 keys, got %v", keys)
	}
}
