package store

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghalamif/sensorwatch/internal/domain"
)

// fakeDynamo keeps items in memory and understands the expressions the
// store sends. pageSize > 0 splits scans into pages.
type fakeDynamo struct {
	mu       sync.Mutex
	items    map[string]map[string]types.AttributeValue
	pageSize int
	failWith error
	scans    int
	batches  int
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: map[string]map[string]types.AttributeValue{}}
}

func idOf(key map[string]types.AttributeValue) string {
	return key["sensor_id"].(*types.AttributeValueMemberS).Value
}

func (f *fakeDynamo) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scans++
	if f.failWith != nil {
		return nil, f.failWith
	}
	ids := make([]string, 0, len(f.items))
	for id := range f.items {
		ids = append(ids, id)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))

	start := 0
	if in.ExclusiveStartKey != nil {
		last := idOf(in.ExclusiveStartKey)
		for i, id := range ids {
			if id == last {
				start = i + 1
			}
		}
	}
	end := len(ids)
	if f.pageSize > 0 && start+f.pageSize < end {
		end = start + f.pageSize
	}
	out := &dynamodb.ScanOutput{}
	for _, id := range ids[start:end] {
		out.Items = append(out.Items, f.items[id])
	}
	if end < len(ids) {
		out.LastEvaluatedKey = keyOf(ids[end-1])
	}
	return out, nil
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	return &dynamodb.GetItemOutput{Item: f.items[idOf(in.Key)]}, nil
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	id := idOf(in.Key)
	next := in.ExpressionAttributeValues[":ls"]
	item, ok := f.items[id]
	if !ok {
		item = map[string]types.AttributeValue{"sensor_id": &types.AttributeValueMemberS{Value: id}}
		f.items[id] = item
	}
	if cur, ok := item["last_seen"]; ok {
		curN, _ := strconv.ParseInt(cur.(*types.AttributeValueMemberN).Value, 10, 64)
		nextN, _ := strconv.ParseInt(next.(*types.AttributeValueMemberN).Value, 10, 64)
		if curN >= nextN {
			return nil, &types.ConditionalCheckFailedException{Message: strPtr("conditional request failed")}
		}
	}
	item["last_seen"] = next
	return &dynamodb.UpdateItemOutput{}, nil
}

func (f *fakeDynamo) BatchWriteItem(_ context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches++
	if f.failWith != nil {
		return nil, f.failWith
	}
	for _, reqs := range in.RequestItems {
		if len(reqs) > dynamoBatchLimit {
			return nil, errors.New("too many items in batch")
		}
		for _, r := range reqs {
			switch {
			case r.PutRequest != nil:
				f.items[idOf(r.PutRequest.Item)] = r.PutRequest.Item
			case r.DeleteRequest != nil:
				delete(f.items, idOf(r.DeleteRequest.Key))
			}
		}
	}
	return &dynamodb.BatchWriteItemOutput{}, nil
}

func strPtr(s string) *string { return &s }

func TestDynamoStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	fake := newFakeDynamo()
	fake.pageSize = 2
	s := NewDynamoStore(fake, "sensors")

	seen := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.Upsert(ctx, []domain.SensorRecord{
		{SensorID: "c000003", LastSeen: seen, Metadata: map[string]any{"type": "humidity"}},
		{SensorID: "c000001", LastSeen: seen},
		{SensorID: "c000002"},
	}))

	all, err := s.Fetch(ctx, domain.Query{Projection: []domain.Field{domain.FieldSensorID, domain.FieldLastSeen}})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"c000001", "c000002", "c000003"}, []string{all[0].SensorID, all[1].SensorID, all[2].SensorID})
	assert.True(t, all[0].LastSeen.Equal(seen))
	assert.False(t, all[1].Reported())
	assert.Equal(t, 2, fake.scans, "three items with page size two need two scans")

	one, err := s.Fetch(ctx, domain.Query{SensorID: "c000003", Projection: []domain.Field{domain.FieldSensorID, domain.FieldLastSeen, domain.FieldMetadata}})
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "humidity", one[0].Metadata["type"])

	none, err := s.Fetch(ctx, domain.Query{SensorID: "c999999"})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestDynamoStoreTouchIsMonotonic(t *testing.T) {
	ctx := context.Background()
	fake := newFakeDynamo()
	s := NewDynamoStore(fake, "sensors")

	t1 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	t0 := t1.Add(-time.Hour)

	require.NoError(t, s.Touch(ctx, []domain.Heartbeat{{SensorID: "c000001", SeenAt: t1}}))
	require.NoError(t, s.Touch(ctx, []domain.Heartbeat{{SensorID: "c000001", SeenAt: t0}}), "older heartbeat is ignored, not an error")

	got, err := s.Fetch(ctx, domain.Query{SensorID: "c000001"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].LastSeen.Equal(t1))
}

func TestDynamoStoreResetBatches(t *testing.T) {
	ctx := context.Background()
	fake := newFakeDynamo()
	s := NewDynamoStore(fake, "sensors")

	recs := make([]domain.SensorRecord, 60)
	for i := range recs {
		recs[i] = domain.SensorRecord{SensorID: "c" + strconv.Itoa(100000+i)}
	}
	require.NoError(t, s.Upsert(ctx, recs))
	assert.Equal(t, 3, fake.batches)
	assert.Len(t, fake.items, 60)

	require.NoError(t, s.Reset(ctx))
	assert.Empty(t, fake.items)
}

func TestDynamoStoreUnavailable(t *testing.T) {
	fake := newFakeDynamo()
	fake.failWith = errors.New("connection refused")
	s := NewDynamoStore(fake, "sensors")

	_, err := s.Fetch(context.Background(), domain.Query{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

	_, err = s.Fetch(context.Background(), domain.Query{SensorID: "c000001"})
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

	err = s.Touch(context.Background(), []domain.Heartbeat{{SensorID: "c000001", SeenAt: time.Now()}})
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.Equal(t, "dynamodb", s.Name())
}
