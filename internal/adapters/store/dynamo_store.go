package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/ghalamif/sensorwatch/internal/domain"
	"github.com/ghalamif/sensorwatch/internal/ports"
)

const (
	dynamoBatchLimit = 25 // BatchWriteItem hard limit
	maxRetries       = 3  // retries for unprocessed items
)

// DynamoAPI is the subset of *dynamodb.Client the store calls.
type DynamoAPI interface {
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// sensorItem is the table layout: last_seen is Unix seconds, absent when
// the sensor never reported.
type sensorItem struct {
	SensorID string         `dynamodbav:"sensor_id"`
	LastSeen int64          `dynamodbav:"last_seen,omitempty"`
	Metadata map[string]any `dynamodbav:"metadata,omitempty"`
}

type DynamoStore struct {
	client    DynamoAPI
	tableName string
}

func NewDynamoStore(client DynamoAPI, table string) *DynamoStore {
	return &DynamoStore{client: client, tableName: table}
}

// NewDynamoClient loads the default AWS config chain. endpoint is optional
// (DynamoDB Local, LocalStack).
func NewDynamoClient(ctx context.Context, region, endpoint string) (*dynamodb.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

func (s *DynamoStore) Name() string { return "dynamodb" }

func (s *DynamoStore) Fetch(ctx context.Context, q domain.Query) ([]domain.SensorRecord, error) {
	names := map[string]string{"#id": "sensor_id", "#ls": "last_seen"}
	projection := "#id, #ls"
	if q.Wants(domain.FieldMetadata) {
		names["#md"] = "metadata"
		projection += ", #md"
	}

	if !q.MatchesAll() {
		out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
			TableName:                aws.String(s.tableName),
			Key:                      keyOf(q.SensorID),
			ProjectionExpression:     aws.String(projection),
			ExpressionAttributeNames: names,
		})
		if err != nil {
			return nil, s.unavailable("get item", err)
		}
		if out.Item == nil {
			return []domain.SensorRecord{}, nil
		}
		rec, err := decodeItem(out.Item)
		if err != nil {
			return nil, err
		}
		return []domain.SensorRecord{rec}, nil
	}

	records := []domain.SensorRecord{}
	var startKey map[string]types.AttributeValue
	for {
		out, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:                aws.String(s.tableName),
			ProjectionExpression:     aws.String(projection),
			ExpressionAttributeNames: names,
			ExclusiveStartKey:        startKey,
		})
		if err != nil {
			return nil, s.unavailable("scan", err)
		}
		for _, item := range out.Items {
			rec, err := decodeItem(item)
			if err != nil {
				return nil, err
			}
			records = append(records, rec)
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	sort.Slice(records, func(i, j int) bool { return records[i].SensorID < records[j].SensorID })
	return records, nil
}

// Touch advances last_seen with a conditional update per sensor.
func (s *DynamoStore) Touch(ctx context.Context, beats []domain.Heartbeat) error {
	for _, hb := range beats {
		_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:           aws.String(s.tableName),
			Key:                 keyOf(hb.SensorID),
			UpdateExpression:    aws.String("SET #ls = :ls"),
			ConditionExpression: aws.String("attribute_not_exists(#ls) OR #ls < :ls"),
			ExpressionAttributeNames: map[string]string{
				"#ls": "last_seen",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":ls": &types.AttributeValueMemberN{Value: strconv.FormatInt(hb.SeenAt.Unix(), 10)},
			},
		})
		var stale *types.ConditionalCheckFailedException
		if errors.As(err, &stale) {
			continue
		}
		if err != nil {
			return s.unavailable("update item", err)
		}
	}
	return nil
}

func (s *DynamoStore) Upsert(ctx context.Context, records []domain.SensorRecord) error {
	requests := make([]types.WriteRequest, 0, len(records))
	for _, rec := range records {
		item := sensorItem{SensorID: rec.SensorID, Metadata: rec.Metadata}
		if rec.Reported() {
			item.LastSeen = rec.LastSeen.Unix()
		}
		av, err := attributevalue.MarshalMap(item)
		if err != nil {
			return fmt.Errorf("failed to marshal sensor %s: %w", rec.SensorID, err)
		}
		requests = append(requests, types.WriteRequest{PutRequest: &types.PutRequest{Item: av}})
	}
	return s.writeAll(ctx, requests)
}

// Reset scans every key and batch-deletes it.
func (s *DynamoStore) Reset(ctx context.Context) error {
	var (
		requests []types.WriteRequest
		startKey map[string]types.AttributeValue
	)
	for {
		out, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:                aws.String(s.tableName),
			ProjectionExpression:     aws.String("#id"),
			ExpressionAttributeNames: map[string]string{"#id": "sensor_id"},
			ExclusiveStartKey:        startKey,
		})
		if err != nil {
			return s.unavailable("scan", err)
		}
		for _, item := range out.Items {
			requests = append(requests, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{Key: map[string]types.AttributeValue{"sensor_id": item["sensor_id"]}},
			})
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	return s.writeAll(ctx, requests)
}

func (s *DynamoStore) writeAll(ctx context.Context, requests []types.WriteRequest) error {
	for i := 0; i < len(requests); i += dynamoBatchLimit {
		end := min(i+dynamoBatchLimit, len(requests))
		if err := s.writeBatchWithRetry(ctx, requests[i:end]); err != nil {
			return err
		}
	}
	return nil
}

// writeBatchWithRetry writes one chunk and retries UnprocessedItems with
// exponential backoff (100ms, 200ms, 400ms).
func (s *DynamoStore) writeBatchWithRetry(ctx context.Context, requests []types.WriteRequest) error {
	pending := requests

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		out, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{
				s.tableName: pending,
			},
		})
		if err != nil {
			return s.unavailable(fmt.Sprintf("batch write attempt %d", attempt+1), err)
		}

		unprocessed := out.UnprocessedItems[s.tableName]
		if len(unprocessed) == 0 {
			return nil
		}
		pending = unprocessed
	}

	return fmt.Errorf("batch write: %d items still unprocessed after %d retries", len(pending), maxRetries)
}

func (s *DynamoStore) unavailable(op string, err error) error {
	return fmt.Errorf("dynamodb %s: %w: %w", op, domain.ErrStoreUnavailable, err)
}

func keyOf(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"sensor_id": &types.AttributeValueMemberS{Value: id}}
}

func decodeItem(av map[string]types.AttributeValue) (domain.SensorRecord, error) {
	var item sensorItem
	if err := attributevalue.UnmarshalMap(av, &item); err != nil {
		return domain.SensorRecord{}, fmt.Errorf("failed to unmarshal sensor item: %w", err)
	}
	rec := domain.SensorRecord{SensorID: item.SensorID, Metadata: item.Metadata}
	if item.LastSeen != 0 {
		rec.LastSeen = time.Unix(item.LastSeen, 0).UTC()
	}
	return rec, nil
}

var (
	_ ports.TelemetryStore  = (*DynamoStore)(nil)
	_ ports.HeartbeatWriter = (*DynamoStore)(nil)
	_ ports.SeedStore       = (*DynamoStore)(nil)
	_ DynamoAPI             = (*dynamodb.Client)(nil)
)
