package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	pkPrefixCollection = "COLL#"
	skSnapshot         = "SNAPSHOT#"
)

// dynamodbAPI is the minimal DynamoDB interface required by DynamoBackend.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// DynamoBackend stores each collection as a single item holding the JSON body
// and a version counter. Saves are conditional puts on that counter.
type DynamoBackend struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

// NewDynamoBackend creates a Backend over an existing table keyed by PK/SK.
func NewDynamoBackend(api dynamodbAPI, tableName string) (*DynamoBackend, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &DynamoBackend{api: api, tableName: tableName, now: time.Now}, nil
}

func collectionPK(collection string) string {
	return pkPrefixCollection + collection
}

func snapshotKey(collection string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: collectionPK(collection)},
		"SK": &types.AttributeValueMemberS{Value: skSnapshot},
	}
}

// Load reads the collection snapshot with a strongly consistent read.
func (b *DynamoBackend) Load(ctx context.Context, collection string) (Snapshot, error) {
	out, err := b.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(b.tableName),
		Key:            snapshotKey(collection),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return Snapshot{}, fmt.Errorf("repository: Load get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return Snapshot{}, nil
	}

	body, err := strAttr(out.Item, "body")
	if err != nil {
		return Snapshot{}, fmt.Errorf("repository: Load decode body: %w", err)
	}
	version, err := intAttr(out.Item, "version")
	if err != nil {
		return Snapshot{}, fmt.Errorf("repository: Load decode version: %w", err)
	}
	return Snapshot{Body: []byte(body), Version: version}, nil
}

// Save replaces the collection snapshot if the stored version still equals
// prevVersion.
func (b *DynamoBackend) Save(ctx context.Context, collection string, body []byte, prevVersion int64) error {
	in := &dynamodb.PutItemInput{
		TableName: aws.String(b.tableName),
		Item:      b.snapshotItem(collection, body, prevVersion+1),
	}
	if prevVersion == 0 {
		in.ConditionExpression = aws.String("attribute_not_exists(PK)")
	} else {
		in.ConditionExpression = aws.String("version = :prev")
		in.ExpressionAttributeValues = map[string]types.AttributeValue{
			":prev": &types.AttributeValueMemberN{Value: strconv.FormatInt(prevVersion, 10)},
		}
	}

	_, err := b.api.PutItem(ctx, in)
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrConflict
		}
		return fmt.Errorf("repository: Save put item: %w", err)
	}
	return nil
}

func (b *DynamoBackend) snapshotItem(collection string, body []byte, version int64) map[string]types.AttributeValue {
	item := snapshotKey(collection)
	item["collection"] = &types.AttributeValueMemberS{Value: collection}
	item["body"] = &types.AttributeValueMemberS{Value: string(body)}
	item["version"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(version, 10)}
	item["updatedAt"] = &types.AttributeValueMemberS{Value: b.now().UTC().Format(time.RFC3339)}
	return item
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func intAttr(item map[string]types.AttributeValue, key string) (int64, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}
