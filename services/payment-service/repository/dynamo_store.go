package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoAPI is the subset of the DynamoDB client the store uses.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// DynamoHashKey is the partition key attribute of the documents table.
const DynamoHashKey = "doc_id"

// DynamoStore keeps each document as one item with partition key `doc_id`.
// Writes are conditional on the stored version.
type DynamoStore struct {
	client DynamoAPI
	table  string
}

func NewDynamoStore(client DynamoAPI, table string) *DynamoStore {
	return &DynamoStore{client: client, table: table}
}

type ddbDocument struct {
	DocID     string `dynamodbav:"doc_id"`
	Data      string `dynamodbav:"data"`
	Version   int64  `dynamodbav:"version"`
	UpdatedAt string `dynamodbav:"updated_at"`
}

func (d *DynamoStore) Read(ctx context.Context, id string) (Document, error) {
	key, err := attributevalue.MarshalMap(map[string]string{DynamoHashKey: id})
	if err != nil {
		return Document{}, fmt.Errorf("marshal key: %w", err)
	}
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      &d.table,
		Key:            key,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return Document{}, fmt.Errorf("dynamodb GetItem failed: %w", err)
	}
	if len(out.Item) == 0 {
		return Document{}, ErrNotFound
	}
	var dd ddbDocument
	if err := attributevalue.UnmarshalMap(out.Item, &dd); err != nil {
		return Document{}, fmt.Errorf("unmarshal item: %w", err)
	}
	return Document{ID: dd.DocID, Data: []byte(dd.Data), Version: dd.Version}, nil
}

func (d *DynamoStore) Write(ctx context.Context, id string, data []byte, expectedVersion int64) (int64, error) {
	next := expectedVersion + 1
	item, err := attributevalue.MarshalMap(ddbDocument{
		DocID:     id,
		Data:      string(data),
		Version:   next,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return 0, fmt.Errorf("marshal item: %w", err)
	}

	in := &dynamodb.PutItemInput{TableName: &d.table, Item: item}
	if expectedVersion == 0 {
		in.ConditionExpression = aws.String("attribute_not_exists(doc_id)")
	} else {
		in.ConditionExpression = aws.String("#v = :expected")
		in.ExpressionAttributeNames = map[string]string{"#v": "version"}
		in.ExpressionAttributeValues = map[string]types.AttributeValue{
			":expected": &types.AttributeValueMemberN{Value: strconv.FormatInt(expectedVersion, 10)},
		}
	}

	if _, err := d.client.PutItem(ctx, in); err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return 0, ErrVersionConflict
		}
		return 0, fmt.Errorf("dynamodb PutItem failed: %w", err)
	}
	return next, nil
}
