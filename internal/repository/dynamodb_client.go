package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"site-assistant/internal/domain"
)

const (
	pkPrefixRequest = "REQ#"
	skMeta          = "META#"
	ttlDuration     = 30 * 24 * time.Hour // 30-day TTL

	maxCorrelationIDBytes = 128
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// Client writes interaction metadata to a DynamoDB table.
type Client struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName, now: time.Now}, nil
}

// requestPK returns the DynamoDB partition key for a request.
func requestPK(requestID string) string {
	return pkPrefixRequest + requestID
}

// SaveInteraction persists one interaction record. A record for the same
// request ID is never overwritten.
func (c *Client) SaveInteraction(ctx context.Context, in domain.Interaction) error {
	if strings.TrimSpace(in.RequestID) == "" {
		return errors.New("repository: SaveInteraction: request ID is required")
	}
	created := in.CreatedAt
	if created.IsZero() {
		created = c.now()
	}

	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                interactionItem(in, created, created.Add(ttlDuration).Unix()),
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		return fmt.Errorf("repository: SaveInteraction: %w", err)
	}
	return nil
}

func interactionItem(in domain.Interaction, created time.Time, ttl int64) map[string]types.AttributeValue {
	item := map[string]types.AttributeValue{
		"PK":            &types.AttributeValueMemberS{Value: requestPK(in.RequestID)},
		"SK":            &types.AttributeValueMemberS{Value: skMeta},
		"requestId":     &types.AttributeValueMemberS{Value: in.RequestID},
		"state":         &types.AttributeValueMemberS{Value: in.State},
		"messageLength": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", in.MessageLength)},
		"durationMs":    &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", in.Duration.Milliseconds())},
		"createdAt":     &types.AttributeValueMemberS{Value: created.UTC().Format(time.RFC3339Nano)},
		"ttl":           &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", ttl)},
	}
	// DynamoDB rejects empty strings in key attributes of indexes; omit blanks.
	if in.Category != "" {
		item["category"] = &types.AttributeValueMemberS{Value: string(in.Category)}
	}
	if in.Reason != "" {
		item["reason"] = &types.AttributeValueMemberS{Value: in.Reason}
	}
	if id := truncateUTF8(in.CorrelationID, maxCorrelationIDBytes); id != "" {
		item["correlationId"] = &types.AttributeValueMemberS{Value: id}
	}
	return item
}

func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
