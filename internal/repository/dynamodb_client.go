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

	"hint-agent/internal/domain"
)

const (
	skState     = "STATE#"
	ttlDuration = 30 * 24 * time.Hour // 30-day TTL
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// Client stores one conversation state item per session.
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

// sessionPK returns the DynamoDB partition key for a session.
func sessionPK(sessionID string) string {
	return "SESSION#" + sessionID
}

func (c *Client) key(sessionID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
		"SK": &types.AttributeValueMemberS{Value: skState},
	}
}

// Load reads the session's state with a strongly consistent read.
func (c *Client) Load(ctx context.Context, sessionID string) (domain.ConversationState, bool, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.tableName),
		Key:            c.key(sessionID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.ConversationState{}, false, fmt.Errorf("repository: Load get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.ConversationState{}, false, nil
	}
	state, err := itemToState(out.Item)
	if err != nil {
		return domain.ConversationState{}, false, fmt.Errorf("repository: Load decode: %w", err)
	}
	return state, true, nil
}

// Save writes state only if the stored version is state.Version-1, or if no
// item exists when state.Version is 1.
func (c *Client) Save(ctx context.Context, sessionID string, state domain.ConversationState) error {
	if state.Version < 1 {
		return errors.New("repository: Save: version must be positive")
	}
	in := &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item:      c.stateItem(sessionID, state),
	}
	if state.Version == 1 {
		in.ConditionExpression = aws.String("attribute_not_exists(PK)")
	} else {
		in.ConditionExpression = aws.String("#v = :expected")
		in.ExpressionAttributeNames = map[string]string{"#v": "version"}
		in.ExpressionAttributeValues = map[string]types.AttributeValue{
			":expected": &types.AttributeValueMemberN{Value: strconv.FormatInt(state.Version-1, 10)},
		}
	}

	_, err := c.api.PutItem(ctx, in)
	if err != nil {
		var conditional *types.ConditionalCheckFailedException
		if errors.As(err, &conditional) {
			return fmt.Errorf("repository: Save: %w", domain.ErrVersionConflict)
		}
		return fmt.Errorf("repository: Save: %w", err)
	}
	return nil
}

// Delete removes the session item and reports whether it existed.
func (c *Client) Delete(ctx context.Context, sessionID string) (bool, error) {
	out, err := c.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    aws.String(c.tableName),
		Key:          c.key(sessionID),
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return false, fmt.Errorf("repository: Delete: %w", err)
	}
	return out != nil && len(out.Attributes) > 0, nil
}

// ttlValue returns a Unix timestamp 30 days in the future.
func (c *Client) ttlValue() int64 {
	return c.now().Add(ttlDuration).Unix()
}

func (c *Client) stateItem(sessionID string, state domain.ConversationState) map[string]types.AttributeValue {
	history := make([]types.AttributeValue, 0, len(state.ChatHistory))
	for _, m := range state.ChatHistory {
		history = append(history, &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
			"role":    &types.AttributeValueMemberS{Value: m.Role},
			"content": &types.AttributeValueMemberS{Value: m.Content},
		}})
	}
	item := map[string]types.AttributeValue{
		"PK":             &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
		"SK":             &types.AttributeValueMemberS{Value: skState},
		"sessionId":      &types.AttributeValueMemberS{Value: sessionID},
		"hintLevel":      &types.AttributeValueMemberN{Value: strconv.Itoa(state.HintLevel)},
		"lastQuestionId": &types.AttributeValueMemberS{Value: state.LastQuestionID},
		"history":        &types.AttributeValueMemberL{Value: history},
		"version":        &types.AttributeValueMemberN{Value: strconv.FormatInt(state.Version, 10)},
		"lastActivity":   &types.AttributeValueMemberS{Value: c.now().UTC().Format(time.RFC3339)},
		"ttl":            &types.AttributeValueMemberN{Value: strconv.FormatInt(c.ttlValue(), 10)},
	}
	// String sets cannot be empty.
	if len(state.LastQuestionKeywords) > 0 {
		item["lastQuestionKeywords"] = &types.AttributeValueMemberSS{Value: append([]string(nil), state.LastQuestionKeywords...)}
	}
	return item
}

// itemToState converts a DynamoDB attribute map to a ConversationState.
func itemToState(item map[string]types.AttributeValue) (domain.ConversationState, error) {
	level, err := intAttr(item, "hintLevel")
	if err != nil {
		return domain.ConversationState{}, err
	}
	version, err := intAttr(item, "version")
	if err != nil {
		return domain.ConversationState{}, err
	}
	lastQuestion, _ := strAttr(item, "lastQuestionId") // allow empty

	state := domain.ConversationState{
		HintLevel:      level,
		LastQuestionID: lastQuestion,
		Version:        int64(version),
	}
	if v, ok := item["lastQuestionKeywords"].(*types.AttributeValueMemberSS); ok {
		state.LastQuestionKeywords = append([]string(nil), v.Value...)
	}

	if raw, ok := item["history"]; ok {
		list, ok := raw.(*types.AttributeValueMemberL)
		if !ok {
			return domain.ConversationState{}, errors.New(`repository: attribute "history" is not a list`)
		}
		for i, v := range list.Value {
			m, ok := v.(*types.AttributeValueMemberM)
			if !ok {
				return domain.ConversationState{}, fmt.Errorf("repository: history[%d] is not a map", i)
			}
			role, err := strAttr(m.Value, "role")
			if err != nil {
				return domain.ConversationState{}, err
			}
			content, err := strAttr(m.Value, "content")
			if err != nil {
				return domain.ConversationState{}, err
			}
			state.ChatHistory = append(state.ChatHistory, domain.ChatMessage{Role: role, Content: content})
		}
	}
	return state.Normalize(), nil
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

func intAttr(item map[string]types.AttributeValue, key string) (int, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}
