package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"movie-recommender/internal/domain"
)

const (
	batchWriteLimit   = 25
	batchWriteRetries = 3
)

// AppendMessage persists a new conversation message. Messages are never
// overwritten.
func (c *Client) AppendMessage(ctx context.Context, msg domain.ConversationMessage) error {
	if msg.MemberID == "" || msg.ID == "" || msg.CreatedAt.IsZero() {
		return errors.New("repository: AppendMessage: member id, id and createdAt are required")
	}

	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                c.messageItem(msg),
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		return fmt.Errorf("repository: AppendMessage: %w", err)
	}
	return nil
}

// ListMessages returns the member's messages oldest first.
func (c *Client) ListMessages(ctx context.Context, memberID string, activeOnly bool) ([]domain.ConversationMessage, error) {
	var filter string
	values := map[string]types.AttributeValue{}
	if activeOnly {
		filter = "#active = :active"
		values[":active"] = &types.AttributeValueMemberBOOL{Value: true}
	}

	items, err := c.queryMessages(ctx, memberID, filter, values, "")
	if err != nil {
		return nil, fmt.Errorf("repository: ListMessages: %w", err)
	}
	msgs := make([]domain.ConversationMessage, 0, len(items))
	for _, item := range items {
		msg, err := itemToMessage(item)
		if err != nil {
			return nil, fmt.Errorf("repository: ListMessages unmarshal: %w", err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// ExpireMessages flips active messages created strictly before cutoff to
// inactive and returns how many changed.
func (c *Client) ExpireMessages(ctx context.Context, memberID string, cutoff time.Time) (int, error) {
	n, err := c.deactivate(ctx, memberID, "#active = :active AND createdAt < :cutoff", map[string]types.AttributeValue{
		":active": &types.AttributeValueMemberBOOL{Value: true},
		":cutoff": &types.AttributeValueMemberS{Value: formatTime(cutoff)},
	})
	if err != nil {
		return n, fmt.Errorf("repository: ExpireMessages: %w", err)
	}
	return n, nil
}

// DeactivateMessages flips every active message to inactive.
func (c *Client) DeactivateMessages(ctx context.Context, memberID string) (int, error) {
	n, err := c.deactivate(ctx, memberID, "#active = :active", map[string]types.AttributeValue{
		":active": &types.AttributeValueMemberBOOL{Value: true},
	})
	if err != nil {
		return n, fmt.Errorf("repository: DeactivateMessages: %w", err)
	}
	return n, nil
}

// DeleteMessages removes every message for the member.
func (c *Client) DeleteMessages(ctx context.Context, memberID string) (int, error) {
	items, err := c.queryMessages(ctx, memberID, "", nil, "PK, SK")
	if err != nil {
		return 0, fmt.Errorf("repository: DeleteMessages: %w", err)
	}

	deleted := 0
	for start := 0; start < len(items); start += batchWriteLimit {
		end := min(start+batchWriteLimit, len(items))
		reqs := make([]types.WriteRequest, 0, end-start)
		for _, item := range items[start:end] {
			reqs = append(reqs, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{Key: map[string]types.AttributeValue{
					"PK": item["PK"],
					"SK": item["SK"],
				}},
			})
		}
		if err := c.batchWrite(ctx, reqs); err != nil {
			return deleted, fmt.Errorf("repository: DeleteMessages: %w", err)
		}
		deleted += len(reqs)
	}
	return deleted, nil
}

func (c *Client) batchWrite(ctx context.Context, reqs []types.WriteRequest) error {
	pending := map[string][]types.WriteRequest{c.tableName: reqs}
	for attempt := 0; attempt < batchWriteRetries; attempt++ {
		out, err := c.api.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
		if err != nil {
			return fmt.Errorf("batch write: %w", err)
		}
		if out == nil || len(out.UnprocessedItems[c.tableName]) == 0 {
			return nil
		}
		pending = out.UnprocessedItems
	}
	return fmt.Errorf("batch write: %d items unprocessed after %d attempts", len(pending[c.tableName]), batchWriteRetries)
}

func (c *Client) deactivate(ctx context.Context, memberID, filter string, values map[string]types.AttributeValue) (int, error) {
	items, err := c.queryMessages(ctx, memberID, filter, values, "PK, SK")
	if err != nil {
		return 0, err
	}
	changed := 0
	for _, item := range items {
		_, err := c.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName: aws.String(c.tableName),
			Key: map[string]types.AttributeValue{
				"PK": item["PK"],
				"SK": item["SK"],
			},
			UpdateExpression:         aws.String("SET #active = :inactive"),
			ConditionExpression:      aws.String("attribute_exists(PK)"),
			ExpressionAttributeNames: map[string]string{"#active": "active"},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":inactive": &types.AttributeValueMemberBOOL{Value: false},
			},
		})
		if err != nil {
			var ccf *types.ConditionalCheckFailedException
			if errors.As(err, &ccf) {
				// Deleted concurrently; nothing left to deactivate.
				continue
			}
			return changed, fmt.Errorf("update item: %w", err)
		}
		changed++
	}
	return changed, nil
}

// queryMessages reads every MSG# item for the member in ascending order,
// following pagination.
func (c *Client) queryMessages(ctx context.Context, memberID, filter string, values map[string]types.AttributeValue, projection string) ([]map[string]types.AttributeValue, error) {
	exprValues := map[string]types.AttributeValue{
		":pk":     &types.AttributeValueMemberS{Value: memberPK(memberID)},
		":prefix": &types.AttributeValueMemberS{Value: skPrefixMsg},
	}
	for k, v := range values {
		exprValues[k] = v
	}

	in := &dynamodb.QueryInput{
		TableName:                 aws.String(c.tableName),
		KeyConditionExpression:    aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: exprValues,
		ScanIndexForward:          aws.Bool(true),
		ConsistentRead:            aws.Bool(true),
	}
	if filter != "" {
		in.FilterExpression = aws.String(filter)
		in.ExpressionAttributeNames = map[string]string{"#active": "active"}
	}
	if projection != "" {
		in.ProjectionExpression = aws.String(projection)
	}

	var items []map[string]types.AttributeValue
	for {
		out, err := c.api.Query(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("query: %w", err)
		}
		if out == nil {
			break
		}
		items = append(items, out.Items...)
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
	return items, nil
}

func (c *Client) messageItem(msg domain.ConversationMessage) map[string]types.AttributeValue {
	item := map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: memberPK(msg.MemberID)},
		"SK":        &types.AttributeValueMemberS{Value: msgSK(msg.CreatedAt, msg.ID)},
		"id":        &types.AttributeValueMemberS{Value: msg.ID},
		"memberId":  &types.AttributeValueMemberS{Value: msg.MemberID},
		"role":      &types.AttributeValueMemberS{Value: msg.Role},
		"content":   &types.AttributeValueMemberS{Value: msg.Content},
		"active":    &types.AttributeValueMemberBOOL{Value: msg.Active},
		"createdAt": &types.AttributeValueMemberS{Value: formatTime(msg.CreatedAt)},
		"ttl":       numAttr(c.ttlValue()),
	}
	if len(msg.MovieIDs) > 0 {
		ids := make([]types.AttributeValue, 0, len(msg.MovieIDs))
		for _, id := range msg.MovieIDs {
			ids = append(ids, numAttr(id))
		}
		item["movieIds"] = &types.AttributeValueMemberL{Value: ids}
	}
	return item
}

// itemToMessage converts a DynamoDB attribute map to a ConversationMessage.
func itemToMessage(item map[string]types.AttributeValue) (domain.ConversationMessage, error) {
	id, err := strAttr(item, "id")
	if err != nil {
		return domain.ConversationMessage{}, err
	}
	memberID, err := strAttr(item, "memberId")
	if err != nil {
		return domain.ConversationMessage{}, err
	}
	role, err := strAttr(item, "role")
	if err != nil {
		return domain.ConversationMessage{}, err
	}
	content, _ := strAttr(item, "content") // allow empty assistant replies
	active, err := boolAttr(item, "active")
	if err != nil {
		return domain.ConversationMessage{}, err
	}
	created, err := strAttr(item, "createdAt")
	if err != nil {
		return domain.ConversationMessage{}, err
	}
	createdAt, err := time.Parse(timeLayout, created)
	if err != nil {
		return domain.ConversationMessage{}, fmt.Errorf("repository: parse createdAt: %w", err)
	}

	msg := domain.ConversationMessage{
		ID:        id,
		MemberID:  memberID,
		Role:      role,
		Content:   content,
		Active:    active,
		CreatedAt: createdAt,
	}
	if l, ok := item["movieIds"].(*types.AttributeValueMemberL); ok {
		for _, v := range l.Value {
			n, ok := v.(*types.AttributeValueMemberN)
			if !ok {
				return domain.ConversationMessage{}, errors.New("repository: movieIds element is not a number")
			}
			parsed, err := strconv.ParseInt(n.Value, 10, 64)
			if err != nil {
				return domain.ConversationMessage{}, fmt.Errorf("repository: parse movieIds: %w", err)
			}
			msg.MovieIDs = append(msg.MovieIDs, parsed)
		}
	}
	return msg, nil
}
