package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"movie-recommender/internal/domain"
)

var ErrMemberNotFound = errors.New("repository: member not found")

const dateLayout = "2006-01-02"

func profileKey(memberID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: memberPK(memberID)},
		"SK": &types.AttributeValueMemberS{Value: skProfile},
	}
}

// GetMember reads the member profile, including the running spend total.
func (c *Client) GetMember(ctx context.Context, memberID string) (domain.Member, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.tableName),
		Key:            profileKey(memberID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.Member{}, fmt.Errorf("repository: GetMember get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.Member{}, ErrMemberNotFound
	}
	m, err := itemToMember(memberID, out.Item)
	if err != nil {
		return domain.Member{}, fmt.Errorf("repository: GetMember decode: %w", err)
	}
	return m, nil
}

// Spend returns the member's cumulative model spend.
func (c *Client) Spend(ctx context.Context, memberID string) (domain.Money, error) {
	m, err := c.GetMember(ctx, memberID)
	if err != nil {
		return 0, err
	}
	return m.Spend, nil
}

// AddSpend atomically increments the member's spend counter and returns the
// new total. Concurrent callers never lose an increment.
func (c *Client) AddSpend(ctx context.Context, memberID string, amount domain.Money) (domain.Money, error) {
	out, err := c.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(c.tableName),
		Key:                 profileKey(memberID),
		UpdateExpression:    aws.String("ADD spendMicros :amount"),
		ConditionExpression: aws.String("attribute_exists(PK)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":amount": numAttr(int64(amount)),
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return 0, ErrMemberNotFound
		}
		return 0, fmt.Errorf("repository: AddSpend update item: %w", err)
	}
	if out == nil {
		return 0, errors.New("repository: AddSpend: empty response")
	}
	total, err := int64Attr(out.Attributes, "spendMicros")
	if err != nil {
		return 0, fmt.Errorf("repository: AddSpend decode total: %w", err)
	}
	return domain.Money(total), nil
}

func itemToMember(memberID string, item map[string]types.AttributeValue) (domain.Member, error) {
	m := domain.Member{ID: memberID}
	m.FirstName, _ = strAttr(item, "firstName") // allow empty

	if dob, err := strAttr(item, "dateOfBirth"); err == nil && dob != "" {
		parsed, err := time.Parse(dateLayout, dob)
		if err != nil {
			return domain.Member{}, fmt.Errorf("repository: parse dateOfBirth: %w", err)
		}
		m.DateOfBirth = parsed
	}

	if _, ok := item["spendMicros"]; ok {
		spend, err := int64Attr(item, "spendMicros")
		if err != nil {
			return domain.Member{}, err
		}
		m.Spend = domain.Money(spend)
	}
	return m, nil
}
