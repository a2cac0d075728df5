package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"
)

type fakeDynamo struct {
	getOut    *dynamodb.GetItemOutput
	getErr    error
	putErr    error
	updateOut *dynamodb.UpdateItemOutput
	updateErr error
	queryOuts []*dynamodb.QueryOutput
	queryErr  error
	batchOuts []*dynamodb.BatchWriteItemOutput
	batchErr  error

	lastGetInput  *dynamodb.GetItemInput
	lastPutInput  *dynamodb.PutItemInput
	updateInputs  []*dynamodb.UpdateItemInput
	queryInputs   []*dynamodb.QueryInput
	batchInputs   []*dynamodb.BatchWriteItemInput
	queryCallSeen int
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.lastGetInput = in
	return f.getOut, f.getErr
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.lastPutInput = in
	return &dynamodb.PutItemOutput{}, f.putErr
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.updateInputs = append(f.updateInputs, in)
	if f.updateOut == nil {
		return &dynamodb.UpdateItemOutput{}, f.updateErr
	}
	return f.updateOut, f.updateErr
}

// Query copies the input because the client reuses it across pages.
func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	cp := *in
	f.queryInputs = append(f.queryInputs, &cp)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	idx := f.queryCallSeen
	f.queryCallSeen++
	if idx >= len(f.queryOuts) {
		return &dynamodb.QueryOutput{}, nil
	}
	return f.queryOuts[idx], nil
}

func (f *fakeDynamo) BatchWriteItem(_ context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	f.batchInputs = append(f.batchInputs, in)
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	idx := len(f.batchInputs) - 1
	if idx >= len(f.batchOuts) {
		return &dynamodb.BatchWriteItemOutput{}, nil
	}
	return f.batchOuts[idx], nil
}

func mustNewClient(t *testing.T, db *fakeDynamo) *Client {
	t.Helper()
	c, err := New(db, "test-table")
	require.NoError(t, err)
	c.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return c
}

func TestNew_NilAPI(t *testing.T) {
	_, err := New(nil, "test-table")
	require.Error(t, err)
	require.Contains(t, err.Error(), "must not be nil")
}

func TestNew_EmptyTableName(t *testing.T) {
	_, err := New(&fakeDynamo{}, " ")
	require.Error(t, err)
	require.Contains(t, err.Error(), "must not be empty")
}

func TestMemberPK(t *testing.T) {
	require.Equal(t, "MEMBER#m-1", memberPK("m-1"))
}

func TestMsgSK_SortsChronologically(t *testing.T) {
	base := time.Date(2026, 2, 25, 10, 0, 0, 0, time.UTC)
	// RFC3339Nano would render these as ".5Z" and ".123Z" and sort them wrongly.
	a := msgSK(base.Add(123*time.Millisecond), "b")
	b := msgSK(base.Add(500*time.Millisecond), "a")
	require.Less(t, a, b)
	require.Equal(t, "MSG#2026-02-25T10:00:00.123000000Z#b", a)
}

func TestStrAttr_WrongType(t *testing.T) {
	_, err := strAttr(map[string]types.AttributeValue{"k": &types.AttributeValueMemberN{Value: "1"}}, "k")
	require.Error(t, err)
	require.Contains(t, err.Error(), "not a string")
}

func TestBoolAttr_Missing(t *testing.T) {
	_, err := boolAttr(map[string]types.AttributeValue{}, "active")
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing attribute")
}

func TestInt64Attr_Malformed(t *testing.T) {
	_, err := int64Attr(map[string]types.AttributeValue{"n": &types.AttributeValueMemberN{Value: "x"}}, "n")
	require.Error(t, err)
	require.Contains(t, err.Error(), "parse attribute")
}

func TestQueryMessages_FollowsPagination(t *testing.T) {
	page1 := &dynamodb.QueryOutput{
		Items:            []map[string]types.AttributeValue{{"PK": &types.AttributeValueMemberS{Value: "MEMBER#m"}}},
		LastEvaluatedKey: map[string]types.AttributeValue{"PK": &types.AttributeValueMemberS{Value: "MEMBER#m"}},
	}
	page2 := &dynamodb.QueryOutput{
		Items: []map[string]types.AttributeValue{{"PK": &types.AttributeValueMemberS{Value: "MEMBER#m"}}},
	}
	db := &fakeDynamo{queryOuts: []*dynamodb.QueryOutput{page1, page2}}
	c := mustNewClient(t, db)

	items, err := c.queryMessages(context.Background(), "m", "", nil, "")
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Len(t, db.queryInputs, 2)
	require.Nil(t, db.queryInputs[0].ExclusiveStartKey)
	require.NotNil(t, db.queryInputs[1].ExclusiveStartKey)
	require.Equal(t, "PK = :pk AND begins_with(SK, :prefix)", *db.queryInputs[0].KeyConditionExpression)
	require.True(t, *db.queryInputs[0].ScanIndexForward)
}

func TestQueryMessages_Error(t *testing.T) {
	db := &fakeDynamo{queryErr: errors.New("ResourceNotFoundException")}
	c := mustNewClient(t, db)
	_, err := c.queryMessages(context.Background(), "m", "", nil, "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "ResourceNotFoundException")
}
