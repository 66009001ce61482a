package orders

import (
	"context"
	"fmt"
	"strconv"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/memorialqr/orderflow/internal/aws"
)

// Order numbers are allocated from a single counter item living in the orders
// table. The counter key can never collide with a real order number.
const (
	numberPrefix = "MQ-"
	counterKey   = "ORDER#COUNTER"
	counterBase  = 1000
)

// NumberAllocator hands out sequential, human-readable order numbers.
type NumberAllocator struct {
	client    aws.DynamoDBAPI
	tableName string
}

// NewNumberAllocator returns an allocator bound to the orders table.
func NewNumberAllocator(client aws.DynamoDBAPI, tableName string) *NumberAllocator {
	return &NumberAllocator{client: client, tableName: tableName}
}

// Next atomically increments the counter and returns the next order number
// (MQ-1001, MQ-1002, ...). Numbers skipped by failed checkout attempts are
// never reused.
func (a *NumberAllocator) Next(ctx context.Context) (string, error) {
	input := &dyn.UpdateItemInput{
		TableName: &a.tableName,
		Key: map[string]types.AttributeValue{
			"order_number": &types.AttributeValueMemberS{Value: counterKey},
		},
		UpdateExpression: awsString("SET seq_value = if_not_exists(seq_value, :base) + :one"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":base": &types.AttributeValueMemberN{Value: strconv.Itoa(counterBase)},
			":one":  &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: types.ReturnValueAllNew,
	}

	out, err := a.client.UpdateItem(ctx, input)
	if err != nil {
		return "", fmt.Errorf("increment order counter: %w", err)
	}

	seq, ok := out.Attributes["seq_value"].(*types.AttributeValueMemberN)
	if !ok {
		return "", fmt.Errorf("counter update returned no seq_value")
	}
	return numberPrefix + seq.Value, nil
}
