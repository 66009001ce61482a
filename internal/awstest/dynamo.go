// Package awstest provides in-memory fakes for the narrow AWS interfaces the
// stores depend on. The DynamoDB fake interprets just the expressions this
// codebase issues; it is a test double, not an emulator.
package awstest

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// Dynamo is an in-memory DynamoDB fake: table -> pk value -> item.
type Dynamo struct {
	mu     sync.Mutex
	tables map[string]map[string]map[string]types.AttributeValue
}

// NewDynamo returns an empty fake.
func NewDynamo() *Dynamo {
	return &Dynamo{tables: map[string]map[string]map[string]types.AttributeValue{}}
}

func (m *Dynamo) ensureTable(tbl string) map[string]map[string]types.AttributeValue {
	if _, ok := m.tables[tbl]; !ok {
		m.tables[tbl] = map[string]map[string]types.AttributeValue{}
	}
	return m.tables[tbl]
}

// Seed stores an item directly, bypassing any conditions.
func (m *Dynamo) Seed(table, pk string, item map[string]types.AttributeValue) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureTable(table)[pk] = item
}

// Raw returns the stored item for inspection, or nil.
func (m *Dynamo) Raw(table, pk string) map[string]types.AttributeValue {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ensureTable(table)[pk]
}

func itemPK(attrs map[string]types.AttributeValue) (string, error) {
	// idempotency records also carry an order_number attribute, so the
	// idempotency key has to be checked first
	for _, k := range []string{"idempotency_key", "order_number"} {
		if v, ok := attrs[k]; ok {
			return v.(*types.AttributeValueMemberS).Value, nil
		}
	}
	return "", errors.New("no primary key attribute in item")
}

func (m *Dynamo) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	table := m.ensureTable(*params.TableName)
	pk, err := itemPK(params.Item)
	if err != nil {
		return nil, err
	}
	if params.ConditionExpression != nil && strings.Contains(*params.ConditionExpression, "attribute_not_exists") {
		if _, exists := table[pk]; exists {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	table[pk] = params.Item
	return &dyn.PutItemOutput{}, nil
}

func (m *Dynamo) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	table := m.ensureTable(*params.TableName)
	pk, err := itemPK(params.Key)
	if err != nil {
		return nil, err
	}
	item, ok := table[pk]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

func (m *Dynamo) TransactWriteItems(ctx context.Context, params *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// first pass: evaluate every condition, then apply
	for _, ti := range params.TransactItems {
		if ti.Put == nil {
			return nil, errors.New("fake supports Put transact items only")
		}
		table := m.ensureTable(*ti.Put.TableName)
		pk, err := itemPK(ti.Put.Item)
		if err != nil {
			return nil, err
		}
		if ti.Put.ConditionExpression != nil && strings.Contains(*ti.Put.ConditionExpression, "attribute_not_exists") {
			if _, exists := table[pk]; exists {
				return nil, &types.TransactionCanceledException{}
			}
		}
	}
	for _, ti := range params.TransactItems {
		table := m.ensureTable(*ti.Put.TableName)
		pk, _ := itemPK(ti.Put.Item)
		table[pk] = ti.Put.Item
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}

var valueRefPattern = regexp.MustCompile(`:[a-z_]+`)

func (m *Dynamo) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	table := m.ensureTable(*params.TableName)
	pk, err := itemPK(params.Key)
	if err != nil {
		return nil, err
	}
	item, exists := table[pk]

	// evaluate the condition expression against the current item
	if params.ConditionExpression != nil {
		cond := *params.ConditionExpression
		if strings.Contains(cond, "attribute_exists(order_number)") && !exists {
			return nil, &types.ConditionalCheckFailedException{}
		}
		if strings.Contains(cond, "attribute_not_exists(memorial_id)") && exists {
			if _, ok := item["memorial_id"]; ok {
				return nil, &types.ConditionalCheckFailedException{}
			}
		}
		for _, ref := range []string{":expected", ":pending"} {
			if !strings.Contains(cond, "#s = "+ref) {
				continue
			}
			want := params.ExpressionAttributeValues[ref].(*types.AttributeValueMemberS).Value
			var got string
			if exists {
				if sv, ok := item["status"].(*types.AttributeValueMemberS); ok {
					got = sv.Value
				}
			}
			if got != want {
				return nil, &types.ConditionalCheckFailedException{}
			}
		}
	}

	if !exists {
		// DynamoDB upserts on unconditional updates
		item = map[string]types.AttributeValue{}
		for k, v := range params.Key {
			item[k] = v
		}
		table[pk] = item
	}

	expr := strings.TrimPrefix(*params.UpdateExpression, "SET ")
	for _, assignment := range splitAssignments(expr) {
		parts := strings.SplitN(assignment, " = ", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("fake cannot parse assignment %q", assignment)
		}
		name := parts[0]
		if resolved, ok := params.ExpressionAttributeNames[name]; ok {
			name = resolved
		}
		rhs := parts[1]

		if strings.Contains(rhs, "if_not_exists") {
			// counter arithmetic: if_not_exists(attr, :base) + :inc
			refs := valueRefPattern.FindAllString(rhs, -1)
			if len(refs) != 2 {
				return nil, fmt.Errorf("fake cannot parse counter %q", rhs)
			}
			base := numericValue(params.ExpressionAttributeValues[refs[0]])
			inc := numericValue(params.ExpressionAttributeValues[refs[1]])
			current := base
			if existing, ok := item[name].(*types.AttributeValueMemberN); ok {
				current, _ = strconv.ParseInt(existing.Value, 10, 64)
			}
			item[name] = &types.AttributeValueMemberN{Value: strconv.FormatInt(current+inc, 10)}
			continue
		}

		val, ok := params.ExpressionAttributeValues[rhs]
		if !ok {
			return nil, fmt.Errorf("fake missing value for %q", rhs)
		}
		item[name] = val
	}

	out := &dyn.UpdateItemOutput{}
	if params.ReturnValues == types.ReturnValueAllNew || params.ReturnValues == types.ReturnValueUpdatedNew {
		out.Attributes = item
	}
	return out, nil
}

// splitAssignments splits "a = :x, b = if_not_exists(b, :base) + :one" on
// top-level commas only, never inside a function call.
func splitAssignments(expr string) []string {
	var out []string
	depth, start := 0, 0
	for i, r := range expr {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(expr[start:i]))
				start = i + 1
			}
		}
	}
	out = append(out, strings.TrimSpace(expr[start:]))
	return out
}

func numericValue(v types.AttributeValue) int64 {
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0
	}
	i, _ := strconv.ParseInt(n.Value, 10, 64)
	return i
}

// SQS is an in-memory publisher fake recording every sent message.
type SQS struct {
	mu   sync.Mutex
	Sent []sqs.SendMessageInput

	// Fail makes the next SendMessage calls return an error.
	Fail bool
}

// NewSQS returns an empty fake.
func NewSQS() *SQS {
	return &SQS{}
}

func (q *SQS) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.Fail {
		return nil, errors.New("sqs unavailable")
	}
	q.Sent = append(q.Sent, *params)
	return &sqs.SendMessageOutput{}, nil
}

// SentCount returns the number of delivered messages.
func (q *SQS) SentCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.Sent)
}
