package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	pkgerrors "devconsole/pkg/errors"
)

// API is the part of *dynamodb.Client the repositories call.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	BatchGetItem(ctx context.Context, params *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Config names the table and indexes. The table uses PK/SK with two
// overloaded GSIs:
//
//	GSI1  USERS  / USER#<username>      every user
//	      POSTS  / <createdAt>#<postID> every post, newest last
//	GSI2  AUTHOR#<id> / <createdAt>#<postID>
type Config struct {
	TableName     string
	GSI1IndexName string
	GSI2IndexName string
}

const (
	entityUser         = "USER"
	entityUsername     = "USERNAME"
	entityPost         = "POST"
	entityNotification = "NOTIFICATION"

	usersPartition = "USERS"
	postsPartition = "POSTS"

	// sortableTime keeps every timestamp the same width so sort keys order
	// lexically the same way they order in time.
	sortableTime = "2006-01-02T15:04:05.000000000Z"

	maxBatchGet   = 100
	maxBatchWrite = 25
	maxRetries    = 5
)

func userPK(id string) string         { return "USER#" + id }
func usernamePK(lower string) string  { return "USERNAME#" + lower }
func postPK(id string) string         { return "POST#" + id }
func authorPK(id string) string       { return "AUTHOR#" + id }
func notificationPK(to string) string { return "NOTIFY#" + to }

func formatTime(t time.Time) string {
	return t.UTC().Format(sortableTime)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(sortableTime, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t.UTC()
}

func timeSortKey(t time.Time, id string) string {
	return fmt.Sprintf("%s#%s", formatTime(t), id)
}

func keyOf(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

func stringSet(values ...string) types.AttributeValue {
	return &types.AttributeValueMemberSS{Value: values}
}

func str(v string) types.AttributeValue {
	return &types.AttributeValueMemberS{Value: v}
}

func isConditionalCheckFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

// translateTxError maps a cancelled transaction to the domain error that
// caused it: a failed existence check is a missing record, a transaction
// conflict is a concurrent write to the same item.
func translateTxError(op string, err error) error {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		return pkgerrors.NewDatabaseError(op, err)
	}
	for _, reason := range tce.CancellationReasons {
		switch aws.ToString(reason.Code) {
		case "ConditionalCheckFailed":
			return pkgerrors.NewNotFoundError("user")
		case "TransactionConflict":
			return pkgerrors.NewConflictError("concurrent update to follow graph, retry").
				WithCode(pkgerrors.CodeConcurrentFollow).
				WithCause(err)
		}
	}
	return pkgerrors.NewDatabaseError(op, err)
}

// queryAll follows LastEvaluatedKey until the query is exhausted.
func queryAll(ctx context.Context, client API, input *dynamodb.QueryInput) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	for {
		out, err := client.Query(ctx, input)
		if err != nil {
			return nil, err
		}
		items = append(items, out.Items...)
		if len(out.LastEvaluatedKey) == 0 {
			return items, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

var errUnprocessed = errors.New("unprocessed items remained after retries")
