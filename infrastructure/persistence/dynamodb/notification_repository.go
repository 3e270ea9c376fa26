package dynamodb

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"devconsole/domain/core/entities"
	"devconsole/domain/core/valueobjects"
	pkgerrors "devconsole/pkg/errors"
)

type notificationItem struct {
	PK             string `dynamodbav:"PK"`
	SK             string `dynamodbav:"SK"`
	EntityType     string `dynamodbav:"EntityType"`
	NotificationID string `dynamodbav:"NotificationID"`
	Kind           string `dynamodbav:"Kind"`
	FromID         string `dynamodbav:"FromID"`
	ToID           string `dynamodbav:"ToID"`
	CreatedAt      string `dynamodbav:"CreatedAt"`
}

func (i notificationItem) toEntity() *entities.Notification {
	return &entities.Notification{
		ID:        valueobjects.NotificationID(i.NotificationID),
		Kind:      entities.NotificationKind(i.Kind),
		From:      valueobjects.UserID(i.FromID),
		To:        valueobjects.UserID(i.ToID),
		CreatedAt: parseTime(i.CreatedAt),
	}
}

// NotificationRepository keeps each recipient's notifications in one
// partition, sorted by time.
type NotificationRepository struct {
	client API
	cfg    Config
	logger *zap.Logger
}

// NewNotificationRepository creates a new NotificationRepository
func NewNotificationRepository(client API, cfg Config, logger *zap.Logger) *NotificationRepository {
	return &NotificationRepository{client: client, cfg: cfg, logger: logger}
}

func (r *NotificationRepository) Save(ctx context.Context, n *entities.Notification) error {
	av, err := attributevalue.MarshalMap(notificationItem{
		PK:             notificationPK(n.To.String()),
		SK:             "NOTIF#" + timeSortKey(n.CreatedAt, n.ID.String()),
		EntityType:     entityNotification,
		NotificationID: n.ID.String(),
		Kind:           string(n.Kind),
		FromID:         n.From.String(),
		ToID:           n.To.String(),
		CreatedAt:      formatTime(n.CreatedAt),
	})
	if err != nil {
		return pkgerrors.NewDatabaseError("marshal notification", err)
	}

	if _, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.cfg.TableName),
		Item:      av,
	}); err != nil {
		return pkgerrors.NewDatabaseError("save notification", err)
	}
	return nil
}

// ListFor reads the recipient's partition newest first
func (r *NotificationRepository) ListFor(ctx context.Context, user valueobjects.UserID) ([]*entities.Notification, error) {
	items, err := r.queryPartition(ctx, user, false)
	if err != nil {
		return nil, err
	}

	var raw []notificationItem
	if err := attributevalue.UnmarshalListOfMaps(items, &raw); err != nil {
		return nil, pkgerrors.NewDatabaseError("unmarshal notifications", err)
	}
	out := make([]*entities.Notification, len(raw))
	for i, item := range raw {
		out[i] = item.toEntity()
	}
	return out, nil
}

// DeleteAllFor collects the partition's keys and removes them in batches
func (r *NotificationRepository) DeleteAllFor(ctx context.Context, user valueobjects.UserID) (int, error) {
	items, err := r.queryPartition(ctx, user, true)
	if err != nil {
		return 0, err
	}

	requests := make([]types.WriteRequest, 0, len(items))
	for _, item := range items {
		requests = append(requests, types.WriteRequest{
			DeleteRequest: &types.DeleteRequest{Key: map[string]types.AttributeValue{
				"PK": item["PK"],
				"SK": item["SK"],
			}},
		})
	}

	for start := 0; start < len(requests); start += maxBatchWrite {
		end := start + maxBatchWrite
		if end > len(requests) {
			end = len(requests)
		}
		if err := r.batchWrite(ctx, requests[start:end]); err != nil {
			return 0, err
		}
	}

	r.logger.Debug("Notifications cleared", zap.String("userID", user.String()), zap.Int("count", len(requests)))
	return len(requests), nil
}

func (r *NotificationRepository) batchWrite(ctx context.Context, batch []types.WriteRequest) error {
	pending := map[string][]types.WriteRequest{r.cfg.TableName: batch}
	for attempt := 0; len(pending) > 0; attempt++ {
		if attempt == maxRetries {
			return pkgerrors.NewDatabaseError("delete notifications", errUnprocessed)
		}
		out, err := r.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
		if err != nil {
			return pkgerrors.NewDatabaseError("delete notifications", err)
		}
		pending = out.UnprocessedItems
	}
	return nil
}

func (r *NotificationRepository) queryPartition(ctx context.Context, user valueobjects.UserID, keysOnly bool) ([]map[string]types.AttributeValue, error) {
	builder := expression.NewBuilder().WithKeyCondition(
		expression.Key("PK").Equal(expression.Value(notificationPK(user.String()))).
			And(expression.Key("SK").BeginsWith("NOTIF#")),
	)
	if keysOnly {
		builder = builder.WithProjection(expression.NamesList(expression.Name("PK"), expression.Name("SK")))
	}
	expr, err := builder.Build()
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("build notification query", err)
	}

	items, err := queryAll(ctx, r.client, &dynamodb.QueryInput{
		TableName:                 aws.String(r.cfg.TableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ProjectionExpression:      expr.Projection(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(false),
	})
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("query notifications", err)
	}
	return items, nil
}
