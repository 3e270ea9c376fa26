package dynamodb

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"

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

// userItem represents the DynamoDB item structure for a user. Followers and
// Following are string sets so ADD/DELETE updates are idempotent.
type userItem struct {
	PK            string   `dynamodbav:"PK"`
	SK            string   `dynamodbav:"SK"`
	GSI1PK        string   `dynamodbav:"GSI1PK"`
	GSI1SK        string   `dynamodbav:"GSI1SK"`
	EntityType    string   `dynamodbav:"EntityType"`
	UserID        string   `dynamodbav:"UserID"`
	Username      string   `dynamodbav:"Username"`
	UsernameLower string   `dynamodbav:"UsernameLower"`
	FullName      string   `dynamodbav:"FullName"`
	FullNameLower string   `dynamodbav:"FullNameLower"`
	Email         string   `dynamodbav:"Email,omitempty"`
	PasswordHash  string   `dynamodbav:"PasswordHash,omitempty"`
	ProfileImg    string   `dynamodbav:"ProfileImg,omitempty"`
	CoverImg      string   `dynamodbav:"CoverImg,omitempty"`
	Bio           string   `dynamodbav:"Bio,omitempty"`
	Link          string   `dynamodbav:"Link,omitempty"`
	Followers     []string `dynamodbav:"Followers,stringset,omitempty"`
	Following     []string `dynamodbav:"Following,stringset,omitempty"`
	CreatedAt     string   `dynamodbav:"CreatedAt"`
}

// usernameItem reserves a username and points at its owner.
type usernameItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`
	UserID     string `dynamodbav:"UserID"`
}

func toUserItem(u *entities.User) userItem {
	lower := strings.ToLower(u.Username)
	return userItem{
		PK:            userPK(u.ID.String()),
		SK:            "PROFILE",
		GSI1PK:        usersPartition,
		GSI1SK:        "USER#" + lower,
		EntityType:    entityUser,
		UserID:        u.ID.String(),
		Username:      u.Username,
		UsernameLower: lower,
		FullName:      u.FullName,
		FullNameLower: strings.ToLower(u.FullName),
		Email:         u.Email,
		PasswordHash:  u.PasswordHash,
		ProfileImg:    u.ProfileImg,
		CoverImg:      u.CoverImg,
		Bio:           u.Bio,
		Link:          u.Link,
		Followers:     u.Followers.Strings(),
		Following:     u.Following.Strings(),
		CreatedAt:     formatTime(u.CreatedAt),
	}
}

func (i userItem) toEntity() *entities.User {
	return &entities.User{
		ID:           valueobjects.UserID(i.UserID),
		Username:     i.Username,
		FullName:     i.FullName,
		Email:        i.Email,
		PasswordHash: i.PasswordHash,
		ProfileImg:   i.ProfileImg,
		CoverImg:     i.CoverImg,
		Bio:          i.Bio,
		Link:         i.Link,
		Followers:    valueobjects.UserIDSetFromStrings(i.Followers),
		Following:    valueobjects.UserIDSetFromStrings(i.Following),
		CreatedAt:    parseTime(i.CreatedAt),
	}
}

// UserRepository implements ports.UserRepository on DynamoDB. Each side of a
// follow edge is a separate single-item update.
type UserRepository struct {
	client API
	cfg    Config
	logger *zap.Logger
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(client API, cfg Config, logger *zap.Logger) *UserRepository {
	return &UserRepository{client: client, cfg: cfg, logger: logger}
}

// Create writes the user and its username reservation in one transaction.
func (r *UserRepository) Create(ctx context.Context, user *entities.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	item := toUserItem(user)
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return pkgerrors.NewDatabaseError("marshal user", err)
	}
	guard, err := attributevalue.MarshalMap(usernameItem{
		PK:         usernamePK(item.UsernameLower),
		SK:         entityUsername,
		EntityType: entityUsername,
		UserID:     item.UserID,
	})
	if err != nil {
		return pkgerrors.NewDatabaseError("marshal username", err)
	}

	notExists := aws.String("attribute_not_exists(PK)")
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{TableName: aws.String(r.cfg.TableName), Item: av, ConditionExpression: notExists}},
			{Put: &types.Put{TableName: aws.String(r.cfg.TableName), Item: guard, ConditionExpression: notExists}},
		},
	})
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) {
			return pkgerrors.NewConflictError("user or username already exists").WithCause(err)
		}
		return pkgerrors.NewDatabaseError("create user", err)
	}

	r.logger.Info("User created", zap.String("userID", item.UserID), zap.String("username", item.Username))
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id valueobjects.UserID) (*entities.User, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.cfg.TableName),
		Key:            keyOf(userPK(id.String()), "PROFILE"),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("get user", err)
	}
	if out.Item == nil {
		return nil, pkgerrors.NewNotFoundError("user")
	}

	var item userItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, pkgerrors.NewDatabaseError("unmarshal user", err)
	}
	return item.toEntity(), nil
}

// GetByUsername resolves the username reservation and loads its owner
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*entities.User, error) {
	lower := strings.ToLower(username)
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.cfg.TableName),
		Key:       keyOf(usernamePK(lower), entityUsername),
	})
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("get username", err)
	}
	if out.Item == nil {
		return nil, pkgerrors.NewNotFoundError("user")
	}

	var guard usernameItem
	if err := attributevalue.UnmarshalMap(out.Item, &guard); err != nil {
		return nil, pkgerrors.NewDatabaseError("unmarshal username", err)
	}
	return r.GetByID(ctx, valueobjects.UserID(guard.UserID))
}

// GetByIDs batch-loads users, retrying unprocessed keys
func (r *UserRepository) GetByIDs(ctx context.Context, ids []valueobjects.UserID) ([]*entities.User, error) {
	seen := make(map[valueobjects.UserID]bool, len(ids))
	var keys []map[string]types.AttributeValue
	for _, id := range ids {
		if seen[id] || id.IsZero() {
			continue
		}
		seen[id] = true
		keys = append(keys, keyOf(userPK(id.String()), "PROFILE"))
	}

	users := make([]*entities.User, 0, len(keys))
	for start := 0; start < len(keys); start += maxBatchGet {
		end := start + maxBatchGet
		if end > len(keys) {
			end = len(keys)
		}

		request := map[string]types.KeysAndAttributes{
			r.cfg.TableName: {Keys: keys[start:end]},
		}
		for attempt := 0; len(request) > 0; attempt++ {
			if attempt == maxRetries {
				return nil, pkgerrors.NewDatabaseError("batch get users", errUnprocessed)
			}
			out, err := r.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{RequestItems: request})
			if err != nil {
				return nil, pkgerrors.NewDatabaseError("batch get users", err)
			}
			for _, raw := range out.Responses[r.cfg.TableName] {
				var item userItem
				if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
					return nil, pkgerrors.NewDatabaseError("unmarshal user", err)
				}
				users = append(users, item.toEntity())
			}
			request = out.UnprocessedKeys
		}
	}
	return users, nil
}

func (r *UserRepository) AddFollower(ctx context.Context, user, follower valueobjects.UserID) error {
	return r.updateSet(ctx, user, "ADD", "Followers", follower)
}

func (r *UserRepository) RemoveFollower(ctx context.Context, user, follower valueobjects.UserID) error {
	return r.updateSet(ctx, user, "DELETE", "Followers", follower)
}

func (r *UserRepository) AddFollowing(ctx context.Context, user, followee valueobjects.UserID) error {
	return r.updateSet(ctx, user, "ADD", "Following", followee)
}

func (r *UserRepository) RemoveFollowing(ctx context.Context, user, followee valueobjects.UserID) error {
	return r.updateSet(ctx, user, "DELETE", "Following", followee)
}

func (r *UserRepository) updateSet(ctx context.Context, user valueobjects.UserID, action, attr string, member valueobjects.UserID) error {
	_, err := r.client.UpdateItem(ctx, setUpdate(r.cfg.TableName, user, action, attr, member))
	if err != nil {
		if isConditionalCheckFailed(err) {
			return pkgerrors.NewNotFoundError("user")
		}
		r.logger.Error("Failed to update follow set",
			zap.String("userID", user.String()),
			zap.String("attribute", attr),
			zap.String("action", action),
			zap.Error(err),
		)
		return pkgerrors.NewDatabaseError("update "+attr, err)
	}
	return nil
}

// setUpdate builds an ADD or DELETE of one member on a user's string set,
// guarded by the user existing.
func setUpdate(table string, user valueobjects.UserID, action, attr string, member valueobjects.UserID) *dynamodb.UpdateItemInput {
	return &dynamodb.UpdateItemInput{
		TableName:                 aws.String(table),
		Key:                       keyOf(userPK(user.String()), "PROFILE"),
		UpdateExpression:          aws.String(action + " #set :member"),
		ConditionExpression:       aws.String("attribute_exists(PK)"),
		ExpressionAttributeNames:  map[string]string{"#set": attr},
		ExpressionAttributeValues: map[string]types.AttributeValue{":member": stringSet(member.String())},
	}
}

// SampleRandom loads the user index and picks n at random. DynamoDB has no
// random read, so this is linear in the number of users.
func (r *UserRepository) SampleRandom(ctx context.Context, n int, exclude []valueobjects.UserID) ([]*entities.User, error) {
	users, err := r.ListAll(ctx, exclude)
	if err != nil {
		return nil, err
	}
	rand.Shuffle(len(users), func(i, j int) { users[i], users[j] = users[j], users[i] })
	if n < len(users) {
		users = users[:n]
	}
	return users, nil
}

// ListAll returns every user not in exclude, ordered by username
func (r *UserRepository) ListAll(ctx context.Context, exclude []valueobjects.UserID) ([]*entities.User, error) {
	users, err := r.queryUsers(ctx, nil)
	if err != nil {
		return nil, err
	}

	skip := valueobjects.UserIDSet(exclude)
	out := users[:0]
	for _, u := range users {
		if !skip.Contains(u.ID) {
			out = append(out, u)
		}
	}
	return out, nil
}

// Search filters the user index on lower-cased username and full name
func (r *UserRepository) Search(ctx context.Context, query string) ([]*entities.User, error) {
	q := strings.ToLower(query)
	filter := expression.Name("UsernameLower").Contains(q).Or(expression.Name("FullNameLower").Contains(q))
	return r.queryUsers(ctx, &filter)
}

func (r *UserRepository) queryUsers(ctx context.Context, filter *expression.ConditionBuilder) ([]*entities.User, error) {
	builder := expression.NewBuilder().
		WithKeyCondition(expression.Key("GSI1PK").Equal(expression.Value(usersPartition)))
	if filter != nil {
		builder = builder.WithFilter(*filter)
	}
	expr, err := builder.Build()
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("build user query", err)
	}

	items, err := queryAll(ctx, r.client, &dynamodb.QueryInput{
		TableName:                 aws.String(r.cfg.TableName),
		IndexName:                 aws.String(r.cfg.GSI1IndexName),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("query users", err)
	}

	var raw []userItem
	if err := attributevalue.UnmarshalListOfMaps(items, &raw); err != nil {
		return nil, pkgerrors.NewDatabaseError("unmarshal users", err)
	}
	users := make([]*entities.User, len(raw))
	for i, item := range raw {
		users[i] = item.toEntity()
	}
	return users, nil
}

// TransactionalUserRepository writes both sides of a follow edge in a single
// DynamoDB transaction.
type TransactionalUserRepository struct {
	*UserRepository
}

// NewTransactionalUserRepository creates a user repository whose follow
// toggles are atomic
func NewTransactionalUserRepository(client API, cfg Config, logger *zap.Logger) *TransactionalUserRepository {
	return &TransactionalUserRepository{UserRepository: NewUserRepository(client, cfg, logger)}
}

func (r *TransactionalUserRepository) Follow(ctx context.Context, actor, target valueobjects.UserID) error {
	return r.writeEdge(ctx, "ADD", actor, target)
}

func (r *TransactionalUserRepository) Unfollow(ctx context.Context, actor, target valueobjects.UserID) error {
	return r.writeEdge(ctx, "DELETE", actor, target)
}

func (r *TransactionalUserRepository) writeEdge(ctx context.Context, action string, actor, target valueobjects.UserID) error {
	_, err := r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Update: txUpdate(setUpdate(r.cfg.TableName, target, action, "Followers", actor))},
			{Update: txUpdate(setUpdate(r.cfg.TableName, actor, action, "Following", target))},
		},
	})
	if err != nil {
		r.logger.Warn("Follow transaction failed",
			zap.String("userID", actor.String()),
			zap.String("targetID", target.String()),
			zap.String("action", action),
			zap.Error(err),
		)
		return translateTxError("write follow edge", err)
	}
	return nil
}

func txUpdate(in *dynamodb.UpdateItemInput) *types.Update {
	return &types.Update{
		TableName:                 in.TableName,
		Key:                       in.Key,
		UpdateExpression:          in.UpdateExpression,
		ConditionExpression:       in.ConditionExpression,
		ExpressionAttributeNames:  in.ExpressionAttributeNames,
		ExpressionAttributeValues: in.ExpressionAttributeValues,
	}
}
