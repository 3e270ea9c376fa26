package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"devconsole/domain/core/entities"
	"devconsole/domain/core/feed"
	"devconsole/domain/core/valueobjects"
	pkgerrors "devconsole/pkg/errors"
)

// fakeAPI embeds API so each test only supplies the calls it expects.
// Unexpected calls panic on the nil interface.
type fakeAPI struct {
	API

	getItem      func(*dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error)
	putItem      func(*dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error)
	updateItem   func(*dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error)
	query        func(*dynamodb.QueryInput) (*dynamodb.QueryOutput, error)
	batchGet     func(*dynamodb.BatchGetItemInput) (*dynamodb.BatchGetItemOutput, error)
	batchWrite   func(*dynamodb.BatchWriteItemInput) (*dynamodb.BatchWriteItemOutput, error)
	transactions []*dynamodb.TransactWriteItemsInput
	transactErr  error
}

func (f *fakeAPI) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return f.getItem(in)
}

func (f *fakeAPI) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	return f.putItem(in)
}

func (f *fakeAPI) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	return f.updateItem(in)
}

func (f *fakeAPI) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	return f.query(in)
}

func (f *fakeAPI) BatchGetItem(_ context.Context, in *dynamodb.BatchGetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error) {
	return f.batchGet(in)
}

func (f *fakeAPI) BatchWriteItem(_ context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	return f.batchWrite(in)
}

func (f *fakeAPI) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.transactions = append(f.transactions, in)
	if f.transactErr != nil {
		return nil, f.transactErr
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

var testConfig = Config{TableName: "devconsole", GSI1IndexName: "GSI1", GSI2IndexName: "GSI2"}

func marshalItem(t *testing.T, v interface{}) map[string]types.AttributeValue {
	t.Helper()
	av, err := attributevalue.MarshalMap(v)
	require.NoError(t, err)
	return av
}

func TestUserRepository_GetByID_NotFound(t *testing.T) {
	api := &fakeAPI{getItem: func(*dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
		return &dynamodb.GetItemOutput{}, nil
	}}
	repo := NewUserRepository(api, testConfig, zap.NewNop())

	_, err := repo.GetByID(context.Background(), "ghost")

	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestUserRepository_RoundTrip(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	user := &entities.User{
		ID:        "u1",
		Username:  "Alice",
		FullName:  "Alice Liddell",
		Email:     "alice@example.com",
		Followers: valueobjects.UserIDSet{"u2"},
		Following: valueobjects.UserIDSet{"u3", "u4"},
		CreatedAt: created,
	}
	api := &fakeAPI{getItem: func(in *dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
		return &dynamodb.GetItemOutput{Item: marshalItem(t, toUserItem(user))}, nil
	}}
	repo := NewUserRepository(api, testConfig, zap.NewNop())

	got, err := repo.GetByID(context.Background(), "u1")

	require.NoError(t, err)
	assert.Equal(t, user.Username, got.Username)
	assert.Equal(t, user.Email, got.Email)
	assert.ElementsMatch(t, user.Following, got.Following)
	assert.ElementsMatch(t, user.Followers, got.Followers)
	assert.True(t, created.Equal(got.CreatedAt))
}

func TestUserRepository_Create_ReservesUsername(t *testing.T) {
	api := &fakeAPI{}
	repo := NewUserRepository(api, testConfig, zap.NewNop())

	err := repo.Create(context.Background(), &entities.User{ID: "u1", Username: "Alice"})

	require.NoError(t, err)
	require.Len(t, api.transactions, 1)
	items := api.transactions[0].TransactItems
	require.Len(t, items, 2)
	assert.Equal(t, &types.AttributeValueMemberS{Value: "USERNAME#alice"}, items[1].Put.Item["PK"])
}

func TestUserRepository_Create_Duplicate(t *testing.T) {
	api := &fakeAPI{transactErr: &types.TransactionCanceledException{}}
	repo := NewUserRepository(api, testConfig, zap.NewNop())

	err := repo.Create(context.Background(), &entities.User{ID: "u1", Username: "alice"})

	assert.True(t, pkgerrors.IsConflict(err))
}

func TestUserRepository_SetUpdates(t *testing.T) {
	var calls []*dynamodb.UpdateItemInput
	api := &fakeAPI{updateItem: func(in *dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error) {
		calls = append(calls, in)
		return &dynamodb.UpdateItemOutput{}, nil
	}}
	repo := NewUserRepository(api, testConfig, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, repo.AddFollower(ctx, "bob", "alice"))
	require.NoError(t, repo.RemoveFollowing(ctx, "alice", "bob"))

	require.Len(t, calls, 2)
	assert.Equal(t, "ADD #set :member", aws.ToString(calls[0].UpdateExpression))
	assert.Equal(t, "Followers", calls[0].ExpressionAttributeNames["#set"])
	assert.Equal(t, "DELETE #set :member", aws.ToString(calls[1].UpdateExpression))
	assert.Equal(t, "Following", calls[1].ExpressionAttributeNames["#set"])
	assert.Equal(t, &types.AttributeValueMemberSS{Value: []string{"bob"}}, calls[1].ExpressionAttributeValues[":member"])
}

func TestUserRepository_SetUpdate_MissingUser(t *testing.T) {
	api := &fakeAPI{updateItem: func(*dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error) {
		return nil, &types.ConditionalCheckFailedException{}
	}}
	repo := NewUserRepository(api, testConfig, zap.NewNop())

	err := repo.AddFollowing(context.Background(), "ghost", "bob")

	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestUserRepository_GetByIDs_RetriesUnprocessed(t *testing.T) {
	calls := 0
	api := &fakeAPI{batchGet: func(in *dynamodb.BatchGetItemInput) (*dynamodb.BatchGetItemOutput, error) {
		calls++
		keys := in.RequestItems[testConfig.TableName].Keys
		out := &dynamodb.BatchGetItemOutput{Responses: map[string][]map[string]types.AttributeValue{}}
		// Serve the first key and defer the rest to the next call.
		id := keys[0]["PK"].(*types.AttributeValueMemberS).Value[len("USER#"):]
		out.Responses[testConfig.TableName] = []map[string]types.AttributeValue{
			marshalItem(t, toUserItem(&entities.User{ID: valueobjects.UserID(id), Username: id})),
		}
		if len(keys) > 1 {
			out.UnprocessedKeys = map[string]types.KeysAndAttributes{
				testConfig.TableName: {Keys: keys[1:]},
			}
		}
		return out, nil
	}}
	repo := NewUserRepository(api, testConfig, zap.NewNop())

	users, err := repo.GetByIDs(context.Background(), []valueobjects.UserID{"a", "b", "a", "c"})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	require.Len(t, users, 3)
}

func TestTransactionalUserRepository_Follow(t *testing.T) {
	api := &fakeAPI{}
	repo := NewTransactionalUserRepository(api, testConfig, zap.NewNop())

	require.NoError(t, repo.Follow(context.Background(), "alice", "bob"))

	require.Len(t, api.transactions, 1)
	items := api.transactions[0].TransactItems
	require.Len(t, items, 2)
	assert.Equal(t, keyOf(userPK("bob"), "PROFILE"), items[0].Update.Key)
	assert.Equal(t, "Followers", items[0].Update.ExpressionAttributeNames["#set"])
	assert.Equal(t, keyOf(userPK("alice"), "PROFILE"), items[1].Update.Key)
	assert.Equal(t, "Following", items[1].Update.ExpressionAttributeNames["#set"])
}

func TestTransactionalUserRepository_Errors(t *testing.T) {
	tests := []struct {
		name  string
		code  string
		check func(error) bool
	}{
		{name: "missing user", code: "ConditionalCheckFailed", check: pkgerrors.IsNotFound},
		{name: "concurrent write", code: "TransactionConflict", check: pkgerrors.IsConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{transactErr: &types.TransactionCanceledException{
				CancellationReasons: []types.CancellationReason{{Code: aws.String("None")}, {Code: aws.String(tt.code)}},
			}}
			repo := NewTransactionalUserRepository(api, testConfig, zap.NewNop())

			err := repo.Unfollow(context.Background(), "alice", "bob")

			assert.True(t, tt.check(err), "got %v", err)
		})
	}
}

func TestPostRepository_RoundTrip(t *testing.T) {
	post := &entities.Post{
		ID:       "p1",
		AuthorID: "alice",
		Text:     "hello",
		Blocks: []entities.Block{
			{Type: entities.BlockTypeCode, CodeSnippet: "fmt.Println()", Language: "go"},
			{Type: entities.BlockTypeImage, ImageURL: "https://img/1.png"},
		},
		Likes:     valueobjects.UserIDSet{"bob"},
		Comments:  []entities.Comment{{AuthorID: "bob", Text: "nice", CreatedAt: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)}},
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	var stored map[string]types.AttributeValue
	api := &fakeAPI{
		putItem: func(in *dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error) {
			stored = in.Item
			return &dynamodb.PutItemOutput{}, nil
		},
		getItem: func(*dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
			return &dynamodb.GetItemOutput{Item: stored}, nil
		},
	}
	repo := NewPostRepository(api, testConfig, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, post))
	got, err := repo.GetByID(ctx, "p1")

	require.NoError(t, err)
	assert.Equal(t, post.Blocks, got.Blocks)
	assert.Equal(t, post.Likes, got.Likes)
	require.Len(t, got.Comments, 1)
	assert.Equal(t, "nice", got.Comments[0].Text)
	assert.Equal(t, &types.AttributeValueMemberS{Value: "AUTHOR#alice"}, stored["GSI2PK"])
}

func TestPostRepository_Query_EmptyAuthors(t *testing.T) {
	api := &fakeAPI{}
	repo := NewPostRepository(api, testConfig, zap.NewNop())

	posts, err := repo.Query(context.Background(), feed.Filter{Authors: []valueobjects.UserID{}})

	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestPostRepository_Query_FansOutPerAuthor(t *testing.T) {
	api := &fakeAPI{query: func(in *dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
		assert.Equal(t, "GSI2", aws.ToString(in.IndexName))
		var author string
		for _, v := range in.ExpressionAttributeValues {
			author = v.(*types.AttributeValueMemberS).Value[len("AUTHOR#"):]
		}
		item := toPostItem(&entities.Post{ID: valueobjects.PostID("post-" + author), AuthorID: valueobjects.UserID(author)})
		return &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{marshalItem(t, item)}}, nil
	}}
	repo := NewPostRepository(api, testConfig, zap.NewNop())

	posts, err := repo.Query(context.Background(), feed.Filter{Authors: []valueobjects.UserID{"a", "b", "c"}})

	require.NoError(t, err)
	ids := make([]string, len(posts))
	for i, p := range posts {
		ids[i] = p.ID.String()
	}
	assert.ElementsMatch(t, []string{"post-a", "post-b", "post-c"}, ids)
}

func TestPostRepository_Query_Paginates(t *testing.T) {
	pages := 0
	api := &fakeAPI{query: func(in *dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
		pages++
		item := marshalItem(t, toPostItem(&entities.Post{ID: valueobjects.PostID(fmt.Sprintf("p%d", pages)), AuthorID: "a"}))
		out := &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{item}}
		if pages == 1 {
			out.LastEvaluatedKey = keyOf("POST#p1", "POST")
		} else {
			assert.NotNil(t, in.ExclusiveStartKey)
		}
		return out, nil
	}}
	repo := NewPostRepository(api, testConfig, zap.NewNop())

	posts, err := repo.Query(context.Background(), feed.Filter{LikedBy: "bob"})

	require.NoError(t, err)
	assert.Len(t, posts, 2)
	assert.Equal(t, 2, pages)
}

func TestPostRepository_ToggleLike_RetriesOnRace(t *testing.T) {
	base := &entities.Post{ID: "p1", AuthorID: "alice"}
	attempts := 0
	api := &fakeAPI{
		getItem: func(*dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
			return &dynamodb.GetItemOutput{Item: marshalItem(t, toPostItem(base))}, nil
		},
		updateItem: func(in *dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error) {
			attempts++
			if attempts == 1 {
				return nil, &types.ConditionalCheckFailedException{}
			}
			assert.Equal(t, "ADD Likes :likes", aws.ToString(in.UpdateExpression))
			liked := base.Clone()
			liked.Likes = valueobjects.UserIDSet{"bob"}
			return &dynamodb.UpdateItemOutput{Attributes: marshalItem(t, toPostItem(liked))}, nil
		},
	}
	repo := NewPostRepository(api, testConfig, zap.NewNop())

	liked, post, err := repo.ToggleLike(context.Background(), "p1", "bob")

	require.NoError(t, err)
	assert.True(t, liked)
	assert.True(t, post.IsLikedBy("bob"))
	assert.Equal(t, 2, attempts)
}

func TestPostRepository_AppendComment_MissingPost(t *testing.T) {
	api := &fakeAPI{updateItem: func(*dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error) {
		return nil, &types.ConditionalCheckFailedException{}
	}}
	repo := NewPostRepository(api, testConfig, zap.NewNop())

	_, err := repo.AppendComment(context.Background(), "gone", entities.Comment{AuthorID: "bob", Text: "hi"})

	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestNotificationRepository_ListFor_NewestFirst(t *testing.T) {
	api := &fakeAPI{query: func(in *dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
		assert.False(t, aws.ToBool(in.ScanIndexForward))
		return &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{
			marshalItem(t, notificationItem{NotificationID: "n2", Kind: "like", FromID: "bob", ToID: "alice"}),
			marshalItem(t, notificationItem{NotificationID: "n1", Kind: "follow", FromID: "carol", ToID: "alice"}),
		}}, nil
	}}
	repo := NewNotificationRepository(api, testConfig, zap.NewNop())

	got, err := repo.ListFor(context.Background(), "alice")

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, valueobjects.NotificationID("n2"), got[0].ID)
	assert.Equal(t, entities.NotificationFollow, got[1].Kind)
}

func TestNotificationRepository_DeleteAllFor_Batches(t *testing.T) {
	items := make([]map[string]types.AttributeValue, 30)
	for i := range items {
		items[i] = keyOf(notificationPK("alice"), fmt.Sprintf("NOTIF#%02d", i))
	}
	var batchSizes []int
	api := &fakeAPI{
		query: func(*dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
			return &dynamodb.QueryOutput{Items: items}, nil
		},
		batchWrite: func(in *dynamodb.BatchWriteItemInput) (*dynamodb.BatchWriteItemOutput, error) {
			batchSizes = append(batchSizes, len(in.RequestItems[testConfig.TableName]))
			return &dynamodb.BatchWriteItemOutput{}, nil
		},
	}
	repo := NewNotificationRepository(api, testConfig, zap.NewNop())

	n, err := repo.DeleteAllFor(context.Background(), "alice")

	require.NoError(t, err)
	assert.Equal(t, 30, n)
	assert.Equal(t, []int{25, 5}, batchSizes)
}

func TestNotificationRepository_Save_Error(t *testing.T) {
	api := &fakeAPI{putItem: func(*dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error) {
		return nil, errors.New("throttled")
	}}
	repo := NewNotificationRepository(api, testConfig, zap.NewNop())

	err := repo.Save(context.Background(), entities.NewNotification(entities.NotificationLike, "bob", "alice", time.Now()))

	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeDatabase))
}
