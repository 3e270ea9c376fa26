package dynamodb

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"devconsole/domain/core/entities"
	"devconsole/domain/core/feed"
	"devconsole/domain/core/valueobjects"
	pkgerrors "devconsole/pkg/errors"
)

// authorQueryConcurrency bounds the fan-out of per-author index queries.
const authorQueryConcurrency = 8

type blockItem struct {
	Type        string `dynamodbav:"Type"`
	CodeSnippet string `dynamodbav:"CodeSnippet,omitempty"`
	Language    string `dynamodbav:"Language,omitempty"`
	ImageURL    string `dynamodbav:"ImageURL,omitempty"`
}

type commentItem struct {
	AuthorID  string `dynamodbav:"AuthorID"`
	Text      string `dynamodbav:"Text"`
	CreatedAt string `dynamodbav:"CreatedAt"`
}

// postItem represents the DynamoDB item structure for a post
type postItem struct {
	PK         string        `dynamodbav:"PK"`
	SK         string        `dynamodbav:"SK"`
	GSI1PK     string        `dynamodbav:"GSI1PK"`
	GSI1SK     string        `dynamodbav:"GSI1SK"`
	GSI2PK     string        `dynamodbav:"GSI2PK"`
	GSI2SK     string        `dynamodbav:"GSI2SK"`
	EntityType string        `dynamodbav:"EntityType"`
	PostID     string        `dynamodbav:"PostID"`
	AuthorID   string        `dynamodbav:"AuthorID"`
	Text       string        `dynamodbav:"Text,omitempty"`
	Blocks     []blockItem   `dynamodbav:"Blocks"`
	Likes      []string      `dynamodbav:"Likes,stringset,omitempty"`
	Comments   []commentItem `dynamodbav:"Comments"`
	CreatedAt  string        `dynamodbav:"CreatedAt"`
}

func toPostItem(p *entities.Post) postItem {
	sortKey := timeSortKey(p.CreatedAt, p.ID.String())
	item := postItem{
		PK:         postPK(p.ID.String()),
		SK:         entityPost,
		GSI1PK:     postsPartition,
		GSI1SK:     sortKey,
		GSI2PK:     authorPK(p.AuthorID.String()),
		GSI2SK:     sortKey,
		EntityType: entityPost,
		PostID:     p.ID.String(),
		AuthorID:   p.AuthorID.String(),
		Text:       p.Text,
		Blocks:     make([]blockItem, 0, len(p.Blocks)),
		Likes:      p.Likes.Strings(),
		Comments:   make([]commentItem, 0, len(p.Comments)),
		CreatedAt:  formatTime(p.CreatedAt),
	}
	for _, b := range p.Blocks {
		item.Blocks = append(item.Blocks, blockItem{
			Type:        string(b.Type),
			CodeSnippet: b.CodeSnippet,
			Language:    b.Language,
			ImageURL:    b.ImageURL,
		})
	}
	for _, c := range p.Comments {
		item.Comments = append(item.Comments, toCommentItem(c))
	}
	return item
}

func toCommentItem(c entities.Comment) commentItem {
	return commentItem{AuthorID: c.AuthorID.String(), Text: c.Text, CreatedAt: formatTime(c.CreatedAt)}
}

func (i postItem) toEntity() *entities.Post {
	p := &entities.Post{
		ID:        valueobjects.PostID(i.PostID),
		AuthorID:  valueobjects.UserID(i.AuthorID),
		Text:      i.Text,
		Blocks:    make([]entities.Block, 0, len(i.Blocks)),
		Likes:     valueobjects.UserIDSetFromStrings(i.Likes),
		Comments:  make([]entities.Comment, 0, len(i.Comments)),
		CreatedAt: parseTime(i.CreatedAt),
	}
	for _, b := range i.Blocks {
		p.Blocks = append(p.Blocks, entities.Block{
			Type:        entities.BlockType(b.Type),
			CodeSnippet: b.CodeSnippet,
			Language:    b.Language,
			ImageURL:    b.ImageURL,
		})
	}
	for _, c := range i.Comments {
		p.Comments = append(p.Comments, entities.Comment{
			AuthorID:  valueobjects.UserID(c.AuthorID),
			Text:      c.Text,
			CreatedAt: parseTime(c.CreatedAt),
		})
	}
	return p
}

// PostRepository implements ports.PostRepository on DynamoDB
type PostRepository struct {
	client API
	cfg    Config
	logger *zap.Logger
}

// NewPostRepository creates a new PostRepository
func NewPostRepository(client API, cfg Config, logger *zap.Logger) *PostRepository {
	return &PostRepository{client: client, cfg: cfg, logger: logger}
}

func (r *PostRepository) Create(ctx context.Context, post *entities.Post) error {
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now().UTC()
	}
	av, err := attributevalue.MarshalMap(toPostItem(post))
	if err != nil {
		return pkgerrors.NewDatabaseError("marshal post", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.cfg.TableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return pkgerrors.NewConflictError("post already exists")
		}
		return pkgerrors.NewDatabaseError("create post", err)
	}

	r.logger.Debug("Post created", zap.String("postID", post.ID.String()), zap.String("authorID", post.AuthorID.String()))
	return nil
}

func (r *PostRepository) GetByID(ctx context.Context, id valueobjects.PostID) (*entities.Post, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.cfg.TableName),
		Key:            keyOf(postPK(id.String()), entityPost),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("get post", err)
	}
	if out.Item == nil {
		return nil, pkgerrors.NewNotFoundError("post")
	}
	return unmarshalPost(out.Item)
}

func (r *PostRepository) Delete(ctx context.Context, id valueobjects.PostID) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(r.cfg.TableName),
		Key:                 keyOf(postPK(id.String()), entityPost),
		ConditionExpression: aws.String("attribute_exists(PK)"),
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return pkgerrors.NewNotFoundError("post")
		}
		return pkgerrors.NewDatabaseError("delete post", err)
	}
	return nil
}

// Query picks the cheapest access path for the filter: one index query per
// author for author filters, otherwise the global posts partition.
func (r *PostRepository) Query(ctx context.Context, filter feed.Filter) ([]*entities.Post, error) {
	if filter.Authors != nil {
		return r.queryAuthors(ctx, filter.Authors)
	}

	builder := expression.NewBuilder().
		WithKeyCondition(expression.Key("GSI1PK").Equal(expression.Value(postsPartition)))
	if !filter.LikedBy.IsZero() {
		builder = builder.WithFilter(expression.Name("Likes").Contains(filter.LikedBy.String()))
	}
	return r.query(ctx, r.cfg.GSI1IndexName, builder)
}

func (r *PostRepository) queryAuthors(ctx context.Context, authors []valueobjects.UserID) ([]*entities.Post, error) {
	var (
		mu    sync.Mutex
		posts = make([]*entities.Post, 0)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(authorQueryConcurrency)
	for _, author := range authors {
		author := author
		g.Go(func() error {
			builder := expression.NewBuilder().
				WithKeyCondition(expression.Key("GSI2PK").Equal(expression.Value(authorPK(author.String()))))
			found, err := r.query(gctx, r.cfg.GSI2IndexName, builder)
			if err != nil {
				return err
			}
			mu.Lock()
			posts = append(posts, found...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *PostRepository) query(ctx context.Context, index string, builder expression.Builder) ([]*entities.Post, error) {
	expr, err := builder.Build()
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("build post query", err)
	}

	items, err := queryAll(ctx, r.client, &dynamodb.QueryInput{
		TableName:                 aws.String(r.cfg.TableName),
		IndexName:                 aws.String(index),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("query posts", err)
	}

	var raw []postItem
	if err := attributevalue.UnmarshalListOfMaps(items, &raw); err != nil {
		return nil, pkgerrors.NewDatabaseError("unmarshal posts", err)
	}
	posts := make([]*entities.Post, len(raw))
	for i, item := range raw {
		posts[i] = item.toEntity()
	}
	return posts, nil
}

// ToggleLike reads the like set and writes the opposite membership,
// conditioned on the set still looking the way it was read. A lost race
// re-reads and tries again.
func (r *PostRepository) ToggleLike(ctx context.Context, id valueobjects.PostID, actor valueobjects.UserID) (bool, *entities.Post, error) {
	for attempt := 0; attempt < maxRetries; attempt++ {
		current, err := r.GetByID(ctx, id)
		if err != nil {
			return false, nil, err
		}

		liked := !current.IsLikedBy(actor)
		action, condition := "ADD", "attribute_exists(PK) AND NOT contains(Likes, :actor)"
		if !liked {
			action, condition = "DELETE", "attribute_exists(PK) AND contains(Likes, :actor)"
		}

		out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:           aws.String(r.cfg.TableName),
			Key:                 keyOf(postPK(id.String()), entityPost),
			UpdateExpression:    aws.String(action + " Likes :likes"),
			ConditionExpression: aws.String(condition),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":likes": stringSet(actor.String()),
				":actor": str(actor.String()),
			},
			ReturnValues: types.ReturnValueAllNew,
		})
		if err != nil {
			if isConditionalCheckFailed(err) {
				r.logger.Debug("Like toggle raced, retrying",
					zap.String("postID", id.String()),
					zap.Int("attempt", attempt+1),
				)
				continue
			}
			return false, nil, pkgerrors.NewDatabaseError("toggle like", err)
		}

		post, err := unmarshalPost(out.Attributes)
		if err != nil {
			return false, nil, err
		}
		return liked, post, nil
	}
	return false, nil, pkgerrors.NewConflictError("post is being modified concurrently, retry").
		WithCode(pkgerrors.CodeConcurrentLike)
}

func (r *PostRepository) AppendComment(ctx context.Context, id valueobjects.PostID, comment entities.Comment) (*entities.Post, error) {
	av, err := attributevalue.Marshal([]commentItem{toCommentItem(comment)})
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("marshal comment", err)
	}

	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.cfg.TableName),
		Key:                 keyOf(postPK(id.String()), entityPost),
		UpdateExpression:    aws.String("SET Comments = list_append(if_not_exists(Comments, :empty), :comment)"),
		ConditionExpression: aws.String("attribute_exists(PK)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":comment": av,
			":empty":   &types.AttributeValueMemberL{Value: []types.AttributeValue{}},
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return nil, pkgerrors.NewNotFoundError("post")
		}
		return nil, pkgerrors.NewDatabaseError("append comment", err)
	}
	return unmarshalPost(out.Attributes)
}

func unmarshalPost(av map[string]types.AttributeValue) (*entities.Post, error) {
	var item postItem
	if err := attributevalue.UnmarshalMap(av, &item); err != nil {
		return nil, pkgerrors.NewDatabaseError("unmarshal post", err)
	}
	return item.toEntity(), nil
}
