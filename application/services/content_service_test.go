package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"devconsole/domain/core/entities"
	"devconsole/domain/core/valueobjects"
	"devconsole/infrastructure/persistence/memory"
	pkgerrors "devconsole/pkg/errors"
)

func TestContentService_ToggleLike(t *testing.T) {
	ctx := context.Background()

	t.Run("like notifies author once and unlike is silent", func(t *testing.T) {
		f := newFixture(t, "author", "fan")
		f.addPost(t, "P", "author", 1)

		outcome, err := f.content.ToggleLike(ctx, "fan", "P")
		require.NoError(t, err)
		assert.Equal(t, Liked, outcome)

		outcome, err = f.content.ToggleLike(ctx, "fan", "P")
		require.NoError(t, err)
		assert.Equal(t, Unliked, outcome)

		notes, _ := f.notifications.ListFor(ctx, "author")
		require.Len(t, notes, 1)
		assert.Equal(t, entities.NotificationLike, notes[0].Kind)
		assert.Equal(t, valueobjects.UserID("fan"), notes[0].From)

		post, _ := f.posts.GetByID(ctx, "P")
		assert.Empty(t, post.Likes)
	})

	t.Run("self like does not notify", func(t *testing.T) {
		// Arrange
		users := memory.NewUserRepository()
		posts := memory.NewPostRepository()
		require.NoError(t, users.Create(ctx, &entities.User{ID: "author", Username: "author"}))
		require.NoError(t, posts.Create(ctx, &entities.Post{ID: "P", AuthorID: "author"}))
		notifier := new(MockNotifier)
		svc := NewContentService(users, posts, notifier, nil, zap.NewNop(), nil, nil)

		// Act
		outcome, err := svc.ToggleLike(ctx, "author", "P")

		// Assert
		require.NoError(t, err)
		assert.Equal(t, Liked, outcome)
		notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("missing post", func(t *testing.T) {
		f := newFixture(t, "fan")
		_, err := f.content.ToggleLike(ctx, "fan", "nope")
		assert.True(t, pkgerrors.IsNotFound(err))
	})
}

func TestContentService_AppendComment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "author", "a", "b")
	f.addPost(t, "P", "author", 1)

	_, err := f.content.AppendComment(ctx, "a", "P", "first")
	require.NoError(t, err)
	post, err := f.content.AppendComment(ctx, "b", "P", "second")
	require.NoError(t, err)

	require.Len(t, post.Comments, 2)
	assert.Equal(t, "first", post.Comments[0].Text)
	assert.Equal(t, valueobjects.UserID("b"), post.Comments[1].AuthorID)

	notes, _ := f.notifications.ListFor(ctx, "author")
	assert.Empty(t, notes, "comments do not notify")

	_, err = f.content.AppendComment(ctx, "a", "P", "   ")
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = f.content.AppendComment(ctx, "a", "missing", "hi")
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestContentService_CreateAndDeletePost(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "author", "other")

	post, err := f.content.CreatePost(ctx, "author", "hello", []entities.Block{
		{Type: entities.BlockTypeCode, CodeSnippet: "console.log(1)"},
	})
	require.NoError(t, err)
	assert.Equal(t, "javascript", post.Blocks[0].Language)

	_, err = f.content.CreatePost(ctx, "author", "", []entities.Block{{Type: "gif"}})
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = f.content.CreatePost(ctx, "ghost", "hello", nil)
	assert.True(t, pkgerrors.IsNotFound(err))

	err = f.content.DeletePost(ctx, "other", post.ID)
	assert.True(t, pkgerrors.IsForbidden(err))

	require.NoError(t, f.content.DeletePost(ctx, "author", post.ID))
	_, err = f.posts.GetByID(ctx, post.ID)
	assert.True(t, pkgerrors.IsNotFound(err))

	err = f.content.DeletePost(ctx, "author", post.ID)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestContentService_ConcurrentLikes(t *testing.T) {
	// Arrange
	ctx := context.Background()
	fans := make([]string, 20)
	for i := range fans {
		fans[i] = fmt.Sprintf("fan-%02d", i)
	}
	f := newFixture(t, append([]string{"author"}, fans...)...)
	f.addPost(t, "P", "author", 1)

	// Act: every fan likes the post at the same time, and the odd ones
	// immediately take it back.
	var wg sync.WaitGroup
	errs := make(chan error, len(fans)*2)
	for i, fan := range fans {
		wg.Add(1)
		go func(i int, fan valueobjects.UserID) {
			defer wg.Done()
			if _, err := f.content.ToggleLike(ctx, fan, "P"); err != nil {
				errs <- err
				return
			}
			if i%2 == 1 {
				if _, err := f.content.ToggleLike(ctx, fan, "P"); err != nil {
					errs <- err
				}
			}
		}(i, valueobjects.UserID(fan))
	}
	wg.Wait()
	close(errs)

	// Assert
	for err := range errs {
		require.NoError(t, err)
	}

	post, err := f.posts.GetByID(ctx, "P")
	require.NoError(t, err)
	assert.Len(t, post.Likes, len(fans)/2)
	for i, fan := range fans {
		assert.Equal(t, i%2 == 0, post.Likes.Contains(valueobjects.UserID(fan)), fan)
	}

	notes, err := f.notifications.ListFor(ctx, "author")
	require.NoError(t, err)
	assert.Len(t, notes, len(fans))
}
