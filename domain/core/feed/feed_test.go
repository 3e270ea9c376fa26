package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devconsole/domain/core/entities"
	"devconsole/domain/core/valueobjects"
	pkgerrors "devconsole/pkg/errors"
)

func post(id string, at int64, likes int, author string) *entities.Post {
	p := &entities.Post{
		ID:        valueobjects.PostID(id),
		AuthorID:  valueobjects.UserID(author),
		CreatedAt: time.Unix(at, 0),
		Likes:     valueobjects.UserIDSet{},
	}
	for i := 0; i < likes; i++ {
		p.Likes = p.Likes.With(valueobjects.UserID(string(rune('a' + i))))
	}
	return p
}

func ids(posts []*entities.Post) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = string(p.ID)
	}
	return out
}

func TestOrdering(t *testing.T) {
	// Arrange
	build := func() []*entities.Post {
		return []*entities.Post{
			post("P1", 10, 3, "A"),
			post("P2", 20, 1, "B"),
			post("P3", 5, 3, "C"),
		}
	}

	// Act
	recent := build()
	Order(ModeGlobalRecent, recent)
	popular := build()
	Order(ModeGlobalPopular, popular)

	// Assert
	assert.Equal(t, []string{"P2", "P1", "P3"}, ids(recent))
	assert.Equal(t, []string{"P1", "P3", "P2"}, ids(popular))
}

func TestSortRecent_TieBreaksOnID(t *testing.T) {
	posts := []*entities.Post{post("a", 1, 0, "x"), post("b", 1, 0, "x")}
	SortRecent(posts)
	assert.Equal(t, []string{"b", "a"}, ids(posts))
}

func TestFilter(t *testing.T) {
	p := post("P1", 1, 0, "A")
	p.Likes = p.Likes.With("liker")

	assert.True(t, Filter{}.Matches(p))
	assert.True(t, Filter{Authors: []valueobjects.UserID{"A", "B"}}.Matches(p))
	assert.False(t, Filter{Authors: []valueobjects.UserID{"B"}}.Matches(p))
	assert.False(t, Filter{Authors: []valueobjects.UserID{}}.Matches(p))
	assert.True(t, Filter{LikedBy: "liker"}.Matches(p))
	assert.False(t, Filter{LikedBy: "other"}.Matches(p))
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("following-only")
	require.NoError(t, err)
	assert.Equal(t, ModeFollowingOnly, m)
	assert.False(t, m.NeedsTarget())
	assert.True(t, ModeByLiker.NeedsTarget())

	_, err = ParseMode("trending")
	assert.True(t, pkgerrors.IsValidation(err))
}
