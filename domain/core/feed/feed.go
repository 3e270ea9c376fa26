// Package feed holds the ordering and filtering rules that turn the set of
// stored posts into a viewer's feed.
package feed

import (
	"sort"

	"devconsole/domain/core/entities"
	"devconsole/domain/core/valueobjects"
	pkgerrors "devconsole/pkg/errors"
)

// Mode selects which posts make up a feed and how they are ordered.
type Mode string

const (
	ModeGlobalRecent  Mode = "global-recent"
	ModeGlobalPopular Mode = "global-popular"
	ModeFollowingOnly Mode = "following-only"
	ModeByAuthor      Mode = "by-author"
	ModeByLiker       Mode = "by-liker"
)

// ParseMode validates a caller-supplied mode.
func ParseMode(s string) (Mode, error) {
	m := Mode(s)
	switch m {
	case ModeGlobalRecent, ModeGlobalPopular, ModeFollowingOnly, ModeByAuthor, ModeByLiker:
		return m, nil
	}
	return "", pkgerrors.NewValidationError("unknown feed mode: " + s)
}

// NeedsTarget reports whether the mode is parameterized by a target user.
func (m Mode) NeedsTarget() bool {
	return m == ModeByAuthor || m == ModeByLiker
}

// Filter narrows the post set before ordering. At most one field is set;
// the zero Filter selects every post.
type Filter struct {
	Authors []valueobjects.UserID
	LikedBy valueobjects.UserID
}

// Matches reports whether p passes the filter.
func (f Filter) Matches(p *entities.Post) bool {
	if f.Authors != nil {
		found := false
		for _, a := range f.Authors {
			if a == p.AuthorID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.LikedBy.IsZero() && !p.IsLikedBy(f.LikedBy) {
		return false
	}
	return true
}

// SortRecent orders newest first. Equal timestamps fall back to ID so the
// result is stable across calls.
func SortRecent(posts []*entities.Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		return newer(posts[i], posts[j])
	})
}

// SortPopular orders by like count, most liked first, then newest first.
func SortPopular(posts []*entities.Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		li, lj := posts[i].LikeCount(), posts[j].LikeCount()
		if li != lj {
			return li > lj
		}
		return newer(posts[i], posts[j])
	})
}

// Order applies the mode's ordering in place.
func Order(mode Mode, posts []*entities.Post) {
	if mode == ModeGlobalPopular {
		SortPopular(posts)
		return
	}
	SortRecent(posts)
}

func newer(a, b *entities.Post) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}
