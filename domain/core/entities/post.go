package entities

import (
	"strconv"
	"strings"
	"time"

	"devconsole/domain/core/valueobjects"
	pkgerrors "devconsole/pkg/errors"
)

// BlockType is the kind of rich content attached to a post.
type BlockType string

const (
	BlockTypeCode  BlockType = "code"
	BlockTypeImage BlockType = "image"

	DefaultCodeLanguage = "javascript"
)

// Block is a code snippet or image attached to a post.
type Block struct {
	Type        BlockType `json:"type"`
	CodeSnippet string    `json:"codeSnippet,omitempty"`
	Language    string    `json:"language,omitempty"`
	ImageURL    string    `json:"imageUrl,omitempty"`
}

// Comment is an entry in a post's ordered comment list.
type Comment struct {
	AuthorID  valueobjects.UserID `json:"author"`
	Text      string              `json:"text"`
	CreatedAt time.Time           `json:"createdAt"`
}

// Post is authored content. AuthorID never changes after creation.
type Post struct {
	ID        valueobjects.PostID    `json:"id"`
	AuthorID  valueobjects.UserID    `json:"authorId"`
	Text      string                 `json:"text,omitempty"`
	Blocks    []Block                `json:"blocks"`
	Likes     valueobjects.UserIDSet `json:"likes"`
	Comments  []Comment              `json:"comments"`
	CreatedAt time.Time              `json:"createdAt"`
}

// NewPost validates content and builds a post ready to store.
func NewPost(author valueobjects.UserID, text string, blocks []Block, now time.Time) (*Post, error) {
	if author.IsZero() {
		return nil, pkgerrors.NewValidationError("author is required")
	}

	text = strings.TrimSpace(text)
	if text == "" && len(blocks) == 0 {
		return nil, pkgerrors.NewValidationError("post must have text or at least one block")
	}

	normalized := make([]Block, 0, len(blocks))
	for i, b := range blocks {
		nb, err := normalizeBlock(b)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "block "+strconv.Itoa(i))
		}
		normalized = append(normalized, nb)
	}

	return &Post{
		ID:        valueobjects.NewPostID(),
		AuthorID:  author,
		Text:      text,
		Blocks:    normalized,
		Likes:     valueobjects.UserIDSet{},
		Comments:  []Comment{},
		CreatedAt: now.UTC(),
	}, nil
}

func normalizeBlock(b Block) (Block, error) {
	switch b.Type {
	case BlockTypeCode:
		if strings.TrimSpace(b.CodeSnippet) == "" {
			return Block{}, pkgerrors.NewValidationError("code block requires a snippet")
		}
		lang := strings.TrimSpace(b.Language)
		if lang == "" {
			lang = DefaultCodeLanguage
		}
		return Block{Type: BlockTypeCode, CodeSnippet: b.CodeSnippet, Language: lang}, nil
	case BlockTypeImage:
		if strings.TrimSpace(b.ImageURL) == "" {
			return Block{}, pkgerrors.NewValidationError("image block requires an image url")
		}
		return Block{Type: BlockTypeImage, ImageURL: b.ImageURL}, nil
	default:
		return Block{}, pkgerrors.NewValidationError("unsupported block type: " + string(b.Type))
	}
}

// NewComment validates comment text.
func NewComment(author valueobjects.UserID, text string, now time.Time) (Comment, error) {
	if strings.TrimSpace(text) == "" {
		return Comment{}, pkgerrors.NewValidationError("text field is required")
	}
	return Comment{AuthorID: author, Text: text, CreatedAt: now.UTC()}, nil
}

// LikeCount is the popularity score used by the popular feed.
func (p *Post) LikeCount() int { return len(p.Likes) }

// IsLikedBy reports whether user has liked the post.
func (p *Post) IsLikedBy(user valueobjects.UserID) bool { return p.Likes.Contains(user) }

// Clone returns a deep copy.
func (p *Post) Clone() *Post {
	c := *p
	c.Likes = p.Likes.Clone()
	c.Blocks = append([]Block{}, p.Blocks...)
	c.Comments = append([]Comment{}, p.Comments...)
	return &c
}
