package entities

import (
	"time"

	"devconsole/domain/core/valueobjects"
)

// User is the stored account record. Followers and Following are the two
// halves of the follow graph; a user never appears in their own sets and
// b ∈ a.Following holds exactly when a ∈ b.Followers once writes settle.
type User struct {
	ID           valueobjects.UserID    `json:"id"`
	Username     string                 `json:"username"`
	FullName     string                 `json:"fullName"`
	Email        string                 `json:"-"`
	PasswordHash string                 `json:"-"`
	ProfileImg   string                 `json:"profileImg,omitempty"`
	CoverImg     string                 `json:"coverImg,omitempty"`
	Bio          string                 `json:"bio,omitempty"`
	Link         string                 `json:"link,omitempty"`
	Followers    valueobjects.UserIDSet `json:"followers"`
	Following    valueobjects.UserIDSet `json:"following"`
	CreatedAt    time.Time              `json:"createdAt"`
}

// PublicProfile is the only user shape that leaves the service. It has no
// credential or contact fields.
type PublicProfile struct {
	ID         valueobjects.UserID    `json:"id"`
	Username   string                 `json:"username,omitempty"`
	FullName   string                 `json:"fullName,omitempty"`
	ProfileImg string                 `json:"profileImg,omitempty"`
	CoverImg   string                 `json:"coverImg,omitempty"`
	Bio        string                 `json:"bio,omitempty"`
	Link       string                 `json:"link,omitempty"`
	Followers  valueobjects.UserIDSet `json:"followers"`
	Following  valueobjects.UserIDSet `json:"following"`
}

// IsFollowing reports whether u follows target.
func (u *User) IsFollowing(target valueobjects.UserID) bool {
	return u.Following.Contains(target)
}

// Public strips the record down to its public profile.
func (u *User) Public() PublicProfile {
	return PublicProfile{
		ID:         u.ID,
		Username:   u.Username,
		FullName:   u.FullName,
		ProfileImg: u.ProfileImg,
		CoverImg:   u.CoverImg,
		Bio:        u.Bio,
		Link:       u.Link,
		Followers:  u.Followers.Clone(),
		Following:  u.Following.Clone(),
	}
}

// Clone returns a deep copy so stores never hand out shared slices.
func (u *User) Clone() *User {
	c := *u
	c.Followers = u.Followers.Clone()
	c.Following = u.Following.Clone()
	return &c
}

// UnknownProfile stands in for a user whose record no longer exists.
func UnknownProfile(id valueobjects.UserID) PublicProfile {
	return PublicProfile{
		ID:        id,
		Followers: valueobjects.UserIDSet{},
		Following: valueobjects.UserIDSet{},
	}
}

// PublicProfiles maps records to public profiles, skipping nils.
func PublicProfiles(users []*User) []PublicProfile {
	out := make([]PublicProfile, 0, len(users))
	for _, u := range users {
		if u == nil {
			continue
		}
		out = append(out, u.Public())
	}
	return out
}

// RelationKind selects one side of a user's follow graph.
type RelationKind string

const (
	RelationFollowers RelationKind = "followers"
	RelationFollowing RelationKind = "following"
)

// Valid reports whether k names a known side.
func (k RelationKind) Valid() bool {
	return k == RelationFollowers || k == RelationFollowing
}

// Relations returns the IDs on the requested side.
func (u *User) Relations(kind RelationKind) valueobjects.UserIDSet {
	if kind == RelationFollowers {
		return u.Followers.Clone()
	}
	return u.Following.Clone()
}
