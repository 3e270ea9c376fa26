package valueobjects

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserIDSet(t *testing.T) {
	s := UserIDSet{"a"}

	s = s.With("b").With("b")
	assert.Equal(t, UserIDSet{"a", "b"}, s)
	assert.True(t, s.Contains("b"))

	s = s.Without("a").Without("zzz")
	assert.Equal(t, UserIDSet{"b"}, s)
	assert.False(t, s.Contains("a"))
}

func TestUserIDSetFromStrings(t *testing.T) {
	s := UserIDSetFromStrings([]string{"x", "", "y", "x"})
	assert.Equal(t, UserIDSet{"x", "y"}, s)
	assert.Equal(t, []string{"x", "y"}, s.Strings())
}

func TestUserIDSet_CloneIsIndependent(t *testing.T) {
	orig := UserIDSet{"a", "b"}
	c := orig.Clone()
	c[0] = "z"
	assert.Equal(t, UserID("a"), orig[0])
	assert.NotNil(t, UserIDSet(nil).Clone())
}
