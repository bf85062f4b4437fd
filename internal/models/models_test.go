package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOdds(t *testing.T) {
	v, err := ParseOdds("3/1")
	require.NoError(t, err)
	assert.Equal(t, 4.0, v)

	v, err = ParseOdds("2.5")
	require.NoError(t, err)
	assert.Equal(t, 2.5, v)

	v, err = ParseOdds(" 5/2 ")
	require.NoError(t, err)
	assert.Equal(t, 3.5, v)

	for _, bad := range []string{"abc", "", "3/0", "x/2", "1/y", "NaN", "Inf"} {
		_, err := ParseOdds(bad)
		assert.ErrorIs(t, err, ErrUnparsableOdds, bad)
	}
}

func TestSportRules(t *testing.T) {
	rules := NewSportRules(DefaultPlacingSports)

	assert.True(t, rules.AllowsStatus("Horse Racing", StatusPlace))
	assert.True(t, rules.AllowsStatus("horse racing", StatusPlace))
	assert.False(t, rules.AllowsStatus("Football", StatusPlace))
	assert.True(t, rules.AllowsStatus("Football", StatusWin))
	assert.False(t, rules.AllowsStatus("Football", StatusPending))

	var empty *SportRules
	assert.False(t, empty.AllowsPlace("Golf"))
}

func TestTipLikeSetKeepsCounterInStep(t *testing.T) {
	tip := &Tip{ID: "t1"}

	tip.AddLike("u1")
	tip.AddLike("u1")
	tip.AddLike("u2")
	assert.Equal(t, 2, tip.Likes)
	assert.Equal(t, []string{"u1", "u2"}, tip.LikedBy)

	tip.RemoveLike("u1")
	tip.RemoveLike("u1")
	assert.Equal(t, 1, tip.Likes)
	assert.Equal(t, []string{"u2"}, tip.LikedBy)

	tip.RemoveLike("u2")
	tip.RemoveLike("u3")
	assert.Equal(t, 0, tip.Likes)
	assert.Empty(t, tip.LikedBy)
}

func TestCloneIsDeep(t *testing.T) {
	tip := &Tip{ID: "t1", Tags: []string{"a"}, LikedBy: []string{"u1"}, Likes: 1}
	c := tip.Clone()
	c.Tags[0] = "b"
	c.AddLike("u2")

	assert.Equal(t, "a", tip.Tags[0])
	assert.Equal(t, 1, tip.Likes)
	assert.Equal(t, []string{"u1"}, tip.LikedBy)
}

func TestParseTipStatus(t *testing.T) {
	s, ok := ParseTipStatus(" WIN ")
	assert.True(t, ok)
	assert.Equal(t, StatusWin, s)
	assert.True(t, s.IsTerminal())

	_, ok = ParseTipStatus("lost")
	assert.False(t, ok)
	assert.False(t, StatusPending.IsTerminal())
}

func TestNormalizeTags(t *testing.T) {
	assert.Equal(t, []string{"NBA", "parlay"}, NormalizeTags([]string{" NBA", "", "nba", "parlay"}))
}
