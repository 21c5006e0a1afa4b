package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecentMessages(t *testing.T) {
	msgs := make([]ChatMessage, 12)
	for i := range msgs {
		msgs[i].Seq = i
	}

	got := RecentMessages(msgs, 5)
	require.Len(t, got, 5)
	assert.Equal(t, 7, got[0].Seq)
	assert.Equal(t, 11, got[4].Seq)

	assert.Len(t, RecentMessages(msgs[:3], 5), 3)
	assert.Nil(t, RecentMessages(msgs, 0))
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel(" Advanced ")
	require.NoError(t, err)
	assert.Equal(t, LevelAdvanced, lvl)

	_, err = ParseLevel("elite")
	assert.Error(t, err)
}

func TestUserProfileValidate(t *testing.T) {
	p := DefaultProfile("u1")
	require.NoError(t, p.Validate())

	p.Age = 0
	assert.Error(t, p.Validate())

	p = DefaultProfile("u1")
	p.Goal = "  "
	assert.Error(t, p.Validate())

	p = DefaultProfile("u1")
	p.Level = "pro"
	assert.Error(t, p.Validate())
}

func TestUserProfilePhotosOrder(t *testing.T) {
	p := DefaultProfile("u1")
	assert.Empty(t, p.Photos())

	p.MealPhoto = "data:image/png;base64,bWVhbA=="
	p.BodyPhoto = "data:image/png;base64,Ym9keQ=="
	assert.Equal(t, []string{p.BodyPhoto, p.MealPhoto}, p.Photos())
}

func TestThemeParsing(t *testing.T) {
	th, ok := ParseTheme("light")
	assert.True(t, ok)
	assert.Equal(t, "#f8fafc", th.ExportBackground())

	th, ok = ParseTheme("sepia")
	assert.False(t, ok)
	assert.Equal(t, ThemeDark, th)
	assert.Equal(t, "#0f172a", th.ExportBackground())
}
