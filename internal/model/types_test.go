package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_ClampsEpisodeCount(t *testing.T) {
	cases := map[int]int{-3: 1, 0: 1, 1: 1, 5: 5, 10: 10, 15: 10}
	for in, want := range cases {
		got, err := StoryRequest{Topic: "rabbit", EpisodeCount: in}.Normalize()
		require.NoError(t, err)
		assert.Equal(t, want, got.EpisodeCount, "input %d", in)
	}
}

func TestNormalize_TrimsTopicAndDefaults(t *testing.T) {
	got, err := StoryRequest{
		Topic:         "  rabbit and turtle \n",
		EpisodeCount:  3,
		StoryLanguage: "fr",
		ImageModel:    "dalle",
		ImageStyle:    " watercolor ",
	}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, "rabbit and turtle", got.Topic)
	assert.Equal(t, LocaleEN, got.StoryLanguage)
	assert.Equal(t, ImageModelFlux, got.ImageModel)
	assert.Equal(t, "watercolor", got.ImageStyle)
}

func TestNormalize_KeepsValidEnums(t *testing.T) {
	got, err := StoryRequest{Topic: "x", EpisodeCount: 2, StoryLanguage: LocaleTH, ImageModel: ImageModelZImage}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, LocaleTH, got.StoryLanguage)
	assert.Equal(t, ImageModelZImage, got.ImageModel)
}

func TestNormalize_RejectsEmptyTopic(t *testing.T) {
	_, err := StoryRequest{Topic: "   ", EpisodeCount: 3}.Normalize()
	require.ErrorIs(t, err, ErrEmptyTopic)
}

func TestNormalize_RejectsLongTopic(t *testing.T) {
	_, err := StoryRequest{Topic: strings.Repeat("ก", MaxTopicLength+1), EpisodeCount: 3}.Normalize()
	require.ErrorIs(t, err, ErrTopicTooLong)

	_, err = StoryRequest{Topic: strings.Repeat("ก", MaxTopicLength), EpisodeCount: 3}.Normalize()
	require.NoError(t, err)
}

func TestParseLocale(t *testing.T) {
	for in, want := range map[string]Locale{"en": LocaleEN, "th": LocaleTH, "th-TH": LocaleTH, " en-US ": LocaleEN} {
		got, ok := ParseLocale(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"", "fr", "zz-invalid-tag-!!", "ja"} {
		got, ok := ParseLocale(in)
		assert.False(t, ok, in)
		assert.Equal(t, DefaultLocale, got, in)
	}
}

func TestImageStylePresets(t *testing.T) {
	p, ok := LookupStylePreset("watercolor")
	assert.True(t, ok)
	assert.Equal(t, "watercolor painting", p.Value)
	assert.Equal(t, "style.watercolor", p.LabelKey)

	none, ok := LookupStylePreset("none")
	assert.True(t, ok)
	assert.Empty(t, none.Value)

	_, ok = LookupStylePreset("oil")
	assert.False(t, ok)

	seen := map[string]bool{}
	for _, p := range ImageStylePresets {
		assert.False(t, seen[p.ID], p.ID)
		seen[p.ID] = true
	}
	assert.Len(t, seen, 4)
}
