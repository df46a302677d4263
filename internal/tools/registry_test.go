package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyteller/internal/listing"
	"storyteller/internal/model"
)

type fakeBackend struct {
	gotReq    model.StoryRequest
	genErr    error
	exported  string
	listState listing.State
}

func (f *fakeBackend) Generate(_ context.Context, r model.StoryRequest) (*model.Story, error) {
	f.gotReq = r
	if f.genErr != nil {
		return nil, f.genErr
	}
	return &model.Story{ID: "s1", Topic: r.Topic, Title: "T"}, nil
}

func (f *fakeBackend) ExportStory(_ context.Context, id string) (string, error) {
	f.exported = id
	return "/tmp/T.mp4", nil
}

func (f *fakeBackend) ListStories(context.Context) listing.State {
	return f.listState
}

type fakeFetcher map[string]*model.Story

func (f fakeFetcher) FetchStory(_ context.Context, id string) (*model.Story, error) {
	if s, ok := f[id]; ok {
		return s, nil
	}
	return nil, errors.New("Story not found")
}

func newRegistry(t *testing.T, b *fakeBackend) *Registry {
	r, err := NewRegistry(context.Background(), b, fakeFetcher{"s1": {ID: "s1", Title: "Moon"}})
	require.NoError(t, err)
	return r
}

func TestRegistry_Infos(t *testing.T) {
	r := newRegistry(t, &fakeBackend{})
	infos, err := r.Infos(context.Background())
	require.NoError(t, err)

	var names []string
	for _, info := range infos {
		names = append(names, info.Name)
	}
	assert.Equal(t, []string{"story_generate", "story_get", "story_list", "video_export"}, names)
	assert.True(t, r.Has("video_export"))
	assert.False(t, r.Has("seedream"))
}

func TestStoryTool_PassesArguments(t *testing.T) {
	b := &fakeBackend{}
	r := newRegistry(t, b)

	out, err := r.Invoke(context.Background(), "story_generate",
		`{"topic":"moon","episode_count":3,"story_lang":"th","image_model":"zimage","image_style":"watercolor"}`)
	require.NoError(t, err)
	assert.Contains(t, out, `"storyId":"s1"`)
	assert.Equal(t, model.StoryRequest{
		Topic:         "moon",
		EpisodeCount:  3,
		StoryLanguage: model.LocaleTH,
		ImageModel:    model.ImageModelZImage,
		ImageStyle:    "watercolor",
	}, b.gotReq)
}

func TestStoryTool_Error(t *testing.T) {
	b := &fakeBackend{genErr: errors.New("boom")}
	r := newRegistry(t, b)
	_, err := r.Invoke(context.Background(), "story_generate", `{"topic":"moon"}`)
	assert.EqualError(t, err, "boom")

	_, err = r.Invoke(context.Background(), "story_generate", `not json`)
	assert.Error(t, err)
}

func TestStoryGetTool(t *testing.T) {
	r := newRegistry(t, &fakeBackend{})
	out, err := r.Invoke(context.Background(), "story_get", `{"story_id":"s1"}`)
	require.NoError(t, err)
	assert.Contains(t, out, `"title":"Moon"`)

	_, err = r.Invoke(context.Background(), "story_get", `{}`)
	assert.EqualError(t, err, "story_id required")
	_, err = r.Invoke(context.Background(), "story_get", `{"story_id":"nope"}`)
	assert.Error(t, err)
}

func TestListTool_EmptyIsArray(t *testing.T) {
	r := newRegistry(t, &fakeBackend{listState: listing.State{Status: listing.StatusLoaded, Stories: []model.StoryListEntry{}}})
	out, err := r.Invoke(context.Background(), "story_list", "")
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, out)
}

func TestVideoTool(t *testing.T) {
	b := &fakeBackend{}
	r := newRegistry(t, b)
	out, err := r.Invoke(context.Background(), "video_export", `{"story_id":"s1"}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"story_id":"s1","file":"/tmp/T.mp4"}`, out)
	assert.Equal(t, "s1", b.exported)
}

func TestInvoke_UnknownTool(t *testing.T) {
	r := newRegistry(t, &fakeBackend{})
	_, err := r.Invoke(context.Background(), "image_generate", `{}`)
	assert.Error(t, err)
}
