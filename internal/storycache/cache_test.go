package storycache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyteller/internal/model"
)

type countingFetcher struct {
	calls int
	err   error
}

func (f *countingFetcher) FetchStory(_ context.Context, id string) (*model.Story, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &model.Story{ID: id, Title: "t"}, nil
}

func TestCache_HitSkipsFetch(t *testing.T) {
	f := &countingFetcher{}
	c := New(f, time.Minute)

	s1, err := c.FetchStory(context.Background(), "a")
	require.NoError(t, err)
	s2, err := c.FetchStory(context.Background(), "a")
	require.NoError(t, err)
	assert.Same(t, s1, s2)
	assert.Equal(t, 1, f.calls)

	c.Forget("a")
	_, err = c.FetchStory(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, 2, f.calls)
}

func TestCache_FailureNotCached(t *testing.T) {
	f := &countingFetcher{err: errors.New("boom")}
	c := New(f, time.Minute)
	_, err := c.FetchStory(context.Background(), "a")
	require.Error(t, err)
	_, err = c.FetchStory(context.Background(), "a")
	require.Error(t, err)
	assert.Equal(t, 2, f.calls)
}

func TestCache_Put(t *testing.T) {
	f := &countingFetcher{}
	c := New(f, time.Minute)
	c.Put(&model.Story{ID: "gen", Title: "fresh"})
	c.Put(nil)

	s, err := c.FetchStory(context.Background(), "gen")
	require.NoError(t, err)
	assert.Equal(t, "fresh", s.Title)
	assert.Zero(t, f.calls)
}
