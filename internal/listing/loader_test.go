package listing

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyteller/internal/gateway"
	"storyteller/internal/model"
)

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

type fakeLister struct {
	gotLimit, gotOffset int
	stories             []model.StoryListEntry
}

func (f *fakeLister) ListStories(_ context.Context, limit, offset int) []model.StoryListEntry {
	f.gotLimit, f.gotOffset = limit, offset
	return f.stories
}

func TestLoad_UsesFixedPage(t *testing.T) {
	lister := &fakeLister{stories: []model.StoryListEntry{{ID: "a", Title: "A", EpisodeCount: 3}}}
	l := New(lister, 0, -1, quietLogger())
	defer l.Close()

	assert.Equal(t, StatusIdle, l.State().Status)
	s := l.Load(context.Background())
	assert.Equal(t, StatusLoaded, s.Status)
	require.Len(t, s.Stories, 1)
	assert.Equal(t, "a", s.Stories[0].ID)
	assert.Equal(t, DefaultPageSize, lister.gotLimit)
	assert.Equal(t, DefaultOffset, lister.gotOffset)
	assert.False(t, s.Empty())
}

func TestLoad_NilResultIsEmpty(t *testing.T) {
	l := New(&fakeLister{}, 5, 0, quietLogger())
	defer l.Close()

	s := l.Load(context.Background())
	assert.True(t, s.Empty())
	assert.NotNil(t, s.Stories)
}

func TestLoad_PublishesLoadingThenLoaded(t *testing.T) {
	l := New(&fakeLister{}, 5, 0, quietLogger())
	defer l.Close()
	ch, cancel := l.Subscribe()
	defer cancel()

	go l.Load(context.Background())
	require.Eventually(t, func() bool {
		select {
		case s := <-ch:
			return s.Status == StatusLoaded
		default:
			return false
		}
	}, time.Second, time.Millisecond)
}

func TestLoad_FailingBackendShowsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := gateway.NewClient(gateway.Options{BaseURL: srv.URL, Logger: quietLogger()})
	l := New(client, 20, 0, quietLogger())
	defer l.Close()

	s := l.Load(context.Background())
	assert.Equal(t, StatusLoaded, s.Status)
	assert.True(t, s.Empty())
}
