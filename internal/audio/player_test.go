package audio

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bufferSink struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	closed bool
}

func (b *bufferSink) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *bufferSink) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func newTestPlayer(sink *bufferSink) *StreamPlayer {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return NewStreamPlayer(Options{
		StartTimeout: 2 * time.Second,
		Sink:         func() (io.WriteCloser, error) { return sink, nil },
		Logger:       logrus.NewEntry(l),
	})
}

func TestStreamPlayer_PlaysToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3-audio-bytes"))
	}))
	defer srv.Close()

	sink := &bufferSink{}
	s, err := newTestPlayer(sink).Start(context.Background(), srv.URL+"/story/a/episode/0/audio")
	require.NoError(t, err)

	select {
	case err := <-s.Done():
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not finish")
	}
	assert.Equal(t, "ID3-audio-bytes", sink.buf.String())
	assert.True(t, sink.closed)
}

func TestStreamPlayer_StartFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := newTestPlayer(&bufferSink{}).Start(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http 404")
}

func TestStreamPlayer_Stop(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("chunk"))
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	s, err := newTestPlayer(&bufferSink{}).Start(context.Background(), srv.URL)
	require.NoError(t, err)
	s.Stop()
	s.Stop()

	select {
	case err := <-s.Done():
		require.ErrorIs(t, err, ErrStopped)
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not stop")
	}
}
