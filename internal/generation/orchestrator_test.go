package generation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"storyteller/internal/gateway"
	"storyteller/internal/locale"
	"storyteller/internal/model"
)

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func testResolver() *locale.Resolver {
	return locale.New(&locale.MemoryStore{}, quietLogger())
}

// blockingGenerator 在release之前一直阻塞
type blockingGenerator struct {
	release chan struct{}
	err     error
	calls   atomic.Int32
	last    model.StoryRequest
	mu      sync.Mutex
}

func newBlockingGenerator() *blockingGenerator {
	return &blockingGenerator{release: make(chan struct{})}
}

func (g *blockingGenerator) GenerateStory(ctx context.Context, r model.StoryRequest) (*model.Story, error) {
	g.calls.Add(1)
	g.mu.Lock()
	g.last = r
	g.mu.Unlock()
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if g.err != nil {
		return nil, g.err
	}
	eps := make([]model.Episode, r.EpisodeCount)
	for i := range eps {
		eps[i] = model.Episode{Text: fmt.Sprintf("episode %d", i+1)}
	}
	return &model.Story{ID: "story-1", Topic: r.Topic, EpisodeCount: len(eps), Episodes: eps}, nil
}

type recordingSink struct {
	mu      sync.Mutex
	stories []*model.Story
}

func (s *recordingSink) Put(story *model.Story) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stories = append(s.stories, story)
}

func fastOptions() Options {
	return Options{
		TickInterval: time.Millisecond,
		ResetDelay:   30 * time.Millisecond,
		Logger:       quietLogger(),
	}
}

func TestSubmit_ProgressCappedThenCompletes(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	gen := newBlockingGenerator()
	sink := &recordingSink{}
	opts := fastOptions()
	opts.Sink = sink
	o := New(gen, testResolver(), opts)
	defer o.Close()

	states, cancel := o.Subscribe()
	var maxWhileSubmitting float64
	var sawHundred bool
	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		for s := range states {
			if s.Phase == PhaseSubmitting && s.Progress > maxWhileSubmitting {
				maxWhileSubmitting = s.Progress
			}
			if s.Phase == PhaseSucceeded && s.Progress == 100 {
				sawHundred = true
			}
		}
	}()

	type result struct {
		story *model.Story
		err   error
	}
	done := make(chan result, 1)
	go func() {
		s, err := o.Submit(context.Background(), model.StoryRequest{Topic: "rabbit and turtle", EpisodeCount: 5, StoryLanguage: model.LocaleEN})
		done <- result{s, err}
	}()

	require.Eventually(t, func() bool {
		s := o.State()
		return s.Phase == PhaseSubmitting && s.Progress == 85
	}, 2*time.Second, time.Millisecond)

	// 多跑一些tick，进度仍不超过85
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, float64(85), o.State().Progress)

	close(gen.release)
	res := <-done
	require.NoError(t, res.err)
	require.Len(t, res.story.Episodes, 5)
	assert.NotEmpty(t, res.story.Episodes[0].Text)

	s := o.State()
	assert.Equal(t, PhaseSucceeded, s.Phase)
	assert.Equal(t, float64(100), s.Progress)
	assert.Equal(t, "story-1", s.StoryID)

	require.Eventually(t, func() bool { return o.State().Progress == 0 }, time.Second, time.Millisecond)
	assert.Equal(t, PhaseSucceeded, o.State().Phase)

	cancel()
	<-watchDone
	assert.LessOrEqual(t, maxWhileSubmitting, float64(85))
	assert.True(t, sawHundred)
	require.Len(t, sink.stories, 1)
	assert.Equal(t, "story-1", sink.stories[0].ID)
}

func TestTick_IncrementAndStaleAttempt(t *testing.T) {
	opts := fastOptions()
	r := 0.5
	opts.Rand = func() float64 { return r }
	o := New(newBlockingGenerator(), testResolver(), opts)
	o.attempt = 1
	o.state = State{Phase: PhaseSubmitting}

	o.tick(1)
	assert.Equal(t, float64(4), o.State().Progress)

	r = 1
	o.tick(1)
	assert.Equal(t, float64(10), o.State().Progress)

	// 过期的tick被丢弃
	o.tick(0)
	assert.Equal(t, float64(10), o.State().Progress)

	o.state.Progress = 83
	o.tick(1)
	assert.Equal(t, float64(85), o.State().Progress)

	o.state.Phase = PhaseSucceeded
	o.state.Progress = 100
	o.tick(1)
	assert.Equal(t, float64(100), o.State().Progress)
}

func TestSubmit_ClampsEpisodeCount(t *testing.T) {
	gen := newBlockingGenerator()
	close(gen.release)
	o := New(gen, testResolver(), fastOptions())
	defer o.Close()

	_, err := o.Submit(context.Background(), model.StoryRequest{Topic: "x", EpisodeCount: 15})
	require.NoError(t, err)
	assert.Equal(t, 10, gen.last.EpisodeCount)

	_, err = o.Submit(context.Background(), model.StoryRequest{Topic: "x", EpisodeCount: 0})
	require.NoError(t, err)
	assert.Equal(t, 1, gen.last.EpisodeCount)
}

func TestSubmit_ValidationNeverReachesNetwork(t *testing.T) {
	gen := newBlockingGenerator()
	o := New(gen, testResolver(), fastOptions())
	defer o.Close()

	_, err := o.Submit(context.Background(), model.StoryRequest{Topic: "   ", EpisodeCount: 3})
	require.Error(t, err)
	assert.Equal(t, gateway.KindValidation, gateway.KindOf(err))
	assert.Equal(t, "Please enter a topic.", gateway.MessageOf(err))
	assert.Equal(t, int32(0), gen.calls.Load())
	assert.Equal(t, PhaseIdle, o.State().Phase)
}

func TestSubmit_RejectsWhileSubmitting(t *testing.T) {
	gen := newBlockingGenerator()
	o := New(gen, testResolver(), fastOptions())
	defer o.Close()

	go func() { _, _ = o.Submit(context.Background(), model.StoryRequest{Topic: "x", EpisodeCount: 1}) }()
	require.Eventually(t, func() bool { return o.State().Phase == PhaseSubmitting }, time.Second, time.Millisecond)

	_, err := o.Submit(context.Background(), model.StoryRequest{Topic: "y", EpisodeCount: 1})
	require.ErrorIs(t, err, ErrInFlight)
	close(gen.release)
	require.Eventually(t, func() bool { return o.State().Phase == PhaseSucceeded }, time.Second, time.Millisecond)
}

func TestSubmit_FailureSurfacesMessageVerbatim(t *testing.T) {
	gen := newBlockingGenerator()
	gen.err = &gateway.Error{Kind: gateway.KindGenerationFailed, Status: 500, Message: "image model unavailable", Detail: "image model unavailable"}
	close(gen.release)
	o := New(gen, testResolver(), fastOptions())
	defer o.Close()

	_, err := o.Submit(context.Background(), model.StoryRequest{Topic: "x", EpisodeCount: 2})
	require.Error(t, err)
	s := o.State()
	assert.Equal(t, PhaseFailed, s.Phase)
	assert.Equal(t, gateway.KindGenerationFailed, s.ErrorKind)
	assert.Equal(t, "image model unavailable", s.Error)
	assert.Zero(t, s.Progress)

	// 失败后可以再次提交
	gen.err = nil
	_, err = o.Submit(context.Background(), model.StoryRequest{Topic: "x", EpisodeCount: 2})
	require.NoError(t, err)
	assert.Equal(t, PhaseSucceeded, o.State().Phase)
	assert.Empty(t, o.State().Error)
}

func TestSubmit_PlainErrorUsesGenericKind(t *testing.T) {
	gen := newBlockingGenerator()
	gen.err = errors.New("")
	close(gen.release)
	o := New(gen, testResolver(), fastOptions())
	defer o.Close()

	_, err := o.Submit(context.Background(), model.StoryRequest{Topic: "x", EpisodeCount: 2})
	require.Error(t, err)
	assert.Equal(t, gateway.KindGenerationFailed, o.State().ErrorKind)
	assert.Equal(t, "Story generation failed. Please try again.", o.State().Error)
}

func TestSubmit_UnreachableBackendUsesLocalizedMessage(t *testing.T) {
	client := gateway.NewClient(gateway.Options{BaseURL: "http://127.0.0.1:1", Timeout: time.Second})
	o := New(client, testResolver(), fastOptions())
	defer o.Close()

	_, err := o.Submit(context.Background(), model.StoryRequest{Topic: "x", EpisodeCount: 2})
	require.Error(t, err)
	s := o.State()
	assert.Equal(t, PhaseFailed, s.Phase)
	assert.Equal(t, "Story generation failed. Please try again.", s.Error)
	assert.NotContains(t, s.Error, "127.0.0.1")
}

func TestSubmit_BadGatewayUsesOverloadedMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	client := gateway.NewClient(gateway.Options{BaseURL: srv.URL, Logger: quietLogger()})

	o := New(client, testResolver(), fastOptions())
	defer o.Close()

	_, err := o.Submit(context.Background(), model.StoryRequest{Topic: "rabbit", EpisodeCount: 10})
	require.Error(t, err)
	s := o.State()
	assert.Equal(t, PhaseFailed, s.Phase)
	assert.Equal(t, gateway.KindBackendOverloaded, s.ErrorKind)
	assert.Equal(t, "The server is taking too long. Try again with fewer episodes.", s.Error)
	assert.NotEqual(t, "Story generation failed. Please try again.", s.Error)
}

func TestClose_StopsTickerWhileSubmitting(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	gen := newBlockingGenerator()
	o := New(gen, testResolver(), fastOptions())

	ctx, cancelCtx := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := o.Submit(ctx, model.StoryRequest{Topic: "x", EpisodeCount: 1})
		done <- err
	}()
	require.Eventually(t, func() bool { return o.State().Progress > 0 }, time.Second, time.Millisecond)

	o.Close()
	frozen := o.State().Progress
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, frozen, o.State().Progress)

	cancelCtx()
	require.ErrorIs(t, <-done, context.Canceled)

	_, err := o.Submit(context.Background(), model.StoryRequest{Topic: "x", EpisodeCount: 1})
	require.ErrorIs(t, err, ErrClosed)
}
