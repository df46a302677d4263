// Package generation 故事生成流程：提交主题，等待后端返回故事，
// 期间给出客户端估算的进度
package generation

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"storyteller/internal/gateway"
	"storyteller/internal/locale"
	"storyteller/internal/model"
	"storyteller/internal/notify"
)

var (
	ErrInFlight = errors.New("generation already in progress")
	ErrClosed   = errors.New("orchestrator closed")
)

// Phase 生成阶段
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseSubmitting Phase = "submitting"
	PhaseSucceeded  Phase = "succeeded"
	PhaseFailed     Phase = "failed"
)

// State 生成状态快照。Progress为客户端估算值，不是后端汇报的进度
type State struct {
	Phase     Phase        `json:"phase"`
	Progress  float64      `json:"progressEstimate"`
	StoryID   string       `json:"storyId,omitempty"`
	ErrorKind gateway.Kind `json:"errorKind,omitempty"`
	Error     string       `json:"error,omitempty"`
}

// Generator 执行真正的生成请求
type Generator interface {
	GenerateStory(ctx context.Context, r model.StoryRequest) (*model.Story, error)
}

// Translator 文案解析
type Translator interface {
	Resolve(key string) string
}

// StorySink 生成成功后接收故事，通常是故事缓存
type StorySink interface {
	Put(story *model.Story)
}

// Options 进度估算参数
type Options struct {
	TickInterval time.Duration
	ProgressCap  float64
	MinIncrement float64
	MaxIncrement float64
	ResetDelay   time.Duration
	Sink         StorySink
	Logger       *logrus.Entry
	Rand         func() float64
}

func (o *Options) withDefaults() {
	if o.TickInterval <= 0 {
		o.TickInterval = 800 * time.Millisecond
	}
	if o.ProgressCap <= 0 || o.ProgressCap > 100 {
		o.ProgressCap = 85
	}
	if o.MinIncrement <= 0 {
		o.MinIncrement = 2
	}
	if o.MaxIncrement < o.MinIncrement {
		o.MaxIncrement = o.MinIncrement + 4
	}
	if o.ResetDelay <= 0 {
		o.ResetDelay = 500 * time.Millisecond
	}
	if o.Rand == nil {
		o.Rand = rand.Float64
	}
	if o.Logger == nil {
		o.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
}

// Orchestrator 生成状态机：idle -> submitting -> {succeeded, failed}，
// 下一次提交从任一终态重新进入submitting
type Orchestrator struct {
	mu      sync.Mutex
	state   State
	attempt uint64
	ticker  *repeatingTask
	reset   *time.Timer
	closed  bool

	gen  Generator
	tr   Translator
	opts Options
	hub  *notify.Hub[State]
	log  *logrus.Entry
}

func New(gen Generator, tr Translator, opts Options) *Orchestrator {
	opts.withDefaults()
	return &Orchestrator{
		state: State{Phase: PhaseIdle},
		gen:   gen,
		tr:    tr,
		opts:  opts,
		hub:   notify.NewHub[State](),
		log:   opts.Logger.WithField("component", "generation"),
	}
}

// State 当前状态
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Subscribe 订阅状态变更
func (o *Orchestrator) Subscribe() (<-chan State, func()) {
	return o.hub.Subscribe()
}

// Submit 提交生成请求并阻塞到后端返回。校验失败时不改变状态也不发请求；
// 正在生成时拒绝新的提交
func (o *Orchestrator) Submit(ctx context.Context, raw model.StoryRequest) (*model.Story, error) {
	r, err := raw.Normalize()
	if err != nil {
		return nil, o.validationError(err)
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil, ErrClosed
	}
	if o.state.Phase == PhaseSubmitting {
		o.mu.Unlock()
		return nil, ErrInFlight
	}
	o.stopResetLocked()
	o.attempt++
	attempt := o.attempt
	o.setLocked(State{Phase: PhaseSubmitting})
	o.ticker = startRepeating(o.opts.TickInterval, func() { o.tick(attempt) })
	o.mu.Unlock()

	log := o.log.WithFields(logrus.Fields{"attempt": attempt, "episodes": r.EpisodeCount, "lang": r.StoryLanguage})
	log.Info("submitting story generation")
	started := time.Now()

	story, err := o.gen.GenerateStory(ctx, r)

	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopTickerLocked()
	if o.closed {
		return story, err
	}

	if err != nil {
		kind := gateway.KindOf(err)
		if kind == "" {
			kind = gateway.KindGenerationFailed
		}
		// 生成失败只展示后端给出的detail，传输错误等不直接暴露给用户
		msg := gateway.MessageOf(err)
		switch kind {
		case gateway.KindBackendOverloaded:
			msg = o.tr.Resolve(locale.KeyBackendOverloaded)
		case gateway.KindGenerationFailed:
			msg = gateway.DetailOf(err)
		}
		if msg == "" {
			msg = o.tr.Resolve(locale.KeyGenerationFailed)
		}
		log.WithError(err).WithField("elapsed", time.Since(started)).Warn("story generation failed")
		o.setLocked(State{Phase: PhaseFailed, ErrorKind: kind, Error: msg})
		return nil, err
	}

	log.WithFields(logrus.Fields{"story_id": story.ID, "elapsed": time.Since(started)}).Info("story generated")
	if o.opts.Sink != nil {
		o.opts.Sink.Put(story)
	}
	o.setLocked(State{Phase: PhaseSucceeded, Progress: 100, StoryID: story.ID})
	o.reset = time.AfterFunc(o.opts.ResetDelay, func() { o.resetProgress(attempt) })
	return story, nil
}

// Close 组件销毁时取消所有定时任务
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	ticker := o.ticker
	o.stopTickerLocked()
	o.stopResetLocked()
	o.mu.Unlock()

	if ticker != nil {
		<-ticker.Done()
	}
	o.hub.Close()
}

func (o *Orchestrator) tick(attempt uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if attempt != o.attempt || o.state.Phase != PhaseSubmitting {
		return
	}
	inc := o.opts.MinIncrement + o.opts.Rand()*(o.opts.MaxIncrement-o.opts.MinIncrement)
	next := o.state
	next.Progress = min(next.Progress+inc, o.opts.ProgressCap)
	if next.Progress == o.state.Progress {
		return
	}
	o.setLocked(next)
}

func (o *Orchestrator) resetProgress(attempt uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed || attempt != o.attempt || o.state.Phase != PhaseSucceeded {
		return
	}
	next := o.state
	next.Progress = 0
	o.setLocked(next)
}

func (o *Orchestrator) validationError(err error) error {
	key := locale.KeyTopicRequired
	if errors.Is(err, model.ErrTopicTooLong) {
		key = locale.KeyTopicTooLong
	}
	return &gateway.Error{Kind: gateway.KindValidation, Message: o.tr.Resolve(key), Err: err}
}

// setLocked 在持锁状态下更新并广播，保证订阅者看到的顺序与状态转换一致
func (o *Orchestrator) setLocked(s State) {
	o.state = s
	o.hub.Publish(s)
}

func (o *Orchestrator) stopTickerLocked() {
	if o.ticker != nil {
		o.ticker.Stop()
		o.ticker = nil
	}
}

func (o *Orchestrator) stopResetLocked() {
	if o.reset != nil {
		o.reset.Stop()
		o.reset = nil
	}
}
