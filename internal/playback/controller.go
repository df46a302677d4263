// Package playback 已加载故事的章节导航与朗读控制
package playback

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/sirupsen/logrus"

	"storyteller/internal/audio"
	"storyteller/internal/gateway"
	"storyteller/internal/locale"
	"storyteller/internal/model"
	"storyteller/internal/notify"
)

var (
	ErrNotReady = errors.New("story not ready")
	ErrClosed   = errors.New("playback closed")
)

// Fetcher 获取故事
type Fetcher interface {
	FetchStory(ctx context.Context, storyID string) (*model.Story, error)
}

// AudioLocator 章节音频地址
type AudioLocator interface {
	AudioURL(storyID string, index int) string
}

// Translator 文案解析
type Translator interface {
	Resolve(key string) string
}

// Controller 持有一个故事的播放状态。所有操作串行执行；
// 每次开始朗读都带有token和章节号，过期的回调被丢弃，同一时刻最多一个音频在播放
type Controller struct {
	mu          sync.Mutex
	state       State
	token       uint64
	loadSeq     uint64
	stream      audio.Stream
	cancelAudio context.CancelFunc
	closed      bool

	ctx    context.Context
	cancel context.CancelFunc

	fetcher Fetcher
	player  audio.Player
	urls    AudioLocator
	tr      Translator
	hub     *notify.Hub[State]
	log     *logrus.Entry
}

func New(fetcher Fetcher, player audio.Player, urls AudioLocator, tr Translator, logger *logrus.Entry) *Controller {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		state:   State{Status: StatusLoading},
		ctx:     ctx,
		cancel:  cancel,
		fetcher: fetcher,
		player:  player,
		urls:    urls,
		tr:      tr,
		hub:     notify.NewHub[State](),
		log:     logger.WithField("component", "playback"),
	}
}

// State 当前状态
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe 订阅状态变更
func (c *Controller) Subscribe() (<-chan State, func()) {
	return c.hub.Subscribe()
}

// Load 加载故事：loading -> {ready, load-failed}
func (c *Controller) Load(ctx context.Context, storyID string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.releaseAudioLocked()
	c.loadSeq++
	seq := c.loadSeq
	c.setLocked(State{Status: StatusLoading, StoryID: storyID})
	c.mu.Unlock()

	story, err := c.fetcher.FetchStory(ctx, storyID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || seq != c.loadSeq {
		return err
	}
	if err != nil {
		c.log.WithError(err).WithField("story_id", storyID).Warn("load story failed")
		c.setLocked(State{Status: StatusLoadFailed, StoryID: storyID, LoadError: c.loadErrorMessage(err)})
		return err
	}
	c.setLocked(State{
		Status:   StatusReady,
		StoryID:  storyID,
		Story:    story,
		Playback: PlaybackState{CurrentIndex: 0, Audio: AudioIdle},
	})
	return nil
}

// GoTo 跳转章节，越界时不做任何事
func (c *Controller) GoTo(index int) bool {
	return c.navigate(func(p PlaybackState, n int) (PlaybackState, bool) { return p.GoTo(index, n) })
}

// Next 下一章，最后一章时不做任何事
func (c *Controller) Next() bool {
	return c.navigate(PlaybackState.Next)
}

// Previous 上一章，第一章时不做任何事
func (c *Controller) Previous() bool {
	return c.navigate(PlaybackState.Previous)
}

func (c *Controller) navigate(move func(PlaybackState, int) (PlaybackState, bool)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.state.Status != StatusReady {
		return false
	}
	next, ok := move(c.state.Playback, c.state.episodeCount())
	if !ok {
		return false
	}
	c.releaseAudioLocked()
	s := c.state
	s.Playback = next
	s.AudioError = ""
	c.setLocked(s)
	return true
}

// ToggleAudio 播放中则停止；空闲则开始朗读当前章节。加载中再次切换会取消本次加载。
// 开始播放是异步的，结果通过状态通知
func (c *Controller) ToggleAudio() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.state.Status != StatusReady || c.state.episodeCount() == 0 {
		return ErrNotReady
	}

	s := c.state
	switch s.Playback.Audio {
	case AudioPlaying, AudioLoading:
		c.releaseAudioLocked()
		s.Playback.Audio = AudioIdle
		c.setLocked(s)
		return nil
	}

	c.releaseAudioLocked()
	token := c.token
	index := s.Playback.CurrentIndex
	url := c.urls.AudioURL(s.StoryID, index)
	ctx, cancel := context.WithCancel(c.ctx)
	c.cancelAudio = cancel

	s.Playback.Audio = AudioLoading
	s.AudioError = ""
	c.setLocked(s)

	go c.runAudio(ctx, token, index, url)
	return nil
}

func (c *Controller) runAudio(ctx context.Context, token uint64, index int, url string) {
	log := c.log.WithFields(logrus.Fields{"index": index, "token": token})
	stream, err := c.player.Start(ctx, url)

	c.mu.Lock()
	if !c.currentLocked(token, index) || c.state.Playback.Audio != AudioLoading {
		c.mu.Unlock()
		if stream != nil {
			stream.Stop()
		}
		log.Debug("discard stale audio start")
		return
	}
	if err != nil {
		c.releaseAudioLocked()
		s := c.state
		s.Playback.Audio = AudioIdle
		s.AudioError = c.tr.Resolve(locale.KeyAudioFailed)
		c.setLocked(s)
		c.mu.Unlock()
		log.WithError(&gateway.Error{Kind: gateway.KindAudioFailed, Message: err.Error(), Err: err}).Warn("audio start failed")
		return
	}
	c.stream = stream
	s := c.state
	s.Playback.Audio = AudioPlaying
	c.setLocked(s)
	c.mu.Unlock()

	err = <-stream.Done()

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.currentLocked(token, index) || c.stream != stream {
		return
	}
	c.releaseAudioLocked()
	s = c.state
	s.Playback.Audio = AudioIdle
	if err != nil && !errors.Is(err, audio.ErrStopped) {
		log.WithError(err).Warn("audio ended with error")
		s.AudioError = c.tr.Resolve(locale.KeyAudioFailed)
	}
	c.setLocked(s)
}

// Close 离开故事页面时释放音频
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.releaseAudioLocked()
	c.cancel()
	c.mu.Unlock()
	c.hub.Close()
}

func (c *Controller) currentLocked(token uint64, index int) bool {
	return !c.closed && token == c.token && c.state.Playback.CurrentIndex == index
}

// releaseAudioLocked 使所有进行中的音频回调失效并释放当前音频
func (c *Controller) releaseAudioLocked() {
	c.token++
	if c.stream != nil {
		c.stream.Stop()
		c.stream = nil
	}
	if c.cancelAudio != nil {
		c.cancelAudio()
		c.cancelAudio = nil
	}
}

func (c *Controller) loadErrorMessage(err error) string {
	var ge *gateway.Error
	if errors.As(err, &ge) && ge.Kind == gateway.KindNotFound && ge.Status == http.StatusNotFound {
		return c.tr.Resolve(locale.KeyStoryNotFound)
	}
	if msg := gateway.MessageOf(err); msg != "" {
		return msg
	}
	return c.tr.Resolve(locale.KeyStoryLoadFailed)
}

func (c *Controller) setLocked(s State) {
	c.state = s.withBounds()
	c.hub.Publish(c.state)
}
