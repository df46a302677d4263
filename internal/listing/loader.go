// Package listing 已生成故事列表
package listing

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"storyteller/internal/model"
	"storyteller/internal/notify"
)

const (
	DefaultPageSize = 20
	DefaultOffset   = 0
)

// Status 列表状态，没有错误状态，失败时按空列表处理
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusLoaded  Status = "loaded"
)

type State struct {
	Status  Status                 `json:"status"`
	Stories []model.StoryListEntry `json:"stories"`
}

// Empty 已加载且没有故事
func (s State) Empty() bool {
	return s.Status == StatusLoaded && len(s.Stories) == 0
}

// Lister 获取故事列表，实现方在失败时返回空列表
type Lister interface {
	ListStories(ctx context.Context, limit, offset int) []model.StoryListEntry
}

// Loader 只加载第一页
type Loader struct {
	mu     sync.Mutex
	state  State
	seq    uint64
	limit  int
	offset int

	lister Lister
	hub    *notify.Hub[State]
	log    *logrus.Entry
}

func New(lister Lister, limit, offset int, logger *logrus.Entry) *Loader {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if offset < 0 {
		offset = DefaultOffset
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Loader{
		state:  State{Status: StatusIdle, Stories: []model.StoryListEntry{}},
		limit:  limit,
		offset: offset,
		lister: lister,
		hub:    notify.NewHub[State](),
		log:    logger.WithField("component", "listing"),
	}
}

func (l *Loader) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Loader) Subscribe() (<-chan State, func()) {
	return l.hub.Subscribe()
}

// Load 加载列表：loading -> loaded。并发加载时以最后一次为准
func (l *Loader) Load(ctx context.Context) State {
	l.mu.Lock()
	l.seq++
	seq := l.seq
	l.setLocked(State{Status: StatusLoading, Stories: l.state.Stories})
	l.mu.Unlock()

	stories := l.lister.ListStories(ctx, l.limit, l.offset)
	if stories == nil {
		stories = []model.StoryListEntry{}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if seq != l.seq {
		return l.state
	}
	l.log.WithField("count", len(stories)).Debug("story list loaded")
	l.setLocked(State{Status: StatusLoaded, Stories: stories})
	return l.state
}

func (l *Loader) setLocked(s State) {
	l.state = s
	l.hub.Publish(s)
}

func (l *Loader) Close() {
	l.hub.Close()
}
