package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"storyteller/internal/audio"
	"storyteller/internal/export"
	"storyteller/internal/generation"
	"storyteller/internal/listing"
	"storyteller/internal/model"
	"storyteller/internal/playback"
)

const DefaultTTL = 30 * time.Minute

// Fetcher 获取故事，通常是带缓存的网关
type Fetcher interface {
	FetchStory(ctx context.Context, storyID string) (*model.Story, error)
}

// Translator 文案解析
type Translator interface {
	Resolve(key string) string
}

// Deps 会话共享的依赖
type Deps struct {
	Generator  generation.Generator
	Fetcher    Fetcher
	Sink       generation.StorySink
	Lister     listing.Lister
	Exporter   export.Exporter
	Saver      export.Saver
	Player     audio.Player
	Audio      playback.AudioLocator
	Translator Translator
	Generation generation.Options
	PageSize   int
	Offset     int
	Logger     *logrus.Entry
}

// Manager 会话管理，空闲超时的会话被关闭
type Manager struct {
	mu       sync.Mutex
	sessions *gocache.Cache
	deps     Deps
	log      *logrus.Entry
}

func NewManager(deps Deps, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if deps.Logger == nil {
		deps.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	m := &Manager{
		sessions: gocache.New(ttl, ttl/2),
		deps:     deps,
		log:      deps.Logger.WithField("component", "session"),
	}
	m.sessions.OnEvicted(func(id string, v any) {
		v.(*Session).Close()
		m.log.WithField("session_id", id).Info("session evicted")
	})
	return m
}

// Get 获取会话并刷新过期时间。id为空或无效时创建新会话
func (m *Manager) Get(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id != "" {
		if v, ok := m.sessions.Get(id); ok {
			m.sessions.SetDefault(id, v)
			return v.(*Session)
		}
		if _, err := uuid.Parse(id); err != nil {
			id = ""
		}
	}
	if id == "" {
		id = uuid.NewString()
	}
	s := newSession(id, &m.deps)
	m.sessions.SetDefault(id, s)
	m.log.WithField("session_id", id).Info("session created")
	return s
}

// Lookup 只查找不创建
func (m *Manager) Lookup(id string) (*Session, bool) {
	v, ok := m.sessions.Get(id)
	if !ok {
		return nil, false
	}
	return v.(*Session), true
}

// Delete 关闭并移除会话
func (m *Manager) Delete(id string) {
	m.sessions.Delete(id)
}

func (m *Manager) Count() int {
	return m.sessions.ItemCount()
}

// Close 关闭所有会话
func (m *Manager) Close() {
	for id := range m.sessions.Items() {
		m.sessions.Delete(id)
	}
}
