// Package session 每个浏览器会话持有的一组控制器
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"storyteller/internal/export"
	"storyteller/internal/generation"
	"storyteller/internal/listing"
	"storyteller/internal/model"
	"storyteller/internal/playback"
)

var (
	// ErrNoStory 会话当前没有打开该故事
	ErrNoStory = errors.New("story is not open in this session")
	ErrClosed  = errors.New("session closed")
)

// Session 一个会话：生成、播放、导出、列表各一个控制器。
// 同一时刻只有一个打开的故事
type Session struct {
	ID string

	mu       sync.Mutex
	playback *playback.Controller
	closed   bool

	gen    *generation.Orchestrator
	export *export.Controller
	list   *listing.Loader
	deps   *Deps
	log    *logrus.Entry
}

func newSession(id string, deps *Deps) *Session {
	log := deps.Logger.WithField("session_id", id)
	genOpts := deps.Generation
	genOpts.Sink = deps.Sink
	genOpts.Logger = log
	return &Session{
		ID:     id,
		gen:    generation.New(deps.Generator, deps.Translator, genOpts),
		export: export.New(deps.Exporter, deps.Saver, deps.Translator, log),
		list:   listing.New(deps.Lister, deps.PageSize, deps.Offset, log),
		deps:   deps,
		log:    log.WithField("component", "session"),
	}
}

func (s *Session) Generation() *generation.Orchestrator { return s.gen }

func (s *Session) Export() *export.Controller { return s.export }

func (s *Session) Listing() *listing.Loader { return s.list }

// Generate 提交生成，成功后直接打开新故事
func (s *Session) Generate(ctx context.Context, r model.StoryRequest) (*model.Story, error) {
	story, err := s.gen.Submit(ctx, r)
	if err != nil {
		return nil, err
	}
	if _, err := s.OpenStory(ctx, story.ID); err != nil {
		s.log.WithError(err).WithField("story_id", story.ID).Warn("open generated story failed")
	}
	return story, nil
}

// OpenStory 打开故事。已打开同一故事时复用当前控制器，否则关闭旧的再加载新的
func (s *Session) OpenStory(ctx context.Context, storyID string) (*playback.Controller, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if cur := s.playback; cur != nil {
		st := cur.State()
		if st.StoryID == storyID && st.Status != playback.StatusLoadFailed {
			s.mu.Unlock()
			return cur, nil
		}
		cur.Close()
	}
	ctrl := playback.New(s.deps.Fetcher, s.deps.Player, s.deps.Audio, s.deps.Translator, s.log)
	s.playback = ctrl
	s.mu.Unlock()

	return ctrl, ctrl.Load(ctx, storyID)
}

// Playback 返回已打开故事的控制器
func (s *Session) Playback(storyID string) (*playback.Controller, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.playback == nil || s.playback.State().StoryID != storyID {
		return nil, ErrNoStory
	}
	return s.playback, nil
}

// ExportStory 导出视频，文件名取故事标题，取不到标题时用默认文件名
func (s *Session) ExportStory(ctx context.Context, storyID string) (string, error) {
	title := ""
	if story, err := s.deps.Fetcher.FetchStory(ctx, storyID); err == nil {
		title = story.Title
	}
	return s.export.Export(ctx, storyID, title)
}

// ListStories 加载故事列表第一页
func (s *Session) ListStories(ctx context.Context) listing.State {
	return s.list.Load(ctx)
}

// Close 释放会话持有的所有资源
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	pb := s.playback
	s.playback = nil
	s.mu.Unlock()

	if pb != nil {
		pb.Close()
	}
	s.gen.Close()
	s.export.Close()
	s.list.Close()
	s.log.Debug("session closed")
}
