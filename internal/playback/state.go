package playback

import (
	"net/url"
	"strings"

	"storyteller/internal/model"
)

// Status 故事加载状态
type Status string

const (
	StatusLoading    Status = "loading"
	StatusReady      Status = "ready"
	StatusLoadFailed Status = "load-failed"
)

// AudioStatus 朗读状态
type AudioStatus string

const (
	AudioIdle    AudioStatus = "idle"
	AudioLoading AudioStatus = "loading"
	AudioPlaying AudioStatus = "playing"
)

// PlaybackState 当前章节和朗读状态。切换章节总是让朗读回到idle
type PlaybackState struct {
	CurrentIndex int         `json:"currentIndex"`
	Audio        AudioStatus `json:"audioStatus"`
}

// GoTo 跳转到指定章节，越界时返回原状态和false
func (p PlaybackState) GoTo(index, count int) (PlaybackState, bool) {
	if index < 0 || index >= count {
		return p, false
	}
	return PlaybackState{CurrentIndex: index, Audio: AudioIdle}, true
}

func (p PlaybackState) Next(count int) (PlaybackState, bool) {
	return p.GoTo(p.CurrentIndex+1, count)
}

func (p PlaybackState) Previous(count int) (PlaybackState, bool) {
	return p.GoTo(p.CurrentIndex-1, count)
}

// State Controller的状态快照
type State struct {
	Status      Status        `json:"status"`
	StoryID     string        `json:"storyId"`
	Story       *model.Story  `json:"story,omitempty"`
	Playback    PlaybackState `json:"playback"`
	HasPrevious bool          `json:"hasPrevious"`
	HasNext     bool          `json:"hasNext"`
	AudioError  string        `json:"audioError,omitempty"`
	LoadError   string        `json:"loadError,omitempty"`
}

func (s State) episodeCount() int {
	if s.Story == nil {
		return 0
	}
	return len(s.Story.Episodes)
}

// CurrentEpisode 当前章节，未就绪时返回false
func (s State) CurrentEpisode() (model.Episode, bool) {
	if s.Status != StatusReady || s.Playback.CurrentIndex >= s.episodeCount() {
		return model.Episode{}, false
	}
	return s.Story.Episodes[s.Playback.CurrentIndex], true
}

func (s State) withBounds() State {
	n := s.episodeCount()
	s.HasPrevious = s.Status == StatusReady && s.Playback.CurrentIndex > 0
	s.HasNext = s.Status == StatusReady && s.Playback.CurrentIndex < n-1
	return s
}

// ShareURL 故事的分享链接：<origin>/story/<id>
func ShareURL(origin, storyID string) string {
	return strings.TrimRight(origin, "/") + "/story/" + url.PathEscape(storyID)
}
