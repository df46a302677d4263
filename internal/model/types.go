package model

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MinEpisodes    = 1  // 最少章节数
	MaxEpisodes    = 10 // 最多章节数
	MaxTopicLength = 500
)

var (
	ErrEmptyTopic   = errors.New("topic required")
	ErrTopicTooLong = errors.New("topic too long")
)

// Locale 界面语言
type Locale string

const (
	LocaleEN Locale = "en"
	LocaleTH Locale = "th"
)

// DefaultLocale 未设置或非法时使用的语言
const DefaultLocale = LocaleEN

// Valid 是否为支持的语言
func (l Locale) Valid() bool {
	return l == LocaleEN || l == LocaleTH
}

// ImageModel 插画生成模型
type ImageModel string

const (
	ImageModelFlux   ImageModel = "flux"
	ImageModelZImage ImageModel = "zimage"
)

func (m ImageModel) Valid() bool {
	return m == ImageModelFlux || m == ImageModelZImage
}

// StylePreset 插画风格预设，Value原样作为imageStyle发给后端
type StylePreset struct {
	ID       string `json:"id"`
	Value    string `json:"value"`
	LabelKey string `json:"labelKey"`
}

// ImageStylePresets 第一项为不指定风格
var ImageStylePresets = []StylePreset{
	{ID: "none", Value: "", LabelKey: "style.none"},
	{ID: "cartoon", Value: "cartoon style", LabelKey: "style.cartoon"},
	{ID: "watercolor", Value: "watercolor painting", LabelKey: "style.watercolor"},
	{ID: "retro", Value: "retro vintage", LabelKey: "style.retro"},
}

// LookupStylePreset 按ID查找预设
func LookupStylePreset(id string) (StylePreset, bool) {
	for _, p := range ImageStylePresets {
		if p.ID == id {
			return p, true
		}
	}
	return StylePreset{}, false
}

// StoryRequest 故事生成请求
type StoryRequest struct {
	Topic         string     `json:"topic"`                // 故事主题
	EpisodeCount  int        `json:"episodeCount"`         // 章节数
	StoryLanguage Locale     `json:"storyLanguage"`        // 故事语言
	ImageModel    ImageModel `json:"imageModel"`           // 插画模型
	ImageStyle    string     `json:"imageStyle,omitempty"` // 插画风格，可选，见ImageStylePresets
}

// Normalize 校验并规整请求：主题去空白且必填，章节数限制在[1,10]，
// 未知的语言和模型回落到默认值
func (r StoryRequest) Normalize() (StoryRequest, error) {
	out := r
	out.Topic = strings.TrimSpace(r.Topic)
	if out.Topic == "" {
		return out, ErrEmptyTopic
	}
	if utf8.RuneCountInString(out.Topic) > MaxTopicLength {
		return out, ErrTopicTooLong
	}
	out.EpisodeCount = ClampEpisodes(r.EpisodeCount)
	if !out.StoryLanguage.Valid() {
		out.StoryLanguage = DefaultLocale
	}
	if !out.ImageModel.Valid() {
		out.ImageModel = ImageModelFlux
	}
	out.ImageStyle = strings.TrimSpace(r.ImageStyle)
	return out, nil
}

// ClampEpisodes 将章节数限制在允许范围内
func ClampEpisodes(n int) int {
	if n < MinEpisodes {
		return MinEpisodes
	}
	if n > MaxEpisodes {
		return MaxEpisodes
	}
	return n
}

// Episode 故事的一个章节
type Episode struct {
	Text     string `json:"text"`     // 章节内容
	ImageURL string `json:"imageUrl"` // 插画地址，可能为空
}

// Story 完整故事
type Story struct {
	ID           string    `json:"storyId"`
	Topic        string    `json:"topic"`
	Title        string    `json:"title"`
	EpisodeCount int       `json:"episodeCount"`
	CreatedAt    time.Time `json:"createdAt"`
	Episodes     []Episode `json:"episodes"`
}

// StoryListEntry 故事列表项，不含章节内容
type StoryListEntry struct {
	ID           string    `json:"storyId"`
	Topic        string    `json:"topic"`
	Title        string    `json:"title"`
	EpisodeCount int       `json:"episodeCount"`
	CreatedAt    time.Time `json:"createdAt"`
}
