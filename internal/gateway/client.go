// Package gateway 故事服务API客户端：把领域请求转成HTTP调用，
// 把响应和失败转成领域结果或类型化失败。所有调用均为单次请求，不做重试
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/imroc/req/v3"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"storyteller/internal/model"
)

const (
	defaultTimeout   = 10 * time.Minute
	defaultUserAgent = "storyteller-client/1.0"
)

// Options 客户端配置
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	Logger    *logrus.Entry
}

// Client 故事服务客户端
type Client struct {
	baseURL string
	http    *req.Client
	log     *logrus.Entry
}

// NewClient 创建客户端
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.Logger == nil {
		opts.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	c := &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		log:     opts.Logger.WithField("component", "gateway"),
	}
	c.http = req.C().
		SetBaseURL(c.baseURL).
		SetTimeout(opts.Timeout).
		SetUserAgent(opts.UserAgent).
		SetCommonHeader("Accept", "application/json").
		OnAfterResponse(func(_ *req.Client, resp *req.Response) error {
			if resp.Response == nil || resp.Request == nil {
				return nil
			}
			c.log.WithFields(logrus.Fields{
				"method":  resp.Request.Method,
				"url":     resp.Request.RawURL,
				"status":  resp.StatusCode,
				"elapsed": resp.TotalTime(),
			}).Debug("api call")
			return nil
		})
	return c
}

// BaseURL API根地址
func (c *Client) BaseURL() string {
	return c.baseURL
}

type generateRequest struct {
	Topic       string `json:"topic"`
	NumEpisodes int    `json:"num_episodes"`
	StoryLang   string `json:"story_lang,omitempty"`
	ImageModel  string `json:"image_model,omitempty"`
	ImageStyle  string `json:"image_style,omitempty"`
}

type wireEpisode struct {
	Text     string `json:"text"`
	ImageURL string `json:"imageUrl"`
}

type wireStory struct {
	StoryID     string        `json:"storyId"`
	Topic       string        `json:"topic"`
	Title       string        `json:"title"`
	NumEpisodes int           `json:"num_episodes"`
	CreatedAt   Timestamp     `json:"created_at"`
	Episodes    []wireEpisode `json:"episodes"`
}

func (w wireStory) toStory() *model.Story {
	s := &model.Story{
		ID:           w.StoryID,
		Topic:        w.Topic,
		Title:        w.Title,
		EpisodeCount: w.NumEpisodes,
		CreatedAt:    w.CreatedAt.Time,
		Episodes:     make([]model.Episode, 0, len(w.Episodes)),
	}
	for _, ep := range w.Episodes {
		s.Episodes = append(s.Episodes, model.Episode{Text: ep.Text, ImageURL: ep.ImageURL})
	}
	if s.EpisodeCount == 0 {
		s.EpisodeCount = len(s.Episodes)
	}
	return s
}

// GenerateStory 提交生成请求并等待故事返回。请求须已通过Normalize
func (c *Client) GenerateStory(ctx context.Context, r model.StoryRequest) (*model.Story, error) {
	body := generateRequest{
		Topic:       r.Topic,
		NumEpisodes: r.EpisodeCount,
		StoryLang:   string(r.StoryLanguage),
		ImageModel:  string(r.ImageModel),
		ImageStyle:  r.ImageStyle,
	}
	var out wireStory
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(&body).
		SetSuccessResult(&out).
		Post("/story/generate")
	if err != nil {
		return nil, &Error{Kind: KindGenerationFailed, Message: err.Error(), Err: err}
	}
	if !resp.IsSuccessState() {
		kind := KindGenerationFailed
		if resp.StatusCode == http.StatusBadGateway || resp.StatusCode == http.StatusGatewayTimeout {
			kind = KindBackendOverloaded
		}
		return nil, &Error{Kind: kind, Status: resp.StatusCode, Message: failureMessage(resp), Detail: detailOf(resp)}
	}
	if out.StoryID == "" {
		return nil, &Error{Kind: KindGenerationFailed, Status: resp.StatusCode, Message: "response missing storyId"}
	}

	story := out.toStory()
	if story.Topic == "" {
		story.Topic = r.Topic
	}
	story.EpisodeCount = len(story.Episodes)
	return story, nil
}

// FetchStory 获取单个故事
func (c *Client) FetchStory(ctx context.Context, storyID string) (*model.Story, error) {
	if strings.TrimSpace(storyID) == "" {
		return nil, &Error{Kind: KindNotFound, Message: "empty story id"}
	}
	var out wireStory
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("storyId", storyID).
		SetSuccessResult(&out).
		Get("/story/{storyId}")
	if err != nil {
		return nil, &Error{Kind: KindNotFound, Message: err.Error(), Err: err}
	}
	if !resp.IsSuccessState() {
		return nil, &Error{Kind: KindNotFound, Status: resp.StatusCode, Message: failureMessage(resp), Detail: detailOf(resp)}
	}
	story := out.toStory()
	if story.ID == "" {
		story.ID = storyID
	}
	c.warnTimestamp(story.ID, out.CreatedAt)
	return story, nil
}

// ListStories 获取故事列表。列表是尽力而为的：任何失败都返回空列表
func (c *Client) ListStories(ctx context.Context, limit, offset int) []model.StoryListEntry {
	var out []wireStory
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("limit", strconv.Itoa(limit)).
		SetQueryParam("offset", strconv.Itoa(offset)).
		SetSuccessResult(&out).
		Get("/stories")
	if err != nil {
		c.log.WithError(err).Warn("list stories")
		return []model.StoryListEntry{}
	}
	if !resp.IsSuccessState() {
		c.log.WithFields(logrus.Fields{"status": resp.StatusCode, "detail": failureMessage(resp)}).Warn("list stories")
		return []model.StoryListEntry{}
	}

	entries := make([]model.StoryListEntry, 0, len(out))
	for _, w := range out {
		c.warnTimestamp(w.StoryID, w.CreatedAt)
		entries = append(entries, model.StoryListEntry{
			ID:           w.StoryID,
			Topic:        w.Topic,
			Title:        w.Title,
			EpisodeCount: w.NumEpisodes,
			CreatedAt:    w.CreatedAt.Time,
		})
	}
	return entries
}

// RequestExport 请求导出视频，返回视频二进制内容
func (c *Client) RequestExport(ctx context.Context, storyID string) ([]byte, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Accept", "video/mp4, application/octet-stream, application/json").
		SetBody(map[string]string{"storyId": storyID}).
		Post("/story/export-video")
	if err != nil {
		return nil, &Error{Kind: KindExportFailed, Message: err.Error(), Err: err}
	}
	if !resp.IsSuccessState() {
		return nil, &Error{Kind: KindExportFailed, Status: resp.StatusCode, Message: failureMessage(resp), Detail: detailOf(resp)}
	}
	data := resp.Bytes()
	if len(data) == 0 {
		return nil, &Error{Kind: KindExportFailed, Status: resp.StatusCode, Message: "empty video payload"}
	}
	return data, nil
}

// AudioURL 章节朗读音频地址，由音频播放直接消费
func (c *Client) AudioURL(storyID string, index int) string {
	return fmt.Sprintf("%s/story/%s/episode/%d/audio", c.baseURL, url.PathEscape(storyID), index)
}

func (c *Client) warnTimestamp(storyID string, ts Timestamp) {
	if ts.Invalid() {
		c.log.WithFields(logrus.Fields{"story_id": storyID, "created_at": ts.Raw}).Warn("unrecognized created_at, left empty")
	}
}

// failureMessage 优先取响应体中的detail，否则使用状态文本
func failureMessage(resp *req.Response) string {
	if detail := detailOf(resp); detail != "" {
		return detail
	}
	if text := http.StatusText(resp.StatusCode); text != "" {
		return text
	}
	return fmt.Sprintf("http %d", resp.StatusCode)
}

// detailOf 提取FastAPI风格的detail：字符串，或校验错误数组中的msg
func detailOf(resp *req.Response) string {
	body := resp.Bytes()
	if !gjson.ValidBytes(body) {
		return ""
	}
	detail := gjson.GetBytes(body, "detail")
	switch {
	case detail.IsArray():
		var msgs []string
		for _, m := range detail.Get("#.msg").Array() {
			if s := strings.TrimSpace(m.String()); s != "" {
				msgs = append(msgs, s)
			}
		}
		return strings.Join(msgs, "; ")
	case detail.Type == gjson.String:
		return strings.TrimSpace(detail.String())
	}
	return ""
}

// Timestamp 兼容RFC3339和不带时区的时间格式（按UTC处理）
type Timestamp struct {
	time.Time
	Raw string // 无法识别时保留原文，Time为零值
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			t.Time = parsed
			return nil
		}
	}
	// 一条记录的时间格式异常不应让整页列表或整个故事解析失败
	t.Raw = s
	return nil
}

// Invalid 后端给了时间但无法识别
func (t Timestamp) Invalid() bool {
	return t.Time.IsZero() && t.Raw != ""
}
