package tools

import (
	"context"
	"encoding/json"
	"errors"

	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"storyteller/internal/model"
)

// Generator 生成故事，生成成功后会话会直接打开该故事
type Generator interface {
	Generate(ctx context.Context, r model.StoryRequest) (*model.Story, error)
}

// Fetcher 按ID获取故事
type Fetcher interface {
	FetchStory(ctx context.Context, storyID string) (*model.Story, error)
}

// StoryTool 实现eino框架的故事生成工具
type StoryTool struct {
	gen Generator
}

// StoryToolArgs 故事生成请求参数
type StoryToolArgs struct {
	Topic        string `json:"topic"`                   // 故事主题
	EpisodeCount int    `json:"episode_count,omitempty"` // 章节数 1-10
	Language     string `json:"story_lang,omitempty"`    // en 或 th
	ImageModel   string `json:"image_model,omitempty"`   // flux 或 zimage
	ImageStyle   string `json:"image_style,omitempty"`
}

// StoryToolResp 故事生成响应
type StoryToolResp struct {
	Story   *model.Story `json:"story"`
	Message string       `json:"message"`
}

func NewStoryTool(gen Generator) *StoryTool {
	return &StoryTool{gen: gen}
}

// Info 获取故事生成工具信息
func (t *StoryTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	params := map[string]*schema.ParameterInfo{
		"topic":         {Type: schema.String, Required: true, Desc: "故事主题"},
		"episode_count": {Type: schema.Integer, Desc: "章节数，1到10，超出范围会被截断"},
		"story_lang":    {Type: schema.String, Desc: "故事语言", Enum: []string{string(model.LocaleEN), string(model.LocaleTH)}},
		"image_model":   {Type: schema.String, Desc: "插图模型", Enum: []string{string(model.ImageModelFlux), string(model.ImageModelZImage)}},
		"image_style":   {Type: schema.String, Desc: "插图风格，可选"},
	}
	return &schema.ToolInfo{
		Name:        "story_generate",
		Desc:        "根据主题生成一个带插图的多章节故事，并在会话中打开",
		ParamsOneOf: schema.NewParamsOneOfByParams(params),
	}, nil
}

// InvokableRun 执行故事生成任务，会阻塞到后端返回
func (t *StoryTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...einotool.Option) (string, error) {
	var args StoryToolArgs
	if err := json.Unmarshal([]byte(argumentsInJSON), &args); err != nil {
		return "", err
	}

	story, err := t.gen.Generate(ctx, model.StoryRequest{
		Topic:         args.Topic,
		EpisodeCount:  args.EpisodeCount,
		StoryLanguage: model.Locale(args.Language),
		ImageModel:    model.ImageModel(args.ImageModel),
		ImageStyle:    args.ImageStyle,
	})
	if err != nil {
		return "", err
	}
	return marshal(StoryToolResp{Story: story, Message: "story generated"})
}

// StoryGetTool 按ID读取故事
type StoryGetTool struct {
	fetcher Fetcher
}

type StoryGetArgs struct {
	StoryID string `json:"story_id"`
}

func NewStoryGetTool(fetcher Fetcher) *StoryGetTool {
	return &StoryGetTool{fetcher: fetcher}
}

func (t *StoryGetTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	params := map[string]*schema.ParameterInfo{
		"story_id": {Type: schema.String, Required: true, Desc: "故事ID"},
	}
	return &schema.ToolInfo{
		Name:        "story_get",
		Desc:        "读取已生成故事的全部章节",
		ParamsOneOf: schema.NewParamsOneOfByParams(params),
	}, nil
}

func (t *StoryGetTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...einotool.Option) (string, error) {
	var args StoryGetArgs
	if err := json.Unmarshal([]byte(argumentsInJSON), &args); err != nil {
		return "", err
	}
	if args.StoryID == "" {
		return "", errors.New("story_id required")
	}
	story, err := t.fetcher.FetchStory(ctx, args.StoryID)
	if err != nil {
		return "", err
	}
	return marshal(story)
}

func marshal(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// 确保实现了einotool.InvokableTool接口
var (
	_ einotool.InvokableTool = (*StoryTool)(nil)
	_ einotool.InvokableTool = (*StoryGetTool)(nil)
)
