package tools

import (
	"context"
	"encoding/json"
	"errors"

	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// Exporter 导出视频并保存，返回保存路径
type Exporter interface {
	ExportStory(ctx context.Context, storyID string) (string, error)
}

// 实现eino框架的视频导出工具
type VideoTool struct {
	exporter Exporter
}

// 视频导出请求参数
type VideoToolArgs struct {
	StoryID string `json:"story_id"`
}

// 视频导出响应
type VideoToolResp struct {
	StoryID string `json:"story_id"`
	File    string `json:"file"`
}

func NewVideoTool(exporter Exporter) *VideoTool {
	return &VideoTool{exporter: exporter}
}

// Info 获取视频导出工具信息
func (t *VideoTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	params := map[string]*schema.ParameterInfo{
		"story_id": {Type: schema.String, Required: true, Desc: "要导出的故事ID"},
	}
	return &schema.ToolInfo{
		Name:        "video_export",
		Desc:        "把故事的插图和朗读合成为mp4视频并保存到下载目录",
		ParamsOneOf: schema.NewParamsOneOfByParams(params),
	}, nil
}

// InvokableRun 执行视频导出，同一会话同时只能有一个导出
func (t *VideoTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...einotool.Option) (string, error) {
	var args VideoToolArgs
	if err := json.Unmarshal([]byte(argumentsInJSON), &args); err != nil {
		return "", err
	}
	if args.StoryID == "" {
		return "", errors.New("story_id required")
	}

	path, err := t.exporter.ExportStory(ctx, args.StoryID)
	if err != nil {
		return "", err
	}
	return marshal(VideoToolResp{StoryID: args.StoryID, File: path})
}

var _ einotool.InvokableTool = (*VideoTool)(nil)
