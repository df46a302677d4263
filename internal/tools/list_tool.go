package tools

import (
	"context"

	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"storyteller/internal/listing"
)

// Lister 加载故事列表第一页
type Lister interface {
	ListStories(ctx context.Context) listing.State
}

// ListTool 列出已生成的故事
type ListTool struct {
	lister Lister
}

func NewListTool(lister Lister) *ListTool {
	return &ListTool{lister: lister}
}

func (t *ListTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name:        "story_list",
		Desc:        "列出最近生成的故事，只返回第一页",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{}),
	}, nil
}

// InvokableRun 列表加载失败时返回空列表，不报错
func (t *ListTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...einotool.Option) (string, error) {
	return marshal(t.lister.ListStories(ctx).Stories)
}

var _ einotool.InvokableTool = (*ListTool)(nil)
