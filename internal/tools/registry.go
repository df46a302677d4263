// Package tools 把故事生成、读取、列表、导出包装为eino工具
package tools

import (
	"context"
	"fmt"
	"sort"

	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// Backend 工具调用的会话能力
type Backend interface {
	Generator
	Exporter
	Lister
}

// Registry 按名称查找工具
type Registry struct {
	tools map[string]einotool.InvokableTool
}

// NewRegistry 为一个会话创建全部工具
func NewRegistry(ctx context.Context, backend Backend, fetcher Fetcher) (*Registry, error) {
	r := &Registry{tools: make(map[string]einotool.InvokableTool)}
	for _, t := range []einotool.InvokableTool{
		NewStoryTool(backend),
		NewStoryGetTool(fetcher),
		NewListTool(backend),
		NewVideoTool(backend),
	} {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, err
		}
		r.tools[info.Name] = t
	}
	return r, nil
}

// Infos 全部工具描述，按名称排序
func (r *Registry) Infos(ctx context.Context) ([]*schema.ToolInfo, error) {
	infos := make([]*schema.ToolInfo, 0, len(r.tools))
	for _, t := range r.tools {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// Invoke 调用指定工具
func (r *Registry) Invoke(ctx context.Context, name, argumentsInJSON string) (string, error) {
	t, ok := r.tools[name]
	if !ok {
		return "", fmt.Errorf("unknown tool %q", name)
	}
	if argumentsInJSON == "" {
		argumentsInJSON = "{}"
	}
	return t.InvokableRun(ctx, argumentsInJSON)
}

// Has 是否存在该工具
func (r *Registry) Has(name string) bool {
	_, ok := r.tools[name]
	return ok
}
