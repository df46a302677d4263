// Package storycache 进程级故事缓存，避免重复拉取已加载或刚生成的故事
package storycache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"storyteller/internal/model"
)

// Fetcher 获取故事
type Fetcher interface {
	FetchStory(ctx context.Context, storyID string) (*model.Story, error)
}

// Cache 带TTL的故事缓存，失败结果不缓存
type Cache struct {
	next  Fetcher
	items *gocache.Cache
}

func New(next Fetcher, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Cache{next: next, items: gocache.New(ttl, 2*ttl)}
}

// FetchStory 优先从缓存读取
func (c *Cache) FetchStory(ctx context.Context, storyID string) (*model.Story, error) {
	if v, ok := c.items.Get(storyID); ok {
		return v.(*model.Story), nil
	}
	story, err := c.next.FetchStory(ctx, storyID)
	if err != nil {
		return nil, err
	}
	c.items.SetDefault(storyID, story)
	return story, nil
}

// Put 写入缓存，生成成功后调用
func (c *Cache) Put(story *model.Story) {
	if story == nil || story.ID == "" {
		return
	}
	c.items.SetDefault(story.ID, story)
}

// Forget 删除缓存
func (c *Cache) Forget(storyID string) {
	c.items.Delete(storyID)
}
