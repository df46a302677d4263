// Package locale 界面文案解析与语言偏好
package locale

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"storyteller/internal/model"
	"storyteller/internal/notify"
)

// Resolver 进程级语言上下文。启动时读取一次持久化的偏好，
// 非法或缺失时使用en
type Resolver struct {
	mu     sync.RWMutex
	active model.Locale
	store  Store
	hub    *notify.Hub[model.Locale]
	log    *logrus.Entry
}

// New 创建Resolver并读取持久化的语言偏好
func New(store Store, logger *logrus.Entry) *Resolver {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	r := &Resolver{
		active: model.DefaultLocale,
		store:  store,
		hub:    notify.NewHub[model.Locale](),
		log:    logger.WithField("component", "locale"),
	}
	if store == nil {
		return r
	}
	raw, err := store.Load()
	if err != nil {
		r.log.WithError(err).Warn("read persisted locale, using default")
		return r
	}
	if l, ok := model.ParseLocale(raw); ok {
		r.active = l
	} else if raw != "" {
		r.log.WithField("value", raw).Warn("invalid persisted locale, using default")
	}
	return r
}

// Locale 当前语言
func (r *Resolver) Locale() model.Locale {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Resolve 查找当前语言下的文案，缺失时返回key本身
func (r *Resolver) Resolve(key string) string {
	r.mu.RLock()
	l := r.active
	r.mu.RUnlock()

	if s, ok := tables[l][key]; ok {
		return s
	}
	return key
}

// ResolveAll 批量解析
func (r *Resolver) ResolveAll(keys ...string) map[string]string {
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		out[k] = r.Resolve(k)
	}
	return out
}

// SetLocale 切换语言并持久化。持久化失败时内存中的语言仍然切换
func (r *Resolver) SetLocale(l model.Locale) error {
	if !l.Valid() {
		return fmt.Errorf("unsupported locale %q", l)
	}
	r.mu.Lock()
	r.active = l
	r.mu.Unlock()
	r.hub.Publish(l)

	if r.store == nil {
		return nil
	}
	if err := r.store.Save(string(l)); err != nil {
		r.log.WithError(err).WithField("locale", l).Error("persist locale")
		return err
	}
	return nil
}

// Subscribe 订阅语言变更
func (r *Resolver) Subscribe() (<-chan model.Locale, func()) {
	return r.hub.Subscribe()
}
