// Package export 视频导出：请求导出、接收二进制、触发保存
package export

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"storyteller/internal/gateway"
	"storyteller/internal/locale"
	"storyteller/internal/notify"
)

// ErrExportInFlight 已有导出在进行中
var ErrExportInFlight = errors.New("export already in progress")

// Status 导出状态
type Status string

const (
	StatusIdle      Status = "idle"
	StatusExporting Status = "exporting"
)

// State 导出状态快照
type State struct {
	Status    Status `json:"status"`
	StoryID   string `json:"storyId,omitempty"`
	LastError string `json:"lastError,omitempty"`
	LastFile  string `json:"lastFile,omitempty"`
}

// Exporter 请求导出视频
type Exporter interface {
	RequestExport(ctx context.Context, storyID string) ([]byte, error)
}

// Translator 文案解析
type Translator interface {
	Resolve(key string) string
}

// Controller 同一时刻只支持一个导出：idle -> exporting -> idle
type Controller struct {
	mu    sync.Mutex
	state State

	exporter Exporter
	saver    Saver
	tr       Translator
	hub      *notify.Hub[State]
	log      *logrus.Entry
}

func New(exporter Exporter, saver Saver, tr Translator, logger *logrus.Entry) *Controller {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Controller{
		state:    State{Status: StatusIdle},
		exporter: exporter,
		saver:    saver,
		tr:       tr,
		hub:      notify.NewHub[State](),
		log:      logger.WithField("component", "export"),
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Subscribe() (<-chan State, func()) {
	return c.hub.Subscribe()
}

// Export 导出视频并保存，文件名取自故事标题。无论成败最终都回到idle
func (c *Controller) Export(ctx context.Context, storyID, title string) (string, error) {
	c.mu.Lock()
	if c.state.Status == StatusExporting {
		c.mu.Unlock()
		return "", ErrExportInFlight
	}
	prev := c.state
	c.setLocked(State{Status: StatusExporting, StoryID: storyID, LastFile: prev.LastFile})
	c.mu.Unlock()

	log := c.log.WithField("story_id", storyID)
	started := time.Now()
	path, err := c.run(ctx, storyID, title)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		log.WithError(err).Warn("video export failed")
		c.setLocked(State{Status: StatusIdle, StoryID: storyID, LastError: c.failureMessage(err), LastFile: prev.LastFile})
		return "", err
	}
	log.WithFields(logrus.Fields{"file": path, "elapsed": time.Since(started)}).Info("video exported")
	c.setLocked(State{Status: StatusIdle, StoryID: storyID, LastFile: path})
	return path, nil
}

func (c *Controller) run(ctx context.Context, storyID, title string) (string, error) {
	data, err := c.exporter.RequestExport(ctx, storyID)
	if err != nil {
		return "", err
	}
	path, err := c.saver.Save(FileName(title), data)
	if err != nil {
		return "", &gateway.Error{Kind: gateway.KindExportFailed, Message: err.Error(), Err: err}
	}
	return path, nil
}

// failureMessage 后端给出detail时展示detail，其余情况（传输失败、保存失败）统一用本地化文案
func (c *Controller) failureMessage(err error) string {
	if detail := gateway.DetailOf(err); detail != "" {
		return detail
	}
	return c.tr.Resolve(locale.KeyExportFailed)
}

func (c *Controller) setLocked(s State) {
	c.state = s
	c.hub.Publish(s)
}

// Close 关闭订阅
func (c *Controller) Close() {
	c.hub.Close()
}
