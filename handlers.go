package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"storyteller/internal/export"
	"storyteller/internal/gateway"
	"storyteller/internal/generation"
	"storyteller/internal/locale"
	"storyteller/internal/model"
	"storyteller/internal/playback"
	"storyteller/internal/session"
	"storyteller/internal/tools"
)

const (
	sessionHeader = "X-Session-ID"
	sessionKey    = "session"
)

type server struct {
	sessions  *session.Manager
	resolver  *locale.Resolver
	stories   tools.Fetcher
	publicURL string // 分享链接的origin，为空时按请求推断
	log       *logrus.Entry
}

func newRouter(s *server) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	api := router.Group("/api", s.withSession)
	api.GET("/locale", s.handleGetLocale)
	api.PUT("/locale", s.handleSetLocale)
	api.GET("/i18n", s.handleI18n)
	api.GET("/styles", s.handleStyles)

	api.POST("/generate", s.handleGenerate)
	api.GET("/generate", s.handleGenerationState)
	api.GET("/generate/events", s.handleGenerationEvents)

	api.GET("/stories", s.handleListStories)

	story := api.Group("/story/:id")
	story.POST("/open", s.handleOpenStory)
	story.GET("", s.handleStoryState)
	story.POST("/goto/:index", s.handleGoTo)
	story.POST("/next", s.handleNext)
	story.POST("/previous", s.handlePrevious)
	story.POST("/audio", s.handleToggleAudio)
	story.GET("/events", s.handleStoryEvents)
	story.POST("/export", s.handleExport)
	story.GET("/export", s.handleExportState)
	story.GET("/share", s.handleShare)

	tg := router.Group("/tools", s.withSession)
	tg.GET("", s.handleToolInfos)
	tg.POST("/:name", s.handleInvokeTool)
	return router
}

func (s *server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		s.log.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
			"status": c.Writer.Status(),
		}).Debug("request")
	}
}

// withSession 按X-Session-ID取会话，没有时新建并在响应头中返回
func (s *server) withSession(c *gin.Context) {
	sess := s.sessions.Get(c.GetHeader(sessionHeader))
	c.Header(sessionHeader, sess.ID)
	c.Set(sessionKey, sess)
	c.Next()
}

func sessionOf(c *gin.Context) *session.Session {
	return c.MustGet(sessionKey).(*session.Session)
}

// handleGetLocale 当前界面语言
func (s *server) handleGetLocale(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"locale": s.resolver.Locale()})
}

// handleSetLocale 切换界面语言，持久化失败不影响本次切换
func (s *server) handleSetLocale(c *gin.Context) {
	var req struct {
		Locale string `json:"locale"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求格式"})
		return
	}
	l, ok := model.ParseLocale(req.Locale)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported locale"})
		return
	}
	persisted := s.resolver.SetLocale(l) == nil
	c.JSON(http.StatusOK, gin.H{"locale": l, "persisted": persisted})
}

// handleI18n 批量解析文案，keys为空时返回全部
func (s *server) handleI18n(c *gin.Context) {
	var keys []string
	for _, k := range strings.Split(c.Query("keys"), ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		keys = locale.Keys()
	}
	c.JSON(http.StatusOK, gin.H{"locale": s.resolver.Locale(), "messages": s.resolver.ResolveAll(keys...)})
}

// handleStyles 插画风格预设及当前语言下的名称
func (s *server) handleStyles(c *gin.Context) {
	out := make([]gin.H, 0, len(model.ImageStylePresets))
	for _, p := range model.ImageStylePresets {
		out = append(out, gin.H{"id": p.ID, "value": p.Value, "label": s.resolver.Resolve(p.LabelKey)})
	}
	c.JSON(http.StatusOK, gin.H{"locale": s.resolver.Locale(), "styles": out})
}

// handleGenerate 提交生成并等待结果。客户端断开不会取消生成
func (s *server) handleGenerate(c *gin.Context) {
	var req model.StoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求格式"})
		return
	}
	sess := sessionOf(c)
	story, err := sess.Generate(context.WithoutCancel(c.Request.Context()), req)
	state := sess.Generation().State()
	if err != nil {
		s.writeErrorMessage(c, err, state.Error, gin.H{"generation": state})
		return
	}
	c.JSON(http.StatusOK, gin.H{"story": story, "generation": state})
}

func (s *server) handleGenerationState(c *gin.Context) {
	c.JSON(http.StatusOK, sessionOf(c).Generation().State())
}

func (s *server) handleGenerationEvents(c *gin.Context) {
	gen := sessionOf(c).Generation()
	ch, cancel := gen.Subscribe()
	defer cancel()
	streamStates(c, "generation", gen.State(), ch)
}

// listItem 列表项附带按当前语言格式化的日期
type listItem struct {
	model.StoryListEntry
	DateLabel string `json:"dateLabel"`
}

// handleListStories 列表加载失败时返回空列表
func (s *server) handleListStories(c *gin.Context) {
	state := sessionOf(c).ListStories(c.Request.Context())
	l := s.resolver.Locale()
	items := make([]listItem, 0, len(state.Stories))
	for _, e := range state.Stories {
		items = append(items, listItem{StoryListEntry: e, DateLabel: locale.FormatDate(e.CreatedAt, l)})
	}
	c.JSON(http.StatusOK, gin.H{"status": state.Status, "stories": items})
}

func (s *server) handleOpenStory(c *gin.Context) {
	ctrl, err := sessionOf(c).OpenStory(c.Request.Context(), c.Param("id"))
	if err != nil {
		if ctrl != nil {
			state := ctrl.State()
			s.writeErrorMessage(c, err, state.LoadError, gin.H{"playback": state})
			return
		}
		s.writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, ctrl.State())
}

func (s *server) handleStoryState(c *gin.Context) {
	ctrl, ok := s.playback(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, ctrl.State())
}

func (s *server) handleGoTo(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid episode index"})
		return
	}
	s.navigate(c, func(ctrl *playback.Controller) bool { return ctrl.GoTo(index) })
}

func (s *server) handleNext(c *gin.Context) {
	s.navigate(c, (*playback.Controller).Next)
}

func (s *server) handlePrevious(c *gin.Context) {
	s.navigate(c, (*playback.Controller).Previous)
}

// navigate 越界导航不是错误，changed=false
func (s *server) navigate(c *gin.Context, move func(*playback.Controller) bool) {
	ctrl, ok := s.playback(c)
	if !ok {
		return
	}
	changed := move(ctrl)
	c.JSON(http.StatusOK, gin.H{"changed": changed, "playback": ctrl.State()})
}

// handleToggleAudio 开始是异步的，结果通过事件流或状态查询获得
func (s *server) handleToggleAudio(c *gin.Context) {
	ctrl, ok := s.playback(c)
	if !ok {
		return
	}
	if err := ctrl.ToggleAudio(); err != nil {
		s.writeError(c, err, gin.H{"playback": ctrl.State()})
		return
	}
	c.JSON(http.StatusOK, ctrl.State())
}

func (s *server) handleStoryEvents(c *gin.Context) {
	ctrl, ok := s.playback(c)
	if !ok {
		return
	}
	ch, cancel := ctrl.Subscribe()
	defer cancel()
	streamStates(c, "playback", ctrl.State(), ch)
}

func (s *server) handleExport(c *gin.Context) {
	sess := sessionOf(c)
	path, err := sess.ExportStory(context.WithoutCancel(c.Request.Context()), c.Param("id"))
	state := sess.Export().State()
	if err != nil {
		s.writeError(c, err, gin.H{"export": state})
		return
	}
	c.JSON(http.StatusOK, gin.H{"file": path, "export": state})
}

func (s *server) handleExportState(c *gin.Context) {
	c.JSON(http.StatusOK, sessionOf(c).Export().State())
}

// handleShare 已打开故事的分享链接
func (s *server) handleShare(c *gin.Context) {
	ctrl, ok := s.playback(c)
	if !ok {
		return
	}
	state := ctrl.State()
	if state.Status != playback.StatusReady {
		s.writeError(c, playback.ErrNotReady, gin.H{"playback": state})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"storyId": state.StoryID,
		"url":     playback.ShareURL(s.origin(c), state.StoryID),
		"label":   s.resolver.Resolve("share.copyLink"),
		"copied":  s.resolver.Resolve("share.copied"),
	})
}

// origin 优先使用配置的public_url，其次按代理头和请求推断
func (s *server) origin(c *gin.Context) string {
	if s.publicURL != "" {
		return s.publicURL
	}
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if p := c.GetHeader("X-Forwarded-Proto"); p != "" {
		scheme = p
	}
	return scheme + "://" + c.Request.Host
}

func (s *server) handleToolInfos(c *gin.Context) {
	reg, err := tools.NewRegistry(c.Request.Context(), sessionOf(c), s.stories)
	if err != nil {
		s.writeError(c, err, nil)
		return
	}
	infos, err := reg.Infos(c.Request.Context())
	if err != nil {
		s.writeError(c, err, nil)
		return
	}
	out := make([]gin.H, 0, len(infos))
	for _, info := range infos {
		item := gin.H{"name": info.Name, "description": info.Desc}
		if info.ParamsOneOf != nil {
			params, err := info.ParamsOneOf.ToJSONSchema()
			if err != nil {
				s.writeError(c, err, nil)
				return
			}
			item["parameters"] = params
		}
		out = append(out, item)
	}
	c.JSON(http.StatusOK, out)
}

// handleInvokeTool 直接读取请求体作为工具的JSON参数
func (s *server) handleInvokeTool(c *gin.Context) {
	reg, err := tools.NewRegistry(c.Request.Context(), sessionOf(c), s.stories)
	if err != nil {
		s.writeError(c, err, nil)
		return
	}
	name := c.Param("name")
	if !reg.Has(name) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown tool " + name})
		return
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求格式"})
		return
	}
	result, err := reg.Invoke(context.WithoutCancel(c.Request.Context()), name, string(body))
	if err != nil {
		s.writeError(c, err, nil)
		return
	}
	c.Data(http.StatusOK, "application/json", []byte(result))
}

func (s *server) playback(c *gin.Context) (*playback.Controller, bool) {
	ctrl, err := sessionOf(c).Playback(c.Param("id"))
	if err != nil {
		s.writeError(c, err, nil)
		return nil, false
	}
	return ctrl, true
}

// writeError 把领域错误映射为HTTP状态码，extra里的字段一并返回
func (s *server) writeError(c *gin.Context, err error, extra gin.H) {
	s.writeErrorMessage(c, err, "", extra)
}

// writeErrorMessage 同writeError，msg非空时作为展示给用户的错误文案
func (s *server) writeErrorMessage(c *gin.Context, err error, msg string, extra gin.H) {
	status, kind := errorStatus(err)
	if msg == "" {
		msg = s.errorMessage(err)
	}
	body := gin.H{"error": msg, "kind": kind}
	for k, v := range extra {
		body[k] = v
	}
	if status >= http.StatusInternalServerError {
		s.log.WithError(err).WithField("path", c.FullPath()).Warn("request failed")
	}
	c.JSON(status, body)
}

func (s *server) errorMessage(err error) string {
	switch {
	case errors.Is(err, generation.ErrInFlight):
		return s.resolver.Resolve(locale.KeyGenerationInFlight)
	case errors.Is(err, export.ErrExportInFlight):
		return s.resolver.Resolve(locale.KeyExportInFlight)
	}
	if msg := gateway.MessageOf(err); msg != "" {
		return msg
	}
	return http.StatusText(http.StatusInternalServerError)
}

func errorStatus(err error) (int, gateway.Kind) {
	switch {
	case errors.Is(err, generation.ErrInFlight), errors.Is(err, export.ErrExportInFlight):
		return http.StatusConflict, ""
	case errors.Is(err, session.ErrNoStory):
		return http.StatusNotFound, ""
	case errors.Is(err, playback.ErrNotReady):
		return http.StatusConflict, ""
	case errors.Is(err, session.ErrClosed), errors.Is(err, playback.ErrClosed), errors.Is(err, generation.ErrClosed):
		return http.StatusGone, ""
	}
	kind := gateway.KindOf(err)
	switch kind {
	case gateway.KindValidation:
		return http.StatusBadRequest, kind
	case gateway.KindNotFound:
		return http.StatusNotFound, kind
	case gateway.KindBackendOverloaded:
		return http.StatusGatewayTimeout, kind
	case "":
		return http.StatusInternalServerError, kind
	}
	return http.StatusBadGateway, kind
}
