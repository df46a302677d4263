package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"storyteller/internal/audio"
	"storyteller/internal/config"
	"storyteller/internal/export"
	"storyteller/internal/gateway"
	"storyteller/internal/generation"
	"storyteller/internal/locale"
	"storyteller/internal/session"
	"storyteller/internal/storycache"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:           "storyteller",
	Short:         "故事生成与朗读服务",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		return serve(cfg)
	},
}

func init() {
	if os.Getenv(gin.EnvGinMode) == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./storyteller.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serve(cfg *config.Config) error {
	// 初始化日志
	closeLog, err := config.InitLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer closeLog()
	log := logrus.NewEntry(logrus.StandardLogger())

	client := gateway.NewClient(gateway.Options{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.API.Timeout,
		Logger:  log,
	})
	stories := storycache.New(client, cfg.Cache.TTL)
	resolver := locale.New(locale.NewFileStore(cfg.Locale.File), log)
	player := audio.NewStreamPlayer(audio.Options{
		StartTimeout: cfg.Audio.StartTimeout,
		Command:      cfg.Audio.Command,
		Logger:       log,
	})

	sessions := session.NewManager(session.Deps{
		Generator:  client,
		Fetcher:    stories,
		Sink:       stories,
		Lister:     client,
		Exporter:   client,
		Saver:      export.NewFileSaver(cfg.Export.Dir),
		Player:     player,
		Audio:      client,
		Translator: resolver,
		Generation: generation.Options{
			TickInterval: cfg.Generation.TickInterval,
			ProgressCap:  cfg.Generation.ProgressCap,
			MinIncrement: cfg.Generation.MinIncrement,
			MaxIncrement: cfg.Generation.MaxIncrement,
			ResetDelay:   cfg.Generation.ResetDelay,
		},
		PageSize: cfg.Listing.PageSize,
		Offset:   cfg.Listing.Offset,
		Logger:   log,
	}, cfg.Session.TTL)
	defer sessions.Close()

	router := newRouter(&server{
		sessions:  sessions,
		resolver:  resolver,
		stories:   stories,
		publicURL: cfg.Server.PublicURL,
		log:       log.WithField("component", "http"),
	})

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	// 在goroutine中启动服务器
	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{"addr": cfg.Server.Addr, "backend": client.BaseURL()}).Info("服务器启动")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("启动服务器失败: %w", err)
		}
	}
	log.Info("关闭服务器...")

	// SSE连接不会自己结束，超时后强制关闭
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("优雅关闭超时")
		_ = srv.Close()
	}

	log.Info("服务器已关闭")
	return nil
}
