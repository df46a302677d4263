// Package config 配置加载：配置文件、STORYTELLER_ 前缀的环境变量和默认值
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 全部配置
type Config struct {
	API        APIConfig        `mapstructure:"api"`
	Generation GenerationConfig `mapstructure:"generation"`
	Listing    ListingConfig    `mapstructure:"listing"`
	Locale     LocaleConfig     `mapstructure:"locale"`
	Export     ExportConfig     `mapstructure:"export"`
	Audio      AudioConfig      `mapstructure:"audio"`
	Server     ServerConfig     `mapstructure:"server"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Session    SessionConfig    `mapstructure:"session"`
	Log        LogConfig        `mapstructure:"log"`
}

// APIConfig 故事后端
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"` // 生成可能需要几分钟
}

// GenerationConfig 进度估算参数
type GenerationConfig struct {
	TickInterval time.Duration `mapstructure:"tick_interval"`
	ProgressCap  float64       `mapstructure:"progress_cap"`
	MinIncrement float64       `mapstructure:"min_increment"`
	MaxIncrement float64       `mapstructure:"max_increment"`
	ResetDelay   time.Duration `mapstructure:"reset_delay"`
}

type ListingConfig struct {
	PageSize int `mapstructure:"page_size"`
	Offset   int `mapstructure:"offset"`
}

// LocaleConfig 界面语言持久化文件
type LocaleConfig struct {
	File string `mapstructure:"file"`
}

// ExportConfig 导出视频的下载目录
type ExportConfig struct {
	Dir string `mapstructure:"dir"`
}

// AudioConfig 朗读播放，Command为空时只拉取不播放
type AudioConfig struct {
	Command      []string      `mapstructure:"command"`
	StartTimeout time.Duration `mapstructure:"start_timeout"`
}

type ServerConfig struct {
	Addr      string `mapstructure:"addr"`
	PublicURL string `mapstructure:"public_url"` // 分享链接的origin，为空时取请求的Host
}

type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type SessionConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// LogConfig File为空时输出到stdout
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// Load 读取配置，cfgFile为空时在当前目录和用户配置目录查找storyteller.yaml
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("storyteller")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/storyteller")
	}

	v.SetEnvPrefix("STORYTELLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "http://localhost:8000/api")
	v.SetDefault("api.timeout", 10*time.Minute)

	v.SetDefault("generation.tick_interval", 800*time.Millisecond)
	v.SetDefault("generation.progress_cap", 85.0)
	v.SetDefault("generation.min_increment", 2.0)
	v.SetDefault("generation.max_increment", 6.0)
	v.SetDefault("generation.reset_delay", 500*time.Millisecond)

	v.SetDefault("listing.page_size", 20)
	v.SetDefault("listing.offset", 0)

	v.SetDefault("locale.file", defaultLocaleFile())
	v.SetDefault("export.dir", "downloads")

	v.SetDefault("audio.command", []string{})
	v.SetDefault("audio.start_timeout", 30*time.Second)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.public_url", "")
	v.SetDefault("cache.ttl", 30*time.Minute)
	v.SetDefault("session.ttl", 30*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
}

func defaultLocaleFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".", "locale")
	}
	return filepath.Join(dir, "storyteller", "locale")
}

func validate(cfg *Config) error {
	if cfg.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if !strings.HasPrefix(cfg.API.BaseURL, "http://") && !strings.HasPrefix(cfg.API.BaseURL, "https://") {
		return fmt.Errorf("invalid api.base_url: %s (must be http or https)", cfg.API.BaseURL)
	}
	if cfg.Generation.ProgressCap <= 0 || cfg.Generation.ProgressCap >= 100 {
		return fmt.Errorf("invalid generation.progress_cap: %v (must be between 0 and 100)", cfg.Generation.ProgressCap)
	}
	if cfg.Generation.MinIncrement <= 0 || cfg.Generation.MaxIncrement < cfg.Generation.MinIncrement {
		return fmt.Errorf("invalid generation increments: min %v max %v", cfg.Generation.MinIncrement, cfg.Generation.MaxIncrement)
	}
	if cfg.Listing.PageSize <= 0 {
		return fmt.Errorf("invalid listing.page_size: %d", cfg.Listing.PageSize)
	}
	if cfg.Listing.Offset < 0 {
		return fmt.Errorf("invalid listing.offset: %d", cfg.Listing.Offset)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Log.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", cfg.Log.Level)
	}
	return nil
}
