// Package audio 章节朗读音频的播放原语：拉取音频流并送入输出端
package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"sync"
	"time"

	"github.com/imroc/req/v3"
	"github.com/sirupsen/logrus"
)

// ErrStopped 播放被主动停止
var ErrStopped = errors.New("playback stopped")

// Stream 一次正在进行的播放
type Stream interface {
	// Done 播放结束时发送一次结果：自然结束为nil，被停止为ErrStopped
	Done() <-chan error
	// Stop 释放播放资源，可重复调用
	Stop()
}

// Player 开始播放，返回时表示播放已开始
type Player interface {
	Start(ctx context.Context, url string) (Stream, error)
}

// SinkFactory 为每次播放创建输出端
type SinkFactory func() (io.WriteCloser, error)

// Options 播放器配置
type Options struct {
	StartTimeout time.Duration // 等待响应头的超时
	Command      []string      // 外部播放命令，从stdin读取音频；为空时丢弃数据
	Sink         SinkFactory   // 优先于Command
	Logger       *logrus.Entry
}

// StreamPlayer 通过HTTP拉取音频并写入输出端
type StreamPlayer struct {
	http         *req.Client
	sink         SinkFactory
	startTimeout time.Duration
	log          *logrus.Entry
}

func NewStreamPlayer(opts Options) *StreamPlayer {
	if opts.StartTimeout <= 0 {
		opts.StartTimeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	sink := opts.Sink
	if sink == nil {
		if len(opts.Command) > 0 {
			sink = CommandSink(opts.Command)
		} else {
			sink = DiscardSink
		}
	}
	return &StreamPlayer{
		http:         req.C().SetTimeout(0), // 流式读取不设整体超时
		sink:         sink,
		startTimeout: opts.StartTimeout,
		log:          opts.Logger.WithField("component", "audio"),
	}
}

// Start 请求音频，收到成功响应头即视为开始播放，之后在后台写入输出端
func (p *StreamPlayer) Start(ctx context.Context, url string) (Stream, error) {
	sctx, cancel := context.WithCancel(ctx)
	startTimer := time.AfterFunc(p.startTimeout, cancel)

	resp, err := p.http.R().
		SetContext(sctx).
		DisableAutoReadResponse().
		Get(url)
	startTimer.Stop()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("start audio: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("start audio: http %d", resp.StatusCode)
	}

	w, err := p.sink()
	if err != nil {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("open audio sink: %w", err)
	}

	s := &stream{cancel: cancel, done: make(chan error, 1)}
	go func() {
		defer cancel()
		_, copyErr := io.Copy(w, resp.Body)
		resp.Body.Close()
		if sctx.Err() != nil {
			if a, ok := w.(aborter); ok {
				a.Abort()
			}
		}
		closeErr := w.Close()

		switch {
		case sctx.Err() != nil:
			s.finish(ErrStopped)
		case copyErr != nil:
			s.finish(copyErr)
		default:
			s.finish(closeErr)
		}
	}()
	p.log.WithField("url", url).Debug("audio started")
	return s, nil
}

type stream struct {
	cancel context.CancelFunc
	done   chan error
	once   sync.Once
}

func (s *stream) Done() <-chan error { return s.done }

func (s *stream) Stop() { s.cancel() }

func (s *stream) finish(err error) {
	s.once.Do(func() {
		s.done <- err
		close(s.done)
	})
}

type aborter interface {
	Abort()
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// DiscardSink 丢弃音频数据，仅用于驱动播放状态
func DiscardSink() (io.WriteCloser, error) {
	return nopCloser{io.Discard}, nil
}

// CommandSink 将音频写入外部播放器的stdin，例如 ffplay -nodisp -autoexit -
func CommandSink(command []string) SinkFactory {
	return func() (io.WriteCloser, error) {
		cmd := exec.Command(command[0], command[1:]...)
		stdin, err := cmd.StdinPipe()
		if err != nil {
			return nil, err
		}
		if err := cmd.Start(); err != nil {
			return nil, err
		}
		return &commandSink{cmd: cmd, stdin: stdin}, nil
	}
}

type commandSink struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
}

func (c *commandSink) Write(b []byte) (int, error) { return c.stdin.Write(b) }

func (c *commandSink) Close() error {
	c.stdin.Close()
	return c.cmd.Wait()
}

func (c *commandSink) Abort() {
	if c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
	}
}
