package main

import (
	"io"

	"github.com/gin-gonic/gin"
)

// streamStates 以SSE推送状态快照，先推送当前状态。订阅关闭或客户端断开时结束
func streamStates[T any](c *gin.Context, event string, current T, updates <-chan T) {
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent(event, current)
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case s, ok := <-updates:
			if !ok {
				return false
			}
			c.SSEvent(event, s)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
