package generation

import (
	"sync"
	"time"
)

// repeatingTask 可取消的定时重复任务，由Orchestrator持有并在每个终态清除
type repeatingTask struct {
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func startRepeating(interval time.Duration, fn func()) *repeatingTask {
	t := &repeatingTask{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go func() {
		defer close(t.done)
		tk := time.NewTicker(interval)
		defer tk.Stop()
		for {
			select {
			case <-t.stop:
				return
			case <-tk.C:
				fn()
			}
		}
	}()
	return t
}

// Stop 取消任务，可重复调用，不等待退出
func (t *repeatingTask) Stop() {
	t.once.Do(func() { close(t.stop) })
}

// Done 任务goroutine退出后关闭
func (t *repeatingTask) Done() <-chan struct{} {
	return t.done
}
