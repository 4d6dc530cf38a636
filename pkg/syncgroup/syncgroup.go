package syncgroup

import (
	"sync"
)

// SyncGroup sync.WaitGroup 的包装：集中注册长生命周期 goroutine，
// 自动配对 Add/Done，减少遗漏 Done 的风险。
type SyncGroup struct {
	wg sync.WaitGroup

	mu      sync.Mutex
	funcs   []func()
	running int
}

// NewSyncGroup 创建 SyncGroup
func NewSyncGroup() *SyncGroup {
	return &SyncGroup{}
}

// Add 注册一个 goroutine 函数。必须在 Run 之前调用。
func (w *SyncGroup) Add(fn func()) {
	if fn == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running > 0 {
		// 已有 goroutine 在运行时不接受新函数，先 Wait
		return
	}
	w.funcs = append(w.funcs, fn)
}

// Run 启动所有已注册的 goroutine 并清空注册列表
func (w *SyncGroup) Run() {
	w.mu.Lock()
	if w.running > 0 {
		w.mu.Unlock()
		return
	}
	fns := w.funcs
	w.funcs = nil
	w.running = len(fns)
	w.mu.Unlock()

	for _, fn := range fns {
		w.wg.Add(1)
		go func(doFunc func()) {
			defer func() {
				w.wg.Done()
				w.mu.Lock()
				w.running--
				w.mu.Unlock()
			}()
			doFunc()
		}(fn)
	}
}

// Wait 等待所有 goroutine 退出
func (w *SyncGroup) Wait() {
	w.wg.Wait()
}
