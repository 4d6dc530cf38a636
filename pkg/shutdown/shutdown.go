package shutdown

import (
	"context"
	"sync"

	"github.com/betalert/arbot/pkg/logger"
)

// Handler 关闭处理函数
type Handler func(ctx context.Context)

type namedHandler struct {
	name string
	fn   Handler
}

// Manager 优雅关闭管理器。
// 各组件按注册顺序的逆序关闭（先停入口，再关下游存储）。
type Manager struct {
	callbacks []namedHandler
	mu        sync.Mutex
}

// NewManager 创建关闭管理器
func NewManager() *Manager {
	return &Manager{}
}

// OnShutdown 注册关闭回调
func (m *Manager) OnShutdown(name string, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, namedHandler{name: name, fn: handler})
}

// Shutdown 逆序执行所有关闭回调（阻塞调用）。
// ctx 应该带超时，避免单个回调卡死整个关闭流程。
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	callbacks := make([]namedHandler, len(m.callbacks))
	copy(callbacks, m.callbacks)
	m.mu.Unlock()

	if len(callbacks) == 0 {
		logger.Info("没有注册的关闭回调")
		return
	}
	logger.Infof("开始优雅关闭，共 %d 个回调", len(callbacks))

	for i := len(callbacks) - 1; i >= 0; i-- {
		cb := callbacks[i]
		done := make(chan struct{})
		go func() {
			defer close(done)
			cb.fn(ctx)
		}()

		select {
		case <-done:
			logger.Infof("关闭回调完成: %s", cb.name)
		case <-ctx.Done():
			logger.Warnf("关闭回调 %s 超时: %v", cb.name, ctx.Err())
			return
		}
	}
	logger.Info("所有关闭回调已完成")
}
