package sigchan

// Chan 非阻塞信号 channel：只通知事件发生，不传递数据。
// 队列唤醒这类"边沿触发"场景用它可以避免发送方阻塞。
type Chan struct {
	c chan struct{}
}

// New 创建信号 channel
func New(bufferSize int) *Chan {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &Chan{
		c: make(chan struct{}, bufferSize),
	}
}

// Emit 发送信号；channel 已满时直接丢弃（信号是幂等的）
func (c *Chan) Emit() {
	select {
	case c.c <- struct{}{}:
	default:
	}
}

// C 返回内部 channel（用于 select）
func (c *Chan) C() <-chan struct{} {
	return c.c
}
