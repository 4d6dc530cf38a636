package engine

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/betalert/arbot/internal/domain"
	"github.com/betalert/arbot/pkg/sigchan"
)

var errQueueClosed = errors.New("order queue closed")

// orderQueue 带延迟的 FIFO 订单队列。
// 重排订单带一个 ready 时间戳，用 (ready_at, seq) 最小堆实现，
// 避免到处起一次性 timer，测试也更确定。
type orderQueue struct {
	mu       sync.Mutex
	items    delayHeap
	seq      int64
	capacity int // 0 = 不限制
	wake     *sigchan.Chan
	done     chan struct{}
	closed   bool
}

type queueItem struct {
	readyAt time.Time
	seq     int64 // 同一时刻就绪的订单按入队顺序出队
	order   *domain.BetOrder
}

type delayHeap []queueItem

func (h delayHeap) Len() int { return len(h) }
func (h delayHeap) Less(i, j int) bool {
	if h[i].readyAt.Equal(h[j].readyAt) {
		return h[i].seq < h[j].seq
	}
	return h[i].readyAt.Before(h[j].readyAt)
}
func (h delayHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *delayHeap) Push(x interface{}) { *h = append(*h, x.(queueItem)) }
func (h *delayHeap) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

func newOrderQueue() *orderQueue {
	return &orderQueue{
		wake: sigchan.New(1),
		done: make(chan struct{}),
	}
}

// SetCapacity 设置队列容量上限，超出后新订单直接丢弃。0 为不限制。
func (q *orderQueue) SetCapacity(n int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.capacity = n
}

// Push 立即就绪入队
func (q *orderQueue) Push(order *domain.BetOrder) error {
	return q.PushDelayed(order, 0)
}

// PushDelayed 延迟 delay 后才可被取出。
// 队列已满返回 domain.ErrCapacityExceeded，订单的去留由调用方决定。
func (q *orderQueue) PushDelayed(order *domain.BetOrder, delay time.Duration) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return errQueueClosed
	}
	if q.capacity > 0 && q.items.Len() >= q.capacity {
		q.mu.Unlock()
		return fmt.Errorf("%w: 订单队列已满（%d）", domain.ErrCapacityExceeded, q.capacity)
	}
	q.seq++
	heap.Push(&q.items, queueItem{
		readyAt: time.Now().Add(delay),
		seq:     q.seq,
		order:   order,
	})
	q.mu.Unlock()

	// 唤醒可能在等待的 worker
	q.wake.Emit()
	return nil
}

// Pop 阻塞取出下一个就绪订单；队列关闭或 ctx 取消时返回错误
func (q *orderQueue) Pop(ctx context.Context) (*domain.BetOrder, error) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return nil, errQueueClosed
		}
		var wait time.Duration = time.Hour
		if q.items.Len() > 0 {
			top := q.items[0]
			now := time.Now()
			if !top.readyAt.After(now) {
				it := heap.Pop(&q.items).(queueItem)
				q.mu.Unlock()
				return it.order, nil
			}
			wait = top.readyAt.Sub(now)
		}
		q.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-q.done:
			timer.Stop()
			return nil, errQueueClosed
		case <-q.wake.C():
			timer.Stop()
		case <-timer.C:
		}
	}
}

// Len 当前排队中的订单数（含未就绪的）
func (q *orderQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// Drain 清空队列并返回所有未执行的订单
func (q *orderQueue) Drain() []*domain.BetOrder {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*domain.BetOrder, 0, q.items.Len())
	for q.items.Len() > 0 {
		it := heap.Pop(&q.items).(queueItem)
		out = append(out, it.order)
	}
	return out
}

// Close 关闭队列，Pop 立即返回
func (q *orderQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.done)
}
