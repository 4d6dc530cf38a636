package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betalert/arbot/internal/domain"
)

func testOrder(id string) *domain.BetOrder {
	return &domain.BetOrder{ID: id, State: domain.OrderQueued}
}

func TestOrderQueue_FIFO(t *testing.T) {
	q := newOrderQueue()
	q.Push(testOrder("a"))
	q.Push(testOrder("b"))
	q.Push(testOrder("c"))

	ctx := context.Background()
	for _, want := range []string{"a", "b", "c"} {
		o, err := q.Pop(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, o.ID)
	}
	assert.Equal(t, 0, q.Len())
}

func TestOrderQueue_DelayedNotReadyBeforeDeadline(t *testing.T) {
	q := newOrderQueue()
	q.PushDelayed(testOrder("later"), 80*time.Millisecond)
	q.Push(testOrder("now"))

	ctx := context.Background()

	// 立即就绪的先出，哪怕延迟单先入队
	o, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, "now", o.ID)

	// 延迟未到之前 Pop 应该阻塞到超时
	shortCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = q.Pop(shortCtx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// 延迟到期后可以取出
	start := time.Now()
	o, err = q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, "later", o.ID)
	assert.Less(t, time.Since(start), time.Second)
}

func TestOrderQueue_WakesBlockedPop(t *testing.T) {
	q := newOrderQueue()
	got := make(chan *domain.BetOrder, 1)

	go func() {
		o, err := q.Pop(context.Background())
		if err == nil {
			got <- o
		}
	}()

	time.Sleep(20 * time.Millisecond)
	q.Push(testOrder("x"))

	select {
	case o := <-got:
		assert.Equal(t, "x", o.ID)
	case <-time.After(time.Second):
		t.Fatal("Pop 没有被 Push 唤醒")
	}
}

func TestOrderQueue_Drain(t *testing.T) {
	q := newOrderQueue()
	q.Push(testOrder("a"))
	q.PushDelayed(testOrder("b"), time.Hour)

	orders := q.Drain()
	require.Len(t, orders, 2)
	assert.Equal(t, "a", orders[0].ID)
	assert.Equal(t, "b", orders[1].ID)
	assert.Equal(t, 0, q.Len())
}

func TestOrderQueue_CapacityExceeded(t *testing.T) {
	q := newOrderQueue()
	q.SetCapacity(2)
	require.NoError(t, q.Push(testOrder("a")))
	require.NoError(t, q.Push(testOrder("b")))

	err := q.Push(testOrder("c"))
	assert.ErrorIs(t, err, domain.ErrCapacityExceeded)
	assert.Equal(t, 2, q.Len())
}

func TestOrderQueue_Close(t *testing.T) {
	q := newOrderQueue()
	q.Close()

	_, err := q.Pop(context.Background())
	assert.ErrorIs(t, err, errQueueClosed)

	// 关闭后的 Push 报错且不入队
	assert.ErrorIs(t, q.Push(testOrder("late")), errQueueClosed)
	assert.Equal(t, 0, q.Len())
}
