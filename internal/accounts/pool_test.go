package accounts

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betalert/arbot/internal/domain"
	"github.com/betalert/arbot/pkg/config"
)

func twoAccountPool(trackBalance bool) *Pool {
	return NewPool([]config.AccountConfig{
		{Username: "alice", Active: true, MaxConcurrentBets: 2, MinBalance: 100},
		{Username: "bob", Active: true, MaxConcurrentBets: 1, MinBalance: 100},
	}, trackBalance, 1000)
}

func TestAcquireNext_FixedOrder(t *testing.T) {
	p := twoAccountPool(false)

	v1, err := p.AcquireNext(nil)
	require.NoError(t, err)
	assert.Equal(t, "alice", v1.Username)

	// alice 还有额度，仍然优先
	v2, err := p.AcquireNext(nil)
	require.NoError(t, err)
	assert.Equal(t, "alice", v2.Username)

	// alice 满了轮到 bob
	v3, err := p.AcquireNext(nil)
	require.NoError(t, err)
	assert.Equal(t, "bob", v3.Username)

	// 全部占满
	_, err = p.AcquireNext(nil)
	assert.ErrorIs(t, err, domain.ErrNoEligibleAccount)
	assert.Equal(t, 3, p.GlobalInFlight())
}

func TestAcquireNext_SkipSet(t *testing.T) {
	p := twoAccountPool(false)

	v, err := p.AcquireNext(map[int]bool{0: true})
	require.NoError(t, err)
	assert.Equal(t, "bob", v.Username)
}

func TestRelease_RestoresCapacity(t *testing.T) {
	p := twoAccountPool(false)

	v, err := p.AcquireNext(map[int]bool{0: true})
	require.NoError(t, err)
	require.Equal(t, "bob", v.Username)

	// bob 上限 1，释放前拿不到
	_, err = p.AcquireNext(map[int]bool{0: true})
	require.ErrorIs(t, err, domain.ErrNoEligibleAccount)

	p.Release(v.Index)
	_, err = p.AcquireNext(map[int]bool{0: true})
	assert.NoError(t, err)
}

func TestBalanceTracking(t *testing.T) {
	p := twoAccountPool(true)

	v, err := p.AcquireNext(nil)
	require.NoError(t, err)
	require.Equal(t, "alice", v.Username)

	p.ConfirmStake(v.Index, decimal.NewFromInt(950))
	p.Release(v.Index)

	// alice 余额 50 < min_balance 100，不再合格
	v2, err := p.AcquireNext(nil)
	require.NoError(t, err)
	assert.Equal(t, "bob", v2.Username)

	// 回填余额后恢复
	p.SetBalance("alice", 500)
	v3, err := p.AcquireNext(nil)
	require.NoError(t, err)
	assert.Equal(t, "alice", v3.Username)
}

func TestDeactivate(t *testing.T) {
	p := twoAccountPool(false)
	p.Deactivate("alice")

	v, err := p.AcquireNext(nil)
	require.NoError(t, err)
	assert.Equal(t, "bob", v.Username)
}

// fakeSessionStore 内存版会话持久化后端
type fakeSessionStore struct {
	tokens map[string]string
}

func (s *fakeSessionStore) SetSessionToken(username, token string) error {
	s.tokens[username] = token
	return nil
}

func (s *fakeSessionStore) SessionTokenFor(username string) (string, bool, error) {
	token, ok := s.tokens[username]
	return token, ok, nil
}

func TestAttachSessionStore_SeedsSavedSessions(t *testing.T) {
	store := &fakeSessionStore{tokens: map[string]string{"alice": "saved-token"}}

	p := twoAccountPool(false)
	p.AttachSessionStore(store)

	// alice 从持久化会话预热，bob 没有存过保持为空
	v, ok := p.ViewOf(0)
	require.True(t, ok)
	assert.Equal(t, "saved-token", v.SessionToken)

	v, ok = p.ViewOf(1)
	require.True(t, ok)
	assert.Empty(t, v.SessionToken)
}

func TestUpdateSession_PersistsToStore(t *testing.T) {
	store := &fakeSessionStore{tokens: map[string]string{}}

	p := twoAccountPool(false)
	p.AttachSessionStore(store)

	p.UpdateSession(0, "fresh-token", time.Now().Add(time.Hour), nil)

	v, ok := p.ViewOf(0)
	require.True(t, ok)
	assert.Equal(t, "fresh-token", v.SessionToken)
	// 续期后的句柄写穿到持久化后端，重启后可以复用
	assert.Equal(t, "fresh-token", store.tokens["alice"])
}

func TestGlobalInFlight_ConcurrentAcquire(t *testing.T) {
	// 并发抢占不应超发额度：2+1=3 个并发上限
	p := twoAccountPool(false)

	var wg sync.WaitGroup
	granted := make(chan View, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if v, err := p.AcquireNext(nil); err == nil {
				granted <- v
			}
		}()
	}
	wg.Wait()
	close(granted)

	count := 0
	for range granted {
		count++
	}
	assert.Equal(t, 3, count)
	assert.Equal(t, 3, p.GlobalInFlight())
}
