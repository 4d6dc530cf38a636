package dedup

import (
	"fmt"
	"sync"
	"time"

	"github.com/betalert/arbot/internal/domain"
	"github.com/betalert/arbot/pkg/logger"
	"github.com/betalert/arbot/pkg/persistence"
)

// ErrDuplicateAlert 表示该 (event, line type) 组合已经处理过。
var ErrDuplicateAlert = fmt.Errorf("duplicate alert")

const (
	// DefaultCapacity 去重集合容量上限，超出后按插入顺序淘汰最旧的键
	DefaultCapacity = 2000
	// DefaultStaleBuffer 开球前安全缓冲：开球时间早于 now-5min 的告警按过期丢弃
	DefaultStaleBuffer = 5 * time.Minute
)

// Filter 告警去重器：首见放行，重复丢弃，内存有界。
//
// 去重是"工程化"的：只要求有界性，不要求严格 LRU。
// 误放行一次的代价是多算一次 EV，误拦截的代价是漏掉一次机会，
// 所以用确定性的 map 而不是概率结构。
type Filter struct {
	mu          sync.Mutex
	seen        map[string]time.Time // key -> 首见时间
	order       []string             // 插入顺序，用于淘汰最旧项
	capacity    int
	staleBuffer time.Duration
	now         func() time.Time
}

// New 创建去重器。capacity/staleBuffer 传 0 使用默认值。
func New(capacity int, staleBuffer time.Duration) *Filter {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if staleBuffer <= 0 {
		staleBuffer = DefaultStaleBuffer
	}
	return &Filter{
		seen:        make(map[string]time.Time, capacity),
		capacity:    capacity,
		staleBuffer: staleBuffer,
		now:         time.Now,
	}
}

// Check 判定一条告警是否进入决策流程：
// - 重复键返回 ErrDuplicateAlert
// - 比赛已经开球（含安全缓冲）返回 domain.ErrStaleMatch
// - 放行的告警记录组合键
func (f *Filter) Check(alert *domain.Alert) error {
	if f == nil || alert == nil {
		return nil
	}
	now := f.now()
	key := alert.DedupKey()

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, dup := f.seen[key]; dup {
		return ErrDuplicateAlert
	}
	if !alert.Starts.After(now.Add(-f.staleBuffer)) {
		return domain.ErrStaleMatch
	}

	f.seen[key] = now
	f.order = append(f.order, key)
	f.evictLocked()
	return nil
}

// Size 当前集合大小
func (f *Filter) Size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seen)
}

// evictLocked 超出容量时从最旧的键开始淘汰
func (f *Filter) evictLocked() {
	for len(f.seen) > f.capacity && len(f.order) > 0 {
		oldest := f.order[0]
		f.order = f.order[1:]
		delete(f.seen, oldest)
	}
}

// snapshotEntry 快照里的一条记录
type snapshotEntry struct {
	Key  string    `json:"key"`
	Seen time.Time `json:"seen"`
}

// Save 把去重集合写入状态快照，重启后可以续上
func (f *Filter) Save(store persistence.Store) error {
	f.mu.Lock()
	entries := make([]snapshotEntry, 0, len(f.order))
	for _, k := range f.order {
		entries = append(entries, snapshotEntry{Key: k, Seen: f.seen[k]})
	}
	f.mu.Unlock()
	return store.Save(entries)
}

// Load 从状态快照恢复去重集合；快照不存在不算错误
func (f *Filter) Load(store persistence.Store) error {
	var entries []snapshotEntry
	if err := store.Load(&entries); err != nil {
		if err == persistence.ErrNotExists {
			return nil
		}
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range entries {
		if _, dup := f.seen[e.Key]; dup {
			continue
		}
		f.seen[e.Key] = e.Seen
		f.order = append(f.order, e.Key)
	}
	f.evictLocked()
	logger.Debugf("[dedup] 从快照恢复 %d 个键", len(entries))
	return nil
}
