package accounts

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/betalert/arbot/internal/domain"
	"github.com/betalert/arbot/pkg/config"
)

var poolLog = logrus.WithField("module", "accounts")

// account 池内账号。所有可变字段都由 Pool 的互斥锁保护，
// 外部永远拿不到指针，只拿快照（View）。
type account struct {
	username          string
	proxy             string
	active            bool
	maxConcurrentBets int
	minBalance        decimal.Decimal

	balance       decimal.Decimal
	inFlight      int
	sessionToken  string
	sessionExpiry time.Time
}

// View 账号只读快照，派单与注额计算使用
type View struct {
	Index             int
	Username          string
	Proxy             string
	Balance           decimal.Decimal
	MaxConcurrentBets int
	SessionToken      string
	SessionExpiry     time.Time
}

// SessionStore 会话句柄的持久化后端。挂载后进程重启可以
// 复用上次的会话，不必对每个账号重新登录。
type SessionStore interface {
	SetSessionToken(username, token string) error
	SessionTokenFor(username string) (string, bool, error)
}

// Pool arena 式账号池：账号在进程生命周期内只增不减，
// 通过下标引用；并发计数与余额的修改全部串行化在池锁内。
type Pool struct {
	mu           sync.Mutex
	accounts     []*account
	index        map[string]int
	trackBalance bool
	sessions     SessionStore // 可为 nil，此时会话只存内存
}

// NewPool 从配置构建账号池。未启用余额跟踪时余额保持为配置兜底资金。
func NewPool(cfgs []config.AccountConfig, trackBalance bool, fallbackBankroll float64) *Pool {
	p := &Pool{
		index:        make(map[string]int, len(cfgs)),
		trackBalance: trackBalance,
	}
	for _, c := range cfgs {
		a := &account{
			username:          c.Username,
			proxy:             c.Proxy,
			active:            c.Active,
			maxConcurrentBets: c.MaxConcurrentBets,
			minBalance:        decimal.NewFromFloat(c.MinBalance),
			balance:           decimal.NewFromFloat(fallbackBankroll),
		}
		p.index[c.Username] = len(p.accounts)
		p.accounts = append(p.accounts, a)
	}
	return p
}

// AttachSessionStore 挂载会话持久化后端，并用已存的会话句柄预热账号。
// 持久化的句柄没有有效期信息，失效由执行路径的续期流程兜底。
func (p *Pool) AttachSessionStore(store SessionStore) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions = store
	for _, a := range p.accounts {
		token, found, err := store.SessionTokenFor(a.username)
		if err != nil {
			poolLog.Warnf("读取账号 %s 会话失败: %v", a.username, err)
			continue
		}
		if found && token != "" {
			a.sessionToken = token
		}
	}
}

// Len 池内账号总数（含停用）
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.accounts)
}

// GlobalInFlight 所有账号 in-flight 计数之和。
// 在同一把锁下求和，保证是一致快照。
func (p *Pool) GlobalInFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.globalInFlightLocked()
}

func (p *Pool) globalInFlightLocked() int {
	total := 0
	for _, a := range p.accounts {
		total += a.inFlight
	}
	return total
}

// eligibleLocked 账号是否可以接单
func (p *Pool) eligibleLocked(a *account) bool {
	if !a.active {
		return false
	}
	if a.inFlight >= a.maxConcurrentBets {
		return false
	}
	if p.trackBalance && a.balance.LessThan(a.minBalance) {
		return false
	}
	return true
}

// AcquireNext 按固定顺序扫描，占用第一个合格账号的一个并发额度并返回快照。
// skip 是本轮派单已经放弃的账号下标。占用必须配对调用 Release。
func (p *Pool) AcquireNext(skip map[int]bool) (View, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, a := range p.accounts {
		if skip[i] {
			continue
		}
		if !p.eligibleLocked(a) {
			continue
		}
		// 先占额度再执行，防止并发派单超过账号上限
		a.inFlight++
		return p.viewLocked(i), nil
	}
	return View{}, domain.ErrNoEligibleAccount
}

// Release 归还一个并发额度。无论执行成败都必须调用。
func (p *Pool) Release(idx int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if idx < 0 || idx >= len(p.accounts) {
		return
	}
	a := p.accounts[idx]
	if a.inFlight > 0 {
		a.inFlight--
	}
}

// ConfirmStake 执行成功后扣减账号余额（启用余额跟踪时）
func (p *Pool) ConfirmStake(idx int, stake decimal.Decimal) {
	if !p.trackBalance {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if idx < 0 || idx >= len(p.accounts) {
		return
	}
	a := p.accounts[idx]
	a.balance = a.balance.Sub(stake)
	poolLog.Debugf("账号 %s 扣减注额 %s，余额 %s", a.username, stake, a.balance)
}

// UpdateSession 会话续期后刷新会话句柄与有效期，可同时刷新余额
func (p *Pool) UpdateSession(idx int, token string, expiry time.Time, balance *float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if idx < 0 || idx >= len(p.accounts) {
		return
	}
	a := p.accounts[idx]
	a.sessionToken = token
	a.sessionExpiry = expiry
	if balance != nil {
		a.balance = decimal.NewFromFloat(*balance)
	}
	if p.sessions != nil && token != "" {
		if err := p.sessions.SetSessionToken(a.username, token); err != nil {
			poolLog.Errorf("持久化账号 %s 会话失败: %v", a.username, err)
		}
	}
}

// SetBalance 设置账号余额（登录/对账后回填）
func (p *Pool) SetBalance(username string, balance float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i, ok := p.index[username]; ok {
		p.accounts[i].balance = decimal.NewFromFloat(balance)
	}
}

// Deactivate 停用账号。账号永不销毁，只停用。
func (p *Pool) Deactivate(username string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i, ok := p.index[username]; ok {
		p.accounts[i].active = false
		poolLog.Warnf("账号 %s 已停用", username)
	}
}

// ViewOf 按下标取账号快照
func (p *Pool) ViewOf(idx int) (View, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if idx < 0 || idx >= len(p.accounts) {
		return View{}, false
	}
	return p.viewLocked(idx), true
}

func (p *Pool) viewLocked(idx int) View {
	a := p.accounts[idx]
	return View{
		Index:             idx,
		Username:          a.username,
		Proxy:             a.proxy,
		Balance:           a.balance,
		MaxConcurrentBets: a.maxConcurrentBets,
		SessionToken:      a.sessionToken,
		SessionExpiry:     a.sessionExpiry,
	}
}
