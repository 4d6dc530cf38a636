package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AccountConfig 单个投注账号配置。
// 凭据不放在配置文件里，只保留 secretstore 的引用键。
type AccountConfig struct {
	Username          string // 账号用户名（同时作为 secretstore 凭据键）
	Active            bool   // 是否启用
	MaxConcurrentBets int    // 单账号最大并发投注数，默认 3
	MinBalance        float64
	Proxy             string // 代理标识（host:port），由执行适配器解释
}

// StakeTier 赔率分层的注额上下限
type StakeTier struct {
	MinOdds  float64
	MaxOdds  float64
	MinStake float64
	MaxStake float64
}

// EngineConfig 决策引擎配置
type EngineConfig struct {
	DevigMethod   string  // multiplicative / additive / power / shin，默认 power
	MinEV         float64 // 最小 EV 百分比阈值
	MaxOdds       float64 // 超过该赔率不下注（0 = 不限制）
	KellyFraction float64 // 凯利系数（0~1]，默认 0.3
	Bankroll      float64 // 余额跟踪关闭时使用的基准资金
	MinStake      float64 // 全局注额下限
	MaxStake      float64 // 全局注额上限
	StakeTiers    []StakeTier
	TrackBalance  bool // 是否启用账号余额跟踪
	DryRun        bool // 只决策不下注
}

// DispatchConfig 派单配置
type DispatchConfig struct {
	GlobalMaxConcurrent    int           // 全局最大并发投注数
	QueueSize              int           // 订单队列容量
	CapRequeueDelay        time.Duration // 全局并发达到上限时的重排延迟，默认 30s
	NoAccountRequeueDelay  time.Duration // 无可用账号时的重排延迟，默认 60s
	MaxConsecutiveFailures int64         // 连续执行失败熔断阈值（0 = 关闭）
	DailyStakeLimit        int64         // 当日累计注额熔断阈值（0 = 关闭）
}

// FeedConfig 行情/告警源配置
type FeedConfig struct {
	AlertsHost        string        // 参考盘口告警服务地址
	AlertsUserID      string        // 告警订阅用户
	PollInterval      time.Duration // 轮询间隔，默认 30s
	BookHost          string        // 目标庄家 API 地址
	RequestsPerSecond int           // 对庄家 API 的限速，默认 4
}

// Config 应用配置
type Config struct {
	LogLevel      string
	LogFile       string
	Accounts      []AccountConfig
	Engine        EngineConfig
	Dispatch      DispatchConfig
	Feed          FeedConfig
	SecretsPath   string // badger 凭据库目录
	JournalPath   string // sqlite 注单流水库路径
	StateDir      string // JSON 状态快照目录（去重集等）
	MetricsListen string // expvar/pprof 监听地址（空 = 关闭）
}

// ConfigFile 配置文件结构（用于 YAML 解析）
type ConfigFile struct {
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`

	Accounts []struct {
		Username          string  `yaml:"username"`
		Active            *bool   `yaml:"active"`
		MaxConcurrentBets int     `yaml:"max_concurrent_bets"`
		MinBalance        float64 `yaml:"min_balance"`
		Proxy             string  `yaml:"proxy"`
	} `yaml:"accounts"`

	Engine struct {
		DevigMethod   string  `yaml:"devig_method"`
		MinEV         float64 `yaml:"min_ev"`
		MaxOdds       float64 `yaml:"max_odds"`
		KellyFraction float64 `yaml:"kelly_fraction"`
		Bankroll      float64 `yaml:"bankroll"`
		MinStake      float64 `yaml:"min_stake"`
		MaxStake      float64 `yaml:"max_stake"`
		StakeTiers    []struct {
			MinOdds  float64 `yaml:"min_odds"`
			MaxOdds  float64 `yaml:"max_odds"`
			MinStake float64 `yaml:"min_stake"`
			MaxStake float64 `yaml:"max_stake"`
		} `yaml:"stake_tiers"`
		TrackBalance *bool `yaml:"track_balance"`
		DryRun       bool  `yaml:"dry_run"`
	} `yaml:"engine"`

	Dispatch struct {
		GlobalMaxConcurrent     int   `yaml:"global_max_concurrent"`
		QueueSize               int   `yaml:"queue_size"`
		CapRequeueSeconds       int   `yaml:"cap_requeue_seconds"`
		NoAccountRequeueSeconds int   `yaml:"no_account_requeue_seconds"`
		MaxConsecutiveFailures  int64 `yaml:"max_consecutive_failures"`
		DailyStakeLimit         int64 `yaml:"daily_stake_limit"`
	} `yaml:"dispatch"`

	Feed struct {
		AlertsHost          string `yaml:"alerts_host"`
		AlertsUserID        string `yaml:"alerts_user_id"`
		PollIntervalSeconds int    `yaml:"poll_interval_seconds"`
		BookHost            string `yaml:"book_host"`
		RequestsPerSecond   int    `yaml:"requests_per_second"`
	} `yaml:"feed"`

	SecretsPath   string `yaml:"secrets_path"`
	JournalPath   string `yaml:"journal_path"`
	StateDir      string `yaml:"state_dir"`
	MetricsListen string `yaml:"metrics_listen"`
}

// LoadFromFile 从指定文件加载配置并填充默认值
func LoadFromFile(filePath string) (*Config, error) {
	b, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败 %s: %w", filePath, err)
	}

	var cf ConfigFile
	if err := yaml.Unmarshal(b, &cf); err != nil {
		return nil, fmt.Errorf("解析配置文件失败 %s: %w", filePath, err)
	}

	cfg := fromFile(&cf)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromFile(cf *ConfigFile) *Config {
	cfg := &Config{
		LogLevel:      strOr(cf.LogLevel, "info"),
		LogFile:       cf.LogFile,
		SecretsPath:   strOr(cf.SecretsPath, "data/secrets"),
		JournalPath:   strOr(cf.JournalPath, "data/journal.db"),
		StateDir:      strOr(cf.StateDir, "data/state"),
		MetricsListen: cf.MetricsListen,
	}

	for _, a := range cf.Accounts {
		acct := AccountConfig{
			Username:          strings.TrimSpace(a.Username),
			Active:            true,
			MaxConcurrentBets: a.MaxConcurrentBets,
			MinBalance:        a.MinBalance,
			Proxy:             a.Proxy,
		}
		if a.Active != nil {
			acct.Active = *a.Active
		}
		if acct.MaxConcurrentBets <= 0 {
			acct.MaxConcurrentBets = 3
		}
		if acct.MinBalance <= 0 {
			acct.MinBalance = 100
		}
		cfg.Accounts = append(cfg.Accounts, acct)
	}

	cfg.Engine = EngineConfig{
		DevigMethod:   strOr(strings.ToLower(cf.Engine.DevigMethod), "power"),
		MinEV:         cf.Engine.MinEV,
		MaxOdds:       cf.Engine.MaxOdds,
		KellyFraction: floatOr(cf.Engine.KellyFraction, 0.3),
		Bankroll:      floatOr(cf.Engine.Bankroll, 1000),
		MinStake:      floatOr(cf.Engine.MinStake, 10),
		MaxStake:      floatOr(cf.Engine.MaxStake, 10000),
		TrackBalance:  true,
		DryRun:        cf.Engine.DryRun,
	}
	if cf.Engine.TrackBalance != nil {
		cfg.Engine.TrackBalance = *cf.Engine.TrackBalance
	}
	for _, t := range cf.Engine.StakeTiers {
		cfg.Engine.StakeTiers = append(cfg.Engine.StakeTiers, StakeTier{
			MinOdds:  t.MinOdds,
			MaxOdds:  t.MaxOdds,
			MinStake: t.MinStake,
			MaxStake: t.MaxStake,
		})
	}

	cfg.Dispatch = DispatchConfig{
		GlobalMaxConcurrent:    intOr(cf.Dispatch.GlobalMaxConcurrent, 5),
		QueueSize:              intOr(cf.Dispatch.QueueSize, 256),
		CapRequeueDelay:        time.Duration(intOr(cf.Dispatch.CapRequeueSeconds, 30)) * time.Second,
		NoAccountRequeueDelay:  time.Duration(intOr(cf.Dispatch.NoAccountRequeueSeconds, 60)) * time.Second,
		MaxConsecutiveFailures: cf.Dispatch.MaxConsecutiveFailures,
		DailyStakeLimit:        cf.Dispatch.DailyStakeLimit,
	}

	cfg.Feed = FeedConfig{
		AlertsHost:        cf.Feed.AlertsHost,
		AlertsUserID:      cf.Feed.AlertsUserID,
		PollInterval:      time.Duration(intOr(cf.Feed.PollIntervalSeconds, 30)) * time.Second,
		BookHost:          cf.Feed.BookHost,
		RequestsPerSecond: intOr(cf.Feed.RequestsPerSecond, 4),
	}

	return cfg
}

// Validate 校验配置。以下情况直接拒绝启动：
// - 没有配置任何账号
// - 凯利系数超出 (0, 1]
// - 赔率分层区间非法
func (c *Config) Validate() error {
	if len(c.Accounts) == 0 {
		return fmt.Errorf("config: 必须至少配置一个账号")
	}

	seen := make(map[string]struct{}, len(c.Accounts))
	for i, a := range c.Accounts {
		if a.Username == "" {
			return fmt.Errorf("config: accounts[%d] 缺少 username", i)
		}
		if _, dup := seen[a.Username]; dup {
			return fmt.Errorf("config: 账号 %s 重复", a.Username)
		}
		seen[a.Username] = struct{}{}
	}

	switch c.Engine.DevigMethod {
	case "multiplicative", "additive", "power", "shin":
	default:
		return fmt.Errorf("config: 未知 devig_method %q", c.Engine.DevigMethod)
	}

	if c.Engine.KellyFraction <= 0 || c.Engine.KellyFraction > 1 {
		return fmt.Errorf("config: kelly_fraction 必须在 (0, 1]，当前 %v", c.Engine.KellyFraction)
	}
	if c.Engine.MinEV < 0 {
		return fmt.Errorf("config: min_ev 不能为负")
	}
	if c.Engine.MinStake > c.Engine.MaxStake {
		return fmt.Errorf("config: min_stake 大于 max_stake")
	}

	tiers := c.Engine.StakeTiers
	sorted := sort.SliceIsSorted(tiers, func(i, j int) bool {
		return tiers[i].MinOdds < tiers[j].MinOdds
	})
	if !sorted {
		return fmt.Errorf("config: stake_tiers 必须按 min_odds 升序")
	}
	for i, t := range tiers {
		if t.MinOdds >= t.MaxOdds {
			return fmt.Errorf("config: stake_tiers[%d] 区间非法 [%v, %v)", i, t.MinOdds, t.MaxOdds)
		}
		if t.MinStake > t.MaxStake {
			return fmt.Errorf("config: stake_tiers[%d] min_stake 大于 max_stake", i)
		}
		if i > 0 && t.MinOdds < tiers[i-1].MaxOdds {
			return fmt.Errorf("config: stake_tiers[%d] 与前一层重叠", i)
		}
	}

	if c.Dispatch.GlobalMaxConcurrent <= 0 {
		return fmt.Errorf("config: global_max_concurrent 必须为正")
	}
	return nil
}

// TierFor 返回给定赔率命中的分层；未命中返回 nil（使用全局上下限）
func (e *EngineConfig) TierFor(odds float64) *StakeTier {
	for i := range e.StakeTiers {
		t := &e.StakeTiers[i]
		if odds >= t.MinOdds && odds < t.MaxOdds {
			return t
		}
	}
	return nil
}

func strOr(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func intOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func floatOr(v, def float64) float64 {
	if v <= 0 {
		return def
	}
	return v
}
