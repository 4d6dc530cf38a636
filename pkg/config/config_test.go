package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFromFile_Defaults(t *testing.T) {
	path := writeTempConfig(t, `
accounts:
  - username: alice
engine:
  min_ev: 3.0
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	// 账号默认值
	require.Len(t, cfg.Accounts, 1)
	assert.True(t, cfg.Accounts[0].Active)
	assert.Equal(t, 3, cfg.Accounts[0].MaxConcurrentBets)
	assert.Equal(t, 100.0, cfg.Accounts[0].MinBalance)

	// 引擎默认值
	assert.Equal(t, "power", cfg.Engine.DevigMethod)
	assert.Equal(t, 0.3, cfg.Engine.KellyFraction)
	assert.True(t, cfg.Engine.TrackBalance)

	// 派单默认值
	assert.Equal(t, 5, cfg.Dispatch.GlobalMaxConcurrent)
	assert.Equal(t, 30*time.Second, cfg.Dispatch.CapRequeueDelay)
	assert.Equal(t, 60*time.Second, cfg.Dispatch.NoAccountRequeueDelay)
}

func TestLoadFromFile_FullConfig(t *testing.T) {
	path := writeTempConfig(t, `
log_level: debug
accounts:
  - username: alice
    active: false
    max_concurrent_bets: 2
    min_balance: 50
    proxy: "10.0.0.1:8080"
  - username: bob
engine:
  devig_method: shin
  min_ev: 5.0
  max_odds: 8.0
  kelly_fraction: 0.25
  bankroll: 2000
  stake_tiers:
    - {min_odds: 1.0, max_odds: 2.0, min_stake: 10, max_stake: 5000}
    - {min_odds: 2.0, max_odds: 5.0, min_stake: 10, max_stake: 1000}
dispatch:
  global_max_concurrent: 2
  cap_requeue_seconds: 10
feed:
  alerts_host: "http://alerts.local"
  poll_interval_seconds: 15
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.False(t, cfg.Accounts[0].Active)
	assert.Equal(t, "10.0.0.1:8080", cfg.Accounts[0].Proxy)
	assert.Equal(t, "shin", cfg.Engine.DevigMethod)
	assert.Equal(t, 8.0, cfg.Engine.MaxOdds)
	assert.Equal(t, 10*time.Second, cfg.Dispatch.CapRequeueDelay)
	assert.Equal(t, 15*time.Second, cfg.Feed.PollInterval)

	tier := cfg.Engine.TierFor(2.5)
	require.NotNil(t, tier)
	assert.Equal(t, 1000.0, tier.MaxStake)
	assert.Nil(t, cfg.Engine.TierFor(9.0))
}

func TestValidate_Rejections(t *testing.T) {
	base := func() *Config {
		return &Config{
			Accounts: []AccountConfig{{Username: "alice", MaxConcurrentBets: 3, MinBalance: 100}},
			Engine: EngineConfig{
				DevigMethod:   "power",
				KellyFraction: 0.3,
				MinStake:      10,
				MaxStake:      100,
			},
			Dispatch: DispatchConfig{GlobalMaxConcurrent: 1},
		}
	}

	t.Run("无账号", func(t *testing.T) {
		cfg := base()
		cfg.Accounts = nil
		assert.Error(t, cfg.Validate())
	})

	t.Run("账号重复", func(t *testing.T) {
		cfg := base()
		cfg.Accounts = append(cfg.Accounts, cfg.Accounts[0])
		assert.Error(t, cfg.Validate())
	})

	t.Run("凯利系数越界", func(t *testing.T) {
		cfg := base()
		cfg.Engine.KellyFraction = 1.5
		assert.Error(t, cfg.Validate())
	})

	t.Run("未知devig方法", func(t *testing.T) {
		cfg := base()
		cfg.Engine.DevigMethod = "magic"
		assert.Error(t, cfg.Validate())
	})

	t.Run("分层乱序", func(t *testing.T) {
		cfg := base()
		cfg.Engine.StakeTiers = []StakeTier{
			{MinOdds: 2.0, MaxOdds: 5.0, MinStake: 10, MaxStake: 100},
			{MinOdds: 1.0, MaxOdds: 2.0, MinStake: 10, MaxStake: 100},
		}
		assert.Error(t, cfg.Validate())
	})

	t.Run("分层重叠", func(t *testing.T) {
		cfg := base()
		cfg.Engine.StakeTiers = []StakeTier{
			{MinOdds: 1.0, MaxOdds: 3.0, MinStake: 10, MaxStake: 100},
			{MinOdds: 2.0, MaxOdds: 5.0, MinStake: 10, MaxStake: 100},
		}
		assert.Error(t, cfg.Validate())
	})

	t.Run("合法配置", func(t *testing.T) {
		assert.NoError(t, base().Validate())
	})
}
