package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/betalert/arbot/internal/accounts"
	"github.com/betalert/arbot/internal/dedup"
	"github.com/betalert/arbot/internal/engine"
	"github.com/betalert/arbot/internal/feed"
	"github.com/betalert/arbot/internal/journal"
	"github.com/betalert/arbot/internal/metrics"
	"github.com/betalert/arbot/internal/risk"
	"github.com/betalert/arbot/pkg/config"
	"github.com/betalert/arbot/pkg/logger"
	"github.com/betalert/arbot/pkg/persistence"
	"github.com/betalert/arbot/pkg/secretstore"
	"github.com/betalert/arbot/pkg/shutdown"
	"github.com/betalert/arbot/pkg/syncgroup"
)

func main() {
	configPath := flag.String("config", "config.yaml", "配置文件路径")
	dryRun := flag.Bool("dry-run", false, "只决策不下注（覆盖配置文件）")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.LoadFromFile(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	if *dryRun {
		cfg.Engine.DryRun = true
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.LogLevel,
		OutputFile: cfg.LogFile,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     7,
		Compress:   true,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}

	logrus.Infof("arbot 启动: accounts=%d devig=%s min_ev=%.2f dry_run=%v",
		len(cfg.Accounts), cfg.Engine.DevigMethod, cfg.Engine.MinEV, cfg.Engine.DryRun)

	if err := run(cfg); err != nil {
		logrus.Errorf("arbot 退出: %v", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownMgr := shutdown.NewManager()

	// 凭据库：密钥来自环境变量，凭据不落配置文件
	key, err := secretstore.ParseKey(os.Getenv("ARBOT_SECRETSTORE_KEY"))
	if err != nil {
		return fmt.Errorf("解析凭据库密钥失败: %w", err)
	}
	if key == nil {
		logrus.Warn("未设置 ARBOT_SECRETSTORE_KEY，凭据库将不加密")
	}
	secrets, err := secretstore.Open(secretstore.OpenOptions{
		Path:          cfg.SecretsPath,
		EncryptionKey: key,
	})
	if err != nil {
		return fmt.Errorf("打开凭据库失败: %w", err)
	}
	shutdownMgr.OnShutdown("secretstore", func(ctx context.Context) {
		_ = secrets.Close()
	})

	// 核对每个启用账号的凭据是否齐备，缺失的直接拒绝启动
	for _, a := range cfg.Accounts {
		if !a.Active {
			continue
		}
		if _, found, err := secrets.CredentialsFor(a.Username); err != nil {
			return fmt.Errorf("读取账号 %s 凭据失败: %w", a.Username, err)
		} else if !found {
			return fmt.Errorf("账号 %s 缺少凭据，请先用 arbot-secrets 写入", a.Username)
		}
	}

	// 注单流水
	jnl, err := journal.Open(cfg.JournalPath)
	if err != nil {
		return fmt.Errorf("打开注单流水库失败: %w", err)
	}
	shutdownMgr.OnShutdown("journal", func(ctx context.Context) {
		_ = jnl.Close()
	})

	// 去重集合：从状态快照恢复，退出时落盘
	filter := dedup.New(0, 0)
	stateService := persistence.NewJSONFileService(cfg.StateDir)
	dedupStore := stateService.NewStore("arbot", "dedup", "seen")
	if err := filter.Load(dedupStore); err != nil {
		logrus.Warnf("恢复去重快照失败（忽略）: %v", err)
	}
	shutdownMgr.OnShutdown("dedup-snapshot", func(ctx context.Context) {
		if err := filter.Save(dedupStore); err != nil {
			logrus.Errorf("保存去重快照失败: %v", err)
		}
	})

	// 账号池：会话句柄持久化在凭据库里，重启免重新登录
	pool := accounts.NewPool(cfg.Accounts, cfg.Engine.TrackBalance, cfg.Engine.Bankroll)
	pool.AttachSessionStore(secrets)

	// 行情客户端：告警轮询 + 实时价 + 庄家盘口目录
	alerts := feed.NewClient(cfg.Feed)
	book := feed.NewBookAPI(cfg.Feed)
	shutdownMgr.OnShutdown("feed", func(ctx context.Context) {
		alerts.Close()
		book.Close()
	})

	// 未接入下注执行适配器时只能 dry run，避免订单在执行层空转
	if !cfg.Engine.DryRun {
		logrus.Warn("未接入下注执行适配器，强制 dry run 模式")
		cfg.Engine.DryRun = true
	}

	// 断路器
	breaker := risk.NewCircuitBreaker(risk.CircuitBreakerConfig{
		MaxConsecutiveFailures: cfg.Dispatch.MaxConsecutiveFailures,
		DailyStakeLimit:        cfg.Dispatch.DailyStakeLimit,
	})

	// 决策引擎 + 派单
	eng := engine.New(&cfg.Engine, filter, book, alerts)
	eng.Queue().SetCapacity(cfg.Dispatch.QueueSize)
	dispatcher := engine.NewDispatcher(pool, book, engine.NewStakeSizer(&cfg.Engine),
		eng.Queue(), breaker, jnl, cfg.Dispatch, &cfg.Engine)
	poller := feed.NewPoller(alerts, eng, cfg.Feed.PollInterval)

	// debug 服务（expvar/pprof），按需开启
	if cfg.MetricsListen != "" {
		if _, err := metrics.StartAsync(ctx, cfg.MetricsListen); err != nil {
			logrus.Warnf("debug 服务启动失败: %v", err)
		} else {
			logrus.Infof("debug 服务监听 %s", cfg.MetricsListen)
		}
	}

	sg := syncgroup.NewSyncGroup()
	sg.Add(func() { poller.Run(ctx) })
	sg.Add(func() { dispatcher.Run(ctx) })
	sg.Run()

	// 等待退出信号
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logrus.Infof("收到信号 %s，开始关闭", sig)

	cancel()
	eng.Close()
	sg.Wait()

	// 未执行的订单落日志，便于人工跟进
	for _, order := range eng.DrainQueue() {
		logrus.Warnf("停机丢弃未执行订单: %s %s vs %s EV=%.2f%%",
			order.ID, order.Alert.Home, order.Alert.Away, order.EV)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	shutdownMgr.Shutdown(shutdownCtx)
	return nil
}
