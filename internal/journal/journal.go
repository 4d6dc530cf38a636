package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/betalert/arbot/internal/domain"
)

var jLog = logrus.WithField("module", "journal")

// Journal 注单流水：每一次下注成功 / 最终放弃都落一行，
// 用于对账和复盘。SQLite 单文件，WAL 模式。
type Journal struct {
	db *sql.DB
}

// Open 打开（必要时创建）注单流水库
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite：单连接更稳定

	j := &Journal{db: db}
	if err := j.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	jLog.Infof("注单流水库就绪: %s", path)
	return j, nil
}

func (j *Journal) migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`
CREATE TABLE IF NOT EXISTS bets (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  order_id TEXT NOT NULL,
  event_id TEXT NOT NULL,
  book_event_id TEXT,
  home TEXT NOT NULL,
  away TEXT NOT NULL,
  line_type TEXT NOT NULL,
  outcome TEXT NOT NULL,
  points REAL,
  first_half INTEGER NOT NULL DEFAULT 0,
  outcome_id TEXT,
  odds REAL,
  fair_price REAL,
  ev REAL,
  stake REAL,
  account TEXT,
  result TEXT NOT NULL, -- "placed" | "failed"
  reason TEXT,
  attempts INTEGER NOT NULL DEFAULT 0,
  starts TEXT,
  created_at TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_bets_order_id ON bets(order_id);`,
		`CREATE INDEX IF NOT EXISTS idx_bets_created_at ON bets(created_at DESC);`,
	}
	for _, q := range stmts {
		if _, err := j.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("migrate exec failed: %w", err)
		}
	}
	return nil
}

// RecordPlaced 记录一笔下注成功的订单
func (j *Journal) RecordPlaced(order *domain.BetOrder, account string, stake float64) error {
	return j.insert(order, "placed", "", &account, &stake)
}

// RecordFailed 记录一笔最终放弃的订单
func (j *Journal) RecordFailed(order *domain.BetOrder, reason string) error {
	return j.insert(order, "failed", reason, nil, nil)
}

func (j *Journal) insert(order *domain.BetOrder, result, reason string, account *string, stake *float64) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var points sql.NullFloat64
	firstHalf := 0
	if order.Alert != nil {
		if order.Quote.Points != nil {
			points = sql.NullFloat64{Float64: *order.Quote.Points, Valid: true}
		}
		if order.Alert.FirstHalf {
			firstHalf = 1
		}
	}

	var acc sql.NullString
	if account != nil {
		acc = sql.NullString{String: *account, Valid: true}
	}
	var stk sql.NullFloat64
	if stake != nil {
		stk = sql.NullFloat64{Float64: *stake, Valid: true}
	}

	_, err := j.db.ExecContext(ctx, `
INSERT INTO bets (order_id,event_id,book_event_id,home,away,line_type,outcome,points,first_half,
                  outcome_id,odds,fair_price,ev,stake,account,result,reason,attempts,starts,created_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
`, order.ID, order.Alert.EventID, order.BookEventID, order.Alert.Home, order.Alert.Away,
		string(order.Alert.LineType), string(order.Alert.Outcome), points, firstHalf,
		order.Quote.OutcomeID, order.Quote.Odds, order.FairPrice, order.EV, stk, acc,
		result, reason, order.Attempts,
		order.Alert.Starts.Format(time.RFC3339Nano), time.Now().Format(time.RFC3339Nano))
	return err
}

// Entry 流水行（查询用）
type Entry struct {
	OrderID   string
	EventID   string
	Home      string
	Away      string
	LineType  string
	Outcome   string
	Odds      float64
	FairPrice float64
	EV        float64
	Stake     float64
	Account   string
	Result    string
	Reason    string
	CreatedAt time.Time
}

// Recent 最近 n 条流水，新的在前
func (j *Journal) Recent(ctx context.Context, n int) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, `
SELECT order_id,event_id,home,away,line_type,outcome,
       COALESCE(odds,0),COALESCE(fair_price,0),COALESCE(ev,0),COALESCE(stake,0),
       COALESCE(account,''),result,COALESCE(reason,''),created_at
FROM bets ORDER BY id DESC LIMIT ?
`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var created string
		if err := rows.Scan(&e.OrderID, &e.EventID, &e.Home, &e.Away, &e.LineType, &e.Outcome,
			&e.Odds, &e.FairPrice, &e.EV, &e.Stake, &e.Account, &e.Result, &e.Reason, &created); err != nil {
			return nil, err
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, e)
	}
	return out, rows.Err()
}

// TotalStaked 当日已下注总额（UTC 日界），断路器日限额用
func (j *Journal) TotalStaked(ctx context.Context, since time.Time) (float64, error) {
	row := j.db.QueryRowContext(ctx, `
SELECT COALESCE(SUM(stake),0) FROM bets WHERE result='placed' AND created_at>=?
`, since.Format(time.RFC3339Nano))
	var total float64
	if err := row.Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// Close 关闭流水库
func (j *Journal) Close() error {
	return j.db.Close()
}
