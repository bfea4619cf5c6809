// Package tradelog persists every attempted order action to SQLite,
// keeping an audit trail the ops API can serve back out.
package tradelog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"callout/internal/trader"
	"callout/internal/types"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store implements trader.Recorder on top of Gorm + SQLite.
type Store struct {
	db *gorm.DB
}

var _ trader.Recorder = (*Store)(nil)

type executionModel struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	Ticker     string `gorm:"index"`
	Kind       string `gorm:"index"`
	Channel    string
	Symbol     string
	Side       string
	Type       string
	Quantity   int
	Price      float64
	OrderID    string
	Status     string `gorm:"index"`
	Error      string
	IntentJSON datatypes.JSON
	CreatedAt  time.Time `gorm:"index"`
}

func (executionModel) TableName() string { return "executions" }

// ExecutionEntry is the read-side view of one recorded action.
type ExecutionEntry struct {
	ID        uint              `json:"id"`
	Ticker    string            `json:"ticker"`
	Kind      string            `json:"kind"`
	Channel   string            `json:"channel,omitempty"`
	Symbol    string            `json:"symbol,omitempty"`
	Side      string            `json:"side,omitempty"`
	Type      string            `json:"type,omitempty"`
	Quantity  int               `json:"quantity,omitempty"`
	Price     float64           `json:"price,omitempty"`
	OrderID   string            `json:"order_id,omitempty"`
	Status    string            `json:"status"`
	Error     string            `json:"error,omitempty"`
	Intent    types.TradeIntent `json:"intent"`
	CreatedAt time.Time         `json:"created_at"`
}

func New(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("tradelog: 数据库路径不能为空")
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&executionModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Record appends one execution record.
func (s *Store) Record(ctx context.Context, rec trader.ExecutionRecord) error {
	if s == nil || s.db == nil {
		return nil
	}
	payload, err := json.Marshal(rec.Intent)
	if err != nil {
		return fmt.Errorf("tradelog: 序列化意图失败: %w", err)
	}
	m := executionModel{
		Ticker:     rec.Intent.Ticker,
		Kind:       string(rec.Intent.Kind),
		Channel:    rec.Intent.Channel,
		Symbol:     rec.Symbol,
		Side:       rec.Side,
		Type:       rec.Type,
		Quantity:   rec.Quantity,
		Price:      rec.Price,
		OrderID:    rec.OrderID,
		Status:     rec.Status,
		Error:      rec.Error,
		IntentJSON: datatypes.JSON(payload),
		CreatedAt:  time.Now(),
	}
	return s.db.WithContext(ctx).Create(&m).Error
}

// Recent returns the newest entries, newest first. limit<=0 means 50.
func (s *Store) Recent(ctx context.Context, limit int) ([]ExecutionEntry, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("tradelog 未初始化")
	}
	if limit <= 0 {
		limit = 50
	}
	var models []executionModel
	err := s.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]ExecutionEntry, 0, len(models))
	for _, m := range models {
		out = append(out, toEntry(m))
	}
	return out, nil
}

// ByTicker returns entries for one underlying, newest first.
func (s *Store) ByTicker(ctx context.Context, ticker string, limit int) ([]ExecutionEntry, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("tradelog 未初始化")
	}
	if limit <= 0 {
		limit = 50
	}
	var models []executionModel
	err := s.db.WithContext(ctx).
		Where("ticker = ?", strings.ToUpper(strings.TrimSpace(ticker))).
		Order("id DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]ExecutionEntry, 0, len(models))
	for _, m := range models {
		out = append(out, toEntry(m))
	}
	return out, nil
}

func toEntry(m executionModel) ExecutionEntry {
	e := ExecutionEntry{
		ID:        m.ID,
		Ticker:    m.Ticker,
		Kind:      m.Kind,
		Channel:   m.Channel,
		Symbol:    m.Symbol,
		Side:      m.Side,
		Type:      m.Type,
		Quantity:  m.Quantity,
		Price:     m.Price,
		OrderID:   m.OrderID,
		Status:    m.Status,
		Error:     m.Error,
		CreatedAt: m.CreatedAt,
	}
	if len(m.IntentJSON) > 0 {
		_ = json.Unmarshal(m.IntentJSON, &e.Intent)
	}
	return e
}
