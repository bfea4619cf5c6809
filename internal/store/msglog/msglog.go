// Package msglog 把抓到的原始频道消息落到 SQLite,方便事后排查
// 某条意图是由哪句话触发的。消息路径上的去重不依赖这里。
package msglog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"callout/internal/signal"
	"callout/internal/source"

	_ "modernc.org/sqlite"
)

// Store 是追加型消息档案,同指纹的消息只落一次。
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

// Entry 是一条归档消息。
type Entry struct {
	ID          int64     `json:"id"`
	Channel     string    `json:"channel"`
	MessageID   string    `json:"message_id,omitempty"`
	Fingerprint string    `json:"fingerprint"`
	Text        string    `json:"text"`
	CreatedAt   time.Time `json:"created_at"`
}

func New(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("msglog: 数据库路径不能为空")
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("msglog: 打开数据库失败: %w", err)
	}
	s := &Store{db: db, path: path}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	channel TEXT NOT NULL,
	message_id TEXT,
	fingerprint TEXT NOT NULL,
	text TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_messages_channel_fp ON messages(channel, fingerprint);
CREATE INDEX IF NOT EXISTS idx_messages_created ON messages(created_at);`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("msglog: 初始化表失败: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append 归档一条消息。重复指纹静默忽略。
func (s *Store) Append(ctx context.Context, msg source.Message) error {
	if s == nil || s.db == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
INSERT OR IGNORE INTO messages (channel, message_id, fingerprint, text, created_at)
VALUES (?, ?, ?, ?, ?)`,
		msg.Channel, msg.ID, signal.Fingerprint(msg.Text), msg.Text, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("msglog: 写入失败: %w", err)
	}
	return nil
}

// Recent 返回最近的消息,新的在前。channel 为空表示全部频道。
func (s *Store) Recent(ctx context.Context, channel string, limit int) ([]Entry, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("msglog 未初始化")
	}
	if limit <= 0 {
		limit = 100
	}

	var (
		rows *sql.Rows
		err  error
	)
	if strings.TrimSpace(channel) == "" {
		rows, err = s.db.QueryContext(ctx, `
SELECT id, channel, message_id, fingerprint, text, created_at
FROM messages ORDER BY id DESC LIMIT ?`, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, `
SELECT id, channel, message_id, fingerprint, text, created_at
FROM messages WHERE channel = ? ORDER BY id DESC LIMIT ?`, channel, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("msglog: 查询失败: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e  Entry
			ts int64
		)
		if err := rows.Scan(&e.ID, &e.Channel, &e.MessageID, &e.Fingerprint, &e.Text, &ts); err != nil {
			return nil, err
		}
		e.CreatedAt = time.Unix(ts, 0)
		out = append(out, e)
	}
	return out, rows.Err()
}
