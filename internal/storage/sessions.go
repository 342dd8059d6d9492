// Package storage 提供可选的会话元数据归档。
//
// 归档只记录会话的生命周期（id、房间、文件路径、起止时间），转写内容
// 本身始终是本地的append-only平面文件，不入库。
package storage

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const sessionsSchema = `
CREATE TABLE IF NOT EXISTS barrage_sessions (
    session_id      TEXT PRIMARY KEY,
    room_id         TEXT NOT NULL,
    transcript_path TEXT NOT NULL,
    started_at      TIMESTAMPTZ NOT NULL,
    stopped_at      TIMESTAMPTZ
)`

// SessionStore 基于PostgreSQL的会话元数据存储
type SessionStore struct {
	pool *pgxpool.Pool
}

// Connect 创建连接池并校验连通性
func Connect(ctx context.Context, dsn string) (*SessionStore, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SessionStore{pool: pool}
	if err := store.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	log.Printf("PostgreSQL会话归档已启用")
	return store, nil
}

// Close 关闭连接池
func (s *SessionStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// ensureSchema 初始化归档表
func (s *SessionStore) ensureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, sessionsSchema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// RecordStart 记录会话开始
func (s *SessionStore) RecordStart(ctx context.Context, sessionID, roomID, transcriptPath string, startedAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO barrage_sessions (session_id, room_id, transcript_path, started_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id) DO UPDATE
		SET room_id = EXCLUDED.room_id,
		    transcript_path = EXCLUDED.transcript_path,
		    started_at = EXCLUDED.started_at,
		    stopped_at = NULL`,
		sessionID, roomID, transcriptPath, startedAt)
	if err != nil {
		return fmt.Errorf("record session start failed: %w", err)
	}
	return nil
}

// RecordStop 记录会话结束
func (s *SessionStore) RecordStop(ctx context.Context, sessionID string, stoppedAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE barrage_sessions SET stopped_at = $2 WHERE session_id = $1`,
		sessionID, stoppedAt)
	if err != nil {
		return fmt.Errorf("record session stop failed: %w", err)
	}
	return nil
}

// Stats 连接池统计信息
func (s *SessionStore) Stats() *pgxpool.Stat {
	if s.pool == nil {
		return nil
	}
	return s.pool.Stat()
}
