package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"Web3Agent-Chain/internal/auth"
	"Web3Agent-Chain/internal/config"
)

// SQLKeyStore 把 API Key 指纹保存在 MySQL 中.
type SQLKeyStore struct {
	db *sql.DB
}

var _ auth.Store = (*SQLKeyStore)(nil)

// NewSQLKeyStore 建立连接并执行迁移后返回凭证存储.
func NewSQLKeyStore(ctx context.Context, cfg Config) (*SQLKeyStore, error) {
	db, err := Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLKeyStore{db: db}, nil
}

// Close 释放底层连接池.
func (s *SQLKeyStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Lookup 实现 auth.Store.
func (s *SQLKeyStore) Lookup(ctx context.Context, fingerprint string) (auth.Subject, error) {
	const query = `SELECT fingerprint, workspace, disabled FROM api_keys WHERE fingerprint = ?`
	row := s.db.QueryRowContext(ctx, query, fingerprint)

	var stored, workspace string
	var disabled int
	if err := row.Scan(&stored, &workspace, &disabled); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return auth.Subject{}, auth.ErrInvalidCredentials
		}
		return auth.Subject{}, fmt.Errorf("查询凭证失败: %w", err)
	}
	if disabled == 1 {
		return auth.Subject{}, auth.ErrInvalidCredentials
	}
	return auth.Subject{Workspace: workspace, KeyID: shortKeyID(stored)}, nil
}

// ApplySeed 把配置文件中声明的密钥写入数据库, 已存在时刷新工作区归属.
func (s *SQLKeyStore) ApplySeed(ctx context.Context, keys []config.APIKeyConfig) error {
	now := time.Now().Unix()
	const upsert = `INSERT INTO api_keys (fingerprint, workspace, disabled, created_at, updated_at)
VALUES (?, ?, 0, ?, ?)
ON DUPLICATE KEY UPDATE workspace = VALUES(workspace), disabled = 0, updated_at = VALUES(updated_at)`

	for _, key := range keys {
		if strings.TrimSpace(key.Key) == "" {
			continue
		}
		workspace := key.Workspace
		if workspace == "" {
			workspace = "default"
		}
		if _, err := s.db.ExecContext(ctx, upsert, auth.Fingerprint(key.Key), workspace, now, now); err != nil {
			return fmt.Errorf("写入凭证种子失败: %w", err)
		}
	}
	return nil
}

func shortKeyID(fingerprint string) string {
	if len(fingerprint) <= 8 {
		return fingerprint
	}
	return fingerprint[:8]
}
