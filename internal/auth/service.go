package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"Web3Agent-Chain/internal/config"
)

// Service 校验 API Key 并解析其归属工作区.
type Service struct {
	enabled bool
	store   Store
}

// NewService 根据配置构建认证服务.
// 未配置外部存储时使用配置文件内嵌的密钥表.
func NewService(cfg config.AuthConfig, store Store) *Service {
	if store == nil {
		store = NewMemoryStore(cfg.APIKeys)
	}
	return &Service{enabled: cfg.Enabled, store: store}
}

// Enabled 返回认证是否开启.
func (s *Service) Enabled() bool {
	return s != nil && s.enabled
}

// Authenticate 校验原始密钥并返回请求主体.
func (s *Service) Authenticate(ctx context.Context, rawKey string) (Subject, error) {
	if !s.Enabled() {
		return Subject{}, ErrDisabled
	}
	rawKey = strings.TrimSpace(rawKey)
	if rawKey == "" {
		return Subject{}, ErrMissingCredentials
	}
	return s.store.Lookup(ctx, Fingerprint(rawKey))
}

// Fingerprint 计算密钥的 SHA-256 十六进制指纹.
// 存储层只保存指纹, 不落盘明文密钥.
func Fingerprint(rawKey string) string {
	sum := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(sum[:])
}

// keyID 取指纹前 8 位作为可审计的短标识.
func keyID(fingerprint string) string {
	if len(fingerprint) <= 8 {
		return fingerprint
	}
	return fingerprint[:8]
}
