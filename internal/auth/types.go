// Package auth 提供基于 API Key 的访问认证与工作区隔离.
package auth

import (
	"context"
	"errors"
)

// 认证失败的哨兵错误.
var (
	// ErrMissingCredentials 请求未携带任何凭证.
	ErrMissingCredentials = errors.New("auth: 请求缺少凭证")
	// ErrInvalidCredentials 凭证不存在或已失效.
	ErrInvalidCredentials = errors.New("auth: 凭证无效")
	// ErrDisabled 认证服务未启用.
	ErrDisabled = errors.New("auth: 认证未启用")
)

// Subject 是一次成功认证后的请求主体.
type Subject struct {
	// Workspace 凭证归属的工作区, 用于审计与数据隔离.
	Workspace string
	// KeyID 命中凭证的指纹前缀, 不含完整密钥.
	KeyID string
}

// Store 负责按密钥指纹查找凭证归属.
type Store interface {
	// Lookup 根据密钥的 SHA-256 指纹返回主体信息.
	// 未命中时返回 ErrInvalidCredentials.
	Lookup(ctx context.Context, fingerprint string) (Subject, error)
}
