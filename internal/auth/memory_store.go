package auth

import (
	"context"
	"crypto/subtle"
	"sync"

	"Web3Agent-Chain/internal/config"
)

// MemoryStore 保存配置内嵌的 API Key 指纹表.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Subject
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore 从配置加载密钥并建立指纹索引.
func NewMemoryStore(keys []config.APIKeyConfig) *MemoryStore {
	store := &MemoryStore{entries: make(map[string]Subject, len(keys))}
	for _, key := range keys {
		if key.Key == "" {
			continue
		}
		workspace := key.Workspace
		if workspace == "" {
			workspace = "default"
		}
		fingerprint := Fingerprint(key.Key)
		store.entries[fingerprint] = Subject{Workspace: workspace, KeyID: keyID(fingerprint)}
	}
	return store
}

// Lookup 实现 Store.
func (s *MemoryStore) Lookup(_ context.Context, fingerprint string) (Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for stored, subject := range s.entries {
		if subtle.ConstantTimeCompare([]byte(stored), []byte(fingerprint)) == 1 {
			return subject, nil
		}
	}
	return Subject{}, ErrInvalidCredentials
}
