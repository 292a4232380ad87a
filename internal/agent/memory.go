package agent

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	apperrors "Web3Agent-Chain/internal/errors"
)

// defaultMemoryLimit bounds how many operations a memory file retains.
const defaultMemoryLimit = 200

// MemoryEntry 记录一次已执行的操作。
type MemoryEntry struct {
	Operation string         `json:"operation"`
	Network   string         `json:"network,omitempty"`
	Summary   map[string]any `json:"summary,omitempty"`
	Status    string         `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
}

// Memory 是按文件持久化的有界操作历史。
type Memory struct {
	mu      sync.Mutex
	path    string
	limit   int
	entries []MemoryEntry
}

// OpenMemory loads (or creates) the memory file for an agent. An empty path
// yields an in-memory-only history.
func OpenMemory(path string, limit int) (*Memory, error) {
	if limit <= 0 {
		limit = defaultMemoryLimit
	}
	m := &Memory{path: path, limit: limit}
	if path == "" {
		return m, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return nil, apperrors.Wrap(apperrors.CodeStorageFailure, err,
			fmt.Sprintf("读取记忆文件失败: %s", path))
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &m.entries); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeStorageFailure, err,
				fmt.Sprintf("解析记忆文件失败: %s", path))
		}
	}
	m.trimLocked()
	return m, nil
}

// Record appends an operation and persists the file. Persistence errors are
// returned but callers typically only log them.
func (m *Memory) Record(entry MemoryEntry) error {
	if m == nil {
		return nil
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	m.trimLocked()
	return m.saveLocked()
}

// Recent returns up to n entries, newest first.
func (m *Memory) Recent(n int) []MemoryEntry {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if n <= 0 || n > len(m.entries) {
		n = len(m.entries)
	}
	out := make([]MemoryEntry, n)
	for i := 0; i < n; i++ {
		out[i] = m.entries[len(m.entries)-1-i]
	}
	return out
}

// Len returns the number of retained entries.
func (m *Memory) Len() int {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Memory) trimLocked() {
	if len(m.entries) > m.limit {
		m.entries = append([]MemoryEntry(nil), m.entries[len(m.entries)-m.limit:]...)
	}
}

// saveLocked writes the file atomically via a temp file rename.
func (m *Memory) saveLocked() error {
	if m.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(m.entries, "", "  ")
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorageFailure, err, "序列化记忆失败")
	}
	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperrors.Wrap(apperrors.CodeStorageFailure, err,
			fmt.Sprintf("创建记忆目录失败: %s", dir))
	}
	tmp, err := os.CreateTemp(dir, ".memory-*.json")
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorageFailure, err, "创建临时记忆文件失败")
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return apperrors.Wrap(apperrors.CodeStorageFailure, err, "写入记忆文件失败")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return apperrors.Wrap(apperrors.CodeStorageFailure, err, "关闭记忆文件失败")
	}
	if err := os.Rename(tmpPath, m.path); err != nil {
		os.Remove(tmpPath)
		return apperrors.Wrap(apperrors.CodeStorageFailure, err,
			fmt.Sprintf("替换记忆文件失败: %s", m.path))
	}
	return nil
}
