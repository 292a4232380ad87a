// Package tools implements the action-dispatched adapters exposed to agents
// and the REST API. Every tool accepts a string-keyed parameter mapping and
// returns a string-keyed result mapping carrying a status field, so callers
// never need to interpret Go errors directly.
package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	apperrors "Web3Agent-Chain/internal/errors"
	"Web3Agent-Chain/internal/observability/metrics"
	"Web3Agent-Chain/internal/web3"
)

// Result statuses.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Tool 是所有工具适配器的统一契约。
type Tool interface {
	Name() string
	Description() string
	Execute(ctx context.Context, params map[string]any) map[string]any
}

// OK builds a success result from payload fields.
func OK(fields map[string]any) map[string]any {
	out := map[string]any{"status": StatusOK}
	for k, v := range fields {
		out[k] = v
	}
	return out
}

// Fail shapes an error into a failed result. Coded errors contribute their
// code so callers can branch without string matching.
func Fail(err error) map[string]any {
	out := map[string]any{
		"status": StatusFailed,
		"error":  err.Error(),
	}
	if code := apperrors.CodeOf(err); code != "" && code != apperrors.CodeUnknown {
		out["error_code"] = string(code)
	}
	return out
}

// Failf shapes a formatted message into a failed result with a code.
func Failf(code apperrors.Code, format string, args ...any) map[string]any {
	return Fail(apperrors.New(code, fmt.Sprintf(format, args...)))
}

// failUnknownAction is the uniform rejection for unrecognized actions.
func failUnknownAction(tool, action string) map[string]any {
	return Failf(apperrors.CodeUnsupportedAction, "工具 %s 不支持动作: %s", tool, action)
}

// stringParam reads an optional string parameter.
func stringParam(params map[string]any, key string) string {
	if v, ok := params[key]; ok {
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// requireString reads a mandatory string parameter.
func requireString(params map[string]any, key string) (string, error) {
	s := stringParam(params, key)
	if s == "" {
		return "", apperrors.New(apperrors.CodeInvalidArgument,
			fmt.Sprintf("缺少必填参数: %s", key))
	}
	return s, nil
}

// boolParam reads an optional boolean parameter, accepting JSON booleans and
// their common string forms.
func boolParam(params map[string]any, key string) bool {
	switch v := params[key].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true") || v == "1"
	default:
		return false
	}
}

// networkParams resolves the network pair with the documented defaults.
func networkParams(params map[string]any) (network, networkType string) {
	network = stringParam(params, "network")
	if network == "" {
		network = web3.NetworkEthereum
	}
	networkType = stringParam(params, "network_type")
	if networkType == "" {
		networkType = web3.TypeMainnet
	}
	return strings.ToLower(network), strings.ToLower(networkType)
}

// actionOf extracts the dispatch action.
func actionOf(params map[string]any) string {
	return strings.ToLower(stringParam(params, "action"))
}

// Registry 保存已注册的工具。
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry returns an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool, replacing any previous tool with the same name.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
}

// Get looks a tool up by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Names lists the registered tool names sorted for stable output.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute dispatches a call to a named tool. Unknown tools produce a failed
// result rather than an error, keeping the result contract uniform.
func (r *Registry) Execute(ctx context.Context, name string, params map[string]any) map[string]any {
	tool, ok := r.Get(name)
	if !ok {
		return Failf(apperrors.CodeNotFound, "未注册的工具: %s", name)
	}
	start := time.Now()
	result := tool.Execute(ctx, params)
	status, _ := result["status"].(string)
	metrics.ObserveToolExecution(name, status, time.Since(start))
	return result
}
