package tools

import (
	"context"

	"Web3Agent-Chain/internal/web3/provider"
)

// ConnectionTool 管理链上连接并汇报其状态。
type ConnectionTool struct {
	registry *provider.Registry
}

// NewConnectionTool wires the connection tool to the provider registry.
func NewConnectionTool(registry *provider.Registry) *ConnectionTool {
	return &ConnectionTool{registry: registry}
}

func (t *ConnectionTool) Name() string { return "web3_connection" }

func (t *ConnectionTool) Description() string {
	return "管理区块链网络连接: connect、status、force_reconnect"
}

// Execute dispatches on the action parameter. status and connect share the
// same probe; force_reconnect drops the cached client first.
func (t *ConnectionTool) Execute(ctx context.Context, params map[string]any) map[string]any {
	network, networkType := networkParams(params)
	switch action := actionOf(params); action {
	case "connect", "status", "":
		return t.report(ctx, network, networkType, boolParam(params, "force_reconnect"))
	case "force_reconnect":
		return t.report(ctx, network, networkType, true)
	case "status_all":
		statuses := t.registry.CheckAll(ctx, boolParam(params, "force_reconnect"))
		return OK(map[string]any{"networks": statuses})
	default:
		return failUnknownAction(t.Name(), action)
	}
}

func (t *ConnectionTool) report(ctx context.Context, network, networkType string, force bool) map[string]any {
	status := t.registry.CheckStatus(ctx, network, networkType, force)
	fields := map[string]any{
		"network":      status.Network,
		"network_type": status.NetworkType,
		"connected":    status.Connected,
		"checked_at":   status.CheckedAt,
	}
	if status.Connected {
		fields["chain_id"] = status.Snapshot.ChainID
		fields["block_number"] = status.Snapshot.BlockNumber
		fields["provider"] = status.Snapshot.Provider
	} else {
		fields["error"] = status.Error
		fields["status"] = StatusFailed
		return fields
	}
	return OK(fields)
}
