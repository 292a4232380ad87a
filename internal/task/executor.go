package task

import (
	"context"
	"fmt"

	xerrors "Web3Agent-Chain/internal/errors"
	"Web3Agent-Chain/internal/society"
)

// SocietyExecutor 把分析任务分发给多智能体社会执行。
type SocietyExecutor struct {
	society *society.Web3Society
}

// NewSocietyExecutor 创建基于社会的执行器。
func NewSocietyExecutor(s *society.Web3Society) *SocietyExecutor {
	return &SocietyExecutor{society: s}
}

// Execute 实现 Executor 接口。
func (e *SocietyExecutor) Execute(ctx context.Context, req Request) (*AnalysisResult, error) {
	if e == nil || e.society == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "未配置多智能体社会")
	}

	var result map[string]any
	switch req.Operation {
	case OpAnalyzeWallet:
		result = e.society.AnalyzeWallet(ctx, req.Target, stringSlice(req.Params, "tokens"))
	case OpAssessContract:
		result = e.society.AssessSmartContract(ctx, req.Target, stringParam(req.Params, "abi"))
	case OpAnalyzeDeFi:
		tokenOut := stringParam(req.Params, "token_out")
		result = e.society.AnalyzeDeFiProtocol(ctx, req.Target, tokenOut, stringParam(req.Params, "amount"))
	case OpMonitorNFT:
		result = e.society.MonitorNFTCollection(ctx, req.Target)
	case OpDraftContract:
		requirements := stringParam(req.Params, "requirements")
		if requirements == "" {
			requirements = req.Goal
		}
		result = e.society.DraftSmartContract(ctx, requirements)
	case OpCreateStrategy:
		result = e.society.CreateDeFiStrategy(ctx, req.Goal, stringParam(req.Params, "risk_profile"))
	case OpTokenEconomics:
		result = e.society.AnalyzeTokenEconomics(ctx, req.Target)
	default:
		return nil, xerrors.New(CodeTaskValidation, fmt.Sprintf("不支持的分析操作: %s", req.Operation))
	}

	return convertSocietyResult(req, result)
}

func convertSocietyResult(req Request, result map[string]any) (*AnalysisResult, error) {
	status, _ := result["status"].(string)
	if status != "ok" {
		message, _ := result["error"].(string)
		if message == "" {
			message = "分析执行失败"
		}
		code := CodeTaskProcessing
		if raw, ok := result["error_code"].(string); ok && raw != "" {
			code = xerrors.Code(raw)
		}
		return nil, xerrors.New(code, message)
	}

	analysis := &AnalysisResult{
		Network: stringParam(req.Params, "network"),
	}
	if summary, ok := result["summary"].(string); ok {
		analysis.Summary = summary
	}
	if coordination, ok := result["coordination"].(string); ok {
		analysis.Coordination = coordination
	}
	if members, ok := result["members"].([]map[string]any); ok {
		for _, member := range members {
			finding := MemberFinding{}
			finding.Role, _ = member["role"].(string)
			finding.Reply, _ = member["reply"].(string)
			if memberErr, ok := member["error"].(string); ok {
				finding.Error = memberErr
			}
			analysis.Members = append(analysis.Members, finding)
		}
	}
	return analysis, nil
}

func stringParam(params map[string]any, key string) string {
	if params == nil {
		return ""
	}
	value, _ := params[key].(string)
	return value
}

func stringSlice(params map[string]any, key string) []string {
	if params == nil {
		return nil
	}
	switch raw := params[key].(type) {
	case []string:
		return raw
	case []any:
		out := make([]string, 0, len(raw))
		for _, item := range raw {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

var _ Executor = (*SocietyExecutor)(nil)
