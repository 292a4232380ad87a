package task

import (
	stdErrors "errors"

	xerrors "Web3Agent-Chain/internal/errors"
)

// Status 表示分析任务在生命周期中的状态。
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// 支持的分析操作。
const (
	OpAnalyzeWallet  = "analyze_wallet"
	OpAssessContract = "assess_contract"
	OpAnalyzeDeFi    = "analyze_defi"
	OpMonitorNFT     = "monitor_nft"
	OpDraftContract  = "draft_contract"
	OpCreateStrategy = "create_strategy"
	OpTokenEconomics = "token_economics"
)

// IsValidOperation 检查操作是否为支持的分析类型。
func IsValidOperation(operation string) bool {
	switch operation {
	case OpAnalyzeWallet, OpAssessContract, OpAnalyzeDeFi, OpMonitorNFT,
		OpDraftContract, OpCreateStrategy, OpTokenEconomics:
		return true
	default:
		return false
	}
}

// MemberFinding 是一名专家成员在分析中给出的结论。
type MemberFinding struct {
	Role  string `json:"role"`
	Reply string `json:"reply"`
	Error string `json:"error,omitempty"`
}

// AnalysisResult 保存一次分析任务的结果。
type AnalysisResult struct {
	Summary      string          `json:"summary"`
	Coordination string          `json:"coordination"`
	Network      string          `json:"network"`
	Members      []MemberFinding `json:"members,omitempty"`
}

// Request 描述提交给任务服务的分析请求。
type Request struct {
	// ID 允许调用方指定幂等键, 为空时自动生成。
	ID string `json:"id,omitempty"`
	// Operation 是分析类型, 见 Op* 常量。
	Operation string `json:"operation"`
	// Goal 是人类可读的分析目标描述。
	Goal string `json:"goal,omitempty"`
	// Target 是被分析的地址、合约或代币。
	Target string `json:"target,omitempty"`
	// Params 携带操作相关的附加参数。
	Params map[string]any `json:"params,omitempty"`
}

// Task 描述了排队执行的分析任务。
type Task struct {
	ID         string          `json:"id"`
	Operation  string          `json:"operation"`
	Goal       string          `json:"goal"`
	Target     string          `json:"target"`
	Params     map[string]any  `json:"params,omitempty"`
	Status     Status          `json:"status"`
	Attempts   int             `json:"attempts"`
	MaxRetries int             `json:"max_retries"`
	LastError  string          `json:"last_error,omitempty"`
	ErrorCode  string          `json:"error_code,omitempty"`
	Result     *AnalysisResult `json:"result,omitempty"`
	CreatedAt  int64           `json:"created_at"`
	UpdatedAt  int64           `json:"updated_at"`
}

var (
	// ErrTaskNotFound 表示指定的任务不存在。
	ErrTaskNotFound = xerrors.New(CodeTaskNotFound, "task not found")
	// ErrTaskConflict 表示任务在当前状态下无法进行所请求的操作。
	ErrTaskConflict = xerrors.New(CodeTaskConflict, "task conflict", xerrors.WithSeverity(xerrors.SeverityWarning))
	// ErrTaskCompleted 表示任务已经成功完成。
	ErrTaskCompleted = xerrors.New(CodeTaskCompleted, "task already completed", xerrors.WithSeverity(xerrors.SeverityInfo))
	// ErrTaskExhausted 表示任务的重试次数已经耗尽。
	ErrTaskExhausted = xerrors.New(CodeTaskExhausted, "task retries exhausted", xerrors.WithSeverity(xerrors.SeverityCritical))
)

const (
	CodeTaskNotFound   xerrors.Code = "TASK_NOT_FOUND"
	CodeTaskConflict   xerrors.Code = "TASK_CONFLICT"
	CodeTaskCompleted  xerrors.Code = "TASK_COMPLETED"
	CodeTaskExhausted  xerrors.Code = "TASK_RETRIES_EXHAUSTED"
	CodeTaskValidation xerrors.Code = "TASK_VALIDATION_FAILED"
	CodeTaskPublish    xerrors.Code = "TASK_PUBLISH_FAILED"
	CodeTaskProcessing xerrors.Code = "TASK_PROCESSING_FAILED"
	CodeTaskCompensate xerrors.Code = "TASK_COMPENSATION_FAILED"
)

func init() {
	xerrors.Register(CodeTaskNotFound, xerrors.Attributes{
		Message:   "task not found",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeTaskConflict, xerrors.Attributes{
		Message:   "task conflict",
		Severity:  xerrors.SeverityWarning,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeTaskCompleted, xerrors.Attributes{
		Message:   "task already completed",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeTaskExhausted, xerrors.Attributes{
		Message:   "task retries exhausted",
		Severity:  xerrors.SeverityCritical,
		Retryable: false,
		Alert:     true,
	})
	xerrors.Register(CodeTaskValidation, xerrors.Attributes{
		Message:   "task validation failed",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeTaskPublish, xerrors.Attributes{
		Message:   "failed to publish task",
		Severity:  xerrors.SeverityCritical,
		Retryable: true,
		Alert:     true,
	})
	xerrors.Register(CodeTaskProcessing, xerrors.Attributes{
		Message:   "task execution failed",
		Severity:  xerrors.SeverityWarning,
		Retryable: true,
		Alert:     true,
	})
	xerrors.Register(CodeTaskCompensate, xerrors.Attributes{
		Message:   "task compensation failed",
		Severity:  xerrors.SeverityCritical,
		Retryable: false,
		Alert:     true,
	})
}

// IsTaskError 判断错误是否为统一任务错误。
func IsTaskError(err error, target xerrors.Code) bool {
	if err == nil {
		return false
	}
	if stdErrors.Is(err, ErrTaskNotFound) {
		return target == CodeTaskNotFound
	}
	if stdErrors.Is(err, ErrTaskConflict) {
		return target == CodeTaskConflict
	}
	if stdErrors.Is(err, ErrTaskCompleted) {
		return target == CodeTaskCompleted
	}
	if stdErrors.Is(err, ErrTaskExhausted) {
		return target == CodeTaskExhausted
	}
	return false
}

func cloneParams(params map[string]any) map[string]any {
	if params == nil {
		return nil
	}
	cloned := make(map[string]any, len(params))
	for key, value := range params {
		cloned[key] = value
	}
	return cloned
}

func cloneResult(result *AnalysisResult) *AnalysisResult {
	if result == nil {
		return nil
	}
	clone := *result
	if result.Members != nil {
		clone.Members = make([]MemberFinding, len(result.Members))
		copy(clone.Members, result.Members)
	}
	return &clone
}

func hasAnalysisResult(result *AnalysisResult) bool {
	if result == nil {
		return false
	}
	return result.Summary != "" || result.Coordination != "" || result.Network != "" || len(result.Members) > 0
}

// IsValidStatus 检查给定的任务状态是否为支持的枚举值。
func IsValidStatus(status Status) bool {
	switch status {
	case StatusPending, StatusRunning, StatusSucceeded, StatusFailed:
		return true
	default:
		return false
	}
}
