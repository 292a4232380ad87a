package society

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"Web3Agent-Chain/internal/agent"
	"Web3Agent-Chain/internal/knowledge"
	"Web3Agent-Chain/internal/llm"
	"Web3Agent-Chain/internal/tools"
	"Web3Agent-Chain/pkg/logger"
)

// 协作模式。未知的模式按共识处理。
const (
	CoordinationHierarchical = "hierarchical"
	CoordinationConsensus    = "consensus"
)

// MemberReport 是一名成员对当前任务的回答。
type MemberReport struct {
	Role    string `json:"role"`
	Thought string `json:"thought,omitempty"`
	Reply   string `json:"reply"`
	Error   string `json:"error,omitempty"`
}

// Web3Society 组织一组专家成员协作完成分析任务。
type Web3Society struct {
	name         string
	coordination string
	members      []Member
	agent        *agent.Web3Agent
	llmClient    llm.Client
	knowledge    knowledge.Provider
	log          *slog.Logger
}

// SocietyOption 定义可选的社会配置。
type SocietyOption func(*Web3Society)

// WithSocietyName 设置社会名称。
func WithSocietyName(name string) SocietyOption {
	return func(s *Web3Society) { s.name = name }
}

// WithCoordination 设置协作模式, 未识别的值落到共识模式。
func WithCoordination(mode string) SocietyOption {
	return func(s *Web3Society) { s.coordination = mode }
}

// WithMembers 覆盖内置成员。
func WithMembers(members []Member) SocietyOption {
	return func(s *Web3Society) { s.members = members }
}

// WithSocietyKnowledge 配置知识库。
func WithSocietyKnowledge(provider knowledge.Provider) SocietyOption {
	return func(s *Web3Society) { s.knowledge = provider }
}

// NewSociety 创建一个多智能体社会。agent 可以为 nil, 此时只能执行
// 纯文本的起草类操作。
func NewSociety(ag *agent.Web3Agent, llmClient llm.Client, opts ...SocietyOption) *Web3Society {
	s := &Web3Society{
		name:         "web3_society",
		coordination: CoordinationConsensus,
		members:      DefaultMembers(),
		agent:        ag,
		llmClient:    llmClient,
	}
	if s.llmClient == nil {
		s.llmClient = llm.NewDisabled()
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	switch s.coordination {
	case CoordinationHierarchical, CoordinationConsensus:
	default:
		s.coordination = CoordinationConsensus
	}
	if s.knowledge == nil {
		s.knowledge = knowledge.NewDefaultProvider()
	}
	s.log = logger.Named("society").With("society", s.name)
	return s
}

// Name returns the society's identifier.
func (s *Web3Society) Name() string { return s.name }

// Coordination returns the active coordination mode.
func (s *Web3Society) Coordination() string { return s.coordination }

// participants picks the members covering a topic, keeping the lead last.
func (s *Web3Society) participants(topic string) []Member {
	var picked []Member
	var lead *Member
	for _, m := range s.members {
		if !m.matchesTopic(topic) {
			continue
		}
		if m.Lead {
			leadCopy := m
			lead = &leadCopy
			continue
		}
		picked = append(picked, m)
	}
	if lead != nil {
		picked = append(picked, *lead)
	}
	return picked
}

// coordinate runs the selected members over the gathered sections and
// returns the per-member reports plus a combined summary.
func (s *Web3Society) coordinate(ctx context.Context, topic, goal string, sections []llm.Section) ([]MemberReport, string) {
	members := s.participants(topic)
	if len(members) == 0 {
		return nil, ""
	}

	var cards []llm.KnowledgeCard
	if s.knowledge != nil {
		for _, snippet := range s.knowledge.Query(goal, topic) {
			cards = append(cards, llm.KnowledgeCard{Title: snippet.Title, Content: snippet.Content})
		}
	}

	if s.coordination == CoordinationHierarchical {
		return s.runHierarchical(ctx, goal, members, sections, cards)
	}
	return s.runConsensus(ctx, goal, members, sections, cards)
}

// runHierarchical 让专家依次作答, 后面的成员能看到前面成员的结论,
// 最后由负责人给出汇总。
func (s *Web3Society) runHierarchical(ctx context.Context, goal string, members []Member, sections []llm.Section, cards []llm.KnowledgeCard) ([]MemberReport, string) {
	reports := make([]MemberReport, 0, len(members))
	working := make([]llm.Section, len(sections))
	copy(working, sections)

	summary := ""
	for _, member := range members {
		response, err := s.llmClient.Generate(ctx, llm.Request{
			Goal:      goal,
			Persona:   member.Persona,
			Sections:  working,
			Knowledge: cards,
		})
		report := MemberReport{Role: member.Role}
		if err != nil {
			report.Error = err.Error()
			s.log.Warn("成员分析失败", "role", member.Role, "error", err)
		} else {
			report.Thought = response.Thought
			report.Reply = response.Reply
			working = append(working, llm.Section{
				Heading: fmt.Sprintf("%s 的结论", member.Role),
				Body:    response.Reply,
			})
			summary = response.Reply
		}
		reports = append(reports, report)
	}
	return reports, summary
}

// runConsensus 让所有成员并发、独立作答, 再把各自结论交给负责人融合。
func (s *Web3Society) runConsensus(ctx context.Context, goal string, members []Member, sections []llm.Section, cards []llm.KnowledgeCard) ([]MemberReport, string) {
	reports := make([]MemberReport, len(members))
	group, groupCtx := errgroup.WithContext(ctx)
	leadIndex := -1
	for i, member := range members {
		if member.Lead {
			leadIndex = i
			continue
		}
		group.Go(func() error {
			response, err := s.llmClient.Generate(groupCtx, llm.Request{
				Goal:      goal,
				Persona:   member.Persona,
				Sections:  sections,
				Knowledge: cards,
			})
			reports[i] = MemberReport{Role: member.Role}
			if err != nil {
				reports[i].Error = err.Error()
				s.log.Warn("成员分析失败", "role", member.Role, "error", err)
				return nil
			}
			reports[i].Thought = response.Thought
			reports[i].Reply = response.Reply
			return nil
		})
	}
	_ = group.Wait()

	// 没有负责人时直接拼接各成员结论。
	if leadIndex < 0 {
		var parts []string
		for _, report := range reports {
			if report.Reply != "" {
				parts = append(parts, fmt.Sprintf("[%s] %s", report.Role, report.Reply))
			}
		}
		return reports, strings.Join(parts, "\n")
	}

	merged := make([]llm.Section, len(sections))
	copy(merged, sections)
	for i, report := range reports {
		if i == leadIndex || report.Reply == "" {
			continue
		}
		merged = append(merged, llm.Section{
			Heading: fmt.Sprintf("%s 的结论", report.Role),
			Body:    report.Reply,
		})
	}

	lead := members[leadIndex]
	response, err := s.llmClient.Generate(ctx, llm.Request{
		Goal:      goal,
		Persona:   lead.Persona,
		Sections:  merged,
		Knowledge: cards,
	})
	reports[leadIndex] = MemberReport{Role: lead.Role}
	summary := ""
	if err != nil {
		reports[leadIndex].Error = err.Error()
		s.log.Warn("负责人汇总失败", "role", lead.Role, "error", err)
	} else {
		reports[leadIndex].Thought = response.Thought
		reports[leadIndex].Reply = response.Reply
		summary = response.Reply
	}
	return reports, summary
}

// result 把协作输出整理成统一的结果形态。
func (s *Web3Society) result(goal string, reports []MemberReport, summary string, extra map[string]any) map[string]any {
	members := make([]map[string]any, 0, len(reports))
	for _, report := range reports {
		entry := map[string]any{"role": report.Role, "reply": report.Reply}
		if report.Error != "" {
			entry["error"] = report.Error
		}
		members = append(members, entry)
	}
	out := map[string]any{
		"status":       tools.StatusOK,
		"goal":         goal,
		"coordination": s.coordination,
		"members":      members,
		"summary":      summary,
	}
	for key, value := range extra {
		out[key] = value
	}
	return out
}

// failf 生成失败结果。
func (s *Web3Society) failf(format string, args ...any) map[string]any {
	return map[string]any{
		"status": tools.StatusFailed,
		"error":  fmt.Sprintf(format, args...),
	}
}

// requireAgent 保证需要链上数据的操作配置了智能体。
func (s *Web3Society) requireAgent() map[string]any {
	if s.agent == nil {
		return s.failf("该操作需要链上数据, 但社会未配置智能体")
	}
	return nil
}

// AnalyzeWallet 汇集钱包余额与代币持仓, 交给专家组分析。
func (s *Web3Society) AnalyzeWallet(ctx context.Context, address string, tokenAddresses []string) map[string]any {
	if fail := s.requireAgent(); fail != nil {
		return fail
	}
	analysis := s.agent.AnalyzeWallet(ctx, address, tokenAddresses)
	if analysis["status"] != tools.StatusOK {
		return analysis
	}

	sections := []llm.Section{{Heading: "地址", Body: address}}
	if networks, ok := analysis["networks"].(map[string]any); ok {
		for key, raw := range networks {
			result, ok := raw.(map[string]any)
			if !ok || result["status"] != tools.StatusOK {
				continue
			}
			body := ""
			if eth, ok := result["balance_eth"].(string); ok {
				body = eth + " ETH"
			} else if sol, ok := result["balance_sol"].(string); ok {
				body = sol + " SOL"
			}
			sections = append(sections, llm.Section{Heading: "余额 " + key, Body: body})
		}
	}
	if tokenResults, ok := analysis["tokens"].([]map[string]any); ok {
		for _, result := range tokenResults {
			if result["status"] != tools.StatusOK {
				continue
			}
			sections = append(sections, llm.Section{
				Heading: fmt.Sprintf("代币 %v", result["symbol"]),
				Body:    fmt.Sprintf("%v", result["balance"]),
			})
		}
	}

	goal := fmt.Sprintf("分析钱包 %s 的资产结构与链上行为", address)
	reports, summary := s.coordinate(ctx, "wallet", goal, sections)
	return s.result(goal, reports, summary, map[string]any{"address": address})
}

// AssessSmartContract 对合约接口做风险评估。提供 ABI 时会尝试读取
// 名称等只读方法补充事实。
func (s *Web3Society) AssessSmartContract(ctx context.Context, address, abiJSON string) map[string]any {
	if fail := s.requireAgent(); fail != nil {
		return fail
	}
	sections := []llm.Section{{Heading: "合约地址", Body: address}}
	if abiJSON != "" {
		sections = append(sections, llm.Section{Heading: "ABI", Body: abiJSON})
		if read := s.agent.CallContract(ctx, address, abiJSON, "name", nil); read["status"] == tools.StatusOK {
			sections = append(sections, llm.Section{Heading: "合约名称", Body: fmt.Sprintf("%v", read["result"])})
		}
	}

	goal := fmt.Sprintf("评估合约 %s 的接口设计与安全风险", address)
	reports, summary := s.coordinate(ctx, "contract", goal, sections)
	return s.result(goal, reports, summary, map[string]any{"contract_address": address})
}

// AnalyzeDeFiProtocol 取交易对储备与报价后交给专家组分析。
func (s *Web3Society) AnalyzeDeFiProtocol(ctx context.Context, tokenA, tokenB, sampleAmount string) map[string]any {
	if fail := s.requireAgent(); fail != nil {
		return fail
	}
	var sections []llm.Section
	if sampleAmount == "" {
		sampleAmount = "1"
	}
	if quote := s.agent.GetSwapQuote(ctx, tokenA, tokenB, sampleAmount); quote["status"] == tools.StatusOK {
		sections = append(sections, llm.Section{
			Heading: "兑换报价",
			Body:    fmt.Sprintf("输入 %v 得到 %v, 最低 %v", quote["amount_in"], quote["amount_out"], quote["amount_out_min"]),
		})
	} else {
		sections = append(sections, llm.Section{
			Heading: "兑换报价",
			Body:    fmt.Sprintf("获取失败: %v", quote["error"]),
		})
	}

	goal := fmt.Sprintf("分析 %s/%s 交易对的流动性与定价", tokenA, tokenB)
	reports, summary := s.coordinate(ctx, "defi", goal, sections)
	return s.result(goal, reports, summary, map[string]any{"token_in": tokenA, "token_out": tokenB})
}

// MonitorNFTCollection 拉取合集信息后交给专家组分析。
func (s *Web3Society) MonitorNFTCollection(ctx context.Context, contract string) map[string]any {
	if fail := s.requireAgent(); fail != nil {
		return fail
	}
	var sections []llm.Section
	result := s.agent.NFTCollectionInfo(ctx, contract)
	if result["status"] == tools.StatusOK {
		sections = append(sections, llm.Section{
			Heading: "合集信息",
			Body:    fmt.Sprintf("名称 %v, 符号 %v", result["name"], result["symbol"]),
		})
	} else {
		sections = append(sections, llm.Section{
			Heading: "合集信息",
			Body:    fmt.Sprintf("获取失败: %v", result["error"]),
		})
	}

	goal := fmt.Sprintf("分析 NFT 合集 %s 的基本面", contract)
	reports, summary := s.coordinate(ctx, "nft", goal, sections)
	return s.result(goal, reports, summary, map[string]any{"contract_address": contract})
}

// DraftSmartContract 根据需求起草合约设计说明, 不触链。
func (s *Web3Society) DraftSmartContract(ctx context.Context, requirements string) map[string]any {
	if strings.TrimSpace(requirements) == "" {
		return s.failf("缺少必填参数: requirements")
	}
	sections := []llm.Section{{Heading: "需求", Body: requirements}}
	goal := "根据需求起草智能合约的接口与安全设计"
	reports, summary := s.coordinate(ctx, "contract", goal, sections)
	return s.result(goal, reports, summary, nil)
}

// CreateDeFiStrategy 根据目标与风险偏好生成 DeFi 策略建议, 不触链。
func (s *Web3Society) CreateDeFiStrategy(ctx context.Context, objective, riskProfile string) map[string]any {
	if strings.TrimSpace(objective) == "" {
		return s.failf("缺少必填参数: objective")
	}
	if riskProfile == "" {
		riskProfile = "moderate"
	}
	sections := []llm.Section{
		{Heading: "目标", Body: objective},
		{Heading: "风险偏好", Body: riskProfile},
	}
	goal := "制定符合目标与风险偏好的 DeFi 策略"
	reports, summary := s.coordinate(ctx, "defi", goal, sections)
	return s.result(goal, reports, summary, map[string]any{"risk_profile": riskProfile})
}

// AnalyzeTokenEconomics 取代币元数据后分析其经济模型。
func (s *Web3Society) AnalyzeTokenEconomics(ctx context.Context, tokenAddress string) map[string]any {
	if fail := s.requireAgent(); fail != nil {
		return fail
	}
	var sections []llm.Section
	info := s.agent.TokenInfo(ctx, tokenAddress, false)
	if info["status"] == tools.StatusOK {
		sections = append(sections, llm.Section{
			Heading: "代币信息",
			Body: fmt.Sprintf("名称 %v, 符号 %v, 精度 %v, 总供给 %v",
				info["name"], info["symbol"], info["decimals"], info["total_supply"]),
		})
	} else {
		sections = append(sections, llm.Section{
			Heading: "代币信息",
			Body:    fmt.Sprintf("获取失败: %v", info["error"]),
		})
	}

	goal := fmt.Sprintf("分析代币 %s 的经济模型", tokenAddress)
	reports, summary := s.coordinate(ctx, "token", goal, sections)
	return s.result(goal, reports, summary, map[string]any{"token_address": tokenAddress})
}
