package society

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"Web3Agent-Chain/internal/llm"
	"Web3Agent-Chain/internal/tools"
)

// scriptedLLM records every request and answers with a per-role canned reply.
type scriptedLLM struct {
	mu       sync.Mutex
	requests []llm.Request
	replies  map[string]string
	err      error
}

func (s *scriptedLLM) Generate(_ context.Context, req llm.Request) (*llm.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	for role, reply := range s.replies {
		if strings.Contains(req.Persona, role) {
			return &llm.Response{Reply: reply}, nil
		}
	}
	return &llm.Response{Reply: fmt.Sprintf("analysis of %s", req.Goal)}, nil
}

func (s *scriptedLLM) calls() []llm.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]llm.Request, len(s.requests))
	copy(out, s.requests)
	return out
}

var _ llm.Client = (*scriptedLLM)(nil)

func TestParticipantsKeepLeadLast(t *testing.T) {
	t.Parallel()

	society := NewSociety(nil, llm.NewDisabled())
	members := society.participants("defi")
	if len(members) != 2 {
		t.Fatalf("expected 2 defi members, got %d", len(members))
	}
	if members[0].Role != RoleDeFiSpecialist {
		t.Fatalf("expected specialist first, got %s", members[0].Role)
	}
	if !members[len(members)-1].Lead {
		t.Fatalf("expected lead last, got %s", members[len(members)-1].Role)
	}
}

func TestUnknownCoordinationFallsBackToConsensus(t *testing.T) {
	t.Parallel()

	society := NewSociety(nil, llm.NewDisabled(), WithCoordination("swarm"))
	if society.Coordination() != CoordinationConsensus {
		t.Fatalf("expected consensus fallback, got %s", society.Coordination())
	}
}

func TestDraftSmartContractConsensus(t *testing.T) {
	t.Parallel()

	client := &scriptedLLM{replies: map[string]string{
		"security expert": "权限设计合理",
		"web3 researcher": "综合结论: 可以上线",
	}}
	society := NewSociety(nil, client)

	result := society.DraftSmartContract(context.Background(), "一个带白名单的 ERC-20")
	if result["status"] != tools.StatusOK {
		t.Fatalf("expected ok, got %+v", result)
	}
	if result["summary"] != "综合结论: 可以上线" {
		t.Fatalf("expected lead summary, got %v", result["summary"])
	}
	members, ok := result["members"].([]map[string]any)
	if !ok || len(members) != 2 {
		t.Fatalf("expected 2 member reports, got %+v", result["members"])
	}

	// The lead must have seen the specialists' replies.
	calls := client.calls()
	lead := calls[len(calls)-1]
	found := false
	for _, section := range lead.Sections {
		if section.Body == "权限设计合理" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected lead to receive specialist conclusions")
	}
}

func TestDraftSmartContractMissingRequirements(t *testing.T) {
	t.Parallel()

	society := NewSociety(nil, llm.NewDisabled())
	result := society.DraftSmartContract(context.Background(), "  ")
	if result["status"] != tools.StatusFailed {
		t.Fatalf("expected failure, got %+v", result)
	}
}

func TestHierarchicalPassesPriorConclusions(t *testing.T) {
	t.Parallel()

	client := &scriptedLLM{replies: map[string]string{
		"DeFi specialist": "流动性充足",
		"web3 researcher": "最终结论",
	}}
	society := NewSociety(nil, client, WithCoordination(CoordinationHierarchical))

	result := society.CreateDeFiStrategy(context.Background(), "稳健收益", "")
	if result["status"] != tools.StatusOK {
		t.Fatalf("expected ok, got %+v", result)
	}
	if result["summary"] != "最终结论" {
		t.Fatalf("expected final member's reply as summary, got %v", result["summary"])
	}
	if result["risk_profile"] != "moderate" {
		t.Fatalf("expected default risk profile, got %v", result["risk_profile"])
	}

	calls := client.calls()
	if len(calls) < 2 {
		t.Fatalf("expected sequential calls, got %d", len(calls))
	}
	last := calls[len(calls)-1]
	found := false
	for _, section := range last.Sections {
		if section.Body == "流动性充足" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected later members to see earlier conclusions")
	}
}

func TestChainOperationsRequireAgent(t *testing.T) {
	t.Parallel()

	society := NewSociety(nil, llm.NewDisabled())
	for name, result := range map[string]map[string]any{
		"wallet":   society.AnalyzeWallet(context.Background(), "0x0", nil),
		"contract": society.AssessSmartContract(context.Background(), "0x0", ""),
		"defi":     society.AnalyzeDeFiProtocol(context.Background(), "ETH", "0x0", ""),
		"nft":      society.MonitorNFTCollection(context.Background(), "0x0"),
		"token":    society.AnalyzeTokenEconomics(context.Background(), "0x0"),
	} {
		if result["status"] != tools.StatusFailed {
			t.Fatalf("%s: expected failure without agent, got %+v", name, result)
		}
	}
}

func TestMemberErrorsAreReported(t *testing.T) {
	t.Parallel()

	client := &scriptedLLM{err: fmt.Errorf("模型超时")}
	society := NewSociety(nil, client)

	result := society.DraftSmartContract(context.Background(), "一个多签钱包")
	if result["status"] != tools.StatusOK {
		t.Fatalf("expected ok with per-member errors, got %+v", result)
	}
	members := result["members"].([]map[string]any)
	for _, member := range members {
		if member["error"] == nil {
			t.Fatalf("expected error on member %v", member["role"])
		}
	}
	if result["summary"] != "" {
		t.Fatalf("expected empty summary, got %v", result["summary"])
	}
}
