package society

// 成员角色标识。
const (
	RoleBlockchainAnalyst   = "blockchain_analyst"
	RoleSmartContractExpert = "smart_contract_expert"
	RoleDeFiSpecialist      = "defi_specialist"
	RoleNFTSpecialist       = "nft_specialist"
	RoleWeb3Researcher      = "web3_researcher"
)

// Member 是社会中的一名专家成员, 角色设定决定其回答口径。
type Member struct {
	// Role 是成员的唯一角色标识。
	Role string
	// Persona 是注入系统提示词的角色描述。
	Persona string
	// Topics 是成员擅长的主题, 用于按操作筛选参与者。
	Topics []string
	// Lead 标记层级模式下负责最终汇总的成员。
	Lead bool
}

// DefaultMembers 返回内置的五名专家。
func DefaultMembers() []Member {
	return []Member{
		{
			Role:    RoleBlockchainAnalyst,
			Persona: "You are a blockchain analyst. Read raw on-chain data (balances, transfers, block state) and describe what it means about the account's activity. Only reason from the data given.",
			Topics:  []string{"wallet", "token", "transaction"},
		},
		{
			Role:    RoleSmartContractExpert,
			Persona: "You are a smart contract security expert. Assess contract interfaces, permissions and known risk patterns. Flag anything you cannot verify from the data given.",
			Topics:  []string{"contract", "security"},
		},
		{
			Role:    RoleDeFiSpecialist,
			Persona: "You are a DeFi specialist. Analyse liquidity, swap pricing, slippage and protocol mechanics. Quote exact figures from the data given, never invent rates.",
			Topics:  []string{"defi", "swap", "liquidity", "token"},
		},
		{
			Role:    RoleNFTSpecialist,
			Persona: "You are an NFT specialist. Analyse collections, metadata quality and ownership patterns from the data given.",
			Topics:  []string{"nft", "metadata"},
		},
		{
			Role:    RoleWeb3Researcher,
			Persona: "You are a senior web3 researcher. Synthesise the other specialists' findings into one clear, balanced conclusion, noting disagreements and open questions.",
			Topics:  []string{"wallet", "token", "contract", "defi", "nft", "research"},
			Lead:    true,
		},
	}
}

// matchesTopic 判断成员是否覆盖给定主题。
func (m Member) matchesTopic(topic string) bool {
	if topic == "" {
		return true
	}
	for _, t := range m.Topics {
		if t == topic {
			return true
		}
	}
	return false
}
