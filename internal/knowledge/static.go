// Package knowledge provides the static lookup layer that feeds protocol
// background into agent prompts.
package knowledge

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Provider 定义知识库检索的通用接口。
type Provider interface {
	Query(goal, topic string) []Snippet
}

// Snippet 描述可供大模型引用的一段知识。
type Snippet struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Keywords []string `json:"keywords"`
	Tags     []string `json:"tags"`
}

// StaticProvider 通过内置条目或 JSON 文件提供静态知识检索能力。
type StaticProvider struct {
	items      []Snippet
	maxResults int
}

// NewStaticProvider 创建静态知识库实例。
func NewStaticProvider(items []Snippet, maxResults int) *StaticProvider {
	if maxResults <= 0 {
		maxResults = 3
	}
	return &StaticProvider{
		items:      items,
		maxResults: maxResults,
	}
}

// NewDefaultProvider returns a provider seeded with well-known protocol facts
// used when no knowledge file is configured.
func NewDefaultProvider() *StaticProvider {
	return NewStaticProvider(defaultSnippets, 3)
}

// LoadStaticProvider 从 JSON 文件加载知识条目。
func LoadStaticProvider(path string, maxResults int) (*StaticProvider, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("知识库文件路径不能为空")
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("解析知识库路径失败: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("读取知识库文件失败: %w", err)
	}
	defer file.Close()

	var entries []Snippet
	if err := json.NewDecoder(file).Decode(&entries); err != nil {
		return nil, fmt.Errorf("解析知识库文件失败: %w", err)
	}

	return NewStaticProvider(entries, maxResults), nil
}

// Query 根据分析目标和主题进行简单匹配。
func (p *StaticProvider) Query(goal, topic string) []Snippet {
	if p == nil {
		return nil
	}

	goal = strings.ToLower(strings.TrimSpace(goal))
	topic = strings.ToLower(strings.TrimSpace(topic))

	results := make([]Snippet, 0, p.maxResults)
	for _, item := range p.items {
		if matches(item, goal, topic) {
			results = append(results, item)
			if len(results) >= p.maxResults {
				break
			}
		}
	}
	return results
}

func matches(snippet Snippet, goal, topic string) bool {
	if len(snippet.Keywords) == 0 {
		return true
	}
	for _, keyword := range snippet.Keywords {
		normalized := strings.ToLower(strings.TrimSpace(keyword))
		if normalized == "" {
			continue
		}
		if strings.Contains(goal, normalized) || strings.Contains(topic, normalized) {
			return true
		}
	}
	for _, tag := range snippet.Tags {
		normalized := strings.ToLower(strings.TrimSpace(tag))
		if normalized == "" {
			continue
		}
		if strings.Contains(goal, normalized) || strings.Contains(topic, normalized) {
			return true
		}
	}
	return false
}

var defaultSnippets = []Snippet{
	{
		Title:    "Uniswap V2",
		Content:  "Uniswap V2 路由合约地址 0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D, 恒定乘积做市, 原生 ETH 通过 WETH 0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2 参与交易。",
		Keywords: []string{"uniswap", "swap", "dex", "defi"},
		Tags:     []string{"defi"},
	},
	{
		Title:    "ENS",
		Content:  "ENS 注册表部署在以太坊主网 0x00000000000C2E074eC69A0dFb2997BA6C7d2e1e, 名称经 namehash 归一化后通过 resolver 解析, 反向解析需要正向校验。",
		Keywords: []string{"ens", "name", "resolve"},
		Tags:     []string{"ens"},
	},
	{
		Title:    "ERC-20 授权",
		Content:  "approve 设置 spender 可支配额度, 最大值 2^256-1 视为无限授权; 转账前 DEX 路由需要足额 allowance。",
		Keywords: []string{"approve", "allowance", "token", "erc20"},
		Tags:     []string{"token"},
	},
	{
		Title:    "NFT 元数据",
		Content:  "ERC-721 元数据由 tokenURI 指向, ERC-1155 使用带 {id} 模板的 uri; ipfs:// 前缀的地址需经网关读取。",
		Keywords: []string{"nft", "metadata", "erc721", "erc1155", "ipfs"},
		Tags:     []string{"nft"},
	},
	{
		Title:    "Solana 账户",
		Content:  "Solana 地址是 32 字节 ed25519 公钥的 base58 编码, 余额以 lamport 计, 1 SOL = 10^9 lamports, 简单转账手续费约 5000 lamports。",
		Keywords: []string{"solana", "lamport", "sol"},
		Tags:     []string{"solana"},
	},
}

var _ Provider = (*StaticProvider)(nil)
