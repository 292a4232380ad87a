package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config 描述了 Web3 智能体服务在启动阶段需要加载的核心配置。
type Config struct {
	Server    ServerConfig    `json:"server"`
	Web3      Web3Config      `json:"web3"`
	Storage   StorageConfig   `json:"storage"`
	TaskQueue TaskQueueConfig `json:"task_queue"`
	LLM       LLMConfig       `json:"llm"`
	Knowledge KnowledgeConfig `json:"knowledge"`
	Logging   LoggingConfig   `json:"logging"`
	Auth      AuthConfig      `json:"auth"`
	Runtime   RuntimeConfig   `json:"runtime"`
}

// KnowledgeConfig 指定社会讨论时引用的静态知识库。
type KnowledgeConfig struct {
	// Source 为空时使用内置的常识条目。
	Source     string `json:"source"`
	MaxResults int    `json:"max_results"`
}

// ServerConfig 控制 API 服务的监听地址等参数。
type ServerConfig struct {
	Address string `json:"address"`
}

// Web3Config 汇总链上访问所需的端点与行为开关。
type Web3Config struct {
	// Providers 以 network -> network_type -> RPC 地址的形式组织。
	Providers map[string]map[string]string `json:"providers"`
	// RateLimit 限制每个以太坊客户端的 RPC QPS, <=0 表示不限流。
	RateLimit            float64    `json:"rate_limit"`
	IPFS                 IPFSConfig `json:"ipfs"`
	MemoryPath           string     `json:"memory_path"`
	CoordinationStrategy string     `json:"coordination_strategy"`
	ChainConfig          string     `json:"chain_config"`
}

// IPFSConfig 描述 IPFS 网关的访问方式。
type IPFSConfig struct {
	PrimaryGateway string   `json:"primary_gateway"`
	BackupGateways []string `json:"backup_gateways"`
	TimeoutSeconds int      `json:"timeout_seconds"`
	APIAddress     string   `json:"api_address"`
}

// Timeout 返回网关请求超时时间。
func (c IPFSConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// StorageConfig 统一描述分析任务持久化后端的连接信息。
type StorageConfig struct {
	AnalysisStore AnalysisStoreConfig `json:"analysis_store"`
}

// AnalysisStoreConfig 支持内存实现与 MySQL 实现。
type AnalysisStoreConfig struct {
	Driver                 string `json:"driver"`
	DSN                    string `json:"dsn"`
	Retries                int    `json:"retries"`
	MaxOpenConns           int    `json:"max_open_conns"`
	MaxIdleConns           int    `json:"max_idle_conns"`
	ConnMaxLifetimeSeconds int    `json:"conn_max_lifetime_seconds"`
	ConnMaxIdleTimeSeconds int    `json:"conn_max_idle_time_seconds"`
}

// TaskQueueConfig 描述分析任务队列的驱动与参数。
type TaskQueueConfig struct {
	Driver   string         `json:"driver"`
	Worker   int            `json:"worker"`
	Redis    RedisConfig    `json:"redis"`
	RabbitMQ RabbitMQConfig `json:"rabbitmq"`
}

// RedisConfig 描述 Redis 队列的连接信息。
type RedisConfig struct {
	Address   string `json:"address"`
	Password  string `json:"password"`
	DB        int    `json:"db"`
	Queue     string `json:"queue"`
	BlockWait int    `json:"block_wait_seconds"`
}

// RabbitMQConfig 描述 RabbitMQ 队列的连接信息。
type RabbitMQConfig struct {
	URL        string `json:"url"`
	Queue      string `json:"queue"`
	Prefetch   int    `json:"prefetch"`
	Durable    bool   `json:"durable"`
	AutoDelete bool   `json:"auto_delete"`
}

// LLMConfig 用于配置大模型推理的调用方式。
type LLMConfig struct {
	Provider string       `json:"provider"`
	OpenAI   OpenAIConfig `json:"openai"`
}

// OpenAIConfig 描述调用 OpenAI 兼容接口所需的信息。
type OpenAIConfig struct {
	APIKey         string `json:"api_key"`
	APIKeyEnv      string `json:"api_key_env"`
	BaseURL        string `json:"base_url"`
	Model          string `json:"model"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// Timeout 返回大模型调用超时时间。
func (c OpenAIConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// LoggingConfig 描述日志输出方式。
type LoggingConfig struct {
	Level      string   `json:"level"`
	Format     string   `json:"format"`
	Outputs    []string `json:"outputs"`
	OpLogPath  string   `json:"op_log_path"`
	MaxSizeMB  int      `json:"op_log_max_size_mb"`
	MaxBackups int      `json:"op_log_max_backups"`
	MaxAgeDays int      `json:"op_log_max_age_days"`
}

// AuthConfig 描述 API 鉴权所需的密钥列表。
type AuthConfig struct {
	Enabled bool           `json:"enabled"`
	APIKeys []APIKeyConfig `json:"api_keys"`
}

// APIKeyConfig 表示一个允许访问 API 的密钥。
type APIKeyConfig struct {
	Key       string `json:"key"`
	Workspace string `json:"workspace"`
}

// RuntimeConfig 用于放置运行时的通用参数。
type RuntimeConfig struct {
	DataDir string `json:"data_dir"`
}

// 环境变量覆盖项，便于在容器环境下直接指定端点。
const (
	EnvEthereumProvider = "ETHEREUM_PROVIDER"
	EnvSolanaProvider   = "SOLANA_PROVIDER"
	EnvIPFSGateway      = "IPFS_GATEWAY"
)

// Load 负责解析指定路径的 JSON 配置文件。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("配置文件路径为空")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开配置文件失败: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	cfg.ApplyDefaults(filepath.Dir(path))
	cfg.applyEnvOverrides()

	return &cfg, nil
}

// Default 返回一份填好默认值的配置，供未提供配置文件的场景使用。
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults(".")
	cfg.applyEnvOverrides()
	return cfg
}

// DefaultProviders 返回内置的公共 RPC 端点。公共端点有限流，生产环境应自行覆盖。
func DefaultProviders() map[string]map[string]string {
	return map[string]map[string]string{
		"ethereum": {
			"mainnet": "https://eth-mainnet.public.blastapi.io",
			"sepolia": "https://ethereum-sepolia.publicnode.com",
		},
		"solana": {
			"mainnet": "https://api.mainnet-beta.solana.com",
			"devnet":  "https://api.devnet.solana.com",
		},
	}
}

// ApplyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) ApplyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}

	if len(c.Web3.Providers) == 0 {
		c.Web3.Providers = DefaultProviders()
	} else {
		defaults := DefaultProviders()
		for network, types := range defaults {
			if _, ok := c.Web3.Providers[network]; !ok {
				c.Web3.Providers[network] = types
			}
		}
	}

	if c.Web3.IPFS.PrimaryGateway == "" {
		c.Web3.IPFS.PrimaryGateway = "https://ipfs.io/ipfs/"
	}
	if len(c.Web3.IPFS.BackupGateways) == 0 {
		c.Web3.IPFS.BackupGateways = []string{
			"https://cloudflare-ipfs.com/ipfs/",
			"https://gateway.pinata.cloud/ipfs/",
			"https://dweb.link/ipfs/",
		}
	}
	if c.Web3.MemoryPath == "" {
		c.Web3.MemoryPath = filepath.Join(baseDir, "web3_memory")
	} else if !filepath.IsAbs(c.Web3.MemoryPath) {
		c.Web3.MemoryPath = filepath.Join(baseDir, c.Web3.MemoryPath)
	}
	if c.Web3.CoordinationStrategy == "" {
		c.Web3.CoordinationStrategy = "hierarchical"
	}

	if c.Storage.AnalysisStore.Driver == "" {
		c.Storage.AnalysisStore.Driver = "memory"
	}
	if c.Storage.AnalysisStore.Retries <= 0 {
		c.Storage.AnalysisStore.Retries = 3
	}

	if c.TaskQueue.Driver == "" {
		c.TaskQueue.Driver = "memory"
	}
	if c.TaskQueue.Worker <= 0 {
		c.TaskQueue.Worker = 2
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = "none"
	}
	if c.LLM.OpenAI.APIKeyEnv == "" {
		c.LLM.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
	}
	if c.LLM.OpenAI.Model == "" {
		c.LLM.OpenAI.Model = "gpt-4o-mini"
	}

	if c.Knowledge.MaxResults <= 0 {
		c.Knowledge.MaxResults = 3
	}
	if c.Knowledge.Source != "" && !filepath.IsAbs(c.Knowledge.Source) {
		c.Knowledge.Source = filepath.Join(baseDir, c.Knowledge.Source)
	}

	if c.Runtime.DataDir == "" {
		c.Runtime.DataDir = filepath.Join(baseDir, "data")
	} else if !filepath.IsAbs(c.Runtime.DataDir) {
		c.Runtime.DataDir = filepath.Join(baseDir, c.Runtime.DataDir)
	}
}

// applyEnvOverrides 允许通过环境变量覆盖主网端点与 IPFS 网关。
func (c *Config) applyEnvOverrides() {
	if url := strings.TrimSpace(os.Getenv(EnvEthereumProvider)); url != "" {
		if c.Web3.Providers["ethereum"] == nil {
			c.Web3.Providers["ethereum"] = map[string]string{}
		}
		c.Web3.Providers["ethereum"]["mainnet"] = url
	}
	if url := strings.TrimSpace(os.Getenv(EnvSolanaProvider)); url != "" {
		if c.Web3.Providers["solana"] == nil {
			c.Web3.Providers["solana"] = map[string]string{}
		}
		c.Web3.Providers["solana"]["mainnet"] = url
	}
	if gw := strings.TrimSpace(os.Getenv(EnvIPFSGateway)); gw != "" {
		c.Web3.IPFS.PrimaryGateway = gw
	}
}
