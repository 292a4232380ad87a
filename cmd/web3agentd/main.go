package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"Web3Agent-Chain/internal/agent"
	"Web3Agent-Chain/internal/api"
	"Web3Agent-Chain/internal/auth"
	"Web3Agent-Chain/internal/config"
	"Web3Agent-Chain/internal/ipfs"
	"Web3Agent-Chain/internal/knowledge"
	"Web3Agent-Chain/internal/llm"
	"Web3Agent-Chain/internal/llm/openai"
	"Web3Agent-Chain/internal/observability/alerting"
	"Web3Agent-Chain/internal/society"
	storagemysql "Web3Agent-Chain/internal/storage/mysql"
	"Web3Agent-Chain/internal/task"
	"Web3Agent-Chain/internal/tools"
	"Web3Agent-Chain/internal/web3/provider"
	"Web3Agent-Chain/pkg/logger"
)

// main 是 Web3 智能体守护进程的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("web3agentd 运行失败: %v", err)
	}
}

func run(ctx context.Context) error {
	configPath := os.Getenv("WEB3AGENT_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("configs", "web3agent.json")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Outputs: cfg.Logging.Outputs,
		OpLog: logger.OpLogConfig{
			Enabled:    cfg.Logging.OpLogPath != "",
			Path:       cfg.Logging.OpLogPath,
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
		},
	}); err != nil {
		return err
	}

	llmClient, err := createLLMClient(cfg)
	if err != nil {
		return err
	}

	dataDir := cfg.Runtime.DataDir
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return err
	}

	// 任务存储: 内存实现用于单机, MySQL 实现用于生产。
	var taskStore task.Store
	var authStore auth.Store
	switch cfg.Storage.AnalysisStore.Driver {
	case "", "memory":
		taskStore = task.NewMemoryStore()
	case "mysql":
		storeCfg := storagemysql.Config{
			DSN:             cfg.Storage.AnalysisStore.DSN,
			MaxOpenConns:    cfg.Storage.AnalysisStore.MaxOpenConns,
			MaxIdleConns:    cfg.Storage.AnalysisStore.MaxIdleConns,
			ConnMaxLifetime: time.Duration(cfg.Storage.AnalysisStore.ConnMaxLifetimeSeconds) * time.Second,
			ConnMaxIdleTime: time.Duration(cfg.Storage.AnalysisStore.ConnMaxIdleTimeSeconds) * time.Second,
		}
		store, err := task.NewMySQLStore(ctx, storeCfg)
		if err != nil {
			return err
		}
		taskStore = store

		if cfg.Auth.Enabled {
			keyStore, err := storagemysql.NewSQLKeyStore(ctx, storeCfg)
			if err != nil {
				return err
			}
			if err := keyStore.ApplySeed(ctx, cfg.Auth.APIKeys); err != nil {
				keyStore.Close()
				return err
			}
			defer keyStore.Close()
			authStore = keyStore
		}
	default:
		return fmt.Errorf("未知的任务存储驱动: %s", cfg.Storage.AnalysisStore.Driver)
	}
	defer func() {
		if taskStore != nil {
			_ = taskStore.Close()
		}
	}()

	var taskQueue task.Queue
	switch cfg.TaskQueue.Driver {
	case "", "memory":
		taskQueue = task.NewMemoryQueue(1024)
	case "redis":
		queue, err := task.NewRedisQueue(task.RedisQueueConfig{
			Address:   cfg.TaskQueue.Redis.Address,
			Password:  cfg.TaskQueue.Redis.Password,
			DB:        cfg.TaskQueue.Redis.DB,
			Queue:     cfg.TaskQueue.Redis.Queue,
			BlockWait: time.Duration(cfg.TaskQueue.Redis.BlockWait) * time.Second,
		})
		if err != nil {
			return err
		}
		taskQueue = queue
	case "rabbitmq":
		queue, err := task.NewRabbitMQQueue(task.RabbitMQConfig{
			URL:        cfg.TaskQueue.RabbitMQ.URL,
			Queue:      cfg.TaskQueue.RabbitMQ.Queue,
			Prefetch:   cfg.TaskQueue.RabbitMQ.Prefetch,
			Durable:    cfg.TaskQueue.RabbitMQ.Durable,
			AutoDelete: cfg.TaskQueue.RabbitMQ.AutoDelete,
		})
		if err != nil {
			return err
		}
		taskQueue = queue
	default:
		return fmt.Errorf("未知的队列驱动: %s", cfg.TaskQueue.Driver)
	}
	defer func() {
		if taskQueue != nil {
			if err := taskQueue.Close(); err != nil {
				logger.L().Warn("关闭任务队列失败", slog.Any("error", err))
			}
		}
	}()

	chainRegistry, err := provider.NewRegistry(cfg.Web3)
	if err != nil {
		return err
	}
	defer chainRegistry.Close()

	ipfsClient := ipfs.NewClient(cfg.Web3.IPFS)
	registry := tools.NewDefaultRegistry(chainRegistry, ipfsClient)

	var knowledgeProvider knowledge.Provider
	if cfg.Knowledge.Source != "" {
		loaded, err := knowledge.LoadStaticProvider(cfg.Knowledge.Source, cfg.Knowledge.MaxResults)
		if err != nil {
			return err
		}
		knowledgeProvider = loaded
	} else {
		knowledgeProvider = knowledge.NewDefaultProvider()
	}

	memoryPath := cfg.Web3.MemoryPath
	if memoryPath == "" {
		memoryPath = filepath.Join(dataDir, "agent_memory.json")
	}
	memory, err := agent.OpenMemory(memoryPath, 0)
	if err != nil {
		return err
	}

	ag := agent.New(registry, chainRegistry,
		agent.WithLLM(llmClient),
		agent.WithMemory(memory),
		agent.WithKnowledgeProvider(knowledgeProvider),
	)
	if err := ag.Validate(); err != nil {
		return err
	}

	soc := society.NewSociety(ag, llmClient,
		society.WithCoordination(cfg.Web3.CoordinationStrategy),
		society.WithSocietyKnowledge(knowledgeProvider),
	)

	taskService := task.NewService(taskStore, taskQueue, cfg.Storage.AnalysisStore.Retries)
	processor := task.NewProcessor(task.NewSocietyExecutor(soc), taskStore, taskQueue, taskQueue,
		task.WithWorkerCount(cfg.TaskQueue.Worker),
		task.WithProcessorLogger(logger.Named("processor")),
		task.WithAlertDispatcher(alerting.NewFanout(&alerting.LogNotifier{})),
	)

	processorCtx, processorCancel := context.WithCancel(ctx)
	defer processorCancel()

	go func() {
		if err := processor.Start(processorCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.L().Error("任务处理器异常退出", slog.Any("error", err))
		}
	}()

	authService := auth.NewService(cfg.Auth, authStore)
	server := api.NewServer(cfg.Server.Address, registry, taskService, authService)

	logger.L().Info("web3agentd 启动",
		slog.String("address", cfg.Server.Address),
		slog.String("coordination", cfg.Web3.CoordinationStrategy),
		slog.String("store", cfg.Storage.AnalysisStore.Driver),
		slog.String("queue", cfg.TaskQueue.Driver),
	)

	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// createLLMClient 根据配置选择推理后端, 未配置时退化为本地汇总。
func createLLMClient(cfg *config.Config) (llm.Client, error) {
	switch cfg.LLM.Provider {
	case "", "none":
		return llm.NewDisabled(), nil
	case "openai":
		apiKey := strings.TrimSpace(cfg.LLM.OpenAI.APIKey)
		if apiKey == "" && cfg.LLM.OpenAI.APIKeyEnv != "" {
			apiKey = strings.TrimSpace(os.Getenv(cfg.LLM.OpenAI.APIKeyEnv))
		}
		if apiKey == "" {
			return nil, errors.New("OpenAI provider 需要配置 api_key 或 api_key_env")
		}
		return openai.NewClient(openai.Config{
			APIKey:  apiKey,
			BaseURL: cfg.LLM.OpenAI.BaseURL,
			Model:   cfg.LLM.OpenAI.Model,
			Timeout: cfg.LLM.OpenAI.Timeout(),
		})
	default:
		return nil, fmt.Errorf("未知的大模型 provider: %s", cfg.LLM.Provider)
	}
}
