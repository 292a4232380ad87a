// web3 是面向运维与调试的命令行入口, 直接查询链上数据而不经过守护进程。
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"Web3Agent-Chain/internal/agent"
	"Web3Agent-Chain/internal/config"
	"Web3Agent-Chain/internal/ipfs"
	"Web3Agent-Chain/internal/tools"
	"Web3Agent-Chain/internal/web3/provider"
)

const usage = `用法: web3 [flags] <command> [args]

Commands:
  balance <address>        查询地址的原生代币余额
  token-info <token>       查询 ERC-20 代币的名称/符号/精度
  ens <name|address>       正向或反向解析 ENS
  ipfs <cid|ipfs://...>    读取 IPFS 内容
  analyze <address>        多角色钱包分析
  interactive              进入交互模式

Flags:
  -config <path>   配置文件路径 (默认 configs/web3agent.json)
  -network <name>  目标网络 (默认 ethereum)
  -type <name>     网络类型 (默认 mainnet)
`

func main() {
	configPath := flag.String("config", "", "配置文件路径")
	network := flag.String("network", "ethereum", "目标网络")
	networkType := flag.String("type", "mainnet", "网络类型")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(context.Background(), *configPath, *network, *networkType, args); err != nil {
		fmt.Fprintf(os.Stderr, "web3: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, network, networkType string, args []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	registry, err := provider.NewRegistry(cfg.Web3)
	if err != nil {
		return err
	}
	defer registry.Close()

	toolRegistry := tools.NewDefaultRegistry(registry, ipfs.NewClient(cfg.Web3.IPFS))
	ag := agent.New(toolRegistry, registry,
		agent.WithDefaultNetwork(network, networkType),
	)

	command, rest := args[0], args[1:]
	if command == "interactive" {
		return runInteractive(ctx, ag)
	}
	result, err := dispatch(ctx, ag, command, rest)
	if err != nil {
		return err
	}
	return printResult(result)
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = os.Getenv("WEB3AGENT_CONFIG")
	}
	if path == "" {
		path = "configs/web3agent.json"
		if _, err := os.Stat(path); err != nil {
			// 没有配置文件时使用内置公共端点.
			return config.Default(), nil
		}
	}
	return config.Load(path)
}

func dispatch(ctx context.Context, ag *agent.Web3Agent, command string, args []string) (map[string]any, error) {
	switch command {
	case "balance":
		if len(args) != 1 {
			return nil, fmt.Errorf("balance 需要一个地址参数")
		}
		return ag.NativeBalance(ctx, args[0]), nil
	case "token-info":
		if len(args) != 1 {
			return nil, fmt.Errorf("token-info 需要一个代币地址参数")
		}
		return ag.TokenInfo(ctx, args[0], false), nil
	case "ens":
		if len(args) != 1 {
			return nil, fmt.Errorf("ens 需要一个名称或地址参数")
		}
		if strings.HasPrefix(args[0], "0x") {
			return ag.LookupENS(ctx, args[0]), nil
		}
		return ag.ResolveENS(ctx, args[0]), nil
	case "ipfs":
		if len(args) != 1 {
			return nil, fmt.Errorf("ipfs 需要一个 CID 或 ipfs:// 地址参数")
		}
		return ag.IPFSContent(ctx, args[0], false), nil
	case "analyze":
		if len(args) < 1 {
			return nil, fmt.Errorf("analyze 需要一个地址参数")
		}
		return ag.AnalyzeWallet(ctx, args[0], args[1:]), nil
	default:
		return nil, fmt.Errorf("未知命令: %s", command)
	}
}

// runInteractive 在一个进程内复用链连接, 逐行执行命令。
func runInteractive(ctx context.Context, ag *agent.Web3Agent) error {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("web3 交互模式, 输入 help 查看命令, exit 退出")
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "exit", "quit":
			return nil
		case "help":
			fmt.Print(usage)
			continue
		}
		result, err := dispatch(ctx, ag, fields[0], fields[1:])
		if err != nil {
			fmt.Fprintf(os.Stderr, "web3: %v\n", err)
			continue
		}
		if err := printResult(result); err != nil {
			return err
		}
	}
}

func printResult(result map[string]any) error {
	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("编码结果失败: %w", err)
	}
	fmt.Println(string(encoded))
	return nil
}
