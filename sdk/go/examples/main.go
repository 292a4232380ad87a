// 演示如何通过 SDK 提交一次钱包分析并等待结果。
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"Web3Agent-Chain/sdk/go/web3agent"
)

func main() {
	baseURL := os.Getenv("WEB3AGENT_URL")
	if baseURL == "" {
		baseURL = "http://127.0.0.1:8080"
	}

	client, err := web3agent.NewClient(baseURL, os.Getenv("WEB3AGENT_API_KEY"), nil)
	if err != nil {
		log.Fatalf("创建客户端失败: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	created, err := client.SubmitAnalysis(ctx, web3agent.AnalysisSubmission{
		Operation: "analyze_wallet",
		Target:    "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		Params: map[string]any{
			"network": "ethereum",
		},
	})
	if err != nil {
		log.Fatalf("提交分析失败: %v", err)
	}
	fmt.Printf("已提交分析: %s (%s)\n", created.ID, created.Status)

	final, err := client.WaitForAnalysis(ctx, created.ID, 2*time.Second)
	if err != nil {
		log.Fatalf("等待分析完成失败: %v", err)
	}
	if final.Result != nil {
		fmt.Printf("分析结论: %s\n", final.Result.Summary)
		for _, member := range final.Result.Members {
			fmt.Printf("  [%s] %s\n", member.Role, member.Reply)
		}
	} else {
		fmt.Printf("分析结束, 状态 %s: %s\n", final.Status, final.LastError)
	}
}
