package llm

import (
	"context"
	"fmt"
	"strings"
)

// Request 描述发送给大模型的分析上下文。
type Request struct {
	// Goal 是本次分析要回答的问题。
	Goal string
	// Persona 描述回答者扮演的专家角色, 为空时使用默认角色。
	Persona string
	// Sections 是按顺序排列的链上数据片段, 构成提示词的事实部分。
	Sections []Section
	// Knowledge 是从知识库检索到的背景资料。
	Knowledge []KnowledgeCard
}

// Section 是提示词中的一段结构化事实。
type Section struct {
	Heading string
	Body    string
}

// Response 是大模型推理得到的结构化输出。
type Response struct {
	Thought string
	Reply   string
}

// KnowledgeCard 表示提供给大模型的知识切片。
type KnowledgeCard struct {
	Title   string
	Content string
}

// Client 定义了调用大模型的统一接口。
type Client interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// Disabled is the no-LLM fallback: it renders the request's factual sections
// into a deterministic plain-text digest so the rest of the system keeps
// working without an API key.
type Disabled struct{}

// NewDisabled returns the no-LLM client.
func NewDisabled() *Disabled { return &Disabled{} }

// Generate implements Client without calling any model.
func (d *Disabled) Generate(_ context.Context, req Request) (*Response, error) {
	var builder strings.Builder
	if goal := strings.TrimSpace(req.Goal); goal != "" {
		builder.WriteString(goal)
		builder.WriteString("\n")
	}
	for _, section := range req.Sections {
		builder.WriteString(fmt.Sprintf("%s: %s\n", section.Heading, strings.TrimSpace(section.Body)))
	}
	reply := strings.TrimSpace(builder.String())
	if reply == "" {
		reply = "没有可汇总的数据"
	}
	return &Response{Reply: reply}, nil
}

var _ Client = (*Disabled)(nil)
