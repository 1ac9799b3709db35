package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino-ext/components/tool/duckduckgo/v2"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"

	"github.com/tessbot/slack-chat-bridge/internal/biz/repo"
	"github.com/tessbot/slack-chat-bridge/internal/conf"
)

// einoGenerator answers with a ReAct agent that may search the web or
// calculate before replying.
type einoGenerator struct {
	agent   *react.Agent
	persona *Persona
}

// NewEinoGenerator creates a tool-using reply generator
func NewEinoGenerator(ctx context.Context, cfg conf.LLMConfig, persona *Persona) (repo.ReplyGenerator, error) {
	chatModel, err := newChatModel(ctx, cfg)
	if err != nil {
		return nil, err
	}

	tools, err := replyTools(ctx)
	if err != nil {
		return nil, err
	}

	agent, err := react.NewAgent(ctx, &react.AgentConfig{
		ToolCallingModel: chatModel,
		ToolsConfig: compose.ToolsNodeConfig{
			Tools: tools,
		},
		MaxStep: 8,
	})
	if err != nil {
		return nil, fmt.Errorf("init react agent: %w", err)
	}

	return &einoGenerator{agent: agent, persona: persona}, nil
}

func newChatModel(ctx context.Context, cfg conf.LLMConfig) (model.ToolCallingChatModel, error) {
	var chatModel model.ToolCallingChatModel
	var err error

	switch cfg.Provider {
	case "openai":
		maxTokens := cfg.MaxTokens
		chatModel, err = openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			APIKey:      cfg.APIKey,
			MaxTokens:   &maxTokens,
			Temperature: &cfg.Temperature,
		})
	case "claude":
		var baseURLPtr *string
		if cfg.BaseURL != "" {
			baseURLPtr = &cfg.BaseURL
		}
		chatModel, err = claude.NewChatModel(ctx, &claude.Config{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			BaseURL:     baseURLPtr,
			MaxTokens:   cfg.MaxTokens,
			Temperature: &cfg.Temperature,
		})
	default:
		return nil, fmt.Errorf("invalid provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s chat model: %w", cfg.Provider, err)
	}
	return chatModel, nil
}

func replyTools(ctx context.Context) ([]tool.BaseTool, error) {
	search, err := duckduckgo.NewTextSearchTool(ctx, &duckduckgo.Config{
		ToolName:   "search",
		ToolDesc:   "Search the web for current events, weather or time. Ask targeted questions.",
		MaxResults: 3,
		Region:     duckduckgo.RegionWT,
		Timeout:    10 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("init search tool: %w", err)
	}
	return []tool.BaseTool{search, newCalculatorTool()}, nil
}

type calculatorParams struct {
	Expression string `json:"expression"`
}

func newCalculatorTool() tool.InvokableTool {
	info := &schema.ToolInfo{
		Name: "calculator",
		Desc: "Evaluate an arithmetic expression such as (12.5 + 3) * 4 / 2.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"expression": {
				Desc:     "Arithmetic expression using + - * / % and parentheses",
				Type:     schema.String,
				Required: true,
			},
		}),
	}
	return utils.NewTool(info, func(ctx context.Context, params *calculatorParams) (string, error) {
		if params == nil {
			return "", errors.New("missing expression")
		}
		return evalArithmetic(params.Expression)
	})
}

// replyMessages builds the agent input for a reply request
func replyMessages(systemPrompt, toolsInstruction, userPrompt string) []*schema.Message {
	return []*schema.Message{
		schema.SystemMessage(systemPrompt + "\n\n" + toolsInstruction),
		schema.UserMessage(userPrompt),
	}
}

func (g *einoGenerator) Generate(ctx context.Context, req repo.ReplyRequest) (string, error) {
	msgs := replyMessages(
		g.persona.SystemPrompt(ctx),
		g.persona.ToolsInstruction(),
		g.persona.UserPrompt(req.PriorHistory, req.Current),
	)
	out, err := g.agent.Generate(ctx, msgs)
	if err != nil {
		return "", fmt.Errorf("agent generate: %w", err)
	}
	if out == nil {
		return "", errors.New("agent returned no message")
	}
	return out.Content, nil
}
