package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/agent-api/core/pkg/agent"
	"github.com/agent-api/core/types"
	"github.com/agent-api/ollama"

	"github.com/devHaitham481/A-Team/internal/config"
)

const systemPrompt = "You are a visual analysis assistant for screen recordings. " +
	"Describe what is on screen and what the user appears to be doing, step by step. " +
	"Use the narration, when given, to disambiguate the user's intent."

// NewAgent initializes a vision agent backed by the Ollama server in cfg.
func NewAgent(ctx context.Context, cfg config.AnalyzerConfig, logger *slog.Logger) (*agent.DefaultAgent, error) {
	if err := ping(ctx, cfg); err != nil {
		return nil, err
	}

	provider := ollama.NewProvider(&ollama.ProviderOpts{
		Logger:  logger,
		BaseURL: cfg.BaseURL,
		Port:    cfg.Port,
	})
	provider.UseModel(ctx, &types.Model{
		ID: cfg.Model,
	})

	return agent.NewAgent(&agent.NewAgentConfig{
		Provider:     provider,
		Logger:       logger,
		SystemPrompt: systemPrompt,
	}), nil
}

// ping checks that the Ollama server answers.
func ping(ctx context.Context, cfg config.AnalyzerConfig) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	url := fmt.Sprintf("%s:%d/api/tags", cfg.BaseURL, cfg.Port)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama not reachable at %s: %w", url, err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama at %s returned status %d", url, resp.StatusCode)
	}
	return nil
}

// AgentDescriber describes images with a vision agent.
type AgentDescriber struct {
	agent *agent.DefaultAgent
}

func NewAgentDescriber(a *agent.DefaultAgent) *AgentDescriber {
	return &AgentDescriber{agent: a}
}

func (d *AgentDescriber) Describe(ctx context.Context, imagePath string, narration *string) (string, error) {
	response := d.agent.Run(
		ctx,
		agent.WithInput(buildPrompt(narration)),
		agent.WithImagePath(imagePath),
	)
	if response.Err != nil {
		return "", response.Err
	}

	if len(response.Messages) == 0 {
		return "", fmt.Errorf("no response messages received from model")
	}

	// The last message is the model's answer.
	return response.Messages[len(response.Messages)-1].Content, nil
}
