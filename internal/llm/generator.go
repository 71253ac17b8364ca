// Package llm adapts Genkit models and embedders to the narrow interfaces
// the rest of the application consumes.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/impar-ai/docchat/internal/docstore"
)

// ErrEmptyResponse indicates the model produced no text.
var ErrEmptyResponse = errors.New("model returned empty response")

// GeneratorConfig contains required parameters for Generator.
type GeneratorConfig struct {
	Genkit          *genkit.Genkit
	ModelName       string // provider-qualified, e.g. "googleai/gemini-2.5-flash"
	Temperature     float32
	MaxOutputTokens int
	Timeout         time.Duration
	RateLimiter     *rate.Limiter // optional, nil uses a default
	Logger          *slog.Logger
}

// Generator produces chat completions through Genkit.
// Safe for concurrent use.
type Generator struct {
	g           *genkit.Genkit
	modelName   string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	limiter     *rate.Limiter
	logger      *slog.Logger
}

// NewGenerator creates a Generator.
func NewGenerator(cfg GeneratorConfig) (*Generator, error) {
	if cfg.Genkit == nil {
		return nil, errors.New("genkit instance is required")
	}
	if cfg.ModelName == "" {
		return nil, errors.New("model name is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	// Default: 10 requests/sec sustained, burst of 30.
	limiter := cfg.RateLimiter
	if limiter == nil {
		limiter = rate.NewLimiter(10, 30)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Generator{
		g:           cfg.Genkit,
		modelName:   cfg.ModelName,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxOutputTokens,
		timeout:     timeout,
		limiter:     limiter,
		logger:      logger,
	}, nil
}

// Generate runs one completion: system prompt, prior conversation turns,
// then the final user prompt. The call is rate limited and bounded by the
// configured timeout; a deadline overrun surfaces as
// context.DeadlineExceeded via errors.Is.
func (gen *Generator) Generate(ctx context.Context, system string, history []docstore.Turn, prompt string) (string, error) {
	if err := gen.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, gen.timeout)
	defer cancel()

	messages := make([]*ai.Message, 0, len(history)+1)
	for _, t := range history {
		if t.Role == docstore.RoleAssistant {
			messages = append(messages, ai.NewModelMessage(ai.NewTextPart(t.Content)))
		} else {
			messages = append(messages, ai.NewUserMessage(ai.NewTextPart(t.Content)))
		}
	}
	messages = append(messages, ai.NewUserMessage(ai.NewTextPart(prompt)))

	gen.logger.Debug("generating response",
		"model", gen.modelName,
		"history_turns", len(history),
		"prompt_length", len(prompt))

	resp, err := genkit.Generate(ctx, gen.g,
		ai.WithModelName(gen.modelName),
		ai.WithSystem(system),
		ai.WithMessages(messages...),
		ai.WithConfig(&genai.GenerateContentConfig{
			Temperature:     genai.Ptr(gen.temperature),
			MaxOutputTokens: int32(gen.maxTokens),
		}),
	)
	if err != nil {
		return "", fmt.Errorf("generating response: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
