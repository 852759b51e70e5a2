// Package openai solves extracted problems with a chat-completion model.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/yungbote/pythagon-backend/internal/domain"
	"github.com/yungbote/pythagon-backend/internal/platform/logger"
)

const systemPrompt = `You solve school algebra problems step by step.
Reply with a JSON object only, shaped as:
{"expression": "<the equation you solved>", "steps": ["<equation after each step>", ...], "answer": "<final answer, e.g. x = 5>"}
Each step is a single equation. The last step equals the answer.`

type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxRetries  int
	Timeout     time.Duration
}

type Solver struct {
	log    *logger.Logger
	client *goopenai.Client
	cfg    Config
}

func NewSolver(log *logger.Logger, cfg Config) (*Solver, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}
	if cfg.Model == "" {
		cfg.Model = goopenai.GPT4oMini
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &Solver{
		log:    log.With("service", "OpenAISolver"),
		client: goopenai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
	}, nil
}

type solveReply struct {
	Expression string   `json:"expression"`
	Steps      []string `json:"steps"`
	Answer     string   `json:"answer"`
}

func (s *Solver) Solve(ctx context.Context, problem domain.Problem) (domain.SolveResult, error) {
	prompt := buildPrompt(problem)
	if prompt == "" {
		return domain.SolveResult{}, fmt.Errorf("problem has no text to solve")
	}

	req := goopenai.ChatCompletionRequest{
		Model: s.cfg.Model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: goopenai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &goopenai.ChatCompletionResponseFormat{Type: goopenai.ChatCompletionResponseFormatTypeJSONObject},
		Temperature:    s.cfg.Temperature,
	}

	resp, err := s.complete(ctx, req)
	if err != nil {
		return domain.SolveResult{}, err
	}
	if len(resp.Choices) == 0 {
		return domain.SolveResult{}, fmt.Errorf("no response from OpenAI")
	}
	return parseReply(resp.Choices[0].Message.Content)
}

func (s *Solver) complete(ctx context.Context, req goopenai.ChatCompletionRequest) (goopenai.ChatCompletionResponse, error) {
	backoff := 500 * time.Millisecond
	var last error
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		resp, err := s.client.CreateChatCompletion(ctx, req)
		if err == nil {
			return resp, nil
		}
		last = err
		if !retryable(err) || attempt == s.cfg.MaxRetries {
			break
		}
		s.log.Warn("openai call failed, retrying", "attempt", attempt+1, "error", err)
		select {
		case <-ctx.Done():
			return goopenai.ChatCompletionResponse{}, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return goopenai.ChatCompletionResponse{}, fmt.Errorf("OpenAI API error: %w", last)
}

func retryable(err error) bool {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	return false
}

func buildPrompt(p domain.Problem) string {
	var b strings.Builder
	if len(p.MathExpressions) > 0 {
		b.WriteString("Equations found on the page:\n")
		for _, e := range p.MathExpressions {
			b.WriteString("- ")
			b.WriteString(e)
			b.WriteString("\n")
		}
	}
	if p.ExtractedText != nil && strings.TrimSpace(*p.ExtractedText) != "" {
		b.WriteString("Page text:\n")
		b.WriteString(strings.TrimSpace(*p.ExtractedText))
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

func parseReply(content string) (domain.SolveResult, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var reply solveReply
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &reply); err != nil {
		return domain.SolveResult{}, fmt.Errorf("decode solver reply: %w", err)
	}
	reply.Expression = strings.TrimSpace(reply.Expression)
	reply.Answer = strings.TrimSpace(reply.Answer)
	if reply.Expression == "" || reply.Answer == "" {
		return domain.SolveResult{}, fmt.Errorf("solver reply missing expression or answer")
	}

	steps := make([]domain.SolutionStep, 0, len(reply.Steps))
	for _, st := range reply.Steps {
		st = strings.TrimSpace(st)
		if st == "" {
			continue
		}
		steps = append(steps, domain.SolutionStep{Name: fmt.Sprintf("step%d", len(steps)+1), Expression: st})
	}
	if len(steps) == 0 {
		return domain.SolveResult{}, fmt.Errorf("solver reply has no steps")
	}
	return domain.SolveResult{Expression: reply.Expression, Steps: steps, Answer: reply.Answer}, nil
}
