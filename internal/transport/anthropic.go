package transport

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sirupsen/logrus"

	"github.com/hpungsan/bitcoach/internal/config"
	coacherrors "github.com/hpungsan/bitcoach/internal/errors"
	"github.com/hpungsan/bitcoach/internal/logging"
	"github.com/hpungsan/bitcoach/internal/session"
)

var errEmptyCompletion = errors.New("empty completion")

// Anthropic calls the Messages API.
type Anthropic struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	log       *logrus.Entry
}

// NewAnthropic creates an Anthropic backend. Retries are disabled so a
// failure surfaces to the student immediately.
func NewAnthropic(apiKey, model string, maxTokens int, baseURL string) *Anthropic {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if model == "" {
		model = string(anthropic.ModelClaude4Sonnet20250514)
	}
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &Anthropic{
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: int64(maxTokens),
		log:       logging.NewLogger("transport").WithField("provider", config.ProviderAnthropic),
	}
}

// Complete sends the system prompt and retained turns.
func (a *Anthropic) Complete(ctx context.Context, req *session.Request) (*session.Reply, error) {
	messages := make([]anthropic.MessageParam, 0, len(req.Turns))
	for _, turn := range req.Turns {
		block := anthropic.NewTextBlock(turn.Text)
		if turn.Role == session.RoleCoach {
			messages = append(messages, anthropic.NewAssistantMessage(block))
		} else {
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}

	a.log.WithFields(logrus.Fields{"model": a.model, "turns": len(messages)}).Debug("sending request")

	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: req.SystemPrompt}},
		Messages:  messages,
	})
	if err != nil {
		return nil, coacherrors.NewTransportFailed(config.ProviderAnthropic, err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		switch block := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return nil, coacherrors.NewTransportFailed(config.ProviderAnthropic, errEmptyCompletion)
	}

	a.log.WithFields(logrus.Fields{
		"stop_reason":   resp.StopReason,
		"input_tokens":  resp.Usage.InputTokens,
		"output_tokens": resp.Usage.OutputTokens,
	}).Debug("received response")

	return &session.Reply{Text: text.String()}, nil
}
