package transport

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/hpungsan/bitcoach/internal/config"
	coacherrors "github.com/hpungsan/bitcoach/internal/errors"
	"github.com/hpungsan/bitcoach/internal/logging"
	"github.com/hpungsan/bitcoach/internal/session"
)

// OpenAI calls an OpenAI-compatible chat endpoint through langchaingo.
type OpenAI struct {
	llm       llms.Model
	maxTokens int
	log       *logrus.Entry
}

// NewOpenAI creates an OpenAI backend.
func NewOpenAI(apiKey, model string, maxTokens int, baseURL string) (*OpenAI, error) {
	opts := []openai.Option{openai.WithToken(apiKey)}
	if model != "" {
		opts = append(opts, openai.WithModel(model))
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, coacherrors.NewConfigInvalid("provider", err.Error())
	}
	return newOpenAIWithModel(llm, maxTokens), nil
}

func newOpenAIWithModel(llm llms.Model, maxTokens int) *OpenAI {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &OpenAI{
		llm:       llm,
		maxTokens: maxTokens,
		log:       logging.NewLogger("transport").WithField("provider", config.ProviderOpenAI),
	}
}

// Complete sends the system prompt as a system message followed by the turns.
func (o *OpenAI) Complete(ctx context.Context, req *session.Request) (*session.Reply, error) {
	history := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, req.SystemPrompt),
	}
	for _, turn := range req.Turns {
		msgType := llms.ChatMessageTypeHuman
		if turn.Role == session.RoleCoach {
			msgType = llms.ChatMessageTypeAI
		}
		history = append(history, llms.TextParts(msgType, turn.Text))
	}

	o.log.WithField("turns", len(req.Turns)).Debug("sending request")

	resp, err := o.llm.GenerateContent(ctx, history, llms.WithMaxTokens(o.maxTokens))
	if err != nil {
		return nil, coacherrors.NewTransportFailed(config.ProviderOpenAI, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Content) == "" {
		return nil, coacherrors.NewTransportFailed(config.ProviderOpenAI, errEmptyCompletion)
	}
	return &session.Reply{Text: resp.Choices[0].Content}, nil
}
