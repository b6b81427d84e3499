package client

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/boddenberg/pizzaria-assistant-bfa-go/internal/domain"
	"github.com/boddenberg/pizzaria-assistant-bfa-go/internal/infra/resilience"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
)

// OpenAIComposer writes the outgoing reply with a chat completion model.
// The decisions (mode, rules, quote, upsell) are already made; the model
// only phrases them.
type OpenAIComposer struct {
	client *openai.Client
	model  string
	cb     *gobreaker.CircuitBreaker
	cfg    resilience.Config
}

// NewOpenAIComposer creates the composer. baseURL overrides the API root
// (tests, proxies); empty keeps the default.
func NewOpenAIComposer(apiKey, model, baseURL string, cb *gobreaker.CircuitBreaker, cfg resilience.Config) *OpenAIComposer {
	if model == "" {
		model = openai.GPT4oMini
	}
	conf := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		conf.BaseURL = baseURL
	}
	return &OpenAIComposer{
		client: openai.NewClientWithConfig(conf),
		model:  model,
		cb:     cb,
		cfg:    cfg,
	}
}

// Compose returns the first choice of the completion for turn.
func (c *OpenAIComposer) Compose(ctx context.Context, turn *domain.TurnContext) (string, error) {
	ctx, span := tracer.Start(ctx, "OpenAIComposer.Compose")
	defer span.End()
	span.SetAttributes(attribute.String("turn.mode", string(turn.Mode)))

	msgs := BuildPrompt(turn)

	var answer string
	err := resilience.Call(ctx, c.cb, c.cfg, "openai", func() error {
		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:    c.model,
			Messages: msgs,
		})
		if err != nil {
			var apiErr *openai.APIError
			if errors.As(err, &apiErr) && apiErr.HTTPStatusCode >= 400 && apiErr.HTTPStatusCode < 500 && apiErr.HTTPStatusCode != 429 {
				return resilience.Permanent(err)
			}
			return err
		}
		if len(resp.Choices) == 0 {
			return resilience.Permanent(fmt.Errorf("completion returned no choices"))
		}
		answer = strings.TrimSpace(resp.Choices[0].Message.Content)
		return nil
	})
	if err != nil {
		return "", err
	}
	return answer, nil
}

// BuildPrompt monta as mensagens: um system com regras e contexto do turno,
// o histórico como user/assistant e, por último, a mensagem atual.
func BuildPrompt(turn *domain.TurnContext) []openai.ChatCompletionMessage {
	var sb strings.Builder
	sb.WriteString(turn.Rules)
	sb.WriteString("\n\n# Contexto do atendimento\n")
	fmt.Fprintf(&sb, "- Modo: %s\n", turn.Mode)

	if p := turn.Profile; p != nil {
		fmt.Fprintf(&sb, "- Segmento: %s\n", p.Segment)
		if len(p.Tags) > 0 {
			fmt.Fprintf(&sb, "- Tags: %s\n", strings.Join(p.TagStrings(), ", "))
		}
	}

	if q := turn.Quote; q != nil {
		switch {
		case !q.OK:
			fmt.Fprintf(&sb, "- Entrega: não foi possível cotar (%s). Peça o endereço completo com número.\n", q.Reason)
		case q.Serviceable() && q.Fee != nil:
			fmt.Fprintf(&sb, "- Entrega: atendemos. %.1f km, taxa R$ %.2f, cerca de %d min.\n", *q.KM, *q.Fee, *q.ETAMin)
		default:
			fmt.Fprintf(&sb, "- Entrega: fora da área (%.1f km). Ofereça retirada no balcão.\n", *q.KM)
		}
	}

	if turn.Upsell != "" {
		fmt.Fprintf(&sb, "- Sugestão de adicional: %s\n", turn.Upsell)
	}

	msgs := make([]openai.ChatCompletionMessage, 0, len(turn.History)+2)
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: sb.String(),
	})
	for _, h := range turn.History {
		role := openai.ChatMessageRoleUser
		if h.Role == "assistant" {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: h.Text})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: turn.Text,
	})
	return msgs
}
