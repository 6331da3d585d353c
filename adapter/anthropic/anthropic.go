// Package anthropic provides a core.Translator implementation using the
// Anthropic Messages API.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/hupe1980/querymesh/core"
)

// Options configures the Anthropic translator (model id, temperature, max
// tokens, API key). Extend via functional options to preserve stability.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
	// HistoryWindow caps how many trailing turns of conversation history are
	// included in the prompt.
	HistoryWindow int
}

// Translator wraps the Anthropic Messages API behind core.Translator.
type Translator struct {
	client *anthropic.Client
	opts   Options
}

func defaultOptions() Options {
	return Options{
		Model:         anthropic.ModelClaude3_5Sonnet20241022,
		Temperature:   0.1,
		MaxTokens:     1024,
		HistoryWindow: 10,
	}
}

// NewTranslator creates a translator using the official client.
func NewTranslator(optFns ...func(o *Options)) *Translator {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)

	return &Translator{client: &client, opts: opts}
}

// NewTranslatorFromClient creates a translator from an existing client.
func NewTranslatorFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Translator {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Translator{client: client, opts: opts}
}

// Translate implements core.Translator.
func (t *Translator) Translate(ctx context.Context, message string, sessionCtx core.SessionContext) (*core.SQLCandidate, error) {
	params := anthropic.MessageNewParams{
		Model:       t.opts.Model,
		Messages:    buildMessages(message, sessionCtx, t.opts.HistoryWindow),
		MaxTokens:   t.opts.MaxTokens,
		Temperature: anthropic.Float(t.opts.Temperature),
		System: []anthropic.TextBlockParam{
			{Text: buildSystemPrompt(sessionCtx)},
		},
	}

	resp, err := t.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic api error: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.AsText().Text)
		}
	}

	sql := extractSQL(text.String())
	if sql == "" {
		return nil, fmt.Errorf("completion contained no SQL statement")
	}

	return &core.SQLCandidate{SQL: sql, Confidence: 0.9}, nil
}

const systemPrompt = `You are an expert SQL generator for an analytics warehouse.
Translate the user's question into a single standard SQL SELECT statement.
Use only tables and columns from the provided schema when one is given.
Respond with the SQL statement only, optionally inside a sql code fence.`

func buildSystemPrompt(sessionCtx core.SessionContext) string {
	var sb strings.Builder
	sb.WriteString(systemPrompt)
	if len(sessionCtx.SchemaInfo) > 0 {
		sb.WriteString("\n\nSchema:")
		for table, cols := range sessionCtx.SchemaInfo {
			fmt.Fprintf(&sb, "\n  %s(%s)", table, strings.Join(cols, ", "))
		}
	}
	if len(sessionCtx.ContextVariables) > 0 {
		sb.WriteString("\n\nConversation context:")
		for k, v := range sessionCtx.ContextVariables {
			fmt.Fprintf(&sb, "\n  %s = %v", k, v)
		}
	}
	return sb.String()
}

// buildMessages converts trailing history turns plus the current message
// into Anthropic message params.
func buildMessages(message string, sessionCtx core.SessionContext, historyWindow int) []anthropic.MessageParam {
	history := sessionCtx.History
	if historyWindow > 0 && len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}

	messages := make([]anthropic.MessageParam, 0, len(history)+1)
	for _, turn := range history {
		switch turn.Role {
		case core.RoleUser:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(turn.Content)))
		case core.RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(turn.Content)))
		}
	}
	return append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(message)))
}

func extractSQL(content string) string {
	content = strings.TrimSpace(content)
	if idx := strings.Index(content, "```"); idx >= 0 {
		rest := content[idx+3:]
		rest = strings.TrimPrefix(rest, "sql")
		rest = strings.TrimPrefix(rest, "SQL")
		if end := strings.Index(rest, "```"); end >= 0 {
			rest = rest[:end]
		}
		content = rest
	}
	return strings.TrimSpace(content)
}
