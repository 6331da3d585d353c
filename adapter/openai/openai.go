// Package openai provides a core.Translator implementation using the OpenAI
// Chat Completions API. It renders the session context (history, context
// variables, cached schema) into the prompt and parses the completion into a
// SQL candidate.
package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"

	"github.com/hupe1980/querymesh/core"
)

// Options configure the OpenAI translator. Fields mirror a subset of Chat
// Completion parameters intentionally kept minimal; extend via functional
// options without breaking callers.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
	// HistoryWindow caps how many trailing turns of conversation history are
	// included in the prompt.
	HistoryWindow int
}

// Translator wraps the OpenAI Chat Completions API behind core.Translator.
type Translator struct {
	client *openai.Client
	opts   Options
}

// NewTranslator creates a translator using the official client with
// credentials from the environment.
func NewTranslator(optFns ...func(o *Options)) *Translator {
	client := openai.NewClient()
	return NewTranslatorFromClient(&client, optFns...)
}

// NewTranslatorFromClient creates a translator from an existing client.
func NewTranslatorFromClient(client *openai.Client, optFns ...func(o *Options)) *Translator {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.1,
		MaxCompletionTokens: 1024,
		HistoryWindow:       10,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Translator{client: client, opts: opts}
}

// Translate implements core.Translator.
func (t *Translator) Translate(ctx context.Context, message string, sessionCtx core.SessionContext) (*core.SQLCandidate, error) {
	messages := buildMessages(message, sessionCtx, t.opts.HistoryWindow)

	resp, err := t.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               t.opts.Model,
		Temperature:         openai.Float(t.opts.Temperature),
		MaxCompletionTokens: openai.Int(t.opts.MaxCompletionTokens),
	})
	if err != nil {
		return nil, fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices returned")
	}

	sql := ExtractSQL(resp.Choices[0].Message.Content)
	if sql == "" {
		return nil, fmt.Errorf("completion contained no SQL statement")
	}

	return &core.SQLCandidate{SQL: sql, Confidence: 0.9}, nil
}

const systemPrompt = `You are an expert SQL generator for an analytics warehouse.
Translate the user's question into a single standard SQL SELECT statement.
Use only tables and columns from the provided schema when one is given.
Respond with the SQL statement only, optionally inside a sql code fence.`

// buildMessages renders the session context into chat messages: system
// instructions with schema and context variables, trailing history turns,
// then the current user message.
func buildMessages(message string, sessionCtx core.SessionContext, historyWindow int) []openai.ChatCompletionMessageParamUnion {
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

	messages := []openai.ChatCompletionMessageParamUnion{openai.SystemMessage(sb.String())}

	history := sessionCtx.History
	if historyWindow > 0 && len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	for _, turn := range history {
		switch turn.Role {
		case core.RoleUser:
			messages = append(messages, openai.UserMessage(turn.Content))
		case core.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(turn.Content))
		}
	}

	return append(messages, openai.UserMessage(message))
}

// ExtractSQL strips code fences and surrounding prose from a model
// completion, returning the bare SQL statement.
func ExtractSQL(content string) string {
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
