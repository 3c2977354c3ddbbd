package call

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/verbilabs/callbridge/pkg/inference"
	"github.com/verbilabs/callbridge/pkg/retrieval"
)

// sentenceBoundary matches end-of-sentence punctuation followed by
// whitespace. Trailing punctuation at end of string is not a boundary,
// so a reply that is exactly N sentences survives truncation intact.
var sentenceBoundary = regexp.MustCompile(`[.!?][\s]`)

// Engine produces the assistant's next utterance from transcribed user
// text, conversation history, and optional retrieval grounding.
// Stateless and safe for concurrent use across sessions.
type Engine struct {
	provider  inference.Provider
	retriever retrieval.Retriever
	cfg       *Config
	logger    *slog.Logger
}

// NewEngine creates a turn engine. retriever may be nil, in which case
// replies are ungrounded.
func NewEngine(provider inference.Provider, retriever retrieval.Retriever, cfg *Config) *Engine {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Engine{
		provider:  provider,
		retriever: retriever,
		cfg:       cfg,
		logger:    cfg.Logger.With("component", "call.engine"),
	}
}

// NextUtterance returns the reply to speak for userText. The caller
// appends the user and assistant turns to history; the engine never
// mutates it.
func (e *Engine) NextUtterance(ctx context.Context, history []Turn, userText string) (string, error) {
	system := e.cfg.SystemPrompt

	if e.retriever != nil {
		passages, err := e.retriever.Query(ctx, userText, 0)
		if err != nil {
			return "", fmt.Errorf("call: retrieval query: %w", err)
		}
		if len(passages) == 0 {
			// Grounded mode with nothing to ground on: answer with the
			// fixed reply instead of letting the model improvise.
			return e.cfg.NoContextReply, nil
		}
		system = e.groundingPrompt(passages)
	}

	messages := make([]inference.Message, 0, len(history)+2)
	if system != "" {
		messages = append(messages, inference.NewSystemMessage(system))
	}
	for _, t := range history {
		messages = append(messages, inference.Message{
			Role:    inference.Role(t.Role),
			Content: t.Text,
		})
	}
	messages = append(messages, inference.NewUserMessage(userText))

	resp, err := e.provider.Chat(ctx, &inference.ChatRequest{Messages: messages})
	if err != nil {
		return "", fmt.Errorf("call: generate reply: %w", err)
	}

	reply := truncateSentences(strings.TrimSpace(resp.Message.Content), e.cfg.MaxSentences)

	e.logger.Debug("generated reply",
		"history_turns", len(history),
		"reply_len", len(reply),
		"model", resp.Model,
		"latency_ms", resp.LatencyMs,
	)
	return reply, nil
}

// groundingPrompt builds the system instruction constraining the answer
// to the retrieved passages.
func (e *Engine) groundingPrompt(passages []retrieval.Passage) string {
	var b strings.Builder
	b.WriteString("Answer the caller's question using only the context below. ")
	b.WriteString("If the context does not contain the answer, say so briefly.\n\nContext:\n")
	for _, p := range passages {
		b.WriteString(p.Text)
		b.WriteString("\n")
	}
	return b.String()
}

// truncateSentences keeps the first max sentences of text. Zero max or
// no boundary returns the text verbatim.
func truncateSentences(text string, max int) string {
	if max <= 0 {
		return text
	}
	boundaries := sentenceBoundary.FindAllStringIndex(text, -1)
	if len(boundaries) < max {
		return text
	}
	// Cut just after the punctuation of the max-th boundary.
	return text[:boundaries[max-1][0]+1]
}

// normalizePhrase lowercases and strips everything but letters and
// digits, so "Good Bye!" and "goodbye" compare equal.
func normalizePhrase(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// containsEndPhrase reports whether the transcript contains any of the
// configured end phrases. Containment is deliberate: "okay goodbye then"
// ends the call, and so does "the good bye song".
func containsEndPhrase(text string, phrases []string) bool {
	normalized := normalizePhrase(text)
	if normalized == "" {
		return false
	}
	for _, p := range phrases {
		if np := normalizePhrase(p); np != "" && strings.Contains(normalized, np) {
			return true
		}
	}
	return false
}
