package ragquery

import (
	"context"
	"fmt"
	"strings"

	"ragcore/internal/ragextract"
)

// defaultSynthesisTemplate mirrors the original's CEO_ASSISTANT_PROMPT_TEMPLATE
// contract: it receives {context_str} (concatenated sub-answers) and
// {query_str} (the original question), preserves verbatim quotes, cites
// sources by title, and forbids technical identifiers in the output
// (§4.6 step 7). Tenants may supply their own template with the same two
// placeholders.
const defaultSynthesisTemplate = `Answer the question using only the context below. Do not invent facts not present in it.
{history_block}
Context:
{context_str}

Question: {query_str}

Write a direct, plain-language answer. Quote short passages from the context verbatim where it
strengthens the answer, and cite the source document by title in parentheses. Never mention chunk
ids, entity ids, tenant ids, or any other internal identifier.`

// Synthesizer combines per-sub-question answers into one response using a
// single "compact mode" LLM call (§4.6 step 7: "fewer, longer LLM calls").
type Synthesizer struct {
	Chat     ragextract.ChatClient
	Template string // optional tenant override; empty uses defaultSynthesisTemplate
}

// Synthesize produces the final answer for question given subAnswers (one
// string per routed sub-question) and an optional, already token-truncated
// chat history.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, subAnswers []string, history []ChatTurn) (string, error) {
	tmpl := s.Template
	if tmpl == "" {
		tmpl = defaultSynthesisTemplate
	}
	contextStr := strings.Join(subAnswers, "\n\n")
	if contextStr == "" {
		contextStr = "(no relevant context was retrieved)"
	}
	prompt := strings.NewReplacer(
		"{context_str}", contextStr,
		"{query_str}", question,
		"{history_block}", formatHistory(history),
	).Replace(tmpl)

	raw, err := s.Chat.Chat(ctx, []ragextract.ChatMessage{{Role: "user", Content: prompt}}, 0.2, false)
	if err != nil {
		return "", fmt.Errorf("ragquery: synthesize answer: %w", err)
	}
	return strings.TrimSpace(raw), nil
}

func formatHistory(history []ChatTurn) string {
	if len(history) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("\nConversation so far:\n")
	for _, h := range history {
		fmt.Fprintf(&sb, "%s: %s\n", h.Role, h.Content)
	}
	return sb.String()
}

// approxTokens is a cheap token estimate (roughly 4 characters per token
// for English text) used only to size the chat-history budget; it never
// needs to match the LLM's actual tokenizer exactly.
func approxTokens(s string) int {
	return (len(s) + 3) / 4
}

// truncateHistory admits the most recent turns first until tokenBudget
// would be exceeded, matching §4.6's "truncated chat history (token-
// budgeted to ~3,900 tokens, newest-first admission)".
func truncateHistory(history []ChatTurn, tokenBudget int) []ChatTurn {
	if tokenBudget <= 0 {
		tokenBudget = 3900
	}
	var kept []ChatTurn
	used := 0
	for i := len(history) - 1; i >= 0; i-- {
		cost := approxTokens(history[i].Content)
		if used+cost > tokenBudget {
			break
		}
		used += cost
		kept = append([]ChatTurn{history[i]}, kept...)
	}
	return kept
}
