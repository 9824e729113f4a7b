package ragquery

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"ragcore/internal/ragextract"
)

// SubQuestion is one decomposed piece of the user's question, routed to
// exactly one tool.
type SubQuestion struct {
	Question string
	Tool     string // "vector_search" or "graph_search"
}

type subQuestionItem struct {
	Question string `json:"question"`
	Tool     string `json:"tool"`
}

type decomposeResponse struct {
	SubQuestions []subQuestionItem `json:"sub_questions"`
}

// Decomposer breaks a user question into one or more sub-questions, each
// routed to the tool best suited to answer it — the Go analogue of
// SubQuestionQueryEngine.from_defaults's decomposition step (§4.6 step 6).
type Decomposer struct {
	Chat ragextract.ChatClient
}

// toolDescription pairs a tool's name with the description shown to the
// decomposition LLM, mirroring QueryEngineTool.from_defaults's name/description.
type toolDescription struct {
	Name        string
	Description string
}

var queryTools = []toolDescription{
	{Name: "vector_search", Description: "Semantic search over document content: what was said, topics discussed, specific information mentioned."},
	{Name: "graph_search", Description: "Relationships between people, companies, and documents: who sent what, who works where, organizational structure."},
}

// Decompose asks the LLM to split question into sub-questions, each routed
// to a tool name from queryTools. On any error it falls back to a single
// sub-question routed to vector_search, so a question always gets
// answered even when decomposition itself misbehaves.
func (d *Decomposer) Decompose(ctx context.Context, question string) []SubQuestion {
	fallback := []SubQuestion{{Question: question, Tool: "vector_search"}}
	if d.Chat == nil {
		return fallback
	}
	prompt := buildDecomposePrompt(question)
	raw, err := d.Chat.Chat(ctx, []ragextract.ChatMessage{
		{Role: "system", Content: "Decompose questions into sub-questions routed to tools. Respond with JSON only."},
		{Role: "user", Content: prompt},
	}, 0, true)
	if err != nil {
		return fallback
	}
	var resp decomposeResponse
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &resp); err != nil || len(resp.SubQuestions) == 0 {
		return fallback
	}
	out := make([]SubQuestion, 0, len(resp.SubQuestions))
	for _, sq := range resp.SubQuestions {
		tool := strings.TrimSpace(sq.Tool)
		if !isKnownTool(tool) {
			tool = "vector_search"
		}
		q := strings.TrimSpace(sq.Question)
		if q == "" {
			continue
		}
		out = append(out, SubQuestion{Question: q, Tool: tool})
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func isKnownTool(name string) bool {
	for _, t := range queryTools {
		if t.Name == name {
			return true
		}
	}
	return false
}

func buildDecomposePrompt(question string) string {
	var sb strings.Builder
	sb.WriteString("Available tools:\n")
	for _, t := range queryTools {
		fmt.Fprintf(&sb, "  %s: %s\n", t.Name, t.Description)
	}
	sb.WriteString("\nBreak the question below into one or more independent sub-questions, each answerable by exactly one tool.\n")
	sb.WriteString("If the question is already simple and single-topic, return it unchanged as one sub-question.\n\n")
	sb.WriteString(`Respond with JSON: {"sub_questions": [{"question": "...", "tool": "vector_search"|"graph_search"}]}` + "\n\n")
	sb.WriteString("Question: ")
	sb.WriteString(question)
	return sb.String()
}
