package ragquery

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"ragcore/internal/ragdomain"
	"ragcore/internal/ragextract"
	"ragcore/internal/ragobs"
	"ragcore/internal/ragstore"
)

// allowedCypherFields is the whitelisted return-field set for generated
// graph queries (§4.6 step 5, §6): a hallucinated or prompt-injected
// Cypher query can only ever surface these columns.
var allowedCypherFields = []string{"text", "label", "type", "name", "title", "created_at", "created_at_timestamp"}

// Text2CypherRetriever answers timed questions by asking an LLM to
// generate a read-only Cypher query against a fixed few-shot template
// that always filters on Chunk.created_at_ts, then executing it through
// GraphStore.RunReadQuery's whitelist. Named after
// lex00-wetwire-neo4j-go's retriever taxonomy, grounded on
// query_engine.py's TextToCypherRetriever wiring.
type Text2CypherRetriever struct {
	Graph ragstore.GraphStore
	Chat  ragextract.ChatClient
	Clock ragobs.Clock
}

func (t *Text2CypherRetriever) Retrieve(ctx context.Context, tenantID, question string, startTS, endTS int64) ([]SourceNode, error) {
	clock := t.Clock
	if clock == nil {
		clock = ragobs.SystemClock{}
	}
	prompt := t.buildPrompt(question, clock.Now(), startTS, endTS)
	raw, err := t.Chat.Chat(ctx, []ragextract.ChatMessage{
		{Role: "system", Content: "You generate read-only Cypher statements. Respond with the query only, no explanation."},
		{Role: "user", Content: prompt},
	}, 0, false)
	if err != nil {
		return nil, fmt.Errorf("ragquery: generate cypher: %w", err)
	}
	cypher := extractCypher(raw)
	if cypher == "" {
		return nil, fmt.Errorf("ragquery: generated cypher was empty")
	}

	rows, err := t.Graph.RunReadQuery(ctx, tenantID, cypher, map[string]any{
		"start_ts": startTS,
		"end_ts":   endTS,
	}, allowedCypherFields)
	if err != nil {
		return nil, fmt.Errorf("ragquery: run generated cypher: %w", err)
	}
	return rowsToSourceNodes(rows), nil
}

func (t *Text2CypherRetriever) buildPrompt(question string, now time.Time, startTS, endTS int64) string {
	var sb strings.Builder
	sb.WriteString("Task: generate one Cypher statement to query a Neo4j graph database.\n")
	sb.WriteString("Rules:\n")
	sb.WriteString("- Read-only: never CREATE, MERGE, DELETE, SET, or REMOVE.\n")
	sb.WriteString("- Use only the node labels and relationship types in the schema below.\n")
	sb.WriteString("- Filter on Chunk.created_at_ts; entity nodes carry no timestamp.\n")
	sb.WriteString(fmt.Sprintf("- Only return the columns: %s.\n\n", strings.Join(allowedCypherFields, ", ")))
	sb.WriteString("Schema:\n")
	sb.WriteString("  (:Chunk {chunk_id, document_id, title, source, document_type, created_at_ts, text})\n")
	for _, l := range ragdomain.Labels {
		fmt.Fprintf(&sb, "  (:%s {entity_id, name})\n", l)
	}
	sb.WriteString("  (:Chunk)-[:MENTIONS]->(:PERSON|COMPANY|ROLE|PURCHASE_ORDER|MATERIAL|CERTIFICATION)\n")
	sb.WriteString("  (:Chunk)-[:SENT|RECEIVED]->(:PERSON)\n")
	for _, tr := range ragdomain.ValidationSchema {
		fmt.Fprintf(&sb, "  (:%s)-[:%s]->(:%s)\n", tr.Source, tr.Relation, tr.Target)
	}
	sb.WriteString(fmt.Sprintf("\nToday's date is %s. The question's resolved window is %s (unix %d) through %s (unix %d), inclusive.\n",
		now.Format("January 2, 2006"),
		time.Unix(startTS, 0).UTC().Format("2006-01-02"), startTS,
		time.Unix(endTS, 0).UTC().Format("2006-01-02"), endTS))

	sb.WriteString("\nExample: \"What did Hayden say last month?\"\n")
	sb.WriteString("MATCH (p:PERSON {name: \"Hayden\"})<-[:MENTIONS]-(chunk:Chunk)\n")
	sb.WriteString("WHERE chunk.created_at_ts >= $start_ts AND chunk.created_at_ts <= $end_ts\n")
	sb.WriteString("RETURN chunk.text AS text, chunk.title AS title, chunk.created_at_ts AS created_at_timestamp LIMIT 10\n")

	sb.WriteString("\nExample: \"Show me deals ordered by Acme in Q3\"\n")
	sb.WriteString("MATCH (c:COMPANY {name: \"Acme\"})-[:ORDERED]->(po:PURCHASE_ORDER)\n")
	sb.WriteString("MATCH (chunk:Chunk)-[:MENTIONS]->(po)\n")
	sb.WriteString("WHERE chunk.created_at_ts >= $start_ts AND chunk.created_at_ts <= $end_ts\n")
	sb.WriteString("RETURN po.name AS name, chunk.text AS text LIMIT 10\n")

	sb.WriteString("\nExample: \"Who sent emails about certifications this year?\"\n")
	sb.WriteString("MATCH (chunk:Chunk)-[:SENT]->(p:PERSON)\n")
	sb.WriteString("MATCH (chunk)-[:MENTIONS]->(cert:CERTIFICATION)\n")
	sb.WriteString("WHERE chunk.created_at_ts >= $start_ts AND chunk.created_at_ts <= $end_ts\n")
	sb.WriteString("RETURN p.name AS name, chunk.text AS text, chunk.created_at_ts AS created_at_timestamp LIMIT 10\n")

	sb.WriteString("\nExample: \"Which materials came up between March and June?\"\n")
	sb.WriteString("MATCH (chunk:Chunk)-[:MENTIONS]->(m:MATERIAL)\n")
	sb.WriteString("WHERE chunk.created_at_ts >= $start_ts AND chunk.created_at_ts <= $end_ts\n")
	sb.WriteString("RETURN DISTINCT m.name AS name LIMIT 25\n")

	sb.WriteString("\nQuestion: ")
	sb.WriteString(question)
	sb.WriteString("\nCypher query:")
	return sb.String()
}

// extractCypher strips Markdown code fences some chat backends still wrap
// the query in despite the "query only" instruction.
func extractCypher(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```cypher")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func rowsToSourceNodes(rows []map[string]any) []SourceNode {
	out := make([]SourceNode, 0, len(rows))
	for _, row := range rows {
		n := SourceNode{Score: 1, Tool: "graph_search"}
		if v, ok := row["title"].(string); ok {
			n.Title = v
		}
		if v, ok := row["name"].(string); ok && n.Title == "" {
			n.Title = v
		}
		if v, ok := row["text"].(string); ok {
			n.Excerpt = excerpt(v)
		} else if v, ok := row["name"].(string); ok {
			n.Excerpt = v
		}
		if ts, ok := rowTimestamp(row["created_at_timestamp"]); ok {
			t := unixToTime(ts)
			n.CreatedAt = &t
		}
		out = append(out, n)
	}
	return out
}

func rowTimestamp(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case float64:
		return int64(n), true
	case string:
		parsed, err := strconv.ParseInt(n, 10, 64)
		return parsed, err == nil
	default:
		return 0, false
	}
}
