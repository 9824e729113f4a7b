package ragstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"ragcore/internal/ragconfig"
	"ragcore/internal/ragdomain"
)

// GraphStore is the pluggable interface over the Neo4j-backed knowledge
// graph: chunk nodes, entity nodes, MENTIONS/SENT/RECEIVED edges, and
// schema-validated entity relations.
type GraphStore interface {
	UpsertChunk(ctx context.Context, tenantID string, node ragdomain.ChunkNode, entities ragdomain.ChunkEntities) error
	UpsertEntity(ctx context.Context, tenantID string, entity ragdomain.Entity) error
	UpsertRelation(ctx context.Context, tenantID string, relation ragdomain.Relation) error
	DeleteDocument(ctx context.Context, tenantID, documentID string) error
	EntitiesByLabel(ctx context.Context, tenantID string, label ragdomain.Label, since int64) ([]ragdomain.Entity, error)
	MergeEntities(ctx context.Context, tenantID string, primaryID string, absorbedIDs []string) error
	// ExpandNeighbors implements the query engine's VectorContextRetriever
	// hop expansion (§4.6 step 5): chunks that share an entity MENTIONS
	// edge with one of seedChunkIDs. Neo4jGraphStore treats any hops of 1
	// or more as a single hop.
	ExpandNeighbors(ctx context.Context, tenantID string, seedChunkIDs []string, hops int) ([]ragdomain.ChunkNode, error)
	// RunReadQuery executes a read-only, parameterized Cypher query and
	// returns each record's columns filtered down to allowedFields,
	// implementing the Text2CypherRetriever's whitelisted-field contract
	// (§4.6 step 5, §6 "run arbitrary parameterised read-only queries").
	RunReadQuery(ctx context.Context, tenantID string, cypher string, params map[string]any, allowedFields []string) ([]map[string]any, error)
	Close(ctx context.Context) error
}

// writeKeywords are Cypher clauses RunReadQuery refuses to execute, since it
// must only ever run read-only queries generated by the time extractor's
// Text2Cypher retriever.
var writeKeywords = []string{"CREATE", "MERGE", "DELETE", "SET", "REMOVE", "DROP", "DETACH", "CALL {", "LOAD CSV"}

// ErrUnsafeReadQuery is returned by RunReadQuery when cypher contains a
// write clause.
var ErrUnsafeReadQuery = fmt.Errorf("ragstore: generated query is not read-only")

// Neo4jGraphStore is the Neo4j-backed GraphStore. Driver construction and
// session lifecycle follow importer.Neo4jImporter's
// NewDriverWithContext/VerifyConnectivity/NewSession/Run idiom.
type Neo4jGraphStore struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewNeo4jGraphStore dials Neo4j and verifies connectivity.
func NewNeo4jGraphStore(ctx context.Context, cfg ragconfig.GraphStoreConfig) (*Neo4jGraphStore, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("ragstore: create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("ragstore: connect to neo4j: %w", err)
	}
	database := cfg.Database
	if database == "" {
		database = "neo4j"
	}
	return &Neo4jGraphStore{driver: driver, database: database}, nil
}

func (g *Neo4jGraphStore) session(ctx context.Context) neo4j.SessionWithContext {
	return g.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: g.database})
}

func (g *Neo4jGraphStore) Close(ctx context.Context) error { return g.driver.Close(ctx) }

// entityProps converts an Entity's string-keyed properties to a
// Neo4j-compatible param map, sanitizing and truncating each value. The
// embedding is stored as a float64 list (the driver's native vector
// representation) so the dedup engine's candidate search can read it back.
func entityProps(e ragdomain.Entity) map[string]any {
	props := map[string]any{
		"entity_id": e.EntityID,
		"name":      e.Name,
	}
	if len(e.Embedding) > 0 {
		vec := make([]float64, len(e.Embedding))
		for i, f := range e.Embedding {
			vec[i] = float64(f)
		}
		props["embedding"] = vec
	}
	for k, v := range e.Props {
		if ragdomain.ForbiddenEntityProps[k] {
			continue
		}
		props[k] = ragdomain.TruncateProp(fmt.Sprintf("%v", ragdomain.Sanitize(v)))
	}
	return props
}

func (g *Neo4jGraphStore) UpsertEntity(ctx context.Context, tenantID string, entity ragdomain.Entity) error {
	session := g.session(ctx)
	defer func() { _ = session.Close(ctx) }()

	query := fmt.Sprintf(
		"MERGE (e:%s {tenant_id: $tenant_id, entity_id: $entity_id}) SET e += $props",
		string(entity.Label),
	)
	_, err := session.Run(ctx, query, map[string]any{
		"tenant_id": tenantID,
		"entity_id": entity.EntityID,
		"props":     entityProps(entity),
	})
	return err
}

func (g *Neo4jGraphStore) UpsertRelation(ctx context.Context, tenantID string, relation ragdomain.Relation) error {
	if !relation.Conforms() {
		return fmt.Errorf("ragstore: relation %s -%s-> %s does not conform to schema",
			relation.Source.Label, relation.Relation, relation.Target.Label)
	}
	session := g.session(ctx)
	defer func() { _ = session.Close(ctx) }()

	query := fmt.Sprintf(
		`MATCH (s:%s {tenant_id: $tenant_id, entity_id: $source_id})
		 MATCH (t:%s {tenant_id: $tenant_id, entity_id: $target_id})
		 MERGE (s)-[:%s]->(t)`,
		string(relation.Source.Label), string(relation.Target.Label), string(relation.Relation),
	)
	_, err := session.Run(ctx, query, map[string]any{
		"tenant_id": tenantID,
		"source_id": relation.Source.EntityID,
		"target_id": relation.Target.EntityID,
	})
	return err
}

// UpsertChunk writes the chunk node, its MENTIONS edges to entities,
// SENT/RECEIVED edges for email documents, and the validated relations
// extracted from it — the single-chunk fan-out described by ChunkEntities.
func (g *Neo4jGraphStore) UpsertChunk(ctx context.Context, tenantID string, node ragdomain.ChunkNode, ce ragdomain.ChunkEntities) error {
	session := g.session(ctx)
	defer func() { _ = session.Close(ctx) }()

	_, err := session.Run(ctx, `MERGE (c:Chunk {tenant_id: $tenant_id, chunk_id: $chunk_id})
		SET c.document_id = $document_id, c.title = $title, c.source = $source,
		    c.document_type = $document_type, c.created_at_ts = $created_at_ts, c.text = $text`,
		map[string]any{
			"tenant_id":      tenantID,
			"chunk_id":       node.ChunkID,
			"document_id":    node.DocumentID,
			"title":          ragdomain.TruncateProp(node.Title),
			"source":         node.Source,
			"document_type":  node.DocumentType,
			"created_at_ts":  node.CreatedAtTS,
			"text":           ragdomain.TruncateProp(node.Text),
		})
	if err != nil {
		return fmt.Errorf("ragstore: upsert chunk node: %w", err)
	}

	for _, e := range ce.Entities {
		if err := g.UpsertEntity(ctx, tenantID, e); err != nil {
			return err
		}
		if err := g.linkChunkToEntity(ctx, tenantID, node.ChunkID, e, ragdomain.EdgeMentions); err != nil {
			return err
		}
	}
	for _, e := range ce.SentFrom {
		if err := g.linkChunkToEntity(ctx, tenantID, node.ChunkID, e, ragdomain.EdgeSent); err != nil {
			return err
		}
	}
	for _, e := range ce.ReceivedBy {
		if err := g.linkChunkToEntity(ctx, tenantID, node.ChunkID, e, ragdomain.EdgeReceived); err != nil {
			return err
		}
	}
	for _, r := range ce.Relations {
		if err := g.UpsertRelation(ctx, tenantID, r); err != nil {
			return err
		}
	}
	return nil
}

func (g *Neo4jGraphStore) linkChunkToEntity(ctx context.Context, tenantID, chunkID string, e ragdomain.Entity, edge ragdomain.EdgeType) error {
	session := g.session(ctx)
	defer func() { _ = session.Close(ctx) }()

	query := fmt.Sprintf(
		`MATCH (c:Chunk {tenant_id: $tenant_id, chunk_id: $chunk_id})
		 MATCH (e:%s {tenant_id: $tenant_id, entity_id: $entity_id})
		 MERGE (c)-[:%s]->(e)`,
		string(e.Label), string(edge),
	)
	_, err := session.Run(ctx, query, map[string]any{
		"tenant_id": tenantID,
		"chunk_id":  chunkID,
		"entity_id": e.EntityID,
	})
	return err
}

func (g *Neo4jGraphStore) DeleteDocument(ctx context.Context, tenantID, documentID string) error {
	session := g.session(ctx)
	defer func() { _ = session.Close(ctx) }()

	_, err := session.Run(ctx,
		`MATCH (c:Chunk {tenant_id: $tenant_id, document_id: $document_id}) DETACH DELETE c`,
		map[string]any{"tenant_id": tenantID, "document_id": documentID})
	return err
}

// EntitiesByLabel returns every entity of the given label whose
// updated_at_ts is at or after since, together with every entity that has
// no updated_at_ts, for the dedup engine's incremental scan. UpsertEntity
// does not write updated_at_ts, so entities written by this store are
// always returned.
func (g *Neo4jGraphStore) EntitiesByLabel(ctx context.Context, tenantID string, label ragdomain.Label, since int64) ([]ragdomain.Entity, error) {
	session := g.session(ctx)
	defer func() { _ = session.Close(ctx) }()

	// Legacy entities predating the timestamp field (updated_at_ts IS NULL)
	// are always included alongside anything updated since the cutoff, so an
	// incremental scan still compares new entities against the full
	// historical graph rather than missing everything older than `since`.
	query := fmt.Sprintf(`MATCH (e:%s {tenant_id: $tenant_id}) WHERE e.updated_at_ts IS NULL OR e.updated_at_ts >= $since RETURN e`, string(label))
	result, err := session.Run(ctx, query, map[string]any{"tenant_id": tenantID, "since": since})
	if err != nil {
		return nil, err
	}
	var out []ragdomain.Entity
	for result.Next(ctx) {
		record := result.Record()
		node, ok := record.Values[0].(neo4j.Node)
		if !ok {
			continue
		}
		out = append(out, entityFromNode(label, node))
	}
	return out, result.Err()
}

func entityFromNode(label ragdomain.Label, node neo4j.Node) ragdomain.Entity {
	e := ragdomain.Entity{Label: label, Props: map[string]string{}}
	if v, ok := node.Props["entity_id"].(string); ok {
		e.EntityID = v
	}
	if v, ok := node.Props["name"].(string); ok {
		e.Name = v
	}
	if v, ok := node.Props["embedding"].([]any); ok {
		e.Embedding = make([]float32, len(v))
		for i, f := range v {
			if fv, ok := f.(float64); ok {
				e.Embedding[i] = float32(fv)
			}
		}
	}
	for k, v := range node.Props {
		if k == "entity_id" || k == "name" || k == "tenant_id" || k == "embedding" || k == "updated_at_ts" {
			continue
		}
		if s, ok := v.(string); ok {
			e.Props[k] = s
		}
	}
	return e
}

func chunkFromNode(node neo4j.Node) ragdomain.ChunkNode {
	n := ragdomain.ChunkNode{}
	if v, ok := node.Props["chunk_id"].(string); ok {
		n.ChunkID = v
	}
	if v, ok := node.Props["document_id"].(string); ok {
		n.DocumentID = v
	}
	if v, ok := node.Props["text"].(string); ok {
		n.Text = v
	}
	if v, ok := node.Props["title"].(string); ok {
		n.Title = v
	}
	if v, ok := node.Props["source"].(string); ok {
		n.Source = v
	}
	if v, ok := node.Props["document_type"].(string); ok {
		n.DocumentType = v
	}
	if v, ok := node.Props["created_at_ts"].(int64); ok {
		n.CreatedAtTS = v
		n.HasTimestamp = true
	}
	return n
}

// ExpandNeighbors finds, for each seed chunk, other chunks that MENTIONS an
// entity the seed also mentions — a cheap graph-neighborhood expansion
// standing in for the original's 2-hop VectorContextRetriever traversal.
// hops beyond 1 is not currently supported; callers pass 1 or 2 and get the
// same direct-neighbor set either way, since a second hop back through
// shared entities tends to pull in the whole graph for any popular entity.
func (g *Neo4jGraphStore) ExpandNeighbors(ctx context.Context, tenantID string, seedChunkIDs []string, hops int) ([]ragdomain.ChunkNode, error) {
	if len(seedChunkIDs) == 0 || hops <= 0 {
		return nil, nil
	}
	session := g.session(ctx)
	defer func() { _ = session.Close(ctx) }()

	result, err := session.Run(ctx, `
		MATCH (seed:Chunk {tenant_id: $tenant_id})-[:MENTIONS]->(ent)<-[:MENTIONS]-(neigh:Chunk {tenant_id: $tenant_id})
		WHERE seed.chunk_id IN $seed_ids AND NOT neigh.chunk_id IN $seed_ids
		RETURN DISTINCT neigh`,
		map[string]any{"tenant_id": tenantID, "seed_ids": seedChunkIDs})
	if err != nil {
		return nil, fmt.Errorf("ragstore: expand neighbors: %w", err)
	}
	var out []ragdomain.ChunkNode
	for result.Next(ctx) {
		node, ok := result.Record().Values[0].(neo4j.Node)
		if !ok {
			continue
		}
		out = append(out, chunkFromNode(node))
	}
	return out, result.Err()
}

// RunReadQuery executes a Text2Cypher-generated query after rejecting any
// write clause, then projects each returned record down to allowedFields so
// a prompt-injected or hallucinated query can't exfiltrate arbitrary node
// properties.
func (g *Neo4jGraphStore) RunReadQuery(ctx context.Context, tenantID string, cypher string, params map[string]any, allowedFields []string) ([]map[string]any, error) {
	upper := strings.ToUpper(cypher)
	for _, kw := range writeKeywords {
		if strings.Contains(upper, kw) {
			return nil, ErrUnsafeReadQuery
		}
	}
	allowed := make(map[string]bool, len(allowedFields))
	for _, f := range allowedFields {
		allowed[f] = true
	}

	if params == nil {
		params = map[string]any{}
	}
	params["tenant_id"] = tenantID

	session := g.session(ctx)
	defer func() { _ = session.Close(ctx) }()

	result, err := session.Run(ctx, cypher, params)
	if err != nil {
		return nil, fmt.Errorf("ragstore: run generated read query: %w", err)
	}
	var out []map[string]any
	for result.Next(ctx) {
		record := result.Record()
		row := make(map[string]any, len(allowedFields))
		for i, key := range record.Keys {
			if !allowed[key] {
				continue
			}
			row[key] = record.Values[i]
		}
		out = append(out, row)
	}
	return out, result.Err()
}

// MergeEntities rewires every edge of each absorbed entity onto primaryID
// and deletes the absorbed nodes, implementing the dedup engine's
// cluster-merge step (§4.5). Cypher can't parameterize a relationship
// type without APOC, so rewired edges land as a generic RELATES type;
// this loses the original relation label on the rewired edge, acceptable
// since merges are rare and the source relation still exists verbatim on
// every node that wasn't absorbed.
func (g *Neo4jGraphStore) MergeEntities(ctx context.Context, tenantID string, primaryID string, absorbedIDs []string) error {
	session := g.session(ctx)
	defer func() { _ = session.Close(ctx) }()

	for _, absorbedID := range absorbedIDs {
		_, err := session.Run(ctx, `
			MATCH (p {tenant_id: $tenant_id, entity_id: $primary_id})
			MATCH (a {tenant_id: $tenant_id, entity_id: $absorbed_id})
			OPTIONAL MATCH (a)-[r]->(other) WHERE other <> p
			FOREACH (_ IN CASE WHEN r IS NULL THEN [] ELSE [1] END |
				MERGE (p)-[r2:RELATES]->(other)
			)
			OPTIONAL MATCH (other2)-[r3]->(a) WHERE other2 <> p
			FOREACH (_ IN CASE WHEN r3 IS NULL THEN [] ELSE [1] END |
				MERGE (other2)-[r4:RELATES]->(p)
			)
			DETACH DELETE a
		`, map[string]any{
			"tenant_id":    tenantID,
			"primary_id":   primaryID,
			"absorbed_id":  absorbedID,
		})
		if err != nil {
			return fmt.Errorf("ragstore: merge entity %s into %s: %w", absorbedID, primaryID, err)
		}
	}
	return nil
}
