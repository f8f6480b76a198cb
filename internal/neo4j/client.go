package neo4j

import (
	"context"
	"fmt"
	"log"

	"github.com/neo4j/neo4j-go-driver/v6/neo4j"
)

// Client wraps the official Neo4j Go driver with the parameterized
// merge/query operations the rest of the system needs. All persistence,
// querying and indexing is delegated to the database engine.
type Client struct {
	driver   neo4j.Driver
	database string
}

// NewClient creates a new Neo4j client and verifies connectivity.
func NewClient(ctx context.Context, uri, user, password, database string) (*Client, error) {
	driver, err := neo4j.NewDriver(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create Neo4j driver for %s: %w", uri, err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		if closeErr := driver.Close(ctx); closeErr != nil {
			log.Printf("[Neo4j] Warning: failed to close driver after connectivity check: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to verify Neo4j connectivity at %s: %w", uri, err)
	}

	log.Printf("[Neo4j] Connected to %s as %s", uri, user)
	return &Client{driver: driver, database: database}, nil
}

func (c *Client) run(ctx context.Context, cypher string, params map[string]any) (*neo4j.EagerResult, error) {
	return neo4j.ExecuteQuery(ctx, c.driver, cypher, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(c.database),
	)
}

// Write executes an arbitrary parameterized write statement. Enrichment
// passes compose their own Cypher through this.
func (c *Client) Write(ctx context.Context, cypher string, params map[string]any) error {
	if _, err := c.run(ctx, cypher, params); err != nil {
		return fmt.Errorf("neo4j write failed: %w", err)
	}
	return nil
}

// NodeRow is one batched node upsert.
type NodeRow struct {
	Name  string
	Props map[string]any
}

// MergeNodes upserts a batch of nodes of one label, keyed by name, in a
// single UNWIND statement.
func (c *Client) MergeNodes(ctx context.Context, label string, rows []NodeRow) error {
	if len(rows) == 0 {
		return nil
	}

	params := make([]map[string]any, 0, len(rows))
	for _, r := range rows {
		props := r.Props
		if props == nil {
			props = map[string]any{}
		}
		params = append(params, map[string]any{"name": r.Name, "props": props})
	}

	cypher := fmt.Sprintf(`
		UNWIND $rows AS row
		MERGE (n:%s {name: row.name})
		SET n += row.props
	`, label)

	if _, err := c.run(ctx, cypher, map[string]any{"rows": params}); err != nil {
		return fmt.Errorf("neo4j batch merge of %d %s nodes failed: %w", len(rows), label, err)
	}
	return nil
}

// RelRow is one batched relationship upsert between two named nodes.
type RelRow struct {
	From  string
	To    string
	Props map[string]any
}

// MergeRelationships upserts relationships between already-merged nodes.
// Endpoints are matched, not merged: a row whose endpoint node does not
// exist matches nothing and contributes zero relationships.
func (c *Client) MergeRelationships(ctx context.Context, relType, fromLabel, toLabel string, rows []RelRow) error {
	if len(rows) == 0 {
		return nil
	}

	params := make([]map[string]any, 0, len(rows))
	for _, r := range rows {
		props := r.Props
		if props == nil {
			props = map[string]any{}
		}
		params = append(params, map[string]any{"from": r.From, "to": r.To, "props": props})
	}

	cypher := fmt.Sprintf(`
		UNWIND $rows AS row
		MATCH (a:%s {name: row.from})
		MATCH (b:%s {name: row.to})
		MERGE (a)-[r:%s]->(b)
		SET r += row.props
	`, fromLabel, toLabel, relType)

	if _, err := c.run(ctx, cypher, map[string]any{"rows": params}); err != nil {
		return fmt.Errorf("neo4j batch merge of %d %s relationships failed: %w", len(rows), relType, err)
	}
	return nil
}

// NodeExists reports whether a node with the given label and name exists.
func (c *Client) NodeExists(ctx context.Context, label, name string) (bool, error) {
	cypher := fmt.Sprintf(`MATCH (n:%s {name: $name}) RETURN count(n) AS cnt LIMIT 1`, label)
	result, err := c.run(ctx, cypher, map[string]any{"name": name})
	if err != nil {
		return false, fmt.Errorf("neo4j existence check failed for %s %q: %w", label, name, err)
	}
	if len(result.Records) == 0 {
		return false, nil
	}
	cnt, _, err := neo4j.GetRecordValue[int64](result.Records[0], "cnt")
	if err != nil {
		return false, fmt.Errorf("neo4j result parse failed: %w", err)
	}
	return cnt > 0, nil
}

// TargetsRelationship returns the properties of the TARGETS relationship
// between a drug and a target, or found=false when no such edge exists.
func (c *Client) TargetsRelationship(ctx context.Context, drug, target string) (map[string]any, bool, error) {
	cypher := `
		MATCH (d:Drug {name: $drug})-[r:TARGETS]->(t:Target {name: $target})
		RETURN properties(r) AS props
		LIMIT 1
	`
	result, err := c.run(ctx, cypher, map[string]any{"drug": drug, "target": target})
	if err != nil {
		return nil, false, fmt.Errorf("neo4j TARGETS lookup failed for (%s, %s): %w", drug, target, err)
	}
	if len(result.Records) == 0 {
		return nil, false, nil
	}
	props, _, err := neo4j.GetRecordValue[map[string]any](result.Records[0], "props")
	if err != nil {
		return nil, false, fmt.Errorf("neo4j result parse failed: %w", err)
	}
	return props, true, nil
}

// SetTargetsClassification merges the target node and the TARGETS edge,
// then writes the classification properties onto the edge. The target is
// created lazily so a classification never fails on a missing node.
func (c *Client) SetTargetsClassification(ctx context.Context, drug, target string, props map[string]any) error {
	cypher := `
		MATCH (d:Drug {name: $drug})
		MERGE (t:Target {name: $target})
		MERGE (d)-[r:TARGETS]->(t)
		SET r += $props
		RETURN count(r) AS cnt
	`
	result, err := c.run(ctx, cypher, map[string]any{
		"drug":   drug,
		"target": target,
		"props":  props,
	})
	if err != nil {
		return fmt.Errorf("neo4j classification write failed for (%s, %s): %w", drug, target, err)
	}
	if len(result.Records) == 0 {
		return fmt.Errorf("drug %q not found in graph", drug)
	}
	cnt, _, err := neo4j.GetRecordValue[int64](result.Records[0], "cnt")
	if err != nil {
		return fmt.Errorf("neo4j result parse failed: %w", err)
	}
	if cnt == 0 {
		return fmt.Errorf("drug %q not found in graph", drug)
	}
	return nil
}

// DownstreamEffectRecord is one stored AFFECTS_DOWNSTREAM edge.
type DownstreamEffectRecord struct {
	EntityName string
	EntityType string
	Props      map[string]any
}

// MergeDownstreamEffect upserts a downstream node and its
// AFFECTS_DOWNSTREAM edge from the primary target. The edge is keyed by
// the drug context so two drugs cascading through the same target keep
// distinct records.
func (c *Client) MergeDownstreamEffect(ctx context.Context, target, entityLabel, entityKey, entityValue, drugContext string, props map[string]any) error {
	cypher := fmt.Sprintf(`
		MATCH (t:Target {name: $target})
		MERGE (e:%s {%s: $value})
		SET e.name = coalesce(e.name, $value)
		MERGE (t)-[r:AFFECTS_DOWNSTREAM {drug_context: $drugContext}]->(e)
		SET r += $props
	`, entityLabel, entityKey)

	if _, err := c.run(ctx, cypher, map[string]any{
		"target":      target,
		"value":       entityValue,
		"drugContext": drugContext,
		"props":       props,
	}); err != nil {
		return fmt.Errorf("neo4j downstream effect write failed for %s -> %s: %w", target, entityValue, err)
	}
	return nil
}

// DownstreamEffects returns every AFFECTS_DOWNSTREAM edge from a target
// filtered by drug context and minimum confidence.
func (c *Client) DownstreamEffects(ctx context.Context, target, drugContext string, minConfidence float64) ([]DownstreamEffectRecord, error) {
	cypher := `
		MATCH (t:Target {name: $target})-[r:AFFECTS_DOWNSTREAM]->(e)
		WHERE r.drug_context = $drugContext AND coalesce(r.confidence, 0.0) >= $minConfidence
		RETURN coalesce(e.name, e.symbol) AS entity_name, labels(e)[0] AS entity_type, properties(r) AS props
	`
	result, err := c.run(ctx, cypher, map[string]any{
		"target":        target,
		"drugContext":   drugContext,
		"minConfidence": minConfidence,
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j downstream effect query failed for %s: %w", target, err)
	}

	var out []DownstreamEffectRecord
	for _, record := range result.Records {
		name, _, _ := neo4j.GetRecordValue[string](record, "entity_name")
		entityType, _, _ := neo4j.GetRecordValue[string](record, "entity_type")
		props, _, _ := neo4j.GetRecordValue[map[string]any](record, "props")
		out = append(out, DownstreamEffectRecord{
			EntityName: name,
			EntityType: entityType,
			Props:      props,
		})
	}
	return out, nil
}

// DrugRecord is a drug node with its TARGETS edges, as returned to the
// presentation layer.
type DrugRecord struct {
	Name    string
	Props   map[string]any
	Targets []TargetLink
}

// TargetLink pairs a target name with the TARGETS edge properties.
type TargetLink struct {
	Target string
	Props  map[string]any
}

// GetDrug fetches one drug and its TARGETS relationships.
func (c *Client) GetDrug(ctx context.Context, name string) (*DrugRecord, error) {
	cypher := `
		MATCH (d:Drug {name: $name})
		OPTIONAL MATCH (d)-[r:TARGETS]->(t:Target)
		RETURN properties(d) AS drug, collect({target: t.name, props: properties(r)}) AS targets
	`
	result, err := c.run(ctx, cypher, map[string]any{"name": name})
	if err != nil {
		return nil, fmt.Errorf("neo4j drug lookup failed for %q: %w", name, err)
	}
	if len(result.Records) == 0 {
		return nil, nil
	}

	props, _, err := neo4j.GetRecordValue[map[string]any](result.Records[0], "drug")
	if err != nil {
		return nil, fmt.Errorf("neo4j result parse failed: %w", err)
	}

	rec := &DrugRecord{Name: name, Props: props}
	targets, _, _ := neo4j.GetRecordValue[[]any](result.Records[0], "targets")
	for _, raw := range targets {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		targetName, _ := m["target"].(string)
		if targetName == "" {
			continue // OPTIONAL MATCH with no edges yields one null entry
		}
		edgeProps, _ := m["props"].(map[string]any)
		rec.Targets = append(rec.Targets, TargetLink{Target: targetName, Props: edgeProps})
	}
	return rec, nil
}

// ListDrugs returns drug property maps, optionally filtered by development
// phase and disease area.
func (c *Client) ListDrugs(ctx context.Context, phase, diseaseArea string, limit int) ([]map[string]any, error) {
	if limit <= 0 {
		limit = 50
	}
	cypher := `
		MATCH (d:Drug)
		WHERE ($phase = '' OR d.development_phase = $phase)
		  AND ($diseaseArea = '' OR d.disease_area CONTAINS $diseaseArea)
		RETURN properties(d) AS drug
		ORDER BY d.name
		LIMIT $limit
	`
	result, err := c.run(ctx, cypher, map[string]any{
		"phase":       phase,
		"diseaseArea": diseaseArea,
		"limit":       limit,
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j drug list failed: %w", err)
	}

	var out []map[string]any
	for _, record := range result.Records {
		props, _, _ := neo4j.GetRecordValue[map[string]any](record, "drug")
		out = append(out, props)
	}
	return out, nil
}

// ListAllDrugs returns every drug property map without a result cap.
// Enrichment passes derive the aggregation layer from the full drug set,
// so they must never see a truncated page.
func (c *Client) ListAllDrugs(ctx context.Context) ([]map[string]any, error) {
	cypher := `
		MATCH (d:Drug)
		RETURN properties(d) AS drug
		ORDER BY d.name
	`
	result, err := c.run(ctx, cypher, nil)
	if err != nil {
		return nil, fmt.Errorf("neo4j full drug list failed: %w", err)
	}

	var out []map[string]any
	for _, record := range result.Records {
		props, _, _ := neo4j.GetRecordValue[map[string]any](record, "drug")
		out = append(out, props)
	}
	return out, nil
}

// TargetPair is one (drug, target) edge returned by TargetPairs.
type TargetPair struct {
	Drug   string
	Target string
}

// TargetPairs returns every TARGETS edge, optionally restricted to those
// not yet classified. Batch passes iterate over this set.
func (c *Client) TargetPairs(ctx context.Context, onlyUnclassified bool) ([]TargetPair, error) {
	cypher := `
		MATCH (d:Drug)-[r:TARGETS]->(t:Target)
		WHERE NOT $onlyUnclassified OR coalesce(r.classified, false) = false
		RETURN d.name AS drug, t.name AS target
		ORDER BY drug, target
	`
	result, err := c.run(ctx, cypher, map[string]any{"onlyUnclassified": onlyUnclassified})
	if err != nil {
		return nil, fmt.Errorf("neo4j target pair query failed: %w", err)
	}

	var out []TargetPair
	for _, record := range result.Records {
		drug, _, _ := neo4j.GetRecordValue[string](record, "drug")
		target, _, _ := neo4j.GetRecordValue[string](record, "target")
		if drug == "" || target == "" {
			continue
		}
		out = append(out, TargetPair{Drug: drug, Target: target})
	}
	return out, nil
}

// NodeCounts returns the number of nodes per label.
func (c *Client) NodeCounts(ctx context.Context) (map[string]int64, error) {
	cypher := `MATCH (n) UNWIND labels(n) AS label RETURN label, count(*) AS cnt`
	result, err := c.run(ctx, cypher, nil)
	if err != nil {
		return nil, fmt.Errorf("neo4j node count failed: %w", err)
	}
	counts := make(map[string]int64)
	for _, record := range result.Records {
		label, _, _ := neo4j.GetRecordValue[string](record, "label")
		cnt, _, _ := neo4j.GetRecordValue[int64](record, "cnt")
		counts[label] = cnt
	}
	return counts, nil
}

// RelationshipCounts returns the number of relationships per type.
func (c *Client) RelationshipCounts(ctx context.Context) (map[string]int64, error) {
	cypher := `MATCH ()-[r]->() RETURN type(r) AS rel_type, count(*) AS cnt`
	result, err := c.run(ctx, cypher, nil)
	if err != nil {
		return nil, fmt.Errorf("neo4j relationship count failed: %w", err)
	}
	counts := make(map[string]int64)
	for _, record := range result.Records {
		relType, _, _ := neo4j.GetRecordValue[string](record, "rel_type")
		cnt, _, _ := neo4j.GetRecordValue[int64](record, "cnt")
		counts[relType] = cnt
	}
	return counts, nil
}

// DistinctDrugProperty returns the distinct non-empty values of a drug
// property. Enrichment passes use this to build aggregation nodes.
func (c *Client) DistinctDrugProperty(ctx context.Context, property string) ([]string, error) {
	cypher := fmt.Sprintf(`
		MATCH (d:Drug)
		WHERE d.%s IS NOT NULL AND d.%s <> ''
		RETURN DISTINCT d.%s AS value
	`, property, property, property)
	result, err := c.run(ctx, cypher, nil)
	if err != nil {
		return nil, fmt.Errorf("neo4j distinct %s query failed: %w", property, err)
	}
	var out []string
	for _, record := range result.Records {
		value, _, _ := neo4j.GetRecordValue[string](record, "value")
		if value != "" {
			out = append(out, value)
		}
	}
	return out, nil
}

// ClearDatabase removes every node and relationship. Used only by full
// rebuilds; there is no finer-grained deletion path.
func (c *Client) ClearDatabase(ctx context.Context) error {
	if _, err := c.run(ctx, `MATCH (n) DETACH DELETE n`, nil); err != nil {
		return fmt.Errorf("neo4j clear failed: %w", err)
	}
	log.Printf("[Neo4j] Cleared database %q", c.database)
	return nil
}

// Close closes the underlying Neo4j driver.
func (c *Client) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}
