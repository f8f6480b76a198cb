package enrich

import (
	"context"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/drugraph/drugraph-api/internal/ingest"
	"github.com/drugraph/drugraph-api/internal/llm"
	"github.com/drugraph/drugraph-api/internal/neo4j"
	"github.com/drugraph/drugraph-api/internal/qdrant"
)

// Graph is the slice of the graph store the enricher reads and writes.
type Graph interface {
	ListAllDrugs(ctx context.Context) ([]map[string]any, error)
	DistinctDrugProperty(ctx context.Context, property string) ([]string, error)
	MergeNodes(ctx context.Context, label string, rows []neo4j.NodeRow) error
	MergeRelationships(ctx context.Context, relType, fromLabel, toLabel string, rows []neo4j.RelRow) error
	Write(ctx context.Context, cypher string, params map[string]any) error
}

// VectorStore holds embedded MOA descriptions.
type VectorStore interface {
	Upsert(ctx context.Context, moa string, vector []float32) error
	Similar(ctx context.Context, vector []float32, limit int, excludeMOA string) ([]qdrant.MOAMatch, error)
}

// Enricher derives aggregation nodes and MOA similarity edges from drug
// properties already present in the graph.
type Enricher struct {
	graph    Graph
	embedder llm.Embedder
	vectors  VectorStore

	// Concurrency bounds the number of in-flight embedding calls.
	Concurrency int
	// SimilarLimit is how many neighbours to request per drug.
	SimilarLimit int
	// MinScore drops similarity matches below this cosine score.
	MinScore float32
}

func New(graph Graph, embedder llm.Embedder, vectors VectorStore) *Enricher {
	return &Enricher{
		graph:        graph,
		embedder:     embedder,
		vectors:      vectors,
		Concurrency:  4,
		SimilarLimit: 5,
		MinScore:     0.75,
	}
}

// categoryRule maps a multi-valued drug property to an aggregation node
// label and its relationship type.
type categoryRule struct {
	Property string
	Label    string
	RelType  string
}

var categoryRules = []categoryRule{
	{"disease_area", "DiseaseArea", "TREATS"},
	{"indication", "Indication", "BELONGS_TO"},
	{"vendor", "Vendor", "SUPPLIED_BY"},
	{"moa", "MOA", "HAS_MOA"},
}

// AggregateCategories reads every drug and merges one aggregation node per
// distinct category value, linked back to its drugs. Existing nodes and
// edges are matched, so re-running is idempotent. The read is deliberately
// unpaginated: a capped listing would silently drop drugs from the layer.
func (e *Enricher) AggregateCategories(ctx context.Context) (map[string]int, error) {
	drugs, err := e.graph.ListAllDrugs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list drugs: %w", err)
	}

	counts := make(map[string]int)
	for _, rule := range categoryRules {
		seen := make(map[string]bool)
		var nodes []neo4j.NodeRow
		var rels []neo4j.RelRow

		for _, drug := range drugs {
			name, _ := drug["name"].(string)
			raw, _ := drug[rule.Property].(string)
			if name == "" || raw == "" {
				continue
			}
			for _, value := range ingest.SplitValues(raw, ingest.DefaultDelimiter) {
				if !seen[value] {
					seen[value] = true
					nodes = append(nodes, neo4j.NodeRow{Name: value})
				}
				rels = append(rels, neo4j.RelRow{From: name, To: value})
			}
		}

		if len(nodes) == 0 {
			continue
		}
		if err := e.graph.MergeNodes(ctx, rule.Label, nodes); err != nil {
			return nil, fmt.Errorf("failed to merge %s nodes: %w", rule.Label, err)
		}
		if err := e.graph.MergeRelationships(ctx, rule.RelType, "Drug", rule.Label, rels); err != nil {
			return nil, fmt.Errorf("failed to merge %s relationships: %w", rule.RelType, err)
		}
		counts[rule.Label] = len(nodes)
		log.Printf("[Enrich] Merged %d %s nodes, %d %s relationships", len(nodes), rule.Label, len(rels), rule.RelType)
	}
	return counts, nil
}

// AggregateTherapeuticClasses derives TherapeuticClass nodes from the
// target_class recorded on classified TARGETS relationships.
func (e *Enricher) AggregateTherapeuticClasses(ctx context.Context) error {
	cypher := `
		MATCH (d:Drug)-[r:TARGETS]->()
		WHERE r.target_class IS NOT NULL AND r.target_class <> ''
		MERGE (c:TherapeuticClass {name: r.target_class})
		MERGE (d)-[:BELONGS_TO_CLASS]->(c)
	`
	if err := e.graph.Write(ctx, cypher, nil); err != nil {
		return fmt.Errorf("failed to aggregate therapeutic classes: %w", err)
	}
	return nil
}

// BuildMOASimilarity embeds every distinct mechanism-of-action string,
// stores the vectors, then links MOA nodes whose vectors are close with
// SIMILAR_MOA edges carrying the cosine score.
func (e *Enricher) BuildMOASimilarity(ctx context.Context) (int, error) {
	raw, err := e.graph.DistinctDrugProperty(ctx, "moa")
	if err != nil {
		return 0, fmt.Errorf("failed to list MOA values: %w", err)
	}

	// Cells may carry several comma-separated mechanisms.
	seen := make(map[string]bool)
	var moas []string
	for _, cell := range raw {
		for _, moa := range ingest.SplitValues(cell, ingest.DefaultDelimiter) {
			if !seen[moa] {
				seen[moa] = true
				moas = append(moas, moa)
			}
		}
	}

	type embedded struct {
		MOA    string
		Vector []float32
	}

	var mu sync.Mutex
	var all []embedded

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.Concurrency)
	for _, moa := range moas {
		g.Go(func() error {
			vector, err := e.embedder.EmbedText(gctx, moa)
			if err != nil {
				return fmt.Errorf("failed to embed MOA %q: %w", moa, err)
			}
			if err := e.vectors.Upsert(gctx, moa, vector); err != nil {
				return err
			}
			mu.Lock()
			all = append(all, embedded{MOA: moa, Vector: vector})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	log.Printf("[Enrich] Embedded %d distinct MOA strings", len(all))

	// Graph writes stay sequential.
	linked := 0
	for _, emb := range all {
		matches, err := e.vectors.Similar(ctx, emb.Vector, e.SimilarLimit, emb.MOA)
		if err != nil {
			return linked, fmt.Errorf("similarity search failed for %q: %w", emb.MOA, err)
		}
		for _, match := range matches {
			if match.Score < e.MinScore {
				continue
			}
			cypher := `
				MATCH (a:MOA {name: $a})
				MATCH (b:MOA {name: $b})
				MERGE (a)-[r:SIMILAR_MOA]->(b)
				SET r.similarity = $score
			`
			err := e.graph.Write(ctx, cypher, map[string]any{
				"a":     emb.MOA,
				"b":     match.MOA,
				"score": match.Score,
			})
			if err != nil {
				return linked, fmt.Errorf("failed to link %q to %q: %w", emb.MOA, match.MOA, err)
			}
			linked++
		}
	}
	log.Printf("[Enrich] Created %d SIMILAR_MOA links", linked)
	return linked, nil
}

// Run executes the full enrichment pass: category aggregation, therapeutic
// classes, then MOA similarity when a vector store is configured.
func (e *Enricher) Run(ctx context.Context) error {
	if _, err := e.AggregateCategories(ctx); err != nil {
		return err
	}
	if err := e.AggregateTherapeuticClasses(ctx); err != nil {
		return err
	}
	if e.vectors != nil && e.embedder != nil {
		if _, err := e.BuildMOASimilarity(ctx); err != nil {
			return err
		}
	}
	return nil
}
