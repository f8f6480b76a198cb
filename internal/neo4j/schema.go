package neo4j

import (
	"context"
	"fmt"
	"log"
	"strings"
)

// uniqueNameLabels are the labels whose nodes are keyed by a unique name.
var uniqueNameLabels = []string{
	"Drug", "Target", "Pathway", "Metabolite", "CellularProcess", "Protein",
	"DiseaseArea", "Indication", "Vendor", "MOA", "TherapeuticClass",
}

// EnsureSchema declares the uniqueness constraints and indexes the data
// model relies on. Statements use IF NOT EXISTS so setup is idempotent.
func (c *Client) EnsureSchema(ctx context.Context) error {
	for _, label := range uniqueNameLabels {
		cypher := fmt.Sprintf(
			`CREATE CONSTRAINT %s_name_unique IF NOT EXISTS FOR (n:%s) REQUIRE n.name IS UNIQUE`,
			strings.ToLower(label), label,
		)
		if _, err := c.run(ctx, cypher, nil); err != nil {
			return fmt.Errorf("failed to create uniqueness constraint for %s: %w", label, err)
		}
	}

	// Gene nodes are additionally keyed by symbol (cascade storage).
	if _, err := c.run(ctx,
		`CREATE CONSTRAINT gene_symbol_unique IF NOT EXISTS FOR (n:Gene) REQUIRE n.symbol IS UNIQUE`, nil); err != nil {
		return fmt.Errorf("failed to create Gene symbol constraint: %w", err)
	}

	if _, err := c.run(ctx,
		`CREATE INDEX drug_phase_idx IF NOT EXISTS FOR (n:Drug) ON (n.development_phase)`, nil); err != nil {
		return fmt.Errorf("failed to create Drug phase index: %w", err)
	}

	log.Printf("[Neo4j] Schema constraints ensured for %d labels", len(uniqueNameLabels)+1)
	return nil
}
