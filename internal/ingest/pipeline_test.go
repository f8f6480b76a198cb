package ingest

import (
	"context"
	"strings"
	"testing"
)

func hubSource(rows []Row) *Source {
	return &Source{
		Path:    "test.txt",
		Columns: []string{"pert_iname", "clinical_phase", "moa", "target", "disease_area", "indication", "vendor"},
		Rows:    rows,
	}
}

func TestPipeline_MergesNodesAndRelationships(t *testing.T) {
	src := hubSource([]Row{
		{
			"pert_iname":     "aspirin",
			"clinical_phase": "Approved",
			"moa":            "cyclooxygenase inhibitor",
			"target":         "PTGS1, PTGS2",
			"disease_area":   "cardiology",
			"indication":     "pain",
			"vendor":         "MedChem",
		},
	})
	mapping := AutoDetect(src.Columns)
	graph := NewMockGraphWriter()

	summary, err := NewPipeline(graph).Run(context.Background(), src, mapping)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if graph.NodeCount("Drug") != 1 {
		t.Errorf("expected 1 Drug node, got %d", graph.NodeCount("Drug"))
	}
	if graph.NodeCount("Target") != 2 {
		t.Errorf("expected 2 Target nodes, got %d", graph.NodeCount("Target"))
	}
	if graph.RelCount("TARGETS") != 2 {
		t.Errorf("expected 2 TARGETS relationships, got %d", graph.RelCount("TARGETS"))
	}
	if graph.RelCount("TREATS") != 1 {
		t.Errorf("expected 1 TREATS relationship, got %d", graph.RelCount("TREATS"))
	}

	props := graph.Nodes["Drug"]["aspirin"]
	if props["moa"] != "cyclooxygenase inhibitor" {
		t.Errorf("expected moa property on drug, got %v", props["moa"])
	}
	if props["development_phase"] != "Approved" {
		t.Errorf("expected development_phase property on drug, got %v", props["development_phase"])
	}

	if summary.RowsProcessed != 1 {
		t.Errorf("expected 1 row processed, got %d", summary.RowsProcessed)
	}
	if summary.SkippedEndpoints != 0 {
		t.Errorf("expected no skipped endpoints, got %d", summary.SkippedEndpoints)
	}
}

// Ingesting the same source twice must leave node and relationship counts
// unchanged: everything merges by key.
func TestPipeline_Idempotence(t *testing.T) {
	src := hubSource([]Row{
		{"pert_iname": "aspirin", "moa": "cyclooxygenase inhibitor", "clinical_phase": "Approved", "target": "PTGS1|PTGS2"},
	})
	// Pipe-delimited targets for this dataset variant.
	mapping := AutoDetect(src.Columns)
	target := mapping.Entities["Target"]
	target.Delimiter = "|"
	mapping.Entities["Target"] = target
	for i := range mapping.Relationships {
		if mapping.Relationships[i].Type == "TARGETS" {
			mapping.Relationships[i].Delimiter = "|"
		}
	}

	graph := NewMockGraphWriter()
	pipeline := NewPipeline(graph)

	for pass := 0; pass < 2; pass++ {
		if _, err := pipeline.Run(context.Background(), src, mapping); err != nil {
			t.Fatalf("pass %d failed: %v", pass, err)
		}
	}

	if graph.NodeCount("Drug") != 1 {
		t.Errorf("expected exactly 1 Drug node after double ingest, got %d", graph.NodeCount("Drug"))
	}
	if graph.NodeCount("Target") != 2 {
		t.Errorf("expected exactly 2 Target nodes after double ingest, got %d", graph.NodeCount("Target"))
	}
	if graph.RelCount("TARGETS") != 2 {
		t.Errorf("expected exactly 2 TARGETS relationships after double ingest, got %d", graph.RelCount("TARGETS"))
	}
}

func TestPipeline_ValidationFailsFast(t *testing.T) {
	src := hubSource([]Row{{"pert_iname": "aspirin"}})
	mapping := &Mapping{
		Entities: map[string]EntityMapping{
			"Drug": {Label: "Drug", IDColumn: "nonexistent_column"},
		},
	}

	graph := NewMockGraphWriter()
	_, err := NewPipeline(graph).Run(context.Background(), src, mapping)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "nonexistent_column") {
		t.Errorf("expected missing column in error, got %v", err)
	}
	if len(graph.Nodes) != 0 {
		t.Error("validation failure must not write anything")
	}
}

// A relationship row referencing a target that was never merged as a node
// must not crash the run and must not affect other targets; the skip is
// counted and recorded instead of being dropped silently.
func TestPipeline_UnresolvableEndpointSkipped(t *testing.T) {
	// The relationship column names an endpoint (GHOST9) that the Target
	// entity column never produces as a node.
	src2 := &Source{
		Path:    "test2.txt",
		Columns: []string{"pert_iname", "target", "secondary_targets"},
		Rows: []Row{
			{"pert_iname": "aspirin", "target": "PTGS1", "secondary_targets": "PTGS1,GHOST9"},
		},
	}
	mapping2 := &Mapping{
		Entities: map[string]EntityMapping{
			"Drug":   {Label: "Drug", IDColumn: "pert_iname"},
			"Target": {Label: "Target", IDColumn: "target", Delimiter: ","},
		},
		Relationships: []RelationshipMapping{
			{Type: "TARGETS", FromEntity: "Drug", ToEntity: "Target", ValueColumn: "secondary_targets", Delimiter: ","},
		},
	}

	graph2 := NewMockGraphWriter()
	summary2, err := NewPipeline(graph2).Run(context.Background(), src2, mapping2)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if graph2.RelCount("TARGETS") != 1 {
		t.Errorf("expected 1 TARGETS relationship (GHOST9 skipped), got %d", graph2.RelCount("TARGETS"))
	}
	if summary2.SkippedEndpoints != 1 {
		t.Errorf("expected 1 skipped endpoint, got %d", summary2.SkippedEndpoints)
	}
	if len(summary2.Errors) != 1 {
		t.Fatalf("expected 1 row error, got %d", len(summary2.Errors))
	}
	if summary2.Errors[0].Row != 1 {
		t.Errorf("expected row 1 in error, got %d", summary2.Errors[0].Row)
	}
	if !strings.Contains(summary2.Errors[0].Message, "GHOST9") {
		t.Errorf("expected GHOST9 in error message, got %q", summary2.Errors[0].Message)
	}
}

// A row with a blank source identifier cannot anchor its relationships.
// The skip must be counted and recorded just like an unresolvable endpoint.
func TestPipeline_EmptyIdentifierRowsIgnored(t *testing.T) {
	src := &Source{
		Path:    "test.txt",
		Columns: []string{"pert_iname", "target"},
		Rows: []Row{
			{"pert_iname": "aspirin", "target": "PTGS1"},
			{"pert_iname": "   ", "target": "PTGS2"},
		},
	}
	mapping := AutoDetect(src.Columns)

	graph := NewMockGraphWriter()
	summary, err := NewPipeline(graph).Run(context.Background(), src, mapping)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if graph.NodeCount("Drug") != 1 {
		t.Errorf("expected 1 Drug node (blank identifier skipped), got %d", graph.NodeCount("Drug"))
	}
	if graph.RelCount("TARGETS") != 1 {
		t.Errorf("expected 1 TARGETS relationship, got %d", graph.RelCount("TARGETS"))
	}
	if summary.SkippedEndpoints != 1 {
		t.Errorf("expected the blank-identifier row to count as 1 skipped endpoint, got %d", summary.SkippedEndpoints)
	}
	if len(summary.Errors) != 1 {
		t.Fatalf("expected 1 row error, got %d", len(summary.Errors))
	}
	if summary.Errors[0].Row != 2 || summary.Errors[0].Column != "pert_iname" {
		t.Errorf("expected error on row 2 column pert_iname, got row %d column %q",
			summary.Errors[0].Row, summary.Errors[0].Column)
	}
}
