package ingest

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/drugraph/drugraph-api/internal/neo4j"
)

// MockGraphWriter records merges in memory. Used by pipeline tests and for
// dry-running a mapping without a database.
type MockGraphWriter struct {
	mu    sync.Mutex
	Nodes map[string]map[string]map[string]any // label -> name -> props
	Rels  map[string]map[string]map[string]any // type -> "from->to" -> props

	FailNodes bool
	FailRels  bool
}

// NewMockGraphWriter creates an empty mock graph.
func NewMockGraphWriter() *MockGraphWriter {
	return &MockGraphWriter{
		Nodes: map[string]map[string]map[string]any{},
		Rels:  map[string]map[string]map[string]any{},
	}
}

func (m *MockGraphWriter) MergeNodes(ctx context.Context, label string, rows []neo4j.NodeRow) error {
	if m.FailNodes {
		return fmt.Errorf("simulated node merge failure")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Nodes[label] == nil {
		m.Nodes[label] = map[string]map[string]any{}
	}
	for _, r := range rows {
		existing := m.Nodes[label][r.Name]
		if existing == nil {
			existing = map[string]any{}
		}
		for k, v := range r.Props {
			existing[k] = v // last write wins, like SET n +=
		}
		m.Nodes[label][r.Name] = existing
	}
	log.Printf("[MockGraph] Merged %d %s nodes", len(rows), label)
	return nil
}

func (m *MockGraphWriter) MergeRelationships(ctx context.Context, relType, fromLabel, toLabel string, rows []neo4j.RelRow) error {
	if m.FailRels {
		return fmt.Errorf("simulated relationship merge failure")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Rels[relType] == nil {
		m.Rels[relType] = map[string]map[string]any{}
	}
	for _, r := range rows {
		key := r.From + "->" + r.To
		existing := m.Rels[relType][key]
		if existing == nil {
			existing = map[string]any{}
		}
		for k, v := range r.Props {
			existing[k] = v
		}
		m.Rels[relType][key] = existing
	}
	log.Printf("[MockGraph] Merged %d %s relationships", len(rows), relType)
	return nil
}

// NodeCount returns the number of distinct nodes for a label.
func (m *MockGraphWriter) NodeCount(label string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Nodes[label])
}

// RelCount returns the number of distinct relationships for a type.
func (m *MockGraphWriter) RelCount(relType string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Rels[relType])
}
