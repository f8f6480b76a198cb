package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/drugraph/drugraph-api/internal/llm"
)

// SourceTag marks classifications written by this system.
const SourceTag = "drugraph-ai"

// GraphStore is the slice of the graph the classifier reads and writes.
type GraphStore interface {
	TargetsRelationship(ctx context.Context, drug, target string) (map[string]any, bool, error)
	SetTargetsClassification(ctx context.Context, drug, target string, props map[string]any) error
}

// Classification is a structured drug-target relationship label.
type Classification struct {
	RelationshipType string  `json:"relationship_type"` // primary | secondary
	TargetClass      string  `json:"target_class"`
	TargetSubclass   string  `json:"target_subclass"`
	Mechanism        string  `json:"mechanism"`
	Confidence       float64 `json:"confidence"`
	Reasoning        string  `json:"reasoning"`
	Source           string  `json:"source,omitempty"`
	ClassifiedAt     string  `json:"classified_at,omitempty"`
	Cached           bool    `json:"cached"` // true when served from the graph without an API call
}

// Classifier labels drug-target relationships through the LLM, reusing
// stored results unless forced.
type Classifier struct {
	graph GraphStore
	llm   llm.Client
}

// NewClassifier creates a classifier over the given graph store and LLM.
func NewClassifier(graph GraphStore, client llm.Client) *Classifier {
	return &Classifier{graph: graph, llm: client}
}

const classifyPrompt = `You are a pharmacology expert. Classify the relationship between the drug "%s" and the target "%s".
%s
Respond ONLY with a JSON object matching exactly this schema:
{
  "relationship_type": "primary" or "secondary",
  "target_class": "<receptor family or enzyme class>",
  "target_subclass": "<more specific subclass>",
  "mechanism": "<short mechanism label, e.g. inhibitor, agonist>",
  "confidence": <number between 0 and 1>,
  "reasoning": "<one or two sentences>"
}`

// Classify returns the classification for a (drug, target) pair. When the
// relationship is already marked classified, the stored values are returned
// without touching the external API unless force is set.
func (c *Classifier) Classify(ctx context.Context, drug, target, contextText string, force bool) (*Classification, error) {
	if !force {
		props, found, err := c.graph.TargetsRelationship(ctx, drug, target)
		if err != nil {
			return nil, err
		}
		if found {
			if classified, _ := props["classified"].(bool); classified {
				log.Printf("[Classify] Reusing stored classification for (%s, %s)", drug, target)
				return fromProps(props), nil
			}
		}
	}

	contextBlock := ""
	if contextText != "" {
		contextBlock = fmt.Sprintf("Additional context: %s\n", contextText)
	}
	prompt := fmt.Sprintf(classifyPrompt, drug, target, contextBlock)

	resp, err := c.llm.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("classification of (%s, %s) failed: %w", drug, target, err)
	}

	result, err := parseClassification(resp)
	if err != nil {
		return nil, fmt.Errorf("classification of (%s, %s) failed: %w", drug, target, err)
	}

	result.Source = SourceTag
	result.ClassifiedAt = time.Now().UTC().Format(time.RFC3339)

	props := map[string]any{
		"relationship_type":     result.RelationshipType,
		"target_class":          result.TargetClass,
		"target_subclass":       result.TargetSubclass,
		"mechanism":             result.Mechanism,
		"confidence":            result.Confidence,
		"reasoning":             result.Reasoning,
		"classification_source": result.Source,
		"classified_at":         result.ClassifiedAt,
		"classified":            true,
	}
	if err := c.graph.SetTargetsClassification(ctx, drug, target, props); err != nil {
		return nil, err
	}

	return result, nil
}

// classificationWire is the exact JSON schema the model is asked for.
// Confidence is a pointer so a missing field is distinguishable from 0.
type classificationWire struct {
	RelationshipType string   `json:"relationship_type"`
	TargetClass      string   `json:"target_class"`
	TargetSubclass   string   `json:"target_subclass"`
	Mechanism        string   `json:"mechanism"`
	Confidence       *float64 `json:"confidence"`
	Reasoning        string   `json:"reasoning"`
}

func parseClassification(resp string) (*Classification, error) {
	jsonStr, err := llm.ExtractJSONObject(resp)
	if err != nil {
		return nil, err
	}

	var wire classificationWire
	if err := json.Unmarshal([]byte(jsonStr), &wire); err != nil {
		return nil, fmt.Errorf("invalid classification JSON: %w", err)
	}

	if wire.RelationshipType == "" {
		return nil, fmt.Errorf("classification response missing relationship_type")
	}
	if wire.RelationshipType != "primary" && wire.RelationshipType != "secondary" {
		return nil, fmt.Errorf("unexpected relationship_type %q", wire.RelationshipType)
	}
	if wire.TargetClass == "" {
		return nil, fmt.Errorf("classification response missing target_class")
	}
	if wire.Confidence == nil {
		return nil, fmt.Errorf("classification response missing confidence")
	}

	// Confidence is a pass-through model value: stored as-is, never clamped.
	return &Classification{
		RelationshipType: wire.RelationshipType,
		TargetClass:      wire.TargetClass,
		TargetSubclass:   wire.TargetSubclass,
		Mechanism:        wire.Mechanism,
		Confidence:       *wire.Confidence,
		Reasoning:        wire.Reasoning,
	}, nil
}

func fromProps(props map[string]any) *Classification {
	c := &Classification{Cached: true}
	c.RelationshipType, _ = props["relationship_type"].(string)
	c.TargetClass, _ = props["target_class"].(string)
	c.TargetSubclass, _ = props["target_subclass"].(string)
	c.Mechanism, _ = props["mechanism"].(string)
	c.Reasoning, _ = props["reasoning"].(string)
	c.Source, _ = props["classification_source"].(string)
	c.ClassifiedAt, _ = props["classified_at"].(string)
	switch v := props["confidence"].(type) {
	case float64:
		c.Confidence = v
	case int64:
		c.Confidence = float64(v)
	}
	return c
}

// Pair names one drug-target relationship to classify.
type Pair struct {
	Drug    string
	Target  string
	Context string
}

// ClassifyBatch classifies pairs sequentially with a fixed delay between
// API calls. Failed items are logged and skipped; the batch continues.
// Results served from the graph cost no API call and trigger no delay.
func (c *Classifier) ClassifyBatch(ctx context.Context, pairs []Pair, delay time.Duration, force bool) ([]*Classification, int) {
	var results []*Classification
	failed := 0

	for i, pair := range pairs {
		result, err := c.Classify(ctx, pair.Drug, pair.Target, pair.Context, force)
		if err != nil {
			log.Printf("[Classify] Skipping (%s, %s): %v", pair.Drug, pair.Target, err)
			failed++
			continue
		}
		results = append(results, result)

		if i < len(pairs)-1 && !result.Cached && delay > 0 {
			select {
			case <-ctx.Done():
				return results, failed
			case <-time.After(delay):
			}
		}
	}

	log.Printf("[Classify] Batch complete: %d classified, %d failed", len(results), failed)
	return results, failed
}
