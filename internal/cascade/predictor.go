package cascade

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/drugraph/drugraph-api/internal/llm"
	"github.com/drugraph/drugraph-api/internal/neo4j"
)

// PredictedBy tags AFFECTS_DOWNSTREAM edges written by this system.
const PredictedBy = "drugraph-cascade"

// Entity categories a downstream effect may name.
var validEntityTypes = map[string]bool{
	"Pathway":         true,
	"Gene":            true,
	"Metabolite":      true,
	"CellularProcess": true,
	"Protein":         true,
}

// Effect verbs the model may use.
var validEffectTypes = map[string]bool{
	"inhibits":      true,
	"activates":     true,
	"upregulates":   true,
	"downregulates": true,
	"modulates":     true,
}

// Effect is one predicted downstream consequence of a drug-target
// interaction.
type Effect struct {
	EntityName   string  `json:"entity_name"`
	EntityType   string  `json:"entity_type"`
	EffectType   string  `json:"effect_type"`
	Confidence   float64 `json:"confidence"`
	Reasoning    string  `json:"reasoning"`
	SourceEntity string  `json:"source_entity"` // upstream entity that caused this effect
}

// Prediction is the full cascade for one (drug, target) pair.
type Prediction struct {
	Drug              string   `json:"drug"`
	Target            string   `json:"target"`
	Depth             int      `json:"depth"`
	Direct            []Effect `json:"direct"`
	Secondary         []Effect `json:"secondary"`
	Tertiary          []Effect `json:"tertiary"`
	AverageConfidence float64  `json:"average_confidence"`
	Stored            bool     `json:"stored"` // true when reconstructed from the graph
}

// Predictor produces and persists multi-hop cascade effect predictions.
type Predictor struct {
	llm   llm.Client
	graph GraphStore
}

// GraphStore is the slice of the graph the predictor reads and writes.
type GraphStore interface {
	MergeDownstreamEffect(ctx context.Context, target, entityLabel, entityKey, entityValue, drugContext string, props map[string]any) error
	DownstreamEffects(ctx context.Context, target, drugContext string, minConfidence float64) ([]neo4j.DownstreamEffectRecord, error)
}

// NewPredictor creates a cascade predictor. Wrap the client in
// llm.NewRetryClient so transient API failures are retried with backoff.
func NewPredictor(client llm.Client, graph GraphStore) *Predictor {
	return &Predictor{llm: client, graph: graph}
}

func buildCascadePrompt(drug, target string, depth int) string {
	var b strings.Builder
	fmt.Fprintf(&b, `You are a systems pharmacology expert. Predict the downstream cascade effects of the drug "%s" acting on the target "%s".

Entity types: Pathway, Gene, Metabolite, CellularProcess, Protein.
Effect types: inhibits, activates, upregulates, downregulates, modulates.

List 3-5 direct effects of the target interaction in "direct_effects".
`, drug, target)

	if depth >= 2 {
		b.WriteString(`For each direct effect, list 2-4 secondary consequences in "secondary_effects"; each must name its causing entity in "source_entity".
`)
	}
	if depth >= 3 {
		b.WriteString(`Then list the tertiary consequences of the secondary effects in "tertiary_effects"; each must name its causing entity in "source_entity".
`)
	}

	b.WriteString(`
Respond ONLY with a JSON object matching exactly this schema:
{
  "direct_effects": [{"entity_name": "...", "entity_type": "...", "effect_type": "...", "confidence": <0-1>, "reasoning": "...", "source_entity": "..."}],
  "secondary_effects": [...],
  "tertiary_effects": [...]
}
Omitted depths must be empty arrays. For direct effects, "source_entity" is the target itself.`)

	return b.String()
}

// Predict calls the model and parses the cascade for the requested depth.
// A successfully parsed but empty response is returned as-is with average
// confidence 0; it is not retried.
func (p *Predictor) Predict(ctx context.Context, drug, target string, depth int) (*Prediction, error) {
	if depth < 1 || depth > 3 {
		return nil, fmt.Errorf("cascade depth must be between 1 and 3, got %d", depth)
	}

	prompt := buildCascadePrompt(drug, target, depth)
	resp, err := p.llm.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("cascade prediction for (%s, %s) failed: %w", drug, target, err)
	}

	prediction, err := parsePrediction(resp)
	if err != nil {
		return nil, fmt.Errorf("cascade prediction for (%s, %s) failed: %w", drug, target, err)
	}

	prediction.Drug = drug
	prediction.Target = target
	prediction.Depth = depth
	prediction.AverageConfidence = averageConfidence(prediction)

	log.Printf("[Cascade] Predicted %d/%d/%d effects for (%s, %s) at depth %d, avg confidence %.2f",
		len(prediction.Direct), len(prediction.Secondary), len(prediction.Tertiary),
		drug, target, depth, prediction.AverageConfidence)

	return prediction, nil
}

type predictionWire struct {
	Direct    []effectWire `json:"direct_effects"`
	Secondary []effectWire `json:"secondary_effects"`
	Tertiary  []effectWire `json:"tertiary_effects"`
}

type effectWire struct {
	EntityName   string   `json:"entity_name"`
	EntityType   string   `json:"entity_type"`
	EffectType   string   `json:"effect_type"`
	Confidence   *float64 `json:"confidence"`
	Reasoning    string   `json:"reasoning"`
	SourceEntity string   `json:"source_entity"`
}

// parsePrediction is the strict decoder: a structurally invalid response
// fails closed rather than being partially accepted.
func parsePrediction(resp string) (*Prediction, error) {
	jsonStr, err := llm.ExtractJSONObject(resp)
	if err != nil {
		return nil, err
	}

	var wire predictionWire
	if err := json.Unmarshal([]byte(jsonStr), &wire); err != nil {
		return nil, fmt.Errorf("invalid cascade JSON: %w", err)
	}

	prediction := &Prediction{}
	for _, group := range []struct {
		wires []effectWire
		out   *[]Effect
		name  string
	}{
		{wire.Direct, &prediction.Direct, "direct"},
		{wire.Secondary, &prediction.Secondary, "secondary"},
		{wire.Tertiary, &prediction.Tertiary, "tertiary"},
	} {
		for i, w := range group.wires {
			effect, err := validateEffect(w)
			if err != nil {
				return nil, fmt.Errorf("%s effect %d: %w", group.name, i, err)
			}
			*group.out = append(*group.out, effect)
		}
	}

	return prediction, nil
}

func validateEffect(w effectWire) (Effect, error) {
	if w.EntityName == "" {
		return Effect{}, fmt.Errorf("missing entity_name")
	}
	if !validEntityTypes[w.EntityType] {
		return Effect{}, fmt.Errorf("unknown entity_type %q", w.EntityType)
	}
	if !validEffectTypes[w.EffectType] {
		return Effect{}, fmt.Errorf("unknown effect_type %q", w.EffectType)
	}
	if w.Confidence == nil {
		return Effect{}, fmt.Errorf("missing confidence")
	}
	return Effect{
		EntityName:   w.EntityName,
		EntityType:   w.EntityType,
		EffectType:   w.EffectType,
		Confidence:   *w.Confidence,
		Reasoning:    w.Reasoning,
		SourceEntity: w.SourceEntity,
	}, nil
}

// averageConfidence is the arithmetic mean across every effect of every
// depth; 0 when there are no effects.
func averageConfidence(p *Prediction) float64 {
	sum := 0.0
	count := 0
	for _, effects := range [][]Effect{p.Direct, p.Secondary, p.Tertiary} {
		for _, e := range effects {
			sum += e.Confidence
			count++
		}
	}
	if count == 0 {
		return 0.0
	}
	return sum / float64(count)
}
