package cascade

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Store persists every effect of a prediction as AFFECTS_DOWNSTREAM edges
// from the primary target, keyed by drug context so cascades of different
// drugs sharing a target never collide.
func (p *Predictor) Store(ctx context.Context, prediction *Prediction) error {
	now := time.Now().UTC().Format(time.RFC3339)

	storeGroup := func(effects []Effect, depth int) error {
		for _, e := range effects {
			key := "name"
			if e.EntityType == "Gene" {
				key = "symbol"
			}
			props := map[string]any{
				"effect_type":   e.EffectType,
				"confidence":    e.Confidence,
				"reasoning":     e.Reasoning,
				"depth":         depth,
				"source_entity": e.SourceEntity,
				"validated":     false,
				"predicted_by":  PredictedBy,
				"predicted_at":  now,
			}
			if err := p.graph.MergeDownstreamEffect(ctx, prediction.Target, e.EntityType, key, e.EntityName, prediction.Drug, props); err != nil {
				return fmt.Errorf("failed to store effect %q: %w", e.EntityName, err)
			}
		}
		return nil
	}

	if err := storeGroup(prediction.Direct, 1); err != nil {
		return err
	}
	if err := storeGroup(prediction.Secondary, 2); err != nil {
		return err
	}
	if err := storeGroup(prediction.Tertiary, 3); err != nil {
		return err
	}
	return nil
}

// GetStored reconstructs a prediction from the graph, regrouping stored
// edges by their recorded depth. Effects below minConfidence are dropped
// at the query level.
func (p *Predictor) GetStored(ctx context.Context, drug, target string, minConfidence float64) (*Prediction, error) {
	records, err := p.graph.DownstreamEffects(ctx, target, drug, minConfidence)
	if err != nil {
		return nil, fmt.Errorf("failed to read stored cascade for (%s, %s): %w", drug, target, err)
	}

	prediction := &Prediction{Drug: drug, Target: target, Stored: true}
	for _, rec := range records {
		effect := Effect{
			EntityName: rec.EntityName,
			EntityType: rec.EntityType,
		}
		if v, ok := rec.Props["effect_type"].(string); ok {
			effect.EffectType = v
		}
		if v, ok := rec.Props["confidence"].(float64); ok {
			effect.Confidence = v
		}
		if v, ok := rec.Props["reasoning"].(string); ok {
			effect.Reasoning = v
		}
		if v, ok := rec.Props["source_entity"].(string); ok {
			effect.SourceEntity = v
		}

		depth := 1
		if v, ok := rec.Props["depth"].(int64); ok {
			depth = int(v)
		}
		switch depth {
		case 2:
			prediction.Secondary = append(prediction.Secondary, effect)
		case 3:
			prediction.Tertiary = append(prediction.Tertiary, effect)
		default:
			prediction.Direct = append(prediction.Direct, effect)
		}
		if depth > prediction.Depth {
			prediction.Depth = depth
		}
	}
	prediction.AverageConfidence = averageConfidence(prediction)
	return prediction, nil
}

// PredictAndStore predicts then persists a cascade. When the graph already
// holds effects for the pair, the stored cascade is returned without an
// API call unless force is set.
func (p *Predictor) PredictAndStore(ctx context.Context, drug, target string, depth int, force bool) (*Prediction, error) {
	if !force {
		stored, err := p.GetStored(ctx, drug, target, 0.0)
		if err == nil && len(stored.Direct)+len(stored.Secondary)+len(stored.Tertiary) > 0 {
			log.Printf("[Cascade] Reusing stored cascade for (%s, %s)", drug, target)
			return stored, nil
		}
	}

	prediction, err := p.Predict(ctx, drug, target, depth)
	if err != nil {
		return nil, err
	}
	if err := p.Store(ctx, prediction); err != nil {
		return nil, err
	}
	return prediction, nil
}

// Pair names one drug-target interaction to cascade.
type Pair struct {
	Drug   string
	Target string
}

// PredictBatch runs pairs sequentially with a fixed delay between API
// calls. Failures are logged and skipped; the batch always runs to the end.
func (p *Predictor) PredictBatch(ctx context.Context, pairs []Pair, depth int, delay time.Duration) []*Prediction {
	results := make([]*Prediction, 0, len(pairs))
	for i, pair := range pairs {
		prediction, err := p.PredictAndStore(ctx, pair.Drug, pair.Target, depth, false)
		if err != nil {
			log.Printf("[Cascade] Skipping (%s, %s): %v", pair.Drug, pair.Target, err)
			continue
		}
		results = append(results, prediction)

		if i < len(pairs)-1 && !prediction.Stored {
			select {
			case <-ctx.Done():
				return results
			case <-time.After(delay):
			}
		}
	}
	return results
}
