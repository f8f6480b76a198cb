package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/drugraph/drugraph-api/internal/cascade"
	"github.com/drugraph/drugraph-api/internal/classify"
	"github.com/drugraph/drugraph-api/internal/neo4j"
	"github.com/drugraph/drugraph-api/internal/resilience"
)

type mockGraph struct {
	drugs   map[string]*neo4j.DrugRecord
	missing map[string]bool // "Label/name" -> absent from the graph
	listErr error
}

func (m *mockGraph) GetDrug(ctx context.Context, name string) (*neo4j.DrugRecord, error) {
	return m.drugs[name], nil
}

func (m *mockGraph) ListDrugs(ctx context.Context, phase, diseaseArea string, limit int) ([]map[string]any, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []map[string]any
	for name := range m.drugs {
		out = append(out, map[string]any{"name": name})
	}
	return out, nil
}

func (m *mockGraph) NodeExists(ctx context.Context, label, name string) (bool, error) {
	return !m.missing[label+"/"+name], nil
}

func (m *mockGraph) NodeCounts(ctx context.Context) (map[string]int64, error) {
	return map[string]int64{"Drug": int64(len(m.drugs))}, nil
}

func (m *mockGraph) RelationshipCounts(ctx context.Context) (map[string]int64, error) {
	return map[string]int64{"TARGETS": 2}, nil
}

type mockClassifier struct {
	result *classify.Classification
	err    error
}

func (m *mockClassifier) Classify(ctx context.Context, drug, target, contextText string, force bool) (*classify.Classification, error) {
	return m.result, m.err
}

type mockCascade struct {
	prediction *cascade.Prediction
	stored     *cascade.Prediction
	err        error
	lastDepth  int
}

func (m *mockCascade) PredictAndStore(ctx context.Context, drug, target string, depth int, force bool) (*cascade.Prediction, error) {
	m.lastDepth = depth
	return m.prediction, m.err
}

func (m *mockCascade) GetStored(ctx context.Context, drug, target string, minConfidence float64) (*cascade.Prediction, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.stored, nil
}

func newTestServer(graph GraphReader, classifier Classifier, cascadePredictor CascadePredictor) *httptest.Server {
	return httptest.NewServer(NewServer(graph, classifier, cascadePredictor).RegisterRoutes())
}

func TestHandleGetDrug(t *testing.T) {
	graph := &mockGraph{drugs: map[string]*neo4j.DrugRecord{
		"aspirin": {
			Name:  "aspirin",
			Props: map[string]any{"name": "aspirin", "moa": "cyclooxygenase inhibitor"},
			Targets: []neo4j.TargetLink{
				{Target: "PTGS1", Props: map[string]any{"classified": true}},
			},
		},
	}}
	ts := newTestServer(graph, nil, nil)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/drugs/aspirin")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["name"] != "aspirin" {
		t.Errorf("unexpected name %v", body["name"])
	}
	targets, _ := body["targets"].([]any)
	if len(targets) != 1 {
		t.Errorf("expected 1 target, got %d", len(targets))
	}
}

func TestHandleGetDrug_NotFound(t *testing.T) {
	ts := newTestServer(&mockGraph{}, nil, nil)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/drugs/nothere")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestHandleListDrugs_InvalidLimit(t *testing.T) {
	ts := newTestServer(&mockGraph{}, nil, nil)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/drugs?limit=bogus")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestHandleListDrugs_EmptyGraph(t *testing.T) {
	ts := newTestServer(&mockGraph{}, nil, nil)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/drugs")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["count"] != float64(0) {
		t.Errorf("expected count 0, got %v", body["count"])
	}
}

func TestHandleClassify(t *testing.T) {
	classifier := &mockClassifier{result: &classify.Classification{
		RelationshipType: "primary",
		TargetClass:      "enzyme",
		Confidence:       0.85,
	}}
	ts := newTestServer(&mockGraph{}, classifier, nil)
	defer ts.Close()

	body, _ := json.Marshal(ClassifyRequest{Drug: "aspirin", Target: "PTGS1"})
	resp, err := http.Post(ts.URL+"/api/v1/classify", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result classify.Classification
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if result.TargetClass != "enzyme" {
		t.Errorf("unexpected target class %q", result.TargetClass)
	}
}

func TestHandleClassify_Validation(t *testing.T) {
	ts := newTestServer(&mockGraph{}, &mockClassifier{}, nil)
	defer ts.Close()

	cases := []struct {
		name string
		body string
	}{
		{"invalid json", "{invalid"},
		{"missing drug", `{"target": "PTGS1"}`},
		{"missing target", `{"drug": "aspirin"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+"/api/v1/classify", "application/json", strings.NewReader(tc.body))
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", resp.StatusCode)
			}
		})
	}
}

func TestHandleClassify_UpstreamFailure(t *testing.T) {
	classifier := &mockClassifier{err: errors.New("model returned garbage")}
	ts := newTestServer(&mockGraph{}, classifier, nil)
	defer ts.Close()

	body, _ := json.Marshal(ClassifyRequest{Drug: "aspirin", Target: "PTGS1"})
	resp, err := http.Post(ts.URL+"/api/v1/classify", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", resp.StatusCode)
	}
}

func TestHandleClassify_CircuitOpen(t *testing.T) {
	classifier := &mockClassifier{err: resilience.ErrCircuitOpen}
	ts := newTestServer(&mockGraph{}, classifier, nil)
	defer ts.Close()

	body, _ := json.Marshal(ClassifyRequest{Drug: "aspirin", Target: "PTGS1"})
	resp, err := http.Post(ts.URL+"/api/v1/classify", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", resp.StatusCode)
	}
}

func TestHandlePredictCascade_DefaultsDepth(t *testing.T) {
	predictor := &mockCascade{prediction: &cascade.Prediction{Drug: "aspirin", Target: "PTGS1"}}
	ts := newTestServer(&mockGraph{}, nil, predictor)
	defer ts.Close()

	body, _ := json.Marshal(CascadeRequest{Drug: "aspirin", Target: "PTGS1"})
	resp, err := http.Post(ts.URL+"/api/v1/cascade", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if predictor.lastDepth != 2 {
		t.Errorf("expected default depth 2, got %d", predictor.lastDepth)
	}
}

func TestHandlePredictCascade_UnknownPairNotFound(t *testing.T) {
	graph := &mockGraph{missing: map[string]bool{"Drug/ghostdrug": true}}
	predictor := &mockCascade{prediction: &cascade.Prediction{}}
	ts := newTestServer(graph, nil, predictor)
	defer ts.Close()

	body, _ := json.Marshal(CascadeRequest{Drug: "ghostdrug", Target: "PTGS1"})
	resp, err := http.Post(ts.URL+"/api/v1/cascade", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for unknown drug, got %d", resp.StatusCode)
	}
	if predictor.lastDepth != 0 {
		t.Error("prediction must not run for an unknown pair")
	}
}

func TestHandlePredictCascade_RejectsBadDepth(t *testing.T) {
	ts := newTestServer(&mockGraph{}, nil, &mockCascade{})
	defer ts.Close()

	body, _ := json.Marshal(CascadeRequest{Drug: "aspirin", Target: "PTGS1", Depth: 7})
	resp, err := http.Post(ts.URL+"/api/v1/cascade", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestHandleGetCascade(t *testing.T) {
	predictor := &mockCascade{stored: &cascade.Prediction{
		Drug:   "aspirin",
		Target: "PTGS1",
		Direct: []cascade.Effect{{EntityName: "PGE2", EntityType: "Metabolite", EffectType: "downregulates", Confidence: 0.8}},
		Stored: true,
	}}
	ts := newTestServer(&mockGraph{}, nil, predictor)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/cascade?drug=aspirin&target=PTGS1&min_confidence=0.5")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var prediction cascade.Prediction
	if err := json.NewDecoder(resp.Body).Decode(&prediction); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if len(prediction.Direct) != 1 {
		t.Errorf("expected 1 direct effect, got %d", len(prediction.Direct))
	}
}

func TestHandleGetCascade_MissingParams(t *testing.T) {
	ts := newTestServer(&mockGraph{}, nil, &mockCascade{})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/cascade?drug=aspirin")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestHandleGetCascade_Empty(t *testing.T) {
	predictor := &mockCascade{stored: &cascade.Prediction{Drug: "aspirin", Target: "PTGS1", Stored: true}}
	ts := newTestServer(&mockGraph{}, nil, predictor)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/cascade?drug=aspirin&target=PTGS1")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for empty cascade, got %d", resp.StatusCode)
	}
}

func TestHandleStats(t *testing.T) {
	graph := &mockGraph{drugs: map[string]*neo4j.DrugRecord{"aspirin": {Name: "aspirin"}}}
	ts := newTestServer(graph, nil, nil)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/stats")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body map[string]map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["nodes"]["Drug"] != 1 {
		t.Errorf("expected 1 Drug node, got %v", body["nodes"]["Drug"])
	}
	if body["relationships"]["TARGETS"] != 2 {
		t.Errorf("expected 2 TARGETS relationships, got %v", body["relationships"]["TARGETS"])
	}
}
