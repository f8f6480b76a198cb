package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/drugraph/drugraph-api/internal/cascade"
	"github.com/drugraph/drugraph-api/internal/classify"
	"github.com/drugraph/drugraph-api/internal/neo4j"
	"github.com/drugraph/drugraph-api/internal/resilience"
)

// GraphReader is the read-only graph access the API handlers need.
type GraphReader interface {
	GetDrug(ctx context.Context, name string) (*neo4j.DrugRecord, error)
	ListDrugs(ctx context.Context, phase, diseaseArea string, limit int) ([]map[string]any, error)
	NodeExists(ctx context.Context, label, name string) (bool, error)
	NodeCounts(ctx context.Context) (map[string]int64, error)
	RelationshipCounts(ctx context.Context) (map[string]int64, error)
}

// Classifier classifies a drug-target interaction.
type Classifier interface {
	Classify(ctx context.Context, drug, target, contextText string, force bool) (*classify.Classification, error)
}

// CascadePredictor predicts and reads downstream effect cascades.
type CascadePredictor interface {
	PredictAndStore(ctx context.Context, drug, target string, depth int, force bool) (*cascade.Prediction, error)
	GetStored(ctx context.Context, drug, target string, minConfidence float64) (*cascade.Prediction, error)
}

// Server holds the dependencies for the HTTP API server.
type Server struct {
	graph      GraphReader
	classifier Classifier
	cascade    CascadePredictor
}

func NewServer(graph GraphReader, classifier Classifier, cascadePredictor CascadePredictor) *Server {
	return &Server{
		graph:      graph,
		classifier: classifier,
		cascade:    cascadePredictor,
	}
}

// RegisterRoutes registers all API endpoints with a new ServeMux.
func (s *Server) RegisterRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Go 1.22+ supports HTTP method routing directly in ServeMux
	mux.HandleFunc("GET /api/v1/drugs", s.handleListDrugs)
	mux.HandleFunc("GET /api/v1/drugs/{name}", s.handleGetDrug)
	mux.HandleFunc("POST /api/v1/classify", s.handleClassify)
	mux.HandleFunc("POST /api/v1/cascade", s.handlePredictCascade)
	mux.HandleFunc("GET /api/v1/cascade", s.handleGetCascade)
	mux.HandleFunc("GET /api/v1/stats", s.handleStats)

	return mux
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) handleListDrugs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "Invalid 'limit' parameter", http.StatusBadRequest)
			return
		}
		limit = n
	}

	drugs, err := s.graph.ListDrugs(r.Context(), q.Get("phase"), q.Get("disease_area"), limit)
	if err != nil {
		log.Printf("[Server] Drug list failed: %v", err)
		http.Error(w, "Failed to list drugs", http.StatusInternalServerError)
		return
	}
	if drugs == nil {
		drugs = []map[string]any{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"drugs": drugs,
		"count": len(drugs),
	})
}

func (s *Server) handleGetDrug(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		http.Error(w, "Drug name required", http.StatusBadRequest)
		return
	}

	drug, err := s.graph.GetDrug(r.Context(), name)
	if err != nil {
		log.Printf("[Server] Drug lookup failed for %q: %v", name, err)
		http.Error(w, "Failed to fetch drug", http.StatusInternalServerError)
		return
	}
	if drug == nil {
		http.Error(w, "Drug not found", http.StatusNotFound)
		return
	}

	targets := make([]map[string]any, 0, len(drug.Targets))
	for _, link := range drug.Targets {
		targets = append(targets, map[string]any{
			"target":     link.Target,
			"properties": link.Props,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"name":       drug.Name,
		"properties": drug.Props,
		"targets":    targets,
	})
}

type ClassifyRequest struct {
	Drug    string `json:"drug"`
	Target  string `json:"target"`
	Context string `json:"context,omitempty"`
	Force   bool   `json:"force,omitempty"`
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req ClassifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if req.Drug == "" || req.Target == "" {
		http.Error(w, "Fields 'drug' and 'target' are required", http.StatusBadRequest)
		return
	}

	result, err := s.classifier.Classify(r.Context(), req.Drug, req.Target, req.Context, req.Force)
	if err != nil {
		log.Printf("[Server] Classification failed for (%s, %s): %v", req.Drug, req.Target, err)
		if errors.Is(err, resilience.ErrCircuitOpen) {
			http.Error(w, "Classification service temporarily unavailable", http.StatusServiceUnavailable)
			return
		}
		http.Error(w, "Classification failed", http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type CascadeRequest struct {
	Drug   string `json:"drug"`
	Target string `json:"target"`
	Depth  int    `json:"depth,omitempty"`
	Force  bool   `json:"force,omitempty"`
}

func (s *Server) handlePredictCascade(w http.ResponseWriter, r *http.Request) {
	var req CascadeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if req.Drug == "" || req.Target == "" {
		http.Error(w, "Fields 'drug' and 'target' are required", http.StatusBadRequest)
		return
	}
	if req.Depth == 0 {
		req.Depth = 2
	}
	if req.Depth < 1 || req.Depth > 3 {
		http.Error(w, "Field 'depth' must be between 1 and 3", http.StatusBadRequest)
		return
	}

	// Predicting for an unknown pair would burn an API call and store
	// nothing: the AFFECTS_DOWNSTREAM write matches the target node.
	for label, name := range map[string]string{"Drug": req.Drug, "Target": req.Target} {
		exists, err := s.graph.NodeExists(r.Context(), label, name)
		if err != nil {
			log.Printf("[Server] Existence check failed for %s %q: %v", label, name, err)
			http.Error(w, "Failed to verify drug-target pair", http.StatusInternalServerError)
			return
		}
		if !exists {
			http.Error(w, label+" not found", http.StatusNotFound)
			return
		}
	}

	prediction, err := s.cascade.PredictAndStore(r.Context(), req.Drug, req.Target, req.Depth, req.Force)
	if err != nil {
		log.Printf("[Server] Cascade prediction failed for (%s, %s): %v", req.Drug, req.Target, err)
		if errors.Is(err, resilience.ErrCircuitOpen) {
			http.Error(w, "Prediction service temporarily unavailable", http.StatusServiceUnavailable)
			return
		}
		http.Error(w, "Cascade prediction failed", http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusOK, prediction)
}

func (s *Server) handleGetCascade(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	drug := q.Get("drug")
	target := q.Get("target")
	if drug == "" || target == "" {
		http.Error(w, "Query parameters 'drug' and 'target' are required", http.StatusBadRequest)
		return
	}

	minConfidence := 0.0
	if raw := q.Get("min_confidence"); raw != "" {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			http.Error(w, "Invalid 'min_confidence' parameter", http.StatusBadRequest)
			return
		}
		minConfidence = f
	}

	prediction, err := s.cascade.GetStored(r.Context(), drug, target, minConfidence)
	if err != nil {
		log.Printf("[Server] Cascade lookup failed for (%s, %s): %v", drug, target, err)
		http.Error(w, "Failed to fetch cascade", http.StatusInternalServerError)
		return
	}
	if len(prediction.Direct)+len(prediction.Secondary)+len(prediction.Tertiary) == 0 {
		http.Error(w, "No stored cascade for this drug-target pair", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, prediction)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	nodes, err := s.graph.NodeCounts(r.Context())
	if err != nil {
		log.Printf("[Server] Node count failed: %v", err)
		http.Error(w, "Failed to compute stats", http.StatusInternalServerError)
		return
	}
	rels, err := s.graph.RelationshipCounts(r.Context())
	if err != nil {
		log.Printf("[Server] Relationship count failed: %v", err)
		http.Error(w, "Failed to compute stats", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"nodes":         nodes,
		"relationships": rels,
	})
}
