package qdrant

import (
	"context"
	"fmt"
	"hash/fnv"
	"log"

	pb "github.com/qdrant/go-client/qdrant"
)

// embeddingDim matches the output dimension of the Gemini embedding model.
const embeddingDim = 768

// MOAStore holds one embedded mechanism-of-action description per drug and
// answers nearest-neighbour queries over them.
type MOAStore struct {
	client     *pb.Client
	collection string
}

// MOAMatch is one similarity hit.
type MOAMatch struct {
	MOA   string
	Score float32
}

// NewMOAStore connects to Qdrant and ensures the MOA collection exists.
func NewMOAStore(host string, port int, collection string) (*MOAStore, error) {
	client, err := pb.NewClient(&pb.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", host, port, err)
	}

	s := &MOAStore{
		client:     client,
		collection: collection,
	}

	if err := s.ensureCollection(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ensure collection %q: %w", collection, err)
	}

	log.Printf("[Qdrant] Connected to %s:%d, collection=%s", host, port, collection)
	return s, nil
}

func (s *MOAStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &pb.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: pb.NewVectorsConfig(&pb.VectorParams{
			Size:     embeddingDim,
			Distance: pb.Distance_Cosine,
		}),
	})
	if err != nil {
		return err
	}

	log.Printf("[Qdrant] Created collection %q", s.collection)
	return nil
}

// pointID derives a stable numeric point id from the MOA string so
// repeated upserts overwrite rather than duplicate.
func pointID(moa string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(moa))
	return h.Sum64()
}

// Upsert stores (or replaces) the embedding of one MOA description.
func (s *MOAStore) Upsert(ctx context.Context, moa string, vector []float32) error {
	if len(vector) != embeddingDim {
		return fmt.Errorf("expected %d-dimensional vector for %q, got %d", embeddingDim, moa, len(vector))
	}

	_, err := s.client.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: s.collection,
		Points: []*pb.PointStruct{
			{
				Id:      pb.NewIDNum(pointID(moa)),
				Vectors: pb.NewVectors(vector...),
				Payload: pb.NewValueMap(map[string]any{
					"moa": moa,
				}),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert failed for MOA %q: %w", moa, err)
	}
	return nil
}

// Similar returns the MOA descriptions nearest to the query vector,
// excluding the MOA the query belongs to.
func (s *MOAStore) Similar(ctx context.Context, vector []float32, limit int, excludeMOA string) ([]MOAMatch, error) {
	points, err := s.client.Query(ctx, &pb.QueryPoints{
		CollectionName: s.collection,
		Query:          pb.NewQuery(vector...),
		Limit:          pb.PtrOf(uint64(limit)),
		WithPayload:    pb.NewWithPayload(true),
		Filter: &pb.Filter{
			MustNot: []*pb.Condition{
				pb.NewMatch("moa", excludeMOA),
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant query failed: %w", err)
	}

	var matches []MOAMatch
	for _, point := range points {
		match := MOAMatch{Score: point.GetScore()}
		if v, ok := point.GetPayload()["moa"]; ok {
			match.MOA = v.GetStringValue()
		}
		matches = append(matches, match)
	}
	return matches, nil
}

// Count reports the number of stored MOA points.
func (s *MOAStore) Count(ctx context.Context) (uint64, error) {
	count, err := s.client.Count(ctx, &pb.CountPoints{
		CollectionName: s.collection,
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant count failed: %w", err)
	}
	return count, nil
}

// Close closes the underlying gRPC connection.
func (s *MOAStore) Close() error {
	return s.client.Close()
}
