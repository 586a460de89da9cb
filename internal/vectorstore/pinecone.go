package vectorstore

import (
	"context"
	"fmt"
	"time"

	"github.com/pinecone-io/go-pinecone/pinecone"
	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	metaText    = "text"
	metaChunkID = "chunk_id"
	metaSource  = "source"

	defaultRegion = "us-east-1"
)

// indexConn is the subset of *pinecone.IndexConnection used here.
type indexConn interface {
	UpsertVectors(ctx context.Context, in []*pinecone.Vector) (uint32, error)
	QueryByVectorValues(ctx context.Context, in *pinecone.QueryByVectorValuesRequest) (*pinecone.QueryVectorsResponse, error)
	DescribeIndexStats(ctx context.Context) (*pinecone.DescribeIndexStatsResponse, error)
	Close() error
}

type Pinecone struct {
	index string
	conn  indexConn
	log   *zap.Logger
}

// IndexSpec describes the serverless index EnsureIndex creates.
type IndexSpec struct {
	Name      string
	Dimension int
	Region    string
}

func newPineconeClient(apiKey string) (*pinecone.Client, error) {
	pc, err := pinecone.NewClient(pinecone.NewClientParams{ApiKey: apiKey, SourceTag: "support_copilot"})
	if err != nil {
		return nil, fmt.Errorf("failed to create Pinecone client: %w", err)
	}
	return pc, nil
}

func findIndex(ctx context.Context, pc *pinecone.Client, name string) (*pinecone.Index, error) {
	indexes, err := pc.ListIndexes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list Pinecone indexes: %w", err)
	}
	for _, idx := range indexes {
		if idx != nil && idx.Name == name {
			return idx, nil
		}
	}
	return nil, nil
}

// OpenPinecone connects to an existing index and logs its vector count.
func OpenPinecone(ctx context.Context, apiKey, indexName string, log *zap.Logger) (*Pinecone, error) {
	pc, err := newPineconeClient(apiKey)
	if err != nil {
		return nil, err
	}
	idx, err := findIndex(ctx, pc, indexName)
	if err != nil {
		return nil, fmt.Errorf("pinecone initialization failed: %w", err)
	}
	if idx == nil {
		return nil, fmt.Errorf("index '%s' not found. Please create it first: %w", indexName, ErrIndexNotFound)
	}

	conn, err := pc.Index(pinecone.NewIndexConnParams{Host: idx.Host})
	if err != nil {
		return nil, fmt.Errorf("pinecone initialization failed: connecting to %s: %w", idx.Host, err)
	}

	p := &Pinecone{index: indexName, conn: conn, log: log}
	stats, err := p.Stats(ctx)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("pinecone initialization failed: %w", err)
	}
	log.Info("Connected to Pinecone index",
		zap.String("index", indexName),
		zap.Int("vectors", stats.TotalVectorCount))
	return p, nil
}

// EnsureIndex creates a cosine serverless index when it does not exist yet
// and waits until Pinecone reports it ready. It returns true when the index
// was created.
func EnsureIndex(ctx context.Context, apiKey string, spec IndexSpec, pollEvery time.Duration, log *zap.Logger) (bool, error) {
	pc, err := newPineconeClient(apiKey)
	if err != nil {
		return false, err
	}
	existing, err := findIndex(ctx, pc, spec.Name)
	if err != nil {
		return false, err
	}
	if existing != nil {
		log.Info("Index already exists", zap.String("index", spec.Name))
		return false, nil
	}

	region := spec.Region
	if region == "" {
		region = defaultRegion
	}
	log.Info("Creating index", zap.String("index", spec.Name), zap.Int("dimension", spec.Dimension), zap.String("region", region))
	if _, err := pc.CreateServerlessIndex(ctx, &pinecone.CreateServerlessIndexRequest{
		Name:      spec.Name,
		Dimension: int32(spec.Dimension),
		Metric:    pinecone.Cosine,
		Cloud:     pinecone.Aws,
		Region:    region,
	}); err != nil {
		return false, fmt.Errorf("failed to create index %s: %w", spec.Name, err)
	}

	ticker := time.NewTicker(pollEvery)
	defer ticker.Stop()
	for {
		idx, err := pc.DescribeIndex(ctx, spec.Name)
		if err != nil {
			return true, fmt.Errorf("failed to describe index %s: %w", spec.Name, err)
		}
		if idx.Status != nil && idx.Status.Ready {
			log.Info("Index is ready", zap.String("index", spec.Name))
			return true, nil
		}
		select {
		case <-ctx.Done():
			return true, fmt.Errorf("waiting for index %s: %w", spec.Name, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (p *Pinecone) Name() string { return "pinecone" }

func (p *Pinecone) Close() error {
	return p.conn.Close()
}

func (p *Pinecone) Upsert(ctx context.Context, records []Record) (int, error) {
	vectors := make([]*pinecone.Vector, 0, len(records))
	for _, r := range records {
		meta, err := structpb.NewStruct(map[string]any{
			metaText:    r.Text,
			metaChunkID: r.ChunkID,
			metaSource:  r.Source,
		})
		if err != nil {
			return 0, fmt.Errorf("building metadata for %s: %w", r.ID, err)
		}
		vectors = append(vectors, &pinecone.Vector{
			Id:       r.ID,
			Values:   r.Values,
			Metadata: meta,
		})
	}
	n, err := p.conn.UpsertVectors(ctx, vectors)
	if err != nil {
		return 0, fmt.Errorf("pinecone upsert failed: %w", err)
	}
	return int(n), nil
}

func (p *Pinecone) Query(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	if topK <= 0 {
		return nil, nil
	}
	res, err := p.conn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          vector,
		TopK:            uint32(topK),
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("pinecone query failed: %w", err)
	}

	matches := make([]Match, 0, len(res.Matches))
	for _, m := range res.Matches {
		if m == nil || m.Vector == nil {
			continue
		}
		match := Match{ID: m.Vector.Id, Score: m.Score, Source: "unknown"}
		if md := m.Vector.Metadata; md != nil {
			if v, ok := md.Fields[metaText]; ok {
				match.Text = v.GetStringValue()
			}
			if v, ok := md.Fields[metaChunkID]; ok {
				match.ChunkID = int(v.GetNumberValue())
			}
			if v, ok := md.Fields[metaSource]; ok && v.GetStringValue() != "" {
				match.Source = v.GetStringValue()
			}
		}
		matches = append(matches, match)
	}
	return matches, nil
}

func (p *Pinecone) Stats(ctx context.Context) (Stats, error) {
	res, err := p.conn.DescribeIndexStats(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("describing index %s: %w", p.index, err)
	}
	return Stats{
		TotalVectorCount: int(res.TotalVectorCount),
		Dimension:        int(res.Dimension),
	}, nil
}
