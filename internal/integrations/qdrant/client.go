package qdrant

import (
	"context"
	"fmt"
	"strings"
	"time"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

// Client implements VectorStore for Qdrant over gRPC.
type Client struct {
	conn    *grpc.ClientConn
	points  pb.PointsClient
	apiKey  string
	timeout time.Duration
}

var _ VectorStore = (*Client)(nil)

// parseTarget strips an optional protocol prefix from the URL and decides
// whether TLS is needed. Cloud-hosted endpoints get TLS even without an
// explicit scheme.
func parseTarget(url string) (target string, useTLS bool) {
	switch {
	case strings.HasPrefix(url, "https://"):
		return strings.TrimPrefix(url, "https://"), true
	case strings.HasPrefix(url, "http://"):
		return strings.TrimPrefix(url, "http://"), false
	default:
		lower := strings.ToLower(url)
		return url, strings.Contains(lower, "cloud") || strings.Contains(lower, ".qdrant.io")
	}
}

// NewClient creates a new Qdrant client. URL can be "host:port" or carry
// an http(s) prefix.
func NewClient(url, apiKey string) (*Client, error) {
	target, useTLS := parseTarget(url)

	var opts []grpc.DialOption
	if useTLS {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(credentials.NewTLS(nil))}
	} else {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}

	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant: %w", err)
	}

	return &Client{
		conn:    conn,
		points:  pb.NewPointsClient(conn),
		apiKey:  apiKey,
		timeout: 30 * time.Second,
	}, nil
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// ctxWithAuth adds authentication to an existing context with timeout.
func (c *Client) ctxWithAuth(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, c.timeout)
	if c.apiKey != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", c.apiKey)
	}
	return ctx, cancel
}

// Search finds the nearest neighbors for a given vector, dropping hits
// below threshold server-side.
func (c *Client) Search(ctx context.Context, collection string, vector []float32, limit int, threshold float64) ([]*SearchResult, error) {
	authCtx, cancel := c.ctxWithAuth(ctx)
	defer cancel()

	scoreThreshold := float32(threshold)
	resp, err := c.points.Search(authCtx, &pb.SearchPoints{
		CollectionName: collection,
		Vector:         vector,
		Limit:          uint64(limit),
		ScoreThreshold: &scoreThreshold,
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	results := make([]*SearchResult, len(resp.Result))
	for i, hit := range resp.Result {
		payload := make(map[string]interface{}, len(hit.Payload))
		for k, v := range hit.Payload {
			payload[k] = fromQdrantValue(v)
		}

		id := hit.Id.GetUuid()
		if id == "" {
			id = fmt.Sprintf("%d", hit.Id.GetNum())
		}

		results[i] = &SearchResult{
			ID:      id,
			Score:   hit.Score,
			Payload: payload,
		}
	}

	return results, nil
}

// fromQdrantValue converts a Qdrant payload value to a plain Go value.
func fromQdrantValue(v *pb.Value) interface{} {
	switch kind := v.Kind.(type) {
	case *pb.Value_StringValue:
		return kind.StringValue
	case *pb.Value_IntegerValue:
		return kind.IntegerValue
	case *pb.Value_DoubleValue:
		return kind.DoubleValue
	case *pb.Value_BoolValue:
		return kind.BoolValue
	default:
		return nil
	}
}
