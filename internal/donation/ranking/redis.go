package ranking

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"giveroute/internal/donation/models"
	"giveroute/pkg/domain"
)

var (
	recordDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "giveroute_ranking_record_duration_ms",
		Help:    "Latency of leaderboard updates in milliseconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
	})
)

const defaultKey = "giveroute:rankings"

// Redis keeps the leaderboard in a sorted set scored by value received.
// Scores are float64, so totals above 2^53 lose precision in ordering only.
type Redis struct {
	client *redis.Client
	key    string
}

type RedisOption func(*Redis)

// WithKey overrides the sorted set key.
func WithKey(key string) RedisOption {
	return func(r *Redis) {
		r.key = key
	}
}

func NewRedis(client *redis.Client, opts ...RedisOption) *Redis {
	r := &Redis{client: client, key: defaultKey}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Record adds amount to destination's score with ZINCRBY.
func (r *Redis) Record(ctx context.Context, destination domain.Address, amount uint64) error {
	start := time.Now()
	defer func() {
		recordDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()
	if err := r.client.ZIncrBy(ctx, r.key, float64(amount), destination.String()).Err(); err != nil {
		return fmt.Errorf("zincrby %s: %w", r.key, err)
	}
	return nil
}

func (r *Redis) Top(ctx context.Context, limit int) ([]models.Ranking, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	entries, err := r.client.ZRevRangeWithScores(ctx, r.key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("zrevrange %s: %w", r.key, err)
	}
	rows := make([]models.Ranking, 0, len(entries))
	for _, z := range entries {
		member, ok := z.Member.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected ranking member %T", z.Member)
		}
		dest, err := domain.ParseAddress(member)
		if err != nil {
			return nil, fmt.Errorf("parse ranking member: %w", err)
		}
		rows = append(rows, models.Ranking{Destination: dest, Received: uint64(z.Score)})
	}
	return rows, nil
}
