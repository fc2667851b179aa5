package session

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const metricsTTL = 7 * 24 * time.Hour

// Store keeps hourly call counters in redis.
type Store struct {
	redis *redis.Client
	now   func() time.Time
}

func NewStore(redisClient *redis.Client) *Store {
	return &Store{
		redis: redisClient,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) currentKey() string {
	now := s.now()
	return MetricsRedisKey(now.Format("2006-01-02"), now.Hour())
}

func (s *Store) IncrementMetric(ctx context.Context, field string, value int64) error {
	key := s.currentKey()

	pipe := s.redis.Pipeline()
	pipe.HIncrBy(ctx, key, field, value)
	pipe.Expire(ctx, key, metricsTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Store) IncrementCalls(ctx context.Context) error {
	return s.IncrementMetric(ctx, FieldCalls, 1)
}

func (s *Store) IncrementRejected(ctx context.Context) error {
	return s.IncrementMetric(ctx, FieldRejected, 1)
}

func (s *Store) IncrementReconnects(ctx context.Context) error {
	return s.IncrementMetric(ctx, FieldReconnects, 1)
}

func (s *Store) IncrementUpstreamFailures(ctx context.Context) error {
	return s.IncrementMetric(ctx, FieldUpstreamFailures, 1)
}

// RecordLatency adds count forward measurements totalling total.
func (s *Store) RecordLatency(ctx context.Context, total time.Duration, count int64) error {
	if count <= 0 {
		return nil
	}
	key := s.currentKey()

	pipe := s.redis.Pipeline()
	pipe.HIncrBy(ctx, key, FieldTotalLatencyUs, total.Microseconds())
	pipe.HIncrBy(ctx, key, FieldLatencyCount, count)
	pipe.Expire(ctx, key, metricsTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Store) GetMetrics(ctx context.Context, hours int) ([]*Metrics, error) {
	now := s.now()
	var metrics []*Metrics

	for i := 0; i < hours; i++ {
		t := now.Add(-time.Duration(i) * time.Hour)
		key := MetricsRedisKey(t.Format("2006-01-02"), t.Hour())

		data, err := s.redis.HGetAll(ctx, key).Result()
		if err != nil {
			return nil, err
		}
		if len(data) == 0 {
			continue
		}

		m := &Metrics{
			Date: t.Format("2006-01-02"),
			Hour: t.Hour(),
		}
		m.Calls = parseCounter(data, FieldCalls)
		m.Rejected = parseCounter(data, FieldRejected)
		m.Reconnects = parseCounter(data, FieldReconnects)
		m.UpstreamFailures = parseCounter(data, FieldUpstreamFailures)

		totalLatency := parseCounter(data, FieldTotalLatencyUs)
		latencyCount := parseCounter(data, FieldLatencyCount)
		if latencyCount > 0 {
			m.AvgLatencyUs = totalLatency / latencyCount
		}

		metrics = append(metrics, m)
	}

	return metrics, nil
}

func (s *Store) GetMetricsForLast7Days(ctx context.Context) ([]*Metrics, error) {
	return s.GetMetrics(ctx, 7*24)
}

func parseCounter(data map[string]string, field string) int64 {
	v, ok := data[field]
	if !ok {
		return 0
	}
	n, _ := strconv.ParseInt(v, 10, 64)
	return n
}
