package session

import "strconv"

const (
	FieldCalls            = "calls"
	FieldRejected         = "rejected"
	FieldReconnects       = "reconnects"
	FieldUpstreamFailures = "upstream_failures"
	FieldTotalLatencyUs   = "total_latency_us"
	FieldLatencyCount     = "latency_count"
)

// Metrics is one hour of aggregated call counters.
type Metrics struct {
	Date             string `json:"date"`
	Hour             int    `json:"hour"`
	Calls            int64  `json:"calls"`
	Rejected         int64  `json:"rejected"`
	Reconnects       int64  `json:"reconnects"`
	UpstreamFailures int64  `json:"upstream_failures"`
	AvgLatencyUs     int64  `json:"avg_forward_latency_us"`
}

type MetricsList struct {
	Hours   int        `json:"hours"`
	Metrics []*Metrics `json:"metrics"`
}

type Summary struct {
	Period           string  `json:"period"`
	TotalCalls       int64   `json:"total_calls"`
	TotalRejected    int64   `json:"total_rejected"`
	TotalReconnects  int64   `json:"total_reconnects"`
	UpstreamFailures int64   `json:"upstream_failures"`
	AvgLatencyUs     int64   `json:"avg_forward_latency_us"`
	FailureRate      float64 `json:"failure_rate"`
}

func MetricsRedisKey(date string, hour int) string {
	return "calls:metrics:" + date + ":" + strconv.Itoa(hour)
}
