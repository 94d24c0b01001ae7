// internal/stats/stats.go
// Package stats reduces raw inference timings into comparable latency metrics.
package stats

import (
	"fmt"
	"math"
	"sort"
)

// Latency holds the derived statistics for one benchmark combination.
// Numeric fields are pre-formatted to two decimals because they are CSV
// cells; TestTimes echoes the repeat count actually sampled.
type Latency struct {
	TestTimes int
	AverageMS string
	Variance  string
	P90       string
	P95       string
	P99       string
	QPS       string
}

// Reduce converts runtimes (seconds, len >= 1) plus a batch size into latency
// metrics. The variance is the population variance of the second-scale values
// multiplied by 1000 — not 1000² — which is dimensionally odd but kept for
// output compatibility with existing tooling.
func Reduce(runtimes []float64, batchSize int) Latency {
	if len(runtimes) == 0 {
		panic("stats: Reduce called with no runtimes")
	}

	latencyMS := mean(runtimes) * 1000.0
	throughput := float64(batchSize) * (1000.0 / latencyMS)

	return Latency{
		TestTimes: len(runtimes),
		AverageMS: fmt.Sprintf("%.2f", latencyMS),
		Variance:  fmt.Sprintf("%.2f", variance(runtimes)*1000.0),
		P90:       fmt.Sprintf("%.2f", Percentile(runtimes, 90)*1000.0),
		P95:       fmt.Sprintf("%.2f", Percentile(runtimes, 95)*1000.0),
		P99:       fmt.Sprintf("%.2f", Percentile(runtimes, 99)*1000.0),
		QPS:       fmt.Sprintf("%.2f", throughput),
	}
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// variance is the population variance (divides by N, not N-1).
func variance(values []float64) float64 {
	m := mean(values)
	var sum float64
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return sum / float64(len(values))
}

// Percentile computes the p-th percentile (0-100) using linear interpolation
// between closest ranks, matching numpy's default method.
func Percentile(values []float64, p float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := p / 100.0 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}
