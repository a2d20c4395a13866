package sim

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// ThroughputSummary condenses the parts a device received over a run.
type ThroughputSummary struct {
	Count int

	// Inter-arrival statistics over consecutive received_part timestamps.
	MeanInterval   float64
	StdDevInterval float64
	P50Interval    float64
	P95Interval    float64

	MeanValue   float64
	MeanQuality float64
}

// SummarizeThroughput computes receive statistics for the named device from
// a MemoryRecorder. Interval statistics need at least two received parts and
// are zero otherwise.
func SummarizeThroughput(rec *MemoryRecorder, device string) ThroughputSummary {
	points := rec.Datapoints("received_part", device)
	out := ThroughputSummary{Count: len(points)}
	if len(points) == 0 {
		return out
	}

	values := make([]float64, 0, len(points))
	qualities := make([]float64, 0, len(points))
	times := make([]float64, 0, len(points))
	for _, dp := range points {
		rp, ok := dp.Payload.(receivedPart)
		if !ok {
			continue
		}
		values = append(values, rp.Value)
		qualities = append(qualities, rp.Quality)
		times = append(times, rp.Time)
	}
	if len(values) > 0 {
		out.MeanValue = stat.Mean(values, nil)
		out.MeanQuality = stat.Mean(qualities, nil)
	}
	if len(times) < 2 {
		return out
	}

	intervals := make([]float64, len(times)-1)
	for i := 1; i < len(times); i++ {
		intervals[i-1] = times[i] - times[i-1]
	}
	out.MeanInterval, out.StdDevInterval = stat.MeanStdDev(intervals, nil)
	if len(intervals) == 1 {
		out.StdDevInterval = 0
	}

	sort.Float64s(intervals)
	out.P50Interval = stat.Quantile(0.5, stat.Empirical, intervals, nil)
	out.P95Interval = stat.Quantile(0.95, stat.Empirical, intervals, nil)
	return out
}

// UtilizationSummary reports how a machine spent a run.
type UtilizationSummary struct {
	Uptime      float64
	TimeInUse   float64
	Utilization float64 // TimeInUse / Uptime, 0 when never up
}

// SummarizeUtilization computes a machine's utilization over the run so far.
func SummarizeUtilization(m *Machine) UtilizationSummary {
	s := UtilizationSummary{
		Uptime:    m.Uptime(),
		TimeInUse: m.UtilizationTime(),
	}
	if s.Uptime > 0 {
		s.Utilization = s.TimeInUse / s.Uptime
	}
	return s
}
