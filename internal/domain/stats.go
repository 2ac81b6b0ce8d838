package domain

// StatsSummary carries dashboard-facing aggregates over a history window.
// Params: site counters and check history aggregates.
// Returns: read-only snapshot recomputed per request.
type StatsSummary struct {
	TotalSites          int     `json:"totalSites"`
	ActiveSites         int     `json:"activeSites"`
	TotalChecks         int64   `json:"totalChecks"`
	AverageResponseTime float64 `json:"averageResponseTime"`
	Uptime              float64 `json:"uptime"`
}

// ComputeStats derives a summary from one fixed slice of check history.
// Params: site counters and the check results inside the window.
// Returns: uptime percentage over all results and average latency excluding timeouts.
func ComputeStats(totalSites, activeSites int, results []CheckResult) StatsSummary {
	summary := StatsSummary{
		TotalSites:  totalSites,
		ActiveSites: activeSites,
		TotalChecks: int64(len(results)),
	}
	if len(results) == 0 {
		return summary
	}

	var up, timed int
	var latencySum int64
	for _, result := range results {
		if result.Status == CheckStatusUp {
			up++
		}
		if result.Status == CheckStatusTimeout {
			timed++
			continue
		}
		latencySum += int64(result.ResponseTime)
	}

	summary.Uptime = 100 * float64(up) / float64(len(results))
	if measured := len(results) - timed; measured > 0 {
		summary.AverageResponseTime = float64(latencySum) / float64(measured)
	}
	return summary
}
