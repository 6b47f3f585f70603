package domain

import (
	"sort"
	"time"
)

const statsMonthWindow = 6

type MonthCount struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

type DiseaseCount struct {
	Disease string `json:"disease"`
	Count   int    `json:"count"`
}

type ScanStats struct {
	TotalScans          int            `json:"total_scans"`
	LastScanDate        *time.Time     `json:"last_scan_date"`
	MostCommonDisease   string         `json:"most_common_disease"`
	AverageConfidence   float64        `json:"average_confidence"`
	ScansByMonth        []MonthCount   `json:"scans_by_month"`
	DiseaseDistribution []DiseaseCount `json:"disease_distribution"`
}

// EmptyScanStats is the zero aggregate with non-nil lists.
func EmptyScanStats() ScanStats {
	return ScanStats{
		ScansByMonth:        []MonthCount{},
		DiseaseDistribution: []DiseaseCount{},
	}
}

// ComputeScanStats aggregates an owner's records. Ties for the most common
// disease go to the disease seen first in newest-first order.
func ComputeScanStats(records []ScanRecord, now time.Time) ScanStats {
	stats := EmptyScanStats()
	if len(records) == 0 {
		return stats
	}

	ordered := make([]ScanRecord, len(records))
	copy(ordered, records)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].CreatedAt.After(ordered[j].CreatedAt)
		}
		return ordered[i].ID > ordered[j].ID
	})

	stats.TotalScans = len(ordered)
	last := ordered[0].CreatedAt
	stats.LastScanDate = &last

	now = now.UTC()
	windowStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(statsMonthWindow - 1), 0)
	monthCounts := make(map[time.Time]int, statsMonthWindow)

	counts := make(map[string]int)
	order := make([]string, 0)
	var confidenceSum float64
	for _, rec := range ordered {
		confidenceSum += rec.Confidence
		if _, seen := counts[rec.Disease]; !seen {
			order = append(order, rec.Disease)
		}
		counts[rec.Disease]++

		created := rec.CreatedAt.UTC()
		bucket := time.Date(created.Year(), created.Month(), 1, 0, 0, 0, 0, time.UTC)
		if !bucket.Before(windowStart) && !created.After(now) {
			monthCounts[bucket]++
		}
	}
	stats.AverageConfidence = confidenceSum / float64(len(ordered))

	best := 0
	for _, disease := range order {
		if counts[disease] > best {
			best = counts[disease]
			stats.MostCommonDisease = disease
		}
	}

	for i := 0; i < statsMonthWindow; i++ {
		bucket := windowStart.AddDate(0, i, 0)
		if n := monthCounts[bucket]; n > 0 {
			stats.ScansByMonth = append(stats.ScansByMonth, MonthCount{Month: bucket.Format("Jan 2006"), Count: n})
		}
	}

	for _, disease := range order {
		stats.DiseaseDistribution = append(stats.DiseaseDistribution, DiseaseCount{Disease: disease, Count: counts[disease]})
	}
	sort.SliceStable(stats.DiseaseDistribution, func(i, j int) bool {
		return stats.DiseaseDistribution[i].Count > stats.DiseaseDistribution[j].Count
	})
	return stats
}
