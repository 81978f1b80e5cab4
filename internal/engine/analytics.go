package engine

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"paylens-backend/internal/dataset"
	"paylens-backend/internal/metadata"
)

// Granularity values accepted by the time-series endpoints.
const (
	GranularityDaily   = "daily"
	GranularityWeekly  = "weekly"
	GranularityMonthly = "monthly"
	GranularityYearly  = "yearly"
)

func ValidGranularity(g string) bool {
	switch g {
	case GranularityDaily, GranularityWeekly, GranularityMonthly, GranularityYearly:
		return true
	}
	return false
}

type bucket struct {
	key   [3]int
	label string
	sum   float64
	count int
}

func bucketFor(granularity string, ts time.Time) ([3]int, string) {
	switch granularity {
	case GranularityDaily:
		k := [3]int{ts.Year(), int(ts.Month()), ts.Day()}
		return k, fmt.Sprintf("%04d-%02d-%02d", k[0], k[1], k[2])
	case GranularityWeekly:
		y, w := ts.ISOWeek()
		k := [3]int{y, w, 0}
		return k, fmt.Sprintf("%04d-W%02d", y, w)
	case GranularityMonthly:
		k := [3]int{ts.Year(), int(ts.Month()), 0}
		return k, fmt.Sprintf("%04d-%02d", k[0], k[1])
	default: // yearly
		k := [3]int{ts.Year(), 0, 0}
		return k, fmt.Sprintf("%04d", k[0])
	}
}

func timeBuckets(t *dataset.Table, granularity string) []*bucket {
	byKey := make(map[[3]int]*bucket)
	for i := range t.Rows {
		dv, ok := t.Value(i, metadata.ColDate)
		if !ok {
			continue
		}
		ts, ok := dv.(time.Time)
		if !ok {
			continue
		}
		key, label := bucketFor(granularity, ts)
		b := byKey[key]
		if b == nil {
			b = &bucket{key: key, label: label}
			byKey[key] = b
		}
		if av, ok := t.Value(i, metadata.ColAmount); ok {
			if f, ok := av.(float64); ok && !math.IsNaN(f) {
				b.sum += f
				b.count++
			}
		}
	}

	buckets := make([]*bucket, 0, len(byKey))
	for _, b := range byKey {
		buckets = append(buckets, b)
	}
	sort.Slice(buckets, func(i, j int) bool {
		a, b := buckets[i].key, buckets[j].key
		if a[0] != b[0] {
			return a[0] < b[0]
		}
		if a[1] != b[1] {
			return a[1] < b[1]
		}
		return a[2] < b[2]
	})
	return buckets
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// TransactionVolumeOverTime sums amounts per time bucket.
func TransactionVolumeOverTime(t *dataset.Table, granularity, suffix string) GraphData {
	buckets := timeBuckets(t, granularity)
	points := GraphPoints{Labels: []string{}, Values: []float64{}}
	for _, b := range buckets {
		points.Labels = append(points.Labels, b.label)
		points.Values = append(points.Values, round2(b.sum))
	}
	return GraphData{
		Metric: fmt.Sprintf("%s Transaction Volume%s", capitalize(granularity), suffix),
		Data:   points,
	}
}

// TransactionCountOverTime counts transactions per time bucket.
func TransactionCountOverTime(t *dataset.Table, granularity, suffix string) GraphData {
	buckets := timeBuckets(t, granularity)
	points := GraphPoints{Labels: []string{}, Values: []float64{}}
	for _, b := range buckets {
		points.Labels = append(points.Labels, b.label)
		points.Values = append(points.Values, float64(b.count))
	}
	return GraphData{
		Metric: fmt.Sprintf("%s Transaction Count%s", capitalize(granularity), suffix),
		Data:   points,
	}
}

// AverageTransactionOverTime averages amounts per time bucket.
func AverageTransactionOverTime(t *dataset.Table, granularity, suffix string) GraphData {
	buckets := timeBuckets(t, granularity)
	points := GraphPoints{Labels: []string{}, Values: []float64{}}
	for _, b := range buckets {
		avg := 0.0
		if b.count > 0 {
			avg = b.sum / float64(b.count)
		}
		points.Labels = append(points.Labels, b.label)
		points.Values = append(points.Values, round2(avg))
	}
	return GraphData{
		Metric: fmt.Sprintf("%s Average Transaction Value%s", capitalize(granularity), suffix),
		Data:   points,
	}
}

type pairStat struct {
	entityID string
	targetID string
	sum      float64
	count    int
}

// pairStats aggregates amount sum and transaction count per
// (entityIDCol, targetIDCol) pair, in first-seen order.
func pairStats(t *dataset.Table, entityIDCol, targetIDCol string) []*pairStat {
	byKey := make(map[[2]string]*pairStat)
	var order [][2]string
	for i := range t.Rows {
		eid, ok := groupKey(t, i, entityIDCol)
		if !ok {
			continue
		}
		tid, ok := groupKey(t, i, targetIDCol)
		if !ok {
			continue
		}
		key := [2]string{eid, tid}
		ps := byKey[key]
		if ps == nil {
			ps = &pairStat{entityID: eid, targetID: tid}
			byKey[key] = ps
			order = append(order, key)
		}
		if av, ok := t.Value(i, metadata.ColAmount); ok {
			if f, ok := av.(float64); ok && !math.IsNaN(f) {
				ps.sum += f
				ps.count++
			}
		}
	}
	stats := make([]*pairStat, len(order))
	for i, key := range order {
		stats[i] = byKey[key]
	}
	return stats
}

// TopEntities returns, per entity, the top-N target entities by amount or
// transaction count; both metrics are always included in the rows.
func TopEntities(t *dataset.Table, entityIDCol, targetIDCol, mode string, limit int, suffix string) TableData {
	stats := pairStats(t, entityIDCol, targetIDCol)

	// Pick up a display name when the dataset carries one.
	nameCol := strings.TrimSuffix(targetIDCol, "_id") + "_name"
	names := map[string]string{}
	if t.HasColumn(nameCol) {
		for i := range t.Rows {
			tid, ok := groupKey(t, i, targetIDCol)
			if !ok {
				continue
			}
			if _, seen := names[tid]; seen {
				continue
			}
			if v, ok := t.Value(i, nameCol); ok {
				if s, ok := v.(string); ok {
					names[tid] = s
				}
			}
		}
	}

	byAmount := mode == "amount"
	sort.SliceStable(stats, func(i, j int) bool {
		if stats[i].entityID != stats[j].entityID {
			return stats[i].entityID < stats[j].entityID
		}
		if byAmount {
			return stats[i].sum > stats[j].sum
		}
		return stats[i].count > stats[j].count
	})

	rows := make([]map[string]any, 0)
	taken := map[string]int{}
	for _, ps := range stats {
		if taken[ps.entityID] >= limit {
			continue
		}
		taken[ps.entityID]++
		row := map[string]any{
			entityIDCol:         ps.entityID,
			targetIDCol:         ps.targetID,
			"total_amount":      round2(ps.sum),
			"transaction_count": ps.count,
		}
		if name, ok := names[ps.targetID]; ok {
			row[nameCol] = name
		}
		rows = append(rows, row)
	}

	targetLabel := capitalize(strings.TrimSuffix(targetIDCol, "_id"))
	metric := fmt.Sprintf("Top %d %ss by Amount", limit, targetLabel)
	if !byAmount {
		metric = fmt.Sprintf("Top %d %ss by Transaction Count", limit, targetLabel)
	}
	return TableData{Metric: metric + suffix, Data: rows}
}

// TransactionOutliers flags (entity, target) pairs whose amount sum lies
// more than stdMultiplier sample standard deviations from the mean of all
// pair sums.
func TransactionOutliers(t *dataset.Table, entityIDCol, targetIDCol string, stdMultiplier float64, suffix string) TableData {
	stats := pairStats(t, entityIDCol, targetIDCol)
	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].sum > stats[j].sum
	})

	var mean float64
	for _, ps := range stats {
		mean += ps.sum
	}
	if len(stats) > 0 {
		mean /= float64(len(stats))
	}
	sums := make([]float64, len(stats))
	for i, ps := range stats {
		sums[i] = ps.sum
	}
	std := sampleStddev(sums, mean)

	rows := make([]map[string]any, 0)
	if !math.IsNaN(std) {
		hi := mean + std*stdMultiplier
		lo := mean - std*stdMultiplier
		for _, ps := range stats {
			if ps.sum > hi || ps.sum < lo {
				rows = append(rows, map[string]any{
					entityIDCol: ps.entityID,
					targetIDCol: ps.targetID,
					"amount":    round2(ps.sum),
					"outlier":   true,
				})
			}
		}
	}

	targetLabel := capitalize(strings.TrimSuffix(targetIDCol, "_id"))
	metric := fmt.Sprintf("%s Transaction Outliers (±%g STD)%s", targetLabel, stdMultiplier, suffix)
	return TableData{Metric: metric, Data: rows}
}

// DaysBetweenTransactions lists, per (entity, customer), each transaction
// with the day gap since that customer's previous one. The first
// transaction of a pair has a null gap.
func DaysBetweenTransactions(t *dataset.Table, entityIDCol, suffix string) TableData {
	type txn struct {
		entityID   string
		customerID string
		date       time.Time
	}
	var txns []txn
	for i := range t.Rows {
		eid, ok := groupKey(t, i, entityIDCol)
		if !ok {
			continue
		}
		cid, ok := groupKey(t, i, metadata.ColCustomerID)
		if !ok {
			continue
		}
		dv, ok := t.Value(i, metadata.ColDate)
		if !ok {
			continue
		}
		ts, ok := dv.(time.Time)
		if !ok {
			continue
		}
		txns = append(txns, txn{entityID: eid, customerID: cid, date: ts})
	}

	sort.SliceStable(txns, func(i, j int) bool {
		if txns[i].entityID != txns[j].entityID {
			return txns[i].entityID < txns[j].entityID
		}
		if txns[i].customerID != txns[j].customerID {
			return txns[i].customerID < txns[j].customerID
		}
		return txns[i].date.Before(txns[j].date)
	})

	rows := make([]map[string]any, 0, len(txns))
	for i, tx := range txns {
		var daysSince any
		if i > 0 && txns[i-1].entityID == tx.entityID && txns[i-1].customerID == tx.customerID {
			daysSince = math.Floor(tx.date.Sub(txns[i-1].date).Hours() / 24)
		}
		rows = append(rows, map[string]any{
			entityIDCol:            tx.entityID,
			metadata.ColCustomerID: tx.customerID,
			metadata.ColDate:       tx.date,
			"days_since":           daysSince,
		})
	}

	return TableData{
		Metric: fmt.Sprintf("Days Between Transactions per Customer%s", suffix),
		Data:   rows,
	}
}

// UniqueCount counts distinct non-null values of a column.
func UniqueCount(t *dataset.Table, col string) int {
	seen := make(map[any]struct{})
	for i := range t.Rows {
		if v, ok := t.Value(i, col); ok {
			seen[v] = struct{}{}
		}
	}
	return len(seen)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
