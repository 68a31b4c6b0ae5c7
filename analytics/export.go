package analytics

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strconv"

	"wastewise/core"
)

// Format selects an export encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ContentType is the HTTP media type for f.
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv; charset=utf-8"
	}
	return "application/json"
}

var tierColumns = []core.Tier{core.TierExcellent, core.TierGood, core.TierUncertain, core.TierPoor}

// Export writes rows in the given format.
func Export(w io.Writer, f Format, rows []AggregatedData) error {
	switch f {
	case FormatJSON, "":
		return json.NewEncoder(w).Encode(rows)
	case FormatCSV:
		return writeCSV(w, rows)
	}
	return fmt.Errorf("unsupported export format %q", f)
}

// writeCSV emits one row per period. Category counts are flattened into
// one column per category seen in any row.
func writeCSV(w io.Writer, rows []AggregatedData) error {
	var categories []string
	for _, r := range rows {
		for c := range r.ByCategory {
			if !slices.Contains(categories, c) {
				categories = append(categories, c)
			}
		}
	}
	slices.Sort(categories)

	header := []string{"period", "key", "start", "end", "scans", "rejected", "coins_earned", "coins_spent", "level_ups", "achievements"}
	for _, t := range tierColumns {
		header = append(header, "tier_"+string(t))
	}
	for _, c := range categories {
		header = append(header, "category_"+c)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			string(r.Period), r.Key,
			r.StartTime.Format("2006-01-02"), r.EndTime.Format("2006-01-02"),
			itoa(r.Scans), itoa(r.Rejected), itoa(r.CoinsEarned), itoa(r.CoinsSpent),
			itoa(r.LevelUps), itoa(r.Achievements),
		}
		for _, t := range tierColumns {
			rec = append(rec, itoa(r.ByTier[t]))
		}
		for _, c := range categories {
			rec = append(rec, itoa(r.ByCategory[c]))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }
