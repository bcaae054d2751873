package analytics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"retention-analytics-service/internal/models"
)

type cohortCell struct {
	cohortMonth time.Time
	maturity    int
}

// BuildCohorts assigns every customer to the cohort of their first-order
// month and counts, for each (cohort, maturity) cell, how many of that
// cohort's customers were active that many months after acquisition.
//
// This stage has no reference date: it is a pure function of historical order
// data, and a re-run against the same ledger produces identical output no
// matter when it runs. Windowing (e.g. capping maturity at 12) is left to the
// presentation layer.
func BuildCohorts(facts map[uuid.UUID]models.CustomerFacts, periods []models.ActivityPeriod) []models.CohortRecord {
	cohortOf := make(map[uuid.UUID]time.Time, len(facts))
	cohortSize := make(map[time.Time]int)
	for id, f := range facts {
		month := models.TruncateToMonth(f.FirstOrderDate)
		cohortOf[id] = month
		cohortSize[month]++
	}

	// Distinct active customers per (cohort, maturity) cell.
	active := make(map[cohortCell]map[uuid.UUID]struct{})
	for _, p := range periods {
		cohort, ok := cohortOf[p.CustomerID]
		if !ok {
			// Activity for a customer absent from the fact table; the fact
			// build is the source of truth, so skip it.
			continue
		}
		maturity := models.MonthsBetween(cohort, models.TruncateToMonth(p.ActivityMonth))
		if maturity < 0 {
			// Activity before acquisition is impossible; guard against bad
			// upstream data rather than emitting a negative maturity row.
			continue
		}
		cell := cohortCell{cohortMonth: cohort, maturity: maturity}
		if active[cell] == nil {
			active[cell] = make(map[uuid.UUID]struct{})
		}
		active[cell][p.CustomerID] = struct{}{}
	}

	records := make([]models.CohortRecord, 0, len(active))
	for cell, customers := range active {
		size := cohortSize[cell.cohortMonth]
		if size == 0 {
			continue
		}
		records = append(records, models.CohortRecord{
			CohortMonth:            cell.cohortMonth,
			MonthsSinceAcquisition: cell.maturity,
			CohortSize:             size,
			ActiveCustomers:        len(customers),
			RetentionRate:          round2(float64(len(customers)) * 100 / float64(size)),
		})
	}

	sort.Slice(records, func(i, j int) bool {
		if !records[i].CohortMonth.Equal(records[j].CohortMonth) {
			return records[i].CohortMonth.Before(records[j].CohortMonth)
		}
		return records[i].MonthsSinceAcquisition < records[j].MonthsSinceAcquisition
	})
	return records
}

// ValidateCohortRecords checks the structural invariants of a cohort matrix:
// a constant cohort size across each cohort's maturity rows and retention
// rates within [0, 100].
func ValidateCohortRecords(records []models.CohortRecord) error {
	sizes := make(map[time.Time]int)
	for _, r := range records {
		if r.RetentionRate < 0 || r.RetentionRate > 100 {
			return fmt.Errorf("cohort %s maturity %d: retention rate %.2f outside [0, 100]",
				r.CohortMonth.Format("2006-01"), r.MonthsSinceAcquisition, r.RetentionRate)
		}
		if prev, ok := sizes[r.CohortMonth]; ok && prev != r.CohortSize {
			return fmt.Errorf("cohort %s: size %d at maturity %d differs from earlier size %d",
				r.CohortMonth.Format("2006-01"), r.CohortSize, r.MonthsSinceAcquisition, prev)
		}
		sizes[r.CohortMonth] = r.CohortSize
	}
	return nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
