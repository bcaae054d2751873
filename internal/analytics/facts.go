// Package analytics implements the retention metric pipeline: lifetime fact
// aggregation, recency classification, churn risk scoring, cohort retention
// curves and baseline anomaly detection.
//
// Every stage is a pure function of its inputs plus explicit configuration.
// No stage reads the clock; callers thread a reference date through instead,
// so identical inputs always produce identical outputs.
package analytics

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"retention-analytics-service/internal/models"
)

// BuildFacts aggregates the order ledger into one CustomerFacts row per
// customer: first/last order date, distinct order count, revenue sum and the
// derived average order value.
//
// Malformed rows fail the whole build rather than being skipped: a ledger
// with zero-dated or negative-amount orders is an ingestion defect upstream,
// and aggregating around it would silently understate revenue.
func BuildFacts(orders []models.Order) (map[uuid.UUID]models.CustomerFacts, error) {
	facts := make(map[uuid.UUID]models.CustomerFacts)
	seenOrders := make(map[uuid.UUID]map[uuid.UUID]struct{})

	for i, order := range orders {
		if order.OrderDate.IsZero() {
			return nil, fmt.Errorf("order %s (row %d): order date is required", order.ID, i)
		}
		if order.OrderAmount < 0 {
			return nil, fmt.Errorf("order %s (row %d): negative order amount %.2f", order.ID, i, order.OrderAmount)
		}

		// Distinct order count: the feed may replay rows, so the same order
		// ID must only be counted once.
		customerOrders, ok := seenOrders[order.CustomerID]
		if !ok {
			customerOrders = make(map[uuid.UUID]struct{})
			seenOrders[order.CustomerID] = customerOrders
		}
		if _, dup := customerOrders[order.ID]; dup {
			continue
		}
		customerOrders[order.ID] = struct{}{}

		f, ok := facts[order.CustomerID]
		if !ok {
			facts[order.CustomerID] = models.CustomerFacts{
				CustomerID:     order.CustomerID,
				FirstOrderDate: order.OrderDate,
				LastOrderDate:  order.OrderDate,
				TotalOrders:    1,
				TotalRevenue:   order.OrderAmount,
			}
			continue
		}

		if order.OrderDate.Before(f.FirstOrderDate) {
			f.FirstOrderDate = order.OrderDate
		}
		if order.OrderDate.After(f.LastOrderDate) {
			f.LastOrderDate = order.OrderDate
		}
		f.TotalOrders++
		f.TotalRevenue += order.OrderAmount
		facts[order.CustomerID] = f
	}

	for id, f := range facts {
		f.AverageOrderValue = f.TotalRevenue / float64(f.TotalOrders)
		facts[id] = f
	}

	return facts, nil
}

// SortedFacts returns the fact rows ordered by customer ID so that persisted
// and exported output is byte-identical across re-runs of the same input.
func SortedFacts(facts map[uuid.UUID]models.CustomerFacts) []models.CustomerFacts {
	out := make([]models.CustomerFacts, 0, len(facts))
	for _, f := range facts {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CustomerID.String() < out[j].CustomerID.String()
	})
	return out
}
