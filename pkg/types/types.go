// Package types defines the data structures returned by the energy report API.
package types

import "github.com/shopspring/decimal"

// MeterID is an opaque token identifying one meter.
type MeterID string

// Report represents the response from the /api/report endpoint.
type Report struct {
	MeterID       MeterID         `json:"meterId"`
	TotalEnergy   float64         `json:"totalEnergy"`
	TotalCost     decimal.Decimal `json:"totalCost"`
	HourlyReports []HourlyEntry   `json:"hourlyReports"`
}

// HourlyEntry is one hour-bucketed usage and cost record within a report.
// Hour is a UTC label such as "2024-01-01 00:00".
type HourlyEntry struct {
	Hour    string          `json:"hour"`
	KWhUsed float64         `json:"kwhUsed"`
	Cost    decimal.Decimal `json:"cost"`
}

// SumEnergy returns the sum of the hourly kWh values.
// The API is trusted to report matching totals; views only log a mismatch.
func (r *Report) SumEnergy() float64 {
	var total float64
	for _, h := range r.HourlyReports {
		total += h.KWhUsed
	}
	return total
}

// SumCost returns the sum of the hourly costs.
func (r *Report) SumCost() decimal.Decimal {
	total := decimal.Zero
	for _, h := range r.HourlyReports {
		total = total.Add(h.Cost)
	}
	return total
}
