// Package reporting computes lead and transaction metrics, performance
// reports, and visualization payloads for the analytics agent.
package reporting

import (
	"fmt"
	"sort"
	"time"

	"realtycrm/pkg/agent"
	"realtycrm/pkg/logx"
	"realtycrm/pkg/persistence"
)

// Visualization type names accepted by CreateVisualization.
const (
	VizLeadsOverTime         = "leads_over_time"
	VizTransactionsByStatus  = "transactions_by_status"
	VizTransactionValueTrend = "transaction_value_trend"
)

// DefaultDateRangeDays is the report window when the caller does not name one.
const DefaultDateRangeDays = 30

// DateCount is one point of a time series.
type DateCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// DateValue is one point of a value series.
type DateValue struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// LeadMetrics summarizes a user's lead funnel over a period.
type LeadMetrics struct {
	TotalLeads     int            `json:"total_leads"`
	NewLeads       int            `json:"new_leads"`
	ConvertedLeads int            `json:"converted_leads"`
	ConversionRate float64        `json:"conversion_rate"`
	ByStatus       map[string]int `json:"by_status"`
	BySource       map[string]int `json:"by_source"`
	LeadsOverTime  []DateCount    `json:"leads_over_time"`
}

// TransactionMetrics summarizes a user's deals over a period.
type TransactionMetrics struct {
	TotalTransactions int            `json:"total_transactions"`
	ClosedCount       int            `json:"closed_count"`
	ByStatus          map[string]int `json:"by_status"`
	TotalValue        float64        `json:"total_value"`
	AverageValue      float64        `json:"average_value"`
	ValueTrend        []DateValue    `json:"value_trend"`
}

// Report is the full performance report payload. ConversionRate is the
// lead-to-deal rate: transactions opened per lead in the period, as a
// percentage.
type Report struct {
	GeneratedAt    time.Time          `json:"generated_at"`
	UserID         string             `json:"user_id"`
	PeriodDays     int                `json:"period_days"`
	ConversionRate float64            `json:"conversion_rate"`
	Leads          LeadMetrics        `json:"lead_metrics"`
	Transactions   TransactionMetrics `json:"transaction_metrics"`
	Insights       []string           `json:"insights"`
}

// Service computes analytics from the store. Aggregation happens in Go over
// the user's fetched rows, not in SQL.
type Service struct {
	store  *persistence.Store
	logger *logx.Logger
}

// NewService creates a reporting Service.
func NewService(store *persistence.Store) *Service {
	return &Service{store: store, logger: logx.NewLogger("reporting")}
}

// LeadMetrics computes the lead funnel for the trailing dateRange days.
func (s *Service) LeadMetrics(userID string, dateRange int) (*LeadMetrics, error) {
	if dateRange <= 0 {
		dateRange = DefaultDateRangeDays
	}
	since := time.Now().UTC().AddDate(0, 0, -dateRange)

	leads, err := s.store.ListLeads(userID, &persistence.LeadFilter{CreatedAfter: &since})
	if err != nil {
		return nil, err
	}

	metrics := &LeadMetrics{
		ByStatus: make(map[string]int),
		BySource: make(map[string]int),
	}
	perDay := make(map[string]int)

	for _, lead := range leads {
		metrics.TotalLeads++
		metrics.ByStatus[lead.Status]++
		if lead.Source != "" {
			metrics.BySource[lead.Source]++
		}
		if lead.Status == persistence.LeadStatusNew {
			metrics.NewLeads++
		}
		if lead.Status == persistence.LeadStatusConverted {
			metrics.ConvertedLeads++
		}
		perDay[lead.CreatedAt.Format("2006-01-02")]++
	}

	if metrics.TotalLeads > 0 {
		metrics.ConversionRate = 100 * float64(metrics.ConvertedLeads) / float64(metrics.TotalLeads)
	}
	metrics.LeadsOverTime = sortedCounts(perDay)
	return metrics, nil
}

// TransactionMetrics computes deal totals for the trailing dateRange days.
func (s *Service) TransactionMetrics(userID string, dateRange int) (*TransactionMetrics, error) {
	if dateRange <= 0 {
		dateRange = DefaultDateRangeDays
	}

	since := time.Now().UTC().AddDate(0, 0, -dateRange)

	transactions, err := s.store.ListTransactions(userID, &persistence.TransactionFilter{CreatedAfter: &since})
	if err != nil {
		return nil, err
	}

	metrics := &TransactionMetrics{ByStatus: make(map[string]int)}
	perMonth := make(map[string]float64)
	valued := 0

	for _, tx := range transactions {
		metrics.TotalTransactions++
		metrics.ByStatus[tx.Status]++
		if tx.Status == persistence.TxStatusClosed {
			metrics.ClosedCount++
		}

		value, err := persistence.ParsePrice(tx.Price)
		if err != nil {
			s.logger.Warn("skipping unparseable price on transaction %s: %v", tx.ID, err)
			continue
		}
		if value > 0 {
			metrics.TotalValue += value
			valued++
			perMonth[tx.CreatedAt.Format("2006-01")] += value
		}
	}

	if valued > 0 {
		metrics.AverageValue = metrics.TotalValue / float64(valued)
	}
	metrics.ValueTrend = sortedValues(perMonth)
	return metrics, nil
}

// GenerateReport assembles the full performance report.
func (s *Service) GenerateReport(userID string, dateRange int) (*Report, error) {
	if dateRange <= 0 {
		dateRange = DefaultDateRangeDays
	}

	leadMetrics, err := s.LeadMetrics(userID, dateRange)
	if err != nil {
		return nil, fmt.Errorf("failed to compute lead metrics: %w", err)
	}
	txMetrics, err := s.TransactionMetrics(userID, dateRange)
	if err != nil {
		return nil, fmt.Errorf("failed to compute transaction metrics: %w", err)
	}

	report := &Report{
		GeneratedAt:  time.Now().UTC(),
		UserID:       userID,
		PeriodDays:   dateRange,
		Leads:        *leadMetrics,
		Transactions: *txMetrics,
		Insights:     generateInsights(leadMetrics, txMetrics),
	}
	if leadMetrics.TotalLeads > 0 {
		report.ConversionRate = 100 * float64(txMetrics.TotalTransactions) / float64(leadMetrics.TotalLeads)
	}
	s.logger.Info("generated report for user %s (%d leads, %d transactions)",
		userID, leadMetrics.TotalLeads, txMetrics.TotalTransactions)
	return report, nil
}

// CreateVisualization builds a chart payload from metric data. The data
// argument carries whichever metrics bundle the chart type reads.
func (s *Service) CreateVisualization(vizType string, leads *LeadMetrics, transactions *TransactionMetrics) (map[string]any, error) {
	switch vizType {
	case VizLeadsOverTime:
		if leads == nil {
			return nil, agent.ValidationError("create_visualization", "lead metrics required for %s", vizType)
		}
		return map[string]any{
			"type":   "line",
			"title":  "Leads over time",
			"points": leads.LeadsOverTime,
		}, nil
	case VizTransactionsByStatus:
		if transactions == nil {
			return nil, agent.ValidationError("create_visualization", "transaction metrics required for %s", vizType)
		}
		return map[string]any{
			"type":   "bar",
			"title":  "Transactions by status",
			"series": transactions.ByStatus,
		}, nil
	case VizTransactionValueTrend:
		if transactions == nil {
			return nil, agent.ValidationError("create_visualization", "transaction metrics required for %s", vizType)
		}
		return map[string]any{
			"type":   "line",
			"title":  "Transaction value trend",
			"points": transactions.ValueTrend,
		}, nil
	default:
		return nil, agent.ValidationError("create_visualization", "unknown visualization type %q", vizType)
	}
}

func generateInsights(leads *LeadMetrics, transactions *TransactionMetrics) []string {
	insights := []string{}

	switch {
	case leads.TotalLeads == 0:
		insights = append(insights, "No leads recorded yet. Connect a lead source to start building the funnel.")
	case leads.ConversionRate < 10:
		insights = append(insights, fmt.Sprintf("Conversion rate is %.1f%%. Consider faster follow-up on new leads.", leads.ConversionRate))
	default:
		insights = append(insights, fmt.Sprintf("Conversion rate is %.1f%% across %d leads.", leads.ConversionRate, leads.TotalLeads))
	}

	if leads.NewLeads > 0 {
		insights = append(insights, fmt.Sprintf("%d leads are still awaiting first contact.", leads.NewLeads))
	}
	if transactions.ClosedCount > 0 {
		insights = append(insights, fmt.Sprintf("%d transactions closed, $%.0f total volume.", transactions.ClosedCount, transactions.TotalValue))
	}
	return insights
}

func sortedCounts(perDay map[string]int) []DateCount {
	keys := make([]string, 0, len(perDay))
	for key := range perDay {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	series := make([]DateCount, 0, len(keys))
	for _, key := range keys {
		series = append(series, DateCount{Date: key, Count: perDay[key]})
	}
	return series
}

func sortedValues(perMonth map[string]float64) []DateValue {
	keys := make([]string, 0, len(perMonth))
	for key := range perMonth {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	series := make([]DateValue, 0, len(keys))
	for _, key := range keys {
		series = append(series, DateValue{Date: key, Value: perMonth[key]})
	}
	return series
}
