package reporting

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realtycrm/pkg/agent"
	"realtycrm/pkg/persistence"
	"realtycrm/pkg/utils"
)

func newTestService(t *testing.T) (*Service, *persistence.Store, string) {
	t.Helper()
	db, err := persistence.InitializeDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := persistence.NewStore(db)
	user := &persistence.User{ID: utils.NewID(), Email: "agent@example.com", PasswordHash: "x"}
	require.NoError(t, store.CreateUser(user))

	return NewService(store), store, user.ID
}

func seedLeads(t *testing.T, store *persistence.Store, userID string, total, converted int) {
	t.Helper()
	for i := 0; i < total; i++ {
		status := persistence.LeadStatusNew
		if i < converted {
			status = persistence.LeadStatusConverted
		}
		lead := &persistence.Lead{
			ID:        utils.NewID(),
			UserID:    userID,
			FirstName: "Lead",
			Status:    status,
			Source:    "website",
		}
		require.NoError(t, store.UpsertLead(lead))
	}
}

func TestLeadMetricsTotals(t *testing.T) {
	svc, store, userID := newTestService(t)
	seedLeads(t, store, userID, 10, 4)

	metrics, err := svc.LeadMetrics(userID, 30)
	require.NoError(t, err)

	assert.Equal(t, 10, metrics.TotalLeads)
	assert.Equal(t, 4, metrics.ConvertedLeads)
	assert.InDelta(t, 40.0, metrics.ConversionRate, 0.001)
	assert.Equal(t, 6, metrics.NewLeads)
	assert.Equal(t, 6, metrics.ByStatus[persistence.LeadStatusNew])
	assert.Equal(t, 10, metrics.BySource["website"])
	require.Len(t, metrics.LeadsOverTime, 1)
	assert.Equal(t, 10, metrics.LeadsOverTime[0].Count)
}

func TestLeadMetricsEmpty(t *testing.T) {
	svc, _, userID := newTestService(t)

	metrics, err := svc.LeadMetrics(userID, 30)
	require.NoError(t, err)
	assert.Zero(t, metrics.TotalLeads)
	assert.Zero(t, metrics.ConversionRate)
}

func TestMetricsExcludeOlderRecords(t *testing.T) {
	svc, store, userID := newTestService(t)

	backdated := time.Now().UTC().AddDate(0, 0, -60)
	lead := &persistence.Lead{
		ID:        utils.NewID(),
		UserID:    userID,
		FirstName: "Old",
		Status:    persistence.LeadStatusNew,
		CreatedAt: backdated,
	}
	require.NoError(t, store.UpsertLead(lead))
	tx := &persistence.Transaction{
		ID:              utils.NewID(),
		UserID:          userID,
		PropertyAddress: "12 Elm St",
		Price:           "$400,000",
		Status:          persistence.TxStatusActive,
		CreatedAt:       backdated,
	}
	require.NoError(t, store.UpsertTransaction(tx))

	leadMetrics, err := svc.LeadMetrics(userID, 30)
	require.NoError(t, err)
	assert.Zero(t, leadMetrics.TotalLeads)
	assert.Empty(t, leadMetrics.LeadsOverTime)

	txMetrics, err := svc.TransactionMetrics(userID, 30)
	require.NoError(t, err)
	assert.Zero(t, txMetrics.TotalTransactions)
	assert.Zero(t, txMetrics.TotalValue)

	// A wider window picks both back up.
	leadMetrics, err = svc.LeadMetrics(userID, 90)
	require.NoError(t, err)
	assert.Equal(t, 1, leadMetrics.TotalLeads)

	txMetrics, err = svc.TransactionMetrics(userID, 90)
	require.NoError(t, err)
	assert.Equal(t, 1, txMetrics.TotalTransactions)
}

func TestTransactionMetrics(t *testing.T) {
	svc, store, userID := newTestService(t)

	prices := []struct {
		price  string
		status string
	}{
		{"$300,000", persistence.TxStatusClosed},
		{"500000", persistence.TxStatusClosed},
		{"$250,000", persistence.TxStatusActive},
	}
	for _, p := range prices {
		tx := &persistence.Transaction{
			ID:              utils.NewID(),
			UserID:          userID,
			PropertyAddress: "somewhere",
			Price:           p.price,
			Status:          p.status,
		}
		require.NoError(t, store.UpsertTransaction(tx))
	}

	metrics, err := svc.TransactionMetrics(userID, 30)
	require.NoError(t, err)

	assert.Equal(t, 3, metrics.TotalTransactions)
	assert.Equal(t, 2, metrics.ClosedCount)
	assert.InDelta(t, 1050000, metrics.TotalValue, 0.001)
	assert.InDelta(t, 350000, metrics.AverageValue, 0.001)
	assert.Equal(t, 2, metrics.ByStatus[persistence.TxStatusClosed])
	require.Len(t, metrics.ValueTrend, 1)
}

func TestGenerateReport(t *testing.T) {
	svc, store, userID := newTestService(t)
	seedLeads(t, store, userID, 5, 1)
	for i := 0; i < 2; i++ {
		tx := &persistence.Transaction{
			ID:              utils.NewID(),
			UserID:          userID,
			PropertyAddress: "somewhere",
			Price:           "$200,000",
			Status:          persistence.TxStatusActive,
		}
		require.NoError(t, store.UpsertTransaction(tx))
	}

	report, err := svc.GenerateReport(userID, 0)
	require.NoError(t, err)

	assert.Equal(t, DefaultDateRangeDays, report.PeriodDays)
	assert.Equal(t, userID, report.UserID)
	assert.Equal(t, 5, report.Leads.TotalLeads)
	assert.InDelta(t, 20.0, report.Leads.ConversionRate, 0.001)
	assert.Equal(t, 2, report.Transactions.TotalTransactions)
	assert.InDelta(t, 40.0, report.ConversionRate, 0.001)
	assert.NotEmpty(t, report.Insights)
	assert.False(t, report.GeneratedAt.IsZero())
}

func TestGenerateReportNoLeads(t *testing.T) {
	svc, _, userID := newTestService(t)

	report, err := svc.GenerateReport(userID, 0)
	require.NoError(t, err)
	assert.Zero(t, report.ConversionRate)
}

func TestCreateVisualization(t *testing.T) {
	svc, _, _ := newTestService(t)

	leads := &LeadMetrics{LeadsOverTime: []DateCount{{Date: "2026-08-01", Count: 3}}}
	transactions := &TransactionMetrics{
		ByStatus:   map[string]int{"closed": 2},
		ValueTrend: []DateValue{{Date: "2026-08", Value: 800000}},
	}

	t.Run("leads_over_time", func(t *testing.T) {
		viz, err := svc.CreateVisualization(VizLeadsOverTime, leads, nil)
		require.NoError(t, err)
		assert.Equal(t, "line", viz["type"])
	})

	t.Run("transactions_by_status", func(t *testing.T) {
		viz, err := svc.CreateVisualization(VizTransactionsByStatus, nil, transactions)
		require.NoError(t, err)
		assert.Equal(t, "bar", viz["type"])
	})

	t.Run("transaction_value_trend", func(t *testing.T) {
		viz, err := svc.CreateVisualization(VizTransactionValueTrend, nil, transactions)
		require.NoError(t, err)
		assert.Equal(t, "line", viz["type"])
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := svc.CreateVisualization("pie_of_doom", leads, transactions)
		require.Error(t, err)
		assert.Equal(t, agent.ErrorTypeValidation, agent.TypeOf(err))
	})

	t.Run("missing metrics", func(t *testing.T) {
		_, err := svc.CreateVisualization(VizLeadsOverTime, nil, nil)
		assert.Error(t, err)
	})
}
