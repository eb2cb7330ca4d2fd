package service

import (
	"context"
	"testing"

	"github.com/BerniceZTT/pipeline_end/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeStats(t *testing.T) {
	paid := view("paid", models.StageSales, models.StatusDownPayment, "")
	paid.Value = 1000
	paid.Priority = models.PriorityHigh
	paid.Payments = []models.PaymentEntry{{Amount: 300}, {Amount: 200}}

	hot := view("hot", models.StageLeads, models.StatusHot, "")
	hot.Value = 50
	hot.Priority = models.PriorityMedium

	won := view("won", models.StageSales, models.StatusWon, "")
	won.Value = 700
	lost := view("lost", models.StageLeads, models.StatusLost, "")

	stats := ComputeStats([]models.OpportunityView{paid, hot, won, lost})

	assert.Equal(t, 2, stats.ActiveCount)
	assert.Equal(t, int64(700), stats.WonValue)
	require.Len(t, stats.Stages, 4)

	sales := stats.Stages[3]
	assert.Equal(t, models.StageSales, sales.Stage)
	assert.Equal(t, 1, sales.Count)
	assert.Equal(t, int64(1000), sales.TotalValue)
	assert.Equal(t, int64(500), sales.TotalCashIn)
	require.Len(t, sales.StatusDistribution, 4)
	assert.Equal(t, models.ChartDataItem{Name: "down_payment", Value: 1}, sales.StatusDistribution[1])

	assert.Equal(t, 0, stats.Stages[0].Count)
	assert.Len(t, stats.Stages[0].StatusDistribution, 4)

	assert.Equal(t, []models.ChartDataItem{
		{Name: "won", Value: 1}, {Name: "lost", Value: 1}, {Name: "failed", Value: 0},
	}, stats.ArchivedDistribution)
	assert.Equal(t, []models.ChartDataItem{
		{Name: "high", Value: 1}, {Name: "medium", Value: 1}, {Name: "low", Value: 0},
	}, stats.PriorityDistribution)
}

func TestStatsIncludesArchived(t *testing.T) {
	svc, store := newOpportunityService(t)
	seedOpportunity(t, store, models.Opportunity{ID: "a", Title: "Active", Stage: models.StageProspect, Status: models.StatusPending})
	seedOpportunity(t, store, models.Opportunity{ID: "b", Title: "Failed", Stage: models.StageProspect, Status: models.StatusFailed})

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ActiveCount)
	assert.Equal(t, 1, stats.ArchivedDistribution[2].Value)
}
