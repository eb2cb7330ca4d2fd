package service

import (
	"context"

	"github.com/BerniceZTT/pipeline_end/models"
	"github.com/BerniceZTT/pipeline_end/repository"
)

// ComputeStats 汇总商机管道统计，回款合计按回款记录重新计算
func ComputeStats(items []models.OpportunityView) models.PipelineStats {
	stats := models.PipelineStats{
		Stages:               make([]models.StageStats, len(models.Stages)),
		ArchivedDistribution: make([]models.ChartDataItem, len(models.TerminalStatuses)),
		PriorityDistribution: []models.ChartDataItem{
			{Name: string(models.PriorityHigh)},
			{Name: string(models.PriorityMedium)},
			{Name: string(models.PriorityLow)},
		},
	}

	stageIndex := make(map[models.Stage]int, len(models.Stages))
	statusIndex := make([]map[models.Status]int, len(models.Stages))
	for i, stage := range models.Stages {
		stageIndex[stage] = i
		vocabulary := models.StatusVocabulary(stage)
		stats.Stages[i] = models.StageStats{
			Stage:              stage,
			StatusDistribution: make([]models.ChartDataItem, len(vocabulary)),
		}
		statusIndex[i] = make(map[models.Status]int, len(vocabulary))
		for j, status := range vocabulary {
			stats.Stages[i].StatusDistribution[j].Name = string(status)
			statusIndex[i][status] = j
		}
	}
	archivedIndex := make(map[models.Status]int, len(models.TerminalStatuses))
	for i, status := range models.TerminalStatuses {
		stats.ArchivedDistribution[i].Name = string(status)
		archivedIndex[status] = i
	}

	for _, item := range items {
		if item.IsArchived() {
			stats.ArchivedDistribution[archivedIndex[item.Status]].Value++
			if item.Status == models.StatusWon {
				stats.WonValue += item.Value
			}
			continue
		}
		i, ok := stageIndex[item.Stage]
		if !ok {
			continue
		}
		stats.ActiveCount++
		stage := &stats.Stages[i]
		stage.Count++
		stage.TotalValue += item.Value
		stage.TotalCashIn += CashIn(item.Payments)
		if j, ok := statusIndex[i][item.Status]; ok {
			stage.StatusDistribution[j].Value++
		}
		for k := range stats.PriorityDistribution {
			if stats.PriorityDistribution[k].Name == string(item.Priority) {
				stats.PriorityDistribution[k].Value++
			}
		}
	}
	return stats
}

// Stats 商机管道统计，包含已归档的商机
func (s *OpportunityService) Stats(ctx context.Context) (models.PipelineStats, error) {
	views, err := s.opportunities.FindOpportunities(ctx, repository.OpportunityFilter{})
	if err != nil {
		return models.PipelineStats{}, err
	}
	return ComputeStats(views), nil
}
