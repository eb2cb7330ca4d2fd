package models

// ChartDataItem 图表数据项
type ChartDataItem struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// StageStats 单个阶段的统计
type StageStats struct {
	Stage              Stage           `json:"stage"`
	Count              int             `json:"count"`              // 未归档商机数
	TotalValue         int64           `json:"totalValue"`         // 目标金额合计
	TotalCashIn        int64           `json:"totalCashIn"`        // 回款合计
	StatusDistribution []ChartDataItem `json:"statusDistribution"` // 按状态分布，包含空状态
}

// PipelineStats 商机管道看板统计
type PipelineStats struct {
	ActiveCount          int             `json:"activeCount"`          // 未归档商机总数
	Stages               []StageStats    `json:"stages"`               // 按管道顺序
	ArchivedDistribution []ChartDataItem `json:"archivedDistribution"` // 按归档原因分布
	PriorityDistribution []ChartDataItem `json:"priorityDistribution"` // 未归档商机按优先级分布
	WonValue             int64           `json:"wonValue"`             // 赢单目标金额合计
}
