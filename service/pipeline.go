package service

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/BerniceZTT/pipeline_end/models"
)

// ApplySearch 按标题或客户名称做不区分大小写的子串匹配，空查询原样返回
func ApplySearch(items []models.OpportunityView, query string) []models.OpportunityView {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return items
	}

	out := make([]models.OpportunityView, 0, len(items))
	for _, item := range items {
		if strings.Contains(strings.ToLower(item.Title), q) ||
			strings.Contains(strings.ToLower(item.ClientName()), q) {
			out = append(out, item)
		}
	}
	return out
}

// GroupByStatus 按状态词表分列，没有记录的状态也保留空列
func GroupByStatus(items []models.OpportunityView, vocabulary []models.Status) []models.BoardColumn {
	columns := make([]models.BoardColumn, len(vocabulary))
	index := make(map[models.Status]int, len(vocabulary))
	for i, status := range vocabulary {
		columns[i] = models.BoardColumn{Status: status, Items: make([]models.OpportunityView, 0)}
		index[status] = i
	}
	for _, item := range items {
		if i, ok := index[item.Status]; ok {
			columns[i].Items = append(columns[i].Items, item)
		}
	}
	return columns
}

// CashIn 回款合计
func CashIn(payments []models.PaymentEntry) int64 {
	var total int64
	for _, p := range payments {
		total += p.Amount
	}
	return total
}

// withCashIn 以回款列表重新计算 CashIn
func withCashIn(view models.OpportunityView) models.OpportunityView {
	if view.Payments == nil {
		view.Payments = make([]models.PaymentEntry, 0)
	}
	view.CashIn = CashIn(view.Payments)
	return view
}

// CanAdvance 是否可以进入下一阶段
func CanAdvance(o models.Opportunity) bool {
	if o.IsArchived() {
		return false
	}
	switch o.Stage {
	case models.StageProspect, models.StageLeads:
		return o.Status != models.StatusPending
	case models.StageProposal:
		return o.Status == models.StatusSent
	default:
		return false
	}
}

// CanArchive 是否可以按给定原因归档，赢单需要全款且回款不少于金额
func CanArchive(o models.Opportunity, cashIn int64, reason models.Status) bool {
	if o.IsArchived() {
		return false
	}
	allowed, ok := models.ArchiveReasonFor(o.Stage)
	if !ok || allowed != reason {
		return false
	}
	if reason == models.StatusWon {
		return o.Status == models.StatusFullPayment && cashIn >= o.Value
	}
	return true
}

// ExportHeaders 导出表头
var ExportHeaders = []string{
	"标题", "客户", "联系人", "联系人职位", "联系人邮箱", "联系人电话",
	"阶段", "状态", "金额", "已回款", "优先级", "类型", "备注",
	"创建时间", "最后更新时间",
}

// ExportRows 将商机转换为表格行，每个商机一行，多个联系人合并到同一单元格。
// perContact 为 true 时按联系人展开，每个联系人一行
func ExportRows(items []models.OpportunityView, perContact bool) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		base := []string{item.Title, item.ClientName()}
		tail := []string{
			string(item.Stage),
			string(item.Status),
			strconv.FormatInt(item.Value, 10),
			strconv.FormatInt(CashIn(item.Payments), 10),
			string(item.Priority),
			string(item.OpportunityType),
			item.Notes,
			formatTime(item.CreatedAt),
			formatTime(item.UpdatedAt),
		}

		var contacts []models.Contact
		if item.Client != nil {
			contacts = item.Client.Contacts
		}
		if !perContact || len(contacts) == 0 {
			contacts = []models.Contact{mergeContacts(contacts)}
		}
		for _, contact := range contacts {
			row := make([]string, 0, len(ExportHeaders))
			row = append(row, base...)
			row = append(row, contact.Name, contact.Position, contact.Email, contact.Phone)
			row = append(row, tail...)
			rows = append(rows, row)
		}
	}
	return rows
}

// mergeContacts 把多个联系人的字段按列用分号拼接
func mergeContacts(contacts []models.Contact) models.Contact {
	if len(contacts) == 1 {
		return contacts[0]
	}
	var names, positions, emails, phones []string
	for _, c := range contacts {
		names = append(names, c.Name)
		positions = append(positions, c.Position)
		emails = append(emails, c.Email)
		phones = append(phones, c.Phone)
	}
	return models.Contact{
		Name:     strings.Join(names, "; "),
		Position: strings.Join(positions, "; "),
		Email:    strings.Join(emails, "; "),
		Phone:    strings.Join(phones, "; "),
	}
}

// WriteCSV 写出CSV
func WriteCSV(w io.Writer, items []models.OpportunityView, perContact bool) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(ExportHeaders); err != nil {
		return err
	}
	if err := writer.WriteAll(ExportRows(items, perContact)); err != nil {
		return err
	}
	return writer.Error()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
