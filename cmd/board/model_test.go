package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/BerniceZTT/pipeline_end/board"
	"github.com/BerniceZTT/pipeline_end/models"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySource struct {
	mu            sync.Mutex
	items         []models.OpportunityView
	failErr       error
	paymentErrors []string
}

func (s *memorySource) ListByStage(ctx context.Context, stage models.Stage) ([]models.OpportunityView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.OpportunityView{}
	for _, v := range s.items {
		if v.Stage == stage && !v.IsArchived() {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *memorySource) update(id string, fn func(*models.OpportunityView)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	for i := range s.items {
		if s.items[i].ID == id {
			fn(&s.items[i])
		}
	}
	return nil
}

func (s *memorySource) UpdateStatus(ctx context.Context, id string, from, to models.Status) error {
	return s.update(id, func(v *models.OpportunityView) { v.Status = to })
}

func (s *memorySource) AdvanceStage(ctx context.Context, id string) error {
	return s.update(id, func(v *models.OpportunityView) {
		next, _ := models.NextStage(v.Stage)
		v.Stage, v.Status = next, models.EntryStatus(next)
	})
}

func (s *memorySource) Archive(ctx context.Context, id string, reason models.Status) error {
	return s.update(id, func(v *models.OpportunityView) { v.Status = reason })
}

func (s *memorySource) Create(ctx context.Context, req models.OpportunityCreateRequest) (*models.OpportunityView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := models.OpportunityView{
		Opportunity: models.Opportunity{ID: fmt.Sprintf("n%d", len(s.items)), Title: req.Title, Value: req.Value,
			Priority: req.Priority, Stage: models.StageProspect, Status: models.StatusPending},
		Payments: []models.PaymentEntry{},
	}
	s.items = append(s.items, v)
	return &v, nil
}

func (s *memorySource) Upsert(ctx context.Context, id string, req models.OpportunityUpsertRequest) (*models.UpsertResult, error) {
	var view models.OpportunityView
	err := s.update(id, func(v *models.OpportunityView) {
		v.Title, v.Value, v.Priority, v.Notes = req.Title, req.Value, req.Priority, req.Notes
		deleted := map[string]bool{}
		for _, pid := range req.PaymentsToDelete {
			deleted[pid] = true
		}
		payments := []models.PaymentEntry{}
		for _, p := range v.Payments {
			if !deleted[p.ID] {
				payments = append(payments, p)
			}
		}
		for i, p := range req.PaymentsToAdd {
			payments = append(payments, models.PaymentEntry{ID: fmt.Sprintf("added%d", i), Amount: p.Amount})
		}
		v.Payments = payments
		view = *v
	})
	if err != nil {
		return nil, err
	}
	return &models.UpsertResult{Opportunity: &view, PaymentErrors: s.paymentErrors}, nil
}

func (s *memorySource) Payments(ctx context.Context, id string) ([]models.PaymentEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.items {
		if v.ID == id {
			return append([]models.PaymentEntry(nil), v.Payments...), nil
		}
	}
	return nil, errors.New("not found")
}

func newTestModel(t *testing.T, items ...models.OpportunityView) (model, *memorySource) {
	t.Helper()
	src := &memorySource{items: items}
	m := newModel(context.Background(), board.New(src, models.StageProposal), t.TempDir())
	return step(t, m, m.Init()), src
}

// step 执行命令并把结果消息交回模型
func step(t *testing.T, m model, cmd tea.Cmd) model {
	t.Helper()
	if cmd == nil {
		return m
	}
	next, _ := m.Update(cmd())
	return next.(model)
}

func press(t *testing.T, m model, key string) (model, tea.Cmd) {
	t.Helper()
	var msg tea.KeyMsg
	switch key {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		msg = tea.KeyMsg{Type: tea.KeyTab}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+s":
		msg = tea.KeyMsg{Type: tea.KeyCtrlS}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	next, cmd := m.Update(msg)
	return next.(model), cmd
}

func proposal(id, title string, status models.Status) models.OpportunityView {
	return models.OpportunityView{
		Opportunity: models.Opportunity{ID: id, Title: title, Stage: models.StageProposal, Status: status},
		Payments:    []models.PaymentEntry{},
	}
}

func TestMoveCardForward(t *testing.T) {
	m, src := newTestModel(t, proposal("1", "Hotel X Partnership", models.StatusPending))
	assert.Contains(t, m.View(), "Hotel X Partnership")

	m, cmd := press(t, m, "L")
	require.NotNil(t, cmd)
	m = step(t, m, cmd)

	assert.Equal(t, models.StatusOnGoing, src.items[0].Status)
	assert.False(t, m.toastErr)
	item, ok := m.selected()
	require.True(t, ok)
	assert.Equal(t, "1", item.ID)
}

func TestMoveCardFailureShowsToastAndReverts(t *testing.T) {
	m, src := newTestModel(t, proposal("1", "Hotel X Partnership", models.StatusPending))
	src.failErr = errors.New("network unreachable")

	m, cmd := press(t, m, "L")
	m = step(t, m, cmd)

	assert.True(t, m.toastErr)
	assert.Contains(t, m.toast, "network unreachable")
	columns := m.board.Columns()
	require.Len(t, columns[0].Items, 1)
	assert.Equal(t, models.StatusPending, columns[0].Items[0].Status)
}

func TestAdvanceIsGated(t *testing.T) {
	m, src := newTestModel(t, proposal("1", "Pending deal", models.StatusPending))

	m, cmd := press(t, m, "a")
	assert.Nil(t, cmd)
	assert.True(t, m.toastErr)
	assert.Equal(t, models.StageProposal, src.items[0].Stage)
}

func TestAdvanceSentProposal(t *testing.T) {
	m, src := newTestModel(t, proposal("1", "Sent deal", models.StatusSent))
	// 已发送列是第三列
	m, _ = press(t, m, "l")
	m, _ = press(t, m, "l")

	m, cmd := press(t, m, "a")
	require.NotNil(t, cmd)
	m = step(t, m, cmd)

	assert.Equal(t, models.StageLeads, src.items[0].Stage)
	assert.Empty(t, m.board.Visible())
}

func TestSearchViewToggleAndExport(t *testing.T) {
	m, _ := newTestModel(t,
		proposal("1", "Hotel X Partnership", models.StatusPending),
		proposal("2", "Fleet renewal", models.StatusPending))

	m, _ = press(t, m, "/")
	require.True(t, m.searching)
	for _, r := range "fleet" {
		m, _ = press(t, m, string(r))
	}
	m, _ = press(t, m, "enter")
	assert.False(t, m.searching)
	require.Len(t, m.board.Visible(), 1)

	m, _ = press(t, m, "v")
	assert.Equal(t, modeTable, m.mode)
	assert.Contains(t, m.View(), "Fleet renewal")
	assert.NotContains(t, m.View(), "Hotel X Partnership")

	m, cmd := press(t, m, "e")
	require.NotNil(t, cmd)
	msg := cmd()
	exported, ok := msg.(exportedMsg)
	require.True(t, ok)
	require.NoError(t, exported.err)
	assert.Equal(t, m.exportDir, filepath.Dir(exported.path))

	data, err := os.ReadFile(exported.path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Fleet renewal")
	assert.NotContains(t, string(data), "Hotel X Partnership")
}

func TestStageTabsAndQuickView(t *testing.T) {
	m, _ := newTestModel(t, proposal("1", "Hotel X Partnership", models.StatusPending))

	m, _ = press(t, m, "enter")
	assert.True(t, m.quickView)
	assert.Contains(t, m.View(), "回款合计")
	m, _ = press(t, m, "enter")
	assert.False(t, m.quickView)

	m, cmd := press(t, m, "tab")
	m = step(t, m, cmd)
	assert.Equal(t, models.StageLeads, m.board.Stage())

	m, cmd = press(t, m, "1")
	m = step(t, m, cmd)
	assert.Equal(t, models.StageProspect, m.board.Stage())
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "0", formatAmount(0))
	assert.Equal(t, "999", formatAmount(999))
	assert.Equal(t, "1,000", formatAmount(1000))
	assert.Equal(t, "1,000,000", formatAmount(1000000))
	assert.Equal(t, "12,345", formatAmount(12345))
}

func typeText(t *testing.T, m model, text string) model {
	t.Helper()
	for _, r := range text {
		m, _ = press(t, m, string(r))
	}
	return m
}

func TestMoveCardRedrawsBeforeWrite(t *testing.T) {
	m, src := newTestModel(t, proposal("1", "Hotel X Partnership", models.StatusPending))

	m, cmd := press(t, m, "L")
	require.NotNil(t, cmd)

	// 写入尚未执行，界面已显示卡片在新列中
	columns := m.board.Columns()
	require.Len(t, columns[1].Items, 1)
	assert.Equal(t, models.StatusOnGoing, columns[1].Items[0].Status)
	assert.True(t, m.board.IsBusy("1"))
	assert.Contains(t, m.View(), "…")
	assert.Equal(t, models.StatusPending, src.items[0].Status)

	m = step(t, m, cmd)
	assert.Equal(t, models.StatusOnGoing, src.items[0].Status)
	assert.False(t, m.board.IsBusy("1"))
}

func salesCard(id, title string) models.OpportunityView {
	return models.OpportunityView{
		Opportunity: models.Opportunity{ID: id, Title: title, Stage: models.StageSales, Status: models.StatusDownPayment, Value: 1000},
		Payments:    []models.PaymentEntry{{ID: "p1", OpportunityID: id, Amount: 300}},
	}
}

func openSalesForm(t *testing.T, src *memorySource) model {
	t.Helper()
	m := newModel(context.Background(), board.New(src, models.StageSales), t.TempDir())
	m = step(t, m, m.Init())
	// 定位到定金列
	m, _ = press(t, m, "l")

	m, _ = press(t, m, "enter")
	require.True(t, m.quickView)
	m, _ = press(t, m, "e")
	require.NotNil(t, m.form)
	assert.False(t, m.quickView)
	return step(t, m, m.paymentsCmd("1"))
}

func TestEditFormSavesFieldsAndPayments(t *testing.T) {
	src := &memorySource{items: []models.OpportunityView{salesCard("1", "Deal")}}
	m := openSalesForm(t, src)
	assert.Contains(t, m.View(), "编辑商机")

	m = typeText(t, m, " v2")
	for i := 0; i < 4; i++ {
		m, _ = press(t, m, "tab")
	}
	m = typeText(t, m, "200")
	m, _ = press(t, m, "enter")
	require.Len(t, m.form.added, 1)

	m, _ = press(t, m, "tab")
	m, _ = press(t, m, "d")
	assert.True(t, m.form.removed["p1"])

	m, cmd := press(t, m, "ctrl+s")
	require.NotNil(t, cmd)
	m = step(t, m, cmd)

	assert.Nil(t, m.form)
	assert.False(t, m.toastErr)
	assert.Equal(t, "Deal v2", src.items[0].Title)
	assert.Equal(t, models.StatusDownPayment, src.items[0].Status)
	require.Len(t, src.items[0].Payments, 1)
	assert.Equal(t, int64(200), src.items[0].Payments[0].Amount)

	item, ok := m.board.Item("1")
	require.True(t, ok)
	assert.Equal(t, int64(200), item.CashIn)
}

func TestEditFormShowsPaymentErrors(t *testing.T) {
	src := &memorySource{
		items:         []models.OpportunityView{salesCard("1", "Deal")},
		paymentErrors: []string{"新增回款 500 失败"},
	}
	m := openSalesForm(t, src)

	m, cmd := press(t, m, "ctrl+s")
	m = step(t, m, cmd)

	assert.Nil(t, m.form)
	assert.True(t, m.toastErr)
	assert.Contains(t, m.toast, "新增回款 500 失败")
}

func TestEditFormRejectsBadPayment(t *testing.T) {
	src := &memorySource{items: []models.OpportunityView{salesCard("1", "Deal")}}
	m := openSalesForm(t, src)

	for i := 0; i < 4; i++ {
		m, _ = press(t, m, "tab")
	}
	m = typeText(t, m, "0")
	m, _ = press(t, m, "enter")
	assert.True(t, m.toastErr)
	assert.Empty(t, m.form.added)

	m, _ = press(t, m, "esc")
	assert.Nil(t, m.form)
	assert.Equal(t, "Deal", src.items[0].Title)
}

func TestCreateForm(t *testing.T) {
	m, src := newTestModel(t)

	m, _ = press(t, m, "n")
	require.NotNil(t, m.form)
	assert.Contains(t, m.View(), "新建商机")

	// 标题为空时不提交
	m, cmd := press(t, m, "ctrl+s")
	assert.Nil(t, cmd)
	assert.True(t, m.toastErr)

	m = typeText(t, m, "Fresh deal")
	m, _ = press(t, m, "tab")
	m = typeText(t, m, "1,500")
	m, cmd = press(t, m, "ctrl+s")
	require.NotNil(t, cmd)
	m = step(t, m, cmd)

	assert.Nil(t, m.form)
	require.Len(t, src.items, 1)
	assert.Equal(t, "Fresh deal", src.items[0].Title)
	assert.Equal(t, int64(1500), src.items[0].Value)
	assert.Equal(t, models.StageProspect, src.items[0].Stage)
}
