package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/BerniceZTT/pipeline_end/models"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// 表单输入框的顺序
const (
	fieldTitle = iota
	fieldValue
	fieldPriority
	fieldNotes
	fieldPayment
)

// editForm 新建或编辑商机的表单，销售阶段带回款列表
type editForm struct {
	id     string // 为空表示新建
	base   models.OpportunityView
	inputs []textinput.Model
	focus  int

	sales    bool
	payments []models.PaymentEntry
	removed  map[string]bool
	added    []models.PaymentEntryInput
	cursor   int
}

func newInput(placeholder, value string, limit int) textinput.Model {
	in := textinput.New()
	in.Placeholder = placeholder
	in.CharLimit = limit
	in.Width = 40
	in.SetValue(value)
	return in
}

// newEditForm 创建表单，item 为空时表示新建
func newEditForm(item *models.OpportunityView) *editForm {
	f := &editForm{removed: make(map[string]bool)}
	var title, value, priority, notes string
	if item != nil {
		f.id = item.ID
		f.base = *item
		f.sales = item.Stage == models.StageSales
		f.payments = append([]models.PaymentEntry(nil), item.Payments...)
		title = item.Title
		value = strconv.FormatInt(item.Value, 10)
		priority = string(item.Priority)
		notes = item.Notes
	}
	f.inputs = []textinput.Model{
		newInput("标题", title, 100),
		newInput("目标金额", value, 15),
		newInput("low|medium|high", priority, 6),
		newInput("备注", notes, 200),
		newInput("回款金额，回车添加", "", 15),
	}
	f.inputs[fieldTitle].Focus()
	return f
}

func (f *editForm) creating() bool { return f.id == "" }

// focusCount 可聚焦的位置数，销售阶段多出回款输入框和回款列表
func (f *editForm) focusCount() int {
	if f.sales {
		return fieldPayment + 2
	}
	return fieldPayment
}

func (f *editForm) onList() bool { return f.sales && f.focus == fieldPayment+1 }

func (f *editForm) moveFocus(delta int) {
	n := f.focusCount()
	f.focus = (f.focus + delta + n) % n
	for i := range f.inputs {
		if i == f.focus {
			f.inputs[i].Focus()
		} else {
			f.inputs[i].Blur()
		}
	}
}

// setPayments 用最新读取的回款替换列表，已标记删除的保留标记
func (f *editForm) setPayments(payments []models.PaymentEntry) {
	f.payments = payments
	f.clampCursor()
}

func (f *editForm) listLen() int { return len(f.payments) + len(f.added) }

func (f *editForm) clampCursor() {
	if f.cursor >= f.listLen() {
		f.cursor = f.listLen() - 1
	}
	if f.cursor < 0 {
		f.cursor = 0
	}
}

// addPayment 把回款输入框的金额加入待新增列表
func (f *editForm) addPayment() error {
	raw := strings.TrimSpace(f.inputs[fieldPayment].Value())
	amount, err := parseAmount(raw)
	if err != nil || amount <= 0 {
		return errors.New("回款金额必须大于0")
	}
	f.added = append(f.added, models.PaymentEntryInput{Amount: amount, PaymentDate: time.Now()})
	f.inputs[fieldPayment].SetValue("")
	return nil
}

// togglePayment 已有回款切换删除标记，待新增的直接移除
func (f *editForm) togglePayment() {
	if f.cursor < len(f.payments) {
		id := f.payments[f.cursor].ID
		f.removed[id] = !f.removed[id]
		return
	}
	i := f.cursor - len(f.payments)
	if i >= 0 && i < len(f.added) {
		f.added = append(f.added[:i], f.added[i+1:]...)
		f.clampCursor()
	}
}

// update 处理表单内的按键，提交和取消由调用方处理
func (f *editForm) update(msg tea.KeyMsg) (tea.Cmd, error) {
	switch msg.String() {
	case "tab", "down":
		if !f.onList() || msg.String() == "tab" {
			f.moveFocus(1)
			return nil, nil
		}
	case "shift+tab", "up":
		if !f.onList() || msg.String() == "shift+tab" {
			f.moveFocus(-1)
			return nil, nil
		}
	case "enter":
		if f.focus == fieldPayment && f.sales {
			return nil, f.addPayment()
		}
		if !f.onList() {
			f.moveFocus(1)
			return nil, nil
		}
	}

	if f.onList() {
		switch msg.String() {
		case "up", "k":
			f.cursor--
		case "down", "j":
			f.cursor++
		case "d", "delete", "backspace":
			f.togglePayment()
		}
		f.clampCursor()
		return nil, nil
	}

	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return cmd, nil
}

func parseAmount(raw string) (int64, error) {
	return strconv.ParseInt(strings.ReplaceAll(raw, ",", ""), 10, 64)
}

// fields 校验并读取通用字段
func (f *editForm) fields() (title string, value int64, priority models.Priority, notes string, err error) {
	title = strings.TrimSpace(f.inputs[fieldTitle].Value())
	if title == "" {
		return "", 0, "", "", errors.New("标题不能为空")
	}
	if raw := strings.TrimSpace(f.inputs[fieldValue].Value()); raw != "" {
		value, err = parseAmount(raw)
		if err != nil || value < 0 {
			return "", 0, "", "", errors.New("目标金额必须是非负整数")
		}
	}
	priority = models.Priority(strings.ToLower(strings.TrimSpace(f.inputs[fieldPriority].Value())))
	switch priority {
	case "", models.PriorityLow, models.PriorityMedium, models.PriorityHigh:
	default:
		return "", 0, "", "", fmt.Errorf("无效的优先级: %s", priority)
	}
	return title, value, priority, strings.TrimSpace(f.inputs[fieldNotes].Value()), nil
}

// createRequest 新建请求
func (f *editForm) createRequest() (models.OpportunityCreateRequest, error) {
	title, value, priority, notes, err := f.fields()
	if err != nil {
		return models.OpportunityCreateRequest{}, err
	}
	return models.OpportunityCreateRequest{Title: title, Value: value, Priority: priority, Notes: notes}, nil
}

// upsertRequest 编辑请求，阶段和状态保持原样
func (f *editForm) upsertRequest() (models.OpportunityUpsertRequest, error) {
	title, value, priority, notes, err := f.fields()
	if err != nil {
		return models.OpportunityUpsertRequest{}, err
	}
	req := models.OpportunityUpsertRequest{
		Title:           title,
		ClientID:        f.base.ClientID,
		Stage:           f.base.Stage,
		Status:          f.base.Status,
		Value:           value,
		Priority:        priority,
		OpportunityType: f.base.OpportunityType,
		Notes:           notes,
	}
	if f.sales {
		req.PaymentsToAdd = f.added
		for _, p := range f.payments {
			if f.removed[p.ID] {
				req.PaymentsToDelete = append(req.PaymentsToDelete, p.ID)
			}
		}
	}
	return req, nil
}

func (f *editForm) view() string {
	heading := "编辑商机"
	if f.creating() {
		heading = "新建商机"
	}
	labels := []string{"标题:     ", "目标金额: ", "优先级:   ", "备注:     "}
	lines := []string{columnTitleStyle.Render(heading)}
	for i, label := range labels {
		lines = append(lines, label+f.inputs[i].View())
	}

	if f.sales {
		lines = append(lines, "", "新增回款: "+f.inputs[fieldPayment].View(), "回款记录:")
		for i, p := range f.payments {
			line := fmt.Sprintf("%s  %s", p.PaymentDate.Format("2006-01-02"), formatAmount(p.Amount))
			if f.removed[p.ID] {
				line = removedStyle.Render(line + " (删除)")
			}
			lines = append(lines, f.listLine(i, line))
		}
		for i, p := range f.added {
			line := fmt.Sprintf("%s  %s (新增)", p.PaymentDate.Format("2006-01-02"), formatAmount(p.Amount))
			lines = append(lines, f.listLine(len(f.payments)+i, line))
		}
		if f.listLen() == 0 {
			lines = append(lines, "  无")
		}
	}
	lines = append(lines, "", helpStyle.Render("tab 切换  enter 下一项/添加回款  d 删除回款  ctrl+s 保存  esc 取消"))
	return quickViewStyle.Render(strings.Join(lines, "\n"))
}

func (f *editForm) listLine(i int, line string) string {
	if f.onList() && i == f.cursor {
		return "> " + line
	}
	return "  " + line
}
