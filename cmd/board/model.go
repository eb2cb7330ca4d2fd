package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BerniceZTT/pipeline_end/board"
	"github.com/BerniceZTT/pipeline_end/models"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type viewMode int

const (
	modeBoard viewMode = iota
	modeTable
)

var stageLabels = map[models.Stage]string{
	models.StageProspect: "Prospects",
	models.StageProposal: "Proposals",
	models.StageLeads:    "Leads",
	models.StageSales:    "Sales",
}

// loadedMsg 看板加载完成
type loadedMsg struct{ err error }

// actionMsg 写操作完成
type actionMsg struct {
	action string
	err    error
}

// paymentsMsg 编辑表单的回款读取完成
type paymentsMsg struct {
	id       string
	payments []models.PaymentEntry
	err      error
}

// savedMsg 表单提交完成
type savedMsg struct {
	action string
	result *models.UpsertResult
	err    error
}

// exportedMsg 导出完成
type exportedMsg struct {
	path string
	err  error
}

type model struct {
	ctx       context.Context
	board     *board.Board
	exportDir string

	search    textinput.Model
	searching bool
	table     table.Model
	mode      viewMode
	col, row  int
	quickView bool
	form      *editForm

	toast    string
	toastErr bool
	width    int
}

func newModel(ctx context.Context, b *board.Board, exportDir string) model {
	si := textinput.New()
	si.Placeholder = "按标题或客户搜索..."
	si.CharLimit = 60
	si.Width = 40

	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "标题", Width: 30},
			{Title: "客户", Width: 20},
			{Title: "状态", Width: 18},
			{Title: "目标金额", Width: 12},
			{Title: "回款", Width: 12},
		}),
		table.WithFocused(true),
		table.WithHeight(15),
	)

	return model{
		ctx:       ctx,
		board:     b,
		exportDir: exportDir,
		search:    si,
		table:     t,
		width:     120,
	}
}

func (m model) Init() tea.Cmd {
	return m.loadCmd()
}

func (m model) loadCmd() tea.Cmd {
	b, ctx := m.board, m.ctx
	return func() tea.Msg {
		return loadedMsg{err: b.Load(ctx)}
	}
}

func (m model) setStageCmd(stage models.Stage) tea.Cmd {
	b, ctx := m.board, m.ctx
	return func() tea.Msg {
		return loadedMsg{err: b.SetStage(ctx, stage)}
	}
}

func (m model) actionCmd(action string, fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return actionMsg{action: action, err: fn(ctx)}
	}
}

func (m model) paymentsCmd(id string) tea.Cmd {
	b, ctx := m.board, m.ctx
	return func() tea.Msg {
		payments, err := b.Payments(ctx, id)
		return paymentsMsg{id: id, payments: payments, err: err}
	}
}

// submitCmd 校验表单并生成提交命令，校验失败时不发请求
func (m model) submitCmd(f *editForm) (tea.Cmd, error) {
	b, ctx := m.board, m.ctx
	if f.creating() {
		req, err := f.createRequest()
		if err != nil {
			return nil, err
		}
		return func() tea.Msg {
			_, err := b.Create(ctx, req)
			return savedMsg{action: "新建", err: err}
		}, nil
	}
	req, err := f.upsertRequest()
	if err != nil {
		return nil, err
	}
	id := f.id
	return func() tea.Msg {
		result, err := b.Save(ctx, id, req)
		return savedMsg{action: "保存", result: result, err: err}
	}, nil
}

func (m model) exportCmd(perContact bool) tea.Cmd {
	b, dir := m.board, m.exportDir
	name := fmt.Sprintf("opportunities_%s_%s.csv", b.Stage(), time.Now().Format("20060102_150405"))
	return func() tea.Msg {
		path := filepath.Join(dir, name)
		f, err := os.Create(path)
		if err != nil {
			return exportedMsg{err: err}
		}
		if err := b.Export(f, perContact); err != nil {
			f.Close()
			return exportedMsg{err: err}
		}
		return exportedMsg{path: path, err: f.Close()}
	}
}

func (m *model) setToast(text string, isErr bool) {
	m.toast = text
	m.toastErr = isErr
}

// selected 当前选中的商机
func (m model) selected() (models.OpportunityView, bool) {
	if m.mode == modeTable {
		visible := m.board.Visible()
		i := m.table.Cursor()
		if i < 0 || i >= len(visible) {
			return models.OpportunityView{}, false
		}
		return visible[i], true
	}
	columns := m.board.Columns()
	if m.col < 0 || m.col >= len(columns) {
		return models.OpportunityView{}, false
	}
	items := columns[m.col].Items
	if m.row < 0 || m.row >= len(items) {
		return models.OpportunityView{}, false
	}
	return items[m.row], true
}

// clamp 数据变化后修正选中位置
func (m *model) clamp() {
	columns := m.board.Columns()
	if m.col >= len(columns) {
		m.col = len(columns) - 1
	}
	if m.col < 0 {
		m.col = 0
	}
	if len(columns) == 0 {
		m.row = 0
		return
	}
	if n := len(columns[m.col].Items); m.row >= n {
		m.row = n - 1
	}
	if m.row < 0 {
		m.row = 0
	}
}

func (m *model) refreshTable() {
	var rows []table.Row
	for _, v := range m.board.Visible() {
		rows = append(rows, table.Row{
			v.Title,
			v.ClientName(),
			string(v.Status),
			formatAmount(v.Value),
			formatAmount(v.CashIn),
		})
	}
	m.table.SetRows(rows)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.table.SetHeight(max(5, msg.Height-8))
		return m, nil

	case loadedMsg:
		if msg.err != nil {
			m.setToast("加载失败: "+msg.err.Error(), true)
		}
		m.clamp()
		m.refreshTable()
		return m, nil

	case actionMsg:
		if msg.err != nil {
			m.setToast(describeError(msg.action, msg.err), true)
		} else {
			m.setToast(msg.action+"成功", false)
		}
		m.clamp()
		m.refreshTable()
		return m, nil

	case paymentsMsg:
		if msg.err != nil {
			m.setToast("读取回款失败: "+msg.err.Error(), true)
			return m, nil
		}
		if m.form != nil && m.form.id == msg.id {
			m.form.setPayments(msg.payments)
		}
		return m, nil

	case savedMsg:
		switch {
		case msg.err != nil:
			m.setToast(describeError(msg.action, msg.err), true)
			return m, nil
		case msg.result != nil && len(msg.result.PaymentErrors) > 0:
			m.setToast("商机已保存，部分回款失败: "+strings.Join(msg.result.PaymentErrors, "; "), true)
		default:
			m.setToast(msg.action+"成功", false)
		}
		m.form = nil
		m.clamp()
		m.refreshTable()
		return m, nil

	case exportedMsg:
		if msg.err != nil {
			m.setToast("导出失败: "+msg.err.Error(), true)
		} else {
			m.setToast("已导出 "+msg.path, false)
		}
		return m, nil

	case tea.KeyMsg:
		if m.form != nil {
			return m.updateForm(msg)
		}
		if m.searching {
			return m.updateSearch(msg)
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc":
		m.searching = false
		m.search.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.board.SetQuery(m.search.Value())
	m.clamp()
	m.refreshTable()
	return m, cmd
}

func (m model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.form = nil
		return m, nil
	case "ctrl+s":
		cmd, err := m.submitCmd(m.form)
		if err != nil {
			m.setToast(err.Error(), true)
			return m, nil
		}
		return m, cmd
	}
	cmd, err := m.form.update(msg)
	if err != nil {
		m.setToast(err.Error(), true)
	}
	return m, cmd
}

// openEditForm 从快速查看进入编辑，销售阶段同时读取最新回款
func (m model) openEditForm() (tea.Model, tea.Cmd) {
	item, ok := m.selected()
	m.quickView = false
	if !ok {
		return m, nil
	}
	m.form = newEditForm(&item)
	if m.form.sales {
		return m, tea.Batch(textinput.Blink, m.paymentsCmd(item.ID))
	}
	return m, textinput.Blink
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if m.quickView {
		switch key {
		case "e":
			return m.openEditForm()
		case "enter", "esc", "q":
			m.quickView = false
		}
		return m, nil
	}

	switch key {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "1", "2", "3", "4":
		m.col, m.row = 0, 0
		return m, m.setStageCmd(models.Stages[int(key[0]-'1')])
	case "tab":
		m.col, m.row = 0, 0
		return m, m.setStageCmd(nextStageTab(m.board.Stage()))
	case "/":
		m.searching = true
		m.search.Focus()
		return m, textinput.Blink
	case "v":
		if m.mode == modeBoard {
			m.mode = modeTable
			m.refreshTable()
		} else {
			m.mode = modeBoard
		}
		return m, nil
	case "r":
		return m, m.loadCmd()
	case "e":
		return m, m.exportCmd(false)
	case "C":
		return m, m.exportCmd(true)
	case "n":
		m.form = newEditForm(nil)
		return m, textinput.Blink
	case "enter":
		if _, ok := m.selected(); ok {
			m.quickView = true
		}
		return m, nil
	case "H", "L":
		return m.moveCard(key == "L")
	case "a":
		return m.advance()
	case "x":
		return m.archive()
	}

	if m.mode == modeTable {
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd
	}

	switch key {
	case "left", "h":
		m.col--
		m.clamp()
	case "right", "l":
		m.col++
		m.clamp()
	case "up", "k":
		m.row--
		m.clamp()
	case "down", "j":
		m.row++
		m.clamp()
	}
	return m, nil
}

// moveCard 把选中卡片移到相邻列末尾，与拖拽放下走同一流程
func (m model) moveCard(forward bool) (tea.Model, tea.Cmd) {
	item, ok := m.selected()
	if !ok {
		return m, nil
	}
	vocabulary := models.StatusVocabulary(m.board.Stage())
	from := -1
	for i, s := range vocabulary {
		if s == item.Status {
			from = i
		}
	}
	to := from - 1
	if forward {
		to = from + 1
	}
	if from < 0 || to < 0 || to >= len(vocabulary) {
		return m, nil
	}

	dest := vocabulary[to]
	index := 0
	for _, col := range m.board.Columns() {
		if col.Status == dest {
			index = len(col.Items)
		}
	}

	// 本地先移动并重绘，写入在命令中异步执行
	commit, err := m.board.BeginDrop(item.Status, dest, item.ID, index)
	if err != nil {
		m.setToast(describeError("移动", err), true)
		return m, nil
	}
	if m.mode == modeBoard {
		m.col, m.row = to, index
	}
	m.refreshTable()
	if commit == nil {
		return m, nil
	}
	return m, m.actionCmd("移动", commit)
}

func (m model) advance() (tea.Model, tea.Cmd) {
	item, ok := m.selected()
	if !ok {
		return m, nil
	}
	if !m.board.CanAdvance(item.ID) {
		m.setToast("当前状态不能进入下一阶段", true)
		return m, nil
	}
	b, id := m.board, item.ID
	return m, m.actionCmd("进入下一阶段", func(ctx context.Context) error {
		return b.Advance(ctx, id)
	})
}

func (m model) archive() (tea.Model, tea.Cmd) {
	item, ok := m.selected()
	if !ok {
		return m, nil
	}
	reason, ok := models.ArchiveReasonFor(item.Stage)
	if !ok || !m.board.CanArchive(item.ID, reason) {
		m.setToast("当前状态不能归档", true)
		return m, nil
	}
	b, id := m.board, item.ID
	return m, m.actionCmd("归档为 "+string(reason), func(ctx context.Context) error {
		return b.Archive(ctx, id, reason)
	})
}

func nextStageTab(stage models.Stage) models.Stage {
	for i, s := range models.Stages {
		if s == stage {
			return models.Stages[(i+1)%len(models.Stages)]
		}
	}
	return models.StageProspect
}

func describeError(action string, err error) string {
	switch {
	case errors.Is(err, board.ErrBusy):
		return "请求进行中，请稍候"
	case errors.Is(err, board.ErrReadOnly):
		return "当前连接不支持编辑"
	case errors.Is(err, board.ErrNotAllowed):
		return action + "不被允许: " + err.Error()
	}
	return action + "失败，已重新加载: " + err.Error()
}

func formatAmount(v int64) string {
	s := fmt.Sprintf("%d", v)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

func (m model) View() string {
	var sections []string
	sections = append(sections, m.renderTabs())

	if m.searching || m.board.Query() != "" {
		sections = append(sections, m.search.View())
	}

	switch {
	case m.form != nil:
		sections = append(sections, m.form.view())
	case m.quickView:
		sections = append(sections, m.renderQuickView())
	case m.mode == modeTable:
		sections = append(sections, m.table.View())
	default:
		sections = append(sections, m.renderBoard())
	}

	if m.toast != "" {
		style := statusStyle
		if m.toastErr {
			style = errorStyle
		}
		sections = append(sections, style.Render(m.toast))
	}
	sections = append(sections, helpStyle.Render("1-4/tab 阶段  / 搜索  v 视图  H/L 移动  a 下一阶段  x 归档  enter 查看  n 新建  e/C 导出  r 刷新  q 退出"))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m model) renderTabs() string {
	current := m.board.Stage()
	var tabs []string
	for i, s := range models.Stages {
		label := fmt.Sprintf("%d %s", i+1, stageLabels[s])
		if s == current {
			tabs = append(tabs, activeTabStyle.Render(label))
		} else {
			tabs = append(tabs, tabStyle.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m model) renderBoard() string {
	columns := m.board.Columns()
	rendered := make([]string, 0, len(columns))
	for ci, col := range columns {
		lines := []string{columnTitleStyle.Render(fmt.Sprintf("%s (%d)", col.Status, len(col.Items)))}
		for ri, item := range col.Items {
			label := truncate(item.Title, 24)
			switch {
			case m.board.IsBusy(item.ID):
				lines = append(lines, busyCardStyle.Render(label+" …"))
			case ci == m.col && ri == m.row:
				lines = append(lines, selectedCardStyle.Render(label))
			default:
				lines = append(lines, cardStyle.Render(label))
			}
		}
		style := columnStyle
		if ci == m.col {
			style = activeColumnStyle
		}
		rendered = append(rendered, style.Render(strings.Join(lines, "\n")))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

func (m model) renderQuickView() string {
	item, ok := m.selected()
	if !ok {
		return ""
	}
	lines := []string{
		columnTitleStyle.Render(item.Title),
		"客户:     " + item.ClientName(),
		"阶段:     " + string(item.Stage) + " / " + string(item.Status),
		"目标金额: " + formatAmount(item.Value),
		"回款合计: " + formatAmount(item.CashIn),
		"优先级:   " + string(item.Priority),
	}
	if item.Notes != "" {
		lines = append(lines, "备注:     "+item.Notes)
	}
	if len(item.Payments) > 0 {
		lines = append(lines, "", "回款记录:")
		for _, p := range item.Payments {
			lines = append(lines, fmt.Sprintf("  %s  %s", p.PaymentDate.Format("2006-01-02"), formatAmount(p.Amount)))
		}
	}
	if reason, ok := models.ArchiveReasonFor(item.Stage); ok && m.board.CanArchive(item.ID, reason) {
		lines = append(lines, "", "可归档为 "+string(reason))
	}
	lines = append(lines, "", helpStyle.Render("e 编辑  enter 关闭"))
	return quickViewStyle.Render(strings.Join(lines, "\n"))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
