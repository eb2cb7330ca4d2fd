package board

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/BerniceZTT/pipeline_end/models"
	"github.com/BerniceZTT/pipeline_end/service"
	"github.com/BerniceZTT/pipeline_end/utils"
)

var (
	// ErrBusy 该商机已有请求在进行中
	ErrBusy = errors.New("操作进行中，请稍候")
	// ErrNotAllowed 当前状态不允许该操作
	ErrNotAllowed = service.ErrNotAllowed
	// ErrUnknownItem 当前看板中没有该商机
	ErrUnknownItem = errors.New("看板中没有该商机")
	// ErrReadOnly 数据来源不支持新建和编辑
	ErrReadOnly = errors.New("数据来源不支持编辑")
)

// Source 看板的数据来源
type Source interface {
	ListByStage(ctx context.Context, stage models.Stage) ([]models.OpportunityView, error)
	UpdateStatus(ctx context.Context, id string, from, to models.Status) error
	AdvanceStage(ctx context.Context, id string) error
	Archive(ctx context.Context, id string, reason models.Status) error
}

// Editor 支持表单新建和编辑的数据来源
type Editor interface {
	Create(ctx context.Context, req models.OpportunityCreateRequest) (*models.OpportunityView, error)
	Upsert(ctx context.Context, id string, req models.OpportunityUpsertRequest) (*models.UpsertResult, error)
	Payments(ctx context.Context, id string) ([]models.PaymentEntry, error)
}

// DropHandler 拖拽放下的回调，zone 为列对应的状态
type DropHandler interface {
	OnDrop(ctx context.Context, sourceZone, destZone models.Status, itemID string, index int) error
}

// Board 单个阶段的看板状态
type Board struct {
	mu     sync.Mutex
	source Source
	stage  models.Stage
	query  string
	items  []models.OpportunityView
	busy   map[string]bool
}

var _ DropHandler = (*Board)(nil)

// New 创建看板，stage 为空时使用潜在客户阶段
func New(source Source, stage models.Stage) *Board {
	if stage == "" {
		stage = models.StageProspect
	}
	return &Board{
		source: source,
		stage:  stage,
		items:  make([]models.OpportunityView, 0),
		busy:   make(map[string]bool),
	}
}

// Stage 当前阶段
func (b *Board) Stage() models.Stage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stage
}

// Query 当前搜索关键字
func (b *Board) Query() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.query
}

// Load 重新读取当前阶段，整体替换本地状态
func (b *Board) Load(ctx context.Context) error {
	stage := b.Stage()
	views, err := b.source.ListByStage(ctx, stage)
	if err != nil {
		utils.Logger.Error().Err(err).Str("stage", string(stage)).Msg("加载看板失败")
		return err
	}
	for i := range views {
		views[i].CashIn = service.CashIn(views[i].Payments)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	// 切换阶段期间返回的旧数据直接丢弃
	if b.stage != stage {
		return nil
	}
	b.items = views
	return nil
}

// SetStage 切换阶段并加载
func (b *Board) SetStage(ctx context.Context, stage models.Stage) error {
	if !models.IsValidStage(stage) {
		return service.ErrValidation
	}
	b.mu.Lock()
	if b.stage == stage {
		b.mu.Unlock()
		return nil
	}
	b.stage = stage
	b.items = make([]models.OpportunityView, 0)
	b.mu.Unlock()
	return b.Load(ctx)
}

// SetQuery 设置搜索关键字，只影响本地过滤
func (b *Board) SetQuery(query string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.query = query
}

// Visible 当前阶段经搜索过滤后的商机
func (b *Board) Visible() []models.OpportunityView {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.visibleLocked()
}

func (b *Board) visibleLocked() []models.OpportunityView {
	items := make([]models.OpportunityView, len(b.items))
	copy(items, b.items)
	return service.ApplySearch(items, b.query)
}

// Columns 按状态分列，空列保留
func (b *Board) Columns() []models.BoardColumn {
	b.mu.Lock()
	defer b.mu.Unlock()
	return service.GroupByStatus(b.visibleLocked(), models.StatusVocabulary(b.stage))
}

// Item 获取看板中的商机
func (b *Board) Item(id string) (models.OpportunityView, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.indexLocked(id)
	if i < 0 {
		return models.OpportunityView{}, false
	}
	return b.items[i], true
}

// IsBusy 该商机是否有请求在进行中
func (b *Board) IsBusy(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.busy[id]
}

// CanAdvance 是否可以进入下一阶段
func (b *Board) CanAdvance(id string) bool {
	o, ok := b.Item(id)
	return ok && !b.IsBusy(id) && service.CanAdvance(o.Opportunity)
}

// CanArchive 是否可以以指定原因归档
func (b *Board) CanArchive(id string, reason models.Status) bool {
	o, ok := b.Item(id)
	return ok && !b.IsBusy(id) && service.CanArchive(o.Opportunity, o.CashIn, reason)
}

// Export 以CSV导出当前可见的商机，每个商机一行；perContact 为 true 时按联系人展开
func (b *Board) Export(w io.Writer, perContact bool) error {
	return service.WriteCSV(w, b.Visible(), perContact)
}

func (b *Board) indexLocked(id string) int {
	for i := range b.items {
		if b.items[i].ID == id {
			return i
		}
	}
	return -1
}

// columnLocked 可见列中除 exclude 外的商机ID，按当前顺序
func (b *Board) columnLocked(status models.Status, exclude string) []string {
	var ids []string
	for _, v := range b.visibleLocked() {
		if v.Status == status && v.ID != exclude {
			ids = append(ids, v.ID)
		}
	}
	return ids
}

// placeLocked 把商机移到目标列的第 index 个位置
func (b *Board) placeLocked(id string, status models.Status, index int) {
	i := b.indexLocked(id)
	if i < 0 {
		return
	}
	item := b.items[i]
	item.Status = status
	column := b.columnLocked(status, id)
	b.items = append(b.items[:i], b.items[i+1:]...)

	at := len(b.items)
	switch {
	case index >= 0 && index < len(column):
		at = b.indexLocked(column[index])
	case len(column) > 0:
		at = b.indexLocked(column[len(column)-1]) + 1
	}
	b.items = append(b.items, models.OpportunityView{})
	copy(b.items[at+1:], b.items[at:])
	b.items[at] = item
}

// OnDrop 处理拖拽：同列同位置不写入；同列换位置只在本地调整顺序；
// 跨列先更新本地状态再写入，写入失败时重新读取并返回写入错误
func (b *Board) OnDrop(ctx context.Context, sourceZone, destZone models.Status, itemID string, index int) error {
	commit, err := b.BeginDrop(sourceZone, destZone, itemID, index)
	if err != nil || commit == nil {
		return err
	}
	return commit(ctx)
}

// BeginDrop 立即把拖拽结果应用到本地状态，返回待执行的写入。
// 不需要写入时 commit 为 nil；界面可以先重绘再异步执行 commit
func (b *Board) BeginDrop(sourceZone, destZone models.Status, itemID string, index int) (commit func(context.Context) error, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	i := b.indexLocked(itemID)
	if i < 0 {
		return nil, ErrUnknownItem
	}
	if b.busy[itemID] {
		return nil, ErrBusy
	}
	from := b.items[i].Status
	if from != sourceZone {
		utils.Logger.Debug().Str("id", itemID).Str("status", string(from)).Str("sourceZone", string(sourceZone)).Msg("拖拽来源列与本地状态不一致")
	}

	if destZone == from {
		column := b.columnLocked(from, "")
		if index < 0 || index >= len(column) || column[index] != itemID {
			b.placeLocked(itemID, from, index)
		}
		return nil, nil
	}

	if !models.IsValidStatusForStage(b.stage, destZone) {
		return nil, ErrNotAllowed
	}

	b.placeLocked(itemID, destZone, index)
	b.busy[itemID] = true

	return func(ctx context.Context) error {
		err := b.source.UpdateStatus(ctx, itemID, from, destZone)
		b.release(itemID)
		if err != nil {
			utils.Logger.Error().Err(err).Str("id", itemID).Str("from", string(from)).Str("to", string(destZone)).Msg("状态写入失败，重新加载看板")
			if loadErr := b.Load(ctx); loadErr != nil {
				return errors.Join(err, loadErr)
			}
			return err
		}
		return nil
	}, nil
}

// Advance 进入下一阶段，成功后重新加载，卡片离开当前看板
func (b *Board) Advance(ctx context.Context, id string) error {
	return b.act(ctx, id, service.CanAdvance, func(ctx context.Context) error {
		return b.source.AdvanceStage(ctx, id)
	})
}

// Archive 归档，成功后重新加载
func (b *Board) Archive(ctx context.Context, id string, reason models.Status) error {
	gate := func(o models.Opportunity) bool {
		v, _ := b.itemLocked(id)
		return service.CanArchive(o, v.CashIn, reason)
	}
	return b.act(ctx, id, gate, func(ctx context.Context) error {
		return b.source.Archive(ctx, id, reason)
	})
}

func (b *Board) itemLocked(id string) (models.OpportunityView, bool) {
	i := b.indexLocked(id)
	if i < 0 {
		return models.OpportunityView{}, false
	}
	return b.items[i], true
}

func (b *Board) release(id string) {
	b.mu.Lock()
	delete(b.busy, id)
	b.mu.Unlock()
}

// act 门槛检查通过后执行写入，期间该商机标记为忙
func (b *Board) act(ctx context.Context, id string, gate func(models.Opportunity) bool, write func(context.Context) error) error {
	b.mu.Lock()
	item, ok := b.itemLocked(id)
	if !ok {
		b.mu.Unlock()
		return ErrUnknownItem
	}
	if b.busy[id] {
		b.mu.Unlock()
		return ErrBusy
	}
	if !gate(item.Opportunity) {
		b.mu.Unlock()
		return ErrNotAllowed
	}
	b.busy[id] = true
	b.mu.Unlock()

	err := write(ctx)
	b.release(id)

	if err != nil {
		utils.Logger.Error().Err(err).Str("id", id).Msg("商机操作失败")
		return err
	}
	return b.Load(ctx)
}

// Create 新建商机，成功后重新加载
func (b *Board) Create(ctx context.Context, req models.OpportunityCreateRequest) (*models.OpportunityView, error) {
	editor, ok := b.source.(Editor)
	if !ok {
		return nil, ErrReadOnly
	}
	view, err := editor.Create(ctx, req)
	if err != nil {
		utils.Logger.Error().Err(err).Str("title", req.Title).Msg("新建商机失败")
		return nil, err
	}
	return view, b.Load(ctx)
}

// Save 提交编辑表单，期间该商机标记为忙，成功后重新加载。
// 回款写入失败不算错误，记录在结果的 PaymentErrors 中
func (b *Board) Save(ctx context.Context, id string, req models.OpportunityUpsertRequest) (*models.UpsertResult, error) {
	editor, ok := b.source.(Editor)
	if !ok {
		return nil, ErrReadOnly
	}
	b.mu.Lock()
	if _, ok := b.itemLocked(id); !ok {
		b.mu.Unlock()
		return nil, ErrUnknownItem
	}
	if b.busy[id] {
		b.mu.Unlock()
		return nil, ErrBusy
	}
	b.busy[id] = true
	b.mu.Unlock()

	result, err := editor.Upsert(ctx, id, req)
	b.release(id)
	if err != nil {
		utils.Logger.Error().Err(err).Str("id", id).Msg("保存商机失败")
		return nil, err
	}
	if len(result.PaymentErrors) > 0 {
		utils.Logger.Warn().Str("id", id).Strs("paymentErrors", result.PaymentErrors).Msg("部分回款保存失败")
	}
	return result, b.Load(ctx)
}

// Payments 读取商机最新的回款记录，供编辑表单使用
func (b *Board) Payments(ctx context.Context, id string) ([]models.PaymentEntry, error) {
	editor, ok := b.source.(Editor)
	if !ok {
		return nil, ErrReadOnly
	}
	return editor.Payments(ctx, id)
}
