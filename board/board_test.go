package board

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/BerniceZTT/pipeline_end/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource 记录写入次数，可注入写入失败或阻塞
type fakeSource struct {
	mu       sync.Mutex
	records  map[string]models.OpportunityView
	order    []string
	writes   int
	reads    int
	failNext error
	block    chan struct{}
	entered  chan struct{}
}

func newFakeSource(views ...models.OpportunityView) *fakeSource {
	s := &fakeSource{records: make(map[string]models.OpportunityView)}
	for _, v := range views {
		s.records[v.ID] = v
		s.order = append(s.order, v.ID)
	}
	return s
}

func (s *fakeSource) ListByStage(ctx context.Context, stage models.Stage) ([]models.OpportunityView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	out := make([]models.OpportunityView, 0)
	for _, id := range s.order {
		v := s.records[id]
		if v.Stage == stage && !v.IsArchived() {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *fakeSource) write(id string, apply func(*models.OpportunityView)) error {
	if s.block != nil {
		s.entered <- struct{}{}
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	if err := s.failNext; err != nil {
		s.failNext = nil
		return err
	}
	v := s.records[id]
	apply(&v)
	s.records[id] = v
	return nil
}

func (s *fakeSource) UpdateStatus(ctx context.Context, id string, from, to models.Status) error {
	return s.write(id, func(v *models.OpportunityView) { v.Status = to })
}

func (s *fakeSource) AdvanceStage(ctx context.Context, id string) error {
	return s.write(id, func(v *models.OpportunityView) {
		next, _ := models.NextStage(v.Stage)
		v.Stage = next
		v.Status = models.EntryStatus(next)
	})
}

func (s *fakeSource) Archive(ctx context.Context, id string, reason models.Status) error {
	return s.write(id, func(v *models.OpportunityView) { v.Status = reason })
}

func (s *fakeSource) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func card(id, title string, stage models.Stage, status models.Status) models.OpportunityView {
	return models.OpportunityView{
		Opportunity: models.Opportunity{ID: id, Title: title, Stage: stage, Status: status},
		Payments:    []models.PaymentEntry{},
	}
}

func loadedBoard(t *testing.T, stage models.Stage, views ...models.OpportunityView) (*Board, *fakeSource) {
	t.Helper()
	src := newFakeSource(views...)
	b := New(src, stage)
	require.NoError(t, b.Load(context.Background()))
	return b, src
}

func columnIDs(b *Board, status models.Status) []string {
	ids := []string{}
	for _, col := range b.Columns() {
		if col.Status == status {
			for _, v := range col.Items {
				ids = append(ids, v.ID)
			}
		}
	}
	return ids
}

func TestNewDefaultsToProspect(t *testing.T) {
	b := New(newFakeSource(), "")
	assert.Equal(t, models.StageProspect, b.Stage())
	assert.Len(t, b.Columns(), 4)
}

func TestDropAcrossColumnsPersists(t *testing.T) {
	b, src := loadedBoard(t, models.StageProposal,
		card("1", "Hotel X Partnership", models.StageProposal, models.StatusPending))

	require.NoError(t, b.OnDrop(context.Background(), models.StatusPending, models.StatusSent, "1", 0))

	assert.Equal(t, []string{"1"}, columnIDs(b, models.StatusSent))
	assert.Empty(t, columnIDs(b, models.StatusPending))
	assert.Equal(t, 1, src.writeCount())
	assert.Equal(t, models.StatusSent, src.records["1"].Status)
}

func TestDropFailureRevertsAfterRefetch(t *testing.T) {
	b, src := loadedBoard(t, models.StageProposal,
		card("1", "Hotel X Partnership", models.StageProposal, models.StatusPending))
	writeErr := errors.New("network unreachable")
	src.failNext = writeErr
	readsBefore := src.reads

	err := b.OnDrop(context.Background(), models.StatusPending, models.StatusSent, "1", 0)
	assert.ErrorIs(t, err, writeErr)

	assert.Equal(t, []string{"1"}, columnIDs(b, models.StatusPending))
	assert.Empty(t, columnIDs(b, models.StatusSent))
	assert.Equal(t, readsBefore+1, src.reads)
	assert.False(t, b.IsBusy("1"))
}

func TestDropWithoutChangeIssuesNoWrite(t *testing.T) {
	b, src := loadedBoard(t, models.StageProspect,
		card("1", "a", models.StageProspect, models.StatusPending),
		card("2", "b", models.StageProspect, models.StatusPending))

	require.NoError(t, b.OnDrop(context.Background(), models.StatusPending, models.StatusPending, "1", 0))
	assert.Equal(t, []string{"1", "2"}, columnIDs(b, models.StatusPending))
	assert.Equal(t, 0, src.writeCount())
}

func TestDropReorderWithinColumnIsLocal(t *testing.T) {
	b, src := loadedBoard(t, models.StageProspect,
		card("1", "a", models.StageProspect, models.StatusPending),
		card("2", "b", models.StageProspect, models.StatusPending),
		card("3", "c", models.StageProspect, models.StatusPending))

	require.NoError(t, b.OnDrop(context.Background(), models.StatusPending, models.StatusPending, "1", 2))
	assert.Equal(t, []string{"2", "3", "1"}, columnIDs(b, models.StatusPending))

	require.NoError(t, b.OnDrop(context.Background(), models.StatusPending, models.StatusPending, "3", 0))
	assert.Equal(t, []string{"3", "2", "1"}, columnIDs(b, models.StatusPending))
	assert.Equal(t, 0, src.writeCount())
}

func TestDropIntoColumnAtIndex(t *testing.T) {
	b, _ := loadedBoard(t, models.StageLeads,
		card("1", "a", models.StageLeads, models.StatusHot),
		card("2", "b", models.StageLeads, models.StatusHot),
		card("3", "c", models.StageLeads, models.StatusLow))

	require.NoError(t, b.OnDrop(context.Background(), models.StatusLow, models.StatusHot, "3", 1))
	assert.Equal(t, []string{"1", "3", "2"}, columnIDs(b, models.StatusHot))
}

func TestDropRejectsForeignStatus(t *testing.T) {
	b, src := loadedBoard(t, models.StageLeads, card("1", "a", models.StageLeads, models.StatusLow))

	err := b.OnDrop(context.Background(), models.StatusLow, models.StatusSent, "1", 0)
	assert.ErrorIs(t, err, ErrNotAllowed)
	assert.ErrorIs(t, b.OnDrop(context.Background(), models.StatusLow, models.StatusHot, "missing", 0), ErrUnknownItem)
	assert.Equal(t, 0, src.writeCount())
}

func TestBusyRecordRejectsSecondAction(t *testing.T) {
	b, src := loadedBoard(t, models.StageProspect, card("1", "a", models.StageProspect, models.StatusPending))
	src.block = make(chan struct{})
	src.entered = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		done <- b.OnDrop(context.Background(), models.StatusPending, models.StatusOnGoing, "1", 0)
	}()

	select {
	case <-src.entered:
	case <-time.After(time.Second):
		t.Fatal("write never started")
	}

	assert.True(t, b.IsBusy("1"))
	assert.False(t, b.CanAdvance("1"))
	assert.ErrorIs(t, b.Advance(context.Background(), "1"), ErrBusy)
	assert.ErrorIs(t, b.OnDrop(context.Background(), models.StatusOnGoing, models.StatusSent, "1", 0), ErrBusy)

	close(src.block)
	require.NoError(t, <-done)
	assert.False(t, b.IsBusy("1"))
	assert.Equal(t, 1, src.writeCount())
}

func TestAdvanceRemovesCardFromStage(t *testing.T) {
	b, src := loadedBoard(t, models.StageProspect,
		card("1", "ready", models.StageProspect, models.StatusOnGoing),
		card("2", "waiting", models.StageProspect, models.StatusPending))

	assert.True(t, b.CanAdvance("1"))
	assert.False(t, b.CanAdvance("2"))

	require.NoError(t, b.Advance(context.Background(), "1"))
	_, ok := b.Item("1")
	assert.False(t, ok)
	assert.Equal(t, models.StageProposal, src.records["1"].Stage)
	assert.Equal(t, models.StatusPending, src.records["1"].Status)

	assert.ErrorIs(t, b.Advance(context.Background(), "2"), ErrNotAllowed)
	assert.Equal(t, 1, src.writeCount())
}

func TestArchiveWonGate(t *testing.T) {
	deal := func(id string, amounts ...int64) models.OpportunityView {
		v := card(id, id, models.StageSales, models.StatusFullPayment)
		v.Value = 1000000
		for _, a := range amounts {
			v.Payments = append(v.Payments, models.PaymentEntry{Amount: a})
		}
		return v
	}
	b, src := loadedBoard(t, models.StageSales, deal("paid", 500000, 500000), deal("short", 400000, 500000))

	assert.True(t, b.CanArchive("paid", models.StatusWon))
	assert.False(t, b.CanArchive("short", models.StatusWon))
	assert.False(t, b.CanArchive("paid", models.StatusLost))

	assert.ErrorIs(t, b.Archive(context.Background(), "short", models.StatusWon), ErrNotAllowed)
	assert.Equal(t, 0, src.writeCount())

	require.NoError(t, b.Archive(context.Background(), "paid", models.StatusWon))
	_, ok := b.Item("paid")
	assert.False(t, ok)
	assert.Equal(t, models.StatusWon, src.records["paid"].Status)
}

func TestSetStageAndSearch(t *testing.T) {
	hotel := card("1", "Hotel X Partnership", models.StageProspect, models.StatusPending)
	hotel.Client = &models.Client{CompanyName: "Grand", Contacts: []models.Contact{{Name: "Ana"}, {Name: "Bo"}}}
	b, _ := loadedBoard(t, models.StageProspect,
		hotel,
		card("2", "Fleet renewal", models.StageProspect, models.StatusOnGoing),
		card("3", "Lead", models.StageLeads, models.StatusHot))

	assert.Len(t, b.Visible(), 2)
	b.SetQuery("hotel")
	require.Len(t, b.Visible(), 1)

	var buf bytes.Buffer
	require.NoError(t, b.Export(&buf, false))
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 2)

	buf.Reset()
	require.NoError(t, b.Export(&buf, true))
	records, err = csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 3)

	require.NoError(t, b.SetStage(context.Background(), models.StageLeads))
	b.SetQuery("")
	require.Len(t, b.Visible(), 1)
	assert.Equal(t, "3", b.Visible()[0].ID)

	assert.Error(t, b.SetStage(context.Background(), models.Stage("closing")))
}

func TestBeginDropAppliesLocallyBeforeWrite(t *testing.T) {
	b, src := loadedBoard(t, models.StageProposal,
		card("1", "a", models.StageProposal, models.StatusPending))

	commit, err := b.BeginDrop(models.StatusPending, models.StatusSent, "1", 0)
	require.NoError(t, err)
	require.NotNil(t, commit)

	assert.Equal(t, []string{"1"}, columnIDs(b, models.StatusSent))
	assert.True(t, b.IsBusy("1"))
	assert.Equal(t, 0, src.writeCount())

	require.NoError(t, commit(context.Background()))
	assert.False(t, b.IsBusy("1"))
	assert.Equal(t, 1, src.writeCount())
	assert.Equal(t, models.StatusSent, src.records["1"].Status)
}

func TestBeginDropWithoutWrite(t *testing.T) {
	b, src := loadedBoard(t, models.StageProposal,
		card("1", "a", models.StageProposal, models.StatusPending),
		card("2", "b", models.StageProposal, models.StatusPending))

	commit, err := b.BeginDrop(models.StatusPending, models.StatusPending, "1", 1)
	require.NoError(t, err)
	assert.Nil(t, commit)
	assert.Equal(t, []string{"2", "1"}, columnIDs(b, models.StatusPending))
	assert.Equal(t, 0, src.writeCount())
}

// editableSource 在 fakeSource 基础上支持新建和编辑
type editableSource struct {
	*fakeSource
	paymentErrors []string
	upserts       []models.OpportunityUpsertRequest
}

func (s *editableSource) Create(ctx context.Context, req models.OpportunityCreateRequest) (*models.OpportunityView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := card("new", req.Title, models.StageProspect, models.StatusPending)
	s.records[v.ID] = v
	s.order = append(s.order, v.ID)
	return &v, nil
}

func (s *editableSource) Upsert(ctx context.Context, id string, req models.OpportunityUpsertRequest) (*models.UpsertResult, error) {
	var view models.OpportunityView
	err := s.write(id, func(v *models.OpportunityView) {
		v.Title = req.Title
		v.Value = req.Value
		for _, p := range req.PaymentsToAdd {
			v.Payments = append(v.Payments, models.PaymentEntry{ID: "p" + p.Notes, Amount: p.Amount})
		}
		view = *v
	})
	if err != nil {
		return nil, err
	}
	s.upserts = append(s.upserts, req)
	return &models.UpsertResult{Opportunity: &view, PaymentErrors: s.paymentErrors}, nil
}

func (s *editableSource) Payments(ctx context.Context, id string) ([]models.PaymentEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[id].Payments, nil
}

func TestSaveAndCreate(t *testing.T) {
	src := &editableSource{fakeSource: newFakeSource(card("1", "Deal", models.StageSales, models.StatusPending))}
	b := New(src, models.StageSales)
	ctx := context.Background()
	require.NoError(t, b.Load(ctx))

	src.paymentErrors = []string{"新增回款 1 失败"}
	result, err := b.Save(ctx, "1", models.OpportunityUpsertRequest{
		Title:         "Deal renamed",
		Value:         500,
		PaymentsToAdd: []models.PaymentEntryInput{{Amount: 200, Notes: "1"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"新增回款 1 失败"}, result.PaymentErrors)
	assert.False(t, b.IsBusy("1"))

	item, ok := b.Item("1")
	require.True(t, ok)
	assert.Equal(t, "Deal renamed", item.Title)
	assert.Equal(t, int64(200), item.CashIn)

	payments, err := b.Payments(ctx, "1")
	require.NoError(t, err)
	assert.Len(t, payments, 1)

	_, err = b.Save(ctx, "missing", models.OpportunityUpsertRequest{Title: "x"})
	assert.ErrorIs(t, err, ErrUnknownItem)

	require.NoError(t, b.SetStage(ctx, models.StageProspect))
	created, err := b.Create(ctx, models.OpportunityCreateRequest{Title: "Fresh"})
	require.NoError(t, err)
	_, ok = b.Item(created.ID)
	assert.True(t, ok)
}

func TestSaveFailureLeavesState(t *testing.T) {
	src := &editableSource{fakeSource: newFakeSource(card("1", "Deal", models.StageSales, models.StatusPending))}
	b := New(src, models.StageSales)
	ctx := context.Background()
	require.NoError(t, b.Load(ctx))

	src.failNext = errors.New("timeout")
	_, err := b.Save(ctx, "1", models.OpportunityUpsertRequest{Title: "Changed"})
	require.Error(t, err)
	assert.False(t, b.IsBusy("1"))
	item, _ := b.Item("1")
	assert.Equal(t, "Deal", item.Title)
}

func TestReadOnlySourceRejectsEdits(t *testing.T) {
	b, _ := loadedBoard(t, models.StageProspect, card("1", "a", models.StageProspect, models.StatusPending))
	ctx := context.Background()

	_, err := b.Save(ctx, "1", models.OpportunityUpsertRequest{Title: "b"})
	assert.ErrorIs(t, err, ErrReadOnly)
	_, err = b.Create(ctx, models.OpportunityCreateRequest{Title: "b"})
	assert.ErrorIs(t, err, ErrReadOnly)
	_, err = b.Payments(ctx, "1")
	assert.ErrorIs(t, err, ErrReadOnly)
}
