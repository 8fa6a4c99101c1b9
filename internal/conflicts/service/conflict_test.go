package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"roomdesk/internal/conflicts/engine"
	conflicterrors "roomdesk/internal/conflicts/errors"
	"roomdesk/internal/conflicts/repository"
	"roomdesk/internal/conflicts/validator"
	"roomdesk/internal/events"
	"roomdesk/pkg/config"
	mongotx "roomdesk/pkg/db/mongo"
	apperrors "roomdesk/pkg/errors"
	"roomdesk/pkg/logger"
	"roomdesk/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
)

// ────────────────────────────────────────────────
// Mocks
// ────────────────────────────────────────────────

type mockConflictRepository struct {
	findPendingFunc         func(ctx context.Context, resourceID string) ([]*model.Booking, error)
	applyResolutionFunc     func(ctx context.Context, updated []*model.Booking) error
	saveResolutionFunc      func(ctx context.Context, r *model.ConflictResolution) error
	findResolutionFunc      func(ctx context.Context, conflictID string) (*model.ConflictResolution, error)
	findResolvedBetweenFunc func(ctx context.Context, from, to time.Time) ([]*model.ConflictResolution, error)

	applied []*model.Booking
	saved   []*model.ConflictResolution
}

func (m *mockConflictRepository) FindPending(ctx context.Context, resourceID string) ([]*model.Booking, error) {
	if m.findPendingFunc != nil {
		return m.findPendingFunc(ctx, resourceID)
	}
	return []*model.Booking{}, nil
}

func (m *mockConflictRepository) ApplyResolution(ctx context.Context, updated []*model.Booking) error {
	if m.applyResolutionFunc != nil {
		if err := m.applyResolutionFunc(ctx, updated); err != nil {
			return err
		}
	}
	m.applied = append(m.applied, updated...)
	return nil
}

func (m *mockConflictRepository) SaveResolution(ctx context.Context, r *model.ConflictResolution) error {
	if m.saveResolutionFunc != nil {
		if err := m.saveResolutionFunc(ctx, r); err != nil {
			return err
		}
	}
	m.saved = append(m.saved, r)
	return nil
}

func (m *mockConflictRepository) FindResolution(ctx context.Context, conflictID string) (*model.ConflictResolution, error) {
	if m.findResolutionFunc != nil {
		return m.findResolutionFunc(ctx, conflictID)
	}
	return nil, conflicterrors.ErrNotFound
}

func (m *mockConflictRepository) FindResolvedBetween(ctx context.Context, from, to time.Time) ([]*model.ConflictResolution, error) {
	if m.findResolvedBetweenFunc != nil {
		return m.findResolvedBetweenFunc(ctx, from, to)
	}
	return []*model.ConflictResolution{}, nil
}

// ExecuteTransaction runs fn directly and discards its writes on error, like
// an aborted transaction would.
func (m *mockConflictRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	applied, saved := len(m.applied), len(m.saved)
	if err := fn(mongo.NewSessionContext(ctx, nil)); err != nil {
		m.applied, m.saved = m.applied[:applied], m.saved[:saved]
		return err
	}
	return nil
}

type mockLockRepository struct {
	mu       sync.Mutex
	held     map[string]string
	released int
	err      error
}

func (m *mockLockRepository) Acquire(_ context.Context, conflictID, ownerID string, ttl time.Duration) (*model.ResolutionLock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.held == nil {
		m.held = map[string]string{}
	}
	if _, ok := m.held[conflictID]; ok {
		return nil, repository.ErrLocked
	}
	m.held[conflictID] = ownerID
	return &model.ResolutionLock{ID: conflictID, OwnerID: ownerID, ExpiresAt: time.Now().Add(ttl)}, nil
}

func (m *mockLockRepository) Release(_ context.Context, lock *model.ResolutionLock) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.held, lock.ID)
	m.released++
	return nil
}

type recordingPublisher struct {
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

// ────────────────────────────────────────────────
// Fixtures
// ────────────────────────────────────────────────

var (
	fixedNow = time.Date(2026, 3, 9, 15, 30, 0, 0, time.UTC)
	day      = time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
)

func at(h, m int) time.Time {
	return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func booking(id string, start, end time.Time, created time.Time) *model.Booking {
	return &model.Booking{
		ID:          id,
		ResourceID:  "room-1",
		RequesterID: "req-" + id,
		Title:       "Meeting " + id,
		StartTime:   start,
		EndTime:     end,
		Status:      model.StatusPending,
		CreatedAt:   created,
		Version:     1,
	}
}

// pendingScenario is P1 10:00-11:00, P2 10:30-11:30, P3 12:00-13:00, P1 oldest.
func pendingScenario() []*model.Booking {
	return []*model.Booking{
		booking("p1", at(10, 0), at(11, 0), at(8, 0)),
		booking("p2", at(10, 30), at(11, 30), at(8, 5)),
		booking("p3", at(12, 0), at(13, 0), at(8, 10)),
	}
}

type fixture struct {
	svc       *conflictService
	repo      *mockConflictRepository
	locks     *mockLockRepository
	publisher *recordingPublisher
}

func newFixture(pending func() []*model.Booking) *fixture {
	log := logger.New(logger.Config{Output: io.Discard})
	cfg := &config.Config{
		Log:               log,
		Location:          time.UTC,
		ResolutionLockTTL: 15 * time.Second,
	}
	repo := &mockConflictRepository{
		findPendingFunc: func(context.Context, string) ([]*model.Booking, error) {
			return pending(), nil
		},
	}
	locks := &mockLockRepository{}
	publisher := &recordingPublisher{}

	svc := NewConflictService(repo, locks, validator.NewResolutionValidator(log), publisher, cfg).(*conflictService)
	svc.now = func() time.Time { return fixedNow }
	return &fixture{svc: svc, repo: repo, locks: locks, publisher: publisher}
}

func scenarioConflictID() string {
	return engine.ConflictID("room-1", []string{"p1", "p2"})
}

// ────────────────────────────────────────────────
// List
// ────────────────────────────────────────────────

func TestList_GroupsPendingBookings(t *testing.T) {
	f := newFixture(pendingScenario)

	result, err := f.svc.List(context.Background(), ListFilter{})
	require.NoError(t, err)

	require.Len(t, result.Groups, 1)
	assert.Equal(t, scenarioConflictID(), result.Groups[0].ConflictID)
	assert.Equal(t, "p1", result.Groups[0].FirstRequestedID)
	require.Len(t, result.WithoutConflict, 1)
	assert.Equal(t, "p3", result.WithoutConflict[0].ID)
}

func TestList_WindowFilter(t *testing.T) {
	f := newFixture(pendingScenario)
	from, to := at(11, 30), at(12, 30)

	result, err := f.svc.List(context.Background(), ListFilter{From: &from, To: &to})
	require.NoError(t, err)

	assert.Empty(t, result.Groups, "group window ends exactly at from")
	require.Len(t, result.WithoutConflict, 1)
	assert.Equal(t, "p3", result.WithoutConflict[0].ID)
}

func TestList_InvalidWindow(t *testing.T) {
	f := newFixture(pendingScenario)
	from, to := at(12, 0), at(11, 0)

	_, err := f.svc.List(context.Background(), ListFilter{From: &from, To: &to})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))
}

func TestList_PassesResourceFilter(t *testing.T) {
	f := newFixture(pendingScenario)
	var got string
	f.repo.findPendingFunc = func(_ context.Context, resourceID string) ([]*model.Booking, error) {
		got = resourceID
		return nil, nil
	}

	result, err := f.svc.List(context.Background(), ListFilter{ResourceID: " room-9 "})
	require.NoError(t, err)
	assert.Equal(t, "room-9", got)
	assert.Empty(t, result.Groups)
}

func TestList_StoreFailure(t *testing.T) {
	f := newFixture(pendingScenario)
	f.repo.findPendingFunc = func(context.Context, string) ([]*model.Booking, error) {
		return nil, errors.New("connection reset")
	}

	_, err := f.svc.List(context.Background(), ListFilter{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInternal))
}

// ────────────────────────────────────────────────
// Resolve
// ────────────────────────────────────────────────

func TestResolve_Approve(t *testing.T) {
	f := newFixture(pendingScenario)
	cmd := &model.ResolutionCommand{
		ConflictID:      scenarioConflictID(),
		Action:          model.ActionApprove,
		ChosenBookingID: "p1",
		RejectionReason: "  Room needed for board meeting  ",
	}

	result, err := f.svc.Resolve(context.Background(), cmd, "op-1")
	require.NoError(t, err)

	require.Len(t, result.UpdatedBookings, 2)
	byID := map[string]*model.Booking{}
	for _, b := range result.UpdatedBookings {
		byID[b.ID] = b
	}
	assert.Equal(t, model.StatusApproved, byID["p1"].Status)
	assert.Equal(t, model.StatusRejected, byID["p2"].Status)
	assert.Equal(t, cmd.RejectionReason, byID["p2"].RejectionReason)
	assert.Equal(t, int64(2), byID["p1"].Version)
	assert.Equal(t, fixedNow, result.ResolvedAt)
	assert.Equal(t, "op-1", result.ResolverID)

	require.Len(t, f.repo.saved, 1)
	record := f.repo.saved[0]
	assert.Equal(t, scenarioConflictID(), record.ConflictID)
	assert.Equal(t, "p1", record.ApprovedID)
	assert.Equal(t, []string{"p1", "p2"}, record.MemberIDs)
	assert.Equal(t, "p1", record.FirstRequestedID)
	assert.Equal(t, cmd.RejectionReason, record.RejectionReason)

	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, events.TypeConflictResolved, f.publisher.events[0].Type)
	assert.Equal(t, "room-1", f.publisher.events[0].Key)
	assert.Equal(t, 1, f.locks.released)
	assert.Empty(t, f.locks.held)
}

func TestResolve_RejectAll(t *testing.T) {
	f := newFixture(pendingScenario)
	cmd := &model.ResolutionCommand{
		ConflictID:      scenarioConflictID(),
		Action:          model.ActionRejectAll,
		RejectionReason: "Shut",
	}

	result, err := f.svc.Resolve(context.Background(), cmd, "op-1")
	require.NoError(t, err)
	for _, b := range result.UpdatedBookings {
		assert.Equal(t, model.StatusRejected, b.Status)
	}
	assert.Empty(t, f.repo.saved[0].ApprovedID)
}

func TestResolve_Failures(t *testing.T) {
	valid := func() *model.ResolutionCommand {
		return &model.ResolutionCommand{
			ConflictID:      scenarioConflictID(),
			Action:          model.ActionApprove,
			ChosenBookingID: "p1",
			RejectionReason: "Room needed for board meeting",
		}
	}

	tests := []struct {
		name     string
		cmd      func() *model.ResolutionCommand
		resolver string
		setup    func(f *fixture)
		wantCode string
		wantKind conflicterrors.Kind
	}{
		{
			name:     "invalid command",
			cmd:      func() *model.ResolutionCommand { c := valid(); c.Action = "maybe"; return c },
			resolver: "op-1",
			wantCode: apperrors.CodeValidation,
			wantKind: conflicterrors.KindValidation,
		},
		{
			name:     "missing resolver",
			cmd:      valid,
			wantCode: apperrors.CodeValidation,
			wantKind: conflicterrors.KindValidation,
		},
		{
			name:     "chosen booking outside group",
			cmd:      func() *model.ResolutionCommand { c := valid(); c.ChosenBookingID = "p3"; return c },
			resolver: "op-1",
			wantCode: apperrors.CodeValidation,
			wantKind: conflicterrors.KindValidation,
		},
		{
			name:     "approval reason too short",
			cmd:      func() *model.ResolutionCommand { c := valid(); c.RejectionReason = "no"; return c },
			resolver: "op-1",
			wantCode: apperrors.CodeValidation,
			wantKind: conflicterrors.KindValidation,
		},
		{
			name:     "unknown conflict",
			cmd:      func() *model.ResolutionCommand { c := valid(); c.ConflictID = "nope"; return c },
			resolver: "op-1",
			wantCode: apperrors.CodeNotFound,
		},
		{
			name: "member changed after the list was read",
			cmd: func() *model.ResolutionCommand {
				c := valid()
				c.ConflictID = engine.ConflictID("room-1", []string{"p1", "p2", "p4"})
				return c
			},
			resolver: "op-1",
			wantCode: apperrors.CodeConcurrentModification,
			wantKind: conflicterrors.KindConcurrentModification,
		},
		{
			name: "conflict already resolved",
			cmd: func() *model.ResolutionCommand {
				c := valid()
				c.ConflictID = engine.ConflictID("room-1", []string{"p1", "p9"})
				return c
			},
			resolver: "op-1",
			setup: func(f *fixture) {
				f.repo.findResolutionFunc = func(_ context.Context, id string) (*model.ConflictResolution, error) {
					return &model.ConflictResolution{ConflictID: id}, nil
				}
			},
			wantCode: apperrors.CodeAlreadyResolved,
			wantKind: conflicterrors.KindAlreadyResolved,
		},
		{
			name:     "lock held by another operator",
			cmd:      valid,
			resolver: "op-1",
			setup: func(f *fixture) {
				f.locks.held = map[string]string{scenarioConflictID(): "op-2"}
			},
			wantCode: apperrors.CodeConcurrentModification,
			wantKind: conflicterrors.KindConcurrentModification,
		},
		{
			name:     "booking changed before write",
			cmd:      valid,
			resolver: "op-1",
			setup: func(f *fixture) {
				f.repo.applyResolutionFunc = func(context.Context, []*model.Booking) error {
					return conflicterrors.ConcurrentModification("booking p2 changed")
				}
			},
			wantCode: apperrors.CodeConcurrentModification,
			wantKind: conflicterrors.KindConcurrentModification,
		},
		{
			name:     "resolution record already exists",
			cmd:      valid,
			resolver: "op-1",
			setup: func(f *fixture) {
				f.repo.saveResolutionFunc = func(_ context.Context, r *model.ConflictResolution) error {
					return conflicterrors.AlreadyResolved(r.ConflictID)
				}
			},
			wantCode: apperrors.CodeAlreadyResolved,
			wantKind: conflicterrors.KindAlreadyResolved,
		},
		{
			name:     "pending backlog over the grouping limit",
			cmd:      valid,
			resolver: "op-1",
			setup: func(f *fixture) {
				f.repo.findPendingFunc = func(context.Context, string) ([]*model.Booking, error) {
					return nil, fmt.Errorf("%w: more than 5000 pending", repository.ErrTooManyPending)
				}
			},
			wantCode: apperrors.CodeInternal,
		},
		{
			name:     "lock store failure",
			cmd:      valid,
			resolver: "op-1",
			setup:    func(f *fixture) { f.locks.err = errors.New("no primary") },
			wantCode: apperrors.CodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(pendingScenario)
			if tt.setup != nil {
				tt.setup(f)
			}

			result, err := f.svc.Resolve(context.Background(), tt.cmd(), tt.resolver)
			require.Error(t, err)
			assert.Nil(t, result)

			appErr := apperrors.AsAppError(err)
			assert.Equal(t, tt.wantCode, appErr.Code)
			assert.Equal(t, string(tt.wantKind), appErr.Kind)

			assert.Empty(t, f.repo.applied, "no booking may be written on failure")
			assert.Empty(t, f.repo.saved)
			assert.Empty(t, f.publisher.events)
		})
	}
}

func TestResolve_ScopesReloadToResource(t *testing.T) {
	f := newFixture(pendingScenario)
	var scopes []string
	f.repo.findPendingFunc = func(_ context.Context, resourceID string) ([]*model.Booking, error) {
		scopes = append(scopes, resourceID)
		return pendingScenario(), nil
	}

	cmd := &model.ResolutionCommand{
		ConflictID:      scenarioConflictID(),
		ResourceID:      " room-1 ",
		Action:          model.ActionRejectAll,
		RejectionReason: "Closed for maintenance",
	}
	_, err := f.svc.Resolve(context.Background(), cmd, "op-1")
	require.NoError(t, err)

	cmd = &model.ResolutionCommand{
		ConflictID:      scenarioConflictID(),
		Action:          model.ActionRejectAll,
		RejectionReason: "Closed for maintenance",
	}
	_, _ = f.svc.Resolve(context.Background(), cmd, "op-1")

	assert.Equal(t, []string{"room-1", ""}, scopes)
}

func TestList_PendingBacklogTooLarge(t *testing.T) {
	f := newFixture(pendingScenario)
	f.repo.findPendingFunc = func(context.Context, string) ([]*model.Booking, error) {
		return nil, repository.ErrTooManyPending
	}

	result, err := f.svc.List(context.Background(), ListFilter{})
	assert.Nil(t, result)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInternal))
}

func TestResolve_ReleasesLockWhenWriteConflicts(t *testing.T) {
	f := newFixture(pendingScenario)
	f.repo.applyResolutionFunc = func(_ context.Context, updated []*model.Booking) error {
		for _, b := range updated {
			if b.ID == "p2" {
				return conflicterrors.ConcurrentModification("booking %s changed since it was read", b.ID)
			}
		}
		return nil
	}

	_, err := f.svc.Resolve(context.Background(), &model.ResolutionCommand{
		ConflictID:      scenarioConflictID(),
		Action:          model.ActionApprove,
		ChosenBookingID: "p1",
		RejectionReason: "Room needed for board meeting",
	}, "op-1")

	assert.True(t, apperrors.HasCode(err, apperrors.CodeConcurrentModification))
	assert.Equal(t, 1, f.locks.released)
}

func TestResolve_SecondCallSeesAlreadyResolved(t *testing.T) {
	var mu sync.Mutex
	store := pendingScenario()
	f := newFixture(func() []*model.Booking {
		mu.Lock()
		defer mu.Unlock()
		out := []*model.Booking{}
		for _, b := range store {
			if b.IsPending() {
				out = append(out, b.Clone())
			}
		}
		return out
	})
	f.repo.applyResolutionFunc = func(_ context.Context, updated []*model.Booking) error {
		mu.Lock()
		defer mu.Unlock()
		for _, u := range updated {
			for i, b := range store {
				if b.ID == u.ID {
					store[i] = u.Clone()
				}
			}
		}
		return nil
	}
	f.repo.findResolutionFunc = func(_ context.Context, id string) (*model.ConflictResolution, error) {
		for _, r := range f.repo.saved {
			if r.ConflictID == id {
				return r, nil
			}
		}
		return nil, conflicterrors.ErrNotFound
	}

	cmd := &model.ResolutionCommand{
		ConflictID:      scenarioConflictID(),
		Action:          model.ActionRejectAll,
		RejectionReason: "Closed for maintenance",
	}
	_, err := f.svc.Resolve(context.Background(), cmd, "op-1")
	require.NoError(t, err)

	_, err = f.svc.Resolve(context.Background(), cmd, "op-2")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAlreadyResolved))
}

// ────────────────────────────────────────────────
// ResolvedOn / Stats
// ────────────────────────────────────────────────

func TestResolvedOn_UsesLocalDay(t *testing.T) {
	f := newFixture(pendingScenario)
	loc := time.FixedZone("UTC-3", -3*60*60)
	f.svc.cfg.Location = loc

	var gotFrom, gotTo time.Time
	f.repo.findResolvedBetweenFunc = func(_ context.Context, from, to time.Time) ([]*model.ConflictResolution, error) {
		gotFrom, gotTo = from, to
		return []*model.ConflictResolution{{ConflictID: "c-1"}}, nil
	}

	resolutions, err := f.svc.ResolvedOn(context.Background(), time.Date(2026, 3, 9, 1, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, resolutions, 1)

	assert.True(t, gotFrom.Equal(time.Date(2026, 3, 8, 3, 0, 0, 0, time.UTC)))
	assert.True(t, gotTo.Equal(time.Date(2026, 3, 9, 3, 0, 0, 0, time.UTC)))
}

func TestResolvedOn_ZeroDayMeansToday(t *testing.T) {
	f := newFixture(pendingScenario)
	var gotFrom time.Time
	f.repo.findResolvedBetweenFunc = func(_ context.Context, from, _ time.Time) ([]*model.ConflictResolution, error) {
		gotFrom = from
		return nil, nil
	}

	_, err := f.svc.ResolvedOn(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.True(t, gotFrom.Equal(day))
}

func TestStats(t *testing.T) {
	f := newFixture(pendingScenario)
	f.repo.findResolvedBetweenFunc = func(context.Context, time.Time, time.Time) ([]*model.ConflictResolution, error) {
		return []*model.ConflictResolution{
			{ConflictID: "c-1", ResolvedAt: at(9, 0)},
			{ConflictID: "c-1", ResolvedAt: at(9, 5)},
			{ConflictID: "c-2", ResolvedAt: at(14, 0)},
		}, nil
	}

	stats, err := f.svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.ConflictStats{
		PendingConflictGroups: 1,
		BookingsInConflict:    2,
		ResolvedToday:         2,
		WithoutConflict:       1,
	}, *stats)
}

func TestStats_StoreFailure(t *testing.T) {
	f := newFixture(pendingScenario)
	f.repo.findResolvedBetweenFunc = func(context.Context, time.Time, time.Time) ([]*model.ConflictResolution, error) {
		return nil, errors.New("timeout")
	}

	_, err := f.svc.Stats(context.Background())
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInternal))
}
