package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log"
	"path/filepath"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"shift-scheduler/internal/app/payroll"
	"shift-scheduler/internal/app/resolution"
	"shift-scheduler/internal/app/workflow"
	"shift-scheduler/internal/domain"
	"shift-scheduler/internal/repository/sqlite"
	"shift-scheduler/pkg/workerpool"
)

var week = domain.WeekOf(time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC))

func at(day, hour int) time.Time {
	return week.From.AddDate(0, 0, day).Add(time.Duration(hour) * time.Hour)
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent map[string]string
}

func (n *recordingNotifier) Notify(_ context.Context, m domain.StaffMember, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.sent == nil {
		n.sent = map[string]string{}
	}
	n.sent[m.ID] = text
	return nil
}

type fixture struct {
	ctx      context.Context
	staff    *StaffService
	shifts   *ShiftService
	sched    *SchedulingService
	payroll  *PayrollService
	log      *sqlite.SqliteResolutionLog
	notifier *recordingNotifier
	store    domain.ShiftStore
	rules    domain.Rules
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "svc.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := sqlite.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	logger := log.New(io.Discard, "", 0)
	rules := domain.DefaultRules()
	store := sqlite.NewSqliteShiftRepo(db, rules.MaxRetries, logger)
	resLog := sqlite.NewSqliteResolutionLog(db)

	staff := NewStaffService(sqlite.NewSqliteStaffRepo(db), sqlite.NewSqliteRoleRepo(db), sqlite.NewSqliteAvailabilityRepo(db))
	sched := NewSchedulingService(store, staff, rules, resLog, logger)
	notifier := &recordingNotifier{}
	sched.Notifier = notifier

	f := fixture{
		ctx:      context.Background(),
		staff:    staff,
		shifts:   NewShiftService(store, staff, sched, logger),
		sched:    sched,
		payroll:  NewPayrollService(store, staff, payroll.NewCalculator(rules), sched, logger),
		log:      resLog,
		notifier: notifier,
		store:    store,
		rules:    rules,
	}
	for _, m := range []domain.StaffMember{
		{ID: "alice", Name: "Alice", Skills: []string{"bar"}, HourlyRate: decimal.NewFromInt(20), Active: true},
		{ID: "bob", Name: "Bob", Skills: []string{"bar", "grill"}, HourlyRate: decimal.NewFromInt(25), Senior: true, Active: true},
	} {
		if _, err := staff.SaveStaff(f.ctx, m); err != nil {
			t.Fatalf("save staff: %v", err)
		}
		for d := 0; d < 7; d++ {
			d := d
			if _, err := staff.SetAvailability(f.ctx, domain.Availability{StaffID: m.ID, DayOfWeek: &d, EndMinute: 24 * 60, IsAvailable: true}); err != nil {
				t.Fatalf("availability: %v", err)
			}
		}
	}
	return f
}

func (f fixture) add(t *testing.T, staffID string, from, to time.Time) domain.Shift {
	t.Helper()
	s, err := f.shifts.AddShift(f.ctx, domain.Shift{StaffID: staffID, Start: from, End: to})
	if err != nil {
		t.Fatalf("add shift: %v", err)
	}
	return s
}

func TestAddShiftValidates(t *testing.T) {
	f := newFixture(t)
	if _, err := f.shifts.AddShift(f.ctx, domain.Shift{StaffID: "alice", Start: at(0, 17), End: at(0, 9)}); !domain.IsValidation(err) {
		t.Fatalf("want validation error, got %v", err)
	}
	if _, err := f.shifts.AddShift(f.ctx, domain.Shift{StaffID: "nobody", Start: at(0, 9), End: at(0, 17)}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	s := f.add(t, "alice", at(0, 9), at(0, 13))
	if s.Type != domain.ShiftRegular || s.Status != domain.StatusDraft {
		t.Fatalf("unexpected defaults %+v", s)
	}
}

func TestPublishNeedsAcknowledgementWhenConflicted(t *testing.T) {
	f := newFixture(t)
	f.add(t, "alice", at(0, 9), at(0, 13))
	f.add(t, "alice", at(0, 11), at(0, 15))

	_, err := f.shifts.PublishSchedule(f.ctx, week, false)
	var warn *domain.UnresolvedConflictWarning
	if !errors.As(err, &warn) || len(warn.Conflicts) != 1 {
		t.Fatalf("want warning with one conflict, got %v", err)
	}

	n, err := f.shifts.PublishSchedule(f.ctx, week, true)
	if err != nil || n != 2 {
		t.Fatalf("acknowledged publish: n=%d err=%v", n, err)
	}
	shifts, _ := f.shifts.ListShifts(f.ctx, week)
	for _, s := range shifts {
		if s.Status != domain.StatusPublished {
			t.Fatalf("shift %s not published", s.ID)
		}
	}
}

func TestApplyResolutionPersistsAndLogs(t *testing.T) {
	f := newFixture(t)
	f.add(t, "alice", at(0, 9), at(0, 13))
	second := f.add(t, "alice", at(0, 11), at(0, 15))

	conflicts, err := f.sched.DetectConflicts(f.ctx, week)
	if err != nil || len(conflicts) != 1 {
		t.Fatalf("detect: %v %+v", err, conflicts)
	}
	applied, err := f.sched.ApplyResolution(f.ctx, week, conflicts[0], domain.ResolveReassignSecond, resolution.Params{Actor: "manager"})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(applied.StaffIDs) != 2 {
		t.Fatalf("want alice and bob affected, got %v", applied.StaffIDs)
	}

	got, err := f.shifts.GetShift(f.ctx, second.ID)
	if err != nil || got.StaffID != "bob" || got.Version != 2 {
		t.Fatalf("reassignment not stored: %+v %v", got, err)
	}
	if left, _ := f.sched.DetectConflicts(f.ctx, week); len(left) != 0 {
		t.Fatalf("conflicts left after resolution: %+v", left)
	}
	recs, err := f.log.ListResolutions(f.ctx, 10)
	if err != nil || len(recs) != 1 || recs[0].Option != domain.ResolveReassignSecond || recs[0].Actor != "manager" {
		t.Fatalf("resolution not logged: %+v %v", recs, err)
	}
}

// brokenStore fails the chosen write and passes everything else through.
type brokenStore struct {
	domain.ShiftStore
	failCreate bool
	failUpdate bool
}

func (b brokenStore) CreateShift(ctx context.Context, s domain.Shift) (domain.Shift, error) {
	if b.failCreate {
		return domain.Shift{}, errors.New("disk full")
	}
	return b.ShiftStore.CreateShift(ctx, s)
}

func (b brokenStore) UpdateShift(ctx context.Context, id string, fn func(domain.Shift) (domain.Shift, error)) (domain.Shift, error) {
	if b.failUpdate {
		return domain.Shift{}, errors.New("disk full")
	}
	return b.ShiftStore.UpdateShift(ctx, id, fn)
}

func TestFailedResolutionLeavesScheduleIntact(t *testing.T) {
	for _, tc := range []struct {
		name  string
		store brokenStore
	}{
		{"create fails", brokenStore{failCreate: true}},
		{"update fails", brokenStore{failUpdate: true}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			long := f.add(t, "alice", at(0, 9), at(0, 17))
			conflicts, err := f.sched.DetectConflicts(f.ctx, week)
			if err != nil || len(conflicts) != 1 || conflicts[0].Type != domain.ConflictMissingBreak {
				t.Fatalf("want one missing break, got %+v %v", conflicts, err)
			}

			tc.store.ShiftStore = f.store
			broken := NewSchedulingService(tc.store, f.staff, f.rules, nil, log.New(io.Discard, "", 0))
			if _, err := broken.ApplyResolution(f.ctx, week, conflicts[0], domain.ResolveSplitWithBreak, resolution.Params{}); err == nil {
				t.Fatal("want the store error back")
			}

			shifts, err := f.shifts.ListShifts(f.ctx, week)
			if err != nil || len(shifts) != 1 {
				t.Fatalf("want only the original shift, got %+v %v", shifts, err)
			}
			got := shifts[0]
			if got.ID != long.ID || !got.End.Equal(at(0, 17)) || got.Version != long.Version {
				t.Fatalf("original shift was modified: %+v", got)
			}
		})
	}
}

func TestRequestOverrideNotifiesStaff(t *testing.T) {
	f := newFixture(t)
	if _, err := f.staff.SetAvailability(f.ctx, domain.Availability{StaffID: "alice", Date: &week.From, StartMinute: 0, EndMinute: 8 * 60, IsAvailable: true}); err != nil {
		t.Fatalf("dated availability: %v", err)
	}
	f.add(t, "alice", at(0, 9), at(0, 13))

	conflicts, err := f.sched.DetectConflicts(f.ctx, week)
	if err != nil || len(conflicts) != 1 || conflicts[0].Type != domain.ConflictUnavailableStaff {
		t.Fatalf("want one unavailability conflict, got %+v %v", conflicts, err)
	}
	applied, err := f.sched.ApplyResolution(f.ctx, week, conflicts[0], domain.ResolveRequestOverride, resolution.Params{})
	if err != nil || !applied.Deferred {
		t.Fatalf("apply: %+v %v", applied, err)
	}
	if f.notifier.sent["alice"] == "" {
		t.Fatalf("alice was not notified")
	}
}

func TestSessionResolvesEverything(t *testing.T) {
	f := newFixture(t)
	first := f.add(t, "alice", at(1, 9), at(1, 13))
	f.add(t, "alice", at(1, 11), at(1, 15))

	runner, err := f.sched.StartSession(f.ctx, week, func(fn func()) { fn() })
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	s := runner.Session()
	if s.State != workflow.NoSelection || len(s.Conflicts) != 1 {
		t.Fatalf("unexpected session %+v", s)
	}
	if _, err := runner.Dispatch(workflow.SelectConflict{ConflictID: s.Conflicts[0].ID}); err != nil {
		t.Fatalf("select: %v", err)
	}
	if _, err := runner.Dispatch(workflow.ChooseResolution{Option: domain.ResolveCancelFirst}); err != nil {
		t.Fatalf("choose: %v", err)
	}
	if got := runner.Session().State; got != workflow.AllResolved {
		t.Fatalf("want all_resolved, got %s", got)
	}
	got, _ := f.shifts.GetShift(f.ctx, first.ID)
	if got.Status != domain.StatusCancelled {
		t.Fatalf("first shift not cancelled: %+v", got)
	}
}

func TestMoveShiftKeepsClockTime(t *testing.T) {
	f := newFixture(t)
	s := f.add(t, "alice", at(0, 9), at(0, 17))
	moved, err := f.shifts.MoveShift(f.ctx, s.ID, "bob", at(2, 0))
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if moved.StaffID != "bob" || !moved.Start.Equal(at(2, 9)) || !moved.End.Equal(at(2, 17)) {
		t.Fatalf("unexpected move %+v", moved)
	}
	if _, err := f.shifts.MoveShift(f.ctx, s.ID, "ghost", at(2, 0)); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound for unknown staff, got %v", err)
	}
}

func TestPayrollCountsOnlyPublishedShifts(t *testing.T) {
	f := newFixture(t)
	f.add(t, "alice", at(0, 9), at(0, 13))
	if _, err := f.shifts.PublishSchedule(f.ctx, week, false); err != nil {
		t.Fatalf("publish: %v", err)
	}
	f.add(t, "alice", at(1, 9), at(1, 13))

	items, err := f.payroll.ComputePayroll(f.ctx, week)
	if err != nil {
		t.Fatalf("payroll: %v", err)
	}
	if len(items) != 2 || items[0].StaffID != "alice" {
		t.Fatalf("unexpected items %+v", items)
	}
	if !items[0].GrossPay.Equal(decimal.NewFromInt(80)) || !items[0].RegularHours.Equal(decimal.NewFromInt(4)) {
		t.Fatalf("want 4h / 80.00 gross, got %s / %s", items[0].RegularHours, items[0].GrossPay)
	}
	if !items[1].GrossPay.IsZero() {
		t.Fatalf("bob has no shifts, got %s", items[1].GrossPay)
	}
}

func TestAwaitRunsOnPool(t *testing.T) {
	async := newTestAsync(t)
	got, err := Await(context.Background(), async, func() (int, error) { return 7, nil })
	if err != nil || got != 7 {
		t.Fatalf("want 7, got %d %v", got, err)
	}
}

func newTestAsync(t *testing.T) *AsyncService {
	t.Helper()
	pool := workerpool.NewWorkerPool(2, 4)
	t.Cleanup(pool.Close)
	return NewAsyncService(pool)
}
