package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/geocoder89/attendance/internal/actorctx"
	"github.com/geocoder89/attendance/internal/cache"
	"github.com/geocoder89/attendance/internal/domain/attendance"
	"github.com/geocoder89/attendance/internal/domain/user"
	"github.com/geocoder89/attendance/internal/events"
	"github.com/geocoder89/attendance/internal/lock"
)

func TestCheckIn_TwiceSameDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.seed(t, "e@company.com", "password", user.RoleEmployee)

	rec, err := f.attendance.CheckIn(ctx, u.ID)
	if err != nil {
		t.Fatalf("first check-in: %v", err)
	}
	if rec.Date != "2024-03-04" || *rec.CheckInTime != "09:45" || rec.Status != attendance.StatusPresent || rec.TotalHours != 0 {
		t.Fatalf("unexpected record: %+v", rec)
	}

	f.now = f.now.Add(time.Hour)
	if _, err := f.attendance.CheckIn(ctx, u.ID); !errors.Is(err, attendance.ErrAlreadyCheckedIn) {
		t.Fatalf("expected ErrAlreadyCheckedIn, got %v", err)
	}

	// still rejected after checking out
	if _, err := f.attendance.CheckOut(ctx, u.ID); err != nil {
		t.Fatalf("check-out: %v", err)
	}
	if _, err := f.attendance.CheckIn(ctx, u.ID); !errors.Is(err, attendance.ErrAlreadyCheckedIn) {
		t.Fatalf("expected ErrAlreadyCheckedIn after check-out, got %v", err)
	}

	// next day starts over
	f.now = f.now.AddDate(0, 0, 1)
	if _, err := f.attendance.CheckIn(ctx, u.ID); err != nil {
		t.Fatalf("next day check-in: %v", err)
	}
}

func TestCheckOut_BeforeCheckIn(t *testing.T) {
	f := newFixture(t)
	u := f.seed(t, "e@company.com", "password", user.RoleEmployee)

	if _, err := f.attendance.CheckOut(context.Background(), u.ID); !errors.Is(err, attendance.ErrNotCheckedIn) {
		t.Fatalf("expected ErrNotCheckedIn, got %v", err)
	}
}

func TestCheckInCheckOut_ComputesHours(t *testing.T) {
	tests := []struct {
		in, out string
		want    float64
	}{
		{"09:45", "17:00", 7.25},
		{"09:00", "09:00", 0},
		{"08:10", "12:30", 4.33},
		{"13:00", "13:01", 0.02},
	}

	for _, tt := range tests {
		t.Run(tt.in+"-"+tt.out, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			u := f.seed(t, "e@company.com", "password", user.RoleEmployee)

			f.now = at(t, tt.in)
			if _, err := f.attendance.CheckIn(ctx, u.ID); err != nil {
				t.Fatalf("check-in: %v", err)
			}

			f.now = at(t, tt.out)
			rec, err := f.attendance.CheckOut(ctx, u.ID)
			if err != nil {
				t.Fatalf("check-out: %v", err)
			}

			if rec.TotalHours != tt.want || rec.TotalHours < 0 {
				t.Fatalf("total hours: got %v want %v", rec.TotalHours, tt.want)
			}
			if *rec.CheckOutTime != tt.out {
				t.Fatalf("check-out time: got %s", *rec.CheckOutTime)
			}

			if _, err := f.attendance.CheckOut(ctx, u.ID); !errors.Is(err, attendance.ErrAlreadyCheckedOut) {
				t.Fatalf("expected ErrAlreadyCheckedOut, got %v", err)
			}
		})
	}
}

func at(t *testing.T, hhmm string) time.Time {
	t.Helper()
	tm, err := time.Parse("2006-01-02 15:04", "2024-03-04 "+hhmm)
	if err != nil {
		t.Fatalf("parse %s: %v", hhmm, err)
	}
	return tm
}

func TestMarkDay_ThenCheckInFillsTimes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.seed(t, "e@company.com", "password", user.RoleEmployee)

	notes := "doctor's appointment"
	marked, err := f.attendance.MarkDay(ctx, attendance.MarkRequest{
		UserID: u.ID,
		Date:   "2024-03-04",
		Status: attendance.StatusAbsent,
		Notes:  &notes,
	})
	if err != nil {
		t.Fatalf("mark day: %v", err)
	}
	if marked.CheckInTime != nil || marked.Status != attendance.StatusAbsent {
		t.Fatalf("unexpected marked record: %+v", marked)
	}

	// nothing to check out of yet
	if _, err := f.attendance.CheckOut(ctx, u.ID); !errors.Is(err, attendance.ErrNotCheckedIn) {
		t.Fatalf("expected ErrNotCheckedIn, got %v", err)
	}

	rec, err := f.attendance.CheckIn(ctx, u.ID)
	if err != nil {
		t.Fatalf("check-in over marked day: %v", err)
	}
	if rec.ID != marked.ID || rec.Status != attendance.StatusPresent || *rec.CheckInTime != "09:45" {
		t.Fatalf("marked day not filled: %+v", rec)
	}

	all, _ := f.ledger.ListByUser(ctx, u.ID)
	if len(all) != 1 {
		t.Fatalf("expected one record for the day, got %d", len(all))
	}
}

func TestMarkDay_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.seed(t, "e@company.com", "password", user.RoleEmployee)

	if _, err := f.attendance.CheckIn(ctx, u.ID); err != nil {
		t.Fatalf("check-in: %v", err)
	}

	cases := []struct {
		name string
		req  attendance.MarkRequest
		want error
	}{
		{"day already recorded", attendance.MarkRequest{UserID: u.ID, Date: "2024-03-04", Status: attendance.StatusLate}, attendance.ErrAlreadyRecorded},
		{"unknown user", attendance.MarkRequest{UserID: "ghost", Date: "2024-03-05", Status: attendance.StatusAbsent}, user.ErrNotFound},
		{"bad date", attendance.MarkRequest{UserID: u.ID, Date: "04/03/2024", Status: attendance.StatusAbsent}, attendance.ErrInvalidDate},
		{"bad status", attendance.MarkRequest{UserID: u.ID, Date: "2024-03-05", Status: "sleeping"}, attendance.ErrInvalidStatus},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.attendance.MarkDay(ctx, tc.req); !errors.Is(err, tc.want) {
				t.Fatalf("got %v want %v", err, tc.want)
			}
		})
	}
}

// stalledPublisher hangs on its first publish until released.
type stalledPublisher struct {
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (p *stalledPublisher) Publish(ctx context.Context, _ events.Type, _ any) error {
	first := false
	p.once.Do(func() { first = true })
	if !first {
		return nil
	}

	close(p.entered)
	select {
	case <-p.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestCheckIn_SlowPublishDoesNotHoldTheLock(t *testing.T) {
	f := newFixture(t)
	u := f.seed(t, "e@company.com", "password", user.RoleEmployee)

	pub := &stalledPublisher{entered: make(chan struct{}), release: make(chan struct{})}
	f.attendance.publisher = pub

	done := make(chan error, 1)
	go func() {
		_, err := f.attendance.CheckIn(context.Background(), u.ID)
		done <- err
	}()

	select {
	case <-pub.entered:
	case <-time.After(2 * time.Second):
		t.Fatalf("check-in never reached the publisher")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if _, err := f.attendance.CheckOut(ctx, u.ID); err != nil {
		t.Fatalf("check-out waited on a stalled publish: %v", err)
	}

	close(pub.release)
	if err := <-done; err != nil {
		t.Fatalf("check-in: %v", err)
	}
}

func TestCheckIn_ConcurrentRequestsProduceOneRecord(t *testing.T) {
	f := newFixture(t)
	u := f.seed(t, "e@company.com", "password", user.RoleEmployee)

	const n = 25
	var wg sync.WaitGroup
	errs := make(chan error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.attendance.CheckIn(context.Background(), u.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	ok, already := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, attendance.ErrAlreadyCheckedIn):
			already++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if ok != 1 || already != n-1 {
		t.Fatalf("expected exactly one successful check-in, got ok=%d already=%d", ok, already)
	}

	recs, _ := f.ledger.ListByUser(context.Background(), u.ID)
	if len(recs) != 1 {
		t.Fatalf("expected one record, got %d", len(recs))
	}
}

func TestCheckInOut_PublishesEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.seed(t, "e@company.com", "password", user.RoleEmployee)

	_, _ = f.attendance.CheckIn(ctx, u.ID)
	f.now = at(t, "17:00")
	_, _ = f.attendance.CheckOut(ctx, u.ID)
	_, _ = f.attendance.CheckOut(ctx, u.ID) // rejected, no event

	got := f.publisher.types()
	if len(got) != 2 || got[0] != events.TypeCheckedIn || got[1] != events.TypeCheckedOut {
		t.Fatalf("unexpected events: %v", got)
	}

	p, ok := f.publisher.events[1].Payload.(events.CheckedOutPayload)
	if !ok || p.TotalHours != 7.25 || p.UserID != u.ID {
		t.Fatalf("unexpected checked_out payload: %+v", f.publisher.events[1].Payload)
	}
}

func TestCheckIn_PublishFailureDoesNotFailRequest(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("broker down")
	u := f.seed(t, "e@company.com", "password", user.RoleEmployee)

	if _, err := f.attendance.CheckIn(context.Background(), u.ID); err != nil {
		t.Fatalf("check-in must succeed when publishing fails: %v", err)
	}
}

type fakeLedger struct {
	Ledger
	findFn func(ctx context.Context, userID, date string) (attendance.Record, error)
}

func (f *fakeLedger) FindByUserAndDate(ctx context.Context, userID, date string) (attendance.Record, error) {
	return f.findFn(ctx, userID, date)
}

type failingLocker struct{ err error }

func (l failingLocker) Lock(context.Context, string) (func(), error) { return nil, l.err }

func TestCheckIn_StoreAndLockErrorsPropagate(t *testing.T) {
	boom := errors.New("db down")
	ledger := &fakeLedger{findFn: func(context.Context, string, string) (attendance.Record, error) {
		return attendance.Record{}, boom
	}}

	svc := NewAttendanceService(ledger, lock.NewKeyedMutex(), nil, nil, nil, discardLogger(), time.UTC)
	if _, err := svc.CheckIn(context.Background(), "u1"); !errors.Is(err, boom) {
		t.Fatalf("expected store error, got %v", err)
	}
	if _, err := svc.CheckOut(context.Background(), "u1"); !errors.Is(err, boom) {
		t.Fatalf("expected store error, got %v", err)
	}

	svc = NewAttendanceService(ledger, failingLocker{err: context.DeadlineExceeded}, nil, nil, nil, discardLogger(), time.UTC)
	if _, err := svc.CheckIn(context.Background(), "u1"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected lock error, got %v", err)
	}
}

func TestHistory_Ownership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	emp := f.seed(t, "e@company.com", "password", user.RoleEmployee)
	other := f.seed(t, "o@company.com", "password", user.RoleEmployee)
	mgr := f.seed(t, "m@company.com", "password", user.RoleManager)

	_, _ = f.attendance.CheckIn(ctx, emp.ID)

	self := actorctx.Actor{UserID: emp.ID, Role: user.RoleEmployee}
	recs, err := f.attendance.History(ctx, self, emp.ID)
	if err != nil || len(recs) != 1 {
		t.Fatalf("own history: %v %d", err, len(recs))
	}

	if _, err := f.attendance.History(ctx, self, other.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	manager := actorctx.Actor{UserID: mgr.ID, Role: user.RoleManager}
	if recs, err := f.attendance.History(ctx, manager, emp.ID); err != nil || len(recs) != 1 {
		t.Fatalf("manager reading history: %v %d", err, len(recs))
	}
}

func TestAmend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.seed(t, "e@company.com", "password", user.RoleEmployee)

	rec, _ := f.attendance.CheckIn(ctx, u.ID)

	late := attendance.StatusLate
	notes := "traffic"
	got, err := f.attendance.Amend(ctx, rec.ID, attendance.AmendRequest{Status: &late, Notes: &notes})
	if err != nil {
		t.Fatalf("amend: %v", err)
	}
	if got.Status != attendance.StatusLate || *got.Notes != "traffic" || *got.CheckInTime != "09:45" {
		t.Fatalf("unexpected amended record: %+v", got)
	}

	bad := attendance.Status("holiday")
	if _, err := f.attendance.Amend(ctx, rec.ID, attendance.AmendRequest{Status: &bad}); !errors.Is(err, attendance.ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}

	if _, err := f.attendance.Amend(ctx, "missing", attendance.AmendRequest{Notes: &notes}); !errors.Is(err, attendance.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCheckIn_InvalidatesStatsCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.seed(t, "e@company.com", "password", user.RoleEmployee)

	c := cache.NewMemoryStats(time.Minute)
	f.attendance.stats = c
	f.stats.cache = c

	before, _ := f.stats.TeamStats(ctx)
	if before.PresentToday != 0 {
		t.Fatalf("unexpected stats: %+v", before)
	}

	_, _ = f.attendance.CheckIn(ctx, u.ID)

	after, _ := f.stats.TeamStats(ctx)
	if after.PresentToday != 1 {
		t.Fatalf("stale stats after check-in: %+v", after)
	}
}

// ledgerInvalidatingOnCount simulates a check-in committing while the
// stats counts are being read.
type ledgerInvalidatingOnCount struct {
	Ledger
	onCount func()
}

func (l ledgerInvalidatingOnCount) CountByDateAndStatus(ctx context.Context, date string) (map[attendance.Status]int, error) {
	counts, err := l.Ledger.CountByDateAndStatus(ctx, date)
	l.onCount()
	return counts, err
}

func TestTeamStats_ConcurrentInvalidationIsNotCached(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.seed(t, "e@company.com", "password", user.RoleEmployee)

	c := cache.NewMemoryStats(time.Minute)
	f.attendance.stats = c
	f.stats.cache = c

	f.stats.ledger = ledgerInvalidatingOnCount{
		Ledger: f.ledger,
		onCount: func() {
			_, _ = f.attendance.CheckIn(ctx, u.ID)
		},
	}

	first, _ := f.stats.TeamStats(ctx)
	if first.PresentToday != 0 {
		t.Fatalf("unexpected first count: %+v", first)
	}
	if _, ok := c.Get(ctx, f.attendance.Today()); ok {
		t.Fatalf("count taken before the check-in was cached")
	}

	f.stats.ledger = f.ledger
	second, _ := f.stats.TeamStats(ctx)
	if second.PresentToday != 1 {
		t.Fatalf("check-in hidden by the cache: %+v", second)
	}
}
