package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/geocoder89/attendance/internal/domain/attendance"
	"github.com/geocoder89/attendance/internal/domain/user"
)

func newRepos() (*UsersRepo, *AttendanceRepo) {
	s := NewStore()
	return NewUsersRepo(s), NewAttendanceRepo(s)
}

func mustCreate(t *testing.T, users *UsersRepo, email string, role user.Role) user.User {
	t.Helper()

	u, err := users.Create(context.Background(), user.NewUser{
		Name:         "Test " + email,
		Email:        email,
		PasswordHash: "hash",
		Role:         role,
		Department:   "Engineering",
	})
	if err != nil {
		t.Fatalf("create %s: %v", email, err)
	}
	return u
}

func TestUsersRepo_CreateAssignsSequentialCodes(t *testing.T) {
	users, _ := newRepos()

	e1 := mustCreate(t, users, "a@company.com", user.RoleEmployee)
	e2 := mustCreate(t, users, "b@company.com", user.RoleEmployee)
	m1 := mustCreate(t, users, "c@company.com", user.RoleManager)

	if e1.EmployeeCode != "EMP001" || e2.EmployeeCode != "EMP002" {
		t.Fatalf("employee codes: got %s, %s", e1.EmployeeCode, e2.EmployeeCode)
	}
	if m1.EmployeeCode != "MGR001" {
		t.Fatalf("manager code: got %s", m1.EmployeeCode)
	}
}

func TestUsersRepo_DuplicateEmailIsCaseInsensitive(t *testing.T) {
	users, _ := newRepos()
	ctx := context.Background()

	mustCreate(t, users, "sarah@company.com", user.RoleEmployee)

	_, err := users.Create(ctx, user.NewUser{
		Name:  "Other",
		Email: "  SARAH@Company.com ",
		Role:  user.RoleEmployee,
	})
	if !errors.Is(err, user.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}

	n, _ := users.CountByRole(ctx, user.RoleEmployee)
	if n != 1 {
		t.Fatalf("store mutated on duplicate: %d employees", n)
	}

	got, err := users.GetByEmail(ctx, "Sarah@company.com")
	if err != nil || got.Name != "Test sarah@company.com" {
		t.Fatalf("lookup by mixed case email: %+v, %v", got, err)
	}
}

func TestUsersRepo_CreateRejectsUnknownRole(t *testing.T) {
	users, _ := newRepos()

	_, err := users.Create(context.Background(), user.NewUser{Email: "x@y.z", Role: "admin"})
	if !errors.Is(err, user.ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}

func TestUsersRepo_UpdatePasswordClearsFlag(t *testing.T) {
	users, _ := newRepos()
	ctx := context.Background()

	u, _ := users.Create(ctx, user.NewUser{
		Email:              "p@company.com",
		PasswordHash:       "old",
		Role:               user.RoleEmployee,
		MustChangePassword: true,
	})

	if err := users.UpdatePassword(ctx, u.ID, "new"); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, _ := users.GetByID(ctx, u.ID)
	if got.PasswordHash != "new" || got.MustChangePassword {
		t.Fatalf("unexpected user after update: %+v", got)
	}

	if err := users.UpdatePassword(ctx, "missing", "x"); !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUsersRepo_ListFiltersByRole(t *testing.T) {
	users, _ := newRepos()
	ctx := context.Background()

	mustCreate(t, users, "e1@company.com", user.RoleEmployee)
	mustCreate(t, users, "m1@company.com", user.RoleManager)
	mustCreate(t, users, "e2@company.com", user.RoleEmployee)

	all, _ := users.List(ctx, user.ListFilter{})
	if len(all) != 3 || all[0].Role != user.RoleManager {
		t.Fatalf("expected managers first in a list of 3, got %+v", all)
	}

	role := user.RoleEmployee
	emps, _ := users.List(ctx, user.ListFilter{Role: &role})
	if len(emps) != 2 {
		t.Fatalf("expected 2 employees, got %d", len(emps))
	}
	for _, u := range emps {
		if u.Role != user.RoleEmployee {
			t.Fatalf("filter leaked role %s", u.Role)
		}
	}
}

func TestUsersRepo_ConcurrentCreatesGetDistinctCodes(t *testing.T) {
	users, _ := newRepos()

	const n = 20
	var wg sync.WaitGroup
	codes := make(chan string, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u, err := users.Create(context.Background(), user.NewUser{
				Email: string(rune('a'+i)) + "@company.com",
				Role:  user.RoleEmployee,
			})
			if err != nil {
				t.Errorf("create: %v", err)
				return
			}
			codes <- u.EmployeeCode
		}(i)
	}
	wg.Wait()
	close(codes)

	seen := map[string]bool{}
	for c := range codes {
		if seen[c] {
			t.Fatalf("duplicate code %s", c)
		}
		seen[c] = true
	}
	if len(seen) != n {
		t.Fatalf("expected %d codes, got %d", n, len(seen))
	}
}

func TestAttendanceRepo_InsertIsUniquePerUserAndDate(t *testing.T) {
	users, recs := newRepos()
	ctx := context.Background()
	u := mustCreate(t, users, "e@company.com", user.RoleEmployee)

	now := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

	if _, err := recs.Insert(ctx, attendance.NewCheckIn(u.ID, now)); err != nil {
		t.Fatalf("first insert: %v", err)
	}

	_, err := recs.Insert(ctx, attendance.NewCheckIn(u.ID, now.Add(time.Hour)))
	if !errors.Is(err, attendance.ErrAlreadyCheckedIn) {
		t.Fatalf("expected ErrAlreadyCheckedIn, got %v", err)
	}

	if _, err := recs.Insert(ctx, attendance.NewCheckIn(u.ID, now.AddDate(0, 0, 1))); err != nil {
		t.Fatalf("next day insert: %v", err)
	}
}

func TestAttendanceRepo_InsertForUnknownUser(t *testing.T) {
	_, recs := newRepos()

	_, err := recs.Insert(context.Background(), attendance.NewCheckIn("ghost", time.Now()))
	if !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("expected user.ErrNotFound, got %v", err)
	}
}

func TestAttendanceRepo_UpdateAppliesOnlySetFields(t *testing.T) {
	users, recs := newRepos()
	ctx := context.Background()
	u := mustCreate(t, users, "e@company.com", user.RoleEmployee)

	rec, _ := recs.Insert(ctx, attendance.NewCheckIn(u.ID, time.Date(2024, 3, 4, 9, 45, 0, 0, time.UTC)))

	out := "17:00"
	hours := 7.25
	got, err := recs.Update(ctx, rec.ID, attendance.Patch{CheckOutTime: &out, TotalHours: &hours})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	if *got.CheckInTime != "09:45" || *got.CheckOutTime != "17:00" || got.TotalHours != 7.25 {
		t.Fatalf("unexpected record: %+v", got)
	}
	if got.Status != attendance.StatusPresent || got.Notes != nil {
		t.Fatalf("untouched fields changed: %+v", got)
	}

	if _, err := recs.Update(ctx, "missing", attendance.Patch{}); !errors.Is(err, attendance.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAttendanceRepo_ListsAndCounts(t *testing.T) {
	users, recs := newRepos()
	ctx := context.Background()

	a := mustCreate(t, users, "a@company.com", user.RoleEmployee)
	b := mustCreate(t, users, "b@company.com", user.RoleEmployee)

	day1 := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	_, _ = recs.Insert(ctx, attendance.NewCheckIn(a.ID, day1))
	_, _ = recs.Insert(ctx, attendance.NewCheckIn(a.ID, day2))
	late := attendance.NewCheckIn(b.ID, day2)
	late.Status = attendance.StatusLate
	_, _ = recs.Insert(ctx, late)

	mine, _ := recs.ListByUser(ctx, a.ID)
	if len(mine) != 2 || mine[0].Date != "2024-03-05" {
		t.Fatalf("expected newest first, got %+v", mine)
	}

	date := "2024-03-05"
	day, _ := recs.ListAll(ctx, attendance.ListFilter{Date: &date})
	if len(day) != 2 {
		t.Fatalf("expected 2 records on %s, got %d", date, len(day))
	}
	for _, item := range day {
		if item.User == nil || item.User.ID != item.UserID {
			t.Fatalf("missing joined user: %+v", item)
		}
	}

	counts, _ := recs.CountByDateAndStatus(ctx, date)
	if counts[attendance.StatusPresent] != 1 || counts[attendance.StatusLate] != 1 {
		t.Fatalf("unexpected counts: %+v", counts)
	}
}

func TestUsersRepo_DeleteCascadesAttendance(t *testing.T) {
	users, recs := newRepos()
	ctx := context.Background()
	u := mustCreate(t, users, "e@company.com", user.RoleEmployee)

	_, _ = recs.Insert(ctx, attendance.NewCheckIn(u.ID, time.Now()))

	if err := users.Delete(ctx, u.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	left, _ := recs.ListByUser(ctx, u.ID)
	if len(left) != 0 {
		t.Fatalf("expected records removed, got %d", len(left))
	}

	if err := users.Delete(ctx, u.ID); !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestStore_IndexesFollowDeletes(t *testing.T) {
	users, recs := newRepos()
	ctx := context.Background()
	day := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

	u := mustCreate(t, users, "e@company.com", user.RoleEmployee)
	other := mustCreate(t, users, "o@company.com", user.RoleEmployee)

	rec, err := recs.Insert(ctx, attendance.NewCheckIn(u.ID, day))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := recs.Insert(ctx, attendance.NewCheckIn(other.ID, day)); err != nil {
		t.Fatalf("insert other: %v", err)
	}

	got, err := recs.FindByUserAndDate(ctx, u.ID, "2024-03-04")
	if err != nil || got.ID != rec.ID {
		t.Fatalf("find by user and date: %+v %v", got, err)
	}

	if err := users.Delete(ctx, u.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := users.GetByEmail(ctx, "E@company.com"); !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("email index kept a deleted user: %v", err)
	}
	if _, err := recs.FindByUserAndDate(ctx, u.ID, "2024-03-04"); !errors.Is(err, attendance.ErrNotFound) {
		t.Fatalf("user/date index kept a deleted record: %v", err)
	}
	if _, err := recs.GetByID(ctx, rec.ID); !errors.Is(err, attendance.ErrNotFound) {
		t.Fatalf("record survived the cascade: %v", err)
	}

	// the other user's day is untouched
	if _, err := recs.FindByUserAndDate(ctx, other.ID, "2024-03-04"); err != nil {
		t.Fatalf("other user's record: %v", err)
	}

	// the email is free again
	again := mustCreate(t, users, "e@company.com", user.RoleEmployee)
	found, err := users.GetByEmail(ctx, "e@company.com")
	if err != nil || found.ID != again.ID {
		t.Fatalf("re-registered email: %+v %v", found, err)
	}
}

func TestAttendanceRepo_UpdateKeepsUserDateLookup(t *testing.T) {
	users, recs := newRepos()
	ctx := context.Background()
	u := mustCreate(t, users, "e@company.com", user.RoleEmployee)

	rec, _ := recs.Insert(ctx, attendance.NewCheckIn(u.ID, time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)))

	out := "17:00"
	if _, err := recs.Update(ctx, rec.ID, attendance.Patch{CheckOutTime: &out}); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := recs.FindByUserAndDate(ctx, u.ID, "2024-03-04")
	if err != nil || got.CheckOutTime == nil || *got.CheckOutTime != "17:00" {
		t.Fatalf("lookup after update: %+v %v", got, err)
	}
	if _, err := recs.Insert(ctx, attendance.NewCheckIn(u.ID, time.Date(2024, 3, 4, 18, 0, 0, 0, time.UTC))); !errors.Is(err, attendance.ErrAlreadyCheckedIn) {
		t.Fatalf("expected the day to stay taken, got %v", err)
	}
}
