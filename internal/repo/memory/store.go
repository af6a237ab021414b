package memory

import (
	"sort"
	"sync"

	"github.com/geocoder89/attendance/internal/domain/attendance"
	"github.com/geocoder89/attendance/internal/domain/user"
)

// Store holds users and attendance behind one lock so that deleting a user
// drops their records in the same step, like the cascading foreign key does
// in Postgres. byEmail and byUserDate play the part of the unique indexes.
type Store struct {
	mu         sync.RWMutex
	users      map[string]user.User
	attendance map[string]attendance.Record

	byEmail    map[string]string              // normalized email -> user id
	byUserDate map[string]string              // userDateKey -> record id
	byUser     map[string]map[string]struct{} // user id -> record ids
}

func NewStore() *Store {
	return &Store{
		users:      make(map[string]user.User),
		attendance: make(map[string]attendance.Record),
		byEmail:    make(map[string]string),
		byUserDate: make(map[string]string),
		byUser:     make(map[string]map[string]struct{}),
	}
}

func userDateKey(userID, date string) string {
	return userID + "|" + date
}

func sortRecordsNewestFirst(items []attendance.Record) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Date != items[j].Date {
			return items[i].Date > items[j].Date
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
}
