package attendance

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/geocoder89/attendance/internal/domain/user"
	"github.com/google/uuid"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
	StatusLate    Status = "late"
	StatusHalfDay Status = "half-day"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate, StatusHalfDay:
		return true
	}
	return false
}

var (
	ErrNotFound          = errors.New("attendance record not found")
	ErrAlreadyCheckedIn  = errors.New("already checked in today")
	ErrNotCheckedIn      = errors.New("need to check in first")
	ErrAlreadyCheckedOut = errors.New("already checked out today")
	ErrInvalidStatus     = errors.New("invalid attendance status")
	ErrInvalidDate       = errors.New("invalid attendance date")
	ErrAlreadyRecorded   = errors.New("attendance already recorded for this date")
)

type Record struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	Date         string    `json:"date"`
	CheckInTime  *string   `json:"checkInTime"`
	CheckOutTime *string   `json:"checkOutTime"`
	Status       Status    `json:"status"`
	TotalHours   float64   `json:"totalHours"`
	Notes        *string   `json:"notes,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type WithUser struct {
	Record
	User *user.Summary `json:"user"`
}

// Patch carries the fields to change; nil fields are left alone.
type Patch struct {
	CheckInTime  *string
	CheckOutTime *string
	Status       *Status
	TotalHours   *float64
	Notes        *string
}

type ListFilter struct {
	Date *string
}

// AmendRequest is the manual-entry payload a manager sends for a record.
type AmendRequest struct {
	Status *Status `json:"status" binding:"omitempty,oneof=present absent late half-day"`
	Notes  *string `json:"notes" binding:"omitempty,max=1000"`
}

// MarkRequest records a day for someone who never checked in, such as an
// absence or leave. Times stay empty until the person checks in.
type MarkRequest struct {
	UserID string  `json:"userId" binding:"required"`
	Date   string  `json:"date" binding:"required"`
	Status Status  `json:"status" binding:"required,oneof=present absent late half-day"`
	Notes  *string `json:"notes" binding:"omitempty,max=1000"`
}

type TeamStats struct {
	TotalEmployees int `json:"totalEmployees"`
	PresentToday   int `json:"presentToday"`
	AbsentToday    int `json:"absentToday"`
	LateToday      int `json:"lateToday"`
}

// State is where a (user, date) pair sits in the daily check-in flow.
type State int

const (
	StateNoRecord State = iota
	StateCheckedIn
	StateCheckedOut
)

func (s State) String() string {
	switch s {
	case StateCheckedIn:
		return "checked_in"
	case StateCheckedOut:
		return "checked_out"
	default:
		return "no_record"
	}
}

// StateOf reports the state of a record; nil means no record exists.
// A record marked by a manager without a check-in time still counts as
// NoRecord, so the person can check in over it.
func StateOf(r *Record) State {
	switch {
	case r == nil || r.CheckInTime == nil:
		return StateNoRecord
	case r.CheckOutTime == nil:
		return StateCheckedIn
	default:
		return StateCheckedOut
	}
}

func NewMarked(req MarkRequest, now time.Time) Record {
	return Record{
		ID:         uuid.NewString(),
		UserID:     req.UserID,
		Date:       req.Date,
		Status:     req.Status,
		TotalHours: 0,
		Notes:      req.Notes,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func NewCheckIn(userID string, now time.Time) Record {
	in := now.Format(TimeLayout)
	return Record{
		ID:          uuid.NewString(),
		UserID:      userID,
		Date:        now.Format(DateLayout),
		CheckInTime: &in,
		Status:      StatusPresent,
		TotalHours:  0,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// HoursBetween returns out-in in hours rounded to two decimals. A check-out
// earlier than the check-in yields 0.
func HoursBetween(checkIn, checkOut string) (float64, error) {
	in, err := time.Parse(TimeLayout, checkIn)
	if err != nil {
		return 0, fmt.Errorf("parse check-in time %q: %w", checkIn, err)
	}
	out, err := time.Parse(TimeLayout, checkOut)
	if err != nil {
		return 0, fmt.Errorf("parse check-out time %q: %w", checkOut, err)
	}

	hours := out.Sub(in).Hours()
	if hours < 0 {
		return 0, nil
	}
	return math.Round(hours*100) / 100, nil
}

func ValidDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}
