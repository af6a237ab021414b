package events

// Payloads stay ID-based plus the few fields a consumer needs without a
// database round trip.

type CheckedInPayload struct {
	RecordID    string `json:"recordId"`
	UserID      string `json:"userId"`
	Date        string `json:"date"`
	CheckInTime string `json:"checkInTime"`
}

type CheckedOutPayload struct {
	RecordID     string  `json:"recordId"`
	UserID       string  `json:"userId"`
	Date         string  `json:"date"`
	CheckInTime  string  `json:"checkInTime"`
	CheckOutTime string  `json:"checkOutTime"`
	TotalHours   float64 `json:"totalHours"`
}

type EmployeeCreatedPayload struct {
	UserID       string `json:"userId"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	EmployeeCode string `json:"employeeId"`
	CreatedBy    string `json:"createdBy,omitempty"`
}

type EmployeeDeletedPayload struct {
	UserID    string `json:"userId"`
	DeletedBy string `json:"deletedBy,omitempty"`
}
