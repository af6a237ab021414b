package notifications

import "context"

type WelcomeInput struct {
	UserID       string
	Email        string
	Name         string
	EmployeeCode string
}

type CheckoutSummaryInput struct {
	UserID       string
	Date         string
	CheckInTime  string
	CheckOutTime string
	TotalHours   float64
}

type Notifier interface {
	SendWelcome(ctx context.Context, in WelcomeInput) error
	SendCheckoutSummary(ctx context.Context, in CheckoutSummaryInput) error
}
