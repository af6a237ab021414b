package notifications

import (
	"context"
	"log/slog"
)

// LogNotifier writes notifications to the structured log instead of a
// mail provider.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier { return &LogNotifier{log: log} }

func (n *LogNotifier) SendWelcome(ctx context.Context, in WelcomeInput) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	n.log.InfoContext(ctx, "notification.welcome",
		"user_id", in.UserID,
		"email", in.Email,
		"name", in.Name,
		"employee_code", in.EmployeeCode,
	)
	return nil
}

func (n *LogNotifier) SendCheckoutSummary(ctx context.Context, in CheckoutSummaryInput) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	n.log.InfoContext(ctx, "notification.checkout_summary",
		"user_id", in.UserID,
		"date", in.Date,
		"check_in", in.CheckInTime,
		"check_out", in.CheckOutTime,
		"total_hours", in.TotalHours,
	)
	return nil
}
