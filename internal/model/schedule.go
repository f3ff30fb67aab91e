package model

import "time"

// ScheduleStatus is the lifecycle state of a scheduled payment.
type ScheduleStatus string

// Schedule statuses.
const (
	ScheduleActive    ScheduleStatus = "active"
	ScheduleCompleted ScheduleStatus = "completed"
)

// ScheduledPayment is a buy-now-pay-later installment plan created from a
// purchase-confirmation message and settled by later provider debits.
type ScheduledPayment struct {
	CreatedAt            time.Time
	UpdatedAt            time.Time
	Source               string // provider key, e.g. "tabby"
	Merchant             string
	Currency             string
	PurchaseDate         string // YYYY-MM-DD
	FinalDueDate         string
	Status               ScheduleStatus
	NextDueDate          *string // nil once the final installment is due or paid
	LinkedTransactionIDs []int64
	ID                   int64
	InstallmentsTotal    int
	InstallmentsPaid     int
	TotalAmount          float64
	InstallmentAmount    float64
}

// Completed reports whether every installment has been settled.
func (s *ScheduledPayment) Completed() bool {
	return s.InstallmentsPaid >= s.InstallmentsTotal
}
