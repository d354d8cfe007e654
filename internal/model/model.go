package model

import (
	"time"

	"github.com/google/uuid"
)

type Member struct {
	ID             int64      `db:"id" json:"id"`
	Username       string     `db:"username" json:"username"`
	Email          string     `db:"email" json:"email"`
	PasswordHash   string     `db:"password_hash" json:"-"`
	FirstName      string     `db:"first_name" json:"first_name"`
	LastName       string     `db:"last_name" json:"last_name"`
	CanAttend      bool       `db:"can_attend_events" json:"can_attend_events"`
	TPayEnabled    bool       `db:"tpay_enabled" json:"tpay_enabled"`
	IsAdmin        bool       `db:"is_admin" json:"is_admin"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	MembershipEnds *time.Time `db:"membership_ends" json:"membership_ends,omitempty"`
}

func (m *Member) FullName() string {
	return m.FirstName + " " + m.LastName
}

type Event struct {
	ID                    int64      `db:"id" json:"id"`
	Title                 string     `db:"title" json:"title"`
	Description           string     `db:"description" json:"description,omitempty"`
	Start                 time.Time  `db:"start" json:"start"`
	End                   time.Time  `db:"end" json:"end"`
	Location              string     `db:"location" json:"location,omitempty"`
	RegistrationStart     *time.Time `db:"registration_start" json:"registration_start,omitempty"`
	RegistrationEnd       *time.Time `db:"registration_end" json:"registration_end,omitempty"`
	CancelDeadline        *time.Time `db:"cancel_deadline" json:"cancel_deadline,omitempty"`
	MaxParticipants       *int       `db:"max_participants" json:"max_participants,omitempty"`
	Price                 float64    `db:"price" json:"price"`
	Fine                  float64    `db:"fine" json:"fine"`
	Published             bool       `db:"published" json:"published"`
	OptionalRegistrations bool       `db:"optional_registrations" json:"optional_registrations"`
	OrganiserGroupID      int64      `db:"organiser_group_id" json:"organiser_group_id"`
	OrganiserEmail        string     `db:"organiser_email" json:"-"`
	SendCancelEmail       bool       `db:"send_cancel_email" json:"send_cancel_email"`
	TPayAllowed           bool       `db:"tpay_allowed" json:"tpay_allowed"`
	CreatedAt             time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time  `db:"updated_at" json:"updated_at"`
}

// EventRegistration belongs to exactly one of a member or a free-text
// name+email pair (non-members). Confirmed-vs-waiting is never stored;
// it is derived from the ordered active set and the event capacity.
type EventRegistration struct {
	ID            int64      `db:"id" json:"id"`
	EventID       int64      `db:"event_id" json:"event_id"`
	MemberID      *int64     `db:"member_id" json:"member_id,omitempty"`
	Name          string     `db:"name" json:"name,omitempty"`
	ContactEmail  string     `db:"contact_email" json:"contact_email,omitempty"`
	Date          time.Time  `db:"date" json:"date"`
	DateCancelled *time.Time `db:"date_cancelled" json:"date_cancelled,omitempty"`
	Present       bool       `db:"present" json:"present"`
	PaymentID     *uuid.UUID `db:"payment_id" json:"payment_id,omitempty"`
}

func (r *EventRegistration) IsActive() bool {
	return r.DateCancelled == nil
}

func (r *EventRegistration) IsExternal() bool {
	return r.MemberID == nil
}

const (
	PaymentNone = "no_payment"
	PaymentCash = "cash_payment"
	PaymentCard = "card_payment"
	PaymentTPay = "tpay_payment"
	PaymentWire = "wire_payment"
)

func ValidPaymentType(t string) bool {
	switch t {
	case PaymentNone, PaymentCash, PaymentCard, PaymentTPay, PaymentWire:
		return true
	}
	return false
}

// Payment is an immutable-once-created record of money movement. It does
// not know its payable; the payable owns the reference.
type Payment struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	Type           string     `db:"type" json:"type"`
	Amount         float64    `db:"amount" json:"amount"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	ProcessingDate *time.Time `db:"processing_date" json:"processing_date,omitempty"`
	PaidByID       *int64     `db:"paid_by_id" json:"paid_by_id,omitempty"`
	ProcessedByID  *int64     `db:"processed_by_id" json:"processed_by_id,omitempty"`
	BatchID        *uuid.UUID `db:"batch_id" json:"batch_id,omitempty"`
	Topic          string     `db:"topic" json:"topic"`
	Notes          string     `db:"notes" json:"notes,omitempty"`
}

func (p *Payment) Processed() bool {
	return p.Type != PaymentNone
}

// Batch groups account-debit payments for settlement export. Payments in a
// processed batch can no longer be deleted.
type Batch struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	Processed      bool       `db:"processed" json:"processed"`
	ProcessingDate *time.Time `db:"processing_date" json:"processing_date,omitempty"`
	Description    string     `db:"description" json:"description"`
}

const (
	EntryStatusDraft     = "draft"
	EntryStatusReview    = "review"
	EntryStatusAccepted  = "accepted"
	EntryStatusRejected  = "rejected"
	EntryStatusCancelled = "cancelled"
	EntryStatusCompleted = "completed"
)

// MembershipEntry is a prospective member's application. It only becomes a
// membership when an attached payment completes the accepted entry.
type MembershipEntry struct {
	ID             int64      `db:"id" json:"id"`
	Status         string     `db:"status" json:"status"`
	FirstName      string     `db:"first_name" json:"first_name"`
	LastName       string     `db:"last_name" json:"last_name"`
	Email          string     `db:"email" json:"email"`
	Username       string     `db:"username" json:"username"`
	MembershipType string     `db:"membership_type" json:"membership_type"`
	Contribution   float64    `db:"contribution" json:"contribution"`
	Remarks        string     `db:"remarks" json:"remarks,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
	MemberID       *int64     `db:"member_id" json:"member_id,omitempty"`
	PaymentID      *uuid.UUID `db:"payment_id" json:"payment_id,omitempty"`
}

type FoodProduct struct {
	ID        int64   `db:"id" json:"id"`
	Name      string  `db:"name" json:"name"`
	Price     float64 `db:"price" json:"price"`
	Available bool    `db:"available" json:"available"`
}

type FoodEvent struct {
	ID      int64     `db:"id" json:"id"`
	EventID int64     `db:"event_id" json:"event_id"`
	Start   time.Time `db:"start" json:"start"`
	End     time.Time `db:"end" json:"end"`
}

type FoodOrder struct {
	ID           int64      `db:"id" json:"id"`
	FoodEventID  int64      `db:"food_event_id" json:"food_event_id"`
	ProductID    int64      `db:"product_id" json:"product_id"`
	ProductPrice float64    `db:"product_price" json:"product_price"`
	MemberID     *int64     `db:"member_id" json:"member_id,omitempty"`
	Name         string     `db:"name" json:"name,omitempty"`
	Notes        string     `db:"notes" json:"notes,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	PaymentID    *uuid.UUID `db:"payment_id" json:"payment_id,omitempty"`
}

type SalesOrder struct {
	ID        int64      `db:"id" json:"id"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	MemberID  *int64     `db:"member_id" json:"member_id,omitempty"`
	Discount  float64    `db:"discount" json:"discount"`
	Total     float64    `db:"total" json:"total"`
	PaymentID *uuid.UUID `db:"payment_id" json:"payment_id,omitempty"`
}

type SalesOrderItem struct {
	ID          int64   `db:"id" json:"id"`
	OrderID     int64   `db:"order_id" json:"order_id"`
	ProductName string  `db:"product_name" json:"product_name"`
	Amount      int     `db:"amount" json:"amount"`
	Total       float64 `db:"total" json:"total"`
}
