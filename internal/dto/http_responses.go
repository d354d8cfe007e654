package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"
)

const (
	FieldBadFormat     = "FIELD_BADFORMAT"
	FieldIncorrect     = "FIELD_INCORRECT"
	ServiceUnavailable = "SERVICE_UNAVAILABLE"
	InternalError      = "Service is currently unavailable. Please try again later."

	EventNotFound         = "EVENT_NOT_FOUND"
	RegistrationNotFound  = "REGISTRATION_NOT_FOUND"
	RegistrationForbidden = "REGISTRATION_FORBIDDEN"
	RegistrationDuplicate = "REGISTRATION_DUPLICATE"
	CancellationForbidden = "CANCELLATION_FORBIDDEN"
	PaymentConflict       = "PAYMENT_CONFLICT"
	PaymentImmutable      = "PAYMENT_IMMUTABLE"
	EntryNotFound         = "ENTRY_NOT_FOUND"
	EntryConflict         = "ENTRY_CONFLICT"
	OrderNotFound         = "ORDER_NOT_FOUND"
	Unauthorized          = "UNAUTHORIZED"
	Forbidden             = "FORBIDDEN"
)

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type CreateMemberRequest struct {
	Username  string `json:"username" validate:"required,username,max=150"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"first_name" validate:"required,max=150"`
	LastName  string `json:"last_name" validate:"required,max=150"`
	IsAdmin   bool   `json:"is_admin"`
}

type MemberResponse struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	IsAdmin   bool   `json:"is_admin"`
}

type CreateEventRequest struct {
	Title                 string     `json:"title" validate:"required,max=255"`
	Description           string     `json:"description"`
	Start                 time.Time  `json:"start" validate:"required"`
	End                   time.Time  `json:"end" validate:"required"`
	Location              string     `json:"location"`
	RegistrationStart     *time.Time `json:"registration_start"`
	RegistrationEnd       *time.Time `json:"registration_end"`
	CancelDeadline        *time.Time `json:"cancel_deadline"`
	MaxParticipants       *int       `json:"max_participants" validate:"omitempty,gt=0"`
	Price                 float64    `json:"price" validate:"gte=0"`
	Fine                  float64    `json:"fine" validate:"gte=0"`
	Published             bool       `json:"published"`
	OptionalRegistrations bool       `json:"optional_registrations"`
	OrganiserGroupID      int64      `json:"organiser_group_id" validate:"required"`
	SendCancelEmail       bool       `json:"send_cancel_email"`
	TPayAllowed           bool       `json:"tpay_allowed"`
}

type EventResponse struct {
	ID                int64      `json:"id"`
	Title             string     `json:"title"`
	Description       string     `json:"description,omitempty"`
	Start             time.Time  `json:"start"`
	End               time.Time  `json:"end"`
	Location          string     `json:"location,omitempty"`
	RegistrationStart *time.Time `json:"registration_start,omitempty"`
	RegistrationEnd   *time.Time `json:"registration_end,omitempty"`
	CancelDeadline    *time.Time `json:"cancel_deadline,omitempty"`
	MaxParticipants   *int       `json:"max_participants,omitempty"`
	Price             float64    `json:"price"`
	Fine              float64    `json:"fine"`
	NumParticipants   int        `json:"num_participants"`
	TPayAllowed       bool       `json:"tpay_allowed"`
}

// RegistrationStatusResponse describes what the calling member can do with
// an event right now.
type RegistrationStatusResponse struct {
	Status        string `json:"status"`
	Message       string `json:"message,omitempty"`
	QueuePosition *int   `json:"queue_position,omitempty"`
}

type CreateExternalRegistrationRequest struct {
	Name         string `json:"name" validate:"required,max=255"`
	ContactEmail string `json:"contact_email" validate:"required,email"`
}

type RegistrationResponse struct {
	ID            int64      `json:"id"`
	EventID       int64      `json:"event_id"`
	MemberID      *int64     `json:"member_id,omitempty"`
	Name          string     `json:"name,omitempty"`
	ContactEmail  string     `json:"contact_email,omitempty"`
	Date          time.Time  `json:"date"`
	DateCancelled *time.Time `json:"date_cancelled,omitempty"`
	Present       bool       `json:"present"`
	QueuePosition int        `json:"queue_position"`
	IsCancelled   bool       `json:"is_cancelled"`
}

type CancelResponse struct {
	Kind         string  `json:"kind"`
	Fine         float64 `json:"fine,omitempty"`
	MessageShown string  `json:"message,omitempty"`
}

type SetPresentRequest struct {
	Present bool `json:"present"`
}

type CreatePaymentRequest struct {
	Kind      string `json:"kind" validate:"required"`
	PayableID int64  `json:"payable_id" validate:"required"`
	Type      string `json:"type" validate:"required"`
}

type PaymentResponse struct {
	ID             uuid.UUID  `json:"id"`
	Type           string     `json:"type"`
	Amount         float64    `json:"amount"`
	Topic          string     `json:"topic"`
	CreatedAt      time.Time  `json:"created_at"`
	ProcessingDate *time.Time `json:"processing_date,omitempty"`
	BatchID        *uuid.UUID `json:"batch_id,omitempty"`
}

type CreateBatchRequest struct {
	Description string `json:"description" validate:"required"`
}

type BatchResponse struct {
	ID             uuid.UUID  `json:"id"`
	Processed      bool       `json:"processed"`
	ProcessingDate *time.Time `json:"processing_date,omitempty"`
	Description    string     `json:"description"`
	PaymentCount   int        `json:"payment_count,omitempty"`
}

type CreateEntryRequest struct {
	FirstName      string  `json:"first_name" validate:"required,max=255"`
	LastName       string  `json:"last_name" validate:"required,max=255"`
	Email          string  `json:"email" validate:"required,email"`
	Username       string  `json:"username" validate:"required,min=3,max=64"`
	MembershipType string  `json:"membership_type" validate:"required,oneof=member benefactor"`
	Contribution   float64 `json:"contribution" validate:"gte=0"`
	Remarks        string  `json:"remarks"`
}

type UpdateEntryStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type EntryResponse struct {
	ID             int64      `json:"id"`
	Status         string     `json:"status"`
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	Email          string     `json:"email"`
	Username       string     `json:"username"`
	MembershipType string     `json:"membership_type"`
	Contribution   float64    `json:"contribution"`
	Remarks        string     `json:"remarks,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	MemberID       *int64     `json:"member_id,omitempty"`
	PaymentID      *uuid.UUID `json:"payment_id,omitempty"`
}

type CreateFoodEventRequest struct {
	EventID int64     `json:"event_id" validate:"required"`
	Start   time.Time `json:"start" validate:"required"`
	End     time.Time `json:"end" validate:"required"`
}

type CreateFoodOrderRequest struct {
	FoodEventID int64  `json:"food_event_id" validate:"required"`
	ProductID   int64  `json:"product_id" validate:"required"`
	Name        string `json:"name"`
	Notes       string `json:"notes"`
}

type UpdateFoodOrderRequest struct {
	ProductID *int64  `json:"product_id"`
	Notes     *string `json:"notes"`
}

type FoodOrderResponse struct {
	ID           int64      `json:"id"`
	FoodEventID  int64      `json:"food_event_id"`
	ProductID    int64      `json:"product_id"`
	ProductPrice float64    `json:"product_price"`
	MemberID     *int64     `json:"member_id,omitempty"`
	Name         string     `json:"name,omitempty"`
	Notes        string     `json:"notes,omitempty"`
	PaymentID    *uuid.UUID `json:"payment_id,omitempty"`
}

type SalesOrderItemRequest struct {
	ProductName string  `json:"product_name" validate:"required"`
	Amount      int     `json:"amount" validate:"gt=0"`
	Total       float64 `json:"total" validate:"gte=0"`
}

type CreateSalesOrderRequest struct {
	MemberID *int64                  `json:"member_id"`
	Discount float64                 `json:"discount" validate:"gte=0"`
	Items    []SalesOrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

type UpdateSalesOrderRequest struct {
	Discount *float64 `json:"discount"`
}

type UpdateSalesOrderItemRequest struct {
	ProductName *string  `json:"product_name"`
	Amount      *int     `json:"amount"`
	Total       *float64 `json:"total"`
}

type SalesOrderItemResponse struct {
	ID          int64   `json:"id"`
	ProductName string  `json:"product_name"`
	Amount      int     `json:"amount"`
	Total       float64 `json:"total"`
}

type SalesOrderResponse struct {
	ID        int64                    `json:"id"`
	MemberID  *int64                   `json:"member_id,omitempty"`
	Discount  float64                  `json:"discount"`
	Total     float64                  `json:"total"`
	PaymentID *uuid.UUID               `json:"payment_id,omitempty"`
	Items     []SalesOrderItemResponse `json:"items"`
}

// Notification kinds carried over RabbitMQ to the mail worker.
const (
	NotifyPromoted         = "registration_promoted"
	NotifyOrganiserCancel  = "organiser_late_cancel"
	NotifyCancelConfirmed  = "registration_cancelled"
	NotifyPaymentProcessed = "payment_processed"
)

type NotificationMessage struct {
	Kind       string  `json:"kind"`
	Email      string  `json:"email"`
	EventTitle string  `json:"event_title,omitempty"`
	MemberName string  `json:"member_name,omitempty"`
	Amount     float64 `json:"amount,omitempty"`
}

type Response struct {
	Status string `json:"status"`
	Error  *Error `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

type Error struct {
	Code string `json:"code"`
	Desc string `json:"desc"`
}

func BadResponseError(c *ginext.Context, code, desc string) {
	c.JSON(400, Response{
		Status: "error",
		Error: &Error{
			Code: code,
			Desc: desc,
		},
	})
}

func ConflictError(c *ginext.Context, code, desc string) {
	c.JSON(409, Response{
		Status: "error",
		Error: &Error{
			Code: code,
			Desc: desc,
		},
	})
}

func NotFoundError(c *ginext.Context, code, desc string) {
	c.JSON(404, Response{
		Status: "error",
		Error: &Error{
			Code: code,
			Desc: desc,
		},
	})
}

func UnauthorizedError(c *ginext.Context) {
	c.JSON(401, Response{
		Status: "error",
		Error: &Error{
			Code: Unauthorized,
			Desc: "Authentication required",
		},
	})
}

func ForbiddenError(c *ginext.Context, desc string) {
	c.JSON(403, Response{
		Status: "error",
		Error: &Error{
			Code: Forbidden,
			Desc: desc,
		},
	})
}

func InternalServerError(c *ginext.Context) {
	c.JSON(500, Response{
		Status: "error",
		Error: &Error{
			Code: ServiceUnavailable,
			Desc: InternalError,
		},
	})
}

func EventNotFoundError(c *ginext.Context) {
	NotFoundError(c, EventNotFound, "Event not found")
}

func RegistrationNotFoundError(c *ginext.Context) {
	NotFoundError(c, RegistrationNotFound, "Registration not found")
}

func SuccessResponse(c *ginext.Context, data any) {
	c.JSON(200, Response{
		Status: "ok",
		Data:   data,
	})
}

func SuccessCreatedResponse(c *ginext.Context, data any) {
	c.JSON(201, Response{
		Status: "ok",
		Data:   data,
	})
}
