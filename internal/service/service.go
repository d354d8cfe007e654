package service

import (
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/ginext"

	"memberhub/internal/cache"
	"memberhub/internal/dto"
	"memberhub/internal/events"
	"memberhub/internal/memberships"
	"memberhub/internal/metrics"
	"memberhub/internal/payments"
	"memberhub/internal/rabbit"
	"memberhub/internal/repo"
	"memberhub/pkg/auth"
	"memberhub/pkg/validator"
)

type Service interface {
	Login(ctx *ginext.Context)

	CreateEvent(ctx *ginext.Context)
	GetAllEvents(ctx *ginext.Context)
	GetEvent(ctx *ginext.Context)
	RegistrationStatus(ctx *ginext.Context)
	Register(ctx *ginext.Context)
	RegisterExternal(ctx *ginext.Context)
	Cancel(ctx *ginext.Context)
	CancelRegistration(ctx *ginext.Context)
	SetPresent(ctx *ginext.Context)

	CreatePayment(ctx *ginext.Context)
	DeletePayment(ctx *ginext.Context)
	GetPayment(ctx *ginext.Context)
	CreateBatch(ctx *ginext.Context)
	ProcessBatch(ctx *ginext.Context)

	CreateMember(ctx *ginext.Context)
	CreateEntry(ctx *ginext.Context)
	ConfirmEntry(ctx *ginext.Context)
	GetEntry(ctx *ginext.Context)
	ListEntries(ctx *ginext.Context)
	UpdateEntryStatus(ctx *ginext.Context)

	ListFoodProducts(ctx *ginext.Context)
	CreateFoodEvent(ctx *ginext.Context)
	CreateFoodOrder(ctx *ginext.Context)
	ListFoodOrders(ctx *ginext.Context)
	GetFoodOrder(ctx *ginext.Context)
	UpdateFoodOrder(ctx *ginext.Context)

	CreateSalesOrder(ctx *ginext.Context)
	GetSalesOrder(ctx *ginext.Context)
	UpdateSalesOrder(ctx *ginext.Context)
	UpdateSalesOrderItem(ctx *ginext.Context)
}

type service struct {
	repo         repo.Repository
	log          *zerolog.Logger
	rbt          *rabbit.Client
	cache        *cache.Cache
	tokens       *auth.TokenManager
	changeWindow time.Duration
}

// NewService wires the HTTP handlers. cache may be nil; the event listing
// then always hits the database.
func NewService(repository repo.Repository, logger *zerolog.Logger, rbt *rabbit.Client, c *cache.Cache, tokens *auth.TokenManager, changeWindow time.Duration) Service {
	return &service{
		repo:         repository,
		log:          logger,
		rbt:          rbt,
		cache:        c,
		tokens:       tokens,
		changeWindow: changeWindow,
	}
}

func (s *service) Login(ctx *ginext.Context) {
	var req dto.LoginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}
	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, verr.Error())
		return
	}

	member, err := s.repo.GetMemberByUsername(ctx.Request.Context(), req.Username)
	if err != nil {
		dto.UnauthorizedError(ctx)
		return
	}
	if err := auth.CheckPassword(member.PasswordHash, req.Password); err != nil {
		dto.UnauthorizedError(ctx)
		return
	}

	token, expires, err := s.tokens.Issue(member.ID, member.IsAdmin, time.Now())
	if err != nil {
		s.log.Error().Err(err).Msg("failed to issue token")
		dto.InternalServerError(ctx)
		return
	}

	s.log.Info().Int64("member_id", member.ID).Msg("member logged in")
	dto.SuccessResponse(ctx, dto.LoginResponse{Token: token, ExpiresAt: expires})
}

// respondError translates domain errors to HTTP envelopes in one place.
func (s *service) respondError(ctx *ginext.Context, err error) {
	switch {
	case errors.Is(err, repo.ErrEventNotFound):
		dto.EventNotFoundError(ctx)
	case errors.Is(err, repo.ErrMemberNotFound):
		dto.NotFoundError(ctx, dto.RegistrationNotFound, "Member not found")
	case errors.Is(err, repo.ErrRegistrationNotFound), errors.Is(err, events.ErrNotRegistered):
		dto.RegistrationNotFoundError(ctx)
	case errors.Is(err, repo.ErrEntryNotFound):
		dto.NotFoundError(ctx, dto.EntryNotFound, "Membership entry not found")
	case errors.Is(err, repo.ErrProductNotFound):
		dto.NotFoundError(ctx, dto.OrderNotFound, "Product not found")
	case errors.Is(err, repo.ErrOrderNotFound):
		dto.NotFoundError(ctx, dto.OrderNotFound, "Order not found")
	case errors.Is(err, events.ErrAlreadyRegistered):
		dto.ConflictError(ctx, dto.RegistrationDuplicate, "You are already registered for this event")
	case errors.Is(err, events.ErrNotAllowed),
		errors.Is(err, events.ErrNoReregister):
		dto.ForbiddenError(ctx, err.Error())
	case errors.Is(err, events.ErrCancelNotAllowed),
		errors.Is(err, events.ErrHasPayment):
		dto.ConflictError(ctx, dto.CancellationForbidden, err.Error())
	case errors.Is(err, payments.ErrImmutable),
		errors.Is(err, payments.ErrPaymentDetach):
		metrics.GuardRejections.Inc()
		dto.ConflictError(ctx, dto.PaymentImmutable, err.Error())
	case errors.Is(err, payments.ErrAlreadyPaid),
		errors.Is(err, payments.ErrNotPaid),
		errors.Is(err, payments.ErrPayingBlocked),
		errors.Is(err, payments.ErrBatchProcessed),
		errors.Is(err, payments.ErrChangeWindow):
		dto.ConflictError(ctx, dto.PaymentConflict, err.Error())
	case errors.Is(err, payments.ErrInvalidType):
		dto.BadResponseError(ctx, dto.FieldIncorrect, err.Error())
	case errors.Is(err, payments.ErrTPayNotAllowed),
		errors.Is(err, payments.ErrTPayNotEnabled),
		errors.Is(err, payments.ErrNoPayer),
		errors.Is(err, payments.ErrPayerMismatch):
		dto.ForbiddenError(ctx, err.Error())
	case errors.Is(err, memberships.ErrInvalidTransition),
		errors.Is(err, memberships.ErrNotAccepted),
		errors.Is(err, memberships.ErrUsernameTaken):
		dto.ConflictError(ctx, dto.EntryConflict, err.Error())
	default:
		s.log.Error().Err(err).Msg("unhandled service error")
		dto.InternalServerError(ctx)
	}
}
