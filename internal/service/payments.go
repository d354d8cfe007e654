package service

import (
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"

	"memberhub/cmd/middleware"
	"memberhub/internal/dto"
	"memberhub/internal/memberships"
	"memberhub/internal/metrics"
	"memberhub/internal/model"
	"memberhub/internal/payments"
	"memberhub/pkg/validator"
)

func paymentResponse(p *model.Payment) dto.PaymentResponse {
	return dto.PaymentResponse{
		ID:             p.ID,
		Type:           p.Type,
		Amount:         p.Amount,
		Topic:          p.Topic,
		CreatedAt:      p.CreatedAt,
		ProcessingDate: p.ProcessingDate,
		BatchID:        p.BatchID,
	}
}

// CreatePayment attaches a payment to any registered payable kind. Members
// can settle their own payables with their account balance; every other
// payment type is board-only.
func (s *service) CreatePayment(ctx *ginext.Context) {
	memberID, ok := middleware.MemberID(ctx)
	if !ok {
		dto.UnauthorizedError(ctx)
		return
	}

	var req dto.CreatePaymentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}
	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, verr.Error())
		return
	}
	if req.Type != model.PaymentTPay && !middleware.IsAdmin(ctx) {
		dto.ForbiddenError(ctx, "Only admins can register cash, card or wire payments")
		return
	}

	actor, err := s.repo.GetMemberByID(ctx.Request.Context(), memberID)
	if err != nil {
		s.respondError(ctx, err)
		return
	}

	payment, err := s.repo.CreatePaymentTx(ctx.Request.Context(), req.Kind, req.PayableID, actor, req.Type, time.Now())
	if err != nil {
		s.respondError(ctx, err)
		return
	}

	metrics.PaymentsCreated.WithLabelValues(payment.Type).Inc()
	if req.Kind == memberships.PayableKind {
		metrics.EntriesCompleted.Inc()
	}
	s.log.Info().
		Str("payment_id", payment.ID.String()).
		Str("kind", req.Kind).
		Int64("payable_id", req.PayableID).
		Str("type", payment.Type).
		Msg("payment created")

	if payment.PaidByID != nil {
		if payer, err := s.repo.GetMemberByID(ctx.Request.Context(), *payment.PaidByID); err == nil {
			s.publishNotification(dto.NotificationMessage{
				Kind:       dto.NotifyPaymentProcessed,
				Email:      payer.Email,
				MemberName: payer.FullName(),
				Amount:     payment.Amount,
			})
		}
	}

	dto.SuccessCreatedResponse(ctx, paymentResponse(payment))
}

// DeletePayment detaches and removes the payment of a payable. Admins may
// pass force=true to override the change window; processed batches are
// final for everyone.
func (s *service) DeletePayment(ctx *ginext.Context) {
	kind := ctx.Query("kind")
	payableID, err := strconv.ParseInt(ctx.Query("payable_id"), 10, 64)
	if kind == "" || err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "kind and payable_id are required")
		return
	}

	force := ctx.Query("force") == "true" && middleware.IsAdmin(ctx)

	if err := s.repo.DeletePaymentTx(ctx.Request.Context(), kind, payableID, force, s.changeWindow, time.Now()); err != nil {
		s.respondError(ctx, err)
		return
	}

	metrics.PaymentsDeleted.Inc()
	s.log.Info().
		Str("kind", kind).
		Int64("payable_id", payableID).
		Bool("forced", force).
		Msg("payment deleted")
	dto.SuccessResponse(ctx, nil)
}

func (s *service) GetPayment(ctx *ginext.Context) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid payment ID")
		return
	}
	payment, err := s.repo.GetPaymentByID(ctx.Request.Context(), id)
	if err != nil {
		dto.NotFoundError(ctx, dto.PaymentConflict, "Payment not found")
		return
	}
	dto.SuccessResponse(ctx, paymentResponse(payment))
}

func (s *service) CreateBatch(ctx *ginext.Context) {
	var req dto.CreateBatchRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}
	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, verr.Error())
		return
	}

	batch, count, err := s.repo.CreateTPayBatchTx(ctx.Request.Context(), req.Description, time.Now())
	if err != nil {
		s.respondError(ctx, err)
		return
	}

	s.log.Info().
		Str("batch_id", batch.ID.String()).
		Int("payments", count).
		Msg("settlement batch created")
	dto.SuccessCreatedResponse(ctx, dto.BatchResponse{
		ID:           batch.ID,
		Processed:    batch.Processed,
		Description:  batch.Description,
		PaymentCount: count,
	})
}

func (s *service) ProcessBatch(ctx *ginext.Context) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid batch ID")
		return
	}

	now := time.Now()
	if err := s.repo.ProcessBatchTx(ctx.Request.Context(), id, now); err != nil {
		if errors.Is(err, payments.ErrBatchProcessed) {
			s.respondError(ctx, err)
			return
		}
		dto.ConflictError(ctx, dto.PaymentConflict, err.Error())
		return
	}

	s.log.Info().Str("batch_id", id.String()).Msg("settlement batch processed")
	dto.SuccessResponse(ctx, dto.BatchResponse{
		ID:             id,
		Processed:      true,
		ProcessingDate: &now,
	})
}
