package service

import (
	"strconv"
	"time"

	"github.com/wb-go/wbf/ginext"

	"memberhub/cmd/middleware"
	"memberhub/internal/dto"
	"memberhub/internal/model"
	"memberhub/internal/repo"
	"memberhub/pkg/validator"
)

func foodOrderResponse(o *model.FoodOrder) dto.FoodOrderResponse {
	return dto.FoodOrderResponse{
		ID:           o.ID,
		FoodEventID:  o.FoodEventID,
		ProductID:    o.ProductID,
		ProductPrice: o.ProductPrice,
		MemberID:     o.MemberID,
		Name:         o.Name,
		Notes:        o.Notes,
		PaymentID:    o.PaymentID,
	}
}

func (s *service) ListFoodProducts(ctx *ginext.Context) {
	products, err := s.repo.ListFoodProducts(ctx.Request.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list food products")
		dto.InternalServerError(ctx)
		return
	}
	dto.SuccessResponse(ctx, products)
}

func (s *service) CreateFoodEvent(ctx *ginext.Context) {
	var req dto.CreateFoodEventRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}
	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, verr.Error())
		return
	}
	if _, err := s.repo.GetEventByID(ctx.Request.Context(), req.EventID); err != nil {
		s.respondError(ctx, err)
		return
	}

	fe := &model.FoodEvent{EventID: req.EventID, Start: req.Start, End: req.End}
	id, err := s.repo.CreateFoodEvent(ctx.Request.Context(), fe)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to create food event")
		dto.InternalServerError(ctx)
		return
	}
	fe.ID = id

	s.log.Info().Int64("food_event_id", id).Msg("food event created")
	dto.SuccessCreatedResponse(ctx, fe)
}

func (s *service) CreateFoodOrder(ctx *ginext.Context) {
	memberID, ok := middleware.MemberID(ctx)
	if !ok {
		dto.UnauthorizedError(ctx)
		return
	}

	var req dto.CreateFoodOrderRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}
	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, verr.Error())
		return
	}

	fe, err := s.repo.GetFoodEventByID(ctx.Request.Context(), req.FoodEventID)
	if err != nil {
		s.respondError(ctx, err)
		return
	}
	now := time.Now()
	if now.Before(fe.Start) || now.After(fe.End) {
		dto.ConflictError(ctx, dto.OrderNotFound, "Ordering is not open for this event")
		return
	}

	order := &model.FoodOrder{
		FoodEventID: req.FoodEventID,
		ProductID:   req.ProductID,
		MemberID:    &memberID,
		Name:        req.Name,
		Notes:       req.Notes,
	}
	created, err := s.repo.CreateFoodOrderTx(ctx.Request.Context(), order, now)
	if err != nil {
		s.respondError(ctx, err)
		return
	}

	s.log.Info().Int64("order_id", created.ID).Int64("member_id", memberID).Msg("food order created")
	dto.SuccessCreatedResponse(ctx, foodOrderResponse(created))
}

func (s *service) ListFoodOrders(ctx *ginext.Context) {
	feID, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid food event ID")
		return
	}
	if _, err := s.repo.GetFoodEventByID(ctx.Request.Context(), feID); err != nil {
		s.respondError(ctx, err)
		return
	}
	orders, err := s.repo.ListFoodOrders(ctx.Request.Context(), feID)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list food orders")
		dto.InternalServerError(ctx)
		return
	}
	out := make([]dto.FoodOrderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, foodOrderResponse(&orders[i]))
	}
	dto.SuccessResponse(ctx, out)
}

func (s *service) GetFoodOrder(ctx *ginext.Context) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid order ID")
		return
	}
	order, err := s.repo.GetFoodOrderByID(ctx.Request.Context(), id)
	if err != nil {
		s.respondError(ctx, err)
		return
	}
	if !s.canTouchFoodOrder(ctx, order) {
		dto.ForbiddenError(ctx, "Not your order")
		return
	}
	dto.SuccessResponse(ctx, foodOrderResponse(order))
}

// UpdateFoodOrder is the guarded save path: switching product after payment
// is rejected, editing notes is always fine.
func (s *service) UpdateFoodOrder(ctx *ginext.Context) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid order ID")
		return
	}
	var req dto.UpdateFoodOrderRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}

	order, err := s.repo.GetFoodOrderByID(ctx.Request.Context(), id)
	if err != nil {
		s.respondError(ctx, err)
		return
	}
	if !s.canTouchFoodOrder(ctx, order) {
		dto.ForbiddenError(ctx, "Not your order")
		return
	}

	updated, err := s.repo.UpdateFoodOrderTx(ctx.Request.Context(), id, repo.FoodOrderPatch{
		ProductID: req.ProductID,
		Notes:     req.Notes,
	})
	if err != nil {
		s.respondError(ctx, err)
		return
	}

	s.log.Info().Int64("order_id", id).Msg("food order updated")
	dto.SuccessResponse(ctx, foodOrderResponse(updated))
}

func (s *service) canTouchFoodOrder(ctx *ginext.Context, order *model.FoodOrder) bool {
	if middleware.IsAdmin(ctx) {
		return true
	}
	memberID, ok := middleware.MemberID(ctx)
	return ok && order.MemberID != nil && *order.MemberID == memberID
}
