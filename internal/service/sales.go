package service

import (
	"strconv"
	"time"

	"github.com/wb-go/wbf/ginext"

	"memberhub/internal/dto"
	"memberhub/internal/model"
	"memberhub/internal/repo"
	"memberhub/pkg/validator"
)

func salesOrderResponse(o *model.SalesOrder, items []model.SalesOrderItem) dto.SalesOrderResponse {
	resp := dto.SalesOrderResponse{
		ID:        o.ID,
		MemberID:  o.MemberID,
		Discount:  o.Discount,
		Total:     o.Total,
		PaymentID: o.PaymentID,
		Items:     make([]dto.SalesOrderItemResponse, 0, len(items)),
	}
	for _, item := range items {
		resp.Items = append(resp.Items, dto.SalesOrderItemResponse{
			ID:          item.ID,
			ProductName: item.ProductName,
			Amount:      item.Amount,
			Total:       item.Total,
		})
	}
	return resp
}

func (s *service) CreateSalesOrder(ctx *ginext.Context) {
	var req dto.CreateSalesOrderRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}
	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, verr.Error())
		return
	}

	items := make([]model.SalesOrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, model.SalesOrderItem{
			ProductName: item.ProductName,
			Amount:      item.Amount,
			Total:       item.Total,
		})
	}

	order, err := s.repo.CreateSalesOrderTx(ctx.Request.Context(), req.MemberID, items, req.Discount, time.Now())
	if err != nil {
		s.respondError(ctx, err)
		return
	}

	s.log.Info().Int64("order_id", order.ID).Float64("total", order.Total).Msg("sales order created")
	dto.SuccessCreatedResponse(ctx, salesOrderResponse(order, items))
}

func (s *service) GetSalesOrder(ctx *ginext.Context) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid order ID")
		return
	}
	order, items, err := s.repo.GetSalesOrderByID(ctx.Request.Context(), id)
	if err != nil {
		s.respondError(ctx, err)
		return
	}
	dto.SuccessResponse(ctx, salesOrderResponse(order, items))
}

func (s *service) UpdateSalesOrder(ctx *ginext.Context) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid order ID")
		return
	}
	var req dto.UpdateSalesOrderRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}

	order, err := s.repo.UpdateSalesOrderTx(ctx.Request.Context(), id, repo.SalesOrderPatch{
		Discount: req.Discount,
	})
	if err != nil {
		s.respondError(ctx, err)
		return
	}

	_, items, err := s.repo.GetSalesOrderByID(ctx.Request.Context(), id)
	if err != nil {
		s.respondError(ctx, err)
		return
	}
	s.log.Info().Int64("order_id", id).Msg("sales order updated")
	dto.SuccessResponse(ctx, salesOrderResponse(order, items))
}

// UpdateSalesOrderItem edits a line item. Once the parent order is paid
// the item is frozen together with it.
func (s *service) UpdateSalesOrderItem(ctx *ginext.Context) {
	orderID, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid order ID")
		return
	}
	itemID, err := strconv.ParseInt(ctx.Param("itemId"), 10, 64)
	if err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid item ID")
		return
	}
	var req dto.UpdateSalesOrderItemRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}

	item, err := s.repo.UpdateSalesOrderItemTx(ctx.Request.Context(), orderID, itemID, repo.SalesOrderItemPatch{
		ProductName: req.ProductName,
		Amount:      req.Amount,
		Total:       req.Total,
	})
	if err != nil {
		s.respondError(ctx, err)
		return
	}

	s.log.Info().Int64("order_id", orderID).Int64("item_id", itemID).Msg("sales order item updated")
	dto.SuccessResponse(ctx, dto.SalesOrderItemResponse{
		ID:          item.ID,
		ProductName: item.ProductName,
		Amount:      item.Amount,
		Total:       item.Total,
	})
}
