package service

import (
	"strconv"
	"time"

	"github.com/wb-go/wbf/ginext"

	"memberhub/internal/dto"
	"memberhub/internal/model"
	"memberhub/pkg/auth"
	"memberhub/pkg/validator"
)

func entryResponse(e *model.MembershipEntry) dto.EntryResponse {
	return dto.EntryResponse{
		ID:             e.ID,
		Status:         e.Status,
		FirstName:      e.FirstName,
		LastName:       e.LastName,
		Email:          e.Email,
		Username:       e.Username,
		MembershipType: e.MembershipType,
		Contribution:   e.Contribution,
		Remarks:        e.Remarks,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
		MemberID:       e.MemberID,
		PaymentID:      e.PaymentID,
	}
}

// CreateMember provisions an account directly, bypassing the application
// workflow. Used for bootstrapping and for staff accounts.
func (s *service) CreateMember(ctx *ginext.Context) {
	var req dto.CreateMemberRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}
	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, verr.Error())
		return
	}
	if _, err := s.repo.GetMemberByUsername(ctx.Request.Context(), req.Username); err == nil {
		dto.ConflictError(ctx, dto.EntryConflict, "Username is already taken")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to hash password")
		dto.InternalServerError(ctx)
		return
	}
	member := &model.Member{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		CanAttend:    true,
		IsAdmin:      req.IsAdmin,
	}
	id, err := s.repo.CreateMember(ctx.Request.Context(), member)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to create member")
		dto.InternalServerError(ctx)
		return
	}

	s.log.Info().Int64("member_id", id).Str("username", req.Username).Msg("member account created")
	dto.SuccessCreatedResponse(ctx, dto.MemberResponse{
		ID:        id,
		Username:  member.Username,
		Email:     member.Email,
		FirstName: member.FirstName,
		LastName:  member.LastName,
		IsAdmin:   member.IsAdmin,
	})
}

// CreateEntry starts a membership application. Open to anonymous callers;
// the applicant is not a member yet.
func (s *service) CreateEntry(ctx *ginext.Context) {
	var req dto.CreateEntryRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}
	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, verr.Error())
		return
	}

	entry := &model.MembershipEntry{
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Email:          req.Email,
		Username:       req.Username,
		MembershipType: req.MembershipType,
		Contribution:   req.Contribution,
		Remarks:        req.Remarks,
	}

	id, err := s.repo.CreateEntry(ctx.Request.Context(), entry)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to create entry")
		dto.InternalServerError(ctx)
		return
	}
	entry.ID = id
	entry.Status = model.EntryStatusDraft

	s.log.Info().Int64("entry_id", id).Str("username", req.Username).Msg("membership application created")
	dto.SuccessCreatedResponse(ctx, entryResponse(entry))
}

func (s *service) GetEntry(ctx *ginext.Context) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid entry ID")
		return
	}
	entry, err := s.repo.GetEntryByID(ctx.Request.Context(), id)
	if err != nil {
		s.respondError(ctx, err)
		return
	}
	dto.SuccessResponse(ctx, entryResponse(entry))
}

func (s *service) ListEntries(ctx *ginext.Context) {
	status := ctx.Query("status")
	if status == "" {
		status = model.EntryStatusReview
	}
	entries, err := s.repo.ListEntriesByStatus(ctx.Request.Context(), status)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list entries")
		dto.InternalServerError(ctx)
		return
	}
	resp := make([]dto.EntryResponse, 0, len(entries))
	for i := range entries {
		resp = append(resp, entryResponse(&entries[i]))
	}
	dto.SuccessResponse(ctx, resp)
}

// ConfirmEntry is the applicant's own confirmation step, moving a draft
// into board review. Public: the applicant is not a member yet.
func (s *service) ConfirmEntry(ctx *ginext.Context) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid entry ID")
		return
	}
	entry, err := s.repo.UpdateEntryStatusTx(ctx.Request.Context(), id, model.EntryStatusReview, time.Now())
	if err != nil {
		s.respondError(ctx, err)
		return
	}
	s.log.Info().Int64("entry_id", id).Msg("membership application confirmed")
	dto.SuccessResponse(ctx, entryResponse(entry))
}

// UpdateEntryStatus walks the review workflow. Completion is rejected
// here; an entry only completes through a payment.
func (s *service) UpdateEntryStatus(ctx *ginext.Context) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid entry ID")
		return
	}
	var req dto.UpdateEntryStatusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}
	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, verr.Error())
		return
	}

	entry, err := s.repo.UpdateEntryStatusTx(ctx.Request.Context(), id, req.Status, time.Now())
	if err != nil {
		s.respondError(ctx, err)
		return
	}

	s.log.Info().Int64("entry_id", id).Str("status", entry.Status).Msg("entry status updated")
	dto.SuccessResponse(ctx, entryResponse(entry))
}
