package service

import (
	"strconv"
	"time"

	"github.com/wb-go/wbf/ginext"

	"memberhub/cmd/middleware"
	"memberhub/internal/cache"
	"memberhub/internal/dto"
	"memberhub/internal/events"
	"memberhub/internal/metrics"
	"memberhub/internal/model"
	"memberhub/internal/repo"
	"memberhub/pkg/validator"
)

const publishedEventsKey = "events:published"

func (s *service) publishNotification(msg dto.NotificationMessage) {
	if err := s.rbt.PublishJSON(msg, 0); err != nil {
		s.log.Error().Err(err).Str("kind", msg.Kind).Msg("failed to publish notification")
	}
}

// notifyPromotion tells the head of the waiting list they moved up, whether
// they registered with an account or just a name and a contact address.
func (s *service) notifyPromotion(ctx *ginext.Context, result *repo.CancelResult) {
	if result.Promoted == nil {
		return
	}
	metrics.RegistrationsPromoted.Inc()

	email, name := result.Promoted.ContactEmail, result.Promoted.Name
	if result.Promoted.MemberID != nil {
		promoted, err := s.repo.GetMemberByID(ctx.Request.Context(), *result.Promoted.MemberID)
		if err != nil {
			s.log.Warn().Err(err).Msg("promoted member lookup failed, no notification sent")
			return
		}
		email, name = promoted.Email, promoted.FullName()
	}
	if email == "" {
		return
	}
	s.publishNotification(dto.NotificationMessage{
		Kind:       dto.NotifyPromoted,
		Email:      email,
		EventTitle: result.Event.Title,
		MemberName: name,
	})
}

func (s *service) invalidateEventCache(ctx *ginext.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx.Request.Context(), publishedEventsKey); err != nil {
		s.log.Warn().Err(err).Msg("failed to invalidate event cache")
	}
}

func eventResponse(e *model.Event, numParticipants int) dto.EventResponse {
	return dto.EventResponse{
		ID:                e.ID,
		Title:             e.Title,
		Description:       e.Description,
		Start:             e.Start,
		End:               e.End,
		Location:          e.Location,
		RegistrationStart: e.RegistrationStart,
		RegistrationEnd:   e.RegistrationEnd,
		CancelDeadline:    e.CancelDeadline,
		MaxParticipants:   e.MaxParticipants,
		Price:             e.Price,
		Fine:              e.Fine,
		NumParticipants:   numParticipants,
		TPayAllowed:       e.TPayAllowed,
	}
}

func (s *service) CreateEvent(ctx *ginext.Context) {
	var req dto.CreateEventRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		s.log.Error().Err(err).Msg("failed to parse create event request")
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}
	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, verr.Error())
		return
	}
	if req.End.Before(req.Start) {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Event cannot end before it starts")
		return
	}
	if (req.RegistrationStart == nil) != (req.RegistrationEnd == nil) {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Registration start and end must be set together")
		return
	}

	event := &model.Event{
		Title:                 req.Title,
		Description:           req.Description,
		Start:                 req.Start,
		End:                   req.End,
		Location:              req.Location,
		RegistrationStart:     req.RegistrationStart,
		RegistrationEnd:       req.RegistrationEnd,
		CancelDeadline:        req.CancelDeadline,
		MaxParticipants:       req.MaxParticipants,
		Price:                 req.Price,
		Fine:                  req.Fine,
		Published:             req.Published,
		OptionalRegistrations: req.OptionalRegistrations,
		OrganiserGroupID:      req.OrganiserGroupID,
		SendCancelEmail:       req.SendCancelEmail,
		TPayAllowed:           req.TPayAllowed,
	}

	id, err := s.repo.CreateEvent(ctx.Request.Context(), event)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to create event in DB")
		dto.InternalServerError(ctx)
		return
	}
	event.ID = id

	s.invalidateEventCache(ctx)
	s.log.Info().Int64("event_id", id).Msg("event created")
	dto.SuccessCreatedResponse(ctx, eventResponse(event, 0))
}

func (s *service) GetAllEvents(ctx *ginext.Context) {
	var cached []dto.EventResponse
	if s.cache != nil {
		if err := s.cache.Get(ctx.Request.Context(), publishedEventsKey, &cached); err == nil {
			dto.SuccessResponse(ctx, cached)
			return
		} else if err != cache.ErrCacheMiss {
			s.log.Warn().Err(err).Msg("event cache read failed")
		}
	}

	eventsList, err := s.repo.GetPublishedEvents(ctx.Request.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list events")
		dto.InternalServerError(ctx)
		return
	}

	resp := make([]dto.EventResponse, 0, len(eventsList))
	for i := range eventsList {
		regs, err := s.repo.GetEventRegistrations(ctx.Request.Context(), eventsList[i].ID)
		if err != nil {
			s.log.Error().Err(err).Int64("event_id", eventsList[i].ID).Msg("failed to count registrations")
			continue
		}
		resp = append(resp, eventResponse(&eventsList[i], len(events.Active(regs))))
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx.Request.Context(), publishedEventsKey, resp); err != nil {
			s.log.Warn().Err(err).Msg("event cache write failed")
		}
	}
	dto.SuccessResponse(ctx, resp)
}

func (s *service) GetEvent(ctx *ginext.Context) {
	eventID, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid event ID")
		return
	}

	event, err := s.repo.GetEventByID(ctx.Request.Context(), eventID)
	if err != nil {
		s.respondError(ctx, err)
		return
	}
	regs, err := s.repo.GetEventRegistrations(ctx.Request.Context(), eventID)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to load registrations")
		dto.InternalServerError(ctx)
		return
	}
	dto.SuccessResponse(ctx, eventResponse(event, len(events.Active(regs))))
}

// RegistrationStatus answers "what can I do with this event right now" for
// the requester, anonymous callers included.
func (s *service) RegistrationStatus(ctx *ginext.Context) {
	eventID, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid event ID")
		return
	}

	event, err := s.repo.GetEventByID(ctx.Request.Context(), eventID)
	if err != nil {
		s.respondError(ctx, err)
		return
	}
	all, err := s.repo.GetEventRegistrations(ctx.Request.Context(), eventID)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to load registrations")
		dto.InternalServerError(ctx)
		return
	}

	var member *model.Member
	var reg *model.EventRegistration
	if memberID, ok := middleware.MemberID(ctx); ok {
		member, err = s.repo.GetMemberByID(ctx.Request.Context(), memberID)
		if err != nil {
			s.respondError(ctx, err)
			return
		}
		reg, err = s.repo.GetMemberRegistration(ctx.Request.Context(), eventID, memberID)
		if err != nil && err != repo.ErrRegistrationNotFound {
			s.log.Error().Err(err).Msg("failed to load registration")
			dto.InternalServerError(ctx)
			return
		}
	}

	now := time.Now()
	status := events.Compute(event, reg, member, all, now)

	resp := dto.RegistrationStatusResponse{Status: string(status)}
	if reg != nil && status == events.StatusWaitingList {
		pos := events.QueuePosition(events.Active(all), event.MaxParticipants, reg.ID)
		resp.QueuePosition = &pos
		resp.Message = events.StatusMessage(status, event, pos)
	} else {
		resp.Message = events.StatusMessage(status, event, 0)
	}

	if kind := events.CancelKindFor(event, reg, all, now); reg != nil && reg.DateCancelled == nil {
		if info := events.CancelInfo(event, kind, status, now); info != "" {
			resp.Message = resp.Message + " " + info
		}
	}

	dto.SuccessResponse(ctx, resp)
}

func (s *service) Register(ctx *ginext.Context) {
	eventID, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid event ID")
		return
	}
	memberID, ok := middleware.MemberID(ctx)
	if !ok {
		dto.UnauthorizedError(ctx)
		return
	}

	reg, queuePos, err := s.repo.CreateRegistrationTx(ctx.Request.Context(), eventID, memberID, time.Now())
	if err != nil {
		s.respondError(ctx, err)
		return
	}

	metrics.RegistrationsCreated.Inc()
	s.invalidateEventCache(ctx)
	s.log.Info().
		Int64("event_id", eventID).
		Int64("member_id", memberID).
		Int("queue_position", queuePos).
		Msg("registration created")

	dto.SuccessCreatedResponse(ctx, dto.RegistrationResponse{
		ID:            reg.ID,
		EventID:       reg.EventID,
		MemberID:      reg.MemberID,
		Date:          reg.Date,
		Present:       reg.Present,
		QueuePosition: queuePos,
	})
}

// RegisterExternal adds a guest without an account to the queue, on behalf
// of the event organisers. Promotion mails go to the contact address.
func (s *service) RegisterExternal(ctx *ginext.Context) {
	eventID, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid event ID")
		return
	}
	memberID, ok := middleware.MemberID(ctx)
	if !ok {
		dto.UnauthorizedError(ctx)
		return
	}

	var req dto.CreateExternalRegistrationRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}
	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, verr.Error())
		return
	}

	event, err := s.repo.GetEventByID(ctx.Request.Context(), eventID)
	if err != nil {
		s.respondError(ctx, err)
		return
	}
	if !middleware.IsAdmin(ctx) {
		organiser, err := s.repo.IsOrganiser(ctx.Request.Context(), memberID, event.OrganiserGroupID)
		if err != nil {
			s.log.Error().Err(err).Msg("failed to check organiser")
			dto.InternalServerError(ctx)
			return
		}
		if !organiser {
			dto.ForbiddenError(ctx, "Only organisers can add external registrations")
			return
		}
	}

	reg, queuePos, err := s.repo.CreateExternalRegistrationTx(ctx.Request.Context(), eventID, req.Name, req.ContactEmail, time.Now())
	if err != nil {
		s.respondError(ctx, err)
		return
	}

	metrics.RegistrationsCreated.Inc()
	s.invalidateEventCache(ctx)
	s.log.Info().
		Int64("event_id", eventID).
		Str("name", req.Name).
		Int("queue_position", queuePos).
		Msg("external registration created")

	dto.SuccessCreatedResponse(ctx, dto.RegistrationResponse{
		ID:            reg.ID,
		EventID:       reg.EventID,
		Name:          reg.Name,
		ContactEmail:  reg.ContactEmail,
		Date:          reg.Date,
		QueuePosition: queuePos,
	})
}

func (s *service) Cancel(ctx *ginext.Context) {
	eventID, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid event ID")
		return
	}
	memberID, ok := middleware.MemberID(ctx)
	if !ok {
		dto.UnauthorizedError(ctx)
		return
	}

	result, err := s.repo.CancelRegistrationTx(ctx.Request.Context(), eventID, memberID, middleware.IsAdmin(ctx), time.Now())
	if err != nil {
		s.respondError(ctx, err)
		return
	}

	metrics.RegistrationsCancelled.WithLabelValues(string(result.Kind)).Inc()
	s.invalidateEventCache(ctx)
	s.log.Info().
		Int64("event_id", eventID).
		Int64("member_id", memberID).
		Str("kind", string(result.Kind)).
		Msg("registration cancelled")

	// notifications only after the transaction committed
	s.notifyPromotion(ctx, result)
	if result.NotifyOrganiser && result.Event.OrganiserEmail != "" {
		member, err := s.repo.GetMemberByID(ctx.Request.Context(), memberID)
		name := ""
		if err == nil {
			name = member.FullName()
		}
		s.publishNotification(dto.NotificationMessage{
			Kind:       dto.NotifyOrganiserCancel,
			Email:      result.Event.OrganiserEmail,
			EventTitle: result.Event.Title,
			MemberName: name,
		})
	}

	resp := dto.CancelResponse{Kind: string(result.Kind)}
	// a final cancellation past the deadline still carries the fine
	if result.Fined {
		resp.Fine = result.Event.Fine
		resp.MessageShown = events.StatusMessage(events.StatusCancelledLate, result.Event, 0)
	}
	dto.SuccessResponse(ctx, resp)
}

// CancelRegistration lets an organiser cancel a member's registration,
// skipping the deadline policy but not the payment block.
func (s *service) CancelRegistration(ctx *ginext.Context) {
	regID, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid registration ID")
		return
	}
	actorID, ok := middleware.MemberID(ctx)
	if !ok {
		dto.UnauthorizedError(ctx)
		return
	}

	reg, err := s.repo.GetRegistrationByID(ctx.Request.Context(), regID)
	if err != nil {
		s.respondError(ctx, err)
		return
	}
	if reg.MemberID == nil {
		dto.ConflictError(ctx, dto.CancellationForbidden, "External registrations cannot be cancelled here")
		return
	}
	event, err := s.repo.GetEventByID(ctx.Request.Context(), reg.EventID)
	if err != nil {
		s.respondError(ctx, err)
		return
	}
	if !middleware.IsAdmin(ctx) {
		organiser, err := s.repo.IsOrganiser(ctx.Request.Context(), actorID, event.OrganiserGroupID)
		if err != nil {
			s.log.Error().Err(err).Msg("failed to check organiser")
			dto.InternalServerError(ctx)
			return
		}
		if !organiser {
			dto.ForbiddenError(ctx, "Only organisers can cancel registrations")
			return
		}
	}

	result, err := s.repo.CancelRegistrationTx(ctx.Request.Context(), reg.EventID, *reg.MemberID, true, time.Now())
	if err != nil {
		s.respondError(ctx, err)
		return
	}

	metrics.RegistrationsCancelled.WithLabelValues(string(result.Kind)).Inc()
	s.invalidateEventCache(ctx)
	s.log.Info().
		Int64("registration_id", regID).
		Int64("actor_id", actorID).
		Str("kind", string(result.Kind)).
		Msg("registration cancelled by organiser")

	s.notifyPromotion(ctx, result)
	if cancelled, err := s.repo.GetMemberByID(ctx.Request.Context(), *reg.MemberID); err == nil {
		s.publishNotification(dto.NotificationMessage{
			Kind:       dto.NotifyCancelConfirmed,
			Email:      cancelled.Email,
			EventTitle: result.Event.Title,
			MemberName: cancelled.FullName(),
		})
	}

	dto.SuccessResponse(ctx, dto.CancelResponse{Kind: string(result.Kind)})
}

// SetPresent flips attendance on a registration. Organisers of the event
// and admins only; the payable guard decides whether the row may still be
// written at all.
func (s *service) SetPresent(ctx *ginext.Context) {
	regID, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid registration ID")
		return
	}
	memberID, ok := middleware.MemberID(ctx)
	if !ok {
		dto.UnauthorizedError(ctx)
		return
	}

	var req dto.SetPresentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}

	reg, err := s.repo.GetRegistrationByID(ctx.Request.Context(), regID)
	if err != nil {
		s.respondError(ctx, err)
		return
	}
	event, err := s.repo.GetEventByID(ctx.Request.Context(), reg.EventID)
	if err != nil {
		s.respondError(ctx, err)
		return
	}
	if !middleware.IsAdmin(ctx) {
		organiser, err := s.repo.IsOrganiser(ctx.Request.Context(), memberID, event.OrganiserGroupID)
		if err != nil {
			s.log.Error().Err(err).Msg("failed to check organiser")
			dto.InternalServerError(ctx)
			return
		}
		if !organiser {
			dto.ForbiddenError(ctx, "Only organisers can mark attendance")
			return
		}
	}

	updated, err := s.repo.SetRegistrationPresentTx(ctx.Request.Context(), regID, req.Present)
	if err != nil {
		s.respondError(ctx, err)
		return
	}

	dto.SuccessResponse(ctx, dto.RegistrationResponse{
		ID:            updated.ID,
		EventID:       updated.EventID,
		MemberID:      updated.MemberID,
		Date:          updated.Date,
		DateCancelled: updated.DateCancelled,
		Present:       updated.Present,
		IsCancelled:   updated.DateCancelled != nil,
	})
}
