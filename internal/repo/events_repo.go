package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"memberhub/internal/events"
	"memberhub/internal/model"
)

type EventsRepository interface {
	CreateEvent(ctx context.Context, e *model.Event) (int64, error)
	GetEventByID(ctx context.Context, id int64) (*model.Event, error)
	GetPublishedEvents(ctx context.Context) ([]model.Event, error)
	GetEventRegistrations(ctx context.Context, eventID int64) ([]model.EventRegistration, error)
	GetMemberRegistration(ctx context.Context, eventID, memberID int64) (*model.EventRegistration, error)
	GetRegistrationByID(ctx context.Context, id int64) (*model.EventRegistration, error)

	CreateRegistrationTx(ctx context.Context, eventID, memberID int64, now time.Time) (*model.EventRegistration, int, error)
	CreateExternalRegistrationTx(ctx context.Context, eventID int64, name, contactEmail string, now time.Time) (*model.EventRegistration, int, error)
	CancelRegistrationTx(ctx context.Context, eventID, memberID int64, byOrganiser bool, now time.Time) (*CancelResult, error)
	SetRegistrationPresentTx(ctx context.Context, registrationID int64, present bool) (*model.EventRegistration, error)
}

// CancelResult carries everything the caller needs to emit notifications
// after the cancel transaction committed.
type CancelResult struct {
	Event        *model.Event
	Registration *model.EventRegistration
	Kind         events.CancelKind
	// Promoted is the previously first waiting registration that became
	// confirmed because a confirmed registration left, nil when no one
	// was displaced.
	Promoted        *model.EventRegistration
	NotifyOrganiser bool
	// Fined is true when a confirmed spot was given up past the deadline,
	// regardless of whether the cancellation was also final.
	Fined bool
}

const eventColumns = `e.id, e.title, e.description, e.start, e."end", e.location,
	e.registration_start, e.registration_end, e.cancel_deadline,
	e.max_participants, e.price, e.fine, e.published, e.optional_registrations,
	e.organiser_group_id, COALESCE(g.contact_email, ''), e.send_cancel_email,
	e.tpay_allowed, e.created_at, e.updated_at`

const eventFrom = ` FROM events e LEFT JOIN member_groups g ON g.id = e.organiser_group_id `

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*model.Event, error) {
	var e model.Event
	if err := row.Scan(
		&e.ID, &e.Title, &e.Description, &e.Start, &e.End, &e.Location,
		&e.RegistrationStart, &e.RegistrationEnd, &e.CancelDeadline,
		&e.MaxParticipants, &e.Price, &e.Fine, &e.Published, &e.OptionalRegistrations,
		&e.OrganiserGroupID, &e.OrganiserEmail, &e.SendCancelEmail,
		&e.TPayAllowed, &e.CreatedAt, &e.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &e, nil
}

const registrationColumns = `id, event_id, member_id, name, contact_email, date, date_cancelled, present, payment_id`

func scanRegistration(row rowScanner) (*model.EventRegistration, error) {
	var reg model.EventRegistration
	var payment uuid.NullUUID
	if err := row.Scan(
		&reg.ID, &reg.EventID, &reg.MemberID, &reg.Name, &reg.ContactEmail,
		&reg.Date, &reg.DateCancelled, &reg.Present, &payment,
	); err != nil {
		return nil, err
	}
	if payment.Valid {
		reg.PaymentID = &payment.UUID
	}
	return &reg, nil
}

func (r *repository) CreateEvent(ctx context.Context, e *model.Event) (int64, error) {
	query := `
		INSERT INTO events (title, description, start, "end", location,
			registration_start, registration_end, cancel_deadline,
			max_participants, price, fine, published, optional_registrations,
			organiser_group_id, send_cancel_email, tpay_allowed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, NOW(), NOW())
		RETURNING id
	`
	var id int64
	err := r.db.QueryRowContext(ctx, query,
		e.Title, e.Description, e.Start, e.End, e.Location,
		e.RegistrationStart, e.RegistrationEnd, e.CancelDeadline,
		e.MaxParticipants, e.Price, e.Fine, e.Published, e.OptionalRegistrations,
		e.OrganiserGroupID, e.SendCancelEmail, e.TPayAllowed,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert event: %w", err)
	}
	return id, nil
}

func (r *repository) GetEventByID(ctx context.Context, id int64) (*model.Event, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+eventColumns+eventFrom+`WHERE e.id = $1`, id)
	e, err := scanEvent(row)
	if err != nil {
		return nil, ErrEventNotFound
	}
	return e, nil
}

func (r *repository) GetPublishedEvents(ctx context.Context) ([]model.Event, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+eventColumns+eventFrom+`WHERE e.published ORDER BY e.start ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	defer rows.Close()

	var result []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		result = append(result, *e)
	}
	return result, rows.Err()
}

func (r *repository) GetEventRegistrations(ctx context.Context, eventID int64) ([]model.EventRegistration, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+registrationColumns+`
		FROM event_registrations
		WHERE event_id = $1
		ORDER BY date ASC, id ASC
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get registrations: %w", err)
	}
	defer rows.Close()

	var regs []model.EventRegistration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan registration: %w", err)
		}
		regs = append(regs, *reg)
	}
	return regs, rows.Err()
}

func (r *repository) GetMemberRegistration(ctx context.Context, eventID, memberID int64) (*model.EventRegistration, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+registrationColumns+`
		FROM event_registrations
		WHERE event_id = $1 AND member_id = $2
	`, eventID, memberID)
	reg, err := scanRegistration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRegistrationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get registration: %w", err)
	}
	return reg, nil
}

func (r *repository) GetRegistrationByID(ctx context.Context, id int64) (*model.EventRegistration, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+registrationColumns+`
		FROM event_registrations
		WHERE id = $1
	`, id)
	reg, err := scanRegistration(row)
	if err != nil {
		return nil, ErrRegistrationNotFound
	}
	return reg, nil
}

// lockEvent reads the event row FOR UPDATE so that all capacity-sensitive
// work on one event serializes.
func lockEvent(ctx context.Context, tx *sql.Tx, eventID int64) (*model.Event, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+eventColumns+eventFrom+`WHERE e.id = $1 FOR UPDATE OF e`, eventID)
	e, err := scanEvent(row)
	if err != nil {
		return nil, ErrEventNotFound
	}
	return e, nil
}

func eventRegistrationsTx(ctx context.Context, tx *sql.Tx, eventID int64) ([]model.EventRegistration, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT `+registrationColumns+`
		FROM event_registrations
		WHERE event_id = $1
		ORDER BY date ASC, id ASC
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to load registrations: %w", err)
	}
	defer rows.Close()

	var regs []model.EventRegistration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan registration: %w", err)
		}
		regs = append(regs, *reg)
	}
	return regs, rows.Err()
}

func (r *repository) CreateRegistrationTx(ctx context.Context, eventID, memberID int64, now time.Time) (*model.EventRegistration, int, error) {
	member, err := r.GetMemberByID(ctx, memberID)
	if err != nil {
		return nil, 0, err
	}

	var created *model.EventRegistration
	queuePos := 0

	err = r.inTx(ctx, func(tx *sql.Tx) error {
		event, err := lockEvent(ctx, tx, eventID)
		if err != nil {
			return err
		}

		all, err := eventRegistrationsTx(ctx, tx, eventID)
		if err != nil {
			return err
		}

		var existing *model.EventRegistration
		for i := range all {
			if all[i].MemberID != nil && *all[i].MemberID == memberID {
				existing = &all[i]
				break
			}
		}

		if existing != nil && existing.DateCancelled == nil {
			return events.ErrAlreadyRegistered
		}
		if !events.CanCreateRegistration(event, existing, member, now) {
			return events.ErrNotAllowed
		}

		if existing != nil {
			if events.IsLateCancellation(event, existing, all) {
				return events.ErrNoReregister
			}
			// re-registering resurrects the old row at the back of the queue
			if _, err := tx.ExecContext(ctx, `
				UPDATE event_registrations
				SET date = $1, date_cancelled = NULL, present = FALSE
				WHERE id = $2
			`, now, existing.ID); err != nil {
				return fmt.Errorf("failed to revive registration: %w", err)
			}
			existing.Date = now
			existing.DateCancelled = nil
			existing.Present = false
			created = existing
		} else {
			var id int64
			if err := tx.QueryRowContext(ctx, `
				INSERT INTO event_registrations (event_id, member_id, date, present)
				VALUES ($1, $2, $3, FALSE)
				RETURNING id
			`, eventID, memberID, now).Scan(&id); err != nil {
				return fmt.Errorf("failed to create registration: %w", err)
			}
			created = &model.EventRegistration{
				ID:       id,
				EventID:  eventID,
				MemberID: &memberID,
				Date:     now,
			}
		}

		active := events.Active(all)
		if events.ReachedCapacity(active, event.MaxParticipants) {
			queuePos = len(active) - *event.MaxParticipants + 1
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return created, queuePos, nil
}

// CreateExternalRegistrationTx adds a name-only registration on behalf of a
// guest without an account. Organiser-driven, so the window policy does not
// apply; the queue discipline does.
func (r *repository) CreateExternalRegistrationTx(ctx context.Context, eventID int64, name, contactEmail string, now time.Time) (*model.EventRegistration, int, error) {
	var created *model.EventRegistration
	queuePos := 0

	err := r.inTx(ctx, func(tx *sql.Tx) error {
		event, err := lockEvent(ctx, tx, eventID)
		if err != nil {
			return err
		}
		if !events.RegistrationRequired(event) {
			return events.ErrNotAllowed
		}

		all, err := eventRegistrationsTx(ctx, tx, eventID)
		if err != nil {
			return err
		}

		var id int64
		if err := tx.QueryRowContext(ctx, `
			INSERT INTO event_registrations (event_id, name, contact_email, date, present)
			VALUES ($1, $2, $3, $4, FALSE)
			RETURNING id
		`, eventID, name, contactEmail, now).Scan(&id); err != nil {
			return fmt.Errorf("failed to create external registration: %w", err)
		}
		created = &model.EventRegistration{
			ID:           id,
			EventID:      eventID,
			Name:         name,
			ContactEmail: contactEmail,
			Date:         now,
		}

		active := events.Active(all)
		if events.ReachedCapacity(active, event.MaxParticipants) {
			queuePos = len(active) - *event.MaxParticipants + 1
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return created, queuePos, nil
}

func (r *repository) CancelRegistrationTx(ctx context.Context, eventID, memberID int64, byOrganiser bool, now time.Time) (*CancelResult, error) {
	var result *CancelResult

	err := r.inTx(ctx, func(tx *sql.Tx) error {
		event, err := lockEvent(ctx, tx, eventID)
		if err != nil {
			return err
		}

		all, err := eventRegistrationsTx(ctx, tx, eventID)
		if err != nil {
			return err
		}

		var reg *model.EventRegistration
		for i := range all {
			if all[i].MemberID != nil && *all[i].MemberID == memberID {
				reg = &all[i]
				break
			}
		}
		if reg == nil || reg.DateCancelled != nil {
			return events.ErrNotRegistered
		}
		if reg.PaymentID != nil {
			return events.ErrHasPayment
		}
		if !byOrganiser && !events.CanCancelRegistration(event, reg, now) {
			return events.ErrCancelNotAllowed
		}

		active := events.Active(all)
		kind := events.CancelKindFor(event, reg, all, now)
		wasConfirmed := events.QueuePosition(active, event.MaxParticipants, reg.ID) == 0

		var promoted *model.EventRegistration
		if wasConfirmed {
			promoted = events.FirstWaiting(active, event.MaxParticipants)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE event_registrations
			SET date_cancelled = $1
			WHERE id = $2 AND date_cancelled IS NULL
		`, now, reg.ID); err != nil {
			return fmt.Errorf("failed to cancel registration: %w", err)
		}
		reg.DateCancelled = &now

		result = &CancelResult{
			Event:        event,
			Registration: reg,
			Kind:         kind,
			Promoted:     promoted,
			Fined:        wasConfirmed && events.AfterCancelDeadline(event, now),
			NotifyOrganiser: event.SendCancelEmail &&
				events.AfterCancelDeadline(event, now) &&
				wasConfirmed,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SetRegistrationPresentTx is a guarded save: the previous row is re-read
// in the same transaction and the payable guard validates the change set
// before anything is written.
func (r *repository) SetRegistrationPresentTx(ctx context.Context, registrationID int64, present bool) (*model.EventRegistration, error) {
	var updated *model.EventRegistration

	err := r.inTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			SELECT `+registrationColumns+`
			FROM event_registrations
			WHERE id = $1
			FOR UPDATE
		`, registrationID)
		old, err := scanRegistration(row)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrRegistrationNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load registration: %w", err)
		}

		next := *old
		next.Present = present

		if err := r.checkPayableSave(events.PayableKind, old, &next); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE event_registrations SET present = $1 WHERE id = $2
		`, present, registrationID); err != nil {
			return fmt.Errorf("failed to update registration: %w", err)
		}
		updated = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
