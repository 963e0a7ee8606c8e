package event

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

type Repository interface {
	WithTransaction(ctx context.Context, fn func(repo Repository) error) error
	// LockOwner serializes writers for one owner within the surrounding
	// transaction, closing the conflict-check/insert race between
	// concurrent writes.
	LockOwner(ctx context.Context, ownerId string) error
	Insert(ctx context.Context, event Event) (Event, error)
	FindByID(ctx context.Context, ownerId string, id string) (Event, error)
	FindByOwner(ctx context.Context, ownerId string) ([]Event, error)
	FindByOwnerInRange(ctx context.Context, ownerId string, from, to time.Time) ([]Event, error)
	FindByOwnerOnDay(ctx context.Context, ownerId string, day time.Time) ([]Event, error)
	// FindConflicts returns the ids of same-owner events with the same all-day
	// classification whose interval overlaps the candidate span, excluding
	// excludeId when non-empty.
	FindConflicts(ctx context.Context, ownerId string, candidate Span, allDay bool, excludeId string) ([]string, error)
	Update(ctx context.Context, event Event) (Event, error)
	Delete(ctx context.Context, ownerId string, id string) error
}

type repositoryImpl struct {
	db *pgxpool.Pool
	tx pgx.Tx
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repositoryImpl{db: db}
}

const eventColumns = `id, owner_id, title, description, start_time, end_time, all_day, location, attendees, color, recurring_rule, recurrence_id, created_at, updated_at`

// getQueryer returns the appropriate database interface for queries (either tx or db)
func (r *repositoryImpl) getQueryer() interface {
	Exec(ctx context.Context, query string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, query string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, query string, args ...interface{}) pgx.Row
} {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

func (r *repositoryImpl) WithTransaction(ctx context.Context, fn func(repo Repository) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		// The Rollback will be a no-op if the transaction was already committed
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			log.Errorf("rollback error: %v", rbErr)
		}
	}()

	txRepo := &repositoryImpl{db: r.db, tx: tx}

	if err := fn(txRepo); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

func (r *repositoryImpl) LockOwner(ctx context.Context, ownerId string) error {
	if r.tx == nil {
		return errors.New("owner lock requires a transaction")
	}
	_, err := r.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, ownerId)
	if err != nil {
		return fmt.Errorf("could not acquire owner lock: %w", err)
	}
	return nil
}

func (r *repositoryImpl) Insert(ctx context.Context, event Event) (Event, error) {
	query := `INSERT INTO event (` + eventColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.getQueryer().Exec(ctx, query,
		event.ID,
		event.OwnerID,
		event.Title,
		event.Description,
		event.StartTime,
		event.EndTime,
		event.AllDay,
		event.Location,
		event.Attendees,
		event.Color,
		nullableString(event.RecurringRule),
		event.RecurrenceID,
		event.CreatedAt,
		event.UpdatedAt,
	)
	if err != nil {
		err := fmt.Errorf("could not insert event: %w", err)
		log.Error(err)
		return Event{}, err
	}
	return event, nil
}

func (r *repositoryImpl) FindByID(ctx context.Context, ownerId string, id string) (Event, error) {
	query := `SELECT ` + eventColumns + ` FROM event WHERE id = $1 AND owner_id = $2`

	event, err := scanEvent(r.getQueryer().QueryRow(ctx, query, id, ownerId))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Event{}, ErrEventNotFound
		}
		err := fmt.Errorf("could not query event: %w", err)
		log.Error(err)
		return Event{}, err
	}
	return event, nil
}

func (r *repositoryImpl) FindByOwner(ctx context.Context, ownerId string) ([]Event, error) {
	query := `SELECT ` + eventColumns + ` FROM event WHERE owner_id = $1 ORDER BY start_time`

	rows, err := r.getQueryer().Query(ctx, query, ownerId)
	if err != nil {
		err := fmt.Errorf("could not query events: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	return collectEvents(rows)
}

func (r *repositoryImpl) FindByOwnerInRange(ctx context.Context, ownerId string, from, to time.Time) ([]Event, error) {
	// Three-way OR: starts in range, ends in range, or spans the entire range.
	query := `SELECT ` + eventColumns + ` FROM event
			  WHERE owner_id = $1
			    AND (
			      (start_time >= $2 AND start_time < $3)
			      OR (end_time > $2 AND end_time <= $3)
			      OR (start_time <= $2 AND end_time >= $3)
			    )
			  ORDER BY start_time`

	rows, err := r.getQueryer().Query(ctx, query, ownerId, from, to)
	if err != nil {
		err := fmt.Errorf("could not query events in range: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	return collectEvents(rows)
}

func (r *repositoryImpl) FindByOwnerOnDay(ctx context.Context, ownerId string, day time.Time) ([]Event, error) {
	query := `SELECT ` + eventColumns + ` FROM event
			  WHERE owner_id = $1 AND start_time >= $2 AND start_time < $3
			  ORDER BY start_time`

	rows, err := r.getQueryer().Query(ctx, query, ownerId, day, day.Add(24*time.Hour))
	if err != nil {
		err := fmt.Errorf("could not query events for day: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	return collectEvents(rows)
}

func (r *repositoryImpl) FindConflicts(ctx context.Context, ownerId string, candidate Span, allDay bool, excludeId string) ([]string, error) {
	// The WHERE clause is the SQL form of Overlaps(stored, candidate, allDay).
	var query string
	args := []interface{}{ownerId}
	if allDay {
		query = `SELECT id FROM event
				 WHERE owner_id = $1 AND all_day = TRUE
				   AND start_time < $2 AND end_time > $3`
		args = append(args, candidate.Start.Add(24*time.Hour), candidate.Start)
	} else {
		query = `SELECT id FROM event
				 WHERE owner_id = $1 AND all_day = FALSE
				   AND start_time < $2 AND end_time > $3`
		args = append(args, candidate.End, candidate.Start)
	}
	if excludeId != "" {
		query += ` AND id <> $4`
		args = append(args, excludeId)
	}
	query += ` ORDER BY start_time`

	rows, err := r.getQueryer().Query(ctx, query, args...)
	if err != nil {
		err := fmt.Errorf("could not query conflicting events: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	ids := make([]string, 0, 4)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			err := fmt.Errorf("could not scan row: %w", err)
			log.Error(err)
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *repositoryImpl) Update(ctx context.Context, event Event) (Event, error) {
	query := `UPDATE event SET
				title = $1,
				description = $2,
				start_time = $3,
				end_time = $4,
				all_day = $5,
				location = $6,
				attendees = $7,
				color = $8,
				recurring_rule = $9,
				recurrence_id = $10,
				updated_at = $11
			  WHERE id = $12 AND owner_id = $13`

	tag, err := r.getQueryer().Exec(ctx, query,
		event.Title,
		event.Description,
		event.StartTime,
		event.EndTime,
		event.AllDay,
		event.Location,
		event.Attendees,
		event.Color,
		nullableString(event.RecurringRule),
		event.RecurrenceID,
		event.UpdatedAt,
		event.ID,
		event.OwnerID,
	)
	if err != nil {
		err := fmt.Errorf("could not update event: %w", err)
		log.Error(err)
		return Event{}, err
	}
	if tag.RowsAffected() == 0 {
		return Event{}, ErrEventNotFound
	}
	return event, nil
}

func (r *repositoryImpl) Delete(ctx context.Context, ownerId string, id string) error {
	tag, err := r.getQueryer().Exec(ctx, `DELETE FROM event WHERE id = $1 AND owner_id = $2`, id, ownerId)
	if err != nil {
		err := fmt.Errorf("could not delete event: %w", err)
		log.Error(err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEventNotFound
	}
	return nil
}

func scanEvent(row pgx.Row) (Event, error) {
	var e Event
	var rule *string
	err := row.Scan(
		&e.ID,
		&e.OwnerID,
		&e.Title,
		&e.Description,
		&e.StartTime,
		&e.EndTime,
		&e.AllDay,
		&e.Location,
		&e.Attendees,
		&e.Color,
		&rule,
		&e.RecurrenceID,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return Event{}, err
	}
	if rule != nil {
		e.RecurringRule = *rule
	}
	return e, nil
}

func collectEvents(rows pgx.Rows) ([]Event, error) {
	events := make([]Event, 0, 10)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			err := fmt.Errorf("could not scan row: %w", err)
			log.Error(err)
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
