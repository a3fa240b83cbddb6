package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"shift-scheduler/internal/domain"
	"shift-scheduler/pkg/optimistic"
)

const dateLayout = "2006-01-02"

type SqliteAvailabilityRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewSqliteAvailabilityRepo(db *sql.DB) *SqliteAvailabilityRepo {
	return &SqliteAvailabilityRepo{db: db, now: time.Now}
}

const availabilityColumns = `id, staff_id, day_of_week, date, start_minute, end_minute, is_available, version, updated_at`

// SaveAvailability inserts a when its version is zero and otherwise writes
// it only if the stored version still equals a.Version. A moved version
// yields domain.ErrVersionConflict together with the stored record.
func (r *SqliteAvailabilityRepo) SaveAvailability(ctx context.Context, a domain.Availability) (domain.Availability, error) {
	if err := a.Validate(); err != nil {
		return domain.Availability{}, err
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	var dow, date any
	if a.DayOfWeek != nil {
		dow = *a.DayOfWeek
	}
	if a.Date != nil {
		date = a.Date.Format(dateLayout)
	}
	updatedAt := r.now().UTC()

	var (
		res sql.Result
		err error
	)
	if a.Version == 0 {
		res, err = r.db.ExecContext(ctx,
			`INSERT INTO availability (`+availabilityColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?)
			 ON CONFLICT(id) DO NOTHING`,
			a.ID, a.StaffID, dow, date, a.StartMinute, a.EndMinute, a.IsAvailable, formatTS(updatedAt))
	} else {
		res, err = r.db.ExecContext(ctx,
			`UPDATE availability SET staff_id = ?, day_of_week = ?, date = ?, start_minute = ?, end_minute = ?,
			    is_available = ?, version = version + 1, updated_at = ?
			 WHERE id = ? AND version = ?`,
			a.StaffID, dow, date, a.StartMinute, a.EndMinute, a.IsAvailable, formatTS(updatedAt), a.ID, a.Version)
	}
	if err != nil {
		return domain.Availability{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.Availability{}, err
	}
	if n == 0 {
		current, err := r.getAvailability(ctx, a.ID)
		if err != nil {
			return domain.Availability{}, err
		}
		return current, fmt.Errorf("availability %s at version %d: %w", a.ID, a.Version, domain.ErrVersionConflict)
	}
	a.Version++
	a.UpdatedAt = updatedAt
	a.ETag = optimistic.VersionTag(a.Version)
	return a, nil
}

func (r *SqliteAvailabilityRepo) getAvailability(ctx context.Context, id string) (domain.Availability, error) {
	a, err := scanAvailability(r.db.QueryRowContext(ctx, `SELECT `+availabilityColumns+` FROM availability WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Availability{}, fmt.Errorf("availability %s: %w", id, domain.ErrNotFound)
	}
	return a, err
}

// ListAvailability returns records for the given staff, or all when staffIDs
// is empty.
func (r *SqliteAvailabilityRepo) ListAvailability(ctx context.Context, staffIDs []string) ([]domain.Availability, error) {
	query := `SELECT ` + availabilityColumns + ` FROM availability`
	var args []any
	if len(staffIDs) > 0 {
		query += ` WHERE staff_id IN (?` + strings.Repeat(", ?", len(staffIDs)-1) + `)`
		for _, id := range staffIDs {
			args = append(args, id)
		}
	}
	query += ` ORDER BY staff_id, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Availability
	for rows.Next() {
		a, err := scanAvailability(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAvailability(row scanner) (domain.Availability, error) {
	var (
		a     domain.Availability
		dow   sql.NullInt64
		date  sql.NullString
		upStr string
	)
	if err := row.Scan(&a.ID, &a.StaffID, &dow, &date, &a.StartMinute, &a.EndMinute, &a.IsAvailable, &a.Version, &upStr); err != nil {
		return a, err
	}
	if dow.Valid {
		d := int(dow.Int64)
		a.DayOfWeek = &d
	}
	if date.Valid && date.String != "" {
		t, err := time.Parse(dateLayout, date.String)
		if err != nil {
			return a, err
		}
		a.Date = &t
	}
	var err error
	if a.UpdatedAt, err = parseTS(upStr, "UTC"); err != nil {
		return a, err
	}
	a.ETag = optimistic.VersionTag(a.Version)
	return a, nil
}

type SqliteResolutionLog struct {
	db *sql.DB
}

func NewSqliteResolutionLog(db *sql.DB) *SqliteResolutionLog {
	return &SqliteResolutionLog{db: db}
}

func (l *SqliteResolutionLog) SubmitResolution(ctx context.Context, rec domain.ResolutionRecord) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO resolutions (conflict_id, conflict_type, resolution_option, staff_id, shift_ids, actor, resolved_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ConflictID, string(rec.ConflictType), string(rec.Option), rec.StaffID,
		strings.Join(rec.ShiftIDs, ","), rec.Actor, formatTS(rec.ResolvedAt))
	return err
}

// ListResolutions returns the log newest first.
func (l *SqliteResolutionLog) ListResolutions(ctx context.Context, limit int) ([]domain.ResolutionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT conflict_id, conflict_type, resolution_option, staff_id, shift_ids, actor, resolved_at
		   FROM resolutions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.ResolutionRecord
	for rows.Next() {
		var (
			rec             domain.ResolutionRecord
			ctype, opt, ids string
			resolvedAt      string
		)
		if err := rows.Scan(&rec.ConflictID, &ctype, &opt, &rec.StaffID, &ids, &rec.Actor, &resolvedAt); err != nil {
			return nil, err
		}
		rec.ConflictType = domain.ConflictType(ctype)
		rec.Option = domain.ResolutionOption(opt)
		if ids != "" {
			rec.ShiftIDs = strings.Split(ids, ",")
		}
		if rec.ResolvedAt, err = parseTS(resolvedAt, "UTC"); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
