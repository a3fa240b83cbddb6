package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"shift-scheduler/internal/domain"
	"shift-scheduler/pkg/optimistic"
)

// Fixed-width UTC timestamps keep lexical order equal to time order.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

const shiftColumns = `id, staff_id, role_id, start_at, end_at, tz, type, status, hourly_rate, notes, template_id, version, updated_at`

type SqliteShiftRepo struct {
	db         *sql.DB
	maxRetries int
	logger     *log.Logger
	now        func() time.Time
}

func NewSqliteShiftRepo(db *sql.DB, maxRetries int, logger *log.Logger) *SqliteShiftRepo {
	if logger == nil {
		logger = log.Default()
	}
	return &SqliteShiftRepo{db: db, maxRetries: maxRetries, logger: logger, now: time.Now}
}

func formatTS(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

func parseTS(v, tz string) (time.Time, error) {
	t, err := time.Parse(tsLayout, v)
	if err != nil {
		return time.Time{}, err
	}
	if loc, err := time.LoadLocation(tz); err == nil {
		return t.In(loc), nil
	}
	return t, nil
}

func (r *SqliteShiftRepo) ListShifts(ctx context.Context, p domain.Period) ([]domain.Shift, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+shiftColumns+` FROM shifts WHERE start_at >= ? AND start_at < ? ORDER BY start_at, id`,
		formatTS(p.From),
		formatTS(p.To),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var shifts []domain.Shift
	for rows.Next() {
		s, err := scanShift(rows)
		if err != nil {
			return nil, err
		}
		shifts = append(shifts, s)
	}
	return shifts, rows.Err()
}

func (r *SqliteShiftRepo) GetShift(ctx context.Context, id string) (domain.Shift, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+shiftColumns+` FROM shifts WHERE id = ?`, id)
	s, err := scanShift(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Shift{}, fmt.Errorf("shift %s: %w", id, domain.ErrNotFound)
	}
	return s, err
}

func (r *SqliteShiftRepo) CreateShift(ctx context.Context, s domain.Shift) (domain.Shift, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Status == "" {
		s.Status = domain.StatusDraft
	}
	if err := s.Validate(); err != nil {
		return domain.Shift{}, err
	}
	s.Version = 1
	s.UpdatedAt = r.now().UTC()
	s.ETag = optimistic.VersionTag(s.Version)

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO shifts (`+shiftColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.StaffID, s.RoleID, formatTS(s.Start), formatTS(s.End), s.Start.Location().String(),
		string(s.Type), string(s.Status), rateValue(s.HourlyRate), s.Notes, s.TemplateID,
		s.Version, formatTS(s.UpdatedAt),
	)
	if err != nil {
		return domain.Shift{}, err
	}
	return s, nil
}

// SaveShift writes s only if the stored version still equals s.Version.
// A moved version yields domain.ErrVersionConflict with the stored shift.
func (r *SqliteShiftRepo) SaveShift(ctx context.Context, s domain.Shift) (domain.Shift, domain.Shift, error) {
	if err := s.Validate(); err != nil {
		return domain.Shift{}, domain.Shift{}, err
	}
	updatedAt := r.now().UTC()
	res, err := r.db.ExecContext(ctx,
		`UPDATE shifts SET staff_id = ?, role_id = ?, start_at = ?, end_at = ?, tz = ?, type = ?, status = ?,
		        hourly_rate = ?, notes = ?, template_id = ?, version = version + 1, updated_at = ?
		  WHERE id = ? AND version = ?`,
		s.StaffID, s.RoleID, formatTS(s.Start), formatTS(s.End), s.Start.Location().String(),
		string(s.Type), string(s.Status), rateValue(s.HourlyRate), s.Notes, s.TemplateID,
		formatTS(updatedAt), s.ID, s.Version,
	)
	if err != nil {
		return domain.Shift{}, domain.Shift{}, err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		current, err := r.GetShift(ctx, s.ID)
		if err != nil {
			return domain.Shift{}, domain.Shift{}, err
		}
		return domain.Shift{}, current, fmt.Errorf("shift %s at version %d: %w", s.ID, s.Version, domain.ErrVersionConflict)
	}
	s.Version++
	s.UpdatedAt = updatedAt
	s.ETag = optimistic.VersionTag(s.Version)
	return s, domain.Shift{}, nil
}

// UpdateShift runs fn through the optimistic controller so a concurrent
// writer costs a re-read and a re-apply instead of a lost update.
func (r *SqliteShiftRepo) UpdateShift(ctx context.Context, id string, fn func(domain.Shift) (domain.Shift, error)) (domain.Shift, error) {
	current, err := r.GetShift(ctx, id)
	if err != nil {
		return domain.Shift{}, err
	}
	ctrl := optimistic.NewController[domain.Shift](shiftTransport{r}, r.maxRetries, r.logger)
	saved, err := ctrl.Update(ctx, id, ShiftEntity(current), func(s domain.Shift) (domain.Shift, error) {
		next, err := fn(s)
		if err != nil {
			return domain.Shift{}, err
		}
		next.ID = s.ID
		next.VersionInfo = s.VersionInfo
		return next, nil
	})
	if err != nil {
		return domain.Shift{}, err
	}
	return ShiftFromEntity(saved), nil
}

func (r *SqliteShiftRepo) DeleteShift(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM shifts WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("shift %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// ShiftEntity wraps a shift in the optimistic envelope.
func ShiftEntity(s domain.Shift) optimistic.Entity[domain.Shift] {
	return optimistic.Entity[domain.Shift]{
		ID:        s.ID,
		Version:   s.Version,
		UpdatedAt: s.UpdatedAt,
		ETag:      s.ETag,
		Data:      s,
	}
}

// ShiftFromEntity copies the envelope's version info back onto the shift.
func ShiftFromEntity(e optimistic.Entity[domain.Shift]) domain.Shift {
	s := e.Data
	s.ID = e.ID
	s.VersionInfo = domain.VersionInfo{Version: e.Version, UpdatedAt: e.UpdatedAt, ETag: e.ETag}
	return s
}

type shiftTransport struct {
	repo *SqliteShiftRepo
}

func (t shiftTransport) Fetch(ctx context.Context, key string) (optimistic.Entity[domain.Shift], error) {
	s, err := t.repo.GetShift(ctx, key)
	if err != nil {
		return optimistic.Entity[domain.Shift]{}, err
	}
	return ShiftEntity(s), nil
}

func (t shiftTransport) Put(ctx context.Context, key string, e optimistic.Entity[domain.Shift]) (optimistic.Entity[domain.Shift], error) {
	s := ShiftFromEntity(e)
	saved, current, err := t.repo.SaveShift(ctx, s)
	if errors.Is(err, domain.ErrVersionConflict) {
		remote := ShiftEntity(current)
		return optimistic.Entity[domain.Shift]{}, &optimistic.VersionConflictError[domain.Shift]{Key: key, Remote: &remote}
	}
	if err != nil {
		return optimistic.Entity[domain.Shift]{}, err
	}
	return ShiftEntity(saved), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanShift(sc scanner) (domain.Shift, error) {
	var (
		s                           domain.Shift
		startStr, endStr, tz, upStr string
		typ, status                 string
		rate                        sql.NullString
	)
	if err := sc.Scan(&s.ID, &s.StaffID, &s.RoleID, &startStr, &endStr, &tz, &typ, &status,
		&rate, &s.Notes, &s.TemplateID, &s.Version, &upStr); err != nil {
		return domain.Shift{}, err
	}
	var err error
	if s.Start, err = parseTS(startStr, tz); err != nil {
		return domain.Shift{}, err
	}
	if s.End, err = parseTS(endStr, tz); err != nil {
		return domain.Shift{}, err
	}
	if s.UpdatedAt, err = parseTS(upStr, "UTC"); err != nil {
		return domain.Shift{}, err
	}
	s.Type = domain.ShiftType(typ)
	s.Status = domain.ShiftStatus(status)
	if rate.Valid && rate.String != "" {
		d, err := decimal.NewFromString(rate.String)
		if err != nil {
			return domain.Shift{}, fmt.Errorf("shift %s hourly_rate: %w", s.ID, err)
		}
		s.HourlyRate = &d
	}
	s.ETag = optimistic.VersionTag(s.Version)
	return s, nil
}

func rateValue(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}
