package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"shift-scheduler/internal/domain"
)

type SqliteStaffRepo struct {
	db *sql.DB
}

func NewSqliteStaffRepo(db *sql.DB) *SqliteStaffRepo {
	return &SqliteStaffRepo{db: db}
}

func (r *SqliteStaffRepo) SaveStaff(ctx context.Context, m domain.StaffMember) error {
	skills := strings.Join(m.Skills, ",")
	res, err := r.db.ExecContext(ctx,
		`UPDATE staff SET name = ?, chat_id = ?, skills = ?, hourly_rate = ?, senior = ?, active = ? WHERE id = ?`,
		m.Name, m.ChatID, skills, m.HourlyRate.String(), m.Senior, m.Active, m.ID)
	if err != nil {
		return err
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		_, err = r.db.ExecContext(ctx,
			`INSERT INTO staff (id, name, chat_id, skills, hourly_rate, senior, active) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			m.ID, m.Name, m.ChatID, skills, m.HourlyRate.String(), m.Senior, m.Active)
		return err
	}
	return nil
}

func (r *SqliteStaffRepo) ListStaff(ctx context.Context) ([]domain.StaffMember, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, chat_id, skills, hourly_rate, senior, active FROM staff ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var staff []domain.StaffMember
	for rows.Next() {
		m, err := scanStaff(rows)
		if err != nil {
			return nil, err
		}
		staff = append(staff, m)
	}
	return staff, rows.Err()
}

func (r *SqliteStaffRepo) GetStaff(ctx context.Context, id string) (domain.StaffMember, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, name, chat_id, skills, hourly_rate, senior, active FROM staff WHERE id = ?`, id)
	m, err := scanStaff(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.StaffMember{}, fmt.Errorf("staff %s: %w", id, domain.ErrNotFound)
	}
	return m, err
}

func (r *SqliteStaffRepo) GetStaffByChatID(ctx context.Context, chatID int64) (domain.StaffMember, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, name, chat_id, skills, hourly_rate, senior, active FROM staff WHERE chat_id = ?`, chatID)
	m, err := scanStaff(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.StaffMember{}, fmt.Errorf("staff with chat %d: %w", chatID, domain.ErrNotFound)
	}
	return m, err
}

func scanStaff(sc scanner) (domain.StaffMember, error) {
	var (
		m            domain.StaffMember
		skills, rate string
	)
	if err := sc.Scan(&m.ID, &m.Name, &m.ChatID, &skills, &rate, &m.Senior, &m.Active); err != nil {
		return domain.StaffMember{}, err
	}
	if skills != "" {
		m.Skills = strings.Split(skills, ",")
	}
	d, err := decimal.NewFromString(rate)
	if err != nil {
		return domain.StaffMember{}, fmt.Errorf("staff %s hourly_rate: %w", m.ID, err)
	}
	m.HourlyRate = d
	return m, nil
}

type SqliteRoleRepo struct {
	db *sql.DB
}

func NewSqliteRoleRepo(db *sql.DB) *SqliteRoleRepo {
	return &SqliteRoleRepo{db: db}
}

func (r *SqliteRoleRepo) SaveRole(ctx context.Context, role domain.Role) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO roles (id, name, required_skill) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, required_skill = excluded.required_skill`,
		role.ID, role.Name, role.RequiredSkill)
	return err
}

func (r *SqliteRoleRepo) ListRoles(ctx context.Context) ([]domain.Role, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, required_skill FROM roles ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []domain.Role
	for rows.Next() {
		var role domain.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.RequiredSkill); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}
