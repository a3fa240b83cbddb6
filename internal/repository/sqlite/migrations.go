package sqlite

import (
	"database/sql"
)

const createShiftsTable = `
CREATE TABLE IF NOT EXISTS shifts (
    id TEXT PRIMARY KEY,
    staff_id TEXT NOT NULL,
    role_id TEXT NOT NULL DEFAULT '',
    start_at TEXT NOT NULL,
    end_at TEXT NOT NULL,
    tz TEXT NOT NULL DEFAULT 'UTC',
    type TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'draft',
    hourly_rate TEXT,
    notes TEXT NOT NULL DEFAULT '',
    template_id TEXT NOT NULL DEFAULT '',
    version INTEGER NOT NULL DEFAULT 1,
    updated_at TEXT NOT NULL
);
`

const createShiftsIndex = `
CREATE INDEX IF NOT EXISTS idx_shifts_staff_start ON shifts (staff_id, start_at);
`

const createStaffTable = `
CREATE TABLE IF NOT EXISTS staff (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    chat_id INTEGER NOT NULL DEFAULT 0,
    skills TEXT NOT NULL DEFAULT '',
    hourly_rate TEXT NOT NULL DEFAULT '0',
    senior BOOLEAN NOT NULL DEFAULT 0,
    active BOOLEAN NOT NULL DEFAULT 1
);
`

const createRolesTable = `
CREATE TABLE IF NOT EXISTS roles (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    required_skill TEXT NOT NULL DEFAULT ''
);
`

const createAvailabilityTable = `
CREATE TABLE IF NOT EXISTS availability (
    id TEXT PRIMARY KEY,
    staff_id TEXT NOT NULL,
    day_of_week INTEGER,
    date TEXT,
    start_minute INTEGER NOT NULL,
    end_minute INTEGER NOT NULL,
    is_available BOOLEAN NOT NULL DEFAULT 1,
    version INTEGER NOT NULL DEFAULT 1,
    updated_at TEXT NOT NULL
);
`

const createResolutionsTable = `
CREATE TABLE IF NOT EXISTS resolutions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    conflict_id TEXT NOT NULL,
    conflict_type TEXT NOT NULL,
    resolution_option TEXT NOT NULL,
    staff_id TEXT NOT NULL,
    shift_ids TEXT NOT NULL,
    actor TEXT NOT NULL DEFAULT '',
    resolved_at TEXT NOT NULL
);
`

func Migrate(db *sql.DB) error {
	for _, stmt := range []string{
		createShiftsTable,
		createShiftsIndex,
		createStaffTable,
		createRolesTable,
		createAvailabilityTable,
		createResolutionsTable,
	} {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
