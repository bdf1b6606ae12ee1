/*
Package sqlite provides a SQLite-backed implementation of every
persistence boundary.

PURPOSE:
  One Store owns the database handle and exposes a facade per contract
  (directory, requests, accounts, schedule, assignments). In production
  the same patterns apply to PostgreSQL - only minor SQL dialect
  differences.

KEY TABLES:
  requesters        Directory records
  requests          Leave requests with the reviewer chain as JSON
  accounts          One balance row per (requester, year)
  schedule_entries  Append-only booking facts
  assignments       Substitute assignments

ATOMICITY:
  AppendIfFree inserts a batch of schedule entries inside one
  transaction; the UNIQUE(instructor_id, day, period) index turns a
  double-booking into a constraint violation that rolls the whole batch
  back. Account rows are serialized by the ledger's per-account locks,
  so the read-modify-write contract holds without SELECT ... FOR UPDATE.

WAL MODE:
  The database is opened with WAL so readers do not block the writer.

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - store/memory: in-memory implementation of the same contracts
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/campus/leave-engine/leave"
	"github.com/campus/leave-engine/ledger"
	"github.com/campus/leave-engine/roster"
)

// Store owns the database handle shared by the facades.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database. Use ":memory:" for an in-memory
// database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return store, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Facade accessors. Each facade implements one storage contract.

func (s *Store) Directory() *Directory     { return &Directory{db: s.db} }
func (s *Store) Requests() *Requests       { return &Requests{db: s.db} }
func (s *Store) Accounts() *Accounts       { return &Accounts{db: s.db} }
func (s *Store) Schedule() *Schedule       { return &Schedule{db: s.db} }
func (s *Store) Assignments() *Assignments { return &Assignments{db: s.db} }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS requesters (
		id               TEXT PRIMARY KEY,
		name             TEXT NOT NULL,
		role             TEXT NOT NULL,
		department       TEXT NOT NULL,
		section          TEXT NOT NULL,
		subjects         TEXT NOT NULL DEFAULT '[]',
		experience_years INTEGER NOT NULL DEFAULT 0,
		active           INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS requests (
		id           TEXT PRIMARY KEY,
		requester_id TEXT NOT NULL,
		kind         TEXT NOT NULL,
		date_from    TEXT NOT NULL,
		date_to      TEXT NOT NULL,
		day_count    INTEGER NOT NULL,
		reason       TEXT NOT NULL DEFAULT '',
		status       TEXT NOT NULL,
		priority     INTEGER NOT NULL DEFAULT 0,
		chain        TEXT NOT NULL DEFAULT '[]',
		created_at   TEXT NOT NULL,
		updated_at   TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_requests_requester ON requests(requester_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_requests_status_dates ON requests(status, date_from, date_to);

	CREATE TABLE IF NOT EXISTS accounts (
		requester_id TEXT NOT NULL,
		year         INTEGER NOT NULL,
		total        TEXT NOT NULL,
		used         TEXT NOT NULL,
		pending      TEXT NOT NULL,
		PRIMARY KEY (requester_id, year)
	);

	CREATE TABLE IF NOT EXISTS schedule_entries (
		instructor_id TEXT NOT NULL,
		day           TEXT NOT NULL,
		period        INTEGER NOT NULL,
		section       TEXT NOT NULL DEFAULT '',
		subject       TEXT NOT NULL DEFAULT ''
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_slot
		ON schedule_entries(instructor_id, day, period);

	CREATE TABLE IF NOT EXISTS assignments (
		id            TEXT PRIMARY KEY,
		request_id    TEXT NOT NULL,
		original_id   TEXT NOT NULL,
		substitute_id TEXT NOT NULL DEFAULT '',
		subjects      TEXT NOT NULL DEFAULT '[]',
		section       TEXT NOT NULL DEFAULT '',
		date_from     TEXT NOT NULL,
		date_to       TEXT NOT NULL,
		first_period  INTEGER NOT NULL DEFAULT 0,
		last_period   INTEGER NOT NULL DEFAULT 0,
		status        TEXT NOT NULL,
		created_at    TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_assignments_request ON assignments(request_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

// =============================================================================
// DIRECTORY
// =============================================================================

// Directory persists requester records.
type Directory struct {
	db *sql.DB
}

func (d *Directory) Save(ctx context.Context, r leave.Requester) error {
	subjects, err := json.Marshal(r.Subjects)
	if err != nil {
		return err
	}
	_, err = d.db.ExecContext(ctx, `
		INSERT INTO requesters (id, name, role, department, section, subjects, experience_years, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, role = excluded.role,
			department = excluded.department, section = excluded.section,
			subjects = excluded.subjects,
			experience_years = excluded.experience_years,
			active = excluded.active`,
		string(r.ID), r.Name, string(r.Role), string(r.Department), string(r.Section),
		string(subjects), r.ExperienceYears, boolToInt(r.Active))
	return err
}

func (d *Directory) Get(ctx context.Context, id leave.RequesterID) (leave.Requester, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT id, name, role, department, section, subjects, experience_years, active
		FROM requesters WHERE id = ?`, string(id))
	r, err := scanRequester(row)
	if errors.Is(err, sql.ErrNoRows) {
		return leave.Requester{}, fmt.Errorf("%w: requester %s", leave.ErrNotFound, id)
	}
	return r, err
}

func (d *Directory) Instructors(ctx context.Context) ([]leave.Requester, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, name, role, department, section, subjects, experience_years, active
		FROM requesters WHERE role = ? ORDER BY id`, string(leave.RoleInstructor))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRequesters(rows)
}

func (d *Directory) List(ctx context.Context) ([]leave.Requester, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, name, role, department, section, subjects, experience_years, active
		FROM requesters ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRequesters(rows)
}

func scanRequester(row rowScanner) (leave.Requester, error) {
	var r leave.Requester
	var subjects string
	var active int
	err := row.Scan(&r.ID, &r.Name, &r.Role, &r.Department, &r.Section, &subjects, &r.ExperienceYears, &active)
	if err != nil {
		return leave.Requester{}, err
	}
	if err := json.Unmarshal([]byte(subjects), &r.Subjects); err != nil {
		return leave.Requester{}, err
	}
	r.Active = active != 0
	return r, nil
}

func collectRequesters(rows *sql.Rows) ([]leave.Requester, error) {
	var out []leave.Requester
	for rows.Next() {
		r, err := scanRequester(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// =============================================================================
// REQUESTS
// =============================================================================

// Requests persists leave requests. The reviewer chain is stored as a
// JSON column and always replaced whole on save.
type Requests struct {
	db *sql.DB
}

func (q *Requests) Save(ctx context.Context, r leave.LeaveRequest) error {
	chain, err := json.Marshal(r.Chain)
	if err != nil {
		return err
	}
	_, err = q.db.ExecContext(ctx, `
		INSERT INTO requests (id, requester_id, kind, date_from, date_to, day_count,
			reason, status, priority, chain, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status, chain = excluded.chain,
			updated_at = excluded.updated_at`,
		string(r.ID), string(r.RequesterID), string(r.Kind),
		r.Dates.From.String(), r.Dates.To.String(), r.DayCount,
		r.Reason, string(r.Status), int(r.Priority), string(chain),
		r.CreatedAt.Format(time.RFC3339), r.UpdatedAt.Format(time.RFC3339))
	return err
}

func (q *Requests) Get(ctx context.Context, id leave.RequestID) (leave.LeaveRequest, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, requester_id, kind, date_from, date_to, day_count,
			reason, status, priority, chain, created_at, updated_at
		FROM requests WHERE id = ?`, string(id))
	r, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return leave.LeaveRequest{}, fmt.Errorf("%w: request %s", leave.ErrNotFound, id)
	}
	return r, err
}

func (q *Requests) ByRequester(ctx context.Context, id leave.RequesterID) ([]leave.LeaveRequest, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, requester_id, kind, date_from, date_to, day_count,
			reason, status, priority, chain, created_at, updated_at
		FROM requests WHERE requester_id = ? ORDER BY created_at DESC, id`, string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRequests(rows)
}

// PendingFor filters on the current chain step in Go. The chain lives
// in a JSON column and the current step is whichever entry is
// undecided first.
func (q *Requests) PendingFor(ctx context.Context, reviewerID leave.RequesterID) ([]leave.LeaveRequest, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, requester_id, kind, date_from, date_to, day_count,
			reason, status, priority, chain, created_at, updated_at
		FROM requests WHERE status IN (?, ?) ORDER BY id`,
		string(leave.StatusPending), string(leave.StatusIntermediateApproved))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	all, err := collectRequests(rows)
	if err != nil {
		return nil, err
	}
	var out []leave.LeaveRequest
	for _, r := range all {
		if _, step := r.CurrentStep(); step.ReviewerID == reviewerID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (q *Requests) ActiveInRange(ctx context.Context, dates leave.DateRange) ([]leave.LeaveRequest, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, requester_id, kind, date_from, date_to, day_count,
			reason, status, priority, chain, created_at, updated_at
		FROM requests
		WHERE status IN (?, ?, ?) AND date_from <= ? AND date_to >= ?`,
		string(leave.StatusPending), string(leave.StatusIntermediateApproved),
		string(leave.StatusApproved),
		dates.To.String(), dates.From.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRequests(rows)
}

func scanRequest(row rowScanner) (leave.LeaveRequest, error) {
	var r leave.LeaveRequest
	var from, to, chain, createdAt, updatedAt string
	var priority int
	err := row.Scan(&r.ID, &r.RequesterID, &r.Kind, &from, &to, &r.DayCount,
		&r.Reason, &r.Status, &priority, &chain, &createdAt, &updatedAt)
	if err != nil {
		return leave.LeaveRequest{}, err
	}
	if r.Dates.From, err = leave.ParseDate(from); err != nil {
		return leave.LeaveRequest{}, err
	}
	if r.Dates.To, err = leave.ParseDate(to); err != nil {
		return leave.LeaveRequest{}, err
	}
	if err := json.Unmarshal([]byte(chain), &r.Chain); err != nil {
		return leave.LeaveRequest{}, err
	}
	r.Priority = leave.Priority(priority)
	if r.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return leave.LeaveRequest{}, err
	}
	if r.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return leave.LeaveRequest{}, err
	}
	return r, nil
}

func collectRequests(rows *sql.Rows) ([]leave.LeaveRequest, error) {
	var out []leave.LeaveRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// =============================================================================
// ACCOUNTS
// =============================================================================

// Accounts persists balance rows. Decimal columns are stored as TEXT
// so no precision is lost to floating point.
type Accounts struct {
	db *sql.DB
}

func (a *Accounts) Get(ctx context.Context, id leave.RequesterID, year int) (ledger.Account, error) {
	row := a.db.QueryRowContext(ctx, `
		SELECT requester_id, year, total, used, pending
		FROM accounts WHERE requester_id = ? AND year = ?`, string(id), year)
	acct, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Account{}, fmt.Errorf("%w: account %s/%d", leave.ErrNotFound, id, year)
	}
	return acct, err
}

func (a *Accounts) Put(ctx context.Context, acct ledger.Account) error {
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO accounts (requester_id, year, total, used, pending)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(requester_id, year) DO UPDATE SET
			total = excluded.total, used = excluded.used, pending = excluded.pending`,
		string(acct.RequesterID), acct.Year,
		acct.Total.String(), acct.Used.String(), acct.Pending.String())
	return err
}

func (a *Accounts) ByRequester(ctx context.Context, id leave.RequesterID) ([]ledger.Account, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT requester_id, year, total, used, pending
		FROM accounts WHERE requester_id = ? ORDER BY year`, string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.Account
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, acct)
	}
	return out, rows.Err()
}

func scanAccount(row rowScanner) (ledger.Account, error) {
	var a ledger.Account
	var total, used, pending string
	if err := row.Scan(&a.RequesterID, &a.Year, &total, &used, &pending); err != nil {
		return ledger.Account{}, err
	}
	var err error
	if a.Total, err = decimal.NewFromString(total); err != nil {
		return ledger.Account{}, err
	}
	if a.Used, err = decimal.NewFromString(used); err != nil {
		return ledger.Account{}, err
	}
	if a.Pending, err = decimal.NewFromString(pending); err != nil {
		return ledger.Account{}, err
	}
	return a, nil
}

// =============================================================================
// SCHEDULE
// =============================================================================

// Schedule persists booking facts. Days are stored as YYYY-MM-DD
// strings, which sort and compare lexicographically in date order.
type Schedule struct {
	db *sql.DB
}

func (s *Schedule) ByInstructor(ctx context.Context, id leave.RequesterID, r leave.DateRange) ([]roster.ScheduleEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT instructor_id, day, period, section, subject
		FROM schedule_entries
		WHERE instructor_id = ? AND day >= ? AND day <= ?
		ORDER BY day, period`,
		string(id), r.From.String(), r.To.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows)
}

func (s *Schedule) InRange(ctx context.Context, r leave.DateRange) ([]roster.ScheduleEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT instructor_id, day, period, section, subject
		FROM schedule_entries
		WHERE day >= ? AND day <= ?
		ORDER BY instructor_id, day, period`,
		r.From.String(), r.To.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows)
}

// AppendIfFree inserts the batch in one transaction. The unique slot
// index turns any collision into a rollback of the whole batch.
func (s *Schedule) AppendIfFree(ctx context.Context, entries []roster.ScheduleEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	for _, e := range entries {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO schedule_entries (instructor_id, day, period, section, subject)
			VALUES (?, ?, ?, ?, ?)`,
			string(e.InstructorID), e.Day.String(), e.Period, string(e.Section), string(e.Subject))
		if err != nil {
			tx.Rollback()
			var serr sqlite3.Error
			if errors.As(err, &serr) && serr.Code == sqlite3.ErrConstraint {
				return &leave.ScheduleConflictError{
					InstructorID: e.InstructorID,
					Day:          e.Day,
					Period:       e.Period,
				}
			}
			return err
		}
	}
	return tx.Commit()
}

func collectEntries(rows *sql.Rows) ([]roster.ScheduleEntry, error) {
	var out []roster.ScheduleEntry
	for rows.Next() {
		var e roster.ScheduleEntry
		var day string
		if err := rows.Scan(&e.InstructorID, &day, &e.Period, &e.Section, &e.Subject); err != nil {
			return nil, err
		}
		var err error
		if e.Day, err = leave.ParseDate(day); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// =============================================================================
// ASSIGNMENTS
// =============================================================================

// Assignments persists substitute assignments.
type Assignments struct {
	db *sql.DB
}

func (s *Assignments) Save(ctx context.Context, a roster.Assignment) error {
	subjects, err := json.Marshal(a.Subjects)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO assignments (id, request_id, original_id, substitute_id, subjects,
			section, date_from, date_to, first_period, last_period, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			substitute_id = excluded.substitute_id, status = excluded.status`,
		a.ID, string(a.RequestID), string(a.OriginalID), string(a.SubstituteID),
		string(subjects), string(a.Section),
		a.Dates.From.String(), a.Dates.To.String(),
		a.FirstPeriod, a.LastPeriod, string(a.Status),
		a.CreatedAt.Format(time.RFC3339))
	return err
}

func (s *Assignments) ByRequest(ctx context.Context, id leave.RequestID) (roster.Assignment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, request_id, original_id, substitute_id, subjects,
			section, date_from, date_to, first_period, last_period, status, created_at
		FROM assignments WHERE request_id = ?`, string(id))
	a, err := scanAssignment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return roster.Assignment{}, fmt.Errorf("%w: assignment for request %s", leave.ErrNotFound, id)
	}
	return a, err
}

func (s *Assignments) Escalated(ctx context.Context) ([]roster.Assignment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, request_id, original_id, substitute_id, subjects,
			section, date_from, date_to, first_period, last_period, status, created_at
		FROM assignments WHERE status = ? ORDER BY id`,
		string(roster.AssignmentEscalated))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []roster.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAssignment(row rowScanner) (roster.Assignment, error) {
	var a roster.Assignment
	var subjects, from, to, createdAt string
	err := row.Scan(&a.ID, &a.RequestID, &a.OriginalID, &a.SubstituteID, &subjects,
		&a.Section, &from, &to, &a.FirstPeriod, &a.LastPeriod, &a.Status, &createdAt)
	if err != nil {
		return roster.Assignment{}, err
	}
	if err := json.Unmarshal([]byte(subjects), &a.Subjects); err != nil {
		return roster.Assignment{}, err
	}
	if a.Dates.From, err = leave.ParseDate(from); err != nil {
		return roster.Assignment{}, err
	}
	if a.Dates.To, err = leave.ParseDate(to); err != nil {
		return roster.Assignment{}, err
	}
	if a.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return roster.Assignment{}, err
	}
	return a, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
