/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  One database file holds all persistence: the blood ledger, the organ
  ledger, and the user directory. In production the same patterns apply
  to PostgreSQL - only minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  ledger.Store   (via Blood()):  blood ledger persistence
  organ.Store    (via Organs()): organ ledger persistence
  identity.Store (directly):     user directory

EXACT SUMS:
  Quantities are stored as decimal strings and summed in Go with
  decimal.Decimal rather than with SQL SUM(), which would coerce to
  float. Balance arithmetic stays exact.

ORDERING:
  Ledger queries return entries most recent first. Timestamps are stored
  as RFC3339Nano so creation order is preserved at sub-second resolution.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  multiple readers don't block and crash recovery is cheap.

USAGE:
  store, err := sqlite.New("./data/bloodbank.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  bloodSvc := blood.NewService(store.Blood(), store)

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/redcell/inventory-engine/identity"
	"github.com/redcell/inventory-engine/ledger"
	"github.com/redcell/inventory-engine/organ"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection only. The driver gives every pooled connection to
	// ":memory:" its own empty database, so a second connection would see
	// no schema; file databases don't need a pool either at this scale.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Users (participant directory)
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		role TEXT NOT NULL,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		phone TEXT,
		address TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_users_role ON users(role);

	-- Blood ledger
	CREATE TABLE IF NOT EXISTS blood_transactions (
		id TEXT PRIMARY KEY,
		direction TEXT NOT NULL CHECK (direction IN ('in', 'out')),
		blood_group TEXT NOT NULL,
		quantity TEXT NOT NULL,
		organisation TEXT NOT NULL,
		donor TEXT,
		hospital TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Balance computation (hot path): scoped sums per direction+group
	CREATE INDEX IF NOT EXISTS idx_blood_org_direction_group
		ON blood_transactions(organisation, direction, blood_group);
	CREATE INDEX IF NOT EXISTS idx_blood_created_at
		ON blood_transactions(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_blood_donor
		ON blood_transactions(donor) WHERE donor IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_blood_hospital
		ON blood_transactions(hospital) WHERE hospital IS NOT NULL;

	-- Organ ledger (mutable: supports update and delete)
	CREATE TABLE IF NOT EXISTS organ_transactions (
		id TEXT PRIMARY KEY,
		direction TEXT NOT NULL CHECK (direction IN ('in', 'out')),
		organ_type TEXT NOT NULL,
		quantity TEXT NOT NULL,
		organisation TEXT,
		donor TEXT,
		hospital TEXT,
		blood_group TEXT NOT NULL,
		patient_name TEXT NOT NULL,
		age INTEGER NOT NULL,
		email TEXT NOT NULL,
		phone TEXT NOT NULL,
		medical_document_url TEXT,
		identity_proof_url TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_organ_org_direction_type
		ON organ_transactions(organisation, direction, organ_type);
	CREATE INDEX IF NOT EXISTS idx_organ_created_at
		ON organ_transactions(created_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func parseQuantity(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// =============================================================================
// FILTER -> WHERE clause
// =============================================================================

// ledgerWhere builds the WHERE clause for a ledger filter. subtypeCol is
// the table's subtype column name (blood_group / organ_type).
func ledgerWhere(f ledger.Filter, subtypeCol string) (string, []any) {
	var conds []string
	var args []any

	if f.Organisation != "" {
		conds = append(conds, "organisation = ?")
		args = append(args, f.Organisation)
	}
	if f.Direction != "" {
		conds = append(conds, "direction = ?")
		args = append(args, string(f.Direction))
	}
	if f.Subtype != "" {
		conds = append(conds, subtypeCol+" = ?")
		args = append(args, f.Subtype)
	}
	if f.Donor != "" {
		conds = append(conds, "donor = ?")
		args = append(args, f.Donor)
	}
	if f.Hospital != "" {
		conds = append(conds, "hospital = ?")
		args = append(args, f.Hospital)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func limitClause(opts ledger.QueryOptions) string {
	if opts.Limit > 0 {
		return fmt.Sprintf(" LIMIT %d", opts.Limit)
	}
	return ""
}

// sumQuantities loads matching quantity strings and sums them exactly.
func (s *Store) sumQuantities(ctx context.Context, table, subtypeCol string, f ledger.Filter) (decimal.Decimal, error) {
	where, args := ledgerWhere(f, subtypeCol)
	rows, err := s.db.QueryContext(ctx, "SELECT quantity FROM "+table+where, args...)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum %s: %w", table, err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var q string
		if err := rows.Scan(&q); err != nil {
			return decimal.Zero, err
		}
		total = total.Add(parseQuantity(q))
	}
	return total, rows.Err()
}

// =============================================================================
// BLOOD LEDGER (ledger.Store interface)
// =============================================================================

// Blood returns the blood ledger view of the store.
func (s *Store) Blood() ledger.Store {
	return &bloodStore{s: s}
}

type bloodStore struct {
	s *Store
}

func (b *bloodStore) Append(ctx context.Context, e ledger.Entry) (ledger.Entry, error) {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	ts := now()
	e.CreatedAt = parseTime(ts)
	e.UpdatedAt = e.CreatedAt

	_, err := b.s.db.ExecContext(ctx, `
		INSERT INTO blood_transactions
		(id, direction, blood_group, quantity, organisation, donor, hospital, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Direction), e.Subtype, e.Quantity.String(), e.Organisation,
		nullString(e.Donor), nullString(e.Hospital), ts, ts,
	)
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("failed to append blood transaction: %w", err)
	}
	return e, nil
}

func (b *bloodStore) Query(ctx context.Context, f ledger.Filter, opts ledger.QueryOptions) ([]ledger.Entry, error) {
	b.s.mu.RLock()
	defer b.s.mu.RUnlock()

	where, args := ledgerWhere(f, "blood_group")
	query := `
		SELECT id, direction, blood_group, quantity, organisation, donor, hospital, created_at, updated_at
		FROM blood_transactions` + where + `
		ORDER BY created_at DESC` + limitClause(opts)

	rows, err := b.s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query blood transactions: %w", err)
	}
	defer rows.Close()

	var entries []ledger.Entry
	for rows.Next() {
		var (
			e               ledger.Entry
			direction       string
			quantity        string
			donor, hospital sql.NullString
			created, updated string
		)
		if err := rows.Scan(&e.ID, &direction, &e.Subtype, &quantity, &e.Organisation,
			&donor, &hospital, &created, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan blood transaction: %w", err)
		}
		e.Direction = ledger.Direction(direction)
		e.Quantity = parseQuantity(quantity)
		e.Donor = donor.String
		e.Hospital = hospital.String
		e.CreatedAt = parseTime(created)
		e.UpdatedAt = parseTime(updated)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (b *bloodStore) SumQuantity(ctx context.Context, f ledger.Filter) (decimal.Decimal, error) {
	b.s.mu.RLock()
	defer b.s.mu.RUnlock()
	return b.s.sumQuantities(ctx, "blood_transactions", "blood_group", f)
}

func (b *bloodStore) Distinct(ctx context.Context, field ledger.RefField, f ledger.Filter) ([]string, error) {
	b.s.mu.RLock()
	defer b.s.mu.RUnlock()

	col, ok := refColumn(field)
	if !ok {
		return nil, fmt.Errorf("unknown reference field %q", field)
	}

	where, args := ledgerWhere(f, "blood_group")
	query := "SELECT DISTINCT " + col + " FROM blood_transactions" + where
	if where == "" {
		query += " WHERE " + col + " IS NOT NULL"
	} else {
		query += " AND " + col + " IS NOT NULL"
	}

	rows, err := b.s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query distinct %s: %w", col, err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		if v != "" {
			values = append(values, v)
		}
	}
	return values, rows.Err()
}

func refColumn(field ledger.RefField) (string, bool) {
	switch field {
	case ledger.RefDonor:
		return "donor", true
	case ledger.RefHospital:
		return "hospital", true
	case ledger.RefOrganisation:
		return "organisation", true
	}
	return "", false
}

// =============================================================================
// ORGAN LEDGER (organ.Store interface)
// =============================================================================

// Organs returns the organ ledger view of the store.
func (s *Store) Organs() organ.Store {
	return &organStore{s: s}
}

type organStore struct {
	s *Store
}

const organColumns = `id, direction, organ_type, quantity, organisation, donor, hospital,
	blood_group, patient_name, age, email, phone, medical_document_url, identity_proof_url,
	created_at, updated_at`

func (o *organStore) AppendOrgan(ctx context.Context, e organ.Entry) (organ.Entry, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	ts := now()
	e.CreatedAt = parseTime(ts)
	e.UpdatedAt = e.CreatedAt

	_, err := o.s.db.ExecContext(ctx, `
		INSERT INTO organ_transactions
		(id, direction, organ_type, quantity, organisation, donor, hospital,
		 blood_group, patient_name, age, email, phone, medical_document_url, identity_proof_url,
		 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Direction), e.Subtype, e.Quantity.String(), nullString(e.Organisation),
		nullString(e.Donor), nullString(e.Hospital),
		e.BloodGroup, e.PatientName, e.Age, e.Email, e.Phone,
		nullString(e.MedicalDocumentURL), nullString(e.IdentityProofURL),
		ts, ts,
	)
	if err != nil {
		return organ.Entry{}, fmt.Errorf("failed to append organ transaction: %w", err)
	}
	return e, nil
}

func (o *organStore) ListOrgans(ctx context.Context, f ledger.Filter, opts ledger.QueryOptions) ([]organ.Entry, error) {
	o.s.mu.RLock()
	defer o.s.mu.RUnlock()

	where, args := ledgerWhere(f, "organ_type")
	query := "SELECT " + organColumns + " FROM organ_transactions" + where +
		" ORDER BY created_at DESC" + limitClause(opts)

	rows, err := o.s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query organ transactions: %w", err)
	}
	defer rows.Close()

	var entries []organ.Entry
	for rows.Next() {
		e, err := scanOrgan(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (o *organStore) GetOrgan(ctx context.Context, id string) (*organ.Entry, error) {
	o.s.mu.RLock()
	defer o.s.mu.RUnlock()

	rows, err := o.s.db.QueryContext(ctx,
		"SELECT "+organColumns+" FROM organ_transactions WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("failed to get organ transaction: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	e, err := scanOrgan(rows)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (o *organStore) UpdateOrgan(ctx context.Context, e organ.Entry) (organ.Entry, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()

	ts := now()
	e.UpdatedAt = parseTime(ts)

	res, err := o.s.db.ExecContext(ctx, `
		UPDATE organ_transactions SET
			direction = ?, organ_type = ?, quantity = ?, organisation = ?,
			donor = ?, hospital = ?, blood_group = ?, patient_name = ?,
			age = ?, email = ?, phone = ?, medical_document_url = ?,
			identity_proof_url = ?, updated_at = ?
		WHERE id = ?`,
		string(e.Direction), e.Subtype, e.Quantity.String(), nullString(e.Organisation),
		nullString(e.Donor), nullString(e.Hospital), e.BloodGroup, e.PatientName,
		e.Age, e.Email, e.Phone, nullString(e.MedicalDocumentURL),
		nullString(e.IdentityProofURL), ts, e.ID,
	)
	if err != nil {
		return organ.Entry{}, fmt.Errorf("failed to update organ transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return organ.Entry{}, &ledger.NotFoundError{Kind: "organ record", Ref: e.ID}
	}
	return e, nil
}

func (o *organStore) DeleteOrgan(ctx context.Context, id string) error {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()

	res, err := o.s.db.ExecContext(ctx, "DELETE FROM organ_transactions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete organ transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &ledger.NotFoundError{Kind: "organ record", Ref: id}
	}
	return nil
}

func (o *organStore) SumQuantity(ctx context.Context, f ledger.Filter) (decimal.Decimal, error) {
	o.s.mu.RLock()
	defer o.s.mu.RUnlock()
	return o.s.sumQuantities(ctx, "organ_transactions", "organ_type", f)
}

func (o *organStore) OrganTypes(ctx context.Context, f ledger.Filter) ([]string, error) {
	o.s.mu.RLock()
	defer o.s.mu.RUnlock()

	where, args := ledgerWhere(f, "organ_type")
	rows, err := o.s.db.QueryContext(ctx,
		"SELECT DISTINCT organ_type FROM organ_transactions"+where+" ORDER BY organ_type", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query organ types: %w", err)
	}
	defer rows.Close()

	var types []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, rows.Err()
}

func scanOrgan(rows *sql.Rows) (organ.Entry, error) {
	var (
		e                organ.Entry
		direction        string
		quantity         string
		organisation     sql.NullString
		donor, hospital  sql.NullString
		medDoc, idProof  sql.NullString
		created, updated string
	)
	err := rows.Scan(&e.ID, &direction, &e.Subtype, &quantity, &organisation,
		&donor, &hospital, &e.BloodGroup, &e.PatientName, &e.Age, &e.Email, &e.Phone,
		&medDoc, &idProof, &created, &updated)
	if err != nil {
		return organ.Entry{}, fmt.Errorf("failed to scan organ transaction: %w", err)
	}
	e.Direction = ledger.Direction(direction)
	e.Quantity = parseQuantity(quantity)
	e.Organisation = organisation.String
	e.Donor = donor.String
	e.Hospital = hospital.String
	e.MedicalDocumentURL = medDoc.String
	e.IdentityProofURL = idProof.String
	e.CreatedAt = parseTime(created)
	e.UpdatedAt = parseTime(updated)
	return e, nil
}

// =============================================================================
// USER DIRECTORY (identity.Store interface)
// =============================================================================

func (s *Store) CreateUser(ctx context.Context, u identity.User) (identity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	ts := now()
	u.CreatedAt = parseTime(ts)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, role, name, email, password_hash, phone, address, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, string(u.Role), u.Name, u.Email, u.PasswordHash,
		nullString(u.Phone), nullString(u.Address), ts,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return identity.User{}, &ledger.ValidationError{Field: "email", Message: "is already registered"}
		}
		return identity.User{}, fmt.Errorf("failed to create user: %w", err)
	}
	return u, nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*identity.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryUser(ctx, "email = ?", email)
}

func (s *Store) UserByID(ctx context.Context, id string) (*identity.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryUser(ctx, "id = ?", id)
}

func (s *Store) queryUser(ctx context.Context, cond string, arg any) (*identity.User, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, role, name, email, password_hash, phone, address, created_at FROM users WHERE "+cond, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	u, err := scanUser(rows)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) UsersByIDs(ctx context.Context, ids []string) ([]identity.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, role, name, email, password_hash, phone, address, created_at FROM users WHERE id IN ("+placeholders+")",
		args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []identity.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) ListUsers(ctx context.Context, role identity.Role) ([]identity.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT id, role, name, email, password_hash, phone, address, created_at FROM users"
	var args []any
	if role != "" {
		query += " WHERE role = ?"
		args = append(args, string(role))
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []identity.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func scanUser(rows *sql.Rows) (identity.User, error) {
	var (
		u              identity.User
		role           string
		phone, address sql.NullString
		created        string
	)
	if err := rows.Scan(&u.ID, &role, &u.Name, &u.Email, &u.PasswordHash, &phone, &address, &created); err != nil {
		return identity.User{}, fmt.Errorf("failed to scan user: %w", err)
	}
	u.Role = identity.Role(role)
	u.Phone = phone.String
	u.Address = address.String
	u.CreatedAt = parseTime(created)
	return u, nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
