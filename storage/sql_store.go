package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"dvf-analyzer/models"
	"dvf-analyzer/utils"
)

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const insertBatchSize = 50

// SQLStore caches raw transactions in PostgreSQL or SQLite.
type SQLStore struct {
	db     *sql.DB
	driver string
	logger *utils.Logger
}

// OpenSQLStore opens a connection, waits for the database to answer, runs
// schema migrations and returns a ready-to-use SQLStore. PostgreSQL is pinged
// several times since it usually runs in a container that may still be
// starting.
func OpenSQLStore(ctx context.Context, driver, dsn string, logger *utils.Logger) (*SQLStore, error) {
	retry := &utils.RetryConfig{MaxAttempts: 1, Logger: logger}

	switch driver {
	case DriverPostgres:
		retry.MaxAttempts = 10
		retry.BaseDelay = 500 * time.Millisecond
	case DriverSQLite:
		if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
				return nil, fmt.Errorf("%s: create db dir: %w", driver, err)
			}
		}
	default:
		return nil, fmt.Errorf("storage: unsupported driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", driver, err)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}

	if err := retry.Do(ctx, driver+" ping", db.PingContext); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", driver, err)
	}

	s := &SQLStore{db: db, driver: driver, logger: logger}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: migrate: %w", driver, err)
	}
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS fetches (
			postal_code     VARCHAR(10)  PRIMARY KEY,
			total_available INTEGER      NOT NULL DEFAULT 0,
			last_updated    VARCHAR(32)  NOT NULL DEFAULT '',
			fetched_at      BIGINT       NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			postal_code               VARCHAR(10)      NOT NULL,
			seq                       INTEGER          NOT NULL,
			date_mutation             VARCHAR(32)      NOT NULL DEFAULT '',
			valeur_fonciere           DOUBLE PRECISION NULL,
			surface_relle_bati        DOUBLE PRECISION NULL,
			nombre_pieces_principales INTEGER          NULL,
			voie                      TEXT             NOT NULL DEFAULT '',
			commune                   TEXT             NOT NULL DEFAULT '',
			nature_mutation           TEXT             NOT NULL DEFAULT '',
			PRIMARY KEY (postal_code, seq)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(postal_code, date_mutation)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SaveRaw replaces everything cached for the set's postal code.
func (s *SQLStore) SaveRaw(ctx context.Context, set *models.TransactionSet) error {
	if set.PostalCode == "" {
		return errors.New("storage: save: postal code is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", s.driver, err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, q := range []string{
		"DELETE FROM transactions WHERE postal_code = ?",
		"DELETE FROM fetches WHERE postal_code = ?",
	} {
		if _, err := tx.ExecContext(ctx, s.rebind(q), set.PostalCode); err != nil {
			return fmt.Errorf("%s: clear %s: %w", s.driver, set.PostalCode, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		s.rebind("INSERT INTO fetches (postal_code, total_available, last_updated, fetched_at) VALUES (?, ?, ?, ?)"),
		set.PostalCode, set.TotalAvailable, set.LastUpdated, time.Now().Unix(),
	); err != nil {
		return fmt.Errorf("%s: insert fetch: %w", s.driver, err)
	}

	for i := 0; i < len(set.Transactions); i += insertBatchSize {
		end := min(i+insertBatchSize, len(set.Transactions))
		if err := s.insertBatch(ctx, tx, set.PostalCode, i, set.Transactions[i:end]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", s.driver, err)
	}
	s.logger.Debug("[store] cached %d transactions for %s", len(set.Transactions), set.PostalCode)
	return nil
}

func (s *SQLStore) insertBatch(ctx context.Context, tx *sql.Tx, postalCode string, offset int, batch []models.RawTransaction) error {
	const cols = 9
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]any, 0, len(batch)*cols)

	for idx, t := range batch {
		valueStrings = append(valueStrings, "(?,?,?,?,?,?,?,?,?)")
		valueArgs = append(valueArgs,
			postalCode, offset+idx, t.Date,
			nullFloat(t.Value), nullFloat(t.Area), nullInt(t.RoomCount),
			t.Street, t.Locality, t.Nature)
	}

	query := fmt.Sprintf(`
		INSERT INTO transactions (postal_code, seq, date_mutation, valeur_fonciere,
			surface_relle_bati, nombre_pieces_principales, voie, commune, nature_mutation)
		VALUES %s`, strings.Join(valueStrings, ","))

	if _, err := tx.ExecContext(ctx, s.rebind(query), valueArgs...); err != nil {
		return fmt.Errorf("%s: insert batch: %w", s.driver, err)
	}
	return nil
}

// Fetch returns the cached set of a postal code in the order it was saved,
// or ErrNotCached.
func (s *SQLStore) Fetch(ctx context.Context, postalCode string) (*models.TransactionSet, error) {
	set := &models.TransactionSet{PostalCode: postalCode}

	var fetchedAt int64
	err := s.db.QueryRowContext(ctx,
		s.rebind("SELECT total_available, last_updated, fetched_at FROM fetches WHERE postal_code = ?"),
		postalCode,
	).Scan(&set.TotalAvailable, &set.LastUpdated, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotCached
	}
	if err != nil {
		return nil, fmt.Errorf("%s: fetch %s: %w", s.driver, postalCode, err)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT date_mutation, valeur_fonciere, surface_relle_bati, nombre_pieces_principales,
			voie, commune, nature_mutation
		FROM transactions
		WHERE postal_code = ?
		ORDER BY seq`), postalCode)
	if err != nil {
		return nil, fmt.Errorf("%s: fetch %s: %w", s.driver, postalCode, err)
	}
	defer rows.Close()

	set.Transactions = []models.RawTransaction{}
	for rows.Next() {
		var (
			t           models.RawTransaction
			value, area sql.NullFloat64
			rooms       sql.NullInt64
		)
		if err := rows.Scan(&t.Date, &value, &area, &rooms, &t.Street, &t.Locality, &t.Nature); err != nil {
			return nil, fmt.Errorf("%s: scan row: %w", s.driver, err)
		}
		if value.Valid {
			t.Value = models.Float(value.Float64)
		}
		if area.Valid {
			t.Area = models.Float(area.Float64)
		}
		if rooms.Valid {
			t.RoomCount = models.Int(int(rooms.Int64))
		}
		t.PostalCode = postalCode
		set.Transactions = append(set.Transactions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: fetch %s: %w", s.driver, postalCode, err)
	}

	s.logger.Debug("[store] loaded %d cached transactions for %s (fetched %s)",
		len(set.Transactions), postalCode, time.Unix(fetchedAt, 0).UTC().Format(time.RFC3339))
	return set, nil
}

// PostalCodes lists the cached postal codes.
func (s *SQLStore) PostalCodes(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT postal_code FROM fetches ORDER BY postal_code")
	if err != nil {
		return nil, fmt.Errorf("%s: list postal codes: %w", s.driver, err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("%s: scan row: %w", s.driver, err)
		}
		codes = append(codes, c)
	}
	return codes, rows.Err()
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
