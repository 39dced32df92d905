package redemption

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	paywall "github.com/lalitcap23/pay-per-api"
	_ "modernc.org/sqlite"
)

// SQLite is a RedemptionStore persisted with modernc.org/sqlite.
// The reference column is the primary key, so a reference can be claimed
// once even across processes sharing the file.
type SQLite struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLite opens (or creates) the database at path.
// Parent directories are created if needed.
func NewSQLite(path string) (*SQLite, error) {
	logger := slog.Default().With("component", "redemption")

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// Serialize writers; claims rely on a single-statement insert.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &SQLite{db: db, logger: logger}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("redemption store initialized", "path", path)
	return s, nil
}

func (s *SQLite) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS redemptions (
			reference   TEXT PRIMARY KEY,
			resource    TEXT NOT NULL,
			token       TEXT NOT NULL UNIQUE,
			payer       TEXT NOT NULL DEFAULT '',
			amount      TEXT NOT NULL DEFAULT '0',
			asset       TEXT NOT NULL DEFAULT '',
			registered  INTEGER NOT NULL DEFAULT 0,
			created_at  TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_redemptions_resource ON redemptions(resource);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Claim inserts r unless its reference is already present.
// Amounts are stored as decimal text so the full uint64 range round-trips.
func (s *SQLite) Claim(ctx context.Context, r paywall.Redemption) (paywall.Redemption, bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO redemptions (reference, resource, token, payer, amount, asset, registered, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(reference) DO NOTHING
	`, r.Reference, r.Resource, r.Token, r.Payer, strconv.FormatUint(r.Amount, 10), r.Asset, boolToInt(r.Registered),
		r.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return paywall.Redemption{}, false, fmt.Errorf("inserting redemption: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return paywall.Redemption{}, false, fmt.Errorf("reading rows affected: %w", err)
	}
	if n == 1 {
		return r, true, nil
	}

	existing, err := s.scanOne(ctx, `SELECT reference, resource, token, payer, amount, asset, registered, created_at
		FROM redemptions WHERE reference = ?`, r.Reference)
	if err != nil {
		return paywall.Redemption{}, false, err
	}
	return existing, false, nil
}

// FindByToken looks up the redemption that minted token
func (s *SQLite) FindByToken(ctx context.Context, token string) (paywall.Redemption, bool, error) {
	rec, err := s.scanOne(ctx, `SELECT reference, resource, token, payer, amount, asset, registered, created_at
		FROM redemptions WHERE token = ?`, token)
	if errors.Is(err, sql.ErrNoRows) {
		return paywall.Redemption{}, false, nil
	}
	if err != nil {
		return paywall.Redemption{}, false, err
	}
	return rec, true, nil
}

// MarkRegistered flips the registered flag; only the first call returns true
func (s *SQLite) MarkRegistered(ctx context.Context, token string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE redemptions SET registered = 1 WHERE token = ? AND registered = 0`, token)
	if err != nil {
		return false, fmt.Errorf("updating redemption: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading rows affected: %w", err)
	}
	return n == 1, nil
}

// Close closes the database
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) scanOne(ctx context.Context, query string, arg string) (paywall.Redemption, error) {
	var (
		rec        paywall.Redemption
		amount     string
		registered int
		createdAt  string
	)
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&rec.Reference, &rec.Resource, &rec.Token, &rec.Payer,
		&amount, &rec.Asset, &registered, &createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return paywall.Redemption{}, err
		}
		return paywall.Redemption{}, fmt.Errorf("querying redemption: %w", err)
	}
	n, err := strconv.ParseUint(amount, 10, 64)
	if err != nil {
		return paywall.Redemption{}, fmt.Errorf("parsing amount of %s: %w", rec.Reference, err)
	}
	rec.Amount = n
	rec.Registered = registered != 0
	if t, perr := time.Parse(time.RFC3339Nano, createdAt); perr == nil {
		rec.CreatedAt = t
	} else {
		s.logger.Warn("unparseable created_at", "reference", rec.Reference, "value", createdAt)
	}
	return rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ paywall.RedemptionStore = (*SQLite)(nil)
