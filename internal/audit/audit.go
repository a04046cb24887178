// internal/audit/audit.go
//
// Sign-in attempt audit.
//
// Context
//   When database.dsn is set, every completed submission writes one row:
//   the email, the outcome kind, the endpoint's HTTP status, the rejection
//   reason, and client hints from requestinfo.  The password is never part
//   of an Attempt, so it can never reach the table.
//
// Workflow
//   •  database.Migrate(ctx, db, audit.Migrations) on boot.
//   •  store.Record(ctx, audit.FromOutcome(email, out, info)).
//   •  store.Recent(ctx, email, n) for operators and tests.
//
//------------------------------------------------------------------------------

package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/yanizio/signin/internal/requestinfo"
	"github.com/yanizio/signin/internal/signin"
)

// Migrations creates the audit table.  Safe to run on every boot.
var Migrations = []string{
	`CREATE TABLE IF NOT EXISTS signin_attempt (
	id          BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
	email       VARCHAR(320)    NOT NULL,
	outcome     VARCHAR(32)     NOT NULL,
	status      SMALLINT        NOT NULL DEFAULT 0,
	reason      VARCHAR(512)    NOT NULL DEFAULT '',
	client_ip   VARCHAR(45)     NOT NULL DEFAULT '',
	browser     VARCHAR(64)     NOT NULL DEFAULT '',
	country     CHAR(2)         NOT NULL DEFAULT '',
	created_at  DATETIME(6)     NOT NULL,
	KEY idx_signin_attempt_email (email, created_at)
)`,
}

// Column widths, in characters.
const (
	maxEmail   = 320
	maxReason  = 512
	maxBrowser = 64
)

// Attempt is one audit row.
type Attempt struct {
	Email     string    `db:"email"`
	Outcome   string    `db:"outcome"`
	Status    int       `db:"status"`
	Reason    string    `db:"reason"`
	ClientIP  string    `db:"client_ip"`
	Browser   string    `db:"browser"`
	Country   string    `db:"country"`
	CreatedAt time.Time `db:"created_at"`
}

// Recorder is what handlers depend on; *Store satisfies it.
type Recorder interface {
	Record(ctx context.Context, a Attempt) error
}

// FromOutcome builds an Attempt.  info may be nil.
func FromOutcome(email string, out signin.Outcome, info *requestinfo.RequestInfo) Attempt {
	a := Attempt{
		Email:     truncate(email, maxEmail),
		Outcome:   out.Kind.String(),
		Status:    out.Status,
		Reason:    truncate(out.Reason, maxReason),
		CreatedAt: time.Now().UTC(),
	}
	if info != nil {
		if info.Geo.IP != nil {
			a.ClientIP = info.Geo.IP.String()
		}
		a.Browser = truncate(info.UA.Browser, maxBrowser)
		a.Country = info.Geo.CountryISO
	}
	return a
}

// Store writes attempts through sqlx.
type Store struct{ db *sqlx.DB }

func New(db *sqlx.DB) *Store { return &Store{db: db} }

const insertAttempt = `INSERT INTO signin_attempt
	(email, outcome, status, reason, client_ip, browser, country, created_at)
	VALUES (:email, :outcome, :status, :reason, :client_ip, :browser, :country, :created_at)`

// Record inserts a.
func (s *Store) Record(ctx context.Context, a Attempt) error {
	if _, err := s.db.NamedExecContext(ctx, insertAttempt, a); err != nil {
		return fmt.Errorf("audit insert: %w", err)
	}
	return nil
}

const selectRecent = `SELECT email, outcome, status, reason, client_ip, browser, country, created_at
	FROM signin_attempt WHERE email = ? ORDER BY created_at DESC LIMIT ?`

// Recent returns up to limit attempts for email, newest first.
func (s *Store) Recent(ctx context.Context, email string, limit int) ([]Attempt, error) {
	var out []Attempt
	if err := s.db.SelectContext(ctx, &out, selectRecent, email, limit); err != nil {
		return nil, fmt.Errorf("audit select: %w", err)
	}
	return out, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
