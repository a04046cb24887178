package audit

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yanizio/signin/internal/requestinfo"
	"github.com/yanizio/signin/internal/signin"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	return New(sqlx.NewDb(raw, "mysql")), mock
}

func TestFromOutcome(t *testing.T) {
	info := &requestinfo.RequestInfo{
		UA:  requestinfo.UA{Browser: "Firefox"},
		Geo: requestinfo.Geo{IP: net.ParseIP("203.0.113.5"), CountryISO: "DE"},
	}
	a := FromOutcome("a@b.co", signin.Outcome{Kind: signin.OutcomeRejected, Status: 401, Reason: "bad creds"}, info)

	assert.Equal(t, "a@b.co", a.Email)
	assert.Equal(t, "rejected", a.Outcome)
	assert.Equal(t, 401, a.Status)
	assert.Equal(t, "bad creds", a.Reason)
	assert.Equal(t, "203.0.113.5", a.ClientIP)
	assert.Equal(t, "Firefox", a.Browser)
	assert.Equal(t, "DE", a.Country)
	assert.WithinDuration(t, time.Now(), a.CreatedAt, time.Minute)

	bare := FromOutcome("x@y.co", signin.Outcome{Kind: signin.OutcomeSucceeded, Reason: strings.Repeat("é", 600)}, nil)
	assert.Empty(t, bare.ClientIP)
	assert.Len(t, []rune(bare.Reason), maxReason)
}

func TestFromOutcome_TruncatesEmail(t *testing.T) {
	long := strings.Repeat("ü", 400) + "@example.com"
	a := FromOutcome(long, signin.Outcome{Kind: signin.OutcomeInvalid}, nil)
	assert.Len(t, []rune(a.Email), maxEmail)
	assert.True(t, strings.HasPrefix(long, a.Email))
}

func TestRecord(t *testing.T) {
	s, mock := newMock(t)
	a := Attempt{Email: "a@b.co", Outcome: "succeeded", Status: 200, CreatedAt: time.Now()}

	mock.ExpectExec("INSERT INTO signin_attempt").
		WithArgs("a@b.co", "succeeded", 200, "", "", "", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, s.Record(context.Background(), a))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecord_Error(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec("INSERT INTO signin_attempt").WillReturnError(errors.New("read-only"))

	err := s.Record(context.Background(), Attempt{Email: "a@b.co"})
	require.ErrorContains(t, err, "audit insert")
}

func TestRecent(t *testing.T) {
	s, mock := newMock(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"email", "outcome", "status", "reason", "client_ip", "browser", "country", "created_at"}).
		AddRow("a@b.co", "rejected", 401, "nope", "203.0.113.5", "Chrome", "US", now).
		AddRow("a@b.co", "invalid", 0, "", "", "", "", now.Add(-time.Minute))
	mock.ExpectQuery("SELECT (.+) FROM signin_attempt WHERE email = \\?").
		WithArgs("a@b.co", 5).
		WillReturnRows(rows)

	got, err := s.Recent(context.Background(), "a@b.co", 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "rejected", got[0].Outcome)
	assert.Equal(t, 401, got[0].Status)
	assert.Equal(t, "US", got[0].Country)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSchemaHasNoPasswordColumn(t *testing.T) {
	for _, m := range Migrations {
		assert.NotContains(t, strings.ToLower(m), "password")
	}
}
