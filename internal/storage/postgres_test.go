package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/ordvault/internal/common"
	"github.com/dmitrijs2005/ordvault/internal/models"
)

func newRepoWithMock(t *testing.T) (*SQLRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

const insertQuery = `(?s)^\s*INSERT\s+INTO\s+inscriptions\b.*VALUES\s*\(\$1,.*\$16\)\s*ON\s+CONFLICT\s*\(inscription_id\)\s*DO\s+NOTHING\s*$`

func saveArgs(rec *models.Inscription) []driver.Value {
	return []driver.Value{
		rec.InscriptionID, sqlmock.AnyArg(), rec.OrderID, rec.ContentHash, string(rec.StorageMode), rec.OnChain,
		rec.Network, sqlmock.AnyArg(), rec.SizeBytes, rec.Mock, rec.ContentType, rec.Content,
		rec.Fees.Total, rec.Fees.Rate, sqlmock.AnyArg(), sqlmock.AnyArg(),
	}
}

func TestPostgresSave_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rec := newRecord("i1", time.Now())
	mock.ExpectExec(insertQuery).
		WithArgs(saveArgs(rec)...).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Save(context.Background(), rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresSave_AlreadyExists(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rec := newRecord("i1", time.Now())
	mock.ExpectExec(insertQuery).
		WithArgs(saveArgs(rec)...).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Save(context.Background(), rec)
	if !errors.Is(err, common.ErrAlreadyExists) {
		t.Fatalf("want ErrAlreadyExists, got %v", err)
	}
}

func TestPostgresSave_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rec := newRecord("i1", time.Now())
	mock.ExpectExec(insertQuery).
		WithArgs(saveArgs(rec)...).
		WillReturnError(errors.New("db down"))

	err := repo.Save(context.Background(), rec)
	if !errors.Is(err, common.ErrStore) || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}

func TestPostgresSave_RowsAffectedErr(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rec := newRecord("i1", time.Now())
	mock.ExpectExec(insertQuery).
		WithArgs(saveArgs(rec)...).
		WillReturnResult(sqlmock.NewErrorResult(errors.New("rows-err")))

	err := repo.Save(context.Background(), rec)
	if !errors.Is(err, common.ErrStore) {
		t.Fatalf("expected store error, got %v", err)
	}
}

var selectColumns = []string{
	"inscription_id", "txid", "order_id", "content_hash", "storage_mode", "on_chain", "network",
	"created_at", "size_bytes", "mock", "content_type", "content", "fee_total", "fee_rate",
	"attestation_sig", "attestation_pubkey",
}

func TestPostgresGet_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(selectColumns).
		AddRow("i1", nil, "", "h", "hash-only", []byte("ord:x"), "signet",
			created, 120, true, "text/plain", []byte("payload"), int64(0), "", "3045", "02ab")

	mock.ExpectQuery(`(?s)^SELECT\s+inscription_id,.*FROM\s+inscriptions\s+WHERE\s+inscription_id\s*=\s*\$1$`).
		WithArgs("i1").
		WillReturnRows(rows)

	got, err := repo.Get(context.Background(), "i1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.TxID != nil || !got.Mock || got.StorageMode != "hash-only" || !got.CreatedAt.Equal(created) {
		t.Fatalf("unexpected record: %+v", got)
	}
	if got.Attestation == nil || got.Attestation.PublicKey != "02ab" {
		t.Fatalf("attestation not scanned: %+v", got.Attestation)
	}
}

func TestPostgresGet_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT\s+inscription_id,.*FROM\s+inscriptions`).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "nope")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestPostgresList_FilterAndLimit(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mockOnly := false
	rows := sqlmock.NewRows(selectColumns).
		AddRow("i2", "tx2", "o2", "h2", "full", []byte("ordhi"), "mainnet",
			time.Now(), 2, false, "text/plain", []byte("hi"), int64(5000), "medium", nil, nil)

	mock.ExpectQuery(`(?s)FROM\s+inscriptions\s+WHERE\s+network\s*=\s*\$1\s+AND\s+mock\s*=\s*\$2\s+ORDER\s+BY\s+created_at\s+DESC\s+LIMIT\s+10$`).
		WithArgs("mainnet", false).
		WillReturnRows(rows)

	got, err := repo.List(context.Background(), models.InscriptionFilter{Network: "mainnet", Mock: &mockOnly, Limit: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].TxID == nil || *got[0].TxID != "tx2" || got[0].Attestation != nil {
		t.Fatalf("unexpected result: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRebind(t *testing.T) {
	pg := NewPostgresRepository(nil)
	if got := pg.rebind("a = ? AND b = ?"); got != "a = $1 AND b = $2" {
		t.Fatalf("unexpected rebind: %s", got)
	}
	lite := NewSQLiteRepository(nil)
	if got := lite.rebind("a = ?"); got != "a = ?" {
		t.Fatalf("sqlite must keep ? placeholders, got %s", got)
	}
}
