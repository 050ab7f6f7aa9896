package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/ordvault/internal/common"
	"github.com/dmitrijs2005/ordvault/internal/dbx"
	"github.com/dmitrijs2005/ordvault/internal/encoder"
	"github.com/dmitrijs2005/ordvault/internal/models"
)

// SQLRepository stores inscriptions in the inscriptions table over a
// dbx.DBTX (*sql.DB or *sql.Tx). Queries are written with ? placeholders and
// rebound to $n for Postgres.
type SQLRepository struct {
	db       dbx.DBTX
	dollarBV bool
}

func NewPostgresRepository(db dbx.DBTX) *SQLRepository {
	return &SQLRepository{db: db, dollarBV: true}
}

func NewSQLiteRepository(db dbx.DBTX) *SQLRepository {
	return &SQLRepository{db: db}
}

const inscriptionColumns = `inscription_id, txid, order_id, content_hash, storage_mode, on_chain, network,
		created_at, size_bytes, mock, content_type, content, fee_total, fee_rate, attestation_sig, attestation_pubkey`

// Save inserts rec. A conflicting inscription id affects no rows and is
// reported as common.ErrAlreadyExists; the stored record is left as is.
func (r *SQLRepository) Save(ctx context.Context, rec *models.Inscription) error {
	if rec == nil || rec.InscriptionID == "" {
		return fmt.Errorf("%w: inscription id is required", common.ErrValidation)
	}

	var sig, pub sql.NullString
	if rec.Attestation != nil {
		sig = sql.NullString{String: rec.Attestation.Signature, Valid: true}
		pub = sql.NullString{String: rec.Attestation.PublicKey, Valid: true}
	}

	query := `
		INSERT INTO inscriptions (` + inscriptionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (inscription_id) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, r.rebind(query),
		rec.InscriptionID, nullString(rec.TxID), rec.OrderID, rec.ContentHash, string(rec.StorageMode), rec.OnChain,
		rec.Network, rec.CreatedAt.UTC(), rec.SizeBytes, rec.Mock, rec.ContentType, rec.Content,
		rec.Fees.Total, rec.Fees.Rate, sig, pub)
	if err != nil {
		return fmt.Errorf("%w: db error: %v", common.ErrStore, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected error: %v", common.ErrStore, err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return fmt.Errorf("%w: inscription %s", common.ErrAlreadyExists, rec.InscriptionID)
	default:
		return fmt.Errorf("%w: unexpected rows affected: %d", common.ErrStore, n)
	}
}

func (r *SQLRepository) Get(ctx context.Context, inscriptionID string) (*models.Inscription, error) {
	query := `SELECT ` + inscriptionColumns + ` FROM inscriptions WHERE inscription_id = ?`

	rec, err := scanInscription(r.db.QueryRowContext(ctx, r.rebind(query), inscriptionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: inscription %s", common.ErrNotFound, inscriptionID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to select inscription: %v", common.ErrStore, err)
	}
	return rec, nil
}

// List returns matching records, newest first.
func (r *SQLRepository) List(ctx context.Context, filter models.InscriptionFilter) ([]*models.Inscription, error) {
	var (
		where []string
		args  []any
	)
	if filter.Network != "" {
		where = append(where, "network = ?")
		args = append(args, filter.Network)
	}
	if filter.ContentHash != "" {
		where = append(where, "content_hash = ?")
		args = append(args, filter.ContentHash)
	}
	if filter.Mock != nil {
		where = append(where, "mock = ?")
		args = append(args, *filter.Mock)
	}
	if !filter.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, filter.Since.UTC())
	}

	query := `SELECT ` + inscriptionColumns + ` FROM inscriptions`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ` + strconv.Itoa(filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to select inscriptions: %v", common.ErrStore, err)
	}
	defer rows.Close()

	var result []*models.Inscription
	for rows.Next() {
		rec, err := scanInscription(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrStore, err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStore, err)
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInscription(row rowScanner) (*models.Inscription, error) {
	var (
		rec      models.Inscription
		txid     sql.NullString
		mode     string
		sig, pub sql.NullString
	)

	err := row.Scan(&rec.InscriptionID, &txid, &rec.OrderID, &rec.ContentHash, &mode, &rec.OnChain, &rec.Network,
		&rec.CreatedAt, &rec.SizeBytes, &rec.Mock, &rec.ContentType, &rec.Content,
		&rec.Fees.Total, &rec.Fees.Rate, &sig, &pub)
	if err != nil {
		return nil, err
	}

	rec.StorageMode = encoder.Mode(mode)
	if txid.Valid {
		rec.TxID = &txid.String
	}
	if sig.Valid {
		rec.Attestation = &models.Attestation{Signature: sig.String, PublicKey: pub.String}
	}
	return &rec, nil
}

func (r *SQLRepository) rebind(query string) string {
	return dbx.Rebind(query, r.dollarBV)
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
