package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/cropguard/internal/core/domain"
)

type ScanRepository struct {
	db *sql.DB
}

func NewScanRepository(db *sql.DB) *ScanRepository {
	return &ScanRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *ScanRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101701)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS scans (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	image_url TEXT NOT NULL,
	image_asset_id TEXT NOT NULL DEFAULT '',
	crop_type TEXT NOT NULL,
	disease_detected TEXT NOT NULL,
	confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	severity TEXT NOT NULL,
	symptoms JSONB NOT NULL DEFAULT '[]'::jsonb,
	treatment JSONB NOT NULL DEFAULT '[]'::jsonb,
	prevention JSONB NOT NULL DEFAULT '[]'::jsonb,
	organic_treatment JSONB NOT NULL DEFAULT '[]'::jsonb,
	cost_estimate TEXT NOT NULL DEFAULT '',
	scientific_name TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_scans_owner_created ON scans(owner_id, created_at DESC, id DESC);
CREATE INDEX IF NOT EXISTS idx_scans_owner_crop ON scans(owner_id, crop_type);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

const scanColumns = `id, owner_id, image_url, image_asset_id, crop_type, disease_detected, confidence, severity,
symptoms, treatment, prevention, organic_treatment, cost_estimate, scientific_name, created_at`

func (r *ScanRepository) Create(ctx context.Context, scan *domain.ScanRecord) error {
	lists, err := marshalLists(scan)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO scans (`+scanColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
`,
		scan.ID, scan.OwnerID, scan.Image.URL, scan.Image.AssetID, scan.CropType, scan.Disease, scan.Confidence,
		string(scan.Severity), lists[0], lists[1], lists[2], lists[3], scan.CostEstimate, scan.ScientificName, scan.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert scan: %w", err)
	}
	return nil
}

func (r *ScanRepository) Get(ctx context.Context, ownerID, scanID string) (*domain.ScanRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+scanColumns+`
FROM scans
WHERE owner_id = $1 AND id = $2
`, ownerID, scanID)

	scan, err := scanScan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrScanNotFound, "get scan", fmt.Errorf("id=%s", scanID))
		}
		return nil, fmt.Errorf("get scan: %w", err)
	}
	return &scan, nil
}

func (r *ScanRepository) List(ctx context.Context, ownerID string, filter domain.ScanFilter) ([]domain.ScanRecord, int, error) {
	filter = filter.Normalize()
	where, args := buildScanWhere(ownerID, filter)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scans WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count scans: %w", err)
	}

	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(`
SELECT %s
FROM scans
WHERE %s
ORDER BY created_at DESC, id DESC
LIMIT $%d OFFSET $%d
`, scanColumns, where, len(args)-1, len(args))

	scans, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return scans, total, nil
}

func (r *ScanRepository) ListAll(ctx context.Context, ownerID string) ([]domain.ScanRecord, error) {
	return r.query(ctx, `
SELECT `+scanColumns+`
FROM scans
WHERE owner_id = $1
ORDER BY created_at DESC, id DESC
`, ownerID)
}

func (r *ScanRepository) Delete(ctx context.Context, ownerID, scanID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM scans WHERE owner_id = $1 AND id = $2`, ownerID, scanID)
	if err != nil {
		return fmt.Errorf("delete scan: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete scan rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrScanNotFound, "delete scan", fmt.Errorf("id=%s", scanID))
	}
	return nil
}

func (r *ScanRepository) query(ctx context.Context, query string, args ...any) ([]domain.ScanRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ScanRecord, 0)
	for rows.Next() {
		scan, err := scanScan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, scan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scans: %w", err)
	}
	return out, nil
}

func buildScanWhere(ownerID string, filter domain.ScanFilter) (string, []any) {
	clauses := []string{"owner_id = $1"}
	args := []any{ownerID}

	if filter.CropType != "" {
		args = append(args, filter.CropType)
		clauses = append(clauses, fmt.Sprintf("LOWER(crop_type) = LOWER($%d)", len(args)))
	}
	if filter.Severity != "" {
		args = append(args, filter.Severity)
		clauses = append(clauses, fmt.Sprintf("LOWER(severity) = LOWER($%d)", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+escapeLike(filter.Search)+"%")
		clauses = append(clauses, fmt.Sprintf(`(disease_detected ILIKE $%[1]d ESCAPE '\' OR crop_type ILIKE $%[1]d ESCAPE '\')`, len(args)))
	}
	return strings.Join(clauses, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScan(row rowScanner) (domain.ScanRecord, error) {
	var scan domain.ScanRecord
	var severity string
	var symptoms, treatment, prevention, organic []byte

	err := row.Scan(
		&scan.ID, &scan.OwnerID, &scan.Image.URL, &scan.Image.AssetID, &scan.CropType, &scan.Disease,
		&scan.Confidence, &severity, &symptoms, &treatment, &prevention, &organic,
		&scan.CostEstimate, &scan.ScientificName, &scan.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ScanRecord{}, err
		}
		return domain.ScanRecord{}, fmt.Errorf("scan row: %w", err)
	}
	scan.Severity = domain.Severity(severity)

	for _, item := range []struct {
		raw  []byte
		dest *[]string
		name string
	}{
		{symptoms, &scan.Symptoms, "symptoms"},
		{treatment, &scan.Treatment, "treatment"},
		{prevention, &scan.Prevention, "prevention"},
		{organic, &scan.OrganicTreatment, "organic_treatment"},
	} {
		if err := unmarshalList(item.raw, item.dest); err != nil {
			return domain.ScanRecord{}, fmt.Errorf("unmarshal %s: %w", item.name, err)
		}
	}
	return scan, nil
}

func marshalLists(scan *domain.ScanRecord) ([4][]byte, error) {
	var out [4][]byte
	for i, list := range [][]string{scan.Symptoms, scan.Treatment, scan.Prevention, scan.OrganicTreatment} {
		if list == nil {
			list = []string{}
		}
		raw, err := json.Marshal(list)
		if err != nil {
			return out, fmt.Errorf("marshal scan lists: %w", err)
		}
		out[i] = raw
	}
	return out, nil
}

func unmarshalList(raw []byte, dest *[]string) error {
	*dest = []string{}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dest)
}
