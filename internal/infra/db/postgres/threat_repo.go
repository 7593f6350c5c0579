package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"github.com/bryanwahyu/brandsentry/internal/domain/threats"
)

type ThreatRepository struct{ db *sql.DB }

func NewThreatRepository(db *sql.DB) *ThreatRepository { return &ThreatRepository{db: db} }

func (r *ThreatRepository) ExistsByDomain(ctx context.Context, brandID, domain string) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM threats WHERE brand_id=$1 AND domain=$2);`, brandID, domain).Scan(&ok)
	return ok, err
}

func (r *ThreatRepository) ExistsByURL(ctx context.Context, brandID, url string) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM threats WHERE brand_id=$1 AND url=$2);`, brandID, url).Scan(&ok)
	return ok, err
}

// InsertMany writes all threats in one transaction, skipping dedup collisions.
func (r *ThreatRepository) InsertMany(ctx context.Context, ts []*threats.Threat) (n int, err error) {
	if len(ts) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO threats
(id, brand_id, scan_id, type, severity, status, url, domain, dedup_key, variation_type,
 threat_score, evidence, analysis, detected_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12::jsonb,$13::jsonb,$14)
ON CONFLICT (brand_id, dedup_key) DO NOTHING;`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, t := range ts {
		ev, err := toJSON(t.Evidence)
		if err != nil {
			return 0, err
		}
		an, err := toJSON(t.Analysis)
		if err != nil {
			return 0, err
		}
		status := t.Status
		if status == "" {
			status = threats.StatusPending
		}
		res, err := stmt.ExecContext(ctx,
			t.ID, t.BrandID, t.ScanID, t.Type, t.Severity, status, t.URL, t.Domain, t.DedupKey(),
			t.VariationType, t.ThreatScore, ev, an, t.DetectedAt,
		)
		if err != nil {
			return 0, fmt.Errorf("insert threat %s: %w", t.DedupKey(), err)
		}
		if k, _ := res.RowsAffected(); k > 0 {
			n++
		}
	}
	return n, nil
}

// ListByBrand with offset + limit (classic pagination)
func (r *ThreatRepository) ListByBrand(ctx context.Context, brandID string, page, pageSize int) (*threats.PaginatedResult, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	const q = `
SELECT id, brand_id, scan_id, type, severity, status, url, domain, variation_type,
       threat_score, evidence, analysis, detected_at
FROM threats
WHERE brand_id=$1
ORDER BY detected_at DESC, id
LIMIT $2 OFFSET $3;`
	rows, err := r.db.QueryContext(ctx, q, brandID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("querying threats: %w", err)
	}
	defer rows.Close()

	out := []*threats.Threat{}
	for rows.Next() {
		var (
			t      threats.Threat
			ev, an sql.NullString
		)
		if err := rows.Scan(
			&t.ID, &t.BrandID, &t.ScanID, &t.Type, &t.Severity, &t.Status, &t.URL, &t.Domain, &t.VariationType,
			&t.ThreatScore, &ev, &an, &t.DetectedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		if err := fromJSON(ev, &t.Evidence); err != nil {
			return nil, fmt.Errorf("decode evidence: %w", err)
		}
		if err := fromJSON(an, &t.Analysis); err != nil {
			return nil, fmt.Errorf("decode analysis: %w", err)
		}
		out = append(out, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM threats WHERE brand_id=$1;`, brandID).Scan(&total); err != nil {
		return nil, fmt.Errorf("getting total count: %w", err)
	}
	return &threats.PaginatedResult{
		Data:       out,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
	}, nil
}
