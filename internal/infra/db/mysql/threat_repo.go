package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"github.com/bryanwahyu/brandsentry/internal/domain/threats"
)

type ThreatRepository struct {
	db *sql.DB
}

func NewThreatRepository(db *sql.DB) *ThreatRepository {
	return &ThreatRepository{db: db}
}

func (r *ThreatRepository) ExistsByDomain(ctx context.Context, brandID, domain string) (bool, error) {
	return r.exists(ctx, `SELECT 1 FROM threats WHERE brand_id=? AND domain=? LIMIT 1;`, brandID, domain)
}

func (r *ThreatRepository) ExistsByURL(ctx context.Context, brandID, url string) (bool, error) {
	return r.exists(ctx, `SELECT 1 FROM threats WHERE brand_id=? AND url=? LIMIT 1;`, brandID, url)
}

func (r *ThreatRepository) exists(ctx context.Context, q string, args ...any) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, q, args...).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// InsertMany writes all threats in one transaction. Rows colliding on
// (brand_id, dedup_key) are skipped; the count of inserted rows is returned.
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
INSERT IGNORE INTO threats
(id, brand_id, scan_id, type, severity, status, url, domain, dedup_key, variation_type,
 threat_score, evidence, analysis, detected_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?);`)
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
		res, err := stmt.ExecContext(ctx,
			t.ID, t.BrandID, t.ScanID, t.Type, t.Severity, statusOrPending(t.Status), t.URL, t.Domain, t.DedupKey(),
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

// ListByBrand with offset + limit (classic pagination), newest first
func (r *ThreatRepository) ListByBrand(ctx context.Context, brandID string, page, pageSize int) (*threats.PaginatedResult, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	const q = `
SELECT id, brand_id, scan_id, type, severity, status, url, domain, variation_type,
       threat_score, evidence, analysis, detected_at
FROM threats
WHERE brand_id=?
ORDER BY detected_at DESC, id
LIMIT ? OFFSET ?;`
	rows, err := r.db.QueryContext(ctx, q, brandID, pageSize, offset)
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
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM threats WHERE brand_id=?;`, brandID).Scan(&total); err != nil {
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

func statusOrPending(s string) string {
	if s == "" {
		return threats.StatusPending
	}
	return s
}
