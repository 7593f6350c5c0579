package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bryanwahyu/brandsentry/internal/domain/brands"
)

type BrandRepository struct{ db *sql.DB }

func NewBrandRepository(db *sql.DB) *BrandRepository { return &BrandRepository{db: db} }

const brandColumns = `id, name, primary_domain, keywords, social_handles, logo_url, owner_id,
       alert_email, alert_webhook, alert_threshold, unresolved_threats`

func scanBrand(row rowScanner) (*brands.Brand, error) {
	var (
		b                 brands.Brand
		keywords, handles sql.NullString
	)
	if err := row.Scan(
		&b.ID, &b.Name, &b.PrimaryDomain, &keywords, &handles, &b.LogoURL, &b.OwnerID,
		&b.AlertEmail, &b.AlertWebhook, &b.AlertThreshold, &b.UnresolvedThreats,
	); err != nil {
		return nil, err
	}
	if err := fromJSON(keywords, &b.Keywords); err != nil {
		return nil, fmt.Errorf("decode keywords: %w", err)
	}
	if err := fromJSON(handles, &b.SocialHandles); err != nil {
		return nil, fmt.Errorf("decode social_handles: %w", err)
	}
	return &b, nil
}

func (r *BrandRepository) Get(ctx context.Context, id string) (*brands.Brand, error) {
	b, err := scanBrand(r.db.QueryRowContext(ctx, `SELECT `+brandColumns+` FROM brands WHERE id=$1;`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, brands.ErrNotFound
	}
	return b, err
}

func (r *BrandRepository) List(ctx context.Context) ([]*brands.Brand, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+brandColumns+` FROM brands ORDER BY name;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*brands.Brand
	for rows.Next() {
		b, err := scanBrand(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *BrandRepository) RefreshThreatCount(ctx context.Context, id string) (int, error) {
	const q = `
UPDATE brands
SET unresolved_threats = (SELECT COUNT(*) FROM threats WHERE brand_id=$1 AND status IN ('pending','confirmed'))
WHERE id=$1
RETURNING unresolved_threats;`
	var n int
	err := r.db.QueryRowContext(ctx, q, id).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, brands.ErrNotFound
	}
	return n, err
}
