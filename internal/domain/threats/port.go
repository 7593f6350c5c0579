package threats

import "context"

// Repository port (interface untuk persistence)
type Repository interface {
	ExistsByDomain(ctx context.Context, brandID, domain string) (bool, error)
	ExistsByURL(ctx context.Context, brandID, url string) (bool, error)
	// InsertMany stores threats in one batch; rows that already exist are skipped.
	InsertMany(ctx context.Context, ts []*Threat) (int, error)
	ListByBrand(ctx context.Context, brandID string, page, pageSize int) (*PaginatedResult, error)
}
