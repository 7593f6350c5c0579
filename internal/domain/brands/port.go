package brands

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("brand not found")

// Repository is the read side of the brand store plus the live threat counter.
type Repository interface {
	Get(ctx context.Context, id string) (*Brand, error)
	List(ctx context.Context) ([]*Brand, error)
	// RefreshThreatCount recomputes the brand's unresolved threat counter from the threats table.
	RefreshThreatCount(ctx context.Context, id string) (int, error)
}
