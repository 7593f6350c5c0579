package evidence

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/bryanwahyu/brandsentry/internal/domain/brands"
	"github.com/bryanwahyu/brandsentry/internal/domain/threats"
	"github.com/bryanwahyu/brandsentry/internal/infra/ratelimit"
)

const maxScreenshotBytes = 10 << 20

// capture asks the render service for a PNG of pageURL and stores it.
// The render call is serialized by the screenshot limiter.
func (c *Collector) capture(ctx context.Context, pageURL, role string, b *brands.Brand) (*threats.Screenshot, error) {
	data, err := ratelimit.Submit(ctx, c.limiters.Screenshot, func(ctx context.Context) ([]byte, error) {
		return c.render(ctx, pageURL)
	})
	if err != nil {
		return nil, err
	}
	key := ObjectKey(b, role, pageURL)
	if err := c.shots.PutScreenshot(ctx, key, data, "image/png"); err != nil {
		return nil, err
	}
	return &threats.Screenshot{Role: role, URL: pageURL, ObjectKey: key, CapturedAt: c.now()}, nil
}

func (c *Collector) render(ctx context.Context, pageURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ScreenshotTimeout)
	defer cancel()

	q := url.Values{"url": {pageURL}, "width": {"1280"}, "height": {"800"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.ScreenshotURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("render status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxScreenshotBytes))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("render returned empty image")
	}
	return data, nil
}

// ObjectKey is stable per brand, role and page so re-captures overwrite.
func ObjectKey(b *brands.Brand, role, pageURL string) string {
	sum := sha256.Sum256([]byte(pageURL))
	brandID := "unknown"
	if b != nil && b.ID != "" {
		brandID = b.ID
	}
	return fmt.Sprintf("screenshots/%s/%s/%s.png", brandID, role, hex.EncodeToString(sum[:8]))
}
