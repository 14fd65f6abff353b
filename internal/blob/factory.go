package blob

import (
	"context"
	"fmt"

	"spendgraph/internal/config"
	fsstore "spendgraph/internal/infra/blob/fs"
	memorystore "spendgraph/internal/infra/blob/memory"
	s3store "spendgraph/internal/infra/blob/s3"
)

// Open selects a Store implementation from configuration. The filesystem
// driver is rooted at root (normally the configured output directory).
func Open(ctx context.Context, cfg config.Blob, root string) (Store, error) {
	switch Driver(cfg.Driver) {
	case DriverFilesystem, "":
		return fsstore.New(root)
	case DriverMemory:
		return memorystore.New(), nil
	case DriverS3:
		return s3store.New(ctx, s3store.Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			PathStyle: cfg.S3PathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.Driver)
	}
}

// NewMemory returns an in-memory Store suitable for tests.
func NewMemory() Store { return memorystore.New() }
