package media

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/storage"
	"github.com/angelmondragon/storefront-backend/pkg/storage/s3"
	"github.com/angelmondragon/storefront-backend/pkg/storage/sftp"
)

// NewRemoteStore builds the configured media store driver.
func NewRemoteStore(ctx context.Context, cfg config.MediaStoreConfig, logg *logger.Logger, m *metrics.MediaTransferMetrics) (storage.Opener, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	var (
		opener storage.Opener
		err    error
	)
	switch driver {
	case config.MediaDriverSFTP:
		opener, err = sftp.NewOpener(cfg, logg)
	case config.MediaDriverS3:
		opener, err = s3.NewOpener(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported media driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s media store: %w", driver, err)
	}
	return storage.Instrument(opener, driver, m), nil
}
