package cleanup

import (
	"context"
	"os"
	"time"

	"github.com/AndreRH09/download_valet/internal/logctx"
	"github.com/AndreRH09/download_valet/internal/storage"
)

// DeleteExpiredArtifacts deletes delivered artifacts older than keepDuration
// based on their tracked records.
func DeleteExpiredArtifacts(ctx context.Context, records []storage.DeliveryRecord, keepDuration time.Duration) error {
	logger := logctx.LoggerFromContext(ctx)
	now := time.Now()

	for _, rec := range records {
		filePath := rec.DestinationPath

		info, err := os.Stat(filePath)
		if err != nil {
			if os.IsNotExist(err) {
				continue // already deleted
			}

			logger.Error("failed to stat artifact", "file", filePath, "err", err)

			return err
		}

		deliveredAt, err := time.Parse(time.RFC3339, rec.DeliveredAt)
		if err != nil {
			// fallback: use file mod time
			logger.Warn("failed to parse delivery time, using file mod time", "file", filePath, "err", err)

			deliveredAt = info.ModTime()
		}

		if now.Sub(deliveredAt) > keepDuration {
			if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
				logger.Error("failed to delete expired artifact", "file", filePath, "err", err)

				return err
			}

			logger.Info("deleted expired artifact", "file", filePath)
		}
	}

	return nil
}
