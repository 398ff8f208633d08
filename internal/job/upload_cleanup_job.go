package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/ragchat/internal/filestore"
	"github.com/xxxsen/ragchat/internal/model"
)

const cleanupBatchSize = 100

type uploadStore interface {
	ListOlderThan(ctx context.Context, cutoff int64, limit int) ([]*model.Upload, error)
	Delete(ctx context.Context, userID, id string) error
}

// UploadCleanupJob removes upload records and their stored files once they
// age past the retention window. Ingested chunks are left alone, the
// in-memory index is rebuilt from fresh uploads anyway.
type UploadCleanupJob struct {
	uploads       uploadStore
	files         filestore.Store
	retentionDays int
}

func NewUploadCleanupJob(uploads uploadStore, files filestore.Store, retentionDays int) *UploadCleanupJob {
	return &UploadCleanupJob{uploads: uploads, files: files, retentionDays: retentionDays}
}

func (j *UploadCleanupJob) Name() string {
	return "upload_cleanup"
}

func (j *UploadCleanupJob) Run(ctx context.Context) error {
	if j.uploads == nil {
		return nil
	}
	retentionDays := j.retentionDays
	if retentionDays <= 0 {
		retentionDays = 30
	}
	cutoff := time.Now().Add(-time.Duration(retentionDays) * 24 * time.Hour).Unix()
	logger := logutil.GetLogger(ctx)
	removed := 0
	for {
		items, err := j.uploads.ListOlderThan(ctx, cutoff, cleanupBatchSize)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			break
		}
		passRemoved := 0
		for _, item := range items {
			if j.files != nil && item.FileKey != "" {
				if err := j.files.Delete(ctx, item.FileKey); err != nil {
					logger.Error("delete stored file failed",
						zap.String("upload_id", item.ID),
						zap.String("file_key", item.FileKey),
						zap.Error(err))
				}
			}
			if err := j.uploads.Delete(ctx, item.UserID, item.ID); err != nil {
				logger.Error("delete upload record failed",
					zap.String("upload_id", item.ID),
					zap.Error(err))
				continue
			}
			passRemoved++
		}
		removed += passRemoved
		// A pass that deletes nothing would list the same rows forever.
		if passRemoved == 0 || len(items) < cleanupBatchSize {
			break
		}
	}
	if removed > 0 {
		logger.Info("expired uploads removed", zap.Int("count", removed))
	}
	return nil
}
