package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"

	"github.com/xxxsen/ragchat/internal/model"
	"github.com/xxxsen/ragchat/internal/pkg/dbutil"
	"github.com/xxxsen/ragchat/internal/pkg/errs"
)

type UploadRepo struct {
	db *sqlx.DB
}

func NewUploadRepo(db *sqlx.DB) *UploadRepo {
	return &UploadRepo{db: db}
}

func (r *UploadRepo) Create(ctx context.Context, up *model.Upload) error {
	data := map[string]interface{}{
		"id":               up.ID,
		"user_id":          up.UserID,
		"filename":         up.Filename,
		"content_type":     up.ContentType,
		"file_size":        up.FileSize,
		"file_key":         up.FileKey,
		"chunks_processed": up.ChunksProcessed,
		"status":           up.Status,
		"error":            up.Error,
		"ctime":            up.Ctime,
		"mtime":            up.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("uploads", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil && dbutil.IsConflict(err) {
		return errs.ErrConflict
	}
	return err
}

func (r *UploadRepo) UpdateStatus(ctx context.Context, userID, id string, status string, chunksProcessed int, errMsg string, mtime int64) error {
	where := map[string]interface{}{"id": id, "user_id": userID}
	update := map[string]interface{}{
		"status":           status,
		"chunks_processed": chunksProcessed,
		"error":            errMsg,
		"mtime":            mtime,
	}
	sqlStr, args, err := builder.BuildUpdate("uploads", where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (r *UploadRepo) Get(ctx context.Context, userID, id string) (*model.Upload, error) {
	where := map[string]interface{}{"id": id, "user_id": userID}
	sqlStr, args, err := builder.BuildSelect("uploads", where, uploadColumns())
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	up := &model.Upload{}
	if err := r.db.GetContext(ctx, up, sqlStr, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return up, nil
}

func (r *UploadRepo) List(ctx context.Context, userID string, limit, offset int) ([]*model.Upload, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	where := map[string]interface{}{
		"user_id":  userID,
		"_orderby": "ctime desc",
		"_limit":   []uint{uint(offset), uint(limit)},
	}
	sqlStr, args, err := builder.BuildSelect("uploads", where, uploadColumns())
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	items := make([]*model.Upload, 0)
	if err := r.db.SelectContext(ctx, &items, sqlStr, args...); err != nil {
		return nil, err
	}
	return items, nil
}

// ListOlderThan returns uploads created before the cutoff, for retention
// cleanup.
func (r *UploadRepo) ListOlderThan(ctx context.Context, cutoff int64, limit int) ([]*model.Upload, error) {
	if limit <= 0 {
		limit = 100
	}
	sqlStr, args := dbutil.Finalize(
		"SELECT "+strings.Join(uploadColumns(), ", ")+" FROM uploads WHERE ctime < ? ORDER BY ctime ASC LIMIT ?",
		[]interface{}{cutoff, limit})
	items := make([]*model.Upload, 0)
	if err := r.db.SelectContext(ctx, &items, sqlStr, args...); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *UploadRepo) Delete(ctx context.Context, userID, id string) error {
	where := map[string]interface{}{"id": id, "user_id": userID}
	sqlStr, args, err := builder.BuildDelete("uploads", where)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func uploadColumns() []string {
	return []string{"id", "user_id", "filename", "content_type", "file_size", "file_key", "chunks_processed", "status", "error", "ctime", "mtime"}
}

