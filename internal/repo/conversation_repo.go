package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"

	"github.com/xxxsen/ragchat/internal/model"
	"github.com/xxxsen/ragchat/internal/pkg/dbutil"
	"github.com/xxxsen/ragchat/internal/pkg/errs"
)

type ConversationRepo struct {
	db *sqlx.DB
}

func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

func (r *ConversationRepo) Create(ctx context.Context, conv *model.Conversation) (int64, error) {
	sqlStr, args := dbutil.Finalize(
		"INSERT INTO conversations(user_id, title, ctime, mtime) VALUES(?, ?, ?, ?) RETURNING id",
		[]interface{}{conv.UserID, conv.Title, conv.Ctime, conv.Mtime})
	var id int64
	if err := r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *ConversationRepo) Get(ctx context.Context, userID string, id int64) (*model.Conversation, error) {
	where := map[string]interface{}{"id": id, "user_id": userID}
	sqlStr, args, err := builder.BuildSelect("conversations", where, []string{"id", "user_id", "title", "ctime", "mtime"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	conv := &model.Conversation{}
	if err := r.db.GetContext(ctx, conv, sqlStr, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return conv, nil
}

// List returns the user's conversations with message counts, most recently
// active first.
func (r *ConversationRepo) List(ctx context.Context, userID string, limit, offset int) ([]*model.Conversation, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	sqlStr, args := dbutil.Finalize(
		"SELECT c.id, c.user_id, c.title, c.ctime, c.mtime, COUNT(m.id) AS message_count "+
			"FROM conversations c LEFT JOIN messages m ON m.conversation_id = c.id "+
			"WHERE c.user_id = ? GROUP BY c.id ORDER BY c.mtime DESC LIMIT ?,?",
		[]interface{}{userID, offset, limit})
	items := make([]*model.Conversation, 0)
	if err := r.db.SelectContext(ctx, &items, sqlStr, args...); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *ConversationRepo) UpdateTitle(ctx context.Context, userID string, id int64, title string, mtime int64) error {
	where := map[string]interface{}{"id": id, "user_id": userID}
	update := map[string]interface{}{"title": title, "mtime": mtime}
	sqlStr, args, err := builder.BuildUpdate("conversations", where, update)
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

// Touch bumps the conversation's mtime so activity ordering stays correct.
func (r *ConversationRepo) Touch(ctx context.Context, userID string, id int64, mtime int64) error {
	where := map[string]interface{}{"id": id, "user_id": userID}
	update := map[string]interface{}{"mtime": mtime}
	sqlStr, args, err := builder.BuildUpdate("conversations", where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

// Delete removes the conversation; its messages go with it via cascade.
func (r *ConversationRepo) Delete(ctx context.Context, userID string, id int64) error {
	where := map[string]interface{}{"id": id, "user_id": userID}
	sqlStr, args, err := builder.BuildDelete("conversations", where)
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
