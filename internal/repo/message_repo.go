package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/xxxsen/ragchat/internal/model"
	"github.com/xxxsen/ragchat/internal/pkg/dbutil"
)

type MessageRepo struct {
	db *sqlx.DB
}

func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

func (r *MessageRepo) Append(ctx context.Context, msg *model.Message) (int64, error) {
	sqlStr, args := dbutil.Finalize(
		"INSERT INTO messages(conversation_id, user_id, content, message_type, ctime) VALUES(?, ?, ?, ?, ?) RETURNING id",
		[]interface{}{msg.ConversationID, msg.UserID, msg.Content, msg.MessageType, msg.Ctime})
	var id int64
	if err := r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// ListRecent returns the last limit messages of a conversation, oldest first.
func (r *MessageRepo) ListRecent(ctx context.Context, userID string, conversationID int64, limit int) ([]*model.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	sqlStr, args := dbutil.Finalize(
		"SELECT id, conversation_id, user_id, content, message_type, ctime FROM messages "+
			"WHERE conversation_id = ? AND user_id = ? ORDER BY ctime DESC, id DESC LIMIT ?",
		[]interface{}{conversationID, userID, limit})
	items := make([]*model.Message, 0)
	if err := r.db.SelectContext(ctx, &items, sqlStr, args...); err != nil {
		return nil, err
	}
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	return items, nil
}

func (r *MessageRepo) CountByConversation(ctx context.Context, userID string, conversationID int64) (int64, error) {
	sqlStr, args := dbutil.Finalize(
		"SELECT COUNT(*) FROM messages WHERE conversation_id = ? AND user_id = ?",
		[]interface{}{conversationID, userID})
	var count int64
	if err := r.db.GetContext(ctx, &count, sqlStr, args...); err != nil {
		return 0, err
	}
	return count, nil
}
