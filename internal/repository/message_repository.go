package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"alignbox_chat/internal/errs"
	"alignbox_chat/internal/models"
	"alignbox_chat/internal/storage"
)

// MessageRepository 只提供新增與依序查詢，訊息寫入後不可修改或刪除
type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	FindAll(ctx context.Context) ([]models.Message, error)
}

type messageRepository struct {
	db *storage.Database
}

func NewMessageRepository(db *storage.Database) MessageRepository {
	return &messageRepository{db: db}
}

// pg_advisory_xact_lock 的鍵，只用於訊息寫入
const messageInsertLockKey int64 = 0x6d736773

// insertLockSQL 回傳寫入前需取得的交易鎖。
// Postgres 的 id 由 sequence 在 INSERT 時配發，created_at 則在應用端產生，
// 併發交易可能讓較大的 id 得到較早的時間；以交易鎖序列化寫入，鎖在提交時釋放。
// SQLite 只有單一連線，本身已序列化。
func insertLockSQL(dialect string) string {
	if dialect == "postgres" {
		return "SELECT pg_advisory_xact_lock(?)"
	}
	return ""
}

// Create 寫入訊息後在同一交易內回讀，message 會被覆寫為資料庫中的正式紀錄
func (r *messageRepository) Create(ctx context.Context, message *models.Message) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if lock := insertLockSQL(tx.Dialector.Name()); lock != "" {
			if err := tx.Exec(lock, messageInsertLockKey).Error; err != nil {
				return err
			}
		}
		if err := tx.Create(message).Error; err != nil {
			return err
		}
		var stored models.Message
		if err := tx.First(&stored, message.ID).Error; err != nil {
			return err
		}
		*message = stored
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: create message: %v", errs.ErrStoreUnavailable, err)
	}
	return nil
}

// FindAll 依 created_at、id 遞增回傳完整紀錄
func (r *messageRepository) FindAll(ctx context.Context) ([]models.Message, error) {
	messages := make([]models.Message, 0)
	err := r.db.WithContext(ctx).Order("created_at asc").Order("id asc").Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("%w: list messages: %v", errs.ErrStoreUnavailable, err)
	}
	return messages, nil
}
