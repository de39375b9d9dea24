package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"messageboard/internal/model"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) List() ([]model.Message, error) {
	messages := make([]model.Message, 0)
	if err := r.db.Order("id ASC").Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("list messages failed: %w", err)
	}
	return messages, nil
}

// GetByID returns nil, nil when no row has the given id.
func (r *MessageRepository) GetByID(id uint) (*model.Message, error) {
	var message model.Message
	if err := r.db.First(&message, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get message failed: %w", err)
	}
	return &message, nil
}

func (r *MessageRepository) Create(message *model.Message) error {
	if err := r.db.Create(message).Error; err != nil {
		return fmt.Errorf("create message failed: %w", err)
	}
	return nil
}

// Update writes only the given columns and returns the row as stored. It
// returns nil, nil when no row has the given id.
func (r *MessageRepository) Update(id uint, fields map[string]any) (*model.Message, error) {
	current, err := r.GetByID(id)
	if err != nil || current == nil {
		return current, err
	}
	if len(fields) == 0 {
		return current, nil
	}

	result := r.db.Model(&model.Message{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return nil, fmt.Errorf("update message failed: %w", result.Error)
	}
	return r.GetByID(id)
}

// Delete reports whether a row was removed.
func (r *MessageRepository) Delete(id uint) (bool, error) {
	result := r.db.Delete(&model.Message{}, id)
	if result.Error != nil {
		return false, fmt.Errorf("delete message failed: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}
