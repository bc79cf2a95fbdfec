package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base: общие поля сущностей со строковым идентификатором.
type Base struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (b *Base) BeforeCreate(tx *gorm.DB) error {
	b.EnsureID()
	return nil
}

// EnsureID выдаёт UUID, если вызывающий не задал свой.
func (b *Base) EnsureID() {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
}
