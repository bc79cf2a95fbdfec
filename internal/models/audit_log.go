package models

import "time"

type AuditLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`

	UserID uint  `json:"userId"`
	User   *User `json:"user,omitempty"`

	Entity   string `gorm:"size:50;not null" json:"entity"` // "gap", "to_be_control", "maturity_selection" ...
	EntityID string `gorm:"size:64" json:"entityId"`
	Action   string `gorm:"size:50;not null" json:"action"` // "analyze", "generate", "upsert", "accept" ...
	Details  string `gorm:"type:text" json:"details"`
}
