package models

import (
	"gorm.io/datatypes"

	"control-advisor/internal/profile"
)

// MaturityAssessment: одна отправка анкеты; после создания не меняется.
// Актуальной для процесса считается самая свежая.
type MaturityAssessment struct {
	Base
	ProcessID string            `gorm:"type:varchar(36);not null;uniqueIndex:idx_assessment_version,priority:1" json:"processId"`
	Version   int               `gorm:"not null;uniqueIndex:idx_assessment_version,priority:2" json:"version"`
	Answers   datatypes.JSONMap `json:"answers"`
	Profile   profile.Set       `gorm:"type:text;not null" json:"profile"`
}
