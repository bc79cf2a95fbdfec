package models

import "control-advisor/internal/applicability"

// Organization: владелец процессов; её признаки участвуют в правилах
// применимости стандартных контролей.
type Organization struct {
	Base
	Name     string `gorm:"size:255;not null" json:"name"`
	Industry string `gorm:"size:100" json:"industry"`
	Notes    string `gorm:"type:text" json:"notes"`

	Regulated      bool `gorm:"not null;default:false" json:"regulated"`
	InventoryHeavy bool `gorm:"not null;default:false" json:"inventoryHeavy"`
	DataIntensive  bool `gorm:"not null;default:false" json:"dataIntensive"`
	HighRiskImpact bool `gorm:"not null;default:false" json:"highRiskImpact"`

	Processes []Process `json:"processes,omitempty"`
}

func (o Organization) Flags() applicability.Flags {
	return applicability.Flags{
		Regulated:      o.Regulated,
		InventoryHeavy: o.InventoryHeavy,
		DataIntensive:  o.DataIntensive,
		HighRiskImpact: o.HighRiskImpact,
	}
}
