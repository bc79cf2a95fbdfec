package models

import "gorm.io/datatypes"

// MaturitySelection: выбранный текущий и целевой уровень зрелости по риску.
// Одна строка на риск, повторная отправка перезаписывает все поля.
type MaturitySelection struct {
	Base
	RiskID        string   `gorm:"size:64;not null;uniqueIndex" json:"riskId"`
	SelectedLevel int      `gorm:"not null" json:"selectedLevel"`
	TargetLevel   int      `gorm:"not null" json:"targetLevel"`
	CurrentScore  *float64 `json:"currentScore"`
	TargetScore   *float64 `json:"targetScore"`
}

// GapAnalysisSnapshot: сохранённая сводка последнего анализа разрывов по риску.
// DefaultedFields перечисляет поля, заполненные заглушками, а не расчётом.
type GapAnalysisSnapshot struct {
	Base
	RiskID            string                      `gorm:"size:64;not null;uniqueIndex" json:"riskId"`
	CurrentLevel      int                         `gorm:"not null" json:"currentLevel"`
	TargetLevel       int                         `gorm:"not null" json:"targetLevel"`
	CurrentScore      float64                     `gorm:"not null" json:"currentScore"`
	TargetScore       float64                     `gorm:"not null" json:"targetScore"`
	MissingControls   datatypes.JSON              `json:"missingControls"`
	SuggestedControls datatypes.JSON              `json:"suggestedControls"`
	GapCount          int                         `gorm:"not null" json:"gapCount"`
	EffortEstimate    string                      `gorm:"size:32" json:"effortEstimate"`
	TimelineEstimate  string                      `gorm:"size:64" json:"timelineEstimate"`
	DefaultedFields   datatypes.JSONSlice[string] `json:"defaultedFields"`
}
