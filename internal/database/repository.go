package database

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"control-advisor/internal/applicability"
	"control-advisor/internal/apperr"
	"control-advisor/internal/models"
)

type txKey struct{}

// Repository реализует хранилища всех сервисов поверх GORM.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// conn возвращает транзакцию из контекста или обычное соединение.
func (r *Repository) conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return r.db.WithContext(ctx)
}

func (r *Repository) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

func translate(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.ErrRecordNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperr.ErrDuplicate
	}
	return err
}

func affected(res *gorm.DB) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.ErrRecordNotFound
	}
	return nil
}

// ====== ОРГАНИЗАЦИИ, ПРОЦЕССЫ, РИСКИ ======

func (r *Repository) CreateOrganization(ctx context.Context, org *models.Organization) error {
	return r.conn(ctx).Omit(clause.Associations).Create(org).Error
}

func (r *Repository) FindOrganization(ctx context.Context, id string) (*models.Organization, error) {
	var org models.Organization
	err := r.conn(ctx).Preload("Processes").First(&org, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &org, nil
}

func (r *Repository) UpdateOrganizationFlags(ctx context.Context, id string, flags applicability.Flags) error {
	res := r.conn(ctx).Model(&models.Organization{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"regulated":        flags.Regulated,
			"inventory_heavy":  flags.InventoryHeavy,
			"data_intensive":   flags.DataIntensive,
			"high_risk_impact": flags.HighRiskImpact,
		})
	return affected(res)
}

func (r *Repository) CreateProcess(ctx context.Context, p *models.Process) error {
	return r.conn(ctx).Omit(clause.Associations).Create(p).Error
}

func (r *Repository) FindProcess(ctx context.Context, id string) (*models.Process, error) {
	var p models.Process
	if err := r.conn(ctx).Preload("Organization").First(&p, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

// OrganizationFlags: признаки организации, которой принадлежит процесс.
func (r *Repository) OrganizationFlags(ctx context.Context, processID string) (applicability.Flags, error) {
	p, err := r.FindProcess(ctx, processID)
	if err != nil {
		return applicability.Flags{}, err
	}
	if p.Organization == nil {
		return applicability.Flags{}, apperr.ErrRecordNotFound
	}
	return p.Organization.Flags(), nil
}

func (r *Repository) CreateRisk(ctx context.Context, risk *models.Risk) error {
	return r.conn(ctx).Create(risk).Error
}

func (r *Repository) ListRisks(ctx context.Context, processID string) ([]models.Risk, error) {
	risks := []models.Risk{}
	err := r.conn(ctx).Where("process_id = ?", processID).Order("created_at, id").Find(&risks).Error
	return risks, err
}

// ====== АНКЕТЫ ЗРЕЛОСТИ ======

func (r *Repository) CountAssessments(ctx context.Context, processID string) (int, error) {
	var n int64
	err := r.conn(ctx).Model(&models.MaturityAssessment{}).Where("process_id = ?", processID).Count(&n).Error
	return int(n), err
}

func (r *Repository) CreateAssessment(ctx context.Context, a *models.MaturityAssessment) error {
	return translate(r.conn(ctx).Create(a).Error)
}

func (r *Repository) ListAssessments(ctx context.Context, processID string) ([]models.MaturityAssessment, error) {
	list := []models.MaturityAssessment{}
	err := r.conn(ctx).Where("process_id = ?", processID).
		Order("version desc, created_at desc").
		Find(&list).Error
	return list, err
}

func (r *Repository) LatestAssessment(ctx context.Context, processID string) (*models.MaturityAssessment, error) {
	var a models.MaturityAssessment
	err := r.conn(ctx).Where("process_id = ?", processID).
		Order("version desc, created_at desc").
		First(&a).Error
	if err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

// ====== КАТАЛОГ И AS-IS КОНТРОЛИ ======

// UpsertStandardControl обновляет запись каталога по коду, сохраняя её id.
func (r *Repository) UpsertStandardControl(ctx context.Context, c *models.StandardControl) error {
	c.EnsureID()
	err := r.conn(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "objective", "control_type", "domain_tag",
			"frequency", "evidence", "applicability", "updated_at",
		}),
	}).Create(c).Error
	if err != nil {
		return err
	}

	// при конфликте в c остался сгенерированный id, читаем настоящий
	var saved models.StandardControl
	if err := r.conn(ctx).Where("code = ?", c.Code).First(&saved).Error; err != nil {
		return err
	}
	*c = saved
	return nil
}

func (r *Repository) CountStandardControls(ctx context.Context) (int, error) {
	var n int64
	err := r.conn(ctx).Model(&models.StandardControl{}).Count(&n).Error
	return int(n), err
}

func (r *Repository) ListStandardControls(ctx context.Context) ([]models.StandardControl, error) {
	list := []models.StandardControl{}
	err := r.conn(ctx).Order("code").Find(&list).Error
	return list, err
}

func (r *Repository) CreateAsIsControl(ctx context.Context, c *models.AsIsControl) error {
	return r.conn(ctx).Create(c).Error
}

func (r *Repository) ListAsIsControls(ctx context.Context, processID string) ([]models.AsIsControl, error) {
	list := []models.AsIsControl{}
	err := r.conn(ctx).Where("process_id = ?", processID).Order("created_at, id").Find(&list).Error
	return list, err
}

// ====== РАЗРЫВЫ И ЦЕЛЕВЫЕ КОНТРОЛИ ======

// FindOrCreateGap опирается на уникальный индекс idx_gap_identity:
// при конфликте вставка пропускается и читается существующая запись.
func (r *Repository) FindOrCreateGap(ctx context.Context, gap *models.Gap) (bool, error) {
	res := r.conn(ctx).Omit(clause.Associations).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "process_id"}, {Name: "risk_id"}, {Name: "std_control_id"}},
		DoNothing: true,
	}).Create(gap)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}

	var existing models.Gap
	err := r.conn(ctx).
		Where("process_id = ? AND risk_id = ? AND std_control_id = ?", gap.ProcessID, gap.RiskID, gap.StdControlID).
		First(&existing).Error
	if err != nil {
		return false, translate(err)
	}
	*gap = existing
	return false, nil
}

func (r *Repository) ListGaps(ctx context.Context, processID, riskID string) ([]models.Gap, error) {
	gaps := []models.Gap{}
	err := r.conn(ctx).Preload("StdControl").
		Where("process_id = ? AND risk_id = ?", processID, riskID).
		Order("created_at, id").
		Find(&gaps).Error
	return gaps, err
}

func (r *Repository) ListGapsByProcess(ctx context.Context, processID string) ([]models.Gap, error) {
	gaps := []models.Gap{}
	err := r.conn(ctx).Preload("StdControl").Preload("RecommendedToBeControl").
		Where("process_id = ?", processID).
		Order("created_at, id").
		Find(&gaps).Error
	return gaps, err
}

func (r *Repository) LinkGapRecommendation(ctx context.Context, gapID, toBeControlID string) error {
	res := r.conn(ctx).Model(&models.Gap{}).
		Where("id = ?", gapID).
		Update("recommended_to_be_control_id", toBeControlID)
	return affected(res)
}

func (r *Repository) CreateToBeControl(ctx context.Context, c *models.ToBeControl) error {
	return r.conn(ctx).Create(c).Error
}

func (r *Repository) FindToBeControl(ctx context.Context, id string) (*models.ToBeControl, error) {
	var c models.ToBeControl
	if err := r.conn(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (r *Repository) ListToBeControls(ctx context.Context, processID string) ([]models.ToBeControl, error) {
	list := []models.ToBeControl{}
	err := r.conn(ctx).Where("process_id = ?", processID).Order("created_at, id").Find(&list).Error
	return list, err
}

func (r *Repository) UpdateToBeStatus(ctx context.Context, id string, status models.ImplementationStatus) error {
	res := r.conn(ctx).Model(&models.ToBeControl{}).Where("id = ?", id).Update("status", status)
	return affected(res)
}

// ====== ЗРЕЛОСТЬ ПО РИСКАМ ======

func (r *Repository) UpsertMaturitySelection(ctx context.Context, sel *models.MaturitySelection) (*models.MaturitySelection, error) {
	sel.EnsureID()
	err := r.conn(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "risk_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"selected_level", "target_level", "current_score", "target_score", "updated_at",
		}),
	}).Create(sel).Error
	if err != nil {
		return nil, err
	}
	return r.FindMaturitySelection(ctx, sel.RiskID)
}

func (r *Repository) FindMaturitySelection(ctx context.Context, riskID string) (*models.MaturitySelection, error) {
	var sel models.MaturitySelection
	if err := r.conn(ctx).First(&sel, "risk_id = ?", riskID).Error; err != nil {
		return nil, translate(err)
	}
	return &sel, nil
}

func (r *Repository) UpsertGapAnalysisSnapshot(ctx context.Context, snap *models.GapAnalysisSnapshot) (*models.GapAnalysisSnapshot, error) {
	snap.EnsureID()
	err := r.conn(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "risk_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"current_level", "target_level", "current_score", "target_score",
			"missing_controls", "suggested_controls", "gap_count",
			"effort_estimate", "timeline_estimate", "defaulted_fields", "updated_at",
		}),
	}).Create(snap).Error
	if err != nil {
		return nil, err
	}
	return r.FindGapAnalysisSnapshot(ctx, snap.RiskID)
}

func (r *Repository) FindGapAnalysisSnapshot(ctx context.Context, riskID string) (*models.GapAnalysisSnapshot, error) {
	var snap models.GapAnalysisSnapshot
	if err := r.conn(ctx).First(&snap, "risk_id = ?", riskID).Error; err != nil {
		return nil, translate(err)
	}
	return &snap, nil
}

func (r *Repository) CreateRiskControl(ctx context.Context, c *models.RiskControl) error {
	return r.conn(ctx).Create(c).Error
}

func (r *Repository) ListRiskControls(ctx context.Context, riskID string) ([]models.RiskControl, error) {
	list := []models.RiskControl{}
	err := r.conn(ctx).Where("risk_id = ?", riskID).Order("created_at, id").Find(&list).Error
	return list, err
}

// ====== ПОЛЬЗОВАТЕЛИ И АУДИТ ======

func (r *Repository) CreateUser(ctx context.Context, u *models.User) error {
	return r.conn(ctx).Create(u).Error
}

func (r *Repository) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	if err := r.conn(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (r *Repository) FindUserByID(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := r.conn(ctx).First(&u, id).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (r *Repository) CountUsersByRole(ctx context.Context, role models.UserRole) (int, error) {
	var n int64
	err := r.conn(ctx).Model(&models.User{}).Where("role = ?", role).Count(&n).Error
	return int(n), err
}

// CreateAuditLog: запись в журнал аудита.
func (r *Repository) CreateAuditLog(ctx context.Context, entry *models.AuditLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	return r.conn(ctx).Omit(clause.Associations).Create(entry).Error
}

func (r *Repository) ListAuditLogs(ctx context.Context, limit int) ([]models.AuditLog, error) {
	logs := []models.AuditLog{}
	err := r.conn(ctx).Preload("User").Order("id desc").Limit(limit).Find(&logs).Error
	return logs, err
}
