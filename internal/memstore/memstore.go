// Package memstore: хранилище в памяти с теми же контрактами, что и
// database.Repository. Используется в тестах сервисов и обработчиков.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"control-advisor/internal/applicability"
	"control-advisor/internal/apperr"
	"control-advisor/internal/models"
)

type txKey struct{}

type state struct {
	organizations []models.Organization
	processes     []models.Process
	risks         []models.Risk
	assessments   []models.MaturityAssessment
	catalog       []models.StandardControl
	asIs          []models.AsIsControl
	gaps          []models.Gap
	toBe          []models.ToBeControl
	selections    []models.MaturitySelection
	snapshots     []models.GapAnalysisSnapshot
	riskControls  []models.RiskControl
	users         []models.User
	audit         []models.AuditLog
	seq           uint
}

func (st *state) clone() *state {
	return &state{
		organizations: append([]models.Organization(nil), st.organizations...),
		processes:     append([]models.Process(nil), st.processes...),
		risks:         append([]models.Risk(nil), st.risks...),
		assessments:   append([]models.MaturityAssessment(nil), st.assessments...),
		catalog:       append([]models.StandardControl(nil), st.catalog...),
		asIs:          append([]models.AsIsControl(nil), st.asIs...),
		gaps:          append([]models.Gap(nil), st.gaps...),
		toBe:          append([]models.ToBeControl(nil), st.toBe...),
		selections:    append([]models.MaturitySelection(nil), st.selections...),
		snapshots:     append([]models.GapAnalysisSnapshot(nil), st.snapshots...),
		riskControls:  append([]models.RiskControl(nil), st.riskControls...),
		users:         append([]models.User(nil), st.users...),
		audit:         append([]models.AuditLog(nil), st.audit...),
		seq:           st.seq,
	}
}

// Store держит всё в срезах в порядке вставки.
// Транзакции сериализуются и при ошибке откатывают состояние целиком.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	data *state
}

func New() *Store {
	return &Store{data: &state{}}
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	before := s.data.clone()
	s.mu.RUnlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.mu.Lock()
		s.data = before
		s.mu.Unlock()
		return err
	}
	return nil
}

func stamp(b *models.Base) {
	b.EnsureID()
	now := time.Now()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
}

// ====== ОРГАНИЗАЦИИ, ПРОЦЕССЫ, РИСКИ ======

func (s *Store) CreateOrganization(_ context.Context, org *models.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stamp(&org.Base)
	stored := *org
	stored.Processes = nil
	s.data.organizations = append(s.data.organizations, stored)
	return nil
}

func (s *Store) FindOrganization(_ context.Context, id string) (*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.data.organizations {
		if o.ID == id {
			for _, p := range s.data.processes {
				if p.OrganizationID != nil && *p.OrganizationID == id {
					o.Processes = append(o.Processes, p)
				}
			}
			return &o, nil
		}
	}
	return nil, apperr.ErrRecordNotFound
}

func (s *Store) UpdateOrganizationFlags(_ context.Context, id string, flags applicability.Flags) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.data.organizations {
		o := &s.data.organizations[i]
		if o.ID == id {
			o.Regulated = flags.Regulated
			o.InventoryHeavy = flags.InventoryHeavy
			o.DataIntensive = flags.DataIntensive
			o.HighRiskImpact = flags.HighRiskImpact
			o.UpdatedAt = time.Now()
			return nil
		}
	}
	return apperr.ErrRecordNotFound
}

func (s *Store) CreateProcess(_ context.Context, p *models.Process) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stamp(&p.Base)
	stored := *p
	stored.Organization = nil
	s.data.processes = append(s.data.processes, stored)
	return nil
}

func (s *Store) FindProcess(_ context.Context, id string) (*models.Process, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.process(id)
	if !ok {
		return nil, apperr.ErrRecordNotFound
	}
	if p.OrganizationID != nil {
		if org, ok := s.organization(*p.OrganizationID); ok {
			p.Organization = &org
		}
	}
	return &p, nil
}

func (s *Store) process(id string) (models.Process, bool) {
	for _, p := range s.data.processes {
		if p.ID == id {
			return p, true
		}
	}
	return models.Process{}, false
}

func (s *Store) organization(id string) (models.Organization, bool) {
	for _, o := range s.data.organizations {
		if o.ID == id {
			return o, true
		}
	}
	return models.Organization{}, false
}

func (s *Store) OrganizationFlags(_ context.Context, processID string) (applicability.Flags, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.process(processID)
	if !ok || p.OrganizationID == nil {
		return applicability.Flags{}, apperr.ErrRecordNotFound
	}
	org, ok := s.organization(*p.OrganizationID)
	if !ok {
		return applicability.Flags{}, apperr.ErrRecordNotFound
	}
	return org.Flags(), nil
}

func (s *Store) CreateRisk(_ context.Context, r *models.Risk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stamp(&r.Base)
	s.data.risks = append(s.data.risks, *r)
	return nil
}

func (s *Store) ListRisks(_ context.Context, processID string) ([]models.Risk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Risk{}
	for _, r := range s.data.risks {
		if r.ProcessID == processID {
			out = append(out, r)
		}
	}
	return out, nil
}

// ====== АНКЕТЫ ЗРЕЛОСТИ ======

func (s *Store) CountAssessments(_ context.Context, processID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, a := range s.data.assessments {
		if a.ProcessID == processID {
			n++
		}
	}
	return n, nil
}

func (s *Store) CreateAssessment(_ context.Context, a *models.MaturityAssessment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.data.assessments {
		if existing.ProcessID == a.ProcessID && existing.Version == a.Version {
			return apperr.ErrDuplicate
		}
	}
	stamp(&a.Base)
	s.data.assessments = append(s.data.assessments, *a)
	return nil
}

func (s *Store) ListAssessments(_ context.Context, processID string) ([]models.MaturityAssessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.MaturityAssessment{}
	for i := len(s.data.assessments) - 1; i >= 0; i-- {
		if a := s.data.assessments[i]; a.ProcessID == processID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Store) LatestAssessment(ctx context.Context, processID string) (*models.MaturityAssessment, error) {
	list, _ := s.ListAssessments(ctx, processID)
	if len(list) == 0 {
		return nil, apperr.ErrRecordNotFound
	}
	return &list[0], nil
}

// ====== КАТАЛОГ И AS-IS КОНТРОЛИ ======

// UpsertStandardControl обновляет запись каталога с тем же кодом или добавляет новую.
func (s *Store) UpsertStandardControl(_ context.Context, c *models.StandardControl) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.data.catalog {
		if s.data.catalog[i].Code == c.Code {
			c.ID = s.data.catalog[i].ID
			c.CreatedAt = s.data.catalog[i].CreatedAt
			stamp(&c.Base)
			s.data.catalog[i] = *c
			return nil
		}
	}
	stamp(&c.Base)
	s.data.catalog = append(s.data.catalog, *c)
	return nil
}

func (s *Store) CountStandardControls(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data.catalog), nil
}

func (s *Store) ListStandardControls(_ context.Context) ([]models.StandardControl, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]models.StandardControl{}, s.data.catalog...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *Store) stdControl(id string) (models.StandardControl, bool) {
	for _, c := range s.data.catalog {
		if c.ID == id {
			return c, true
		}
	}
	return models.StandardControl{}, false
}

func (s *Store) CreateAsIsControl(_ context.Context, c *models.AsIsControl) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stamp(&c.Base)
	s.data.asIs = append(s.data.asIs, *c)
	return nil
}

func (s *Store) ListAsIsControls(_ context.Context, processID string) ([]models.AsIsControl, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.AsIsControl{}
	for _, c := range s.data.asIs {
		if c.ProcessID == processID {
			out = append(out, c)
		}
	}
	return out, nil
}

// ====== РАЗРЫВЫ И ЦЕЛЕВЫЕ КОНТРОЛИ ======

func (s *Store) FindOrCreateGap(_ context.Context, gap *models.Gap) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.data.gaps {
		if g.ProcessID == gap.ProcessID && g.RiskID == gap.RiskID && g.StdControlID == gap.StdControlID {
			*gap = g
			return false, nil
		}
	}
	stamp(&gap.Base)
	stored := *gap
	stored.StdControl = nil
	stored.RecommendedToBeControl = nil
	s.data.gaps = append(s.data.gaps, stored)
	return true, nil
}

func (s *Store) resolve(g models.Gap) models.Gap {
	if c, ok := s.stdControl(g.StdControlID); ok {
		g.StdControl = &c
	}
	if g.RecommendedToBeControlID != nil {
		for _, tb := range s.data.toBe {
			if tb.ID == *g.RecommendedToBeControlID {
				tb := tb
				g.RecommendedToBeControl = &tb
				break
			}
		}
	}
	return g
}

func (s *Store) ListGaps(_ context.Context, processID, riskID string) ([]models.Gap, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Gap{}
	for _, g := range s.data.gaps {
		if g.ProcessID == processID && g.RiskID == riskID {
			g = s.resolve(g)
			g.RecommendedToBeControl = nil
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *Store) ListGapsByProcess(_ context.Context, processID string) ([]models.Gap, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Gap{}
	for _, g := range s.data.gaps {
		if g.ProcessID == processID {
			out = append(out, s.resolve(g))
		}
	}
	return out, nil
}

func (s *Store) LinkGapRecommendation(_ context.Context, gapID, toBeControlID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.data.gaps {
		if s.data.gaps[i].ID == gapID {
			id := toBeControlID
			s.data.gaps[i].RecommendedToBeControlID = &id
			s.data.gaps[i].UpdatedAt = time.Now()
			return nil
		}
	}
	return apperr.ErrRecordNotFound
}

func (s *Store) CreateToBeControl(_ context.Context, c *models.ToBeControl) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stamp(&c.Base)
	s.data.toBe = append(s.data.toBe, *c)
	return nil
}

func (s *Store) FindToBeControl(_ context.Context, id string) (*models.ToBeControl, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.data.toBe {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, apperr.ErrRecordNotFound
}

func (s *Store) ListToBeControls(_ context.Context, processID string) ([]models.ToBeControl, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.ToBeControl{}
	for _, c := range s.data.toBe {
		if c.ProcessID == processID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) UpdateToBeStatus(_ context.Context, id string, status models.ImplementationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.data.toBe {
		if s.data.toBe[i].ID == id {
			s.data.toBe[i].Status = status
			s.data.toBe[i].UpdatedAt = time.Now()
			return nil
		}
	}
	return apperr.ErrRecordNotFound
}

// ====== ЗРЕЛОСТЬ ПО РИСКАМ ======

func (s *Store) UpsertMaturitySelection(_ context.Context, sel *models.MaturitySelection) (*models.MaturitySelection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.data.selections {
		if s.data.selections[i].RiskID == sel.RiskID {
			stored := *sel
			stored.Base = s.data.selections[i].Base
			stamp(&stored.Base)
			s.data.selections[i] = stored
			return &stored, nil
		}
	}
	stored := *sel
	stamp(&stored.Base)
	s.data.selections = append(s.data.selections, stored)
	return &stored, nil
}

func (s *Store) FindMaturitySelection(_ context.Context, riskID string) (*models.MaturitySelection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sel := range s.data.selections {
		if sel.RiskID == riskID {
			return &sel, nil
		}
	}
	return nil, apperr.ErrRecordNotFound
}

// CountMaturitySelections: для проверок уникальности по риску.
func (s *Store) CountMaturitySelections(riskID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, sel := range s.data.selections {
		if sel.RiskID == riskID {
			n++
		}
	}
	return n
}

func (s *Store) UpsertGapAnalysisSnapshot(_ context.Context, snap *models.GapAnalysisSnapshot) (*models.GapAnalysisSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.data.snapshots {
		if s.data.snapshots[i].RiskID == snap.RiskID {
			stored := *snap
			stored.Base = s.data.snapshots[i].Base
			stamp(&stored.Base)
			s.data.snapshots[i] = stored
			return &stored, nil
		}
	}
	stored := *snap
	stamp(&stored.Base)
	s.data.snapshots = append(s.data.snapshots, stored)
	return &stored, nil
}

func (s *Store) FindGapAnalysisSnapshot(_ context.Context, riskID string) (*models.GapAnalysisSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, snap := range s.data.snapshots {
		if snap.RiskID == riskID {
			return &snap, nil
		}
	}
	return nil, apperr.ErrRecordNotFound
}

func (s *Store) CreateRiskControl(_ context.Context, c *models.RiskControl) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stamp(&c.Base)
	s.data.riskControls = append(s.data.riskControls, *c)
	return nil
}

func (s *Store) ListRiskControls(_ context.Context, riskID string) ([]models.RiskControl, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.RiskControl{}
	for _, c := range s.data.riskControls {
		if c.RiskID == riskID {
			out = append(out, c)
		}
	}
	return out, nil
}

// ====== ПОЛЬЗОВАТЕЛИ И АУДИТ ======

func (s *Store) CreateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.data.users {
		if existing.Username == u.Username {
			return apperr.Validation("user already exists", "username")
		}
	}
	s.data.seq++
	u.ID = s.data.seq
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	s.data.users = append(s.data.users, *u)
	return nil
}

func (s *Store) FindUserByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.data.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, apperr.ErrRecordNotFound
}

func (s *Store) FindUserByID(_ context.Context, id uint) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.data.users {
		if u.ID == id {
			return &u, nil
		}
	}
	return nil, apperr.ErrRecordNotFound
}

func (s *Store) CountUsersByRole(_ context.Context, role models.UserRole) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, u := range s.data.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.seq++
	entry.ID = s.data.seq
	entry.CreatedAt = time.Now()
	s.data.audit = append(s.data.audit, *entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, limit int) ([]models.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.AuditLog{}
	for i := len(s.data.audit) - 1; i >= 0 && len(out) < limit; i-- {
		entry := s.data.audit[i]
		for _, u := range s.data.users {
			if u.ID == entry.UserID {
				u := u
				entry.User = &u
			}
		}
		out = append(out, entry)
	}
	return out, nil
}
