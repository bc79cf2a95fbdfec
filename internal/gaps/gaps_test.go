package gaps

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"control-advisor/internal/applicability"
	"control-advisor/internal/memstore"
	"control-advisor/internal/models"
	"control-advisor/internal/profile"
)

// fixture: процесс с организацией и каталогом
// {A: always, B: automated, C: erp-enabled}.
type fixture struct {
	ctx     context.Context
	store   *memstore.Store
	org     models.Organization
	process models.Process
	std     map[string]models.StandardControl
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		ctx:   context.Background(),
		store: memstore.New(),
		std:   map[string]models.StandardControl{},
	}

	f.org = models.Organization{Name: "Acme"}
	require.NoError(t, f.store.CreateOrganization(f.ctx, &f.org))

	orgID := f.org.ID
	f.process = models.Process{Name: "Procure to pay", OrganizationID: &orgID}
	require.NoError(t, f.store.CreateProcess(f.ctx, &f.process))

	f.addStd(t, "A", "Control A", models.ControlPreventive, models.DomainOps, applicability.Always())
	f.addStd(t, "B", "Control B", models.ControlDetective, models.DomainReporting, applicability.ForProfile(profile.Automated))
	f.addStd(t, "C", "Control C", models.ControlCorrective, models.DomainCompliance, applicability.ForProfile(profile.ERPEnabled))
	return f
}

func (f *fixture) addStd(t *testing.T, code, name string, ct models.ControlType, dt models.DomainTag, rule applicability.Rule) models.StandardControl {
	t.Helper()
	c := models.StandardControl{
		Code:          code,
		Name:          name,
		Objective:     name + " objective",
		ControlType:   ct,
		DomainTag:     dt,
		Frequency:     "monthly",
		Evidence:      name + " evidence",
		Applicability: rule,
	}
	require.NoError(t, f.store.UpsertStandardControl(f.ctx, &c))
	f.std[code] = c
	return c
}

// assess сохраняет анкету с профилем erp-enabled, centralized, high-risk.
func (f *fixture) assess(t *testing.T) {
	t.Helper()
	answers := profile.Answers{"automation": "erp", "processStructure": "centralized", "failureImpact": "high"}
	require.NoError(t, f.store.CreateAssessment(f.ctx, &models.MaturityAssessment{
		ProcessID: f.process.ID,
		Version:   1,
		Answers:   map[string]any(answers),
		Profile:   profile.Derive(answers),
	}))
}

func (f *fixture) cover(t *testing.T, code string, status models.CoverageStatus) {
	t.Helper()
	id := f.std[code].ID
	require.NoError(t, f.store.CreateAsIsControl(f.ctx, &models.AsIsControl{
		ProcessID:          f.process.ID,
		Name:               "as-is " + code,
		Status:             status,
		MappedStdControlID: &id,
	}))
}

func (f *fixture) codes(gaps []models.Gap) []string {
	byID := map[string]string{}
	for code, c := range f.std {
		byID[c.ID] = code
	}
	out := make([]string, 0, len(gaps))
	for _, g := range gaps {
		out = append(out, byID[g.StdControlID])
	}
	return out
}
