package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"control-advisor/internal/assessments"
	"control-advisor/internal/catalog"
	"control-advisor/internal/gaps"
	"control-advisor/internal/handlers"
	"control-advisor/internal/memstore"
	"control-advisor/internal/metrics"
	"control-advisor/internal/models"
	"control-advisor/internal/section2"
)

const password = "Passw0rd!"

type testApp struct {
	t      *testing.T
	router *gin.Engine
	store  *memstore.Store
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctx := context.Background()
	store := memstore.New()
	require.NoError(t, catalog.Seed(ctx, store, catalog.Default(), zap.NewNop()))

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	for _, u := range []struct {
		name string
		role models.UserRole
	}{
		{"admin", models.RoleAdmin},
		{"analyst", models.RoleAnalyst},
		{"viewer", models.RoleViewer},
	} {
		require.NoError(t, store.CreateUser(ctx, &models.User{Username: u.name, PasswordHash: string(hash), Role: u.role}))
	}

	m := metrics.New()
	h := handlers.New(
		store,
		assessments.New(store, nil),
		gaps.New(store, gaps.WithMetrics(m)),
		section2.New(store, section2.WithMetrics(m)),
		zap.NewNop(),
	)
	router := NewRouter(Deps{
		SessionSecret: "test-secret",
		Handler:       h,
		Users:         store,
		Metrics:       m,
		Log:           zap.NewNop(),
	})
	return &testApp{t: t, router: router, store: store}
}

type session struct {
	app     *testApp
	cookies []*http.Cookie
}

func (a *testApp) anonymous() *session { return &session{app: a} }

func (a *testApp) login(username string) *session {
	a.t.Helper()
	s := &session{app: a}
	w := s.do(http.MethodPost, "/auth/login", map[string]string{"username": username, "password": password})
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())
	s.cookies = w.Result().Cookies()
	require.NotEmpty(a.t, s.cookies)
	return s
}

func (s *session) do(method, path string, body any) *httptest.ResponseRecorder {
	s.app.t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(s.app.t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range s.cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	s.app.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

type errorBody struct {
	Error  string   `json:"error"`
	Kind   string   `json:"kind"`
	Fields []string `json:"fields"`
}

// stdID: id записи каталога по коду.
func (a *testApp) stdID(code string) string {
	a.t.Helper()
	list, err := a.store.ListStandardControls(context.Background())
	require.NoError(a.t, err)
	for _, c := range list {
		if c.Code == code {
			return c.ID
		}
	}
	a.t.Fatalf("no standard control %s", code)
	return ""
}

func TestHealthAndAuth(t *testing.T) {
	app := newTestApp(t)
	anon := app.anonymous()

	w := anon.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = anon.do(http.MethodGet, "/standard-controls", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthorized", decode[errorBody](t, w).Kind)

	w = anon.do(http.MethodPost, "/auth/login", map[string]string{"username": "admin", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = anon.do(http.MethodPost, "/auth/login", map[string]string{"username": "ghost", "password": password})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	admin := app.login("admin")
	w = admin.do(http.MethodGet, "/auth/me", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "admin", decode[models.User](t, w).Username)
	assert.NotContains(t, w.Body.String(), "PasswordHash")
}

func TestGapAnalysisFlow(t *testing.T) {
	app := newTestApp(t)
	analyst := app.login("analyst")

	w := analyst.do(http.MethodPost, "/organizations", map[string]any{"name": "Acme", "industry": "retail"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	org := decode[models.Organization](t, w)

	w = analyst.do(http.MethodPost, "/processes", map[string]any{"name": "Procure to pay", "organizationId": org.ID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	process := decode[models.Process](t, w)

	w = analyst.do(http.MethodPost, "/processes/"+process.ID+"/risks", map[string]any{"title": "Duplicate payments", "level": "high"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	risk := decode[models.Risk](t, w)

	analyze := map[string]string{"processId": process.ID, "riskId": risk.ID}

	// анализ до анкеты
	w = analyst.do(http.MethodPost, "/gaps/analyze", analyze)
	require.Equal(t, http.StatusPreconditionFailed, w.Code)
	assert.Equal(t, "precondition_failed", decode[errorBody](t, w).Kind)

	w = analyst.do(http.MethodPost, "/maturity-assessments", map[string]any{
		"processId": process.ID,
		"answers":   map[string]any{"automation": "erp", "processStructure": "centralized", "failureImpact": "high"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assessment := decode[models.MaturityAssessment](t, w)
	assert.Equal(t, "erp-enabled,centralized,high-risk", assessment.Profile.String())

	w = analyst.do(http.MethodPost, "/processes/"+process.ID+"/as-is-controls", map[string]any{
		"name": "Owner RACI", "status": "exists", "mappedStdControlId": app.stdID("GOV-01"),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// GOV-02, ERP-01, CEN-01, HR-01 остаются открытыми
	w = analyst.do(http.MethodPost, "/gaps/analyze", analyze)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	first := decode[gaps.DetectResult](t, w)
	assert.Equal(t, 4, first.Count)
	assert.Equal(t, 4, first.Created)

	w = analyst.do(http.MethodPost, "/gaps/analyze", analyze)
	require.Equal(t, http.StatusOK, w.Code)
	second := decode[gaps.DetectResult](t, w)
	assert.Equal(t, first.Count, second.Count)
	assert.Equal(t, 0, second.Created)

	w = analyst.do(http.MethodPost, "/to-be-controls/generate", analyze)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	generated := decode[gaps.SynthesisResult](t, w)
	assert.Equal(t, 4, generated.Count)

	w = analyst.do(http.MethodGet, "/gaps/process/"+process.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	listed := decode[[]models.Gap](t, w)
	require.Len(t, listed, 4)
	for _, g := range listed {
		require.NotNil(t, g.StdControl)
		require.NotNil(t, g.RecommendedToBeControl)
		assert.Equal(t, g.StdControl.ControlType, g.RecommendedToBeControl.ControlType)
	}

	w = analyst.do(http.MethodGet, "/to-be-controls/process/"+process.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	toBe := decode[[]models.ToBeControl](t, w)
	require.Len(t, toBe, 4)

	w = analyst.do(http.MethodPatch, "/to-be-controls/"+toBe[0].ID+"/status", map[string]string{"status": "in_progress"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.StatusInProgress, decode[models.ToBeControl](t, w).Status)

	w = analyst.do(http.MethodPatch, "/to-be-controls/"+toBe[0].ID+"/status", map[string]string{"status": "done"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// регулируемая организация получает REG-01
	w = analyst.do(http.MethodPut, "/organizations/"+org.ID+"/flags", map[string]bool{"regulated": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = analyst.do(http.MethodPost, "/gaps/analyze", analyze)
	require.Equal(t, http.StatusOK, w.Code)
	third := decode[gaps.DetectResult](t, w)
	assert.Equal(t, 5, third.Count)
	assert.Equal(t, 1, third.Created)

	w = analyst.do(http.MethodGet, "/maturity-assessments/process/"+process.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.MaturityAssessment](t, w), 1)
}

func TestValidationErrors(t *testing.T) {
	app := newTestApp(t)
	analyst := app.login("analyst")

	w := analyst.do(http.MethodPost, "/gaps/analyze", map[string]string{})
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decode[errorBody](t, w)
	assert.Equal(t, "validation", body.Kind)
	assert.Equal(t, []string{"processId", "riskId"}, body.Fields)

	w = analyst.do(http.MethodPost, "/gaps/analyze", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = analyst.do(http.MethodPost, "/processes", map[string]any{"name": "P", "organizationId": "missing"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, []string{"organizationId"}, decode[errorBody](t, w).Fields)

	w = analyst.do(http.MethodGet, "/processes/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStandardControlsByProfile(t *testing.T) {
	app := newTestApp(t)
	viewer := app.login("viewer")

	codes := func(w *httptest.ResponseRecorder) []string {
		var out []string
		for _, c := range decode[[]models.StandardControl](t, w) {
			out = append(out, c.Code)
		}
		return out
	}

	w := viewer.do(http.MethodGet, "/standard-controls", nil)
	require.Equal(t, http.StatusOK, w.Code)
	all := codes(w)

	w = viewer.do(http.MethodGet, "/standard-controls/by-profile/manual,decentralized", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	manual := codes(w)
	assert.Subset(t, manual, []string{"GOV-01", "GOV-02", "MAN-01", "MAN-02"})
	assert.NotContains(t, manual, "ERP-01")
	assert.NotContains(t, manual, "REG-01")
	assert.Less(t, len(manual), len(all))

	w = viewer.do(http.MethodGet, "/standard-controls/by-profile/manual?regulated=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, codes(w), "REG-01")

	w = viewer.do(http.MethodGet, "/standard-controls/by-profile/artisanal", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = viewer.do(http.MethodGet, "/standard-controls/by-profile/manual?regulated=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSection2Endpoints(t *testing.T) {
	app := newTestApp(t)
	analyst := app.login("analyst")

	w := analyst.do(http.MethodGet, "/section2/maturity-selection/r1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	for _, target := range []int{4, 5} {
		w = analyst.do(http.MethodPost, "/section2/maturity-selection", map[string]any{"riskId": "r1", "selectedLevel": 2, "targetLevel": target})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
	w = analyst.do(http.MethodGet, "/section2/maturity-selection/r1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, decode[models.MaturitySelection](t, w).TargetLevel)
	assert.Equal(t, 1, app.store.CountMaturitySelections("r1"))

	w = analyst.do(http.MethodPost, "/section2/maturity-selection", map[string]any{"riskId": "r1"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, []string{"selectedLevel", "targetLevel"}, decode[errorBody](t, w).Fields)

	w = analyst.do(http.MethodPost, "/section2/gap-analysis", map[string]any{"riskId": "r1", "currentLevel": 2, "targetLevel": 4})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	snap := decode[models.GapAnalysisSnapshot](t, w)
	assert.InDelta(t, 2.2, snap.CurrentScore, 1e-9)
	assert.Equal(t, "6-12 months", snap.TimelineEstimate)
	assert.Contains(t, []string(snap.DefaultedFields), "timelineEstimate")

	w = analyst.do(http.MethodGet, "/section2/gap-analysis/r1", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = analyst.do(http.MethodPost, "/section2/accept-control", map[string]any{"riskId": "r1", "templateId": "tmpl-7", "customizations": map[string]any{}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	accepted := decode[models.RiskControl](t, w)
	assert.Equal(t, models.SourceAISuggested, accepted.Source)
	assert.Equal(t, models.StatusPlanned, accepted.Status)
	assert.Equal(t, models.ControlDetective, accepted.ControlType)

	w = analyst.do(http.MethodGet, "/section2/risk-controls/r1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.RiskControl](t, w), 1)
}

func TestRoles(t *testing.T) {
	app := newTestApp(t)
	viewer := app.login("viewer")
	analyst := app.login("analyst")
	admin := app.login("admin")

	w := viewer.do(http.MethodPost, "/gaps/analyze", map[string]string{"processId": "p", "riskId": "r"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = viewer.do(http.MethodGet, "/audit", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = analyst.do(http.MethodGet, "/audit", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	doc := `
controls:
  - code: NEW-01
    name: Newly imported
    controlType: detective
    domainTag: ops
    applicability: {always: true}
`
	w = analyst.do(http.MethodPost, "/standard-controls/import", doc)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = admin.do(http.MethodPost, "/standard-controls/import", doc)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "NEW-01")

	w = admin.do(http.MethodPost, "/standard-controls/import", "controls: [{code: X}]")
	require.Equal(t, http.StatusBadRequest, w.Code)
	var invalid struct {
		errorBody
		Details []string `json:"details"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &invalid))
	assert.Equal(t, "validation", invalid.Kind)
	assert.Empty(t, invalid.Fields)
	assert.NotEmpty(t, invalid.Details)

	// импорт попал в аудит
	w = admin.do(http.MethodGet, "/audit", nil)
	require.Equal(t, http.StatusOK, w.Code)
	logs := decode[[]models.AuditLog](t, w)
	require.NotEmpty(t, logs)
	assert.Equal(t, "import", logs[0].Action)
}

func TestMetricsEndpoint(t *testing.T) {
	app := newTestApp(t)
	analyst := app.login("analyst")
	analyst.do(http.MethodPost, "/gaps/analyze", map[string]string{"processId": "p", "riskId": "r"})

	w := app.anonymous().do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `control_advisor_gap_runs_total{result="precondition_failed"} 1`), w.Body.String())
	assert.Contains(t, w.Body.String(), "control_advisor_request_duration_seconds")
}
