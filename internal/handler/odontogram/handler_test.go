package odontogram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/odontogram-api/internal/middleware"
	"github.com/jwalitptl/odontogram-api/internal/model"
	"github.com/jwalitptl/odontogram-api/internal/odontogram"
	"github.com/jwalitptl/odontogram-api/internal/repository"
	apperrors "github.com/jwalitptl/odontogram-api/pkg/errors"
)

// fakeBackend is an in-memory clinical backend for one company.
type fakeBackend struct {
	mu          sync.Mutex
	down        bool
	odontograms map[int64]*model.Odontogram
	findings    []*model.Finding
	assignments []*model.TreatmentAssignment
	catalog     map[int64]*model.CatalogTreatment
	nextID      int64
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		odontograms: map[int64]*model.Odontogram{},
		catalog: map[int64]*model.CatalogTreatment{
			4: {ID: 4, Code: "OP-01", Name: "Resina compuesta", Category: odontogram.CategoryOperatoria, BaseCost: 85.5},
			8: {ID: 8, Code: "EN-01", Name: "Endodoncia unirradicular", Category: odontogram.CategoryEndodoncia, BaseCost: 250},
		},
		nextID: 100,
	}
}

var errBackendDown = errors.New("connection refused")

func (b *fakeBackend) id() int64 {
	b.nextID++
	return b.nextID
}

func (b *fakeBackend) toothByID(toothID int64) (*model.Odontogram, *model.Tooth) {
	for _, o := range b.odontograms {
		if t := o.ToothByID(toothID); t != nil {
			return o, t
		}
	}
	return nil, nil
}

func (b *fakeBackend) GetByPatient(_ context.Context, patientID, _ int64) (*model.Odontogram, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.down {
		return nil, errBackendDown
	}
	o, ok := b.odontograms[patientID]
	if !ok {
		return nil, apperrors.NewNotFound("odontogram", nil)
	}
	cp := *o
	cp.Teeth = make([]*model.Tooth, len(o.Teeth))
	for i, t := range o.Teeth {
		tt := *t
		cp.Teeth[i] = &tt
	}
	return &cp, nil
}

func (b *fakeBackend) Initialize(_ context.Context, req *model.InitializeOdontogramRequest) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o := &model.Odontogram{ID: b.id(), PatientID: req.PatientID, CompanyID: req.CompanyID, Type: req.Type, CreatedAt: time.Now()}
	for _, fdi := range req.Teeth {
		o.Teeth = append(o.Teeth, &model.Tooth{ID: b.id(), OdontogramID: o.ID, FDI: fdi, Status: model.ToothSano, Type: model.ToothPermanent})
	}
	b.odontograms[req.PatientID] = o
	return o.ID, nil
}

func (b *fakeBackend) UpdateToothStatus(_ context.Context, odontogramID int64, u *model.ToothStatusUpdate) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, o := range b.odontograms {
		if o.ID != odontogramID {
			continue
		}
		if t := o.ToothByFDI(u.FDI); t != nil {
			t.Status = u.Status
			t.Observations = u.Observations
			return nil
		}
	}
	return apperrors.NewNotFound("tooth", nil)
}

type fakeFindings struct{ *fakeBackend }

func (f fakeFindings) ListByTooth(_ context.Context, toothID int64) ([]*model.Finding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Finding
	for _, x := range f.findings {
		if x.ToothID == toothID {
			out = append(out, x)
		}
	}
	return out, nil
}

func (f fakeFindings) ListByPatient(_ context.Context, patientID, _ int64) ([]*model.Finding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return nil, errBackendDown
	}
	o := f.odontograms[patientID]
	var out []*model.Finding
	for _, x := range f.findings {
		if o != nil && x.OdontogramID == o.ID {
			out = append(out, x)
		}
	}
	return out, nil
}

func (f fakeFindings) Create(_ context.Context, in *model.Finding) (*model.Finding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, t := f.toothByID(in.ToothID)
	if t == nil {
		return nil, apperrors.NewNotFound("tooth", nil)
	}
	cp := *in
	cp.ID = f.id()
	cp.OdontogramID = o.ID
	cp.FDI = t.FDI
	f.findings = append(f.findings, &cp)
	return &cp, nil
}

type fakeTreatments struct{ *fakeBackend }

func (f fakeTreatments) ListByTooth(_ context.Context, toothID int64) ([]*model.TreatmentAssignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.TreatmentAssignment
	for _, a := range f.assignments {
		if a.ToothID == toothID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f fakeTreatments) ListByPatient(_ context.Context, patientID, _ int64) ([]*model.TreatmentAssignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o := f.odontograms[patientID]
	var out []*model.TreatmentAssignment
	for _, a := range f.assignments {
		if o != nil && o.ToothByID(a.ToothID) != nil {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f fakeTreatments) Assign(_ context.Context, toothID, catalogID, doctorID int64) (*model.TreatmentAssignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.catalog[catalogID]
	if !ok {
		return nil, apperrors.NewNotFound("catalog treatment", nil)
	}
	_, t := f.toothByID(toothID)
	if t == nil {
		return nil, apperrors.NewNotFound("tooth", nil)
	}
	a := &model.TreatmentAssignment{
		ID: f.id(), ToothID: toothID, FDI: t.FDI, CatalogID: catalogID, Name: c.Name, Category: c.Category,
		Cost: c.BaseCost, Status: model.AssignmentPending, AssignedAt: time.Now(), DoctorID: doctorID,
	}
	f.assignments = append(f.assignments, a)
	return a, nil
}

func (f fakeTreatments) Remove(_ context.Context, assignmentID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, a := range f.assignments {
		if a.ID == assignmentID {
			f.assignments = append(f.assignments[:i], f.assignments[i+1:]...)
			return nil
		}
	}
	return apperrors.NewNotFound("treatment assignment", nil)
}

type fakeCatalog struct{ *fakeBackend }

func (f fakeCatalog) SuggestedFor(_ context.Context, t model.FindingType) ([]*model.CatalogTreatment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	category, _ := odontogram.CategoryForFinding(t)
	var out []*model.CatalogTreatment
	for _, c := range f.catalog {
		if c.Category == category {
			out = append(out, c)
		}
	}
	return out, nil
}

func (b *fakeBackend) backend() repository.Backend {
	return repository.Backend{
		Odontograms: b,
		Findings:    fakeFindings{b},
		Treatments:  fakeTreatments{b},
		Catalog:     fakeCatalog{b},
	}
}

func newTestServer(t *testing.T) (*gin.Engine, *fakeBackend) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, middleware.RegisterBindingValidators())

	b := newFakeBackend()
	svc := odontogram.NewService(b.backend(), nil, nil, nil, odontogram.Config{Resolution: odontogram.ResolveFirst})

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.NewSessionMiddleware(middleware.SessionConfig{Disabled: true}).Authenticate())
	NewHandler(svc).RegisterRoutes(r.Group("/api/v1"))
	return r, b
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    int    `json:"code"`
		Kind    string `json:"kind"`
		Message string `json:"message"`
		Fields  []struct {
			Field string `json:"field"`
		} `json:"fields"`
	} `json:"error"`
}

func do(t *testing.T, r *gin.Engine, method, path string, body interface{}) (int, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.HeaderUserID, "9")
	req.Header.Set(middleware.HeaderCompanyID, "7")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func initialize(t *testing.T, r *gin.Engine, patientID int64) odontogram.View {
	t.Helper()
	code, env := do(t, r, http.MethodPost, "/api/v1/odontograms", gin.H{"paciente_id": patientID})
	require.Equal(t, http.StatusCreated, code)
	var view odontogram.View
	require.NoError(t, json.Unmarshal(env.Data, &view))
	return view
}

func TestGetCurrentUninitialized(t *testing.T) {
	r, _ := newTestServer(t)

	code, env := do(t, r, http.MethodGet, "/api/v1/odontograms/patient/42", nil)
	require.Equal(t, http.StatusOK, code)
	var view odontogram.View
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, model.StateUninitialized, view.State)
	assert.Empty(t, view.Teeth)
}

func TestGetCurrentDegradedIsOK(t *testing.T) {
	r, b := newTestServer(t)
	b.down = true

	code, env := do(t, r, http.MethodGet, "/api/v1/odontograms/patient/42", nil)
	require.Equal(t, http.StatusOK, code)
	var view odontogram.View
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.True(t, view.Degraded)
	assert.NotEmpty(t, view.Notice)
}

func TestInitializeAndConflict(t *testing.T) {
	r, _ := newTestServer(t)

	view := initialize(t, r, 42)
	assert.Equal(t, model.StateActive, view.State)
	assert.Len(t, view.Teeth, 32)
	assert.Equal(t, int64(7), view.Odontogram.CompanyID)

	code, env := do(t, r, http.MethodPost, "/api/v1/odontograms", gin.H{"paciente_id": 42})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "CONFLICT", env.Error.Kind)
}

func TestInitializeValidation(t *testing.T) {
	r, _ := newTestServer(t)

	code, env := do(t, r, http.MethodPost, "/api/v1/odontograms", gin.H{"tipo": "ADULTO"})
	assert.Equal(t, http.StatusBadRequest, code)
	require.NotNil(t, env.Error)
	fields := map[string]bool{}
	for _, f := range env.Error.Fields {
		fields[f.Field] = true
	}
	assert.True(t, fields["paciente_id"])
	assert.True(t, fields["tipo"])
}

func TestChangeToothStatus(t *testing.T) {
	r, _ := newTestServer(t)
	view := initialize(t, r, 42)
	path := "/api/v1/odontograms/" + itoa(view.Odontogram.ID) + "/teeth/16"

	code, _ := do(t, r, http.MethodPut, path, gin.H{"estado": "caries", "observaciones": "oclusal"})
	require.Equal(t, http.StatusOK, code)

	_, env := do(t, r, http.MethodGet, "/api/v1/odontograms/patient/42", nil)
	var current odontogram.View
	require.NoError(t, json.Unmarshal(env.Data, &current))
	assert.Equal(t, model.ToothCaries, current.Teeth[16].Status)

	code, env = do(t, r, http.MethodPut, "/api/v1/odontograms/"+itoa(view.Odontogram.ID)+"/teeth/19", gin.H{"estado": "CARIES"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_TOOTH_NUMBER", env.Error.Kind)

	code, env = do(t, r, http.MethodPut, path, gin.H{"estado": "ROTO"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION", env.Error.Kind)
}

func TestRegisterFindingAndChart(t *testing.T) {
	r, _ := newTestServer(t)
	view := initialize(t, r, 42)
	tooth := view.Teeth[16]

	code, env := do(t, r, http.MethodPost, "/api/v1/odontograms/teeth/"+itoa(tooth.ID)+"/findings", gin.H{
		"paciente_id":          42,
		"tipo_hallazgo":        "Caries",
		"superficies":          []string{"m", "O"},
		"severidad":            "leve",
		"requiere_tratamiento": "S",
	})
	require.Equal(t, http.StatusCreated, code, string(env.Data))
	var reg odontogram.Registration
	require.NoError(t, json.Unmarshal(env.Data, &reg))
	assert.Equal(t, "O,M", reg.Finding.Surfaces)
	assert.True(t, reg.NeedsSuggestions)

	code, env = do(t, r, http.MethodGet, "/api/v1/odontograms/patient/42/chart", nil)
	require.Equal(t, http.StatusOK, code)
	var chart odontogram.Chart
	require.NoError(t, json.Unmarshal(env.Data, &chart))
	require.Len(t, chart.Teeth, 32)
	for _, ct := range chart.Teeth {
		if ct.Tooth.FDI != 16 {
			continue
		}
		states := map[odontogram.Surface]odontogram.SurfaceStatus{}
		for _, s := range ct.Surfaces {
			states[s.Surface] = s.Status
		}
		assert.Equal(t, odontogram.SurfaceCaries, states[odontogram.SurfaceOclusal])
		assert.Equal(t, odontogram.SurfaceCaries, states[odontogram.SurfaceMesial])
		assert.Equal(t, odontogram.SurfaceSound, states[odontogram.SurfaceDistal])
	}

	code, env = do(t, r, http.MethodGet, "/api/v1/odontograms/teeth/"+itoa(tooth.ID)+"/findings", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"tipo_hallazgo":"CARIES"`)
}

func TestRegisterFindingRejectsBadSurface(t *testing.T) {
	r, _ := newTestServer(t)
	view := initialize(t, r, 42)

	code, env := do(t, r, http.MethodPost, "/api/v1/odontograms/teeth/"+itoa(view.Teeth[11].ID)+"/findings", gin.H{
		"paciente_id":   42,
		"tipo_hallazgo": "CARIES",
		"superficies":   []string{"X"},
		"severidad":     "LEVE",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION", env.Error.Kind)
}

func TestSelectionFlowAssignsAndPlans(t *testing.T) {
	r, _ := newTestServer(t)
	view := initialize(t, r, 42)
	toothID := itoa(view.Teeth[36].ID)

	code, env := do(t, r, http.MethodPost, "/api/v1/odontograms/teeth/"+toothID+"/selection", gin.H{
		"paciente_id": 42,
		"estado":      "ENDODONCIA",
		"catalogo_id": 8,
	})
	require.Equal(t, http.StatusOK, code, string(env.Data))
	var result odontogram.SelectionResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.True(t, result.StatusUpdated)
	require.NotNil(t, result.Assignment)
	assert.Equal(t, model.ToothEndodoncia, result.View.Teeth[36].Status)

	code, env = do(t, r, http.MethodPost, "/api/v1/odontograms/teeth/"+toothID+"/treatments", gin.H{"catalogo_id": 8})
	assert.Equal(t, http.StatusConflict, code)

	code, _ = do(t, r, http.MethodPost, "/api/v1/odontograms/teeth/"+toothID+"/treatments", gin.H{"catalogo_id": 8, "force": true})
	assert.Equal(t, http.StatusCreated, code)

	code, env = do(t, r, http.MethodGet, "/api/v1/odontograms/patient/42/treatments", nil)
	require.Equal(t, http.StatusOK, code)
	var plan model.PlanSummary
	require.NoError(t, json.Unmarshal(env.Data, &plan))
	assert.Equal(t, 2, plan.Count)
	assert.Equal(t, 500.0, plan.TotalCost)

	code, _ = do(t, r, http.MethodDelete, "/api/v1/odontograms/treatments/"+itoa(result.Assignment.ID), nil)
	assert.Equal(t, http.StatusOK, code)
	code, env = do(t, r, http.MethodDelete, "/api/v1/odontograms/treatments/"+itoa(result.Assignment.ID), nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", env.Error.Kind)
}

func TestSelectionPartialFailureKeepsKind(t *testing.T) {
	r, _ := newTestServer(t)
	view := initialize(t, r, 42)

	code, env := do(t, r, http.MethodPost, "/api/v1/odontograms/teeth/"+itoa(view.Teeth[21].ID)+"/selection", gin.H{
		"paciente_id": 42,
		"estado":      "CARIES",
		"catalogo_id": 999,
	})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Contains(t, env.Error.Message, "treatment not assigned")
}

func TestResetToSound(t *testing.T) {
	r, _ := newTestServer(t)
	view := initialize(t, r, 42)
	path := "/api/v1/odontograms/" + itoa(view.Odontogram.ID) + "/teeth/11"
	code, _ := do(t, r, http.MethodPut, path, gin.H{"estado": "FRACTURADO"})
	require.Equal(t, http.StatusOK, code)

	code, _ = do(t, r, http.MethodPost, "/api/v1/odontograms/teeth/"+itoa(view.Teeth[11].ID)+"/reset", gin.H{"paciente_id": 42})
	require.Equal(t, http.StatusCreated, code)

	_, env := do(t, r, http.MethodGet, "/api/v1/odontograms/patient/42", nil)
	var current odontogram.View
	require.NoError(t, json.Unmarshal(env.Data, &current))
	assert.Equal(t, model.ToothSano, current.Teeth[11].Status)
}

func TestHistorySuggestions(t *testing.T) {
	r, _ := newTestServer(t)
	view := initialize(t, r, 42)
	code, _ := do(t, r, http.MethodPut, "/api/v1/odontograms/"+itoa(view.Odontogram.ID)+"/teeth/26", gin.H{"estado": "CARIES"})
	require.Equal(t, http.StatusOK, code)

	code, env := do(t, r, http.MethodGet, "/api/v1/odontograms/patient/42/history-suggestions", nil)
	require.Equal(t, http.StatusOK, code)
	var draft odontogram.HistoryDraft
	require.NoError(t, json.Unmarshal(env.Data, &draft))
	assert.Contains(t, draft.ExamenClinico, "26")
}

func TestSuggestedTreatments(t *testing.T) {
	r, _ := newTestServer(t)

	code, env := do(t, r, http.MethodGet, "/api/v1/treatments/suggested/caries", nil)
	require.Equal(t, http.StatusOK, code)
	var s odontogram.Suggestions
	require.NoError(t, json.Unmarshal(env.Data, &s))
	assert.Equal(t, odontogram.CategoryOperatoria, s.Category)
	require.Len(t, s.Items, 1)

	code, env = do(t, r, http.MethodGet, "/api/v1/treatments/suggested/MOVILIDAD", nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &s))
	assert.Empty(t, s.Items)
}

func TestResolveFDI(t *testing.T) {
	r, _ := newTestServer(t)

	code, env := do(t, r, http.MethodGet, "/api/v1/fdi/24", nil)
	require.Equal(t, http.StatusOK, code)
	var body struct {
		Geometry odontogram.Geometry       `json:"geometry"`
		Surfaces []odontogram.SurfaceState `json:"surfaces"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Equal(t, 2, body.Geometry.Quadrant)
	assert.True(t, body.Geometry.IsLeftSide)
	assert.Len(t, body.Surfaces, 5)

	code, env = do(t, r, http.MethodGet, "/api/v1/fdi/59", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_TOOTH_NUMBER", env.Error.Kind)

	code, _ = do(t, r, http.MethodGet, "/api/v1/fdi/abc", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestBadPathIDs(t *testing.T) {
	r, _ := newTestServer(t)
	for _, path := range []string{
		"/api/v1/odontograms/patient/0",
		"/api/v1/odontograms/patient/x/chart",
		"/api/v1/odontograms/teeth/-1/findings",
	} {
		code, env := do(t, r, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusBadRequest, code, path)
		assert.Equal(t, "VALIDATION", env.Error.Kind, path)
	}
}

func itoa(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
