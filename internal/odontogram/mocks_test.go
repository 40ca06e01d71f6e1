package odontogram

import (
	"context"

	"github.com/jwalitptl/odontogram-api/internal/model"
	"github.com/jwalitptl/odontogram-api/internal/repository"
	"github.com/stretchr/testify/mock"
)

type mockOdontograms struct{ mock.Mock }

func (m *mockOdontograms) GetByPatient(ctx context.Context, patientID, companyID int64) (*model.Odontogram, error) {
	args := m.Called(ctx, patientID, companyID)
	if fn, ok := args.Get(0).(func(context.Context, int64, int64) *model.Odontogram); ok {
		return fn(ctx, patientID, companyID), args.Error(1)
	}
	o, _ := args.Get(0).(*model.Odontogram)
	return o, args.Error(1)
}

func (m *mockOdontograms) Initialize(ctx context.Context, req *model.InitializeOdontogramRequest) (int64, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockOdontograms) UpdateToothStatus(ctx context.Context, odontogramID int64, update *model.ToothStatusUpdate) error {
	return m.Called(ctx, odontogramID, update).Error(0)
}

type mockFindings struct{ mock.Mock }

func (m *mockFindings) ListByTooth(ctx context.Context, toothID int64) ([]*model.Finding, error) {
	args := m.Called(ctx, toothID)
	items, _ := args.Get(0).([]*model.Finding)
	return items, args.Error(1)
}

func (m *mockFindings) ListByPatient(ctx context.Context, patientID, companyID int64) ([]*model.Finding, error) {
	args := m.Called(ctx, patientID, companyID)
	items, _ := args.Get(0).([]*model.Finding)
	return items, args.Error(1)
}

func (m *mockFindings) Create(ctx context.Context, f *model.Finding) (*model.Finding, error) {
	args := m.Called(ctx, f)
	if fn, ok := args.Get(0).(func(context.Context, *model.Finding) *model.Finding); ok {
		return fn(ctx, f), args.Error(1)
	}
	created, _ := args.Get(0).(*model.Finding)
	return created, args.Error(1)
}

type mockTreatments struct{ mock.Mock }

func (m *mockTreatments) ListByTooth(ctx context.Context, toothID int64) ([]*model.TreatmentAssignment, error) {
	args := m.Called(ctx, toothID)
	items, _ := args.Get(0).([]*model.TreatmentAssignment)
	return items, args.Error(1)
}

func (m *mockTreatments) ListByPatient(ctx context.Context, patientID, companyID int64) ([]*model.TreatmentAssignment, error) {
	args := m.Called(ctx, patientID, companyID)
	items, _ := args.Get(0).([]*model.TreatmentAssignment)
	return items, args.Error(1)
}

func (m *mockTreatments) Assign(ctx context.Context, toothID, catalogID, doctorID int64) (*model.TreatmentAssignment, error) {
	args := m.Called(ctx, toothID, catalogID, doctorID)
	a, _ := args.Get(0).(*model.TreatmentAssignment)
	return a, args.Error(1)
}

func (m *mockTreatments) Remove(ctx context.Context, assignmentID int64) error {
	return m.Called(ctx, assignmentID).Error(0)
}

type mockCatalog struct{ mock.Mock }

func (m *mockCatalog) SuggestedFor(ctx context.Context, t model.FindingType) ([]*model.CatalogTreatment, error) {
	args := m.Called(ctx, t)
	items, _ := args.Get(0).([]*model.CatalogTreatment)
	return items, args.Error(1)
}

type recordedEvent struct {
	Type    string
	Payload interface{}
}

type memoryEmitter struct {
	events []recordedEvent
}

func (e *memoryEmitter) Emit(_ context.Context, eventType string, payload interface{}) error {
	e.events = append(e.events, recordedEvent{Type: eventType, Payload: payload})
	return nil
}

func (e *memoryEmitter) types() []string {
	out := make([]string, len(e.events))
	for i, ev := range e.events {
		out[i] = ev.Type
	}
	return out
}

type fixture struct {
	odontograms *mockOdontograms
	findings    *mockFindings
	treatments  *mockTreatments
	catalog     *mockCatalog
	events      *memoryEmitter
	svc         *Service
}

func newFixture(cfg Config) *fixture {
	f := &fixture{
		odontograms: &mockOdontograms{},
		findings:    &mockFindings{},
		treatments:  &mockTreatments{},
		catalog:     &mockCatalog{},
		events:      &memoryEmitter{},
	}
	f.svc = NewService(repository.Backend{
		Odontograms: f.odontograms,
		Findings:    f.findings,
		Treatments:  f.treatments,
		Catalog:     f.catalog,
	}, f.events, nil, nil, cfg)
	return f
}

// seededOdontogram is what a backend returns right after initialization.
func seededOdontogram(id, patientID int64) *model.Odontogram {
	o := &model.Odontogram{ID: id, PatientID: patientID, Type: model.OdontogramPermanent}
	for i, fdi := range PermanentTeeth() {
		o.Teeth = append(o.Teeth, &model.Tooth{
			ID:           int64(100 + i),
			OdontogramID: id,
			FDI:          fdi,
			Status:       model.ToothSano,
			Type:         model.ToothPermanent,
		})
	}
	return o
}
