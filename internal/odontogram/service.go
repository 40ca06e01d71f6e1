package odontogram

import (
	"context"
	"fmt"
	"strings"

	"github.com/jwalitptl/odontogram-api/internal/model"
	"github.com/jwalitptl/odontogram-api/internal/repository"
	apperrors "github.com/jwalitptl/odontogram-api/pkg/errors"
	"github.com/jwalitptl/odontogram-api/pkg/logger"
	"github.com/jwalitptl/odontogram-api/pkg/metrics"
)

const (
	noticeUnavailable = "No se pudo cargar el odontograma. Intente actualizar."
	noticeFindings    = "No se pudieron cargar los hallazgos."
	noticeTreatments  = "No se pudieron cargar los tratamientos."
)

// Emitter receives domain events after a write the backend confirmed.
type Emitter interface {
	Emit(ctx context.Context, eventType string, payload interface{}) error
}

type nopEmitter struct{}

func (nopEmitter) Emit(context.Context, string, interface{}) error { return nil }

type Config struct {
	Resolution Resolution
}

// Service is the odontogram aggregate. It holds no state between calls: every
// write goes to the backend first and every view is rebuilt from a fresh read.
type Service struct {
	odontograms repository.OdontogramRepository
	findings    repository.FindingRepository
	treatments  repository.TreatmentRepository

	recorder   *Recorder
	engine     *Engine
	events     Emitter
	metrics    *metrics.Metrics
	logger     *logger.Logger
	resolution Resolution
}

func NewService(backend repository.Backend, events Emitter, m *metrics.Metrics, log *logger.Logger, cfg Config) *Service {
	if events == nil {
		events = nopEmitter{}
	}
	if m == nil {
		m = metrics.NewNop()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		odontograms: backend.Odontograms,
		findings:    backend.Findings,
		treatments:  backend.Treatments,
		recorder:    NewRecorder(),
		engine:      NewEngine(backend.Catalog, backend.Treatments, log),
		events:      events,
		metrics:     m,
		logger:      log,
		resolution:  ParseResolution(string(cfg.Resolution)),
	}
}

// Engine exposes the suggestion engine for callers that only need treatments.
func (s *Service) Engine() *Engine {
	return s.engine
}

// View is the current odontogram of a patient as the caller should render it.
type View struct {
	State      model.OdontogramState `json:"state"`
	Odontogram *model.Odontogram     `json:"odontogram,omitempty"`
	Teeth      map[int]*model.Tooth  `json:"teeth"`
	Degraded   bool                  `json:"degraded,omitempty"`
	Notice     string                `json:"notice,omitempty"`
}

// SortedTeeth returns the view's teeth by FDI number.
func (v *View) SortedTeeth() []*model.Tooth {
	teeth := make([]*model.Tooth, 0, len(v.Teeth))
	for _, t := range v.Teeth {
		teeth = append(teeth, t)
	}
	SortByFDI(teeth)
	return teeth
}

func (s *Service) observe(op string, err error) {
	s.metrics.Operations.WithLabelValues(op, metrics.Outcome(err)).Inc()
}

func (s *Service) degraded(op string, err error) {
	s.metrics.DegradedReads.WithLabelValues(op).Inc()
	s.logger.Warn("serving degraded view", "operation", op, "error", err.Error())
}

func (s *Service) emit(ctx context.Context, eventType string, payload interface{}) {
	if err := s.events.Emit(ctx, eventType, payload); err != nil {
		s.logger.Error(err, "failed to emit event", "event_type", eventType)
	}
}

func validPatient(patientID int64) error {
	if patientID <= 0 {
		return apperrors.NewValidation("patient id is required", nil)
	}
	return nil
}

// GetCurrent never fails on backend trouble; it returns an empty degraded view instead.
func (s *Service) GetCurrent(ctx context.Context, session model.SessionContext, patientID int64) (*View, error) {
	if err := validPatient(patientID); err != nil {
		return nil, err
	}

	o, err := s.odontograms.GetByPatient(ctx, patientID, session.CompanyID)
	switch {
	case apperrors.IsNotFound(err):
		s.observe("get_current", nil)
		return &View{State: model.StateUninitialized, Teeth: map[int]*model.Tooth{}}, nil
	case err != nil:
		s.observe("get_current", err)
		s.degraded("get_current", err)
		return &View{State: model.StateUninitialized, Teeth: map[int]*model.Tooth{}, Degraded: true, Notice: noticeUnavailable}, nil
	}
	s.observe("get_current", nil)
	return s.buildView(o), nil
}

// buildView keys teeth by FDI. Rows without a valid FDI number cannot be placed
// on the chart and are dropped.
func (s *Service) buildView(o *model.Odontogram) *View {
	v := &View{State: model.StateActive, Odontogram: o, Teeth: make(map[int]*model.Tooth, len(o.Teeth))}
	kept := make([]*model.Tooth, 0, len(o.Teeth))
	for _, t := range o.Teeth {
		if _, err := ResolveFDI(t.FDI); err != nil {
			s.logger.Warn("dropping tooth row without a valid FDI number",
				"odontogram_id", o.ID, "tooth_id", t.ID, "fdi", t.FDI)
			continue
		}
		if _, dup := v.Teeth[t.FDI]; dup {
			s.logger.Warn("duplicate tooth row for FDI number", "odontogram_id", o.ID, "fdi", t.FDI)
			continue
		}
		v.Teeth[t.FDI] = t
		kept = append(kept, t)
	}
	SortByFDI(kept)
	o.Teeth = kept
	return v
}

// Initialize seeds a new odontogram with the 32 permanent teeth at SANO.
func (s *Service) Initialize(ctx context.Context, session model.SessionContext, req model.InitializeOdontogramRequest) (*View, error) {
	if err := validPatient(req.PatientID); err != nil {
		return nil, err
	}
	if req.Type == "" {
		req.Type = model.OdontogramPermanent
	}
	if !req.Type.Valid() {
		return nil, apperrors.NewValidation(fmt.Sprintf("unknown odontogram type %s", req.Type), nil)
	}

	existing, err := s.odontograms.GetByPatient(ctx, req.PatientID, session.CompanyID)
	switch {
	case err == nil && existing != nil:
		conflict := apperrors.NewConflict("patient already has an active odontogram")
		s.observe("initialize", conflict)
		return nil, conflict
	case err != nil && !apperrors.IsNotFound(err):
		s.observe("initialize", err)
		return nil, apperrors.WrapRemote("getOdontogram", err)
	}

	req.CompanyID = session.CompanyID
	req.CreatedBy = session.UserID
	req.Teeth = PermanentTeeth()

	id, err := s.odontograms.Initialize(ctx, &req)
	s.observe("initialize", err)
	if err != nil {
		return nil, apperrors.WrapRemote("initializeOdontogram", err)
	}
	s.logger.Info("odontogram initialized", "odontogram_id", id, "patient_id", req.PatientID)
	s.emit(ctx, model.EventOdontogramInitialized, map[string]interface{}{
		"odontograma_id": id,
		"paciente_id":    req.PatientID,
		"empresa_id":     req.CompanyID,
		"tipo":           req.Type,
	})

	return s.GetCurrent(ctx, session, req.PatientID)
}

// ChangeToothStatus writes a new estado. Writing the current estado again is allowed.
func (s *Service) ChangeToothStatus(ctx context.Context, session model.SessionContext, odontogramID int64, fdi int, estado, observaciones string) error {
	if odontogramID <= 0 {
		return apperrors.NewValidation("odontogram id is required", nil)
	}
	if _, err := ResolveFDI(fdi); err != nil {
		return err
	}
	status, ok := model.ParseToothStatus(estado)
	if !ok {
		return apperrors.NewValidation(fmt.Sprintf("unknown tooth status %s", estado), nil)
	}

	update := &model.ToothStatusUpdate{
		FDI:          fdi,
		Status:       status,
		Observations: strings.TrimSpace(observaciones),
		ModifiedBy:   session.UserID,
	}
	err := s.odontograms.UpdateToothStatus(ctx, odontogramID, update)
	s.observe("change_tooth_status", err)
	if err != nil {
		return apperrors.WrapRemote("updateToothStatus", err)
	}
	s.emit(ctx, model.EventToothStatusChanged, map[string]interface{}{
		"odontograma_id": odontogramID,
		"numero_fdi":     fdi,
		"estado":         status,
		"modificado_por": session.UserID,
	})
	return nil
}

// activeTooth loads the patient's odontogram and finds the tooth in it.
func (s *Service) activeTooth(ctx context.Context, session model.SessionContext, patientID, toothID int64) (*model.Odontogram, *model.Tooth, error) {
	if err := validPatient(patientID); err != nil {
		return nil, nil, err
	}
	o, err := s.odontograms.GetByPatient(ctx, patientID, session.CompanyID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, nil, apperrors.NewNotFound("odontogram", err)
		}
		return nil, nil, apperrors.WrapRemote("getOdontogram", err)
	}
	tooth := o.ToothByID(toothID)
	if tooth == nil {
		return nil, nil, apperrors.NewNotFound(fmt.Sprintf("tooth %d", toothID), nil)
	}
	return o, tooth, nil
}

// Registration is the outcome of recording a finding.
type Registration struct {
	Finding *model.Finding `json:"finding"`

	// NeedsSuggestions tells the caller to look up treatments before finishing.
	NeedsSuggestions bool `json:"needs_suggestions"`

	// Reset is set when the finding was SANO and the tooth went back to sound.
	Reset bool `json:"reset,omitempty"`
}

// RegisterFinding records a finding on a tooth of the patient's active odontogram.
// A SANO finding is handled by ResetToothToSound.
func (s *Service) RegisterFinding(ctx context.Context, session model.SessionContext, patientID, toothID int64, in model.FindingInput) (*Registration, error) {
	if typ, err := ParseFindingType(in.Type, in.Description); err == nil && typ == model.FindingSano {
		f, err := s.ResetToothToSound(ctx, session, patientID, toothID, in.Description)
		if err != nil {
			return nil, err
		}
		return &Registration{Finding: f, Reset: true}, nil
	}

	_, tooth, err := s.activeTooth(ctx, session, patientID, toothID)
	if err != nil {
		s.observe("register_finding", err)
		return nil, err
	}
	f, err := s.recorder.Build(tooth, in, session)
	if err != nil {
		return nil, err
	}

	created, err := s.findings.Create(ctx, f)
	s.observe("register_finding", err)
	if err != nil {
		return nil, apperrors.WrapRemote("registerFinding", err)
	}
	if created == nil {
		created = f
	}
	s.emit(ctx, model.EventFindingRegistered, created)

	return &Registration{Finding: created, NeedsSuggestions: NeedsSuggestions(created)}, nil
}

// ResetToothToSound records a SANO finding for the history and sets the tooth estado to SANO.
func (s *Service) ResetToothToSound(ctx context.Context, session model.SessionContext, patientID, toothID int64, observaciones string) (*model.Finding, error) {
	o, tooth, err := s.activeTooth(ctx, session, patientID, toothID)
	if err != nil {
		s.observe("reset_tooth", err)
		return nil, err
	}

	f, err := s.recorder.Build(tooth, model.FindingInput{
		Type:        string(model.FindingSano),
		Description: observaciones,
	}, session)
	if err != nil {
		return nil, err
	}
	created, err := s.findings.Create(ctx, f)
	if err != nil {
		s.observe("reset_tooth", err)
		return nil, apperrors.WrapRemote("registerFinding", err)
	}
	if created == nil {
		created = f
	}

	err = s.odontograms.UpdateToothStatus(ctx, o.ID, &model.ToothStatusUpdate{
		FDI:          tooth.FDI,
		Status:       model.ToothSano,
		Observations: strings.TrimSpace(observaciones),
		ModifiedBy:   session.UserID,
	})
	s.observe("reset_tooth", err)
	if err != nil {
		return nil, apperrors.WrapRemote("updateToothStatus", err)
	}
	s.emit(ctx, model.EventToothReset, map[string]interface{}{
		"odontograma_id": o.ID,
		"diente_id":      tooth.ID,
		"numero_fdi":     tooth.FDI,
		"hallazgo_id":    created.ID,
	})
	return created, nil
}

// FindingsForTooth lists a tooth's findings oldest first.
func (s *Service) FindingsForTooth(ctx context.Context, toothID int64) ([]*model.Finding, error) {
	items, err := s.findings.ListByTooth(ctx, toothID)
	if err != nil {
		return nil, apperrors.WrapRemote("getFindingsForTooth", err)
	}
	return InsertionOrder(items), nil
}

// FindingsView groups a patient's findings by FDI number.
type FindingsView struct {
	ByFDI    map[int][]*model.Finding `json:"items"`
	Degraded bool                     `json:"degraded,omitempty"`
	Notice   string                   `json:"notice,omitempty"`
}

// AllFindings aggregates findings across every tooth. Rows without an FDI number are dropped.
func (s *Service) AllFindings(ctx context.Context, session model.SessionContext, patientID int64) (*FindingsView, error) {
	if err := validPatient(patientID); err != nil {
		return nil, err
	}
	items, err := s.findings.ListByPatient(ctx, patientID, session.CompanyID)
	s.observe("all_findings", err)
	if err != nil {
		s.degraded("all_findings", err)
		return &FindingsView{ByFDI: map[int][]*model.Finding{}, Degraded: true, Notice: noticeFindings}, nil
	}

	out := &FindingsView{ByFDI: map[int][]*model.Finding{}}
	for _, f := range InsertionOrder(items) {
		if _, err := ResolveFDI(f.FDI); err != nil {
			s.logger.Warn("dropping finding without a valid FDI number", "finding_id", f.ID, "fdi", f.FDI)
			continue
		}
		out.ByFDI[f.FDI] = append(out.ByFDI[f.FDI], f)
	}
	return out, nil
}

// TeethWithFindings returns the teeth whose estado is not SANO, by FDI number.
func TeethWithFindings(v *View) []*model.Tooth {
	if v == nil {
		return nil
	}
	var out []*model.Tooth
	for _, t := range v.SortedTeeth() {
		if !isSound(t.Status) {
			out = append(out, t)
		}
	}
	return out
}

func isSound(st model.ToothStatus) bool {
	s := strings.ToUpper(strings.TrimSpace(string(st)))
	return s == "" || s == string(model.ToothSano)
}

func isPending(st model.AssignmentStatus) bool {
	s := strings.ToUpper(strings.TrimSpace(string(st)))
	return s == "" || s == string(model.AssignmentPending)
}

// AllPendingTreatments returns the pending plan with its totals; degraded on backend failure.
func (s *Service) AllPendingTreatments(ctx context.Context, session model.SessionContext, patientID int64) (*model.PlanSummary, error) {
	if err := validPatient(patientID); err != nil {
		return nil, err
	}
	items, err := s.treatments.ListByPatient(ctx, patientID, session.CompanyID)
	s.observe("pending_treatments", err)
	if err != nil {
		s.degraded("pending_treatments", err)
		return &model.PlanSummary{Items: []*model.TreatmentAssignment{}, Degraded: true, Notice: noticeTreatments}, nil
	}
	return PlanSummary(items), nil
}

// PlanSummary keeps pending assignments and totals their cost.
func PlanSummary(items []*model.TreatmentAssignment) *model.PlanSummary {
	out := &model.PlanSummary{Items: []*model.TreatmentAssignment{}}
	for _, a := range items {
		if !isPending(a.Status) {
			continue
		}
		out.Items = append(out.Items, a)
		out.TotalCost += a.Cost
	}
	out.Count = len(out.Items)
	return out
}

// ChartTooth is one tooth ready for rendering.
type ChartTooth struct {
	Tooth    *model.Tooth     `json:"diente"`
	Geometry Geometry         `json:"geometry"`
	Surfaces []SurfaceState   `json:"surfaces"`
	Findings []*model.Finding `json:"hallazgos"`
}

type Chart struct {
	State        model.OdontogramState `json:"state"`
	OdontogramID int64                 `json:"odontograma_id,omitempty"`
	Teeth        []ChartTooth          `json:"teeth"`
	Resolution   Resolution            `json:"surface_resolution"`
	Degraded     bool                  `json:"degraded,omitempty"`
	Notice       string                `json:"notice,omitempty"`
}

// Chart joins teeth, findings and geometry. Teeth and findings are matched by FDI number only.
func (s *Service) Chart(ctx context.Context, session model.SessionContext, patientID int64) (*Chart, error) {
	view, err := s.GetCurrent(ctx, session, patientID)
	if err != nil {
		return nil, err
	}
	out := &Chart{State: view.State, Teeth: []ChartTooth{}, Resolution: s.resolution, Degraded: view.Degraded, Notice: view.Notice}
	if view.State != model.StateActive {
		return out, nil
	}
	out.OdontogramID = view.Odontogram.ID

	findings, err := s.AllFindings(ctx, session, patientID)
	if err != nil {
		return nil, err
	}
	if findings.Degraded {
		out.Degraded = true
		out.Notice = findings.Notice
	}

	for _, t := range view.SortedTeeth() {
		g, _ := ResolveFDI(t.FDI)
		tf := findings.ByFDI[t.FDI]
		if tf == nil {
			tf = []*model.Finding{}
		}
		out.Teeth = append(out.Teeth, ChartTooth{
			Tooth:    t,
			Geometry: g,
			Surfaces: SurfaceMap(g, tf, s.resolution),
			Findings: tf,
		})
	}
	return out, nil
}

// SelectionInput is one pick from the chart selector: an estado, a note and
// optionally a catalog treatment to assign.
type SelectionInput struct {
	Estado        string `json:"estado" binding:"required"`
	Observaciones string `json:"observaciones"`
	CatalogID     int64  `json:"catalogo_id"`
	Force         bool   `json:"force"`
}

type SelectionResult struct {
	Finding       *model.Finding             `json:"hallazgo"`
	StatusUpdated bool                       `json:"estado_actualizado"`
	Assignment    *model.TreatmentAssignment `json:"tratamiento,omitempty"`
	View          *View                      `json:"odontograma"`
}

// ApplySelection registers the finding, updates the tooth estado, optionally
// assigns a treatment and reloads. The first failing step stops the flow.
func (s *Service) ApplySelection(ctx context.Context, session model.SessionContext, patientID, toothID int64, in SelectionInput) (*SelectionResult, error) {
	typ, err := ParseFindingType(in.Estado, "")
	if err != nil {
		return nil, err
	}
	o, tooth, err := s.activeTooth(ctx, session, patientID, toothID)
	if err != nil {
		return nil, err
	}
	out := &SelectionResult{}

	if typ == model.FindingSano {
		f, err := s.ResetToothToSound(ctx, session, patientID, toothID, in.Observaciones)
		if err != nil {
			return nil, err
		}
		out.Finding, out.StatusUpdated = f, true
	} else {
		reg, err := s.RegisterFinding(ctx, session, patientID, toothID, model.FindingInput{
			Type:        string(typ),
			Description: in.Observaciones,
		})
		if err != nil {
			return nil, err
		}
		out.Finding = reg.Finding

		// Finding types that are not chart states (GINGIVITIS, MOVILIDAD...) leave estado alone.
		if status, ok := model.ParseToothStatus(string(typ)); ok {
			if err := s.ChangeToothStatus(ctx, session, o.ID, tooth.FDI, string(status), in.Observaciones); err != nil {
				return nil, fmt.Errorf("finding recorded but tooth status not updated: %w", err)
			}
			out.StatusUpdated = true
		}

		if in.CatalogID > 0 {
			a, err := s.AssignTreatment(ctx, session, toothID, in.CatalogID, in.Force)
			if err != nil {
				return nil, fmt.Errorf("finding recorded but treatment not assigned: %w", err)
			}
			out.Assignment = a
		}
	}

	view, err := s.GetCurrent(ctx, session, patientID)
	if err != nil {
		return nil, err
	}
	out.View = view
	return out, nil
}

// AssignTreatment delegates to the engine and emits an event on success.
func (s *Service) AssignTreatment(ctx context.Context, session model.SessionContext, toothID, catalogID int64, force bool) (*model.TreatmentAssignment, error) {
	a, err := s.engine.Assign(ctx, session, toothID, catalogID, force)
	s.observe("assign_treatment", err)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, model.EventTreatmentAssigned, a)
	return a, nil
}

func (s *Service) RemoveTreatment(ctx context.Context, session model.SessionContext, assignmentID int64) error {
	err := s.engine.Remove(ctx, assignmentID)
	s.observe("remove_treatment", err)
	if err != nil {
		return err
	}
	s.emit(ctx, model.EventTreatmentRemoved, map[string]interface{}{
		"tratamiento_diente_id": assignmentID,
		"usuario_id":            session.UserID,
	})
	return nil
}

// HistorySuggestions drafts clinical-visit text from the live odontogram.
func (s *Service) HistorySuggestions(ctx context.Context, session model.SessionContext, patientID int64) (*HistoryDraft, error) {
	view, err := s.GetCurrent(ctx, session, patientID)
	if err != nil {
		return nil, err
	}
	plan, err := s.AllPendingTreatments(ctx, session, patientID)
	if err != nil {
		return nil, err
	}

	draft := GenerateSuggestions(view.SortedTeeth(), plan.Items)
	if view.Degraded || plan.Degraded {
		draft.Degraded = true
		draft.Notice = firstNonEmpty(view.Notice, plan.Notice)
	}
	return draft, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
