package odontogram

import (
	"context"
	"strings"

	"github.com/jwalitptl/odontogram-api/internal/model"
	"github.com/jwalitptl/odontogram-api/internal/repository"
	apperrors "github.com/jwalitptl/odontogram-api/pkg/errors"
	"github.com/jwalitptl/odontogram-api/pkg/logger"
	"github.com/jwalitptl/odontogram-api/pkg/textnorm"
)

// Catalog categories treatments are grouped under.
const (
	CategoryOperatoria  = "OPERATORIA"
	CategoryEndodoncia  = "ENDODONCIA"
	CategoryPeriodoncia = "PERIODONCIA"
	CategoryCirugia     = "CIRUGIA"
	CategoryProtesis    = "PROTESIS"
)

var findingCategories = map[model.FindingType]string{
	model.FindingCaries:             CategoryOperatoria,
	model.FindingFractura:           CategoryOperatoria,
	model.FindingFracturado:         CategoryOperatoria,
	model.FindingEndodoncia:         CategoryEndodoncia,
	model.FindingPeriodontitis:      CategoryPeriodoncia,
	model.FindingGingivitis:         CategoryPeriodoncia,
	model.FindingExtraccionIndicada: CategoryCirugia,
	model.FindingAusente:            CategoryProtesis,
	model.FindingImplante:           CategoryProtesis,
	model.FindingCorona:             CategoryProtesis,
	model.FindingProtesis:           CategoryProtesis,
}

// CategoryForFinding returns the catalog category suggested for a finding type.
func CategoryForFinding(t model.FindingType) (string, bool) {
	c, ok := findingCategories[t]
	return c, ok
}

// Suggestions is the answer to a suggestion lookup. Degraded is set when the
// catalog could not be reached and the list is empty for that reason.
type Suggestions struct {
	FindingType model.FindingType         `json:"tipo_hallazgo"`
	Category    string                    `json:"categoria,omitempty"`
	Items       []*model.CatalogTreatment `json:"items"`
	Degraded    bool                      `json:"degraded,omitempty"`
	Notice      string                    `json:"notice,omitempty"`
}

// Engine looks up catalog treatments for findings and manages tooth assignments.
type Engine struct {
	catalog    repository.CatalogRepository
	treatments repository.TreatmentRepository
	logger     *logger.Logger
}

func NewEngine(catalog repository.CatalogRepository, treatments repository.TreatmentRepository, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{catalog: catalog, treatments: treatments, logger: log}
}

// Suggest never fails for lack of data: unmapped types and catalog outages both
// produce an empty list.
func (e *Engine) Suggest(ctx context.Context, findingType string) (*Suggestions, error) {
	if strings.TrimSpace(findingType) == "" {
		return nil, apperrors.NewValidation("finding type is required", nil)
	}
	t := model.FindingType(textnorm.Code(findingType))
	out := &Suggestions{FindingType: t, Items: []*model.CatalogTreatment{}}

	category, ok := CategoryForFinding(t)
	if !ok {
		return out, nil
	}
	out.Category = category

	items, err := e.catalog.SuggestedFor(ctx, t)
	if err != nil {
		e.logger.Warn("treatment suggestions unavailable", "finding_type", string(t), "error", err.Error())
		out.Degraded = true
		out.Notice = "No se pudieron cargar los tratamientos sugeridos"
		return out, nil
	}
	if items != nil {
		out.Items = items
	}
	return out, nil
}

// Assign creates a PENDIENTE assignment. Unless force is set, a pending
// assignment of the same catalog entry on the same tooth is a conflict.
func (e *Engine) Assign(ctx context.Context, session model.SessionContext, toothID, catalogID int64, force bool) (*model.TreatmentAssignment, error) {
	if toothID <= 0 {
		return nil, apperrors.NewValidation("tooth id is required", nil)
	}
	if catalogID <= 0 {
		return nil, apperrors.NewValidation("catalog treatment id is required", nil)
	}

	if !force {
		existing, err := e.treatments.ListByTooth(ctx, toothID)
		if err != nil {
			return nil, apperrors.WrapRemote("getTreatmentsForTooth", err)
		}
		for _, a := range existing {
			if a.CatalogID == catalogID && a.Status == model.AssignmentPending {
				return nil, apperrors.NewConflict("treatment already pending on this tooth")
			}
		}
	}

	a, err := e.treatments.Assign(ctx, toothID, catalogID, session.UserID)
	if err != nil {
		return nil, apperrors.WrapRemote("assignTreatment", err)
	}
	return a, nil
}

func (e *Engine) Remove(ctx context.Context, assignmentID int64) error {
	if assignmentID <= 0 {
		return apperrors.NewValidation("assignment id is required", nil)
	}
	if err := e.treatments.Remove(ctx, assignmentID); err != nil {
		return apperrors.WrapRemote("removeTreatment", err)
	}
	return nil
}

// ForTooth lists the assignments of one tooth.
func (e *Engine) ForTooth(ctx context.Context, toothID int64) ([]*model.TreatmentAssignment, error) {
	items, err := e.treatments.ListByTooth(ctx, toothID)
	if err != nil {
		return nil, apperrors.WrapRemote("getTreatmentsForTooth", err)
	}
	return items, nil
}
