package odontogram

import (
	"strings"
	"time"

	"github.com/jwalitptl/odontogram-api/internal/model"
	apperrors "github.com/jwalitptl/odontogram-api/pkg/errors"
	"github.com/jwalitptl/odontogram-api/pkg/textnorm"
)

// Recorder validates finding input and builds the finding to persist.
// It never writes anything itself.
type Recorder struct {
	now func() time.Time
}

func NewRecorder() *Recorder {
	return &Recorder{now: time.Now}
}

// ParseFindingType folds user text ("Obturación", "extracción indicada") into a finding type.
// A blank type with a description is recorded as OTRO.
func ParseFindingType(raw, description string) (model.FindingType, error) {
	if strings.TrimSpace(raw) == "" {
		if strings.TrimSpace(description) == "" {
			return "", apperrors.NewValidation("finding type or description is required", nil)
		}
		return model.FindingOtro, nil
	}
	t := model.FindingType(textnorm.Code(raw))
	if !t.Valid() {
		return "", apperrors.NewValidation("unknown finding type "+strings.TrimSpace(raw), nil)
	}
	return t, nil
}

// ParseSeverity defaults to LEVE.
func ParseSeverity(raw string) (model.Severity, error) {
	if strings.TrimSpace(raw) == "" {
		return model.SeverityLeve, nil
	}
	s := model.Severity(textnorm.Code(raw))
	if !s.Valid() {
		return "", apperrors.NewValidation("unknown severity "+strings.TrimSpace(raw), nil)
	}
	return s, nil
}

// Build turns input into a finding for the given tooth. A nil tooth means it is
// not part of the active odontogram.
func (r *Recorder) Build(tooth *model.Tooth, in model.FindingInput, session model.SessionContext) (*model.Finding, error) {
	if tooth == nil {
		return nil, apperrors.NewNotFound("tooth", nil)
	}

	typ, err := ParseFindingType(in.Type, in.Description)
	if err != nil {
		return nil, err
	}
	surfaces, err := NormalizeSurfaces(in.Surfaces)
	if err != nil {
		return nil, err
	}
	severity, err := ParseSeverity(in.Severity)
	if err != nil {
		return nil, err
	}

	return &model.Finding{
		ToothID:           tooth.ID,
		OdontogramID:      tooth.OdontogramID,
		FDI:               tooth.FDI,
		Type:              typ,
		Surfaces:          JoinSurfaces(surfaces),
		Severity:          severity,
		Description:       strings.TrimSpace(in.Description),
		RequiresTreatment: in.RequiresTreatment && typ != model.FindingSano,
		DetectedAt:        r.now().UTC(),
		DoctorID:          session.UserID,
		CompanyID:         session.CompanyID,
	}, nil
}

// NeedsSuggestions reports whether the caller should look up treatments before
// closing the interaction.
func NeedsSuggestions(f *model.Finding) bool {
	return f != nil && bool(f.RequiresTreatment) && f.Type != model.FindingSano
}
