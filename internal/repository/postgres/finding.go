package postgres

import (
	"context"
	"fmt"

	"github.com/jwalitptl/odontogram-api/internal/model"
	"github.com/jwalitptl/odontogram-api/internal/repository"
	apperrors "github.com/jwalitptl/odontogram-api/pkg/errors"
)

const findingColumns = `
	h.hallazgo_id, h.diente_id, d.odontograma_id, d.numero_fdi, h.tipo_hallazgo,
	COALESCE(h.superficies_afectadas, '') AS superficies_afectadas, h.severidad,
	COALESCE(h.descripcion, '') AS descripcion, h.requiere_tratamiento, h.fecha_deteccion,
	h.doctor_id, h.empresa_id
`

type findingRepository struct {
	BaseRepository
}

func NewFindingRepository(base BaseRepository) repository.FindingRepository {
	return &findingRepository{base}
}

// ListByTooth returns findings newest first.
func (r *findingRepository) ListByTooth(ctx context.Context, toothID int64) ([]*model.Finding, error) {
	query := `SELECT` + findingColumns + `
		FROM odo_hallazgos h
		JOIN odo_dientes d ON d.diente_id = h.diente_id
		WHERE h.diente_id = $1
		ORDER BY h.fecha_deteccion DESC, h.hallazgo_id DESC
	`
	var findings []*model.Finding
	if err := r.db.SelectContext(ctx, &findings, query, toothID); err != nil {
		return nil, fmt.Errorf("failed to list findings: %w", err)
	}
	return findings, nil
}

func (r *findingRepository) ListByPatient(ctx context.Context, patientID, companyID int64) ([]*model.Finding, error) {
	query := `SELECT` + findingColumns + `
		FROM odo_hallazgos h
		JOIN odo_dientes d ON d.diente_id = h.diente_id
		JOIN odo_odontogramas o ON o.odontograma_id = d.odontograma_id
		WHERE o.paciente_id = $1
		AND ($2 = 0 OR o.empresa_id = $2)
		AND o.activo = 'S'
		ORDER BY d.numero_fdi, h.fecha_deteccion DESC, h.hallazgo_id DESC
	`
	var findings []*model.Finding
	if err := r.db.SelectContext(ctx, &findings, query, patientID, companyID); err != nil {
		return nil, fmt.Errorf("failed to list patient findings: %w", err)
	}
	return findings, nil
}

func (r *findingRepository) Create(ctx context.Context, f *model.Finding) (*model.Finding, error) {
	query := `
		INSERT INTO odo_hallazgos (
			diente_id, tipo_hallazgo, superficies_afectadas, severidad, descripcion,
			requiere_tratamiento, fecha_deteccion, doctor_id, empresa_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING hallazgo_id
	`
	created := *f
	err := r.db.QueryRowxContext(ctx, query,
		f.ToothID,
		f.Type,
		f.Surfaces,
		f.Severity,
		f.Description,
		f.RequiresTreatment,
		f.DetectedAt,
		f.DoctorID,
		f.CompanyID,
	).Scan(&created.ID)
	if err != nil {
		if pqCode(err) == pqForeignKeyViolation {
			return nil, apperrors.NewNotFound("tooth", err)
		}
		return nil, fmt.Errorf("failed to create finding: %w", err)
	}
	return &created, nil
}
