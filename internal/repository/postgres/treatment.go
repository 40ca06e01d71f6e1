package postgres

import (
	"context"
	"fmt"

	"github.com/jwalitptl/odontogram-api/internal/model"
	"github.com/jwalitptl/odontogram-api/internal/repository"
	apperrors "github.com/jwalitptl/odontogram-api/pkg/errors"
)

const assignmentColumns = `
	t.tratamiento_diente_id, t.diente_id, d.numero_fdi, t.catalogo_id, c.nombre, c.categoria,
	COALESCE(c.descripcion, '') AS descripcion, c.costo_base AS costo, t.estado,
	t.fecha_asignacion, t.doctor_id
`

type treatmentRepository struct {
	BaseRepository
}

func NewTreatmentRepository(base BaseRepository) repository.TreatmentRepository {
	return &treatmentRepository{base}
}

func (r *treatmentRepository) ListByTooth(ctx context.Context, toothID int64) ([]*model.TreatmentAssignment, error) {
	query := `SELECT` + assignmentColumns + `
		FROM odo_tratamientos_diente t
		JOIN odo_dientes d ON d.diente_id = t.diente_id
		JOIN odo_catalogo_tratamientos c ON c.catalogo_id = t.catalogo_id
		WHERE t.diente_id = $1
		ORDER BY t.fecha_asignacion DESC, t.tratamiento_diente_id DESC
	`
	var items []*model.TreatmentAssignment
	if err := r.db.SelectContext(ctx, &items, query, toothID); err != nil {
		return nil, fmt.Errorf("failed to list tooth treatments: %w", err)
	}
	return items, nil
}

// ListByPatient returns the pending plan of the patient's active odontogram.
func (r *treatmentRepository) ListByPatient(ctx context.Context, patientID, companyID int64) ([]*model.TreatmentAssignment, error) {
	query := `SELECT` + assignmentColumns + `
		FROM odo_tratamientos_diente t
		JOIN odo_dientes d ON d.diente_id = t.diente_id
		JOIN odo_odontogramas o ON o.odontograma_id = d.odontograma_id
		JOIN odo_catalogo_tratamientos c ON c.catalogo_id = t.catalogo_id
		WHERE o.paciente_id = $1
		AND ($2 = 0 OR o.empresa_id = $2)
		AND o.activo = 'S'
		AND t.estado = $3
		ORDER BY d.numero_fdi, t.fecha_asignacion
	`
	var items []*model.TreatmentAssignment
	if err := r.db.SelectContext(ctx, &items, query, patientID, companyID, model.AssignmentPending); err != nil {
		return nil, fmt.Errorf("failed to list patient treatments: %w", err)
	}
	return items, nil
}

func (r *treatmentRepository) Assign(ctx context.Context, toothID, catalogID, doctorID int64) (*model.TreatmentAssignment, error) {
	query := `
		INSERT INTO odo_tratamientos_diente (diente_id, catalogo_id, estado, fecha_asignacion, doctor_id)
		VALUES ($1, $2, $3, NOW(), $4)
		RETURNING tratamiento_diente_id, fecha_asignacion
	`
	a := &model.TreatmentAssignment{
		ToothID:   toothID,
		CatalogID: catalogID,
		Status:    model.AssignmentPending,
		DoctorID:  doctorID,
	}
	err := r.db.QueryRowxContext(ctx, query, toothID, catalogID, a.Status, doctorID).Scan(&a.ID, &a.AssignedAt)
	if err != nil {
		if pqCode(err) == pqForeignKeyViolation {
			return nil, apperrors.NewNotFound("tooth or catalog treatment", err)
		}
		return nil, fmt.Errorf("failed to assign treatment: %w", err)
	}
	return a, nil
}

func (r *treatmentRepository) Remove(ctx context.Context, assignmentID int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM odo_tratamientos_diente WHERE tratamiento_diente_id = $1`, assignmentID)
	if err != nil {
		return fmt.Errorf("failed to remove treatment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to remove treatment: %w", err)
	}
	if rows == 0 {
		return apperrors.NewNotFound("treatment", nil)
	}
	return nil
}
