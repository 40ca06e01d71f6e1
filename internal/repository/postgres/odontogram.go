package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/odontogram-api/internal/model"
	"github.com/jwalitptl/odontogram-api/internal/repository"
	apperrors "github.com/jwalitptl/odontogram-api/pkg/errors"
)

type odontogramRepository struct {
	BaseRepository
}

func NewOdontogramRepository(base BaseRepository) repository.OdontogramRepository {
	return &odontogramRepository{base}
}

func (r *odontogramRepository) GetByPatient(ctx context.Context, patientID, companyID int64) (*model.Odontogram, error) {
	query := `
		SELECT odontograma_id, paciente_id, empresa_id, tipo, fecha_creacion
		FROM odo_odontogramas
		WHERE paciente_id = $1
		AND ($2 = 0 OR empresa_id = $2)
		AND activo = 'S'
		ORDER BY fecha_creacion DESC, odontograma_id DESC
		LIMIT 1
	`
	var o model.Odontogram
	if err := r.db.GetContext(ctx, &o, query, patientID, companyID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("odontogram", nil)
		}
		return nil, fmt.Errorf("failed to get odontogram: %w", err)
	}

	teeth := `
		SELECT diente_id, odontograma_id, numero_fdi, estado, tipo_diente,
			COALESCE(observaciones, '') AS observaciones, fecha_modificacion
		FROM odo_dientes
		WHERE odontograma_id = $1
		ORDER BY numero_fdi
	`
	if err := r.db.SelectContext(ctx, &o.Teeth, teeth, o.ID); err != nil {
		return nil, fmt.Errorf("failed to list teeth: %w", err)
	}
	return &o, nil
}

func toothType(fdi int) model.ToothType {
	if fdi/10 >= 5 {
		return model.ToothDeciduous
	}
	return model.ToothPermanent
}

// Initialize creates the odontogram and its seed teeth in one transaction.
func (r *odontogramRepository) Initialize(ctx context.Context, req *model.InitializeOdontogramRequest) (int64, error) {
	var id int64
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO odo_odontogramas (paciente_id, empresa_id, tipo, creado_por, fecha_creacion, activo)
			VALUES ($1, $2, $3, $4, NOW(), 'S')
			RETURNING odontograma_id
		`
		if err := tx.QueryRowxContext(ctx, query, req.PatientID, req.CompanyID, req.Type, req.CreatedBy).Scan(&id); err != nil {
			if pqCode(err) == pqUniqueViolation {
				return apperrors.NewConflict("patient already has an active odontogram")
			}
			return fmt.Errorf("failed to create odontogram: %w", err)
		}

		stmt, err := tx.PreparexContext(ctx, `
			INSERT INTO odo_dientes (odontograma_id, numero_fdi, tipo_diente, estado, modificado_por)
			VALUES ($1, $2, $3, $4, $5)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare tooth insert: %w", err)
		}
		defer stmt.Close()

		for _, fdi := range req.Teeth {
			if _, err := stmt.ExecContext(ctx, id, fdi, toothType(fdi), model.ToothSano, req.CreatedBy); err != nil {
				return fmt.Errorf("failed to seed tooth %d: %w", fdi, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *odontogramRepository) UpdateToothStatus(ctx context.Context, odontogramID int64, update *model.ToothStatusUpdate) error {
	query := `
		UPDATE odo_dientes
		SET estado = $1, observaciones = $2, modificado_por = $3, fecha_modificacion = NOW()
		WHERE odontograma_id = $4 AND numero_fdi = $5
	`
	result, err := r.db.ExecContext(ctx, query,
		update.Status,
		update.Observations,
		update.ModifiedBy,
		odontogramID,
		update.FDI,
	)
	if err != nil {
		return fmt.Errorf("failed to update tooth: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update tooth: %w", err)
	}
	if rows == 0 {
		return apperrors.NewNotFound("tooth", nil)
	}
	return nil
}
