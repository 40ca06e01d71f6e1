package ords

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jwalitptl/odontogram-api/internal/model"
	"github.com/jwalitptl/odontogram-api/internal/repository"
	apperrors "github.com/jwalitptl/odontogram-api/pkg/errors"
)

// odontogramRow is one row of the odontogram query: odontogram columns joined with one tooth.
type odontogramRow struct {
	OdontogramID   int64      `json:"odontograma_id"`
	PatientID      int64      `json:"paciente_id"`
	CompanyID      int64      `json:"empresa_id"`
	Type           string     `json:"tipo"`
	CreatedAt      *time.Time `json:"fecha_creacion"`
	ToothID        int64      `json:"diente_id"`
	FDI            int        `json:"numero_fdi"`
	ToothType      string     `json:"tipo_diente"`
	Status         string     `json:"estado"`
	Observations   string     `json:"observaciones"`
	ToothObs       string     `json:"diente_obs"`
	ToothUpdatedAt *time.Time `json:"diente_fecha_modificacion"`

	// Some deployments return the odontogram with its teeth nested.
	Teeth []*model.Tooth `json:"dientes"`
}

type odontogramRepository struct {
	client *Client
}

func NewOdontogramRepository(client *Client) repository.OdontogramRepository {
	return &odontogramRepository{client: client}
}

func (r *odontogramRepository) GetByPatient(ctx context.Context, patientID, companyID int64) (*model.Odontogram, error) {
	resp, err := r.client.call(ctx, "getOdontogram", http.MethodGet,
		idPath("odontograma/paciente/%d", patientID), companyQuery(companyID), nil)
	if err != nil {
		return nil, err
	}

	var rows []odontogramRow
	if err := resp.items(&rows); err != nil {
		return nil, apperrors.NewRemote("getOdontogram", err)
	}
	if len(rows) == 0 {
		return nil, apperrors.NewNotFound("odontogram", nil)
	}
	return assemble(rows), nil
}

func assemble(rows []odontogramRow) *model.Odontogram {
	head := rows[0]
	o := &model.Odontogram{
		ID:        head.OdontogramID,
		PatientID: head.PatientID,
		CompanyID: head.CompanyID,
		Type:      model.OdontogramType(head.Type),
	}
	if head.CreatedAt != nil {
		o.CreatedAt = *head.CreatedAt
	}
	if len(head.Teeth) > 0 {
		for _, t := range head.Teeth {
			if t.OdontogramID == 0 {
				t.OdontogramID = o.ID
			}
		}
		o.Teeth = head.Teeth
		return o
	}

	for _, row := range rows {
		if row.ToothID == 0 {
			continue
		}
		obs := row.ToothObs
		if obs == "" {
			obs = row.Observations
		}
		o.Teeth = append(o.Teeth, &model.Tooth{
			ID:           row.ToothID,
			OdontogramID: o.ID,
			FDI:          row.FDI,
			Status:       model.ToothStatus(row.Status),
			Type:         model.ToothType(row.ToothType),
			Observations: obs,
			UpdatedAt:    row.ToothUpdatedAt,
		})
	}
	return o
}

func (r *odontogramRepository) Initialize(ctx context.Context, req *model.InitializeOdontogramRequest) (int64, error) {
	resp, err := r.client.call(ctx, "initializeOdontogram", http.MethodPost, "odontograma", nil, map[string]interface{}{
		"paciente_id": req.PatientID,
		"empresa_id":  req.CompanyID,
		"tipo":        req.Type,
		"creado_por":  req.CreatedBy,
	})
	if err != nil {
		return 0, err
	}
	id := resp.idField("odontograma_id")
	if id == 0 {
		return 0, apperrors.NewRemote("initializeOdontogram", fmt.Errorf("backend returned no odontogram id"))
	}
	return id, nil
}

func (r *odontogramRepository) UpdateToothStatus(ctx context.Context, odontogramID int64, update *model.ToothStatusUpdate) error {
	_, err := r.client.call(ctx, "updateToothStatus", http.MethodPut,
		idPath("odontograma/%d/diente", odontogramID), nil, update)
	return err
}
