package ords

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jwalitptl/odontogram-api/internal/model"
	"github.com/jwalitptl/odontogram-api/internal/repository"
	apperrors "github.com/jwalitptl/odontogram-api/pkg/errors"
)

// assignmentRow carries the legacy tipo_tratamiento column used when nombre is absent.
type assignmentRow struct {
	model.TreatmentAssignment
	TreatmentType string `json:"tipo_tratamiento"`
}

type treatmentRepository struct {
	client *Client
	now    func() time.Time
}

func NewTreatmentRepository(client *Client) repository.TreatmentRepository {
	return &treatmentRepository{client: client, now: time.Now}
}

func (r *treatmentRepository) list(ctx context.Context, op, path string, companyID int64) ([]*model.TreatmentAssignment, error) {
	resp, err := r.client.call(ctx, op, http.MethodGet, path, companyQuery(companyID), nil)
	if err != nil {
		return nil, err
	}
	var rows []assignmentRow
	if err := resp.items(&rows); err != nil {
		return nil, apperrors.NewRemote(op, err)
	}
	out := make([]*model.TreatmentAssignment, 0, len(rows))
	for i := range rows {
		a := rows[i].TreatmentAssignment
		if a.Name == "" {
			a.Name = rows[i].TreatmentType
		}
		if a.CatalogID == 0 {
			a.CatalogID = catalogIDFromDescription(a.Description)
		}
		if a.Status == "" {
			a.Status = model.AssignmentPending
		}
		out = append(out, &a)
	}
	return out, nil
}

// catalogMarker precedes the catalog id in the description the backend writes on assign.
const catalogMarker = "Cat:"

// catalogIDFromDescription recovers the catalog id from "... - Cat:<id>".
// Rows without the marker return 0.
func catalogIDFromDescription(description string) int64 {
	i := strings.LastIndex(description, catalogMarker)
	if i < 0 {
		return 0
	}
	id, err := strconv.ParseInt(strings.TrimSpace(description[i+len(catalogMarker):]), 10, 64)
	if err != nil || id <= 0 {
		return 0
	}
	return id
}

func (r *treatmentRepository) ListByTooth(ctx context.Context, toothID int64) ([]*model.TreatmentAssignment, error) {
	items, err := r.list(ctx, "getTreatmentsForTooth", idPath("odontograma/diente/%d/tratamientos", toothID), 0)
	for _, a := range items {
		if a.ToothID == 0 {
			a.ToothID = toothID
		}
	}
	return items, err
}

func (r *treatmentRepository) ListByPatient(ctx context.Context, patientID, companyID int64) ([]*model.TreatmentAssignment, error) {
	return r.list(ctx, "getTreatmentsForPatient", idPath("odontograma/tratamientos/paciente/%d", patientID), companyID)
}

func (r *treatmentRepository) Assign(ctx context.Context, toothID, catalogID, doctorID int64) (*model.TreatmentAssignment, error) {
	resp, err := r.client.call(ctx, "assignTreatment", http.MethodPost,
		idPath("odontograma/diente/%d/tratamiento", toothID), nil, map[string]interface{}{
			"catalogo_id": catalogID,
			"doctor_id":   doctorID,
		})
	if err != nil {
		return nil, err
	}
	return &model.TreatmentAssignment{
		ID:         resp.idField("tratamiento_id"),
		ToothID:    toothID,
		CatalogID:  catalogID,
		Status:     model.AssignmentPending,
		AssignedAt: r.now().UTC(),
		DoctorID:   doctorID,
	}, nil
}

func (r *treatmentRepository) Remove(ctx context.Context, assignmentID int64) error {
	_, err := r.client.call(ctx, "removeTreatment", http.MethodDelete,
		idPath("odontograma/tratamiento/%d", assignmentID), nil, nil)
	return err
}
