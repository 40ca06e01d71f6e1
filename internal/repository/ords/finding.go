package ords

import (
	"context"
	"net/http"

	"github.com/jwalitptl/odontogram-api/internal/model"
	"github.com/jwalitptl/odontogram-api/internal/repository"
	apperrors "github.com/jwalitptl/odontogram-api/pkg/errors"
)

type findingRepository struct {
	client *Client
}

func NewFindingRepository(client *Client) repository.FindingRepository {
	return &findingRepository{client: client}
}

func (r *findingRepository) ListByTooth(ctx context.Context, toothID int64) ([]*model.Finding, error) {
	resp, err := r.client.call(ctx, "getFindingsForTooth", http.MethodGet,
		idPath("odontograma/diente/%d/hallazgos", toothID), nil, nil)
	if err != nil {
		return nil, err
	}
	var items []*model.Finding
	if err := resp.items(&items); err != nil {
		return nil, apperrors.NewRemote("getFindingsForTooth", err)
	}
	return items, nil
}

func (r *findingRepository) ListByPatient(ctx context.Context, patientID, companyID int64) ([]*model.Finding, error) {
	resp, err := r.client.call(ctx, "getAllFindings", http.MethodGet,
		idPath("odontograma/paciente/%d/hallazgos-all", patientID), companyQuery(companyID), nil)
	if err != nil {
		return nil, err
	}
	var items []*model.Finding
	if err := resp.items(&items); err != nil {
		return nil, apperrors.NewRemote("getAllFindings", err)
	}
	return items, nil
}

// Create posts the finding. The backend answers with an envelope, so the
// returned finding is the input plus whatever id the backend reported.
func (r *findingRepository) Create(ctx context.Context, f *model.Finding) (*model.Finding, error) {
	resp, err := r.client.call(ctx, "registerFinding", http.MethodPost, "odontograma/hallazgo", nil, f)
	if err != nil {
		return nil, err
	}
	created := *f
	if id := resp.idField("hallazgo_id"); id > 0 {
		created.ID = id
	}
	return &created, nil
}
