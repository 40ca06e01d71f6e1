package ords

import (
	"context"
	"net/http"
	"net/url"

	"github.com/jwalitptl/odontogram-api/internal/model"
	"github.com/jwalitptl/odontogram-api/internal/repository"
	apperrors "github.com/jwalitptl/odontogram-api/pkg/errors"
)

type catalogRepository struct {
	client *Client
}

func NewCatalogRepository(client *Client) repository.CatalogRepository {
	return &catalogRepository{client: client}
}

func (r *catalogRepository) SuggestedFor(ctx context.Context, t model.FindingType) ([]*model.CatalogTreatment, error) {
	resp, err := r.client.call(ctx, "getSuggestedTreatments", http.MethodGet,
		"tratamientos/sugeridos/"+url.PathEscape(string(t)), nil, nil)
	if err != nil {
		return nil, err
	}
	var items []*model.CatalogTreatment
	if err := resp.items(&items); err != nil {
		return nil, apperrors.NewRemote("getSuggestedTreatments", err)
	}
	return items, nil
}

// NewBackend wires every repository to one client.
func NewBackend(client *Client) repository.Backend {
	return repository.Backend{
		Odontograms: NewOdontogramRepository(client),
		Findings:    NewFindingRepository(client),
		Treatments:  NewTreatmentRepository(client),
		Catalog:     NewCatalogRepository(client),
	}
}
