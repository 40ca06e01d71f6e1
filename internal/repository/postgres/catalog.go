package postgres

import (
	"context"
	"fmt"

	"github.com/jwalitptl/odontogram-api/internal/model"
	"github.com/jwalitptl/odontogram-api/internal/odontogram"
	"github.com/jwalitptl/odontogram-api/internal/repository"
)

type catalogRepository struct {
	BaseRepository
}

func NewCatalogRepository(base BaseRepository) repository.CatalogRepository {
	return &catalogRepository{base}
}

// SuggestedFor lists active catalog entries of the category mapped to the finding type.
func (r *catalogRepository) SuggestedFor(ctx context.Context, t model.FindingType) ([]*model.CatalogTreatment, error) {
	category, ok := odontogram.CategoryForFinding(t)
	if !ok {
		return []*model.CatalogTreatment{}, nil
	}

	query := `
		SELECT catalogo_id, codigo, nombre, COALESCE(descripcion, '') AS descripcion, categoria,
			costo_base, duracion_estimada, requiere_anestesia
		FROM odo_catalogo_tratamientos
		WHERE categoria = $1 AND activo = 'S'
		ORDER BY nombre
	`
	var items []*model.CatalogTreatment
	if err := r.db.SelectContext(ctx, &items, query, category); err != nil {
		return nil, fmt.Errorf("failed to list catalog treatments: %w", err)
	}
	return items, nil
}

// NewBackend wires every repository to one database.
func NewBackend(base BaseRepository) repository.Backend {
	return repository.Backend{
		Odontograms: NewOdontogramRepository(base),
		Findings:    NewFindingRepository(base),
		Treatments:  NewTreatmentRepository(base),
		Catalog:     NewCatalogRepository(base),
	}
}
