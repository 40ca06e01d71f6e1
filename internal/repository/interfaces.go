package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/odontogram-api/internal/model"
)

// All repository interfaces in one file
type (
	// OdontogramRepository reads and seeds the per-patient chart.
	// GetByPatient returns a NotFound error when the patient has no odontogram yet.
	OdontogramRepository interface {
		GetByPatient(ctx context.Context, patientID, companyID int64) (*model.Odontogram, error)
		Initialize(ctx context.Context, req *model.InitializeOdontogramRequest) (int64, error)
		UpdateToothStatus(ctx context.Context, odontogramID int64, update *model.ToothStatusUpdate) error
	}

	// FindingRepository stores immutable findings; there is no update or delete.
	FindingRepository interface {
		ListByTooth(ctx context.Context, toothID int64) ([]*model.Finding, error)
		ListByPatient(ctx context.Context, patientID, companyID int64) ([]*model.Finding, error)
		Create(ctx context.Context, finding *model.Finding) (*model.Finding, error)
	}

	TreatmentRepository interface {
		ListByTooth(ctx context.Context, toothID int64) ([]*model.TreatmentAssignment, error)
		ListByPatient(ctx context.Context, patientID, companyID int64) ([]*model.TreatmentAssignment, error)
		Assign(ctx context.Context, toothID, catalogID, doctorID int64) (*model.TreatmentAssignment, error)
		Remove(ctx context.Context, assignmentID int64) error
	}

	// CatalogRepository is the read-only treatment catalog.
	CatalogRepository interface {
		SuggestedFor(ctx context.Context, findingType model.FindingType) ([]*model.CatalogTreatment, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingEventsWithLock(ctx context.Context, tx *sqlx.Tx, limit int) ([]*model.OutboxEvent, error)
		CountPending(ctx context.Context) (int, error)
		BeginTx(ctx context.Context) (*sqlx.Tx, error)
		UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, status model.OutboxStatus, errorMessage *string, retryAt *time.Time) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)

// Backend groups the repositories one clinical records backend provides.
type Backend struct {
	Odontograms OdontogramRepository
	Findings    FindingRepository
	Treatments  TreatmentRepository
	Catalog     CatalogRepository
}
