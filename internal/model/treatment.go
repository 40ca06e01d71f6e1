package model

import "time"

type AssignmentStatus string

const (
	AssignmentPending    AssignmentStatus = "PENDIENTE"
	AssignmentInProgress AssignmentStatus = "EN_PROGRESO"
	AssignmentCompleted  AssignmentStatus = "COMPLETADO"
	AssignmentCancelled  AssignmentStatus = "CANCELADO"
)

// CatalogTreatment is a read-only priced procedure definition.
type CatalogTreatment struct {
	ID                 int64   `json:"id" db:"catalogo_id"`
	Code               string  `json:"codigo" db:"codigo"`
	Name               string  `json:"nombre" db:"nombre"`
	Description        string  `json:"descripcion" db:"descripcion"`
	Category           string  `json:"categoria" db:"categoria"`
	BaseCost           float64 `json:"costo_base" db:"costo_base"`
	EstimatedMinutes   int     `json:"duracion_estimada" db:"duracion_estimada"`
	RequiresAnesthesia YesNo   `json:"requiere_anestesia" db:"requiere_anestesia"`
}

// TreatmentAssignment links a catalog treatment to a tooth.
type TreatmentAssignment struct {
	ID          int64            `json:"id" db:"tratamiento_diente_id"`
	ToothID     int64            `json:"diente_id" db:"diente_id"`
	FDI         int              `json:"numero_fdi" db:"numero_fdi"`
	CatalogID   int64            `json:"catalogo_id" db:"catalogo_id"`
	Name        string           `json:"nombre" db:"nombre"`
	Category    string           `json:"categoria" db:"categoria"`
	Description string           `json:"descripcion" db:"descripcion"`
	Cost        float64          `json:"costo" db:"costo"`
	Status      AssignmentStatus `json:"estado" db:"estado"`
	AssignedAt  time.Time        `json:"fecha_asignacion" db:"fecha_asignacion"`
	DoctorID    int64            `json:"doctor_id" db:"doctor_id"`
	DoctorName  string           `json:"doctor_nombre,omitempty" db:"doctor_nombre"`
}

// PlanSummary totals the pending treatment plan of a patient.
type PlanSummary struct {
	Items     []*TreatmentAssignment `json:"items"`
	Count     int                    `json:"count"`
	TotalCost float64                `json:"total"`
	Degraded  bool                   `json:"degraded,omitempty"`
	Notice    string                 `json:"notice,omitempty"`
}
