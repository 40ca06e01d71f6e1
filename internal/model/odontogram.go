package model

import (
	"strings"
	"time"
)

// ToothStatus is the single summary estado of a tooth.
type ToothStatus string

const (
	ToothSano               ToothStatus = "SANO"
	ToothCaries             ToothStatus = "CARIES"
	ToothObturado           ToothStatus = "OBTURADO"
	ToothAusente            ToothStatus = "AUSENTE"
	ToothCorona             ToothStatus = "CORONA"
	ToothEndodoncia         ToothStatus = "ENDODONCIA"
	ToothImplante           ToothStatus = "IMPLANTE"
	ToothProtesis           ToothStatus = "PROTESIS"
	ToothFracturado         ToothStatus = "FRACTURADO"
	ToothExtraccionIndicada ToothStatus = "EXTRACCION_INDICADA"
)

// ToothStatuses lists every estado in chart legend order.
var ToothStatuses = []ToothStatus{
	ToothSano, ToothCaries, ToothObturado, ToothAusente, ToothCorona,
	ToothEndodoncia, ToothImplante, ToothProtesis, ToothFracturado, ToothExtraccionIndicada,
}

func (s ToothStatus) Valid() bool {
	for _, v := range ToothStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// ParseToothStatus accepts any casing and surrounding whitespace.
func ParseToothStatus(s string) (ToothStatus, bool) {
	st := ToothStatus(strings.ToUpper(strings.TrimSpace(s)))
	return st, st.Valid()
}

type ToothType string

const (
	ToothPermanent ToothType = "PERMANENTE"
	ToothDeciduous ToothType = "TEMPORAL"
)

type OdontogramType string

const (
	OdontogramPermanent OdontogramType = "PERMANENTE"
	OdontogramDeciduous OdontogramType = "TEMPORAL"
	OdontogramMixed     OdontogramType = "MIXTO"
)

func (t OdontogramType) Valid() bool {
	switch t {
	case OdontogramPermanent, OdontogramDeciduous, OdontogramMixed:
		return true
	}
	return false
}

// OdontogramState is the per-patient lifecycle state.
type OdontogramState string

const (
	StateUninitialized OdontogramState = "UNINITIALIZED"
	StateActive        OdontogramState = "ACTIVE"
)

type Tooth struct {
	ID           int64       `json:"diente_id" db:"diente_id"`
	OdontogramID int64       `json:"odontograma_id" db:"odontograma_id"`
	FDI          int         `json:"numero_fdi" db:"numero_fdi"`
	Status       ToothStatus `json:"estado" db:"estado"`
	Type         ToothType   `json:"tipo_diente" db:"tipo_diente"`
	Observations string      `json:"observaciones" db:"observaciones"`
	UpdatedAt    *time.Time  `json:"fecha_modificacion,omitempty" db:"fecha_modificacion"`
}

// Odontogram is the aggregate root for one (patient, version) pair.
type Odontogram struct {
	ID        int64          `json:"odontograma_id" db:"odontograma_id"`
	PatientID int64          `json:"paciente_id" db:"paciente_id"`
	CompanyID int64          `json:"empresa_id" db:"empresa_id"`
	Type      OdontogramType `json:"tipo" db:"tipo"`
	CreatedAt time.Time      `json:"fecha_creacion" db:"fecha_creacion"`
	Teeth     []*Tooth       `json:"dientes"`
}

// ToothByFDI returns the tooth with the given FDI number, or nil.
func (o *Odontogram) ToothByFDI(fdi int) *Tooth {
	if o == nil {
		return nil
	}
	for _, t := range o.Teeth {
		if t.FDI == fdi {
			return t
		}
	}
	return nil
}

// ToothByID returns the tooth with the given row id, or nil.
func (o *Odontogram) ToothByID(id int64) *Tooth {
	if o == nil {
		return nil
	}
	for _, t := range o.Teeth {
		if t.ID == id {
			return t
		}
	}
	return nil
}

type InitializeOdontogramRequest struct {
	PatientID int64          `json:"paciente_id" binding:"required,gt=0"`
	Type      OdontogramType `json:"tipo"`
	CompanyID int64          `json:"empresa_id"`
	CreatedBy int64          `json:"creado_por"`

	// Teeth are the FDI numbers to seed, all at SANO.
	Teeth []int `json:"-"`
}

type ToothStatusUpdate struct {
	FDI          int         `json:"numero_fdi"`
	Status       ToothStatus `json:"estado"`
	Observations string      `json:"observaciones"`
	ModifiedBy   int64       `json:"modificado_por"`
}

// SessionContext carries the current user and company explicitly through every core call.
type SessionContext struct {
	UserID    int64 `json:"usuario_id"`
	CompanyID int64 `json:"empresa_id"`
}
