package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// FindingType is the tipo_hallazgo of a clinical finding.
type FindingType string

const (
	FindingCaries        FindingType = "CARIES"
	FindingFractura      FindingType = "FRACTURA"
	FindingDesgaste      FindingType = "DESGASTE"
	FindingMovilidad     FindingType = "MOVILIDAD"
	FindingGingivitis    FindingType = "GINGIVITIS"
	FindingPeriodontitis FindingType = "PERIODONTITIS"
	FindingSensibilidad  FindingType = "SENSIBILIDAD"
	FindingAbsceso       FindingType = "ABSCESO"
	FindingOtro          FindingType = "OTRO"

	// Chart-state findings recorded from the tooth selector.
	FindingObturacion         FindingType = "OBTURACION"
	FindingObturado           FindingType = "OBTURADO"
	FindingCorona             FindingType = "CORONA"
	FindingEndodoncia         FindingType = "ENDODONCIA"
	FindingImplante           FindingType = "IMPLANTE"
	FindingProtesis           FindingType = "PROTESIS"
	FindingFracturado         FindingType = "FRACTURADO"
	FindingAusente            FindingType = "AUSENTE"
	FindingExtraccionIndicada FindingType = "EXTRACCION_INDICADA"

	// FindingSano resets a tooth to healthy; it never enters the suggestion flow.
	FindingSano FindingType = "SANO"
)

// ClinicalFindingTypes are the finding types offered by the finding form.
var ClinicalFindingTypes = []FindingType{
	FindingCaries, FindingFractura, FindingDesgaste, FindingMovilidad, FindingGingivitis,
	FindingPeriodontitis, FindingSensibilidad, FindingAbsceso, FindingOtro,
}

var chartFindingTypes = []FindingType{
	FindingObturacion, FindingObturado, FindingCorona, FindingEndodoncia, FindingImplante,
	FindingProtesis, FindingFracturado, FindingAusente, FindingExtraccionIndicada,
}

func (t FindingType) Valid() bool {
	if t == FindingSano {
		return true
	}
	for _, v := range ClinicalFindingTypes {
		if v == t {
			return true
		}
	}
	for _, v := range chartFindingTypes {
		if v == t {
			return true
		}
	}
	return false
}

type Severity string

const (
	SeverityLeve     Severity = "LEVE"
	SeverityModerada Severity = "MODERADA"
	SeveritySevera   Severity = "SEVERA"
)

func (s Severity) Valid() bool {
	return s == SeverityLeve || s == SeverityModerada || s == SeveritySevera
}

// YesNo is a boolean carried as the "S"/"N" flag used by the clinical backend.
type YesNo bool

func (b YesNo) String() string {
	if b {
		return "S"
	}
	return "N"
}

func (b YesNo) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.String())
}

func (b *YesNo) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v, err := parseYesNo(raw)
	if err != nil {
		return err
	}
	*b = v
	return nil
}

func (b YesNo) Value() (driver.Value, error) {
	return b.String(), nil
}

func (b *YesNo) Scan(src interface{}) error {
	if src == nil {
		*b = false
		return nil
	}
	if raw, ok := src.([]byte); ok {
		src = string(raw)
	}
	v, err := parseYesNo(src)
	if err != nil {
		return err
	}
	*b = v
	return nil
}

func parseYesNo(raw interface{}) (YesNo, error) {
	switch v := raw.(type) {
	case nil:
		return false, nil
	case bool:
		return YesNo(v), nil
	case float64:
		return v != 0, nil
	case int64:
		return v != 0, nil
	case string:
		switch strings.ToUpper(strings.TrimSpace(v)) {
		case "S", "SI", "Y", "YES", "TRUE", "1":
			return true, nil
		case "N", "NO", "FALSE", "0", "":
			return false, nil
		}
	}
	return false, fmt.Errorf("invalid S/N flag %v", raw)
}

// Finding is one immutable clinical observation (hallazgo) on a tooth.
type Finding struct {
	ID                int64       `json:"hallazgo_id" db:"hallazgo_id"`
	ToothID           int64       `json:"diente_id" db:"diente_id"`
	OdontogramID      int64       `json:"odontograma_id,omitempty" db:"odontograma_id"`
	FDI               int         `json:"numero_fdi,omitempty" db:"numero_fdi"`
	Type              FindingType `json:"tipo_hallazgo" db:"tipo_hallazgo"`
	Surfaces          string      `json:"superficies_afectadas" db:"superficies_afectadas"`
	Severity          Severity    `json:"severidad" db:"severidad"`
	Description       string      `json:"descripcion" db:"descripcion"`
	RequiresTreatment YesNo       `json:"requiere_tratamiento" db:"requiere_tratamiento"`
	DetectedAt        time.Time   `json:"fecha_deteccion" db:"fecha_deteccion"`
	DoctorID          int64       `json:"doctor_id" db:"doctor_id"`
	DoctorName        string      `json:"doctor_nombre,omitempty" db:"doctor_nombre"`
	CompanyID         int64       `json:"empresa_id,omitempty" db:"empresa_id"`
}

// FindingInput is the unvalidated form a caller submits to the recorder.
type FindingInput struct {
	Type              string   `json:"tipo_hallazgo"`
	Surfaces          []string `json:"superficies"`
	Severity          string   `json:"severidad"`
	Description       string   `json:"descripcion"`
	RequiresTreatment YesNo    `json:"requiere_tratamiento"`
}
