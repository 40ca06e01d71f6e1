package odontogram

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jwalitptl/odontogram-api/internal/model"
)

const planPreviewLimit = 5

var examLabels = map[string]string{
	"CARIES":              "Lesión cariosa",
	"FRACTURA":            "Fractura dental",
	"FRACTURADO":          "Pieza fracturada",
	"AUSENTE":             "Pieza ausente",
	"ENDODONCIA":          "Tratamiento endodóntico previo",
	"CORONA":              "Corona protésica",
	"IMPLANTE":            "Implante dental",
	"OBTURADO":            "Restauración presente",
	"PERIODONTITIS":       "Enfermedad periodontal",
	"GINGIVITIS":          "Inflamación gingival",
	"EXTRACCION_INDICADA": "Indicación de extracción",
}

// Only these estados produce diagnosis text; the rest are left out.
var diagnosisLabels = map[string]string{
	"CARIES":        "Caries dental",
	"FRACTURA":      "Traumatismo dental",
	"PERIODONTITIS": "Enfermedad periodontal",
	"GINGIVITIS":    "Gingivitis",
}

// HistoryDraft is editable pre-fill text for a new clinical visit. Nothing here is persisted.
type HistoryDraft struct {
	ExamenClinico   string `json:"examen_clinico"`
	Diagnostico     string `json:"diagnostico"`
	PlanTratamiento string `json:"plan_tratamiento"`
	Degraded        bool   `json:"degraded,omitempty"`
	Notice          string `json:"notice,omitempty"`
}

// GenerateSuggestions drafts exam, diagnosis and plan text from the teeth that are
// not SANO and the pending treatments. Teeth are grouped by estado in first-seen order.
func GenerateSuggestions(teeth []*model.Tooth, pending []*model.TreatmentAssignment) *HistoryDraft {
	var (
		order  []string
		byCode = map[string][]string{}
		count  int
	)
	for _, t := range teeth {
		if t == nil || isSound(t.Status) {
			continue
		}
		code := strings.ToUpper(strings.TrimSpace(string(t.Status)))
		if _, seen := byCode[code]; !seen {
			order = append(order, code)
		}
		byCode[code] = append(byCode[code], strconv.Itoa(t.FDI))
		count++
	}

	draft := &HistoryDraft{}
	if count > 0 {
		lines := make([]string, 0, len(order))
		var diagnoses []string
		for _, code := range order {
			label, ok := examLabels[code]
			if !ok {
				label = code
			}
			lines = append(lines, fmt.Sprintf("- %s en pieza(s): %s", label, strings.Join(byCode[code], ", ")))
			if d, ok := diagnosisLabels[code]; ok {
				diagnoses = append(diagnoses, d)
			}
		}
		draft.ExamenClinico = "Hallazgos del odontograma:\n" + strings.Join(lines, "\n")
		if len(diagnoses) > 0 {
			draft.Diagnostico = fmt.Sprintf("%s - %d pieza(s) afectada(s)", strings.Join(diagnoses, ", "), count)
		}
	}

	if len(pending) > 0 {
		n := len(pending)
		if n > planPreviewLimit {
			n = planPreviewLimit
		}
		lines := make([]string, 0, n)
		for _, a := range pending[:n] {
			lines = append(lines, fmt.Sprintf("- %s en pieza #%d", a.Name, a.FDI))
		}
		draft.PlanTratamiento = "Tratamientos pendientes del odontograma:\n" + strings.Join(lines, "\n")
		if len(pending) > planPreviewLimit {
			draft.PlanTratamiento += fmt.Sprintf("\n- Y %d tratamiento(s) más...", len(pending)-planPreviewLimit)
		}
	}
	return draft
}
