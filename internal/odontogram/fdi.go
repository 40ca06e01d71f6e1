package odontogram

import (
	"sort"
	"strings"

	"github.com/jwalitptl/odontogram-api/internal/model"
	apperrors "github.com/jwalitptl/odontogram-api/pkg/errors"
)

// Surface is one of the five clinically relevant faces of a tooth.
type Surface string

const (
	SurfaceOclusal    Surface = "O"
	SurfaceMesial     Surface = "M"
	SurfaceDistal     Surface = "D"
	SurfaceVestibular Surface = "V"
	// SurfacePalatalLingual is the single stored code for the palatal (upper) or lingual (lower) face.
	SurfacePalatalLingual Surface = "PL"
)

// Surfaces in canonical order; stored surface lists follow this order.
var Surfaces = []Surface{SurfaceOclusal, SurfaceMesial, SurfaceDistal, SurfaceVestibular, SurfacePalatalLingual}

// ParseSurface accepts the stored codes plus the legacy P and L aliases.
func ParseSurface(s string) (Surface, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "O", "I":
		return SurfaceOclusal, true
	case "M":
		return SurfaceMesial, true
	case "D":
		return SurfaceDistal, true
	case "V", "B":
		return SurfaceVestibular, true
	case "PL", "P", "L", "P/L":
		return SurfacePalatalLingual, true
	}
	return "", false
}

func surfaceRank(s Surface) int {
	for i, v := range Surfaces {
		if v == s {
			return i
		}
	}
	return len(Surfaces)
}

// RenderPosition is where a surface is drawn on the five-region tooth glyph.
type RenderPosition string

const (
	PositionCenter RenderPosition = "center"
	PositionTop    RenderPosition = "top"
	PositionBottom RenderPosition = "bottom"
	PositionLeft   RenderPosition = "left"
	PositionRight  RenderPosition = "right"
)

// Geometry is the anatomical orientation derived from an FDI number.
type Geometry struct {
	FDI         int             `json:"fdi"`
	Quadrant    int             `json:"quadrant"`
	Position    int             `json:"position"`
	IsUpperArch bool            `json:"is_upper_arch"`
	IsLeftSide  bool            `json:"is_left_side"`
	Dentition   model.ToothType `json:"dentition"`
}

// ResolveFDI maps an FDI tooth number to its quadrant, arch and side.
func ResolveFDI(fdi int) (Geometry, error) {
	quadrant, position := fdi/10, fdi%10
	var dentition model.ToothType
	switch {
	case quadrant >= 1 && quadrant <= 4 && position >= 1 && position <= 8:
		dentition = model.ToothPermanent
	case quadrant >= 5 && quadrant <= 8 && position >= 1 && position <= 5:
		dentition = model.ToothDeciduous
	default:
		return Geometry{}, apperrors.NewInvalidToothNumber(fdi)
	}

	return Geometry{
		FDI:         fdi,
		Quadrant:    quadrant,
		Position:    position,
		IsUpperArch: quadrant == 1 || quadrant == 2 || quadrant == 5 || quadrant == 6,
		IsLeftSide:  quadrant == 2 || quadrant == 3 || quadrant == 6 || quadrant == 7,
		Dentition:   dentition,
	}, nil
}

// IsAnterior reports incisors and canines, whose occlusal face is the incisal edge.
func (g Geometry) IsAnterior() bool {
	return g.Position >= 1 && g.Position <= 3
}

// RenderPosition places a surface on the glyph. Mesial faces the midline, so it
// flips between left- and right-quadrant teeth.
func (g Geometry) RenderPosition(s Surface) RenderPosition {
	switch s {
	case SurfaceMesial:
		if g.IsLeftSide {
			return PositionRight
		}
		return PositionLeft
	case SurfaceDistal:
		if g.IsLeftSide {
			return PositionLeft
		}
		return PositionRight
	case SurfaceVestibular:
		if g.IsUpperArch {
			return PositionTop
		}
		return PositionBottom
	case SurfacePalatalLingual:
		if g.IsUpperArch {
			return PositionBottom
		}
		return PositionTop
	default:
		return PositionCenter
	}
}

// SurfaceAt is the inverse of RenderPosition.
func (g Geometry) SurfaceAt(p RenderPosition) Surface {
	for _, s := range Surfaces {
		if g.RenderPosition(s) == p {
			return s
		}
	}
	return SurfaceOclusal
}

// Label is the presentation name of a surface on this tooth.
func (g Geometry) Label(s Surface) string {
	switch s {
	case SurfaceOclusal:
		if g.IsAnterior() {
			return "Incisal"
		}
		return "Oclusal"
	case SurfaceMesial:
		return "Mesial"
	case SurfaceDistal:
		return "Distal"
	case SurfaceVestibular:
		return "Vestibular"
	case SurfacePalatalLingual:
		if g.IsUpperArch {
			return "Palatino"
		}
		return "Lingual"
	}
	return string(s)
}

// PermanentTeeth lists the 32 permanent FDI numbers ordered by quadrant and position.
func PermanentTeeth() []int {
	teeth := make([]int, 0, 32)
	for q := 1; q <= 4; q++ {
		for p := 1; p <= 8; p++ {
			teeth = append(teeth, q*10+p)
		}
	}
	return teeth
}

// SortByFDI orders teeth by quadrant, then position.
func SortByFDI(teeth []*model.Tooth) {
	sort.SliceStable(teeth, func(i, j int) bool { return teeth[i].FDI < teeth[j].FDI })
}
