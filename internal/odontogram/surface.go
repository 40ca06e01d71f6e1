package odontogram

import (
	"sort"
	"strings"

	"github.com/jwalitptl/odontogram-api/internal/model"
	apperrors "github.com/jwalitptl/odontogram-api/pkg/errors"
)

// SurfaceStatus is the derived display state of one tooth surface.
type SurfaceStatus string

const (
	SurfaceSound       SurfaceStatus = "SOUND"
	SurfaceCaries      SurfaceStatus = "CARIES"
	SurfaceRestoration SurfaceStatus = "RESTORATION"
	SurfaceOther       SurfaceStatus = "OTHER"
)

// Resolution decides which finding wins when several cover the same surface.
type Resolution string

const (
	// ResolveFirst keeps the first finding in insertion order.
	ResolveFirst Resolution = "first"
	// ResolveLatest lets the most recently recorded finding win.
	ResolveLatest Resolution = "latest"
)

// ParseResolution defaults to ResolveFirst for anything unrecognised.
func ParseResolution(s string) Resolution {
	if Resolution(strings.ToLower(strings.TrimSpace(s))) == ResolveLatest {
		return ResolveLatest
	}
	return ResolveFirst
}

// StatusForFinding maps a finding type onto the surface colour it implies.
func StatusForFinding(t model.FindingType) SurfaceStatus {
	switch t {
	case model.FindingSano:
		return SurfaceSound
	case model.FindingCaries:
		return SurfaceCaries
	case model.FindingObturacion, model.FindingObturado, model.FindingCorona:
		return SurfaceRestoration
	default:
		return SurfaceOther
	}
}

// ParseSurfaceList reads a stored comma-joined surface list. Unknown codes are skipped.
func ParseSurfaceList(s string) []Surface {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	seen := make(map[Surface]bool, len(Surfaces))
	var out []Surface
	for _, part := range strings.Split(s, ",") {
		sf, ok := ParseSurface(part)
		if !ok || seen[sf] {
			continue
		}
		seen[sf] = true
		out = append(out, sf)
	}
	sortSurfaces(out)
	return out
}

// NormalizeSurfaces validates user-supplied codes and returns them deduplicated in canonical order.
func NormalizeSurfaces(codes []string) ([]Surface, error) {
	seen := make(map[Surface]bool, len(Surfaces))
	out := make([]Surface, 0, len(codes))
	for _, c := range codes {
		if strings.TrimSpace(c) == "" {
			continue
		}
		sf, ok := ParseSurface(c)
		if !ok {
			return nil, apperrors.NewValidation("unknown surface code "+strings.TrimSpace(c), nil)
		}
		if seen[sf] {
			continue
		}
		seen[sf] = true
		out = append(out, sf)
	}
	sortSurfaces(out)
	return out, nil
}

// JoinSurfaces produces the stored comma-joined form.
func JoinSurfaces(surfaces []Surface) string {
	parts := make([]string, len(surfaces))
	for i, s := range surfaces {
		parts[i] = string(s)
	}
	return strings.Join(parts, ",")
}

func sortSurfaces(s []Surface) {
	sort.Slice(s, func(i, j int) bool { return surfaceRank(s[i]) < surfaceRank(s[j]) })
}

func covers(f *model.Finding, s Surface) bool {
	for _, sf := range ParseSurfaceList(f.Surfaces) {
		if sf == s {
			return true
		}
	}
	return false
}

// InsertionOrder returns findings oldest first. Backends list newest first, so
// rows are re-sorted by id when every row carries one.
func InsertionOrder(findings []*model.Finding) []*model.Finding {
	out := make([]*model.Finding, len(findings))
	copy(out, findings)
	for _, f := range out {
		if f.ID <= 0 {
			return out
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ResolveSurface scans findings (already in insertion order) for the one that decides the
// surface. With ResolveFirst the first covering finding wins even when a later one is
// clinically current.
func ResolveSurface(findings []*model.Finding, s Surface, r Resolution) SurfaceStatus {
	if r == ResolveLatest {
		for i := len(findings) - 1; i >= 0; i-- {
			if findings[i].Type != model.FindingSano && covers(findings[i], s) {
				return StatusForFinding(findings[i].Type)
			}
		}
		return SurfaceSound
	}
	for _, f := range findings {
		if f.Type != model.FindingSano && covers(f, s) {
			return StatusForFinding(f.Type)
		}
	}
	return SurfaceSound
}

// SurfaceState is one surface of a tooth ready for rendering.
type SurfaceState struct {
	Surface  Surface        `json:"surface"`
	Label    string         `json:"label"`
	Position RenderPosition `json:"position"`
	Status   SurfaceStatus  `json:"status"`
}

// SurfaceMap resolves every surface of a tooth.
func SurfaceMap(g Geometry, findings []*model.Finding, r Resolution) []SurfaceState {
	ordered := InsertionOrder(findings)
	out := make([]SurfaceState, 0, len(Surfaces))
	for _, s := range Surfaces {
		out = append(out, SurfaceState{
			Surface:  s,
			Label:    g.Label(s),
			Position: g.RenderPosition(s),
			Status:   ResolveSurface(ordered, s, r),
		})
	}
	return out
}
