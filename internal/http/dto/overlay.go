package dto

import (
	"errors"
	"fmt"

	"github.com/edirooss/rtsp2hls/internal/domain/overlay"
)

// OverlayPatch is the request body of
//   - POST  /api/overlays       (applied on top of the defaults)
//   - PUT   /api/overlays/{id}  (applied on top of the stored overlay)
//   - PATCH /api/overlays/{id}  (same as PUT)
//
// Merge-patch semantics (RFC 7386): omitted fields keep their value.
// Explicit null resets nullable fields and is rejected for the others.
type OverlayPatch struct {
	Name     W[string]         `json:"name"`     // optional; string
	Type     W[string]         `json:"type"`     // optional; "text" | "image"
	Content  W[string]         `json:"content"`  // optional; string | null
	X        W[int]            `json:"x"`        // optional; int
	Y        W[int]            `json:"y"`        // optional; int
	Width    W[int]            `json:"width"`    // optional; int
	Height   W[int]            `json:"height"`   // optional; int
	Z        W[int]            `json:"z"`        // optional; int
	FontSize W[int]            `json:"fontSize"` // optional; int
	Color    W[string]         `json:"color"`    // optional; string
	Rotation W[int]            `json:"rotation"` // optional; int | null
	ImageURL W[string]         `json:"imageUrl"` // optional; string | null
	Meta     W[map[string]any] `json:"meta"`     // optional; object | null
}

// Apply merges the patch into o (in memory). Validation is the caller's job.
func (p *OverlayPatch) Apply(o *overlay.Overlay) error {
	var errs []error
	notNull := func(name string, set, null bool) bool {
		if set && null {
			errs = append(errs, fmt.Errorf("%s cannot be null", name))
			return false
		}
		return set
	}

	if notNull("name", p.Name.Set, p.Name.Null) {
		o.Name = p.Name.V
	}
	if notNull("type", p.Type.Set, p.Type.Null) {
		o.Type = overlay.Kind(p.Type.V)
	}
	if p.Content.Set {
		o.Content = p.Content.V // null → ""
	}
	if notNull("x", p.X.Set, p.X.Null) {
		o.X = p.X.V
	}
	if notNull("y", p.Y.Set, p.Y.Null) {
		o.Y = p.Y.V
	}
	if notNull("width", p.Width.Set, p.Width.Null) {
		o.Width = p.Width.V
	}
	if notNull("height", p.Height.Set, p.Height.Null) {
		o.Height = p.Height.V
	}
	if notNull("z", p.Z.Set, p.Z.Null) {
		o.Z = p.Z.V
	}
	if notNull("fontSize", p.FontSize.Set, p.FontSize.Null) {
		o.FontSize = p.FontSize.V
	}
	if notNull("color", p.Color.Set, p.Color.Null) {
		o.Color = p.Color.V
	}
	if p.Rotation.Set {
		o.Rotation = p.Rotation.V // null → 0
	}
	if p.ImageURL.Set {
		o.ImageURL = p.ImageURL.V // null → ""
	}
	if p.Meta.Set {
		o.Meta = p.Meta.V
		if o.Meta == nil {
			o.Meta = map[string]any{}
		}
	}

	return errors.Join(errs...)
}
