package overlay

import (
	"fmt"
	"time"
)

// Kind is what an overlay renders.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

func (k Kind) Valid() bool { return k == KindText || k == KindImage }

// Defaults applied on create.
const (
	DefaultName     = "overlay"
	DefaultKind     = KindText
	DefaultWidth    = 200
	DefaultHeight   = 50
	DefaultZ        = 1
	DefaultFontSize = 24
	DefaultColor    = "#ffffff"
)

// Overlay is a positioned text or image element drawn over the player.
// Geometry is in player pixels; Z orders overlapping overlays.
type Overlay struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Type      Kind           `json:"type"`
	Content   string         `json:"content"`
	X         int            `json:"x"`
	Y         int            `json:"y"`
	Width     int            `json:"width"`
	Height    int            `json:"height"`
	Z         int            `json:"z"`
	FontSize  int            `json:"fontSize"`
	Color     string         `json:"color"`
	Rotation  int            `json:"rotation"`
	ImageURL  string         `json:"imageUrl"`
	Meta      map[string]any `json:"meta"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt *time.Time     `json:"updated_at,omitempty"`
}

// New returns an overlay with every default applied.
func New(id string, now time.Time) *Overlay {
	return &Overlay{
		ID:        id,
		Name:      DefaultName,
		Type:      DefaultKind,
		Width:     DefaultWidth,
		Height:    DefaultHeight,
		Z:         DefaultZ,
		FontSize:  DefaultFontSize,
		Color:     DefaultColor,
		Meta:      map[string]any{},
		CreatedAt: now.UTC(),
	}
}

// Touch stamps UpdatedAt.
func (o *Overlay) Touch(now time.Time) {
	t := now.UTC()
	o.UpdatedAt = &t
}

func (o *Overlay) String() string {
	return fmt.Sprintf("overlay(%s %s %q)", o.ID, o.Type, o.Name)
}
