package overlay

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func TestNew_Defaults(t *testing.T) {
	o := New("abc", now)
	assert.Equal(t, "overlay", o.Name)
	assert.Equal(t, KindText, o.Type)
	assert.Equal(t, 200, o.Width)
	assert.Equal(t, 50, o.Height)
	assert.Equal(t, 1, o.Z)
	assert.NotNil(t, o.Meta)
	assert.Nil(t, o.UpdatedAt)
	require.NoError(t, o.Validate())

	o.Touch(now.Add(time.Minute))
	require.NotNil(t, o.UpdatedAt)
	assert.Equal(t, now.Add(time.Minute), *o.UpdatedAt)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Overlay)
		want   error
	}{
		{"empty name", func(o *Overlay) { o.Name = "" }, ErrInvalidName},
		{"unknown type", func(o *Overlay) { o.Type = "video" }, ErrInvalidType},
		{"zero width", func(o *Overlay) { o.Width = 0 }, ErrInvalidGeometry},
		{"far off-screen", func(o *Overlay) { o.X = -100000 }, ErrInvalidGeometry},
		{"negative z", func(o *Overlay) { o.Z = -1 }, ErrInvalidGeometry},
		{"bad color", func(o *Overlay) { o.Color = "red" }, ErrInvalidStyle},
		{"zero font", func(o *Overlay) { o.FontSize = 0 }, ErrInvalidStyle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := New("id", now)
			tt.mutate(o)
			err := o.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), err)
			assert.True(t, IsValidationError(err))
		})
	}
}

func TestValidate_ReportsAll(t *testing.T) {
	o := New("id", now)
	o.Name = ""
	o.Color = "nope"
	err := o.Validate()
	assert.ErrorIs(t, err, ErrInvalidName)
	assert.ErrorIs(t, err, ErrInvalidStyle)
}

func TestValidate_ImageAndNegativePosition(t *testing.T) {
	o := New("id", now)
	o.Type = KindImage
	o.ImageURL = "/static/uploads/x.png"
	o.X, o.Y = -20, -5
	o.Color = "#0f0"
	assert.NoError(t, o.Validate())
	assert.False(t, IsValidationError(errors.New("other")))
}
