package overlay

import (
	"errors"
	"fmt"
	"regexp"
)

var (
	ErrInvalidName     = errors.New("invalid name")
	ErrInvalidType     = errors.New("invalid type")
	ErrInvalidContent  = errors.New("invalid content")
	ErrInvalidGeometry = errors.New("invalid geometry")
	ErrInvalidStyle    = errors.New("invalid style")
	ErrInvalidImageURL = errors.New("invalid imageUrl")
)

const (
	maxNameLen     = 100
	maxContentLen  = 4096
	maxImageURLLen = 2048
	maxCoord       = 16384
	maxFontSize    = 512
	maxZ           = 1000
)

var colorRe = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)

// Validate checks every field. All problems are reported, each wrapping
// one of the ErrInvalid* sentinels.
func (o *Overlay) Validate() error {
	var errs []error

	// name: minLength 1, maxLength 100
	if len(o.Name) < 1 || len(o.Name) > maxNameLen {
		errs = append(errs, fmt.Errorf("%w: must be 1..%d characters", ErrInvalidName, maxNameLen))
	}

	if !o.Type.Valid() {
		errs = append(errs, fmt.Errorf("%w: %q (want text or image)", ErrInvalidType, o.Type))
	}

	if len(o.Content) > maxContentLen {
		errs = append(errs, fmt.Errorf("%w: at most %d characters", ErrInvalidContent, maxContentLen))
	}

	// geometry: positions may be negative (partially off-screen), sizes may not
	if o.X < -maxCoord || o.X > maxCoord || o.Y < -maxCoord || o.Y > maxCoord {
		errs = append(errs, fmt.Errorf("%w: x/y must be within ±%d", ErrInvalidGeometry, maxCoord))
	}
	if o.Width <= 0 || o.Width > maxCoord || o.Height <= 0 || o.Height > maxCoord {
		errs = append(errs, fmt.Errorf("%w: width/height must be 1..%d", ErrInvalidGeometry, maxCoord))
	}
	if o.Z < 0 || o.Z > maxZ {
		errs = append(errs, fmt.Errorf("%w: z must be 0..%d", ErrInvalidGeometry, maxZ))
	}
	if o.Rotation < -360 || o.Rotation > 360 {
		errs = append(errs, fmt.Errorf("%w: rotation must be within ±360", ErrInvalidGeometry))
	}

	if o.FontSize <= 0 || o.FontSize > maxFontSize {
		errs = append(errs, fmt.Errorf("%w: fontSize must be 1..%d", ErrInvalidStyle, maxFontSize))
	}
	if !colorRe.MatchString(o.Color) {
		errs = append(errs, fmt.Errorf("%w: color %q is not a hex color", ErrInvalidStyle, o.Color))
	}

	if len(o.ImageURL) > maxImageURLLen {
		errs = append(errs, fmt.Errorf("%w: at most %d characters", ErrInvalidImageURL, maxImageURLLen))
	}

	return errors.Join(errs...)
}

// IsValidationError reports whether err came from Validate.
func IsValidationError(err error) bool {
	for _, s := range []error{ErrInvalidName, ErrInvalidType, ErrInvalidContent, ErrInvalidGeometry, ErrInvalidStyle, ErrInvalidImageURL} {
		if errors.Is(err, s) {
			return true
		}
	}
	return false
}
