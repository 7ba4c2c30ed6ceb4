// Package geometry provides pure bounding-box math for product images.
// Boxes follow the (y_min, x_min, y_max, x_max) pixel convention used by
// the detection pipelines; relative boxes are (x_min, y_min, x_max, y_max)
// fractions of the full image size.
package geometry

import "github.com/rotisserie/eris"

// BoundingBox delimits a rectangular image region in absolute pixel
// coordinates.
type BoundingBox struct {
	YMin float64
	XMin float64
	YMax float64
	XMax float64
}

// FromRelative scales a normalized [x_min, y_min, x_max, y_max] box by
// the full image pixel size.
func FromRelative(rel [4]float64, width, height int) BoundingBox {
	w, h := float64(width), float64(height)
	return BoundingBox{
		YMin: rel[1] * h,
		XMin: rel[0] * w,
		YMax: rel[3] * h,
		XMax: rel[2] * w,
	}
}

// Rotate maps the box into the coordinate space of the image rotated
// clockwise by angle degrees. width and height are the dimensions of the
// unrotated image; angle must be a multiple of 90 (negative and >=360
// values are normalized first).
func (b BoundingBox) Rotate(width, height, angle int) (BoundingBox, error) {
	a := ((angle % 360) + 360) % 360
	if a%90 != 0 {
		return BoundingBox{}, eris.Errorf("geometry: rotation angle %d is not a multiple of 90", angle)
	}

	w, h := float64(width), float64(height)
	switch a {
	case 90:
		return BoundingBox{YMin: b.XMin, XMin: h - b.YMax, YMax: b.XMax, XMax: h - b.YMin}, nil
	case 180:
		return BoundingBox{YMin: h - b.YMax, XMin: w - b.XMax, YMax: h - b.YMin, XMax: w - b.XMin}, nil
	case 270:
		return BoundingBox{YMin: w - b.XMax, XMin: b.YMin, YMax: w - b.XMin, XMax: b.YMax}, nil
	default:
		return b, nil
	}
}
