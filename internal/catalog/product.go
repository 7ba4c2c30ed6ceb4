package catalog

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Product is the subset of catalog product fields the engine reads.
type Product struct {
	Code           string               `json:"code"`
	Lang           string               `json:"lang"`
	CategoriesTags []string             `json:"categories_tags"`
	Images         map[string]ImageMeta `json:"images"`
}

// HasCategory reports whether the product already carries the category tag.
func (p *Product) HasCategory(tag string) bool {
	for _, t := range p.CategoriesTags {
		if t == tag {
			return true
		}
	}
	return false
}

// Image returns the image metadata stored under the given key. Keys are
// raw upload IDs ("1", "2") or selection keys ("front_fr", "nutrition_en").
func (p *Product) Image(key string) (ImageMeta, bool) {
	meta, ok := p.Images[key]
	return meta, ok
}

// ImageMeta describes one catalog image entry. The catalog serializes
// numeric fields inconsistently (number, string, or null), so the flex
// types absorb all three.
type ImageMeta struct {
	ImgID FlexString `json:"imgid"`
	Rev   FlexString `json:"rev"`
	Angle FlexString `json:"angle"`

	X1 *FlexFloat `json:"x1"`
	Y1 *FlexFloat `json:"y1"`
	X2 *FlexFloat `json:"x2"`
	Y2 *FlexFloat `json:"y2"`

	Sizes map[string]ImageSize `json:"sizes"`
}

// FullSize returns the full-resolution dimensions of the image.
func (m ImageMeta) FullSize() (width, height int, ok bool) {
	size, found := m.Sizes["full"]
	if !found || size.W <= 0 || size.H <= 0 {
		return 0, 0, false
	}
	return size.W, size.H, true
}

// Cropped reports whether the selection carries a real crop box. The
// catalog stores -1 (or nothing) on all four coordinates for uncropped
// selections.
func (m ImageMeta) Cropped() bool {
	for _, c := range []*FlexFloat{m.X1, m.Y1, m.X2, m.Y2} {
		if c.Float64() > 0 {
			return true
		}
	}
	return false
}

// ImageSize holds pixel dimensions for one rendition.
type ImageSize struct {
	W int `json:"w"`
	H int `json:"h"`
}

// FlexString decodes a JSON string or number into a string.
type FlexString string

func (s *FlexString) UnmarshalJSON(data []byte) error {
	v := strings.Trim(string(data), `"`)
	if v == "null" {
		v = ""
	}
	*s = FlexString(v)
	return nil
}

func (s FlexString) String() string {
	return string(s)
}

// FlexFloat decodes a JSON number or numeric string.
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	v := strings.Trim(string(data), `"`)
	if v == "" || v == "null" {
		*f = -1
		return nil
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return eris.Wrapf(err, "catalog: parse number %q", v)
	}
	*f = FlexFloat(parsed)
	return nil
}

// Float64 returns the value, or -1 when the field was absent.
func (f *FlexFloat) Float64() float64 {
	if f == nil {
		return -1
	}
	return float64(*f)
}
