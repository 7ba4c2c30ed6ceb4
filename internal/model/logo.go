package model

// LogoAnnotation is a logo crop detected in a product image, awaiting
// human labeling in the annotation tool.
type LogoAnnotation struct {
	ID          int64      `json:"id"`
	Barcode     string     `json:"barcode"`
	Flavor      Flavor     `json:"flavor"`
	SourceImage string     `json:"source_image"`
	BoundingBox [4]float64 `json:"bounding_box"` // relative (x_min, y_min, x_max, y_max)
}

// ProductID returns the catalog identity the logo was detected on.
func (l *LogoAnnotation) ProductID() ProductID {
	return ProductID{Barcode: l.Barcode, Flavor: l.Flavor}
}

// LogoLabel is a candidate classification for a logo crop.
type LogoLabel struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

func (l LogoLabel) String() string {
	if l.Value == "" {
		return l.Type
	}
	return l.Type + " - " + l.Value
}
