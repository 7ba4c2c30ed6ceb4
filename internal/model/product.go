package model

import (
	"path"
	"strings"
)

// Flavor identifies which catalog a product belongs to.
type Flavor string

const (
	FlavorFood     Flavor = "food"
	FlavorBeauty   Flavor = "beauty"
	FlavorPetfood  Flavor = "petfood"
	FlavorProducts Flavor = "products"
)

// ParseFlavor maps a raw string to a Flavor, defaulting to food.
func ParseFlavor(s string) Flavor {
	switch Flavor(s) {
	case FlavorBeauty, FlavorPetfood, FlavorProducts:
		return Flavor(s)
	default:
		return FlavorFood
	}
}

// ProductID uniquely identifies a product across catalog flavors.
type ProductID struct {
	Barcode string `json:"barcode"`
	Flavor  Flavor `json:"flavor"`
}

func (p ProductID) String() string {
	return string(p.Flavor) + ":" + p.Barcode
}

// ImageIDFromPath extracts the numeric image ID from a canonical source
// image path ("/325/342/7901/24/3.jpg" -> "3").
func ImageIDFromPath(source string) string {
	if source == "" {
		return ""
	}
	base := path.Base(source)
	return strings.TrimSuffix(base, path.Ext(base))
}
