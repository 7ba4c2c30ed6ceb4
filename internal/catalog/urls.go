package catalog

import (
	"net/url"
	"strconv"

	"github.com/pantrybase/insight-cli/internal/geometry"
	"github.com/pantrybase/insight-cli/internal/model"
)

// WorldURL returns the catalog web base URL for a flavor. The food
// catalog lives at the root domain; other flavors are subdomains.
func WorldURL(flavor model.Flavor, root string) string {
	if flavor == "" || flavor == model.FlavorFood {
		return "https://world." + root
	}
	return "https://world." + string(flavor) + "." + root
}

// ProductURL returns the public product page URL.
func ProductURL(pid model.ProductID, root string) string {
	return WorldURL(pid.Flavor, root) + "/product/" + url.PathEscape(pid.Barcode)
}

// ProductEditURL returns the product edit form URL.
func ProductEditURL(pid model.ProductID, root string) string {
	return WorldURL(pid.Flavor, root) + "/cgi/product.pl?type=edit&code=" + url.QueryEscape(pid.Barcode)
}

// ImageURL returns the static host URL for a source image path
// (e.g. "/301/762/042/2003/4.jpg").
func ImageURL(root, sourceImage string) string {
	return "https://images." + root + "/images/products" + sourceImage
}

// CropImageURL returns a crop-service URL rendering the given region of
// an image.
func CropImageURL(root, imageURL string, box geometry.BoundingBox) string {
	q := url.Values{}
	q.Set("image_url", imageURL)
	q.Set("y_min", formatCoord(box.YMin))
	q.Set("x_min", formatCoord(box.XMin))
	q.Set("y_max", formatCoord(box.YMax))
	q.Set("x_max", formatCoord(box.XMax))
	return "https://insights." + root + "/api/v1/images/crop?" + q.Encode()
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
