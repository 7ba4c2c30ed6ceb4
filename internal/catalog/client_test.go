package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pantrybase/insight-cli/internal/geometry"
	"github.com/pantrybase/insight-cli/internal/model"
)

func foodID(barcode string) model.ProductID {
	return model.ProductID{Barcode: barcode, Flavor: model.FlavorFood}
}

func TestGetProduct_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v2/product/3017620422003", r.URL.Path)
		assert.Equal(t, "categories_tags,images,lang", r.URL.Query().Get("fields"))
		assert.Equal(t, "insight-cli/1.0", r.Header.Get("User-Agent"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"status": 1,
			"product": {
				"code": "3017620422003",
				"lang": "fr",
				"categories_tags": ["en:breakfasts", "en:spreads"],
				"images": {
					"4": {"sizes": {"full": {"w": 1000, "h": 2000}, "400": {"w": 200, "h": 400}}},
					"front_fr": {"imgid": "4", "rev": 7, "x1": "-1", "y1": null, "x2": "-1", "y2": "-1",
						"sizes": {"full": {"w": 1000, "h": 2000}}}
				}
			}
		}`))
	}))
	defer srv.Close()

	client := NewClient("insight-bot", "secret", WithBaseURL(srv.URL))
	got, err := client.GetProduct(context.Background(), foodID("3017620422003"), []string{"categories_tags", "images", "lang"})

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "fr", got.Lang)
	assert.Equal(t, []string{"en:breakfasts", "en:spreads"}, got.CategoriesTags)

	front, ok := got.Image("front_fr")
	require.True(t, ok)
	assert.Equal(t, "4", front.ImgID.String())
	assert.Equal(t, "7", front.Rev.String())
	assert.False(t, front.Cropped())
	w, h, ok := front.FullSize()
	require.True(t, ok)
	assert.Equal(t, 1000, w)
	assert.Equal(t, 2000, h)
}

func TestGetProduct_NotFound(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient("insight-bot", "secret", WithBaseURL(srv.URL))
	got, err := client.GetProduct(context.Background(), foodID("0000000000000"), nil)

	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetProduct_StatusZero(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": 0, "status_verbose": "product not found"}`))
	}))
	defer srv.Close()

	client := NewClient("insight-bot", "secret", WithBaseURL(srv.URL))
	got, err := client.GetProduct(context.Background(), foodID("0000000000000"), nil)

	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetProduct_RetryOn500(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`internal error`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": 1, "product": {"code": "123", "lang": "en"}}`))
	}))
	defer srv.Close()

	client := NewClient("insight-bot", "secret", WithBaseURL(srv.URL))
	got, err := client.GetProduct(context.Background(), foodID("123"), nil)

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "en", got.Lang)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestGetProduct_MalformedJSON(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	client := NewClient("insight-bot", "secret", WithBaseURL(srv.URL))
	_, err := client.GetProduct(context.Background(), foodID("123"), nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal")
}

func TestAddCategory_Form(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/cgi/product_jqm2.pl", r.URL.Path)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "3017620422003", r.PostForm.Get("code"))
		assert.Equal(t, "insight-bot", r.PostForm.Get("user_id"))
		assert.Equal(t, "secret", r.PostForm.Get("password"))
		assert.Equal(t, "en:teas", r.PostForm.Get("add_categories"))
		assert.Contains(t, r.PostForm.Get("comment"), "automated edit")

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": 1, "status_verbose": "fields saved"}`))
	}))
	defer srv.Close()

	client := NewClient("insight-bot", "secret", WithBaseURL(srv.URL), WithRateLimit(100, 10))
	err := client.AddCategory(context.Background(), foodID("3017620422003"), "en:teas",
		"[insight-bot] Adding category 'en:teas' (automated edit)")
	require.NoError(t, err)
}

func TestUpdateProduct_Rejected(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": 0, "status_verbose": "not a valid barcode"}`))
	}))
	defer srv.Close()

	client := NewClient("insight-bot", "secret", WithBaseURL(srv.URL), WithRateLimit(100, 10))
	err := client.UpdateProduct(context.Background(), foodID("bad"), map[string]string{"quantity": "500 g"}, "")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a valid barcode")
}

func TestSaveIngredients_LangField(t *testing.T) {
	t.Parallel()

	var gotField atomic.Value

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		for field := range r.PostForm {
			if field == "ingredients_text" || field == "ingredients_text_fr" {
				gotField.Store(field)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": 1}`))
	}))
	defer srv.Close()

	client := NewClient("insight-bot", "secret", WithBaseURL(srv.URL), WithRateLimit(100, 10))

	require.NoError(t, client.SaveIngredients(context.Background(), foodID("123"), "eau, sucre", "fr", ""))
	assert.Equal(t, "ingredients_text_fr", gotField.Load())

	require.NoError(t, client.SaveIngredients(context.Background(), foodID("123"), "water, sugar", "", ""))
	assert.Equal(t, "ingredients_text", gotField.Load())
}

func TestSelectRotateImage_WithCrop(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cgi/product_image_crop.pl", r.URL.Path)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "3017620422003", r.PostForm.Get("code"))
		assert.Equal(t, "4", r.PostForm.Get("imgid"))
		assert.Equal(t, "nutrition_fr", r.PostForm.Get("id"))
		assert.Equal(t, "90", r.PostForm.Get("angle"))
		assert.Equal(t, "203", r.PostForm.Get("x1"))
		assert.Equal(t, "1164", r.PostForm.Get("y1"))
		assert.Equal(t, "991", r.PostForm.Get("x2"))
		assert.Equal(t, "1876", r.PostForm.Get("y2"))
		assert.Equal(t, "full", r.PostForm.Get("coordinates_image_size"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "status ok"}`))
	}))
	defer srv.Close()

	client := NewClient("insight-bot", "secret", WithBaseURL(srv.URL), WithRateLimit(100, 10))
	err := client.SelectRotateImage(context.Background(), foodID("3017620422003"), SelectRotateParams{
		ImageID:  "4",
		ImageKey: "nutrition_fr",
		Rotate:   90,
		Crop: &geometry.BoundingBox{
			YMin: 1164.435088634491,
			XMin: 202.98996567726135,
			YMax: 1876.0185241699219,
			XMax: 990.9706115722656,
		},
	})
	require.NoError(t, err)
}

func TestSelectRotateImage_NoCrop(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "180", r.PostForm.Get("angle"))
		assert.False(t, r.PostForm.Has("x1"))
		assert.False(t, r.PostForm.Has("coordinates_image_size"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "status ok"}`))
	}))
	defer srv.Close()

	client := NewClient("insight-bot", "secret", WithBaseURL(srv.URL), WithRateLimit(100, 10))
	err := client.SelectRotateImage(context.Background(), foodID("123"), SelectRotateParams{
		ImageID:  "2",
		ImageKey: "front_en",
		Rotate:   180,
	})
	require.NoError(t, err)
}

func TestNewClient_Defaults(t *testing.T) {
	t.Parallel()
	c := NewClient("insight-bot", "secret")
	hc := c.(*httpClient)
	assert.Equal(t, "insight-bot", hc.user)
	assert.Equal(t, "pantrybase.org", hc.baseDomain)
	assert.Equal(t, "insight-cli/1.0", hc.userAgent)
	assert.NotNil(t, hc.limiter)
	assert.NotNil(t, hc.http)
	assert.Equal(t, 30*time.Second, hc.http.Timeout)
}

func TestWithHTTPClient(t *testing.T) {
	t.Parallel()
	customClient := &http.Client{}
	c := NewClient("insight-bot", "secret", WithHTTPClient(customClient))
	hc := c.(*httpClient)
	assert.Equal(t, customClient, hc.http)
}

func TestWithTimeout(t *testing.T) {
	t.Parallel()
	c := NewClient("insight-bot", "secret", WithTimeout(5*time.Second))
	hc := c.(*httpClient)
	assert.Equal(t, 5*time.Second, hc.http.Timeout)
}

func TestFlexParsing(t *testing.T) {
	t.Parallel()

	var meta ImageMeta
	require.NoError(t, json.Unmarshal([]byte(`{"imgid": 12, "rev": "3", "x1": "10.5", "y1": 20, "x2": null}`), &meta))

	assert.Equal(t, "12", meta.ImgID.String())
	assert.Equal(t, "3", meta.Rev.String())
	assert.InDelta(t, 10.5, meta.X1.Float64(), 1e-9)
	assert.InDelta(t, 20, meta.Y1.Float64(), 1e-9)
	assert.Equal(t, float64(-1), meta.X2.Float64())
	assert.Equal(t, float64(-1), meta.Y2.Float64())
	assert.True(t, meta.Cropped())
}

func TestWorldURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://world.pantrybase.org", WorldURL(model.FlavorFood, "pantrybase.org"))
	assert.Equal(t, "https://world.pantrybase.org", WorldURL("", "pantrybase.org"))
	assert.Equal(t, "https://world.beauty.pantrybase.org", WorldURL(model.FlavorBeauty, "pantrybase.org"))
	assert.Equal(t, "https://world.petfood.pantrybase.org", WorldURL(model.FlavorPetfood, "pantrybase.org"))
}

func TestProductURLs(t *testing.T) {
	t.Parallel()

	pid := foodID("3017620422003")
	assert.Equal(t, "https://world.pantrybase.org/product/3017620422003", ProductURL(pid, "pantrybase.org"))
	assert.Equal(t, "https://world.pantrybase.org/cgi/product.pl?type=edit&code=3017620422003",
		ProductEditURL(pid, "pantrybase.org"))
}

func TestImageURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://images.pantrybase.org/images/products/301/762/042/2003/4.jpg",
		ImageURL("pantrybase.org", "/301/762/042/2003/4.jpg"))
}

func TestCropImageURL(t *testing.T) {
	t.Parallel()

	got := CropImageURL("pantrybase.org",
		"https://images.pantrybase.org/images/products/301/1.jpg",
		geometry.BoundingBox{YMin: 10, XMin: 20, YMax: 200, XMax: 100})

	assert.Equal(t, "https://insights.pantrybase.org/api/v1/images/crop?"+
		"image_url=https%3A%2F%2Fimages.pantrybase.org%2Fimages%2Fproducts%2F301%2F1.jpg"+
		"&x_max=100&x_min=20&y_max=200&y_min=10", got)
}
