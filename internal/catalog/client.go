// Package catalog provides a client for the Pantrybase product catalog API.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/pantrybase/insight-cli/internal/geometry"
	"github.com/pantrybase/insight-cli/internal/model"
)

// Client defines the catalog operations used by the insight engine.
type Client interface {
	// GetProduct fetches a product, restricted to the given fields when
	// non-empty. Returns (nil, nil) when the product does not exist.
	GetProduct(ctx context.Context, pid model.ProductID, fields []string) (*Product, error)
	// UpdateProduct writes product fields through the catalog edit API.
	UpdateProduct(ctx context.Context, pid model.ProductID, params map[string]string, comment string) error
	// AddCategory adds a category tag to the product.
	AddCategory(ctx context.Context, pid model.ProductID, categoryTag, comment string) error
	// SaveIngredients replaces the ingredient list, optionally for a
	// specific language.
	SaveIngredients(ctx context.Context, pid model.ProductID, text, lang, comment string) error
	// SelectRotateImage selects a raw image under a display key, with an
	// optional rotation and crop.
	SelectRotateImage(ctx context.Context, pid model.ProductID, params SelectRotateParams) error
}

// SelectRotateParams describes an image selection request.
type SelectRotateParams struct {
	ImageID  string
	ImageKey string
	Rotate   int
	// Crop holds absolute pixel coordinates on the full-size image.
	// Nil selects the whole image.
	Crop *geometry.BoundingBox
}

// Option configures the catalog client.
type Option func(*httpClient)

// WithBaseDomain sets the catalog root domain (default pantrybase.org).
func WithBaseDomain(domain string) Option {
	return func(c *httpClient) {
		c.baseDomain = domain
	}
}

// WithBaseURL overrides the full base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		c.http.Timeout = d
	}
}

// WithRateLimit caps the write rate against the catalog edit API.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithUserAgent sets the User-Agent header sent on every request.
func WithUserAgent(ua string) Option {
	return func(c *httpClient) {
		c.userAgent = ua
	}
}

type httpClient struct {
	user       string
	password   string
	baseDomain string
	baseURL    string
	userAgent  string
	limiter    *rate.Limiter
	http       *http.Client
}

// NewClient creates a catalog client authenticating as the given user.
func NewClient(user, password string, opts ...Option) Client {
	c := &httpClient{
		user:       user,
		password:   password,
		baseDomain: "pantrybase.org",
		userAgent:  "insight-cli/1.0",
		limiter:    rate.NewLimiter(2, 2),
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) base(flavor model.Flavor) string {
	if c.baseURL != "" {
		return c.baseURL
	}
	return WorldURL(flavor, c.baseDomain)
}

// retryableStatusCode returns true if the HTTP status code should trigger a retry.
func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusInternalServerError ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable
}

// retryDo executes a read request with exponential backoff retries on
// transient failures (429, 500, 502, 503). Returns the response body and
// status code on success, or the last error after exhausting retries.
func (c *httpClient) retryDo(ctx context.Context, req *http.Request) ([]byte, int, error) {
	const maxAttempts = 3
	backoff := 1 * time.Second

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		retryReq := req.Clone(ctx)

		resp, err := c.http.Do(retryReq)
		if err != nil {
			lastErr = err
			if attempt < maxAttempts {
				select {
				case <-ctx.Done():
					return nil, 0, ctx.Err()
				case <-time.After(backoff):
				}
				backoff *= 2
				continue
			}
			return nil, 0, lastErr
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, resp.StatusCode, eris.Wrap(readErr, "catalog: read response body")
		}

		if retryableStatusCode(resp.StatusCode) && attempt < maxAttempts {
			lastErr = eris.Errorf("catalog: status %d: %s", resp.StatusCode, string(body))
			select {
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			continue
		}

		return body, resp.StatusCode, nil
	}

	return nil, 0, lastErr
}

type productResponse struct {
	Status  int      `json:"status"`
	Product *Product `json:"product"`
}

func (c *httpClient) GetProduct(ctx context.Context, pid model.ProductID, fields []string) (*Product, error) {
	reqURL := fmt.Sprintf("%s/api/v2/product/%s", c.base(pid.Flavor), url.PathEscape(pid.Barcode))
	if len(fields) > 0 {
		reqURL += "?fields=" + url.QueryEscape(strings.Join(fields, ","))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: create request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	body, statusCode, err := c.retryDo(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: get product")
	}
	if statusCode == http.StatusNotFound {
		return nil, nil
	}
	if statusCode != http.StatusOK {
		return nil, eris.Errorf("catalog: unexpected status %d: %s", statusCode, string(body))
	}

	var result productResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "catalog: unmarshal product")
	}
	if result.Status == 0 || result.Product == nil {
		return nil, nil
	}
	return result.Product, nil
}

type updateResponse struct {
	Status        int    `json:"status"`
	StatusVerbose string `json:"status_verbose"`
}

// postForm submits a single-shot authenticated form write to the catalog.
func (c *httpClient) postForm(ctx context.Context, reqURL string, form url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "catalog: rate limit wait")
	}

	form.Set("user_id", c.user)
	form.Set("password", c.password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, eris.Wrap(err, "catalog: create request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: post form")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: read response body")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("catalog: unexpected status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

func (c *httpClient) UpdateProduct(ctx context.Context, pid model.ProductID, params map[string]string, comment string) error {
	form := url.Values{}
	form.Set("code", pid.Barcode)
	for k, v := range params {
		form.Set(k, v)
	}
	if comment != "" {
		form.Set("comment", comment)
	}

	body, err := c.postForm(ctx, c.base(pid.Flavor)+"/cgi/product_jqm2.pl", form)
	if err != nil {
		return eris.Wrapf(err, "catalog: update product %s", pid)
	}

	var result updateResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return eris.Wrap(err, "catalog: unmarshal update response")
	}
	if result.Status != 1 {
		return eris.Errorf("catalog: update rejected for %s: %s", pid, result.StatusVerbose)
	}
	return nil
}

func (c *httpClient) AddCategory(ctx context.Context, pid model.ProductID, categoryTag, comment string) error {
	return c.UpdateProduct(ctx, pid, map[string]string{"add_categories": categoryTag}, comment)
}

func (c *httpClient) SaveIngredients(ctx context.Context, pid model.ProductID, text, lang, comment string) error {
	field := "ingredients_text"
	if lang != "" {
		field = "ingredients_text_" + lang
	}
	return c.UpdateProduct(ctx, pid, map[string]string{field: text}, comment)
}

func (c *httpClient) SelectRotateImage(ctx context.Context, pid model.ProductID, params SelectRotateParams) error {
	form := url.Values{}
	form.Set("code", pid.Barcode)
	form.Set("imgid", params.ImageID)
	form.Set("id", params.ImageKey)
	form.Set("angle", strconv.Itoa(params.Rotate))

	if box := params.Crop; box != nil {
		form.Set("x1", strconv.Itoa(int(math.Round(box.XMin))))
		form.Set("y1", strconv.Itoa(int(math.Round(box.YMin))))
		form.Set("x2", strconv.Itoa(int(math.Round(box.XMax))))
		form.Set("y2", strconv.Itoa(int(math.Round(box.YMax))))
		// Crop coordinates refer to the full-size raw image.
		form.Set("coordinates_image_size", "full")
	}

	if _, err := c.postForm(ctx, c.base(pid.Flavor)+"/cgi/product_image_crop.pl", form); err != nil {
		return eris.Wrapf(err, "catalog: select image %s for %s", params.ImageKey, pid)
	}
	return nil
}
