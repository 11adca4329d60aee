package lulu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bindery/internal/config"
	"bindery/internal/logging"
	"bindery/internal/orders"
	"bindery/internal/services"
)

const defaultShippingLevel = "MAIL"

// Submission carries everything one print job needs: the order (shipping
// and contact data), the book title, and the two artifact URLs the vendor
// fetches.
type Submission struct {
	Order       *orders.Order
	Title       string
	InteriorURL string
	CoverURL    string
}

// PollResult is the outcome of one job status fetch. MappedStatus is empty
// when the vendor reported something outside the fixed mapping table.
type PollResult struct {
	VendorStatus   string
	MappedStatus   orders.Status
	TrackingNumber string
	TrackingURL    string
	Message        string
}

// Client submits print jobs and polls their status.
type Client struct {
	baseURL      string
	packageID    string
	contactEmail string
	httpClient   HTTPDoer
	tokens       *TokenManager
	logger       *slog.Logger
}

// ClientOption customises Client construction.
type ClientOption func(*Client)

// WithHTTPClient overrides the HTTP client used for API calls.
func WithHTTPClient(client HTTPDoer) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTokenManager injects a prebuilt token manager.
func WithTokenManager(tokens *TokenManager) ClientOption {
	return func(c *Client) {
		c.tokens = tokens
	}
}

// NewClient builds a vendor client from configuration.
func NewClient(cfg *config.Config, logger *slog.Logger, opts ...ClientOption) *Client {
	if logger == nil {
		logger = logging.NewNop()
	}
	timeout := time.Duration(cfg.Vendor.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := &Client{
		baseURL:      strings.TrimRight(strings.TrimSpace(cfg.Vendor.BaseURL), "/"),
		packageID:    strings.TrimSpace(cfg.Vendor.PackageID),
		contactEmail: strings.TrimSpace(cfg.Vendor.ContactEmail),
		httpClient:   &http.Client{Timeout: timeout},
		logger:       logging.NewComponentLogger(logger, "lulu"),
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.tokens == nil {
		client.tokens = NewTokenManager(cfg.Vendor.TokenURL, cfg.Vendor.ClientKey, cfg.Vendor.ClientSecret)
	}
	return client
}

type submitAddress struct {
	Name        string `json:"name"`
	Street1     string `json:"street1"`
	Street2     string `json:"street2,omitempty"`
	City        string `json:"city"`
	StateCode   string `json:"state_code,omitempty"`
	PostalCode  string `json:"postcode"`
	CountryCode string `json:"country_code"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

type submitLineItem struct {
	ExternalID string    `json:"external_id"`
	Title      string    `json:"title"`
	Cover      sourceURL `json:"cover"`
	Interior   sourceURL `json:"interior"`
	PodPackage string    `json:"pod_package_id"`
	Quantity   int       `json:"quantity"`
}

type sourceURL struct {
	SourceURL string `json:"source_url"`
}

type submitRequest struct {
	ContactEmail    string           `json:"contact_email"`
	ExternalID      string           `json:"external_id"`
	LineItems       []submitLineItem `json:"line_items"`
	ShippingAddress submitAddress    `json:"shipping_address"`
	ShippingLevel   string           `json:"shipping_level"`
}

type jobStatus struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

type jobLineItem struct {
	TrackingID   string   `json:"tracking_id"`
	TrackingURLs []string `json:"tracking_urls"`
}

type jobResponse struct {
	ID        json.Number   `json:"id"`
	Status    jobStatus     `json:"status"`
	LineItems []jobLineItem `json:"line_items"`
}

// Submit creates a print job for the order and returns the vendor-assigned
// job id. Permanent rejections carry the vendor's raw error body so support
// can see exactly what was refused.
func (c *Client) Submit(ctx context.Context, sub Submission) (string, error) {
	if sub.Order == nil {
		return "", services.Wrap(services.ErrValidation, "lulu", "submit", "order required", nil)
	}
	if sub.InteriorURL == "" || sub.CoverURL == "" {
		return "", services.Wrap(services.ErrValidation, "lulu", "submit", "both artifact urls required", nil)
	}
	if c.packageID == "" {
		return "", services.Wrap(services.ErrConfiguration, "lulu", "submit", "pod package id not configured", nil)
	}

	contact := strings.TrimSpace(sub.Order.ContactEmail)
	if contact == "" {
		contact = c.contactEmail
	}

	payload := submitRequest{
		ContactEmail: contact,
		ExternalID:   sub.Order.ID,
		LineItems: []submitLineItem{{
			ExternalID: sub.Order.ID,
			Title:      sub.Title,
			Cover:      sourceURL{SourceURL: sub.CoverURL},
			Interior:   sourceURL{SourceURL: sub.InteriorURL},
			PodPackage: c.packageID,
			Quantity:   1,
		}},
		ShippingAddress: submitAddress{
			Name:        sub.Order.Shipping.Name,
			Street1:     sub.Order.Shipping.Street1,
			Street2:     sub.Order.Shipping.Street2,
			City:        sub.Order.Shipping.City,
			StateCode:   sub.Order.Shipping.StateCode,
			PostalCode:  sub.Order.Shipping.PostalCode,
			CountryCode: sub.Order.Shipping.CountryCode,
			PhoneNumber: sub.Order.Shipping.Phone,
		},
		ShippingLevel: defaultShippingLevel,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode submission: %w", err)
	}

	var job jobResponse
	if err := c.do(ctx, http.MethodPost, "/print-jobs/", body, &job); err != nil {
		return "", err
	}
	jobID := job.ID.String()
	if jobID == "" {
		return "", services.Wrap(services.ErrVendor, "lulu", "submit", "response missing job id", nil)
	}

	c.logger.Info("print job submitted",
		logging.String(logging.FieldOrderID, sub.Order.ID),
		logging.String("vendor_job_id", jobID),
		logging.String("vendor_status", job.Status.Name))
	return jobID, nil
}

// JobStatus fetches the vendor's view of a job and maps its status name to
// the local order vocabulary. Tracking data is extracted only once the
// vendor reports the job shipped.
func (c *Client) JobStatus(ctx context.Context, vendorJobID string) (*PollResult, error) {
	vendorJobID = strings.TrimSpace(vendorJobID)
	if vendorJobID == "" {
		return nil, services.Wrap(services.ErrValidation, "lulu", "poll", "vendor job id required", nil)
	}

	var job jobResponse
	if err := c.do(ctx, http.MethodGet, "/print-jobs/"+vendorJobID+"/", nil, &job); err != nil {
		return nil, err
	}

	vendorStatus := strings.ToUpper(strings.TrimSpace(job.Status.Name))
	result := &PollResult{
		VendorStatus: vendorStatus,
		Message:      job.Status.Message,
	}
	mapped, known := vendorStatusMap[vendorStatus]
	if !known {
		c.logger.Debug("vendor status outside mapping table, ignoring",
			logging.String("vendor_job_id", vendorJobID),
			logging.String("vendor_status", vendorStatus))
		return result, nil
	}
	result.MappedStatus = mapped

	if mapped == orders.StatusShipped || mapped == orders.StatusDelivered {
		for _, item := range job.LineItems {
			if item.TrackingID != "" {
				result.TrackingNumber = item.TrackingID
			}
			if len(item.TrackingURLs) > 0 {
				result.TrackingURL = item.TrackingURLs[0]
			}
		}
	}
	return result, nil
}

// vendorStatusMap is the fixed translation from the vendor's job status
// vocabulary to order statuses. Absent entries mean "no local change".
var vendorStatusMap = map[string]orders.Status{
	"CREATED":            orders.StatusSubmitted,
	"ACCEPTED":           orders.StatusSubmitted,
	"PRODUCTION_READY":   orders.StatusSubmitted,
	"PRODUCTION_DELAYED": orders.StatusSubmitted,
	"IN_PRODUCTION":      orders.StatusInProduction,
	"SHIPPED":            orders.StatusShipped,
	"DELIVERED":          orders.StatusDelivered,
	"REJECTED":           orders.StatusFailed,
	"CANCELED":           orders.StatusFailed,
}

// do performs one authenticated API call, decoding a 2xx response into out.
// A 401 invalidates the cached token and retries once with a fresh one.
func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	resp, respBody, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		c.tokens.Invalidate()
		resp, respBody, err = c.send(ctx, method, path, body)
		if err != nil {
			return err
		}
	}

	operation := "submit"
	if method == http.MethodGet {
		operation = "poll"
	}

	switch {
	case resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices:
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(respBody, out); err != nil {
			return services.Wrap(services.ErrVendor, "lulu", operation, "decode response", err)
		}
		return nil
	case isTransientStatus(resp.StatusCode):
		return services.Wrap(services.ErrTransient, "lulu", operation,
			fmt.Sprintf("vendor returned %d", resp.StatusCode), nil)
	default:
		// Preserve the vendor's error body verbatim; it is the only
		// diagnostic support has for a rejected address or document.
		return services.Wrap(services.ErrVendor, "lulu", operation,
			"vendor rejected request ("+strconv.Itoa(resp.StatusCode)+"): "+strings.TrimSpace(string(respBody)), nil)
	}
}

func (c *Client) send(ctx context.Context, method, path string, body []byte) (*http.Response, []byte, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, nil, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, nil, fmt.Errorf("build vendor request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Timeouts and connection failures get the same treatment as a
		// 5xx: transient, eligible for backoff.
		return nil, nil, services.Wrap(services.ErrTransient, "lulu", strings.ToLower(method), "vendor call failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, nil, services.Wrap(services.ErrTransient, "lulu", strings.ToLower(method), "read vendor response", err)
	}
	return resp, respBody, nil
}
