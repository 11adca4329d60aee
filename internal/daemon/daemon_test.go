package daemon_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"bindery/internal/artifacts"
	"bindery/internal/config"
	"bindery/internal/daemon"
	"bindery/internal/orchestrator"
	"bindery/internal/orders"
	"bindery/internal/services/lulu"
	"bindery/internal/testsupport"
)

type stubVendor struct {
	jobID string
	poll  *lulu.PollResult
}

func (s *stubVendor) Submit(ctx context.Context, sub lulu.Submission) (string, error) {
	if s.jobID == "" {
		s.jobID = "job-1"
	}
	return s.jobID, nil
}

func (s *stubVendor) JobStatus(ctx context.Context, vendorJobID string) (*lulu.PollResult, error) {
	if s.poll == nil {
		return &lulu.PollResult{VendorStatus: "CREATED", MappedStatus: orders.StatusSubmitted}, nil
	}
	return s.poll, nil
}

type harness struct {
	cfg     *config.Config
	orders  *orders.Store
	daemon  *daemon.Daemon
	base    string
	token   string
	orderID string
}

func newHarness(t *testing.T, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	orderStore := testsupport.MustOpenOrderStore(t, cfg)
	bookStore := testsupport.MustOpenBookStore(t, cfg)
	documents, err := artifacts.NewFileStore(cfg)
	if err != nil {
		t.Fatalf("artifacts.NewFileStore: %v", err)
	}
	orch := orchestrator.New(cfg, orderStore, bookStore, documents, &stubVendor{}, nil, nil)

	d, err := daemon.New(cfg, orderStore, orch, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(d.Stop)

	status := d.Status(context.Background())
	if status.APIAddress == "" {
		t.Fatal("api server did not bind")
	}

	h := &harness{
		cfg:    cfg,
		orders: orderStore,
		daemon: d,
		base:   "http://" + status.APIAddress,
		token:  cfg.Paths.APIToken,
	}

	// Seed a paid-for book and order for tests to act on.
	book := testsupport.SeedBook(t, bookStore, "A Year of Small Adventures", 3)
	h.orderID = testsupport.NewOrder(t, orderStore, book.ID).ID
	return h
}

func (h *harness) request(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, h.base+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestStatusEndpoint(t *testing.T) {
	h := newHarness(t)

	resp := h.request(t, http.MethodGet, "/api/status", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code = %d", resp.StatusCode)
	}
	payload := decode[map[string]any](t, resp)
	if payload["running"] != true {
		t.Fatalf("running = %v", payload["running"])
	}
}

func TestPaymentWebhookRunsPipeline(t *testing.T) {
	h := newHarness(t)

	resp := h.request(t, http.MethodPost, "/api/webhooks/payment", map[string]string{"order_id": h.orderID})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code = %d", resp.StatusCode)
	}
	view := decode[map[string]any](t, resp)
	if view["status"] != string(orders.StatusSubmitted) {
		t.Fatalf("order status = %v, want submitted", view["status"])
	}
	if view["vendor_job_id"] != "job-1" {
		t.Fatalf("vendor job id = %v", view["vendor_job_id"])
	}
}

func TestPaymentWebhookUnknownOrder(t *testing.T) {
	h := newHarness(t)

	resp := h.request(t, http.MethodPost, "/api/webhooks/payment", map[string]string{"order_id": "nope"})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status code = %d, want 404", resp.StatusCode)
	}
}

func TestOrdersListingAndDetail(t *testing.T) {
	h := newHarness(t)

	resp := h.request(t, http.MethodGet, "/api/orders?status=pending_payment", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code = %d", resp.StatusCode)
	}
	listing := decode[map[string][]map[string]any](t, resp)
	if len(listing["orders"]) != 1 {
		t.Fatalf("orders = %d, want 1", len(listing["orders"]))
	}

	resp = h.request(t, http.MethodGet, fmt.Sprintf("/api/orders/%s", h.orderID), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("detail status code = %d", resp.StatusCode)
	}

	resp = h.request(t, http.MethodGet, "/api/orders?status=bogus", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad status filter code = %d, want 400", resp.StatusCode)
	}
}

func TestRetryEndpointRejectsNonFailedOrder(t *testing.T) {
	h := newHarness(t)

	resp := h.request(t, http.MethodPost, fmt.Sprintf("/api/orders/%s/retry", h.orderID), nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status code = %d, want 409", resp.StatusCode)
	}
}

func TestReconcileEndpoint(t *testing.T) {
	h := newHarness(t)

	resp := h.request(t, http.MethodPost, "/api/reconcile", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code = %d", resp.StatusCode)
	}
	result := decode[map[string]int](t, resp)
	if result["checked"] != 0 {
		t.Fatalf("checked = %d, want 0 with no submitted orders", result["checked"])
	}
}

func TestAPIAuthRejectsMissingToken(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) {
		cfg.Paths.APIToken = "secret-token"
	})
	h.token = ""

	resp := h.request(t, http.MethodGet, "/api/status", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status code = %d, want 401", resp.StatusCode)
	}
}

func TestSecondDaemonInstanceRefused(t *testing.T) {
	h := newHarness(t)

	cfg := h.cfg
	orderStore := testsupport.MustOpenOrderStore(t, cfg)
	bookStore := testsupport.MustOpenBookStore(t, cfg)
	documents, err := artifacts.NewFileStore(cfg)
	if err != nil {
		t.Fatalf("artifacts.NewFileStore: %v", err)
	}
	orch := orchestrator.New(cfg, orderStore, bookStore, documents, &stubVendor{}, nil, nil)

	second, err := daemon.New(cfg, orderStore, orch, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("second daemon should be refused the lock")
	}
}
