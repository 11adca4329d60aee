package orders

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenPath(filepath.Join(t.TempDir(), "orders.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestOrder(t *testing.T, store *Store) *Order {
	t.Helper()
	order, err := store.NewOrder(context.Background(), "book-1", "reader@example.com", Address{
		Name:        "Pat Reader",
		Street1:     "1 Library Way",
		City:        "Portland",
		StateCode:   "OR",
		PostalCode:  "97201",
		CountryCode: "US",
	}, 4500, "USD")
	if err != nil {
		t.Fatalf("new order: %v", err)
	}
	return order
}

func advance(t *testing.T, store *Store, id string, path ...Status) {
	t.Helper()
	for i := 0; i < len(path)-1; i++ {
		if err := store.Transition(context.Background(), id, path[i], path[i+1]); err != nil {
			t.Fatalf("transition %s -> %s: %v", path[i], path[i+1], err)
		}
	}
}

func TestNewOrderStartsPendingPayment(t *testing.T) {
	store := newTestStore(t)
	order := newTestOrder(t, store)

	if order.Status != StatusPendingPayment {
		t.Fatalf("new order status = %s, want %s", order.Status, StatusPendingPayment)
	}
	if order.ID == "" {
		t.Fatal("expected generated order id")
	}
	if order.Shipping.City != "Portland" {
		t.Fatalf("shipping city = %q, want Portland", order.Shipping.City)
	}
	if order.CreatedAt.IsZero() || order.UpdatedAt.IsZero() {
		t.Fatal("expected timestamps to be set")
	}
}

func TestNewOrderRequiresBook(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.NewOrder(context.Background(), "  ", "", Address{}, 0, ""); err == nil {
		t.Fatal("expected error for missing book id")
	}
}

func TestGetByIDMissing(t *testing.T) {
	store := newTestStore(t)
	order, err := store.GetByID(context.Background(), "nope")
	if err != nil {
		t.Fatalf("get missing order: %v", err)
	}
	if order != nil {
		t.Fatal("expected nil for unknown order")
	}
}

func TestTransitionCompareAndSet(t *testing.T) {
	store := newTestStore(t)
	order := newTestOrder(t, store)
	ctx := context.Background()

	if err := store.Transition(ctx, order.ID, StatusPendingPayment, StatusPaymentReceived); err != nil {
		t.Fatalf("first transition: %v", err)
	}

	// A second writer still holding the old status loses the race.
	err := store.Transition(ctx, order.ID, StatusPendingPayment, StatusPaymentReceived)
	if !errors.Is(err, ErrStaleStatus) {
		t.Fatalf("expected ErrStaleStatus, got %v", err)
	}

	got, err := store.GetByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if got.Status != StatusPaymentReceived {
		t.Fatalf("status = %s, want %s", got.Status, StatusPaymentReceived)
	}
}

func TestTransitionRejectsIllegalEdge(t *testing.T) {
	store := newTestStore(t)
	order := newTestOrder(t, store)

	err := store.Transition(context.Background(), order.ID, StatusPendingPayment, StatusShipped)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestMarkFailedPreservesReason(t *testing.T) {
	store := newTestStore(t)
	order := newTestOrder(t, store)
	ctx := context.Background()

	reason := `vendor rejected: {"errors":[{"field":"shipping_address.postal_code","message":"invalid"}]}`
	if err := store.MarkFailed(ctx, order.ID, reason); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	got, err := store.GetByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if got.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", got.Status)
	}
	if got.FailureReason != reason {
		t.Fatalf("failure reason = %q, want verbatim %q", got.FailureReason, reason)
	}
}

func TestMarkFailedNeverTouchesDelivered(t *testing.T) {
	store := newTestStore(t)
	order := newTestOrder(t, store)
	ctx := context.Background()

	advance(t, store, order.ID,
		StatusPendingPayment, StatusPaymentReceived, StatusGeneratingPDFs,
		StatusSubmittingToLulu, StatusSubmitted, StatusDelivered)

	err := store.MarkFailed(ctx, order.ID, "too late")
	if !errors.Is(err, ErrStaleStatus) {
		t.Fatalf("expected ErrStaleStatus for delivered order, got %v", err)
	}

	got, _ := store.GetByID(ctx, order.ID)
	if got.Status != StatusDelivered {
		t.Fatalf("delivered order was moved to %s", got.Status)
	}
}

func TestSetArtifactRefsBothOrNothing(t *testing.T) {
	store := newTestStore(t)
	order := newTestOrder(t, store)
	ctx := context.Background()

	err := store.SetArtifactRefs(ctx, order.ID,
		Artifact{Kind: ArtifactInterior, Ref: "interior-1.pdf"},
		Artifact{Kind: ArtifactCover, Ref: ""})
	if err == nil {
		t.Fatal("expected error when cover ref is missing")
	}

	interior := Artifact{Kind: ArtifactInterior, Ref: "orders/o1/interior-1.pdf", ContentType: "application/pdf", Size: 120000}
	cover := Artifact{Kind: ArtifactCover, Ref: "orders/o1/cover-1.pdf", ContentType: "application/pdf", Size: 34000}
	if err := store.SetArtifactRefs(ctx, order.ID, interior, cover); err != nil {
		t.Fatalf("set artifacts: %v", err)
	}

	got, err := store.GetByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if !got.HasArtifacts() {
		t.Fatal("expected both artifact refs to be set")
	}
	if got.InteriorRef != interior.Ref || got.CoverRef != cover.Ref {
		t.Fatalf("refs = %q/%q, want %q/%q", got.InteriorRef, got.CoverRef, interior.Ref, cover.Ref)
	}
}

func TestArtifactHistoryAccumulates(t *testing.T) {
	store := newTestStore(t)
	order := newTestOrder(t, store)
	ctx := context.Background()

	first := []Artifact{
		{Kind: ArtifactInterior, Ref: "interior-1.pdf", ContentType: "application/pdf"},
		{Kind: ArtifactCover, Ref: "cover-1.pdf", ContentType: "application/pdf"},
	}
	second := []Artifact{
		{Kind: ArtifactInterior, Ref: "interior-2.pdf", ContentType: "application/pdf"},
		{Kind: ArtifactCover, Ref: "cover-2.pdf", ContentType: "application/pdf"},
	}
	if err := store.SetArtifactRefs(ctx, order.ID, first[0], first[1]); err != nil {
		t.Fatalf("first generation: %v", err)
	}
	if err := store.SetArtifactRefs(ctx, order.ID, second[0], second[1]); err != nil {
		t.Fatalf("second generation: %v", err)
	}

	history, err := store.Artifacts(ctx, order.ID)
	if err != nil {
		t.Fatalf("artifact history: %v", err)
	}
	if len(history) != 4 {
		t.Fatalf("history length = %d, want 4", len(history))
	}
	if history[0].Ref != "interior-1.pdf" || history[3].Ref != "cover-2.pdf" {
		t.Fatalf("unexpected history order: first %q, last %q", history[0].Ref, history[3].Ref)
	}

	got, _ := store.GetByID(ctx, order.ID)
	if got.InteriorRef != "interior-2.pdf" || got.CoverRef != "cover-2.pdf" {
		t.Fatalf("order should point at latest refs, got %q/%q", got.InteriorRef, got.CoverRef)
	}
}

func TestVendorJobIDImmutable(t *testing.T) {
	store := newTestStore(t)
	order := newTestOrder(t, store)
	ctx := context.Background()

	if err := store.SetVendorJob(ctx, order.ID, "job-123"); err != nil {
		t.Fatalf("set vendor job: %v", err)
	}
	// Same id is an idempotent no-op.
	if err := store.SetVendorJob(ctx, order.ID, "job-123"); err != nil {
		t.Fatalf("idempotent set vendor job: %v", err)
	}
	err := store.SetVendorJob(ctx, order.ID, "job-456")
	if !errors.Is(err, ErrJobIDImmutable) {
		t.Fatalf("expected ErrJobIDImmutable, got %v", err)
	}

	got, _ := store.GetByID(ctx, order.ID)
	if got.VendorJobID != "job-123" {
		t.Fatalf("vendor job id = %q, want job-123", got.VendorJobID)
	}
}

func TestTrackingAndVendorStatus(t *testing.T) {
	store := newTestStore(t)
	order := newTestOrder(t, store)
	ctx := context.Background()

	if err := store.SetVendorStatus(ctx, order.ID, "IN_PRODUCTION"); err != nil {
		t.Fatalf("set vendor status: %v", err)
	}
	if err := store.SetTracking(ctx, order.ID, "1Z999", "https://track.example.com/1Z999"); err != nil {
		t.Fatalf("set tracking: %v", err)
	}

	got, _ := store.GetByID(ctx, order.ID)
	if got.VendorStatus != "IN_PRODUCTION" {
		t.Fatalf("vendor status = %q", got.VendorStatus)
	}
	if got.TrackingNum != "1Z999" || got.TrackingURL != "https://track.example.com/1Z999" {
		t.Fatalf("tracking = %q / %q", got.TrackingNum, got.TrackingURL)
	}
}

func TestReconcilableListing(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	submitted := newTestOrder(t, store)
	advance(t, store, submitted.ID,
		StatusPendingPayment, StatusPaymentReceived, StatusGeneratingPDFs,
		StatusSubmittingToLulu, StatusSubmitted)

	inFlight := newTestOrder(t, store)
	advance(t, store, inFlight.ID,
		StatusPendingPayment, StatusPaymentReceived, StatusGeneratingPDFs)

	pending := newTestOrder(t, store)
	_ = pending

	eligible, err := store.Reconcilable(ctx)
	if err != nil {
		t.Fatalf("reconcilable: %v", err)
	}
	if len(eligible) != 1 {
		t.Fatalf("eligible count = %d, want 1", len(eligible))
	}
	if eligible[0].ID != submitted.ID {
		t.Fatalf("eligible order = %s, want %s", eligible[0].ID, submitted.ID)
	}
}

func TestListByStatusAndStats(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := newTestOrder(t, store)
	second := newTestOrder(t, store)
	advance(t, store, second.ID, StatusPendingPayment, StatusPaymentReceived)

	pending, err := store.List(ctx, StatusPendingPayment)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != first.ID {
		t.Fatalf("pending listing wrong: %+v", pending)
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("all count = %d, want 2", len(all))
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats[StatusPendingPayment] != 1 || stats[StatusPaymentReceived] != 1 {
		t.Fatalf("unexpected stats: %v", stats)
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if health.Total != 2 || health.Pending != 1 || health.InFlight != 1 {
		t.Fatalf("unexpected health: %+v", health)
	}
}

func TestStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orders.db")
	ctx := context.Background()

	store, err := OpenPath(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	order := newTestOrder(t, store)
	advance(t, store, order.ID, StatusPendingPayment, StatusPaymentReceived)
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := OpenPath(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.GetByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if got == nil || got.Status != StatusPaymentReceived {
		t.Fatalf("order state lost across reopen: %+v", got)
	}
}
