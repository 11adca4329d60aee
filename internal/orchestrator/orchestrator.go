package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"bindery/internal/artifacts"
	"bindery/internal/books"
	"bindery/internal/compose"
	"bindery/internal/config"
	"bindery/internal/logging"
	"bindery/internal/notifications"
	"bindery/internal/orders"
	"bindery/internal/printspec"
	"bindery/internal/services"
	"bindery/internal/services/lulu"
)

// VendorClient is the fulfillment surface the orchestrator drives.
type VendorClient interface {
	Submit(ctx context.Context, sub lulu.Submission) (string, error)
	JobStatus(ctx context.Context, vendorJobID string) (*lulu.PollResult, error)
}

// Orchestrator owns order lifecycle progression.
type Orchestrator struct {
	orders     *orders.Store
	books      *books.Store
	documents  artifacts.Store
	compositor *compose.Compositor
	vendor     VendorClient
	notifier   notifications.Service
	logger     *slog.Logger
	backoff    services.BackoffPolicy

	// vendorCallDelay spaces consecutive vendor calls during a sweep.
	vendorCallDelay time.Duration
	sleep           func(ctx context.Context, d time.Duration) error
}

// Option customises Orchestrator construction.
type Option func(*Orchestrator)

// WithBackoff overrides the vendor retry policy.
func WithBackoff(policy services.BackoffPolicy) Option {
	return func(o *Orchestrator) {
		o.backoff = policy
	}
}

// WithVendorCallDelay overrides the sweep pacing delay.
func WithVendorCallDelay(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.vendorCallDelay = d
	}
}

// New builds an Orchestrator.
func New(cfg *config.Config, orderStore *orders.Store, bookStore *books.Store, documents artifacts.Store, vendor VendorClient, notifier notifications.Service, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.NewService(&config.Config{})
	}
	backoff := services.DefaultBackoff()
	if cfg.Vendor.RetryAttempts > 0 {
		backoff.MaxAttempts = cfg.Vendor.RetryAttempts
	}
	if cfg.Vendor.RetryBaseDelay > 0 {
		backoff.BaseDelay = time.Duration(cfg.Vendor.RetryBaseDelay) * time.Millisecond
	}

	orch := &Orchestrator{
		orders:          orderStore,
		books:           bookStore,
		documents:       documents,
		compositor:      compose.New(logger),
		vendor:          vendor,
		notifier:        notifier,
		logger:          logging.NewComponentLogger(logger, "orchestrator"),
		backoff:         backoff,
		vendorCallDelay: time.Duration(cfg.Workflow.VendorCallDelay) * time.Second,
		sleep:           sleepContext,
	}
	for _, opt := range opts {
		opt(orch)
	}
	return orch
}

// HandlePaymentConfirmed reacts to a payment-confirmed event: the order
// moves to payment_received and the generation plus submission pipeline
// runs to completion. A replayed event for an order already past
// pending_payment is a no-op.
func (o *Orchestrator) HandlePaymentConfirmed(ctx context.Context, orderID string) error {
	ctx = services.WithOrderID(ctx, orderID)

	order, err := o.loadOrder(ctx, orderID)
	if err != nil {
		return err
	}

	if order.Status != orders.StatusPendingPayment {
		o.logger.Info("payment event replayed for order already in flight, ignoring",
			logging.String(logging.FieldOrderID, orderID),
			logging.String(logging.FieldStatus, string(order.Status)))
		return nil
	}
	if err := o.orders.Transition(ctx, orderID, orders.StatusPendingPayment, orders.StatusPaymentReceived); err != nil {
		if errors.Is(err, orders.ErrStaleStatus) {
			// A concurrent duplicate won the transition.
			return nil
		}
		return err
	}
	o.logger.Info("payment confirmed",
		logging.String(logging.FieldOrderID, orderID),
		logging.String(logging.FieldBookID, order.BookID))

	if err := o.GeneratePDFs(ctx, orderID); err != nil {
		return err
	}
	return o.Submit(ctx, orderID)
}

// GeneratePDFs renders and stores both documents for an order, then moves
// it to submitting_to_lulu. Valid starting states are payment_received,
// failed (manual retry), and generating_pdfs (crash recovery). The interior
// and cover render concurrently; either failing fails the whole attempt so
// the order never holds a half-new artifact pair.
func (o *Orchestrator) GeneratePDFs(ctx context.Context, orderID string) error {
	ctx = services.WithOperation(services.WithOrderID(ctx, orderID), "generate_pdfs")

	order, err := o.loadOrder(ctx, orderID)
	if err != nil {
		return err
	}

	switch order.Status {
	case orders.StatusPaymentReceived, orders.StatusFailed:
		if err := o.orders.Transition(ctx, orderID, order.Status, orders.StatusGeneratingPDFs); err != nil {
			if errors.Is(err, orders.ErrStaleStatus) {
				return nil
			}
			return err
		}
	case orders.StatusGeneratingPDFs:
		// A prior attempt died mid-generation; regenerate from scratch.
	default:
		return services.Wrap(services.ErrValidation, "orchestrator", "generate_pdfs",
			fmt.Sprintf("order %s cannot generate from status %s", orderID, order.Status), nil)
	}

	if err := o.generate(ctx, order); err != nil {
		o.failOrder(ctx, orderID, err)
		return err
	}
	if err := o.orders.Transition(ctx, orderID, orders.StatusGeneratingPDFs, orders.StatusSubmittingToLulu); err != nil {
		return err
	}
	return nil
}

func (o *Orchestrator) generate(ctx context.Context, order *orders.Order) error {
	book, err := o.books.GetBook(ctx, order.BookID)
	if err != nil {
		return services.Wrap(services.ErrStorage, "orchestrator", "generate_pdfs", "load book", err)
	}
	if book == nil {
		return services.Wrap(services.ErrValidation, "orchestrator", "generate_pdfs",
			"book "+order.BookID+" not found", nil)
	}
	pages, err := o.books.ContentPages(ctx, order.BookID)
	if err != nil {
		return services.Wrap(services.ErrStorage, "orchestrator", "generate_pdfs", "load content pages", err)
	}

	spec, err := printspec.Compute(len(pages))
	if err != nil {
		return services.Wrap(services.ErrValidation, "orchestrator", "generate_pdfs", "compute geometry", err)
	}
	o.logger.Info("generating documents",
		logging.String(logging.FieldOrderID, order.ID),
		logging.String(logging.FieldBookID, book.ID),
		logging.Int("content_pages", spec.ContentPages),
		logging.Int("printed_pages", spec.PrintedPages))

	var interior, cover *compose.Result
	var group errgroup.Group
	group.Go(func() error {
		result, err := o.compositor.Interior(*book, pages, spec)
		if err != nil {
			return services.Wrap(services.ErrGeneration, "orchestrator", "generate_pdfs", "render interior", err)
		}
		interior = result
		return nil
	})
	group.Go(func() error {
		result, err := o.compositor.Cover(*book, spec)
		if err != nil {
			return services.Wrap(services.ErrGeneration, "orchestrator", "generate_pdfs", "render cover", err)
		}
		cover = result
		return nil
	})
	if err := group.Wait(); err != nil {
		return err
	}

	interiorRef, err := o.documents.Put(ctx, order.ID, "interior", interior.Data, "application/pdf")
	if err != nil {
		return services.Wrap(services.ErrStorage, "orchestrator", "generate_pdfs", "store interior", err)
	}
	coverRef, err := o.documents.Put(ctx, order.ID, "cover", cover.Data, "application/pdf")
	if err != nil {
		return services.Wrap(services.ErrStorage, "orchestrator", "generate_pdfs", "store cover", err)
	}

	err = o.orders.SetArtifactRefs(ctx, order.ID,
		orders.Artifact{Kind: orders.ArtifactInterior, Ref: interiorRef, ContentType: "application/pdf", Size: int64(len(interior.Data))},
		orders.Artifact{Kind: orders.ArtifactCover, Ref: coverRef, ContentType: "application/pdf", Size: int64(len(cover.Data))},
	)
	if err != nil {
		return services.Wrap(services.ErrStorage, "orchestrator", "generate_pdfs", "record artifact refs", err)
	}
	return nil
}

// Submit sends the order's documents to the vendor. The order must be at
// submitting_to_lulu with both artifacts stored. An order that already
// carries a vendor job id skips straight to submitted rather than creating
// a duplicate vendor job.
func (o *Orchestrator) Submit(ctx context.Context, orderID string) error {
	ctx = services.WithOperation(services.WithOrderID(ctx, orderID), "submit")

	order, err := o.loadOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status != orders.StatusSubmittingToLulu {
		return services.Wrap(services.ErrValidation, "orchestrator", "submit",
			fmt.Sprintf("order %s cannot submit from status %s", orderID, order.Status), nil)
	}
	if !order.HasArtifacts() {
		err := services.Wrap(services.ErrValidation, "orchestrator", "submit",
			"order "+orderID+" has no stored documents", nil)
		o.failOrder(ctx, orderID, err)
		return err
	}

	if order.VendorJobID != "" {
		o.logger.Info("order already has a vendor job, skipping resubmission",
			logging.String(logging.FieldOrderID, orderID),
			logging.String("vendor_job_id", order.VendorJobID))
		return o.orders.Transition(ctx, orderID, orders.StatusSubmittingToLulu, orders.StatusSubmitted)
	}

	book, err := o.books.GetBook(ctx, order.BookID)
	if err != nil || book == nil {
		wrapped := services.Wrap(services.ErrStorage, "orchestrator", "submit", "load book", err)
		o.failOrder(ctx, orderID, wrapped)
		return wrapped
	}

	interiorURL, err := o.documents.URL(order.InteriorRef)
	if err != nil {
		wrapped := services.Wrap(services.ErrStorage, "orchestrator", "submit", "resolve interior url", err)
		o.failOrder(ctx, orderID, wrapped)
		return wrapped
	}
	coverURL, err := o.documents.URL(order.CoverRef)
	if err != nil {
		wrapped := services.Wrap(services.ErrStorage, "orchestrator", "submit", "resolve cover url", err)
		o.failOrder(ctx, orderID, wrapped)
		return wrapped
	}

	var jobID string
	err = o.backoff.Retry(ctx, func(ctx context.Context) error {
		var submitErr error
		jobID, submitErr = o.vendor.Submit(ctx, lulu.Submission{
			Order:       order,
			Title:       book.CoverTitle(),
			InteriorURL: interiorURL,
			CoverURL:    coverURL,
		})
		return submitErr
	})
	if err != nil {
		o.failOrder(ctx, orderID, err)
		return err
	}

	if err := o.orders.SetVendorJob(ctx, orderID, jobID); err != nil {
		return err
	}
	if err := o.orders.Transition(ctx, orderID, orders.StatusSubmittingToLulu, orders.StatusSubmitted); err != nil {
		return err
	}
	o.logger.Info("order submitted",
		logging.String(logging.FieldOrderID, orderID),
		logging.String("vendor_job_id", jobID))

	if err := o.notifier.NotifySubmitted(ctx, orderID, book.CoverTitle(), order.ContactEmail); err != nil {
		o.logger.Warn("submitted notification failed",
			logging.String(logging.FieldOrderID, orderID),
			logging.Error(err))
	}
	return nil
}

// Retry re-runs a failed order. With both documents already stored only the
// submission is repeated; otherwise the full generation sequence runs again.
func (o *Orchestrator) Retry(ctx context.Context, orderID string) error {
	order, err := o.loadOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status != orders.StatusFailed {
		return services.Wrap(services.ErrValidation, "orchestrator", "retry",
			fmt.Sprintf("order %s is %s, only failed orders can be retried", orderID, order.Status), nil)
	}
	if err := o.orders.ClearFailure(ctx, orderID); err != nil {
		return err
	}

	if order.HasArtifacts() {
		if err := o.orders.Transition(ctx, orderID, orders.StatusFailed, orders.StatusSubmittingToLulu); err != nil {
			return err
		}
		return o.Submit(ctx, orderID)
	}
	if err := o.GeneratePDFs(ctx, orderID); err != nil {
		return err
	}
	return o.Submit(ctx, orderID)
}

// Reconcile polls the vendor for one order and applies the result. Vendor
// statuses outside the mapping table, or ones that would move the order
// backwards, change nothing; the vendor is not trusted to be monotonic.
func (o *Orchestrator) Reconcile(ctx context.Context, orderID string) error {
	ctx = services.WithOperation(services.WithOrderID(ctx, orderID), "reconcile")

	order, err := o.loadOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if !order.Status.Reconcilable() {
		o.logger.Debug("order not eligible for reconciliation",
			logging.String(logging.FieldOrderID, orderID),
			logging.String(logging.FieldStatus, string(order.Status)))
		return nil
	}
	if order.VendorJobID == "" {
		return services.Wrap(services.ErrValidation, "orchestrator", "reconcile",
			"order "+orderID+" has no vendor job id", nil)
	}

	var result *lulu.PollResult
	err = o.backoff.Retry(ctx, func(ctx context.Context) error {
		var pollErr error
		result, pollErr = o.vendor.JobStatus(ctx, order.VendorJobID)
		return pollErr
	})
	if err != nil {
		// Poll failures leave the order untouched; the next sweep tries
		// again. Only submissions fail orders.
		return err
	}

	if result.VendorStatus != "" && result.VendorStatus != order.VendorStatus {
		if err := o.orders.SetVendorStatus(ctx, orderID, result.VendorStatus); err != nil {
			return err
		}
	}

	mapped := result.MappedStatus
	if mapped == "" || mapped == order.Status {
		return nil
	}
	if mapped == orders.StatusFailed {
		reason := "vendor reported " + result.VendorStatus
		if result.Message != "" {
			reason += ": " + result.Message
		}
		o.failOrder(ctx, orderID, errors.New(reason))
		return nil
	}
	if !orders.IsForwardProgress(order.Status, mapped) {
		o.logger.Warn("ignoring vendor status that would regress order",
			logging.String(logging.FieldOrderID, orderID),
			logging.String(logging.FieldStatus, string(order.Status)),
			logging.String("vendor_status", result.VendorStatus))
		return nil
	}
	if err := o.orders.Transition(ctx, orderID, order.Status, mapped); err != nil {
		if errors.Is(err, orders.ErrStaleStatus) {
			return nil
		}
		return err
	}

	switch mapped {
	case orders.StatusShipped:
		if result.TrackingNumber != "" || result.TrackingURL != "" {
			if err := o.orders.SetTracking(ctx, orderID, result.TrackingNumber, result.TrackingURL); err != nil {
				return err
			}
		}
		if err := o.notifier.NotifyShipped(ctx, orderID, order.ContactEmail, result.TrackingNumber, result.TrackingURL); err != nil {
			o.logger.Warn("shipped notification failed",
				logging.String(logging.FieldOrderID, orderID), logging.Error(err))
		}
	case orders.StatusDelivered:
		if err := o.notifier.NotifyDelivered(ctx, orderID, order.ContactEmail); err != nil {
			o.logger.Warn("delivered notification failed",
				logging.String(logging.FieldOrderID, orderID), logging.Error(err))
		}
	}

	o.logger.Info("order reconciled",
		logging.String(logging.FieldOrderID, orderID),
		logging.String(logging.FieldStatus, string(mapped)),
		logging.String("vendor_status", result.VendorStatus))
	return nil
}

// SweepResult summarises one reconciliation pass.
type SweepResult struct {
	Checked int
	Failed  int
}

// ReconcileSweep polls every eligible order sequentially, pacing vendor
// calls with the configured delay. One order's poll failure does not stop
// the sweep.
func (o *Orchestrator) ReconcileSweep(ctx context.Context) (SweepResult, error) {
	eligible, err := o.orders.Reconcilable(ctx)
	if err != nil {
		return SweepResult{}, err
	}

	var result SweepResult
	for i, order := range eligible {
		if i > 0 && o.vendorCallDelay > 0 {
			if err := o.sleep(ctx, o.vendorCallDelay); err != nil {
				return result, err
			}
		}
		result.Checked++
		if err := o.Reconcile(ctx, order.ID); err != nil {
			result.Failed++
			o.logger.Warn("reconcile failed",
				logging.String(logging.FieldOrderID, order.ID),
				logging.Error(err))
		}
	}
	if result.Checked > 0 {
		o.logger.Info("reconciliation sweep finished",
			logging.Int("checked", result.Checked),
			logging.Int("failed", result.Failed))
	}
	return result, nil
}

// failOrder moves an order to failed, keeping the raw reason, and alerts.
// Terminal orders are left alone.
func (o *Orchestrator) failOrder(ctx context.Context, orderID string, cause error) {
	reason := "unknown failure"
	if cause != nil {
		reason = cause.Error()
	}
	if err := o.orders.MarkFailed(ctx, orderID, reason); err != nil {
		o.logger.Error("could not mark order failed",
			logging.String(logging.FieldOrderID, orderID),
			logging.Error(err))
		return
	}
	o.logger.Error("order failed",
		logging.String(logging.FieldOrderID, orderID),
		logging.String("reason", reason))
	if err := o.notifier.NotifyFailed(ctx, orderID, reason); err != nil {
		o.logger.Warn("failure notification failed",
			logging.String(logging.FieldOrderID, orderID),
			logging.Error(err))
	}
}

func (o *Orchestrator) loadOrder(ctx context.Context, orderID string) (*orders.Order, error) {
	order, err := o.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, services.Wrap(services.ErrNotFound, "orchestrator", "load", "order "+orderID+" not found", nil)
	}
	return order, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
