package orders

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a print order.
type Status string

const (
	StatusPendingPayment   Status = "pending_payment"
	StatusPaymentReceived  Status = "payment_received"
	StatusGeneratingPDFs   Status = "generating_pdfs"
	StatusSubmittingToLulu Status = "submitting_to_lulu"
	StatusSubmitted        Status = "submitted"
	StatusInProduction     Status = "in_production"
	StatusShipped          Status = "shipped"
	StatusDelivered        Status = "delivered"
	StatusFailed           Status = "failed"
)

var allStatuses = []Status{
	StatusPendingPayment,
	StatusPaymentReceived,
	StatusGeneratingPDFs,
	StatusSubmittingToLulu,
	StatusSubmitted,
	StatusInProduction,
	StatusShipped,
	StatusDelivered,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// statusRank orders statuses along the forward path. Reconciliation only
// applies a vendor-mapped status when its rank exceeds the current one, so
// a stale vendor read can never regress an order.
var statusRank = map[Status]int{
	StatusPendingPayment:   0,
	StatusPaymentReceived:  1,
	StatusGeneratingPDFs:   2,
	StatusSubmittingToLulu: 3,
	StatusSubmitted:        4,
	StatusInProduction:     5,
	StatusShipped:          6,
	StatusDelivered:        7,
}

// allowedTransitions is the forward edge set of the lifecycle. Failed is
// reachable from every non-terminal status; the two failed->* edges are the
// manual retry paths (resubmit when artifacts exist, otherwise regenerate).
var allowedTransitions = map[Status][]Status{
	StatusPendingPayment:   {StatusPaymentReceived, StatusFailed},
	StatusPaymentReceived:  {StatusGeneratingPDFs, StatusFailed},
	StatusGeneratingPDFs:   {StatusSubmittingToLulu, StatusFailed},
	StatusSubmittingToLulu: {StatusSubmitted, StatusFailed},
	StatusSubmitted:        {StatusInProduction, StatusShipped, StatusDelivered, StatusFailed},
	StatusInProduction:     {StatusShipped, StatusDelivered, StatusFailed},
	StatusShipped:          {StatusDelivered, StatusFailed},
	StatusDelivered:        {},
	StatusFailed:           {StatusGeneratingPDFs, StatusSubmittingToLulu},
}

// transitionalStatuses are mid-operation states. Reconciliation never
// touches an order in one of these.
var transitionalStatuses = map[Status]struct{}{
	StatusGeneratingPDFs:   {},
	StatusSubmittingToLulu: {},
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// CanTransition reports whether the lifecycle permits moving from one
// status to another.
func CanTransition(from, to Status) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Rank returns the forward-path position of a status. Failed has no rank;
// the second return is false for it and unknown statuses.
func Rank(status Status) (int, bool) {
	rank, ok := statusRank[status]
	return rank, ok
}

// IsForwardProgress reports whether applying next to an order currently at
// current would advance it along the forward path.
func IsForwardProgress(current, next Status) bool {
	currentRank, ok := Rank(current)
	if !ok {
		return false
	}
	nextRank, ok := Rank(next)
	if !ok {
		return false
	}
	return nextRank > currentRank
}

// IsTerminal reports whether a status ends the lifecycle.
func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusFailed
}

// IsTransitional reports whether a status marks an in-flight operation.
func (s Status) IsTransitional() bool {
	_, ok := transitionalStatuses[s]
	return ok
}

// Reconcilable reports whether an order in this status should be included
// in the reconciliation sweep. Orders still generating or submitting are
// mid-operation and skipped.
func (s Status) Reconcilable() bool {
	switch s {
	case StatusSubmitted, StatusInProduction, StatusShipped:
		return true
	default:
		return false
	}
}

// ArtifactKind identifies one of the two generated documents.
type ArtifactKind string

const (
	ArtifactInterior ArtifactKind = "interior"
	ArtifactCover    ArtifactKind = "cover"
)

// Artifact records one stored generated document. Artifacts are write-once;
// a regeneration inserts a new row with a fresh reference.
type Artifact struct {
	ID          int64
	OrderID     string
	Kind        ArtifactKind
	Ref         string
	ContentType string
	Size        int64
	CreatedAt   time.Time
}

// Address is the shipping destination in the vendor's field vocabulary.
type Address struct {
	Name        string
	Street1     string
	Street2     string
	City        string
	StateCode   string
	PostalCode  string
	CountryCode string
	Phone       string
}

// Order represents a print order persisted in SQLite.
type Order struct {
	ID            string
	BookID        string
	Status        Status
	InteriorRef   string
	CoverRef      string
	VendorJobID   string
	VendorStatus  string
	ContactEmail  string
	Shipping      Address
	TrackingNum   string
	TrackingURL   string
	PriceCents    int64
	Currency      string
	FailureReason string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// HasArtifacts reports whether both generated documents are stored. A
// submission attempt requires this.
func (o Order) HasArtifacts() bool {
	return strings.TrimSpace(o.InteriorRef) != "" && strings.TrimSpace(o.CoverRef) != ""
}

// HealthSummary describes aggregated order counts per key lifecycle states.
type HealthSummary struct {
	Total     int
	Pending   int
	InFlight  int
	Shipped   int
	Delivered int
	Failed    int
}
