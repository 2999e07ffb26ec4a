package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// AssetTransferService moves funds between accounts. Transfers are
// synchronous and all-or-nothing from the core's perspective: a nil error
// means the full amount moved, any error means nothing moved.
type AssetTransferService interface {
	// MoveFunds transfers amount of asset from one account to another
	MoveFunds(ctx context.Context, from, to, asset string, amount decimal.Decimal) error

	// Balance reads the current balance of an account for an asset
	Balance(ctx context.Context, account, asset string) (decimal.Decimal, error)
}

// Quoter estimates swap output for a given input amount. Used to derive the
// minimum-output guard for scheduled executions.
type Quoter interface {
	Quote(ctx context.Context, sourceAsset, destAsset string, amount decimal.Decimal) (decimal.Decimal, error)
}

// Clock abstracts time so schedule and expiry gates are testable
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by time.Now
func SystemClock() Clock { return systemClock{} }

// NotificationSink receives cycle-completion and status-change events.
// Delivery is best-effort; callers ignore emit failures.
type NotificationSink interface {
	Emit(event Event)
}

// IdentityVerifier resolves an opaque API credential to a verified caller
// address. Used at the transport boundary; inner layers receive the
// already-verified address.
type IdentityVerifier interface {
	Verify(credential string) (string, error)
}
