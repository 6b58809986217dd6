package payment

import "context"

// Gateway is the confirmation surface the order flow consumes. The core asks
// once per online-payment order whether the referenced payment went through
// and acts on the boolean; gateway protocol details stay behind this.
type Gateway interface {
	// Confirm reports whether the payment identified by gatewayRef for the
	// given order succeeded. A false with nil error is a definitive denial;
	// an error means the answer is not known yet (caller decides on retry
	// or timeout).
	Confirm(ctx context.Context, orderID, gatewayRef string) (bool, error)
}
