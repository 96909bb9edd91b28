// Package sdk is the port to the wrapped app-events/deep-link SDK.
//
// The bridge talks only to Client. The daemon uses Journal; embedded hosts
// (see pkg/mobile) adapt their native SDK to the same interface.
package sdk

import "context"

// Kind names an app event. Values are this repository's own names; native
// adapters map them onto whatever the underlying SDK expects.
type Kind string

const (
	KindViewedContent         Kind = "viewed_content"
	KindAddedToCart           Kind = "added_to_cart"
	KindAddedToWishlist       Kind = "added_to_wishlist"
	KindCompletedRegistration Kind = "completed_registration"
	KindSearched              Kind = "searched"
	KindInitiatedCheckout     Kind = "initiated_checkout"
	// KindPurchased is recorded for LogPurchase calls.
	KindPurchased             Kind = "purchased"
)

// Parameter keys attached to events.
const (
	ParamContent              = "content"
	ParamContentID            = "content_id"
	ParamContentType          = "content_type"
	ParamCurrency             = "currency"
	ParamRegistrationMethod   = "registration_method"
	ParamSearchString         = "search_string"
	ParamSuccess              = "success"
	ParamNumItems             = "num_items"
	ParamPaymentInfoAvailable = "payment_info_available"
)

// Event is one app event. ValueToSum is optional.
type Event struct {
	Kind       Kind           `json:"kind"`
	ValueToSum *float64       `json:"value_to_sum,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// Purchase is logged through its own SDK call.
type Purchase struct {
	Amount     float64        `json:"amount"`
	Currency   string         `json:"currency"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// Settings are applied once at launch, before any event is logged.
type Settings struct {
	AppID                     string
	AdvertiserTrackingEnabled bool
}

// Client is the SDK surface the bridge depends on.
type Client interface {
	PlatformVersion() string
	Initialize(ctx context.Context, s Settings) error
	ActivateApp(ctx context.Context) error
	LogEvent(ctx context.Context, e Event) error
	LogPurchase(ctx context.Context, p Purchase) error
	// OpenURL forwards an opened link; it reports whether the SDK handled it.
	OpenURL(ctx context.Context, url string) bool
	// FetchDeferredAppLink blocks until the deferred link is resolved.
	// An empty string with a nil error means no deferred link exists.
	FetchDeferredAppLink(ctx context.Context) (string, error)
}

// Value returns a pointer to v, for Event.ValueToSum.
func Value(v float64) *float64 { return &v }
