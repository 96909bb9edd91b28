package mobile

import (
	"context"
	"encoding/json"

	"sdkbridge/internal/sdk"
)

// NativeSDK is implemented by the host around its platform SDK. Only
// primitive types cross the boundary; parameters travel as JSON objects.
type NativeSDK interface {
	PlatformVersion() string
	Initialize(appID string, advertiserTrackingEnabled bool) error
	ActivateApp() error
	// LogEvent receives hasValue=false when the event carries no value.
	LogEvent(kind string, valueToSum float64, hasValue bool, paramsJSON string) error
	LogPurchase(amount float64, currency string, paramsJSON string) error
	OpenURL(url string) bool
	// FetchDeferredAppLink blocks until the lookup is done. "" means none.
	FetchDeferredAppLink() (string, error)
}

// nativeClient adapts NativeSDK to sdk.Client. Native calls cannot be
// interrupted; ctx is checked before each one.
type nativeClient struct{ n NativeSDK }

var _ sdk.Client = nativeClient{}

func (c nativeClient) PlatformVersion() string { return c.n.PlatformVersion() }

func (c nativeClient) Initialize(ctx context.Context, s sdk.Settings) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.n.Initialize(s.AppID, s.AdvertiserTrackingEnabled)
}

func (c nativeClient) ActivateApp(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.n.ActivateApp()
}

func (c nativeClient) LogEvent(ctx context.Context, e sdk.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	params, err := encodeParams(e.Parameters)
	if err != nil {
		return err
	}
	var v float64
	if e.ValueToSum != nil {
		v = *e.ValueToSum
	}
	return c.n.LogEvent(string(e.Kind), v, e.ValueToSum != nil, params)
}

func (c nativeClient) LogPurchase(ctx context.Context, p sdk.Purchase) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	params, err := encodeParams(p.Parameters)
	if err != nil {
		return err
	}
	return c.n.LogPurchase(p.Amount, p.Currency, params)
}

func (c nativeClient) OpenURL(_ context.Context, url string) bool { return c.n.OpenURL(url) }

func (c nativeClient) FetchDeferredAppLink(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return c.n.FetchDeferredAppLink()
}

func encodeParams(m map[string]any) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
