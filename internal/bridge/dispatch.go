package bridge

import (
	"context"
	"fmt"

	"sdkbridge/internal/command"
	"sdkbridge/internal/eventbus"
	"sdkbridge/internal/sdk"
	logx "sdkbridge/pkg/logx"
)

// Handle decodes and runs one host method call.
//
// The result is a string for the getters and true for the logging methods.
// Errors are always *command.Error.
func (b *Bridge) Handle(ctx context.Context, call command.Call) (any, error) {
	cmd, err := command.Decode(call)
	if err != nil {
		b.log.Debug("method call rejected", logx.String("method", call.Method), logx.Err(err))
		return nil, err
	}
	return b.Dispatch(ctx, cmd)
}

// Dispatch runs an already decoded command.
func (b *Bridge) Dispatch(ctx context.Context, cmd command.Command) (any, error) {
	switch c := cmd.(type) {
	case command.GetVersion:
		return b.client.PlatformVersion(), nil
	case command.GetDeepLinkURL:
		return b.LastDeepLink(), nil
	case command.LogViewedContent:
		return b.logEvent(ctx, c.Method(), contentEvent(sdk.KindViewedContent, c.Content))
	case command.LogAddToCart:
		return b.logEvent(ctx, c.Method(), contentEvent(sdk.KindAddedToCart, c.Content))
	case command.LogAddToWishlist:
		return b.logEvent(ctx, c.Method(), contentEvent(sdk.KindAddedToWishlist, c.Content))
	case command.LogCompleteRegistration:
		return b.logEvent(ctx, c.Method(), sdk.Event{
			Kind:       sdk.KindCompletedRegistration,
			Parameters: map[string]any{sdk.ParamRegistrationMethod: c.RegistrationMethod},
		})
	case command.LogSearch:
		return b.logEvent(ctx, c.Method(), sdk.Event{
			Kind: sdk.KindSearched,
			Parameters: map[string]any{
				sdk.ParamContentType:  c.ContentType,
				sdk.ParamContent:      c.ContentData,
				sdk.ParamContentID:    c.ContentID,
				sdk.ParamSearchString: c.SearchString,
				sdk.ParamSuccess:      c.Success,
			},
		})
	case command.LogInitiateCheckout:
		return b.logEvent(ctx, c.Method(), sdk.Event{
			Kind:       sdk.KindInitiatedCheckout,
			ValueToSum: sdk.Value(c.TotalPrice),
			Parameters: map[string]any{
				sdk.ParamContent:              c.ContentData,
				sdk.ParamContentID:            c.ContentID,
				sdk.ParamContentType:          c.ContentType,
				sdk.ParamNumItems:             c.NumItems,
				sdk.ParamPaymentInfoAvailable: c.PaymentInfoAvailable,
				sdk.ParamCurrency:             c.Currency,
			},
		})
	case command.LogEvent:
		return b.logEvent(ctx, c.Method(), sdk.Event{
			Kind:       sdk.Kind(c.EventName),
			ValueToSum: c.ValueToSum,
			Parameters: c.Parameters,
		})
	case command.LogPurchase:
		if err := b.client.LogPurchase(ctx, sdk.Purchase{Amount: c.Amount, Currency: c.Currency, Parameters: c.Parameters}); err != nil {
			return nil, command.SDKFailure(c.Method(), err)
		}
		b.publish(eventbus.EventLogged, eventbus.EventData{Method: c.Method(), Kind: string(sdk.KindPurchased)})
		return true, nil
	default:
		// every variant is handled above; reaching this is a programming error
		return nil, command.NotImplemented(fmt.Sprintf("%T", cmd))
	}
}

func contentEvent(kind sdk.Kind, c command.Content) sdk.Event {
	return sdk.Event{
		Kind:       kind,
		ValueToSum: sdk.Value(c.Price),
		Parameters: map[string]any{
			sdk.ParamContent:     c.ContentData,
			sdk.ParamContentID:   c.ContentID,
			sdk.ParamContentType: c.ContentType,
			sdk.ParamCurrency:    c.Currency,
		},
	}
}

func (b *Bridge) logEvent(ctx context.Context, method string, e sdk.Event) (any, error) {
	if err := b.client.LogEvent(ctx, e); err != nil {
		b.log.Warn("sdk rejected event", logx.String("method", method), logx.Err(err))
		return nil, command.SDKFailure(method, err)
	}
	b.publish(eventbus.EventLogged, eventbus.EventData{Method: method, Kind: string(e.Kind)})
	return true, nil
}
