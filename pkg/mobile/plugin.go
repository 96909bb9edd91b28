// Package mobile is the embedding surface for native hosts (gomobile bind).
// The host implements NativeSDK and EventSink; Plugin routes method calls,
// lifecycle callbacks and the deep-link stream through the shared bridge.
package mobile

import (
	"context"
	"encoding/json"
	"errors"

	"sdkbridge/internal/bridge"
	"sdkbridge/internal/command"
	"sdkbridge/internal/linkqueue"
	"sdkbridge/internal/sdk"
	logx "sdkbridge/pkg/logx"
)

// EventSink receives deep links for the host's stream listener. Returning
// an error detaches the sink and keeps the link buffered.
type EventSink interface {
	Send(url string) error
}

// Result is the outcome of one method call. On success Code is empty and
// ValueJSON holds the JSON-encoded return value.
type Result struct {
	ValueJSON string
	Code      string
	Message   string
	Details   string
}

func (r *Result) OK() bool { return r.Code == "" }

type Plugin struct {
	b *bridge.Bridge
}

// NewPlugin builds a plugin around native. logLevel is a logx level name;
// "" disables logging.
func NewPlugin(native NativeSDK, appID string, advertiserTrackingEnabled bool, logLevel string) *Plugin {
	log := logx.Nop()
	if logLevel != "" {
		log = logx.NewConsole(logLevel).With(logx.String("comp", "mobile"))
	}
	return &Plugin{
		b: bridge.New(nativeClient{native},
			bridge.WithLogger(log),
			bridge.WithSettings(sdk.Settings{AppID: appID, AdvertiserTrackingEnabled: advertiserTrackingEnabled}),
		),
	}
}

// HandleMethodCall runs method with its JSON arguments ("" for none).
func (p *Plugin) HandleMethodCall(method, argsJSON string) *Result {
	var raw json.RawMessage
	if argsJSON != "" {
		raw = json.RawMessage(argsJSON)
	}
	v, err := p.b.Handle(context.Background(), command.Call{Method: method, Arguments: raw})
	if err != nil {
		return errorResult(err)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return errorResult(err)
	}
	return &Result{ValueJSON: string(b)}
}

func errorResult(err error) *Result {
	if ce, ok := command.AsError(err); ok {
		return &Result{Code: string(ce.Code), Message: ce.Message, Details: ce.Details}
	}
	if errors.Is(err, bridge.ErrClosed) {
		return &Result{Code: "unavailable", Message: err.Error()}
	}
	return &Result{Code: string(command.CodeSDK), Message: err.Error()}
}

// Listen attaches sink to the deep-link stream, replacing any previous
// sink. Buffered links are sent immediately. A nil sink detaches.
func (p *Plugin) Listen(sink EventSink) {
	if sink == nil {
		p.Cancel()
		return
	}
	p.b.Listen(linkqueue.ConsumerFunc(sink.Send))
}

// Cancel detaches the current sink.
func (p *Plugin) Cancel() { p.b.Cancel() }

// Listening reports whether a sink is attached.
func (p *Plugin) Listening() bool { return p.b.Queue().Attached() }

// DidFinishLaunching initializes the SDK and starts the deferred-link
// lookup in the background.
func (p *Plugin) DidFinishLaunching() error {
	return p.b.DidFinishLaunching(context.Background())
}

func (p *Plugin) OpenURL(url string) bool { return p.b.OpenURL(context.Background(), url) }

func (p *Plugin) DidBecomeActive() error { return p.b.DidBecomeActive(context.Background()) }

// Close stops pending lookups and detaches the sink.
func (p *Plugin) Close() error { return p.b.Close() }
