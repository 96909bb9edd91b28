// Package command models the bridge's inbound command surface.
//
// Each host method maps to one variant type carrying strongly typed
// arguments. Decode turns a raw Call into a variant, or into a *Error with
// CodeInvalidArguments / CodeNotImplemented; callers dispatch with a type
// switch over Command.
package command

import "encoding/json"

// Method names accepted from the host.
const (
	MethodGetVersion              = "getVersion"
	MethodGetPlatformVersion      = "getPlatformVersion" // alias of getVersion
	MethodGetDeepLinkURL          = "getDeepLinkUrl"
	MethodLogViewedContent        = "logViewedContent"
	MethodLogAddToCart            = "logAddToCart"
	MethodLogAddToWishlist        = "logAddToWishlist"
	MethodLogCompleteRegistration = "logCompleteRegistration"
	MethodLogPurchase             = "logPurchase"
	MethodLogSearch               = "logSearch"
	MethodLogInitiateCheckout     = "logInitiateCheckout"
	MethodLogEvent                = "logEvent"
)

// Call is a host method invocation as it arrives over the wire.
type Call struct {
	Method    string          `json:"method"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Command is implemented by every variant below.
type Command interface {
	Method() string
	isCommand()
}

type GetVersion struct{}

type GetDeepLinkURL struct{}

// Content is shared by the content-style logging commands.
type Content struct {
	ContentType string
	ContentData string
	ContentID   string
	Currency    string
	Price       float64
}

type LogViewedContent struct{ Content }

type LogAddToCart struct{ Content }

type LogAddToWishlist struct{ Content }

type LogCompleteRegistration struct {
	RegistrationMethod string
}

type LogPurchase struct {
	Amount     float64
	Currency   string
	Parameters map[string]any
}

type LogSearch struct {
	ContentType  string
	ContentData  string
	ContentID    string
	SearchString string
	Success      bool
}

type LogInitiateCheckout struct {
	ContentData          string
	ContentID            string
	ContentType          string
	Currency             string
	NumItems             int
	PaymentInfoAvailable bool
	TotalPrice           float64
}

// LogEvent logs a free-form event. ValueToSum and Parameters are optional.
type LogEvent struct {
	EventName  string
	ValueToSum *float64
	Parameters map[string]any
}

func (GetVersion) Method() string              { return MethodGetVersion }
func (GetDeepLinkURL) Method() string          { return MethodGetDeepLinkURL }
func (LogViewedContent) Method() string        { return MethodLogViewedContent }
func (LogAddToCart) Method() string            { return MethodLogAddToCart }
func (LogAddToWishlist) Method() string        { return MethodLogAddToWishlist }
func (LogCompleteRegistration) Method() string { return MethodLogCompleteRegistration }
func (LogPurchase) Method() string             { return MethodLogPurchase }
func (LogSearch) Method() string               { return MethodLogSearch }
func (LogInitiateCheckout) Method() string     { return MethodLogInitiateCheckout }
func (LogEvent) Method() string                { return MethodLogEvent }

func (GetVersion) isCommand()              {}
func (GetDeepLinkURL) isCommand()          {}
func (LogViewedContent) isCommand()        {}
func (LogAddToCart) isCommand()            {}
func (LogAddToWishlist) isCommand()        {}
func (LogCompleteRegistration) isCommand() {}
func (LogPurchase) isCommand()             {}
func (LogSearch) isCommand()               {}
func (LogInitiateCheckout) isCommand()     {}
func (LogEvent) isCommand()                {}
