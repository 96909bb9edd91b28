package command

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report json names (contentId), not Go names (ContentID)
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Pointer fields let "required" mean "present and non-null": an explicit
// empty string or a zero price is a valid argument.

type contentArgs struct {
	ContentType *string  `json:"contentType" validate:"required"`
	ContentData *string  `json:"contentData" validate:"required"`
	ContentID   *string  `json:"contentId" validate:"required"`
	Currency    *string  `json:"currency" validate:"required"`
	Price       *float64 `json:"price" validate:"required"`
}

func (a contentArgs) content() Content {
	return Content{
		ContentType: *a.ContentType,
		ContentData: *a.ContentData,
		ContentID:   *a.ContentID,
		Currency:    *a.Currency,
		Price:       *a.Price,
	}
}

type registrationArgs struct {
	RegistrationMethod *string `json:"registrationMethod" validate:"required"`
}

type purchaseArgs struct {
	Amount     *float64       `json:"amount" validate:"required"`
	Currency   *string        `json:"currency" validate:"required"`
	Parameters map[string]any `json:"parameters"`
}

type searchArgs struct {
	ContentType  *string `json:"contentType" validate:"required"`
	ContentData  *string `json:"contentData" validate:"required"`
	ContentID    *string `json:"contentId" validate:"required"`
	SearchString *string `json:"searchString" validate:"required"`
	Success      *bool   `json:"success" validate:"required"`
}

type checkoutArgs struct {
	ContentData          *string  `json:"contentData" validate:"required"`
	ContentID            *string  `json:"contentId" validate:"required"`
	ContentType          *string  `json:"contentType" validate:"required"`
	Currency             *string  `json:"currency" validate:"required"`
	NumItems             *int     `json:"numItems" validate:"required,gte=0"`
	PaymentInfoAvailable *bool    `json:"paymentInfoAvailable" validate:"required"`
	TotalPrice           *float64 `json:"totalPrice" validate:"required"`
}

type eventArgs struct {
	EventName  *string        `json:"eventName" validate:"required,min=1"`
	ValueToSum *float64       `json:"valueToSum"`
	Parameters map[string]any `json:"parameters"`
}

type decoder func(method string, raw json.RawMessage) (Command, error)

var decoders = map[string]decoder{
	MethodGetVersion:         func(string, json.RawMessage) (Command, error) { return GetVersion{}, nil },
	MethodGetPlatformVersion: func(string, json.RawMessage) (Command, error) { return GetVersion{}, nil },
	MethodGetDeepLinkURL:     func(string, json.RawMessage) (Command, error) { return GetDeepLinkURL{}, nil },

	MethodLogViewedContent: func(m string, raw json.RawMessage) (Command, error) {
		var a contentArgs
		if err := bind(m, raw, &a); err != nil {
			return nil, err
		}
		return LogViewedContent{a.content()}, nil
	},
	MethodLogAddToCart: func(m string, raw json.RawMessage) (Command, error) {
		var a contentArgs
		if err := bind(m, raw, &a); err != nil {
			return nil, err
		}
		return LogAddToCart{a.content()}, nil
	},
	MethodLogAddToWishlist: func(m string, raw json.RawMessage) (Command, error) {
		var a contentArgs
		if err := bind(m, raw, &a); err != nil {
			return nil, err
		}
		return LogAddToWishlist{a.content()}, nil
	},
	MethodLogCompleteRegistration: func(m string, raw json.RawMessage) (Command, error) {
		var a registrationArgs
		if err := bind(m, raw, &a); err != nil {
			return nil, err
		}
		return LogCompleteRegistration{RegistrationMethod: *a.RegistrationMethod}, nil
	},
	MethodLogPurchase: func(m string, raw json.RawMessage) (Command, error) {
		var a purchaseArgs
		if err := bind(m, raw, &a); err != nil {
			return nil, err
		}
		return LogPurchase{Amount: *a.Amount, Currency: *a.Currency, Parameters: a.Parameters}, nil
	},
	MethodLogSearch: func(m string, raw json.RawMessage) (Command, error) {
		var a searchArgs
		if err := bind(m, raw, &a); err != nil {
			return nil, err
		}
		return LogSearch{
			ContentType:  *a.ContentType,
			ContentData:  *a.ContentData,
			ContentID:    *a.ContentID,
			SearchString: *a.SearchString,
			Success:      *a.Success,
		}, nil
	},
	MethodLogInitiateCheckout: func(m string, raw json.RawMessage) (Command, error) {
		var a checkoutArgs
		if err := bind(m, raw, &a); err != nil {
			return nil, err
		}
		return LogInitiateCheckout{
			ContentData:          *a.ContentData,
			ContentID:            *a.ContentID,
			ContentType:          *a.ContentType,
			Currency:             *a.Currency,
			NumItems:             *a.NumItems,
			PaymentInfoAvailable: *a.PaymentInfoAvailable,
			TotalPrice:           *a.TotalPrice,
		}, nil
	},
	MethodLogEvent: func(m string, raw json.RawMessage) (Command, error) {
		var a eventArgs
		if err := bind(m, raw, &a); err != nil {
			return nil, err
		}
		return LogEvent{EventName: *a.EventName, ValueToSum: a.ValueToSum, Parameters: a.Parameters}, nil
	},
}

// Decode resolves a call into its command variant.
func Decode(c Call) (Command, error) {
	dec, ok := decoders[c.Method]
	if !ok {
		return nil, NotImplemented(c.Method)
	}
	return dec(c.Method, c.Arguments)
}

// Methods lists every accepted method name, sorted.
func Methods() []string {
	out := make([]string, 0, len(decoders))
	for m := range decoders {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// bind decodes raw into dst and checks required fields.
func bind(method string, raw json.RawMessage, dst any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return InvalidArguments(method, "arguments must be a JSON object")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return InvalidArguments(method, describeDecodeError(err))
	}
	if err := validate.Struct(dst); err != nil {
		return InvalidArguments(method, describeValidation(err))
	}
	return nil
}

func describeDecodeError(err error) string {
	var te *json.UnmarshalTypeError
	if errors.As(err, &te) && te.Field != "" {
		return fmt.Sprintf("%s: expected %s, got %s", te.Field, te.Type.String(), te.Value)
	}
	return err.Error()
}

func describeValidation(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err.Error()
	}
	parts := make([]string, 0, len(ve))
	for _, fe := range ve {
		if fe.Tag() == "required" {
			parts = append(parts, fe.Field()+": required")
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
	}
	return strings.Join(parts, "; ")
}
