package command

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const contentJSON = `{"contentType":"product","contentData":"shoe","contentId":"sku-1","currency":"USD","price":19.5}`

func TestDecodeContentCommands(t *testing.T) {
	t.Parallel()
	want := Content{ContentType: "product", ContentData: "shoe", ContentID: "sku-1", Currency: "USD", Price: 19.5}

	tests := []struct {
		method string
		want   Command
	}{
		{MethodLogViewedContent, LogViewedContent{want}},
		{MethodLogAddToCart, LogAddToCart{want}},
		{MethodLogAddToWishlist, LogAddToWishlist{want}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.method, func(t *testing.T) {
			got, err := Decode(Call{Method: tt.method, Arguments: json.RawMessage(contentJSON)})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.method, got.Method())
		})
	}
}

func TestDecodeMissingFieldIsInvalidArguments(t *testing.T) {
	t.Parallel()
	raw := `{"contentType":"product","contentData":"shoe","contentId":"sku-1","price":1}`
	_, err := Decode(Call{Method: MethodLogViewedContent, Arguments: json.RawMessage(raw)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidArguments))

	e, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, CodeInvalidArguments, e.Code)
	assert.Contains(t, e.Details, "currency: required")
}

func TestDecodeWrongTypeIsInvalidArguments(t *testing.T) {
	t.Parallel()
	raw := `{"contentType":"product","contentData":"shoe","contentId":"sku-1","currency":"USD","price":"19.5"}`
	_, err := Decode(Call{Method: MethodLogAddToCart, Arguments: json.RawMessage(raw)})
	require.ErrorIs(t, err, ErrInvalidArguments)
	e, _ := AsError(err)
	assert.Contains(t, e.Details, "price")
}

func TestDecodeNullFieldIsInvalidArguments(t *testing.T) {
	t.Parallel()
	raw := `{"contentType":null,"contentData":"shoe","contentId":"sku-1","currency":"USD","price":2}`
	_, err := Decode(Call{Method: MethodLogAddToWishlist, Arguments: json.RawMessage(raw)})
	require.ErrorIs(t, err, ErrInvalidArguments)
}

func TestDecodeRequiresObjectArguments(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "null", "[]", `"x"`} {
		_, err := Decode(Call{Method: MethodLogViewedContent, Arguments: json.RawMessage(raw)})
		assert.ErrorIs(t, err, ErrInvalidArguments, "arguments %q", raw)
	}
}

func TestDecodeEmptyStringsAndZeroPriceAreAccepted(t *testing.T) {
	t.Parallel()
	raw := `{"contentType":"","contentData":"","contentId":"","currency":"","price":0}`
	got, err := Decode(Call{Method: MethodLogViewedContent, Arguments: json.RawMessage(raw)})
	require.NoError(t, err)
	assert.Equal(t, LogViewedContent{}, got)
}

func TestDecodeUnknownMethodIsNotImplemented(t *testing.T) {
	t.Parallel()
	_, err := Decode(Call{Method: "doSomething"})
	require.ErrorIs(t, err, ErrNotImplemented)
	e, _ := AsError(err)
	assert.Equal(t, CodeNotImplemented, e.Code)
	assert.NotErrorIs(t, err, ErrInvalidArguments)
}

func TestDecodeNoArgumentCommands(t *testing.T) {
	t.Parallel()
	got, err := Decode(Call{Method: MethodGetVersion})
	require.NoError(t, err)
	assert.Equal(t, GetVersion{}, got)

	got, err = Decode(Call{Method: MethodGetPlatformVersion, Arguments: json.RawMessage(`{"ignored":true}`)})
	require.NoError(t, err)
	assert.Equal(t, GetVersion{}, got)

	got, err = Decode(Call{Method: MethodGetDeepLinkURL})
	require.NoError(t, err)
	assert.Equal(t, GetDeepLinkURL{}, got)
}

func TestDecodeCheckout(t *testing.T) {
	t.Parallel()
	raw := `{"contentData":"cart","contentId":"c-9","contentType":"product_group","currency":"EUR","numItems":3,"paymentInfoAvailable":true,"totalPrice":42.25}`
	got, err := Decode(Call{Method: MethodLogInitiateCheckout, Arguments: json.RawMessage(raw)})
	require.NoError(t, err)
	assert.Equal(t, LogInitiateCheckout{
		ContentData: "cart", ContentID: "c-9", ContentType: "product_group", Currency: "EUR",
		NumItems: 3, PaymentInfoAvailable: true, TotalPrice: 42.25,
	}, got)

	bad := `{"contentData":"cart","contentId":"c-9","contentType":"p","currency":"EUR","numItems":-1,"paymentInfoAvailable":true,"totalPrice":1}`
	_, err = Decode(Call{Method: MethodLogInitiateCheckout, Arguments: json.RawMessage(bad)})
	require.ErrorIs(t, err, ErrInvalidArguments)
	e, _ := AsError(err)
	assert.Contains(t, e.Details, "numItems")
}

func TestDecodeSearchAcceptsFalseSuccess(t *testing.T) {
	t.Parallel()
	raw := `{"contentType":"t","contentData":"d","contentId":"i","searchString":"red shoes","success":false}`
	got, err := Decode(Call{Method: MethodLogSearch, Arguments: json.RawMessage(raw)})
	require.NoError(t, err)
	assert.Equal(t, LogSearch{ContentType: "t", ContentData: "d", ContentID: "i", SearchString: "red shoes"}, got)
}

func TestDecodeGenericEvent(t *testing.T) {
	t.Parallel()
	got, err := Decode(Call{Method: MethodLogEvent, Arguments: json.RawMessage(`{"eventName":"level_up","valueToSum":2,"parameters":{"level":7}}`)})
	require.NoError(t, err)
	ev := got.(LogEvent)
	assert.Equal(t, "level_up", ev.EventName)
	require.NotNil(t, ev.ValueToSum)
	assert.Equal(t, 2.0, *ev.ValueToSum)
	assert.Equal(t, map[string]any{"level": float64(7)}, ev.Parameters)

	got, err = Decode(Call{Method: MethodLogEvent, Arguments: json.RawMessage(`{"eventName":"tap"}`)})
	require.NoError(t, err)
	assert.Nil(t, got.(LogEvent).ValueToSum)

	_, err = Decode(Call{Method: MethodLogEvent, Arguments: json.RawMessage(`{"eventName":""}`)})
	assert.ErrorIs(t, err, ErrInvalidArguments)

	_, err = Decode(Call{Method: MethodLogEvent, Arguments: json.RawMessage(`{"eventName":"x","parameters":[1]}`)})
	assert.ErrorIs(t, err, ErrInvalidArguments)
}

func TestDecodePurchaseAndRegistration(t *testing.T) {
	t.Parallel()
	got, err := Decode(Call{Method: MethodLogPurchase, Arguments: json.RawMessage(`{"amount":9.99,"currency":"USD"}`)})
	require.NoError(t, err)
	assert.Equal(t, LogPurchase{Amount: 9.99, Currency: "USD"}, got)

	got, err = Decode(Call{Method: MethodLogCompleteRegistration, Arguments: json.RawMessage(`{"registrationMethod":"email"}`)})
	require.NoError(t, err)
	assert.Equal(t, LogCompleteRegistration{RegistrationMethod: "email"}, got)

	_, err = Decode(Call{Method: MethodLogCompleteRegistration, Arguments: json.RawMessage(`{}`)})
	assert.ErrorIs(t, err, ErrInvalidArguments)
}

func TestSDKFailureUnwraps(t *testing.T) {
	t.Parallel()
	cause := errors.New("journal closed")
	err := error(SDKFailure(MethodLogAddToCart, cause))
	assert.ErrorIs(t, err, ErrSDK)
	assert.ErrorIs(t, err, cause)
}

func TestMethodsIncludesEveryDecoder(t *testing.T) {
	t.Parallel()
	ms := Methods()
	assert.Contains(t, ms, MethodGetVersion)
	assert.Contains(t, ms, MethodLogEvent)
	assert.Len(t, ms, len(decoders))
}
