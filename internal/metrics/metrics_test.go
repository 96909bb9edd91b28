package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sdkbridge/internal/eventbus"
	"sdkbridge/internal/linkqueue"
)

func TestObserveCommand(t *testing.T) {
	m := New(nil)
	m.ObserveCommand("getVersion", "ok")
	m.ObserveCommand("getVersion", "ok")
	m.ObserveCommand("logTeleport", "not_implemented")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.commands.WithLabelValues("getVersion", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commands.WithLabelValues("logTeleport", "not_implemented")))
}

func TestObserveQueue(t *testing.T) {
	m := New(nil)
	m.ObserveQueue(linkqueue.Stats{Pending: 3})
	assert.Equal(t, 3.0, testutil.ToFloat64(m.linksPending))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.attached))
	m.ObserveQueue(linkqueue.Stats{Attached: true})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.attached))
}

func TestConsumeBusEvents(t *testing.T) {
	bus := eventbus.New()
	m := New(bus)
	ch, unsub := bus.Subscribe(8)

	bus.Publish(eventbus.Event{Type: eventbus.LinkProduced, Data: eventbus.LinkData{URL: "u", Source: "open"}})
	bus.Publish(eventbus.Event{Type: eventbus.LinkDelivered, Data: eventbus.LinkData{URL: "u"}})
	bus.Publish(eventbus.Event{Type: eventbus.EventLogged, Data: eventbus.EventData{Method: "logAddToCart", Kind: "added_to_cart"}})
	unsub()

	m.Consume(context.Background(), ch)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.linksProduced.WithLabelValues("open")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.linksDelivered))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.events.WithLabelValues("added_to_cart")))
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := New(nil)
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Post("/v1/methods/{method}", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/methods/getVersion", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("/v1/methods/{method}", "POST", "418")))
}

func TestHandlerExposesNamespace(t *testing.T) {
	m := New(nil)
	m.ObserveCommand("getVersion", "ok")
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "sdkbridge_commands_total"))
}
