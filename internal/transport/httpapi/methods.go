package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"sdkbridge/internal/command"
	logx "sdkbridge/pkg/logx"
)

const maxBodyBytes = 1 << 20

var errBodyTooLarge = errors.New("request body too large")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// readBody returns the request body, or nil when it is empty or JSON null.
func readBody(r *http.Request) (json.RawMessage, error) {
	b, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if len(b) > maxBodyBytes {
		return nil, errBodyTooLarge
	}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil, nil
	}
	return b, nil
}

func (s *Server) handleListMethods(w http.ResponseWriter, _ *http.Request) {
	ok(w, command.Methods())
}

// handleMethod serves POST /v1/methods/{method}. The body is the call's
// arguments.
func (s *Server) handleMethod(w http.ResponseWriter, r *http.Request) {
	method := chi.URLParam(r, "method")
	args, err := readBody(r)
	if err != nil {
		s.observe(method, string(command.CodeInvalidArguments))
		fail(w, http.StatusBadRequest, string(command.CodeInvalidArguments), "could not read arguments", err.Error())
		return
	}

	res, err := s.deps.Bridge.Handle(r.Context(), command.Call{Method: method, Arguments: args})
	if err != nil {
		code := writeError(w, err)
		s.observe(method, code)
		s.log.Debug("method failed",
			logx.String("request_id", RequestID(r.Context())),
			logx.String("method", method),
			logx.String("code", code),
		)
		return
	}
	s.observe(method, "ok")
	ok(w, res)
}

func (s *Server) observe(method, code string) {
	if s.deps.Metrics == nil {
		return
	}
	// bound label cardinality: unknown names share one series
	if code == string(command.CodeNotImplemented) {
		method = "unknown"
	}
	s.deps.Metrics.ObserveCommand(method, code)
}
