package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	logx "sdkbridge/pkg/logx"
)

type openRequest struct {
	URL string `json:"url" validate:"required,url"`
}

type openResponse struct {
	Handled bool `json:"handled"`
}

// handleLaunch mirrors the host app finishing launch.
func (s *Server) handleLaunch(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Bridge.DidFinishLaunching(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	ok(w, true)
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		fail(w, http.StatusBadRequest, codeBadRequest, "could not read body", err.Error())
		return
	}
	var req openRequest
	if body != nil {
		if err := json.Unmarshal(body, &req); err != nil {
			fail(w, http.StatusBadRequest, codeBadRequest, "body must be a JSON object", err.Error())
			return
		}
	}
	if err := validate.Struct(req); err != nil {
		fail(w, http.StatusBadRequest, codeBadRequest, "invalid open request", describe(err))
		return
	}

	handled := s.deps.Bridge.OpenURL(r.Context(), req.URL)
	s.log.Debug("url opened", logx.String("request_id", RequestID(r.Context())), logx.Bool("handled", handled))
	ok(w, openResponse{Handled: handled})
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Bridge.DidBecomeActive(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	ok(w, true)
}

func describe(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return err.Error()
	}
	f := ve[0]
	return f.Field() + ": " + f.Tag()
}
