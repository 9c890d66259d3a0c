package web

// errors.go provides unified error response handling for the web layer.
//
// Errors are:
//   - Logged with full technical details server-side
//   - Mapped through core.MapError to a user message with a code
//   - Returned as JSON for API requests and as an HTML page otherwise
//
// Form posts do not use respondError: they redirect back with a flash
// notice (see redirectWith) so a reload does not repeat the post.

import (
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/PreChart2DB/internal/core"
	"github.com/JonMunkholm/PreChart2DB/internal/logging"
	"github.com/JonMunkholm/PreChart2DB/internal/web/templates"
)

// errBadRequest marks malformed request parameters.
var errBadRequest = errors.New("bad request")

// ErrorResponse represents the JSON structure for API error responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs err and writes a user-friendly response.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	userMsg := core.MapError(err)
	if errors.Is(err, errBadRequest) {
		userMsg = core.UserMessage{Message: err.Error(), Action: "Check the request parameters", Code: "REQ001"}
	}

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
	)

	if wantsJSON(r) {
		writeJSON(w, statusCode, ErrorResponse{
			Error:   userMsg.Message,
			Message: userMsg.Message,
			Action:  userMsg.Action,
			Code:    userMsg.Code,
		})
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)
	templates.ErrorPage(s.meta(), userMsg.Message, userMsg.Action, userMsg.Code).Render(r.Context(), w)
}

// statusFor picks the HTTP status for a service error.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrNoTable):
		return http.StatusConflict
	case errors.Is(err, core.ErrTooManyWrites), errors.Is(err, core.ErrTargetBusy):
		return http.StatusServiceUnavailable
	}
	switch core.MapError(err).Code {
	case "FILE001":
		return http.StatusRequestEntityTooLarge
	case "TBL003":
		return http.StatusNotFound
	case "ERR000", "DB001", "DB002", "DB004", "DB005":
		return http.StatusInternalServerError
	}
	return http.StatusUnprocessableEntity
}

// redirectWith stores a flash notice for err (or ok, when err is nil) and
// redirects to to.
func (s *Server) redirectWith(w http.ResponseWriter, r *http.Request, to string, err error, ok string) {
	sess := sessionFrom(r)
	switch {
	case err != nil:
		msg := core.MapError(err)
		if errors.Is(err, errBadRequest) {
			msg = core.UserMessage{Message: err.Error(), Code: "REQ001"}
		}
		logging.FromContext(r.Context()).Warn("action failed", "path", r.URL.Path, "error", err, "code", msg.Code)
		s.flashes.set(sess.ID, &templates.Flash{Message: msg.Message, Action: msg.Action, Code: msg.Code})
	case ok != "":
		s.flashes.set(sess.ID, &templates.Flash{Message: ok, OK: true})
	}
	http.Redirect(w, r, to, http.StatusSeeOther)
}

// wantsJSON checks if the client prefers a JSON response.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	return strings.HasPrefix(r.URL.Path, "/api/")
}
