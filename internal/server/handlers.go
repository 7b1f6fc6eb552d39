package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/adminstyler/adminstyler/internal/cssgen"
	apperrors "github.com/adminstyler/adminstyler/internal/errors"
	"github.com/adminstyler/adminstyler/internal/logging"
	"github.com/adminstyler/adminstyler/internal/security"
	"github.com/adminstyler/adminstyler/internal/settings"
)

// maxBodyBytes caps request bodies well above any legitimate settings
// payload.
const maxBodyBytes = 1 << 20

// apiResponse is the single JSON envelope every endpoint answers with
type apiResponse struct {
	Success bool          `json:"success"`
	Data    *responseData `json:"data,omitempty"`
	Error   *apiError     `json:"error,omitempty"`
}

type responseData struct {
	CSS      string                 `json:"css,omitempty"`
	Settings map[string]string      `json:"settings,omitempty"`
	Errors   []apperrors.FieldError `json:"errors,omitempty"`
	Nonce    string                 `json:"nonce,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// styleRequest is the body of preview and save requests. The action is
// implied by the endpoint; the nonce must have been issued for it.
type styleRequest struct {
	Nonce    string            `json:"nonce"`
	Settings map[string]string `json:"settings"`
}

type nonceRequest struct {
	Action string `json:"action"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeSecurityError answers 200 with success=false so the admin page
// can read the code and decide whether a nonce refresh and retry is
// worth attempting. Only the broad code and client-safe message go out;
// the detail stays in server logs.
func writeSecurityError(w http.ResponseWriter, secErr *apperrors.SecurityError) {
	writeJSON(w, http.StatusOK, apiResponse{
		Success: false,
		Error:   &apiError{Code: string(secErr.Code), Message: secErr.Message},
	})
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusInternalServerError, apiResponse{
		Success: false,
		Error:   &apiError{Code: "internal", Message: message},
	})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, apiResponse{
		Success: false,
		Error:   &apiError{Code: "method", Message: "method not allowed"},
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, into any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		writeJSON(w, http.StatusBadRequest, apiResponse{
			Success: false,
			Error:   &apiError{Code: "body", Message: "malformed request body"},
		})
		return false
	}
	return true
}

// principalFromRequest resolves the session token in the Authorization
// header into a principal. Anonymous or bad tokens yield an empty
// principal; the capability check downstream rejects it.
func (s *Server) principalFromRequest(r *http.Request) security.Principal {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return security.Principal{}
	}

	principal, err := s.sessions.Verify(token)
	if err != nil {
		s.logger.Debug(r.Context(), "session token rejected",
			"token", logging.RedactToken(token))
		return security.Principal{}
	}
	return principal
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, apiResponse{Success: true})
}

// handlePreviewCSS sanitizes the submitted values and answers with the
// CSS for the valid ones plus a per-field error list for the rest.
// Nothing is persisted.
func (s *Server) handlePreviewCSS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req styleRequest
	if !decodeBody(w, r, &req) {
		return
	}

	secErr := s.gate.Admit(r.Context(), security.Request{
		Action:    security.ActionPreviewCSS,
		Nonce:     req.Nonce,
		Principal: s.principalFromRequest(r),
		Payload:   req.Settings,
	})
	if secErr != nil {
		writeSecurityError(w, secErr)
		return
	}

	valid, fieldErrors := settings.SanitizeAll(req.Settings)
	writeJSON(w, http.StatusOK, apiResponse{
		Success: true,
		Data: &responseData{
			CSS:    cssgen.Generate(valid),
			Errors: fieldErrors,
		},
	})
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleGetSettings(w, r)
	case http.MethodPost:
		s.handleSaveSettings(w, r)
	default:
		methodNotAllowed(w)
	}
}

// handleGetSettings returns the persisted settings and the CSS they
// generate. Read-only, so no nonce is required, but the caller still
// needs the manage capability.
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	principal := s.principalFromRequest(r)
	if !s.caps.Can(principal, security.CapManageOptions) {
		writeSecurityError(w, apperrors.NewSecurityError(
			apperrors.CodeCapability, "insufficient permissions"))
		return
	}

	values, err := s.store.Load(r.Context())
	if err != nil {
		s.logger.Error(r.Context(), err, "loading settings failed")
		writeInternalError(w, "loading settings failed")
		return
	}

	writeJSON(w, http.StatusOK, apiResponse{
		Success: true,
		Data: &responseData{
			Settings: values,
			CSS:      cssgen.Generate(values),
		},
	})
}

// handleSaveSettings persists the valid subset of the submitted values,
// regenerates the stylesheet from the full stored state, and pushes it
// to connected preview pages. Invalid fields are reported but never
// block their valid siblings.
func (s *Server) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	var req styleRequest
	if !decodeBody(w, r, &req) {
		return
	}

	secErr := s.gate.Admit(r.Context(), security.Request{
		Action:    security.ActionSaveSettings,
		Nonce:     req.Nonce,
		Principal: s.principalFromRequest(r),
		Payload:   req.Settings,
	})
	if secErr != nil {
		writeSecurityError(w, secErr)
		return
	}

	valid, fieldErrors := settings.SanitizeAll(req.Settings)
	if err := s.store.Save(r.Context(), valid); err != nil {
		s.logger.Error(r.Context(), err, "saving settings failed")
		writeInternalError(w, "saving settings failed")
		return
	}

	stored, err := s.store.Load(r.Context())
	if err != nil {
		// The save landed; fall back to broadcasting what we just wrote.
		s.logger.Warn(r.Context(), err, "reloading settings after save failed")
		stored = valid
	}

	css := cssgen.Generate(stored)
	s.BroadcastCSS(css)
	s.logger.Info(r.Context(), "settings saved",
		"saved", len(valid),
		"rejected", len(fieldErrors))

	writeJSON(w, http.StatusOK, apiResponse{
		Success: true,
		Data: &responseData{
			CSS:      css,
			Settings: valid,
			Errors:   fieldErrors,
		},
	})
}

// handleNonce issues a fresh nonce for the requested action. Guarded by
// the session capability rather than a nonce, since this is the path a
// page with an expired nonce recovers through.
func (s *Server) handleNonce(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req nonceRequest
	if !decodeBody(w, r, &req) {
		return
	}

	principal := s.principalFromRequest(r)
	if !s.caps.Can(principal, security.CapManageOptions) {
		writeSecurityError(w, apperrors.NewSecurityError(
			apperrors.CodeCapability, "insufficient permissions"))
		return
	}

	if !issuableAction(req.Action) {
		writeJSON(w, http.StatusOK, apiResponse{
			Success: false,
			Error:   &apiError{Code: string(apperrors.CodeNonce), Message: "unknown action"},
		})
		return
	}

	nonce, err := s.nonces.Issue(req.Action)
	if err != nil {
		s.logger.Error(r.Context(), err, "issuing nonce failed", "action", req.Action)
		writeInternalError(w, "issuing nonce failed")
		return
	}

	writeJSON(w, http.StatusOK, apiResponse{
		Success: true,
		Data:    &responseData{Nonce: nonce},
	})
}

// issuableAction limits refresh to the actions a page legitimately
// retries. Nobody needs a nonce for the refresh endpoint itself.
func issuableAction(action string) bool {
	switch action {
	case security.ActionPreviewCSS, security.ActionSaveSettings:
		return true
	default:
		return false
	}
}
