package security

import (
	"context"

	apperrors "github.com/adminstyler/adminstyler/internal/errors"
	"github.com/adminstyler/adminstyler/internal/logging"
)

// Actions the gate admits. Anything else is rejected before the nonce
// check runs.
const (
	ActionPreviewCSS   = "get_preview_css"
	ActionSaveSettings = "save_settings"
	ActionRefreshNonce = "refresh_nonce"
)

// Request is an admission candidate: the action it claims, the nonce
// proving a legitimate page load, the authenticated principal, and the
// raw settings payload that will reach the sanitizer only if both gates
// pass.
type Request struct {
	Action    string
	Nonce     string
	Principal Principal
	Payload   map[string]string
}

// Gate runs the two security checks in sequence, terminal on first
// failure. Raw failure reasons are logged server-side; clients only see
// the broad code (nonce vs capability) they need for retry decisions.
type Gate struct {
	nonces     *NonceService
	caps       CapabilityChecker
	capability string
	logger     logging.Logger
}

// NewGate creates a gate requiring the given capability
func NewGate(nonces *NonceService, caps CapabilityChecker, capability string, logger logging.Logger) *Gate {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	return &Gate{
		nonces:     nonces,
		caps:       caps,
		capability: capability,
		logger:     logger.WithComponent("gate"),
	}
}

// Admit returns nil if the request may enter the settings pipeline.
// Gate order is fixed: nonce first, capability second.
func (g *Gate) Admit(ctx context.Context, req Request) *apperrors.SecurityError {
	if !knownAction(req.Action) {
		g.logger.Warn(ctx, nil, "rejected unknown action", "action", req.Action)
		return apperrors.NewSecurityError(apperrors.CodeNonce, "security token expired").
			WithDetail("unknown action " + req.Action)
	}

	if err := g.nonces.Verify(req.Nonce, req.Action); err != nil {
		g.logger.Warn(ctx, err, "nonce verification failed",
			"action", req.Action,
			"nonce", logging.RedactToken(req.Nonce))
		return apperrors.NewSecurityError(apperrors.CodeNonce, "security token expired").
			WithDetail(err.Error())
	}

	if !g.caps.Can(req.Principal, g.capability) {
		g.logger.Warn(ctx, nil, "capability check failed",
			"action", req.Action,
			"principal", req.Principal.ID,
			"capability", g.capability)
		return apperrors.NewSecurityError(apperrors.CodeCapability, "insufficient permissions")
	}

	return nil
}

func knownAction(action string) bool {
	switch action {
	case ActionPreviewCSS, ActionSaveSettings, ActionRefreshNonce:
		return true
	default:
		return false
	}
}
