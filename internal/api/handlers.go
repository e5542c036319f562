package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ernie/altcheck/internal/alts"
	"github.com/ernie/altcheck/internal/auth"
	"github.com/ernie/altcheck/internal/storage"
)

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// parseID parses an ID from the URL path
func parseID(req *http.Request, param string) (int64, error) {
	idStr := req.PathValue(param)
	return strconv.ParseInt(idStr, 10, 64)
}

// AltsResponse is the cluster returned by GET /api/alts
type AltsResponse struct {
	Seed      string   `json:"seed"`
	SeedKind  string   `json:"seed_kind"`
	Accounts  []string `json:"accounts"`
	Addresses []string `json:"ips"`
	Lines     []string `json:"lines"`
	Partial   bool     `json:"partial"`
	Warning   string   `json:"warning,omitempty"`
}

// handleAlts resolves the full cluster around ?seed=
func (r *Router) handleAlts(w http.ResponseWriter, req *http.Request) {
	seed, err := alts.ClassifySeed(req.URL.Query().Get("seed"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "seed is required")
		return
	}

	cluster, err := r.query.Resolve(req.Context(), seed)
	resp := AltsResponse{
		Seed:      seed.Value,
		SeedKind:  seed.Kind.String(),
		Accounts:  cluster.Accounts,
		Addresses: cluster.Addresses,
		Lines:     cluster.Lines(),
		Partial:   cluster.Partial,
	}
	if err != nil {
		resp.Warning = "lookup incomplete: the link store failed during traversal"
	}
	writeJSON(w, http.StatusOK, resp)
}

// ConnectRequest reports one player connection
type ConnectRequest struct {
	Account string `json:"account"`
	IP      string `json:"ip"`
	Source  string `json:"source,omitempty"`
}

// ConnectResponse lists the other accounts seen on the address
type ConnectResponse struct {
	Alts    []string `json:"alts"`
	Message string   `json:"message,omitempty"`
	AlertID string   `json:"alert_id,omitempty"`
}

// handleConnect records a connection and raises an alert on shared addresses
func (r *Router) handleConnect(w http.ResponseWriter, req *http.Request) {
	var body ConnectRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validateAccount(body.Account); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validateAddress(body.IP); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	source := body.Source
	if source == "" {
		if claims := r.getAuthClaims(req); claims != nil {
			source = "api:" + claims.Username
		}
	}

	alert, err := r.join.HandleConnect(req.Context(), source, body.Account, body.IP)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidLink) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		r.log.Error("Alt check failed", "account", body.Account, "ip", body.IP, "error", err)
		writeError(w, http.StatusServiceUnavailable, "alt check unavailable")
		return
	}

	if alert == nil {
		writeJSON(w, http.StatusOK, ConnectResponse{Alts: []string{}})
		return
	}

	if r.notifier != nil {
		if err := r.notifier.Notify(req.Context(), *alert); err != nil {
			r.log.Warn("Failed to deliver alert", "alert", alert.ID, "error", err)
		}
	}
	writeJSON(w, http.StatusOK, ConnectResponse{
		Alts:    alert.Alts,
		Message: alert.Message(),
		AlertID: alert.ID,
	})
}

// handleHealth returns server health status
func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	status := map[string]interface{}{
		"status": "ok",
	}
	if r.hub != nil {
		status["ws_clients"] = r.hub.ClientCount()
	}
	if r.store != nil {
		status["database"] = r.store.Driver()
		if err := r.store.Ping(req.Context()); err != nil {
			status["status"] = "degraded"
			status["error"] = err.Error()
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
	}
	writeJSON(w, http.StatusOK, status)
}

// handleWebSocket attaches a staff client to the alert stream. Browsers
// cannot set headers on a websocket handshake, so ?token= is accepted.
func (r *Router) handleWebSocket(w http.ResponseWriter, req *http.Request) {
	claims := r.getAuthClaims(req)
	if claims == nil {
		if token := req.URL.Query().Get("token"); token != "" {
			claims = r.validate(token)
		}
	}
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if !claims.HasPermission(auth.PermNotify) {
		writeError(w, http.StatusForbidden, auth.PermNotify+" permission required")
		return
	}
	r.hub.ServeWS(w, req, claims.Username)
}
