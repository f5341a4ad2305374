package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/pluto-hub/plutohub/internal/account"
	"github.com/pluto-hub/plutohub/internal/apperr"
	"github.com/pluto-hub/plutohub/internal/catalog"
	"github.com/pluto-hub/plutohub/internal/contract"
	"github.com/pluto-hub/plutohub/internal/ledger"
	"github.com/pluto-hub/plutohub/internal/lobby"
	"github.com/pluto-hub/plutohub/internal/money"
	"github.com/pluto-hub/plutohub/pkg/identity"
)

// PlutoHandler holds the core Pluto Hub capabilities the HTTP surface is
// a thin adapter over — every handler below does validation and
// translation only, delegating all business logic to these services.
type PlutoHandler struct {
	accounts account.Store
	ledger   ledger.Store
	catalog  catalog.Store
	engine   *contract.Engine
	lobbies  *lobby.Service
	identity *identity.Client
}

// NewPlutoHandler wires a PlutoHandler from its capabilities.
func NewPlutoHandler(accounts account.Store, ledgerStore ledger.Store, cat catalog.Store, engine *contract.Engine, lobbies *lobby.Service, identityClient *identity.Client) *PlutoHandler {
	return &PlutoHandler{accounts: accounts, ledger: ledgerStore, catalog: cat, engine: engine, lobbies: lobbies, identity: identityClient}
}

func writeAppError(w http.ResponseWriter, err *apperr.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.HTTPStatus)
	json.NewEncoder(w).Encode(map[string]interface{}{"error": err})
}

func writeErr(w http.ResponseWriter, err error) {
	if appErr, ok := apperr.As(err); ok {
		writeAppError(w, appErr)
		return
	}
	writeAppError(w, apperr.Internal(err.Error()))
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// GetMyBalance handles GET /me/balance.
func (h *PlutoHandler) GetMyBalance(w http.ResponseWriter, r *http.Request) {
	extID, ok := externalAuthIDFromContext(r.Context())
	if !ok {
		writeAppError(w, apperr.Unauthorized("missing bearer identity"))
		return
	}
	u, err := h.accounts.FindByExternalAuthID(r.Context(), extID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"balance":          u.Balance.String(),
		"lockedBalance":    u.LockedBalance.String(),
		"availableBalance": u.AvailableBalance().String(),
	})
}

// GetMyHistory handles GET /me/history.
func (h *PlutoHandler) GetMyHistory(w http.ResponseWriter, r *http.Request) {
	extID, ok := externalAuthIDFromContext(r.Context())
	if !ok {
		writeAppError(w, apperr.Unauthorized("missing bearer identity"))
		return
	}
	u, err := h.accounts.FindByExternalAuthID(r.Context(), extID)
	if err != nil {
		writeErr(w, err)
		return
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	offset := 0
	if o := r.URL.Query().Get("offset"); o != "" {
		if n, err := strconv.Atoi(o); err == nil && n >= 0 {
			offset = n
		}
	}

	entries, total, err := h.ledger.History(r.Context(), u.UserID, limit, offset)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":    entries,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
		"hasMore": offset+len(entries) < total,
	})
}

// === Contract execution surface (Game-MAC protected) ===

type executeRequest struct {
	ContractID string   `json:"contractId"`
	PlayerIDs  []string `json:"playerIds"`
}

// ExecuteContract handles POST /contracts/execute.
func (h *PlutoHandler) ExecuteContract(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAppError(w, apperr.Validation("invalid request body", nil))
		return
	}

	result, err := h.engine.Execute(r.Context(), req.ContractID, req.PlayerIDs)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessionId":    result.SessionID,
		"sessionToken": result.SessionToken,
		"players":      result.Players,
		"totalPot":     result.TotalPot.String(),
		"expiresAt":    result.ExpiresAt,
	})
}

type settleResultInput struct {
	PlayerID  string  `json:"playerId"`
	IsWinner  bool    `json:"isWinner"`
	WinAmount *string `json:"winAmount,omitempty"`
}

type settleRequest struct {
	SessionToken string              `json:"sessionToken"`
	Results      []settleResultInput `json:"results"`
}

func parseSettleInputs(in []settleResultInput) ([]contract.SettleInput, error) {
	out := make([]contract.SettleInput, len(in))
	for i, r := range in {
		input := contract.SettleInput{PlayerID: r.PlayerID, IsWinner: r.IsWinner}
		if r.WinAmount != nil {
			amt, err := money.Parse(*r.WinAmount)
			if err != nil {
				return nil, err
			}
			input.WinAmount = &amt
		}
		out[i] = input
	}
	return out, nil
}

// SettleContract handles POST /contracts/settle.
func (h *PlutoHandler) SettleContract(w http.ResponseWriter, r *http.Request) {
	var req settleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAppError(w, apperr.Validation("invalid request body", nil))
		return
	}

	inputs, err := parseSettleInputs(req.Results)
	if err != nil {
		writeAppError(w, apperr.Validation(err.Error(), nil))
		return
	}

	result, err := h.engine.Settle(r.Context(), req.SessionToken, inputs)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessionId":            result.SessionID,
		"winners":              result.Winners,
		"platformFeeCollected": result.PlatformFeeCollected.String(),
	})
}

type cancelRequest struct {
	SessionToken string `json:"sessionToken"`
	Reason       string `json:"reason,omitempty"`
}

// CancelContract handles POST /contracts/cancel.
func (h *PlutoHandler) CancelContract(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAppError(w, apperr.Validation("invalid request body", nil))
		return
	}

	result, err := h.engine.Cancel(r.Context(), req.SessionToken, req.Reason)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessionId":       result.SessionID,
		"refundedPlayers": result.RefundedPlayers,
	})
}

// === Lobby surface ===

// ListLobbies handles GET /lobbies.
func (h *PlutoHandler) ListLobbies(w http.ResponseWriter, r *http.Request) {
	contractID := r.URL.Query().Get("contractId")
	lobbies, err := h.lobbies.List(r.Context(), contractID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lobbies)
}

// GetLobbyStatus handles GET /lobbies/{id}/status.
func (h *PlutoHandler) GetLobbyStatus(w http.ResponseWriter, r *http.Request) {
	lobbyID := mux.Vars(r)["id"]
	l, err := h.lobbies.Status(r.Context(), lobbyID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// StreamLobbyEvents handles GET /lobbies/{id}/events, an SSE stream of
// player_joined/player_left/lobby_starting/game_started/lobby_closed.
func (h *PlutoHandler) StreamLobbyEvents(w http.ResponseWriter, r *http.Request) {
	lobbyID := mux.Vars(r)["id"]
	if _, err := h.lobbies.Status(r.Context(), lobbyID); err != nil {
		writeErr(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeAppError(w, apperr.Internal("streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events, unsubscribe := h.lobbies.Subscribe(lobbyID)
	defer unsubscribe()

	heartbeat := time.NewTicker(lobby.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := w.Write(lobby.HeartbeatComment()); err != nil {
				return
			}
			flusher.Flush()
		case ev, ok := <-events:
			if !ok {
				return
			}
			frame, err := lobby.MarshalSSE(ev)
			if err != nil {
				continue
			}
			if _, err := w.Write(frame); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

type lobbyJoinRequest struct {
	ContractID string `json:"contractId"`
}

// JoinLobby handles POST /lobby/join.
func (h *PlutoHandler) JoinLobby(w http.ResponseWriter, r *http.Request) {
	extID, ok := externalAuthIDFromContext(r.Context())
	if !ok {
		writeAppError(w, apperr.Unauthorized("missing bearer identity"))
		return
	}
	u, err := h.accounts.FindByExternalAuthID(r.Context(), extID)
	if err != nil {
		writeErr(w, err)
		return
	}

	var req lobbyJoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAppError(w, apperr.Validation("invalid request body", nil))
		return
	}

	result, err := h.lobbies.Join(r.Context(), req.ContractID, u.UserID)
	if err != nil {
		writeErr(w, err)
		return
	}

	position := len(result.Lobby.Players)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"lobbyId":  result.Lobby.LobbyID,
		"position": position,
		"players":  result.Lobby.Players,
		"isReady":  result.Starting,
	})
}

// LeaveLobby handles POST /lobby/leave.
func (h *PlutoHandler) LeaveLobby(w http.ResponseWriter, r *http.Request) {
	extID, ok := externalAuthIDFromContext(r.Context())
	if !ok {
		writeAppError(w, apperr.Unauthorized("missing bearer identity"))
		return
	}
	u, err := h.accounts.FindByExternalAuthID(r.Context(), extID)
	if err != nil {
		writeErr(w, err)
		return
	}

	l, err := h.lobbies.Leave(r.Context(), u.UserID)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"lobbyId": l.LobbyID,
	})
}
