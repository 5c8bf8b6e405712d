/*
handlers.go - HTTP API handlers for the escrow ledger

PURPOSE:
  Exposes the escrow state machine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to the ledger.

ENDPOINTS:
  Contracts:
    POST   /api/contracts                      Create and fund a contract
    GET    /api/contracts/{id}                 Get contract details
    GET    /api/contracts/{id}/balance         Remaining escrow balance
    GET    /api/contracts/{id}/events          Event history

  Conditions:
    POST   /api/contracts/{id}/conditions                     Add condition
    GET    /api/contracts/{id}/conditions/{conditionId}       Get condition
    POST   /api/contracts/{id}/conditions/{conditionId}/evidence  Submit evidence
    POST   /api/contracts/{id}/conditions/{conditionId}/approve   Approve + pay
    POST   /api/contracts/{id}/conditions/{conditionId}/reject    Reject

CALLER IDENTITY:
  The upstream gateway authenticates users and forwards the mapped
  identity in the X-Actor-ID header. Mutating endpoints reject requests
  without it; the ledger then enforces the role that identity must hold.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Invalid input
  - 403: Caller lacks the required role
  - 404: Contract/condition not found
  - 409: Duplicate id or illegal state transition
  - 422: Funding or custody bound violation
  - 502: External value store failure
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clearhold/escrow-engine/escrow"
)

// actorHeader carries the caller identity mapped by the upstream gateway.
const actorHeader = "X-Actor-ID"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Ledger *escrow.Ledger
}

// NewHandler creates a new handler around the ledger.
func NewHandler(ledger *escrow.Ledger) *Handler {
	return &Handler{Ledger: ledger}
}

func caller(r *http.Request) escrow.Identity {
	return escrow.Identity(r.Header.Get(actorHeader))
}

// =============================================================================
// CONTRACT HANDLERS
// =============================================================================

// CreateContract funds and records a new contract. The caller is the payer.
func (h *Handler) CreateContract(w http.ResponseWriter, r *http.Request) {
	payer := caller(r)
	if payer == "" {
		writeError(w, http.StatusBadRequest, "Missing "+actorHeader+" header", nil)
		return
	}

	var req CreateContractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	total, err := escrow.ParseAmount(req.TotalAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid total_amount", err)
		return
	}

	contract, err := h.Ledger.CreateContract(r.Context(),
		escrow.ContractID(req.ID), payer, escrow.Identity(req.Approver), total)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toContractDTO(contract))
}

// GetContract returns a single contract.
func (h *Handler) GetContract(w http.ResponseWriter, r *http.Request) {
	id := escrow.ContractID(chi.URLParam(r, "id"))

	contract, err := h.Ledger.GetContract(r.Context(), id)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toContractDTO(contract))
}

// GetBalance returns the remaining escrow balance for a contract.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id := escrow.ContractID(chi.URLParam(r, "id"))

	contract, err := h.Ledger.GetContract(r.Context(), id)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceDTO{
		ContractID:     string(contract.ID),
		TotalAmount:    contract.TotalAmount.String(),
		ReleasedAmount: contract.ReleasedAmount.String(),
		EscrowBalance:  contract.EscrowBalance().String(),
	})
}

// GetEvents returns a contract's event history in sequence order.
func (h *Handler) GetEvents(w http.ResponseWriter, r *http.Request) {
	id := escrow.ContractID(chi.URLParam(r, "id"))

	events, err := h.Ledger.Events(r.Context(), id)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	dtos := make([]EventDTO, len(events))
	for i, e := range events {
		dtos[i] = toEventDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// CONDITION HANDLERS
// =============================================================================

// AddCondition attaches a payable milestone. Payer only.
func (h *Handler) AddCondition(w http.ResponseWriter, r *http.Request) {
	contractID := escrow.ContractID(chi.URLParam(r, "id"))
	actor := caller(r)
	if actor == "" {
		writeError(w, http.StatusBadRequest, "Missing "+actorHeader+" header", nil)
		return
	}

	var req AddConditionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := escrow.ParseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	condition, err := h.Ledger.AddCondition(r.Context(), actor, contractID,
		escrow.ConditionID(req.ID), escrow.Identity(req.Payee), amount)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toConditionDTO(condition))
}

// GetCondition returns a single condition.
func (h *Handler) GetCondition(w http.ResponseWriter, r *http.Request) {
	contractID := escrow.ContractID(chi.URLParam(r, "id"))
	conditionID := escrow.ConditionID(chi.URLParam(r, "conditionId"))

	condition, err := h.Ledger.GetCondition(r.Context(), contractID, conditionID)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toConditionDTO(condition))
}

// SubmitEvidence stores the evidence hash and moves the condition into
// adjudication.
func (h *Handler) SubmitEvidence(w http.ResponseWriter, r *http.Request) {
	contractID := escrow.ContractID(chi.URLParam(r, "id"))
	conditionID := escrow.ConditionID(chi.URLParam(r, "conditionId"))
	actor := caller(r)
	if actor == "" {
		writeError(w, http.StatusBadRequest, "Missing "+actorHeader+" header", nil)
		return
	}

	var req SubmitEvidenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	hash := req.EvidenceHash
	if hash == "" && req.Evidence != "" {
		hash = escrow.HashEvidence(req.Evidence)
	}
	if hash == "" {
		writeError(w, http.StatusBadRequest, "Either evidence_hash or evidence is required", nil)
		return
	}

	condition, err := h.Ledger.SubmitEvidence(r.Context(), actor, contractID, conditionID, hash)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toConditionDTO(condition))
}

// ApproveCondition approves and pays out. Approver only.
func (h *Handler) ApproveCondition(w http.ResponseWriter, r *http.Request) {
	contractID := escrow.ContractID(chi.URLParam(r, "id"))
	conditionID := escrow.ConditionID(chi.URLParam(r, "conditionId"))
	actor := caller(r)
	if actor == "" {
		writeError(w, http.StatusBadRequest, "Missing "+actorHeader+" header", nil)
		return
	}

	condition, err := h.Ledger.ApproveCondition(r.Context(), actor, contractID, conditionID)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toConditionDTO(condition))
}

// RejectCondition rejects a judging condition. Approver only.
func (h *Handler) RejectCondition(w http.ResponseWriter, r *http.Request) {
	contractID := escrow.ContractID(chi.URLParam(r, "id"))
	conditionID := escrow.ConditionID(chi.URLParam(r, "conditionId"))
	actor := caller(r)
	if actor == "" {
		writeError(w, http.StatusBadRequest, "Missing "+actorHeader+" header", nil)
		return
	}

	condition, err := h.Ledger.RejectCondition(r.Context(), actor, contractID, conditionID)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toConditionDTO(condition))
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeLedgerError maps ledger errors to HTTP statuses.
func writeLedgerError(w http.ResponseWriter, err error) {
	switch {
	case escrow.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case errors.Is(err, escrow.ErrNotAuthorized):
		writeError(w, http.StatusForbidden, "Not authorized", err)
	case escrow.IsConflict(err):
		writeError(w, http.StatusConflict, "Conflict", err)
	case errors.Is(err, escrow.ErrInsufficientFunds),
		errors.Is(err, escrow.ErrInsufficientEscrowBalance):
		writeError(w, http.StatusUnprocessableEntity, "Insufficient funds", err)
	case errors.Is(err, escrow.ErrTransferFailed):
		writeError(w, http.StatusBadGateway, "Value store transfer failed", err)
	case escrow.IsClientError(err):
		writeError(w, http.StatusBadRequest, "Invalid request", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}
