/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing
  field renaming without breaking clients and API-specific validation.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

AMOUNTS ON THE WIRE:
  Amounts travel as decimal strings in the token's smallest unit, never
  as JSON numbers, so precision survives every client runtime.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/clearhold/escrow-engine/escrow"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// CreateContractRequest funds and records a new escrow contract. The
// caller (X-Actor-ID header) becomes the payer.
type CreateContractRequest struct {
	ID          string `json:"id"`
	Approver    string `json:"approver"`
	TotalAmount string `json:"total_amount"`
}

// AddConditionRequest attaches a payable milestone to a contract.
type AddConditionRequest struct {
	ID     string `json:"id"`
	Payee  string `json:"payee"`
	Amount string `json:"amount"`
}

// SubmitEvidenceRequest moves a condition into adjudication. Exactly one
// of EvidenceHash (precomputed digest) or Evidence (raw reference, hashed
// server-side) must be set.
type SubmitEvidenceRequest struct {
	EvidenceHash string `json:"evidence_hash,omitempty"`
	Evidence     string `json:"evidence,omitempty"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// ContractDTO represents a contract in API responses.
type ContractDTO struct {
	ID             string `json:"id"`
	Payer          string `json:"payer"`
	Approver       string `json:"approver"`
	TotalAmount    string `json:"total_amount"`
	ReleasedAmount string `json:"released_amount"`
	EscrowBalance  string `json:"escrow_balance"`
	IsActive       bool   `json:"is_active"`
	ConditionCount int    `json:"condition_count"`
	CreatedAt      string `json:"created_at"`
}

func toContractDTO(c *escrow.Contract) ContractDTO {
	return ContractDTO{
		ID:             string(c.ID),
		Payer:          string(c.Payer),
		Approver:       string(c.Approver),
		TotalAmount:    c.TotalAmount.String(),
		ReleasedAmount: c.ReleasedAmount.String(),
		EscrowBalance:  c.EscrowBalance().String(),
		IsActive:       c.IsActive,
		ConditionCount: c.ConditionCount,
		CreatedAt:      c.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// ConditionDTO represents a condition in API responses.
type ConditionDTO struct {
	ID           string  `json:"id"`
	ContractID   string  `json:"contract_id"`
	Payee        string  `json:"payee"`
	Amount       string  `json:"amount"`
	Status       string  `json:"status"`
	EvidenceHash string  `json:"evidence_hash,omitempty"`
	CreatedAt    string  `json:"created_at"`
	ExecutedAt   *string `json:"executed_at,omitempty"`
}

func toConditionDTO(k *escrow.Condition) ConditionDTO {
	dto := ConditionDTO{
		ID:           string(k.ID),
		ContractID:   string(k.ContractID),
		Payee:        string(k.Payee),
		Amount:       k.Amount.String(),
		Status:       string(k.Status),
		EvidenceHash: k.EvidenceHash,
		CreatedAt:    k.CreatedAt.UTC().Format(time.RFC3339),
	}
	if k.ExecutedAt != nil {
		s := k.ExecutedAt.UTC().Format(time.RFC3339)
		dto.ExecutedAt = &s
	}
	return dto
}

// BalanceDTO is the escrow balance view for a contract.
type BalanceDTO struct {
	ContractID     string `json:"contract_id"`
	TotalAmount    string `json:"total_amount"`
	ReleasedAmount string `json:"released_amount"`
	EscrowBalance  string `json:"escrow_balance"`
}

// EventDTO represents one event log entry.
type EventDTO struct {
	Seq          uint64 `json:"seq"`
	Type         string `json:"type"`
	ContractID   string `json:"contract_id"`
	ConditionID  string `json:"condition_id,omitempty"`
	Payer        string `json:"payer,omitempty"`
	Approver     string `json:"approver,omitempty"`
	Payee        string `json:"payee,omitempty"`
	Amount       string `json:"amount,omitempty"`
	EvidenceHash string `json:"evidence_hash,omitempty"`
	At           string `json:"at"`
}

func toEventDTO(e escrow.Event) EventDTO {
	dto := EventDTO{
		Seq:          e.Seq,
		Type:         string(e.Type),
		ContractID:   string(e.ContractID),
		ConditionID:  string(e.ConditionID),
		Payer:        string(e.Payer),
		Approver:     string(e.Approver),
		Payee:        string(e.Payee),
		EvidenceHash: e.EvidenceHash,
		At:           e.At.UTC().Format(time.RFC3339),
	}
	if e.Amount != nil {
		dto.Amount = e.Amount.String()
	}
	return dto
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
