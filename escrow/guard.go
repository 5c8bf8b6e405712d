/*
guard.go - Per-operation authorization checks

PURPOSE:
  Two roles exist, both bound to a contract at creation and immutable for
  its lifetime: the payer (authorizes funding and condition creation) and
  the approver (authorizes adjudication outcomes). There is no delegation,
  inheritance, or revocation.

EVIDENCE POLICY:
  Evidence submission authorization is configurable. The observed product
  behavior lets any caller submit evidence and move a condition into
  adjudication; some deployments instead restrict it to the contract's
  parties (payer or the condition's payee).

SEE ALSO:
  - ledger.go: Calls these checks before any state is touched
  - config/config.go: Surfaces the evidence policy setting
*/
package escrow

import "fmt"

// =============================================================================
// EVIDENCE POLICY
// =============================================================================

// EvidencePolicy controls who may submit evidence for a condition.
type EvidencePolicy string

const (
	// EvidenceOpen allows any caller to submit evidence. Default.
	EvidenceOpen EvidencePolicy = "open"

	// EvidenceParties restricts submission to the contract's payer or the
	// condition's payee.
	EvidenceParties EvidencePolicy = "parties"
)

// ParseEvidencePolicy validates a policy string from configuration.
func ParseEvidencePolicy(s string) (EvidencePolicy, error) {
	switch EvidencePolicy(s) {
	case EvidenceOpen, EvidenceParties:
		return EvidencePolicy(s), nil
	case "":
		return EvidenceOpen, nil
	default:
		return "", fmt.Errorf("unknown evidence policy %q", s)
	}
}

// =============================================================================
// GUARD - Role checks evaluated against the caller identity
// =============================================================================

type Guard struct {
	Evidence EvidencePolicy
}

// CheckPayer verifies the caller is the contract's payer.
func (g Guard) CheckPayer(caller Identity, c *Contract) error {
	if caller != c.Payer {
		return &AuthorizationError{ContractID: c.ID, Caller: caller, Role: "payer"}
	}
	return nil
}

// CheckApprover verifies the caller is the contract's approver.
func (g Guard) CheckApprover(caller Identity, c *Contract) error {
	if caller != c.Approver {
		return &AuthorizationError{ContractID: c.ID, Caller: caller, Role: "approver"}
	}
	return nil
}

// CheckEvidenceSubmitter applies the configured evidence policy.
func (g Guard) CheckEvidenceSubmitter(caller Identity, c *Contract, k *Condition) error {
	if g.Evidence == EvidenceOpen {
		return nil
	}
	if caller == c.Payer || caller == k.Payee {
		return nil
	}
	return &AuthorizationError{ContractID: c.ID, Caller: caller, Role: "party"}
}
