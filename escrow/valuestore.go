/*
valuestore.go - External fungible value store boundary

PURPOSE:
  The escrow core never holds token balances itself; it depends on an
  external fungible value store (a token ledger) through this narrow
  interface. Pull moves funds from a party into the ledger's custody,
  Push moves funds from custody out to a party.

FAILURE CONTRACT:
  Implementations must return an error wrapping ErrInsufficientFunds when
  the owner's balance or allowance cannot cover a Pull. Any other failure
  is treated as a transfer failure and aborts the enclosing ledger
  operation with zero state mutation.

IMPLEMENTATIONS:
  - token/memory.go: In-process token ledger with approve/allowance
    semantics, used for development and tests.

SEE ALSO:
  - ledger.go: The only two call sites (CreateContract, ApproveCondition)
*/
package escrow

import "context"

// ValueStore is the token ledger the escrow core takes custody through.
type ValueStore interface {
	// Pull transfers amount from the owner's account into the ledger's
	// custody. Requires the owner to have pre-authorized the custody
	// account for at least amount.
	Pull(ctx context.Context, from Identity, amount Amount) error

	// Push transfers amount from the ledger's custody to the payee.
	Push(ctx context.Context, to Identity, amount Amount) error
}
