package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearhold/escrow-engine/api"
	"github.com/clearhold/escrow-engine/escrow"
	"github.com/clearhold/escrow-engine/escrow/store"
	"github.com/clearhold/escrow-engine/token"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type apiEnv struct {
	server *httptest.Server
	values *token.Memory
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	values := token.NewMemory("escrow-vault")
	ledger := escrow.NewLedger(store.NewMemory(), values)
	router := api.NewRouter(api.NewHandler(ledger), []string{"http://localhost:5173"})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &apiEnv{server: server, values: values}
}

func (e *apiEnv) fund(account escrow.Identity, amount int64) {
	e.values.Mint(account, escrow.NewAmount(amount))
	e.values.Approve(account, escrow.NewAmount(amount))
}

// do sends a request with the actor header and decodes the JSON response
// into out (when out is non-nil).
func (e *apiEnv) do(t *testing.T, method, path, actor string, body any, out any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if actor != "" {
		req.Header.Set("X-Actor-ID", actor)
	}

	resp, err := e.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

// createContract drives the standard P/L 100000 contract through the API.
func (e *apiEnv) createContract(t *testing.T, id string) {
	t.Helper()
	e.fund("P", 100000)
	resp := e.do(t, http.MethodPost, "/api/contracts", "P",
		map[string]string{"id": id, "approver": "L", "total_amount": "100000"}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

// =============================================================================
// FULL LIFECYCLE
// =============================================================================

func TestAPI_FullEscrowFlow(t *testing.T) {
	// GIVEN: Payer P funded with 100000
	// WHEN: Driving create -> add -> evidence -> approve through the HTTP API
	// THEN: Every response carries the expected state; the balance and event
	//       views reflect the payout

	env := newAPIEnv(t)
	env.fund("P", 100000)

	var contract api.ContractDTO
	resp := env.do(t, http.MethodPost, "/api/contracts", "P",
		map[string]string{"id": "c-1", "approver": "L", "total_amount": "100000"}, &contract)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "P", contract.Payer)
	assert.Equal(t, "100000", contract.EscrowBalance)
	assert.True(t, contract.IsActive)

	var condition api.ConditionDTO
	resp = env.do(t, http.MethodPost, "/api/contracts/c-1/conditions", "P",
		map[string]string{"id": "k-1", "payee": "Q", "amount": "50000"}, &condition)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "pending", condition.Status)

	resp = env.do(t, http.MethodPost, "/api/contracts/c-1/conditions/k-1/evidence", "Q",
		map[string]string{"evidence": "delivery receipt #4512"}, &condition)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "judging", condition.Status)
	assert.NotEmpty(t, condition.EvidenceHash, "raw evidence hashed server-side")

	resp = env.do(t, http.MethodPost, "/api/contracts/c-1/conditions/k-1/approve", "L", nil, &condition)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "executed", condition.Status)
	require.NotNil(t, condition.ExecutedAt)

	var balance api.BalanceDTO
	resp = env.do(t, http.MethodGet, "/api/contracts/c-1/balance", "", nil, &balance)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "50000", balance.EscrowBalance)
	assert.Equal(t, "50000", balance.ReleasedAmount)

	var events []api.EventDTO
	resp = env.do(t, http.MethodGet, "/api/contracts/c-1/events", "", nil, &events)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, events, 5)
	assert.Equal(t, "contract_created", events[0].Type)
	assert.Equal(t, "payment_executed", events[4].Type)
	assert.Equal(t, "Q", events[4].Payee)
	assert.Equal(t, "50000", events[4].Amount)
}

// =============================================================================
// STATUS MAPPING
// =============================================================================

func TestAPI_MissingActorHeader_BadRequest(t *testing.T) {
	env := newAPIEnv(t)

	resp := env.do(t, http.MethodPost, "/api/contracts", "",
		map[string]string{"id": "c-1", "approver": "L", "total_amount": "1"}, nil)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_WrongRole_Forbidden(t *testing.T) {
	env := newAPIEnv(t)
	env.createContract(t, "c-1")

	// Approver cannot add conditions
	resp := env.do(t, http.MethodPost, "/api/contracts/c-1/conditions", "L",
		map[string]string{"id": "k-1", "payee": "Q", "amount": "1"}, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Payer cannot adjudicate
	resp = env.do(t, http.MethodPost, "/api/contracts/c-1/conditions", "P",
		map[string]string{"id": "k-1", "payee": "Q", "amount": "1"}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = env.do(t, http.MethodPost, "/api/contracts/c-1/conditions/k-1/evidence", "Q",
		map[string]string{"evidence": "x"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = env.do(t, http.MethodPost, "/api/contracts/c-1/conditions/k-1/approve", "P", nil, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAPI_NotFound(t *testing.T) {
	env := newAPIEnv(t)

	resp := env.do(t, http.MethodGet, "/api/contracts/ghost", "", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	env.createContract(t, "c-1")
	resp = env.do(t, http.MethodGet, "/api/contracts/c-1/conditions/ghost", "", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_Conflicts(t *testing.T) {
	env := newAPIEnv(t)
	env.createContract(t, "c-1")

	// Duplicate contract id
	env.fund("P", 100000)
	resp := env.do(t, http.MethodPost, "/api/contracts", "P",
		map[string]string{"id": "c-1", "approver": "L", "total_amount": "100000"}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Approving a pending condition is an illegal transition
	resp = env.do(t, http.MethodPost, "/api/contracts/c-1/conditions", "P",
		map[string]string{"id": "k-1", "payee": "Q", "amount": "1"}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = env.do(t, http.MethodPost, "/api/contracts/c-1/conditions/k-1/approve", "L", nil, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAPI_FundingShortfall_Unprocessable(t *testing.T) {
	// GIVEN: Payer with no balance or allowance
	// WHEN: Creating a contract
	// THEN: 422, with the error detail naming the shortfall

	env := newAPIEnv(t)

	var errResp api.ErrorResponse
	resp := env.do(t, http.MethodPost, "/api/contracts", "broke",
		map[string]string{"id": "c-1", "approver": "L", "total_amount": "100000"}, &errResp)

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "Insufficient funds", errResp.Error)
}

func TestAPI_InvalidAmount_BadRequest(t *testing.T) {
	env := newAPIEnv(t)
	env.fund("P", 100000)

	resp := env.do(t, http.MethodPost, "/api/contracts", "P",
		map[string]string{"id": "c-1", "approver": "L", "total_amount": "not-a-number"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/contracts", "P",
		map[string]string{"id": "c-1", "approver": "L", "total_amount": "0"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_EvidenceRequiresHashOrRaw(t *testing.T) {
	env := newAPIEnv(t)
	env.createContract(t, "c-1")
	resp := env.do(t, http.MethodPost, "/api/contracts/c-1/conditions", "P",
		map[string]string{"id": "k-1", "payee": "Q", "amount": "1"}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/contracts/c-1/conditions/k-1/evidence", "Q",
		map[string]string{}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// A precomputed digest is accepted as-is
	var condition api.ConditionDTO
	hash := escrow.HashEvidence("audit-report-7")
	resp = env.do(t, http.MethodPost, "/api/contracts/c-1/conditions/k-1/evidence", "Q",
		map[string]string{"evidence_hash": hash}, &condition)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, hash, condition.EvidenceHash)
}
