package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caja/internal/core"
	"caja/internal/services"
	"caja/internal/storage"
)

type apiClient struct {
	t   *testing.T
	srv *Server
}

func newTestServer(t *testing.T) *apiClient {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "caja.db"), storage.Options{})
	require.NoError(t, err)
	ledger := services.NewLedgerService(repo, nil, services.LedgerServiceConfig{})
	srv := NewServer(":0", ledger, nil, Config{RateLimitPerMinute: 1000})
	t.Cleanup(func() {
		srv.limiter.Stop()
		ledger.Close()
	})
	return &apiClient{t: t, srv: srv}
}

// do sends a request as the treasurer unless anonymous is set, and decodes
// the JSON response into out when given.
func (c *apiClient) do(method, path string, body any, out any) *httptest.ResponseRecorder {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(ActorIDHeader, "treasurer-1")
	req.Header.Set(ActorRoleHeader, "treasurer")

	rr := httptest.NewRecorder()
	c.srv.Handler.ServeHTTP(rr, req)
	if out != nil && rr.Code < 300 {
		require.NoError(c.t, json.Unmarshal(rr.Body.Bytes(), out), rr.Body.String())
	}
	return rr
}

func (c *apiClient) mustDo(method, path string, body any, want int, out any) {
	c.t.Helper()
	rr := c.do(method, path, body, out)
	require.Equal(c.t, want, rr.Code, "%s %s: %s", method, path, rr.Body.String())
}

func errorKind(t *testing.T, rr *httptest.ResponseRecorder) core.Kind {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), rr.Body.String())
	return body.Kind
}

func TestHealthAndReady(t *testing.T) {
	c := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := c.do(http.MethodGet, path, nil, nil)
		assert.Equal(t, http.StatusOK, rr.Code, path)
		assert.NotEmpty(t, rr.Header().Get("X-Request-ID"), path)
		assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"), path)
	}
}

func TestUnknownRouteAndMethod(t *testing.T) {
	c := newTestServer(t)

	rr := c.do(http.MethodGet, "/api/v1/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = c.do(http.MethodDelete, "/api/v1/groups", nil, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestMissingActorIsRejected(t *testing.T) {
	c := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/groups",
		bytes.NewBufferString(`{"name":"G","frequency":"weekly","interest_rate":"5","fine_policy":{"kind":"fixed"}}`))
	rr := httptest.NewRecorder()
	c.srv.Handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, core.KindInvalidInput, errorKind(t, rr))
}

func TestInvalidPathID(t *testing.T) {
	c := newTestServer(t)
	rr := c.do(http.MethodGet, "/api/v1/loans/abc", nil, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = c.do(http.MethodGet, "/api/v1/loans/42", nil, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, core.KindNotFound, errorKind(t, rr))
}

// TestLedgerScenario walks the reference scenario: deposit 100, lend 80,
// refuse a second loan, repay 80+8, close with profit 8.
func TestLedgerScenario(t *testing.T) {
	c := newTestServer(t)

	var group core.Group
	c.mustDo(http.MethodPost, "/api/v1/groups", map[string]any{
		"name":          "San Isidro",
		"interest_rate": "10",
		"frequency":     "monthly",
		"fine_policy":   map[string]any{"kind": "fixed", "absent": "2.00", "excused": "1.00"},
	}, http.StatusCreated, &group)
	gpath := fmt.Sprintf("/api/v1/groups/%d", group.ID)

	var member core.Member
	c.mustDo(http.MethodPost, gpath+"/members", map[string]any{"name": "Ana"}, http.StatusCreated, &member)

	var entry core.SavingsEntry
	c.mustDo(http.MethodPost, "/api/v1/savings", map[string]any{
		"member_id": member.ID, "amount": "100.00",
	}, http.StatusCreated, &entry)
	assert.Equal(t, int64(10000), entry.Amount.Cents)

	var loan core.Loan
	c.mustDo(http.MethodPost, "/api/v1/loans", map[string]any{
		"member_id": member.ID, "principal": "80.00", "term": 2,
	}, http.StatusCreated, &loan)
	assert.Equal(t, core.LoanActive, loan.Status)

	var balance balanceResponse
	c.mustDo(http.MethodGet, gpath+"/cash", nil, http.StatusOK, &balance)
	assert.Equal(t, int64(2000), balance.Balance.Cents)

	rr := c.do(http.MethodPost, "/api/v1/loans", map[string]any{
		"member_id": member.ID, "principal": "50.00", "term": 1,
	}, nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, core.KindInsufficientFunds, errorKind(t, rr))

	var cycle core.Cycle
	c.mustDo(http.MethodPost, gpath+"/cycles", map[string]any{
		"start_date": "2025-01-01", "end_date": "2025-12-31",
	}, http.StatusCreated, &cycle)
	cpath := fmt.Sprintf("/api/v1/cycles/%d", cycle.ID)
	c.mustDo(http.MethodPost, cpath+"/activate", nil, http.StatusOK, &cycle)
	assert.Equal(t, core.CycleActive, cycle.Status)

	var check core.ValidationResult
	c.mustDo(http.MethodGet, cpath+"/can-close", nil, http.StatusOK, &check)
	assert.False(t, check.OK)

	rr = c.do(http.MethodPost, cpath+"/close", nil, nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
	var blocked errorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &blocked))
	require.Len(t, blocked.Blockers, 1)
	assert.Equal(t, core.ActiveLoansExist, blocked.Blockers[0].Kind)

	lpath := fmt.Sprintf("/api/v1/loans/%d", loan.ID)
	rr = c.do(http.MethodPost, lpath+"/payments", map[string]any{"capital": "90.00", "interest": "0"}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code, "overpayment rejected")

	var pay core.PaymentResult
	c.mustDo(http.MethodPost, lpath+"/payments", map[string]any{
		"capital": "80.00", "interest": "8.00",
	}, http.StatusCreated, &pay)
	assert.True(t, pay.BecamePaid)
	assert.True(t, pay.NewOutstanding.IsZero())

	var progress core.LoanProgress
	c.mustDo(http.MethodGet, lpath+"/progress", nil, http.StatusOK, &progress)
	assert.Equal(t, core.LoanPaid, progress.Status)
	assert.Equal(t, int64(800), progress.InterestPaid.Cents)

	var report core.ClosureReport
	c.mustDo(http.MethodPost, cpath+"/close", nil, http.StatusOK, &report)
	assert.Equal(t, int64(10000), report.TotalSavings.Cents)
	assert.Equal(t, int64(10800), report.CashBalance.Cents)
	assert.Equal(t, int64(800), report.NetProfit.Cents)
	require.Len(t, report.PerMember, 1)
	assert.Equal(t, int64(10800), report.PerMember[0].PayoutTotal.Cents)

	var cached core.ClosureReport
	c.mustDo(http.MethodGet, cpath+"/report", nil, http.StatusOK, &cached)
	assert.Equal(t, report.PerMember, cached.PerMember)

	rr = c.do(http.MethodPut, gpath+"/policy", map[string]any{
		"name": "San Isidro", "interest_rate": "12", "frequency": "monthly",
		"fine_policy": map[string]any{"kind": "fixed"},
	}, nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, core.KindGroupLocked, errorKind(t, rr))

	var history []core.CashEntry
	c.mustDo(http.MethodGet, gpath+"/cash/history?limit=2", nil, http.StatusOK, &history)
	require.Len(t, history, 2)
	assert.Equal(t, core.Inflow, history[0].Direction, "newest first")
}

func TestAttendanceAndFines(t *testing.T) {
	c := newTestServer(t)

	var group core.Group
	c.mustDo(http.MethodPost, "/api/v1/groups", map[string]any{
		"name": "Las Flores", "interest_rate": "5", "frequency": "weekly",
		"fine_policy": map[string]any{"kind": "fixed", "absent": "3.00", "excused": "1.00"},
	}, http.StatusCreated, &group)
	gpath := fmt.Sprintf("/api/v1/groups/%d", group.ID)

	var member core.Member
	c.mustDo(http.MethodPost, gpath+"/members", map[string]any{"name": "Luis"}, http.StatusCreated, &member)

	var res core.AttendanceResult
	c.mustDo(http.MethodPost, gpath+"/sessions/2025-W10/attendance", map[string]any{
		"member_id": member.ID, "outcome": "absent",
	}, http.StatusCreated, &res)
	require.NotNil(t, res.FineID)

	rr := c.do(http.MethodPost, gpath+"/sessions/2025-W10/attendance", map[string]any{
		"member_id": member.ID, "outcome": "present",
	}, nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, core.KindDuplicateAttendance, errorKind(t, rr))

	var records []core.AttendanceRecord
	c.mustDo(http.MethodGet, gpath+"/sessions/2025-W10/attendance", nil, http.StatusOK, &records)
	assert.Len(t, records, 1)

	var manual core.Fine
	c.mustDo(http.MethodPost, "/api/v1/fines", map[string]any{
		"member_id": member.ID, "amount": "5.00", "note": "late",
	}, http.StatusCreated, &manual)
	assert.Equal(t, core.FineManualInfraction, manual.Reason)

	var pending []core.Fine
	mpath := fmt.Sprintf("/api/v1/members/%d", member.ID)
	c.mustDo(http.MethodGet, mpath+"/fines", nil, http.StatusOK, &pending)
	assert.Len(t, pending, 2)

	var paid core.Fine
	c.mustDo(http.MethodPost, fmt.Sprintf("/api/v1/fines/%d/pay", *res.FineID), nil, http.StatusOK, &paid)
	assert.Equal(t, core.FinePaid, paid.Status)

	rr = c.do(http.MethodPost, fmt.Sprintf("/api/v1/fines/%d/pay", *res.FineID), nil, nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, core.KindAlreadyPaid, errorKind(t, rr))

	c.mustDo(http.MethodGet, mpath+"/fines", nil, http.StatusOK, &pending)
	assert.Len(t, pending, 1, "paid fines leave the pending view")

	var all []core.Fine
	c.mustDo(http.MethodGet, mpath+"/fines?status=all", nil, http.StatusOK, &all)
	require.Len(t, all, 2)
	assert.Equal(t, core.FinePaid, all[0].Status)
	assert.Equal(t, core.FinePending, all[1].Status)

	rr = c.do(http.MethodGet, mpath+"/fines?status=waived", nil, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, core.KindInvalidInput, errorKind(t, rr))

	var st core.MemberStatement
	c.mustDo(http.MethodGet, mpath+"/statement", nil, http.StatusOK, &st)
	assert.Equal(t, int64(500), st.PendingFines.Cents)
	assert.Equal(t, 1, st.PendingCount)

	var balance balanceResponse
	c.mustDo(http.MethodGet, gpath+"/cash", nil, http.StatusOK, &balance)
	assert.Equal(t, int64(300), balance.Balance.Cents)

	rr = c.do(http.MethodDelete, mpath, nil, nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, core.KindMemberHasLedger, errorKind(t, rr))
}

func TestSavingsAndPaymentHistory(t *testing.T) {
	c := newTestServer(t)

	var group core.Group
	c.mustDo(http.MethodPost, "/api/v1/groups", map[string]any{
		"name": "El Roble", "interest_rate": "10", "frequency": "weekly",
		"fine_policy": map[string]any{"kind": "fixed"},
	}, http.StatusCreated, &group)

	var member core.Member
	c.mustDo(http.MethodPost, fmt.Sprintf("/api/v1/groups/%d/members", group.ID),
		map[string]any{"name": "Rosa"}, http.StatusCreated, &member)
	mpath := fmt.Sprintf("/api/v1/members/%d", member.ID)

	var savings []core.SavingsEntry
	c.mustDo(http.MethodGet, mpath+"/savings", nil, http.StatusOK, &savings)
	assert.Empty(t, savings)

	for _, amount := range []string{"50.00", "25.00"} {
		c.mustDo(http.MethodPost, "/api/v1/savings", map[string]any{
			"member_id": member.ID, "amount": amount,
		}, http.StatusCreated, nil)
	}
	c.mustDo(http.MethodGet, mpath+"/savings", nil, http.StatusOK, &savings)
	require.Len(t, savings, 2)
	assert.Equal(t, int64(5000), savings[0].Amount.Cents)
	assert.Equal(t, int64(2500), savings[1].Amount.Cents)

	var loan core.Loan
	c.mustDo(http.MethodPost, "/api/v1/loans", map[string]any{
		"member_id": member.ID, "principal": "40.00", "term": 4,
	}, http.StatusCreated, &loan)
	lpath := fmt.Sprintf("/api/v1/loans/%d", loan.ID)

	c.mustDo(http.MethodPost, lpath+"/payments", map[string]any{"capital": "10.00", "interest": "1.00"}, http.StatusCreated, nil)
	c.mustDo(http.MethodPost, lpath+"/payments", map[string]any{"capital": "30.00", "interest": "3.00"}, http.StatusCreated, nil)

	var payments []core.Payment
	c.mustDo(http.MethodGet, lpath+"/payments", nil, http.StatusOK, &payments)
	require.Len(t, payments, 2)
	assert.Equal(t, int64(1000), payments[0].Capital.Cents)
	assert.Equal(t, int64(300), payments[1].Interest.Cents)

	rr := c.do(http.MethodGet, "/api/v1/loans/999/payments", nil, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr = c.do(http.MethodGet, "/api/v1/members/999/savings", nil, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRateLimitOnMutations(t *testing.T) {
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "caja.db"), storage.Options{})
	require.NoError(t, err)
	ledger := services.NewLedgerService(repo, nil, services.LedgerServiceConfig{})
	srv := NewServer(":0", ledger, nil, Config{RateLimitPerMinute: 1})
	t.Cleanup(func() {
		srv.limiter.Stop()
		ledger.Close()
	})
	c := &apiClient{t: t, srv: srv}

	body := map[string]any{"name": "G", "interest_rate": "1", "frequency": "weekly", "fine_policy": map[string]any{"kind": "fixed"}}
	c.mustDo(http.MethodPost, "/api/v1/groups", body, http.StatusCreated, nil)

	rr := c.do(http.MethodPost, "/api/v1/groups", body, nil)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))

	c.mustDo(http.MethodGet, "/api/v1/groups/1", nil, http.StatusOK, nil)

	var stats statsResponse
	c.mustDo(http.MethodGet, "/api/v1/stats", nil, http.StatusOK, &stats)
	assert.Equal(t, int64(1), stats.HTTP.RateLimitHits)
	assert.Equal(t, int64(1), stats.Outbox["pending"])
}
