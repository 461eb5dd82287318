package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"ticket-gate/internal/services"
	"ticket-gate/internal/status"
	"ticket-gate/internal/store"
	"ticket-gate/internal/ticketcode"
	"ticket-gate/models"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) Verify(ctx context.Context, reference string) (*models.Settlement, error) {
	args := m.Called(ctx, reference)
	if s, ok := args.Get(0).(*models.Settlement); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendTickets(ctx context.Context, recipient, holderName string, ticketIDs []string) error {
	return m.Called(ctx, recipient, holderName, ticketIDs).Error(0)
}

type fixture struct {
	handler  *TicketHandler
	store    *store.SQLStore
	verifier *MockVerifier
	notifier *MockNotifier
}

func setup(t *testing.T) *fixture {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "tickets.db") + "?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)"
	db, err := dbx.Open("sqlite", dsn)
	require.NoError(t, err)
	db.DB().SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	st := store.NewSQLStore(db, nil)
	require.NoError(t, st.EnsureSchema())

	f := &fixture{store: st, verifier: new(MockVerifier), notifier: new(MockNotifier)}
	codec := ticketcode.New(nil)
	issuance := services.NewIssuanceService(st, f.verifier, f.notifier, codec, services.IssuanceConfig{MaxQuantity: 10})
	redemption := services.NewRedemptionService(st, codec, nil, nil)
	f.handler = NewTicketHandler(issuance, redemption)
	return f
}

func newEvent(method, target, body string) (*core.RequestEvent, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()

	e := new(core.RequestEvent)
	e.Request = req
	e.Response = rec
	return e, rec
}

func redeemEvent(ticketNumber string) (*core.RequestEvent, *httptest.ResponseRecorder) {
	e, rec := newEvent(http.MethodGet, "/verify-ticket/"+ticketNumber, "")
	e.Request.SetPathValue("ticketNumber", ticketNumber)
	return e, rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func seed(t *testing.T, st *store.SQLStore, id string) {
	t.Helper()
	require.NoError(t, st.Create(context.Background(), &models.Ticket{
		ID:               id,
		HolderName:       "Ama Mensah",
		HolderEmail:      "ama@example.com",
		PaymentReference: "T123",
	}))
}

func TestVerifyPayment_Success(t *testing.T) {
	f := setup(t)
	f.verifier.On("Verify", mock.Anything, "T123").Return(&models.Settlement{Reference: "T123"}, nil)
	f.notifier.On("SendTickets", mock.Anything, "ama@example.com", "Ama Mensah", mock.Anything).Return(nil)

	e, rec := newEvent(http.MethodPost, "/verify", `{"reference":"T123","name":"Ama Mensah","email":"ama@example.com","quantity":2}`)
	require.NoError(t, f.handler.VerifyPayment(e))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "Payment verified and tickets sent to ama@example.com.", body["message"])
	assert.Equal(t, true, body["notified"])

	tickets, ok := body["tickets"].([]any)
	require.True(t, ok)
	require.Len(t, tickets, 2)
	for _, raw := range tickets {
		number := raw.(map[string]any)["ticket_number"].(string)
		_, err := ticketcode.Parse(number)
		assert.NoError(t, err)
		assert.True(t, strings.HasSuffix(number, "-02"))
	}
}

func TestVerifyPayment_NotSettled(t *testing.T) {
	f := setup(t)
	f.verifier.On("Verify", mock.Anything, "T404").
		Return(nil, status.WithReason(status.ErrNotSettled, "Transaction reference not found"))

	e, rec := newEvent(http.MethodPost, "/verify", `{"reference":"T404","name":"Ama","email":"ama@example.com","quantity":1}`)
	require.NoError(t, f.handler.VerifyPayment(e))

	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "failed", body["status"])
	assert.Equal(t, "Transaction reference not found", body["message"])
}

func TestVerifyPayment_VerifierUnavailable(t *testing.T) {
	f := setup(t)
	f.verifier.On("Verify", mock.Anything, "T500").Return(nil, status.ErrVerifierUnavailable)

	e, rec := newEvent(http.MethodPost, "/verify", `{"reference":"T500","name":"Ama","email":"ama@example.com"}`)
	require.NoError(t, f.handler.VerifyPayment(e))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "error", decode(t, rec)["status"])
}

func TestVerifyPayment_InvalidInput(t *testing.T) {
	f := setup(t)

	e, rec := newEvent(http.MethodPost, "/verify", `{"reference":"T1","name":"Ama","email":"nope","quantity":1}`)
	require.NoError(t, f.handler.VerifyPayment(e))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "error", decode(t, rec)["status"])
	f.verifier.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything)
}

func TestVerifyPayment_EmailFailureStillReturnsTickets(t *testing.T) {
	f := setup(t)
	f.verifier.On("Verify", mock.Anything, "T9").Return(&models.Settlement{Reference: "T9"}, nil)
	f.notifier.On("SendTickets", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(status.ErrNotificationFailed)

	e, rec := newEvent(http.MethodPost, "/verify", `{"reference":"T9","name":"Ama","email":"ama@example.com","quantity":1}`)
	require.NoError(t, f.handler.VerifyPayment(e))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["notified"])
	assert.Len(t, body["tickets"], 1)
}

func TestRedeemTicket_Lifecycle(t *testing.T) {
	f := setup(t)
	seed(t, f.store, "SP-1223324-02")

	e, rec := redeemEvent("SP-1223324-02")
	require.NoError(t, f.handler.RedeemTicket(e))
	assert.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "success", body["status"])
	info := body["ticket_info"].(map[string]any)
	assert.Equal(t, "Ama Mensah", info["name"])
	assert.Equal(t, "ama@example.com", info["email"])
	assert.Equal(t, "SP", info["section"])
	assert.NotEmpty(t, info["purchase_date"])

	e, rec = redeemEvent("SP-1223324-02")
	require.NoError(t, f.handler.RedeemTicket(e))
	assert.Equal(t, http.StatusConflict, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, "Ticket already used.", body["message"])
	assert.NotEmpty(t, body["used_date"])
}

func TestRedeemTicket_Errors(t *testing.T) {
	f := setup(t)

	cases := []struct {
		ticket string
		code   int
	}{
		{"XX-1234567-01", http.StatusBadRequest},
		{"SP-12345-01", http.StatusBadRequest},
		{"SP-9999999-01", http.StatusNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.ticket, func(t *testing.T) {
			e, rec := redeemEvent(tc.ticket)
			require.NoError(t, f.handler.RedeemTicket(e))
			assert.Equal(t, tc.code, rec.Code)
			assert.Equal(t, "error", decode(t, rec)["status"])
		})
	}
}

func TestGetTicket_DoesNotRedeem(t *testing.T) {
	f := setup(t)
	seed(t, f.store, "SP-7654321-01")

	e, rec := newEvent(http.MethodGet, "/api/v1/tickets/SP-7654321-01", "")
	e.Request.SetPathValue("ticketNumber", "SP-7654321-01")
	require.NoError(t, f.handler.GetTicket(e))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["used"])

	ticket, err := f.store.Lookup(context.Background(), "SP-7654321-01")
	require.NoError(t, err)
	assert.False(t, ticket.Redeemed)
}

func TestDebugIssue(t *testing.T) {
	f := setup(t)
	f.notifier.On("SendTickets", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	e, rec := newEvent(http.MethodPost, "/debug-send", `{"name":"Ama","email":"ama@example.com","quantity":3}`)
	require.NoError(t, f.handler.DebugIssue(e))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["tickets"], 3)
	f.verifier.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything)
}

func TestHealth(t *testing.T) {
	f := setup(t)

	e, rec := newEvent(http.MethodGet, "/health", "")
	require.NoError(t, f.handler.Health(e))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode(t, rec)["status"])
}

func TestVerifyPayment_MessageUsesTrimmedEmail(t *testing.T) {
	f := setup(t)
	f.verifier.On("Verify", mock.Anything, "T77").Return(&models.Settlement{Reference: "T77"}, nil)
	f.notifier.On("SendTickets", mock.Anything, "ama@example.com", "Ama Mensah", mock.Anything).Return(nil)

	e, rec := newEvent(http.MethodPost, "/verify", `{"reference":" T77 ","name":" Ama Mensah ","email":"  ama@example.com  ","quantity":1}`)
	require.NoError(t, f.handler.VerifyPayment(e))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Payment verified and tickets sent to ama@example.com.", decode(t, rec)["message"])
	f.notifier.AssertExpectations(t)
}

func TestDebugIssue_MessageUsesTrimmedEmail(t *testing.T) {
	f := setup(t)
	f.notifier.On("SendTickets", mock.Anything, "ama@example.com", "Ama", mock.Anything).Return(nil)

	e, rec := newEvent(http.MethodPost, "/debug-send", `{"name":"Ama","email":" ama@example.com\t","quantity":1}`)
	require.NoError(t, f.handler.DebugIssue(e))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Debug tickets issued for ama@example.com.", decode(t, rec)["message"])
}
