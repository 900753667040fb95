package ar

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/mini-erp/mini-erp/internal/shared"
)

func newTestRouter(t *testing.T) (http.Handler, *memoryAR) {
	t.Helper()
	svc, repo := newTestService(t)
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if req.Header.Get("X-User-ID") != "" {
				req = req.WithContext(shared.ContextWithActor(req.Context(), 3))
			}
			next.ServeHTTP(w, req)
		})
	})
	h.MountRoutes(r)
	return r, repo
}

func send(h http.Handler, method, path, body string, withActor bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if withActor {
		req.Header.Set("X-User-ID", "3")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerInvoiceAndPaymentFlow(t *testing.T) {
	router, repo := newTestRouter(t)

	rec := send(router, http.MethodPost, "/invoices", `{"invoice_number":"INV-100","customer_id":7,
		"invoice_date":"2026-05-01","due_date":"2026-06-01","total_amount":"100.00",
		"line_items":[{"sku":"A","qty":2}]}`, true)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), `"status":"pending"`)
	requireDecimal(t, "100", repo.outstanding(customerID))

	rec = send(router, http.MethodPost, "/invoices/11/payments", `{"amount":"60"}`, false)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = send(router, http.MethodPost, "/invoices/11/payments", `{"amount":"60","payment_date":"2026-05-10"}`, true)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), `"status":"partial"`)

	rec = send(router, http.MethodPost, "/invoices/11/payments", `{"amount":"41"}`, true)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), "Overpayment")

	rec = send(router, http.MethodGet, "/invoices/11/payments", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"type":"inflow"`)

	rec = send(router, http.MethodDelete, "/invoices/11", "", true)
	require.Equal(t, http.StatusNoContent, rec.Code)
	requireDecimal(t, "0", repo.outstanding(customerID))

	rec = send(router, http.MethodDelete, "/invoices/11", "", true)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerInvoiceErrors(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := send(router, http.MethodPost, "/invoices", `{"invoice_number":"X","customer_id":99,
		"invoice_date":"2026-05-01","due_date":"2026-06-01","total_amount":1}`, true)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

	rec = send(router, http.MethodPost, "/invoices", `{"invoice_number":"X","customer_id":7,"due_date":"2026-06-01"}`, true)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = send(router, http.MethodPatch, "/invoices/1", `{"status":"void"}`, true)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = send(router, http.MethodGet, "/invoices?customer_id=abc", "", true)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = send(router, http.MethodGet, "/invoices", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[]`, rec.Body.String())
}

func TestHandlerPaymentIdempotencyHeader(t *testing.T) {
	router, repo := newTestRouter(t)
	rec := send(router, http.MethodPost, "/invoices", `{"invoice_number":"INV-200","customer_id":7,
		"invoice_date":"2026-05-01","due_date":"2026-06-01","total_amount":"50"}`, true)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	post := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/invoices/11/payments", strings.NewReader(`{"amount":"20"}`))
		req.Header.Set("X-User-ID", "3")
		req.Header.Set(IdempotencyHeader, "retry-abc")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}
	require.Equal(t, http.StatusCreated, post().Code)
	rec = post()
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "Duplicate Request")
	require.Equal(t, 1, repo.paymentCount(11))
}
