package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/mini-erp/mini-erp/internal/shared"
)

type memoryInbox struct {
	mu    sync.Mutex
	items []Notification
}

func (m *memoryInbox) ListForUser(_ context.Context, userID int64, limit int) ([]Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Notification
	for _, n := range m.items {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryInbox) UnreadCount(_ context.Context, userID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, n := range m.items {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (m *memoryInbox) MarkRead(_ context.Context, userID, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		if m.items[i].ID == id && m.items[i].UserID == userID {
			m.items[i].IsRead = true
			return nil
		}
	}
	return shared.NotFound("notification", id)
}

func (m *memoryInbox) MarkAllRead(_ context.Context, userID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for i := range m.items {
		if m.items[i].UserID == userID && !m.items[i].IsRead {
			m.items[i].IsRead = true
			n++
		}
	}
	return n, nil
}

func (m *memoryInbox) Create(_ context.Context, n Notification) (Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n.ID = int64(len(m.items) + 1000)
	n.CreatedAt = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	m.items = append(m.items, n)
	return n, nil
}

func (m *memoryInbox) Delete(_ context.Context, userID, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, n := range m.items {
		if n.ID == id && n.UserID == userID {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return nil
		}
	}
	return shared.NotFound("notification", id)
}

func seededInbox(count int) *memoryInbox {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	inbox := &memoryInbox{}
	for i := 0; i < count; i++ {
		inbox.items = append(inbox.items, Notification{
			ID: int64(i + 1), UserID: 1, Title: "t", Message: "m", Type: TypeInfo,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	inbox.items = append(inbox.items, Notification{ID: 999, UserID: 2, Title: "other", Message: "m"})
	return inbox
}

func TestListForUserCapsAtFifty(t *testing.T) {
	svc := NewService(seededInbox(60))
	items, err := svc.ListForUser(context.Background(), 1, 0)
	require.NoError(t, err)
	require.Len(t, items, DefaultListLimit)
	require.Equal(t, int64(60), items[0].ID)

	items, err = svc.ListForUser(context.Background(), 1, 5)
	require.NoError(t, err)
	require.Len(t, items, 5)

	_, err = svc.ListForUser(context.Background(), 0, 5)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestMarkReadScopesToOwner(t *testing.T) {
	svc := NewService(seededInbox(3))
	ctx := context.Background()

	require.ErrorIs(t, svc.MarkRead(ctx, 1, 999), shared.ErrNotFound)
	require.NoError(t, svc.MarkRead(ctx, 1, 2))
	count, err := svc.UnreadCount(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	n, err := svc.MarkAllRead(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
	count, err = svc.UnreadCount(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestCreateAndDeleteNotification(t *testing.T) {
	inbox := seededInbox(1)
	svc := NewService(inbox)
	ctx := context.Background()

	n, err := svc.Create(ctx, 1, Notification{UserID: 2, Title: " Month end ", Message: "close the books"})
	require.NoError(t, err)
	require.Equal(t, TypeInfo, n.Type)
	require.Equal(t, "Month end", n.Title)

	_, err = svc.Create(ctx, 1, Notification{UserID: 2, Title: "x", Message: "y", Type: "urgent"})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.Create(ctx, 1, Notification{UserID: 2, Title: "  ", Message: "y"})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.Create(ctx, 0, Notification{UserID: 2, Title: "x", Message: "y"})
	require.ErrorIs(t, err, shared.ErrValidation)

	require.ErrorIs(t, svc.Delete(ctx, 1, n.ID), shared.ErrNotFound)
	require.NoError(t, svc.Delete(ctx, 2, n.ID))
	require.ErrorIs(t, svc.Delete(ctx, 2, n.ID), shared.ErrNotFound)
	require.ErrorIs(t, svc.Delete(ctx, 0, 1), shared.ErrValidation)
	count, err := svc.UnreadCount(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

type recordingQuerier struct {
	sql  string
	args []any
}

func (q *recordingQuerier) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errors.New("not used")
}

func (q *recordingQuerier) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not used")
}

func (q *recordingQuerier) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	q.sql, q.args = sql, args
	return stubRow{}
}

type stubRow struct{}

func (stubRow) Scan(dest ...any) error {
	*dest[0].(*int64) = 41
	*dest[1].(*bool) = false
	*dest[2].(*time.Time) = time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	return nil
}

func TestInsertDefaultsTypeAndValidates(t *testing.T) {
	q := &recordingQuerier{}
	n, err := Insert(context.Background(), q, Notification{UserID: 3, Title: "Payment Received", Message: "paid"})
	require.NoError(t, err)
	require.Equal(t, int64(41), n.ID)
	require.Equal(t, TypeInfo, n.Type)
	require.Equal(t, []any{int64(3), "Payment Received", "paid", TypeInfo}, q.args)

	_, err = Insert(context.Background(), q, Notification{Title: "x", Message: "y"})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestHandlerInbox(t *testing.T) {
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), NewService(seededInbox(2)))
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(shared.ContextWithActor(req.Context(), 1)))
		})
	})
	h.MountRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/notifications/unread-count", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"count":2}`, rec.Body.String())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/notifications/1/read", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/notifications/999/read", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/notifications", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"is_read":true`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/notifications/2", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/notifications/999", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/notifications/unread-count", nil))
	require.JSONEq(t, `{"count":0}`, rec.Body.String())
}

func TestHandlerCreateNotification(t *testing.T) {
	inbox := seededInbox(0)
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), NewService(inbox))
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(shared.ContextWithActor(req.Context(), 1)))
		})
	})
	h.MountRoutes(r)

	post := func(body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/notifications", strings.NewReader(body)))
		return rec
	}

	rec := post(`{"user_id":2,"title":"Rates loaded","message":"EUR/USD updated","type":"warning"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), `"type":"warning"`)
	require.Contains(t, rec.Body.String(), `"user_id":2`)

	rec = post(`{"user_id":2,"title":"Rates loaded","message":"m"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Contains(t, rec.Body.String(), `"type":"info"`)

	require.Equal(t, http.StatusBadRequest, post(`{"title":"no recipient","message":"m"}`).Code)
	require.Equal(t, http.StatusBadRequest, post(`{"user_id":2,"title":"t","message":"m","type":"urgent"}`).Code)

	count, err := NewService(inbox).UnreadCount(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, 3, count)
}
