package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"todo-service/internal/auth"
	"todo-service/internal/domain"
	"todo-service/internal/service"
	"todo-service/internal/storage"
)

type fakeTodoService struct {
	listFn    func(ctx context.Context, userID string, page int, search string) (*service.TodoPage, error)
	createFn  func(ctx context.Context, userID, title string) (*domain.Todo, error)
	deleteFn  func(ctx context.Context, userID, todoID string) error
	listAllFn func(ctx context.Context, userID string) ([]domain.Todo, error)
	calls     int
}

func (f *fakeTodoService) List(ctx context.Context, userID string, page int, search string) (*service.TodoPage, error) {
	f.calls++
	return f.listFn(ctx, userID, page, search)
}

func (f *fakeTodoService) Create(ctx context.Context, userID, title string) (*domain.Todo, error) {
	f.calls++
	return f.createFn(ctx, userID, title)
}

func (f *fakeTodoService) Delete(ctx context.Context, userID, todoID string) error {
	f.calls++
	return f.deleteFn(ctx, userID, todoID)
}

func (f *fakeTodoService) ListAll(ctx context.Context, userID string) ([]domain.Todo, error) {
	f.calls++
	return f.listAllFn(ctx, userID)
}

type fakeSubscriptionService struct {
	activateFn func(ctx context.Context, userID string) (time.Time, error)
	statusFn   func(ctx context.Context, userID string) (service.SubscriptionStatus, error)
	calls      int
}

func (f *fakeSubscriptionService) Activate(ctx context.Context, userID string) (time.Time, error) {
	f.calls++
	return f.activateFn(ctx, userID)
}

func (f *fakeSubscriptionService) Status(ctx context.Context, userID string) (service.SubscriptionStatus, error) {
	f.calls++
	return f.statusFn(ctx, userID)
}

type fakeStorage struct {
	putFn    func(ctx context.Context, bucket, key string, payload any) (string, error)
	listFn   func(ctx context.Context, bucket, prefix string) ([]storage.ObjectInfo, error)
	deleteFn func(ctx context.Context, bucket, prefix string) error
}

func (f *fakeStorage) PutJSON(ctx context.Context, bucket, key string, payload any) (string, error) {
	return f.putFn(ctx, bucket, key, payload)
}

func (f *fakeStorage) ListObjects(ctx context.Context, bucket, prefix string) ([]storage.ObjectInfo, error) {
	return f.listFn(ctx, bucket, prefix)
}

func (f *fakeStorage) DeletePrefix(ctx context.Context, bucket, prefix string) error {
	return f.deleteFn(ctx, bucket, prefix)
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestRouter(h *Handler, claims *auth.Claims) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	if claims != nil {
		router.Use(func(c *gin.Context) {
			c.Request = c.Request.WithContext(auth.WithClaims(c.Request.Context(), claims))
		})
	}
	h.RegisterRoutes(router)
	return router
}

func userClaims() *auth.Claims {
	return &auth.Claims{Subject: "user-1", Email: "user@example.test"}
}

func TestUnauthenticatedRequestsTouchNothing(t *testing.T) {
	todos := &fakeTodoService{}
	subs := &fakeSubscriptionService{}
	h := NewHandler(todos, subs, nil, "", "", testLogger())
	router := newTestRouter(h, nil)

	requests := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodGet, "/api/todos", ""},
		{http.MethodPost, "/api/todos", `{"title":"x"}`},
		{http.MethodDelete, "/api/todos/abc", ""},
		{http.MethodGet, "/api/subscription", ""},
		{http.MethodPost, "/api/subscription", ""},
	}

	for _, tc := range requests {
		var req *http.Request
		if tc.body != "" {
			req = httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
		} else {
			req = httptest.NewRequest(tc.method, tc.path, nil)
		}
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)

		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s = %d, want 401", tc.method, tc.path, resp.Code)
		}
	}

	if todos.calls != 0 || subs.calls != 0 {
		t.Fatalf("services were reached by unauthenticated requests: todos=%d subs=%d", todos.calls, subs.calls)
	}
}

func TestListTodosResponseShape(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	todos := &fakeTodoService{
		listFn: func(ctx context.Context, userID string, page int, search string) (*service.TodoPage, error) {
			if userID != "user-1" {
				t.Fatalf("List userID = %q", userID)
			}
			if page != 2 || search != "milk" {
				t.Fatalf("List args = page %d search %q", page, search)
			}
			return &service.TodoPage{
				Todos:       []domain.Todo{{ID: "t1", UserID: userID, Title: "buy milk", CreatedAt: created}},
				CurrentPage: 2,
				TotalPages:  2,
			}, nil
		},
	}
	h := NewHandler(todos, &fakeSubscriptionService{}, nil, "", "", testLogger())
	router := newTestRouter(h, userClaims())

	req := httptest.NewRequest(http.MethodGet, "/api/todos?page=2&search=milk", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.Code)
	}
	var body ListTodosResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(body.Todos) != 1 || body.CurrentPage != 2 || body.TotalPages != 2 {
		t.Fatalf("response = %+v", body)
	}
	if body.Todos[0].CreatedAt != created.Format(time.RFC3339) {
		t.Fatalf("createdAt = %q", body.Todos[0].CreatedAt)
	}
}

func TestListTodosNonNumericPageClampsToOne(t *testing.T) {
	var gotPage int
	todos := &fakeTodoService{
		listFn: func(ctx context.Context, userID string, page int, search string) (*service.TodoPage, error) {
			gotPage = page
			return &service.TodoPage{Todos: []domain.Todo{}, CurrentPage: page, TotalPages: 0}, nil
		},
	}
	h := NewHandler(todos, &fakeSubscriptionService{}, nil, "", "", testLogger())
	router := newTestRouter(h, userClaims())

	req := httptest.NewRequest(http.MethodGet, "/api/todos?page=banana", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.Code)
	}
	if gotPage != 1 {
		t.Fatalf("page = %d, want clamp to 1", gotPage)
	}
}

func TestCreateTodoStatusCodes(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{"created", `{"title":"new"}`, nil, http.StatusCreated},
		{"user missing", `{"title":"new"}`, service.ErrUserNotFound, http.StatusNotFound},
		{"quota", `{"title":"new"}`, service.ErrQuotaExceeded, http.StatusForbidden},
		{"empty title", `{"title":"   "}`, nil, http.StatusBadRequest},
		{"missing title", `{}`, nil, http.StatusBadRequest},
		{"oversized title", `{"title":"` + strings.Repeat("a", 501) + `"}`, nil, http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			todos := &fakeTodoService{
				createFn: func(ctx context.Context, userID, title string) (*domain.Todo, error) {
					if tc.err != nil {
						return nil, tc.err
					}
					return &domain.Todo{ID: "t1", UserID: userID, Title: title, CreatedAt: time.Now()}, nil
				},
			}
			h := NewHandler(todos, &fakeSubscriptionService{}, nil, "", "", testLogger())
			router := newTestRouter(h, userClaims())

			req := httptest.NewRequest(http.MethodPost, "/api/todos", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, req)

			if resp.Code != tc.status {
				t.Fatalf("status = %d, want %d (body %s)", resp.Code, tc.status, resp.Body.String())
			}
			if tc.status == http.StatusBadRequest && todos.calls != 0 {
				t.Fatalf("invalid title reached the service")
			}
		})
	}
}

func TestDeleteTodoStatusCodes(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"deleted", nil, http.StatusOK},
		{"missing", service.ErrTodoNotFound, http.StatusNotFound},
		{"foreign", service.ErrForbidden, http.StatusForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			todos := &fakeTodoService{
				deleteFn: func(ctx context.Context, userID, todoID string) error {
					return tc.err
				},
			}
			h := NewHandler(todos, &fakeSubscriptionService{}, nil, "", "", testLogger())
			router := newTestRouter(h, userClaims())

			req := httptest.NewRequest(http.MethodDelete, "/api/todos/t1", nil)
			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, req)

			if resp.Code != tc.status {
				t.Fatalf("status = %d, want %d", resp.Code, tc.status)
			}
		})
	}
}

func TestActivateSubscription(t *testing.T) {
	ends := time.Date(2026, 4, 15, 12, 0, 0, 0, time.UTC)
	subs := &fakeSubscriptionService{
		activateFn: func(ctx context.Context, userID string) (time.Time, error) {
			return ends, nil
		},
	}
	h := NewHandler(&fakeTodoService{}, subs, nil, "", "", testLogger())
	router := newTestRouter(h, userClaims())

	req := httptest.NewRequest(http.MethodPost, "/api/subscription", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if body["subscriptionEnds"] != ends.Format(time.RFC3339) {
		t.Fatalf("subscriptionEnds = %q", body["subscriptionEnds"])
	}
}

func TestActivateSubscriptionUnknownUser(t *testing.T) {
	subs := &fakeSubscriptionService{
		activateFn: func(ctx context.Context, userID string) (time.Time, error) {
			return time.Time{}, service.ErrUserNotFound
		},
	}
	h := NewHandler(&fakeTodoService{}, subs, nil, "", "", testLogger())
	router := newTestRouter(h, userClaims())

	req := httptest.NewRequest(http.MethodPost, "/api/subscription", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.Code)
	}
}

func TestSubscriptionStatusExpiredReportsNull(t *testing.T) {
	subs := &fakeSubscriptionService{
		statusFn: func(ctx context.Context, userID string) (service.SubscriptionStatus, error) {
			return service.SubscriptionStatus{IsSubscribed: false, SubscriptionEnds: nil}, nil
		},
	}
	h := NewHandler(&fakeTodoService{}, subs, nil, "", "", testLogger())
	router := newTestRouter(h, userClaims())

	req := httptest.NewRequest(http.MethodGet, "/api/subscription", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.Code)
	}
	var body SubscriptionResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if body.IsSubscribed || body.SubscriptionEnds != nil {
		t.Fatalf("response = %+v, want downgraded state", body)
	}
}

func TestPreflightAnsweredBeforeSessionCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(CORSMiddleware())
	router.Use(func(c *gin.Context) {
		if _, ok := auth.ClaimsFromContext(c.Request.Context()); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		}
	})
	h := NewHandler(&fakeTodoService{}, &fakeSubscriptionService{}, nil, "", "", testLogger())
	h.RegisterRoutes(router)

	req := httptest.NewRequest(http.MethodOptions, "/api/todos", nil)
	req.Header.Set("Origin", "https://app.example.test")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want 204 (body %s)", resp.Code, resp.Body.String())
	}
	if got := resp.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("Access-Control-Allow-Origin = %q, want *", got)
	}
	if got := resp.Header().Get("Access-Control-Allow-Headers"); !strings.Contains(got, "Authorization") {
		t.Fatalf("Access-Control-Allow-Headers = %q, want Authorization listed", got)
	}
}

func TestExportWithoutStorageConfigured(t *testing.T) {
	h := NewHandler(&fakeTodoService{}, &fakeSubscriptionService{}, nil, "", "", testLogger())
	router := newTestRouter(h, userClaims())

	req := httptest.NewRequest(http.MethodPost, "/api/exports", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.Code)
	}
}

func TestExportUploadsSnapshot(t *testing.T) {
	todos := &fakeTodoService{
		listAllFn: func(ctx context.Context, userID string) ([]domain.Todo, error) {
			return []domain.Todo{
				{ID: "t1", UserID: userID, Title: "a", CreatedAt: time.Now()},
				{ID: "t2", UserID: userID, Title: "b", CreatedAt: time.Now()},
			}, nil
		},
	}
	var gotKey string
	store := &fakeStorage{
		putFn: func(ctx context.Context, bucket, key string, payload any) (string, error) {
			gotKey = key
			return "s3://bucket/" + key, nil
		},
	}
	h := NewHandler(todos, &fakeSubscriptionService{}, store, "bucket", "todo-exports", testLogger())
	router := newTestRouter(h, userClaims())

	req := httptest.NewRequest(http.MethodPost, "/api/exports", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", resp.Code, resp.Body.String())
	}
	if !strings.HasPrefix(gotKey, "todo-exports/user-1/") {
		t.Fatalf("export key = %q, want per-user prefix", gotKey)
	}
	var body map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if body["count"] != float64(2) {
		t.Fatalf("count = %v, want 2", body["count"])
	}
}

func TestListExportsScopedToCaller(t *testing.T) {
	modified := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	var gotPrefix string
	store := &fakeStorage{
		listFn: func(ctx context.Context, bucket, prefix string) ([]storage.ObjectInfo, error) {
			gotPrefix = prefix
			return []storage.ObjectInfo{
				{Key: "todo-exports/user-1/20260301T100000Z.json", Size: 42, LastModified: &modified},
			}, nil
		},
	}
	h := NewHandler(&fakeTodoService{}, &fakeSubscriptionService{}, store, "bucket", "todo-exports", testLogger())
	router := newTestRouter(h, userClaims())

	req := httptest.NewRequest(http.MethodGet, "/api/exports", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", resp.Code, resp.Body.String())
	}
	if gotPrefix != "todo-exports/user-1/" {
		t.Fatalf("list prefix = %q, want caller's prefix", gotPrefix)
	}
	var body []StorageObjectResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(body) != 1 || body[0].Size != 42 {
		t.Fatalf("response = %+v", body)
	}
	if body[0].LastModified == nil || *body[0].LastModified != modified.Format(time.RFC3339) {
		t.Fatalf("last_modified = %v", body[0].LastModified)
	}
}

func TestClearExportsScopedToCaller(t *testing.T) {
	var gotPrefix string
	store := &fakeStorage{
		deleteFn: func(ctx context.Context, bucket, prefix string) error {
			gotPrefix = prefix
			return nil
		},
	}
	h := NewHandler(&fakeTodoService{}, &fakeSubscriptionService{}, store, "bucket", "todo-exports", testLogger())
	router := newTestRouter(h, userClaims())

	req := httptest.NewRequest(http.MethodDelete, "/api/exports", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", resp.Code, resp.Body.String())
	}
	if gotPrefix != "todo-exports/user-1/" {
		t.Fatalf("delete prefix = %q, want caller's prefix", gotPrefix)
	}
}
