package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/fastygo/taskdesk/api/handler"
	"github.com/fastygo/taskdesk/domain"
	appAuth "github.com/fastygo/taskdesk/internal/auth"
	"github.com/fastygo/taskdesk/internal/infrastructure/monitor"
	"github.com/fastygo/taskdesk/internal/middleware"
	"github.com/fastygo/taskdesk/internal/router"
	"github.com/fastygo/taskdesk/pkg/httpcontext"
	"github.com/fastygo/taskdesk/repository/memory"
	"github.com/fastygo/taskdesk/usecase"
	authUC "github.com/fastygo/taskdesk/usecase/auth"
	profileUC "github.com/fastygo/taskdesk/usecase/profile"
	taskUC "github.com/fastygo/taskdesk/usecase/task"
)

type envelope struct {
	Status string          `json:"status"`
	Code   string          `json:"code"`
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error"`
	Meta   json.RawMessage `json:"meta"`
}

type memoryAttachments struct {
	mu    sync.Mutex
	files map[string]string
}

func (m *memoryAttachments) Upload(_ context.Context, up usecase.Upload) (domain.Attachment, error) {
	body, err := io.ReadAll(up.Content)
	if err != nil {
		return domain.Attachment{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.NewString()
	m.files[id] = string(body)
	return domain.Attachment{ID: id, URL: "https://files.example/" + id, Name: up.Name}, nil
}

func (m *memoryAttachments) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, id)
	return nil
}

type server struct {
	handler     fasthttp.RequestHandler
	tasks       *memory.TaskRepository
	attachments *memoryAttachments
}

func newServer(t *testing.T) *server {
	t.Helper()

	users := memory.NewUserRepository()
	tasks := memory.NewTaskRepository()
	attachments := &memoryAttachments{files: map[string]string{}}
	tokens := appAuth.NewTokenIssuer("handler-test", "taskdesk", time.Hour)

	authUseCase := authUC.New(users, tokens, nil)
	profileUseCase := profileUC.New(users, nil)
	taskUseCase := taskUC.New(taskUC.Dependencies{
		Tasks:       tasks,
		Users:       users,
		Attachments: attachments,
		Keys:        memory.NewIdempotencyStore(),
	}, nil)

	mon := monitor.New(time.Minute, nil)
	mon.Refresh()

	adapter := httpcontext.NewAdapter(5 * time.Second)
	r := router.New(router.Handlers{
		User:   apiHandler.NewUserHandler(authUseCase, profileUseCase, adapter, nil),
		Task:   apiHandler.NewTaskHandler(taskUseCase, adapter, nil),
		Health: apiHandler.NewHealthHandler(mon, adapter, nil),
	}, router.Options{
		Auth:          middleware.JWTAuth(tokens, profileUseCase, time.Second, nil),
		RateLimit:     middleware.NewRateLimiter(1000, 1000).Middleware,
		EnableMetrics: true,
	})

	return &server{
		handler:     router.Handler(r, nil),
		tasks:       tasks,
		attachments: attachments,
	}
}

type request struct {
	method      string
	path        string
	body        []byte
	contentType string
	token       string
	headers     map[string]string
}

func (s *server) do(t *testing.T, req request) (int, envelope) {
	t.Helper()

	var r fasthttp.Request
	r.Header.SetMethod(req.method)
	r.SetRequestURI(req.path)
	if req.body != nil {
		r.SetBody(req.body)
	}
	if req.contentType != "" {
		r.Header.SetContentType(req.contentType)
	}
	if req.token != "" {
		r.Header.Set("Authorization", "Bearer "+req.token)
	}
	for k, v := range req.headers {
		r.Header.Set(k, v)
	}

	var ctx fasthttp.RequestCtx
	ctx.Init(&r, &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 40000}, nil)
	s.handler(&ctx)

	var env envelope
	if body := ctx.Response.Body(); len(body) > 0 && bytes.HasPrefix(ctx.Response.Header.ContentType(), []byte("application/json")) {
		require.NoError(t, json.Unmarshal(body, &env), string(body))
	}
	return ctx.Response.StatusCode(), env
}

func jsonBody(t *testing.T, v interface{}) []byte {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err)
	return body
}

type account struct {
	ID    string `json:"id"`
	Token string `json:"token"`
	Role  string `json:"role"`
}

func (s *server) register(t *testing.T, name, role string) account {
	t.Helper()
	status, env := s.do(t, request{
		method: http.MethodPost,
		path:   "/api/users",
		body: jsonBody(t, map[string]string{
			"name":       name,
			"email":      name + "@example.com",
			"password":   "pw-" + name,
			"department": "operations",
			"role":       role,
		}),
		contentType: "application/json",
	})
	require.Equal(t, http.StatusCreated, status, env.Error)

	var acc account
	require.NoError(t, json.Unmarshal(env.Data, &acc))
	require.NotEmpty(t, acc.Token)
	return acc
}

type taskView struct {
	ID             string              `json:"id"`
	Status         string              `json:"status"`
	CreatedBy      string              `json:"createdBy"`
	AssignedTo     string              `json:"assignedTo"`
	AssignedToName string              `json:"assignedToName"`
	ApprovedBy     *string             `json:"approvedBy"`
	Documents      []domain.Attachment `json:"documents"`
}

func (s *server) createJSON(t *testing.T, creator account, assignee string) taskView {
	t.Helper()
	status, env := s.do(t, request{
		method: http.MethodPost,
		path:   "/api/tasks/new",
		body: jsonBody(t, map[string]string{
			"title":       "Prepare audit",
			"description": "Collect receipts",
			"assignedTo":  assignee,
			"priority":    "medium",
			"dueDate":     "2030-01-15",
		}),
		contentType: "application/json",
		token:       creator.Token,
	})
	require.Equal(t, http.StatusCreated, status, env.Error)

	var view taskView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	return view
}

func multipartBody(t *testing.T, fields map[string]string, files ...string) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, name := range files {
		part, err := w.CreateFormFile("documents", name)
		require.NoError(t, err)
		_, err = fmt.Fprintf(part, "content of %s", name)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes(), w.FormDataContentType()
}

func TestUserEndpoints(t *testing.T) {
	s := newServer(t)
	boss := s.register(t, "boss", "supervisor")
	assert.Equal(t, "supervisor", boss.Role)

	status, env := s.do(t, request{
		method:      http.MethodPost,
		path:        "/api/users",
		body:        jsonBody(t, map[string]string{"name": "x", "email": "boss@example.com", "password": "p", "department": "d"}),
		contentType: "application/json",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "user already exists", env.Error)

	status, env = s.do(t, request{
		method: http.MethodPost,
		path:   "/api/users/login",
		body:   jsonBody(t, map[string]string{"email": "boss@example.com", "password": "pw-boss"}),
	})
	require.Equal(t, http.StatusOK, status)
	var session account
	require.NoError(t, json.Unmarshal(env.Data, &session))
	assert.Equal(t, boss.ID, session.ID)

	status, env = s.do(t, request{
		method: http.MethodPost,
		path:   "/api/users/login",
		body:   jsonBody(t, map[string]string{"email": "boss@example.com", "password": "nope"}),
	})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "invalid email or password", env.Error)

	status, _ = s.do(t, request{method: http.MethodGet, path: "/api/users/me"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = s.do(t, request{method: http.MethodGet, path: "/api/users/me", token: "garbage"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, env = s.do(t, request{method: http.MethodGet, path: "/api/users/me", token: boss.Token})
	require.Equal(t, http.StatusOK, status)
	assert.NotContains(t, string(env.Data), "password")

	s.register(t, "worker", "")
	status, env = s.do(t, request{method: http.MethodGet, path: "/api/users", token: boss.Token})
	require.Equal(t, http.StatusOK, status)
	var list []account
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list, 2)
}

func TestTaskLifecycleOverHTTP(t *testing.T) {
	s := newServer(t)
	boss := s.register(t, "boss", "supervisor")
	creator := s.register(t, "creator", "user")
	worker := s.register(t, "worker", "user")
	outsider := s.register(t, "outsider", "user")

	task := s.createJSON(t, creator, worker.ID)
	assert.Equal(t, "pending", task.Status)
	assert.Equal(t, creator.ID, task.CreatedBy)
	assert.Equal(t, "worker", task.AssignedToName)

	status, env := s.do(t, request{method: http.MethodGet, path: "/api/tasks"})
	require.Equal(t, http.StatusOK, status)
	var all []taskView
	require.NoError(t, json.Unmarshal(env.Data, &all))
	assert.Len(t, all, 1)

	status, env = s.do(t, request{method: http.MethodGet, path: "/api/tasks?status=approved"})
	require.Equal(t, http.StatusOK, status)
	var none []taskView
	require.NoError(t, json.Unmarshal(env.Data, &none))
	assert.Empty(t, none)

	for _, query := range []string{"?limit=abc", "?offset=-1", "?limit=501", "?status=done"} {
		status, _ = s.do(t, request{method: http.MethodGet, path: "/api/tasks" + query})
		assert.Equal(t, http.StatusBadRequest, status, query)
	}

	status, env = s.do(t, request{method: http.MethodGet, path: "/api/tasks/user/" + worker.ID, token: worker.Token})
	require.Equal(t, http.StatusOK, status)
	var mine []taskView
	require.NoError(t, json.Unmarshal(env.Data, &mine))
	assert.Len(t, mine, 1)

	status, _ = s.do(t, request{method: http.MethodGet, path: "/api/tasks/user/not-an-id", token: worker.Token})
	assert.Equal(t, http.StatusBadRequest, status)

	update := func(acc account, value string) (int, envelope) {
		return s.do(t, request{
			method: http.MethodPut,
			path:   "/api/tasks/" + task.ID,
			body:   jsonBody(t, map[string]string{"status": value}),
			token:  acc.Token,
		})
	}

	status, env = update(outsider, "waiting for approval")
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", env.Code)

	status, env = update(worker, "Waiting for approval")
	require.Equal(t, http.StatusOK, status, env.Error)

	status, _ = update(worker, "approved")
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = update(boss, "completed")
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = update(boss, "finished")
	assert.Equal(t, http.StatusBadRequest, status)

	status, env = update(boss, "approved")
	require.Equal(t, http.StatusOK, status)
	var approved taskView
	require.NoError(t, json.Unmarshal(env.Data, &approved))
	assert.Equal(t, "approved", approved.Status)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, boss.ID, *approved.ApprovedBy)

	status, _ = s.do(t, request{method: http.MethodDelete, path: "/api/tasks/" + task.ID, token: worker.Token})
	assert.Equal(t, http.StatusForbidden, status)

	status, env = s.do(t, request{method: http.MethodDelete, path: "/api/tasks/" + task.ID, token: creator.Token})
	require.Equal(t, http.StatusOK, status)
	var deleted map[string]string
	require.NoError(t, json.Unmarshal(env.Data, &deleted))
	assert.Equal(t, task.ID, deleted["id"])
	assert.Equal(t, "Task deleted successfully", deleted["message"])

	status, env = s.do(t, request{method: http.MethodDelete, path: "/api/tasks/" + task.ID, token: creator.Token})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "task not found", env.Error)
}

func TestCreateTaskMultipart(t *testing.T) {
	s := newServer(t)
	creator := s.register(t, "creator", "user")
	worker := s.register(t, "worker", "user")

	fields := map[string]string{
		"title":       "Design review",
		"description": "Review the mockups",
		"assignedTo":  worker.ID,
		"priority":    "high",
		"dueDate":     "2030-02-01T10:00:00Z",
	}

	body, contentType := multipartBody(t, fields, "mockup.PNG", "notes.docx")
	status, env := s.do(t, request{
		method:      http.MethodPost,
		path:        "/api/tasks/new",
		body:        body,
		contentType: contentType,
		token:       creator.Token,
	})
	require.Equal(t, http.StatusCreated, status, env.Error)

	var view taskView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	require.Len(t, view.Documents, 2)
	assert.Len(t, s.attachments.files, 2)

	body, contentType = multipartBody(t, fields, "virus.exe")
	status, env = s.do(t, request{method: http.MethodPost, path: "/api/tasks/new", body: body, contentType: contentType, token: creator.Token})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, domain.ErrUnsupportedFile.Message, env.Error)

	body, contentType = multipartBody(t, fields, "1.pdf", "2.pdf", "3.pdf", "4.pdf", "5.pdf", "6.pdf")
	status, env = s.do(t, request{method: http.MethodPost, path: "/api/tasks/new", body: body, contentType: contentType, token: creator.Token})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, domain.ErrTooManyFiles.Message, env.Error)

	delete(fields, "title")
	body, contentType = multipartBody(t, fields)
	status, env = s.do(t, request{method: http.MethodPost, path: "/api/tasks/new", body: body, contentType: contentType, token: creator.Token})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "please fill in all fields", env.Error)

	assert.Equal(t, 1, s.tasks.Count())
	assert.Len(t, s.attachments.files, 2)
}

func TestCreateTaskErrors(t *testing.T) {
	s := newServer(t)
	creator := s.register(t, "creator", "user")

	post := func(payload map[string]string, token string) (int, envelope) {
		return s.do(t, request{
			method:      http.MethodPost,
			path:        "/api/tasks/new",
			body:        jsonBody(t, payload),
			contentType: "application/json",
			token:       token,
		})
	}
	valid := func() map[string]string {
		return map[string]string{
			"title":       "t",
			"description": "d",
			"assignedTo":  uuid.NewString(),
			"priority":    "low",
			"dueDate":     "2030-01-01",
		}
	}

	status, _ := post(valid(), "")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, env := post(valid(), creator.Token)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "assignee not found", env.Error)

	bad := valid()
	bad["dueDate"] = "next tuesday"
	status, env = post(bad, creator.Token)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, domain.ErrInvalidDueDate.Message, env.Error)

	status, _ = s.do(t, request{method: http.MethodPost, path: "/api/tasks/new", body: []byte("{"), contentType: "application/json", token: creator.Token})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestCreateTaskIdempotencyKey(t *testing.T) {
	s := newServer(t)
	creator := s.register(t, "creator", "user")
	worker := s.register(t, "worker", "user")

	send := func() (int, envelope) {
		return s.do(t, request{
			method: http.MethodPost,
			path:   "/api/tasks/new",
			body: jsonBody(t, map[string]string{
				"title": "t", "description": "d", "assignedTo": worker.ID, "priority": "low", "dueDate": "2030-01-01",
			}),
			contentType: "application/json",
			token:       creator.Token,
			headers:     map[string]string{"Idempotency-Key": "abc-123"},
		})
	}

	status, first := send()
	require.Equal(t, http.StatusCreated, status)
	status, second := send()
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"replayed":true}`, string(second.Meta))

	var a, b taskView
	require.NoError(t, json.Unmarshal(first.Data, &a))
	require.NoError(t, json.Unmarshal(second.Data, &b))
	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, 1, s.tasks.Count())
}

func TestHealthAndMetrics(t *testing.T) {
	s := newServer(t)

	status, env := s.do(t, request{method: http.MethodGet, path: "/health"})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "success", env.Status)

	status, _ = s.do(t, request{method: http.MethodGet, path: "/metrics"})
	assert.Equal(t, http.StatusOK, status)
}

func TestUnknownRoute(t *testing.T) {
	s := newServer(t)
	status, _ := s.do(t, request{method: http.MethodGet, path: "/api/nope"})
	assert.Equal(t, http.StatusNotFound, status)
}
