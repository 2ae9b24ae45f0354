package handler

import (
	"encoding/json"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskdesk/api/transport"
	"github.com/fastygo/taskdesk/domain"
	"github.com/fastygo/taskdesk/internal/middleware"
	"github.com/fastygo/taskdesk/pkg/httpcontext"
	"github.com/fastygo/taskdesk/usecase"
	taskUC "github.com/fastygo/taskdesk/usecase/task"
)

const (
	// MaxDocuments bounds the files accepted with a new task.
	MaxDocuments = 5

	documentsField       = "documents"
	headerIdempotencyKey = "Idempotency-Key"
)

var allowedExtensions = map[string]struct{}{
	".jpeg": {},
	".jpg":  {},
	".png":  {},
	".pdf":  {},
	".doc":  {},
	".docx": {},
}

type TaskHandler struct {
	baseHandler
	uc *taskUC.UseCase
}

func NewTaskHandler(uc *taskUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary List all tasks
// @Tags tasks
// @Param status query string false "filter by status"
// @Param limit query int false "page size, all tasks when omitted"
// @Param offset query int false "rows to skip"
// @Router /api/tasks [get]
func (h *TaskHandler) List(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	opts, err := listOptions(ctx)
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	tasks, err := h.uc.ListTasks(stdCtx, opts)
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, tasks)
}

// @Summary List tasks assigned to a user
// @Tags tasks
// @Router /api/tasks/user/{id} [get]
func (h *TaskHandler) ListByUser(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	opts, err := listOptions(ctx)
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	tasks, err := h.uc.ListTasksByUser(stdCtx, pathParam(ctx, "id"), opts)
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, tasks)
}

// @Summary Create task
// @Tags tasks
// @Accept multipart/form-data,json
// @Router /api/tasks/new [post]
func (h *TaskHandler) Create(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	in, closeFiles, err := parseCreate(ctx)
	defer closeFiles()
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}

	view, replayed, err := h.uc.CreateTask(stdCtx, middleware.CallerFrom(ctx), in)
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	if replayed {
		h.respondJSON(ctx, http.StatusOK, transport.NewSuccess(view, transport.ReplayMeta{Replayed: true}))
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, view)
}

// @Summary Update task status
// @Tags tasks
// @Router /api/tasks/{id} [put]
func (h *TaskHandler) UpdateStatus(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	var req transport.StatusUpdateRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondInvalid(ctx, domain.ErrInvalidPayload.Message)
		return
	}

	view, err := h.uc.UpdateStatus(stdCtx, middleware.CallerFrom(ctx), pathParam(ctx, "id"), req.Status)
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, view)
}

// @Summary Delete task
// @Tags tasks
// @Router /api/tasks/{id} [delete]
func (h *TaskHandler) Delete(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	result, err := h.uc.DeleteTask(stdCtx, middleware.CallerFrom(ctx), pathParam(ctx, "id"))
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, result)
}

// parseCreate reads either a multipart form or a JSON body. The returned
// func closes any opened document and is always safe to call.
func parseCreate(ctx *fasthttp.RequestCtx) (taskUC.CreateInput, func(), error) {
	noop := func() {}
	contentType := string(ctx.Request.Header.ContentType())
	key := strings.TrimSpace(string(ctx.Request.Header.Peek(headerIdempotencyKey)))

	if !strings.HasPrefix(strings.ToLower(contentType), "multipart/form-data") {
		var req transport.CreateTaskRequest
		if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
			return taskUC.CreateInput{}, noop, domain.ErrInvalidPayload
		}
		in, err := createInput(req, key)
		return in, noop, err
	}

	form, err := ctx.MultipartForm()
	if err != nil {
		return taskUC.CreateInput{}, noop, domain.WrapError(domain.ErrCodeInvalid, domain.ErrInvalidPayload.Message, err)
	}

	req := transport.CreateTaskRequest{
		Title:       formValue(form, "title"),
		Description: formValue(form, "description"),
		Instruction: formValue(form, "instruction"),
		AssignedTo:  formValue(form, "assignedTo"),
		Priority:    formValue(form, "priority"),
		DueDate:     formValue(form, "dueDate"),
	}
	in, err := createInput(req, key)
	if err != nil {
		return in, noop, err
	}

	uploads, closeFiles, err := openDocuments(form.File[documentsField])
	if err != nil {
		return in, noop, err
	}
	in.Documents = uploads
	return in, closeFiles, nil
}

func createInput(req transport.CreateTaskRequest, key string) (taskUC.CreateInput, error) {
	due, err := parseDueDate(req.DueDate)
	if err != nil {
		return taskUC.CreateInput{}, err
	}
	return taskUC.CreateInput{
		Title:          req.Title,
		Description:    req.Description,
		Instruction:    req.Instruction,
		AssignedTo:     strings.TrimSpace(req.AssignedTo),
		Priority:       req.Priority,
		DueDate:        due,
		IdempotencyKey: key,
	}, nil
}

// parseDueDate accepts RFC 3339 timestamps and plain dates. An empty value
// yields the zero time, which the use case reports as a missing field.
func parseDueDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, domain.ErrInvalidDueDate
}

func openDocuments(headers []*multipart.FileHeader) ([]usecase.Upload, func(), error) {
	noop := func() {}
	if len(headers) > MaxDocuments {
		return nil, noop, domain.ErrTooManyFiles
	}
	for _, fh := range headers {
		if !allowedDocument(fh.Filename) {
			return nil, noop, domain.ErrUnsupportedFile
		}
	}

	files := make([]multipart.File, 0, len(headers))
	closeAll := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}

	uploads := make([]usecase.Upload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, noop, domain.WrapError(domain.ErrCodeInvalid, domain.ErrInvalidPayload.Message, err)
		}
		files = append(files, f)
		uploads = append(uploads, usecase.Upload{
			Name:        filepath.Base(fh.Filename),
			ContentType: fh.Header.Get("Content-Type"),
			Content:     f,
		})
	}
	return uploads, closeAll, nil
}

func allowedDocument(name string) bool {
	_, ok := allowedExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// listOptions reads the optional status, limit and offset query parameters.
func listOptions(ctx *fasthttp.RequestCtx) (taskUC.ListOptions, error) {
	args := ctx.QueryArgs()
	opts := taskUC.ListOptions{Status: string(args.Peek("status"))}
	for name, dst := range map[string]*int{"limit": &opts.Limit, "offset": &opts.Offset} {
		if !args.Has(name) {
			continue
		}
		v, err := args.GetUint(name)
		if err != nil {
			return opts, domain.ErrInvalidPagination
		}
		*dst = v
	}
	return opts, nil
}

func formValue(form *multipart.Form, key string) string {
	if values := form.Value[key]; len(values) > 0 {
		return values[0]
	}
	return ""
}

func pathParam(ctx *fasthttp.RequestCtx, name string) string {
	value, _ := ctx.UserValue(name).(string)
	return value
}
