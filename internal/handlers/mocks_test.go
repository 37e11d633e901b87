package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/benvon/thought-capture/internal/database"
	"github.com/benvon/thought-capture/internal/models"
	"github.com/benvon/thought-capture/internal/request"
	"github.com/benvon/thought-capture/internal/services/capture"
	"github.com/benvon/thought-capture/internal/services/nlp"
	"github.com/benvon/thought-capture/internal/services/oidc"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type mockPipeline struct {
	captureFunc   func(ctx context.Context, userID uuid.UUID, req capture.CaptureRequest) (*capture.Result, error)
	reprocessFunc func(ctx context.Context, userID, captureID uuid.UUID) (*capture.Result, error)
	previewFunc   func(ctx context.Context, text string) (nlp.ProcessingResult, error)
	segmentsFunc  func(text string) ([]capture.Segment, error)
}

var _ CapturePipeline = (*mockPipeline)(nil)

func (m *mockPipeline) Capture(ctx context.Context, userID uuid.UUID, req capture.CaptureRequest) (*capture.Result, error) {
	return m.captureFunc(ctx, userID, req)
}

func (m *mockPipeline) Reprocess(ctx context.Context, userID, captureID uuid.UUID) (*capture.Result, error) {
	return m.reprocessFunc(ctx, userID, captureID)
}

func (m *mockPipeline) Preview(ctx context.Context, text string) (nlp.ProcessingResult, error) {
	return m.previewFunc(ctx, text)
}

func (m *mockPipeline) Segments(text string) ([]capture.Segment, error) {
	return m.segmentsFunc(text)
}

type mockCaptureStore struct {
	getByIDFunc    func(ctx context.Context, userID, id uuid.UUID) (*models.Capture, error)
	listByUserFunc func(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Capture, int, error)
	deleteFunc     func(ctx context.Context, userID, id uuid.UUID) error
}

var _ database.CaptureStore = (*mockCaptureStore)(nil)

func (m *mockCaptureStore) Create(ctx context.Context, c *models.Capture, thoughts []*models.StoredThought) error {
	return nil
}

func (m *mockCaptureStore) ReplaceThoughts(ctx context.Context, c *models.Capture, thoughts []*models.StoredThought) error {
	return nil
}

func (m *mockCaptureStore) GetByID(ctx context.Context, userID, id uuid.UUID) (*models.Capture, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, userID, id)
	}
	return nil, database.ErrNotFound
}

func (m *mockCaptureStore) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Capture, int, error) {
	if m.listByUserFunc != nil {
		return m.listByUserFunc(ctx, userID, limit, offset)
	}
	return nil, 0, nil
}

func (m *mockCaptureStore) ListStaleIDs(ctx context.Context, userID uuid.UUID, rulesVersion string) ([]uuid.UUID, error) {
	return nil, nil
}

func (m *mockCaptureStore) Delete(ctx context.Context, userID, id uuid.UUID) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, userID, id)
	}
	return database.ErrNotFound
}

type mockThoughtStore struct {
	thoughts map[uuid.UUID]*models.StoredThought
	lastList database.ThoughtFilter
	updated  []*models.StoredThought
}

var _ database.ThoughtStore = (*mockThoughtStore)(nil)

func newMockThoughtStore(thoughts ...*models.StoredThought) *mockThoughtStore {
	m := &mockThoughtStore{thoughts: map[uuid.UUID]*models.StoredThought{}}
	for _, t := range thoughts {
		m.thoughts[t.ID] = t
	}
	return m
}

func (m *mockThoughtStore) GetByID(ctx context.Context, userID, id uuid.UUID) (*models.StoredThought, error) {
	t, ok := m.thoughts[id]
	if !ok || t.UserID != userID {
		return nil, database.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *mockThoughtStore) List(ctx context.Context, f database.ThoughtFilter) ([]*models.StoredThought, int, error) {
	m.lastList = f
	var out []*models.StoredThought
	for _, t := range m.thoughts {
		if t.UserID == f.UserID {
			out = append(out, t)
		}
	}
	return out, len(out), nil
}

func (m *mockThoughtStore) ListByCapture(ctx context.Context, userID, captureID uuid.UUID) ([]*models.StoredThought, error) {
	var out []*models.StoredThought
	for _, t := range m.thoughts {
		if t.UserID == userID && t.CaptureID == captureID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *mockThoughtStore) Update(ctx context.Context, t *models.StoredThought) error {
	m.updated = append(m.updated, t)
	return nil
}

func (m *mockThoughtStore) UpdateIfStatus(ctx context.Context, t *models.StoredThought, expected models.ThoughtStatus) error {
	return m.Update(ctx, t)
}

func (m *mockThoughtStore) Delete(ctx context.Context, userID, id uuid.UUID) error {
	if _, err := m.GetByID(ctx, userID, id); err != nil {
		return err
	}
	delete(m.thoughts, id)
	return nil
}

type mockContextStore struct {
	stored *models.CategorizationContext
}

var _ database.CategorizationContextStore = (*mockContextStore)(nil)

func (m *mockContextStore) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.CategorizationContext, error) {
	if m.stored == nil || m.stored.UserID != userID {
		return nil, database.ErrNotFound
	}
	return m.stored, nil
}

func (m *mockContextStore) Upsert(ctx context.Context, c *models.CategorizationContext) error {
	m.stored = c
	return nil
}

type mockLoginSource struct {
	getLoginConfigFunc func(ctx context.Context, providerName string) (*oidc.LoginConfig, error)
}

var _ LoginConfigSource = (*mockLoginSource)(nil)

func (m *mockLoginSource) GetLoginConfig(ctx context.Context, providerName string) (*oidc.LoginConfig, error) {
	return m.getLoginConfigFunc(ctx, providerName)
}

// newTestRequest builds a request with a JSON body, an optional user and mux route vars.
func newTestRequest(method, path string, body any, user *models.User, vars map[string]string) *http.Request {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, _ := json.Marshal(b)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		req = req.WithContext(request.WithUser(req.Context(), user))
	}
	if vars != nil {
		req = mux.SetURLVars(req, vars)
	}
	return req
}

// envelope is the decoded response envelope with data left raw.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

func decodeEnvelope(w *httptest.ResponseRecorder) (envelope, error) {
	var env envelope
	err := json.NewDecoder(w.Body).Decode(&env)
	return env, err
}
