package api_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/scry-vocab/internal/api"
	"github.com/phrazzld/scry-vocab/internal/api/shared"
	"github.com/phrazzld/scry-vocab/internal/content"
	"github.com/phrazzld/scry-vocab/internal/domain"
	"github.com/phrazzld/scry-vocab/internal/service/review"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestRouter mounts the review routes behind a stub that authenticates
// every request as ownerID. uuid.Nil leaves the request unauthenticated.
func newTestRouter(svc review.Service, ownerID uuid.UUID) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ownerID != uuid.Nil {
				r = r.WithContext(shared.WithOwnerID(r.Context(), ownerID))
			}
			next.ServeHTTP(w, r)
		})
	})
	r.Route("/v1/reviews", api.NewReviewHandler(svc, testLogger()).Routes)
	return r
}

func sampleItem(ownerID uuid.UUID) *domain.ReviewItem {
	ref := "photo-1"
	return &domain.ReviewItem{
		ID:           uuid.New(),
		OwnerID:      ownerID,
		SourceRef:    &ref,
		Vocabulary:   domain.Vocabulary{Base: "cat", Target: "猫", Phonetic: "māo"},
		Schedule:     domain.InitialSchedule(),
		CreatedAt:    testNow,
		NextReviewAt: testNow.Add(24 * time.Hour),
		Version:      1,
		UpdatedAt:    testNow,
	}
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp shared.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp.Error
}

func TestNewReviewHandlerPanicsOnNilService(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { api.NewReviewHandler(nil, nil) })
}

func TestGradeHandler(t *testing.T) {
	t.Parallel()

	ownerID := uuid.New()
	itemID := uuid.New()

	tests := []struct {
		name       string
		owner      uuid.UUID
		path       string
		body       string
		setup      func(m *MockReviewService)
		wantStatus int
		wantError  string
	}{
		{
			name:  "success normalizes grade",
			owner: ownerID,
			path:  "/v1/reviews/" + itemID.String() + "/grade",
			body:  `{"grade": "Good"}`,
			setup: func(m *MockReviewService) {
				m.On("Grade", mock.Anything, ownerID, itemID, domain.GradeGood).
					Return(sampleItem(ownerID), nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "invalid grade",
			owner:      ownerID,
			path:       "/v1/reviews/" + itemID.String() + "/grade",
			body:       `{"grade": "meh"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Grade must be one of again, hard, good, easy",
		},
		{
			name:       "missing grade",
			owner:      ownerID,
			path:       "/v1/reviews/" + itemID.String() + "/grade",
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid grade: required field",
		},
		{
			name:       "unknown field",
			owner:      ownerID,
			path:       "/v1/reviews/" + itemID.String() + "/grade",
			body:       `{"grade": "good", "outcome": "good"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid request format",
		},
		{
			name:       "invalid item id",
			owner:      ownerID,
			path:       "/v1/reviews/not-a-uuid/grade",
			body:       `{"grade": "good"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid id",
		},
		{
			name:       "unauthenticated",
			owner:      uuid.Nil,
			path:       "/v1/reviews/" + itemID.String() + "/grade",
			body:       `{"grade": "good"}`,
			wantStatus: http.StatusUnauthorized,
			wantError:  "Invalid token",
		},
		{
			name:  "not found",
			owner: ownerID,
			path:  "/v1/reviews/" + itemID.String() + "/grade",
			body:  `{"grade": "again"}`,
			setup: func(m *MockReviewService) {
				m.On("Grade", mock.Anything, ownerID, itemID, domain.GradeAgain).
					Return(nil, review.NewServiceError("grade", "item not found", review.ErrItemNotFound))
			},
			wantStatus: http.StatusNotFound,
			wantError:  "Review item not found",
		},
		{
			name:  "concurrent modification",
			owner: ownerID,
			path:  "/v1/reviews/" + itemID.String() + "/grade",
			body:  `{"grade": "hard"}`,
			setup: func(m *MockReviewService) {
				m.On("Grade", mock.Anything, ownerID, itemID, domain.GradeHard).
					Return(nil, review.ErrConcurrencyConflict)
			},
			wantStatus: http.StatusConflict,
		},
		{
			name:  "store unavailable",
			owner: ownerID,
			path:  "/v1/reviews/" + itemID.String() + "/grade",
			body:  `{"grade": "easy"}`,
			setup: func(m *MockReviewService) {
				m.On("Grade", mock.Anything, ownerID, itemID, domain.GradeEasy).
					Return(nil, review.NewServiceError("grade", "store failure", review.ErrStoreUnavailable))
			},
			wantStatus: http.StatusServiceUnavailable,
			wantError:  "Service temporarily unavailable, retry later",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			svc := new(MockReviewService)
			if tc.setup != nil {
				tc.setup(svc)
			}

			rec := do(t, newTestRouter(svc, tc.owner), http.MethodPost, tc.path, tc.body)
			assert.Equal(t, tc.wantStatus, rec.Code)
			if tc.wantError != "" {
				assert.Equal(t, tc.wantError, decodeError(t, rec))
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestGradeHandlerResponseBody(t *testing.T) {
	t.Parallel()

	ownerID := uuid.New()
	item := sampleItem(ownerID)
	svc := new(MockReviewService)
	svc.On("Grade", mock.Anything, ownerID, item.ID, domain.GradeGood).Return(item, nil)

	rec := do(t, newTestRouter(svc, ownerID), http.MethodPost,
		"/v1/reviews/"+item.ID.String()+"/grade", `{"grade": "good"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp api.ReviewItemResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, item.ID.String(), resp.ID)
	assert.Equal(t, "猫", resp.Target)
	assert.Equal(t, "new", resp.Difficulty)
	assert.Equal(t, 2.5, resp.EaseFactor)
	require.NotNil(t, resp.SourceRef)
	assert.Equal(t, "photo-1", *resp.SourceRef)
	assert.Nil(t, resp.MediaRef)
}

func TestIngestHandler(t *testing.T) {
	t.Parallel()

	ownerID := uuid.New()
	svc := new(MockReviewService)
	want := []content.Item{
		{Version: content.SchemaVersionCanonical, SourceRef: "photo-1", Base: "cat", Target: "猫"},
		{Version: content.SchemaVersionCanonical, SourceRef: "post-9", Base: "dog", Target: "狗"},
	}
	svc.On("IngestFromContent", mock.Anything, ownerID, want).Return(2, nil)

	body := `{"items": [
		{"schema_version": 2, "source_ref": "photo-1", "base": "cat", "target": "猫"},
		{"post_id": "post-9", "detectedObjectBase": "dog", "detectedObjectTarget": "狗"},
		{"schema_version": 2, "base": "fish"}
	]}`
	rec := do(t, newTestRouter(svc, ownerID), http.MethodPost, "/v1/reviews/ingest", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp api.IngestResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, api.IngestResponse{Created: 2, Rejected: 1}, resp)
	svc.AssertExpectations(t)
}

func TestIngestHandlerRejectsMalformedBodies(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		body      string
		wantError string
	}{
		{"not json", `{"items":`, "Invalid request format"},
		{"missing items", `{}`, "Invalid items: required field"},
		{"items not an array", `{"items": {"base": "cat"}}`, "Items must be a JSON array"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			svc := new(MockReviewService)
			rec := do(t, newTestRouter(svc, uuid.New()), http.MethodPost, "/v1/reviews/ingest", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tc.wantError, decodeError(t, rec))
			svc.AssertNotCalled(t, "IngestFromContent", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestCreateAdHocHandler(t *testing.T) {
	t.Parallel()

	ownerID := uuid.New()
	payload := content.Item{Version: content.SchemaVersionCanonical, Base: "cat", Target: "猫"}

	tests := []struct {
		name       string
		body       string
		created    bool
		wantStatus int
	}{
		{"new item", `{"schema_version": 2, "base": " cat ", "target": "猫"}`, true, http.StatusCreated},
		{"existing item", `{"schema_version": 2, "base": "cat", "target": "猫"}`, false, http.StatusOK},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			svc := new(MockReviewService)
			svc.On("CreateAdHoc", mock.Anything, ownerID, payload).Return(sampleItem(ownerID), tc.created, nil)

			rec := do(t, newTestRouter(svc, ownerID), http.MethodPost, "/v1/reviews", tc.body)
			assert.Equal(t, tc.wantStatus, rec.Code)
			svc.AssertExpectations(t)
		})
	}
}

func TestCreateAdHocHandlerValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		body      string
		wantError string
	}{
		{"empty body", "", "Request body is required"},
		{"missing target", `{"schema_version": 2, "base": "cat"}`, "Target term is required"},
		{"missing base", `{"detectedObjectTarget": "猫"}`, "Base term is required"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			svc := new(MockReviewService)
			rec := do(t, newTestRouter(svc, uuid.New()), http.MethodPost, "/v1/reviews", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tc.wantError, decodeError(t, rec))
		})
	}
}

func TestDueItemsHandler(t *testing.T) {
	t.Parallel()

	ownerID := uuid.New()

	tests := []struct {
		name       string
		query      string
		wantLimit  int
		wantStatus int
	}{
		{"default limit", "", 0, http.StatusOK},
		{"explicit limit", "?limit=5", 5, http.StatusOK},
		{"non numeric limit", "?limit=abc", 0, http.StatusBadRequest},
		{"zero limit", "?limit=0", 0, http.StatusBadRequest},
		{"limit above maximum", "?limit=501", 0, http.StatusBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			svc := new(MockReviewService)
			if tc.wantStatus == http.StatusOK {
				svc.On("DueItems", mock.Anything, ownerID, tc.wantLimit).
					Return([]*domain.ReviewItem{sampleItem(ownerID)}, nil)
			}

			rec := do(t, newTestRouter(svc, ownerID), http.MethodGet, "/v1/reviews/due"+tc.query, "")
			assert.Equal(t, tc.wantStatus, rec.Code)
			if tc.wantStatus == http.StatusOK {
				var items []api.ReviewItemResponse
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&items))
				assert.Len(t, items, 1)
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestDueItemsHandlerFailsClosed(t *testing.T) {
	t.Parallel()

	ownerID := uuid.New()
	svc := new(MockReviewService)
	svc.On("DueItems", mock.Anything, ownerID, 0).
		Return([]*domain.ReviewItem{}, review.NewServiceError("due_items", "store failure", review.ErrStoreUnavailable))

	rec := do(t, newTestRouter(svc, ownerID), http.MethodGet, "/v1/reviews/due", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListItemsHandlerReturnsEmptyArray(t *testing.T) {
	t.Parallel()

	ownerID := uuid.New()
	svc := new(MockReviewService)
	svc.On("ListItems", mock.Anything, ownerID).Return([]*domain.ReviewItem{}, nil)

	rec := do(t, newTestRouter(svc, ownerID), http.MethodGet, "/v1/reviews", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestCountEndpoints(t *testing.T) {
	t.Parallel()

	ownerID := uuid.New()

	tests := []struct {
		name   string
		method string
		path   string
		setup  func(m *MockReviewService)
		want   int
	}{
		{
			name:   "due count",
			method: http.MethodGet,
			path:   "/v1/reviews/due/count",
			setup:  func(m *MockReviewService) { m.On("DueCount", mock.Anything, ownerID).Return(4, nil) },
			want:   4,
		},
		{
			name:   "reset",
			method: http.MethodPost,
			path:   "/v1/reviews/reset",
			setup:  func(m *MockReviewService) { m.On("ResetForReview", mock.Anything, ownerID).Return(7, nil) },
			want:   7,
		},
		{
			name:   "retire escaped source",
			method: http.MethodDelete,
			path:   "/v1/reviews/sources/photo%2F1",
			setup: func(m *MockReviewService) {
				m.On("RetireSource", mock.Anything, ownerID, "photo/1").Return(2, nil)
			},
			want: 2,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			svc := new(MockReviewService)
			tc.setup(svc)

			rec := do(t, newTestRouter(svc, ownerID), tc.method, tc.path, "")
			require.Equal(t, http.StatusOK, rec.Code)

			var resp api.CountResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tc.want, resp.Count)
			svc.AssertExpectations(t)
		})
	}
}

func TestPostponeHandler(t *testing.T) {
	t.Parallel()

	ownerID := uuid.New()
	itemID := uuid.New()
	path := "/v1/reviews/" + itemID.String() + "/postpone"

	tests := []struct {
		name       string
		body       string
		setup      func(m *MockReviewService)
		wantStatus int
		wantError  string
	}{
		{
			name: "success",
			body: `{"days": 3}`,
			setup: func(m *MockReviewService) {
				m.On("Postpone", mock.Anything, ownerID, itemID, 3).Return(sampleItem(ownerID), nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "zero days",
			body:       `{"days": 0}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid days: required field",
		},
		{
			name:       "too many days",
			body:       `{"days": 400}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid days: too large",
		},
		{
			name: "tombstoned item",
			body: `{"days": 1}`,
			setup: func(m *MockReviewService) {
				m.On("Postpone", mock.Anything, ownerID, itemID, 1).Return(nil, review.ErrItemNotFound)
			},
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			svc := new(MockReviewService)
			if tc.setup != nil {
				tc.setup(svc)
			}

			rec := do(t, newTestRouter(svc, ownerID), http.MethodPost, path, tc.body)
			assert.Equal(t, tc.wantStatus, rec.Code)
			if tc.wantError != "" {
				assert.Equal(t, tc.wantError, decodeError(t, rec))
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestStatsHandler(t *testing.T) {
	t.Parallel()

	ownerID := uuid.New()

	t.Run("success", func(t *testing.T) {
		t.Parallel()

		svc := new(MockReviewService)
		svc.On("Stats", mock.Anything, ownerID).
			Return(review.Stats{Total: 5, Due: 2, New: 1, Learning: 3, Mastered: 1}, nil)

		rec := do(t, newTestRouter(svc, ownerID), http.MethodGet, "/v1/reviews/stats", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"total":5,"due":2,"new":1,"learning":3,"mastered":1}`, rec.Body.String())
	})

	t.Run("store failure", func(t *testing.T) {
		t.Parallel()

		svc := new(MockReviewService)
		svc.On("Stats", mock.Anything, ownerID).Return(review.Stats{}, errors.New("boom"))

		rec := do(t, newTestRouter(svc, ownerID), http.MethodGet, "/v1/reviews/stats", "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "An unexpected error occurred", decodeError(t, rec))
	})
}
