package api

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/scry-vocab/internal/api/shared"
	"github.com/phrazzld/scry-vocab/internal/content"
	"github.com/phrazzld/scry-vocab/internal/domain"
	"github.com/phrazzld/scry-vocab/internal/platform/logger"
	"github.com/phrazzld/scry-vocab/internal/redact"
	"github.com/phrazzld/scry-vocab/internal/service/review"
)

// MaxDueLimit bounds the ?limit= parameter of the due queue.
const MaxDueLimit = 500

// ReviewHandler handles review item HTTP requests
type ReviewHandler struct {
	service review.Service
	logger  *slog.Logger
}

// NewReviewHandler creates a new ReviewHandler
func NewReviewHandler(service review.Service, logger *slog.Logger) *ReviewHandler {
	if service == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("review service cannot be nil for ReviewHandler")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &ReviewHandler{
		service: service,
		logger:  logger.With(slog.String("component", "review_handler")),
	}
}

// Ingest handles POST /v1/reviews/ingest.
// Payloads that fail to decode are skipped and counted as rejected.
func (h *ReviewHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	ownerID, ok := requireOwner(w, r, log)
	if !ok {
		return
	}

	var req IngestRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		log.Warn("invalid request format", slog.String("error", redact.Error(err)))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	items, rejected, err := content.DecodeBatch(req.Items)
	if err != nil {
		HandleAPIError(w, r, err, "Items must be a JSON array")
		return
	}
	for idx, decodeErr := range rejected {
		log.Warn("skipping invalid content payload",
			slog.Int("index", idx),
			slog.String("error", redact.Error(decodeErr)))
	}

	created, err := h.service.IngestFromContent(r.Context(), ownerID, items)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, IngestResponse{
		Created:  created,
		Rejected: len(rejected),
	})
}

// CreateAdHoc handles POST /v1/reviews.
// Responds 201 for a new item and 200 when the item already existed.
func (h *ReviewHandler) CreateAdHoc(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	ownerID, ok := requireOwner(w, r, log)
	if !ok {
		return
	}

	raw, err := shared.ReadBody(r)
	if err != nil {
		HandleAPIError(w, r, shared.ErrEmptyBody, "")
		return
	}

	payload, err := content.Decode(raw)
	if err != nil {
		log.Warn("invalid content payload", slog.String("error", redact.Error(err)))
		HandleAPIError(w, r, err, "")
		return
	}

	item, created, err := h.service.CreateAdHoc(r.Context(), ownerID, payload)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	shared.RespondWithJSON(w, r, status, itemToResponse(item))
}

// ListItems handles GET /v1/reviews.
func (h *ReviewHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	ownerID, ok := requireOwner(w, r, log)
	if !ok {
		return
	}

	items, err := h.service.ListItems(r.Context(), ownerID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, itemsToResponse(items))
}

// DueItems handles GET /v1/reviews/due?limit=.
func (h *ReviewHandler) DueItems(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	ownerID, ok := requireOwner(w, r, log)
	if !ok {
		return
	}

	limit, err := getLimitParam(r, MaxDueLimit)
	if err != nil {
		HandleAPIError(w, r, err, "Invalid limit")
		return
	}

	items, err := h.service.DueItems(r.Context(), ownerID, limit)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, itemsToResponse(items))
}

// DueCount handles GET /v1/reviews/due/count.
func (h *ReviewHandler) DueCount(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	ownerID, ok := requireOwner(w, r, log)
	if !ok {
		return
	}

	count, err := h.service.DueCount(r.Context(), ownerID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, CountResponse{Count: count})
}

// Grade handles POST /v1/reviews/{id}/grade.
func (h *ReviewHandler) Grade(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	ownerID, itemID, ok := requireOwnerAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	var req GradeRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		log.Warn("invalid request format",
			slog.String("error", redact.Error(err)),
			slog.String("item_id", itemID.String()))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	grade, err := domain.ParseGrade(req.Grade)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	item, err := h.service.Grade(r.Context(), ownerID, itemID, grade)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	log.Debug("graded review item",
		slog.String("item_id", item.ID.String()),
		slog.String("grade", string(grade)))
	shared.RespondWithJSON(w, r, http.StatusOK, itemToResponse(item))
}

// Postpone handles POST /v1/reviews/{id}/postpone.
func (h *ReviewHandler) Postpone(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	ownerID, itemID, ok := requireOwnerAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	var req PostponeRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		log.Warn("invalid request format",
			slog.String("error", redact.Error(err)),
			slog.String("item_id", itemID.String()))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	item, err := h.service.Postpone(r.Context(), ownerID, itemID, req.Days)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, itemToResponse(item))
}

// ResetForReview handles POST /v1/reviews/reset.
func (h *ReviewHandler) ResetForReview(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	ownerID, ok := requireOwner(w, r, log)
	if !ok {
		return
	}

	count, err := h.service.ResetForReview(r.Context(), ownerID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, CountResponse{Count: count})
}

// RetireSource handles DELETE /v1/reviews/sources/{sourceRef}.
func (h *ReviewHandler) RetireSource(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	ownerID, ok := requireOwner(w, r, log)
	if !ok {
		return
	}

	sourceRef, err := url.PathUnescape(chi.URLParam(r, "sourceRef"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid source reference")
		return
	}

	count, err := h.service.RetireSource(r.Context(), ownerID, sourceRef)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, CountResponse{Count: count})
}

// Stats handles GET /v1/reviews/stats.
func (h *ReviewHandler) Stats(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	ownerID, ok := requireOwner(w, r, log)
	if !ok {
		return
	}

	stats, err := h.service.Stats(r.Context(), ownerID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, stats)
}

// Routes registers the review endpoints on r. Callers mount r behind the
// auth middleware.
func (h *ReviewHandler) Routes(r chi.Router) {
	r.Post("/ingest", h.Ingest)
	r.Post("/", h.CreateAdHoc)
	r.Get("/", h.ListItems)
	r.Get("/due", h.DueItems)
	r.Get("/due/count", h.DueCount)
	r.Get("/stats", h.Stats)
	r.Post("/reset", h.ResetForReview)
	r.Post("/{id}/grade", h.Grade)
	r.Post("/{id}/postpone", h.Postpone)
	r.Delete("/sources/{sourceRef}", h.RetireSource)
}
