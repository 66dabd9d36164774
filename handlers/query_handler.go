package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ai-search-guru/getcito/middleware"
	"github.com/ai-search-guru/getcito/models"
	"github.com/ai-search-guru/getcito/services"
	"github.com/ai-search-guru/getcito/services/providers"
	"github.com/ai-search-guru/getcito/utils"
)

// Metadata keys stamped on every request at the boundary
const (
	MetadataUserAgent = "userAgent"
	MetadataTimestamp = "timestamp"
	MetadataClientIP  = "ip"
)

// QueryRequest is the body of POST /query
type QueryRequest struct {
	Prompt    string                      `json:"prompt" validate:"required"`
	Providers []string                    `json:"providers,omitempty" validate:"omitempty,dive,required"`
	Priority  string                      `json:"priority,omitempty" validate:"omitempty,oneof=low medium high"`
	UserID    string                      `json:"userId" validate:"required"`
	Metadata  map[string]string           `json:"metadata,omitempty"`
	Options   providers.GenerationOptions `json:"options"`
	Search    providers.SearchParams      `json:"search"`
}

// normalize trims the fields whose emptiness is checked after trimming
func (q *QueryRequest) normalize() {
	q.Prompt = strings.TrimSpace(q.Prompt)
	q.UserID = strings.TrimSpace(q.UserID)
	q.Priority = strings.ToLower(strings.TrimSpace(q.Priority))
	for i, id := range q.Providers {
		q.Providers[i] = strings.ToLower(strings.TrimSpace(id))
	}
}

// QueryResponse is the body of a successful POST /query
type QueryResponse struct {
	Success     bool                              `json:"success"`
	RequestID   string                            `json:"requestId"`
	Data        map[string]providers.ProviderData `json:"data"`
	Results     []*providers.ProviderResult       `json:"results"`
	TotalCost   float64                           `json:"totalCost"`
	CompletedAt time.Time                         `json:"completedAt"`
}

// ProvidersResponse is the body of GET /query
type ProvidersResponse struct {
	Success   bool                                `json:"success"`
	Providers []string                            `json:"providers"`
	Defaults  []string                            `json:"defaults"`
	Status    map[string]providers.ProviderStatus `json:"status"`
}

// StoredQueryResponse is the body of GET /query/{id}
type StoredQueryResponse struct {
	Success bool                `json:"success"`
	Data    *models.QueryRecord `json:"data"`
}

// QueryHandler handles brand-monitoring query requests
type QueryHandler struct {
	service QueryService
	catalog ProviderCatalog
	logger  *zap.Logger
	now     func() time.Time
}

// NewQueryHandler creates a new QueryHandler
func NewQueryHandler(service QueryService, catalog ProviderCatalog, logger *zap.Logger) *QueryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryHandler{
		service: service,
		catalog: catalog,
		logger:  logger,
		now:     time.Now,
	}
}

// HandleCreateQuery handles POST /query
func (h *QueryHandler) HandleCreateQuery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var body QueryRequest
	if err := utils.DecodeJSON(w, r, &body); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	body.normalize()
	if err := utils.ValidateStruct(&body); err != nil {
		h.logger.Warn("request validation failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleValidationError(w, err, h.logger)
		return
	}

	if subject := middleware.GetSubjectFromContext(ctx); subject != "" && subject != body.UserID {
		h.logger.Warn("userId does not match token subject",
			zap.String("request_id", requestID),
			zap.String("user_id", body.UserID))
		HandleServiceError(w, services.ErrUserMismatch, h.logger)
		return
	}

	req := h.buildAPIRequest(r, &body)

	resp, err := h.service.Run(ctx, req)
	if err != nil {
		h.logger.Error("failed to run query",
			zap.String("request_id", requestID),
			zap.String("query_id", req.ID),
			zap.Error(err))
		HandleServiceError(w, err, h.logger)
		return
	}

	response := QueryResponse{
		Success:     true,
		RequestID:   resp.RequestID,
		Data:        resp.AggregatedData,
		Results:     resp.Results,
		TotalCost:   resp.TotalCost,
		CompletedAt: resp.CompletedAt,
	}
	if response.Data == nil {
		response.Data = map[string]providers.ProviderData{}
	}

	if err := utils.WriteOK(w, response); err != nil {
		h.logger.Error("failed to write response",
			zap.String("request_id", requestID),
			zap.Error(err))
	}
}

func (h *QueryHandler) buildAPIRequest(r *http.Request, body *QueryRequest) *providers.APIRequest {
	priority, _ := providers.ParsePriority(body.Priority)

	req := providers.NewAPIRequest(body.Prompt, body.UserID, body.Providers, priority)
	req.Options = body.Options
	req.Search = body.Search

	for k, v := range body.Metadata {
		req.Metadata[k] = v
	}
	req.Metadata[MetadataUserAgent] = r.UserAgent()
	req.Metadata[MetadataTimestamp] = h.now().UTC().Format(time.RFC3339)
	req.Metadata[MetadataClientIP] = getClientIP(r)

	return req
}

// HandleListProviders handles GET /query
func (h *QueryHandler) HandleListProviders(w http.ResponseWriter, r *http.Request) {
	response := ProvidersResponse{
		Success:   true,
		Providers: h.catalog.GetAvailableProviders(),
		Defaults:  h.catalog.DefaultProviders(),
		Status:    h.catalog.GetProviderStatus(),
	}

	if err := utils.WriteOK(w, response); err != nil {
		h.logger.Error("failed to write response",
			zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
			zap.Error(err))
	}
}

// HandleGetQuery handles GET /query/{id}
func (h *QueryHandler) HandleGetQuery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if err := utils.ValidateUUID(id); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid query id", map[string]interface{}{"id": err.Error()})
		return
	}

	record, err := h.service.Get(ctx, id, middleware.GetSubjectFromContext(ctx))
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, StoredQueryResponse{Success: true, Data: record}); err != nil {
		h.logger.Error("failed to write response",
			zap.String("request_id", middleware.GetRequestIDFromContext(ctx)),
			zap.Error(err))
	}
}
