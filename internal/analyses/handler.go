package analyses

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"keyword-backend/internal/shared/server/middleware"
	"keyword-backend/internal/shared/server/respond"
	"keyword-backend/internal/usage"
)

// Handler wires HTTP handlers to the analyses service.
type Handler struct {
	Svc     *Service
	limiter *pollLimiter
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{
		Svc:     svc,
		limiter: newPollLimiter(pollLimitWindow, nil),
	}
}

// RegisterRoutes attaches analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/websites/:id/analyses", h.startAnalysis)
	rg.GET("/analyses", h.listAnalyses)
	rg.GET("/analyses/:id", h.getAnalysis)
	rg.POST("/analyses/:id/cancel", h.cancelAnalysis)
}

type startAnalysisRequest struct {
	Country  string `json:"country"`
	Language string `json:"language"`
	Limit    int    `json:"limit"`
}

func (h *Handler) startAnalysis(c *gin.Context) {
	ownerID := middleware.UserIDFromContext(c)
	websiteID := c.Param("id")
	if websiteID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "website id is required", nil)
		return
	}

	var req startAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	analysis, err := h.Svc.Start(c.Request.Context(), ownerID, websiteID, Params{
		Country:  req.Country,
		Language: req.Language,
		Limit:    req.Limit,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrValidation):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "website not found", nil)
		case errors.Is(err, usage.ErrLimitReached):
			respond.Error(c, http.StatusTooManyRequests, "limit_reached", "You've reached your monthly analysis limit. Upgrade your plan to continue.", []map[string]string{
				{"field": "usage", "issue": "limit_reached"},
			})
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to start analysis", nil)
		}
		return
	}

	respond.JSON(c, http.StatusAccepted, gin.H{
		"analysisId": analysis.ID,
		"websiteId":  analysis.WebsiteID,
		"status":     analysis.Status,
		"progress":   analysis.Progress,
	})
}

func (h *Handler) getAnalysis(c *gin.Context) {
	ownerID := middleware.UserIDFromContext(c)
	analysisID := c.Param("id")
	if analysisID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "analysis id is required", nil)
		return
	}

	if !h.limiter.Allow(ownerID, analysisID) {
		c.Header("Retry-After", strconv.Itoa(h.limiter.RetryAfterSeconds()))
		respond.Error(c, http.StatusTooManyRequests, "poll_too_fast", "polling too frequently", nil)
		return
	}

	analysis, err := h.Svc.Get(c.Request.Context(), analysisID, ownerID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch analysis", nil)
		}
		return
	}

	resp := gin.H{
		"id":        analysis.ID,
		"websiteId": analysis.WebsiteID,
		"status":    analysis.Status,
		"progress":  analysis.Progress,
		"country":   analysis.Country,
		"language":  analysis.Language,
		"limit":     analysis.Limit,
		"createdAt": analysis.CreatedAt,
	}
	if analysis.StartedAt != nil {
		resp["startedAt"] = analysis.StartedAt
	}
	if analysis.CompletedAt != nil {
		resp["completedAt"] = analysis.CompletedAt
	}
	if analysis.Status == StatusFailed && analysis.ErrorMessage != nil {
		resp["errorMessage"] = *analysis.ErrorMessage
	}
	if analysis.Status == StatusCompleted {
		keywords, summary, err := h.Svc.Results(c.Request.Context(), analysisID, ownerID)
		if err != nil {
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch analysis results", nil)
			return
		}
		resp["keywordCount"] = analysis.KeywordCount
		resp["estimatedCost"] = analysis.EstimatedCost
		resp["keywords"] = keywords
		resp["summary"] = summary
		if analysis.PageMeta != nil {
			resp["pageMeta"] = analysis.PageMeta
		}
	}

	respond.JSON(c, http.StatusOK, resp)
}

func (h *Handler) cancelAnalysis(c *gin.Context) {
	ownerID := middleware.UserIDFromContext(c)
	analysisID := c.Param("id")
	if analysisID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "analysis id is required", nil)
		return
	}

	if err := h.Svc.Cancel(c.Request.Context(), analysisID, ownerID); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
		case errors.Is(err, ErrNotCancellable):
			respond.Error(c, http.StatusConflict, "not_cancellable", "analysis already finished", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to cancel analysis", nil)
		}
		return
	}

	respond.JSON(c, http.StatusOK, gin.H{
		"analysisId": analysisID,
		"status":     StatusCancelled,
	})
}

func (h *Handler) listAnalyses(c *gin.Context) {
	if isGuest, ok := c.Get("isGuest"); ok {
		if guest, ok2 := isGuest.(bool); ok2 && guest {
			respond.Error(c, http.StatusUnauthorized, "login_required", "Login required to view history", nil)
			return
		}
	}

	ownerID := middleware.UserIDFromContext(c)

	limit := 20
	offset := 0

	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if limit < 0 {
		limit = 0
	}

	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}
	if offset < 0 {
		offset = 0
	}

	analyses, err := h.Svc.List(c.Request.Context(), ownerID, limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list analyses", nil)
		return
	}

	resp := make([]gin.H, 0, len(analyses))
	for _, a := range analyses {
		item := gin.H{
			"analysisId": a.ID,
			"websiteId":  a.WebsiteID,
			"status":     a.Status,
			"progress":   a.Progress,
			"createdAt":  a.CreatedAt,
		}
		if a.Status == StatusCompleted {
			item["keywordCount"] = a.KeywordCount
			item["estimatedCost"] = a.EstimatedCost
		}
		resp = append(resp, item)
	}

	respond.JSON(c, http.StatusOK, resp)
}
