package websites

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"keyword-backend/internal/shared/server/middleware"
	"keyword-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the websites service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches website routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/websites", h.createWebsite)
	rg.GET("/websites", h.listWebsites)
	rg.GET("/websites/:id", h.getWebsite)
	rg.DELETE("/websites/:id", h.deleteWebsite)
}

type createWebsiteRequest struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

func (h *Handler) createWebsite(c *gin.Context) {
	ownerID := middleware.UserIDFromContext(c)

	var req createWebsiteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	site, err := h.Svc.Register(c.Request.Context(), ownerID, req.URL, req.Name)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to create website", nil)
		}
		return
	}

	respond.JSON(c, http.StatusCreated, site)
}

func (h *Handler) getWebsite(c *gin.Context) {
	ownerID := middleware.UserIDFromContext(c)
	site, err := h.Svc.Get(c.Request.Context(), c.Param("id"), ownerID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "website not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch website", nil)
		}
		return
	}
	respond.JSON(c, http.StatusOK, site)
}

func (h *Handler) listWebsites(c *gin.Context) {
	ownerID := middleware.UserIDFromContext(c)
	sites, err := h.Svc.List(c.Request.Context(), ownerID)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list websites", nil)
		return
	}
	if sites == nil {
		sites = []Website{}
	}
	respond.JSON(c, http.StatusOK, sites)
}

func (h *Handler) deleteWebsite(c *gin.Context) {
	ownerID := middleware.UserIDFromContext(c)
	if err := h.Svc.Delete(c.Request.Context(), c.Param("id"), ownerID); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "website not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to delete website", nil)
		}
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{"ok": true})
}
