package usage

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"keyword-backend/internal/shared/server/middleware"
	"keyword-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the usage service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches usage routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/usage", h.getUsage)
}

func (h *Handler) getUsage(c *gin.Context) {
	ownerID := middleware.UserIDFromContext(c)
	snapshot, err := h.Svc.Get(c.Request.Context(), ownerID)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch usage", nil)
		return
	}
	respond.JSON(c, http.StatusOK, snapshot)
}
