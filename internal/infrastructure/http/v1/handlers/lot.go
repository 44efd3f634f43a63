package handlers

import (
	"github.com/gin-gonic/gin"

	"tillpoint/internal/core/id"
	"tillpoint/internal/domain/lot"
	"tillpoint/internal/infrastructure/http/v1/dto"
)

// LotHandler is the stock receiving adapter.
type LotHandler struct {
	*BaseHandler
	service *lot.Service
}

func NewLotHandler(base *BaseHandler, service *lot.Service) *LotHandler {
	return &LotHandler{BaseHandler: base, service: service}
}

// Receive records a new lot.
// POST /api/v1/lots
func (h *LotHandler) Receive(c *gin.Context) {
	var req dto.ReceiveLotRequest
	if !h.BindJSON(c, &req) {
		return
	}

	l, err := h.service.Receive(c.Request.Context(), h.GetTenantID(c), req.ToDomain())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, l)
}

// List returns a product's lots in consumption order.
// GET /api/v1/lots?product_id=&location_id=
func (h *LotHandler) List(c *gin.Context) {
	var q dto.ListLotsQuery
	if !h.BindQuery(c, &q) {
		return
	}

	// Both values passed the uuid binding rule.
	productID := id.MustParse(q.ProductID)
	locationID, _ := id.ParseOptional(q.LocationID)

	lots, err := h.service.List(c.Request.Context(), h.GetTenantID(c), productID, locationID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(lots))
}

func (h *LotHandler) RegisterRoutes(rg *gin.RouterGroup) {
	lots := rg.Group("/lots")
	lots.POST("", h.Receive)
	lots.GET("", h.List)
}
