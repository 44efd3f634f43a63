package handlers

import (
	"github.com/gin-gonic/gin"

	"tillpoint/internal/domain/sale"
	"tillpoint/internal/infrastructure/http/v1/dto"
)

// SaleHandler handles sale ingestion and invoice reads.
type SaleHandler struct {
	*BaseHandler
	service *sale.Service
}

func NewSaleHandler(base *BaseHandler, service *sale.Service) *SaleHandler {
	return &SaleHandler{BaseHandler: base, service: service}
}

// Create ingests one completed sale.
// POST /api/v1/sales
func (h *SaleHandler) Create(c *gin.Context) {
	var req dto.CreateSaleRequest
	if !h.BindJSON(c, &req) {
		return
	}

	res, err := h.service.IngestSale(c.Request.Context(), h.GetTenantID(c), req.ToDomain())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromSaleResult(res))
}

// Sync replays a terminal's offline queue.
// POST /api/v1/sales/sync
func (h *SaleHandler) Sync(c *gin.Context) {
	var req dto.SyncRequest
	if !h.BindJSON(c, &req) {
		return
	}

	resp, err := h.service.SyncOffline(c.Request.Context(), h.GetTenantID(c), req.ToDomain())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, resp)
}

// Get returns an invoice with lines and lot consumptions.
// GET /api/v1/sales/:id
func (h *SaleHandler) Get(c *gin.Context) {
	invoiceID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	inv, err := h.service.GetInvoice(c.Request.Context(), h.GetTenantID(c), invoiceID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, inv)
}

// History returns the audit trail of an invoice.
// GET /api/v1/sales/:id/history
func (h *SaleHandler) History(c *gin.Context) {
	invoiceID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	entries, err := h.service.History(c.Request.Context(), h.GetTenantID(c), invoiceID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(entries))
}

func (h *SaleHandler) RegisterRoutes(rg *gin.RouterGroup) {
	sales := rg.Group("/sales")
	sales.POST("", h.Create)
	sales.POST("/sync", h.Sync)
	sales.GET("/:id", h.Get)
	sales.GET("/:id/history", h.History)
}
