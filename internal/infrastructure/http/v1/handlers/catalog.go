package handlers

import (
	"github.com/gin-gonic/gin"

	"tillpoint/internal/domain/catalog"
	"tillpoint/internal/infrastructure/http/v1/dto"
)

// CatalogHandler manages the product and location references.
type CatalogHandler struct {
	*BaseHandler
	service *catalog.Service
}

func NewCatalogHandler(base *BaseHandler, service *catalog.Service) *CatalogHandler {
	return &CatalogHandler{BaseHandler: base, service: service}
}

// CreateProduct handles POST /api/v1/products.
func (h *CatalogHandler) CreateProduct(c *gin.Context) {
	var req dto.CreateProductRequest
	if !h.BindJSON(c, &req) {
		return
	}

	p, err := h.service.CreateProduct(c.Request.Context(), h.GetTenantID(c), req.SKU, req.Name)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, p)
}

// GetProduct handles GET /api/v1/products/:id.
func (h *CatalogHandler) GetProduct(c *gin.Context) {
	productID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	p, err := h.service.GetProduct(c.Request.Context(), h.GetTenantID(c), productID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, p)
}

// ListProducts handles GET /api/v1/products.
func (h *CatalogHandler) ListProducts(c *gin.Context) {
	products, err := h.service.ListProducts(c.Request.Context(), h.GetTenantID(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(products))
}

// CreateLocation handles POST /api/v1/locations.
func (h *CatalogHandler) CreateLocation(c *gin.Context) {
	var req dto.CreateLocationRequest
	if !h.BindJSON(c, &req) {
		return
	}

	l, err := h.service.CreateLocation(c.Request.Context(), h.GetTenantID(c), req.Name)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, l)
}

// ListLocations handles GET /api/v1/locations.
func (h *CatalogHandler) ListLocations(c *gin.Context) {
	locations, err := h.service.ListLocations(c.Request.Context(), h.GetTenantID(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(locations))
}

func (h *CatalogHandler) RegisterRoutes(rg *gin.RouterGroup) {
	products := rg.Group("/products")
	products.POST("", h.CreateProduct)
	products.GET("", h.ListProducts)
	products.GET("/:id", h.GetProduct)

	locations := rg.Group("/locations")
	locations.POST("", h.CreateLocation)
	locations.GET("", h.ListLocations)
}
