package dto

// CreateProductRequest is the body of POST /products.
type CreateProductRequest struct {
	SKU  string `json:"sku" binding:"required,max=64"`
	Name string `json:"name" binding:"required,max=255"`
}

// CreateLocationRequest is the body of POST /locations.
type CreateLocationRequest struct {
	Name string `json:"name" binding:"required,max=255"`
}
