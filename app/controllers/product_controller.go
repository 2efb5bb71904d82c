package controllers

import (
	"strings"

	"github.com/shashiranjanraj/storefront/app/services"
	"github.com/shashiranjanraj/storefront/pkg/ctx"
	"github.com/shashiranjanraj/storefront/pkg/money"
)

type ProductController struct {
	catalog *services.CatalogService
}

func NewProductController(catalog *services.CatalogService) *ProductController {
	return &ProductController{catalog: catalog}
}

type productInput struct {
	Name              string         `json:"name"                validate:"required,max=255"`
	Description       string         `json:"description"`
	SKU               string         `json:"sku"                 validate:"required,max=100"`
	Price             money.Amount   `json:"price"               validate:"required,gt=0"`
	CategoryID        string         `json:"category_id"         validate:"required"`
	LowStockThreshold int            `json:"low_stock_threshold" validate:"gte=0"`
	ImageURL          string         `json:"image_url"           validate:"nullable,max=1024"`
	AvailableSizes    []string       `json:"available_sizes"`
	Sizes             map[string]int `json:"sizes"`
}

type productPatchInput struct {
	Name              *string        `json:"name"`
	Description       *string        `json:"description"`
	SKU               *string        `json:"sku"`
	Price             *money.Amount  `json:"price"`
	CategoryID        *string        `json:"category_id"`
	LowStockThreshold *int           `json:"low_stock_threshold"`
	ImageURL          *string        `json:"image_url"`
	Sizes             map[string]int `json:"sizes"`
}

func (in productPatchInput) validate() map[string]string {
	errs := map[string]string{}
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		errs["name"] = "The name field is required."
	}
	if in.SKU != nil && strings.TrimSpace(*in.SKU) == "" {
		errs["sku"] = "The sku field is required."
	}
	if in.Price != nil && !in.Price.IsPositive() {
		errs["price"] = "The price must be greater than 0."
	}
	if in.CategoryID != nil && *in.CategoryID == "" {
		errs["category_id"] = "The category id field is required."
	}
	if in.LowStockThreshold != nil && *in.LowStockThreshold < 0 {
		errs["low_stock_threshold"] = "The low stock threshold must be greater than or equal to 0."
	}
	return errs
}

// Index lists products, optionally filtered by ?category_id.
func (pc *ProductController) Index(c *ctx.Context) {
	products, err := pc.catalog.Products(c.Context(), c.Query("category_id"))
	if err != nil {
		fail(c, err, msgInternal)
		return
	}
	c.Success(products)
}

func (pc *ProductController) Show(c *ctx.Context) {
	product, err := pc.catalog.Product(c.Context(), c.Param("id"))
	if err != nil {
		fail(c, err, msgInternal)
		return
	}
	c.Success(product)
}

func (pc *ProductController) Store(c *ctx.Context) {
	var in productInput
	if !c.BindJSON(&in) {
		return
	}
	product, err := pc.catalog.CreateProduct(c.Context(), services.ProductInput{
		Name:              in.Name,
		Description:       in.Description,
		SKU:               in.SKU,
		Price:             in.Price,
		CategoryID:        in.CategoryID,
		LowStockThreshold: in.LowStockThreshold,
		ImageURL:          in.ImageURL,
		AvailableSizes:    in.AvailableSizes,
		Sizes:             in.Sizes,
	})
	if err != nil {
		fail(c, err, msgInternal)
		return
	}
	c.Created(product)
}

// Update applies the fields present in the body. A sizes map replaces the
// named sizes' quantities and leaves the others alone.
func (pc *ProductController) Update(c *ctx.Context) {
	var in productPatchInput
	if !c.BindJSON(&in) {
		return
	}
	if errs := in.validate(); len(errs) > 0 {
		c.ValidationError(errs)
		return
	}
	product, err := pc.catalog.UpdateProduct(c.Context(), c.Param("id"), services.ProductPatch{
		Name:              in.Name,
		Description:       in.Description,
		SKU:               in.SKU,
		Price:             in.Price,
		CategoryID:        in.CategoryID,
		LowStockThreshold: in.LowStockThreshold,
		ImageURL:          in.ImageURL,
		Sizes:             in.Sizes,
	})
	if err != nil {
		fail(c, err, msgInternal)
		return
	}
	c.Success(product)
}

func (pc *ProductController) Destroy(c *ctx.Context) {
	if err := pc.catalog.DeleteProduct(c.Context(), c.Param("id")); err != nil {
		fail(c, err, msgInternal)
		return
	}
	c.Success(map[string]string{"id": c.Param("id")})
}

// Categories lists categories by name.
func (pc *ProductController) Categories(c *ctx.Context) {
	cats, err := pc.catalog.Categories(c.Context())
	if err != nil {
		fail(c, err, msgInternal)
		return
	}
	c.Success(cats)
}
