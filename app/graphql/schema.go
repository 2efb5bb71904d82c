// Package graphql is the read-only GraphQL view of the catalogue, orders
// and the stock ledger. Writes go through the REST endpoints.
package graphql

import (
	"context"
	"errors"

	"github.com/graphql-go/graphql"

	"github.com/shashiranjanraj/storefront/app/models"
	"github.com/shashiranjanraj/storefront/app/repositories"
	"github.com/shashiranjanraj/storefront/app/services"
	apigraphql "github.com/shashiranjanraj/storefront/pkg/graphql"
	"github.com/shashiranjanraj/storefront/pkg/middleware"
)

// Catalog is the catalogue read side.
type Catalog interface {
	Products(ctx context.Context, categoryID string) ([]services.ProductView, error)
	Product(ctx context.Context, id string) (services.ProductView, error)
	Categories(ctx context.Context) ([]models.Category, error)
}

type Orders interface {
	Find(ctx context.Context, id string) (models.Order, error)
}

type Ledger interface {
	Recent(ctx context.Context, limit int) ([]repositories.LedgerRow, error)
}

// ErrForbidden is returned by admin-only fields for non-admin callers.
var ErrForbidden = errors.New("forbidden")

// NewSchema builds the query root. Missing products and orders resolve to
// null rather than an error.
func NewSchema(catalog Catalog, orders Orders, ledger Ledger) (graphql.Schema, error) {
	sizeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "SizeStock",
		Fields: graphql.Fields{
			"size":     &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"quantity": &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
		},
	})

	categoryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Category",
		Fields: graphql.Fields{
			"id":   &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
			"name": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"slug": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		},
	})

	productType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Product",
		Fields: graphql.Fields{
			"id":             &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
			"name":           &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"description":    &graphql.Field{Type: graphql.String},
			"sku":            &graphql.Field{Type: graphql.String},
			"price":          &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"currency":       &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"categoryId":     &graphql.Field{Type: graphql.ID},
			"stockCount":     &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"lowStock":       &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
			"imageUrl":       &graphql.Field{Type: graphql.String},
			"availableSizes": &graphql.Field{Type: graphql.NewList(graphql.String)},
			"sizes":          &graphql.Field{Type: graphql.NewList(sizeType)},
		},
	})

	orderItemType := graphql.NewObject(graphql.ObjectConfig{
		Name: "OrderItem",
		Fields: graphql.Fields{
			"productId": &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
			"size":      &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"quantity":  &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"price":     &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		},
	})

	orderType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Order",
		Fields: graphql.Fields{
			"id":           &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
			"orderNumber":  &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"customerName": &graphql.Field{Type: graphql.String},
			"status":       &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"subtotal":     &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"shippingFee":  &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"totalAmount":  &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"currency":     &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"createdAt":    &graphql.Field{Type: graphql.NewNonNull(graphql.DateTime)},
			"items":        &graphql.Field{Type: graphql.NewList(orderItemType)},
		},
	})

	transactionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Transaction",
		Fields: graphql.Fields{
			"id":           &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
			"productId":    &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
			"productName":  &graphql.Field{Type: graphql.String},
			"orderId":      &graphql.Field{Type: graphql.ID},
			"customerName": &graphql.Field{Type: graphql.String},
			"type":         &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"size":         &graphql.Field{Type: graphql.String},
			"quantity":     &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"totalPrice":   &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"createdAt":    &graphql.Field{Type: graphql.NewNonNull(graphql.DateTime)},
		},
	})

	query := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"products": &graphql.Field{
				Type: graphql.NewList(productType),
				Args: graphql.FieldConfigArgument{
					"categoryId": &graphql.ArgumentConfig{Type: graphql.ID},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					category, _ := p.Args["categoryId"].(string)
					views, err := catalog.Products(p.Context, category)
					if err != nil {
						return nil, err
					}
					out := make([]map[string]any, len(views))
					for i, v := range views {
						out[i] = productMap(v)
					}
					return out, nil
				},
			},
			"product": &graphql.Field{
				Type: productType,
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					v, err := catalog.Product(p.Context, p.Args["id"].(string))
					if errors.Is(err, services.ErrNotFound) {
						return nil, nil
					}
					if err != nil {
						return nil, err
					}
					return productMap(v), nil
				},
			},
			"categories": &graphql.Field{
				Type: graphql.NewList(categoryType),
				Resolve: func(p graphql.ResolveParams) (any, error) {
					cats, err := catalog.Categories(p.Context)
					if err != nil {
						return nil, err
					}
					out := make([]map[string]any, len(cats))
					for i, c := range cats {
						out[i] = map[string]any{"id": c.ID, "name": c.Name, "slug": c.Slug}
					}
					return out, nil
				},
			},
			"order": &graphql.Field{
				Type: orderType,
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					o, err := orders.Find(p.Context, p.Args["id"].(string))
					if errors.Is(err, services.ErrNotFound) {
						return nil, nil
					}
					if err != nil {
						return nil, err
					}
					claims := middleware.ClaimsFromCtx(p.Context)
					if !claims.IsAdmin() && !o.OwnedBy(middleware.UserIDFromCtx(p.Context)) {
						o = o.Redacted()
					}
					return orderMap(o), nil
				},
			},
			"transactions": &graphql.Field{
				Type:        graphql.NewList(transactionType),
				Description: "Most recent ledger entries. Admin only.",
				Args: graphql.FieldConfigArgument{
					"limit": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 50},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					if !middleware.ClaimsFromCtx(p.Context).IsAdmin() {
						return nil, ErrForbidden
					}
					limit, _ := p.Args["limit"].(int)
					rows, err := ledger.Recent(p.Context, limit)
					if err != nil {
						return nil, err
					}
					out := make([]map[string]any, len(rows))
					for i, r := range rows {
						out[i] = transactionMap(r)
					}
					return out, nil
				},
			},
		},
	})

	return apigraphql.NewSchema(query)
}

func productMap(v services.ProductView) map[string]any {
	sizes := make([]map[string]any, 0, len(v.Sizes))
	for _, label := range append(append([]string(nil), models.Sizes...), models.SizeStandard) {
		if qty, ok := v.Sizes[label]; ok {
			sizes = append(sizes, map[string]any{"size": label, "quantity": qty})
		}
	}
	return map[string]any{
		"id":             v.ID,
		"name":           v.Name,
		"description":    v.Description,
		"sku":            v.SKU,
		"price":          v.Price.String(),
		"currency":       v.Currency,
		"categoryId":     v.CategoryID,
		"stockCount":     v.StockCount,
		"lowStock":       v.LowStock,
		"imageUrl":       v.ImageURL,
		"availableSizes": v.AvailableSizes,
		"sizes":          sizes,
	}
}

func orderMap(o models.Order) map[string]any {
	items := make([]map[string]any, len(o.Items))
	for i, it := range o.Items {
		items[i] = map[string]any{
			"productId": it.ProductID,
			"size":      it.Size,
			"quantity":  it.Quantity,
			"price":     it.Price.String(),
		}
	}
	return map[string]any{
		"id":           o.ID,
		"orderNumber":  o.OrderNumber,
		"customerName": o.FullName,
		"status":       o.Status,
		"subtotal":     o.Subtotal.String(),
		"shippingFee":  o.ShippingFee.String(),
		"totalAmount":  o.TotalAmount.String(),
		"currency":     o.Currency,
		"createdAt":    o.CreatedAt.UTC(),
		"items":        items,
	}
}

func transactionMap(r repositories.LedgerRow) map[string]any {
	return map[string]any{
		"id":           r.ID,
		"productId":    r.ProductID,
		"productName":  deref(r.ProductName),
		"orderId":      deref(r.OrderID),
		"customerName": deref(r.CustomerName),
		"type":         r.Type,
		"size":         r.Size,
		"quantity":     r.Quantity,
		"totalPrice":   r.TotalPrice.String(),
		"createdAt":    r.CreatedAt.UTC(),
	}
}

func deref(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
