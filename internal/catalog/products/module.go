package products

import (
	"log/slog"
	"net/http"

	"github.com/rangoon-shop/rangoon-admin/internal/audit"
	"github.com/rangoon-shop/rangoon-admin/internal/auditable"
	auditablehttp "github.com/rangoon-shop/rangoon-admin/internal/auditable/http"
	"github.com/rangoon-shop/rangoon-admin/internal/platform/httpx"
	"github.com/rangoon-shop/rangoon-admin/internal/rbac"
)

type createInput struct {
	Title     string  `json:"title" validate:"required,max=200"`
	Price     float64 `json:"price" validate:"gte=0"`
	PriceUnit string  `json:"priceUnit" validate:"omitempty,oneof=MMK USD"`
	Quantity  int     `json:"quantity" validate:"gte=0"`
	Status    string  `json:"status" validate:"omitempty,oneof=Draft Pending Published"`
	BrandID   *string `json:"brandId" validate:"omitempty,min=1"`
}

type updateInput struct {
	Title     *string  `json:"title" validate:"omitempty,min=1,max=200"`
	Price     *float64 `json:"price" validate:"omitempty,gte=0"`
	PriceUnit *string  `json:"priceUnit" validate:"omitempty,oneof=MMK USD"`
	Quantity  *int     `json:"quantity" validate:"omitempty,gte=0"`
	Status    *string  `json:"status" validate:"omitempty,oneof=Draft Pending Published"`
	BrandID   *string  `json:"brandId" validate:"omitempty,min=1"`
}

func (in createInput) values() auditable.Values {
	v := auditable.Values{
		"title":    auditable.NormalizeKey(in.Title),
		"price":    in.Price,
		"quantity": in.Quantity,
	}
	v["status"] = StatusDraft
	if in.Status != "" {
		v["status"] = in.Status
	}
	v["price_unit"] = "MMK"
	if in.PriceUnit != "" {
		v["price_unit"] = in.PriceUnit
	}
	if in.BrandID != nil {
		v["brand_id"] = *in.BrandID
	}
	return v
}

func (in updateInput) values() auditable.Values {
	v := auditable.Values{}
	if in.Title != nil {
		v["title"] = auditable.NormalizeKey(*in.Title)
	}
	if in.Price != nil {
		v["price"] = *in.Price
	}
	if in.PriceUnit != nil {
		v["price_unit"] = *in.PriceUnit
	}
	if in.Quantity != nil {
		v["quantity"] = *in.Quantity
	}
	if in.Status != nil {
		v["status"] = *in.Status
	}
	if in.BrandID != nil {
		v["brand_id"] = *in.BrandID
	}
	return v
}

// NewService composes the Product service. Uploads answer ServiceUnavailable.
func NewService(repo auditable.Repository[Product], sink audit.Sink, logger *slog.Logger) *auditable.Service[Product] {
	return auditable.New[Product](repo, auditable.Config{
		Resource: rbac.ResourceProduct,
		Sink:     sink,
		Logger:   logger,
	})
}

func NewHandler(logger *slog.Logger, svc *auditable.Service[Product], rbacMW rbac.Middleware, opts auditablehttp.Options) *auditablehttp.Handler[Product] {
	return auditablehttp.NewHandler(logger, auditablehttp.Resource[Product]{
		Service:      svc,
		Label:        "Product",
		DecodeCreate: decodeCreate,
		DecodeUpdate: decodeUpdate,
		Filters:      []string{"status", "brand_id", "price_unit"},
	}, rbacMW, opts)
}

func decodeCreate(r *http.Request) (auditable.Values, error) {
	var in createInput
	if err := httpx.DecodeValid(r, &in); err != nil {
		return nil, err
	}
	return in.values(), nil
}

func decodeUpdate(r *http.Request) (auditable.Values, error) {
	var in updateInput
	if err := httpx.DecodeValid(r, &in); err != nil {
		return nil, err
	}
	return in.values(), nil
}
