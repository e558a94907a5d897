package regions

import (
	"log/slog"
	"net/http"

	"github.com/rangoon-shop/rangoon-admin/internal/audit"
	"github.com/rangoon-shop/rangoon-admin/internal/auditable"
	auditablehttp "github.com/rangoon-shop/rangoon-admin/internal/auditable/http"
	"github.com/rangoon-shop/rangoon-admin/internal/platform/httpx"
	"github.com/rangoon-shop/rangoon-admin/internal/platform/sheet"
	"github.com/rangoon-shop/rangoon-admin/internal/rbac"
)

type input struct {
	Name string `json:"name" validate:"required,max=80"`
}

func NewService(repo auditable.Repository[Region], sink audit.Sink, logger *slog.Logger) *auditable.Service[Region] {
	return auditable.New[Region](repo, auditable.Config{
		Resource: rbac.ResourceRegion,
		Sink:     sink,
		Importer: &auditable.Importer{
			Key: "name",
			Decode: func(row sheet.Row) (auditable.Values, error) {
				return auditable.Values{"name": row.Get("name")}, nil
			},
		},
		Logger: logger,
	})
}

func NewHandler(logger *slog.Logger, svc *auditable.Service[Region], rbacMW rbac.Middleware, opts auditablehttp.Options) *auditablehttp.Handler[Region] {
	return auditablehttp.NewHandler(logger, auditablehttp.Resource[Region]{
		Service:      svc,
		Label:        "Region",
		DecodeCreate: decode,
		DecodeUpdate: decode,
	}, rbacMW, opts)
}

// decode serves both create and update; a region update always replaces the name.
func decode(r *http.Request) (auditable.Values, error) {
	var in input
	if err := httpx.DecodeValid(r, &in); err != nil {
		return nil, err
	}
	return auditable.Values{"name": auditable.NormalizeKey(in.Name)}, nil
}
