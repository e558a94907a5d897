package brands

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/rangoon-shop/rangoon-admin/internal/audit"
	"github.com/rangoon-shop/rangoon-admin/internal/auditable"
	auditablehttp "github.com/rangoon-shop/rangoon-admin/internal/auditable/http"
	"github.com/rangoon-shop/rangoon-admin/internal/platform/httpx"
	"github.com/rangoon-shop/rangoon-admin/internal/platform/sheet"
	"github.com/rangoon-shop/rangoon-admin/internal/rbac"
)

type createInput struct {
	Name string `json:"name" validate:"required,max=120"`
}

type updateInput struct {
	Name *string `json:"name" validate:"omitempty,min=1,max=120"`
}

// Importer reads the "name" column of an upload.
var Importer = &auditable.Importer{
	Key: "name",
	Decode: func(row sheet.Row) (auditable.Values, error) {
		name := row.Get("name")
		if len(name) > 120 {
			return nil, errors.New("name longer than 120 characters")
		}
		return auditable.Values{"name": name}, nil
	},
}

// NewService composes the Brand service over repo.
func NewService(repo auditable.Repository[Brand], sink audit.Sink, logger *slog.Logger) *auditable.Service[Brand] {
	return auditable.New[Brand](repo, auditable.Config{
		Resource: rbac.ResourceBrand,
		Sink:     sink,
		Importer: Importer,
		Logger:   logger,
	})
}

// NewHandler exposes svc under the standard resource routes.
func NewHandler(logger *slog.Logger, svc *auditable.Service[Brand], rbacMW rbac.Middleware, opts auditablehttp.Options) *auditablehttp.Handler[Brand] {
	return auditablehttp.NewHandler(logger, auditablehttp.Resource[Brand]{
		Service:      svc,
		Label:        "Brand",
		DecodeCreate: decodeCreate,
		DecodeUpdate: decodeUpdate,
		Filters:      []string{"name"},
	}, rbacMW, opts)
}

func decodeCreate(r *http.Request) (auditable.Values, error) {
	var in createInput
	if err := httpx.DecodeValid(r, &in); err != nil {
		return nil, err
	}
	return auditable.Values{"name": auditable.NormalizeKey(in.Name)}, nil
}

func decodeUpdate(r *http.Request) (auditable.Values, error) {
	var in updateInput
	if err := httpx.DecodeValid(r, &in); err != nil {
		return nil, err
	}
	v := auditable.Values{}
	if in.Name != nil {
		v["name"] = auditable.NormalizeKey(*in.Name)
	}
	return v, nil
}
