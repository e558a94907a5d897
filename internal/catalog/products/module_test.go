package products

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rangoon-shop/rangoon-admin/internal/apperr"
	"github.com/rangoon-shop/rangoon-admin/internal/audit"
	"github.com/rangoon-shop/rangoon-admin/internal/rbac"
)

func post(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/products", strings.NewReader(body))
}

func TestDecodeCreateAppliesDefaults(t *testing.T) {
	v, err := decodeCreate(post(`{"title":" Galaxy S24 ","price":1200000}`))
	require.NoError(t, err)
	assert.Equal(t, "Galaxy S24", v["title"])
	assert.Equal(t, StatusDraft, v["status"])
	assert.Equal(t, "MMK", v["price_unit"])
	assert.NotContains(t, v, "brand_id")
}

func TestDecodeCreateKeepsExplicitValues(t *testing.T) {
	v, err := decodeCreate(post(`{"title":"Pixel","price":799,"priceUnit":"USD","status":"Pending","brandId":"b1","quantity":3}`))
	require.NoError(t, err)
	assert.Equal(t, "USD", v["price_unit"])
	assert.Equal(t, StatusPending, v["status"])
	assert.Equal(t, "b1", v["brand_id"])
	assert.Equal(t, 3, v["quantity"])
}

func TestDecodeCreateRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"missing title":  `{"price":1}`,
		"negative price": `{"title":"x","price":-1}`,
		"unknown status": `{"title":"x","status":"Archived"}`,
		"unknown unit":   `{"title":"x","priceUnit":"EUR"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := decodeCreate(post(body))
			require.Error(t, err)
			assert.Equal(t, apperr.StatusBadRequest, apperr.Classify(err).Status)
		})
	}
}

func TestDecodeUpdateIsPartial(t *testing.T) {
	v, err := decodeUpdate(httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"status":"Published"}`)))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"status": StatusPublished}, map[string]any(v))
}

func TestUploadIsUnavailable(t *testing.T) {
	svc := NewService(nil, audit.NewMemorySink(), nil)
	assert.Equal(t, rbac.ResourceProduct, svc.Resource())

	ctx, _ := audit.WithTrail(t.Context())
	res := svc.TryExcelUpload(ctx, strings.NewReader(""))
	require.True(t, res.IsErr())
	assert.Equal(t, apperr.StatusServiceUnavailable, res.Error().Status)
}
