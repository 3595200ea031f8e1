package validators

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type lineBody struct {
	ProductID int64 `json:"product_id" validate:"gt=0"`
	Quantity  int   `json:"quantity" validate:"min=1"`
}

type cartBody struct {
	Lines    []lineBody `json:"lines" validate:"required,dive"`
	Strategy string     `json:"strategy" validate:"omitempty,oneof=SMART AGGRESSIVE"`
}

func TestDecodeJSONBodyAcceptsValidPayload(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"lines":[{"product_id":1,"quantity":2}],"strategy":"SMART"}`))

	var body cartBody
	require.NoError(t, DecodeJSONBody(req, &body))
	assert.Equal(t, int64(1), body.Lines[0].ProductID)
	assert.Equal(t, "SMART", body.Strategy)
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"lines":[],"coupon":"FREE"}`))

	var body cartBody
	err := DecodeJSONBody(req, &body)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestDecodeJSONBodyReportsFieldErrors(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"lines":[{"product_id":0,"quantity":0}],"strategy":"NOPE"}`))

	var body cartBody
	err := DecodeJSONBody(req, &body)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "must be greater than 0", details["product_id"])
	assert.Equal(t, "must be at least 1", details["quantity"])
	assert.Equal(t, "must be one of [SMART AGGRESSIVE]", details["strategy"])
}
