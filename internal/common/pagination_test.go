package common_test

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/comanda-app/backend-comanda/internal/common"
)

func TestParsePaginationDefaults(t *testing.T) {
	r := httptest.NewRequest("GET", "/admin/orders", nil)
	page, perPage := common.ParsePagination(r, 50)
	require.Equal(t, 1, page)
	require.Equal(t, 50, perPage)
}

func TestParsePaginationClampsLimit(t *testing.T) {
	r := httptest.NewRequest("GET", "/admin/orders?page=3&limit=5000", nil)
	page, perPage := common.ParsePagination(r, 50)
	require.Equal(t, 3, page)
	require.Equal(t, 100, perPage)
}
