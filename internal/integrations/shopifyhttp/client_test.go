package shopifyhttp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClient_ListOrders_OK(t *testing.T) {
	updatedSince := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/admin/api/2024-01/orders.json", r.URL.Path)
		require.Equal(t, "token", r.Header.Get("X-Shopify-Access-Token"))
		require.Equal(t, "any", r.URL.Query().Get("status"))
		require.Equal(t, "50", r.URL.Query().Get("limit"))
		require.Equal(t, "id asc", r.URL.Query().Get("order"))
		require.Equal(t, "500", r.URL.Query().Get("since_id"))
		require.Equal(t, "2025-06-01T00:00:00Z", r.URL.Query().Get("updated_at_min"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
  "orders": [
    {
      "id": 501,
      "name": "#1042",
      "order_number": 1042,
      "total_price": "49.99",
      "currency": "USD",
      "financial_status": "paid",
      "created_at": "2025-06-10T11:30:00-04:00",
      "customer": {"first_name": "John", "last_name": "Smith"}
    },
    {
      "id": 502,
      "order_number": 1043,
      "total_price": "12.00",
      "currency": "USD",
      "financial_status": "refunded",
      "created_at": "2025-06-11T09:00:00Z",
      "billing_address": {"name": "Maria Garcia"}
    }
  ]
}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "token")
	out, err := c.ListOrders(context.Background(), 500, 50, updatedSince)
	require.NoError(t, err)
	require.Len(t, out, 2)

	o := out[0]
	require.Equal(t, int64(501), o.ID)
	require.Equal(t, "#1042", o.OrderNumber)
	require.Equal(t, "John Smith", o.CustomerName)
	require.Equal(t, "49.99", o.TotalAmount.StringFixed(2))
	require.Equal(t, "paid", o.FinancialStatus)
	require.Equal(t, time.Date(2025, 6, 10, 15, 30, 0, 0, time.UTC), o.OrderedAt)

	// No name and no customer block: number synthesized, billing name used.
	o2 := out[1]
	require.Equal(t, "#1043", o2.OrderNumber)
	require.Equal(t, "Maria Garcia", o2.CustomerName)
}

func TestClient_ListOrders_omitsEmptyCursorParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.False(t, r.URL.Query().Has("since_id"))
		require.False(t, r.URL.Query().Has("updated_at_min"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"orders": []}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "token")
	out, err := c.ListOrders(context.Background(), 0, 50, time.Time{})
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestClient_ListOrders_non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(srv.URL, "bad")
	_, err := c.ListOrders(context.Background(), 0, 50, time.Time{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "401")
}
