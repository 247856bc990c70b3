package printfulhttp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClient_ListOrders_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/orders", r.URL.Path)
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.Equal(t, "20", r.URL.Query().Get("offset"))
		require.Equal(t, "10", r.URL.Query().Get("limit"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
  "code": 200,
  "result": [
    {
      "id": 101,
      "external_id": "EXT-101",
      "status": "fulfilled",
      "created": 1749556800,
      "updated": 1749560400,
      "recipient": {"name": "John Smith"},
      "retail_costs": {"total": "49.99", "currency": "USD"},
      "costs": {"total": "21.50", "currency": "USD"},
      "items": [
        {"id": 1011, "name": "Classic Tee", "quantity": 2, "retail_price": "24.99", "price": "10.75", "sku": "TEE-001",
         "options": [{"id": "size", "value": "M"}, {"id": "color", "value": "black"}]}
      ]
    },
    {
      "id": 102,
      "status": "draft",
      "created": 1749556800,
      "recipient": {"name": "Maria Garcia"},
      "costs": {"total": "15.00", "currency": "EUR"},
      "items": []
    }
  ],
  "paging": {"total": 42, "offset": 20, "limit": 10}
}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "secret")
	page, err := c.ListOrders(context.Background(), 20, 10)
	require.NoError(t, err)
	require.Equal(t, 42, page.Total)
	require.Len(t, page.Orders, 2)

	o := page.Orders[0]
	require.Equal(t, int64(101), o.ID)
	require.Equal(t, "EXT-101", o.ExternalID)
	require.Equal(t, "John Smith", o.RecipientName)
	require.Equal(t, "49.99", o.TotalAmount.StringFixed(2))
	require.Equal(t, "USD", o.Currency)
	require.Equal(t, time.Unix(1749556800, 0).UTC(), o.CreatedAt)
	require.Equal(t, time.Unix(1749560400, 0).UTC(), o.UpdatedAt)
	require.Len(t, o.Items, 1)
	require.Equal(t, int32(2), o.Items[0].Quantity)
	require.Equal(t, map[string]string{"size": "M", "color": "black"}, o.Items[0].Variant)

	// Missing external_id and retail_costs fall back to synthesized values.
	o2 := page.Orders[1]
	require.Equal(t, "PF-102", o2.ExternalID)
	require.Equal(t, "15.00", o2.TotalAmount.StringFixed(2))
	require.Equal(t, "EUR", o2.Currency)
	require.True(t, o2.UpdatedAt.IsZero())
}

func TestClient_ListOrders_skipsMalformedOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
  "code": 200,
  "result": [
    {
      "id": 201,
      "status": "fulfilled",
      "created": 1749556800,
      "recipient": {"name": "Ann Lee"},
      "retail_costs": {"total": "not-a-number", "currency": "USD"},
      "items": []
    },
    {
      "id": 202,
      "status": "fulfilled",
      "created": 1749556800,
      "recipient": {"name": "Bo Chen"},
      "retail_costs": {"total": "12.00", "currency": "USD"},
      "items": []
    }
  ],
  "paging": {"total": 2, "offset": 0, "limit": 10}
}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "secret")
	page, err := c.ListOrders(context.Background(), 0, 10)
	require.NoError(t, err)
	require.Equal(t, 2, page.Total)
	require.Len(t, page.Orders, 1)
	require.Equal(t, int64(202), page.Orders[0].ID)
}

func TestClient_ListOrders_non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(srv.URL, "secret")
	_, err := c.ListOrders(context.Background(), 0, 10)
	require.Error(t, err)
	require.Contains(t, err.Error(), "429")
}

func TestClient_ListOrders_apiLevelError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code": 401, "result": []}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "bad-key")
	_, err := c.ListOrders(context.Background(), 0, 10)
	require.Error(t, err)
	require.Contains(t, err.Error(), "code=401")
}
