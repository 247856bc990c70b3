package shopifyhttp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/merchline/matchbox/internal/models"
)

const apiVersion = "2024-01"

type Client struct {
	baseURL     string
	accessToken string
	httpc       *http.Client
}

func New(baseURL, accessToken string) *Client {
	return &Client{
		baseURL:     baseURL,
		accessToken: accessToken,
		httpc: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type shopifyResp struct {
	Orders []shopifyOrder `json:"orders"`
}

type shopifyOrder struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	OrderNumber     int64  `json:"order_number"`
	TotalPrice      string `json:"total_price"`
	Currency        string `json:"currency"`
	FinancialStatus string `json:"financial_status"`
	CreatedAt       string `json:"created_at"`
	Customer        struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	} `json:"customer"`
	BillingAddress struct {
		Name string `json:"name"`
	} `json:"billing_address"`
}

// ListOrders fetches one page ordered by id ascending, starting after sinceID.
// A non-zero updatedSince is pushed down as updated_at_min.
func (c *Client) ListOrders(ctx context.Context, sinceID int64, limit int, updatedSince time.Time) ([]models.StorefrontOrder, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	u.Path = fmt.Sprintf("/admin/api/%s/orders.json", apiVersion)

	q := u.Query()
	q.Set("status", "any")
	q.Set("limit", strconv.Itoa(limit))
	q.Set("order", "id asc")
	if sinceID > 0 {
		q.Set("since_id", strconv.FormatInt(sinceID, 10))
	}
	if !updatedSince.IsZero() {
		q.Set("updated_at_min", updatedSince.UTC().Format(time.RFC3339))
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "new request")
	}
	req.Header.Set("X-Shopify-Access-Token", c.accessToken)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("shopify http %d", resp.StatusCode)
	}

	var r shopifyResp
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return nil, errors.Wrap(err, "decode")
	}

	out := make([]models.StorefrontOrder, 0, len(r.Orders))
	for _, so := range r.Orders {
		o, err := convertOrder(so)
		if err != nil {
			return nil, errors.Wrapf(err, "convert order %d", so.ID)
		}
		out = append(out, o)
	}
	return out, nil
}

func convertOrder(so shopifyOrder) (models.StorefrontOrder, error) {
	total, err := decimal.NewFromString(so.TotalPrice)
	if err != nil {
		return models.StorefrontOrder{}, errors.Wrap(err, "parse total price")
	}

	orderedAt, err := time.Parse(time.RFC3339, so.CreatedAt)
	if err != nil {
		return models.StorefrontOrder{}, errors.Wrap(err, "parse created_at")
	}

	name := strings.TrimSpace(so.Customer.FirstName + " " + so.Customer.LastName)
	if name == "" {
		name = so.BillingAddress.Name
	}

	number := so.Name
	if number == "" {
		number = fmt.Sprintf("#%d", so.OrderNumber)
	}

	return models.StorefrontOrder{
		ID:              so.ID,
		OrderNumber:     number,
		CustomerName:    name,
		TotalAmount:     total,
		Currency:        so.Currency,
		FinancialStatus: so.FinancialStatus,
		OrderedAt:       orderedAt.UTC(),
	}, nil
}
