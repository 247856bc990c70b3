package printfulhttp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/merchline/matchbox/internal/integrations/orders"
	"github.com/merchline/matchbox/internal/models"
)

type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

func New(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = "https://api.printful.com"
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpc: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type printfulResp struct {
	Code   int             `json:"code"`
	Result []printfulOrder `json:"result"`
	Paging struct {
		Total  int `json:"total"`
		Offset int `json:"offset"`
		Limit  int `json:"limit"`
	} `json:"paging"`
}

type printfulOrder struct {
	ID         int64  `json:"id"`
	ExternalID string `json:"external_id"`
	Status     string `json:"status"`
	Created    int64  `json:"created"`
	Updated    int64  `json:"updated"`
	Recipient  struct {
		Name string `json:"name"`
	} `json:"recipient"`
	RetailCosts struct {
		Total    string `json:"total"`
		Currency string `json:"currency"`
	} `json:"retail_costs"`
	Costs struct {
		Total    string `json:"total"`
		Currency string `json:"currency"`
	} `json:"costs"`
	Items []printfulItem `json:"items"`
}

type printfulItem struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Quantity    int32  `json:"quantity"`
	RetailPrice string `json:"retail_price"`
	Price       string `json:"price"`
	SKU         string `json:"sku"`
	Options     []struct {
		ID    string `json:"id"`
		Value any    `json:"value"`
	} `json:"options"`
}

func (c *Client) ListOrders(ctx context.Context, offset, limit int) (orders.FulfillmentPage, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return orders.FulfillmentPage{}, errors.Wrap(err, "parse base url")
	}
	u.Path = "/orders"

	q := u.Query()
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return orders.FulfillmentPage{}, errors.Wrap(err, "new request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return orders.FulfillmentPage{}, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return orders.FulfillmentPage{}, fmt.Errorf("printful http %d", resp.StatusCode)
	}

	var r printfulResp
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return orders.FulfillmentPage{}, errors.Wrap(err, "decode")
	}
	if r.Code != 200 {
		return orders.FulfillmentPage{}, fmt.Errorf("printful code=%d", r.Code)
	}

	out := make([]models.FulfillmentOrder, 0, len(r.Result))
	for _, po := range r.Result {
		o, err := convertOrder(po)
		if err != nil {
			// One malformed record must not sink the page; the rest of the
			// orders still sync.
			slog.Warn("skipping malformed provider order", "order_id", po.ID, "error", err.Error())
			continue
		}
		out = append(out, o)
	}

	return orders.FulfillmentPage{Orders: out, Total: r.Paging.Total}, nil
}

func convertOrder(po printfulOrder) (models.FulfillmentOrder, error) {
	externalID := po.ExternalID
	if externalID == "" {
		externalID = fmt.Sprintf("PF-%d", po.ID)
	}

	// Retail costs line up with what the storefront charged; fall back to the
	// merchant costs when the provider omits them.
	totalStr, currency := po.RetailCosts.Total, po.RetailCosts.Currency
	if totalStr == "" {
		totalStr, currency = po.Costs.Total, po.Costs.Currency
	}
	total, err := decimal.NewFromString(totalStr)
	if err != nil {
		return models.FulfillmentOrder{}, errors.Wrap(err, "parse total")
	}

	o := models.FulfillmentOrder{
		ID:            po.ID,
		ExternalID:    externalID,
		RecipientName: po.Recipient.Name,
		TotalAmount:   total,
		Currency:      currency,
		Status:        po.Status,
		CreatedAt:     time.Unix(po.Created, 0).UTC(),
	}
	if po.Updated > 0 {
		o.UpdatedAt = time.Unix(po.Updated, 0).UTC()
	}

	for _, it := range po.Items {
		retail, err := decimal.NewFromString(zeroIfEmpty(it.RetailPrice))
		if err != nil {
			return models.FulfillmentOrder{}, errors.Wrapf(err, "parse item %d retail price", it.ID)
		}
		cost, err := decimal.NewFromString(zeroIfEmpty(it.Price))
		if err != nil {
			return models.FulfillmentOrder{}, errors.Wrapf(err, "parse item %d price", it.ID)
		}

		var variant map[string]string
		if len(it.Options) > 0 {
			variant = make(map[string]string, len(it.Options))
			for _, opt := range it.Options {
				variant[opt.ID] = fmt.Sprint(opt.Value)
			}
		}

		o.Items = append(o.Items, models.FulfillmentOrderItem{
			OrderID:     po.ID,
			LineItemID:  it.ID,
			Name:        it.Name,
			Quantity:    it.Quantity,
			RetailPrice: retail,
			Cost:        cost,
			Currency:    currency,
			SKU:         it.SKU,
			Variant:     variant,
		})
	}

	return o, nil
}

func zeroIfEmpty(s string) string {
	if s == "" {
		return "0"
	}
	return s
}
