package api_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/wondertwin-ai/twin-qwikbasket/internal/aggregate"
	"github.com/wondertwin-ai/twin-qwikbasket/internal/api"
	"github.com/wondertwin-ai/twin-qwikbasket/internal/catalog"
	"github.com/wondertwin-ai/twin-qwikbasket/pkg/twincore"
)

type fixture struct {
	srv     *httptest.Server
	catalog *catalog.Catalog
	mw      *twincore.Middleware
}

func setup(t *testing.T, opts catalog.Options, apiOpts ...api.Option) *fixture {
	t.Helper()
	opts.Seed = true
	c, err := catalog.New(opts)
	require.NoError(t, err)
	mw := twincore.NewMiddleware(nil)

	r := chi.NewRouter()
	api.NewHandler(c, mw, apiOpts...).Routes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, catalog: c, mw: mw}
}

func (f *fixture) do(t *testing.T, method, path, body string, headers ...string) (int, []byte) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func TestListCategories(t *testing.T) {
	f := setup(t, catalog.Options{})
	status, body := f.do(t, http.MethodGet, "/v1/categories", "")
	require.Equal(t, http.StatusOK, status)

	got := decode[api.ListResponse[catalog.MainCategory]](t, body)
	assert.Equal(t, 6, got.Total)
	assert.Equal(t, "Grains", got.Data[0].Name)
	assert.Equal(t, 4, got.Data[0].SubCategoryCount)
}

func TestCreateCategoryThenGet(t *testing.T) {
	f := setup(t, catalog.Options{})
	status, body := f.do(t, http.MethodPost, "/v1/categories", `{"name":"Beverages"}`)
	require.Equal(t, http.StatusCreated, status, string(body))
	created := decode[catalog.MainCategory](t, body)
	assert.True(t, strings.HasPrefix(created.ID, "CAT-"))
	assert.Equal(t, catalog.DefaultBgColor, created.BgColor)

	status, body = f.do(t, http.MethodGet, "/v1/categories/"+created.ID, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Beverages", decode[catalog.MainCategory](t, body).Name)

	_, body = f.do(t, http.MethodGet, "/v1/categories", "")
	assert.Equal(t, created.ID, decode[api.ListResponse[catalog.MainCategory]](t, body).Data[0].ID)
}

func TestErrorMapping(t *testing.T) {
	f := setup(t, catalog.Options{DeletePolicy: catalog.DeleteRestrict})

	tests := []struct {
		name, method, path, body string
		want                     int
	}{
		{"missing get", http.MethodGet, "/v1/products/nope", "", http.StatusNotFound},
		{"missing update", http.MethodPatch, "/v1/products/nope", `{"stock":1}`, http.StatusNotFound},
		{"validation", http.MethodPost, "/v1/categories", `{"name":"  "}`, http.StatusUnprocessableEntity},
		{"negative price", http.MethodPost, "/v1/products", `{"name":"Rice","price":"-1","stock":1}`, http.StatusUnprocessableEntity},
		{"bad parent", http.MethodPost, "/v1/subcategories", `{"name":"Rice","mainCategoryId":"nope"}`, http.StatusUnprocessableEntity},
		{"unknown status", http.MethodPatch, "/v1/orders/ORD-2024-1006", `{"status":"Lost"}`, http.StatusUnprocessableEntity},
		{"restrict", http.MethodDelete, "/v1/categories/1", "", http.StatusConflict},
		{"unknown field", http.MethodPost, "/v1/categories", `{"name":"x","colour":"red"}`, http.StatusBadRequest},
		{"bad json", http.MethodPost, "/v1/offers", `{`, http.StatusBadRequest},
		{"bad status filter", http.MethodGet, "/v1/customers?status=Gold", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := f.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, status, string(body))
			assert.Equal(t, tt.want, decode[errorBody](t, body).Error.Code)
		})
	}
}

func TestStoreFaultIs503(t *testing.T) {
	f := setup(t, catalog.Options{})
	f.catalog.Simulator().InjectFault("offers.list", 1)

	status, _ := f.do(t, http.MethodGet, "/v1/offers", "")
	assert.Equal(t, http.StatusServiceUnavailable, status)

	status, _ = f.do(t, http.MethodGet, "/v1/offers", "")
	assert.Equal(t, http.StatusOK, status)
}

func TestDeleteIsIdempotent(t *testing.T) {
	f := setup(t, catalog.Options{})
	for range 2 {
		status, _ := f.do(t, http.MethodDelete, "/v1/products/3", "")
		assert.Equal(t, http.StatusOK, status)
	}
	_, body := f.do(t, http.MethodGet, "/v1/products", "")
	assert.Equal(t, 4, decode[api.ListResponse[catalog.Product]](t, body).Total)
}

func TestProductUpdateDerivesStockStatus(t *testing.T) {
	f := setup(t, catalog.Options{})
	status, body := f.do(t, http.MethodPatch, "/v1/products/1", `{"stock":5}`)
	require.Equal(t, http.StatusOK, status)
	p := decode[catalog.Product](t, body)
	assert.Equal(t, catalog.LowStock, p.StockStatus)
	assert.Equal(t, "Black Pepper", p.Name)
}

func TestGroupedSubCategories(t *testing.T) {
	f := setup(t, catalog.Options{})
	status, body := f.do(t, http.MethodGet, "/v1/subcategories?grouped=true", "")
	require.Equal(t, http.StatusOK, status)

	got := decode[struct {
		Groups aggregate.Groups `json:"groups"`
		Total  int              `json:"total"`
	}](t, body)
	assert.Equal(t, 9, got.Total)
	assert.Equal(t, []string{"Grains", "Spices", "Fresh Fruits"}, got.Groups.Keys())
}

func TestOrderInvoiceAndTransitions(t *testing.T) {
	f := setup(t, catalog.Options{Transitions: catalog.ForwardTransitions})

	status, body := f.do(t, http.MethodPatch, "/v1/orders/ORD-2024-1006", `{"status":"Delivered"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status, string(body))

	status, body = f.do(t, http.MethodPatch, "/v1/orders/ORD-2024-1006", `{"status":"In Transit"}`)
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Equal(t, catalog.OrderInTransit, decode[catalog.Order](t, body).Status)

	status, body = f.do(t, http.MethodPost, "/v1/orders/ORD-2024-1006/invoice", `{"uri":"file:///inv.pdf","name":"inv.pdf"}`)
	require.Equal(t, http.StatusOK, status, string(body))
	o := decode[catalog.Order](t, body)
	require.NotNil(t, o.InvoiceURL)
	assert.Equal(t, "file:///inv.pdf", *o.InvoiceURL)

	status, _ = f.do(t, http.MethodPost, "/v1/orders/ORD-2024-1006/invoice", `{"uri":""}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
}

func TestCustomersFilterAndVerify(t *testing.T) {
	f := setup(t, catalog.Options{})
	_, body := f.do(t, http.MethodGet, "/v1/customers?status=Pending", "")
	pending := decode[api.ListResponse[catalog.Customer]](t, body)
	require.Equal(t, 1, pending.Total)
	assert.Equal(t, "Priya Singh", pending.Data[0].Name)

	status, body := f.do(t, http.MethodPost, "/v1/customers/4/verify", "")
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Equal(t, catalog.CustomerVerified, decode[catalog.Customer](t, body).Status)

	_, body = f.do(t, http.MethodGet, "/v1/customers?status=Pending", "")
	assert.Equal(t, 0, decode[api.ListResponse[catalog.Customer]](t, body).Total)

	status, _ = f.do(t, http.MethodDelete, "/v1/customers/4", "")
	assert.Equal(t, http.StatusMethodNotAllowed, status)
}

func TestSummary(t *testing.T) {
	f := setup(t, catalog.Options{})
	status, body := f.do(t, http.MethodGet, "/v1/summary", "")
	require.Equal(t, http.StatusOK, status)

	got := decode[aggregate.Summary](t, body)
	want, err := aggregate.Dashboard(context.Background(), f.catalog)
	require.NoError(t, err)
	assert.Equal(t, want.Categories, got.Categories)
	assert.Equal(t, want.Orders, got.Orders)
	assert.True(t, want.Products.TotalInventoryValue.Equal(got.Products.TotalInventoryValue))
}

func TestHomepageItems(t *testing.T) {
	f := setup(t, catalog.Options{})
	status, body := f.do(t, http.MethodGet, "/v1/homepage-items", "")
	require.Equal(t, http.StatusOK, status)
	got := decode[api.ListResponse[catalog.HomepageItem]](t, body)
	assert.Equal(t, 4, got.Total)
	assert.Equal(t, "h4", got.Data[3].ID)
}

func TestIdempotentCreate(t *testing.T) {
	f := setup(t, catalog.Options{})
	body := `{"title":"Festive","subtitle":"20% off"}`

	s1, b1 := f.do(t, http.MethodPost, "/v1/offers", body, "Idempotency-Key", "k-1")
	s2, b2 := f.do(t, http.MethodPost, "/v1/offers", body, "Idempotency-Key", "k-1")
	require.Equal(t, http.StatusCreated, s1)
	assert.Equal(t, s1, s2)
	assert.JSONEq(t, string(b1), string(b2))

	_, list := f.do(t, http.MethodGet, "/v1/offers", "")
	assert.Equal(t, 4, decode[api.ListResponse[catalog.Offer]](t, list).Total)
}

func TestHTTPFaultInjection(t *testing.T) {
	f := setup(t, catalog.Options{})
	f.mw.Faults.Set("/v1/orders", twincore.FaultConfig{StatusCode: http.StatusBadGateway, Rate: 1})

	status, _ := f.do(t, http.MethodGet, "/v1/orders", "")
	assert.Equal(t, http.StatusBadGateway, status)
}

func TestRateLimit(t *testing.T) {
	f := setup(t, catalog.Options{}, api.WithRateLimit(rate.NewLimiter(0, 1)))

	status, _ := f.do(t, http.MethodGet, "/v1/offers", "")
	assert.Equal(t, http.StatusOK, status)
	status, _ = f.do(t, http.MethodGet, "/v1/offers", "")
	assert.Equal(t, http.StatusTooManyRequests, status)
}

func TestGate(t *testing.T) {
	deny := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			twincore.Error(w, http.StatusUnauthorized, "denied")
		})
	}
	f := setup(t, catalog.Options{}, api.WithGate(deny))

	status, _ := f.do(t, http.MethodGet, "/v1/products", "")
	assert.Equal(t, http.StatusUnauthorized, status)
}
