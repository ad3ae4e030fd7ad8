package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/ecommerce-system/internal/auth"
	"github.com/mmeshcher/ecommerce-system/internal/middleware"
	"github.com/mmeshcher/ecommerce-system/internal/model"
	"github.com/mmeshcher/ecommerce-system/internal/repository"
	"github.com/mmeshcher/ecommerce-system/internal/service"
	"github.com/mmeshcher/ecommerce-system/internal/token"
	"github.com/mmeshcher/ecommerce-system/internal/validation"
)

type stubService struct {
	tokenResp string
	tokenErr  error

	categoriesResp []model.Category
	categoryResp   *model.Category
	categoryErr    error

	productsResp []model.Product
	productResp  *model.Product
	productErr   error

	orderResp  *model.Order
	ordersResp []model.Order
	orderErr   error
}

func (s *stubService) RegisterUser(ctx context.Context, login, password string) (string, error) {
	return s.tokenResp, s.tokenErr
}

func (s *stubService) IssueToken(ctx context.Context, login, password string) (string, error) {
	return s.tokenResp, s.tokenErr
}

func (s *stubService) ListCategories(ctx context.Context) ([]model.Category, error) {
	return s.categoriesResp, s.categoryErr
}

func (s *stubService) CreateCategory(ctx context.Context, identity *model.Identity, name string) (*model.Category, error) {
	return s.categoryResp, s.categoryErr
}

func (s *stubService) UpdateCategory(ctx context.Context, identity *model.Identity, id int64, name string) (*model.Category, error) {
	return s.categoryResp, s.categoryErr
}

func (s *stubService) DeleteCategory(ctx context.Context, identity *model.Identity, id int64) error {
	return s.categoryErr
}

func (s *stubService) ListProducts(ctx context.Context) ([]model.Product, error) {
	return s.productsResp, s.productErr
}

func (s *stubService) ListProductsByCategory(ctx context.Context, categoryID int64) ([]model.Product, error) {
	return s.productsResp, s.productErr
}

func (s *stubService) CreateProduct(ctx context.Context, identity *model.Identity, p model.Product) (*model.Product, error) {
	return s.productResp, s.productErr
}

func (s *stubService) UpdateProduct(ctx context.Context, identity *model.Identity, p model.Product) (*model.Product, error) {
	return s.productResp, s.productErr
}

func (s *stubService) DeleteProduct(ctx context.Context, identity *model.Identity, id int64) error {
	return s.productErr
}

func (s *stubService) PlaceOrder(ctx context.Context, identity *model.Identity, items []validation.OrderItem) (*model.Order, error) {
	return s.orderResp, s.orderErr
}

func (s *stubService) GetOrdersByUser(ctx context.Context, identity *model.Identity) ([]model.Order, error) {
	return s.ordersResp, s.orderErr
}

func (s *stubService) GetAllOrders(ctx context.Context, identity *model.Identity) ([]model.Order, error) {
	return s.ordersResp, s.orderErr
}

func (s *stubService) UpdateOrderStatus(ctx context.Context, identity *model.Identity, orderID int64, status model.OrderStatus) (*model.Order, error) {
	return s.orderResp, s.orderErr
}

func newTestHandler(t *testing.T, svc Service) (*Handler, *token.Codec) {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	codec := token.NewCodec("test-secret")
	authMW := middleware.NewAuthMiddleware(codec)

	return NewHandler(svc, logger, authMW), codec
}

func bearerRequest(t *testing.T, codec *token.Codec, role model.Role, method, target string, body []byte) *http.Request {
	t.Helper()

	tok, err := codec.Issue("alice", role)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+tok)
	return req
}

func TestRegister_ReturnsToken(t *testing.T) {
	svc := &stubService{tokenResp: "issued-token"}
	h, _ := newTestHandler(t, svc)

	body, _ := json.Marshal(credentialsRequest{Login: "user", Password: "pass"})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var resp tokenResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Token != "issued-token" {
		t.Fatalf("token = %q, want issued-token", resp.Token)
	}
}

func TestRegister_EmptyCredentials(t *testing.T) {
	h, _ := newTestHandler(t, &stubService{})

	body, _ := json.Marshal(credentialsRequest{Login: "", Password: ""})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	if rec.Result().StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestIssueToken_InvalidCredentials(t *testing.T) {
	svc := &stubService{tokenErr: service.ErrInvalidCredentials}
	h, _ := newTestHandler(t, svc)

	body, _ := json.Marshal(credentialsRequest{Login: "user", Password: "wrong"})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/token", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.IssueToken(rec, req)

	if rec.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestPlaceOrder_Created(t *testing.T) {
	now := time.Now().UTC()
	svc := &stubService{
		orderResp: &model.Order{
			ID:        1,
			Username:  "alice",
			Status:    model.OrderStatusCreated,
			CreatedAt: now,
			Items: []model.OrderItem{
				{ProductID: 2, ProductName: "widget", PriceCents: 1000, Quantity: 3},
			},
			TotalCents: 3000,
		},
	}
	h, codec := newTestHandler(t, svc)

	body, _ := json.Marshal(orderRequest{Items: []orderItemRequest{{ProductID: 2, Quantity: 3}}})
	req := bearerRequest(t, codec, model.RoleCustomer, http.MethodPost, "/api/orders", body)
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusCreated)
	}

	var resp orderResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Total != 30.0 {
		t.Fatalf("total = %v, want 30", resp.Total)
	}
	if len(resp.Items) != 1 || resp.Items[0].Price != 10.0 {
		t.Fatalf("unexpected items: %+v", resp.Items)
	}
}

func TestPlaceOrder_InsufficientStockConflict(t *testing.T) {
	svc := &stubService{
		orderErr: &repository.InsufficientStockError{ProductID: 2, Requested: 3, Available: 2},
	}
	h, codec := newTestHandler(t, svc)

	body, _ := json.Marshal(orderRequest{Items: []orderItemRequest{{ProductID: 2, Quantity: 3}}})
	req := bearerRequest(t, codec, model.RoleCustomer, http.MethodPost, "/api/orders", body)
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusConflict)
	}
}

func TestPlaceOrder_WithoutToken(t *testing.T) {
	h, _ := newTestHandler(t, &stubService{})

	body, _ := json.Marshal(orderRequest{Items: []orderItemRequest{{ProductID: 2, Quantity: 3}}})
	req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestGetAllOrders_ForbiddenForCustomer(t *testing.T) {
	svc := &stubService{
		orderErr: &auth.AccessDeniedError{Required: model.RoleAdmin, Actual: string(model.RoleCustomer)},
	}
	h, codec := newTestHandler(t, svc)

	req := bearerRequest(t, codec, model.RoleCustomer, http.MethodGet, "/api/orders", nil)
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusForbidden)
	}
}

func TestListProducts_PublicWithoutToken(t *testing.T) {
	svc := &stubService{
		productsResp: []model.Product{
			{ID: 1, Name: "widget", PriceCents: 1050, Stock: 5, CategoryID: 1},
		},
	}
	h, _ := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if ct := res.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type = %q, want application/json", ct)
	}

	var resp []productResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp) != 1 || resp[0].Price != 10.5 {
		t.Fatalf("unexpected products: %+v", resp)
	}
}

func TestUpdateOrderStatus_NotFound(t *testing.T) {
	svc := &stubService{orderErr: repository.ErrOrderNotFound}
	h, codec := newTestHandler(t, svc)

	body, _ := json.Marshal(statusUpdateRequest{Status: "SHIPPED"})
	req := bearerRequest(t, codec, model.RoleAdmin, http.MethodPut, "/api/orders/99/status", body)
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusNotFound)
	}
}

func TestUpdateOrderStatus_UnknownStatus(t *testing.T) {
	h, codec := newTestHandler(t, &stubService{})

	body, _ := json.Marshal(statusUpdateRequest{Status: "TELEPORTED"})
	req := bearerRequest(t, codec, model.RoleAdmin, http.MethodPut, "/api/orders/1/status", body)
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestCreateCategory_DuplicateConflict(t *testing.T) {
	svc := &stubService{categoryErr: repository.ErrCategoryExists}
	h, codec := newTestHandler(t, svc)

	body, _ := json.Marshal(categoryRequest{Name: "books"})
	req := bearerRequest(t, codec, model.RoleAdmin, http.MethodPost, "/api/categories", body)
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusConflict)
	}
}
