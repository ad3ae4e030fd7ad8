package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mmeshcher/ecommerce-system/internal/auth"
	"github.com/mmeshcher/ecommerce-system/internal/model"
	"github.com/mmeshcher/ecommerce-system/internal/repository"
	"github.com/mmeshcher/ecommerce-system/internal/token"
	"github.com/mmeshcher/ecommerce-system/internal/validation"
)

var (
	customer = &model.Identity{Username: "alice", Role: model.RoleCustomer}
	admin    = &model.Identity{Username: "root", Role: model.RoleAdmin}
)

func newTestService(t *testing.T) (*Service, *repository.MemoryRepository) {
	t.Helper()

	repo := repository.NewMemoryRepository()
	svc := NewService(repo, token.NewCodec("test-secret"), Options{})
	return svc, repo
}

func seedProduct(t *testing.T, svc *Service, name string, priceCents, stock int64) *model.Product {
	t.Helper()

	ctx := context.Background()

	cats, err := svc.repo.ListCategories(ctx)
	if err != nil {
		t.Fatalf("ListCategories error: %v", err)
	}

	var categoryID int64
	if len(cats) == 0 {
		c, err := svc.CreateCategory(ctx, admin, "default")
		if err != nil {
			t.Fatalf("CreateCategory error: %v", err)
		}
		categoryID = c.ID
	} else {
		categoryID = cats[0].ID
	}

	p, err := svc.CreateProduct(ctx, admin, model.Product{
		Name:       name,
		PriceCents: priceCents,
		Stock:      stock,
		CategoryID: categoryID,
	})
	if err != nil {
		t.Fatalf("CreateProduct error: %v", err)
	}
	return p
}

func TestPlaceOrder_Success(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	p := seedProduct(t, svc, "widget", 1000, 5)

	order, err := svc.PlaceOrder(ctx, customer, []validation.OrderItem{
		{ProductID: p.ID, Quantity: 3},
	})
	if err != nil {
		t.Fatalf("PlaceOrder error: %v", err)
	}

	if order.Status != model.OrderStatusCreated {
		t.Fatalf("status = %s, want CREATED", order.Status)
	}
	if order.Username != "alice" {
		t.Fatalf("username = %q, want alice", order.Username)
	}
	if order.TotalCents != 3000 {
		t.Fatalf("total = %d, want 3000", order.TotalCents)
	}
	if len(order.Items) != 1 || order.Items[0].ProductName != "widget" || order.Items[0].Quantity != 3 {
		t.Fatalf("unexpected items: %+v", order.Items)
	}

	stored, err := repo.GetProduct(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetProduct error: %v", err)
	}
	if stored.Stock != 2 {
		t.Fatalf("stock = %d, want 2", stored.Stock)
	}
}

func TestPlaceOrder_InsufficientStockAfterFirstOrder(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	p := seedProduct(t, svc, "widget", 1000, 5)

	if _, err := svc.PlaceOrder(ctx, customer, []validation.OrderItem{{ProductID: p.ID, Quantity: 3}}); err != nil {
		t.Fatalf("first PlaceOrder error: %v", err)
	}

	_, err := svc.PlaceOrder(ctx, customer, []validation.OrderItem{{ProductID: p.ID, Quantity: 3}})

	var insufficient *repository.InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if insufficient.Requested != 3 || insufficient.Available != 2 {
		t.Fatalf("unexpected shortfall: %+v", insufficient)
	}

	stored, _ := repo.GetProduct(ctx, p.ID)
	if stored.Stock != 2 {
		t.Fatalf("stock = %d, want 2 after failed order", stored.Stock)
	}
}

func TestPlaceOrder_RollbackOnSecondItem(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	first := seedProduct(t, svc, "widget", 1000, 5)
	second := seedProduct(t, svc, "gadget", 2000, 1)

	_, err := svc.PlaceOrder(ctx, customer, []validation.OrderItem{
		{ProductID: first.ID, Quantity: 2},
		{ProductID: second.ID, Quantity: 3},
	})

	var insufficient *repository.InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}

	// Резервирование первой позиции откатилось.
	p1, _ := repo.GetProduct(ctx, first.ID)
	if p1.Stock != 5 {
		t.Fatalf("first product stock = %d, want 5", p1.Stock)
	}
	p2, _ := repo.GetProduct(ctx, second.ID)
	if p2.Stock != 1 {
		t.Fatalf("second product stock = %d, want 1", p2.Stock)
	}

	// Заказ не создан.
	orders, err := repo.GetAllOrders(ctx)
	if err != nil {
		t.Fatalf("GetAllOrders error: %v", err)
	}
	if len(orders) != 0 {
		t.Fatalf("orders = %d, want 0", len(orders))
	}
}

func TestPlaceOrder_UnknownProductRollsBack(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	p := seedProduct(t, svc, "widget", 1000, 5)

	_, err := svc.PlaceOrder(ctx, customer, []validation.OrderItem{
		{ProductID: p.ID, Quantity: 2},
		{ProductID: p.ID + 100, Quantity: 1},
	})
	if !errors.Is(err, repository.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}

	stored, _ := repo.GetProduct(ctx, p.ID)
	if stored.Stock != 5 {
		t.Fatalf("stock = %d, want 5", stored.Stock)
	}
}

func TestPlaceOrder_TotalUnaffectedByLaterPriceEdit(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	p := seedProduct(t, svc, "widget", 1000, 10)

	order, err := svc.PlaceOrder(ctx, customer, []validation.OrderItem{{ProductID: p.ID, Quantity: 2}})
	if err != nil {
		t.Fatalf("PlaceOrder error: %v", err)
	}

	p.PriceCents = 9900
	if _, err := svc.UpdateProduct(ctx, admin, *p); err != nil {
		t.Fatalf("UpdateProduct error: %v", err)
	}

	orders, err := svc.GetOrdersByUser(ctx, customer)
	if err != nil {
		t.Fatalf("GetOrdersByUser error: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("orders = %d, want 1", len(orders))
	}
	if orders[0].TotalCents != order.TotalCents || orders[0].TotalCents != 2000 {
		t.Fatalf("total = %d, want 2000", orders[0].TotalCents)
	}
	if orders[0].Items[0].PriceCents != 1000 {
		t.Fatalf("item price = %d, want snapshot 1000", orders[0].Items[0].PriceCents)
	}
}

func TestPlaceOrder_RoleEnforcement(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	p := seedProduct(t, svc, "widget", 1000, 5)
	items := []validation.OrderItem{{ProductID: p.ID, Quantity: 1}}

	var denied *auth.AccessDeniedError

	if _, err := svc.PlaceOrder(ctx, admin, items); !errors.As(err, &denied) {
		t.Fatalf("expected AccessDeniedError for admin, got %v", err)
	}
	if _, err := svc.PlaceOrder(ctx, nil, items); !errors.As(err, &denied) {
		t.Fatalf("expected AccessDeniedError for unauthenticated, got %v", err)
	}
}

func TestPlaceOrder_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	var ve *validation.ValidationError

	if _, err := svc.PlaceOrder(ctx, customer, nil); !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for empty order, got %v", err)
	}
	if _, err := svc.PlaceOrder(ctx, customer, []validation.OrderItem{{ProductID: 1, Quantity: 0}}); !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for zero quantity, got %v", err)
	}
}

func TestGetOrdersByUser_OwnOnly(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	p := seedProduct(t, svc, "widget", 1000, 10)
	bob := &model.Identity{Username: "bob", Role: model.RoleCustomer}

	if _, err := svc.PlaceOrder(ctx, customer, []validation.OrderItem{{ProductID: p.ID, Quantity: 1}}); err != nil {
		t.Fatalf("PlaceOrder error: %v", err)
	}
	if _, err := svc.PlaceOrder(ctx, bob, []validation.OrderItem{{ProductID: p.ID, Quantity: 1}}); err != nil {
		t.Fatalf("PlaceOrder error: %v", err)
	}

	orders, err := svc.GetOrdersByUser(ctx, customer)
	if err != nil {
		t.Fatalf("GetOrdersByUser error: %v", err)
	}
	if len(orders) != 1 || orders[0].Username != "alice" {
		t.Fatalf("unexpected orders: %+v", orders)
	}

	all, err := svc.GetAllOrders(ctx, admin)
	if err != nil {
		t.Fatalf("GetAllOrders error: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("all orders = %d, want 2", len(all))
	}
}

func TestGetAllOrders_AdminOnly(t *testing.T) {
	svc, _ := newTestService(t)

	var denied *auth.AccessDeniedError
	if _, err := svc.GetAllOrders(context.Background(), customer); !errors.As(err, &denied) {
		t.Fatalf("expected AccessDeniedError, got %v", err)
	}
}

func TestUpdateOrderStatus(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	p := seedProduct(t, svc, "widget", 1000, 5)

	order, err := svc.PlaceOrder(ctx, customer, []validation.OrderItem{{ProductID: p.ID, Quantity: 1}})
	if err != nil {
		t.Fatalf("PlaceOrder error: %v", err)
	}

	updated, err := svc.UpdateOrderStatus(ctx, admin, order.ID, model.OrderStatusPaid)
	if err != nil {
		t.Fatalf("UpdateOrderStatus error: %v", err)
	}
	if updated.Status != model.OrderStatusPaid {
		t.Fatalf("status = %s, want PAID", updated.Status)
	}

	if _, err := svc.UpdateOrderStatus(ctx, admin, order.ID+100, model.OrderStatusPaid); !errors.Is(err, repository.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}

	var denied *auth.AccessDeniedError
	if _, err := svc.UpdateOrderStatus(ctx, customer, order.ID, model.OrderStatusPaid); !errors.As(err, &denied) {
		t.Fatalf("expected AccessDeniedError, got %v", err)
	}
}

func TestCategoryWrites_AdminOnly(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	var denied *auth.AccessDeniedError
	if _, err := svc.CreateCategory(ctx, customer, "books"); !errors.As(err, &denied) {
		t.Fatalf("expected AccessDeniedError, got %v", err)
	}

	c, err := svc.CreateCategory(ctx, admin, "books")
	if err != nil {
		t.Fatalf("CreateCategory error: %v", err)
	}

	if err := svc.DeleteCategory(ctx, customer, c.ID); !errors.As(err, &denied) {
		t.Fatalf("expected AccessDeniedError, got %v", err)
	}
}

func TestRegisterAndIssueToken(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tok, err := svc.RegisterUser(ctx, "alice", "secret")
	if err != nil {
		t.Fatalf("RegisterUser error: %v", err)
	}

	id, err := svc.codec.Verify(tok)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if id.Username != "alice" || id.Role != model.RoleCustomer {
		t.Fatalf("unexpected identity: %+v", id)
	}

	if _, err := svc.IssueToken(ctx, "alice", "secret"); err != nil {
		t.Fatalf("IssueToken error: %v", err)
	}
	if _, err := svc.IssueToken(ctx, "alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.IssueToken(ctx, "nobody", "secret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}

func TestStartFulfillmentUpdates_NoClient(t *testing.T) {
	svc := &Service{}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})

	go func() {
		svc.StartFulfillmentUpdates(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("StartFulfillmentUpdates did not return without client")
	}
}
