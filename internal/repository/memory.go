package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mmeshcher/ecommerce-system/internal/model"
)

type memoryProduct struct {
	// mu сериализует проверку и изменение остатка одного товара;
	// разные товары резервируются без взаимной блокировки.
	mu      sync.Mutex
	product model.Product
}

// MemoryRepository — хранилище в памяти с той же семантикой, что и
// PostgresRepository. Используется в тестах и при запуске без БД.
type MemoryRepository struct {
	mu sync.RWMutex

	users      map[string]*model.User
	categories map[int64]*model.Category
	products   map[int64]*memoryProduct
	orders     map[int64]*model.Order

	nextUserID     int64
	nextCategoryID int64
	nextProductID  int64
	nextOrderID    int64
}

// NewMemoryRepository создаёт пустое хранилище в памяти.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:      make(map[string]*model.User),
		categories: make(map[int64]*model.Category),
		products:   make(map[int64]*memoryProduct),
		orders:     make(map[int64]*model.Order),
	}
}

// Close освобождает ресурсы хранилища.
func (r *MemoryRepository) Close() error {
	return nil
}

// CreateUser создаёт нового пользователя с указанной ролью.
func (r *MemoryRepository) CreateUser(_ context.Context, login string, passwordHash []byte, role model.Role) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[login]; ok {
		return 0, fmt.Errorf("%w: %s", ErrUserExists, login)
	}

	r.nextUserID++
	r.users[login] = &model.User{
		ID:           r.nextUserID,
		Login:        login,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    time.Now(),
	}

	return r.nextUserID, nil
}

// GetUserByLogin возвращает пользователя по логину.
func (r *MemoryRepository) GetUserByLogin(_ context.Context, login string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[login]
	if !ok {
		return nil, ErrUserNotFound
	}

	cp := *u
	return &cp, nil
}

// CreateCategory создаёт новую категорию товаров.
func (r *MemoryRepository) CreateCategory(_ context.Context, name string) (*model.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.categories {
		if c.Name == name {
			return nil, fmt.Errorf("%w: %s", ErrCategoryExists, name)
		}
	}

	r.nextCategoryID++
	c := &model.Category{ID: r.nextCategoryID, Name: name}
	r.categories[c.ID] = c

	cp := *c
	return &cp, nil
}

// UpdateCategory переименовывает категорию.
func (r *MemoryRepository) UpdateCategory(_ context.Context, id int64, name string) (*model.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.categories[id]
	if !ok {
		return nil, ErrCategoryNotFound
	}

	for _, other := range r.categories {
		if other.ID != id && other.Name == name {
			return nil, fmt.Errorf("%w: %s", ErrCategoryExists, name)
		}
	}

	c.Name = name
	cp := *c
	return &cp, nil
}

// DeleteCategory удаляет категорию.
func (r *MemoryRepository) DeleteCategory(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.categories[id]; !ok {
		return ErrCategoryNotFound
	}

	delete(r.categories, id)
	return nil
}

// ListCategories возвращает все категории.
func (r *MemoryRepository) ListCategories(_ context.Context) ([]model.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var res []model.Category
	for _, c := range r.categories {
		res = append(res, *c)
	}

	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

// GetCategory возвращает категорию по идентификатору.
func (r *MemoryRepository) GetCategory(_ context.Context, id int64) (*model.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.categories[id]
	if !ok {
		return nil, ErrCategoryNotFound
	}

	cp := *c
	return &cp, nil
}

// CreateProduct создаёт товар каталога.
func (r *MemoryRepository) CreateProduct(_ context.Context, p model.Product) (*model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.categories[p.CategoryID]; !ok {
		return nil, fmt.Errorf("%w: id %d", ErrCategoryNotFound, p.CategoryID)
	}

	r.nextProductID++
	p.ID = r.nextProductID
	r.products[p.ID] = &memoryProduct{product: p}

	return &p, nil
}

// UpdateProduct обновляет данные товара, включая остаток.
func (r *MemoryRepository) UpdateProduct(_ context.Context, p model.Product) (*model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.products[p.ID]
	if !ok {
		return nil, ErrProductNotFound
	}

	if _, ok := r.categories[p.CategoryID]; !ok {
		return nil, fmt.Errorf("%w: id %d", ErrCategoryNotFound, p.CategoryID)
	}

	rec.mu.Lock()
	rec.product = p
	rec.mu.Unlock()

	return &p, nil
}

// DeleteProduct удаляет товар из каталога.
func (r *MemoryRepository) DeleteProduct(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.products[id]; !ok {
		return ErrProductNotFound
	}

	delete(r.products, id)
	return nil
}

// GetProduct возвращает товар по идентификатору.
func (r *MemoryRepository) GetProduct(_ context.Context, id int64) (*model.Product, error) {
	r.mu.RLock()
	rec, ok := r.products[id]
	r.mu.RUnlock()

	if !ok {
		return nil, ErrProductNotFound
	}

	rec.mu.Lock()
	cp := rec.product
	rec.mu.Unlock()

	return &cp, nil
}

// ListProducts возвращает все товары каталога.
func (r *MemoryRepository) ListProducts(_ context.Context) ([]model.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var res []model.Product
	for _, rec := range r.products {
		rec.mu.Lock()
		res = append(res, rec.product)
		rec.mu.Unlock()
	}

	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

// ListProductsByCategory возвращает товары указанной категории.
func (r *MemoryRepository) ListProductsByCategory(_ context.Context, categoryID int64) ([]model.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.categories[categoryID]; !ok {
		return nil, ErrCategoryNotFound
	}

	var res []model.Product
	for _, rec := range r.products {
		rec.mu.Lock()
		if rec.product.CategoryID == categoryID {
			res = append(res, rec.product)
		}
		rec.mu.Unlock()
	}

	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

// ReserveStock атомарно уменьшает остаток товара. Проверка и списание
// выполняются под мьютексом товара одним неделимым шагом.
func (r *MemoryRepository) ReserveStock(_ context.Context, productID, quantity int64) (*model.ReservedLine, error) {
	r.mu.RLock()
	rec, ok := r.products[productID]
	r.mu.RUnlock()

	if !ok {
		return nil, ErrProductNotFound
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if quantity > rec.product.Stock {
		return nil, &InsufficientStockError{
			ProductID: productID,
			Requested: quantity,
			Available: rec.product.Stock,
		}
	}

	rec.product.Stock -= quantity

	return &model.ReservedLine{
		ProductID:   productID,
		ProductName: rec.product.Name,
		PriceCents:  rec.product.PriceCents,
		Quantity:    quantity,
	}, nil
}

// ReleaseStock возвращает зарезервированное количество обратно на остаток.
func (r *MemoryRepository) ReleaseStock(_ context.Context, productID, quantity int64) error {
	r.mu.RLock()
	rec, ok := r.products[productID]
	r.mu.RUnlock()

	if !ok {
		return ErrProductNotFound
	}

	rec.mu.Lock()
	rec.product.Stock += quantity
	rec.mu.Unlock()

	return nil
}

// CreateOrder сохраняет заказ вместе с позициями.
func (r *MemoryRepository) CreateOrder(_ context.Context, username string, lines []model.ReservedLine, totalCents int64) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextOrderID++
	order := &model.Order{
		ID:         r.nextOrderID,
		Username:   username,
		Status:     model.OrderStatusCreated,
		CreatedAt:  time.Now(),
		TotalCents: totalCents,
	}

	for _, l := range lines {
		order.Items = append(order.Items, model.OrderItem{
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			PriceCents:  l.PriceCents,
			Quantity:    l.Quantity,
		})
	}

	r.orders[order.ID] = order

	cp := cloneOrder(order)
	return cp, nil
}

// GetOrdersByUser возвращает заказы пользователя, новые первыми.
func (r *MemoryRepository) GetOrdersByUser(_ context.Context, username string) ([]model.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var res []model.Order
	for _, o := range r.orders {
		if o.Username == username {
			res = append(res, *cloneOrder(o))
		}
	}

	sort.Slice(res, func(i, j int) bool { return res[i].ID > res[j].ID })
	return res, nil
}

// GetAllOrders возвращает все заказы, новые первыми.
func (r *MemoryRepository) GetAllOrders(_ context.Context) ([]model.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var res []model.Order
	for _, o := range r.orders {
		res = append(res, *cloneOrder(o))
	}

	sort.Slice(res, func(i, j int) bool { return res[i].ID > res[j].ID })
	return res, nil
}

// GetOrder возвращает заказ с позициями по идентификатору.
func (r *MemoryRepository) GetOrder(_ context.Context, orderID int64) (*model.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}

	return cloneOrder(o), nil
}

// UpdateOrderStatus перезаписывает статус заказа и возвращает обновлённую запись.
func (r *MemoryRepository) UpdateOrderStatus(_ context.Context, orderID int64, status model.OrderStatus) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}

	o.Status = status
	return cloneOrder(o), nil
}

// GetOrdersForFulfillment возвращает заказы, статус которых нужно сверить
// со службой доставки.
func (r *MemoryRepository) GetOrdersForFulfillment(_ context.Context, limit int) ([]OrderShipment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var res []OrderShipment
	for _, o := range r.orders {
		if o.Status == model.OrderStatusPaid || o.Status == model.OrderStatusShipped {
			res = append(res, OrderShipment{ID: o.ID, Status: o.Status})
		}
	}

	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })

	if len(res) > limit {
		res = res[:limit]
	}

	return res, nil
}

func cloneOrder(o *model.Order) *model.Order {
	cp := *o
	cp.Items = make([]model.OrderItem, len(o.Items))
	copy(cp.Items, o.Items)
	return &cp
}
