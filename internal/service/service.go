// Package service реализует бизнес-логику интернет-магазина.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/mmeshcher/ecommerce-system/internal/auth"
	"github.com/mmeshcher/ecommerce-system/internal/cache"
	"github.com/mmeshcher/ecommerce-system/internal/events"
	"github.com/mmeshcher/ecommerce-system/internal/fulfillment"
	"github.com/mmeshcher/ecommerce-system/internal/model"
	"github.com/mmeshcher/ecommerce-system/internal/repository"
	"github.com/mmeshcher/ecommerce-system/internal/token"
	"github.com/mmeshcher/ecommerce-system/internal/validation"
)

// ErrInvalidCredentials возвращается при неверной паре логин/пароль.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error

	CreateUser(ctx context.Context, login string, passwordHash []byte, role model.Role) (int64, error)
	GetUserByLogin(ctx context.Context, login string) (*model.User, error)

	CreateCategory(ctx context.Context, name string) (*model.Category, error)
	UpdateCategory(ctx context.Context, id int64, name string) (*model.Category, error)
	DeleteCategory(ctx context.Context, id int64) error
	ListCategories(ctx context.Context) ([]model.Category, error)
	GetCategory(ctx context.Context, id int64) (*model.Category, error)

	CreateProduct(ctx context.Context, p model.Product) (*model.Product, error)
	UpdateProduct(ctx context.Context, p model.Product) (*model.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
	ListProducts(ctx context.Context) ([]model.Product, error)
	ListProductsByCategory(ctx context.Context, categoryID int64) ([]model.Product, error)
	GetProduct(ctx context.Context, id int64) (*model.Product, error)

	ReserveStock(ctx context.Context, productID, quantity int64) (*model.ReservedLine, error)
	ReleaseStock(ctx context.Context, productID, quantity int64) error

	CreateOrder(ctx context.Context, username string, lines []model.ReservedLine, totalCents int64) (*model.Order, error)
	GetOrdersByUser(ctx context.Context, username string) ([]model.Order, error)
	GetAllOrders(ctx context.Context) ([]model.Order, error)
	GetOrder(ctx context.Context, orderID int64) (*model.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, status model.OrderStatus) (*model.Order, error)
	GetOrdersForFulfillment(ctx context.Context, limit int) ([]repository.OrderShipment, error)
}

// Service содержит бизнес-логику интернет-магазина.
type Service struct {
	repo              Repository
	guard             *auth.Guard
	codec             *token.Codec
	publisher         *events.Publisher
	catalogCache      *cache.Cache
	fulfillmentClient *fulfillment.Client
}

// Options перечисляет необязательные зависимости сервиса.
type Options struct {
	Publisher         *events.Publisher
	CatalogCache      *cache.Cache
	FulfillmentClient *fulfillment.Client
}

// NewService создаёт сервис с указанным репозиторием и кодеком токенов.
func NewService(repo Repository, codec *token.Codec, opts Options) *Service {
	return &Service{
		repo:              repo,
		guard:             auth.NewGuard(),
		codec:             codec,
		publisher:         opts.Publisher,
		catalogCache:      opts.CatalogCache,
		fulfillmentClient: opts.FulfillmentClient,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// RegisterUser регистрирует покупателя и сразу выдаёт ему токен.
func (s *Service) RegisterUser(ctx context.Context, login, password string) (string, error) {
	hashed := hashPassword(login, password)
	if _, err := s.repo.CreateUser(ctx, login, hashed, model.RoleCustomer); err != nil {
		return "", err
	}
	return s.codec.Issue(login, model.RoleCustomer)
}

// IssueToken проверяет логин и пароль и выпускает токен с ролью пользователя.
// Роль фиксируется в токене до истечения срока действия.
func (s *Service) IssueToken(ctx context.Context, login, password string) (string, error) {
	u, err := s.repo.GetUserByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}

	hashed := hashPassword(login, password)
	if hex.EncodeToString(hashed) != hex.EncodeToString(u.PasswordHash) {
		return "", ErrInvalidCredentials
	}

	return s.codec.Issue(u.Login, u.Role)
}

func hashPassword(login, password string) []byte {
	sum := sha256.Sum256([]byte(login + ":" + password))
	return sum[:]
}

// ListCategories возвращает все категории. Публичная операция.
func (s *Service) ListCategories(ctx context.Context) ([]model.Category, error) {
	var cached []model.Category
	if err := s.catalogCache.GetCategories(ctx, &cached); err == nil {
		return cached, nil
	}

	res, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, err
	}

	_ = s.catalogCache.SetCategories(ctx, res)
	return res, nil
}

// CreateCategory создаёт категорию. Только для администратора.
func (s *Service) CreateCategory(ctx context.Context, identity *model.Identity, name string) (*model.Category, error) {
	if err := s.guard.Require(identity, auth.CapWriteCategory); err != nil {
		return nil, err
	}
	if err := validation.ValidateCategoryName(name); err != nil {
		return nil, err
	}

	c, err := s.repo.CreateCategory(ctx, name)
	if err != nil {
		return nil, err
	}

	_ = s.catalogCache.InvalidateCatalog(ctx)
	return c, nil
}

// UpdateCategory переименовывает категорию. Только для администратора.
func (s *Service) UpdateCategory(ctx context.Context, identity *model.Identity, id int64, name string) (*model.Category, error) {
	if err := s.guard.Require(identity, auth.CapWriteCategory); err != nil {
		return nil, err
	}
	if err := validation.ValidateCategoryName(name); err != nil {
		return nil, err
	}

	c, err := s.repo.UpdateCategory(ctx, id, name)
	if err != nil {
		return nil, err
	}

	_ = s.catalogCache.InvalidateCatalog(ctx)
	return c, nil
}

// DeleteCategory удаляет категорию. Только для администратора.
func (s *Service) DeleteCategory(ctx context.Context, identity *model.Identity, id int64) error {
	if err := s.guard.Require(identity, auth.CapWriteCategory); err != nil {
		return err
	}

	if err := s.repo.DeleteCategory(ctx, id); err != nil {
		return err
	}

	_ = s.catalogCache.InvalidateCatalog(ctx)
	return nil
}

// ListProducts возвращает все товары каталога. Публичная операция.
func (s *Service) ListProducts(ctx context.Context) ([]model.Product, error) {
	var cached []model.Product
	if err := s.catalogCache.GetProducts(ctx, &cached); err == nil {
		return cached, nil
	}

	res, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}

	_ = s.catalogCache.SetProducts(ctx, res)
	return res, nil
}

// ListProductsByCategory возвращает товары категории. Публичная операция.
func (s *Service) ListProductsByCategory(ctx context.Context, categoryID int64) ([]model.Product, error) {
	var cached []model.Product
	if err := s.catalogCache.GetProductsByCategory(ctx, categoryID, &cached); err == nil {
		return cached, nil
	}

	res, err := s.repo.ListProductsByCategory(ctx, categoryID)
	if err != nil {
		return nil, err
	}

	_ = s.catalogCache.SetProductsByCategory(ctx, categoryID, res)
	return res, nil
}

// CreateProduct добавляет товар в каталог. Только для администратора.
func (s *Service) CreateProduct(ctx context.Context, identity *model.Identity, p model.Product) (*model.Product, error) {
	if err := s.guard.Require(identity, auth.CapWriteProduct); err != nil {
		return nil, err
	}
	if err := validation.ValidateProduct(p.Name, p.PriceCents, p.Stock, p.CategoryID); err != nil {
		return nil, err
	}

	created, err := s.repo.CreateProduct(ctx, p)
	if err != nil {
		return nil, err
	}

	_ = s.catalogCache.InvalidateCatalog(ctx)
	return created, nil
}

// UpdateProduct обновляет товар каталога. Только для администратора.
// Снимки в уже созданных заказах при этом не меняются.
func (s *Service) UpdateProduct(ctx context.Context, identity *model.Identity, p model.Product) (*model.Product, error) {
	if err := s.guard.Require(identity, auth.CapWriteProduct); err != nil {
		return nil, err
	}
	if err := validation.ValidateProduct(p.Name, p.PriceCents, p.Stock, p.CategoryID); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateProduct(ctx, p)
	if err != nil {
		return nil, err
	}

	_ = s.catalogCache.InvalidateCatalog(ctx)
	return updated, nil
}

// DeleteProduct удаляет товар из каталога. Только для администратора.
func (s *Service) DeleteProduct(ctx context.Context, identity *model.Identity, id int64) error {
	if err := s.guard.Require(identity, auth.CapWriteProduct); err != nil {
		return err
	}

	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}

	_ = s.catalogCache.InvalidateCatalog(ctx)
	return nil
}

// PlaceOrder создаёт заказ покупателя. Позиции резервируются по одной в
// порядке запроса; при любой неудаче уже сделанные резервирования
// откатываются, так что для вызывающего операция атомарна.
func (s *Service) PlaceOrder(ctx context.Context, identity *model.Identity, items []validation.OrderItem) (*model.Order, error) {
	if err := s.guard.Require(identity, auth.CapPlaceOrder); err != nil {
		return nil, err
	}
	if err := validation.ValidateOrderItems(items); err != nil {
		return nil, err
	}

	reserved := make([]model.ReservedLine, 0, len(items))

	for _, it := range items {
		line, err := s.repo.ReserveStock(ctx, it.ProductID, it.Quantity)
		if err != nil {
			s.releaseReserved(ctx, reserved)
			return nil, err
		}
		reserved = append(reserved, *line)
	}

	var totalCents int64
	for _, l := range reserved {
		totalCents += l.PriceCents * l.Quantity
	}

	order, err := s.repo.CreateOrder(ctx, identity.Username, reserved, totalCents)
	if err != nil {
		// Остаток не должен остаться списанным под незафиксированный заказ.
		s.releaseReserved(ctx, reserved)
		return nil, err
	}

	payload := events.OrderCreatedPayload{
		OrderID:    order.ID,
		Username:   order.Username,
		TotalCents: order.TotalCents,
	}
	for _, it := range order.Items {
		payload.Items = append(payload.Items, events.ItemLine{
			ProductID:  it.ProductID,
			Quantity:   it.Quantity,
			PriceCents: it.PriceCents,
		})
	}
	_ = s.publisher.Publish(ctx, order.ID, events.EventOrderCreated, payload)

	return order, nil
}

func (s *Service) releaseReserved(ctx context.Context, reserved []model.ReservedLine) {
	for i := len(reserved) - 1; i >= 0; i-- {
		_ = s.repo.ReleaseStock(ctx, reserved[i].ProductID, reserved[i].Quantity)
	}
}

// GetOrdersByUser возвращает заказы вызывающего покупателя, новые первыми.
func (s *Service) GetOrdersByUser(ctx context.Context, identity *model.Identity) ([]model.Order, error) {
	if err := s.guard.Require(identity, auth.CapViewOwnOrders); err != nil {
		return nil, err
	}
	return s.repo.GetOrdersByUser(ctx, identity.Username)
}

// GetAllOrders возвращает все заказы. Только для администратора.
func (s *Service) GetAllOrders(ctx context.Context, identity *model.Identity) ([]model.Order, error) {
	if err := s.guard.Require(identity, auth.CapViewAllOrders); err != nil {
		return nil, err
	}
	return s.repo.GetAllOrders(ctx)
}

// UpdateOrderStatus перезаписывает статус заказа. Только для администратора.
// Допустим любой известный статус: порядок переходов не контролируется.
func (s *Service) UpdateOrderStatus(ctx context.Context, identity *model.Identity, orderID int64, status model.OrderStatus) (*model.Order, error) {
	if err := s.guard.Require(identity, auth.CapUpdateOrderStatus); err != nil {
		return nil, err
	}

	order, err := s.repo.UpdateOrderStatus(ctx, orderID, status)
	if err != nil {
		return nil, err
	}

	_ = s.publisher.Publish(ctx, order.ID, events.EventOrderStatusUpdated, events.OrderStatusUpdatedPayload{
		OrderID: order.ID,
		Status:  string(order.Status),
	})

	return order, nil
}

// StartFulfillmentUpdates запускает фоновый процесс сверки статусов заказов
// со службой доставки.
func (s *Service) StartFulfillmentUpdates(ctx context.Context) {
	if s.fulfillmentClient == nil {
		return
	}

	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.processFulfillmentBatch(ctx)
			}
		}
	}()
}

func (s *Service) processFulfillmentBatch(ctx context.Context) {
	orders, err := s.repo.GetOrdersForFulfillment(ctx, 100)
	if err != nil {
		return
	}

	for _, o := range orders {
		resp, statusCode, retryAfter, err := s.fulfillmentClient.GetShipment(ctx, o.ID)
		if err != nil {
			continue
		}

		if statusCode == 429 {
			if retryAfter > 0 {
				timer := time.NewTimer(retryAfter)
				select {
				case <-ctx.Done():
					timer.Stop()
					return
				case <-timer.C:
				}
			}
			continue
		}

		if resp == nil {
			continue
		}

		var next model.OrderStatus

		switch resp.Status {
		case fulfillment.ShipmentStatusShipped:
			next = model.OrderStatusShipped
		case fulfillment.ShipmentStatusDelivered:
			next = model.OrderStatusDelivered
		default:
			continue
		}

		if next == o.Status {
			continue
		}

		_, _ = s.repo.UpdateOrderStatus(ctx, o.ID, next)
	}
}
