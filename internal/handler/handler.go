// Package handler содержит HTTP-обработчики API интернет-магазина.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/ecommerce-system/internal/auth"
	"github.com/mmeshcher/ecommerce-system/internal/middleware"
	"github.com/mmeshcher/ecommerce-system/internal/model"
	"github.com/mmeshcher/ecommerce-system/internal/repository"
	"github.com/mmeshcher/ecommerce-system/internal/service"
	"github.com/mmeshcher/ecommerce-system/internal/validation"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, login, password string) (string, error)
	IssueToken(ctx context.Context, login, password string) (string, error)

	ListCategories(ctx context.Context) ([]model.Category, error)
	CreateCategory(ctx context.Context, identity *model.Identity, name string) (*model.Category, error)
	UpdateCategory(ctx context.Context, identity *model.Identity, id int64, name string) (*model.Category, error)
	DeleteCategory(ctx context.Context, identity *model.Identity, id int64) error

	ListProducts(ctx context.Context) ([]model.Product, error)
	ListProductsByCategory(ctx context.Context, categoryID int64) ([]model.Product, error)
	CreateProduct(ctx context.Context, identity *model.Identity, p model.Product) (*model.Product, error)
	UpdateProduct(ctx context.Context, identity *model.Identity, p model.Product) (*model.Product, error)
	DeleteProduct(ctx context.Context, identity *model.Identity, id int64) error

	PlaceOrder(ctx context.Context, identity *model.Identity, items []validation.OrderItem) (*model.Order, error)
	GetOrdersByUser(ctx context.Context, identity *model.Identity) ([]model.Order, error)
	GetAllOrders(ctx context.Context, identity *model.Identity) ([]model.Order, error)
	UpdateOrderStatus(ctx context.Context, identity *model.Identity, orderID int64, status model.OrderStatus) (*model.Order, error)
}

// Handler реализует HTTP-обработчики API интернет-магазина.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, authMW *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: authMW,
	}
}

// respondError переводит доменные ошибки в HTTP-статусы на границе API.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		denied       *auth.AccessDeniedError
		invalid      *validation.ValidationError
		insufficient *repository.InsufficientStockError
	)

	switch {
	case errors.As(err, &denied):
		http.Error(w, denied.Error(), http.StatusForbidden)
	case errors.As(err, &invalid):
		http.Error(w, invalid.Error(), http.StatusBadRequest)
	case errors.As(err, &insufficient):
		http.Error(w, insufficient.Error(), http.StatusConflict)
	case errors.Is(err, repository.ErrCategoryExists),
		errors.Is(err, repository.ErrUserExists):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, repository.ErrCategoryNotFound),
		errors.Is(err, repository.ErrProductNotFound),
		errors.Is(err, repository.ErrOrderNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, service.ErrInvalidCredentials):
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
	default:
		h.logger.Error("internal error",
			zap.Error(err),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
		)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response", zap.Error(err))
	}
}

func identityFromRequest(r *http.Request) *model.Identity {
	id, ok := middleware.GetIdentityFromContext(r.Context())
	if !ok {
		return nil
	}
	return id
}

func urlParamInt64(r *http.Request, name string) (int64, bool) {
	v, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

func centsToPrice(cents int64) float64 {
	return float64(cents) / 100
}

func priceToCents(price float64) int64 {
	return int64(math.Round(price * 100))
}

type credentialsRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// Register регистрирует покупателя и возвращает токен.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Login == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	tok, err := h.service.RegisterUser(r.Context(), req.Login, req.Password)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, tokenResponse{Token: tok})
}

// IssueToken выпускает токен по логину и паролю.
func (h *Handler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Login == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	tok, err := h.service.IssueToken(r.Context(), req.Login, req.Password)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, tokenResponse{Token: tok})
}

type categoryRequest struct {
	Name string `json:"name"`
}

type categoryResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ListCategories возвращает все категории. Публичная операция.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	resp := make([]categoryResponse, 0, len(categories))
	for _, c := range categories {
		resp = append(resp, categoryResponse{ID: c.ID, Name: c.Name})
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// CreateCategory создаёт категорию. Только для администратора.
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	c, err := h.service.CreateCategory(r.Context(), identityFromRequest(r), req.Name)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, categoryResponse{ID: c.ID, Name: c.Name})
}

// UpdateCategory переименовывает категорию. Только для администратора.
func (h *Handler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamInt64(r, "id")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	c, err := h.service.UpdateCategory(r.Context(), identityFromRequest(r), id, req.Name)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, categoryResponse{ID: c.ID, Name: c.Name})
}

// DeleteCategory удаляет категорию. Только для администратора.
func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamInt64(r, "id")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.DeleteCategory(r.Context(), identityFromRequest(r), id); err != nil {
		h.respondError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type productRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Stock       int64   `json:"stock"`
	CategoryID  int64   `json:"category_id"`
}

type productResponse struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Stock       int64   `json:"stock"`
	CategoryID  int64   `json:"category_id"`
}

func toProductResponse(p model.Product) productResponse {
	return productResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       centsToPrice(p.PriceCents),
		Stock:       p.Stock,
		CategoryID:  p.CategoryID,
	}
}

// ListProducts возвращает все товары. Публичная операция.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListProducts(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	resp := make([]productResponse, 0, len(products))
	for _, p := range products {
		resp = append(resp, toProductResponse(p))
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// ListProductsByCategory возвращает товары категории. Публичная операция.
func (h *Handler) ListProductsByCategory(w http.ResponseWriter, r *http.Request) {
	categoryID, ok := urlParamInt64(r, "categoryID")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	products, err := h.service.ListProductsByCategory(r.Context(), categoryID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	resp := make([]productResponse, 0, len(products))
	for _, p := range products {
		resp = append(resp, toProductResponse(p))
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// CreateProduct добавляет товар в каталог. Только для администратора.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	p, err := h.service.CreateProduct(r.Context(), identityFromRequest(r), model.Product{
		Name:        req.Name,
		Description: req.Description,
		PriceCents:  priceToCents(req.Price),
		Stock:       req.Stock,
		CategoryID:  req.CategoryID,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, toProductResponse(*p))
}

// UpdateProduct обновляет товар каталога. Только для администратора.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamInt64(r, "id")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	p, err := h.service.UpdateProduct(r.Context(), identityFromRequest(r), model.Product{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		PriceCents:  priceToCents(req.Price),
		Stock:       req.Stock,
		CategoryID:  req.CategoryID,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, toProductResponse(*p))
}

// DeleteProduct удаляет товар из каталога. Только для администратора.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamInt64(r, "id")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.DeleteProduct(r.Context(), identityFromRequest(r), id); err != nil {
		h.respondError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type orderItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

type orderRequest struct {
	Items []orderItemRequest `json:"items"`
}

type orderItemResponse struct {
	ProductID   int64   `json:"product_id"`
	ProductName string  `json:"product_name"`
	Price       float64 `json:"price"`
	Quantity    int64   `json:"quantity"`
}

type orderResponse struct {
	ID        int64               `json:"id"`
	Username  string              `json:"username"`
	Status    string              `json:"status"`
	CreatedAt string              `json:"created_at"`
	Items     []orderItemResponse `json:"items"`
	Total     float64             `json:"total"`
}

func toOrderResponse(o model.Order) orderResponse {
	resp := orderResponse{
		ID:        o.ID,
		Username:  o.Username,
		Status:    string(o.Status),
		CreatedAt: o.CreatedAt.Format(time.RFC3339),
		Items:     make([]orderItemResponse, 0, len(o.Items)),
		Total:     centsToPrice(o.TotalCents),
	}

	for _, it := range o.Items {
		resp.Items = append(resp.Items, orderItemResponse{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Price:       centsToPrice(it.PriceCents),
			Quantity:    it.Quantity,
		})
	}

	return resp
}

// PlaceOrder создаёт заказ текущего покупателя.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	items := make([]validation.OrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, validation.OrderItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
		})
	}

	order, err := h.service.PlaceOrder(r.Context(), identityFromRequest(r), items)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, toOrderResponse(*order))
}

// GetMyOrders возвращает заказы текущего покупателя.
func (h *Handler) GetMyOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.GetOrdersByUser(r.Context(), identityFromRequest(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, toOrderResponse(o))
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// GetAllOrders возвращает все заказы. Только для администратора.
func (h *Handler) GetAllOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.GetAllOrders(r.Context(), identityFromRequest(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, toOrderResponse(o))
	}

	h.respondJSON(w, http.StatusOK, resp)
}

type statusUpdateRequest struct {
	Status string `json:"status"`
}

// UpdateOrderStatus перезаписывает статус заказа. Только для администратора.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamInt64(r, "id")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req statusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	status, err := model.ParseOrderStatus(req.Status)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	order, err := h.service.UpdateOrderStatus(r.Context(), identityFromRequest(r), id, status)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, toOrderResponse(*order))
}
