// Package model содержит доменные сущности интернет-магазина.
package model

import (
	"fmt"
	"time"
)

// Role описывает роль пользователя в системе.
type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleCustomer Role = "CUSTOMER"
)

// ParseRole преобразует строку в роль, отклоняя неизвестные значения.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleCustomer:
		return RoleCustomer, nil
	}
	return "", fmt.Errorf("unknown role: %q", s)
}

// Identity представляет проверенную личность вызывающего запроса.
// Роль зафиксирована в момент выдачи токена и не перечитывается из БД.
type Identity struct {
	Username string
	Role     Role
}

// User представляет зарегистрированного пользователя магазина.
type User struct {
	ID           int64
	Login        string
	PasswordHash []byte
	Role         Role
	CreatedAt    time.Time
}

// Category описывает категорию товаров.
type Category struct {
	ID   int64
	Name string
}

// Product описывает товар каталога. Цена хранится в копейках.
type Product struct {
	ID          int64
	Name        string
	Description string
	PriceCents  int64
	Stock       int64
	CategoryID  int64
}

// ReservedLine — снимок товара, зафиксированный атомарным резервированием
// остатка. Имя и цена замораживаются на момент заказа.
type ReservedLine struct {
	ProductID   int64
	ProductName string
	PriceCents  int64
	Quantity    int64
}

// OrderStatus описывает статус обработки заказа.
type OrderStatus string

const (
	OrderStatusCreated   OrderStatus = "CREATED"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusShipped   OrderStatus = "SHIPPED"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// ParseOrderStatus преобразует строку в статус заказа.
func ParseOrderStatus(s string) (OrderStatus, error) {
	switch OrderStatus(s) {
	case OrderStatusCreated, OrderStatusPaid, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled:
		return OrderStatus(s), nil
	}
	return "", fmt.Errorf("unknown order status: %q", s)
}

// OrderItem — позиция заказа со снимком имени и цены товара.
type OrderItem struct {
	ProductID   int64
	ProductName string
	PriceCents  int64
	Quantity    int64
}

// Order описывает заказ пользователя. Состав и сумма неизменяемы после
// создания, меняется только статус.
type Order struct {
	ID         int64
	Username   string
	Status     OrderStatus
	CreatedAt  time.Time
	Items      []OrderItem
	TotalCents int64
}
