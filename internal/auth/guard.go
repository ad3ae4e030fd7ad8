// Package auth реализует проверку прав доступа по таблице возможностей.
package auth

import (
	"fmt"

	"github.com/mmeshcher/ecommerce-system/internal/model"
)

// Capability — операция API, классифицированная по уровню доступа.
type Capability string

const (
	CapPlaceOrder        Capability = "place-order"
	CapViewOwnOrders     Capability = "view-own-orders"
	CapWriteCategory     Capability = "write-category"
	CapWriteProduct      Capability = "write-product"
	CapViewAllOrders     Capability = "view-all-orders"
	CapUpdateOrderStatus Capability = "update-order-status"
)

// requiredRole — статическая таблица соответствия операций и ролей.
// Публичные операции (просмотр каталога) в таблице отсутствуют: для них
// охранник не вызывается.
var requiredRole = map[Capability]model.Role{
	CapPlaceOrder:        model.RoleCustomer,
	CapViewOwnOrders:     model.RoleCustomer,
	CapWriteCategory:     model.RoleAdmin,
	CapWriteProduct:      model.RoleAdmin,
	CapViewAllOrders:     model.RoleAdmin,
	CapUpdateOrderStatus: model.RoleAdmin,
}

// AccessDeniedError возвращается, когда роль вызывающего не соответствует
// требуемой для операции.
type AccessDeniedError struct {
	Required model.Role
	Actual   string
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("access denied: required role %s, caller is %s", e.Required, e.Actual)
}

// Guard выполняет единообразную проверку прав перед выполнением операций.
type Guard struct{}

// NewGuard создаёт охранника прав доступа.
func NewGuard() *Guard {
	return &Guard{}
}

// Require проверяет, что личность вызывающего имеет роль, требуемую для
// операции. Роли строго эквивалентны: ADMIN не получает прав CUSTOMER.
func (g *Guard) Require(identity *model.Identity, cap Capability) error {
	required, ok := requiredRole[cap]
	if !ok {
		return fmt.Errorf("unknown capability: %q", cap)
	}

	if identity == nil {
		return &AccessDeniedError{Required: required, Actual: "unauthenticated"}
	}

	if identity.Role != required {
		return &AccessDeniedError{Required: required, Actual: string(identity.Role)}
	}

	return nil
}
