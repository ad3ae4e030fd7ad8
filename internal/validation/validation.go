// Package validation содержит функции валидации входных данных.
package validation

import "fmt"

// ValidationError описывает нарушение формы запроса.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// OrderItem — запрошенная позиция заказа до резервирования.
type OrderItem struct {
	ProductID int64
	Quantity  int64
}

// ValidateOrderItems проверяет форму запроса на создание заказа:
// непустой список позиций и положительное количество в каждой.
func ValidateOrderItems(items []OrderItem) error {
	if len(items) == 0 {
		return &ValidationError{Message: "order must contain at least one item"}
	}

	for i, it := range items {
		if it.ProductID <= 0 {
			return &ValidationError{Message: fmt.Sprintf("item %d: product id must be positive", i+1)}
		}
		if it.Quantity <= 0 {
			return &ValidationError{Message: fmt.Sprintf("item %d: quantity must be positive", i+1)}
		}
	}

	return nil
}

// ValidateCategoryName проверяет имя категории.
func ValidateCategoryName(name string) error {
	if name == "" {
		return &ValidationError{Message: "category name must not be empty"}
	}
	return nil
}

// ValidateProduct проверяет поля товара перед записью в каталог.
func ValidateProduct(name string, priceCents, stock, categoryID int64) error {
	if name == "" {
		return &ValidationError{Message: "product name must not be empty"}
	}
	if priceCents < 0 {
		return &ValidationError{Message: "product price must not be negative"}
	}
	if stock < 0 {
		return &ValidationError{Message: "product stock must not be negative"}
	}
	if categoryID <= 0 {
		return &ValidationError{Message: "category id must be positive"}
	}
	return nil
}
