package validation

import (
	"errors"
	"testing"
)

func TestValidateOrderItems(t *testing.T) {
	tests := []struct {
		name    string
		items   []OrderItem
		wantErr bool
	}{
		{
			name:    "empty list",
			items:   nil,
			wantErr: true,
		},
		{
			name:    "zero quantity",
			items:   []OrderItem{{ProductID: 1, Quantity: 0}},
			wantErr: true,
		},
		{
			name:    "negative quantity",
			items:   []OrderItem{{ProductID: 1, Quantity: -2}},
			wantErr: true,
		},
		{
			name:    "non-positive product id",
			items:   []OrderItem{{ProductID: 0, Quantity: 1}},
			wantErr: true,
		},
		{
			name:    "valid single item",
			items:   []OrderItem{{ProductID: 1, Quantity: 3}},
			wantErr: false,
		},
		{
			name: "valid multiple items",
			items: []OrderItem{
				{ProductID: 1, Quantity: 1},
				{ProductID: 2, Quantity: 5},
			},
			wantErr: false,
		},
		{
			name: "second item invalid",
			items: []OrderItem{
				{ProductID: 1, Quantity: 1},
				{ProductID: 2, Quantity: 0},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOrderItems(tt.items)
			if tt.wantErr && err == nil {
				t.Fatalf("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr {
				var ve *ValidationError
				if !errors.As(err, &ve) {
					t.Fatalf("expected ValidationError, got %T", err)
				}
			}
		})
	}
}

func TestValidateProduct(t *testing.T) {
	if err := ValidateProduct("book", 1000, 5, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidateProduct("", 1000, 5, 1); err == nil {
		t.Fatalf("expected error for empty name")
	}
	if err := ValidateProduct("book", -1, 5, 1); err == nil {
		t.Fatalf("expected error for negative price")
	}
	if err := ValidateProduct("book", 1000, -5, 1); err == nil {
		t.Fatalf("expected error for negative stock")
	}
	if err := ValidateProduct("book", 1000, 5, 0); err == nil {
		t.Fatalf("expected error for missing category")
	}
}

func TestValidateCategoryName(t *testing.T) {
	if err := ValidateCategoryName("books"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidateCategoryName(""); err == nil {
		t.Fatalf("expected error for empty name")
	}
}
