package auth

import (
	"errors"
	"testing"

	"github.com/mmeshcher/ecommerce-system/internal/model"
)

func TestRequire_MatchingRole(t *testing.T) {
	g := NewGuard()

	customer := &model.Identity{Username: "alice", Role: model.RoleCustomer}
	if err := g.Require(customer, CapPlaceOrder); err != nil {
		t.Fatalf("customer place-order error: %v", err)
	}

	admin := &model.Identity{Username: "root", Role: model.RoleAdmin}
	if err := g.Require(admin, CapViewAllOrders); err != nil {
		t.Fatalf("admin view-all-orders error: %v", err)
	}
}

func TestRequire_WrongRole(t *testing.T) {
	g := NewGuard()

	tests := []struct {
		name     string
		identity *model.Identity
		cap      Capability
		required model.Role
	}{
		{
			name:     "customer on admin operation",
			identity: &model.Identity{Username: "alice", Role: model.RoleCustomer},
			cap:      CapUpdateOrderStatus,
			required: model.RoleAdmin,
		},
		{
			name:     "admin on customer operation",
			identity: &model.Identity{Username: "root", Role: model.RoleAdmin},
			cap:      CapPlaceOrder,
			required: model.RoleCustomer,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.Require(tt.identity, tt.cap)

			var denied *AccessDeniedError
			if !errors.As(err, &denied) {
				t.Fatalf("expected AccessDeniedError, got %v", err)
			}
			if denied.Required != tt.required {
				t.Fatalf("required = %s, want %s", denied.Required, tt.required)
			}
			if denied.Actual != string(tt.identity.Role) {
				t.Fatalf("actual = %s, want %s", denied.Actual, tt.identity.Role)
			}
		})
	}
}

func TestRequire_Unauthenticated(t *testing.T) {
	g := NewGuard()

	err := g.Require(nil, CapViewOwnOrders)

	var denied *AccessDeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("expected AccessDeniedError, got %v", err)
	}
	if denied.Actual != "unauthenticated" {
		t.Fatalf("actual = %q, want unauthenticated", denied.Actual)
	}
}

func TestRequire_UnknownCapability(t *testing.T) {
	g := NewGuard()

	id := &model.Identity{Username: "alice", Role: model.RoleCustomer}
	if err := g.Require(id, Capability("drop-database")); err == nil {
		t.Fatalf("expected error for unknown capability")
	}
}
