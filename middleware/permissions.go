package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yashrajoria/storefront/models"
)

// Permission names an access-controlled capability. Routes declare the
// permission they need; the matrix below is the only place mapping roles to
// capabilities.
type Permission string

const (
	PermCatalogWrite       Permission = "catalog:write"
	PermCatalogDelete      Permission = "catalog:delete"
	PermCartUse            Permission = "cart:use"
	PermOrderOwn           Permission = "order:own"
	PermOrderReadAny       Permission = "order:read_any"
	PermOrderUpdateStatus  Permission = "order:update_status"
	PermOrderUpdatePayment Permission = "order:update_payment"
	PermOrderListAll       Permission = "order:list_all"
	PermOrderNotes         Permission = "order:notes"
	PermOrderRefund        Permission = "order:refund"
	PermOrderHardDelete    Permission = "order:hard_delete"
)

// rolePermissions is the static permission matrix. Per-target refinements
// (which statuses a cashier may set, the manager 30-day listing window)
// live in the order service, not here.
var rolePermissions = map[Permission][]models.Role{
	PermCatalogWrite:       {models.RoleManager, models.RoleAdmin},
	PermCatalogDelete:      {models.RoleAdmin},
	PermCartUse:            {models.RoleCustomer, models.RoleCashier, models.RoleManager, models.RoleAdmin},
	PermOrderOwn:           {models.RoleCustomer, models.RoleCashier, models.RoleManager, models.RoleAdmin},
	PermOrderReadAny:       {models.RoleCashier, models.RoleManager, models.RoleAdmin},
	PermOrderUpdateStatus:  {models.RoleCashier, models.RoleManager, models.RoleAdmin},
	PermOrderUpdatePayment: {models.RoleCashier, models.RoleManager, models.RoleAdmin},
	PermOrderListAll:       {models.RoleManager, models.RoleAdmin},
	PermOrderNotes:         {models.RoleManager, models.RoleAdmin},
	PermOrderRefund:        {models.RoleAdmin},
	PermOrderHardDelete:    {models.RoleAdmin},
}

// HasPermission reports whether role holds perm. Pure function over the
// matrix so it can be tested without HTTP plumbing.
func HasPermission(role models.Role, perm Permission) bool {
	for _, r := range rolePermissions[perm] {
		if r == role {
			return true
		}
	}
	return false
}

// RequirePermission rejects callers whose role does not hold perm. Must run
// after Authenticate.
func RequirePermission(perm Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := RoleFromContext(c)
		if !HasPermission(role, perm) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
			return
		}
		c.Next()
	}
}
