package middleware

// capability.go is the single authorization gate.  Instead of scattering
// role checks across handlers, every mutating operation is named once in
// the capabilities table below and routes declare Require(op).  The gate
// trusts the role claim verified by JWTAuth and performs no authentication
// of its own.

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Roles supplied by the external identity layer.
const (
	RoleAdmin   = "ADMIN"
	RoleTeacher = "TEACHER"
	RoleStudent = "STUDENT"
)

// Operation names guarded by the capability gate.
const (
	OpReserve        = "reservation.create"
	OpCancelOwn      = "reservation.cancel_own"
	OpViewOwn        = "reservation.view_own"
	OpPayClaim       = "payment.claim"
	OpPayCredits     = "payment.credits"
	OpPayCheckout    = "payment.checkout"
	OpConfirmPayment = "payment.confirm"
	OpDeclinePayment = "payment.decline"
	OpPollPayment    = "payment.poll"
	OpMove           = "reservation.move"
	OpComplete       = "reservation.complete"
	OpUnbook         = "reservation.unbook"
	OpManageBlocks   = "blocks.manage"
)

// capabilities maps each operation to the set of roles permitted to
// perform it.  Admins are deliberately enumerated rather than implied so
// the table reads as the full policy.
var capabilities = map[string]map[string]bool{
	OpReserve:        {RoleStudent: true, RoleAdmin: true},
	OpCancelOwn:      {RoleStudent: true, RoleAdmin: true},
	OpViewOwn:        {RoleStudent: true, RoleTeacher: true, RoleAdmin: true},
	OpPayClaim:       {RoleStudent: true, RoleAdmin: true},
	OpPayCredits:     {RoleStudent: true, RoleAdmin: true},
	OpPayCheckout:    {RoleStudent: true, RoleAdmin: true},
	OpConfirmPayment: {RoleAdmin: true},
	OpDeclinePayment: {RoleAdmin: true},
	OpPollPayment:    {RoleAdmin: true},
	OpMove:           {RoleAdmin: true},
	OpComplete:       {RoleTeacher: true, RoleAdmin: true},
	OpUnbook:         {RoleTeacher: true, RoleAdmin: true},
	OpManageBlocks:   {RoleAdmin: true},
}

// Allowed reports whether the role may perform the operation.  Unknown
// operations and unknown roles are denied.
func Allowed(role, op string) bool {
	return capabilities[op][role]
}

// Require returns a middleware enforcing that the authenticated caller's
// role may perform op.  It assumes JWTAuth ran earlier in the chain.
func Require(op string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !Allowed(Role(c), op) {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
