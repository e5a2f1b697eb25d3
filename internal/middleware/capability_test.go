package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowed(t *testing.T) {
	// students book and pay but never adjudicate payments
	assert.True(t, Allowed(RoleStudent, OpReserve))
	assert.True(t, Allowed(RoleStudent, OpPayClaim))
	assert.False(t, Allowed(RoleStudent, OpConfirmPayment))
	assert.False(t, Allowed(RoleStudent, OpMove))

	// teachers complete and unbook lessons but do not manage blocks
	assert.True(t, Allowed(RoleTeacher, OpComplete))
	assert.True(t, Allowed(RoleTeacher, OpUnbook))
	assert.False(t, Allowed(RoleTeacher, OpManageBlocks))
	assert.False(t, Allowed(RoleTeacher, OpDeclinePayment))

	// admins hold every adjudication capability
	assert.True(t, Allowed(RoleAdmin, OpConfirmPayment))
	assert.True(t, Allowed(RoleAdmin, OpDeclinePayment))
	assert.True(t, Allowed(RoleAdmin, OpMove))
	assert.True(t, Allowed(RoleAdmin, OpManageBlocks))

	// unknown roles and unknown operations are denied
	assert.False(t, Allowed("", OpReserve))
	assert.False(t, Allowed("OWNER", OpReserve))
	assert.False(t, Allowed(RoleAdmin, "no.such.op"))
}

func TestRequire(t *testing.T) {
	e := echo.New()
	handler := func(c echo.Context) error { return c.NoContent(http.StatusOK) }

	run := func(role string, op string) int {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		if role != "" {
			c.Set("role", role)
		}
		err := Require(op)(handler)(c)
		require.NoError(t, err)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, run(RoleAdmin, OpConfirmPayment))
	assert.Equal(t, http.StatusForbidden, run(RoleStudent, OpConfirmPayment))
	assert.Equal(t, http.StatusForbidden, run("", OpReserve))
}
