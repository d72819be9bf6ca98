package httpapi

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/realforestry/hortus-auth/internal/common"
)

// errBadRequest marks a body that failed to bind.
var errBadRequest = fmt.Errorf("%w: malformed request body", common.ErrValidation)

var statusByKind = map[common.Kind]int{
	common.KindConflict:            http.StatusConflict,
	common.KindNotFound:            http.StatusNotFound,
	common.KindInvalidCredentials:  http.StatusUnauthorized,
	common.KindNotVerified:         http.StatusForbidden,
	common.KindInvalidCode:         http.StatusBadRequest,
	common.KindInvalidRefreshToken: http.StatusUnauthorized,
	common.KindUnauthorized:        http.StatusUnauthorized,
	common.KindValidation:          http.StatusBadRequest,
	common.KindInternal:            http.StatusInternalServerError,
}

// StatusFor maps an error to its HTTP status.
func StatusFor(err error) int {
	if status, ok := statusByKind[common.KindOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// abortWithError writes the error envelope. Validation failures carry their
// own message; everything else gets the fixed text for its kind.
func abortWithError(c *gin.Context, err error) {
	kind := common.KindOf(err)
	msg := kind.Message()
	if kind == common.KindValidation {
		msg = err.Error()
	}
	c.AbortWithStatusJSON(StatusFor(err), errorResponse{Error: errorBody{Kind: string(kind), Message: msg}})
}
