package httputil

import "github.com/gin-gonic/gin"

// IHttpHandler is the registration contract every HTTP handler
// implements. Handlers mount read routes on the public group and, when
// they expose snapshot refresh operations, write routes on the
// token-gated admin group.
type IHttpHandler interface {
	Root() string
	SetRoutes(pub *gin.RouterGroup, admin *gin.RouterGroup)
}
