package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"tickpump.com/pkg/common"
	"tickpump.com/pkg/logger"
)

func ReqId() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(common.HeaderRequestID)
		if rid == "" {
			rid = common.New()
		}
		c.Set(common.CtxKeyRequestID, rid)
		c.Header(common.HeaderRequestID, rid)
		// request id 同时作为日志的 trace_id
		ctx := context.WithValue(c.Request.Context(), common.CtxKeyRequestID, rid)
		c.Request = c.Request.WithContext(logger.WithTraceID(ctx, rid))
		c.Next()
	}
}
