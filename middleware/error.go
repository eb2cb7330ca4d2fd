package middleware

import (
	"github.com/BerniceZTT/pipeline_end/utils"

	"github.com/gin-gonic/gin"
)

// ErrorHandler 处理控制器通过 c.Error 登记但未写出的错误
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 先执行后续处理
		c.Next()

		// 已写出响应或没有错误时不处理
		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}
		utils.HandleError(c, c.Errors.Last().Err)
	}
}
