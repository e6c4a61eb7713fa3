package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gocrud/beans/di"
)

// MountBeans 在 router 上挂载只读的 Bean 查询接口：
//
//	GET /            所有绑定
//	GET /:name       单个绑定，未注册时 404
func MountBeans(router gin.IRouter, reg *di.Registry) {
	router.GET("", func(c *gin.Context) {
		c.JSON(http.StatusOK, reg.Bindings())
	})
	router.GET("/:name", func(c *gin.Context) {
		name := c.Param("name")
		for _, info := range reg.Bindings() {
			if info.Name == name {
				c.JSON(http.StatusOK, info)
				return
			}
		}
		c.JSON(http.StatusNotFound, gin.H{"error": (&di.BindingNotFoundError{Name: name}).Error()})
	})
}
