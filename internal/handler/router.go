package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/barbartender/bartender/internal/middleware"
)

type RouterDeps struct {
	Auth          *AuthHandler
	Products      *ProductHandler
	Archives      *ArchiveHandler
	JWTSecret     []byte
	RatePerMinute int
	RateBurst     int
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimit(deps.RatePerMinute, deps.RateBurst))
	authGroup.POST("/register", deps.Auth.Register)
	authGroup.POST("/verify", deps.Auth.Verify)
	authGroup.POST("/resend", deps.Auth.Resend)
	authGroup.POST("/login", deps.Auth.Login)

	productGroup := api.Group("/products")
	productGroup.Use(middleware.JWTAuth(deps.JWTSecret))
	productGroup.GET("", deps.Products.List)
	productGroup.POST("", deps.Products.Create)
	productGroup.PUT("/:id", deps.Products.Update)
	productGroup.POST("/delete", deps.Products.DeleteSelected)
	productGroup.GET("/categories", deps.Products.Categories)
	productGroup.POST("/import", deps.Products.Import)
	productGroup.GET("/imports/:key", deps.Archives.Download)
	productGroup.DELETE("", deps.Products.DeleteAll)
	productGroup.DELETE("/:id", deps.Products.Delete)
}
