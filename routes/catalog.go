package routes

import (
	"github.com/gin-gonic/gin"
	catalogControllers "github.com/malini-2707/FarmConnect-sub000/controllers/catalog"
	"github.com/malini-2707/FarmConnect-sub000/middleware"
	"gorm.io/gorm"
)

func SetupCatalogRoutes(r *gin.Engine, db *gorm.DB) {
	catalog := r.Group("/catalog")
	catalog.Use(middleware.ValidateToken)
	{
		catalog.GET("/products/:id", catalogControllers.GetProduct(db))
	}
}
