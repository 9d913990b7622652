package catalogControllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/malini-2707/FarmConnect-sub000/models"
	"gorm.io/gorm"
)

// ErrInsufficientStock means a stock decrement would go negative.
var ErrInsufficientStock = errors.New("insufficient stock")

// GetProduct returns one product by id.
// URL param: /catalog/products/:id
func GetProduct(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		idParam := c.Param("id")
		id, err := strconv.Atoi(idParam)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
			return
		}

		var product models.Product
		if err := db.First(&product, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			} else {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve product"})
			}
			return
		}
		c.JSON(http.StatusOK, product)
	}
}

// DecrementStock atomically reserves qty units of a product. The stock guard
// lives in the WHERE clause so two concurrent orders can never both take the
// last unit.
func DecrementStock(db *gorm.DB, productID uint, qty int) error {
	res := db.Model(&models.Product{}).
		Where("id = ? AND stock >= ?", productID, qty).
		UpdateColumn("stock", gorm.Expr("stock - ?", qty))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInsufficientStock
	}
	return nil
}

// RestoreStock atomically returns qty units reserved by a cancelled order.
func RestoreStock(db *gorm.DB, productID uint, qty int) error {
	return db.Model(&models.Product{}).
		Where("id = ?", productID).
		UpdateColumn("stock", gorm.Expr("stock + ?", qty)).Error
}
