package main

import (
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/tradebook/tradebook-backend/internal/auth"
	"github.com/tradebook/tradebook-backend/internal/client"
	"github.com/tradebook/tradebook-backend/internal/dashboard"
	"github.com/tradebook/tradebook-backend/internal/inventory"
	"github.com/tradebook/tradebook-backend/internal/ledger"
	"github.com/tradebook/tradebook-backend/internal/order"
	"github.com/tradebook/tradebook-backend/internal/product"
	"github.com/tradebook/tradebook-backend/internal/purchase"
	"github.com/tradebook/tradebook-backend/internal/sale"
	"github.com/tradebook/tradebook-backend/internal/user"
	"github.com/tradebook/tradebook-backend/internal/vendor"
	"github.com/tradebook/tradebook-backend/pkg/database"
	"github.com/tradebook/tradebook-backend/pkg/middleware"
	"github.com/tradebook/tradebook-backend/pkg/validate"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using system environment variables")
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})

	db, err := database.Connect()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		logrus.WithError(err).Fatal("Failed to run migrations")
	}
	if err := seedAdmin(db); err != nil {
		logrus.WithError(err).Fatal("Failed to seed admin account")
	}

	validate.Register()

	r := gin.Default()
	r.Use(middleware.CORS())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	{
		// Auth routes (public)
		authHandler := auth.NewHandler(db)
		v1.POST("/auth/login", authHandler.Login)
		v1.POST("/auth/refresh", authHandler.RefreshToken)

		// Protected routes
		protected := v1.Group("")
		protected.Use(middleware.AuthRequired())
		{
			protected.GET("/auth/me", authHandler.GetMe)

			// Dashboard routes
			dashboardHandler := dashboard.NewHandler(db)
			protected.GET("/dashboard/stats", dashboardHandler.GetStats)
			protected.GET("/dashboard/recent-sales", dashboardHandler.GetRecentSales)

			// Product routes
			productHandler := product.NewHandler(db)
			protected.GET("/products", productHandler.List)
			protected.POST("/products", middleware.RequireRole(database.RoleAdmin, database.RoleManager), productHandler.Create)
			protected.GET("/products/:id", productHandler.Get)
			protected.PUT("/products/:id", middleware.RequireRole(database.RoleAdmin, database.RoleManager), productHandler.Update)
			protected.PATCH("/products/:id/toggle", middleware.RequireRole(database.RoleAdmin, database.RoleManager), productHandler.ToggleActive)

			// Client routes
			clientHandler := client.NewHandler(db)
			protected.GET("/clients", clientHandler.List)
			protected.POST("/clients", clientHandler.Create)
			protected.GET("/clients/:id", clientHandler.Get)
			protected.PUT("/clients/:id", clientHandler.Update)
			protected.PATCH("/clients/:id/toggle", middleware.RequireRole(database.RoleAdmin, database.RoleManager), clientHandler.ToggleActive)
			protected.GET("/clients/:id/stats", clientHandler.GetStats)

			// Vendor routes
			vendorHandler := vendor.NewHandler(db)
			protected.GET("/vendors", vendorHandler.List)
			protected.POST("/vendors", vendorHandler.Create)
			protected.GET("/vendors/:id", vendorHandler.Get)
			protected.PUT("/vendors/:id", vendorHandler.Update)
			protected.PATCH("/vendors/:id/toggle", middleware.RequireRole(database.RoleAdmin, database.RoleManager), vendorHandler.ToggleActive)

			// Order routes
			orderHandler := order.NewHandler(db)
			protected.GET("/orders", orderHandler.List)
			protected.POST("/orders", orderHandler.Create)
			protected.GET("/orders/:id", orderHandler.Get)
			protected.POST("/orders/:id/convert", orderHandler.Convert)
			protected.POST("/orders/:id/cancel", orderHandler.Cancel)

			// Purchase routes
			purchaseHandler := purchase.NewHandler(db)
			protected.GET("/purchases", purchaseHandler.List)
			protected.POST("/purchases", purchaseHandler.Create)
			protected.GET("/purchases/demand", purchaseHandler.Demand)
			protected.GET("/purchases/:id", purchaseHandler.Get)
			protected.PUT("/purchases/:id", purchaseHandler.Update)
			protected.DELETE("/purchases/:id", purchaseHandler.Delete)
			protected.POST("/purchases/:id/deliver", purchaseHandler.Deliver)

			// Sale routes
			saleHandler := sale.NewHandler(db)
			protected.GET("/sales", saleHandler.List)
			protected.POST("/sales", saleHandler.Create)
			protected.GET("/sales/:id", saleHandler.Get)
			protected.POST("/sales/:id/deliver", saleHandler.MarkDelivered)
			protected.PUT("/sales/:id/invoice-meta", saleHandler.SetInvoiceMeta)
			protected.GET("/sales/:id/invoice", saleHandler.Invoice)

			// Ledger routes
			ledgerHandler := ledger.NewHandler(db)
			protected.GET("/payments", ledgerHandler.ListPayments)
			protected.POST("/payments", ledgerHandler.CreatePayment)
			protected.GET("/ledger/receivables", ledgerHandler.Receivables)
			protected.GET("/ledger/payables", ledgerHandler.Payables)

			// Inventory routes
			inventoryHandler := inventory.NewHandler(db)
			protected.GET("/inventory", inventoryHandler.GetStock)
			protected.GET("/inventory/availability", inventoryHandler.GetAvailability)
			protected.GET("/inventory/summary", inventoryHandler.GetSummary)
			protected.GET("/inventory/export", inventoryHandler.ExportExcel)

			// Staff routes
			userHandler := user.NewHandler(db)
			protected.GET("/staff", middleware.RequireRole(database.RoleAdmin, database.RoleManager), userHandler.ListStaff)
			protected.POST("/staff", middleware.RequireRole(database.RoleAdmin), userHandler.CreateStaff)
			protected.PUT("/staff/:id", middleware.RequireRole(database.RoleAdmin), userHandler.UpdateStaff)
			protected.DELETE("/staff/:id", middleware.RequireRole(database.RoleAdmin), userHandler.DeactivateStaff)
			protected.GET("/staff/logs", middleware.RequireRole(database.RoleAdmin, database.RoleManager), userHandler.GetActivityLogs)
		}
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	logrus.WithField("port", port).Info("Server starting")
	if err := r.Run(":" + port); err != nil {
		logrus.WithError(err).Fatal("Failed to start server")
	}
}

// seedAdmin creates the first admin account from ADMIN_EMAIL and
// ADMIN_PASSWORD when the users table is empty. There is no
// self-registration; staff are provisioned by an admin.
func seedAdmin(db *gorm.DB) error {
	var count int64
	if err := db.Model(&database.User{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	if email == "" || password == "" {
		logrus.Warn("No users exist and ADMIN_EMAIL/ADMIN_PASSWORD not set, skipping admin seed")
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	admin := database.User{
		Email:        email,
		PasswordHash: string(hash),
		Name:         "Administrator",
		Role:         database.RoleAdmin,
		IsActive:     true,
	}
	if err := db.Create(&admin).Error; err != nil {
		return err
	}
	logrus.WithField("email", email).Info("Seeded initial admin account")
	return nil
}
