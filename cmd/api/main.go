package main

import (
	"log"
	"os"

	_ "patentpay/api/swagger" // swagger docs
	"patentpay/internal/bank"
	"patentpay/internal/database"
	"patentpay/internal/handler"
	"patentpay/internal/middleware"
	"patentpay/internal/model"
	"patentpay/internal/repository"
	"patentpay/internal/service"
	"patentpay/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// @title           Tax Patent Payment API
// @version         1.0
// @description     Registers tax patents and settles them through an external bank provider.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := godotenv.Load("configs/.env"); err != nil {
		log.Println("No configs/.env file found or error loading it")
	}

	dsn := "postgres://" + envOr("DB_USER", "postgres") + ":" + envOr("DB_PASSWORD", "postgres") +
		"@" + envOr("DB_HOST", "localhost") + ":" + envOr("DB_PORT", "5432") +
		"/" + envOr("DB_NAME", "postgres") + "?sslmode=" + envOr("DB_SSLMODE", "disable")

	db, err := database.NewConnection(dsn)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	log.Println("Connected to PostgreSQL successfully.")

	// Bank provider configuration — explicit struct, no ambient globals
	bankCfg := bank.Config{
		BaseURL:       envOr("BANK_API_URL", "https://api.bank.local"),
		APIToken:      os.Getenv("BANK_API_TOKEN"),
		CallbackURL:   envOr("BANK_CALLBACK_URL", "http://localhost:8080/api/bank/callback"),
		WebhookSecret: os.Getenv("BANK_WEBHOOK_SECRET"),
	}
	bankClient := bank.NewClient(bankCfg)
	verifier := bank.NewVerifier(bankCfg.WebhookSecret)

	// Set up WebSocket Hub
	wsHub := websocket.NewHub()
	go wsHub.Run()

	// Set up dependencies (Repository -> Service -> Handler)
	txManager := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	patentRepo := repository.NewPatentRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	authService := service.NewAuthService(userRepo)
	patentService := service.NewPatentService(patentRepo, auditRepo)
	paymentService := service.NewPaymentService(patentRepo, paymentRepo, auditRepo, txManager, bankClient, wsHub)
	reconcileService := service.NewReconcileService(paymentRepo, patentRepo, auditRepo, txManager,
		func(payment *model.Payment, outcome service.Outcome) {
			eventType := websocket.EventPaymentSettled
			status := model.PaymentStatusPaid
			if outcome != service.OutcomeSettled {
				eventType = websocket.EventPaymentFailed
				status = model.PaymentStatusFailed
			}
			wsHub.BroadcastEvent(websocket.PaymentEvent{
				Type:      eventType,
				PaymentID: payment.ID.String(),
				PatentID:  payment.PatentID.String(),
				Status:    status,
			})
		})
	auditService := service.NewAuditService(auditRepo)

	// Initialize Handlers
	authHandler := handler.NewAuthHandler(authService)
	patentHandler := handler.NewPatentHandler(patentService, paymentService)
	callbackHandler := handler.NewCallbackHandler(verifier, reconcileService)
	auditHandler := handler.NewAuditHandler(auditService)

	// Set up Gin Router
	router := gin.Default()

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173"}
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", "X-Signature"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "OK"})
	})

	// WebSocket endpoint for payment lifecycle events
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, middleware.GetJWTSecret())
	})

	// Register API Routes
	authHandler.RegisterRoutes(router.Group(""))
	patentHandler.RegisterRoutes(router.Group(""))
	callbackHandler.RegisterRoutes(router.Group(""))
	auditHandler.RegisterRoutes(router.Group(""))

	port := envOr("PORT", "8080")

	log.Printf("Server listening on :%s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
