package main

import (
	"fmt"
	"log"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"secure-ehr-gateway/internal/audit"
	"secure-ehr-gateway/internal/completeness"
	"secure-ehr-gateway/internal/config"
	"secure-ehr-gateway/internal/credential"
	"secure-ehr-gateway/internal/integrity"
	"secure-ehr-gateway/internal/keyring"
	"secure-ehr-gateway/internal/manifest"
	"secure-ehr-gateway/internal/models"
	"secure-ehr-gateway/internal/routes"
	"secure-ehr-gateway/internal/sensitive"
	"secure-ehr-gateway/internal/service"
	"secure-ehr-gateway/internal/storage"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Fatalf("Error loading .env file: %v", err)
	}

	// Initialize configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	// Derive all cryptographic subkeys once; storage never sees any of them.
	ring, err := keyring.New(cfg.MasterKey)
	if err != nil {
		log.Fatalf("Error initializing keyring: %v", err)
	}
	defer ring.Zero()

	// Create a DatabaseConfig for models
	modelDbConfig := models.DatabaseConfig{
		DSN: cfg.Database.DSN,
	}

	// Initialize database connection
	db, err := models.InitDB(modelDbConfig)
	if err != nil {
		log.Fatalf("Error connecting to database: %v", err)
	}
	gateway := storage.NewGateway(db)

	// Trusted manifest cache: Redis when configured, in-process otherwise.
	var cache manifest.Cache
	if client := manifest.NewRedisClient(); client != nil {
		cache = manifest.NewRedisCache(client)
	} else {
		log.Println("Redis not configured, using in-process manifest cache")
		cache = manifest.NewMemoryCache()
	}

	credentials := credential.NewManager(gateway, cfg.KDFIterations)
	patients := service.NewPatientService(
		gateway,
		integrity.NewSigner(ring.IntegrityKey()),
		completeness.NewChain(ring.ChainKey()),
		mustCipher(ring),
		sensitive.NewEncoder(ring.OrderKey()),
		cache,
		audit.NewPublisher(),
		cfg.BucketWidthKg,
	)

	// Initialize Gin router
	router := gin.Default()

	// Configure CORS
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Origin}
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	router.Use(cors.New(corsConfig))

	// Set up routes
	routes.SetupRoutes(router, credentials, patients, cfg)

	// Start server
	serverAddr := fmt.Sprintf(":%s", cfg.Port)
	fmt.Printf("Server running on port %s\n", cfg.Port)
	if err := router.Run(serverAddr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func mustCipher(ring *keyring.Ring) *sensitive.Cipher {
	cipher, err := sensitive.NewCipher(ring.SensitiveKey())
	if err != nil {
		log.Fatalf("Error initializing field cipher: %v", err)
	}
	return cipher
}
