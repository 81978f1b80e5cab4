package main

import (
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/joho/godotenv"
	jsoniter "github.com/json-iterator/go"

	"paylens-backend/internal/config"
	"paylens-backend/internal/dataset"
	"paylens-backend/internal/engine"
	"paylens-backend/internal/llm"
	"paylens-backend/internal/metadata"
	"paylens-backend/internal/storage"
)

func main() {
	// 1. Load environment and config
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment as-is")
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Printf("Config loaded (port: %d, dataset: %s)", cfg.Server.Port, cfg.Data.CSVPath())

	// 2. Dataset store
	store := dataset.NewStore(cfg.Data.CSVPath())
	if cfg.Data.AutoReload {
		if rows, err := store.Load(); err != nil {
			log.Printf("WARN: No dataset loaded at startup: %v", err)
		} else {
			log.Printf("Dataset loaded (%d rows)", rows)
		}
	}

	// 3. Entity registry
	reg := metadata.NewRegistry()

	// 4. Model client
	provider := llm.NewClient(cfg.Model.BaseURL, cfg.Model.APIKey, cfg.Model.Name)

	// 5. Segmenters from configured band predicates
	customerSeg, err := engine.NewSegmenter(cfg.Analytics.Segmentation.Customer.High, cfg.Analytics.Segmentation.Customer.Mid)
	if err != nil {
		log.Fatalf("Failed to compile customer segmentation bands: %v", err)
	}
	merchantSeg, err := engine.NewSegmenter(cfg.Analytics.Segmentation.Merchant.High, cfg.Analytics.Segmentation.Merchant.Mid)
	if err != nil {
		log.Fatalf("Failed to compile merchant segmentation bands: %v", err)
	}
	defaultSeg, err := engine.NewSegmenter(cfg.Analytics.Segmentation.Default.High, cfg.Analytics.Segmentation.Default.Mid)
	if err != nil {
		log.Fatalf("Failed to compile default segmentation bands: %v", err)
	}

	// 6. Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: engine.ErrorHandler,
		JSONEncoder:  jsoniter.Marshal,
		JSONDecoder:  jsoniter.Unmarshal,
	})
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))
	app.Use(requestid.New())
	app.Use(logger.New(logger.Config{
		Format: "${time} ${status} ${method} ${path} ${latency}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.CORSOrigins,
	}))

	// 7. Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// 8. Register API routes
	handler := engine.NewHandler(store, reg, provider, storage.NewStaging(cfg.Data.StagingDir), engine.Options{
		OutlierStdMultiplier: cfg.Analytics.OutlierStdMultiplier,
		ModelTimeout:         cfg.Model.Timeout(),
		CustomerSegments:     customerSeg,
		MerchantSegments:     merchantSeg,
		DefaultSegments:      defaultSeg,
	})
	engine.RegisterRoutes(app, handler)

	// 9. Start server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("Starting server on %s", addr)
	log.Fatal(app.Listen(addr))
}
