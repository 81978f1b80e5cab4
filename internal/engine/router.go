package engine

import "github.com/gofiber/fiber/v2"

func RegisterRoutes(app *fiber.App, h *Handler) {
	api := app.Group("/api")

	api.Post("/upload", h.Upload)

	api.Get("/:entity/count", h.Count)
	api.Post("/:entity/filter", h.StructuredFilter)
	api.Post("/:entity/nl-filter", h.NLQuery)

	api.Get("/:entity/:id/overview", h.Overview)
	api.Get("/:entity/:id/transaction-volume", h.TransactionVolume)
	api.Get("/:entity/:id/transaction-count", h.TransactionCount)
	api.Get("/:entity/:id/average-transactions", h.AverageTransactions)
	api.Get("/:entity/:id/segmentation", h.Segmentation)
	api.Get("/:entity/:id/customer-segmentation", h.CustomerSegmentation)
	api.Get("/:entity/:id/merchant-segmentation", h.MerchantSegmentation)
	api.Get("/:entity/:id/top-customers", h.TopCustomers)
	api.Get("/:entity/:id/top-merchants", h.TopMerchants)
	api.Get("/:entity/:id/transaction-outliers", h.Outliers)
	api.Get("/:entity/:id/days-between-transactions", h.DaysBetween)
	api.Get("/:entity/:id/export", h.Export)
}
