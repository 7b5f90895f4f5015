// handlers/purchase_routes.go
package handlers

import (
	"context"
	"time"

	"pixel-asset-store/middleware"
	"pixel-asset-store/services"
	"pixel-asset-store/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// Routes bundles what SetupPurchaseRoutes mounts.
type Routes struct {
	Purchases  *services.PurchaseService
	Downloads  *services.DownloadService
	Reconciler *services.Reconciler
	Store      storage.Store
	// AdminToken guards /admin; the group is not mounted when empty.
	AdminToken string
	Log        logrus.FieldLogger
}

func SetupPurchaseRoutes(app *fiber.App, r Routes) {
	// Storefront API, open to the browser
	api := app.Group("/api")
	api.Post("/purchase", r.Purchases.RecordPurchase)
	api.Get("/purchase", r.Purchases.CheckPurchase)
	api.Get("/download", r.Downloads.Download)

	app.Get("/healthz", healthHandler(r.Store))

	if r.AdminToken != "" && r.Reconciler != nil {
		admin := app.Group("/admin", middleware.AdminAuthMiddleware(r.AdminToken, r.Log))
		admin.Post("/reconcile", r.Reconciler.RunHandler)
	}
}

func healthHandler(store storage.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded"})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	}
}
