package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"pixel-asset-store/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// AssetSource opens the archive of a product. A missing archive is reported
// as utils.ErrAssetNotFound; size is -1 when unknown.
type AssetSource interface {
	Open(ctx context.Context, productID string) (io.ReadCloser, int64, error)
}

// DownloadService streams product archives to wallets holding an entitlement.
type DownloadService struct {
	Purchases *PurchaseService
	Assets    AssetSource
	Log       logrus.FieldLogger
}

func NewDownloadService(purchases *PurchaseService, assets AssetSource, log logrus.FieldLogger) *DownloadService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &DownloadService{
		Purchases: purchases,
		Assets:    assets,
		Log:       log.WithField("component", "download"),
	}
}

// Download handles GET /api/download. The wallet is a bare claim; the gate
// only checks that a purchase was recorded for it.
func (s *DownloadService) Download(c *fiber.Ctx) error {
	wallet := strings.Clone(c.Query("wallet"))
	productID := strings.Clone(c.Query("productId"))
	if wallet == "" || productID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing wallet or productId"})
	}
	log := requestLog(c, s.Log).WithFields(logrus.Fields{"wallet": wallet, "product_id": productID})

	p, err := s.Purchases.Lookup(c.UserContext(), wallet, productID)
	if err != nil {
		log.WithError(err).Error("[DOWNLOAD] Entitlement lookup failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process download"})
	}
	if p == nil {
		log.Info("[DOWNLOAD] Denied, no purchase on record")
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Purchase not found. Please complete payment first."})
	}

	rc, size, err := s.Assets.Open(c.UserContext(), productID)
	if errors.Is(err, utils.ErrAssetNotFound) {
		log.WithError(err).Warn("[DOWNLOAD] Archive missing for purchased product")
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "File not found. Please contact support."})
	}
	if err != nil {
		log.WithError(err).Error("[DOWNLOAD] Failed to open archive")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process download"})
	}

	c.Set(fiber.HeaderContentType, "application/zip")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s.zip"`, productID))
	c.Set(fiber.HeaderCacheControl, "no-cache")

	log.WithField("size", size).Info("[DOWNLOAD] Serving archive")
	// fasthttp closes rc once the body has been written.
	return c.SendStream(rc, int(size))
}
