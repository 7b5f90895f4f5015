package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"pixel-asset-store/models"
	"pixel-asset-store/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

var (
	// ErrMissingIdentifiers is returned when a wallet or product id is absent.
	ErrMissingIdentifiers = errors.New("missing wallet or productId")
	// ErrVerifierUnavailable wraps verifier failures other than a rejection.
	ErrVerifierUnavailable = errors.New("payment verifier unavailable")
)

const (
	defaultDownloadPath = "/api/download"
	defaultStoreTimeout = 5 * time.Second
)

// PurchaseService owns the entitlement ledger: who bought what.
type PurchaseService struct {
	Store    storage.Store
	Verifier PaymentVerifier
	Log      logrus.FieldLogger

	// DownloadPath is the gate path embedded in the write response.
	DownloadPath  string
	StoreTimeout  time.Duration
	VerifyTimeout time.Duration

	now func() time.Time
}

func NewPurchaseService(store storage.Store, verifier PaymentVerifier, log logrus.FieldLogger) *PurchaseService {
	if verifier == nil {
		verifier = TrustingVerifier{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &PurchaseService{
		Store:         store,
		Verifier:      verifier,
		Log:           log.WithField("component", "purchase"),
		DownloadPath:  defaultDownloadPath,
		StoreTimeout:  defaultStoreTimeout,
		VerifyTimeout: 15 * time.Second,
		now:           time.Now,
	}
}

// Record verifies (when configured) and stores a purchase claim. The record and
// the wallet's membership set are written in one batch.
func (s *PurchaseService) Record(ctx context.Context, req *models.PurchaseRequest) (*models.Purchase, error) {
	if req == nil || req.Wallet == "" || req.ProductID == "" {
		return nil, ErrMissingIdentifiers
	}

	vctx, cancel := withTimeout(ctx, s.VerifyTimeout)
	err := s.Verifier.Verify(vctx, req)
	cancel()
	if err != nil {
		if errors.Is(err, ErrPaymentNotVerified) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrVerifierUnavailable, err)
	}

	p := models.NewPurchase(req, s.now())
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode purchase: %w", err)
	}

	sctx, cancel := withTimeout(ctx, s.StoreTimeout)
	defer cancel()
	if err := s.Store.Apply(sctx,
		storage.SetOp(models.PurchaseKey(p.Wallet, p.ProductID), string(raw)),
		storage.AddToSetOp(models.UserPurchasesKey(p.Wallet), p.ProductID),
	); err != nil {
		return nil, fmt.Errorf("record purchase: %w", err)
	}
	return p, nil
}

// Lookup returns the record for (wallet, productID), or nil if none exists.
func (s *PurchaseService) Lookup(ctx context.Context, wallet, productID string) (*models.Purchase, error) {
	if wallet == "" || productID == "" {
		return nil, ErrMissingIdentifiers
	}
	ctx, cancel := withTimeout(ctx, s.StoreTimeout)
	defer cancel()

	raw, ok, err := s.Store.Get(ctx, models.PurchaseKey(models.NormalizeWallet(wallet), productID))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return decodePurchase(raw)
}

// ListProducts returns the product ids in wallet's membership set, never nil.
func (s *PurchaseService) ListProducts(ctx context.Context, wallet string) ([]string, error) {
	if wallet == "" {
		return nil, ErrMissingIdentifiers
	}
	ctx, cancel := withTimeout(ctx, s.StoreTimeout)
	defer cancel()

	ids, err := s.Store.ListSet(ctx, models.UserPurchasesKey(models.NormalizeWallet(wallet)))
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// DownloadLink is the gate URL for a recorded purchase.
func (s *PurchaseService) DownloadLink(p *models.Purchase) string {
	return s.DownloadPath + "?wallet=" + url.QueryEscape(p.Wallet) + "&productId=" + url.QueryEscape(p.ProductID)
}

// RecordPurchase handles POST /api/purchase.
func (s *PurchaseService) RecordPurchase(c *fiber.Ctx) error {
	log := requestLog(c, s.Log)

	req := &models.PurchaseRequest{}
	var err error
	if body := bytes.TrimSpace(c.Body()); len(body) > 0 {
		req, err = models.DecodePurchaseRequest(body)
	}
	if err != nil {
		log.WithError(err).Warn("[PURCHASE] Rejected malformed body")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid JSON body"})
	}

	p, err := s.Record(c.UserContext(), req)
	switch {
	case err == nil:
	case errors.Is(err, ErrMissingIdentifiers):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing wallet or productId"})
	case errors.Is(err, ErrPaymentNotVerified):
		log.WithError(err).WithField("product_id", req.ProductID).Warn("[PURCHASE] Payment rejected")
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{"error": "Payment could not be verified"})
	case errors.Is(err, ErrVerifierUnavailable):
		log.WithError(err).Error("[PURCHASE] Payment verifier unavailable")
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Payment verification unavailable, try again later"})
	default:
		log.WithError(err).Error("[PURCHASE] Failed to record purchase")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to record purchase"})
	}

	log.WithFields(logrus.Fields{"wallet": p.Wallet, "product_id": p.ProductID}).Info("[PURCHASE] Purchase recorded")
	return c.JSON(fiber.Map{
		"success":  true,
		"message":  "Purchase recorded successfully",
		"download": s.DownloadLink(p),
	})
}

// CheckPurchase handles GET /api/purchase.
func (s *PurchaseService) CheckPurchase(c *fiber.Ctx) error {
	wallet := strings.Clone(c.Query("wallet"))
	productID := strings.Clone(c.Query("productId"))
	if wallet == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing wallet address"})
	}

	if productID != "" {
		p, err := s.Lookup(c.UserContext(), wallet, productID)
		if err != nil {
			requestLog(c, s.Log).WithError(err).Error("[PURCHASE] Failed to check purchase")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to check purchase"})
		}
		return c.JSON(fiber.Map{"hasPurchased": p != nil, "purchase": p})
	}

	ids, err := s.ListProducts(c.UserContext(), wallet)
	if err != nil {
		requestLog(c, s.Log).WithError(err).Error("[PURCHASE] Failed to list purchases")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to check purchase"})
	}
	return c.JSON(fiber.Map{"purchases": ids})
}

func decodePurchase(raw string) (*models.Purchase, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var p models.Purchase
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("decode purchase record: %w", err)
	}
	return &p, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// requestLog tags a logger with the request id assigned by middleware.RequestLogger.
func requestLog(c *fiber.Ctx, log logrus.FieldLogger) logrus.FieldLogger {
	if id, ok := c.Locals("request_id").(string); ok && id != "" {
		return log.WithField("request_id", id)
	}
	return log
}
