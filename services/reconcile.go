package services

import (
	"context"
	"fmt"
	"time"

	"pixel-asset-store/models"
	"pixel-asset-store/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// ReconcileReport summarises one reconciliation pass.
type ReconcileReport struct {
	Scanned     int       `json:"scanned"`
	Repaired    int       `json:"repaired"`
	Undecodable int       `json:"undecodable"`
	StartedAt   time.Time `json:"startedAt"`
	FinishedAt  time.Time `json:"finishedAt"`
}

// Reconciler re-adds purchase records missing from their wallet's membership
// set. Records written before batched writes existed can have a record and no
// set entry.
type Reconciler struct {
	Store storage.Store
	Log   logrus.FieldLogger
}

func NewReconciler(store storage.Store, log logrus.FieldLogger) *Reconciler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Reconciler{Store: store, Log: log.WithField("component", "reconcile")}
}

func (r *Reconciler) Run(ctx context.Context) (ReconcileReport, error) {
	report := ReconcileReport{StartedAt: time.Now().UTC()}

	keys, err := r.Store.ScanKeys(ctx, models.PurchaseKeyPrefix)
	if err != nil {
		return report, fmt.Errorf("scan purchase keys: %w", err)
	}

	// wallet -> current set members, loaded once per wallet
	members := map[string]map[string]struct{}{}

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Scanned++

		raw, ok, err := r.Store.Get(ctx, key)
		if err != nil {
			return report, fmt.Errorf("read %s: %w", key, err)
		}
		if !ok {
			continue
		}
		p, err := decodePurchase(raw)
		if err != nil || p.Wallet == "" || p.ProductID == "" {
			report.Undecodable++
			r.Log.WithField("key", key).Warn("[RECONCILE] Skipping undecodable record")
			continue
		}

		set, ok := members[p.Wallet]
		if !ok {
			ids, err := r.Store.ListSet(ctx, models.UserPurchasesKey(p.Wallet))
			if err != nil {
				return report, fmt.Errorf("list purchases of %s: %w", p.Wallet, err)
			}
			set = make(map[string]struct{}, len(ids))
			for _, id := range ids {
				set[id] = struct{}{}
			}
			members[p.Wallet] = set
		}
		if _, ok := set[p.ProductID]; ok {
			continue
		}

		if err := r.Store.AddToSet(ctx, models.UserPurchasesKey(p.Wallet), p.ProductID); err != nil {
			return report, fmt.Errorf("repair %s: %w", key, err)
		}
		set[p.ProductID] = struct{}{}
		report.Repaired++
		r.Log.WithFields(logrus.Fields{"wallet": p.Wallet, "product_id": p.ProductID}).Info("[RECONCILE] Restored missing membership")
	}

	report.FinishedAt = time.Now().UTC()
	r.Log.WithFields(logrus.Fields{
		"scanned":     report.Scanned,
		"repaired":    report.Repaired,
		"undecodable": report.Undecodable,
	}).Info("[RECONCILE] Pass complete")
	return report, nil
}

// RunHandler handles POST /admin/reconcile.
func (r *Reconciler) RunHandler(c *fiber.Ctx) error {
	report, err := r.Run(c.UserContext())
	if err != nil {
		requestLog(c, r.Log).WithError(err).Error("[RECONCILE] Pass failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Reconciliation failed", "report": report})
	}
	return c.JSON(report)
}
