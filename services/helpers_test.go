package services

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pixel-asset-store/storage"
	"pixel-asset-store/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

type testEnv struct {
	app       *fiber.App
	store     *storage.MemoryStore
	purchases *PurchaseService
	dir       string
}

func newTestEnv(t *testing.T, verifier PaymentVerifier) *testEnv {
	t.Helper()
	log, _ := test.NewNullLogger()
	store := storage.NewMemoryStore()
	dir := t.TempDir()

	purchases := NewPurchaseService(store, verifier, log)
	purchases.now = func() time.Time { return fixedNow }
	downloads := NewDownloadService(purchases, utils.NewLocalAssets(dir), log)

	app := fiber.New()
	app.Post("/api/purchase", purchases.RecordPurchase)
	app.Get("/api/purchase", purchases.CheckPurchase)
	app.Get("/api/download", downloads.Download)

	return &testEnv{app: app, store: store, purchases: purchases, dir: dir}
}

func (e *testEnv) writeArchive(t *testing.T, productID string, body []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(e.dir, productID+".zip"), body, 0o644))
}

func (e *testEnv) do(t *testing.T, method, target, body string) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, out
}

func decodeMap(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(body, &m), string(body))
	return m
}
