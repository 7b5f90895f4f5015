package utils

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const noSuchKeyXML = `<?xml version="1.0" encoding="UTF-8"?>
<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`

const accessDeniedXML = `<?xml version="1.0" encoding="UTF-8"?>
<Error><Code>AccessDenied</Code><Message>Access Denied</Message></Error>`

func newFakeBucket(t *testing.T) *httptest.Server {
	archive := []byte("PK\x03\x04tileset")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/assets/archives/grass-highway.zip":
			w.Header().Set("Content-Type", "application/zip")
			w.Header().Set("Content-Length", strconv.Itoa(len(archive)))
			w.WriteHeader(http.StatusOK)
			w.Write(archive)
		case "/assets/archives/locked-asset.zip":
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusForbidden)
			io.WriteString(w, accessDeniedXML)
		default:
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, noSuchKeyXML)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestR2(t *testing.T, endpoint string) *R2Assets {
	r2, err := NewR2Assets(context.Background(), R2Config{
		AccessKeyID:     "test",
		AccessKeySecret: "test",
		Bucket:          "assets",
		Endpoint:        endpoint,
		Prefix:          "archives/",
	})
	require.NoError(t, err)
	return r2
}

func TestR2AssetsOpen(t *testing.T) {
	srv := newFakeBucket(t)
	r2 := newTestR2(t, srv.URL)

	rc, size, err := r2.Open(context.Background(), "grass-highway")
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "PK\x03\x04tileset", string(body))
	assert.Equal(t, int64(len(body)), size)
}

func TestR2AssetsMissingObject(t *testing.T) {
	srv := newFakeBucket(t)
	r2 := newTestR2(t, srv.URL)

	_, _, err := r2.Open(context.Background(), "ice-walls-blocks")
	assert.True(t, errors.Is(err, ErrAssetNotFound), "got %v", err)
}

func TestR2AssetsOtherFailure(t *testing.T) {
	srv := newFakeBucket(t)
	r2 := newTestR2(t, srv.URL)

	_, _, err := r2.Open(context.Background(), "locked-asset")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrAssetNotFound))
}

func TestR2AssetsKey(t *testing.T) {
	r2 := newTestR2(t, "http://127.0.0.1:1")
	key, err := r2.Key("metal-tech-corridor")
	require.NoError(t, err)
	assert.Equal(t, "archives/metal-tech-corridor.zip", key)

	_, err = r2.Key("../../etc/passwd")
	assert.True(t, errors.Is(err, ErrAssetNotFound))
}

func TestNewR2AssetsRequiresBucket(t *testing.T) {
	_, err := NewR2Assets(context.Background(), R2Config{AccountID: "acct"})
	assert.Error(t, err)
	_, err = NewR2Assets(context.Background(), R2Config{Bucket: "assets"})
	assert.Error(t, err)
}
