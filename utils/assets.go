// utils/assets.go
package utils

import (
	"errors"

	"github.com/gosimple/slug"
)

// ErrAssetNotFound means no archive exists for a product.
var ErrAssetNotFound = errors.New("asset not found")

// ArchiveName is the one-file-per-product naming convention: "{productId}.zip".
// Only slug ids ("red-ghost-specter") name an archive; anything else could
// escape the downloads directory or bucket prefix.
func ArchiveName(productID string) (string, error) {
	if !slug.IsSlug(productID) {
		return "", ErrAssetNotFound
	}
	return productID + ".zip", nil
}
