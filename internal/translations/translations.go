// Package translations ships the default storefront language bundle.
package translations

import (
	"context"
	_ "embed"

	"headstart/pkg/blob"
)

// EnglishPath is where storefronts look for the default bundle inside the translations container.
const EnglishPath = "i18n/en.json"

//go:embed en.json
var english []byte

// English returns a copy of the embedded English bundle.
func English() []byte {
	return append([]byte(nil), english...)
}

// PublishEnglish overwrites the English bundle in store.
func PublishEnglish(ctx context.Context, store blob.Store) error {
	return store.Save(ctx, EnglishPath, English(), "application/json")
}
