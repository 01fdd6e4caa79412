// Package recipes acquires recipe drafts from external sources: a web page
// fetched by URL or a photo of a recipe card. The generative extraction
// backend is a collaborator behind the Extractor interface.
package recipes

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"regexp"
)

// Draft is a recipe extracted from an external source, not yet saved to the
// owner's library.
type Draft struct {
	Title        string   `json:"title"`
	Description  string   `json:"description,omitempty"`
	Ingredients  []string `json:"ingredients,omitempty"`
	Instructions []string `json:"instructions,omitempty"`
	SourceURL    string   `json:"source_url,omitempty"`
}

// Extractor turns fetched page text or image bytes into a recipe draft.
type Extractor interface {
	ExtractFromContent(ctx context.Context, content string) (Draft, error)
	ExtractFromImage(ctx context.Context, mimeType string, data []byte) (Draft, error)
}

var urlRe = regexp.MustCompile(`https?://[^\s<>"')\]]+`)

// FirstURL returns the first well-formed URL embedded in text, or "".
func FirstURL(text string) string {
	return urlRe.FindString(text)
}

// HashContent returns the hex sha256 of raw content bytes, used as the
// duplicate-submission ledger key for images.
func HashContent(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
