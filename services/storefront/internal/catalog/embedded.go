package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/utafrali/lagosbazaar/services/storefront/internal/domain"
)

//go:embed catalog.json
var embeddedCatalog []byte

// Document is the JSON shape of a catalog file.
type Document struct {
	Categories []string         `json:"categories"`
	Products   []domain.Product `json:"products"`
}

// LoadEmbedded builds the catalog compiled into the binary.
func LoadEmbedded() (*Catalog, error) {
	return Parse(embeddedCatalog)
}

// EmbeddedDocument returns the decoded embedded catalog, used to seed a
// database.
func EmbeddedDocument() (Document, error) {
	return ParseDocument(embeddedCatalog)
}

// ParseDocument decodes a catalog document and checks that it builds a
// valid catalog.
func ParseDocument(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("decode catalog: %w", err)
	}
	if _, err := New(doc.Products, doc.Categories); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// Parse decodes and validates a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return New(doc.Products, doc.Categories)
}
