package indexer

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/hyperjump/docindex/internal/models"
	"github.com/hyperjump/docindex/internal/storage"
)

// CatalogFile is the name of the uri/id catalog inside the index folder.
const CatalogFile = "catalog.json"

const catalogVersion = 1

// Catalog maps document URIs to ids and back.
type Catalog struct {
	Version int               `json:"version"`
	Count   int               `json:"count"`
	URIToID map[string]string `json:"uriToId"`
	IDToURI map[string]string `json:"idToUri"`
}

func newCatalog() *Catalog {
	return &Catalog{
		Version: catalogVersion,
		URIToID: map[string]string{},
		IDToURI: map[string]string{},
	}
}

func (c *Catalog) clone() *Catalog {
	out := &Catalog{
		Version: c.Version,
		Count:   c.Count,
		URIToID: make(map[string]string, len(c.URIToID)),
		IDToURI: make(map[string]string, len(c.IDToURI)),
	}
	for k, v := range c.URIToID {
		out.URIToID[k] = v
	}
	for k, v := range c.IDToURI {
		out.IDToURI[k] = v
	}
	return out
}

func (c *Catalog) add(uri, id string) {
	c.URIToID[uri] = id
	c.IDToURI[id] = uri
	c.Count = len(c.URIToID)
}

func (c *Catalog) remove(uri string) (string, bool) {
	id, ok := c.URIToID[uri]
	if !ok {
		return "", false
	}
	delete(c.URIToID, uri)
	delete(c.IDToURI, id)
	c.Count = len(c.URIToID)
	return id, true
}

func readCatalog(folder string) (*Catalog, error) {
	var c Catalog
	if err := storage.ReadJSON(filepath.Join(folder, CatalogFile), &c); err != nil {
		if errors.Is(err, storage.ErrMissing) {
			return newCatalog(), nil
		}
		return nil, fmt.Errorf("%w: load catalog: %w", models.ErrStorage, err)
	}
	if c.URIToID == nil {
		c.URIToID = map[string]string{}
	}
	if c.IDToURI == nil {
		c.IDToURI = map[string]string{}
	}
	return &c, nil
}

func writeCatalog(folder string, c *Catalog) error {
	if err := storage.WriteJSON(filepath.Join(folder, CatalogFile), c); err != nil {
		return fmt.Errorf("%w: save catalog: %w", models.ErrStorage, err)
	}
	return nil
}
