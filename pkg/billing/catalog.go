package billing

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// CatalogPlan maps a local plan key to its processor price.
type CatalogPlan struct {
	Key       string `yaml:"key"`
	PriceID   string `yaml:"price_id"`
	Name      string `yaml:"name"`
	TrialDays int    `yaml:"trial_days"`
}

// Catalog is a read-only set of plans. A nil Catalog resolves every key to itself.
type Catalog struct {
	plans   []CatalogPlan
	byKey   map[string]CatalogPlan
	byPrice map[string]string
}

func NewCatalog(plans ...CatalogPlan) (*Catalog, error) {
	c := &Catalog{
		byKey:   make(map[string]CatalogPlan, len(plans)),
		byPrice: make(map[string]string, len(plans)),
	}
	for i, p := range plans {
		if p.Key == "" {
			return nil, errors.Join(ErrInvalidCatalog, fmt.Errorf("plan #%d has no key", i))
		}
		if _, exists := c.byKey[p.Key]; exists {
			return nil, errors.Join(ErrInvalidCatalog, fmt.Errorf("duplicate plan key %q", p.Key))
		}
		if p.PriceID == "" {
			p.PriceID = p.Key
		}
		if p.TrialDays < 0 {
			return nil, errors.Join(ErrInvalidCatalog, fmt.Errorf("plan %q has negative trial days", p.Key))
		}
		c.plans = append(c.plans, p)
		c.byKey[p.Key] = p
		c.byPrice[p.PriceID] = p.Key
	}
	return c, nil
}

// LoadCatalog decodes a YAML document with a top-level "plans" list.
func LoadCatalog(r io.Reader) (*Catalog, error) {
	var doc struct {
		Plans []CatalogPlan `yaml:"plans"`
	}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Join(ErrInvalidCatalog, err)
	}
	return NewCatalog(doc.Plans...)
}

func LoadCatalogFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Join(ErrInvalidCatalog, err)
	}
	defer f.Close()
	return LoadCatalog(f)
}

// Resolve returns the processor price id for a plan key, or the key itself when unknown.
func (c *Catalog) Resolve(key string) string {
	if c == nil {
		return key
	}
	if p, ok := c.byKey[key]; ok {
		return p.PriceID
	}
	return key
}

func (c *Catalog) Lookup(key string) (CatalogPlan, bool) {
	if c == nil {
		return CatalogPlan{}, false
	}
	p, ok := c.byKey[key]
	return p, ok
}

// KeyFor maps a processor price id back to its plan key, or returns the price id when unknown.
func (c *Catalog) KeyFor(priceID string) string {
	if c == nil {
		return priceID
	}
	if key, ok := c.byPrice[priceID]; ok {
		return key
	}
	return priceID
}

// Plans returns the plans in declaration order.
func (c *Catalog) Plans() []CatalogPlan {
	if c == nil {
		return nil
	}
	out := make([]CatalogPlan, len(c.plans))
	copy(out, c.plans)
	return out
}
