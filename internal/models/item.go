package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

func init() {
	// Prices travel as JSON numbers in the document store.
	decimal.MarshalJSONWithoutQuotes = true
}

// DefaultQuantity applies to lines stored without a quantity
const DefaultQuantity = 1

// Item is a product snapshot as held by the catalog, a cart or an order.
// Fields outside the fixed core schema are kept verbatim in Attributes so a
// whole-field replace of a cart or order list never drops them.
type Item struct {
	ID            DocumentID
	Name          string
	Image         string
	Category      string
	OfferPrice    decimal.Decimal
	OriginalPrice *decimal.Decimal
	Quantity      int
	Attributes    map[string]json.RawMessage
}

var coreItemFields = map[string]bool{
	"id":            true,
	"name":          true,
	"image":         true,
	"category":      true,
	"offerPrice":    true,
	"originalPrice": true,
	"quantity":      true,
}

// specExcluded lists attributes never shown in the specifications table
var specExcluded = map[string]bool{
	"offers":      true,
	"rating":      true,
	"description": true,
}

// UnmarshalJSON decodes the core fields and collects everything else into Attributes
func (i *Item) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*i = Item{}

	decode := func(key string, dst interface{}) error {
		v, ok := raw[key]
		if !ok || string(v) == "null" {
			return nil
		}
		if err := json.Unmarshal(v, dst); err != nil {
			return fmt.Errorf("item field %q: %w", key, err)
		}
		return nil
	}

	if err := decode("id", &i.ID); err != nil {
		return err
	}
	if err := decode("name", &i.Name); err != nil {
		return err
	}
	if err := decode("image", &i.Image); err != nil {
		return err
	}
	if err := decode("category", &i.Category); err != nil {
		return err
	}
	offer, err := decodePrice(raw, "offerPrice")
	if err != nil {
		return err
	}
	if offer != nil {
		i.OfferPrice = *offer
	}
	if i.OriginalPrice, err = decodePrice(raw, "originalPrice"); err != nil {
		return err
	}
	if err := decode("quantity", &i.Quantity); err != nil {
		return err
	}

	for k, v := range raw {
		if coreItemFields[k] {
			continue
		}
		if i.Attributes == nil {
			i.Attributes = make(map[string]json.RawMessage)
		}
		i.Attributes[k] = v
	}

	return nil
}

// decodePrice reads a price held as a JSON number or numeric string.
// Absent, null and empty values yield nil.
func decodePrice(raw map[string]json.RawMessage, key string) (*decimal.Decimal, error) {
	v, ok := raw[key]
	if !ok {
		return nil, nil
	}

	text := strings.TrimSpace(string(v))
	if text == "null" || text == `""` {
		return nil, nil
	}

	var p decimal.Decimal
	if err := json.Unmarshal(v, &p); err != nil {
		return nil, fmt.Errorf("item field %q: %w", key, err)
	}
	return &p, nil
}

// MarshalJSON flattens Attributes back next to the core fields
func (i Item) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(i.Attributes)+7)

	for k, v := range i.Attributes {
		if coreItemFields[k] {
			continue
		}
		out[k] = v
	}

	out["id"] = i.ID
	out["name"] = i.Name
	out["image"] = i.Image
	out["offerPrice"] = i.OfferPrice
	if i.Category != "" {
		out["category"] = i.Category
	}
	if i.OriginalPrice != nil {
		out["originalPrice"] = *i.OriginalPrice
	}
	if i.Quantity > 0 {
		out["quantity"] = i.Quantity
	}

	return json.Marshal(out)
}

// Snapshot returns a deep copy of the item with the given quantity, so later
// catalog changes never leak into a cart line or an order.
func (i Item) Snapshot(quantity int) Item {
	cp := i
	cp.Quantity = quantity

	if i.OriginalPrice != nil {
		p := *i.OriginalPrice
		cp.OriginalPrice = &p
	}

	if i.Attributes != nil {
		cp.Attributes = make(map[string]json.RawMessage, len(i.Attributes))
		for k, v := range i.Attributes {
			cp.Attributes[k] = append(json.RawMessage(nil), v...)
		}
	}

	return cp
}

// EffectiveQuantity returns the quantity, falling back to DefaultQuantity when unset
func (i Item) EffectiveQuantity() int {
	if i.Quantity <= 0 {
		return DefaultQuantity
	}
	return i.Quantity
}

// Specification is one row of a product's specifications table
type Specification struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Specifications renders the open attribute bag as name/value rows sorted by name.
// String values are unquoted; other JSON values are shown as written.
func (i Item) Specifications() []Specification {
	specs := make([]Specification, 0, len(i.Attributes)+1)

	if i.Category != "" {
		specs = append(specs, Specification{Name: "category", Value: i.Category})
	}

	for k, v := range i.Attributes {
		if specExcluded[k] {
			continue
		}

		value := strings.TrimSpace(string(v))
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			value = s
		}
		specs = append(specs, Specification{Name: k, Value: value})
	}

	sort.Slice(specs, func(a, b int) bool { return specs[a].Name < specs[b].Name })
	return specs
}
