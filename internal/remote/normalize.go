package remote

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/baghaven/storefront/internal/model"
)

// unwrapList returns the JSON array in raw. Lists arrive bare or wrapped in an
// object under one of keys, possibly nested (e.g. {"cart": {"items": [...]}}).
func unwrapList(raw json.RawMessage, keys ...string) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("failed to decode list: %w", err)
		}
		return list, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, fmt.Errorf("failed to decode list wrapper: %w", err)
	}
	for _, k := range keys {
		if v, ok := obj[k]; ok {
			return unwrapList(v, keys...)
		}
	}
	return nil, nil
}

type rawItem struct {
	ID        string          `json:"_id"`
	AltID     string          `json:"id"`
	ProductID string          `json:"productId"`
	Product   json.RawMessage `json:"product"`
	Quantity  int             `json:"quantity"`
	Name      string          `json:"name"`
}

// normalizeItem resolves the product reference of a collection entry once, at
// ingestion, whatever shape the API sent:
//
//	{"_id": "line", "product": {"_id": "p1", ...}, "quantity": 2}
//	{"_id": "line", "product": "p1", "quantity": 2}
//	{"_id": "line", "productId": "p1"}
//	{"_id": "p1", "name": "Tote", "price": 10}   (bare product)
func normalizeItem(raw json.RawMessage) (model.Item, error) {
	var ri rawItem
	if err := json.Unmarshal(raw, &ri); err != nil {
		return model.Item{}, fmt.Errorf("failed to decode item: %w", err)
	}
	id := ri.ID
	if id == "" {
		id = ri.AltID
	}
	item := model.Item{ID: id, ProductID: ri.ProductID, Quantity: ri.Quantity}

	product := bytes.TrimSpace(ri.Product)
	switch {
	case len(product) > 0 && product[0] == '{':
		var p model.Product
		if err := json.Unmarshal(product, &p); err != nil {
			return model.Item{}, fmt.Errorf("failed to decode item product: %w", err)
		}
		item.Product = &p
		if item.ProductID == "" {
			item.ProductID = p.ID
		}
	case len(product) > 0 && product[0] == '"':
		var ref string
		if err := json.Unmarshal(product, &ref); err != nil {
			return model.Item{}, fmt.Errorf("failed to decode item product: %w", err)
		}
		if item.ProductID == "" {
			item.ProductID = ref
		}
	case item.ProductID == "" && ri.Name != "":
		var p model.Product
		if err := json.Unmarshal(raw, &p); err != nil {
			return model.Item{}, fmt.Errorf("failed to decode product: %w", err)
		}
		item.Product = &p
		item.ProductID = p.ID
		item.ID = ""
	}

	if item.ProductID == "" {
		return model.Item{}, fmt.Errorf("item %q has no product reference", id)
	}
	return item, nil
}

// normalizeItems decodes and normalizes every entry, merging duplicates of
// the same product into one line.
func normalizeItems(list []json.RawMessage) ([]model.Item, error) {
	items := make([]model.Item, 0, len(list))
	index := make(map[string]int, len(list))
	for _, raw := range list {
		it, err := normalizeItem(raw)
		if err != nil {
			return nil, err
		}
		if i, ok := index[it.ProductID]; ok {
			items[i].Quantity += it.Quantity
			if items[i].Product == nil {
				items[i].Product = it.Product
			}
			continue
		}
		index[it.ProductID] = len(items)
		items = append(items, it)
	}
	return items, nil
}
