package navigator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/AaronLay10/AdventureEngine/internal/assets"
	"github.com/AaronLay10/AdventureEngine/internal/events"
)

const (
	// DefaultShopID is used when a shop parameter has no "|shopId" segment.
	DefaultShopID = "Default"

	// ShopPanelKind is the panel the presentation layer opens for shops.
	ShopPanelKind = "ShopCanvas"
)

// ShopRef is a parsed shop command parameter.
type ShopRef struct {
	Path    string
	Address string
	ShopID  string
}

// ParseShopParameter splits "path|shopId". The first segment is the path, the
// second the shop id; the path's last "/" segment is the cache address.
func ParseShopParameter(parameter string) (ShopRef, error) {
	parts := strings.Split(parameter, "|")
	path := parts[0]
	if strings.TrimSpace(path) == "" {
		return ShopRef{}, fmt.Errorf("%w: shop parameter %q has no path", ErrMalformedParameter, parameter)
	}

	shopID := DefaultShopID
	if len(parts) > 1 && parts[1] != "" {
		shopID = parts[1]
	}

	address := path
	if i := strings.LastIndex(path, "/"); i >= 0 {
		address = path[i+1:]
	}
	if address == "" {
		return ShopRef{}, fmt.Errorf("%w: shop path %q has no address segment", ErrMalformedParameter, path)
	}

	return ShopRef{Path: path, Address: address, ShopID: shopID}, nil
}

// ShopPanel is the payload handed to the panel opener for a shop.
type ShopPanel struct {
	ShopID  string          `json:"shop_id"`
	Address string          `json:"address"`
	Dataset json.RawMessage `json:"dataset"`
}

// releaser is implemented by reference-counting caches such as *assets.Cache.
type releaser interface {
	Release(address string)
}

// holdShop keeps a single reference per shop address for the session. A
// repeat Acquire that returned the already held asset gives its extra
// reference back; a different asset means the old entry was evicted and the
// new reference replaces it.
func (n *Navigator) holdShop(address string, a *assets.Asset) {
	n.mu.Lock()
	held := n.shops[address]
	n.shops[address] = a
	n.mu.Unlock()

	if held != a {
		return
	}
	if r, ok := n.cache.(releaser); ok {
		r.Release(address)
	}
}

func (n *Navigator) handleShop(ctx context.Context, parameter string) error {
	ref, err := ParseShopParameter(parameter)
	if err != nil {
		events.Emit("warning", "command.malformed", err.Error(), map[string]interface{}{
			"type":      "shop",
			"parameter": parameter,
		})
		return err
	}

	a, err := n.cache.Acquire(ctx, ref.Address)
	if err != nil {
		// Already logged by the cache; the panel simply stays closed.
		return nil
	}
	n.holdShop(ref.Address, a)

	if n.panels == nil {
		n.missing("panels", "shop panel not opened")
		return nil
	}

	if !json.Valid(a.Data) {
		events.Emit("error", "command.error", "shop dataset is not valid JSON", map[string]interface{}{
			"type":    "shop",
			"address": ref.Address,
		})
		return nil
	}

	panel := ShopPanel{ShopID: ref.ShopID, Address: ref.Address, Dataset: json.RawMessage(a.Data)}
	if err := n.panels.OpenPanel(ctx, ShopPanelKind, panel); err != nil {
		events.Emit("error", "command.error", err.Error(), map[string]interface{}{
			"type":    "shop",
			"address": ref.Address,
			"shop_id": ref.ShopID,
		})
		return nil
	}

	events.Emit("info", "panel.opened", "", map[string]interface{}{
		"kind":    ShopPanelKind,
		"address": ref.Address,
		"shop_id": ref.ShopID,
	})
	return nil
}
