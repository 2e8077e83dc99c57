package mapsurface

import "sync"

// Icon describes a Leaflet marker icon.
type Icon struct {
	RetinaURL   string `json:"icon_retina_url,omitempty"`
	URL         string `json:"icon_url"`
	ShadowURL   string `json:"shadow_url,omitempty"`
	Size        [2]int `json:"icon_size"`
	Anchor      [2]int `json:"icon_anchor"`
	PopupAnchor [2]int `json:"popup_anchor"`
	ShadowSize  [2]int `json:"shadow_size,omitempty"`
}

// LeafletIcon is the stock Leaflet 1.7.1 marker.
var LeafletIcon = Icon{
	RetinaURL:   "https://unpkg.com/leaflet@1.7.1/dist/images/marker-icon-2x.png",
	URL:         "https://unpkg.com/leaflet@1.7.1/dist/images/marker-icon.png",
	ShadowURL:   "https://unpkg.com/leaflet@1.7.1/dist/images/marker-shadow.png",
	Size:        [2]int{25, 41},
	Anchor:      [2]int{12, 41},
	PopupAnchor: [2]int{1, -34},
	ShadowSize:  [2]int{41, 41},
}

// RestaurantIcon is the point-of-interest marker served by the web client.
var RestaurantIcon = Icon{
	URL:         "/restaurant.svg",
	Size:        [2]int{30, 30},
	Anchor:      [2]int{15, 30},
	PopupAnchor: [2]int{0, -30},
}

var (
	iconOnce    sync.Once
	iconMu      sync.RWMutex
	defaultIcon = LeafletIcon
)

// ConfigureDefaultIcon sets the process-wide fallback marker icon. Only the
// first call has an effect; it reports whether this call applied icon.
// Empty fields of icon are filled from LeafletIcon.
func ConfigureDefaultIcon(icon Icon) bool {
	applied := false
	iconOnce.Do(func() {
		iconMu.Lock()
		defaultIcon = icon.withDefaults()
		iconMu.Unlock()
		applied = true
	})
	return applied
}

// DefaultIcon returns the process-wide fallback icon.
func DefaultIcon() Icon {
	iconMu.RLock()
	defer iconMu.RUnlock()
	return defaultIcon
}

func (i Icon) withDefaults() Icon {
	if i.RetinaURL == "" {
		i.RetinaURL = LeafletIcon.RetinaURL
	}
	if i.URL == "" {
		i.URL = LeafletIcon.URL
	}
	if i.ShadowURL == "" {
		i.ShadowURL = LeafletIcon.ShadowURL
	}
	if i.Size == [2]int{} {
		i.Size = LeafletIcon.Size
	}
	if i.Anchor == [2]int{} {
		i.Anchor = LeafletIcon.Anchor
	}
	if i.PopupAnchor == [2]int{} {
		i.PopupAnchor = LeafletIcon.PopupAnchor
	}
	if i.ShadowSize == [2]int{} {
		i.ShadowSize = LeafletIcon.ShadowSize
	}
	return i
}
