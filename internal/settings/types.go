// Package settings defines the typed admin-styling settings the styler
// accepts, and the sanitizer that normalizes untrusted raw input into
// canonical values or rejects it with a per-setting reason.
package settings

// Type is the value type of a setting. Dispatch in the sanitizer is an
// exhaustive switch over this enum rather than a string comparison.
type Type int

const (
	TypeColor Type = iota
	TypeNumber
	TypeURL
	TypeBoolean
	TypeText
)

// String returns the string representation of the Type
func (t Type) String() string {
	switch t {
	case TypeColor:
		return "color"
	case TypeNumber:
		return "number"
	case TypeURL:
		return "url"
	case TypeBoolean:
		return "boolean"
	case TypeText:
		return "text"
	default:
		return "unknown"
	}
}

// Definition describes one setting: its type, constraints, and the CSS
// rule it maps to. Selector-less definitions are stored but never emit CSS.
type Definition struct {
	Key      string
	Type     Type
	Min      int    // numbers only, inclusive
	Max      int    // numbers only, inclusive
	Selector string // CSS selector, empty for stored-only settings
	Property string // CSS property for color/number/url settings
	Unit     string // appended to number values, e.g. "px"
	OnTrue   string // full declaration emitted when a boolean is true
}

// registry is the fixed, ordered table of known settings. Generated CSS
// follows this declaration order, never request or map order, so output
// is byte-identical for identical validated input.
var registry = []Definition{
	{Key: "menu_bg_color", Type: TypeColor, Selector: "#adminmenu", Property: "background-color"},
	{Key: "menu_width", Type: TypeNumber, Min: 100, Max: 400, Selector: "#adminmenu", Property: "width", Unit: "px"},
	{Key: "menu_text_color", Type: TypeColor, Selector: "#adminmenu a", Property: "color"},
	{Key: "menu_hover_color", Type: TypeColor, Selector: "#adminmenu li.menu-top:hover", Property: "background-color"},
	{Key: "adminbar_bg_color", Type: TypeColor, Selector: "#wpadminbar", Property: "background-color"},
	{Key: "content_bg_color", Type: TypeColor, Selector: "#wpbody-content", Property: "background-color"},
	{Key: "font_size", Type: TypeNumber, Min: 10, Max: 24, Selector: "#wpbody-content", Property: "font-size", Unit: "px"},
	{Key: "border_radius", Type: TypeNumber, Min: 0, Max: 20, Selector: ".postbox", Property: "border-radius", Unit: "px"},
	{Key: "custom_logo_url", Type: TypeURL, Selector: "#wpadminbar #wp-admin-bar-site-name > .ab-item", Property: "background-image"},
	{Key: "hide_wp_logo", Type: TypeBoolean, Selector: "#wp-admin-bar-wp-logo", OnTrue: "display: none"},
	{Key: "compact_mode", Type: TypeBoolean, Selector: "#wpcontent", OnTrue: "padding-left: 0"},
	{Key: "admin_footer_text", Type: TypeText},
}

// Registry returns the ordered table of setting definitions
func Registry() []Definition {
	result := make([]Definition, len(registry))
	copy(result, registry)
	return result
}

// Lookup returns the definition for a key, if the key is known
func Lookup(key string) (Definition, bool) {
	for _, def := range registry {
		if def.Key == key {
			return def, true
		}
	}
	return Definition{}, false
}
