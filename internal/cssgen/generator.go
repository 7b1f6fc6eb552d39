// Package cssgen turns validated settings into admin CSS. Output is
// deterministic: rules follow the settings registry's declared order, so
// identical validated input always yields byte-identical CSS. Callers
// rely on that for preview diffing and caching.
package cssgen

import (
	"fmt"
	"strings"

	"github.com/adminstyler/adminstyler/internal/settings"
)

// cssStringEscaper makes a value safe inside a double-quoted CSS string.
// Backslash and double quote are the only characters that can terminate
// or extend the string; control characters never survive sanitization.
var cssStringEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// Generate maps a validated settings map (key -> canonical value) to a
// CSS string, one declaration block per affected selector. Keys absent
// from the registry are ignored silently; settings rejected by the
// sanitizer never reach this function and are reported by the caller.
func Generate(valid map[string]string) string {
	var b strings.Builder

	for _, def := range settings.Registry() {
		value, ok := valid[def.Key]
		if !ok || def.Selector == "" {
			continue
		}

		switch def.Type {
		case settings.TypeBoolean:
			if value == "true" && def.OnTrue != "" {
				fmt.Fprintf(&b, "%s { %s !important; }\n", def.Selector, def.OnTrue)
			}
		case settings.TypeNumber:
			fmt.Fprintf(&b, "%s { %s: %s%s !important; }\n", def.Selector, def.Property, value, def.Unit)
		case settings.TypeURL:
			// Quoted url() string: a sanitized URL may still carry CSS
			// metacharacters like ')' or ';' that would close an unquoted
			// url() token and open a path to rule injection.
			fmt.Fprintf(&b, "%s { %s: url(\"%s\") !important; }\n", def.Selector, def.Property, cssStringEscaper.Replace(value))
		default:
			fmt.Fprintf(&b, "%s { %s: %s !important; }\n", def.Selector, def.Property, value)
		}
	}

	return b.String()
}
