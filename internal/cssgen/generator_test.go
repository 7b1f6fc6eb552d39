package cssgen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adminstyler/adminstyler/internal/settings"
)

func TestGenerateSingleColor(t *testing.T) {
	css := Generate(map[string]string{"menu_bg_color": "#2C3E50"})
	assert.Equal(t, "#adminmenu { background-color: #2C3E50 !important; }\n", css)
}

func TestGenerateColorAndWidth(t *testing.T) {
	css := Generate(map[string]string{
		"menu_bg_color": "#2C3E50",
		"menu_width":    "200",
	})
	expected := "#adminmenu { background-color: #2C3E50 !important; }\n" +
		"#adminmenu { width: 200px !important; }\n"
	assert.Equal(t, expected, css)
}

func TestGenerateEmptyInput(t *testing.T) {
	assert.Empty(t, Generate(nil))
	assert.Empty(t, Generate(map[string]string{}))
}

func TestGenerateUnknownKeysIgnored(t *testing.T) {
	css := Generate(map[string]string{
		"future_setting": "whatever",
		"menu_width":     "200",
	})
	assert.Equal(t, "#adminmenu { width: 200px !important; }\n", css)
	assert.NotContains(t, css, "future_setting")
	assert.NotContains(t, css, "whatever")
}

func TestGenerateRegistryOrderNotInputOrder(t *testing.T) {
	// The map carries font_size "before" menu_bg_color, but the output
	// must follow registry declaration order.
	css := Generate(map[string]string{
		"font_size":     "14",
		"menu_bg_color": "#112233",
	})
	bgIdx := strings.Index(css, "background-color")
	fontIdx := strings.Index(css, "font-size")
	require.GreaterOrEqual(t, bgIdx, 0)
	require.GreaterOrEqual(t, fontIdx, 0)
	assert.Less(t, bgIdx, fontIdx)
}

func TestGenerateURLWrapped(t *testing.T) {
	css := Generate(map[string]string{"custom_logo_url": "https://example.com/logo.png"})
	assert.Contains(t, css, `background-image: url("https://example.com/logo.png") !important;`)
}

func TestGenerateURLCannotBreakOutOfRule(t *testing.T) {
	// A URL can pass the sanitizer while carrying ')' and ';', which
	// would terminate an unquoted url() token and smuggle extra rules
	// into the stylesheet.
	valid, errs := settings.SanitizeAll(map[string]string{
		"custom_logo_url": "https://x.test/a);}#wpbody{display:none",
	})
	require.Empty(t, errs)

	css := Generate(valid)
	expected := "#wpadminbar #wp-admin-bar-site-name > .ab-item " +
		`{ background-image: url("https://x.test/a);}#wpbody{display:none") !important; }` + "\n"
	assert.Equal(t, expected, css)
}

func TestGenerateURLEscapesQuotesAndBackslashes(t *testing.T) {
	css := Generate(map[string]string{`custom_logo_url`: `https://x.test/a"b\c`})
	assert.Contains(t, css, `url("https://x.test/a\"b\\c")`)
}

func TestGenerateBoolean(t *testing.T) {
	t.Run("true emits the on-true declaration", func(t *testing.T) {
		css := Generate(map[string]string{"hide_wp_logo": "true"})
		assert.Equal(t, "#wp-admin-bar-wp-logo { display: none !important; }\n", css)
	})

	t.Run("false emits nothing", func(t *testing.T) {
		assert.Empty(t, Generate(map[string]string{"hide_wp_logo": "false"}))
	})
}

func TestGenerateStoredOnlySettingsSkipped(t *testing.T) {
	css := Generate(map[string]string{"admin_footer_text": "Powered by Ops"})
	assert.Empty(t, css)
}

func TestGenerateDeterministic(t *testing.T) {
	valid := map[string]string{
		"menu_bg_color":   "#2C3E50",
		"menu_width":      "200",
		"font_size":       "14",
		"hide_wp_logo":    "true",
		"custom_logo_url": "https://example.com/logo.png",
	}

	first := Generate(valid)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, Generate(valid))
	}
}

func TestGenerateFullPipelineExample(t *testing.T) {
	// End-to-end shape of the sanitize -> generate contract.
	valid, errs := settings.SanitizeAll(map[string]string{
		"menu_bg_color": "#2c3e50",
		"menu_width":    "200",
	})
	require.Empty(t, errs)

	css := Generate(valid)
	expected := "#adminmenu { background-color: #2C3E50 !important; }\n" +
		"#adminmenu { width: 200px !important; }\n"
	assert.Equal(t, expected, css)
}

func TestGenerateRejectedSettingsProduceNoCSS(t *testing.T) {
	valid, errs := settings.SanitizeAll(map[string]string{
		"menu_bg_color": "not-a-color",
		"menu_width":    "999",
	})
	require.Len(t, errs, 2)
	assert.Empty(t, Generate(valid))
}
