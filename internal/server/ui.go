package server

import (
	"html/template"
	"net/http"

	"github.com/adminstyler/adminstyler/internal/security"
	"github.com/adminstyler/adminstyler/internal/settings"
)

var indexTemplate = template.Must(template.New("index").Parse(indexHTML))

type indexData struct {
	SessionToken string
	PreviewNonce string
	SaveNonce    string
	DebounceMs   int64
	Fields       []settings.Definition
	Values       map[string]string
}

// handleIndex serves the demo admin page with a fresh session token and
// nonces baked in, mirroring how a real admin page load would hand the
// browser its credentials.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	principal := security.Principal{
		ID:    "demo",
		Roles: []string{s.config.Security.DemoRole},
	}

	session, err := s.sessions.Issue(principal)
	if err != nil {
		s.logger.Error(r.Context(), err, "issuing demo session failed")
		writeInternalError(w, "issuing session failed")
		return
	}
	previewNonce, err := s.nonces.Issue(security.ActionPreviewCSS)
	if err != nil {
		s.logger.Error(r.Context(), err, "issuing preview nonce failed")
		writeInternalError(w, "issuing nonce failed")
		return
	}
	saveNonce, err := s.nonces.Issue(security.ActionSaveSettings)
	if err != nil {
		s.logger.Error(r.Context(), err, "issuing save nonce failed")
		writeInternalError(w, "issuing nonce failed")
		return
	}

	values, err := s.store.Load(r.Context())
	if err != nil {
		s.logger.Warn(r.Context(), err, "loading settings for page failed")
		values = map[string]string{}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, indexData{
		SessionToken: session,
		PreviewNonce: previewNonce,
		SaveNonce:    saveNonce,
		DebounceMs:   s.config.Preview.Debounce.Milliseconds(),
		Fields:       settings.Registry(),
		Values:       values,
	}); err != nil {
		s.logger.Error(r.Context(), err, "rendering admin page failed")
	}
}

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Admin Styler</title>
<style>
body { font-family: sans-serif; margin: 2rem; max-width: 640px; }
label { display: block; margin-top: 0.75rem; font-weight: 600; }
input { width: 100%; padding: 0.3rem; box-sizing: border-box; }
.hint { color: #666; font-size: 0.8rem; }
#status { margin-top: 1rem; min-height: 1.5rem; }
#status .err { color: #b00; }
#status .ok { color: #080; }
button { margin-top: 1rem; padding: 0.5rem 1.5rem; }
</style>
<style id="preview-style"></style>
</head>
<body>
<h1>Admin Styler</h1>
<p class="hint">Edits preview live; Save persists them and pushes the stylesheet to every open page.</p>
<form id="styler" onsubmit="return false">
{{range .Fields}}
<label for="{{.Key}}">{{.Key}}</label>
<input id="{{.Key}}" name="{{.Key}}" value="{{index $.Values .Key}}"
       data-type="{{.Type}}" autocomplete="off">
{{end}}
<button id="save">Save</button>
</form>
<div id="status"></div>
<script>
const state = {
  session: "{{.SessionToken}}",
  nonces: {
    get_preview_css: "{{.PreviewNonce}}",
    save_settings: "{{.SaveNonce}}",
  },
  debounceMs: {{.DebounceMs}},
  timers: {},
};

function setStatus(html) {
  document.getElementById("status").innerHTML = html;
}

function applyCSS(css) {
  document.getElementById("preview-style").textContent = css;
}

async function post(path, body) {
  const res = await fetch(path, {
    method: "POST",
    headers: {
      "Content-Type": "application/json",
      "Authorization": "Bearer " + state.session,
    },
    body: JSON.stringify(body),
  });
  return res.json();
}

async function refreshNonce(action) {
  const out = await post("/api/nonce", {action: action});
  if (out.success && out.data && out.data.nonce) {
    state.nonces[action] = out.data.nonce;
    return true;
  }
  return false;
}

// One transparent retry on an expired nonce; anything else surfaces.
async function send(path, action, settings) {
  let out = await post(path, {nonce: state.nonces[action], settings: settings});
  if (!out.success && out.error && out.error.code === "nonce") {
    if (await refreshNonce(action)) {
      out = await post(path, {nonce: state.nonces[action], settings: settings});
    }
  }
  return out;
}

function renderResult(out) {
  if (!out.success) {
    setStatus('<span class="err">' + (out.error ? out.error.message : "request failed") + "</span>");
    return;
  }
  const errors = (out.data && out.data.errors) || [];
  if (out.data && typeof out.data.css === "string") {
    applyCSS(out.data.css);
  }
  if (errors.length > 0) {
    setStatus(errors.map(function (e) {
      return '<span class="err">' + e.key + ": " + e.reason + "</span>";
    }).join("<br>"));
  } else {
    setStatus('<span class="ok">ok</span>');
  }
}

function collectAll() {
  const settings = {};
  document.querySelectorAll("#styler input").forEach(function (input) {
    if (input.value !== "") {
      settings[input.name] = input.value;
    }
  });
  return settings;
}

document.querySelectorAll("#styler input").forEach(function (input) {
  input.addEventListener("input", function () {
    clearTimeout(state.timers[input.name]);
    state.timers[input.name] = setTimeout(async function () {
      const settings = {};
      settings[input.name] = input.value;
      renderResult(await send("/api/preview-css", "get_preview_css", settings));
    }, state.debounceMs);
  });
});

document.getElementById("save").addEventListener("click", async function () {
  renderResult(await send("/api/settings", "save_settings", collectAll()));
});

const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
ws.onmessage = function (event) {
  const msg = JSON.parse(event.data);
  if (msg.type === "css") {
    applyCSS(msg.css);
  }
};
</script>
</body>
</html>
`
