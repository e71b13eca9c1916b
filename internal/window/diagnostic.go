package window

import (
	"html/template"
	"log"
	"strings"
)

// RetryCountdownSeconds is how long the diagnostic page waits before retrying
// the server on its own.
const RetryCountdownSeconds = 5

var diagnosticTmpl = template.Must(template.New("diagnostic").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>ChatWrap</title>
<style>
body { font-family: sans-serif; background: #1e1e26; color: #e8e8ef; display: flex; align-items: center; justify-content: center; height: 100vh; margin: 0; }
.card { max-width: 28em; text-align: center; }
.addr { font-family: monospace; word-break: break-all; color: #9ab; }
.cause { color: #c66; font-size: 0.85em; }
button { margin: 0.5em; padding: 0.5em 1.5em; border: 1px solid #555; border-radius: 4px; background: #2a2a34; color: inherit; cursor: pointer; }
button:hover { background: #34343f; }
</style>
</head>
<body>
<div class="card">
<h2>Cannot reach the server</h2>
<p class="addr">{{.Addr}}</p>
<p class="cause">{{.Cause}}</p>
<p>Retrying in <span id="count">{{.Seconds}}</span>s&hellip;</p>
<button id="retry">Retry now</button>
<button id="configure">Change server</button>
</div>
<script>
(function () {
	var left = {{.Seconds}};
	var el = document.getElementById('count');
	var timer = setInterval(function () {
		left--;
		el.textContent = left;
		if (left <= 0) {
			clearInterval(timer);
			window.` + bindRetry + `();
		}
	}, 1000);
	document.getElementById('retry').onclick = function () {
		clearInterval(timer);
		window.` + bindRetry + `();
	};
	document.getElementById('configure').onclick = function () {
		clearInterval(timer);
		window.chatwrap.invoke('server-url-configure');
	};
})();
</script>
</body>
</html>
`))

// DiagnosticPage renders the inline page shown when the configured server
// cannot be loaded. The failing address is shown verbatim; template escaping
// keeps it inert.
func DiagnosticPage(addr string, cause error) string {
	data := struct {
		Addr    string
		Cause   string
		Seconds int
	}{Addr: addr, Seconds: RetryCountdownSeconds}
	if cause != nil {
		data.Cause = cause.Error()
	}

	var b strings.Builder
	if err := diagnosticTmpl.Execute(&b, data); err != nil {
		log.Printf("Failed to render diagnostic page: %v", err)
		return "<html><body>Cannot reach the server.</body></html>"
	}
	return b.String()
}
