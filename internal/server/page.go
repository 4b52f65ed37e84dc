package server

import (
	"html/template"
	"net/http"
)

type authPage struct {
	Title   string
	Message string
	Failed  bool
}

var authTemplate = template.Must(template.New("auth").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>radial · {{.Title}}</title>
<style>
  body { margin: 0; min-height: 100vh; display: grid; place-items: center;
         font-family: system-ui, sans-serif; background: #121212; color: #b3b3b3; }
  main { max-width: 32rem; padding: 2rem 2.5rem; border-radius: 12px; background: #181818; text-align: center; }
  h1 { margin: 0 0 .75rem; color: {{if .Failed}}#e22134{{else}}#1db954{{end}}; }
  code { color: #fff; }
</style>
</head>
<body>
<main>
  <h1>{{if .Failed}}✗{{else}}✓{{end}} {{.Title}}</h1>
  <p>{{.Message}}</p>
</main>
</body>
</html>
`))

// renderAuthOK writes the page shown after a successful authorization.
func renderAuthOK(w http.ResponseWriter, message string) {
	renderAuth(w, http.StatusOK, authPage{Title: "Authorization Successful", Message: message})
}

// renderAuthError writes a failure page with status.
func renderAuthError(w http.ResponseWriter, status int, message string) {
	renderAuth(w, status, authPage{Title: "Authorization Failed", Message: message, Failed: true})
}

func renderAuth(w http.ResponseWriter, status int, page authPage) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	authTemplate.Execute(w, page)
}
