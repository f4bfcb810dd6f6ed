package routes

import (
	"bytes"
	"fmt"
	"html/template"
	"sort"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/saeid-a/ConsultBookBack/internal/config"
)

const docsIndexHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>{{ .Title }}</title>
  <style>
    body { margin: 2rem; font-family: system-ui, sans-serif; color: #132019; background: #f6f7f4; }
    table { border-collapse: collapse; background: #fff; }
    th, td { padding: .4rem .8rem; border: 1px solid #d8ddd6; text-align: left; }
    code { font-family: ui-monospace, monospace; }
    .muted { color: #536258; }
  </style>
</head>
<body>
  <h1>{{ .Title }}</h1>
  <p class="muted">Loaded {{ .LoadedAt }}</p>
  <table>
    <thead><tr><th>Method</th><th>Path</th></tr></thead>
    <tbody>
    {{- range .Routes }}
      <tr><td><code>{{ .Method }}</code></td><td><code>{{ .Path }}</code></td></tr>
    {{- end }}
    </tbody>
  </table>
</body>
</html>
`

type docsRoute struct {
	Method string
	Path   string
}

type docsPageData struct {
	Title    string
	LoadedAt string
	Routes   []docsRoute
}

// registerDocsRoutes serves an index of the API routes in development.
// It must run after every other route is registered.
func registerDocsRoutes(app *fiber.App, cfg *config.Config) error {
	if !cfg.IsDevelopment() {
		return nil
	}

	indexTemplate, err := template.New("docs-index").Parse(docsIndexHTML)
	if err != nil {
		return fmt.Errorf("parse docs template: %w", err)
	}

	pageData := docsPageData{
		Title:    cfg.BusinessName + " API",
		LoadedAt: time.Now().UTC().Format(time.RFC3339),
		Routes:   collectRoutes(app),
	}

	app.Get("/docs", func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
		c.Set(fiber.HeaderCacheControl, "no-store")
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'; base-uri 'none'; form-action 'none'; frame-ancestors 'none'")

		var body bytes.Buffer
		if err := indexTemplate.Execute(&body, pageData); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to render api docs")
		}
		return c.Status(fiber.StatusOK).Send(body.Bytes())
	})
	return nil
}

func collectRoutes(app *fiber.App) []docsRoute {
	seen := make(map[docsRoute]struct{})
	var routes []docsRoute
	for _, route := range app.GetRoutes(true) {
		if route.Method == fiber.MethodHead || route.Method == fiber.MethodConnect ||
			route.Method == fiber.MethodOptions || route.Method == fiber.MethodTrace {
			continue
		}
		r := docsRoute{Method: route.Method, Path: route.Path}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		routes = append(routes, r)
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	return routes
}
