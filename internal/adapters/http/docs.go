package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/cityview/api"
)

const openAPIPath = "/v1/openapi.yaml"

// The WebSocket session is not expressible in OpenAPI, so the page points at
// its protocol next to the REST and GraphQL reference.
const swaggerUIHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>CityView API reference</title>
  <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui.css">
  <style>body{margin:0;font-family:sans-serif}header{padding:12px 20px;background:#1b4965;color:#fff}header code{color:#cae9ff}</style>
</head>
<body>
  <header>
    Restaurants around Rio de Janeiro and São Paulo.
    Interactive sessions: <code>GET /ws</code>, send <code>{"action":"ready"}</code> then <code>{"action":"select","view":"cityA"}</code>.
  </header>
  <div id="swagger-ui"></div>
  <script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({
      url: '` + openAPIPath + `',
      dom_id: '#swagger-ui',
      deepLinking: true,
      tryItOutEnabled: true,
      supportedSubmitMethods: ['get', 'post'],
    });
  </script>
</body>
</html>`

// SetupDocs serves the reference page at /docs and the embedded OpenAPI
// document at /v1/openapi.yaml.
func SetupDocs(app *fiber.App) {
	app.Get("/docs", func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
		return c.SendString(swaggerUIHTML)
	})

	app.Get(openAPIPath, func(c *fiber.Ctx) error {
		if len(api.OpenAPI) == 0 {
			return newError(c, fiber.StatusServiceUnavailable, "docs_unavailable", "OpenAPI document is empty")
		}
		c.Set(fiber.HeaderContentType, "application/yaml")
		return c.Send(api.OpenAPI)
	})
}
