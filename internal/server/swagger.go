package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"
	"gopkg.in/yaml.v2"
)

// setupSwaggerRoutes sets up Swagger UI routes for API documentation
func (s *Server) setupSwaggerRoutes(r *mux.Router) {
	// Serve OpenAPI spec
	r.HandleFunc("/docs/openapi.yaml", s.handleOpenAPISpec).Methods("GET")
	r.HandleFunc("/docs/openapi.json", s.handleOpenAPISpec).Methods("GET")

	// Serve Swagger UI
	r.HandleFunc("/docs", s.handleSwaggerUI).Methods("GET")
	r.HandleFunc("/docs/", s.handleSwaggerUI).Methods("GET")
}

// handleOpenAPISpec serves the OpenAPI specification, converting the YAML
// source to JSON on demand.
func (s *Server) handleOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	specPath := filepath.Join("docs", "openapi.yaml")

	if strings.HasSuffix(r.URL.Path, ".json") {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")

		yamlData, err := os.ReadFile(specPath)
		if err != nil {
			http.Error(w, "OpenAPI spec not found", http.StatusNotFound)
			return
		}

		var spec interface{}
		if err := yaml.Unmarshal(yamlData, &spec); err != nil {
			http.Error(w, "Error parsing OpenAPI spec", http.StatusInternalServerError)
			return
		}

		jsonData, err := json.MarshalIndent(spec, "", "  ")
		if err != nil {
			http.Error(w, "Error converting to JSON", http.StatusInternalServerError)
			return
		}

		w.Write(jsonData)
		return
	}

	w.Header().Set("Content-Type", "text/yaml")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	http.ServeFile(w, r, specPath)
}

// handleSwaggerUI serves the Swagger UI interface
func (s *Server) handleSwaggerUI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")

	baseURL := getBaseURL(r)
	specURL := fmt.Sprintf("%s/docs/openapi.yaml", baseURL)

	html := fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>AI Router - API Documentation</title>
    <link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist@5.9.0/swagger-ui.css" />
    <style>
        html {
            box-sizing: border-box;
            overflow: -moz-scrollbars-vertical;
            overflow-y: scroll;
        }
        *, *:before, *:after {
            box-sizing: inherit;
        }
        body {
            margin:0;
            background: #fafafa;
        }
        .swagger-ui .topbar { display: none; }
        .custom-header {
            background: #1f2937;
            color: white;
            padding: 1rem 2rem;
            margin-bottom: 2rem;
        }
        .custom-header h1 {
            margin: 0;
            font-size: 1.5rem;
        }
        .custom-header p {
            margin: 0.5rem 0 0 0;
            opacity: 0.8;
        }
    </style>
</head>
<body>
    <div class="custom-header">
        <h1>AI Router API Documentation</h1>
        <p>Privacy-aware routing between local and cloud AI backends</p>
    </div>
    <div id="swagger-ui"></div>

    <script src="https://unpkg.com/swagger-ui-dist@5.9.0/swagger-ui-bundle.js"></script>
    <script src="https://unpkg.com/swagger-ui-dist@5.9.0/swagger-ui-standalone-preset.js"></script>
    <script>
        window.onload = function() {
            const ui = SwaggerUIBundle({
                url: '%s',
                dom_id: '#swagger-ui',
                deepLinking: true,
                presets: [
                    SwaggerUIBundle.presets.apis,
                    SwaggerUIStandalonePreset
                ],
                layout: "StandaloneLayout",
                defaultModelsExpandDepth: 0,
                defaultModelExpandDepth: 3,
                docExpansion: "list",
                filter: true,
                supportedSubmitMethods: ['get', 'post', 'put'],
                validatorUrl: null
            });
        };
    </script>
</body>
</html>`, specURL)

	w.Write([]byte(html))
}

// getBaseURL extracts the base URL from the request, honoring forwarded
// headers set by reverse proxies.
func getBaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if forwardedProto := r.Header.Get("X-Forwarded-Proto"); forwardedProto != "" {
		scheme = forwardedProto
	}

	host := r.Host
	if forwardedHost := r.Header.Get("X-Forwarded-Host"); forwardedHost != "" {
		host = forwardedHost
	}

	return fmt.Sprintf("%s://%s", scheme, host)
}
