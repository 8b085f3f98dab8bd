package api

import (
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Endpoint represents an API endpoint with its documentation
type Endpoint struct {
	Path        string `json:"path"`
	Method      string `json:"method"`
	Description string `json:"description"`
}

var endpoints = []Endpoint{
	{Path: "/", Method: "GET", Description: "This sitemap - lists all available API endpoints"},
	{Path: "/health", Method: "GET", Description: `Health check endpoint - returns {"status": "ok"}`},
	{Path: "/api/kinds", Method: "GET", Description: "Registered plugin kinds"},
	{Path: "/api/plugins", Method: "GET", Description: "Plugins in dispatch order with pass and DNA names"},
	{Path: "/api/plugins", Method: "POST", Description: `Add a plugin: {"kind": "modifier"}`},
	{Path: "/api/plugins/{name}", Method: "GET", Description: "One plugin with its settings"},
	{Path: "/api/plugins/{name}", Method: "PUT", Description: `Rename or reconfigure: {"name": "...", "settings": {...}}`},
	{Path: "/api/plugins/{name}", Method: "DELETE", Description: "Remove a plugin"},
	{Path: "/api/dna", Method: "GET", Description: "Current DNA values"},
	{Path: "/api/dna", Method: "PUT", Description: `Set DNA values: {"height": 0.7}`},
	{Path: "/api/dna", Method: "DELETE", Description: "Reset DNA values to the asset defaults"},
	{Path: "/api/dna/names", Method: "GET", Description: "DNA names read by plugins (?refresh=true rebuilds the index)"},
	{Path: "/api/apply", Method: "POST", Description: "Run both passes against the current DNA and return outputs"},
	{Path: "/api/shadow", Method: "GET", Description: "Last apply of every plugin (?plugin=NAME for one)"},
	{Path: "/api/events", Method: "GET", Description: "WebSocket feed of plugin list and DNA value changes"},
}

// handleSitemap returns a list of all available API endpoints
func (s *Server) handleSitemap(w http.ResponseWriter, r *http.Request) {
	// Only handle requests to the root path
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	preferHTML := strings.Contains(r.Header.Get("Accept"), "text/html")

	// Return 404 status code (for automation compatibility) but with helpful body
	if preferHTML {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
    <title>DNA Converter API</title>
    <style>
        body { font-family: monospace; margin: 40px; background: #1e1e1e; color: #d4d4d4; }
        h1 { color: #4ec9b0; }
        .endpoint { background: #2d2d2d; padding: 15px; margin: 10px 0; border-left: 3px solid #007acc; }
        .method { color: #4ec9b0; font-weight: bold; }
        .path { color: #ce9178; }
        .description { color: #9cdcfe; margin-top: 5px; }
    </style>
</head>
<body>
    <h1>DNA Converter API</h1>
    <p>Controller: %s</p>
`, s.controller.Name())
		for _, ep := range endpoints {
			fmt.Fprintf(w, `    <div class="endpoint">
        <div><span class="method">%s</span> <span class="path">%s</span></div>
        <div class="description">%s</div>
    </div>
`, ep.Method, ep.Path, ep.Description)
		}
		fmt.Fprintf(w, "</body>\n</html>\n")
	} else {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintf(w, "DNA Converter API\n")
		fmt.Fprintf(w, "=================\n\n")
		fmt.Fprintf(w, "Controller: %s\n\n", s.controller.Name())
		fmt.Fprintf(w, "Available endpoints:\n\n")
		for _, ep := range endpoints {
			fmt.Fprintf(w, "  %-8s %-22s %s\n", ep.Method, ep.Path, ep.Description)
		}
		fmt.Fprintf(w, "\nExamples:\n\n")
		fmt.Fprintf(w, "  Add a plugin:\n")
		fmt.Fprintf(w, "    curl -X POST -d '{\"kind\":\"modifier\"}' http://localhost:8080/api/plugins\n\n")
		fmt.Fprintf(w, "  Apply with one value overridden:\n")
		fmt.Fprintf(w, "    curl -X POST -d '{\"values\":{\"height\":0.9}}' http://localhost:8080/api/apply | jq\n\n")
	}

	s.logger.Debug("Sitemap request served",
		zap.String("remote_addr", r.RemoteAddr),
		zap.Bool("html_format", preferHTML))
}
