package assistant

// DefaultRoute serves plain chat and unknown tools.
const DefaultRoute = "/api/research/query"

var toolRoutes = map[string]string{
	"deep-research":     "/api/tools/deep-research",
	"shopping-research": "/api/tools/shopping-research",
	"web-search":        "/api/research/query",
	"novax-agent":       "/api/research/query",
	"notebook":          "/api/tools/notebook",
	"study":             "/api/tools/study",
	"canvas":            "/api/tools/canvas",
}

// RouteFor returns the backend endpoint that handles a tool.
func RouteFor(tool string) string {
	if route, ok := toolRoutes[tool]; ok {
		return route
	}
	return DefaultRoute
}
