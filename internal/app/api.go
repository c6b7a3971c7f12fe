package app

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"sort"
	"strings"

	"github.com/gorilla/mux"

	"github.com/R3E-Network/bookstore_lambda/internal/app/httpapi"
	"github.com/R3E-Network/bookstore_lambda/internal/middleware"
)

// Route is one registered method and path template.
type Route struct {
	Method string
	Path   string
}

func (r Route) String() string { return fmt.Sprintf("%-7s %s", r.Method, r.Path) }

// API is an assembled HTTP handler and the routes it serves.
type API struct {
	Handler http.Handler
	Routes  []Route
	Limiter *middleware.RateLimiter
}

// BuildAPI connects to the database and assembles the handler for the named
// routers. Health is always mounted. The connection is released again when
// assembly fails.
func (a *Application) BuildAPI(ctx context.Context, names ...string) (*API, error) {
	if len(names) > 0 && !slices.Contains(names, RouterHealth) {
		names = append([]string{RouterHealth}, names...)
	}
	routers, err := a.Routers(names...)
	if err != nil {
		return nil, err
	}

	a.connector.Connect(ctx)

	api, err := a.assemble(routers)
	if err != nil {
		if derr := a.connector.Disconnect(ctx); derr != nil {
			a.Log.WithError(derr).Warn("release connection after failed build")
		}
		return nil, err
	}

	for _, route := range api.Routes {
		a.Log.Infof("Mapped %s", route)
	}
	return api, nil
}

func (a *Application) assemble(routers []httpapi.Router) (*API, error) {
	env := a.Envelope
	root := mux.NewRouter()
	root.Use(env.RouteTagger)
	root.NotFoundHandler = env.NotFound()
	root.MethodNotAllowedHandler = env.NotFound()

	seen := make(map[string]bool, len(routers))
	for _, r := range routers {
		base := strings.TrimRight(r.BasePath(), "/")
		if base == "" {
			return nil, fmt.Errorf("router %T has an empty base path", r)
		}
		if seen[base] {
			return nil, fmt.Errorf("duplicate router base path %s", base)
		}
		seen[base] = true
		r.Register(root.PathPrefix(base).Subrouter(), env)
	}

	routes, err := walkRoutes(root)
	if err != nil {
		return nil, err
	}

	var handler http.Handler = root
	var limiter *middleware.RateLimiter
	if a.Config.RateLimitRPS > 0 {
		limiter = middleware.NewRateLimiter(float64(a.Config.RateLimitRPS), a.Config.RateLimitBurst, a.Log)
		handler = env.Guard(limiter.Check)(handler)
	}
	handler = middleware.NewCORSMiddleware(a.Config.CORSOrigins).Handler(handler)
	handler = env.Middleware(handler)

	return &API{Handler: handler, Routes: routes, Limiter: limiter}, nil
}

func walkRoutes(root *mux.Router) ([]Route, error) {
	var routes []Route
	err := root.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		path, err := route.GetPathTemplate()
		if err != nil {
			return nil
		}
		methods, err := route.GetMethods()
		if err != nil {
			return nil
		}
		for _, m := range methods {
			routes = append(routes, Route{Method: m, Path: path})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk routes: %w", err)
	}
	sort.SliceStable(routes, func(i, j int) bool {
		if routes[i].Path != routes[j].Path {
			return routes[i].Path < routes[j].Path
		}
		return routes[i].Method < routes[j].Method
	})
	return routes, nil
}
