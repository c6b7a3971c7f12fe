// Package app composes the process: configuration, the shared logger and
// database lifecycle, the stores, the routers and the scheduled jobs.
//
//	internal/app/
//	├── application.go  # singletons and wiring
//	├── api.go          # HTTP handler assembly (middleware, routers, route log)
//	├── domain/         # author and book entities and their errors
//	├── storage/        # store interfaces, memory/ and postgres/ implementations
//	├── services/       # use cases
//	├── httpapi/        # routers
//	├── jobs/           # scheduled jobs
//	└── metrics/        # Prometheus collectors
//
// Entry points in cmd/ build an Application once per process and hand its
// envelope to internal/serverless.
package app
