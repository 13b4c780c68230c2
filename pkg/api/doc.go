// Package api assembles the HTTP surface: health checks, metrics, the websocket
// endpoint and every /api/v1 route.
//
// Requests pass through request id, access logging, panic recovery, CORS,
// an optional deadline, a body size cap and a JSON content type check before
// reaching the router. Under /api/v1 a bearer token, when present, becomes
// the request principal; each route's permission gate decides whether
// anonymous access is acceptable.
//
//	server := api.NewServer(api.Dependencies{
//		Tokens: tokens,
//		Gate:   gate,
//		Boards: boardsService,
//		Issues: issuesService,
//	}, api.Options{CORSOrigins: []string{"https://app.example.com"}})
//	http.ListenAndServe(":8080", server)
//
// The /auth routes are rate limited per client. /automation and /audit
// require settings.admin.
package api
