// Package api is the JSON HTTP surface of the developer hub.
//
// Server mounts a gorilla/mux router under /api/v1 whose paths mirror the
// developer hub paths returned by devhub (for example
// /api/v1/developers/submit/3/<slug>), so a {"redirect": path} answer can
// be followed by prefixing it with Prefix.
//
// # Middleware
//
// Requests pass through request-id stamping, Prometheus instrumentation
// (labelled by route template), bearer token authentication and a
// per-client token bucket. Tokens are HS256 JWTs whose subject is the
// user id; IssueToken mints them for the CLI. Missing tokens continue as
// anonymous and the workflows answer 401 where a user is required.
//
// # Responses
//
// Success bodies are the DTOs in types.go or the devhub views. Field
// validation answers 400 with {"errors": {field: [messages]}}, wizard
// navigation answers 200 with {"redirect": path}, and other failures use
// {"error": message} with the status from services.HTTPStatus.
//
// TaskService and the converters are shared with the CLI, which renders
// the same DTOs as tables.
package api
