// Package server provides HTTP routing, middleware, OAuth handling and the clustering web service.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering, so path wildcards
// such as /jobs/{id} are available through [http.Request.PathValue].
//
// # OAuth
//
// [OAuthHandler] serves the single callback of the CLI login: `radial auth login` starts a temporary server on
// the redirect address, opens the browser and waits for one token on [OAuthHandler.Result].
//
// [LoginHandler] serves /login and /callback for the long running service. Every login gets its own state,
// and the token is handed to a [CompleteLogin] function that stores the user.
//
// # Clustering API
//
// [API] accepts clustering submissions, runs them in the background through a [tasks.JobRegistry] and serves
// the resulting artifacts. Errors are mapped to status codes by [StatusFor]: validation failures are 400,
// unknown users, runs or clusters are 404, missing credentials are 401 and Spotify failures are 502.
//
// [NewApp] wires everything together and [ListenAndServe] runs it until the context is cancelled.
package server
