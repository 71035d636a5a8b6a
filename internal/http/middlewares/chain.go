// Package middlewares holds the http.Handler decorators of the API. They are
// plain func(http.Handler) http.Handler values, so chi's Use and With accept
// them directly.
package middlewares

import "net/http"

// Middleware decorates an http.Handler.
type Middleware func(http.Handler) http.Handler
