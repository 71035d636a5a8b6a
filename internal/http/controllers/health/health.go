// Package health serves the liveness/readiness probe.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/dropDatabas3/notesauth/internal/http/errors"
)

// Pinger is implemented by stores with a backing service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Controller answers /healthz.
type Controller struct {
	store   any
	version string
}

// NewController creates the controller. store may implement Pinger.
func NewController(store any, version string) *Controller {
	return &Controller{store: store, version: version}
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Store   string `json:"store"`
}

// Healthz reports 503 when the store does not answer a ping.
func (c *Controller) Healthz(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Version: c.version, Store: "ok"}
	if p, ok := c.store.(Pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			resp.Status, resp.Store = "degraded", "unreachable"
			errors.WriteJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}
	errors.WriteJSON(w, http.StatusOK, resp)
}
