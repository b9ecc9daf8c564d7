package llm

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/sony/gobreaker"
)

// ErrNoProvider is returned when every configured provider failed or none
// is configured. Callers fall back to templates.
var ErrNoProvider = errors.New("llm: no provider available")

// Router tries the primary provider behind a circuit breaker, then the
// secondary. Template fallback is the caller's job.
type Router struct {
	primary   Client
	secondary Client
	breaker   *gobreaker.CircuitBreaker
}

// NewRouter accepts nil clients; a nil primary with a non-nil secondary
// still works.
func NewRouter(primary, secondary Client) *Router {
	r := &Router{primary: primary, secondary: secondary}
	if primary != nil {
		r.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "llm-primary",
			MaxRequests: 1,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 3
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Printf("llm: breaker %s %s -> %s", name, from, to)
			},
		})
	}
	return r
}

// Generate routes a prompt through the providers in order. All failures are
// logged and folded into ErrNoProvider so drafting degrades to templates
// without caring which provider broke.
func (r *Router) Generate(ctx context.Context, prompt string) (string, error) {
	if r == nil {
		return "", ErrNoProvider
	}
	if r.primary != nil {
		out, err := r.breaker.Execute(func() (interface{}, error) {
			return r.primary.Generate(ctx, prompt)
		})
		if err == nil {
			return out.(string), nil
		}
		log.Printf("llm: primary %s failed: %v", r.primary.Name(), err)
	}
	if r.secondary != nil {
		text, err := r.secondary.Generate(ctx, prompt)
		if err == nil {
			return text, nil
		}
		log.Printf("llm: secondary %s failed: %v", r.secondary.Name(), err)
	}
	return "", ErrNoProvider
}
