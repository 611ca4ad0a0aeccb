// Package circuitbreaker guards outbound calls to other services.
package circuitbreaker

import (
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/Shreyas-s47/cloudykitchen/pkg/apperr"
)

// ErrUnavailable is returned while the breaker is open or saturated in half-open state.
var ErrUnavailable = errors.New("dependency unavailable")

type Settings struct {
	Name             string
	MaxHalfOpen      uint32
	Interval         time.Duration
	OpenTimeout      time.Duration
	ConsecutiveFails uint32
}

func DefaultSettings(name string) Settings {
	return Settings{
		Name:             name,
		MaxHalfOpen:      1,
		Interval:         60 * time.Second,
		OpenTimeout:      10 * time.Second,
		ConsecutiveFails: 5,
	}
}

type Breaker struct {
	cb *gobreaker.CircuitBreaker[any]
}

// New builds a breaker that trips after ConsecutiveFails infrastructure failures. Domain errors
// count as successful calls: the dependency answered.
func New(s Settings, log *zap.Logger) *Breaker {
	return &Breaker{cb: gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: s.MaxHalfOpen,
		Interval:    s.Interval,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= s.ConsecutiveFails
		},
		IsSuccessful: func(err error) bool {
			return err == nil || apperr.IsDomain(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})}
}

func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

// Do runs fn through the breaker.
func Do[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var zero T
	res, err := b.cb.Execute(func() (any, error) {
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return zero, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err != nil {
		return zero, err
	}
	v, _ := res.(T)
	return v, nil
}
