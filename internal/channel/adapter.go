// Package channel delivers a single message to a single destination over
// email or SMS. Provider selection comes from the communication settings.
package channel

import (
	"context"
	"fmt"
	"sync"

	"github.com/churchdesk/admin-api/internal/model"
	"github.com/churchdesk/admin-api/pkg/circuitbreaker"
	"github.com/churchdesk/admin-api/pkg/logger"
)

const ProviderNone = "none"

// Outcome is the result of one send. Provider failures never surface as
// errors; they are reported through Success and ErrorDetail.
type Outcome struct {
	Success     bool   `json:"success"`
	ErrorDetail string `json:"error,omitempty"`
	Provider    string `json:"provider"`
	Simulated   bool   `json:"simulated,omitempty"`
}

func succeeded(provider string) Outcome {
	return Outcome{Success: true, Provider: provider}
}

func failed(provider string, err error) Outcome {
	return Outcome{Provider: provider, ErrorDetail: err.Error()}
}

func simulated() Outcome {
	return Outcome{Success: true, Provider: ProviderNone, Simulated: true}
}

// Adapter sends to one destination. subject is ignored by SMS.
type Adapter interface {
	Send(ctx context.Context, destination, subject, body string) Outcome
}

// Registry maps a channel to its adapter.
type Registry struct {
	adapters map[model.Channel]Adapter
}

func NewRegistry(email, sms Adapter) *Registry {
	return &Registry{adapters: map[model.Channel]Adapter{
		model.ChannelEmail: email,
		model.ChannelSMS:   sms,
	}}
}

func (r *Registry) For(ch model.Channel) (Adapter, error) {
	a, ok := r.adapters[ch]
	if !ok || a == nil {
		return nil, fmt.Errorf("no adapter registered for channel %q", ch)
	}
	return a, nil
}

// breakerSet lazily creates one breaker per provider.
type breakerSet struct {
	mu       sync.Mutex
	breakers map[string]*circuitbreaker.CircuitBreaker
	logger   *logger.Logger
}

func newBreakerSet(log *logger.Logger) *breakerSet {
	return &breakerSet{breakers: make(map[string]*circuitbreaker.CircuitBreaker), logger: log}
}

func (b *breakerSet) get(provider string) *circuitbreaker.CircuitBreaker {
	b.mu.Lock()
	defer b.mu.Unlock()

	cb, ok := b.breakers[provider]
	if !ok {
		cb = circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        provider,
			MaxFailures: 10,
			OnStateChange: func(name string, from, to circuitbreaker.State) {
				b.logger.Warn("provider circuit changed state",
					"provider", name, "from", string(from), "to", string(to))
			},
		})
		b.breakers[provider] = cb
	}
	return cb
}
