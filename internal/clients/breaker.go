// internal/clients/breaker.go
package clients

import (
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerSettings returns the circuit breaker settings shared by the outbound
// clients: five consecutive failures open the circuit for thirty seconds.
// isSuccessful decides which errors count as failures; nil counts every
// error.
func BreakerSettings(name string, logger *slog.Logger, isSuccessful func(error) bool) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: isSuccessful,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	}
}
