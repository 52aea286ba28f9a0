package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/levenlabs/go-lflag"
	"github.com/solarbot/solarbot/pkg/types"
)

// ErrSessionExpired is returned by ReadFields when the session is no longer
// valid and Authenticate must be called again.
var ErrSessionExpired = errors.New("session expired")

// Source is the inverter dashboard the bot reads from.
type Source interface {
	// Authenticate starts a new session, replacing any existing one.
	Authenticate(ctx context.Context) error

	// ReadFields returns the live power flow as the dashboard displays it.
	ReadFields(ctx context.Context) (types.RawFields, error)

	// Close releases the session.
	Close() error
}

// Configured sets up the Source provider based on flags.
func Configured() Source {
	provider := lflag.String("source-provider", "sunsynk", "Where telemetry is read from (available: sunsynk, simulated)")

	var p struct{ Source }

	ss := configuredSunsynk()
	sim := configuredSimulated()

	lflag.Do(func() {
		switch *provider {
		case "sunsynk":
			if err := ss.Validate(); err != nil {
				panic(fmt.Sprintf("sunsynk validation failed: %v", err))
			}
			p.Source = ss
		case "simulated":
			p.Source = sim
		default:
			panic(fmt.Sprintf("unknown source provider: %s", *provider))
		}
	})

	return &p
}
