package health

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrWong99/glossa/internal/dialogue"
)

// Pinger is implemented by stores with a connection to probe, such as
// [dialogue.PostgresStore].
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping returns a checker that probes p.
func Ping(name string, p Pinger) Checker {
	return Checker{Name: name, Check: p.Ping}
}

// errNoContent is reported when no character has a conversation.
var errNoContent = errors.New("no character has a conversation")

// Content returns a checker that passes when at least one character has a
// conversation in store.
func Content(store dialogue.Store) Checker {
	return Checker{
		Name: "content",
		Check: func(ctx context.Context) error {
			for _, k := range dialogue.Kinds() {
				_, err := store.Graph(ctx, k)
				switch {
				case err == nil:
					return nil
				case errors.Is(err, dialogue.ErrNotFound):
					continue
				default:
					return fmt.Errorf("load %s: %w", k, err)
				}
			}
			return errNoContent
		},
	}
}
