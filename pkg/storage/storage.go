package storage

import (
	"context"
	"fmt"

	"github.com/levenlabs/go-lflag"
)

// Store persists small pieces of configuration that must survive restarts,
// namely the ids of the messages the bot keeps editing.
type Store interface {
	// Get returns the value stored under key, or an empty string if none is
	// stored.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key, replacing any previous value. The write is
	// durable once Set returns.
	Set(ctx context.Context, key, value string) error

	// Close releases any resources held by the store.
	Close() error
}

// Configured sets up the Store provider based on flags.
func Configured() Store {
	provider := lflag.String("storage-provider", "dotenv", "Storage provider for message ids (available: dotenv, firestore, redis)")

	var p struct{ Store }

	de := configuredDotenv()
	fs := configuredFirestore()
	rd := configuredRedis()

	lflag.Do(func() {
		switch *provider {
		case "dotenv":
			p.Store = de
		case "firestore":
			if err := fs.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("firestore init failed: %v", err))
			}
			p.Store = fs
		case "redis":
			if err := rd.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("redis init failed: %v", err))
			}
			p.Store = rd
		default:
			panic(fmt.Sprintf("unknown storage provider: %s", *provider))
		}
	})

	return &p
}
