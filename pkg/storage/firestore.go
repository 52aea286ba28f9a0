package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"cloud.google.com/go/firestore"
	"github.com/levenlabs/go-lflag"
	"github.com/solarbot/solarbot/pkg/log"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	firestoreCollection = "config"
	firestoreDocument   = "messages"
)

// FirestoreStore implements Store using Google Cloud Firestore. Every key is
// a field on a single config/messages document.
type FirestoreStore struct {
	client    *firestore.Client
	projectID string
	database  string
}

// configuredFirestore sets up the Firestore provider.
// It registers flags for configuration.
func configuredFirestore() *FirestoreStore {
	projectID := lflag.String("firestore-project-id", "", "Google Cloud Project ID for Firestore")
	database := lflag.String("firestore-database", "", "Google Cloud Firestore Database")
	emulator := lflag.String("firestore-emulator", "", "Use Firestore emulator")

	f := &FirestoreStore{}

	lflag.Do(func() {
		f.projectID = *projectID
		f.database = *database

		// set this because that's how firestore client expects it
		if *emulator != "" {
			os.Setenv("FIRESTORE_EMULATOR_HOST", *emulator)
		}
	})

	return f
}

// Init initializes the Firestore client.
// This must be called before using the provider methods.
func (f *FirestoreStore) Init(ctx context.Context) error {
	projectID := f.projectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	database := f.database
	if database == "" {
		database = firestore.DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, database)
	if err != nil {
		return fmt.Errorf("failed to create firestore client (project=%s, database=%s): %w", projectID, database, err)
	}
	f.client = client
	return nil
}

// Close closes the Firestore client connection.
func (f *FirestoreStore) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

func (f *FirestoreStore) doc() *firestore.DocumentRef {
	return f.client.Collection(firestoreCollection).Doc(firestoreDocument)
}

// Get returns the field named key, or an empty string when the document or
// field does not exist.
func (f *FirestoreStore) Get(ctx context.Context, key string) (string, error) {
	snap, err := f.doc().Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return "", nil
		}
		return "", fmt.Errorf("failed to fetch messages doc: %w", err)
	}
	val, err := snap.DataAt(key)
	if err != nil {
		// DataAt fails for fields that were never written
		return "", nil
	}
	s, ok := val.(string)
	if !ok {
		log.Ctx(ctx).WarnContext(ctx, "messages doc field not string", slog.String("key", key))
		return "", fmt.Errorf("field %s is not a string", key)
	}
	return s, nil
}

// Set merges key into the document, leaving other fields untouched.
func (f *FirestoreStore) Set(ctx context.Context, key, value string) error {
	_, err := f.doc().Set(ctx, map[string]interface{}{
		key: value,
	}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}
