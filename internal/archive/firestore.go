package archive

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const defaultCollection = "analysis_results"

// FirestoreStore writes one document per job, keyed by job id.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
	create     func(ctx context.Context, id string, rec Record) error
}

// NewFirestoreStore connects to Firestore in projectID.
func NewFirestoreStore(ctx context.Context, projectID, collection string) (*FirestoreStore, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}
	if collection == "" {
		collection = defaultCollection
	}
	s := &FirestoreStore{client: client, collection: collection}
	s.create = func(ctx context.Context, id string, rec Record) error {
		_, err := s.client.Collection(s.collection).Doc(id).Create(ctx, rec)
		return err
	}
	return s, nil
}

func (s *FirestoreStore) Append(ctx context.Context, rec Record) error {
	if rec.JobID == "" {
		return errors.New("archive record has no job id")
	}
	err := s.create(ctx, rec.JobID, rec)
	if status.Code(err) == codes.AlreadyExists {
		return nil
	}
	if err != nil {
		return fmt.Errorf("firestore create %s/%s: %w", s.collection, rec.JobID, err)
	}
	return nil
}

// Close releases the client.
func (s *FirestoreStore) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

var _ Store = (*FirestoreStore)(nil)
