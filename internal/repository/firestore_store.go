package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/doc-intake/internal/common"
	"github.com/joseph-ayodele/doc-intake/internal/entity"
	"github.com/joseph-ayodele/doc-intake/internal/fields"
)

// firestoreDocument is the stored shape: identity fields sit at the top level
// next to userId and timestamp.
type firestoreDocument struct {
	UserID         string            `firestore:"userId"`
	Title          string            `firestore:"title"`
	DocumentType   string            `firestore:"documentType"`
	FullName       string            `firestore:"fullName"`
	DateOfBirth    string            `firestore:"dateOfBirth"`
	AadharNumber   string            `firestore:"aadharNumber"`
	Gender         string            `firestore:"gender"`
	Address        string            `firestore:"address"`
	DocumentNumber string            `firestore:"documentNumber"`
	Extra          map[string]string `firestore:"extra,omitempty"`
	OriginalText   string            `firestore:"originalText"`
	SourcePath     string            `firestore:"sourcePath"`
	ContentHash    string            `firestore:"contentHash"`
	Timestamp      time.Time         `firestore:"timestamp"`
	UpdatedAt      time.Time         `firestore:"updatedAt"`
}

func toFirestore(d *entity.Document) firestoreDocument {
	return firestoreDocument{
		UserID:         d.OwnerID,
		Title:          d.Title,
		DocumentType:   d.DocumentType,
		FullName:       d.Fields.FullName,
		DateOfBirth:    d.Fields.DateOfBirth,
		AadharNumber:   d.Fields.IDNumber,
		Gender:         d.Fields.Gender,
		Address:        d.Fields.Address,
		DocumentNumber: d.Fields.DocumentNumber,
		Extra:          d.Extra,
		OriginalText:   d.OriginalText,
		SourcePath:     d.SourcePath,
		ContentHash:    d.ContentHash,
		Timestamp:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

func fromFirestore(id string, f firestoreDocument) *entity.Document {
	return &entity.Document{
		ID:           id,
		OwnerID:      f.UserID,
		Title:        f.Title,
		DocumentType: f.DocumentType,
		Fields: fields.ExtractedFields{
			FullName:       f.FullName,
			DateOfBirth:    f.DateOfBirth,
			IDNumber:       f.AadharNumber,
			Gender:         f.Gender,
			Address:        f.Address,
			DocumentNumber: f.DocumentNumber,
		},
		Extra:        f.Extra,
		OriginalText: f.OriginalText,
		SourcePath:   f.SourcePath,
		ContentHash:  f.ContentHash,
		CreatedAt:    f.Timestamp.UTC(),
		UpdatedAt:    f.UpdatedAt.UTC(),
	}
}

// FirestoreStore keeps documents in a Firestore collection.
// Listing needs a composite index on (userId, timestamp desc).
type FirestoreStore struct {
	client     *firestore.Client
	collection string
	logger     *slog.Logger
	now        func() time.Time
}

// NewFirestoreStore creates a client for projectID.
func NewFirestoreStore(ctx context.Context, projectID, collection string, logger *slog.Logger) (*FirestoreStore, error) {
	if projectID == "" {
		return nil, fmt.Errorf("%w: projectID must be provided to create a firestore client", common.ErrInvalidInput)
	}
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}
	return NewFirestoreStoreFromClient(client, collection, logger), nil
}

func NewFirestoreStoreFromClient(client *firestore.Client, collection string, logger *slog.Logger) *FirestoreStore {
	if logger == nil {
		logger = slog.Default()
	}
	if collection == "" {
		collection = "documents"
	}
	return &FirestoreStore{client: client, collection: collection, logger: logger, now: time.Now}
}

func (s *FirestoreStore) col() *firestore.CollectionRef {
	return s.client.Collection(s.collection)
}

func (s *FirestoreStore) Save(ctx context.Context, doc *entity.Document) (string, error) {
	now := s.now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = doc.CreatedAt
	}

	if doc.ID == "" {
		ref, _, err := s.col().Add(ctx, toFirestore(doc))
		if err != nil {
			s.logger.Error("failed to save document", "owner_id", doc.OwnerID, "error", err)
			return "", fmt.Errorf("firestore add: %w", err)
		}
		doc.ID = ref.ID
		return doc.ID, nil
	}

	if _, err := s.col().Doc(doc.ID).Create(ctx, toFirestore(doc)); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return "", fmt.Errorf("document %s: %w", doc.ID, common.ErrConflict)
		}
		return "", fmt.Errorf("firestore create: %w", err)
	}
	return doc.ID, nil
}

// load reads one snapshot and hides documents of other owners.
func (s *FirestoreStore) load(snap *firestore.DocumentSnapshot, ownerID string) (*entity.Document, error) {
	var fd firestoreDocument
	if err := snap.DataTo(&fd); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", snap.Ref.ID, err)
	}
	if fd.UserID != ownerID {
		return nil, fmt.Errorf("document %s: %w", snap.Ref.ID, common.ErrNotFound)
	}
	return fromFirestore(snap.Ref.ID, fd), nil
}

func (s *FirestoreStore) Get(ctx context.Context, ownerID, id string) (*entity.Document, error) {
	snap, err := s.col().Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("document %s: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("firestore get: %w", err)
	}
	return s.load(snap, ownerID)
}

func (s *FirestoreStore) collect(it *firestore.DocumentIterator, ownerID string) ([]*entity.Document, error) {
	defer it.Stop()
	var out []*entity.Document
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore query: %w", err)
		}
		doc, err := s.load(snap, ownerID)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

func (s *FirestoreStore) List(ctx context.Context, ownerID string) ([]*entity.Document, error) {
	it := s.col().
		Where("userId", "==", ownerID).
		OrderBy("timestamp", firestore.Desc).
		Documents(ctx)
	docs, err := s.collect(it, ownerID)
	if err != nil {
		s.logger.Error("failed to list documents", "owner_id", ownerID, "error", err)
		return nil, err
	}
	return docs, nil
}

func (s *FirestoreStore) FindByContentHash(ctx context.Context, ownerID, hash string) (*entity.Document, error) {
	it := s.col().
		Where("userId", "==", ownerID).
		Where("contentHash", "==", hash).
		Limit(1).
		Documents(ctx)
	docs, err := s.collect(it, ownerID)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("document with hash %s: %w", hash, common.ErrNotFound)
	}
	return docs[0], nil
}

// updates lists the mutable paths of doc.
func updates(doc *entity.Document) []firestore.Update {
	f := toFirestore(doc)
	var extra any = firestore.Delete
	if len(f.Extra) > 0 {
		extra = f.Extra
	}
	return []firestore.Update{
		{Path: "title", Value: f.Title},
		{Path: "documentType", Value: f.DocumentType},
		{Path: "fullName", Value: f.FullName},
		{Path: "dateOfBirth", Value: f.DateOfBirth},
		{Path: "aadharNumber", Value: f.AadharNumber},
		{Path: "gender", Value: f.Gender},
		{Path: "address", Value: f.Address},
		{Path: "documentNumber", Value: f.DocumentNumber},
		{Path: "extra", Value: extra},
		{Path: "updatedAt", Value: f.UpdatedAt},
	}
}

func (s *FirestoreStore) Update(ctx context.Context, ownerID, id string, patch entity.DocumentPatch) (*entity.Document, error) {
	ref := s.col().Doc(id)
	var out *entity.Document
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return fmt.Errorf("document %s: %w", id, common.ErrNotFound)
			}
			return err
		}
		doc, err := s.load(snap, ownerID)
		if err != nil {
			return err
		}
		doc.Apply(patch, s.now().UTC())
		out = doc
		return tx.Update(ref, updates(doc))
	})
	if err != nil {
		s.logger.Error("failed to update document", "owner_id", ownerID, "id", id, "error", err)
		return nil, err
	}
	return out, nil
}

func (s *FirestoreStore) Delete(ctx context.Context, ownerID, id string) error {
	ref := s.col().Doc(id)
	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return fmt.Errorf("document %s: %w", id, common.ErrNotFound)
			}
			return err
		}
		if _, err := s.load(snap, ownerID); err != nil {
			return err
		}
		return tx.Delete(ref)
	})
}

func (s *FirestoreStore) Ping(ctx context.Context) error {
	_, err := s.col().Limit(1).Documents(ctx).GetAll()
	return err
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}
