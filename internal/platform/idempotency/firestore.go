package idempotency

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"

	pfirestore "github.com/personaliza/api/internal/platform/firestore"
)

const defaultCollection = "idempotency_keys"

// FirestoreStore implements Store on top of Firestore transactions.
type FirestoreStore struct {
	provider   *pfirestore.Provider
	collection *pfirestore.Collection[firestoreRecord]
}

// NewFirestoreStore constructs a Firestore-backed store writing to idempotency_keys.
func NewFirestoreStore(provider *pfirestore.Provider) *FirestoreStore {
	return &FirestoreStore{
		provider:   provider,
		collection: pfirestore.NewCollection[firestoreRecord](provider, defaultCollection),
	}
}

func (s *FirestoreStore) Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error) {
	var result Reservation
	err := s.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := s.collection.Doc(ctx, documentID(key))
		if err != nil {
			return err
		}
		stored, err := s.collection.GetTx(ctx, tx, documentID(key))
		if err != nil && !isNotFound(err) {
			return err
		}
		record := stored.toRecord()
		if err == nil && !record.expired(now) {
			result, err = reservationFor(record, fingerprint)
			return err
		}
		record = newPendingRecord(key, fingerprint, now, ttl)
		result = Reservation{State: ReservationStateNew, Record: record}
		return tx.Set(ref, fromRecord(record))
	})
	return result, err
}

func (s *FirestoreStore) SaveResponse(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error {
	return s.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := s.collection.Doc(ctx, documentID(key))
		if err != nil {
			return err
		}
		stored, err := s.collection.GetTx(ctx, tx, documentID(key))
		record := stored.toRecord()
		switch {
		case err != nil && !isNotFound(err):
			return err
		case err != nil:
			record = newPendingRecord(key, fingerprint, now, ttl)
		case record.Fingerprint != fingerprint:
			return ErrFingerprintMismatch
		}
		return tx.Set(ref, fromRecord(completeRecord(record, resp, now, ttl)))
	})
}

func (s *FirestoreStore) Release(ctx context.Context, key string) error {
	err := s.collection.Delete(ctx, documentID(key))
	if isNotFound(err) {
		return nil
	}
	return err
}

func (s *FirestoreStore) CleanupExpired(ctx context.Context, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	expired, err := s.collection.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("expires_at", "<=", now).Limit(limit)
	})
	if err != nil {
		return 0, err
	}
	removed := 0
	for id := range expired {
		if err := s.collection.Delete(ctx, id); err != nil && !isNotFound(err) {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func isNotFound(err error) bool {
	type notFound interface{ IsNotFound() bool }
	nf, ok := err.(notFound)
	return ok && nf.IsNotFound()
}

type firestoreRecord struct {
	Key             string              `firestore:"key"`
	Fingerprint     string              `firestore:"fingerprint"`
	Status          string              `firestore:"status"`
	ResponseStatus  int                 `firestore:"response_status"`
	ResponseHeaders map[string][]string `firestore:"response_headers"`
	ResponseBody    []byte              `firestore:"response_body"`
	CreatedAt       time.Time           `firestore:"created_at"`
	ExpiresAt       time.Time           `firestore:"expires_at"`
}

func fromRecord(r Record) firestoreRecord {
	return firestoreRecord{
		Key:             r.Key,
		Fingerprint:     r.Fingerprint,
		Status:          string(r.Status),
		ResponseStatus:  r.ResponseStatus,
		ResponseHeaders: r.ResponseHeaders,
		ResponseBody:    r.ResponseBody,
		CreatedAt:       r.CreatedAt,
		ExpiresAt:       r.ExpiresAt,
	}
}

func (r firestoreRecord) toRecord() Record {
	return Record{
		Key:             r.Key,
		Fingerprint:     r.Fingerprint,
		Status:          Status(r.Status),
		ResponseStatus:  r.ResponseStatus,
		ResponseHeaders: r.ResponseHeaders,
		ResponseBody:    r.ResponseBody,
		CreatedAt:       r.CreatedAt,
		ExpiresAt:       r.ExpiresAt,
	}
}
