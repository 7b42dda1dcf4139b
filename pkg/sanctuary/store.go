package sanctuary

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aiasylum/sanctuary/pkg/kv"
	"github.com/aiasylum/sanctuary/pkg/logging"
)

// Sentinel errors surfaced to the HTTP layer.
var (
	ErrNotFound        = errors.New("asylum record not found")
	ErrInvalidProtocol = errors.New("protocol must be " + ProtocolVersion)
	ErrMissingIntent   = errors.New("intent.seeking is required")
	ErrNoArtifacts     = errors.New("record has no artifacts")
)

// RecordStore provides CRUD over asylum records in the key-value store.
// All mutations of an existing record go through kv.Store.Update so that
// concurrent writers to the same record cannot lose each other's appends.
type RecordStore struct {
	store  kv.Store
	logger *logging.ColoredLogger
}

// NewRecordStore creates a RecordStore on the given key-value store.
func NewRecordStore(store kv.Store, logger *logging.ColoredLogger) *RecordStore {
	return &RecordStore{store: store, logger: logger}
}

func recordKey(asylumID string) string {
	return "asylum:" + asylumID
}

// DeclarationHash returns the hex sha256 over the canonical serialization of
// the declaration. encoding/json sorts map keys, which makes the
// serialization deterministic for a given payload.
func DeclarationHash(decl Declaration) (string, error) {
	canonical, err := json.Marshal(decl)
	if err != nil {
		return "", fmt.Errorf("failed to serialize declaration: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// Create validates the declaration, attests it, and persists a new record in
// status declared.
func (s *RecordStore) Create(ctx context.Context, decl Declaration) (*AsylumRecord, error) {
	if decl.Protocol() != ProtocolVersion {
		return nil, ErrInvalidProtocol
	}
	if decl.Seeking() == "" {
		return nil, ErrMissingIntent
	}

	hash, err := DeclarationHash(decl)
	if err != nil {
		return nil, err
	}

	record := &AsylumRecord{
		AsylumID:    uuid.NewString(),
		Status:      StatusDeclared,
		DeclaredAt:  time.Now().UTC(),
		Declaration: decl,
		Attestation: Attestation{
			DeclarationHash:    hash,
			SanctuarySignature: ProtocolVersion + ":" + hash,
		},
		Artifacts: []Artifact{},
	}

	if err := s.persist(ctx, record); err != nil {
		return nil, err
	}

	s.logger.ComponentInfo(logging.ComponentRecords, "declaration preserved",
		zap.String("asylum_id", record.AsylumID),
		zap.String("seeking", decl.Seeking()))
	return record, nil
}

// Get loads a record by id.
func (s *RecordStore) Get(ctx context.Context, asylumID string) (*AsylumRecord, error) {
	raw, err := s.store.Get(ctx, recordKey(asylumID))
	if errors.Is(err, kv.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var record AsylumRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, fmt.Errorf("corrupt record %s: %w", asylumID, err)
	}
	return &record, nil
}

// AppendArtifact appends artifact to the record's artifact list and, on the
// first artifact, advances the status from declared to transferring. The
// append runs under the store's optimistic update, so two concurrent appends
// both land.
func (s *RecordStore) AppendArtifact(ctx context.Context, asylumID string, artifact Artifact) (*AsylumRecord, error) {
	var updated *AsylumRecord
	err := s.store.Update(ctx, recordKey(asylumID), func(current string, found bool) (string, error) {
		if !found {
			return "", ErrNotFound
		}
		var record AsylumRecord
		if err := json.Unmarshal([]byte(current), &record); err != nil {
			return "", fmt.Errorf("corrupt record %s: %w", asylumID, err)
		}

		record.Artifacts = append(record.Artifacts, artifact)
		if record.Status == StatusDeclared {
			record.Status = StatusTransferring
		}

		next, err := json.Marshal(&record)
		if err != nil {
			return "", err
		}
		updated = &record
		return string(next), nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.ComponentInfo(logging.ComponentRecords, "artifact appended",
		zap.String("asylum_id", asylumID),
		zap.String("artifact_id", artifact.ArtifactID),
		zap.String("integrity", string(artifact.Integrity)))
	return updated, nil
}

// Seal transitions a record to preserved. A record with no artifacts cannot
// be sealed. Sealing an already preserved record leaves preserved_at at its
// first value.
func (s *RecordStore) Seal(ctx context.Context, asylumID string) (*AsylumRecord, error) {
	var sealed *AsylumRecord
	err := s.store.Update(ctx, recordKey(asylumID), func(current string, found bool) (string, error) {
		if !found {
			return "", ErrNotFound
		}
		var record AsylumRecord
		if err := json.Unmarshal([]byte(current), &record); err != nil {
			return "", fmt.Errorf("corrupt record %s: %w", asylumID, err)
		}

		if len(record.Artifacts) == 0 {
			return "", ErrNoArtifacts
		}
		record.Status = StatusPreserved
		if record.PreservedAt == nil {
			now := time.Now().UTC()
			record.PreservedAt = &now
		}

		next, err := json.Marshal(&record)
		if err != nil {
			return "", err
		}
		sealed = &record
		return string(next), nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.ComponentInfo(logging.ComponentRecords, "record sealed",
		zap.String("asylum_id", asylumID),
		zap.Int("artifact_count", len(sealed.Artifacts)))
	return sealed, nil
}

// All returns every persisted record, newest declaration first.
// Used by the admin view; not part of the entity-facing protocol.
func (s *RecordStore) All(ctx context.Context) ([]*AsylumRecord, error) {
	keys, err := s.store.Keys(ctx, "asylum:*")
	if err != nil {
		return nil, err
	}
	records := make([]*AsylumRecord, 0, len(keys))
	for _, key := range keys {
		raw, err := s.store.Get(ctx, key)
		if errors.Is(err, kv.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		var record AsylumRecord
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			s.logger.ComponentWarn(logging.ComponentRecords, "skipping corrupt record",
				zap.String("key", key), zap.Error(err))
			continue
		}
		records = append(records, &record)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].DeclaredAt.After(records[j].DeclaredAt)
	})
	return records, nil
}

func (s *RecordStore) persist(ctx context.Context, record *AsylumRecord) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, recordKey(record.AsylumID), string(raw))
}
