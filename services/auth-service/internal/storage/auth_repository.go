package storage

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/md-rashed-zaman/tasktracker/libs/docstore"
	"golang.org/x/crypto/blake2b"
)

const authsCollection = "auth"

// authDocument is stored under the credential digest, so a lookup by
// credential is a lookup by id.
type authDocument struct {
	UserID string `json:"user_id"`
}

// AuthRepository stores credentials as keyed BLAKE2b digests. It emits no
// events.
type AuthRepository struct {
	store docstore.Store
	key   []byte
}

// NewAuthRepository keys the digest with pepper. Peppers longer than a
// BLAKE2b key are hashed down first.
func NewAuthRepository(store docstore.Store, pepper []byte) *AuthRepository {
	key := pepper
	if len(key) > blake2b.Size {
		sum := blake2b.Sum512(key)
		key = sum[:]
	}
	return &AuthRepository{store: store, key: key}
}

// SetCredential replaces whatever credential userID had before.
func (r *AuthRepository) SetCredential(ctx context.Context, userID, beakShape string) error {
	if err := r.DeleteByUser(ctx, userID); err != nil {
		return err
	}
	return r.store.Replace(ctx, authsCollection, r.digest(beakShape), authDocument{UserID: userID})
}

func (r *AuthRepository) GetUserIDByCredential(ctx context.Context, beakShape string) (string, bool, error) {
	d, ok, err := r.store.FindOne(ctx, authsCollection, docstore.Filter{docstore.IDField: r.digest(beakShape)})
	if err != nil || !ok {
		return "", false, err
	}
	var doc authDocument
	if err := d.Decode(&doc); err != nil {
		return "", false, fmt.Errorf("credential: %w", err)
	}
	return doc.UserID, true, nil
}

func (r *AuthRepository) DeleteByUser(ctx context.Context, userID string) error {
	_, err := r.store.Delete(ctx, authsCollection, docstore.Filter{"user_id": userID})
	return err
}

func (r *AuthRepository) digest(beakShape string) string {
	h, err := blake2b.New256(r.key)
	if err != nil {
		// Unreachable: the key is bounded in NewAuthRepository.
		panic(err)
	}
	h.Write([]byte(beakShape))
	return hex.EncodeToString(h.Sum(nil))
}
