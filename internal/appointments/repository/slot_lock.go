package repository

import (
	"context"
	"fmt"
	"time"

	apperrors "slotbook/internal/appointments/errors"
	"slotbook/pkg/config"
	"slotbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const SlotLockCollection = "Slot_locks"

// SlotLocker serializes allocation on a single slot. Acquire returns a
// release func on success, or ErrLockHeld when another request holds the
// slot; callers translate that into a retryable conflict.
type SlotLocker interface {
	Acquire(ctx context.Context, key string) (func(), error)
}

type mongoSlotLocker struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoSlotLocker(cfg *config.Config) SlotLocker {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoSlotLocker{
		cfg:        cfg,
		collection: db.Collection(SlotLockCollection),
	}
}

// Acquire inserts a lock document keyed by the slot. A duplicate key error
// means another request is mid-allocation on the same slot. The TTL index on
// expires_at reaps locks left behind by a crashed holder.
func (l *mongoSlotLocker) Acquire(ctx context.Context, key string) (func(), error) {
	now := time.Now().UTC()
	lock := &model.SlotLock{
		ID:        key,
		ExpiresAt: now.Add(l.cfg.SlotLockTTL),
		CreatedAt: now,
	}

	if _, err := l.collection.InsertOne(ctx, lock); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, apperrors.ErrLockHeld
		}
		return nil, fmt.Errorf("failed to acquire slot lock: %w", err)
	}

	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), l.cfg.WriteTimeout)
		defer cancel()
		l.collection.DeleteOne(ctx, bson.M{"_id": key})
	}
	return release, nil
}

// EnsureIndexes creates the TTL index that expires abandoned locks.
func EnsureLockIndexes(ctx context.Context, cfg *config.Config) error {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	_, err := db.Collection(SlotLockCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	if err != nil {
		return fmt.Errorf("failed to create slot lock TTL index: %w", err)
	}
	return nil
}
