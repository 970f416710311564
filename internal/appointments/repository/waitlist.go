package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"slotbook/pkg/config"
	"slotbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const WaitlistCollection = "Waitlist"

// WaitlistRepository holds one FIFO queue per slot, ordered by join time
// with the entry ID as tiebreaker.
type WaitlistRepository interface {
	Enqueue(ctx context.Context, entry *model.WaitlistEntry) error
	DequeueHead(ctx context.Context, slot model.Slot) (*model.WaitlistEntry, error)
	FindBySlot(ctx context.Context, slot model.Slot) ([]*model.WaitlistEntry, error)
	FindBySlotAndUser(ctx context.Context, slot model.Slot, userID string) (*model.WaitlistEntry, error)
	FindByUser(ctx context.Context, userID string) ([]*model.WaitlistEntry, error)
	CountBySlot(ctx context.Context, slot model.Slot) (int64, error)
	CountsByDate(ctx context.Context, date string) (map[string]int64, error)
}

type mongoWaitlistRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoWaitlistRepository(cfg *config.Config) WaitlistRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoWaitlistRepository{
		cfg:        cfg,
		collection: db.Collection(WaitlistCollection),
	}
}

func (r *mongoWaitlistRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *mongoWaitlistRepository) Enqueue(ctx context.Context, entry *model.WaitlistEntry) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if _, err := r.collection.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("failed to enqueue waitlist entry: %w", err)
	}
	return nil
}

// DequeueHead atomically removes and returns the oldest entry for the slot,
// or (nil, nil) when the queue is empty.
func (r *mongoWaitlistRepository) DequeueHead(ctx context.Context, slot model.Slot) (*model.WaitlistEntry, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{"date": slot.Date, "time": slot.Time}
	opts := options.FindOneAndDelete().
		SetSort(bson.D{{Key: "joined_at", Value: 1}, {Key: "_id", Value: 1}})

	var entry model.WaitlistEntry
	err := r.collection.FindOneAndDelete(ctx, filter, opts).Decode(&entry)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue waitlist head: %w", err)
	}

	return &entry, nil
}

func (r *mongoWaitlistRepository) FindBySlot(ctx context.Context, slot model.Slot) ([]*model.WaitlistEntry, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{"date": slot.Date, "time": slot.Time}
	opts := options.Find().
		SetSort(bson.D{{Key: "joined_at", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find waitlist entries: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []*model.WaitlistEntry
	if err = cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode waitlist entries: %w", err)
	}

	return entries, nil
}

func (r *mongoWaitlistRepository) FindBySlotAndUser(ctx context.Context, slot model.Slot, userID string) (*model.WaitlistEntry, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{"date": slot.Date, "time": slot.Time, "user_id": userID}

	var entry model.WaitlistEntry
	err := r.collection.FindOne(ctx, filter).Decode(&entry)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find waitlist entry: %w", err)
	}

	return &entry, nil
}

func (r *mongoWaitlistRepository) FindByUser(ctx context.Context, userID string) ([]*model.WaitlistEntry, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "time", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find waitlist entries by user: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []*model.WaitlistEntry
	if err = cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode waitlist entries: %w", err)
	}

	return entries, nil
}

func (r *mongoWaitlistRepository) CountBySlot(ctx context.Context, slot model.Slot) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{"date": slot.Date, "time": slot.Time})
	if err != nil {
		return 0, fmt.Errorf("failed to count waitlist entries: %w", err)
	}
	return count, nil
}

// CountsByDate returns queue depth per slot time for one date.
func (r *mongoWaitlistRepository) CountsByDate(ctx context.Context, date string) (map[string]int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"date": date}}},
		{{Key: "$group", Value: bson.M{"_id": "$time", "count": bson.M{"$sum": 1}}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate waitlist counts: %w", err)
	}
	defer cursor.Close(ctx)

	var results []struct {
		Time  string `bson:"_id"`
		Count int64  `bson:"count"`
	}
	if err = cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("failed to decode waitlist counts: %w", err)
	}

	counts := make(map[string]int64, len(results))
	for _, res := range results {
		counts[res.Time] = res.Count
	}
	return counts, nil
}
