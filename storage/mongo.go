package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var _ KV = (*Mongo)(nil)

type mongoEntry struct {
	Key       string    `bson:"_id"`
	Value     string    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// Mongo keeps one document per key in a collection.
type Mongo struct {
	coll  *mongo.Collection
	scope string
}

// NewMongo stores keys in coll. scope namespaces the document ids so one collection can
// hold the stores of several clients.
func NewMongo(coll *mongo.Collection, scope string) *Mongo {
	return &Mongo{coll: coll, scope: scope}
}

func (m *Mongo) id(key string) string {
	if m.scope == "" {
		return key
	}
	return m.scope + ":" + key
}

func (m *Mongo) Get(ctx context.Context, key string) (string, error) {
	var e mongoEntry
	err := m.coll.FindOne(ctx, bson.M{"_id": m.id(key)}).Decode(&e)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get %s: %w", key, err)
	}
	return e.Value, nil
}

func (m *Mongo) Set(ctx context.Context, key, value string) error {
	update := bson.M{"$set": bson.M{"value": value, "updated_at": time.Now().UTC()}}
	opts := options.Update().SetUpsert(true)
	if _, err := m.coll.UpdateOne(ctx, bson.M{"_id": m.id(key)}, update, opts); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

func (m *Mongo) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	ids := make(bson.A, len(keys))
	for i, k := range keys {
		ids[i] = m.id(k)
	}
	if _, err := m.coll.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}}); err != nil {
		return fmt.Errorf("failed to delete keys: %w", err)
	}
	return nil
}
