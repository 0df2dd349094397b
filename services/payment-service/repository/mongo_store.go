package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoStore keeps each document in a collection keyed by _id.
type MongoStore struct {
	coll *mongo.Collection
}

func NewMongoStore(db *mongo.Database, collection string) *MongoStore {
	return &MongoStore{coll: db.Collection(collection)}
}

type mongoDocument struct {
	ID        string    `bson:"_id"`
	Data      string    `bson:"data"`
	Version   int64     `bson:"version"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func (m *MongoStore) Read(ctx context.Context, id string) (Document, error) {
	var md mongoDocument
	err := m.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&md)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("mongo FindOne failed: %w", err)
	}
	return Document{ID: md.ID, Data: []byte(md.Data), Version: md.Version}, nil
}

func (m *MongoStore) Write(ctx context.Context, id string, data []byte, expectedVersion int64) (int64, error) {
	next := expectedVersion + 1
	now := time.Now().UTC()
	if expectedVersion == 0 {
		_, err := m.coll.InsertOne(ctx, mongoDocument{ID: id, Data: string(data), Version: next, UpdatedAt: now})
		if mongo.IsDuplicateKeyError(err) {
			return 0, ErrVersionConflict
		}
		if err != nil {
			return 0, fmt.Errorf("mongo InsertOne failed: %w", err)
		}
		return next, nil
	}

	res, err := m.coll.UpdateOne(ctx,
		bson.M{"_id": id, "version": expectedVersion},
		bson.M{"$set": bson.M{"data": string(data), "version": next, "updated_at": now}},
	)
	if err != nil {
		return 0, fmt.Errorf("mongo UpdateOne failed: %w", err)
	}
	if res.MatchedCount == 0 {
		return 0, ErrVersionConflict
	}
	return next, nil
}

// IDs lists every stored document id.
func (m *MongoStore) IDs(ctx context.Context) ([]string, error) {
	cur, err := m.coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("mongo Find failed: %w", err)
	}
	defer cur.Close(ctx)
	var ids []string
	for cur.Next(ctx) {
		var md mongoDocument
		if err := cur.Decode(&md); err != nil {
			return nil, err
		}
		ids = append(ids, md.ID)
	}
	return ids, cur.Err()
}
