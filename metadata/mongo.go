package metadata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const CollMetadata = "metadata"

type mongoDoc struct {
	Key          string    `bson:"key"`
	Metadata     Metadata  `bson:"metadata"`
	LastModified time.Time `bson:"lastModified"`
}

// MongoStore keeps one document per key in the metadata collection.
type MongoStore struct {
	coll *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{coll: db.Collection(CollMetadata)}
}

// InitIndex makes key unique. It is safe to call on every start.
func (s *MongoStore) InitIndex(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{"key", 1}},
		Options: options.Index().SetUnique(true).SetName("metadataKeyIndex"),
	})
	return err
}

func (s *MongoStore) Put(ctx context.Context, key string, m *Metadata) error {
	if _, err := s.coll.UpdateOne(
		ctx,
		bson.D{
			{"key", key},
		},
		bson.D{
			{"$set", bson.D{
				{"metadata", m},
			}},
			{"$currentDate", bson.D{
				{"lastModified", true},
			}},
		},
		options.Update().SetUpsert(true),
	); err != nil {
		return fmt.Errorf("put metadata %s: %w", key, err)
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, key string) (*Metadata, error) {
	var doc mongoDoc
	err := s.coll.FindOne(ctx, bson.D{{"key", key}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("get metadata %s: %w", key, err)
	}
	return &doc.Metadata, nil
}
