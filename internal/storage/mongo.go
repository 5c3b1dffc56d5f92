package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/prodspider/prodspider/internal/urlutil"
	"github.com/prodspider/prodspider/pkg/plugin"
)

// urlCollection is the durable-store collection name.
const urlCollection = "crawler_urls"

// MongoStore is the durable tier: one document per (task, domain) whose URL
// array only ever grows.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
	log    zerolog.Logger
}

// NewMongoStore connects to the durable store and verifies the connection.
func NewMongoStore(ctx context.Context, uri, database string, log zerolog.Logger) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect %s: %w", uri, err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongo ping %s: %w", uri, err)
	}
	return &MongoStore{
		client: client,
		coll:   client.Database(database).Collection(urlCollection),
		log:    log.With().Str("component", "mongo_store").Logger(),
	}, nil
}

// docID keys one (task, domain) document. The domain part keeps concurrent
// domain pipelines of the same task from clobbering each other.
func docID(taskID, domain string) string {
	return taskID + ":" + urlutil.SimplifyDomain(domain)
}

type urlDocument struct {
	ID         string    `bson:"_id"`
	TaskID     string    `bson:"task_id"`
	Domain     string    `bson:"domain"`
	Simplified string    `bson:"simplified_domain"`
	URLs       []string  `bson:"urls"`
	Timestamp  time.Time `bson:"timestamp"`
}

// SaveURLs merges urls into the (task, domain) document. The union upsert
// makes periodic persists idempotent and never shrinks the stored set.
func (s *MongoStore) SaveURLs(ctx context.Context, taskID, domain string, urls []string) error {
	if len(urls) == 0 {
		return nil
	}
	id := docID(taskID, domain)

	update := bson.M{
		"$addToSet": bson.M{"urls": bson.M{"$each": urls}},
		"$set": bson.M{
			"task_id":           taskID,
			"domain":            domain,
			"simplified_domain": urlutil.SimplifyDomain(domain),
			"timestamp":         time.Now().UTC(),
		},
	}
	_, err := s.coll.UpdateByID(ctx, id, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongo upsert %s: %w", id, err)
	}
	return nil
}

// Record returns the durable document for (task, domain), or nil if absent.
func (s *MongoStore) Record(ctx context.Context, taskID, domain string) (*plugin.URLRecord, error) {
	id := docID(taskID, domain)

	var doc urlDocument
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mongo read %s: %w", id, err)
	}
	return &plugin.URLRecord{URLs: doc.URLs, Timestamp: doc.Timestamp}, nil
}

// Ping reports durable-store reachability for the health endpoint.
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects from the durable store.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
