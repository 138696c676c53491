// Package mongo stores messages in MongoDB, in chatdb.messages.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/omochice/chit-chat/internal/store"
	"github.com/omochice/chit-chat/pkg/protocol"
)

const (
	DefaultDatabase   = "chatdb"
	DefaultCollection = "messages"
)

// Config selects the deployment and collection.
type Config struct {
	URI            string
	Database       string
	Collection     string
	ConnectTimeout time.Duration
}

type document struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Type      string             `bson:"type"`
	Content   string             `bson:"content"`
	Sender    string             `bson:"sender"`
	Recipient string             `bson:"recipient"`
	Room      string             `bson:"room"`
	Timestamp time.Time          `bson:"timestamp"`
	Delivered bool               `bson:"delivered"`
}

func fromRecord(r store.Record) document {
	return document{
		Type:      string(r.Kind),
		Content:   r.Content,
		Sender:    r.Sender,
		Recipient: r.Recipient,
		Room:      r.Room,
		Timestamp: r.Timestamp.UTC(),
		Delivered: r.Delivered,
	}
}

func (d document) record() store.Record {
	return store.Record{
		ID:        d.ID.Hex(),
		Kind:      protocol.Kind(d.Type),
		Content:   d.Content,
		Sender:    d.Sender,
		Recipient: d.Recipient,
		Room:      d.Room,
		Timestamp: d.Timestamp,
		Delivered: d.Delivered,
	}
}

// Store is a store.Store backed by one collection.
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
}

var _ store.Store = (*Store)(nil)

// Open connects and pings the deployment.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.URI == "" {
		return nil, errors.New("mongo uri is required")
	}
	if cfg.Database == "" {
		cfg.Database = DefaultDatabase
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &Store{
		client: client,
		coll:   client.Database(cfg.Database).Collection(cfg.Collection),
	}, nil
}

func (s *Store) Save(ctx context.Context, r store.Record) (string, error) {
	res, err := s.coll.InsertOne(ctx, fromRecord(r))
	if err != nil {
		return "", fmt.Errorf("failed to insert message: %w", err)
	}
	id, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("unexpected inserted id %T", res.InsertedID)
	}
	return id.Hex(), nil
}

func (s *Store) Recent(ctx context.Context, room string, limit int) ([]store.Record, error) {
	filter := bson.M{"room": room, "type": string(protocol.KindMessage)}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return s.find(ctx, filter, opts)
}

func (s *Store) Undelivered(ctx context.Context, recipient string) ([]store.Record, error) {
	filter := bson.M{
		"type":      string(protocol.KindPrivate),
		"recipient": recipient,
		"delivered": false,
	}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})
	return s.find(ctx, filter, opts)
}

func (s *Store) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]store.Record, error) {
	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}
	out := make([]store.Record, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.record())
	}
	return out, nil
}

func (s *Store) MarkDelivered(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"delivered": true}})
	if err != nil {
		return fmt.Errorf("failed to mark message delivered: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	return nil
}

// Drop removes the collection.
func (s *Store) Drop(ctx context.Context) error {
	return s.coll.Drop(ctx)
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
