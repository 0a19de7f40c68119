// Package audit keeps a history of connection-request transitions in MongoDB.
package audit

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/theleywin/Collab-Nest/src/config"
	"github.com/theleywin/Collab-Nest/src/models"
)

// Entry is one transition. From is empty for creation.
type Entry struct {
	ID         primitive.ObjectID      `bson:"_id,omitempty" json:"id"`
	RequestID  string                  `bson:"request_id" json:"requestId"`
	ActorID    uint                    `bson:"actor_id" json:"actorId"`
	SenderID   uint                    `bson:"sender_id" json:"senderId"`
	ReceiverID uint                    `bson:"receiver_id" json:"receiverId"`
	From       models.ConnectionStatus `bson:"from,omitempty" json:"from,omitempty"`
	To         models.ConnectionStatus `bson:"to" json:"to"`
	At         time.Time               `bson:"at" json:"at"`
}

// Recorder stores entries. Failures never undo the transition they describe.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
	Close(ctx context.Context) error
}

type MongoRecorder struct {
	client     *mongo.Client
	collection *mongo.Collection
}

func NewMongoRecorder(ctx context.Context, cfg config.MongoConfig) (*MongoRecorder, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	return &MongoRecorder{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
	}, nil
}

func (r *MongoRecorder) Record(ctx context.Context, e Entry) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if e.ID.IsZero() {
		e.ID = primitive.NewObjectID()
	}
	if _, err := r.collection.InsertOne(ctx, e); err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

func (r *MongoRecorder) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

// NopRecorder discards entries; used when MongoDB is not configured.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, Entry) error { return nil }
func (NopRecorder) Close(context.Context) error         { return nil }

// EntryFor builds the entry for a request moving from -> to by actor.
func EntryFor(r *models.ConnectionRequest, actorID uint, from, to models.ConnectionStatus) Entry {
	return Entry{
		RequestID:  r.ID,
		ActorID:    actorID,
		SenderID:   r.SenderID,
		ReceiverID: r.ReceiverID,
		From:       from,
		To:         to,
		At:         time.Now().UTC(),
	}
}
