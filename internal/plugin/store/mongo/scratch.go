package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/forgeos/graph-service/internal/config"
	registryscratch "github.com/forgeos/graph-service/internal/registry/scratch"
	registrystore "github.com/forgeos/graph-service/internal/registry/store"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

func init() {
	registryscratch.Register(registryscratch.Plugin{
		Name: "mongo",
		Loader: func(ctx context.Context) (registryscratch.Pad, error) {
			cfg := config.FromContext(ctx)
			client, err := mongo.Connect(options.Client().ApplyURI(cfg.StoreURI))
			if err != nil {
				return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
			}
			if err := client.Ping(ctx, nil); err != nil {
				return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
			}
			return &scratchPad{
				col: client.Database(cfg.DatabaseName).Collection("scratchpad"),
			}, nil
		},
	})
}

// scratchPad stores TTL key-value entries in a Mongo collection. The TTL
// index sweeps roughly once a minute, so reads filter on expires_at too.
type scratchPad struct {
	col *mongo.Collection
}

type scratchDoc struct {
	ContextID string    `bson:"context_id"`
	Key       string    `bson:"key"`
	Value     any       `bson:"value"`
	ExpiresAt time.Time `bson:"expires_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func (p *scratchPad) Set(ctx context.Context, contextID, key string, value any, ttl time.Duration) error {
	now := time.Now().UTC()
	_, err := p.col.UpdateOne(ctx,
		bson.M{"context_id": contextID, "key": key},
		bson.M{"$set": bson.M{
			"value":      value,
			"expires_at": now.Add(ttl),
			"updated_at": now,
		}},
		options.UpdateOne().SetUpsert(true))
	return err
}

func (p *scratchPad) Get(ctx context.Context, contextID, key string) (any, error) {
	var doc scratchDoc
	err := p.col.FindOne(ctx, bson.M{
		"context_id": contextID,
		"key":        key,
		"expires_at": bson.M{"$gt": time.Now().UTC()},
	}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, &registrystore.NotFoundError{Resource: "scratchpad key", ID: key}
	}
	if err != nil {
		return nil, err
	}
	return doc.Value, nil
}

func (p *scratchPad) Delete(ctx context.Context, contextID, key string) (bool, error) {
	res, err := p.col.DeleteOne(ctx, bson.M{"context_id": contextID, "key": key})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func (p *scratchPad) Clear(ctx context.Context, contextID string) (int64, error) {
	res, err := p.col.DeleteMany(ctx, bson.M{"context_id": contextID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (p *scratchPad) List(ctx context.Context, contextID string) (map[string]any, error) {
	cur, err := p.col.Find(ctx, bson.M{
		"context_id": contextID,
		"expires_at": bson.M{"$gt": time.Now().UTC()},
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var docs []scratchDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make(map[string]any, len(docs))
	for _, d := range docs {
		out[d.Key] = d.Value
	}
	return out, nil
}
