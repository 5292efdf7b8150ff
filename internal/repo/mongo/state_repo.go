package mongo

import (
	"context"
	"fmt"

	"github.com/crucial707/hci-undo/internal/docstore"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// StateRepo persists the document store in MongoDB, one document per
// collection: {_id: <name>, items: [...]}.
type StateRepo struct {
	client *mongo.Client
	col    *mongo.Collection
}

type Config struct {
	URI        string
	DB         string
	Collection string
}

type collectionDoc struct {
	Name  string          `bson:"_id"`
	Items []docstore.Item `bson:"items"`
}

func New(ctx context.Context, cfg Config) (*StateRepo, error) {
	if cfg.Collection == "" {
		cfg.Collection = "collections"
	}
	cl, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, err
	}
	if err := cl.Ping(ctx, nil); err != nil {
		_ = cl.Disconnect(ctx)
		return nil, err
	}
	return &StateRepo{client: cl, col: cl.Database(cfg.DB).Collection(cfg.Collection)}, nil
}

func (r *StateRepo) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

func (r *StateRepo) Load(ctx context.Context) (docstore.State, error) {
	cur, err := r.col.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	state := docstore.State{}
	for cur.Next(ctx) {
		var d collectionDoc
		if err := cur.Decode(&d); err != nil {
			return nil, fmt.Errorf("decode collection: %w", err)
		}
		items := make([]docstore.Item, 0, len(d.Items))
		for _, it := range d.Items {
			items = append(items, normalize(it).(docstore.Item))
		}
		state[d.Name] = items
	}
	return state, cur.Err()
}

func (r *StateRepo) Save(ctx context.Context, state docstore.State) error {
	names := make([]string, 0, len(state))
	for name, items := range state {
		if items == nil {
			items = []docstore.Item{}
		}
		_, err := r.col.ReplaceOne(ctx,
			bson.M{"_id": name},
			collectionDoc{Name: name, Items: items},
			options.Replace().SetUpsert(true),
		)
		if err != nil {
			return fmt.Errorf("save collection %q: %w", name, err)
		}
		names = append(names, name)
	}
	_, err := r.col.DeleteMany(ctx, bson.M{"_id": bson.M{"$nin": names}})
	return err
}

// normalize turns the bson.M / bson.A values the driver decodes nested
// documents into back into the plain map/slice shapes JSON decoding yields.
func normalize(v any) any {
	switch t := v.(type) {
	case docstore.Item:
		out := make(docstore.Item, len(t))
		for k, x := range t {
			out[k] = normalize(x)
		}
		return out
	case bson.M:
		out := make(map[string]any, len(t))
		for k, x := range t {
			out[k] = normalize(x)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, x := range t {
			out[k] = normalize(x)
		}
		return out
	case bson.A:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = normalize(x)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = normalize(x)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = normalize(e.Value)
		}
		return out
	default:
		return v
	}
}
