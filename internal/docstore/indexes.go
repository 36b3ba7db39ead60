package docstore

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/persistorai/listengraph/internal/indexes"
)

// CreateIndex implements indexes.Creator. Target is ignored because the
// store writes to a single collection.
func (s *Store) CreateIndex(ctx context.Context, spec indexes.Spec) error {
	model, err := indexModel(spec)
	if err != nil {
		return err
	}

	if _, err := s.coll.Indexes().CreateOne(ctx, model); err != nil {
		return mapError(fmt.Errorf("creating index %s: %w", spec.IndexName(), err))
	}

	return nil
}

// indexModel translates spec into a mongo index. Array fields need no
// special handling since mongo indexes list elements automatically. An
// unnamed spec leaves the name to the driver.
func indexModel(spec indexes.Spec) (mongo.IndexModel, error) {
	if err := spec.Validate(); err != nil {
		return mongo.IndexModel{}, err
	}

	keys := make(bson.D, 0, len(spec.Fields))
	for _, f := range spec.Fields {
		var v interface{} = 1
		switch {
		case spec.Kind == indexes.KindText:
			v = "text"
		case f.Descending:
			v = -1
		}
		keys = append(keys, bson.E{Key: f.Path, Value: v})
	}

	opts := options.Index()
	if spec.Name != "" {
		opts.SetName(spec.Name)
	}
	if spec.Sparse {
		opts.SetSparse(true)
	}
	if spec.Unique {
		opts.SetUnique(true)
	}

	return mongo.IndexModel{Keys: keys, Options: opts}, nil
}
