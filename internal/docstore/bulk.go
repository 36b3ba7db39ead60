package docstore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/persistorai/listengraph/internal/models"
)

// writeModels builds one bulk model per operation, in order.
func writeModels(ops []models.BatchOperation, mode models.WriteMode, docs []document) []mongo.WriteModel {
	out := make([]mongo.WriteModel, len(ops))

	for i := range ops {
		if mode == models.ModeInsert {
			out[i] = mongo.NewInsertOneModel().SetDocument(docs[i])
			continue
		}

		out[i] = mongo.NewReplaceOneModel().
			SetFilter(bson.D{{Key: "_id", Value: docs[i].ID}}).
			SetReplacement(docs[i]).
			SetUpsert(true)
	}

	return out
}

// WriteDocuments implements writer.DocumentStore with one unordered bulk
// call. Write errors are attributed to the op at their index; any other
// error fails the call as a whole.
func (s *Store) WriteDocuments(ctx context.Context, ops []models.BatchOperation, mode models.WriteMode) ([]models.Outcome, error) {
	if len(ops) == 0 {
		return nil, nil
	}

	now := s.now()
	docs := make([]document, len(ops))
	for i, op := range ops {
		docs[i] = buildDocument(op, now)
	}

	res, err := s.coll.BulkWrite(ctx, writeModels(ops, mode, docs), options.BulkWrite().SetOrdered(false))
	if err != nil {
		var bwe mongo.BulkWriteException
		if !errors.As(err, &bwe) || bwe.WriteConcernError != nil || len(bwe.WriteErrors) == 0 {
			return nil, mapError(fmt.Errorf("bulk writing %d documents: %w", len(ops), err))
		}

		return outcomes(len(ops), mode, res, bwe.WriteErrors), nil
	}

	return outcomes(len(ops), mode, res, nil), nil
}

// outcomes attributes a bulk result to individual ops. Upserted indexes were
// fresh inserts; other successful replaces overwrote an existing document.
func outcomes(n int, mode models.WriteMode, res *mongo.BulkWriteResult, writeErrs []mongo.BulkWriteError) []models.Outcome {
	out := make([]models.Outcome, n)

	failed := make(map[int]error, len(writeErrs))
	for _, we := range writeErrs {
		failed[we.Index] = writeError(we)
	}

	var upserted map[int64]interface{}
	if res != nil {
		upserted = res.UpsertedIDs
	}

	for i := range out {
		if err, ok := failed[i]; ok {
			out[i] = models.Outcome{Err: err}
			continue
		}

		if mode == models.ModeInsert {
			out[i] = models.Outcome{Status: models.OutcomeInserted}
			continue
		}

		if _, ok := upserted[int64(i)]; ok {
			out[i] = models.Outcome{Status: models.OutcomeInserted}
		} else {
			out[i] = models.Outcome{Status: models.OutcomeUpdated}
		}
	}

	return out
}
