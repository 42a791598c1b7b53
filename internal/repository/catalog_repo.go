package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"assessd/internal/model"
)

// CatalogRepo loads the active item bank of an instrument
type CatalogRepo interface {
	Load(ctx context.Context, instrument model.InstrumentType) (*model.Catalog, error)
}

// CatalogStore is a CatalogRepo that can also replace an item bank
type CatalogStore interface {
	CatalogRepo
	Replace(ctx context.Context, catalog *model.Catalog) error
}

type catalogRepo struct {
	questions   *mongo.Collection
	descriptors *mongo.Collection
	situational *mongo.Collection
}

func NewCatalogRepo(db *mongo.Database) CatalogStore {
	return &catalogRepo{
		questions:   db.Collection("disc_questions"),
		descriptors: db.Collection("pi_descriptors"),
		situational: db.Collection("pi_situational_questions"),
	}
}

var activeOnly = bson.M{"active": true}

func (r *catalogRepo) Load(ctx context.Context, instrument model.InstrumentType) (*model.Catalog, error) {
	c := &model.Catalog{Instrument: instrument}
	switch instrument {
	case model.InstrumentDISC:
		if err := findSorted(ctx, r.questions, "ordinal", &c.Questions); err != nil {
			return nil, fmt.Errorf("load disc questions: %w", err)
		}
	case model.InstrumentPI:
		if err := findSorted(ctx, r.descriptors, "position", &c.Descriptors); err != nil {
			return nil, fmt.Errorf("load pi descriptors: %w", err)
		}
		if err := findSorted(ctx, r.situational, "ordinal", &c.Situational); err != nil {
			return nil, fmt.Errorf("load pi situational questions: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown instrument %q", instrument)
	}
	return c, nil
}

func findSorted[T any](ctx context.Context, coll *mongo.Collection, field string, out *[]T) error {
	cursor, err := coll.Find(ctx, activeOnly, options.Find().SetSort(bson.D{{Key: field, Value: 1}}))
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)
	return cursor.All(ctx, out)
}

// Replace deactivates the current items of the catalog's instrument and
// upserts the given ones as active.
func (r *catalogRepo) Replace(ctx context.Context, c *model.Catalog) error {
	switch c.Instrument {
	case model.InstrumentDISC:
		docs := make([]any, len(c.Questions))
		ids := make([]string, len(c.Questions))
		for i, q := range c.Questions {
			q.Active = true
			docs[i], ids[i] = q, q.ID
		}
		return replaceAll(ctx, r.questions, ids, docs)
	case model.InstrumentPI:
		docs := make([]any, len(c.Descriptors))
		ids := make([]string, len(c.Descriptors))
		for i, d := range c.Descriptors {
			d.Active = true
			docs[i], ids[i] = d, d.ID
		}
		if err := replaceAll(ctx, r.descriptors, ids, docs); err != nil {
			return err
		}
		docs = make([]any, len(c.Situational))
		ids = make([]string, len(c.Situational))
		for i, q := range c.Situational {
			q.Active = true
			docs[i], ids[i] = q, q.ID
		}
		return replaceAll(ctx, r.situational, ids, docs)
	default:
		return fmt.Errorf("unknown instrument %q", c.Instrument)
	}
}

func replaceAll(ctx context.Context, coll *mongo.Collection, ids []string, docs []any) error {
	_, err := coll.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$nin": ids}},
		bson.M{"$set": bson.M{"active": false}},
	)
	if err != nil {
		return err
	}
	models := make([]mongo.WriteModel, len(docs))
	for i, d := range docs {
		models[i] = mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": ids[i]}).
			SetReplacement(d).
			SetUpsert(true)
	}
	if len(models) == 0 {
		return nil
	}
	_, err = coll.BulkWrite(ctx, models)
	return err
}
