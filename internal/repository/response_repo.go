package repository

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"assessd/internal/assessment"
	"assessd/internal/model"
)

// ResponseRepo stores the ledger entries of a session, one row per key.
// Upsert and Delete only write to sessions that are still in progress: they
// fail with assessment.ErrSessionClosed once the session is completed and
// with assessment.ErrSessionNotFound for unknown sessions.
type ResponseRepo interface {
	// Upsert replaces the response stored under the same key
	Upsert(ctx context.Context, sessionID string, r model.Response) error
	Delete(ctx context.Context, sessionID string, key model.ResponseKey) error
	ListBySession(ctx context.Context, sessionID string) ([]model.Response, error)
}

type responseDoc struct {
	SessionID      string `bson:"sessionId"`
	model.Response `bson:",inline"`
}

type responseRepo struct {
	collection *mongo.Collection
	sessions   *mongo.Collection
}

func NewResponseRepo(db *mongo.Database) ResponseRepo {
	return &responseRepo{
		collection: db.Collection("assessment_responses"),
		sessions:   db.Collection("assessment_sessions"),
	}
}

func keyFilter(sessionID string, k model.ResponseKey) bson.M {
	return bson.M{
		"sessionId": sessionID,
		"phase":     k.Phase,
		"block":     k.Block,
		"itemId":    k.ItemID,
	}
}

// ensureOpen checks the session document right before a response write
func (r *responseRepo) ensureOpen(ctx context.Context, sessionID string) error {
	var doc struct {
		Status model.SessionStatus `bson:"status"`
	}
	opts := options.FindOne().SetProjection(bson.M{"status": 1})
	err := r.sessions.FindOne(ctx, bson.M{"_id": sessionID}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return assessment.ErrSessionNotFound
	}
	if err != nil {
		return err
	}
	if doc.Status != model.SessionInProgress {
		return assessment.ErrSessionClosed
	}
	return nil
}

func (r *responseRepo) Upsert(ctx context.Context, sessionID string, resp model.Response) error {
	if err := r.ensureOpen(ctx, sessionID); err != nil {
		return err
	}
	doc := responseDoc{SessionID: sessionID, Response: resp}
	_, err := r.collection.ReplaceOne(ctx, keyFilter(sessionID, resp.Key()), doc, options.Replace().SetUpsert(true))
	return err
}

func (r *responseRepo) Delete(ctx context.Context, sessionID string, key model.ResponseKey) error {
	if err := r.ensureOpen(ctx, sessionID); err != nil {
		return err
	}
	_, err := r.collection.DeleteOne(ctx, keyFilter(sessionID, key))
	return err
}

func (r *responseRepo) ListBySession(ctx context.Context, sessionID string) ([]model.Response, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"sessionId": sessionID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []responseDoc
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	out := make([]model.Response, len(docs))
	for i, d := range docs {
		out[i] = d.Response
	}
	return out, nil
}
