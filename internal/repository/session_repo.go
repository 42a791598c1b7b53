package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"assessd/internal/assessment"
	"assessd/internal/model"
)

// SessionRepo stores session records. GetByID and LatestBySubject return
// nil, nil when nothing matches.
type SessionRepo interface {
	Create(ctx context.Context, session *model.Session) error
	GetByID(ctx context.Context, id string) (*model.Session, error)
	LatestBySubject(ctx context.Context, subjectRef string, instrument model.InstrumentType) (*model.Session, error)

	// Complete flips an in-progress session to completed with result in one
	// conditional write. If the session was already completed it returns the
	// stored result and assessment.ErrAlreadyCompleted.
	Complete(ctx context.Context, id string, result *model.ScoreResult) (*model.ScoreResult, error)
}

type sessionRepo struct {
	collection *mongo.Collection
}

func NewSessionRepo(db *mongo.Database) SessionRepo {
	return &sessionRepo{
		collection: db.Collection("assessment_sessions"),
	}
}

// EnsureIndexes creates the subject lookup index on sessions and the
// unique response key index.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("assessment_sessions").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "subjectRef", Value: 1}, {Key: "instrument", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	if err != nil {
		return err
	}
	_, err = db.Collection("assessment_responses").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "sessionId", Value: 1}, {Key: "phase", Value: 1}, {Key: "block", Value: 1}, {Key: "itemId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (r *sessionRepo) Create(ctx context.Context, session *model.Session) error {
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	_, err := r.collection.InsertOne(ctx, session)
	return err
}

func (r *sessionRepo) GetByID(ctx context.Context, id string) (*model.Session, error) {
	var session model.Session
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepo) LatestBySubject(ctx context.Context, subjectRef string, instrument model.InstrumentType) (*model.Session, error) {
	filter := bson.M{"subjectRef": subjectRef}
	if instrument != "" {
		filter["instrument"] = instrument
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})

	var session model.Session
	err := r.collection.FindOne(ctx, filter, opts).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepo) Complete(ctx context.Context, id string, result *model.ScoreResult) (*model.ScoreResult, error) {
	completedAt := result.ComputedAt
	filter := bson.M{"_id": id, "status": model.SessionInProgress}
	update := bson.M{"$set": bson.M{
		"status":      model.SessionCompleted,
		"result":      result,
		"completedAt": completedAt,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated model.Session
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated)
	if err == nil {
		return updated.Result, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	// Nothing in progress matched: either a concurrent finalize won or the id is unknown.
	existing, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, assessment.ErrSessionNotFound
	}
	return existing.Result, assessment.ErrAlreadyCompleted
}
