package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"casekeeper/internal/authz"
	"casekeeper/internal/cases/models"
	"casekeeper/pkg/platform/sentinel"
)

const casesCollection = "cases"

// MongoCaseStore persists cases. List mutations use $push/$pull so concurrent
// writers to one case never overwrite each other's entries.
type MongoCaseStore struct {
	coll *mongo.Collection
}

func NewMongoCaseStore(db *mongo.Database) *MongoCaseStore {
	return &MongoCaseStore{coll: db.Collection(casesCollection)}
}

// EnsureIndexes is applied by the migrate command.
func (s *MongoCaseStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "caseNumber", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "assignedTo", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "jurisdiction.district", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "jurisdiction.state", Value: 1}, {Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create case indexes: %w", err)
	}
	return nil
}

// scopeFilter derives the query restriction from a gate-issued scope.
// ok is false when the scope admits nothing.
func scopeFilter(scope authz.Scope) (filter bson.M, ok bool) {
	switch scope.Kind {
	case authz.ScopeAll:
		return bson.M{}, true
	case authz.ScopeOwn:
		return bson.M{"assignedTo": scope.UserID}, scope.UserID != ""
	case authz.ScopeDistrict:
		return bson.M{"jurisdiction.district": scope.District}, scope.District != ""
	case authz.ScopeState:
		return bson.M{"jurisdiction.state": scope.State}, scope.State != ""
	default:
		return nil, false
	}
}

func (s *MongoCaseStore) Create(ctx context.Context, c *models.Case) error {
	doc := *c
	if doc.Documents == nil {
		doc.Documents = []models.Document{}
	}
	if doc.Updates == nil {
		doc.Updates = []models.Update{}
	}
	_, err := s.coll.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert case: %w", err)
	}
	return nil
}

func (s *MongoCaseStore) FindByID(ctx context.Context, id string, scope authz.Scope) (*models.Case, error) {
	filter, ok := scopeFilter(scope)
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	filter["_id"] = id

	var c models.Case
	err := s.coll.FindOne(ctx, filter).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find case: %w", err)
	}
	return &c, nil
}

func (s *MongoCaseStore) List(ctx context.Context, scope authz.Scope) ([]*models.Case, error) {
	filter, ok := scopeFilter(scope)
	if !ok {
		return []*models.Case{}, nil
	}
	cur, err := s.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	out := make([]*models.Case, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode cases: %w", err)
	}
	return out, nil
}

func (s *MongoCaseStore) AppendDocuments(ctx context.Context, id string, docs []models.Document, at time.Time) error {
	if len(docs) == 0 {
		return nil
	}
	return s.updateOne(ctx, bson.M{"_id": id}, bson.M{
		"$push": bson.M{"documents": bson.M{"$each": docs}},
		"$set":  bson.M{"updatedAt": at},
	}, "append documents")
}

func (s *MongoCaseStore) RemoveDocument(ctx context.Context, id, docID string, at time.Time) error {
	return s.updateOne(ctx, bson.M{"_id": id, "documents.id": docID}, bson.M{
		"$pull": bson.M{"documents": bson.M{"id": docID}},
		"$set":  bson.M{"updatedAt": at},
	}, "remove document")
}

func (s *MongoCaseStore) UpdateFields(ctx context.Context, id string, changes models.FieldChanges, at time.Time) error {
	set := bson.M{"updatedAt": at}
	if changes.Title != nil {
		set["title"] = *changes.Title
	}
	if changes.Description != nil {
		set["description"] = *changes.Description
	}
	if changes.Priority != nil {
		set["priority"] = *changes.Priority
	}
	if changes.Status != nil {
		set["status"] = *changes.Status
	}
	return s.updateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set}, "update case")
}

func (s *MongoCaseStore) AppendUpdate(ctx context.Context, id string, update models.Update) error {
	return s.updateOne(ctx, bson.M{"_id": id}, bson.M{
		"$push": bson.M{"updates": update},
		"$set":  bson.M{"updatedAt": update.Timestamp},
	}, "append update")
}

func (s *MongoCaseStore) updateOne(ctx context.Context, filter, update bson.M, op string) error {
	res, err := s.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if res.MatchedCount == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
