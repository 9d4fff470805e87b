package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"casekeeper/internal/policy/models"
	"casekeeper/pkg/platform/sentinel"
)

const policiesCollection = "policies"

// policyDocument keeps categories and rules as the exact JSON text submitted,
// so what is later read back is byte-identical to what the ledger received.
type policyDocument struct {
	ID             string    `bson:"_id"`
	PolicyID       string    `bson:"policyId"`
	LedgerPolicyID string    `bson:"ledgerPolicyId,omitempty"`
	Name           string    `bson:"name"`
	Description    string    `bson:"description,omitempty"`
	Categories     string    `bson:"categories"`
	Rules          string    `bson:"rules"`
	CreatedBy      string    `bson:"createdBy"`
	CreatedAt      time.Time `bson:"createdAt"`
	State          string    `bson:"state"`
	ActivatedAt    time.Time `bson:"activatedAt,omitempty"`
}

func toDocument(p *models.Policy) policyDocument {
	return policyDocument{
		ID:             p.ID,
		PolicyID:       p.PolicyID,
		LedgerPolicyID: p.LedgerPolicyID,
		Name:           p.Name,
		Description:    p.Description,
		Categories:     string(p.Categories),
		Rules:          string(p.Rules),
		CreatedBy:      p.CreatedBy,
		CreatedAt:      p.CreatedAt,
		State:          string(p.State),
	}
}

func (d policyDocument) toModel() *models.Policy {
	return &models.Policy{
		ID:             d.ID,
		PolicyID:       d.PolicyID,
		LedgerPolicyID: d.LedgerPolicyID,
		Name:           d.Name,
		Description:    d.Description,
		Categories:     json.RawMessage(d.Categories),
		Rules:          json.RawMessage(d.Rules),
		CreatedBy:      d.CreatedBy,
		CreatedAt:      d.CreatedAt,
		State:          models.State(d.State),
	}
}

type MongoPolicyStore struct {
	coll *mongo.Collection
}

func NewMongoPolicyStore(db *mongo.Database) *MongoPolicyStore {
	return &MongoPolicyStore{coll: db.Collection(policiesCollection)}
}

// EnsureIndexes creates the unique policyId index. Applied by the migrate command.
func (s *MongoPolicyStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "policyId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "state", Value: 1}, {Key: "name", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create policy indexes: %w", err)
	}
	return nil
}

func (s *MongoPolicyStore) Create(ctx context.Context, p *models.Policy) error {
	_, err := s.coll.InsertOne(ctx, toDocument(p))
	if mongo.IsDuplicateKeyError(err) {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert policy: %w", err)
	}
	return nil
}

func (s *MongoPolicyStore) Activate(ctx context.Context, id, ledgerPolicyID string, at time.Time) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"state":          string(models.StateActive),
			"ledgerPolicyId": ledgerPolicyID,
			"activatedAt":    at,
		}},
	)
	if err != nil {
		return fmt.Errorf("activate policy: %w", err)
	}
	if res.MatchedCount == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *MongoPolicyStore) Delete(ctx context.Context, id string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete policy: %w", err)
	}
	if res.DeletedCount == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *MongoPolicyStore) FindByID(ctx context.Context, id string) (*models.Policy, error) {
	var doc policyDocument
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find policy: %w", err)
	}
	return doc.toModel(), nil
}

func (s *MongoPolicyStore) List(ctx context.Context, activeOnly bool) ([]*models.Policy, error) {
	filter := bson.M{}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if activeOnly {
		filter["state"] = string(models.StateActive)
		opts = options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	}
	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list policies: %w", err)
	}
	var docs []policyDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode policies: %w", err)
	}
	out := make([]*models.Policy, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toModel())
	}
	return out, nil
}
