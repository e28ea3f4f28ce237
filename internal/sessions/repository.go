package sessions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/targup/targup/backend/auth-service/internal/credentials"
	"github.com/targup/targup/backend/auth-service/internal/models"
)

// ErrNotFound is returned by Deactivate for an unknown session.
var ErrNotFound = errors.New("session not found")

// Repository provides session persistence operations. Get returns (nil, nil)
// for a missing or expired session.
type Repository interface {
	Create(ctx context.Context, s *models.Session) error
	Get(ctx context.Context, id credentials.SessionID) (*models.Session, error)
	Deactivate(ctx context.Context, id credentials.SessionID) error
	ListByUser(ctx context.Context, userID credentials.UserID) ([]*models.Session, error)
}

type sessionDocument struct {
	ID        string    `bson:"id" json:"id"`
	UserID    string    `bson:"userId" json:"userId"`
	Token     string    `bson:"token" json:"token"`
	Provider  string    `bson:"provider" json:"provider"`
	ExpiresAt time.Time `bson:"expiresAt" json:"expiresAt"`
	IsActive  bool      `bson:"isActive" json:"isActive"`
	UserAgent string    `bson:"userAgent,omitempty" json:"userAgent,omitempty"`
	IPAddress string    `bson:"ipAddress,omitempty" json:"ipAddress,omitempty"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

func toDocument(s *models.Session) sessionDocument {
	return sessionDocument{
		ID:        s.ID.String(),
		UserID:    s.UserID.String(),
		Token:     s.Token.String(),
		Provider:  s.Provider,
		ExpiresAt: s.ExpiresAt,
		IsActive:  s.IsActive,
		UserAgent: s.UserAgent,
		IPAddress: s.IPAddress,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func (d sessionDocument) toModel() (*models.Session, error) {
	id, err := credentials.ParseSessionID(d.ID)
	if err != nil {
		return nil, fmt.Errorf("session id: %w", err)
	}
	uid, err := credentials.ParseUserID(d.UserID)
	if err != nil {
		return nil, fmt.Errorf("session %s user: %w", d.ID, err)
	}
	tok, err := credentials.NewToken(d.Token)
	if err != nil {
		return nil, fmt.Errorf("session %s token: %w", d.ID, err)
	}
	return &models.Session{
		ID:        id,
		UserID:    uid,
		Token:     tok,
		Provider:  d.Provider,
		ExpiresAt: d.ExpiresAt,
		IsActive:  d.IsActive,
		UserAgent: d.UserAgent,
		IPAddress: d.IPAddress,
		Entity:    models.Entity{CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt},
	}, nil
}

// MongoRepository implements Repository using a Mongo collection. Expired
// documents are reaped by the TTL index on expiresAt.
type MongoRepository struct {
	col *mongo.Collection
}

func NewMongoRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) Create(ctx context.Context, s *models.Session) error {
	if _, err := r.col.InsertOne(ctx, toDocument(s)); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (r *MongoRepository) Get(ctx context.Context, id credentials.SessionID) (*models.Session, error) {
	var d sessionDocument
	if err := r.col.FindOne(ctx, bson.M{"id": id.String()}).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	// the TTL monitor runs about once a minute
	if time.Now().UTC().After(d.ExpiresAt) {
		return nil, nil
	}
	return d.toModel()
}

func (r *MongoRepository) Deactivate(ctx context.Context, id credentials.SessionID) error {
	res, err := r.col.UpdateOne(ctx, bson.M{"id": id.String()}, bson.M{"$set": bson.M{
		"isActive":  false,
		"updatedAt": time.Now().UTC(),
	}})
	if err != nil {
		return fmt.Errorf("deactivate session: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRepository) ListByUser(ctx context.Context, userID credentials.UserID) ([]*models.Session, error) {
	filter := bson.M{"userId": userID.String(), "expiresAt": bson.M{"$gt": time.Now().UTC()}}
	cur, err := r.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer cur.Close(ctx)
	out := []*models.Session{}
	for cur.Next(ctx) {
		var d sessionDocument
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		s, err := d.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, cur.Err()
}

var _ Repository = (*MongoRepository)(nil)
