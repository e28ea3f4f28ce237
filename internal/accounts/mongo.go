package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/targup/targup/backend/auth-service/internal/apperrors"
	"github.com/targup/targup/backend/auth-service/internal/credentials"
	"github.com/targup/targup/backend/auth-service/internal/database"
	"github.com/targup/targup/backend/auth-service/internal/models"
)

type accountDocument struct {
	ID         string    `bson:"id"`
	Provider   string    `bson:"provider"`
	ProviderID string    `bson:"providerId"`
	Email      string    `bson:"email"`
	UserID     string    `bson:"userId"`
	CreatedAt  time.Time `bson:"createdAt"`
	UpdatedAt  time.Time `bson:"updatedAt"`
}

func (d accountDocument) toModel() (*models.OAuthAccount, error) {
	uid, err := credentials.ParseUserID(d.UserID)
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", d.ID, err)
	}
	return &models.OAuthAccount{
		ID:         d.ID,
		Provider:   d.Provider,
		ProviderID: d.ProviderID,
		Email:      d.Email,
		UserID:     uid,
		Entity:     models.Entity{CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt},
	}, nil
}

// MongoRepository implements Repository on the oauth_accounts collection.
// The unique (provider, providerId) index comes from database.EnsureIndexes.
type MongoRepository struct {
	col *mongo.Collection
}

func NewMongoRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) FindByProvider(ctx context.Context, provider, providerID string) (*models.OAuthAccount, error) {
	var d accountDocument
	err := r.col.FindOne(ctx, bson.M{"provider": provider, "providerId": providerID}).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	return d.toModel()
}

func (r *MongoRepository) FindByUserID(ctx context.Context, userID credentials.UserID) ([]*models.OAuthAccount, error) {
	cur, err := r.col.Find(ctx, bson.M{"userId": userID.String()}, options.Find().SetSort(bson.D{{Key: "id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer cur.Close(ctx)
	out := []*models.OAuthAccount{}
	for cur.Next(ctx) {
		var d accountDocument
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		a, err := d.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, cur.Err()
}

func (r *MongoRepository) Create(ctx context.Context, a *models.OAuthAccount) error {
	d := accountDocument{
		ID:         a.ID,
		Provider:   a.Provider,
		ProviderID: a.ProviderID,
		Email:      a.Email,
		UserID:     a.UserID.String(),
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
	if _, err := r.col.InsertOne(ctx, d); err != nil {
		if database.IsDuplicateKey(err) {
			return fmt.Errorf("create account %s: %w", a.ID, apperrors.ErrDuplicate)
		}
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

var _ Repository = (*MongoRepository)(nil)
