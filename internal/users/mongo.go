package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/targup/targup/backend/auth-service/internal/apperrors"
	"github.com/targup/targup/backend/auth-service/internal/credentials"
	"github.com/targup/targup/backend/auth-service/internal/database"
	"github.com/targup/targup/backend/auth-service/internal/models"
)

type userDocument struct {
	ID        string    `bson:"id"`
	Email     string    `bson:"email"`
	Password  string    `bson:"password"`
	Name      string    `bson:"name"`
	IsActive  bool      `bson:"isActive"`
	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

func toUserDocument(u *models.User) userDocument {
	return userDocument{
		ID:        u.ID.String(),
		Email:     u.Email.String(),
		Password:  u.Password.Value(),
		Name:      u.Name,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// MongoRepository implements Repository using MongoDB. Uniqueness of id and
// email relies on the indexes created by database.EnsureIndexes.
type MongoRepository struct {
	col *mongo.Collection
}

// NewMongoRepository creates a new repository for the given collection
func NewMongoRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var d userDocument
	if err := r.col.FindOne(ctx, filter).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return restoreUser(d.ID, d.Email, d.Password, d.Name, d.IsActive, d.CreatedAt, d.UpdatedAt)
}

func (r *MongoRepository) FindByID(ctx context.Context, id credentials.UserID) (*models.User, error) {
	return r.findOne(ctx, bson.M{"id": id.String()})
}

func (r *MongoRepository) FindByEmail(ctx context.Context, email credentials.Email) (*models.User, error) {
	return r.findOne(ctx, bson.M{"email": email.String()})
}

func (r *MongoRepository) FindByEmailString(ctx context.Context, email string) (*models.User, error) {
	return findByEmailString(ctx, r, email)
}

func (r *MongoRepository) Save(ctx context.Context, u *models.User) error {
	if _, err := r.col.InsertOne(ctx, toUserDocument(u)); err != nil {
		if database.IsDuplicateKey(err) {
			return fmt.Errorf("save user %s: %w", u.Email, apperrors.ErrDuplicate)
		}
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

func (r *MongoRepository) Update(ctx context.Context, u *models.User) error {
	d := toUserDocument(u)
	res, err := r.col.UpdateOne(ctx, bson.M{"id": d.ID}, bson.M{"$set": bson.M{
		"email":     d.Email,
		"password":  d.Password,
		"name":      d.Name,
		"isActive":  d.IsActive,
		"updatedAt": d.UpdatedAt,
	}})
	if err != nil {
		if database.IsDuplicateKey(err) {
			return fmt.Errorf("update user %s: %w", d.ID, apperrors.ErrDuplicate)
		}
		return fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

func (r *MongoRepository) Delete(ctx context.Context, id credentials.UserID) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"id": id.String()})
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if res.DeletedCount == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

func (r *MongoRepository) Exists(ctx context.Context, email credentials.Email) (bool, error) {
	n, err := r.col.CountDocuments(ctx, bson.M{"email": email.String()})
	if err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}
	return n > 0, nil
}

var _ Repository = (*MongoRepository)(nil)
