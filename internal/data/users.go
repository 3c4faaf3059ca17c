package data

import (
	"context" // Used for cancellation and timeouts
	"errors"  // Error handling
	"fmt"
	"time" // Timestamps

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"  // MongoDB document queries
	"go.mongodb.org/mongo-driver/v2/mongo" // MongoDB driver
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/PaulBabatuyi/resonance/internal/normalize"
)

// ErrUserExists is returned by CreateUser when the email is taken.
var ErrUserExists = errors.New("user already exists")

// UsersStore performs user DB operations.
type UsersStore struct {
	// coll is reference to "users" collection in MongoDB
	coll *mongo.Collection
}

// NewUsersStore returns a UsersStore using the provided collection.
func NewUsersStore(coll *mongo.Collection) *UsersStore {
	return &UsersStore{coll: coll}
}

// CreateUser inserts a new user document with hashed password.
func (u *UsersStore) CreateUser(ctx context.Context, email, hashedPassword, name string) (*User, error) {
	now := time.Now()
	user := &User{
		ID:         uuid.NewString(),
		Email:      normalize.Email(email),
		Password:   hashedPassword, // Already hashed by auth.HashPassword()
		Name:       name,
		LastActive: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if _, err := u.coll.InsertOne(ctx, user); err != nil {
		// unique index on email
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrUserExists
		}
		return nil, err
	}

	return user, nil
}

// GetUserByEmail finds a user by email.
func (u *UsersStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	err := u.coll.FindOne(ctx, bson.M{"email": normalize.Email(email)}).Decode(&user)
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// GetUserByID finds a user by id.
func (u *UsersStore) GetUserByID(ctx context.Context, id string) (*User, error) {
	var user User
	if err := u.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&user); err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// UserExists checks if a user exists by id.
func (u *UsersStore) UserExists(ctx context.Context, id string) (bool, error) {
	// CountDocuments is cheaper than FindOne when only existence matters
	count, err := u.coll.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// UpdateProfile overwrites the editable profile fields and returns the result.
func (u *UsersStore) UpdateProfile(ctx context.Context, id string, p Profile) (*User, error) {
	update := bson.M{"$set": bson.M{
		"name":            p.Name,
		"image_url":       p.ImageURL,
		"bio":             p.Bio,
		"favorite_genres": p.FavoriteGenres,
		"updated_at":      time.Now(),
	}}

	var user User
	err := u.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&user)
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// SetOnline records presence for a user.
func (u *UsersStore) SetOnline(ctx context.Context, id string, online bool, at time.Time) error {
	res, err := u.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"is_online":   online,
		"last_active": at,
	}})
	if err != nil {
		return fmt.Errorf("set online: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DisplayName returns the user's name, used when rendering notifications.
func (u *UsersStore) DisplayName(ctx context.Context, id string) (string, error) {
	var user User
	opts := options.FindOne().SetProjection(bson.M{"name": 1})
	if err := u.coll.FindOne(ctx, bson.M{"_id": id}, opts).Decode(&user); err != nil {
		return "", translate(err)
	}
	return user.Name, nil
}
