package mongostore

import (
	"context"
	"time"

	"github.com/princinho/escolaportal/database"
	"github.com/princinho/escolaportal/models"
	"github.com/princinho/escolaportal/repository"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type UserRepository struct {
	col *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{col: db.Collection(database.UsersCollection)}
}

func (r *UserRepository) Insert(ctx context.Context, u *models.User) error {
	if u.ID.IsZero() {
		u.ID = bson.NewObjectID()
	}
	_, err := r.col.InsertOne(ctx, u)
	return wrap(err, "insert user")
}

func (r *UserRepository) InsertIfAbsent(ctx context.Context, u *models.User) (bool, error) {
	if u.ID.IsZero() {
		u.ID = bson.NewObjectID()
	}
	// Only insert if it doesn't exist
	res, err := r.col.UpdateOne(ctx,
		bson.M{"email": u.Email},
		bson.M{"$setOnInsert": u},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return false, wrap(err, "seed user")
	}
	return res.UpsertedCount == 1, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := r.col.FindOne(ctx, bson.M{"email": email}).Decode(&u); err != nil {
		return nil, wrap(err, "find user by email")
	}
	return &u, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id bson.ObjectID) (*models.User, error) {
	var u models.User
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, wrap(err, "find user")
	}
	return &u, nil
}

func (r *UserRepository) List(ctx context.Context) ([]models.User, error) {
	cursor, err := r.col.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "email", Value: 1}}))
	if err != nil {
		return nil, wrap(err, "list users")
	}
	defer cursor.Close(ctx)

	users := make([]models.User, 0)
	if err := cursor.All(ctx, &users); err != nil {
		return nil, wrap(err, "decode users")
	}
	return users, nil
}

func (r *UserRepository) Update(ctx context.Context, id bson.ObjectID, u repository.UserUpdate) error {
	set := bson.M{"updatedAt": u.At}
	if u.Name != nil {
		set["name"] = *u.Name
	}
	if u.Role != nil {
		set["role"] = *u.Role
	}
	if u.IsActive != nil {
		set["isActive"] = *u.IsActive
	}
	if u.PasswordHash != nil {
		set["passwordHash"] = *u.PasswordHash
	}
	res, err := r.col.UpdateByID(ctx, id, bson.M{"$set": set})
	if err != nil {
		return wrap(err, "update user")
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

type RefreshTokenRepository struct {
	col *mongo.Collection
}

func NewRefreshTokenRepository(db *mongo.Database) *RefreshTokenRepository {
	return &RefreshTokenRepository{col: db.Collection(database.RefreshTokensCollection)}
}

func (r *RefreshTokenRepository) Insert(ctx context.Context, t *models.RefreshToken) error {
	if t.ID.IsZero() {
		t.ID = bson.NewObjectID()
	}
	_, err := r.col.InsertOne(ctx, t)
	return wrap(err, "insert refresh token")
}

func (r *RefreshTokenRepository) FindActive(ctx context.Context, hash string, now time.Time) (*models.RefreshToken, error) {
	var rt models.RefreshToken
	err := r.col.FindOne(ctx, bson.M{
		"tokenHash": hash,
		"revokedAt": bson.M{"$exists": false},
		"expiresAt": bson.M{"$gt": now},
	}).Decode(&rt)
	if err != nil {
		return nil, wrap(err, "find refresh token")
	}
	return &rt, nil
}

func (r *RefreshTokenRepository) Revoke(ctx context.Context, id bson.ObjectID, at time.Time, replacedBy string) error {
	set := bson.M{"revokedAt": at}
	if replacedBy != "" {
		set["replacedBy"] = replacedBy
	}
	res, err := r.col.UpdateByID(ctx, id, bson.M{"$set": set})
	if err != nil {
		return wrap(err, "revoke refresh token")
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *RefreshTokenRepository) RevokeByHash(ctx context.Context, hash string, at time.Time) error {
	_, err := r.col.UpdateOne(ctx, bson.M{
		"tokenHash": hash,
		"revokedAt": bson.M{"$exists": false},
	}, bson.M{"$set": bson.M{"revokedAt": at}})
	return wrap(err, "revoke refresh token")
}

func (r *RefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID bson.ObjectID, at time.Time) error {
	_, err := r.col.UpdateMany(ctx, bson.M{
		"userId":    userID,
		"revokedAt": bson.M{"$exists": false},
	}, bson.M{"$set": bson.M{"revokedAt": at}})
	return wrap(err, "revoke refresh tokens")
}
