package mongostore

import (
	"context"

	"github.com/princinho/escolaportal/database"
	"github.com/princinho/escolaportal/models"
	"github.com/princinho/escolaportal/repository"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type NotificationRepository struct {
	col *mongo.Collection
}

func NewNotificationRepository(db *mongo.Database) *NotificationRepository {
	return &NotificationRepository{col: db.Collection(database.NotificationsCollection)}
}

func (r *NotificationRepository) Insert(ctx context.Context, n *models.Notification) error {
	if n.Recipients == nil {
		n.Recipients = []string{}
	}
	if n.ReadBy == nil {
		n.ReadBy = []string{}
	}
	_, err := r.col.InsertOne(ctx, n)
	return wrap(err, "insert notification")
}

func (r *NotificationRepository) FindByID(ctx context.Context, id bson.ObjectID) (*models.Notification, error) {
	var n models.Notification
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&n); err != nil {
		return nil, wrap(err, "find notification")
	}
	return &n, nil
}

func (r *NotificationRepository) FindForRecipient(ctx context.Context, email string) ([]models.Notification, error) {
	filter := bson.M{
		"$or": []bson.M{
			{"recipients": bson.M{"$size": 0}},
			{"recipients": email},
		},
		"archivedBy": bson.M{"$ne": email},
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, wrap(err, "find notifications")
	}
	defer cursor.Close(ctx)

	items := make([]models.Notification, 0)
	if err := cursor.All(ctx, &items); err != nil {
		return nil, wrap(err, "decode notifications")
	}
	return items, nil
}

func (r *NotificationRepository) AddReader(ctx context.Context, id bson.ObjectID, email string) error {
	// $addToSet keeps readBy free of duplicates under repeated calls.
	res, err := r.col.UpdateByID(ctx, id, bson.M{"$addToSet": bson.M{"readBy": email}})
	if err != nil {
		return wrap(err, "mark notification read")
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *NotificationRepository) AddReaderMany(ctx context.Context, ids []bson.ObjectID, email string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.col.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}},
		bson.M{"$addToSet": bson.M{"readBy": email}},
	)
	return wrap(err, "mark notifications read")
}

func (r *NotificationRepository) ArchiveFor(ctx context.Context, ids []bson.ObjectID, email string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.col.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}},
		bson.M{"$addToSet": bson.M{"archivedBy": email}},
	)
	return wrap(err, "archive notifications")
}

func (r *NotificationRepository) Delete(ctx context.Context, id bson.ObjectID) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return wrap(err, "delete notification")
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *NotificationRepository) DeleteMany(ctx context.Context, ids []bson.ObjectID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := r.col.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return 0, wrap(err, "delete notifications")
	}
	return res.DeletedCount, nil
}
