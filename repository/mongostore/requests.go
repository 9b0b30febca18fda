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

type RequestRepository struct {
	db     *mongo.Database
	outbox *mongo.Collection
}

func NewRequestRepository(db *mongo.Database) *RequestRepository {
	return &RequestRepository{db: db, outbox: db.Collection(database.OutboxCollection)}
}

func (r *RequestRepository) Insert(ctx context.Context, req *models.Request) error {
	col, err := requestCollection(r.db, req.Type)
	if err != nil {
		return err
	}
	if req.Messages == nil {
		req.Messages = []models.Message{}
	}
	_, err = col.InsertOne(ctx, req)
	return wrap(err, "insert request")
}

func (r *RequestRepository) FindByID(ctx context.Context, t models.RequestType, id bson.ObjectID) (*models.Request, error) {
	col, err := requestCollection(r.db, t)
	if err != nil {
		return nil, err
	}
	var req models.Request
	if err := col.FindOne(ctx, bson.M{"_id": id}).Decode(&req); err != nil {
		return nil, wrap(err, "find request")
	}
	return &req, nil
}

func requestFilterDoc(f repository.RequestFilter) bson.M {
	filter := bson.M{}
	status := bson.M{}
	if len(f.Statuses) > 0 {
		status["$in"] = f.Statuses
	}
	if len(f.ExcludeStatuses) > 0 {
		status["$nin"] = f.ExcludeStatuses
	}
	if len(status) > 0 {
		filter["status"] = status
	}
	if f.UserEmail != "" {
		filter["userEmail"] = f.UserEmail
	}
	if f.Date != "" {
		filter["date"] = f.Date
	}
	if len(f.EquipmentIDs) > 0 {
		filter["equipmentIds"] = bson.M{"$in": f.EquipmentIDs}
	}
	return filter
}

func (r *RequestRepository) Find(ctx context.Context, t models.RequestType, f repository.RequestFilter) ([]models.Request, error) {
	col, err := requestCollection(r.db, t)
	if err != nil {
		return nil, err
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := col.Find(ctx, requestFilterDoc(f), opts)
	if err != nil {
		return nil, wrap(err, "find requests")
	}
	defer cursor.Close(ctx)

	items := make([]models.Request, 0)
	if err := cursor.All(ctx, &items); err != nil {
		return nil, wrap(err, "decode requests")
	}
	return items, nil
}

// inTransaction runs fn in a session transaction so the request write and
// its outbox event commit together.
func (r *RequestRepository) inTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	sess, err := r.db.Client().StartSession()
	if err != nil {
		return wrap(err, "start session")
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		return nil, fn(ctx)
	})
	return err
}

func (r *RequestRepository) UpdateStatus(ctx context.Context, t models.RequestType, id bson.ObjectID, ch repository.StatusChange, event *models.OutboxEvent) error {
	col, err := requestCollection(r.db, t)
	if err != nil {
		return err
	}
	set := bson.M{
		"status":    ch.To,
		"updatedAt": ch.At,
	}
	if ch.RejectionReason != "" {
		set["rejectionReason"] = ch.RejectionReason
	}
	if ch.DeliveryDate != "" {
		set["deliveryDate"] = ch.DeliveryDate
	}

	return r.inTransaction(ctx, func(ctx context.Context) error {
		res, err := col.UpdateOne(ctx, bson.M{"_id": id, "status": ch.From}, bson.M{"$set": set})
		if err != nil {
			return wrap(err, "update status")
		}
		if res.MatchedCount == 0 {
			n, err := col.CountDocuments(ctx, bson.M{"_id": id})
			if err != nil {
				return wrap(err, "count request")
			}
			if n == 0 {
				return repository.ErrNotFound
			}
			return repository.ErrStaleWrite
		}
		if event != nil {
			if _, err := r.outbox.InsertOne(ctx, event); err != nil {
				return wrap(err, "insert outbox event")
			}
		}
		return nil
	})
}

func (r *RequestRepository) AppendMessage(ctx context.Context, t models.RequestType, id bson.ObjectID, msg models.Message, event *models.OutboxEvent) error {
	col, err := requestCollection(r.db, t)
	if err != nil {
		return err
	}
	// $push is atomic per document, so concurrent authors never lose appends.
	push := func(ctx context.Context) error {
		res, err := col.UpdateByID(ctx, id, bson.M{
			"$push": bson.M{"messages": msg},
			"$set":  bson.M{"updatedAt": msg.Timestamp},
		})
		if err != nil {
			return wrap(err, "append message")
		}
		if res.MatchedCount == 0 {
			return repository.ErrNotFound
		}
		return nil
	}
	if event == nil {
		return push(ctx)
	}
	return r.inTransaction(ctx, func(ctx context.Context) error {
		if err := push(ctx); err != nil {
			return err
		}
		_, err := r.outbox.InsertOne(ctx, event)
		return wrap(err, "insert outbox event")
	})
}

func (r *RequestRepository) SetHidden(ctx context.Context, t models.RequestType, id bson.ObjectID, hidden bool, at time.Time) error {
	col, err := requestCollection(r.db, t)
	if err != nil {
		return err
	}
	res, err := col.UpdateByID(ctx, id, bson.M{"$set": bson.M{"hidden": hidden, "updatedAt": at}})
	if err != nil {
		return wrap(err, "set hidden")
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *RequestRepository) Delete(ctx context.Context, t models.RequestType, id bson.ObjectID) error {
	col, err := requestCollection(r.db, t)
	if err != nil {
		return err
	}
	res, err := col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return wrap(err, "delete request")
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

type OutboxRepository struct {
	col *mongo.Collection
}

func NewOutboxRepository(db *mongo.Database) *OutboxRepository {
	return &OutboxRepository{col: db.Collection(database.OutboxCollection)}
}

func (r *OutboxRepository) FindPending(ctx context.Context, maxAttempts, limit int) ([]models.OutboxEvent, error) {
	filter := bson.M{"deliveredAt": bson.M{"$exists": false}}
	if maxAttempts > 0 {
		filter["attempts"] = bson.M{"$lt": maxAttempts}
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, wrap(err, "find pending outbox")
	}
	defer cursor.Close(ctx)

	events := make([]models.OutboxEvent, 0)
	if err := cursor.All(ctx, &events); err != nil {
		return nil, wrap(err, "decode outbox")
	}
	return events, nil
}

func (r *OutboxRepository) MarkDelivered(ctx context.Context, id bson.ObjectID, at time.Time) error {
	res, err := r.col.UpdateByID(ctx, id, bson.M{
		"$set":   bson.M{"deliveredAt": at},
		"$unset": bson.M{"lastError": ""},
		"$inc":   bson.M{"attempts": 1},
	})
	if err != nil {
		return wrap(err, "mark outbox delivered")
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *OutboxRepository) MarkFailed(ctx context.Context, id bson.ObjectID, reason string) error {
	res, err := r.col.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"lastError": reason},
		"$inc": bson.M{"attempts": 1},
	})
	if err != nil {
		return wrap(err, "mark outbox failed")
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}
