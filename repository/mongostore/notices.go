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

type NoticeRepository struct {
	col *mongo.Collection
}

func NewNoticeRepository(db *mongo.Database) *NoticeRepository {
	return &NoticeRepository{col: db.Collection(database.NoticesCollection)}
}

func (r *NoticeRepository) Insert(ctx context.Context, n *models.Notice) error {
	if n.Attachments == nil {
		n.Attachments = []models.NoticeAttachment{}
	}
	_, err := r.col.InsertOne(ctx, n)
	return wrap(err, "insert notice")
}

func (r *NoticeRepository) FindByID(ctx context.Context, id bson.ObjectID) (*models.Notice, error) {
	var n models.Notice
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&n); err != nil {
		return nil, wrap(err, "find notice")
	}
	return &n, nil
}

func (r *NoticeRepository) List(ctx context.Context, limit int) ([]models.Notice, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := r.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, wrap(err, "list notices")
	}
	defer cursor.Close(ctx)

	items := make([]models.Notice, 0)
	if err := cursor.All(ctx, &items); err != nil {
		return nil, wrap(err, "decode notices")
	}
	return items, nil
}

func (r *NoticeRepository) Delete(ctx context.Context, id bson.ObjectID) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return wrap(err, "delete notice")
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

type noticeChange struct {
	OperationType string         `bson:"operationType"`
	FullDocument  *models.Notice `bson:"fullDocument"`
	DocumentKey   struct {
		ID bson.ObjectID `bson:"_id"`
	} `bson:"documentKey"`
}

// Watch tails the collection's change stream. The channel closes when ctx
// ends or the stream fails.
func (r *NoticeRepository) Watch(ctx context.Context) (<-chan models.NoticeEvent, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"operationType": bson.M{"$in": bson.A{"insert", "delete"}}}}},
	}
	stream, err := r.col.Watch(ctx, pipeline, options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		return nil, wrap(err, "watch notices")
	}

	out := make(chan models.NoticeEvent, 16)
	go func() {
		defer close(out)
		defer stream.Close(context.Background())
		for stream.Next(ctx) {
			var ch noticeChange
			if err := stream.Decode(&ch); err != nil {
				continue
			}
			ev := models.NoticeEvent{ID: ch.DocumentKey.ID}
			switch ch.OperationType {
			case "insert":
				ev.Op = models.NoticeCreated
				ev.Notice = ch.FullDocument
			case "delete":
				ev.Op = models.NoticeDeleted
			default:
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
