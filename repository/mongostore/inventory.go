package mongostore

import (
	"context"
	"errors"
	"time"

	"github.com/princinho/escolaportal/database"
	"github.com/princinho/escolaportal/models"
	"github.com/princinho/escolaportal/repository"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type AvailabilityRepository struct {
	col *mongo.Collection
}

func NewAvailabilityRepository(db *mongo.Database) *AvailabilityRepository {
	return &AvailabilityRepository{col: db.Collection(database.AvailableDatesCollection)}
}

func (r *AvailabilityRepository) List(ctx context.Context) ([]models.AvailableDate, error) {
	cursor, err := r.col.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, wrap(err, "find available dates")
	}
	defer cursor.Close(ctx)

	items := make([]models.AvailableDate, 0)
	if err := cursor.All(ctx, &items); err != nil {
		return nil, wrap(err, "decode available dates")
	}
	return items, nil
}

func (r *AvailabilityRepository) Exists(ctx context.Context, date string) (bool, error) {
	n, err := r.col.CountDocuments(ctx, bson.M{"_id": date})
	if err != nil {
		return false, wrap(err, "count available date")
	}
	return n > 0, nil
}

func (r *AvailabilityRepository) AddMany(ctx context.Context, dates []string, at time.Time) (int, error) {
	added := 0
	opts := options.UpdateOne().SetUpsert(true)
	for _, d := range dates {
		res, err := r.col.UpdateOne(ctx,
			bson.M{"_id": d},
			bson.M{"$setOnInsert": bson.M{"createdAt": at}},
			opts,
		)
		if err != nil {
			return added, wrap(err, "add available date")
		}
		if res.UpsertedCount == 1 {
			added++
		}
	}
	return added, nil
}

func (r *AvailabilityRepository) RemoveMany(ctx context.Context, dates []string) (int64, error) {
	if len(dates) == 0 {
		return 0, nil
	}
	res, err := r.col.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": dates}})
	if err != nil {
		return 0, wrap(err, "remove available dates")
	}
	return res.DeletedCount, nil
}

func (r *AvailabilityRepository) RemoveBefore(ctx context.Context, date string) (int64, error) {
	res, err := r.col.DeleteMany(ctx, bson.M{"_id": bson.M{"$lt": date}})
	if err != nil {
		return 0, wrap(err, "prune available dates")
	}
	return res.DeletedCount, nil
}

type EquipmentRepository struct {
	col *mongo.Collection
}

func NewEquipmentRepository(db *mongo.Database) *EquipmentRepository {
	return &EquipmentRepository{col: db.Collection(database.EquipmentCollection)}
}

func (r *EquipmentRepository) Insert(ctx context.Context, e *models.Equipment) error {
	_, err := r.col.InsertOne(ctx, e)
	return wrap(err, "insert equipment")
}

func (r *EquipmentRepository) FindByID(ctx context.Context, id bson.ObjectID) (*models.Equipment, error) {
	var e models.Equipment
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&e); err != nil {
		return nil, wrap(err, "find equipment")
	}
	return &e, nil
}

func (r *EquipmentRepository) find(ctx context.Context, filter bson.M) ([]models.Equipment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, wrap(err, "find equipment")
	}
	defer cursor.Close(ctx)

	items := make([]models.Equipment, 0)
	if err := cursor.All(ctx, &items); err != nil {
		return nil, wrap(err, "decode equipment")
	}
	return items, nil
}

func (r *EquipmentRepository) FindByIDs(ctx context.Context, ids []bson.ObjectID) ([]models.Equipment, error) {
	if len(ids) == 0 {
		return []models.Equipment{}, nil
	}
	return r.find(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

func (r *EquipmentRepository) List(ctx context.Context, onlyReservable bool) ([]models.Equipment, error) {
	filter := bson.M{}
	if onlyReservable {
		filter["isAvailableForReservation"] = true
	}
	return r.find(ctx, filter)
}

func (r *EquipmentRepository) Update(ctx context.Context, id bson.ObjectID, u repository.EquipmentUpdate) error {
	set := bson.M{"updatedAt": u.At}
	if u.Name != nil {
		set["name"] = *u.Name
	}
	if u.Type != nil {
		set["type"] = *u.Type
	}
	if u.IsAvailableForReservation != nil {
		set["isAvailableForReservation"] = *u.IsAvailableForReservation
	}
	res, err := r.col.UpdateByID(ctx, id, bson.M{"$set": set})
	if err != nil {
		return wrap(err, "update equipment")
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *EquipmentRepository) Delete(ctx context.Context, id bson.ObjectID) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return wrap(err, "delete equipment")
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *EquipmentRepository) DeleteMany(ctx context.Context, ids []bson.ObjectID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := r.col.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return 0, wrap(err, "delete equipment")
	}
	return res.DeletedCount, nil
}

type ViewedStateRepository struct {
	col *mongo.Collection
}

func NewViewedStateRepository(db *mongo.Database) *ViewedStateRepository {
	return &ViewedStateRepository{col: db.Collection(database.ViewedStatesCollection)}
}

func (r *ViewedStateRepository) Load(ctx context.Context, deviceID, storageKey string) ([]string, error) {
	var st models.ViewedState
	err := r.col.FindOne(ctx, bson.M{"deviceId": deviceID, "storageKey": storageKey}).Decode(&st)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return []string{}, nil
	}
	if err != nil {
		return nil, wrap(err, "load viewed state")
	}
	return st.Keys, nil
}

func (r *ViewedStateRepository) AddKeys(ctx context.Context, deviceID, storageKey string, keys []string, at time.Time) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := r.col.UpdateOne(ctx,
		bson.M{"deviceId": deviceID, "storageKey": storageKey},
		bson.M{
			"$addToSet": bson.M{"keys": bson.M{"$each": keys}},
			"$set":      bson.M{"updatedAt": at},
		},
		options.UpdateOne().SetUpsert(true),
	)
	return wrap(err, "save viewed state")
}
