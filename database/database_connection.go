package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

const (
	ReservationsCollection   = "reservations"
	PurchasesCollection      = "purchases"
	SupportCollection        = "support"
	NotificationsCollection  = "notifications"
	OutboxCollection         = "outbox"
	AvailableDatesCollection = "availableDates"
	EquipmentCollection      = "equipment"
	NoticesCollection        = "avisos"
	UsersCollection          = "users"
	RefreshTokensCollection  = "refresh_tokens"
	ViewedStatesCollection   = "viewedStates"
)

// Connect opens a client and pings the primary. Transactions on the request
// collections need a replica set or sharded cluster behind uri.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	serverAPI := options.ServerAPI(options.ServerAPIVersion1)
	opts := options.Client().ApplyURI(uri).SetServerAPIOptions(serverAPI)
	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

// EnsureIndexes creates the indexes the repositories query by.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	requestIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "userEmail", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
	}
	plan := map[string][]mongo.IndexModel{
		ReservationsCollection: append(requestIndexes,
			mongo.IndexModel{Keys: bson.D{{Key: "date", Value: 1}, {Key: "equipmentIds", Value: 1}}},
		),
		PurchasesCollection: requestIndexes,
		SupportCollection:   requestIndexes,
		NotificationsCollection: {
			{Keys: bson.D{{Key: "recipients", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		OutboxCollection: {
			{Keys: bson.D{{Key: "deliveredAt", Value: 1}, {Key: "createdAt", Value: 1}}},
		},
		UsersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		RefreshTokensCollection: {
			{Keys: bson.D{{Key: "tokenHash", Value: 1}}},
			{Keys: bson.D{{Key: "userId", Value: 1}}},
		},
		ViewedStatesCollection: {
			{Keys: bson.D{{Key: "deviceId", Value: 1}, {Key: "storageKey", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		NoticesCollection: {
			{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		},
	}
	for name, models := range plan {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", name, err)
		}
	}
	return nil
}
