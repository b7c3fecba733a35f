package repository

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func SetupIndexes(ctx context.Context, notesCollection *mongo.Collection) error {
	noteIndexes := []mongo.IndexModel{
		// Listing order
		{
			Keys: bson.D{
				{Key: "created_at", Value: -1},
				{Key: "_id", Value: -1},
			},
			Options: options.Index().
				SetName("notes_created_desc"),
		},
		// Version compare-and-set lookups
		{
			Keys: bson.D{
				{Key: "_id", Value: 1},
				{Key: "version", Value: 1},
			},
			Options: options.Index().
				SetName("notes_id_version"),
		},
	}

	if _, err := notesCollection.Indexes().CreateMany(ctx, noteIndexes); err != nil {
		return fmt.Errorf("failed to create notes indexes: %w", err)
	}

	slog.Info("Successfully created note indexes", "collection", notesCollection.Name())
	return nil
}
