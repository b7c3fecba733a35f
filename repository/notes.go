package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"tonotes/config"
	"tonotes/model"
)

type NotesRepo struct {
	client          *mongo.Client
	MongoCollection *mongo.Collection
}

// OpenMongoStore connects, pings and prepares the notes collection.
func OpenMongoStore(ctx context.Context, cfg config.DatabaseConfig) (*NotesRepo, error) {
	clientOptions := options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetMinPoolSize(cfg.MinPoolSize).
		SetMaxConnIdleTime(cfg.MaxConnIdleTime).
		SetRetryWrites(cfg.RetryWrites)

	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		return nil, storageError("connect mongo", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		client.Disconnect(context.Background())
		return nil, storageError("ping mongo", err)
	}

	repo := GetNotesRepo(client, cfg.DatabaseName, cfg.NotesCollection)
	if err := SetupIndexes(connectCtx, repo.MongoCollection); err != nil {
		client.Disconnect(context.Background())
		return nil, storageError("create indexes", err)
	}
	return repo, nil
}

func GetNotesRepo(client *mongo.Client, database, collection string) *NotesRepo {
	return &NotesRepo{
		client:          client,
		MongoCollection: client.Database(database).Collection(collection),
	}
}

// Create inserts a new note
func (r *NotesRepo) Create(ctx context.Context, note *model.Note) error {
	if _, err := r.MongoCollection.InsertOne(ctx, note); err != nil {
		return storageError("insert note", err)
	}
	return nil
}

// Get retrieves a specific note
func (r *NotesRepo) Get(ctx context.Context, id string) (*model.Note, error) {
	var note model.Note
	err := r.MongoCollection.FindOne(ctx, bson.M{"_id": id}).Decode(&note)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, storageError("find note", err)
	}
	return &note, nil
}

// List returns every note, newest first
func (r *NotesRepo) List(ctx context.Context) ([]*model.Note, error) {
	opts := options.Find().SetSort(bson.D{
		{Key: "created_at", Value: -1},
		{Key: "_id", Value: -1},
	})

	cursor, err := r.MongoCollection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, storageError("list notes", err)
	}
	defer cursor.Close(ctx)

	notes := make([]*model.Note, 0)
	if err = cursor.All(ctx, &notes); err != nil {
		return nil, storageError("decode notes", err)
	}
	return notes, nil
}

// Update applies the edit only when the stored version still equals
// expectedVersion. The filter and the $inc run as one server-side operation.
func (r *NotesRepo) Update(ctx context.Context, id, content string, expectedVersion int64, updatedAt time.Time) (*model.Note, error) {
	filter := bson.M{
		"_id":     id,
		"version": expectedVersion,
	}
	update := bson.M{
		"$set": bson.M{
			"content":    content,
			"updated_at": updatedAt,
		},
		"$inc": bson.M{"version": 1},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var note model.Note
	err := r.MongoCollection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&note)
	if err == nil {
		return &note, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, storageError("update note", err)
	}

	// No match: either the note is gone or the version moved on.
	current, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return nil, conflictError(id, expectedVersion, current)
}

// Delete deletes a specific note
func (r *NotesRepo) Delete(ctx context.Context, id string) error {
	result, err := r.MongoCollection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return storageError("delete note", err)
	}
	if result.DeletedCount == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *NotesRepo) Count(ctx context.Context) (int, error) {
	n, err := r.MongoCollection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, storageError("count notes", err)
	}
	return int(n), nil
}

func (r *NotesRepo) Close(ctx context.Context) error {
	if r.client == nil {
		return nil
	}
	return r.client.Disconnect(ctx)
}
