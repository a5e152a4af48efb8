package tablestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mx-space/console/internal/pkg/record"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	mongoCreatedField = "createdAt"
	mongoUpdatedField = "updatedAt"
)

// MongoStore maps every table collection onto a MongoDB collection of the
// same name. Rows it creates use string _id values; existing documents with
// ObjectID ids are listed, read and deleted through their hex form.
type MongoStore struct {
	db *mongo.Database
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db}
}

// ConnectMongo opens a client and pings it.
func ConnectMongo(ctx context.Context, uri, database string) (*mongo.Client, *MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("mongo ping failed: %w", err)
	}
	return client, NewMongoStore(client.Database(database)), nil
}

func (s *MongoStore) ListRows(ctx context.Context, collection string, q ListQuery) (RowPage, error) {
	coll := s.db.Collection(collection)

	total, err := coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return RowPage{}, err
	}

	limit := normalizeLimit(q.Limit)
	filter := bson.D{}
	if q.Cursor != "" {
		after, err := decodeMongoCursor(q.Cursor)
		if err != nil {
			return RowPage{}, err
		}
		filter = bson.D{{Key: "_id", Value: bson.D{{Key: "$gt", Value: after}}}}
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetLimit(int64(limit + 1))
	cur, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return RowPage{}, err
	}
	defer cur.Close(ctx)

	var docs []bson.M
	if err := cur.All(ctx, &docs); err != nil {
		return RowPage{}, err
	}

	hasMore := len(docs) > limit
	if hasMore {
		docs = docs[:limit]
	}
	page := RowPage{Rows: make([]Row, 0, len(docs)), Total: total}
	for _, doc := range docs {
		page.Rows = append(page.Rows, rowFromDocument(collection, doc))
	}
	if hasMore {
		next, err := encodeMongoCursor(docs[len(docs)-1]["_id"])
		if err != nil {
			return RowPage{}, err
		}
		page.NextCursor = next
	}
	return page, nil
}

func (s *MongoStore) GetRow(ctx context.Context, collection, id string) (Row, error) {
	var doc bson.M
	err := s.db.Collection(collection).FindOne(ctx, mongoIDFilter(id)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Row{}, ErrNotFound
	}
	if err != nil {
		return Row{}, err
	}
	return rowFromDocument(collection, doc), nil
}

func (s *MongoStore) CreateRow(ctx context.Context, collection, id string, data record.Record) (Row, error) {
	if err := validateKey(collection, id); err != nil {
		return Row{}, err
	}
	now := time.Now().UTC()
	doc := bson.M{}
	for key, value := range data {
		doc[key] = value.Any()
	}
	doc["_id"] = id
	doc[mongoCreatedField] = now
	doc[mongoUpdatedField] = now

	if _, err := s.db.Collection(collection).InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return Row{}, ErrDuplicate
		}
		return Row{}, err
	}
	return Row{ID: id, Collection: collection, Data: data.Clone(), CreatedAt: now, UpdatedAt: now}, nil
}

func (s *MongoStore) DeleteRow(ctx context.Context, collection, id string) error {
	res, err := s.db.Collection(collection).DeleteOne(ctx, mongoIDFilter(id))
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// encodeMongoCursor keeps the BSON type of the last _id so the next page
// compares against the same type bracket.
func encodeMongoCursor(id interface{}) (string, error) {
	data, err := bson.MarshalExtJSON(bson.D{{Key: "_id", Value: id}}, true, false)
	if err != nil {
		return "", fmt.Errorf("encode cursor: %w", err)
	}
	return string(data), nil
}

func decodeMongoCursor(cursor string) (interface{}, error) {
	var doc bson.D
	if err := bson.UnmarshalExtJSON([]byte(cursor), true, &doc); err != nil {
		return nil, fmt.Errorf("invalid cursor: %w", err)
	}
	if len(doc) != 1 || doc[0].Key != "_id" {
		return nil, errors.New("invalid cursor")
	}
	return doc[0].Value, nil
}

// mongoIDFilter matches id as a string, or as an ObjectID when it is one in
// hex form.
func mongoIDFilter(id string) bson.D {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: bson.A{id, oid}}}}}
	}
	return bson.D{{Key: "_id", Value: id}}
}

func rowFromDocument(collection string, doc bson.M) Row {
	row := Row{Collection: collection, Data: record.Record{}}
	for key, value := range doc {
		switch key {
		case "_id":
			row.ID = record.FromAny(value).Text()
		case mongoCreatedField:
			row.CreatedAt = documentTime(value)
		case mongoUpdatedField:
			row.UpdatedAt = documentTime(value)
		default:
			row.Data[key] = record.FromAny(value)
		}
	}
	return row
}

func documentTime(value interface{}) time.Time {
	switch v := value.(type) {
	case time.Time:
		return v
	case interface{ Time() time.Time }:
		return v.Time()
	default:
		return time.Time{}
	}
}
