package projection

import (
	"context"
	"errors"
	"time"

	"ordersaga/internal/events"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Reader is the query side used by the HTTP surface.
type Reader interface {
	GetOrder(ctx context.Context, orderID string) (*OrderView, error)
	OrdersByUser(ctx context.Context, userID string) ([]OrderView, error)
	GetProduct(ctx context.Context, productID string) (*ProductView, error)
	GetUser(ctx context.Context, userID string) (*UserView, error)
}

type Store interface {
	Reader
	UpsertProduct(ctx context.Context, v ProductView) error
	UpsertUser(ctx context.Context, v UserView) error
	// SaveOrder writes the immutable order fields. An existing view keeps
	// its status and reason.
	SaveOrder(ctx context.Context, v OrderView) error
	// InsertOrderStub writes v only when no view exists yet and reports
	// whether it did.
	InsertOrderStub(ctx context.Context, v OrderView) (bool, error)
	// SetOrderStatus updates the view only while its status is still from.
	SetOrderStatus(ctx context.Context, orderID string, from, to events.OrderStatus, reason string, at time.Time) (bool, error)
}

const (
	productCollection = "product_views"
	orderCollection   = "order_views"
	userCollection    = "user_views"
)

type MongoStore struct {
	products *mongo.Collection
	orders   *mongo.Collection
	users    *mongo.Collection
}

// NewMongoStore returns a Store over the view collections of db.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		products: db.Collection(productCollection),
		orders:   db.Collection(orderCollection),
		users:    db.Collection(userCollection),
	}
}

// EnsureIndexes creates the secondary index used by OrdersByUser.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.orders.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "updatedAt", Value: -1}},
	})
	return err
}

func (s *MongoStore) UpsertProduct(ctx context.Context, v ProductView) error {
	_, err := s.products.ReplaceOne(ctx, bson.M{"_id": v.ID}, v, options.Replace().SetUpsert(true))
	return err
}

func (s *MongoStore) UpsertUser(ctx context.Context, v UserView) error {
	_, err := s.users.ReplaceOne(ctx, bson.M{"_id": v.ID}, v, options.Replace().SetUpsert(true))
	return err
}

func (s *MongoStore) InsertOrderStub(ctx context.Context, v OrderView) (bool, error) {
	res, err := s.orders.UpdateOne(ctx,
		bson.M{"_id": v.ID},
		bson.M{"$setOnInsert": bson.M{
			"userId":      v.UserID,
			"items":       v.Items,
			"totalAmount": v.TotalAmount,
			"status":      v.Status,
			"reason":      v.Reason,
			"updatedAt":   v.UpdatedAt,
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return false, err
	}
	return res.UpsertedCount > 0, nil
}

func (s *MongoStore) SaveOrder(ctx context.Context, v OrderView) error {
	_, err := s.orders.UpdateOne(ctx,
		bson.M{"_id": v.ID},
		bson.M{
			"$set": bson.M{
				"userId":      v.UserID,
				"items":       v.Items,
				"totalAmount": v.TotalAmount,
			},
			"$setOnInsert": bson.M{
				"status":    v.Status,
				"reason":    v.Reason,
				"updatedAt": v.UpdatedAt,
			},
		},
		options.Update().SetUpsert(true),
	)
	return err
}

func (s *MongoStore) SetOrderStatus(ctx context.Context, orderID string, from, to events.OrderStatus, reason string, at time.Time) (bool, error) {
	res, err := s.orders.UpdateOne(ctx,
		bson.M{"_id": orderID, "status": from},
		bson.M{"$set": bson.M{"status": to, "reason": reason, "updatedAt": at}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

func (s *MongoStore) GetOrder(ctx context.Context, orderID string) (*OrderView, error) {
	var v OrderView
	if err := s.orders.FindOne(ctx, bson.M{"_id": orderID}).Decode(&v); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrViewNotFound
		}
		return nil, err
	}
	return &v, nil
}

func (s *MongoStore) OrdersByUser(ctx context.Context, userID string) ([]OrderView, error) {
	cursor, err := s.orders.Find(ctx, bson.M{"userId": userID}, options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	views := []OrderView{}
	if err := cursor.All(ctx, &views); err != nil {
		return nil, err
	}
	return views, nil
}

func (s *MongoStore) GetProduct(ctx context.Context, productID string) (*ProductView, error) {
	var v ProductView
	if err := s.products.FindOne(ctx, bson.M{"_id": productID}).Decode(&v); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrViewNotFound
		}
		return nil, err
	}
	return &v, nil
}

func (s *MongoStore) GetUser(ctx context.Context, userID string) (*UserView, error) {
	var v UserView
	if err := s.users.FindOne(ctx, bson.M{"_id": userID}).Decode(&v); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrViewNotFound
		}
		return nil, err
	}
	return &v, nil
}
