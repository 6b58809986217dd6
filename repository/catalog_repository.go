package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"commerce-core/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrInsufficientStock is returned when a guarded decrement matches no
// document: either the variant has too little stock or it does not exist.
var ErrInsufficientStock = errors.New("insufficient stock")

// CatalogRepository is the data access surface for products and reservations.
type CatalogRepository interface {
	Get(ctx context.Context, productID string) (*models.Product, error)
	List(ctx context.Context, category string, page, limit int) ([]models.Product, int64, error)
	Upsert(ctx context.Context, p *models.Product) error

	// DecrementStock decrements one variant's stock only if the current
	// stock covers qty, as a single conditional update.
	DecrementStock(ctx context.Context, productID, size string, qty int) error
	IncrementStock(ctx context.Context, productID, size string, qty int) error

	CreateReservation(ctx context.Context, res *models.Reservation) error
	// MarkReleased flips a reservation to released and reports whether this
	// call was the one that flipped it. A missing ID reports false, nil.
	MarkReleased(ctx context.Context, reservationID string) (*models.Reservation, bool, error)
}

// MongoCatalogRepository implements CatalogRepository on MongoDB.
type MongoCatalogRepository struct {
	products     *mongo.Collection
	reservations *mongo.Collection
}

func NewMongoCatalogRepository(db *mongo.Database) *MongoCatalogRepository {
	return &MongoCatalogRepository{
		products:     db.Collection("products"),
		reservations: db.Collection("reservations"),
	}
}

func (r *MongoCatalogRepository) Get(ctx context.Context, productID string) (*models.Product, error) {
	var p models.Product
	err := r.products.FindOne(ctx, bson.M{"_id": productID}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch product %s: %w", productID, err)
	}
	return &p, nil
}

func (r *MongoCatalogRepository) List(ctx context.Context, category string, page, limit int) ([]models.Product, int64, error) {
	filter := bson.M{}
	if category != "" {
		filter["category"] = category
	}

	total, err := r.products.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit)).
		SetSort(bson.D{{Key: "title", Value: 1}})

	cur, err := r.products.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	var products []models.Product
	if err := cur.All(ctx, &products); err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func (r *MongoCatalogRepository) Upsert(ctx context.Context, p *models.Product) error {
	p.UpdatedAt = time.Now().UTC()
	opts := options.Replace().SetUpsert(true)
	_, err := r.products.ReplaceOne(ctx, bson.M{"_id": p.ID}, p, opts)
	if err != nil {
		return fmt.Errorf("failed to upsert product %s: %w", p.ID, err)
	}
	return nil
}

// DecrementStock is the compare-and-swap the checkout path depends on: the
// filter only matches while the variant still has qty in stock, so two
// concurrent callers can never jointly overdraw.
func (r *MongoCatalogRepository) DecrementStock(ctx context.Context, productID, size string, qty int) error {
	filter := bson.M{
		"_id": productID,
		"variants": bson.M{"$elemMatch": bson.M{
			"size":  size,
			"stock": bson.M{"$gte": qty},
		}},
	}
	update := bson.M{
		"$inc": bson.M{"variants.$.stock": -qty},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}

	res, err := r.products.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("decrement stock for product=%s size=%s: %w", productID, size, err)
	}
	if res.MatchedCount == 0 {
		return ErrInsufficientStock
	}
	return nil
}

func (r *MongoCatalogRepository) IncrementStock(ctx context.Context, productID, size string, qty int) error {
	filter := bson.M{
		"_id":      productID,
		"variants": bson.M{"$elemMatch": bson.M{"size": size}},
	}
	update := bson.M{
		"$inc": bson.M{"variants.$.stock": qty},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}

	res, err := r.products.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("increment stock for product=%s size=%s: %w", productID, size, err)
	}
	if res.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *MongoCatalogRepository) CreateReservation(ctx context.Context, res *models.Reservation) error {
	if _, err := r.reservations.InsertOne(ctx, res); err != nil {
		return fmt.Errorf("failed to persist reservation %s: %w", res.ID, err)
	}
	return nil
}

// MarkReleased uses the released flag as the idempotency gate: only the call
// that flips false to true gets the lines back for compensation.
func (r *MongoCatalogRepository) MarkReleased(ctx context.Context, reservationID string) (*models.Reservation, bool, error) {
	filter := bson.M{"_id": reservationID, "released": false}
	update := bson.M{"$set": bson.M{"released": true}}

	var res models.Reservation
	err := r.reservations.FindOneAndUpdate(ctx, filter, update).Decode(&res)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to release reservation %s: %w", reservationID, err)
	}
	return &res, true, nil
}
