package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/starland/ledger/internal/config"
	"github.com/starland/ledger/internal/domain/models"
)

const dailyReportsCollection = "daily_reports"

// Repository stores daily dashboard snapshots.
type Repository interface {
	SaveDailyReport(ctx context.Context, report models.DailyReport) error
	ListDailyReports(ctx context.Context, limit int64) ([]models.DailyReport, error)
}

// MongoDBRepository implements Repository for MongoDB.
type MongoDBRepository struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoDBRepository connects, pings and ensures the date index.
func NewMongoDBRepository(ctx context.Context, cfg config.MongoDBConfig) (*MongoDBRepository, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	coll := client.Database(cfg.DBName).Collection(dailyReportsCollection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "date", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to index daily reports: %w", err)
	}

	return &MongoDBRepository{client: client, coll: coll}, nil
}

// SaveDailyReport stores the snapshot for its date, replacing an earlier one.
func (r *MongoDBRepository) SaveDailyReport(ctx context.Context, report models.DailyReport) error {
	_, err := r.coll.ReplaceOne(ctx, bson.M{"date": report.Date}, report, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save daily report %s: %w", report.Date, err)
	}
	return nil
}

// ListDailyReports returns the latest snapshots, newest date first.
func (r *MongoDBRepository) ListDailyReports(ctx context.Context, limit int64) ([]models.DailyReport, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cur, err := r.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily reports: %w", err)
	}
	defer cur.Close(ctx)

	reports := []models.DailyReport{}
	if err := cur.All(ctx, &reports); err != nil {
		return nil, fmt.Errorf("failed to decode daily reports: %w", err)
	}
	return reports, nil
}

// Close closes the MongoDB connection.
func (r *MongoDBRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}
