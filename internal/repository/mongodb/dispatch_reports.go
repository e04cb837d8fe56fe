package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mamadbah2/medrefill/internal/domain/models"
)

// SaveDispatchReport appends a dispatch run to the history.
func (r *MongoDBRepository) SaveDispatchReport(ctx context.Context, report models.DispatchReport) error {
	if report.Failures == nil {
		report.Failures = []models.DispatchFailure{}
	}
	if _, err := r.collection(dispatchReportsCollection).InsertOne(ctx, report); err != nil {
		return fmt.Errorf("failed to insert dispatch report: %w", err)
	}
	return nil
}

// RecentDispatchReports returns the latest dispatch runs, newest first.
func (r *MongoDBRepository) RecentDispatchReports(ctx context.Context, limit int64) ([]models.DispatchReport, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "run_at", Value: -1}}).
		SetLimit(limit)

	cursor, err := r.collection(dispatchReportsCollection).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find dispatch reports: %w", err)
	}
	defer cursor.Close(ctx)

	reports := make([]models.DispatchReport, 0)
	if err := cursor.All(ctx, &reports); err != nil {
		return nil, fmt.Errorf("failed to decode dispatch reports: %w", err)
	}
	return reports, nil
}
