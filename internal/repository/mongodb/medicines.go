package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mamadbah2/medrefill/internal/domain/models"
)

// SaveMedicine inserts a new medicine (Version 0) or replaces an existing one
// guarded by its version. A stale version yields models.ErrVersionConflict.
// On success m.Version holds the stored version.
func (r *MongoDBRepository) SaveMedicine(ctx context.Context, m *models.Medicine) error {
	coll := r.collection(medicinesCollection)
	now := time.Now().UTC()

	if m.Version == 0 {
		doc := *m
		doc.Version = 1
		if doc.CreatedAt.IsZero() {
			doc.CreatedAt = now
		}
		doc.UpdatedAt = now

		if _, err := coll.InsertOne(ctx, doc); err != nil {
			return fmt.Errorf("failed to insert medicine: %w", err)
		}
		*m = doc
		return nil
	}

	doc := *m
	doc.Version = m.Version + 1
	doc.UpdatedAt = now

	filter := bson.M{"_id": m.ID, "owner_id": m.OwnerID, "version": m.Version}
	res, err := coll.ReplaceOne(ctx, filter, doc)
	if err != nil {
		return fmt.Errorf("failed to replace medicine %s: %w", m.ID, err)
	}
	if res.MatchedCount == 0 {
		return models.ErrVersionConflict
	}

	*m = doc
	return nil
}

// FindMedicineByID loads one medicine.
func (r *MongoDBRepository) FindMedicineByID(ctx context.Context, id string) (models.Medicine, error) {
	var m models.Medicine
	err := r.collection(medicinesCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Medicine{}, models.ErrNotFound
	}
	if err != nil {
		return models.Medicine{}, fmt.Errorf("failed to find medicine %s: %w", id, err)
	}
	return m, nil
}

// FindMedicinesByOwner lists an owner's medicines by refill date, soonest first.
func (r *MongoDBRepository) FindMedicinesByOwner(ctx context.Context, ownerID string) ([]models.Medicine, error) {
	return r.findMedicines(ctx, bson.M{"owner_id": ownerID})
}

// FindMedicinesByOwnerAndStatus lists an owner's medicines in one tier.
func (r *MongoDBRepository) FindMedicinesByOwnerAndStatus(ctx context.Context, ownerID string, status models.MedicineStatus) ([]models.Medicine, error) {
	return r.findMedicines(ctx, bson.M{"owner_id": ownerID, "status": status})
}

func (r *MongoDBRepository) findMedicines(ctx context.Context, filter bson.M) ([]models.Medicine, error) {
	opts := options.Find().SetSort(bson.D{{Key: "refill_date", Value: 1}})

	cursor, err := r.collection(medicinesCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find medicines: %w", err)
	}
	defer cursor.Close(ctx)

	medicines := make([]models.Medicine, 0)
	if err := cursor.All(ctx, &medicines); err != nil {
		return nil, fmt.Errorf("failed to decode medicines: %w", err)
	}
	return medicines, nil
}

// CountMedicinesByStatus counts an owner's medicines per tier.
func (r *MongoDBRepository) CountMedicinesByStatus(ctx context.Context, ownerID string) (map[models.MedicineStatus]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"owner_id": ownerID}}},
		{{Key: "$group", Value: bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}}},
	}

	cursor, err := r.collection(medicinesCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to count medicines by status: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Status models.MedicineStatus `bson:"_id"`
		Count  int64                 `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode status counts: %w", err)
	}

	counts := make(map[models.MedicineStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// FindDue returns medicines whose refill date lies in [from, to] with
// reminders enabled on both the medicine and its owner, joined with the owner.
func (r *MongoDBRepository) FindDue(ctx context.Context, from, to time.Time) ([]models.DueMedicine, error) {
	cursor, err := r.collection(medicinesCollection).Aggregate(ctx, duePipeline(from, to))
	if err != nil {
		return nil, fmt.Errorf("failed to query due medicines: %w", err)
	}
	defer cursor.Close(ctx)

	due := make([]models.DueMedicine, 0)
	if err := cursor.All(ctx, &due); err != nil {
		return nil, fmt.Errorf("failed to decode due medicines: %w", err)
	}
	return due, nil
}

func duePipeline(from, to time.Time) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"refill_date":           bson.M{"$gte": from, "$lte": to},
			"notifications_enabled": true,
		}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         usersCollection,
			"localField":   "owner_id",
			"foreignField": "_id",
			"as":           "owner",
		}}},
		{{Key: "$unwind", Value: "$owner"}},
		{{Key: "$match", Value: bson.M{"owner.email_notifications_enabled": true}}},
		{{Key: "$sort", Value: bson.D{{Key: "owner_id", Value: 1}, {Key: "refill_date", Value: 1}}}},
	}
}

// DeleteMedicine removes an owner's medicine.
func (r *MongoDBRepository) DeleteMedicine(ctx context.Context, id, ownerID string) error {
	res, err := r.collection(medicinesCollection).DeleteOne(ctx, bson.M{"_id": id, "owner_id": ownerID})
	if err != nil {
		return fmt.Errorf("failed to delete medicine %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}
