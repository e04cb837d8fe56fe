package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mamadbah2/medrefill/internal/domain/models"
)

// FindUserByID reads a user provisioned by the identity service.
func (r *MongoDBRepository) FindUserByID(ctx context.Context, id string) (models.User, error) {
	var u models.User
	err := r.collection(usersCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.User{}, models.ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("failed to find user %s: %w", id, err)
	}
	return u, nil
}
