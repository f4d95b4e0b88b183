package databases

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/linesmerrill/lfg-matchmaker/models"
)

// mapFindErr turns a missing document into models.ErrNotFound and wraps the rest
func mapFindErr(err error, op string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func statusIn(statuses ...models.SessionStatus) bson.M {
	in := make(bson.A, 0, len(statuses))
	for _, s := range statuses {
		in = append(in, s)
	}
	return bson.M{"$in": in}
}
