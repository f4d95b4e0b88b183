package databases

// go generate: mockery --name GameDatabase

import (
	"context"
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/lfg-matchmaker/models"
)

const gameName = "games"

// GameDatabase contains the methods to use with the games collection
type GameDatabase interface {
	FindByTitle(ctx context.Context, title string) ([]models.Game, error)
	Search(ctx context.Context, fragment string, limit int64) ([]models.Game, error)
}

type gameDatabase struct {
	db DatabaseHelper
}

// NewGameDatabase initializes a new instance of game database with the provided db connection
func NewGameDatabase(db DatabaseHelper) GameDatabase {
	return &gameDatabase{
		db: db,
	}
}

// FindByTitle matches the title or any alternative name exactly, ignoring case
func (g *gameDatabase) FindByTitle(ctx context.Context, title string) ([]models.Game, error) {
	re := primitive.Regex{Pattern: "^" + regexp.QuoteMeta(title) + "$", Options: "i"}
	return g.find(ctx, titleFilter(re))
}

// Search returns up to limit games whose title or alternative name contains fragment
func (g *gameDatabase) Search(ctx context.Context, fragment string, limit int64) ([]models.Game, error) {
	re := primitive.Regex{Pattern: regexp.QuoteMeta(fragment), Options: "i"}
	return g.find(ctx, titleFilter(re), options.Find().SetLimit(limit))
}

func (g *gameDatabase) find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.Game, error) {
	var games []models.Game
	cur, err := g.db.Collection(gameName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("find games: %w", err)
	}
	if err := cur.Decode(&games); err != nil {
		return nil, fmt.Errorf("decode games: %w", err)
	}
	return games, nil
}

func titleFilter(re primitive.Regex) bson.M {
	return bson.M{"$or": bson.A{
		bson.M{"title": re},
		bson.M{"alternative_names": re},
	}}
}
