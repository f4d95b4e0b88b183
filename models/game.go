package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Game holds the fields of the games collection used for LFG lookups
type Game struct {
	ID               primitive.ObjectID `json:"_id" bson:"_id"`
	Title            string             `json:"title" bson:"title"`
	AlternativeNames []string           `json:"alternative_names" bson:"alternative_names"`
	Platforms        []string           `json:"platforms" bson:"platforms"`
	Genres           []string           `json:"genres" bson:"genres"`
}
