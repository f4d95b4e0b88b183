package databases

// go generate: mockery --name ProfileDatabase

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/linesmerrill/lfg-matchmaker/models"
)

const profileName = "users"

// ProfileDatabase contains the methods to use with the GameTree users collection
type ProfileDatabase interface {
	FindByDiscordID(ctx context.Context, discordID string) (*models.Profile, error)
	FindByDiscordIDs(ctx context.Context, discordIDs []string) ([]models.Profile, error)
	FindByUsername(ctx context.Context, username string) (*models.Profile, error)
	SetOptIn(ctx context.Context, discordID string, optIn bool) error
	LinkDiscord(ctx context.Context, profileID primitive.ObjectID, discordID, discordUsername, displayName string, optIn bool) error
}

type profileDatabase struct {
	db DatabaseHelper
}

// NewProfileDatabase initializes a new instance of profile database with the provided db connection
func NewProfileDatabase(db DatabaseHelper) ProfileDatabase {
	return &profileDatabase{
		db: db,
	}
}

func (p *profileDatabase) FindByDiscordID(ctx context.Context, discordID string) (*models.Profile, error) {
	return p.findOne(ctx, bson.M{"discordId": discordID})
}

func (p *profileDatabase) FindByUsername(ctx context.Context, username string) (*models.Profile, error) {
	return p.findOne(ctx, bson.M{"username": username})
}

func (p *profileDatabase) FindByDiscordIDs(ctx context.Context, discordIDs []string) ([]models.Profile, error) {
	var profiles []models.Profile
	if len(discordIDs) == 0 {
		return profiles, nil
	}
	cur, err := p.db.Collection(profileName).Find(ctx, bson.M{"discordId": bson.M{"$in": discordIDs}})
	if err != nil {
		return nil, fmt.Errorf("find profiles: %w", err)
	}
	if err := cur.Decode(&profiles); err != nil {
		return nil, fmt.Errorf("decode profiles: %w", err)
	}
	return profiles, nil
}

func (p *profileDatabase) SetOptIn(ctx context.Context, discordID string, optIn bool) error {
	matched, err := p.db.Collection(profileName).UpdateOne(ctx,
		bson.M{"discordId": discordID},
		bson.M{"$set": bson.M{"lfgInviteOptIn": optIn}},
	)
	if err != nil {
		return fmt.Errorf("update opt-in: %w", err)
	}
	if matched == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (p *profileDatabase) LinkDiscord(ctx context.Context, profileID primitive.ObjectID, discordID, discordUsername, displayName string, optIn bool) error {
	matched, err := p.db.Collection(profileName).UpdateOne(ctx,
		bson.M{"_id": profileID},
		bson.M{"$set": bson.M{
			"discordId":          discordID,
			"discordUsername":    discordUsername,
			"discordDisplayName": displayName,
			"lfgInviteOptIn":     optIn,
		}},
	)
	if err != nil {
		return fmt.Errorf("link discord account: %w", err)
	}
	if matched == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (p *profileDatabase) findOne(ctx context.Context, filter bson.M) (*models.Profile, error) {
	profile := &models.Profile{}
	err := p.db.Collection(profileName).FindOne(ctx, filter).Decode(&profile)
	if err != nil {
		return nil, mapFindErr(err, "find profile")
	}
	return profile, nil
}
