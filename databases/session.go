package databases

// go generate: mockery --name SessionDatabase

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/lfg-matchmaker/models"
)

const sessionName = "sessions"

// SessionDatabase contains the methods to use with the session database
type SessionDatabase interface {
	Create(ctx context.Context, session *models.Session) error
	FindByKey(ctx context.Context, sessionID string) (*models.Session, error)
	FindOpenByCreator(ctx context.Context, creatorID string) (*models.Session, error)
	FindByVoiceChannel(ctx context.Context, channelID string) (*models.Session, error)
	FindActive(ctx context.Context) ([]models.Session, error)
	Update(ctx context.Context, session *models.Session) error
	EnsureIndexes(ctx context.Context) error
}

type sessionDatabase struct {
	db DatabaseHelper
}

// NewSessionDatabase initializes a new instance of session database with the provided db connection
func NewSessionDatabase(db DatabaseHelper) SessionDatabase {
	return &sessionDatabase{
		db: db,
	}
}

// Create inserts a new session. A creator that already has an active session
// gets models.ErrActiveSessionExists.
func (s *sessionDatabase) Create(ctx context.Context, session *models.Session) error {
	if session.Version == 0 {
		session.Version = 1
	}
	id, err := s.db.Collection(sessionName).InsertOne(ctx, session)
	if mongo.IsDuplicateKeyError(err) {
		return models.ErrActiveSessionExists
	}
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	if oid, ok := id.(primitive.ObjectID); ok {
		session.ID = oid
	}
	return nil
}

func (s *sessionDatabase) FindByKey(ctx context.Context, sessionID string) (*models.Session, error) {
	return s.findOne(ctx, bson.M{"sessionId": sessionID})
}

func (s *sessionDatabase) FindOpenByCreator(ctx context.Context, creatorID string) (*models.Session, error) {
	return s.findOne(ctx, bson.M{
		"creatorDiscordId": creatorID,
		"status":           statusIn(models.SessionOpen, models.SessionFull),
	})
}

func (s *sessionDatabase) FindByVoiceChannel(ctx context.Context, channelID string) (*models.Session, error) {
	return s.findOne(ctx, bson.M{
		"voiceChannelId": channelID,
		"status":         statusIn(models.SessionOpen, models.SessionFull),
	})
}

func (s *sessionDatabase) FindActive(ctx context.Context) ([]models.Session, error) {
	var sessions []models.Session
	cur, err := s.db.Collection(sessionName).Find(ctx, bson.M{
		"status": statusIn(models.SessionOpen, models.SessionFull, models.SessionClosing),
	})
	if err != nil {
		return nil, fmt.Errorf("find active sessions: %w", err)
	}
	if err := cur.Decode(&sessions); err != nil {
		return nil, fmt.Errorf("decode active sessions: %w", err)
	}
	return sessions, nil
}

// Update overwrites the whole document if nobody wrote it since it was read.
// On success session.Version is advanced in place.
func (s *sessionDatabase) Update(ctx context.Context, session *models.Session) error {
	read := session.Version
	session.Version = read + 1
	session.UpdatedAt = time.Now().UTC()

	matched, err := s.db.Collection(sessionName).ReplaceOne(ctx, bson.M{
		"sessionId": session.SessionID,
		"version":   read,
	}, session)
	if err != nil {
		session.Version = read
		return fmt.Errorf("replace session: %w", err)
	}
	if matched == 0 {
		session.Version = read
		return models.ErrVersionConflict
	}
	return nil
}

func (s *sessionDatabase) EnsureIndexes(ctx context.Context) error {
	return s.db.Collection(sessionName).CreateIndexes(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "sessionId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "creatorDiscordId", Value: 1}}},
		{Keys: bson.D{{Key: "activeCreator", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "voiceChannelId", Value: 1}}},
	})
}

func (s *sessionDatabase) findOne(ctx context.Context, filter bson.M) (*models.Session, error) {
	session := &models.Session{}
	err := s.db.Collection(sessionName).FindOne(ctx, filter).Decode(&session)
	if err != nil {
		return nil, mapFindErr(err, "find session")
	}
	return session, nil
}
