package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SessionStatus is the lifecycle state of an LFG session
type SessionStatus string

// Session statuses. SessionClosed is terminal.
const (
	SessionOpen    SessionStatus = "open"
	SessionFull    SessionStatus = "full"
	SessionClosing SessionStatus = "closing"
	SessionClosed  SessionStatus = "closed"
)

// Active reports whether the session still owns live resources
func (s SessionStatus) Active() bool {
	return s == SessionOpen || s == SessionFull
}

// Session holds the structure for the sessions collection in mongo
type Session struct {
	ID                  primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	SessionID           string             `json:"sessionId" bson:"sessionId"`
	GuildID             string             `json:"guildId" bson:"guildId"`
	CreatorID           string             `json:"creatorDiscordId" bson:"creatorDiscordId"`
	CreatorUsername     string             `json:"creatorUsername" bson:"creatorUsername"`
	CreatorProfileID    string             `json:"creatorGTUserId,omitempty" bson:"creatorGTUserId,omitempty"`
	GameID              string             `json:"gameId" bson:"gameId"`
	GameName            string             `json:"gameName" bson:"gameName"`
	Platform            string             `json:"platform" bson:"platform"`
	Description         string             `json:"description" bson:"description"`
	MaxPlayers          int                `json:"maxPlayers" bson:"maxPlayers"`
	Participants        []Participant      `json:"participants" bson:"participants"`
	Status              SessionStatus      `json:"status" bson:"status"`
	// ActiveCreator mirrors CreatorID while the session is open or full.
	// A sparse unique index on it keeps one active session per creator.
	ActiveCreator       string             `json:"-" bson:"activeCreator,omitempty"`
	Posts               []PostRef          `json:"posts" bson:"posts"`
	TextChannelID       string             `json:"textChannelId,omitempty" bson:"textChannelId,omitempty"`
	VoiceChannelID      string             `json:"voiceChannelId,omitempty" bson:"voiceChannelId,omitempty"`
	PersonalizedInvites []InviteRecord     `json:"personalizedInvites" bson:"personalizedInvites"`
	Version             int64              `json:"version" bson:"version"`
	CreatedAt           time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt           time.Time          `json:"updatedAt" bson:"updatedAt"`
	LastActivityAt      time.Time          `json:"lastActivityAt" bson:"lastActivityAt"`
	ClosedAt            *time.Time         `json:"callEndedAt,omitempty" bson:"callEndedAt,omitempty"`
}

// Participant is a member who accepted the session
type Participant struct {
	DiscordID       string `json:"discordId" bson:"discordId"`
	DiscordUsername string `json:"discordUsername" bson:"discordUsername"`
	ProfileID       string `json:"GTUserId,omitempty" bson:"GTUserId,omitempty"`
}

// PostRef locates a message posted on behalf of a session
type PostRef struct {
	ChannelID string `json:"channelId" bson:"channelId"`
	MessageID string `json:"messageId" bson:"messageId"`
}

// InviteRecord is an outstanding personalized invite sent by direct message
type InviteRecord struct {
	UserID    string `json:"userId" bson:"userId"`
	ChannelID string `json:"channelId" bson:"channelId"`
	MessageID string `json:"messageId" bson:"messageId"`
}

// Message returns the location of the delivered invite message
func (i InviteRecord) Message() PostRef {
	return PostRef{ChannelID: i.ChannelID, MessageID: i.MessageID}
}

// HasParticipant reports whether userID already joined
func (s *Session) HasParticipant(userID string) bool {
	for _, p := range s.Participants {
		if p.DiscordID == userID {
			return true
		}
	}
	return false
}

// SpotsLeft is the remaining capacity, never negative
func (s *Session) SpotsLeft() int {
	n := s.MaxPlayers - len(s.Participants)
	if n < 0 {
		return 0
	}
	return n
}

// ParticipantIDs returns the discord ids of all participants in join order
func (s *Session) ParticipantIDs() []string {
	ids := make([]string, 0, len(s.Participants))
	for _, p := range s.Participants {
		ids = append(ids, p.DiscordID)
	}
	return ids
}

// HasInvite reports whether an outstanding invite exists for userID
func (s *Session) HasInvite(userID string) bool {
	for _, inv := range s.PersonalizedInvites {
		if inv.UserID == userID {
			return true
		}
	}
	return false
}

// DropInvite removes the outstanding invite for userID, if any
func (s *Session) DropInvite(userID string) {
	kept := s.PersonalizedInvites[:0]
	for _, inv := range s.PersonalizedInvites {
		if inv.UserID != userID {
			kept = append(kept, inv)
		}
	}
	s.PersonalizedInvites = kept
}

// Clone returns a copy that shares no slices with s
func (s *Session) Clone() *Session {
	c := *s
	c.Participants = append([]Participant(nil), s.Participants...)
	c.Posts = append([]PostRef(nil), s.Posts...)
	c.PersonalizedInvites = append([]InviteRecord(nil), s.PersonalizedInvites...)
	if s.ClosedAt != nil {
		t := *s.ClosedAt
		c.ClosedAt = &t
	}
	return &c
}
