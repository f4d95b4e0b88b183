package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Profile holds the fields of the users collection that matchmaking reads.
// The collection is owned by the main GameTree app and is not strict, so the
// list-like fields decode leniently: anything that is not an array decodes
// as empty instead of failing the whole document.
type Profile struct {
	ID                 primitive.ObjectID `json:"_id" bson:"_id"`
	Username           string             `json:"username" bson:"username"`
	Email              string             `json:"-" bson:"email"`
	Platforms          StringList         `json:"platforms" bson:"platforms"`
	Genres             StringList         `json:"genres" bson:"genres"`
	GameIDs            StringList         `json:"gameIds" bson:"gameIds"`
	ConnectionIDs      StringList         `json:"userIds" bson:"userIds"`
	Location           *Location          `json:"location,omitempty" bson:"location,omitempty"`
	Details            *ProfileDetails    `json:"profile,omitempty" bson:"profile,omitempty"`
	Avatar             *Avatar            `json:"avatar,omitempty" bson:"avatar,omitempty"`
	PersonalityAnswers AnswerList         `json:"personalityAnswers" bson:"personalityAnswers"`
	DiscordID          string             `json:"discordId" bson:"discordId"`
	DiscordUsername    string             `json:"discordUsername" bson:"discordUsername"`
	DiscordDisplayName string             `json:"discordDisplayName" bson:"discordDisplayName"`
	LFGInviteOptIn     bool               `json:"lfgInviteOptIn" bson:"lfgInviteOptIn"`
	LastActiveAt       Timestamp          `json:"lastActiveAt" bson:"lastActiveAt"`
}

// ProfileDetails is the nested profile sub-document
type ProfileDetails struct {
	AboutMe  string     `json:"aboutMe" bson:"aboutMe"`
	Timezone string     `json:"timezone" bson:"timezone"`
	Language StringList `json:"languages" bson:"languages"`
}

// Location is a GeoJSON point plus address extras. Coordinates are [lng, lat].
type Location struct {
	Type        string    `json:"type" bson:"type"`
	Coordinates FloatList `json:"coordinates" bson:"coordinates"`
	City        string    `json:"city" bson:"city"`
	Country     string    `json:"country" bson:"country"`
}

// Avatar holds the uploaded avatar urls
type Avatar struct {
	Secure string `json:"secure" bson:"secure"`
}

// HasAboutMe reports whether the profile has a non-empty about me
func (p *Profile) HasAboutMe() bool {
	return p.Details != nil && p.Details.AboutMe != ""
}

// HasAvatar reports whether the profile has an avatar
func (p *Profile) HasAvatar() bool {
	return p.Avatar != nil && p.Avatar.Secure != ""
}

// Country returns the profile country or empty
func (p *Profile) Country() string {
	if p.Location == nil {
		return ""
	}
	return p.Location.Country
}

// LatLng returns the profile coordinates when both are present
func (p *Profile) LatLng() (lat, lng float64, ok bool) {
	if p.Location == nil || len(p.Location.Coordinates) < 2 {
		return 0, 0, false
	}
	return p.Location.Coordinates[1], p.Location.Coordinates[0], true
}

// StringList decodes an array of strings or ObjectIDs as hex strings.
// Non-array values decode as an empty list.
type StringList []string

// UnmarshalBSONValue implements bson.ValueUnmarshaler
func (l *StringList) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	*l = nil
	if t != bsontype.Array {
		return nil
	}
	values, err := bson.Raw(data).Values()
	if err != nil {
		return nil
	}
	for _, v := range values {
		switch v.Type {
		case bsontype.String:
			*l = append(*l, v.StringValue())
		case bsontype.ObjectID:
			*l = append(*l, v.ObjectID().Hex())
		}
	}
	return nil
}

// Contains reports whether s is in the list
func (l StringList) Contains(s string) bool {
	for _, v := range l {
		if v == s {
			return true
		}
	}
	return false
}

// FloatList decodes an array of numbers. Non-array values decode as empty.
type FloatList []float64

// UnmarshalBSONValue implements bson.ValueUnmarshaler
func (l *FloatList) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	*l = nil
	if t != bsontype.Array {
		return nil
	}
	values, err := bson.Raw(data).Values()
	if err != nil {
		return nil
	}
	for _, v := range values {
		if f, ok := number(v); ok {
			*l = append(*l, f)
		}
	}
	return nil
}

// Unanswered marks a personality question with no answer
const Unanswered = -1

// AnswerList holds personality test answers in question order, 0 to 100.
// Missing or non-numeric entries decode as Unanswered.
type AnswerList []int

// UnmarshalBSONValue implements bson.ValueUnmarshaler
func (l *AnswerList) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	*l = nil
	if t != bsontype.Array {
		return nil
	}
	values, err := bson.Raw(data).Values()
	if err != nil {
		return nil
	}
	for _, v := range values {
		f, ok := number(v)
		if !ok || f < 0 || f > 100 {
			*l = append(*l, Unanswered)
			continue
		}
		*l = append(*l, int(f))
	}
	return nil
}

// Timestamp decodes a BSON date or an RFC3339 string. Anything else is zero.
type Timestamp struct {
	time.Time
}

// UnmarshalBSONValue implements bson.ValueUnmarshaler
func (ts *Timestamp) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	ts.Time = time.Time{}
	v := bson.RawValue{Type: t, Value: data}
	switch t {
	case bsontype.DateTime:
		ts.Time = v.Time()
	case bsontype.String:
		if parsed, err := time.Parse(time.RFC3339, v.StringValue()); err == nil {
			ts.Time = parsed
		}
	}
	return nil
}

func number(v bson.RawValue) (float64, bool) {
	switch v.Type {
	case bsontype.Double:
		return v.Double(), true
	case bsontype.Int32:
		return float64(v.Int32()), true
	case bsontype.Int64:
		return float64(v.Int64()), true
	}
	return 0, false
}
