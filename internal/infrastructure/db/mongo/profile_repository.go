package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/bookwise/session-client/internal/core/domain"
)

const (
	profileCollection = "profiles"
	queryTimeout      = 5 * time.Second
)

// ProfileRepository implements ports.ProfileRepository using MongoDB.
type ProfileRepository struct {
	coll *mongo.Collection
}

func NewProfileRepository(db *mongo.Database) *ProfileRepository {
	return &ProfileRepository{coll: db.Collection(profileCollection)}
}

type mongoProfile struct {
	SubjectID   string            `bson:"_id"`
	Email       string            `bson:"email,omitempty"`
	Role        string            `bson:"role"`
	DisplayName string            `bson:"display_name"`
	AvatarURL   string            `bson:"avatar_url,omitempty"`
	Locale      string            `bson:"locale,omitempty"`
	Preferences map[string]string `bson:"preferences,omitempty"`
	CreatedAt   int64             `bson:"created_at"`
	UpdatedAt   int64             `bson:"updated_at"`
}

// GetProfile retrieves the profile keyed by subject id.
func (r *ProfileRepository) GetProfile(ctx context.Context, subjectID string) (*domain.Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var mp mongoProfile
	if err := r.coll.FindOne(ctx, bson.M{"_id": subjectID}).Decode(&mp); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrProfileNotFound
		}
		return nil, fmt.Errorf("find profile: %w", err)
	}
	return toDomain(mp), nil
}

// CreateProfile inserts defaults for a subject. If a concurrent writer got
// there first, the existing record is returned instead.
func (r *ProfileRepository) CreateProfile(ctx context.Context, defaults *domain.Profile) (*domain.Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	now := time.Now().UTC().Unix()
	onInsert := bson.M{
		"email":        defaults.Email,
		"role":         defaults.Role,
		"display_name": defaults.DisplayName,
		"created_at":   now,
		"updated_at":   now,
	}
	if defaults.Locale != "" {
		onInsert["locale"] = defaults.Locale
	}
	if len(defaults.Preferences) > 0 {
		onInsert["preferences"] = defaults.Preferences
	}

	// $setOnInsert keeps an existing record untouched.
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var stored mongoProfile
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": defaults.SubjectID}, bson.M{"$setOnInsert": onInsert}, opts).Decode(&stored)
	if err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}
	return toDomain(stored), nil
}

// EnsureIndexes creates necessary indexes on the profiles collection.
func (r *ProfileRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "email", Value: 1}}})
	return err
}

func toDomain(mp mongoProfile) *domain.Profile {
	return &domain.Profile{
		SubjectID:   mp.SubjectID,
		Email:       mp.Email,
		Role:        mp.Role,
		DisplayName: mp.DisplayName,
		AvatarURL:   mp.AvatarURL,
		Locale:      mp.Locale,
		Preferences: mp.Preferences,
		CreatedAt:   unixToTime(mp.CreatedAt),
		UpdatedAt:   unixToTime(mp.UpdatedAt),
	}
}

func unixToTime(ts int64) time.Time {
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0).UTC()
}
