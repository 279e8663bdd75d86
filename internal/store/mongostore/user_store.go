// Package mongostore keeps users in a MongoDB collection. It honours the same
// contract as the SQL store: lowercase unique emails, store.ErrRecordNotFound
// and store.ErrDuplicateEmail.
package mongostore

import (
	"context"
	"errors"
	"time"

	"invoicepro/internal/domain"
	"invoicepro/internal/store"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const usersCollection = "users"

type userDocument struct {
	ID                string    `bson:"_id"`
	Email             string    `bson:"email"`
	PasswordHash      string    `bson:"password_hash"`
	Name              string    `bson:"name"`
	TwoFactorEnabled  bool      `bson:"two_factor_enabled"`
	TwoFactorVerified bool      `bson:"two_factor_verified"`
	LastIP            string    `bson:"last_ip"`
	CreatedAt         time.Time `bson:"created_at"`
	UpdatedAt         time.Time `bson:"updated_at"`
}

func toDocument(u *domain.User) userDocument {
	return userDocument{
		ID:                u.ID.String(),
		Email:             u.Email,
		PasswordHash:      u.PasswordHash,
		Name:              u.Name,
		TwoFactorEnabled:  u.TwoFactorEnabled,
		TwoFactorVerified: u.TwoFactorVerified,
		LastIP:            u.LastIP,
		CreatedAt:         u.CreatedAt,
		UpdatedAt:         u.UpdatedAt,
	}
}

func (d userDocument) toDomain() (*domain.User, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, err
	}
	return &domain.User{
		ID:                id,
		Email:             d.Email,
		PasswordHash:      d.PasswordHash,
		Name:              d.Name,
		TwoFactorEnabled:  d.TwoFactorEnabled,
		TwoFactorVerified: d.TwoFactorVerified,
		LastIP:            d.LastIP,
		CreatedAt:         d.CreatedAt.UTC(),
		UpdatedAt:         d.UpdatedAt.UTC(),
	}, nil
}

type UserStore struct {
	coll *mongo.Collection
}

func New(db *mongo.Database) *UserStore {
	return &UserStore{coll: db.Collection(usersCollection)}
}

// Connect dials uri and verifies the connection with a ping.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}

// Ping backs the /healthz readiness check.
func (s *UserStore) Ping(ctx context.Context) error {
	return s.coll.Database().Client().Ping(ctx, nil)
}

// EnsureIndexes creates the unique email index. Safe to call on every start.
func (s *UserStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetName("ux_users_email").SetUnique(true),
	})
	return err
}

func (s *UserStore) Create(ctx context.Context, usr *domain.User) error {
	if usr.ID == uuid.Nil {
		usr.ID = uuid.New()
	}
	usr.Email = store.NormalizeEmail(usr.Email)
	now := time.Now().UTC()
	if usr.CreatedAt.IsZero() {
		usr.CreatedAt = now
	}
	usr.UpdatedAt = now
	_, err := s.coll.InsertOne(ctx, toDocument(usr))
	return translate(err)
}

func (s *UserStore) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return s.findOne(ctx, bson.M{"_id": id.String()})
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.findOne(ctx, bson.M{"email": store.NormalizeEmail(email)})
}

func (s *UserStore) Save(ctx context.Context, usr *domain.User) error {
	usr.UpdatedAt = time.Now().UTC()
	res, err := s.coll.UpdateByID(ctx, usr.ID.String(), bson.M{"$set": bson.M{
		"name":                usr.Name,
		"password_hash":       usr.PasswordHash,
		"two_factor_enabled":  usr.TwoFactorEnabled,
		"two_factor_verified": usr.TwoFactorVerified,
		"last_ip":             usr.LastIP,
		"updated_at":          usr.UpdatedAt,
	}})
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return store.ErrRecordNotFound
	}
	return nil
}

func (s *UserStore) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	var doc userDocument
	if err := s.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, translate(err)
	}
	return doc.toDomain()
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return store.ErrRecordNotFound
	case mongo.IsDuplicateKeyError(err):
		return store.ErrDuplicateEmail
	default:
		return err
	}
}
