package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/99minutos/account-service/internal/core/domain"
	"github.com/99minutos/account-service/internal/core/ports"
)

const usersCollection = "users"

// UserRepository implements ports.UserRepository on a MongoDB collection.
type UserRepository struct {
	coll *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{coll: db.Collection(usersCollection)}
}

type mongoUser struct {
	ID                     string     `bson:"_id"`
	Email                  string     `bson:"email"`
	PasswordHash           string     `bson:"password_hash"`
	Name                   string     `bson:"name"`
	Role                   string     `bson:"role"`
	IsActive               bool       `bson:"is_active"`
	ActivationToken        string     `bson:"activation_token,omitempty"`
	ActivationTokenExpires *time.Time `bson:"activation_token_expires,omitempty"`
	ResetToken             string     `bson:"reset_token,omitempty"`
	ResetTokenExpires      *time.Time `bson:"reset_token_expires,omitempty"`
	CreatedAt              time.Time  `bson:"created_at"`
	UpdatedAt              time.Time  `bson:"updated_at"`
	Version                int64      `bson:"version"`
}

func toDocument(u *domain.User) mongoUser {
	c := u.Clone()
	return mongoUser{
		ID:                     c.ID,
		Email:                  c.Email,
		PasswordHash:           c.PasswordHash,
		Name:                   c.Name,
		Role:                   string(c.Role),
		IsActive:               c.IsActive,
		ActivationToken:        c.ActivationToken,
		ActivationTokenExpires: c.ActivationTokenExpires,
		ResetToken:             c.ResetToken,
		ResetTokenExpires:      c.ResetTokenExpires,
		CreatedAt:              c.CreatedAt,
		UpdatedAt:              c.UpdatedAt,
		Version:                c.Version,
	}
}

func (m mongoUser) toDomain() *domain.User {
	return &domain.User{
		ID:                     m.ID,
		Email:                  m.Email,
		PasswordHash:           m.PasswordHash,
		Name:                   m.Name,
		Role:                   domain.Role(m.Role),
		IsActive:               m.IsActive,
		ActivationToken:        m.ActivationToken,
		ActivationTokenExpires: utcPtr(m.ActivationTokenExpires),
		ResetToken:             m.ResetToken,
		ResetTokenExpires:      utcPtr(m.ResetTokenExpires),
		CreatedAt:              m.CreatedAt.UTC(),
		UpdatedAt:              m.UpdatedAt.UTC(),
		Version:                m.Version,
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// EnsureIndexes creates the unique email index the repository relies on for
// atomic duplicate detection, plus lookup indexes for pending credentials.
func (r *UserRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "activation_token", Value: 1}}, Options: options.Index().SetSparse(true)},
		{Keys: bson.D{{Key: "reset_token", Value: 1}}, Options: options.Index().SetSparse(true)},
		{Keys: bson.D{{Key: "role", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}},
	}

	_, err := r.coll.Indexes().CreateMany(ctx, indexes)
	return err
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if user.Version == 0 {
		user.Version = 1
	}
	if _, err := r.coll.InsertOne(ctx, toDocument(user)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrUserExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *UserRepository) FindByActivationToken(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, domain.ErrUserNotFound
	}
	return r.findOne(ctx, bson.M{"activation_token": token})
}

func (r *UserRepository) FindByResetToken(ctx context.Context, code string) (*domain.User, error) {
	if code == "" {
		return nil, domain.ErrUserNotFound
	}
	return r.findOne(ctx, bson.M{"reset_token": code})
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var mu mongoUser
	if err := r.coll.FindOne(ctx, filter).Decode(&mu); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return mu.toDomain(), nil
}

// Update replaces the document only when its stored version still matches.
func (r *UserRepository) Update(ctx context.Context, user *domain.User) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := toDocument(user)
	doc.Version = user.Version + 1

	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": user.ID, "version": user.Version}, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrUserExists
		}
		return fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		n, err := r.coll.CountDocuments(ctx, bson.M{"_id": user.ID})
		if err != nil {
			return fmt.Errorf("update user: %w", err)
		}
		if n == 0 {
			return domain.ErrUserNotFound
		}
		return domain.ErrVersionConflict
	}

	user.Version = doc.Version
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// searchFilter matches search as a case-insensitive literal substring of the
// name or the email.
func searchFilter(search string) bson.M {
	if search == "" {
		return bson.M{}
	}
	pattern := containsFold(search)
	return bson.M{"$or": bson.A{
		bson.M{"name": pattern},
		bson.M{"email": pattern},
	}}
}

func containsFold(search string) bson.M {
	return bson.M{"$regex": regexp.QuoteMeta(search), "$options": "i"}
}

func (r *UserRepository) List(ctx context.Context, f ports.UserFilter) ([]*domain.User, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := searchFilter(f.Search)

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	if f.Limit > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		opts.SetSkip(int64((page - 1) * f.Limit)).SetLimit(int64(f.Limit))
	}

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer cur.Close(ctx)

	var docs []mongoUser
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("decode users: %w", err)
	}

	users := make([]*domain.User, len(docs))
	for i, d := range docs {
		users[i] = d.toDomain()
	}
	return users, total, nil
}

func (r *UserRepository) CountByRole(ctx context.Context, role domain.Role) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	n, err := r.coll.CountDocuments(ctx, bson.M{"role": string(role)})
	if err != nil {
		return 0, fmt.Errorf("count users by role: %w", err)
	}
	return n, nil
}
