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

	"github.com/userhub/user-service/internal/core/domain"
	"github.com/userhub/user-service/internal/core/ports"
)

const collectionUsers = "users"

var sortFields = map[string]string{
	ports.SortByEmail:     "email",
	ports.SortByName:      "display_name",
	ports.SortByCreatedAt: "created_at",
}

// UserRepository implements ports.UserRepository using MongoDB. Every read
// filters on is_deleted explicitly; there is no implicit global filter.
type UserRepository struct {
	col *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{col: db.Collection(collectionUsers)}
}

type userDocument struct {
	ID             string     `bson:"_id"`
	Email          string     `bson:"email"`
	DisplayName    string     `bson:"display_name"`
	ExternalAuthID string     `bson:"external_auth_id"`
	Role           string     `bson:"role"`
	CreatedAt      time.Time  `bson:"created_at"`
	UpdatedAt      *time.Time `bson:"updated_at,omitempty"`
	IsDeleted      bool       `bson:"is_deleted"`
	DeletedAt      *time.Time `bson:"deleted_at,omitempty"`
}

func toDocument(u *domain.User) userDocument {
	return userDocument{
		ID:             u.ID,
		Email:          u.Email,
		DisplayName:    u.DisplayName,
		ExternalAuthID: u.ExternalAuthID,
		Role:           string(u.Role),
		CreatedAt:      u.CreatedAt.UTC(),
		UpdatedAt:      u.UpdatedAt,
		IsDeleted:      u.IsDeleted,
		DeletedAt:      u.DeletedAt,
	}
}

func (d userDocument) toDomain() *domain.User {
	return &domain.User{
		ID:             d.ID,
		Email:          d.Email,
		DisplayName:    d.DisplayName,
		ExternalAuthID: d.ExternalAuthID,
		Role:           domain.Role(d.Role),
		CreatedAt:      d.CreatedAt.UTC(),
		UpdatedAt:      utc(d.UpdatedAt),
		IsDeleted:      d.IsDeleted,
		DeletedAt:      utc(d.DeletedAt),
	}
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *UserRepository) GetByExternalAuthID(ctx context.Context, externalAuthID string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"external_auth_id": externalAuthID})
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter["is_deleted"] = false

	var doc userDocument
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return doc.toDomain(), nil
}

// List returns a page of users matching filter and the total count.
func (r *UserRepository) List(ctx context.Context, f ports.ListUsersFilter) ([]*domain.User, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := listFilter(f)

	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	dir := 1
	if f.Descending {
		dir = -1
	}
	field, ok := sortFields[f.SortBy]
	if !ok {
		field = "created_at"
	}
	opts := options.Find().
		SetSort(bson.D{{Key: field, Value: dir}, {Key: "_id", Value: dir}}).
		SetSkip(int64((f.Page - 1) * f.Limit)).
		SetLimit(int64(f.Limit))

	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer cur.Close(ctx)

	var docs []userDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("decode users: %w", err)
	}

	items := make([]*domain.User, len(docs))
	for i, d := range docs {
		items[i] = d.toDomain()
	}
	return items, total, nil
}

func listFilter(f ports.ListUsersFilter) bson.M {
	filter := bson.M{"is_deleted": false}
	if f.Deleted != nil {
		filter["is_deleted"] = *f.Deleted
	}
	if f.Search != "" {
		pattern := containsPattern(f.Search)
		filter["$or"] = bson.A{
			bson.M{"_id": pattern},
			bson.M{"email": pattern},
			bson.M{"display_name": pattern},
		}
	}
	return filter
}

func containsPattern(search string) bson.M {
	return bson.M{"$regex": regexp.QuoteMeta(search), "$options": "i"}
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := r.col.InsertOne(ctx, toDocument(user)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrUserExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// Update writes the mutable fields of a non-deleted user.
func (r *UserRepository) Update(ctx context.Context, user *domain.User) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": user.ID, "is_deleted": false},
		bson.M{"$set": bson.M{
			"display_name": user.DisplayName,
			"role":         string(user.Role),
			"updated_at":   user.UpdatedAt,
		}},
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) SoftDelete(ctx context.Context, user *domain.User) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": user.ID, "is_deleted": false},
		bson.M{"$set": bson.M{
			"is_deleted": true,
			"deleted_at": user.DeletedAt,
			"updated_at": user.UpdatedAt,
		}},
	)
	if err != nil {
		return fmt.Errorf("soft delete user: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) Ping(ctx context.Context) error {
	return r.col.Database().Client().Ping(ctx, nil)
}

// EnsureIndexes creates the uniqueness indexes. Uniqueness only applies to
// non-deleted documents so a soft-deleted email can be registered again.
func (r *UserRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	live := bson.M{"is_deleted": false}
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetPartialFilterExpression(live).SetName("uniq_live_email"),
		},
		{
			Keys:    bson.D{{Key: "external_auth_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetPartialFilterExpression(live).SetName("uniq_live_external_auth_id"),
		},
		{Keys: bson.D{{Key: "is_deleted", Value: 1}, {Key: "created_at", Value: -1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
