package repository

import (
	"context"
	"errors"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/telecomx/user-service/internal/domain"
)

const (
	usersCollection    = "users"
	countersCollection = "counters"
)

type mongoUserRepository struct {
	coll *mongo.Collection
}

// NewMongoUserRepository returns a MongoDB-backed implementation.
func NewMongoUserRepository(db *mongo.Database) UserRepository {
	return &mongoUserRepository{coll: db.Collection(usersCollection)}
}

// EnsureMongoIndexes creates the userId index and the partial unique
// indexes that keep name and email unique among non-deleted users.
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	active := bson.M{"deleted": false}
	_, err := db.Collection(usersCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userId", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_user_id"),
		},
		{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetUnique(true).SetPartialFilterExpression(active).SetName("uniq_active_name"),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetPartialFilterExpression(active).SetName("uniq_active_email"),
		},
	})
	return err
}

func (r *mongoUserRepository) FindActiveByNameOrEmail(ctx context.Context, name, email, excludeUserID string) (*domain.User, error) {
	filter, ok := activeNameOrEmailFilter(name, email, excludeUserID)
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return r.findOne(ctx, filter)
}

func (r *mongoUserRepository) FindByUserID(ctx context.Context, userID string) (*domain.User, error) {
	return r.findOne(ctx, bson.D{{Key: "userId", Value: userID}})
}

func (r *mongoUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.D{{Key: "email", Value: email}, {Key: "deleted", Value: false}})
}

func (r *mongoUserRepository) Search(ctx context.Context, filter UserFilter) ([]domain.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	if filter.Offset > 0 {
		opts.SetSkip(int64(filter.Offset))
	}
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	cursor, err := r.coll.Find(ctx, searchFilter(filter.Query), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	users := make([]domain.User, 0)
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *mongoUserRepository) Save(ctx context.Context, user *domain.User) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.D{{Key: "userId", Value: user.UserID}},
		bson.D{{Key: "$set", Value: user}},
		options.Update().SetUpsert(true),
	)
	if mongo.IsDuplicateKeyError(err) {
		return domain.ErrDuplicateUser
	}
	return err
}

func (r *mongoUserRepository) findOne(ctx context.Context, filter any) (*domain.User, error) {
	var user domain.User
	if err := r.coll.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func activeNameOrEmailFilter(name, email, excludeUserID string) (bson.D, bool) {
	or := bson.A{}
	if name != "" {
		or = append(or, bson.D{{Key: "name", Value: name}})
	}
	if email != "" {
		or = append(or, bson.D{{Key: "email", Value: email}})
	}
	if len(or) == 0 {
		return nil, false
	}

	filter := bson.D{{Key: "$or", Value: or}, {Key: "deleted", Value: false}}
	if excludeUserID != "" {
		filter = append(filter, bson.E{Key: "userId", Value: bson.D{{Key: "$ne", Value: excludeUserID}}})
	}
	return filter, true
}

func searchFilter(query string) bson.D {
	filter := bson.D{{Key: "deleted", Value: false}}
	if query == "" {
		return filter
	}
	pattern := primitive.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"}
	return append(filter, bson.E{Key: "$or", Value: bson.A{
		bson.D{{Key: "name", Value: pattern}},
		bson.D{{Key: "email", Value: pattern}},
	}})
}

type mongoCounterRepository struct {
	coll *mongo.Collection
}

// NewMongoCounterRepository returns a counter store on the counters collection.
func NewMongoCounterRepository(db *mongo.Database) CounterRepository {
	return &mongoCounterRepository{coll: db.Collection(countersCollection)}
}

func (r *mongoCounterRepository) Increment(ctx context.Context, name string) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := r.coll.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: name}},
		bson.D{{Key: "$inc", Value: bson.D{{Key: "seq", Value: 1}}}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, err
	}
	return counter.Seq, nil
}
