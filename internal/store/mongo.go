package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// ErrNotFound is returned when a required entity does not exist. Handlers map
// it to a 404.
var ErrNotFound = errors.New("not found")

type MongoStore struct {
	users    *mongo.Collection
	items    *mongo.Collection
	requests *mongo.Collection
	comments *mongo.Collection
	ratings  *mongo.Collection
	groups   *mongo.Collection
	client   *mongo.Client
}

func NewMongoStore(client *mongo.Client, database string) *MongoStore {
	db := client.Database(database)
	return &MongoStore{
		users:    db.Collection("users"),
		items:    db.Collection("items"),
		requests: db.Collection("requests"),
		comments: db.Collection("comments"),
		ratings:  db.Collection("ratings"),
		groups:   db.Collection("groups"),
		client:   client,
	}
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, ErrNotFound
	}
	return oid, nil
}

type userDoc struct {
	OID  primitive.ObjectID `bson:"_id,omitempty"`
	User `bson:",inline"`
}

func (d userDoc) user() User {
	u := d.User
	u.ID = d.OID.Hex()
	if u.Notifications == nil {
		u.Notifications = []Notification{}
	}
	return u
}

func (s *MongoStore) CreateUser(ctx context.Context, user User) (string, error) {
	if user.Notifications == nil {
		user.Notifications = []Notification{}
	}
	res, err := s.users.InsertOne(ctx, userDoc{User: user})
	if err != nil {
		return "", fmt.Errorf("insert user: %w", err)
	}
	return res.InsertedID.(primitive.ObjectID).Hex(), nil
}

func (s *MongoStore) GetUser(ctx context.Context, id string) (User, error) {
	oid, err := objectID(id)
	if err != nil {
		return User{}, err
	}
	var doc userDoc
	err = s.users.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("lookup user: %w", err)
	}
	return doc.user(), nil
}

func (s *MongoStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var doc userDoc
	err := s.users.FindOne(ctx, bson.M{"email": email}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("lookup user by email: %w", err)
	}
	return doc.user(), nil
}

// FindUserForReset matches the password-reset identity proof: the account's
// email together with its registered birthdate.
func (s *MongoStore) FindUserForReset(ctx context.Context, email, birthdate string) (User, error) {
	var doc userDoc
	err := s.users.FindOne(ctx, bson.M{"email": email, "birthdate": birthdate}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("lookup user for reset: %w", err)
	}
	return doc.user(), nil
}

func (s *MongoStore) UpdateUserPassword(ctx context.Context, id, passwordHash string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := s.users.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"password": passwordHash}})
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SetUserNotifications persists the full ledger in one write. The ledger is
// loaded, mutated in memory, and written back; concurrent writers race and
// the last write wins.
func (s *MongoStore) SetUserNotifications(ctx context.Context, id string, notifications []Notification) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	if notifications == nil {
		notifications = []Notification{}
	}
	res, err := s.users.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"notifications": notifications}})
	if err != nil {
		return fmt.Errorf("update notifications: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) offerableColl(kind Kind) *mongo.Collection {
	if kind == KindRequest {
		return s.requests
	}
	return s.items
}

// interestField is the persisted name of the interest/offer set per kind.
func interestField(kind Kind) string {
	if kind == KindRequest {
		return "peopleHave"
	}
	return "peopleinterested"
}

func (s *MongoStore) InsertOfferable(ctx context.Context, o Offerable) (string, error) {
	if o.Interested == nil {
		o.Interested = []string{}
	}
	var doc any
	if o.Kind == KindRequest {
		doc = requestDoc{
			Owner:          o.OwnerID,
			OwnerName:      o.OwnerName,
			Title:          o.Title,
			Description:    o.Description,
			Visibility:     o.Visibility,
			Status:         o.Status,
			Timestamp:      o.PostedAt,
			PeopleHave:     o.Interested,
			PersonAccepted: o.Accepted,
		}
	} else {
		doc = itemDoc{
			Owner:            o.OwnerID,
			OwnerName:        o.OwnerName,
			Title:            o.Title,
			Description:      o.Description,
			Visibility:       o.Visibility,
			Status:           o.Status,
			Timestamp:        o.PostedAt,
			PeopleInterested: o.Interested,
			PersonAccepted:   o.Accepted,
		}
	}
	res, err := s.offerableColl(o.Kind).InsertOne(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("insert %s: %w", o.Kind, err)
	}
	return res.InsertedID.(primitive.ObjectID).Hex(), nil
}

func (s *MongoStore) GetOfferable(ctx context.Context, kind Kind, id string) (Offerable, error) {
	oid, err := objectID(id)
	if err != nil {
		return Offerable{}, err
	}
	if kind == KindRequest {
		var doc requestDoc
		err = s.requests.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Offerable{}, ErrNotFound
		}
		if err != nil {
			return Offerable{}, fmt.Errorf("lookup request: %w", err)
		}
		return doc.offerable(), nil
	}
	var doc itemDoc
	err = s.items.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Offerable{}, ErrNotFound
	}
	if err != nil {
		return Offerable{}, fmt.Errorf("lookup item: %w", err)
	}
	return doc.offerable(), nil
}

// ListOfferables returns listings whose visibility is one of the given
// scopes, newest first.
func (s *MongoStore) ListOfferables(ctx context.Context, kind Kind, visibilities []string) ([]Offerable, error) {
	filter := bson.M{"visibility": bson.M{"$in": visibilities}}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	cursor, err := s.offerableColl(kind).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list %ss: %w", kind, err)
	}
	defer cursor.Close(ctx)
	return s.decodeOfferables(ctx, kind, cursor)
}

// SearchOfferables is the regex fallback used when the search index is down.
func (s *MongoStore) SearchOfferables(ctx context.Context, kind Kind, query string, limit int64) ([]Offerable, error) {
	pattern := primitive.Regex{Pattern: query, Options: "i"}
	filter := bson.M{"$or": []bson.M{
		{"title": pattern},
		{"description": pattern},
	}}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}}).SetLimit(limit)
	cursor, err := s.offerableColl(kind).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("search %ss: %w", kind, err)
	}
	defer cursor.Close(ctx)
	return s.decodeOfferables(ctx, kind, cursor)
}

// AllOfferables returns every listing of a kind, used to rebuild the search
// index at startup.
func (s *MongoStore) AllOfferables(ctx context.Context, kind Kind) ([]Offerable, error) {
	cursor, err := s.offerableColl(kind).Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("list all %ss: %w", kind, err)
	}
	defer cursor.Close(ctx)
	return s.decodeOfferables(ctx, kind, cursor)
}

func (s *MongoStore) decodeOfferables(ctx context.Context, kind Kind, cursor *mongo.Cursor) ([]Offerable, error) {
	var out []Offerable
	if kind == KindRequest {
		var docs []requestDoc
		if err := cursor.All(ctx, &docs); err != nil {
			return nil, fmt.Errorf("decode requests: %w", err)
		}
		for _, doc := range docs {
			out = append(out, doc.offerable())
		}
		return out, nil
	}
	var docs []itemDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	for _, doc := range docs {
		out = append(out, doc.offerable())
	}
	return out, nil
}

// SetInterested persists the full interest/offer set in one write.
func (s *MongoStore) SetInterested(ctx context.Context, kind Kind, id string, userIDs []string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	if userIDs == nil {
		userIDs = []string{}
	}
	res, err := s.offerableColl(kind).UpdateOne(ctx, bson.M{"_id": oid},
		bson.M{"$set": bson.M{interestField(kind): userIDs}})
	if err != nil {
		return fmt.Errorf("update %s %s: %w", kind, interestField(kind), err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SetAcceptance writes the acceptance pair in one update.
func (s *MongoStore) SetAcceptance(ctx context.Context, kind Kind, id, acceptedUserID, status string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := s.offerableColl(kind).UpdateOne(ctx, bson.M{"_id": oid},
		bson.M{"$set": bson.M{"personaccepted": acceptedUserID, "status": status}})
	if err != nil {
		return fmt.Errorf("update %s acceptance: %w", kind, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

type commentDoc struct {
	OID     primitive.ObjectID `bson:"_id,omitempty"`
	Comment `bson:",inline"`
}

func (s *MongoStore) InsertComment(ctx context.Context, comment Comment) error {
	if _, err := s.comments.InsertOne(ctx, commentDoc{Comment: comment}); err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (s *MongoStore) ListComments(ctx context.Context, kind Kind, subjectID string) ([]Comment, error) {
	filter := bson.M{"subjectKind": kind, "subjectId": subjectID}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})
	cursor, err := s.comments.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer cursor.Close(ctx)
	var docs []commentDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode comments: %w", err)
	}
	comments := make([]Comment, 0, len(docs))
	for _, doc := range docs {
		c := doc.Comment
		c.ID = doc.OID.Hex()
		comments = append(comments, c)
	}
	return comments, nil
}

func (s *MongoStore) InsertRating(ctx context.Context, rating Rating) error {
	if _, err := s.ratings.InsertOne(ctx, rating); err != nil {
		return fmt.Errorf("insert rating: %w", err)
	}
	return nil
}

func (s *MongoStore) ListRatings(ctx context.Context, targetUserID string) ([]Rating, error) {
	cursor, err := s.ratings.Find(ctx, bson.M{"targetId": targetUserID})
	if err != nil {
		return nil, fmt.Errorf("list ratings: %w", err)
	}
	defer cursor.Close(ctx)
	var ratings []Rating
	if err := cursor.All(ctx, &ratings); err != nil {
		return nil, fmt.Errorf("decode ratings: %w", err)
	}
	return ratings, nil
}

type groupDoc struct {
	OID   primitive.ObjectID `bson:"_id,omitempty"`
	Group `bson:",inline"`
}

func (s *MongoStore) InsertGroup(ctx context.Context, group Group) (string, error) {
	if group.Members == nil {
		group.Members = []string{}
	}
	res, err := s.groups.InsertOne(ctx, groupDoc{Group: group})
	if err != nil {
		return "", fmt.Errorf("insert group: %w", err)
	}
	return res.InsertedID.(primitive.ObjectID).Hex(), nil
}

func (s *MongoStore) GetGroup(ctx context.Context, id string) (Group, error) {
	oid, err := objectID(id)
	if err != nil {
		return Group{}, err
	}
	var doc groupDoc
	err = s.groups.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Group{}, ErrNotFound
	}
	if err != nil {
		return Group{}, fmt.Errorf("lookup group: %w", err)
	}
	g := doc.Group
	g.ID = doc.OID.Hex()
	if g.Members == nil {
		g.Members = []string{}
	}
	return g, nil
}

// AddGroupMember is a pure set-add, so it can use $addToSet directly.
func (s *MongoStore) AddGroupMember(ctx context.Context, id, userID string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := s.groups.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$addToSet": bson.M{"members": userID}})
	if err != nil {
		return fmt.Errorf("add group member: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ListGroupNamesForUser returns the names of groups the user belongs to,
// used to resolve group-scoped listing visibility.
func (s *MongoStore) ListGroupNamesForUser(ctx context.Context, userID string) ([]string, error) {
	cursor, err := s.groups.Find(ctx, bson.M{"members": userID},
		options.Find().SetProjection(bson.M{"name": 1}))
	if err != nil {
		return nil, fmt.Errorf("list groups for user: %w", err)
	}
	defer cursor.Close(ctx)
	var docs []struct {
		Name string `bson:"name"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode groups: %w", err)
	}
	names := make([]string, 0, len(docs))
	for _, doc := range docs {
		names = append(names, doc.Name)
	}
	return names, nil
}
