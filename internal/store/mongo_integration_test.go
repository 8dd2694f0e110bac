package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

func getTestMongoURI(t *testing.T) string {
	t.Helper()
	uri := os.Getenv("MONGODB_TEST_URI")
	if uri == "" {
		t.Skip("MONGODB_TEST_URI not set; skipping integration test")
	}
	return uri
}

func openTestStore(t *testing.T) *MongoStore {
	t.Helper()
	ctx := context.Background()

	client, err := Open(ctx, getTestMongoURI(t))
	if err != nil {
		t.Fatalf("open mongodb: %v", err)
	}

	database := fmt.Sprintf("tradepost_test_%d", time.Now().UnixNano())
	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = client.Database(database).Drop(cleanupCtx)
		_ = client.Disconnect(cleanupCtx)
	})
	return NewMongoStore(client, database)
}

// TestItemInterestFieldNames verifies that the item write path uses the field
// names existing documents already carry: `peopleinterested` and
// `personaccepted`.
func TestItemInterestFieldNames(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	s := openTestStore(t)

	id, err := s.InsertOfferable(ctx, Offerable{
		Kind:        KindItem,
		OwnerID:     "owner-1",
		OwnerName:   "ulla",
		Title:       "ladder",
		Description: "sturdy ladder",
		Visibility:  "global",
		Status:      StatusAvailable,
		PostedAt:    time.Now().UTC(),
		Interested:  []string{},
	})
	if err != nil {
		t.Fatalf("insert item: %v", err)
	}

	if err := s.SetInterested(ctx, KindItem, id, []string{"user-2"}); err != nil {
		t.Fatalf("set interested: %v", err)
	}
	if err := s.SetAcceptance(ctx, KindItem, id, "user-2", StatusPending); err != nil {
		t.Fatalf("set acceptance: %v", err)
	}

	var raw bson.M
	objID, err := objectID(id)
	if err != nil {
		t.Fatalf("object id: %v", err)
	}
	if err := s.items.FindOne(ctx, bson.M{"_id": objID}).Decode(&raw); err != nil {
		t.Fatalf("read raw item: %v", err)
	}
	if _, ok := raw["peopleinterested"]; !ok {
		t.Fatalf("raw item missing peopleinterested: %v", raw)
	}
	if raw["personaccepted"] != "user-2" {
		t.Fatalf("personaccepted = %v, want user-2", raw["personaccepted"])
	}
	if raw["status"] != StatusPending {
		t.Fatalf("status = %v, want %q", raw["status"], StatusPending)
	}
}

// TestRequestInterestFieldName verifies requests keep their own interest set
// name, `peopleHave`.
func TestRequestInterestFieldName(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	s := openTestStore(t)

	id, err := s.InsertOfferable(ctx, Offerable{
		Kind:        KindRequest,
		OwnerID:     "owner-1",
		Title:       "drill",
		Description: "weekend drill",
		Visibility:  "global",
		Status:      StatusActive,
		PostedAt:    time.Now().UTC(),
		Interested:  []string{},
	})
	if err != nil {
		t.Fatalf("insert request: %v", err)
	}
	if err := s.SetInterested(ctx, KindRequest, id, []string{"user-2"}); err != nil {
		t.Fatalf("set interested: %v", err)
	}

	var raw bson.M
	objID, err := objectID(id)
	if err != nil {
		t.Fatalf("object id: %v", err)
	}
	if err := s.requests.FindOne(ctx, bson.M{"_id": objID}).Decode(&raw); err != nil {
		t.Fatalf("read raw request: %v", err)
	}
	if _, ok := raw["peopleHave"]; !ok {
		t.Fatalf("raw request missing peopleHave: %v", raw)
	}
	if _, ok := raw["peopleinterested"]; ok {
		t.Fatalf("request must not carry peopleinterested: %v", raw)
	}
}

// TestNotificationsPersistUnderUserDocument verifies the embedded ledger
// round-trips through the `notifications` field in append order.
func TestNotificationsPersistUnderUserDocument(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	s := openTestStore(t)

	id, err := s.CreateUser(ctx, User{
		Username:      "ulla",
		Email:         "ulla@example.com",
		PasswordHash:  "x",
		UserType:      "user",
		Birthdate:     "1990-04-01",
		Notifications: []Notification{},
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	ledger := []Notification{
		{Kind: NoteInterest, SubjectID: "s1", ActorID: "a1", Message: "first", Date: now},
		{Kind: NoteComment, SubjectID: "s1", ActorID: "a1", Message: "second", Date: now.Add(time.Minute)},
	}
	if err := s.SetUserNotifications(ctx, id, ledger); err != nil {
		t.Fatalf("set notifications: %v", err)
	}

	user, err := s.GetUser(ctx, id)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if len(user.Notifications) != 2 {
		t.Fatalf("notifications = %d, want 2", len(user.Notifications))
	}
	if user.Notifications[0].Message != "first" || user.Notifications[1].Message != "second" {
		t.Fatalf("ledger order lost: %+v", user.Notifications)
	}
}

func TestGetOfferableBadIDIsNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.GetOfferable(ctx, KindItem, "not-a-hex-id")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
