package store

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Kind discriminates the two offerable entity flavors. Items are things a
// user offers to the community, requests are things a user needs from it.
type Kind string

const (
	KindItem    Kind = "item"
	KindRequest Kind = "request"
)

// Status values per kind. Items rest at Available, requests at Active; both
// move to Pending Exchange once a candidate is accepted.
const (
	StatusAvailable = "Available"
	StatusActive    = "Active"
	StatusPending   = "Pending Exchange"
)

// Notification kinds. Stored as the `kind` tag on each ledger entry.
const (
	NoteInterest   = "interest"
	NoteAcceptance = "acceptance"
	NoteComment    = "comment"
	NoteGroupJoin  = "groupjoin"
)

// Notification is one entry in a user's ledger. Entries are embedded in the
// user document under `notifications` in append (chronological) order.
type Notification struct {
	Kind      string    `bson:"kind" json:"kind"`
	SubjectID string    `bson:"subjectId" json:"subjectId"`
	ActorID   string    `bson:"actorId,omitempty" json:"actorId,omitempty"`
	Message   string    `bson:"message" json:"message"`
	Date      time.Time `bson:"date" json:"date"`
}

type User struct {
	ID            string         `bson:"-" json:"id"`
	Username      string         `bson:"username" json:"username"`
	Email         string         `bson:"email" json:"email"`
	PasswordHash  string         `bson:"password" json:"-"`
	UserType      string         `bson:"user_type" json:"userType"`
	Birthdate     string         `bson:"birthdate" json:"birthdate"`
	Notifications []Notification `bson:"notifications" json:"notifications"`
}

// Offerable is the kind-neutral view of an item or request. The mongo layer
// maps it to the right collection and interest-set field name
// (`peopleinterested` for items, `peopleHave` for requests).
type Offerable struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	OwnerID     string    `json:"ownerId"`
	OwnerName   string    `json:"ownerName"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Visibility  string    `json:"visibility"`
	Status      string    `json:"status"`
	PostedAt    time.Time `json:"postedAt"`
	Interested  []string  `json:"interested"`
	Accepted    string    `json:"accepted,omitempty"`
}

type Comment struct {
	ID          string    `bson:"-" json:"id"`
	SubjectKind Kind      `bson:"subjectKind" json:"subjectKind"`
	SubjectID   string    `bson:"subjectId" json:"subjectId"`
	AuthorID    string    `bson:"authorId" json:"authorId"`
	AuthorName  string    `bson:"authorName" json:"authorName"`
	Text        string    `bson:"text" json:"text"`
	PostedAt    time.Time `bson:"timestamp" json:"postedAt"`
}

type Rating struct {
	TargetID string `bson:"targetId" json:"targetId"`
	RaterID  string `bson:"raterId" json:"raterId"`
	Value    string `bson:"value" json:"value"`
	Emoji    string `bson:"emoji" json:"emoji"`
}

type Group struct {
	ID          string   `bson:"-" json:"id"`
	Name        string   `bson:"name" json:"name"`
	Description string   `bson:"description" json:"description"`
	Location    string   `bson:"location" json:"location"`
	CreatedBy   string   `bson:"createdBy" json:"createdBy"`
	Members     []string `bson:"members" json:"members"`
}

// itemDoc and requestDoc are the persisted shapes. Field names match the
// documents already in the collections and must stay stable.
type itemDoc struct {
	ID               primitive.ObjectID `bson:"_id,omitempty"`
	Owner            string             `bson:"owner"`
	OwnerName        string             `bson:"ownerName"`
	Title            string             `bson:"title"`
	Description      string             `bson:"description"`
	Visibility       string             `bson:"visibility"`
	Status           string             `bson:"status"`
	Timestamp        time.Time          `bson:"timestamp"`
	PeopleInterested []string           `bson:"peopleinterested"`
	PersonAccepted   string             `bson:"personaccepted"`
}

type requestDoc struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	Owner          string             `bson:"owner"`
	OwnerName      string             `bson:"ownerName"`
	Title          string             `bson:"title"`
	Description    string             `bson:"description"`
	Visibility     string             `bson:"visibility"`
	Status         string             `bson:"status"`
	Timestamp      time.Time          `bson:"timestamp"`
	PeopleHave     []string           `bson:"peopleHave"`
	PersonAccepted string             `bson:"personaccepted"`
}

func (d itemDoc) offerable() Offerable {
	return Offerable{
		ID:          d.ID.Hex(),
		Kind:        KindItem,
		OwnerID:     d.Owner,
		OwnerName:   d.OwnerName,
		Title:       d.Title,
		Description: d.Description,
		Visibility:  d.Visibility,
		Status:      d.Status,
		PostedAt:    d.Timestamp,
		Interested:  d.PeopleInterested,
		Accepted:    d.PersonAccepted,
	}
}

func (d requestDoc) offerable() Offerable {
	return Offerable{
		ID:          d.ID.Hex(),
		Kind:        KindRequest,
		OwnerID:     d.Owner,
		OwnerName:   d.OwnerName,
		Title:       d.Title,
		Description: d.Description,
		Visibility:  d.Visibility,
		Status:      d.Status,
		PostedAt:    d.Timestamp,
		Interested:  d.PeopleHave,
		Accepted:    d.PersonAccepted,
	}
}

// InitialStatus returns the resting status for a kind.
func InitialStatus(kind Kind) string {
	if kind == KindRequest {
		return StatusActive
	}
	return StatusAvailable
}
