package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tradepost/api/internal/search"
	"tradepost/api/internal/store"
)

type ListingInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Visibility  string `json:"visibility"`
}

// UserRef is a user reference rendered in listing detail payloads.
type UserRef struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// ListingDetail is a listing with its comments and resolved participant
// names.
type ListingDetail struct {
	ID          string          `json:"id"`
	Kind        store.Kind      `json:"kind"`
	Owner       UserRef         `json:"owner"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Visibility  string          `json:"visibility"`
	Status      string          `json:"status"`
	PostedAt    time.Time       `json:"postedAt"`
	Interested  []UserRef       `json:"interested"`
	Accepted    *UserRef        `json:"accepted,omitempty"`
	Comments    []store.Comment `json:"comments"`
}

// CreateListing posts a new item or request. Visibility is either "global"
// or the name of a group the poster belongs to.
func (s *Service) CreateListing(ctx context.Context, kind store.Kind, sess Session, input ListingInput) (store.Offerable, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return store.Offerable{}, validationError("title is required")
	}
	description := strings.TrimSpace(input.Description)
	if description == "" {
		return store.Offerable{}, validationError("description is required")
	}
	visibility := strings.TrimSpace(input.Visibility)
	if visibility == "" {
		visibility = "global"
	}
	if visibility != "global" {
		groups, err := s.store.ListGroupNamesForUser(ctx, sess.UserID)
		if err != nil {
			return store.Offerable{}, err
		}
		if !containsString(groups, visibility) {
			return store.Offerable{}, validationError("visibility must be \"global\" or one of your groups")
		}
	}

	offerable := store.Offerable{
		Kind:        kind,
		OwnerID:     sess.UserID,
		OwnerName:   sess.Username,
		Title:       title,
		Description: description,
		Visibility:  visibility,
		Status:      store.InitialStatus(kind),
		PostedAt:    time.Now().UTC(),
		Interested:  []string{},
	}
	id, err := s.store.InsertOfferable(ctx, offerable)
	if err != nil {
		return store.Offerable{}, err
	}
	offerable.ID = id

	s.search.IndexListing(search.ListingRecord{
		ID:          id,
		Kind:        string(kind),
		Title:       title,
		Description: description,
		Visibility:  visibility,
		Status:      offerable.Status,
	})
	return offerable, nil
}

// ListListings returns the listings visible to the caller: global ones plus
// those scoped to a group the caller belongs to, newest first.
func (s *Service) ListListings(ctx context.Context, kind store.Kind, sess Session) ([]store.Offerable, error) {
	groups, err := s.store.ListGroupNamesForUser(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	visibilities := append([]string{"global"}, groups...)
	listings, err := s.store.ListOfferables(ctx, kind, visibilities)
	if err != nil {
		return nil, err
	}
	if listings == nil {
		listings = []store.Offerable{}
	}
	return listings, nil
}

// GetListing resolves a listing with its comment thread and the usernames of
// everyone in its interest set.
func (s *Service) GetListing(ctx context.Context, kind store.Kind, id string) (ListingDetail, error) {
	offerable, err := s.store.GetOfferable(ctx, kind, id)
	if err != nil {
		return ListingDetail{}, err
	}
	comments, err := s.store.ListComments(ctx, kind, id)
	if err != nil {
		return ListingDetail{}, err
	}
	if comments == nil {
		comments = []store.Comment{}
	}

	interested := make([]UserRef, 0, len(offerable.Interested))
	for _, userID := range offerable.Interested {
		user, err := s.store.GetUser(ctx, userID)
		if err != nil {
			return ListingDetail{}, err
		}
		interested = append(interested, UserRef{ID: user.ID, Username: user.Username})
	}

	detail := ListingDetail{
		ID:          offerable.ID,
		Kind:        kind,
		Owner:       UserRef{ID: offerable.OwnerID, Username: offerable.OwnerName},
		Title:       offerable.Title,
		Description: offerable.Description,
		Visibility:  offerable.Visibility,
		Status:      offerable.Status,
		PostedAt:    offerable.PostedAt,
		Interested:  interested,
		Comments:    comments,
	}
	if offerable.Accepted != "" {
		user, err := s.store.GetUser(ctx, offerable.Accepted)
		if err != nil {
			return ListingDetail{}, err
		}
		detail.Accepted = &UserRef{ID: user.ID, Username: user.Username}
	}
	return detail, nil
}

// MarkInterested adds the caller to the listing's interest set (idempotent)
// and appends a notification to the owner's ledger. Interest notifications
// always append; repeat toggles stack.
func (s *Service) MarkInterested(ctx context.Context, kind store.Kind, id string, actor Session) (store.Offerable, error) {
	offerable, err := s.store.GetOfferable(ctx, kind, id)
	if err != nil {
		return store.Offerable{}, err
	}

	if !containsString(offerable.Interested, actor.UserID) {
		offerable.Interested = append(offerable.Interested, actor.UserID)
		if err := s.store.SetInterested(ctx, kind, id, offerable.Interested); err != nil {
			return store.Offerable{}, err
		}
	}

	note := store.Notification{
		Kind:      store.NoteInterest,
		SubjectID: id,
		ActorID:   actor.UserID,
		Message:   interestMessage(kind, actor.Username, offerable.Title),
		Date:      time.Now().UTC(),
	}
	if err := s.appendNotification(ctx, offerable.OwnerID, note); err != nil {
		return store.Offerable{}, err
	}
	return offerable, nil
}

// MarkNotInterested removes the caller from the interest set. The earlier
// interest notification is intentionally left in the owner's ledger; the
// original platform never cleaned it up and stored feeds rely on that.
func (s *Service) MarkNotInterested(ctx context.Context, kind store.Kind, id string, actor Session) (store.Offerable, error) {
	offerable, err := s.store.GetOfferable(ctx, kind, id)
	if err != nil {
		return store.Offerable{}, err
	}

	kept := make([]string, 0, len(offerable.Interested))
	for _, userID := range offerable.Interested {
		if userID == actor.UserID {
			continue
		}
		kept = append(kept, userID)
	}
	if len(kept) == len(offerable.Interested) {
		return offerable, nil
	}
	offerable.Interested = kept
	if err := s.store.SetInterested(ctx, kind, id, kept); err != nil {
		return store.Offerable{}, err
	}
	return offerable, nil
}

// ToggleAcceptance flips the listing between its resting status and Pending
// Exchange for a given candidate. Accepting writes an acceptance
// notification to the candidate; unaccepting removes it again. Accepting a
// second candidate while another is accepted overwrites without reverting
// the first candidate's notification.
func (s *Service) ToggleAcceptance(ctx context.Context, kind store.Kind, id, candidateID string, sess Session) (store.Offerable, error) {
	offerable, err := s.store.GetOfferable(ctx, kind, id)
	if err != nil {
		return store.Offerable{}, err
	}
	if offerable.OwnerID != sess.UserID {
		return store.Offerable{}, forbiddenError("only the owner can accept")
	}

	if offerable.Accepted == candidateID {
		// Unaccept: back to the resting status, revoke the candidate's
		// acceptance notification.
		offerable.Accepted = ""
		offerable.Status = store.InitialStatus(kind)
		if err := s.store.SetAcceptance(ctx, kind, id, "", offerable.Status); err != nil {
			return store.Offerable{}, err
		}
		if err := s.removeNotificationBySubject(ctx, candidateID, store.NoteAcceptance, id); err != nil {
			return store.Offerable{}, err
		}
		return offerable, nil
	}

	// personaccepted must be in the interest set at acceptance time.
	if !containsString(offerable.Interested, candidateID) {
		return store.Offerable{}, validationError("user is not in the interest list")
	}

	offerable.Accepted = candidateID
	offerable.Status = store.StatusPending
	if err := s.store.SetAcceptance(ctx, kind, id, candidateID, offerable.Status); err != nil {
		return store.Offerable{}, err
	}

	note := store.Notification{
		Kind:      store.NoteAcceptance,
		SubjectID: id,
		ActorID:   offerable.OwnerID,
		Message:   acceptanceMessage(kind, offerable.Title),
		Date:      time.Now().UTC(),
	}
	if err := s.upsertNotificationBySubject(ctx, candidateID, note); err != nil {
		return store.Offerable{}, err
	}
	return offerable, nil
}

func interestMessage(kind store.Kind, actorName, title string) string {
	if kind == store.KindRequest {
		return fmt.Sprintf("%s has %q to offer", capitalizeFirst(actorName), title)
	}
	return fmt.Sprintf("%s is interested in %q", capitalizeFirst(actorName), title)
}

func acceptanceMessage(kind store.Kind, title string) string {
	if kind == store.KindRequest {
		return fmt.Sprintf("Your offer on %q was accepted", title)
	}
	return fmt.Sprintf("Your interest in %q was accepted", title)
}
