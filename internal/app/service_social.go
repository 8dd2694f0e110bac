package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"tradepost/api/internal/store"
)

// AddComment appends a comment to a listing and notifies its owner. Repeat
// comments from the same author on the same listing bump the existing
// notification's date instead of stacking.
func (s *Service) AddComment(ctx context.Context, kind store.Kind, subjectID string, author Session, text string) (store.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return store.Comment{}, validationError("comment text is required")
	}

	offerable, err := s.store.GetOfferable(ctx, kind, subjectID)
	if err != nil {
		return store.Comment{}, err
	}

	now := time.Now().UTC()
	comment := store.Comment{
		SubjectKind: kind,
		SubjectID:   subjectID,
		AuthorID:    author.UserID,
		AuthorName:  author.Username,
		Text:        text,
		PostedAt:    now,
	}
	if err := s.store.InsertComment(ctx, comment); err != nil {
		return store.Comment{}, err
	}

	note := store.Notification{
		Kind:      store.NoteComment,
		SubjectID: subjectID,
		ActorID:   author.UserID,
		Message:   fmt.Sprintf("%s commented on %q", capitalizeFirst(author.Username), offerable.Title),
		Date:      now,
	}
	if err := s.refreshOrAppendNotification(ctx, offerable.OwnerID, note); err != nil {
		return store.Comment{}, err
	}
	return comment, nil
}

// RatingSummary is the aggregate view of a user's ratings.
type RatingSummary struct {
	Average float64        `json:"average"`
	Count   int            `json:"count"`
	Ratings []store.Rating `json:"ratings"`
}

// SubmitRating records a rating of another user. Self-rating is forbidden
// and the value must parse as a number.
func (s *Service) SubmitRating(ctx context.Context, targetUserID string, rater Session, value, emoji string) error {
	if targetUserID == rater.UserID {
		return selfRatingError()
	}
	if _, err := strconv.ParseFloat(value, 64); err != nil {
		return validationError("rating value must be numeric")
	}
	if _, err := s.store.GetUser(ctx, targetUserID); err != nil {
		return err
	}
	return s.store.InsertRating(ctx, store.Rating{
		TargetID: targetUserID,
		RaterID:  rater.UserID,
		Value:    value,
		Emoji:    emoji,
	})
}

// UserRatings computes the average at read time. An empty set averages to 0;
// callers cannot distinguish that from a true average of 0. Legacy rows that
// fail to parse are left out of the average but still listed.
func (s *Service) UserRatings(ctx context.Context, targetUserID string) (RatingSummary, error) {
	ratings, err := s.store.ListRatings(ctx, targetUserID)
	if err != nil {
		return RatingSummary{}, err
	}
	if ratings == nil {
		ratings = []store.Rating{}
	}

	sum := 0.0
	parsed := 0
	for _, rating := range ratings {
		value, err := strconv.ParseFloat(rating.Value, 64)
		if err != nil {
			continue
		}
		sum += value
		parsed++
	}
	average := 0.0
	if parsed > 0 {
		average = sum / float64(parsed)
	}
	return RatingSummary{Average: average, Count: len(ratings), Ratings: ratings}, nil
}

type GroupInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Location    string `json:"location"`
}

// CreateGroup creates a group with the caller as creator and first member.
func (s *Service) CreateGroup(ctx context.Context, sess Session, input GroupInput) (store.Group, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return store.Group{}, validationError("group name is required")
	}
	group := store.Group{
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		Location:    strings.TrimSpace(input.Location),
		CreatedBy:   sess.UserID,
		Members:     []string{sess.UserID},
	}
	id, err := s.store.InsertGroup(ctx, group)
	if err != nil {
		return store.Group{}, err
	}
	group.ID = id
	return group, nil
}

// JoinGroup adds the caller to a group and notifies its creator. Joining a
// group you already belong to is a no-op and sends nothing.
func (s *Service) JoinGroup(ctx context.Context, groupID string, joiner Session) (store.Group, error) {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return store.Group{}, err
	}
	if containsString(group.Members, joiner.UserID) {
		return group, nil
	}

	if err := s.store.AddGroupMember(ctx, groupID, joiner.UserID); err != nil {
		return store.Group{}, err
	}
	group.Members = append(group.Members, joiner.UserID)

	note := store.Notification{
		Kind:      store.NoteGroupJoin,
		SubjectID: groupID,
		ActorID:   joiner.UserID,
		Message:   fmt.Sprintf("%s joined your group %q", capitalizeFirst(joiner.Username), group.Name),
		Date:      time.Now().UTC(),
	}
	if err := s.appendNotification(ctx, group.CreatedBy, note); err != nil {
		return store.Group{}, err
	}
	return group, nil
}
