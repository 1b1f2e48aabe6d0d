package discourse

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"daoindexer/internal/store"
)

type rawPost struct {
	ID         int    `json:"id"`
	TopicID    int    `json:"topic_id"`
	UserID     int    `json:"user_id"`
	Username   string `json:"username"`
	Cooked     string `json:"cooked"`
	PostNumber int    `json:"post_number"`
	Version    int    `json:"version"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

type topicDetailResponse struct {
	PostStream struct {
		Posts []rawPost `json:"posts"`
	} `json:"post_stream"`
}

// FetchPostsForTopic returns every post in one topic, plus the distinct
// users that authored them.
func (c *Client) FetchPostsForTopic(ctx context.Context, topicID int, configID uuid.UUID) ([]store.DiscoursePost, []store.DiscourseUser, error) {
	var resp topicDetailResponse
	if err := c.getJSON(ctx, fmt.Sprintf("/t/%d.json", topicID), &resp); err != nil {
		return nil, nil, err
	}

	posts := make([]store.DiscoursePost, 0, len(resp.PostStream.Posts))
	seenUsers := make(map[int]struct{})
	var users []store.DiscourseUser

	for _, rp := range resp.PostStream.Posts {
		posts = append(posts, store.DiscoursePost{
			ID:                   uuid.New(),
			DaoDiscourseConfigID: configID,
			ExternalID:           rp.ID,
			TopicExternalID:      rp.TopicID,
			UserExternalID:       rp.UserID,
			Cooked:               rp.Cooked,
			PostNumber:           rp.PostNumber,
			Version:              rp.Version,
			CreatedAt:            parseTimestamp(rp.CreatedAt),
			UpdatedAt:            parseTimestamp(rp.UpdatedAt),
		})
		if _, ok := seenUsers[rp.UserID]; ok || rp.Username == "" {
			continue
		}
		seenUsers[rp.UserID] = struct{}{}
		users = append(users, store.DiscourseUser{
			ID:                   uuid.New(),
			DaoDiscourseConfigID: configID,
			ExternalID:           rp.UserID,
			Username:             rp.Username,
		})
	}
	return posts, users, nil
}
