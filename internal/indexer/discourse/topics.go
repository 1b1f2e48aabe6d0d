package discourse

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"daoindexer/internal/store"
)

type rawCategory struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type categoriesResponse struct {
	CategoryList struct {
		Categories []rawCategory `json:"categories"`
	} `json:"category_list"`
}

// FetchCategories lists every category on the forum.
func (c *Client) FetchCategories(ctx context.Context, configID uuid.UUID) ([]store.DiscourseCategory, error) {
	var resp categoriesResponse
	if err := c.getJSON(ctx, "/categories.json", &resp); err != nil {
		return nil, err
	}
	out := make([]store.DiscourseCategory, 0, len(resp.CategoryList.Categories))
	for _, rc := range resp.CategoryList.Categories {
		out = append(out, store.DiscourseCategory{
			ID:                   uuid.New(),
			DaoDiscourseConfigID: configID,
			ExternalID:           rc.ID,
			Name:                 rc.Name,
		})
	}
	return out, nil
}

type rawTopic struct {
	ID         int    `json:"id"`
	CategoryID int    `json:"category_id"`
	Title      string `json:"title"`
	Slug       string `json:"slug"`
	CreatedAt  string `json:"created_at"`
	BumpedAt   string `json:"bumped_at"`
}

type topicListResponse struct {
	TopicList struct {
		Topics        []rawTopic `json:"topics"`
		MoreTopicsURL string     `json:"more_topics_url"`
	} `json:"topic_list"`
}

// FetchTopicsForCategory pages through one category's topic listing using
// Discourse's page query parameter, stopping once a page returns no new
// topics or MaxPagesPerRun is reached.
func (c *Client) FetchTopicsForCategory(ctx context.Context, categoryID int, configID uuid.UUID) ([]store.DiscourseTopic, error) {
	var out []store.DiscourseTopic
	for page := 0; page < MaxPagesPerRun; page++ {
		var resp topicListResponse
		path := fmt.Sprintf("/c/%d.json?page=%d", categoryID, page)
		if err := c.getJSON(ctx, path, &resp); err != nil {
			return out, err
		}
		if len(resp.TopicList.Topics) == 0 {
			break
		}
		for _, rt := range resp.TopicList.Topics {
			out = append(out, store.DiscourseTopic{
				ID:                   uuid.New(),
				DaoDiscourseConfigID: configID,
				ExternalID:           rt.ID,
				CategoryID:           rt.CategoryID,
				Title:                rt.Title,
				Slug:                 rt.Slug,
				CreatedAt:            parseTimestamp(rt.CreatedAt),
				UpdatedAt:            parseTimestamp(rt.BumpedAt),
			})
		}
		if resp.TopicList.MoreTopicsURL == "" {
			break
		}
	}
	return out, nil
}
