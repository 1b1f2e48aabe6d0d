package discourse

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"daoindexer/internal/indexer"
	"daoindexer/internal/store"
)

// Scanner implements indexer.Scanner for one Discourse forum, using Unix
// timestamps as the cursor index: a topic is re-walked for new/edited posts
// once its bumped_at passes the cursor.
type Scanner struct {
	client      *Client
	configID    uuid.UUID
	categoryIDs []int

	store *store.DiscourseStore
	log   *slog.Logger
}

// NewScanner builds a Scanner bound to one forum configuration.
func NewScanner(client *Client, configID uuid.UUID, categoryIDs []int, discourseStore *store.DiscourseStore, log *slog.Logger) *Scanner {
	if log == nil {
		log = slog.Default()
	}
	return &Scanner{client: client, configID: configID, categoryIDs: categoryIDs, store: discourseStore, log: log}
}

// ChainTip returns the current Unix time, the same timestamp-cursor idiom
// used by the Snapshot scanner.
func (s *Scanner) ChainTip(ctx context.Context) (uint64, error) {
	return uint64(time.Now().Unix()), nil
}

// Scan lists every configured category's topics, persists the ones bumped
// since the cursor (widened by RecentLookbackHours to catch late edits),
// and re-pulls their posts.
func (s *Scanner) Scan(ctx context.Context, from, to uint64) (indexer.Result, error) {
	count := 0
	cutoff := time.Unix(int64(from), 0).Add(-RecentLookbackHours * time.Hour)

	cats, err := s.client.FetchCategories(ctx, s.configID)
	if err != nil {
		return indexer.Result{}, err
	}
	if len(cats) > 0 {
		if err := s.store.UpsertCategories(ctx, cats); err != nil {
			return indexer.Result{}, err
		}
	}

	for _, categoryID := range s.categoryIDs {
		topics, err := s.client.FetchTopicsForCategory(ctx, categoryID, s.configID)
		if err != nil {
			s.log.Warn("discourse: fetch topics failed, skipping category", "category", categoryID, "err", err)
			continue
		}
		var changed []store.DiscourseTopic
		for _, t := range topics {
			if t.UpdatedAt.Before(cutoff) {
				continue
			}
			changed = append(changed, t)
		}
		if len(changed) == 0 {
			continue
		}
		if err := s.store.UpsertTopics(ctx, changed); err != nil {
			return indexer.Result{}, err
		}
		count += len(changed)

		for _, t := range changed {
			posts, users, err := s.client.FetchPostsForTopic(ctx, t.ExternalID, s.configID)
			if err != nil {
				s.log.Warn("discourse: fetch posts failed, skipping topic", "topic", t.ExternalID, "err", err)
				continue
			}
			if len(users) > 0 {
				if err := s.store.UpsertUsers(ctx, users); err != nil {
					return indexer.Result{}, err
				}
			}
			if len(posts) > 0 {
				if err := s.store.UpsertPosts(ctx, posts); err != nil {
					return indexer.Result{}, err
				}
				count += len(posts)
			}
		}
	}

	return indexer.Result{RecordCount: count, StickyIndex: nil}, nil
}
