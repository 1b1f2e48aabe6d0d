// Package grouper fuses on-chain/off-chain proposals and forum topics that
// refer to the same real-world governance initiative into ProposalGroup
// rows, via a certain URL match followed by a semantic fallback.
package grouper

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"daoindexer/internal/store"
	"daoindexer/observability/metrics"
)

// candidate is a uniform view over either a group representative or a
// still-ungrouped item, for tier 2 scoring.
type candidate struct {
	kind       store.GroupItemKind
	externalID string
	title      string
	body       string
	groupID *uuid.UUID // nil when the candidate itself is ungrouped
}

// Grouper runs the two-phase matching pass for one DAO.
type Grouper struct {
	store     *store.GroupStore
	oracle    EmbeddingOracle
	threshold float64
	log       *slog.Logger
}

// New builds a Grouper. threshold <= 0 falls back to DefaultSimilarityThreshold.
func New(groupStore *store.GroupStore, oracle EmbeddingOracle, threshold float64, log *slog.Logger) *Grouper {
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}
	if oracle == nil {
		oracle = Unavailable{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Grouper{store: groupStore, oracle: oracle, threshold: threshold, log: log}
}

// Run groups every ungrouped topic and proposal for one DAO. Topics whose
// category is not in daoSlug's AllowedCategories are dropped before any
// phase runs, so they neither seed groups nor match a proposal.
func (g *Grouper) Run(ctx context.Context, daoSlug string, daoID uuid.UUID, topics []store.DiscourseTopic, proposals []store.Proposal) error {
	start := time.Now()
	defer func() { metrics.Grouper().ObservePass(time.Since(start)) }()

	allowed := make([]store.DiscourseTopic, 0, len(topics))
	for _, t := range topics {
		if isAllowedCategory(daoSlug, t.CategoryID) {
			allowed = append(allowed, t)
		}
	}
	topics = allowed

	grouped := make(map[string]uuid.UUID) // "kind:externalID" -> group id
	var representatives []candidate

	sort.Slice(topics, func(i, j int) bool { return topics[i].CreatedAt.Before(topics[j].CreatedAt) })
	sort.Slice(proposals, func(i, j int) bool { return proposals[i].CreatedAt.Before(proposals[j].CreatedAt) })

	// Phase 1: every allowed-category topic seeds its own group.
	for _, t := range topics {
		if !isAllowedCategory(daoSlug, t.CategoryID) {
			continue
		}
		extID := strconv.Itoa(t.ExternalID)
		key := string(store.GroupItemTopic) + ":" + extID
		if _, exists, err := g.store.ItemOwner(ctx, daoID, store.GroupItemTopic, extID); err != nil {
			return err
		} else if exists {
			continue
		}
		groupID, err := g.store.CreateGroup(ctx, store.ProposalGroup{
			DAOID: daoID,
			Name:  t.Title,
			Items: []store.ProposalGroupItem{{
				DAOID:      daoID,
				Kind:       store.GroupItemTopic,
				ExternalID: extID,
				Name:       t.Title,
			}},
		})
		if err != nil {
			return err
		}
		metrics.Grouper().RecordGroupCreated(daoSlug)
		metrics.Grouper().RecordItemGrouped("topic")
		grouped[key] = groupID
		representatives = append(representatives, candidate{
			kind: store.GroupItemTopic, externalID: extID, title: t.Title, groupID: &groupID,
		})
	}

	ungroupedTopics := make([]candidate, 0)
	for _, t := range topics {
		extID := strconv.Itoa(t.ExternalID)
		key := string(store.GroupItemTopic) + ":" + extID
		if _, ok := grouped[key]; ok {
			continue
		}
		ungroupedTopics = append(ungroupedTopics, candidate{kind: store.GroupItemTopic, externalID: extID, title: t.Title})
	}
	topicByExternalID := make(map[string]store.DiscourseTopic, len(topics))
	for _, t := range topics {
		topicByExternalID[strconv.Itoa(t.ExternalID)] = t
	}

	// Phase 2: classify every proposal via the three-tier matcher.
	for _, p := range proposals {
		extID := p.ExternalID
		if _, exists, err := g.store.ItemOwner(ctx, daoID, store.GroupItemProposal, extID); err != nil {
			return err
		} else if exists {
			continue
		}

		if g.tier1(ctx, daoSlug, daoID, p, topicByExternalID, &representatives) {
			continue
		}
		if matched, err := g.tier2(ctx, daoSlug, daoID, p, representatives, ungroupedTopics); err != nil {
			g.log.Warn("grouper: tier2 scoring failed, falling through", "proposal", extID, "err", err)
		} else if matched {
			continue
		}

		groupID, err := g.store.CreateGroup(ctx, store.ProposalGroup{
			DAOID: daoID,
			Name:  p.Name,
			Items: []store.ProposalGroupItem{singletonItem(daoID, p)},
		})
		if err != nil {
			return err
		}
		metrics.Grouper().RecordGroupCreated(daoSlug)
		metrics.Grouper().RecordItemGrouped("singleton")
		representatives = append(representatives, candidate{
			kind: store.GroupItemProposal, externalID: extID, title: p.Name, body: p.Body, groupID: &groupID,
		})
	}
	return nil
}

func singletonItem(daoID uuid.UUID, p store.Proposal) store.ProposalGroupItem {
	governorID := p.GovernorID
	return store.ProposalGroupItem{
		DAOID:      daoID,
		Kind:       store.GroupItemProposal,
		ExternalID: p.ExternalID,
		GovernorID: &governorID,
		Name:       p.Name,
	}
}

func proposalItemFor(groupID, daoID uuid.UUID, p store.Proposal) store.ProposalGroupItem {
	item := singletonItem(daoID, p)
	item.GroupID = groupID
	return item
}

// tier1 applies the certain URL match: a discussion URL referencing a known
// topic, by numeric id or slug, wins immediately.
func (g *Grouper) tier1(ctx context.Context, daoSlug string, daoID uuid.UUID, p store.Proposal, topicByExternalID map[string]store.DiscourseTopic, representatives *[]candidate) bool {
	if p.DiscussionURL == nil || *p.DiscussionURL == "" {
		return false
	}
	id, slug := ExtractTopicRef(*p.DiscussionURL)
	var topic store.DiscourseTopic
	var found bool
	if id != nil {
		topic, found = topicByExternalID[strconv.Itoa(*id)]
	}
	if !found && slug != nil {
		for _, t := range topicByExternalID {
			if t.Slug == *slug {
				topic, found = t, true
				break
			}
		}
	}
	if !found {
		return false
	}

	topicExtID := strconv.Itoa(topic.ExternalID)
	groupID, exists, err := g.store.ItemOwner(ctx, daoID, store.GroupItemTopic, topicExtID)
	if err != nil {
		g.log.Warn("grouper: tier1 item_owner failed", "err", err)
		return false
	}
	if !exists {
		newGroupID, err := g.store.CreateGroup(ctx, store.ProposalGroup{
			DAOID: daoID,
			Name:  topic.Title,
			Items: []store.ProposalGroupItem{
				{DAOID: daoID, Kind: store.GroupItemTopic, ExternalID: topicExtID, Name: topic.Title},
				singletonItem(daoID, p),
			},
		})
		if err != nil {
			g.log.Warn("grouper: tier1 create_group failed", "err", err)
			return false
		}
		groupID = newGroupID
		metrics.Grouper().RecordGroupCreated(daoSlug)
	} else {
		if err := g.store.AddItem(ctx, proposalItemFor(groupID, daoID, p)); err != nil {
			g.log.Warn("grouper: tier1 add_item failed", "err", err)
			return false
		}
	}
	metrics.Grouper().RecordItemGrouped("url")
	*representatives = append(*representatives, candidate{kind: store.GroupItemProposal, externalID: p.ExternalID, title: p.Name, body: p.Body, groupID: &groupID})
	return true
}

// tier2 runs the semantic fallback: skip short titles, score every
// candidate, and accept the top one if it clears the similarity threshold.
func (g *Grouper) tier2(ctx context.Context, daoSlug string, daoID uuid.UUID, p store.Proposal, representatives, ungroupedTopics []candidate) (bool, error) {
	if len(p.Name) < MinTitleLengthForSemanticMatch {
		return false, nil
	}

	var best candidate
	bestScore := 0.0
	haveBest := false

	score := func(c candidate) error {
		s, err := g.oracle.Similarity(ctx, p.Name, p.Body, c.title, c.body)
		if err != nil {
			return err
		}
		if s > bestScore {
			bestScore = s
			best = c
			haveBest = true
		}
		return nil
	}

	for _, c := range representatives {
		if c.kind == store.GroupItemProposal && c.externalID == p.ExternalID {
			continue
		}
		if err := score(c); err != nil {
			return false, err
		}
	}
	for _, c := range ungroupedTopics {
		if err := score(c); err != nil {
			return false, err
		}
	}

	if !haveBest || bestScore < g.threshold {
		return false, nil
	}

	if best.groupID != nil {
		if err := g.store.AddItem(ctx, proposalItemFor(*best.groupID, daoID, p)); err != nil {
			return false, err
		}
		metrics.Grouper().RecordItemGrouped("semantic")
		return true, nil
	}
	name := best.title
	_, err := g.store.CreateGroup(ctx, store.ProposalGroup{
		DAOID: daoID,
		Name:  name,
		Items: []store.ProposalGroupItem{
			{DAOID: daoID, Kind: best.kind, ExternalID: best.externalID, Name: best.title},
			singletonItem(daoID, p),
		},
	})
	if err != nil {
		return false, err
	}
	metrics.Grouper().RecordGroupCreated(daoSlug)
	metrics.Grouper().RecordItemGrouped("semantic")
	return true, nil
}
