package snapshot

import (
	"context"

	"github.com/google/uuid"

	"daoindexer/internal/store"
)

const pageSize = 100

const proposalsQuery = `
query Proposals($space: String!, $createdGt: Int!, $first: Int!) {
  proposals(
    first: $first
    orderBy: "created"
    orderDirection: asc
    where: { space: $space, created_gt: $createdGt }
  ) {
    id
    title
    body
    author
    choices
    start
    end
    created
    quorum
    scores
    scores_total
    scores_state
    state
    privacy
    discussion
  }
}`

type rawProposal struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Author      string    `json:"author"`
	Choices     []string  `json:"choices"`
	Start       int64     `json:"start"`
	End         int64     `json:"end"`
	Created     int64     `json:"created"`
	Quorum      float64   `json:"quorum"`
	Scores      []float64 `json:"scores"`
	ScoresTotal float64   `json:"scores_total"`
	ScoresState string    `json:"scores_state"`
	State       string    `json:"state"`
	Privacy     string    `json:"privacy"`
	Discussion  string    `json:"discussion"`
}

type proposalsResult struct {
	Proposals []rawProposal `json:"proposals"`
}

// FetchProposals pages through a space's proposals created strictly after
// createdGt, in ascending creation order, batch pageSize, and returns the
// normalized rows plus the last "created" timestamp seen (the next cursor).
func (c *Client) FetchProposals(ctx context.Context, space string, createdGt int64, governorID, daoID string) ([]store.Proposal, int64, error) {
	var out []store.Proposal
	lastCreated := createdGt

	for {
		var page proposalsResult
		if err := c.query(ctx, proposalsQuery, map[string]interface{}{
			"space":     space,
			"createdGt": lastCreated,
			"first":     pageSize,
		}, &page); err != nil {
			return out, lastCreated, err
		}
		for _, rp := range page.Proposals {
			out = append(out, normalizeProposal(rp, governorID, daoID))
			if rp.Created > lastCreated {
				lastCreated = rp.Created
			}
		}
		if len(page.Proposals) < pageSize {
			break
		}
	}
	return out, lastCreated, nil
}

func normalizeProposal(rp rawProposal, governorID, daoID string) store.Proposal {
	p := store.Proposal{
		ID:           uuid.New(),
		ExternalID:   rp.ID,
		GovernorID:   uuid.MustParse(governorID),
		DAOID:        uuid.MustParse(daoID),
		Name:         rp.Title,
		Body:         rp.Body,
		Choices:      store.JSONStringSlice(rp.Choices),
		Quorum:       rp.Quorum,
		Scores:       store.JSONFloatSlice(rp.Scores),
		ScoresTotal:  rp.ScoresTotal,
		ScoresQuorum: scoresQuorumOf(rp.Scores, rp.Quorum),
		CreatedAt:    secToTime(rp.Created),
		StartAt:      secToTime(rp.Start),
		EndAt:        secToTime(rp.End),
		State:        mapSnapshotState(rp.State, rp.Privacy, rp.ScoresState),
		Metadata: store.JSONMap{
			"source":     "snapshot",
			"privacy":    rp.Privacy,
			"hidden_vote": rp.Privacy == "shutter",
		},
	}
	if rp.Author != "" {
		a := rp.Author
		p.Author = &a
	}
	if rp.Discussion != "" {
		d := rp.Discussion
		p.DiscussionURL = &d
	}
	return p
}

// mapSnapshotState implements the state machine described for Snapshot
// proposals: closed resolves to Executed only once scores are final,
// otherwise Defeated; pending proposals under shutter privacy are hidden
// from consumers until they open.
func mapSnapshotState(state, privacy, scoresState string) store.ProposalState {
	switch state {
	case "active":
		return store.StateActive
	case "pending":
		if privacy == "shutter" {
			return store.StateHidden
		}
		return store.StatePending
	case "closed":
		if scoresState == "final" {
			return store.StateExecuted
		}
		return store.StateDefeated
	case "cancelled":
		return store.StateCanceled
	default:
		return store.StateUnknown
	}
}

func scoresQuorumOf(scores []float64, quorum float64) float64 {
	if quorum <= 0 {
		return 0
	}
	total := 0.0
	for _, s := range scores {
		total += s
	}
	return total
}
