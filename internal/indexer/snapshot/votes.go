package snapshot

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"daoindexer/internal/store"
)

const votesQuery = `
query Votes($proposalIds: [String!]!, $createdGt: Int!, $first: Int!) {
  votes(
    first: $first
    orderBy: "created"
    orderDirection: asc
    where: { proposal_in: $proposalIds, created_gt: $createdGt }
  ) {
    id
    voter
    created
    vp
    choice
    reason
    proposal { id }
  }
}`

type rawVote struct {
	ID      string          `json:"id"`
	Voter   string          `json:"voter"`
	Created int64           `json:"created"`
	VP      float64         `json:"vp"`
	Choice  json.RawMessage `json:"choice"`
	Reason  string          `json:"reason"`
	Proposal struct {
		ID string `json:"id"`
	} `json:"proposal"`
}

type votesResult struct {
	Votes []rawVote `json:"votes"`
}

// FetchVotes pages through votes cast on any of proposalIDs created strictly
// after createdGt. The returned externalProposalIDs slice is index-aligned
// with the votes slice, since a decoded Vote's ProposalID is only
// resolvable once the caller looks up the owning Proposal row.
func (c *Client) FetchVotes(ctx context.Context, proposalIDs []string, createdGt int64, governorID, daoID string) (votes []store.Vote, externalProposalIDs []string, nextCursor int64, err error) {
	if len(proposalIDs) == 0 {
		return nil, nil, createdGt, nil
	}
	lastCreated := createdGt

	for {
		var page votesResult
		if err := c.query(ctx, votesQuery, map[string]interface{}{
			"proposalIds": proposalIDs,
			"createdGt":   lastCreated,
			"first":       pageSize,
		}, &page); err != nil {
			return votes, externalProposalIDs, lastCreated, err
		}
		for _, rv := range page.Votes {
			v := store.Vote{
				ID:           uuid.New(),
				GovernorID:   uuid.MustParse(governorID),
				DAOID:        uuid.MustParse(daoID),
				VoterAddress: rv.Voter,
				VotingPower:  rv.VP,
				Choice:       store.JSONValue{Raw: append(json.RawMessage(nil), rv.Choice...)},
				CreatedAt:    secToTime(rv.Created),
			}
			id := rv.ID
			v.TxID = &id
			if rv.Reason != "" {
				v.Reason = &rv.Reason
			}
			votes = append(votes, v)
			externalProposalIDs = append(externalProposalIDs, rv.Proposal.ID)
			if rv.Created > lastCreated {
				lastCreated = rv.Created
			}
		}
		if len(page.Votes) < pageSize {
			break
		}
	}
	return votes, externalProposalIDs, lastCreated, nil
}
