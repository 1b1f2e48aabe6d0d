package grouper

import "context"

// DefaultSimilarityThreshold is the angular similarity a tier 2 candidate
// must clear to be accepted, overridable via config.
const DefaultSimilarityThreshold = 0.70

// MinTitleLengthForSemanticMatch skips tier 2 entirely for titles shorter
// than this, since short titles produce unreliable embeddings.
const MinTitleLengthForSemanticMatch = 20

// EmbeddingOracle scores how likely a candidate item refers to the same
// governance initiative as a proposal, combining embedding similarity and
// an optional cross-encoder rerank into one angular similarity score in
// [0, 1]. Implementations call out to an external embedding/rerank
// service; a nil-safe no-op implementation exists for when that service is
// unavailable, per the degrade-to-singleton failure mode.
type EmbeddingOracle interface {
	Similarity(ctx context.Context, proposalTitle, proposalBody, candidateTitle, candidateBody string) (float64, error)
}

// Unavailable is an EmbeddingOracle that always reports unavailability,
// used when no embedding service is configured so tier 2 degrades
// uniformly to tier 3 rather than aborting the run.
type Unavailable struct{}

func (Unavailable) Similarity(ctx context.Context, proposalTitle, proposalBody, candidateTitle, candidateBody string) (float64, error) {
	return 0, errUnavailable
}

var errUnavailable = &oracleError{"embedding oracle unavailable"}

type oracleError struct{ msg string }

func (e *oracleError) Error() string { return e.msg }
