// Package store implements idempotent persistence for every entity the
// indexing engine and grouper produce, following the otc-gateway models/
// GORM conventions: uuid.UUID primary keys, explicit unique indexes, jsonb
// columns for free-form metadata.
package store

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DAO is a top-level governance organization, seeded once and never deleted.
type DAO struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Slug        string    `gorm:"uniqueIndex;size:128;not null"`
	DisplayName string    `gorm:"size:256;not null"`
	CreatedAt   time.Time
}

// GovernorType enumerates what a governor venue emits.
type GovernorType string

const (
	GovernorTypeProposals GovernorType = "Proposals"
	GovernorTypeVotes     GovernorType = "Votes"
	GovernorTypeBoth      GovernorType = "Both"
)

// Governor is a specific governance venue belonging to a DAO.
type Governor struct {
	ID        uuid.UUID    `gorm:"type:uuid;primaryKey"`
	DAOID     uuid.UUID    `gorm:"type:uuid;uniqueIndex:idx_governor_dao_variant;not null"`
	Variant   string       `gorm:"uniqueIndex:idx_governor_dao_variant;size:64;not null"`
	Network   string       `gorm:"size:64"`
	Address   string       `gorm:"size:64"`
	Type      GovernorType `gorm:"size:16;not null"`
	PortalURL string       `gorm:"size:512"`

	// TokenAddress is the governance token's ERC20Votes contract, set only
	// for on-chain governors whose delegation history is indexed.
	TokenAddress *string `gorm:"size:64"`

	CreatedAt time.Time
}

// DaoDiscourseConfig binds a DAO to a Discourse forum instance.
type DaoDiscourseConfig struct {
	DAOID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	BaseURL     string    `gorm:"size:512;not null"`
	Enabled     bool      `gorm:"not null"`
	CategoryIDs JSONIntSlice `gorm:"type:jsonb"`
	UpdatedAt   time.Time
}

// ProposalState enumerates the lifecycle of a governance question.
type ProposalState string

const (
	StatePending   ProposalState = "Pending"
	StateActive    ProposalState = "Active"
	StateCanceled  ProposalState = "Canceled"
	StateDefeated  ProposalState = "Defeated"
	StateSucceeded ProposalState = "Succeeded"
	StateQueued    ProposalState = "Queued"
	StateExpired   ProposalState = "Expired"
	StateExecuted  ProposalState = "Executed"
	StateHidden    ProposalState = "Hidden"
	StateUnknown   ProposalState = "Unknown"
)

// Proposal is a single governance question raised in a governor venue.
type Proposal struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	ExternalID string    `gorm:"uniqueIndex:idx_proposal_governor_external;size:128;not null"`
	GovernorID uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_proposal_governor_external;not null"`
	DAOID      uuid.UUID `gorm:"type:uuid;index;not null"`

	Name          string `gorm:"size:512"`
	Body          string `gorm:"type:text"`
	Author        *string `gorm:"size:64"`
	URL           string `gorm:"size:512"`
	DiscussionURL *string `gorm:"size:512"`

	Choices      JSONStringSlice `gorm:"type:jsonb"`
	Quorum       float64
	State        ProposalState `gorm:"size:16;index;not null"`
	Scores       JSONFloatSlice `gorm:"type:jsonb"`
	ScoresTotal  float64
	ScoresQuorum float64

	CreatedAt     time.Time
	StartAt       time.Time
	EndAt         time.Time
	BlockCreatedAt *uint64
	BlockStartAt   *uint64
	BlockEndAt     *uint64

	TxID     *string `gorm:"size:80"`
	Metadata JSONMap `gorm:"type:jsonb"`

	MarkedSpam bool

	UpdatedAt time.Time
}

// Vote is a single ballot cast on a proposal.
type Vote struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	ProposalID     uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_vote_identity;not null"`
	GovernorID     uuid.UUID `gorm:"type:uuid;index;not null"`
	DAOID          uuid.UUID `gorm:"type:uuid;index;not null"`
	VoterAddress   string    `gorm:"uniqueIndex:idx_vote_identity;size:64;not null"`
	VotingPower    float64
	Choice         JSONValue `gorm:"type:jsonb"`
	Reason         *string   `gorm:"type:text"`
	CreatedAt      time.Time
	BlockCreatedAt *uint64
	TxID           *string `gorm:"uniqueIndex:idx_vote_identity;size:80"`
}

// Delegation is a voting-power delegation event.
type Delegation struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Delegator  string    `gorm:"uniqueIndex:idx_delegation_identity;size:64;not null"`
	Delegate   string    `gorm:"size:64;not null"`
	DAOID      uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_delegation_identity;not null"`
	Timestamp  time.Time
	Block      uint64
	TxID       string `gorm:"uniqueIndex:idx_delegation_identity;size:80;not null"`
}

// VotingPowerSnapshot records a voter's voting power at a point in time.
type VotingPowerSnapshot struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Voter       string    `gorm:"uniqueIndex:idx_vps_identity;size:64;not null"`
	DAOID       uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_vps_identity;not null"`
	VotingPower float64
	Timestamp   time.Time
	Block       uint64
	TxID        string `gorm:"uniqueIndex:idx_vps_identity;size:80;not null"`
}

// Voter is a directory record refreshed at most once per 24h.
type Voter struct {
	Address   string `gorm:"primaryKey;size:64"`
	ENS       *string `gorm:"size:256"`
	Avatar    *string `gorm:"size:512"`
	UpdatedAt time.Time
}

// DiscourseCategory mirrors a forum category.
type DiscourseCategory struct {
	ID                   uuid.UUID `gorm:"type:uuid;primaryKey"`
	DaoDiscourseConfigID uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_category_identity;not null"`
	ExternalID           int       `gorm:"uniqueIndex:idx_category_identity;not null"`
	Name                 string    `gorm:"size:256"`
}

// DiscourseTopic mirrors a forum topic.
type DiscourseTopic struct {
	ID                   uuid.UUID `gorm:"type:uuid;primaryKey"`
	DaoDiscourseConfigID uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_topic_identity;not null"`
	ExternalID           int       `gorm:"uniqueIndex:idx_topic_identity;not null"`
	CategoryID           int
	Title                string `gorm:"size:512"`
	Slug                 string `gorm:"size:512"`
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// DiscoursePost mirrors a forum post within a topic.
type DiscoursePost struct {
	ID                   uuid.UUID `gorm:"type:uuid;primaryKey"`
	DaoDiscourseConfigID uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_post_identity;not null"`
	ExternalID           int       `gorm:"uniqueIndex:idx_post_identity;not null"`
	TopicExternalID      int       `gorm:"index;not null"`
	UserExternalID       int
	Cooked               string `gorm:"type:text"`
	PostNumber           int
	Version              int
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// DiscourseUser mirrors a forum user.
type DiscourseUser struct {
	ID                   uuid.UUID `gorm:"type:uuid;primaryKey"`
	DaoDiscourseConfigID uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_user_identity;not null"`
	ExternalID           int       `gorm:"uniqueIndex:idx_user_identity;not null"`
	Username             string    `gorm:"size:256"`
}

// IndexerCursor is the per-source checkpoint persisted between passes.
type IndexerCursor struct {
	SourceID      uuid.UUID `gorm:"type:uuid;primaryKey"`
	Variant       string    `gorm:"primaryKey;size:64"`
	CurrentIndex  uint64    `gorm:"not null"`
	RefreshSpeed  uint64    `gorm:"not null"`
	Enabled       bool      `gorm:"not null"`
	LastUpdatedAt time.Time
}

// GroupItemKind distinguishes the two tagged-union members a group item
// may be.
type GroupItemKind string

const (
	GroupItemProposal GroupItemKind = "Proposal"
	GroupItemTopic    GroupItemKind = "Topic"
)

// ProposalGroup is the fused artifact binding proposals and topics that
// refer to the same real-world governance initiative.
type ProposalGroup struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	DAOID     uuid.UUID `gorm:"type:uuid;index;not null"`
	Name      string    `gorm:"size:512"`
	CreatedAt time.Time
	Items     []ProposalGroupItem `gorm:"foreignKey:GroupID"`
}

// ProposalGroupItem is one member of a ProposalGroup: either a Proposal or
// a DiscourseTopic reference, uniquely scoped per DAO.
type ProposalGroupItem struct {
	ID         uuid.UUID     `gorm:"type:uuid;primaryKey"`
	GroupID    uuid.UUID     `gorm:"type:uuid;index;not null"`
	DAOID      uuid.UUID     `gorm:"type:uuid;uniqueIndex:idx_group_item_identity;not null"`
	Kind       GroupItemKind `gorm:"uniqueIndex:idx_group_item_identity;size:16;not null"`
	ExternalID string        `gorm:"uniqueIndex:idx_group_item_identity;size:128;not null"`
	GovernorID *uuid.UUID    `gorm:"type:uuid"`
	Name       string        `gorm:"size:512"`
}

// AllModels lists every table that Migrate passes to AutoMigrate.
func AllModels() []interface{} {
	return []interface{}{
		&DAO{}, &Governor{}, &DaoDiscourseConfig{},
		&Proposal{}, &Vote{}, &Delegation{}, &VotingPowerSnapshot{}, &Voter{},
		&DiscourseCategory{}, &DiscourseTopic{}, &DiscoursePost{}, &DiscourseUser{},
		&IndexerCursor{}, &ProposalGroup{}, &ProposalGroupItem{},
	}
}

// Migrate runs AutoMigrate across every model. Both daemons call it at
// startup, and the store tests call it on their in-memory database.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(AllModels()...)
}
