package models

import "time"

// NodeType tags a node in the network view
type NodeType string

const (
	NodeSponsor  NodeType = "sponsor"
	NodeMe       NodeType = "me"
	NodeReferral NodeType = "referral"
)

// LevelLabel is a per-owner display name for a network level
// Backed by table `level_labels`
type LevelLabel struct {
	ID        int64     `json:"id" db:"id"`
	OwnerID   int64     `json:"owner_id" db:"owner_id"`
	Level     int       `json:"level" db:"level"`
	Name      string    `json:"name" db:"name"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// LevelLabelRequest is the body of PUT /me/level-labels/:level
type LevelLabelRequest struct {
	Name string `json:"name" binding:"required,max=100"`
}

// NodeView is one positioned node of the network visualization
type NodeView struct {
	ID             int64    `json:"id"`
	Nombres        string   `json:"nombres"`
	Apellidos      string   `json:"apellidos"`
	Cedula         string   `json:"cedula"`
	Telefono       string   `json:"telefono"`
	Email          *string  `json:"email"`
	ReferralsCount int      `json:"referrals_count"`
	Type           NodeType `json:"type"`
	Level          int      `json:"level"`
	X              float64  `json:"x"`
	Y              float64  `json:"y"`
}

// Link is a referrer -> referral edge
type Link struct {
	Source int64 `json:"source"`
	Target int64 `json:"target"`
}

// NetworkView is the node/edge view centered on a person
type NetworkView struct {
	Nodes       []NodeView     `json:"nodes"`
	Links       []Link         `json:"links"`
	NetworkSize int            `json:"network_size"`
	LevelLabels map[int]string `json:"level_labels"`
}

// ReferralNode is a recursive dashboard entry
type ReferralNode struct {
	ID             int64           `json:"id"`
	Nombres        string          `json:"nombres"`
	Apellidos      string          `json:"apellidos"`
	Cedula         string          `json:"cedula"`
	Phone          string          `json:"phone"`
	Email          *string         `json:"email"`
	CreatedAt      time.Time       `json:"created_at"`
	ReferralsCount int             `json:"referrals_count"`
	SubReferrals   []*ReferralNode `json:"sub_referrals"`
}

// Dashboard is the caller's own referral summary
type Dashboard struct {
	Nombres        string          `json:"nombres"`
	Apellidos      string          `json:"apellidos"`
	ReferralCode   string          `json:"referral_code"`
	ReferralsCount int             `json:"referrals_count"`
	NetworkSize    int             `json:"network_size"`
	Referrals      []*ReferralNode `json:"referrals"`
}

// DescendantCheck answers a membership query
type DescendantCheck struct {
	AncestorID   int64 `json:"ancestor_id"`
	CandidateID  int64 `json:"candidate_id"`
	IsDescendant bool  `json:"is_descendant"`
}

// ImportRequest imports new referrals under a node of the caller's subtree
type ImportRequest struct {
	ParentID  int64             `json:"parent_id" binding:"required"`
	Referrals []RegisterRequest `json:"referrals" binding:"required,min=1,max=500,dive"`
}

// ImportRowError reports a row that could not be imported
type ImportRowError struct {
	Row    int    `json:"row"`
	Cedula string `json:"cedula"`
	Error  string `json:"error"`
}

// ImportResult summarises an import
type ImportResult struct {
	Created []Person         `json:"created"`
	Skipped []string         `json:"skipped"`
	Errors  []ImportRowError `json:"errors"`
}

// SubtreeStats is printed by the inspect command
type SubtreeStats struct {
	RootID    int64 `json:"root_id"`
	Size      int   `json:"size"`
	Depth     int   `json:"depth"`
	Rounds    int   `json:"rounds"`
	Anomalies int   `json:"anomalies"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}

// SuccessResponse represents a success response
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
