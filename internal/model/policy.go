package model

import "time"

type PolicyMatch string

const (
	MatchCategory        PolicyMatch = "Category"
	MatchConfidentiality PolicyMatch = "Confidentiality"
)

// ApprovalPolicy marks documents of a category or confidentiality as requiring approval before publication.
type ApprovalPolicy struct {
	ID         uint        `gorm:"primaryKey;autoIncrement" json:"id"`
	MatchType  PolicyMatch `gorm:"not null" json:"matchType"`
	MatchValue string      `gorm:"not null" json:"matchValue"`
	Active     bool        `gorm:"not null" json:"active"`
}

func (ApprovalPolicy) TableName() string {
	return "approval_policies"
}

// Matches reports whether the policy applies to a document with the given category and confidentiality.
func (p *ApprovalPolicy) Matches(category string, level Confidentiality) bool {
	if !p.Active {
		return false
	}
	switch p.MatchType {
	case MatchCategory:
		return p.MatchValue == category
	case MatchConfidentiality:
		return p.MatchValue == string(level)
	}
	return false
}

// RetentionPolicy is the number of years a category is kept before it becomes eligible for disposal.
type RetentionPolicy struct {
	Category       string    `gorm:"primaryKey" json:"category"`
	RetentionYears int       `gorm:"not null" json:"retentionYears"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func (RetentionPolicy) TableName() string {
	return "retention_policies"
}
