package config

import (
	"fmt"
	"os"

	"github.com/emrgen/digidoc/internal/model"
	"gopkg.in/yaml.v3"
)

// PolicyFile is the startup seed for retention and approval policies.
//
//	retention:
//	  Invoice: 10
//	approval:
//	  - match: Confidentiality
//	    value: Restricted
type PolicyFile struct {
	Retention map[string]int   `yaml:"retention"`
	Approval  []ApprovalPolicy `yaml:"approval"`
}

type ApprovalPolicy struct {
	Match  string `yaml:"match"`
	Value  string `yaml:"value"`
	Active *bool  `yaml:"active"` // defaults to true
}

func LoadPolicyFile(path string) (*PolicyFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	return ParsePolicies(data)
}

func ParsePolicies(data []byte) (*PolicyFile, error) {
	file := &PolicyFile{}
	if err := yaml.Unmarshal(data, file); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}
	for category, years := range file.Retention {
		if years <= 0 {
			return nil, fmt.Errorf("retention for %q must be positive, got %d", category, years)
		}
	}
	for i, p := range file.Approval {
		switch model.PolicyMatch(p.Match) {
		case model.MatchCategory, model.MatchConfidentiality:
		default:
			return nil, fmt.Errorf("approval[%d]: unknown match %q", i, p.Match)
		}
		if p.Value == "" {
			return nil, fmt.Errorf("approval[%d]: value required", i)
		}
	}
	return file, nil
}

// ApprovalPolicies converts the file entries to store models.
func (f *PolicyFile) ApprovalPolicies() []model.ApprovalPolicy {
	policies := make([]model.ApprovalPolicy, 0, len(f.Approval))
	for _, p := range f.Approval {
		active := true
		if p.Active != nil {
			active = *p.Active
		}
		policies = append(policies, model.ApprovalPolicy{
			MatchType:  model.PolicyMatch(p.Match),
			MatchValue: p.Value,
			Active:     active,
		})
	}
	return policies
}
