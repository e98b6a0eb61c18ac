package service

import "github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/internal/model"

// TransitionPolicy decides whether a lead may move from one status to another
type TransitionPolicy interface {
	Allow(from, to string) bool
}

// AdvisoryPolicy accepts any known status; the pipeline order is a
// convention for humans, not enforced
type AdvisoryPolicy struct{}

// Allow always true
func (AdvisoryPolicy) Allow(_, _ string) bool { return true }

// StrictPolicy accepts only moves that do not go back in the pipeline.
// pending and contact_form share the intake stage.
type StrictPolicy struct{}

var leadStageRank = map[string]int{
	model.LeadStatusPending:        0,
	model.LeadStatusContactForm:    0,
	model.LeadStatusContacted:      1,
	model.LeadStatusAccountCreated: 2,
	model.LeadStatusNurture:        3,
	model.LeadStatusConverted:      4,
}

// Allow forward or same-stage moves only
func (StrictPolicy) Allow(from, to string) bool {
	f, ok := leadStageRank[from]
	if !ok {
		return true
	}
	t, ok := leadStageRank[to]
	if !ok {
		return false
	}
	return t >= f
}

// policyFor picks the configured policy
func policyFor(enforce bool) TransitionPolicy {
	if enforce {
		return StrictPolicy{}
	}
	return AdvisoryPolicy{}
}
