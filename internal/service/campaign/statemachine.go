package campaign

import "github.com/yordy89/day-trade-dak-api-sub005/internal/domain"

// Action is an operator or orchestrator request against a campaign.
type Action string

const (
	ActionSchedule   Action = "schedule"
	ActionUnschedule Action = "unschedule"
	ActionStart      Action = "start sending"
	ActionComplete   Action = "complete"
	ActionFail       Action = "fail"
	ActionCancel     Action = "cancel"
	ActionEdit       Action = "edit"
	ActionDelete     Action = "delete"
)

type transition struct {
	from []domain.CampaignStatus
	to   domain.CampaignStatus
}

var transitions = map[Action]transition{
	ActionSchedule:   {from: []domain.CampaignStatus{domain.CampaignDraft, domain.CampaignScheduled}, to: domain.CampaignScheduled},
	ActionUnschedule: {from: []domain.CampaignStatus{domain.CampaignScheduled}, to: domain.CampaignDraft},
	ActionStart:      {from: []domain.CampaignStatus{domain.CampaignDraft, domain.CampaignScheduled}, to: domain.CampaignSending},
	ActionComplete:   {from: []domain.CampaignStatus{domain.CampaignSending}, to: domain.CampaignSent},
	ActionFail:       {from: []domain.CampaignStatus{domain.CampaignSending}, to: domain.CampaignFailed},
	ActionCancel:     {from: []domain.CampaignStatus{domain.CampaignDraft, domain.CampaignScheduled}, to: domain.CampaignCancelled},
}

// Editing and deleting do not move the status but are still gated by it.
var (
	editableFrom  = []domain.CampaignStatus{domain.CampaignDraft, domain.CampaignScheduled, domain.CampaignFailed, domain.CampaignCancelled}
	deletableFrom = []domain.CampaignStatus{domain.CampaignDraft, domain.CampaignScheduled, domain.CampaignSent, domain.CampaignFailed, domain.CampaignCancelled}
)

// Next returns the status the action leads to from the given status, or a
// *StateConflictError when the action is not legal there.
func Next(id string, from domain.CampaignStatus, a Action) (domain.CampaignStatus, error) {
	t, ok := transitions[a]
	if !ok || !contains(t.from, from) {
		return from, &StateConflictError{CampaignID: id, Status: from, Action: a}
	}
	return t.to, nil
}

// AllowedFrom lists the statuses an action may start from. Repositories use
// it as the compare-and-set guard.
func AllowedFrom(a Action) []domain.CampaignStatus {
	switch a {
	case ActionEdit:
		return editableFrom
	case ActionDelete:
		return deletableFrom
	}
	return transitions[a].from
}

// Check returns a *StateConflictError if the action is not legal from status.
func Check(id string, status domain.CampaignStatus, a Action) error {
	if !contains(AllowedFrom(a), status) {
		return &StateConflictError{CampaignID: id, Status: status, Action: a}
	}
	return nil
}

func contains(set []domain.CampaignStatus, s domain.CampaignStatus) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
