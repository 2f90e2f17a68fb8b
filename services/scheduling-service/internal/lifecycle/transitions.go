package lifecycle

import "github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/model"

type Action string

const (
	ActionConfirm  Action = "confirm"
	ActionStart    Action = "start"
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
)

var transitions = map[Action]struct {
	from []model.Status
	to   model.Status
}{
	ActionConfirm:  {from: []model.Status{model.StatusDraft}, to: model.StatusConfirmed},
	ActionStart:    {from: []model.Status{model.StatusConfirmed}, to: model.StatusInProgress},
	ActionComplete: {from: []model.Status{model.StatusInProgress}, to: model.StatusCompleted},
	ActionCancel:   {from: []model.Status{model.StatusDraft, model.StatusConfirmed, model.StatusInProgress}, to: model.StatusCancelled},
}

// Next returns the status action leads to from current, or a StateError.
func Next(current model.Status, action Action) (model.Status, error) {
	t, ok := transitions[action]
	if !ok {
		return "", model.Invalid("action", "unknown action "+string(action))
	}
	for _, from := range t.from {
		if from == current {
			return t.to, nil
		}
	}
	return "", &model.StateError{Op: string(action), Status: current}
}

// TicketStage maps an appointment status to the keyword of the linked
// ticket's stage.
func TicketStage(s model.Status) string {
	switch s {
	case model.StatusDraft:
		return "new"
	case model.StatusConfirmed, model.StatusInProgress:
		return "in_progress"
	case model.StatusCompleted:
		return "solved"
	case model.StatusCancelled:
		return "cancelled"
	}
	return ""
}
