package lifecycle

import "github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/model"

// CancelDefaults returns the toggles a cancellation reason starts with.
func CancelDefaults(r model.CancelReason) model.CancelOptions {
	switch r {
	case model.ReasonCustomerRequest:
		return model.CancelOptions{NotifyCustomer: false, NotifyTechnician: true, RefundRequired: true}
	case model.ReasonTechnicianUnavailable:
		return model.CancelOptions{NotifyCustomer: true, NotifyTechnician: false, RefundRequired: false}
	case model.ReasonRescheduled:
		return model.CancelOptions{}
	default:
		return model.CancelOptions{NotifyCustomer: true, NotifyTechnician: true, RefundRequired: false}
	}
}

// Overrides are explicit caller choices; nil keeps the reason's default.
type Overrides struct {
	NotifyCustomer   *bool
	NotifyTechnician *bool
	RefundRequired   *bool
}

func (o Overrides) Apply(base model.CancelOptions) model.CancelOptions {
	if o.NotifyCustomer != nil {
		base.NotifyCustomer = *o.NotifyCustomer
	}
	if o.NotifyTechnician != nil {
		base.NotifyTechnician = *o.NotifyTechnician
	}
	if o.RefundRequired != nil {
		base.RefundRequired = *o.RefundRequired
	}
	return base
}

// CancelAuditText is the history line written for a cancellation.
func CancelAuditText(r model.CancelReason, detail string, opts model.CancelOptions) string {
	text := "Appointment cancelled. Reason: " + r.Label()
	if detail != "" {
		text += "\nDetails: " + detail
	}
	if opts.RefundRequired {
		text += "\nRefund required"
	}
	return text
}
