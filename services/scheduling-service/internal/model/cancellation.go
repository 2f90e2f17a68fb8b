package model

type CancelReason string

const (
	ReasonCustomerRequest       CancelReason = "customer_request"
	ReasonCustomerUnavailable   CancelReason = "customer_unavailable"
	ReasonTechnicianUnavailable CancelReason = "technician_unavailable"
	ReasonEmergency             CancelReason = "emergency"
	ReasonEquipmentIssue        CancelReason = "equipment_issue"
	ReasonWeather               CancelReason = "weather"
	ReasonRescheduled           CancelReason = "rescheduled"
	ReasonDuplicate             CancelReason = "duplicate"
	ReasonOther                 CancelReason = "other"
)

var CancelReasons = []CancelReason{
	ReasonCustomerRequest,
	ReasonCustomerUnavailable,
	ReasonTechnicianUnavailable,
	ReasonEmergency,
	ReasonEquipmentIssue,
	ReasonWeather,
	ReasonRescheduled,
	ReasonDuplicate,
	ReasonOther,
}

func (r CancelReason) Valid() bool {
	for _, c := range CancelReasons {
		if r == c {
			return true
		}
	}
	return false
}

func (r CancelReason) Label() string {
	switch r {
	case ReasonCustomerRequest:
		return "Customer Request"
	case ReasonCustomerUnavailable:
		return "Customer Unavailable"
	case ReasonTechnicianUnavailable:
		return "Technician Unavailable"
	case ReasonEmergency:
		return "Emergency"
	case ReasonEquipmentIssue:
		return "Equipment Issue"
	case ReasonWeather:
		return "Weather Conditions"
	case ReasonRescheduled:
		return "Rescheduled"
	case ReasonDuplicate:
		return "Duplicate Appointment"
	case ReasonOther:
		return "Other"
	}
	return string(r)
}

// CancelOptions are the notification and refund toggles of a cancellation.
type CancelOptions struct {
	NotifyCustomer   bool
	NotifyTechnician bool
	RefundRequired   bool
}
