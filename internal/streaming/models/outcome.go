package models

import "github.com/google/uuid"

// DeliveryOutcome records the result of exactly one delivery attempt against
// one destination. Outcomes are ephemeral: the dispatcher hands them to the
// synchronous caller and logs failures, nothing persists them.
type DeliveryOutcome struct {
	DestinationID   uuid.UUID
	DestinationName string
	Kind            DestinationKind
	Success         bool
	// StatusCode is the HTTP status when the transport is HTTP-level,
	// zero otherwise.
	StatusCode int
	Err        error
}

// FailedOutcome builds a failure outcome for a destination.
func FailedOutcome(d Destination, statusCode int, err error) DeliveryOutcome {
	return DeliveryOutcome{
		DestinationID:   d.ID,
		DestinationName: d.Name,
		Kind:            d.Kind,
		Success:         false,
		StatusCode:      statusCode,
		Err:             err,
	}
}

// SuccessfulOutcome builds a success outcome for a destination.
func SuccessfulOutcome(d Destination, statusCode int) DeliveryOutcome {
	return DeliveryOutcome{
		DestinationID:   d.ID,
		DestinationName: d.Name,
		Kind:            d.Kind,
		Success:         true,
		StatusCode:      statusCode,
	}
}
