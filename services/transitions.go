package services

import (
	"slices"

	"github.com/princinho/escolaportal/models"
)

var (
	ticketTransitions = map[models.RequestStatus][]models.RequestStatus{
		models.StatusPending:    {models.StatusApproved, models.StatusRejected, models.StatusInProgress, models.StatusCanceled},
		models.StatusApproved:   {models.StatusInProgress, models.StatusCompleted, models.StatusCanceled},
		models.StatusInProgress: {models.StatusCompleted, models.StatusCanceled},
		models.StatusRejected:   {},
		models.StatusCompleted:  {},
		models.StatusCanceled:   {},
	}

	purchaseTransitions = map[models.RequestStatus][]models.RequestStatus{
		models.StatusPending:         {models.StatusAnalyzing, models.StatusCanceled},
		models.StatusAnalyzing:       {models.StatusApproved, models.StatusRejected, models.StatusCanceled},
		models.StatusApproved:        {models.StatusWaitingDelivery, models.StatusCanceled},
		models.StatusWaitingDelivery: {models.StatusDelivered, models.StatusCanceled},
		models.StatusDelivered:       {models.StatusCompleted},
		models.StatusRejected:        {},
		models.StatusCompleted:       {},
		models.StatusCanceled:        {},
	}
)

func transitionsFor(t models.RequestType) map[models.RequestStatus][]models.RequestStatus {
	if t == models.RequestTypePurchase {
		return purchaseTransitions
	}
	return ticketTransitions
}

// KnownStatus reports whether s is part of t's status set.
func KnownStatus(t models.RequestType, s models.RequestStatus) bool {
	_, ok := transitionsFor(t)[s]
	return ok
}

// NextStatuses lists the statuses reachable from s in one step.
func NextStatuses(t models.RequestType, s models.RequestStatus) []models.RequestStatus {
	return slices.Clone(transitionsFor(t)[s])
}

func CanTransition(t models.RequestType, from, to models.RequestStatus) bool {
	return slices.Contains(transitionsFor(t)[from], to)
}
