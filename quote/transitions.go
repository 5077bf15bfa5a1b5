package quote

var transitions = map[Status][]Status{
	StatusRequested: {StatusRequested, StatusPending},
	StatusPending:   {StatusPending, StatusApproved, StatusRejected, StatusRequested},
	StatusRejected:  {StatusPending, StatusRequested},
	StatusApproved:  {StatusApproved},
}

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether a quote in from may move to to. Approved is
// absorbing; a rejected quote may only be re-bid or re-requested.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// SubmissionAction picks the audit action for a bid on a quote whose prior
// status was prior.
func SubmissionAction(prior Status) Action {
	switch prior {
	case StatusPending, StatusRejected:
		return ActionResubmitted
	default:
		return ActionUpdated
	}
}
