package gate

// Action describes the kind of operation a user wants to perform.
type Action string

const (
	// ActionManage is the wildcard action: a rule granting or denying manage
	// applies to every requested action.
	ActionManage            Action = "manage"
	ActionCreate            Action = "create"
	ActionGet               Action = "get"
	ActionUpdate            Action = "update"
	ActionDelete            Action = "delete"
	ActionTransferOwnership Action = "transfer_ownership"
)

// Actions is the set of actions a rule applies to.
type Actions []Action

// Covers reports whether the set applies to the requested action.
func (as Actions) Covers(requested Action) bool {
	for _, a := range as {
		if a == ActionManage || a == requested {
			return true
		}
	}
	return false
}
