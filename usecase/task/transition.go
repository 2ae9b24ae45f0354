package task

import (
	"time"

	"github.com/fastygo/taskdesk/domain"
)

// Apply moves task to target on behalf of caller. The task is mutated only
// when the transition is allowed.
//
// Rules:
//   - waiting for approval: caller must be the creator or the assignee, and the
//     task must still be pending.
//   - approved: caller must be a supervisor; any source state is accepted and
//     the approval stamp is (re)written.
//   - pending and completed are recognised states but cannot be requested.
func Apply(task *domain.Task, target domain.Status, caller domain.Caller, now time.Time) error {
	if task == nil {
		return domain.ErrTaskNotFound
	}

	switch target {
	case domain.StatusWaitingForApproval:
		if !task.IsParticipant(caller.ID) {
			return domain.ErrRequestApproval
		}
		if task.Status != domain.StatusPending {
			return domain.ErrInvalidTransition
		}
		task.Status = target

	case domain.StatusApproved:
		if !caller.IsSupervisor() {
			return domain.ErrApprove
		}
		approver := caller.ID
		approvedAt := now
		task.Status = target
		task.ApprovedBy = &approver
		task.ApprovedAt = &approvedAt

	case domain.StatusPending, domain.StatusCompleted:
		return domain.ErrStatusUpdate

	default:
		return domain.ErrInvalidStatus
	}
	return nil
}
