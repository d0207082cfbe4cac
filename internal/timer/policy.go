package timer

import "tasktimer/internal/db/models"

// CanOperate reports whether actor may drive the timer of task: the assignee
// always may, elevated roles may operate any task. Unassigned tasks are
// reserved to elevated roles.
func CanOperate(actor models.Actor, task *models.Task) bool {
	return task.IsAssignedTo(actor.UserID) || actor.Role.IsElevated()
}
