package task

import (
	"context"

	"github.com/fastygo/taskdesk/domain"
)

// View is a task with its user references resolved to display names.
type View struct {
	domain.Task
	CreatedByName  string `json:"createdByName,omitempty"`
	AssignedToName string `json:"assignedToName,omitempty"`
	ApprovedByName string `json:"approvedByName,omitempty"`
}

// resolve batch-loads every user referenced by tasks and zips their names
// into views. Unknown references resolve to an empty name.
func (uc *UseCase) resolve(ctx context.Context, tasks []domain.Task) ([]View, error) {
	seen := make(map[string]struct{})
	ids := make([]string, 0, len(tasks)*2)
	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for i := range tasks {
		add(tasks[i].CreatedBy)
		add(tasks[i].AssignedTo)
		if tasks[i].ApprovedBy != nil {
			add(*tasks[i].ApprovedBy)
		}
	}

	users, err := uc.users.GetMany(ctx, ids)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "failed to resolve users", err)
	}
	name := func(id string) string {
		if u, ok := users[id]; ok {
			return u.Name
		}
		return ""
	}

	views := make([]View, 0, len(tasks))
	for _, t := range tasks {
		v := View{
			Task:           t,
			CreatedByName:  name(t.CreatedBy),
			AssignedToName: name(t.AssignedTo),
		}
		if t.ApprovedBy != nil {
			v.ApprovedByName = name(*t.ApprovedBy)
		}
		views = append(views, v)
	}
	return views, nil
}

func (uc *UseCase) resolveOne(ctx context.Context, task *domain.Task) (*View, error) {
	views, err := uc.resolve(ctx, []domain.Task{*task})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}
