package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	cases := map[string]Status{
		"pending":                  StatusPending,
		"Waiting for approval":     StatusWaitingForApproval,
		"  WAITING FOR APPROVAL  ": StatusWaitingForApproval,
		"Approved":                 StatusApproved,
		"completed":                StatusCompleted,
	}
	for raw, want := range cases {
		got, err := ParseStatus(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	for _, raw := range []string{"", "done", "waiting", "waiting_for_approval"} {
		_, err := ParseStatus(raw)
		assert.ErrorIs(t, err, ErrInvalidStatus, raw)
	}
}

func TestParsePriorityAndRole(t *testing.T) {
	p, err := ParsePriority(" Medium ")
	require.NoError(t, err)
	assert.Equal(t, PriorityMedium, p)

	_, err = ParsePriority("urgent")
	assert.ErrorIs(t, err, ErrInvalidPriority)

	r, err := ParseRole("")
	require.NoError(t, err)
	assert.Equal(t, RoleUser, r)

	r, err = ParseRole("Supervisor")
	require.NoError(t, err)
	assert.Equal(t, RoleSupervisor, r)

	_, err = ParseRole("admin")
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestTaskHelpers(t *testing.T) {
	by := "boss"
	at := time.Now()
	task := &Task{
		CreatedBy:  "c",
		AssignedTo: "a",
		Status:     StatusApproved,
		Documents:  []Attachment{{ID: "d1"}},
		ApprovedBy: &by,
		ApprovedAt: &at,
	}

	assert.True(t, task.IsParticipant("c"))
	assert.True(t, task.IsParticipant("a"))
	assert.False(t, task.IsParticipant("x"))
	assert.False(t, task.IsParticipant(""))
	assert.True(t, task.ApprovalConsistent())

	clone := task.Clone()
	clone.Documents[0].ID = "changed"
	*clone.ApprovedBy = "someone"
	assert.Equal(t, "d1", task.Documents[0].ID)
	assert.Equal(t, "boss", *task.ApprovedBy)

	task.Status = StatusPending
	assert.False(t, task.ApprovalConsistent())
	task.ApprovedBy, task.ApprovedAt = nil, nil
	assert.True(t, task.ApprovalConsistent())
}

func TestErrorMatching(t *testing.T) {
	wrapped := WrapError(ErrCodeNotFound, ErrTaskNotFound.Message, assert.AnError)
	assert.ErrorIs(t, wrapped, ErrTaskNotFound)
	assert.ErrorIs(t, wrapped, assert.AnError)
	assert.NotErrorIs(t, wrapped, ErrUserNotFound)
	assert.True(t, IsDomainError(wrapped, ErrCodeNotFound))
	assert.False(t, IsDomainError(assert.AnError, ErrCodeNotFound))
	assert.Equal(t, "task not found: "+assert.AnError.Error(), wrapped.Error())
}
