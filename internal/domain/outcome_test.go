package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOutcomeConstructors(t *testing.T) {
	ok := OK("a", "/a.mp4", 10)
	assert.True(t, ok.Succeeded())
	assert.Equal(t, OutcomeOK, ok.Kind)

	reason := errors.New("reset")
	retry := Retryable("a", reason)
	assert.False(t, retry.Succeeded())
	assert.Equal(t, OutcomeRetryable, retry.Kind)
	assert.Equal(t, reason, retry.Reason)

	assert.Equal(t, OutcomeFatal, Fatal("a", reason).Kind)
}

func TestRetryTicketReady(t *testing.T) {
	now := time.Now()
	ticket := RetryTicket{VideoID: "a", NotBefore: now.Add(time.Second)}

	assert.False(t, ticket.Ready(now))
	assert.True(t, ticket.Ready(now.Add(time.Second)))
	assert.True(t, ticket.Ready(now.Add(time.Minute)))
}

func TestTransferState(t *testing.T) {
	state := &TransferState{State: StateInit}
	assert.False(t, state.Incomplete(10))

	state.SetExpectedTotal(100)
	assert.True(t, state.Incomplete(99))
	assert.False(t, state.Incomplete(100))

	state.Transition(StateStreaming)
	assert.False(t, state.IsTerminal())
	state.Transition(StateComplete)
	assert.True(t, state.IsTerminal())
	state.Transition(StateFatal)
	assert.True(t, state.IsTerminal())
}
