package policy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransition_ExhaustiveTable(t *testing.T) {
	legal := map[[2]Status]bool{
		{StatusDraft, StatusActive}:                 true,
		{StatusActive, StatusPendingRenewal}:        true,
		{StatusActive, StatusCancelled}:             true,
		{StatusActive, StatusExpired}:               true,
		{StatusPendingRenewal, StatusRenewed}:       true,
		{StatusPendingRenewal, StatusExpired}:       true,
		{StatusPendingRenewal, StatusCancelled}:     true,
		{StatusRenewed, StatusActive}:               true,
	}

	for _, from := range AllStatuses() {
		for _, to := range AllStatuses() {
			err := Transition(from, to)
			if from == to || legal[[2]Status{from, to}] {
				assert.NoError(t, err, "%s -> %s should be allowed", from, to)
				continue
			}
			var invalid *InvalidTransitionError
			require.ErrorAs(t, err, &invalid, "%s -> %s should be rejected", from, to)
			assert.Equal(t, from, invalid.From)
			assert.Equal(t, to, invalid.To)
			assert.Equal(t, AllowedTransitions(from), invalid.Allowed)
			assert.True(t, errors.Is(err, ErrInvalidTransition))
		}
	}
}

func TestTransition_TerminalStatesHaveNoExits(t *testing.T) {
	for _, s := range []Status{StatusExpired, StatusCancelled} {
		assert.True(t, s.IsTerminal())
		assert.Empty(t, AllowedTransitions(s))
		err := Transition(s, StatusActive)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "final status")
	}
}

func TestInvalidTransitionError_MessageListsAllowed(t *testing.T) {
	err := Transition(StatusDraft, StatusRenewed)
	require.Error(t, err)
	assert.Equal(t, "cannot change policy status from draft to renewed (allowed: active)", err.Error())
}

func TestAllowedTransitions_ReturnsCopy(t *testing.T) {
	allowed := AllowedTransitions(StatusActive)
	allowed[0] = StatusDraft
	assert.Equal(t, StatusPendingRenewal, AllowedTransitions(StatusActive)[0])
}

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus(" Pending_Renewal ")
	require.NoError(t, err)
	assert.Equal(t, StatusPendingRenewal, st)

	_, err = ParseStatus("lapsed")
	assert.ErrorIs(t, err, ErrUnknownStatus)
}
