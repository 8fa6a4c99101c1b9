package validator

import (
	"errors"
	"io"
	"strings"
	"testing"

	conflicterrors "roomdesk/internal/conflicts/errors"
	"roomdesk/pkg/logger"
	"roomdesk/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolutionValidator_Validate(t *testing.T) {
	v := NewResolutionValidator(logger.New(logger.Config{Output: io.Discard}))

	tests := []struct {
		name      string
		cmd       *model.ResolutionCommand
		wantField string
	}{
		{
			name: "valid approval",
			cmd: &model.ResolutionCommand{
				ConflictID: "c-1", Action: model.ActionApprove, ChosenBookingID: "b-1",
				RejectionReason: "Room needed for board meeting",
			},
		},
		{
			name: "valid reject all",
			cmd: &model.ResolutionCommand{
				ConflictID: "c-1", Action: model.ActionRejectAll, RejectionReason: "Closed",
			},
		},
		{
			name:      "nil command",
			cmd:       nil,
			wantField: "command",
		},
		{
			name: "missing conflict id",
			cmd: &model.ResolutionCommand{
				Action: model.ActionRejectAll, RejectionReason: "Closed",
			},
			wantField: "conflict_id",
		},
		{
			name: "unknown action",
			cmd: &model.ResolutionCommand{
				ConflictID: "c-1", Action: "approveAll", RejectionReason: "Closed",
			},
			wantField: "action",
		},
		{
			name: "approve without chosen booking",
			cmd: &model.ResolutionCommand{
				ConflictID: "c-1", Action: model.ActionApprove, RejectionReason: "Room needed",
			},
			wantField: "chosen_booking_id",
		},
		{
			name: "reject all with chosen booking",
			cmd: &model.ResolutionCommand{
				ConflictID: "c-1", Action: model.ActionRejectAll, ChosenBookingID: "b-1", RejectionReason: "Closed",
			},
			wantField: "chosen_booking_id",
		},
		{
			name: "blank reason",
			cmd: &model.ResolutionCommand{
				ConflictID: "c-1", Action: model.ActionRejectAll, RejectionReason: "   ",
			},
			wantField: "rejection_reason",
		},
		{
			name: "missing reason",
			cmd: &model.ResolutionCommand{
				ConflictID: "c-1", Action: model.ActionRejectAll,
			},
			wantField: "rejection_reason",
		},
		{
			name: "reason too long",
			cmd: &model.ResolutionCommand{
				ConflictID: "c-1", Action: model.ActionRejectAll, RejectionReason: strings.Repeat("x", 1001),
			},
			wantField: "rejection_reason",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.cmd)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.True(t, errors.Is(err, conflicterrors.ErrValidation))
			var rErr *conflicterrors.ResolutionError
			require.True(t, errors.As(err, &rErr))
			assert.Equal(t, tt.wantField, rErr.Field)
		})
	}
}
