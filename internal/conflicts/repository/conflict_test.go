package repository

import (
	"errors"
	"fmt"
	"testing"

	"roomdesk/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pendingBookings(n int) []*model.Booking {
	out := make([]*model.Booking, n)
	for i := range out {
		out[i] = &model.Booking{ID: fmt.Sprintf("b%d", i), Status: model.StatusPending}
	}
	return out
}

func TestCheckPendingScan(t *testing.T) {
	tests := []struct {
		name    string
		count   int
		wantErr bool
	}{
		{name: "empty", count: 0},
		{name: "below limit", count: 2},
		{name: "exactly at limit", count: 3},
		{name: "one past limit", count: 4, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := checkPendingScan(pendingBookings(tt.count), 3)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrTooManyPending))
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tt.count)
		})
	}
}
