package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dcshock/sdkswitch/xr"
)

func TestParseSettle(t *testing.T) {
	tests := []struct {
		in      string
		want    Settle
		wantErr bool
	}{
		{in: "", want: None},
		{in: "none", want: None},
		{in: "Restart", want: Restart()},
		{in: "ticks:2", want: Ticks(2)},
		{in: " TICKS:1 ", want: Ticks(1)},
		{in: "ticks:0", wantErr: true},
		{in: "ticks:x", wantErr: true},
		{in: "later", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSettle(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSettle_String(t *testing.T) {
	assert.Equal(t, "none", None.String())
	assert.Equal(t, "ticks:3", Ticks(3).String())
	assert.Equal(t, "restart", Restart().String())
}

func TestProfile_Validate(t *testing.T) {
	ok := Step{ID: "a", Action: Noop()}
	tests := []struct {
		name    string
		profile *Profile
		wantErr string
	}{
		{"valid", &Profile{Name: "P", Group: xr.Android, Steps: []Step{ok}}, ""},
		{"no steps is valid", &Profile{Name: "P", Group: xr.Android}, ""},
		{"nil", nil, "nil"},
		{"no name", &Profile{Group: xr.Android}, "name required"},
		{"no group", &Profile{Name: "P"}, "platform group"},
		{"empty id", &Profile{Name: "P", Group: xr.Android, Steps: []Step{{Action: Noop()}}}, "id required"},
		{"dup id", &Profile{Name: "P", Group: xr.Android, Steps: []Step{ok, ok}}, "already used"},
		{"no action", &Profile{Name: "P", Group: xr.Android, Steps: []Step{{ID: "a"}}}, "action required"},
		{"zero ticks", &Profile{Name: "P", Group: xr.Android, Steps: []Step{{ID: "a", Action: Noop(), Settle: Settle{Kind: SettleTicks}}}}, "tick settle"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.profile.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestProfile_StepIndex(t *testing.T) {
	p := &Profile{Steps: []Step{{ID: "a"}, {ID: "b"}}}
	assert.Equal(t, 1, p.StepIndex("b"))
	assert.Equal(t, -1, p.StepIndex("c"))
}

func TestEnv_TrackPendingOutsideRun(t *testing.T) {
	env := &Env{Boundary: newMemBoundary()}
	assert.Error(t, env.TrackPending("pkg"))
	assert.Equal(t, xr.Unknown, env.Group())
}

func TestTap_ReportsUnchanged(t *testing.T) {
	called := false
	out, err := Tap(func(ctx context.Context, env *Env) { called = true })(context.Background(), &Env{})
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, Unchanged, out)
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{nil, KindNone},
		{ErrConcurrentRunRejected, KindConcurrentRunRejected},
		{xr.ErrPackageInstall, KindPackageInstall},
		{xr.ErrFeatureNotFound, KindFeatureNotFound},
		{xr.ErrFeatureSetNotInstalled, KindFeatureSetNotInstalled},
		{&xr.UnfixableError{Group: xr.Android, Issues: []string{"x"}}, KindValidationUnfixable},
		{ErrAborted, KindAborted},
		{errors.New("other"), KindOther},
	}
	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestStatus(t *testing.T) {
	assert.True(t, AwaitingRestart.Active())
	assert.False(t, Completed.Active())
	assert.False(t, Rejected.Active())
	assert.True(t, AwaitingSettle.Suspended())
	assert.Equal(t, "awaiting-settle", AwaitingSettle.String())
}

func TestRunState_Decode(t *testing.T) {
	v, err := encodeState(RunState{RunID: "r", ProfileName: "P", NextStepIndex: 2, PendingPackages: []string{"x"}})
	require.NoError(t, err)
	s, err := decodeState(v)
	require.NoError(t, err)
	assert.Equal(t, 2, s.NextStepIndex)
	assert.Equal(t, []string{"x"}, s.PendingPackages)

	_, err = decodeState("{")
	assert.Error(t, err)
	_, err = decodeState(`{"next_step":-1}`)
	assert.Error(t, err)
	assert.Equal(t, "pipeline.PICO.cursor", CursorKey("PICO"))
	assert.Equal(t, "pkg.com.htc.upm.vive.openxr.pending", PendingKey("com.htc.upm.vive.openxr"))
}
