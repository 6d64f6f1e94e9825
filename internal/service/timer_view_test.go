package service

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"timetrack/backend/internal/model"
)

func TestTimerViewJSON(t *testing.T) {
	project := "proj-7"
	timer := model.NewTimer("timer-1", "user-1", model.TimerMeta{
		ProjectID: &project,
		Note:      "write docs",
		Billable:  true,
	}, epoch)
	require.NoError(t, timer.Pause(epoch.Add(10*time.Second)))
	require.NoError(t, timer.Resume(epoch.Add(15*time.Second)))

	svc := &TimerService{}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	running, err := json.MarshalIndent(svc.toTimerView(timer, epoch.Add(25*time.Second)), "", "  ")
	require.NoError(t, err)
	g.Assert(t, "timer_view_running", running)

	require.NoError(t, timer.Complete(epoch.Add(40*time.Second), nil))
	completed, err := json.MarshalIndent(svc.toTimerView(timer, epoch.Add(time.Minute)), "", "  ")
	require.NoError(t, err)
	g.Assert(t, "timer_view_completed", completed)
}
