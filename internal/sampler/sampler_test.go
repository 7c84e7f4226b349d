package sampler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sysglance/sysglance/internal/model"
	"github.com/sysglance/sysglance/internal/source"
)

func testConfig() Config {
	return Config{Interval: time.Second, HistoryCapacity: 5}
}

// newTestSampler wires a Fake source and a deterministic clock that
// advances one second per poll.
func newTestSampler(fake *source.Fake, cfg Config) *Sampler {
	s := New(fake, cfg)
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	n := 0
	s.now = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
	return s
}

func TestStartRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero interval", Config{Interval: 0, HistoryCapacity: 5}},
		{"negative interval", Config{Interval: -time.Second, HistoryCapacity: 5}},
		{"zero capacity", Config{Interval: time.Second, HistoryCapacity: 0}},
		{"negative capacity", Config{Interval: time.Second, HistoryCapacity: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(source.NewFake(), tt.cfg)
			h, err := s.Start(context.Background())
			require.Nil(t, h)
			var cfgErr *ConfigError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestStartFailsWhenSourceDead(t *testing.T) {
	fake := source.NewFake()
	fake.CPUErr = source.ErrUnavailable
	fake.MemErr = source.ErrUnavailable
	fake.ProcErr = source.ErrUnavailable

	s := newTestSampler(fake, testConfig())
	h, err := s.Start(context.Background())
	require.Nil(t, h)
	assert.ErrorIs(t, err, source.ErrUnavailable)
}

func TestCurrentBeforeFirstTickIsZero(t *testing.T) {
	s := newTestSampler(source.NewFake(), testConfig())
	cur := s.Current()
	assert.True(t, cur.Timestamp.IsZero())
	assert.Empty(t, cur.Processes)
	assert.Empty(t, s.History())
}

func TestFirstTickReportsZeroCPU(t *testing.T) {
	fake := source.NewFake()
	fake.ProcList = []source.ProcessRecord{
		{PID: 1, Name: "init", CPUSeconds: 10},
	}
	s := newTestSampler(fake, testConfig())

	sample, err := s.PollOnce(context.Background())
	require.NoError(t, err)

	assert.Zero(t, sample.CPU.TotalPercent)
	require.Len(t, sample.CPU.PerCorePercent, 2)
	assert.Zero(t, sample.CPU.PerCorePercent[0])
	require.Len(t, sample.Processes, 1)
	assert.Zero(t, sample.Processes[0].CPUPercent, "first sighting of a PID must report 0")
}

func TestSecondTickComputesDeltas(t *testing.T) {
	fake := source.NewFake() // busy/total deltas give 50% aggregate
	fake.ProcList = []source.ProcessRecord{
		{PID: 1, Name: "init", CPUSeconds: 1},
		{PID: 2, Name: "worker", CPUSeconds: 5},
	}
	fake.ProcSteps = []float64{0.25, 1.0} // seconds of CPU per 1s wall tick

	s := newTestSampler(fake, testConfig())
	_, err := s.PollOnce(context.Background())
	require.NoError(t, err)

	sample, err := s.PollOnce(context.Background())
	require.NoError(t, err)

	assert.InDelta(t, 50.0, sample.CPU.TotalPercent, 0.001)
	require.Len(t, sample.Processes, 2)
	assert.InDelta(t, 25.0, sample.Processes[0].CPUPercent, 0.001)
	assert.InDelta(t, 100.0, sample.Processes[1].CPUPercent, 0.001)
	for _, p := range sample.Processes {
		assert.GreaterOrEqual(t, p.CPUPercent, 0.0)
	}
}

func TestNewPIDMidRunReportsZeroFirst(t *testing.T) {
	fake := source.NewFake()
	fake.ProcList = []source.ProcessRecord{{PID: 1, Name: "init", CPUSeconds: 1}}
	s := newTestSampler(fake, testConfig())

	_, err := s.PollOnce(context.Background())
	require.NoError(t, err)

	fake.SetProcesses([]source.ProcessRecord{
		{PID: 1, Name: "init", CPUSeconds: 1.5},
		{PID: 99, Name: "newcomer", CPUSeconds: 42},
	})
	sample, err := s.PollOnce(context.Background())
	require.NoError(t, err)

	p, ok := sample.Process(99)
	require.True(t, ok)
	assert.Zero(t, p.CPUPercent)
}

func TestHistoryEvictsOldestAfterCapacity(t *testing.T) {
	// capacity 5, 7 ticks: history holds exactly the 5 most recent points
	// in chronological order and Current matches tick 7.
	fake := source.NewFake()
	s := newTestSampler(fake, testConfig())

	var last model.Sample
	for i := 0; i < 7; i++ {
		var err error
		last, err = s.PollOnce(context.Background())
		require.NoError(t, err)
	}

	hist := s.History()
	require.Len(t, hist, 5)
	for i := 1; i < len(hist); i++ {
		assert.True(t, hist[i].Timestamp.After(hist[i-1].Timestamp))
	}
	assert.Equal(t, last.Reduce(), hist[len(hist)-1])
	assert.Equal(t, last, s.Current())
}

func TestProcessFailureDegradesTick(t *testing.T) {
	fake := source.NewFake()
	fake.DiskList = []model.DiskInfo{{Name: "/dev/sda1", Mountpoint: "/"}}
	fake.ProcErr = errors.New("proc: permission denied")
	s := newTestSampler(fake, testConfig())

	sample, err := s.PollOnce(context.Background())
	require.NoError(t, err, "one failing category must not abort the tick")

	assert.Empty(t, sample.Processes)
	require.NotEmpty(t, sample.Warnings)
	assert.Contains(t, sample.Warnings[0], "processes")
	assert.NotZero(t, sample.Memory.TotalBytes, "independent metrics still collected")
	assert.Len(t, sample.Disks, 1)

	// Recovery: the next tick is clean.
	fake.SetProcessError(nil)
	fake.SetProcesses([]source.ProcessRecord{{PID: 1, Name: "init"}})
	sample, err = s.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sample.Warnings)
	assert.Len(t, sample.Processes, 1)
}

func TestDiskFailureCarriesPreviousList(t *testing.T) {
	fake := source.NewFake()
	fake.DiskList = []model.DiskInfo{{Name: "/dev/sda1", Mountpoint: "/"}}
	s := newTestSampler(fake, testConfig())

	_, err := s.PollOnce(context.Background())
	require.NoError(t, err)
	_, err = s.PollOnce(context.Background())
	require.NoError(t, err)

	fake.DiskErr = errors.New("statfs: denied")
	sample, err := s.PollOnce(context.Background()) // tick 3 refreshes disks
	require.NoError(t, err)
	assert.Len(t, sample.Disks, 1, "previous disk list carried through the failure")
	require.NotEmpty(t, sample.Warnings)
	assert.Contains(t, sample.Warnings[0], "disks")
}

func TestDiskDeniedOnFirstTick(t *testing.T) {
	fake := source.NewFake()
	fake.ProcList = []source.ProcessRecord{{PID: 1, Name: "init"}}
	fake.DiskErr = errors.New("disk enumeration: permission denied")
	s := newTestSampler(fake, testConfig())

	sample, err := s.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sample.Disks)
	assert.NotEmpty(t, sample.Processes)
	require.NotEmpty(t, sample.Warnings)
	assert.Contains(t, sample.Warnings[0], "disks")

	// The next tick still happens on schedule.
	_, err = s.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Len(t, s.History(), 2)
}

func TestDiskListRefreshedEverySecondTick(t *testing.T) {
	fake := source.NewFake()
	fake.DiskList = []model.DiskInfo{{Name: "/dev/sda1", Mountpoint: "/"}}
	s := newTestSampler(fake, testConfig())

	first, err := s.PollOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, first.Disks, 1)

	// The volume set changes; the very next tick still serves the cached
	// list, the one after picks up the change.
	fake.DiskList = append(fake.DiskList, model.DiskInfo{Name: "/dev/sdb1", Mountpoint: "/data"})
	second, err := s.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Len(t, second.Disks, 1)

	third, err := s.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Len(t, third.Disks, 2)
}

func TestTerminateUnknownPIDIsNotFound(t *testing.T) {
	fake := source.NewFake()
	fake.ProcList = []source.ProcessRecord{{PID: 1, Name: "init"}}
	s := newTestSampler(fake, testConfig())

	_, err := s.PollOnce(context.Background())
	require.NoError(t, err)

	err = s.TerminateProcess(context.Background(), 4242)
	assert.True(t, IsNotFound(err))
	assert.Empty(t, fake.KilledPIDs, "no OS call for a PID outside the latest sample")
}

func TestTerminateKnownPID(t *testing.T) {
	fake := source.NewFake()
	fake.ProcList = []source.ProcessRecord{{PID: 7, Name: "victim"}}
	s := newTestSampler(fake, testConfig())

	_, err := s.PollOnce(context.Background())
	require.NoError(t, err)

	require.NoError(t, s.TerminateProcess(context.Background(), 7))
	assert.Equal(t, []int32{7}, fake.KilledPIDs)
}

func TestTerminatePermissionDenied(t *testing.T) {
	fake := source.NewFake()
	fake.ProcList = []source.ProcessRecord{{PID: 7, Name: "root-owned"}}
	fake.KillErr = source.ErrPermissionDenied
	s := newTestSampler(fake, testConfig())

	_, err := s.PollOnce(context.Background())
	require.NoError(t, err)

	err = s.TerminateProcess(context.Background(), 7)
	assert.True(t, IsPermissionDenied(err))
}

func TestEffectiveIntervalPolicy(t *testing.T) {
	s := New(source.NewFake(), testConfig())

	assert.Equal(t, time.Second, s.EffectiveInterval())

	s.SetEnergySaving(true)
	assert.Equal(t, 2*time.Second, s.EffectiveInterval())

	s.SetFocused(false)
	assert.Equal(t, 5*time.Second, s.EffectiveInterval(), "unfocused wins over energy saving")

	s.SetFocused(true)
	assert.Equal(t, 2*time.Second, s.EffectiveInterval())

	s.SetEnergySaving(false)
	assert.Equal(t, time.Second, s.EffectiveInterval())
}

func TestStartStopLifecycle(t *testing.T) {
	fake := source.NewFake()
	fake.ProcList = []source.ProcessRecord{{PID: 1, Name: "init"}}
	s := New(fake, Config{Interval: 5 * time.Millisecond, HistoryCapacity: 100})

	h, err := s.Start(context.Background())
	require.NoError(t, err)

	// Baseline poll already ran; the timer should add more.
	require.Eventually(t, func() bool { return len(h.History()) >= 3 },
		2*time.Second, 5*time.Millisecond)

	h.Stop()
	n := len(h.History())
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, len(h.History()), "no ticks after Stop")
	assert.False(t, h.Current().Timestamp.IsZero())
}

func TestRefreshForcesImmediateTick(t *testing.T) {
	fake := source.NewFake()
	s := New(fake, Config{Interval: time.Hour, HistoryCapacity: 10})

	h, err := s.Start(context.Background())
	require.NoError(t, err)
	defer h.Stop()

	require.Len(t, h.History(), 1, "only the baseline poll so far")
	h.Refresh()
	require.Eventually(t, func() bool { return len(h.History()) == 2 },
		2*time.Second, 5*time.Millisecond)
}

func TestSamplerSessionIDStable(t *testing.T) {
	s := New(source.NewFake(), testConfig())
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", s.SessionID().String())
	assert.Equal(t, s.SessionID(), s.SessionID())
}
