package stats

// Mock is a no-op Tracker for unit tests that don't care about metrics,
// mirroring the teacher's cluster/mock.StatsTracker shape.
type Mock struct{}

var _ Tracker = (*Mock)(nil)

func (Mock) Inc(string)            {}
func (Mock) Add(string, float64)   {}
func (Mock) Observe(string, float64) {}
