package domain

// Intent is the closed set of supported chat intents. The unexported marker
// method keeps implementations inside this package: AllStatus, SingleStatus
// and Unknown.
type Intent interface {
	intent()
	// Name is a stable label used in logs and metrics.
	Name() string
}

// AllStatus asks for the connectivity of every sensor.
type AllStatus struct{}

// SingleStatus asks for the connectivity of one sensor.
type SingleStatus struct {
	SensorID string
}

// Unknown is any message no rule matched.
type Unknown struct{}

func (AllStatus) intent()    {}
func (SingleStatus) intent() {}
func (Unknown) intent()      {}

func (AllStatus) Name() string    { return "all_status" }
func (SingleStatus) Name() string { return "single_status" }
func (Unknown) Name() string      { return "unknown" }
