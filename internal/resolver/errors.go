package resolver

import "github.com/rotisserie/eris"

// Sentinel errors surfaced to the request layer. Both carry airport and
// stage context via eris wrapping at the point of failure.
var (
	// ErrUnknownAirport means the query referenced an airport code with
	// no registered coordinate or state.
	ErrUnknownAirport = eris.New("no such airport")

	// ErrNoData means neither footprint source has coverage for the
	// airport's region. A single missing source is recovered from; both
	// missing fails the query.
	ErrNoData = eris.New("no building data for this region")
)
