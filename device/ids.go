package device

import (
	"errors"

	"github.com/frostsnap/core/wire"
)

// ErrShareIndexOutOfRange is returned when a wire.ShareIndex doesn't fit
// the small-integer participant numbering frost.Participant expects.
var ErrShareIndexOutOfRange = errors.New("device: share index is not a small sequential participant number")

// shareIndexToInt recovers the sequential participant number a
// wire.ShareIndex was built from via wire.ShareIndexFromUint. DKG in this
// module always numbers participants 1..n this way, rather than letting
// coordinators pick arbitrary scalars, so frost.Participant's int-only
// identifiers never need generalizing.
func shareIndexToInt(idx wire.ShareIndex) (int, error) {
	n, ok := wire.ShareIndexToUint(idx)
	if !ok || n == 0 {
		return 0, ErrShareIndexOutOfRange
	}
	return int(n), nil
}
