package usage

import "errors"

// ErrLimitReached indicates the user exhausted their monthly allowance.
var ErrLimitReached = errors.New("limit reached")
