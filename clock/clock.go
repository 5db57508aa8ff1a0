/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package clock provides monotonic nanosecond timestamps for the detection
// engine. All window and expiry arithmetic in the daemon is carried out in
// this domain so that wall clock steps cannot reorder or expire state.
package clock

import (
	"time"
)

var base = time.Now()

// Now returns nanoseconds elapsed since process start on the monotonic
// clock. The epoch is arbitrary; values are only ever compared or
// differenced against each other.
func Now() int64 {
	return int64(time.Since(base))
}
