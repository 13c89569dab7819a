package timeutil

import "time"

// Now is swapped in tests that need to move the clock.
var Now = time.Now

func NowUnix() int64 {
	return Now().Unix()
}
