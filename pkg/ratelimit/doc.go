// Package ratelimit paces requests made to the upstream hosts.
//
// FixedDelay spaces out consecutive calls (the character API is queried with
// a short gap between requests). ThresholdPause adds a pause after each item
// of a large download batch:
//
//	pause := ratelimit.ThresholdPause{Delay: 100 * time.Millisecond, Threshold: 10}
//	for _, job := range jobs {
//	    download(job)
//	    if err := pause.After(ctx, len(jobs)); err != nil {
//	        return err
//	    }
//	}
package ratelimit
