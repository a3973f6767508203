// Package retry provides the backoff strategies the supervisor waits on
// between crawl attempts.
//
//	backoff, err := retry.NewStrategy("constant", 30*time.Second, 0)
//	if err := retry.Wait(ctx, backoff.NextDelay(attempt)); err != nil {
//		return err // cancelled while waiting
//	}
package retry
