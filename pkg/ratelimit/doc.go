// Package ratelimit paces actions against the remote catalog.
//
// The browser source waits on a Limiter before opening each record detail
// view, so a configured requests-per-minute ceiling bounds how hard a crawl
// hits the site. A ceiling of zero yields Unlimited.
//
//	limiter := ratelimit.PerMinute(cfg.RateLimit.RequestsPerMinute)
//	if err := limiter.Wait(ctx); err != nil {
//		return err
//	}
package ratelimit
