// Package crawler walks a paginated listing page by page, fetching the
// detail of every record the checkpoint does not hold yet and flushing the
// checkpoint after each page.
//
// A Session owns its Cursor and Store for one pass. It never retries:
// every error is returned to the caller, which decides whether to start a
// new session. Because the checkpoint is flushed after each page and
// consulted before each detail fetch, a new session skips everything
// earlier sessions saved.
package crawler
