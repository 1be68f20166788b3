// Package crawler drives a resumable, grid-partitioned crawl of a paginated
// search endpoint.
//
// A Driver walks the cells of a geo.Grid in column-major order, pages through
// each cell with a PageFetcher, and persists a Cursor through a
// CheckpointStore before every page request so an interrupted run resumes at
// the page it was about to fetch. When the whole grid has been visited the
// cursor is reset, the accumulated records are deduplicated, and the result
// is handed to a Sink.
package crawler
