// Package campground holds the campground domain model: the raw attribute
// records the upstream search returns, the typed entity persisted by the
// stores, and the coercion rules that map one onto the other.
package campground
