// Package scheduler sequences allocated tiles into timed exposures per
// telescope. It is greedy and slew-aware: each telescope repeatedly picks the
// best candidate it can start right away, slews, exposes, and re-filters its
// queue until its budget or candidates run out. Telescopes advance in
// lockstep so that a shared reservation table gives reproducible outcomes.
package scheduler
