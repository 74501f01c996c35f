// Package sky holds the spherical geometry used by the planner: unit vectors
// for equatorial coordinates, the nested HEALPix pixelisation backing the
// probability grid, telescope footprints and full-sky tessellations.
//
// All angles crossing the package boundary are in degrees. Right ascension is
// normalised to [0, 360).
package sky
