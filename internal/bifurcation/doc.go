// Package bifurcation brackets the radial position at which one magnetic
// axis gives way to another.
//
// Given two reference axes, the first at smaller s and smaller R(ζ=0), the
// locator bisects the interval of s between their starting points. At each
// midpoint it traces a short field line from (s, 0, 0) and takes the largest
// R over the line's Poincaré samples as a proxy for the outboard extent of
// the surface it lies on. A midpoint whose surface reaches the second axis
// belongs to the second family and becomes the new right bound; otherwise it
// becomes the new left bound.
//
// The max-R proxy is only meaningful for well separated references with no
// other topological transition between them. A midpoint that falls inside
// the first axis is reported as a [TopologyError].
package bifurcation
