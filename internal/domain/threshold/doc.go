// Package threshold classifies sensor values into named bands.
//
// A Band holds the inclusive "good" range for one sensor kind; values below
// it are "low", values above it are "high". Exactly one band name applies to
// every reading.
package threshold
