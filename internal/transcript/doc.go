// Package transcript maintains the ordered live transcript assembled from
// fragments arriving over the transcript channel.
package transcript
