// Package stats polls the processor metrics endpoint and prints a summary.
package stats
