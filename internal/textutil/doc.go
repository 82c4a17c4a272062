// Package textutil provides display helpers shared by the CLI and the scan
// station: species and sex labels, breed title casing, similarity percentages,
// and phone digit extraction.
package textutil
