// Package preflight provides readiness checks for the capture devices,
// filesystem paths and registry endpoint that petscan depends on.
//
// These checks run in two contexts:
//   - The station runs RunAll at startup and logs every failure so the operator
//     sees a missing camera before the first scan.
//   - The CLI "petscan status" command renders the same results as a table.
//
// Checks never fail hard; each returns a Result with a human-readable detail.
package preflight
