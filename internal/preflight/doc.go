// Package preflight provides readiness checks for the directories and
// external services the pipeline depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll at startup and logs every failure before it
//     begins serving triggers, so a misconfigured deployment is visible
//     immediately instead of on the first stage trigger.
//   - The CLI "fornax status" command renders the same results as a
//     service-health table.
//
// Checks gated by configuration are skipped when the feature is unset.
package preflight
