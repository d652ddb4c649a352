// Package viz renders qshpost results in the terminal.
//
//   - [BracketChart]: bisection bracket width per step
//   - [ProgressModel]: Bubble Tea progress view for long traces
//   - [Summary]: lipgloss key/value panel for command results
package viz
