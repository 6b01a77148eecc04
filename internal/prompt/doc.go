// Package prompt implements the interactive pieces of envrebuild: reading
// a 1-based index from the user, yes/no confirmations, and showing an
// environment file in a pager.
//
// Invalid index input is never silently ignored. SelectIndex classifies
// each line with model.ParseSelection, explains what was wrong, and asks
// again until it gets a valid entry or input ends.
package prompt
