// Package tui is the interactive session picker.
//
// The picker lists sessions grouped by repository and maps a selection
// to an action for the cmd layer to carry out:
//
//	result, err := tui.RunPicker(entries)
//	switch result.Action {
//	case tui.ActionAttach:
//	    // attach to result.Session (resuming it first if stopped)
//	case tui.ActionNew:
//	    // guide the user to `skybox up`
//	case tui.ActionRemove:
//	    // remove result.Session
//	case tui.ActionQuit:
//	}
//
// Entries carry the already-probed health status and uptime; the picker
// never talks to a backend itself. Keyboard: j/k or arrows (group
// headers auto-skipped), Enter attach, n new, d remove, / filter,
// q quit. SimplePicker renders the same list as plain text for
// non-interactive terminals.
//
// Built on the Charm stack: bubbletea, bubbles/list, lipgloss.
package tui
