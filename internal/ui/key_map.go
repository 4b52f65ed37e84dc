package ui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	move    key.Binding
	enter   key.Binding
	deploy  key.Binding
	back    key.Binding
	yes     key.Binding
	no      key.Binding
	restart key.Binding
	quit    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		// move is only shown in help; the lists own their navigation keys.
		move:    key.NewBinding(key.WithKeys("up", "down", "k", "j"), key.WithHelp("↑↓/jk", "move")),
		enter:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "preview")),
		deploy:  key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "deploy")),
		back:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		yes:     key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "create playlist")),
		no:      key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "cancel")),
		restart: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "clusters")),
		quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// viewKeys is the [help.KeyMap] of a single view.
type viewKeys []key.Binding

func (v viewKeys) ShortHelp() []key.Binding  { return v }
func (v viewKeys) FullHelp() [][]key.Binding { return [][]key.Binding{v} }

// forView returns the bindings that do something in view.
func (k keyMap) forView(view ViewState) viewKeys {
	switch view {
	case ClusterListView:
		return viewKeys{k.move, k.enter, k.deploy, k.quit}
	case TrackListView:
		return viewKeys{k.move, k.deploy, k.back, k.quit}
	case ConfirmView:
		return viewKeys{k.yes, k.no}
	case ResultView:
		return viewKeys{k.restart, k.quit}
	default:
		return nil
	}
}
