package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"

	"taskman/internal/config"
)

type keyMap struct {
	Quit       key.Binding
	Up         key.Binding
	Down       key.Binding
	Select     key.Binding
	Confirm    key.Binding
	Cancel     key.Binding
	AddTask    key.Binding
	AddSubtask key.Binding
	Edit       key.Binding
	Delete     key.Binding
	NextPanel  key.Binding
	PrevPanel  key.Binding
	AddRelated key.Binding
	Open       key.Binding
	Note       key.Binding
	Search     key.Binding
	Report     key.Binding
	Theme      key.Binding
	Sort       key.Binding
}

func newKeyMap(k config.Keymap) keyMap {
	bind := func(primary, help string, extra ...string) key.Binding {
		return key.NewBinding(
			key.WithKeys(append([]string{primary}, extra...)...),
			key.WithHelp(keyLabel(primary), help),
		)
	}
	return keyMap{
		Quit:       bind(k.Quit, "quit", "ctrl+c"),
		Up:         bind(k.Up, "up", "up"),
		Down:       bind(k.Down, "down", "down"),
		Select:     bind(k.Select, "select"),
		Confirm:    bind(k.Confirm, "open"),
		Cancel:     bind(k.Cancel, "cancel"),
		AddTask:    bind(k.AddTask, "task"),
		AddSubtask: bind(k.AddSubtask, "subtask"),
		Edit:       bind(k.Edit, "edit"),
		Delete:     bind(k.Delete, "delete"),
		NextPanel:  bind(k.NextPanel, "panel"),
		PrevPanel:  bind(k.PrevPanel, "panel"),
		AddRelated: bind(k.AddRelated, "attach"),
		Open:       bind(k.Open, "browser"),
		Note:       bind(k.Note, "note"),
		Search:     bind(k.Search, "search"),
		Report:     bind(k.Report, "report"),
		Theme:      bind(k.Theme, "theme"),
		Sort:       bind(k.Sort, "sort"),
	}
}

func keyLabel(k string) string {
	if k == " " {
		return "space"
	}
	return k
}

func (km keyMap) helpLine() string {
	bindings := []key.Binding{
		km.Up, km.Down, km.Select, km.NextPanel, km.AddTask, km.AddSubtask, km.AddRelated,
		km.Note, km.Edit, km.Delete, km.Confirm, km.Open, km.Search, km.Report, km.Sort,
		km.Theme, km.Quit,
	}
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return strings.Join(parts, " • ")
}
