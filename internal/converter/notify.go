package converter

// ChangeType identifies the controller operation behind a Change.
type ChangeType string

const (
	ChangeAdded     ChangeType = "added"
	ChangeRemoved   ChangeType = "removed"
	ChangeValidated ChangeType = "validated"
	ChangeInserted  ChangeType = "inserted"
	ChangeRenamed   ChangeType = "renamed"

	ChangeReconfigured ChangeType = "reconfigured"
)

// Change describes one mutation of a controller's plugin list.
type Change struct {
	Type ChangeType `json:"type"`

	// Plugin is the affected plugin's name after the change. Empty for
	// validation, which may touch several plugins.
	Plugin string `json:"plugin,omitempty"`
	Kind   string `json:"kind,omitempty"`

	// Previous holds the old name of a renamed plugin.
	Previous string `json:"previous,omitempty"`

	// Count is the number of plugins after the change.
	Count int `json:"count"`
}

// Notifier is told about every change to a controller's plugin list.
// Persistence hooks implement it; the controller itself never stores anything.
// Notifiers run synchronously on the caller's goroutine and must not mutate
// the controller.
type Notifier interface {
	NotifyChanged(c *Controller, change Change)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(c *Controller, change Change)

// NotifyChanged calls f(c, change).
func (f NotifierFunc) NotifyChanged(c *Controller, change Change) {
	f(c, change)
}

// Notifiers fans a change out to several notifiers in order.
type Notifiers []Notifier

// NotifyChanged forwards change to every non-nil notifier.
func (n Notifiers) NotifyChanged(c *Controller, change Change) {
	for _, notifier := range n {
		if notifier != nil {
			notifier.NotifyChanged(c, change)
		}
	}
}
