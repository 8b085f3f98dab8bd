package plugin

import "github.com/google/uuid"

// Base carries the bookkeeping every plugin needs. Concrete plugins embed
// *Base and implement IndexesForDNANames and Apply themselves.
type Base struct {
	id    string
	name  string
	kind  string
	pass  ApplyPass
	owner Owner
}

// NewBase creates a Base with a fresh ID. The name starts out as the kind;
// controllers replace it with a unique name when the plugin is added.
func NewBase(kind string, pass ApplyPass) *Base {
	if !pass.IsValid() {
		pass = PassStandard
	}
	return &Base{
		id:   uuid.NewString(),
		name: kind,
		kind: kind,
		pass: pass,
	}
}

func (b *Base) ID() string           { return b.id }
func (b *Base) SetID(id string)      { b.id = id }
func (b *Base) Name() string         { return b.name }
func (b *Base) SetName(name string)  { b.name = name }
func (b *Base) Kind() string         { return b.kind }
func (b *Base) ApplyPass() ApplyPass { return b.pass }
func (b *Base) Owner() Owner         { return b.owner }
func (b *Base) SetOwner(owner Owner) { b.owner = owner }

// SetApplyPass changes the pass. Unknown passes are ignored.
func (b *Base) SetApplyPass(pass ApplyPass) {
	if pass.IsValid() {
		b.pass = pass
	}
}
