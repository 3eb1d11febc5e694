package core

import "slices"

// Roster is the best-effort list of display names believed online in one channel.
// It is not safe for concurrent use; the owning Channel guards it.
//
// With unique unset it behaves as a plain list and repeated logon or userping
// traffic appends duplicates. With unique set an already present name is not added again.
type Roster struct {
	names  []string
	unique bool
}

// NewRoster creates an empty roster.
func NewRoster(unique bool) *Roster {
	return &Roster{unique: unique}
}

// Add appends name. It returns false when unique is set and the name is present.
func (r *Roster) Add(name string) bool {
	if r.unique && r.Contains(name) {
		return false
	}
	r.names = append(r.names, name)
	return true
}

// Remove drops the first entry equal to name. Unknown names are a no-op.
func (r *Roster) Remove(name string) bool {
	i := slices.Index(r.names, name)
	if i < 0 {
		return false
	}
	r.names = slices.Delete(r.names, i, i+1)
	return true
}

// Rename replaces the first entry of oldName with newName, appending newName when
// oldName is unknown.
func (r *Roster) Rename(oldName, newName string) {
	r.Remove(oldName)
	r.Add(newName)
}

// Contains reports exact, case-sensitive membership.
func (r *Roster) Contains(name string) bool {
	return slices.Contains(r.names, name)
}

// Names returns a copy in insertion order.
func (r *Roster) Names() []string {
	return slices.Clone(r.names)
}

// Len returns the number of entries, duplicates included.
func (r *Roster) Len() int {
	return len(r.names)
}

// Clear empties the roster.
func (r *Roster) Clear() {
	r.names = nil
}
