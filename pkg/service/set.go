package service

import (
	"errors"
	"strings"

	"github.com/sunlightlinux/secinit/pkg/process"
)

// Set holds every unit known to the supervisor and maps reaped processes
// back to the unit that spawned them.
type Set struct {
	units  map[string]*Unit
	order  []*Unit
	logger Logger
}

// NewSet creates an empty Set.
func NewSet(logger Logger) *Set {
	return &Set{
		units:  make(map[string]*Unit),
		logger: logger,
	}
}

// Add registers a unit. A unit with the same name is replaced.
func (s *Set) Add(u *Unit) {
	if old, ok := s.units[u.Name()]; ok {
		for i, o := range s.order {
			if o == old {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
	s.units[u.Name()] = u
	s.order = append(s.order, u)
}

// Find returns the unit with the given name, or nil.
func (s *Set) Find(name string) *Unit {
	return s.units[name]
}

// Load loads a registered unit by name.
func (s *Set) Load(name string) error {
	u := s.Find(name)
	if u == nil {
		return &UnitNotFound{Name: name}
	}
	return u.Load()
}

// Units returns all units in registration order.
func (s *Set) Units() []*Unit {
	return append([]*Unit(nil), s.order...)
}

// ChildExited hands a reaped child to its owning unit, which drops the
// stale process. It returns the owning unit, or nil for an orphan that no
// unit spawned.
func (s *Set) ChildExited(e process.Exit) *Unit {
	for _, u := range s.order {
		if !u.Owns(e.PID) {
			continue
		}
		p, err := u.Forget(e.PID)
		if err != nil {
			// The unit is mid-mutation; its next unload clears the handle.
			s.logger.Warn("Unit '%s': process %d reaped but not removed: %v", u.Name(), e.PID, err)
			return u
		}
		cmd := "?"
		if p != nil && len(p.Command()) > 0 {
			cmd = p.Command()[0]
		}
		if u.Kind() == KindBlocking {
			s.logger.Info("Exit status of %s: %s", cmd, e.Describe())
		} else {
			s.logger.Warn("Unit '%s': process %d (%s) terminated, %s", u.Name(), e.PID, cmd, e.Describe())
		}
		return u
	}
	s.logger.Debug("Reaped orphan process %d (%s)", e.PID, e.Describe())
	return nil
}

// UnloadAll unloads every unit in reverse registration order. Busy units
// are logged and skipped.
func (s *Set) UnloadAll() {
	for i := len(s.order) - 1; i >= 0; i-- {
		u := s.order[i]
		if err := u.Unload(); err != nil {
			if errors.Is(err, ErrBusy) {
				s.logger.Warn("Skipping unit '%s' during shutdown: %v", u.Name(), err)
				continue
			}
			s.logger.Error("Unloading unit '%s': %v", u.Name(), err)
		}
	}
}

// Summary returns a one-line description of every unit's state.
func (s *Set) Summary() string {
	units := s.Units()
	parts := make([]string, 0, len(units))
	for _, u := range units {
		state := "stopped"
		if u.IsRunning() {
			state = "running"
		}
		parts = append(parts, u.Name()+"="+state)
	}
	return strings.Join(parts, " ")
}
