// Package reconcile implements the clean pass that restores referential
// integrity across every record of a family.
//
// For each id snapshotted at the start of the pass, in order:
//   - a dangling parent is cleared
//   - an inverse is made mutual, cleared when dangling, or rejected when the
//     target already names a different inverse
//   - followups and preceding are filtered to existing ids and mirrored onto
//     the records they point at
//   - counters and concepts are filtered to existing ids
//
// Other records are re-fetched right before they are mutated, so writes made
// earlier in the same pass are never clobbered by a stale copy.
package reconcile

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/starford/tatami/internal/apperr"
	"github.com/starford/tatami/internal/record"
	"github.com/starford/tatami/internal/store"
)

// InverseConflictError reports two records claiming different mutual inverses:
// ID names Inverse, but Inverse already names Claimed.
type InverseConflictError struct {
	Family  string
	ID      string
	Inverse string
	Claimed string
}

func (e *InverseConflictError) Error() string {
	return fmt.Sprintf("reconcile: %s %q has inverse %q, which points to %q",
		e.Family, e.ID, e.Inverse, e.Claimed)
}

// Unwrap lets callers match the error with errors.Is(err, apperr.ErrConflict).
func (e *InverseConflictError) Unwrap() error {
	return apperr.ErrConflict
}

// Repair describes one change made during a pass.
type Repair struct {
	ID       string          `json:"id"`
	Relation record.Relation `json:"relation"`
	Target   string          `json:"target"`
	Action   string          `json:"action"`
}

// Repair actions.
const (
	ActionRemoved  = "removed"  // dangling or duplicate reference dropped from ID
	ActionMirrored = "mirrored" // ID added to Target's mirror field
)

// Report summarizes a pass.
type Report struct {
	Family  string   `json:"family"`
	Visited int      `json:"visited"`
	Writes  int      `json:"writes"`
	Repairs []Repair `json:"repairs"`
}

// Reconciler runs clean passes over one store.
type Reconciler struct {
	store  *store.Store
	logger *slog.Logger
}

// New creates a Reconciler for s.
func New(s *store.Store, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{store: s, logger: logger}
}

// pass carries the state of a single Clean call.
type pass struct {
	*Reconciler
	family record.Family
	report *Report
}

// Clean brings the store into a state where every reference resolves, inverses
// are symmetric and followups/preceding mirror each other. It stops at the
// first *InverseConflictError; records written before the conflict stay written.
func (r *Reconciler) Clean() (Report, error) {
	fam := r.store.Family()
	report := Report{Family: fam.Name, Repairs: []Repair{}}

	ids, err := r.store.ListIDs()
	if err != nil {
		return report, err
	}
	if _, err := r.store.WriteRegistry(ids); err != nil {
		return report, fmt.Errorf("reconcile: write registry: %w", err)
	}

	p := &pass{Reconciler: r, family: fam, report: &report}
	for _, id := range ids {
		if err := p.visit(id); err != nil {
			r.logger.Error("reconcile: pass aborted",
				slog.String("family", fam.Name),
				slog.String("id", id),
				slog.String("error", err.Error()))
			return report, err
		}
		report.Visited++
	}

	r.logger.Info("reconcile: pass complete",
		slog.String("family", fam.Name),
		slog.Int("visited", report.Visited),
		slog.Int("writes", report.Writes),
		slog.Int("repairs", len(report.Repairs)))
	return report, nil
}

func (p *pass) visit(id string) error {
	rec, err := p.store.Find(id)
	if err != nil {
		return err
	}
	changed := false

	if p.family.Has(record.Parent) {
		c, err := p.cleanParent(rec)
		if err != nil {
			return err
		}
		changed = changed || c
	}
	if p.family.Has(record.Inverse) {
		c, err := p.cleanInverse(rec)
		if err != nil {
			return err
		}
		changed = changed || c
	}
	if p.family.Has(record.Followups) && p.family.Has(record.Preceding) {
		for _, pair := range [][2]record.Relation{
			{record.Followups, record.Preceding},
			{record.Preceding, record.Followups},
		} {
			c, err := p.cleanMirrored(rec, pair[0], pair[1])
			if err != nil {
				return err
			}
			changed = changed || c
		}
	} else {
		// Without its counterpart a followups or preceding list only needs
		// its targets to exist.
		for _, rel := range []record.Relation{record.Followups, record.Preceding} {
			if p.family.Has(rel) {
				c, err := p.filter(rec, rel)
				if err != nil {
					return err
				}
				changed = changed || c
			}
		}
	}
	for _, rel := range []record.Relation{record.Counters, record.Concepts} {
		if !p.family.Has(rel) {
			continue
		}
		c, err := p.filter(rec, rel)
		if err != nil {
			return err
		}
		changed = changed || c
	}

	if changed {
		return p.save(rec)
	}
	return nil
}

func (p *pass) cleanParent(rec *record.Record) (bool, error) {
	if rec.Parent == "" {
		return false, nil
	}
	ok, err := p.store.Exists(rec.Parent)
	if err != nil || ok {
		return false, err
	}
	p.repair(rec.ID, record.Parent, rec.Parent, ActionRemoved, "parent does not exist, removing")
	rec.Parent = ""
	return true, nil
}

func (p *pass) cleanInverse(rec *record.Record) (bool, error) {
	if rec.Inverse == "" {
		return false, nil
	}
	// A record may be its own inverse; the in-memory copy is authoritative.
	if rec.Inverse == rec.ID {
		return false, nil
	}
	other, err := p.store.Fetch(rec.Inverse)
	if err != nil {
		return false, err
	}
	switch {
	case other == nil:
		p.repair(rec.ID, record.Inverse, rec.Inverse, ActionRemoved, "inverse does not exist, removing")
		rec.Inverse = ""
		return true, nil
	case other.Inverse == "":
		p.repair(rec.ID, record.Inverse, other.ID, ActionMirrored, "inverse is not mutual, adding inverse on mirror")
		other.Inverse = rec.ID
		return false, p.save(other)
	case other.Inverse != rec.ID:
		return false, &InverseConflictError{
			Family:  p.family.Name,
			ID:      rec.ID,
			Inverse: other.ID,
			Claimed: other.Inverse,
		}
	}
	return false, nil
}

// cleanMirrored filters rel on rec and makes sure every surviving target lists
// rec.ID in its mirror relation.
func (p *pass) cleanMirrored(rec *record.Record, rel, mirror record.Relation) (bool, error) {
	changed, err := p.filter(rec, rel)
	if err != nil {
		return false, err
	}
	for _, target := range *rec.RefList(rel) {
		if target == rec.ID {
			self := rec.RefList(mirror)
			if !slices.Contains(*self, rec.ID) {
				p.repair(rec.ID, mirror, rec.ID, ActionMirrored, "self reference is not mirrored, adding")
				*self = append(*self, rec.ID)
				changed = true
			}
			continue
		}
		other, err := p.store.Find(target)
		if err != nil {
			return false, err
		}
		list := other.RefList(mirror)
		if slices.Contains(*list, rec.ID) {
			continue
		}
		p.repair(rec.ID, rel, other.ID, ActionMirrored, string(rel)+" is not mirrored, adding to "+string(mirror))
		*list = append(*list, rec.ID)
		if err := p.save(other); err != nil {
			return false, err
		}
	}
	return changed, nil
}

// filter drops ids that do not exist and duplicates from the rel list of rec.
func (p *pass) filter(rec *record.Record, rel record.Relation) (bool, error) {
	list := rec.RefList(rel)
	kept := make([]string, 0, len(*list))
	seen := make(map[string]struct{}, len(*list))
	for _, id := range *list {
		if _, dup := seen[id]; dup {
			p.repair(rec.ID, rel, id, ActionRemoved, "duplicate reference, removing")
			continue
		}
		ok := id == rec.ID
		if !ok {
			var err error
			if ok, err = p.store.Exists(id); err != nil {
				return false, err
			}
		}
		if !ok {
			p.repair(rec.ID, rel, id, ActionRemoved, "reference does not exist, removing")
			continue
		}
		seen[id] = struct{}{}
		kept = append(kept, id)
	}
	if len(kept) == len(*list) {
		return false, nil
	}
	*list = kept
	return true, nil
}

func (p *pass) save(rec *record.Record) error {
	if err := p.store.Save(rec); err != nil {
		return err
	}
	p.report.Writes++
	return nil
}

func (p *pass) repair(id string, rel record.Relation, target, action, msg string) {
	p.report.Repairs = append(p.report.Repairs, Repair{ID: id, Relation: rel, Target: target, Action: action})
	p.logger.Info("reconcile: "+msg,
		slog.String("family", p.family.Name),
		slog.String("id", id),
		slog.String("relation", string(rel)),
		slog.String("target", target))
}
