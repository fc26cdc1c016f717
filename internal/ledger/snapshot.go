package ledger

import (
	"time"

	"nvdiff/internal/domain"
)

// Snapshot rebuilds the dataset as it stood at asOf. Elements and junctions
// carry their NIDs and take the NID as key; segments and point features are
// not tracked by the ledger and are left empty.
func (l *Ledger) Snapshot(dataset string, asOf time.Time) *domain.Snapshot {
	s := domain.NewSnapshot(dataset, asOf)
	for _, f := range l.Dataset(asOf) {
		switch f.Kind {
		case domain.KindElement:
			e := domain.NewLinearElement(string(f.NID), f.Geometry)
			e.NID = f.NID
			for k, v := range f.Attributes {
				e.SetAttribute(k, v)
			}
			s.AddElement(*e)

		case domain.KindJunction:
			if len(f.Geometry) == 0 {
				continue
			}
			j := domain.NewJunction(string(f.NID), f.Geometry[0])
			j.NID = f.NID
			for k, v := range f.Attributes {
				if k == domain.AttrJuncType {
					j.Type = domain.JunctionType(v)
					continue
				}
				j.Attributes[k] = v
			}
			s.AddJunction(*j)
		}
	}
	return s
}
