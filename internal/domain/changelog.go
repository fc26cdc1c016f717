package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Change log buckets. Both modification effects share ChangeModified.
const (
	ChangeAdded     = "added"
	ChangeRetired   = "retired"
	ChangeModified  = "modified"
	ChangeConfirmed = "confirmed"
)

// ChangeBuckets lists the change log buckets in reporting order
var ChangeBuckets = []string{ChangeAdded, ChangeRetired, ChangeModified, ChangeConfirmed}

// ChangeLog lists the NIDs that underwent one kind of change in one cycle
type ChangeLog struct {
	Dataset string
	Kind    FeatureKind
	Change  string
	NIDs    []NID
}

// Name returns the log's file name, <dataset>_<kind>_<change>.log
func (c ChangeLog) Name() string {
	return fmt.Sprintf("%s_%s_%s.log", c.Dataset, c.Kind, c.Change)
}

// Body renders the log text
func (c ChangeLog) Body() string {
	if len(c.NIDs) == 0 {
		return "No records.\n"
	}
	nids := make([]string, len(c.NIDs))
	for i, n := range c.NIDs {
		nids[i] = string(n)
	}
	sort.Strings(nids)

	var b strings.Builder
	b.WriteString("Records listed by nid:\n")
	for _, n := range nids {
		b.WriteString(n)
		b.WriteByte('\n')
	}
	return b.String()
}
