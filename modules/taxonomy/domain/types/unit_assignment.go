package types

import (
	"encoding/json"
	"sort"
)

// UnitAssignment says which organizational units a node is assigned to:
// either every unit, or an explicit set. The legacy boolean-plus-list pair
// let "ignore ids when the flag is set" rot into a bug; here the two cases
// are a closed sum and the ids are unreachable in the everyone case.
type UnitAssignment struct {
	all   bool
	units map[string]struct{}
}

func AllUnits() UnitAssignment {
	return UnitAssignment{all: true}
}

func SpecificUnits(unitIDs ...string) UnitAssignment {
	set := make(map[string]struct{}, len(unitIDs))
	for _, id := range unitIDs {
		if id == "" {
			continue
		}
		set[id] = struct{}{}
	}
	return UnitAssignment{units: set}
}

func (a UnitAssignment) All() bool { return a.all }

// Matches reports whether the assignment covers unitID. The everyone case
// matches any unit filter.
func (a UnitAssignment) Matches(unitID string) bool {
	if a.all {
		return true
	}
	_, ok := a.units[unitID]
	return ok
}

// UnitIDs returns the explicit set in stable order, nil for the everyone case.
func (a UnitAssignment) UnitIDs() []string {
	if a.all || len(a.units) == 0 {
		return nil
	}
	ids := make([]string, 0, len(a.units))
	for id := range a.units {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type unitAssignmentJSON struct {
	AllUnits bool     `json:"all_units,omitempty"`
	UnitIDs  []string `json:"unit_ids,omitempty"`
}

func (a UnitAssignment) MarshalJSON() ([]byte, error) {
	return json.Marshal(unitAssignmentJSON{AllUnits: a.all, UnitIDs: a.UnitIDs()})
}

func (a *UnitAssignment) UnmarshalJSON(b []byte) error {
	var raw unitAssignmentJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw.AllUnits {
		*a = AllUnits()
		return nil
	}
	*a = SpecificUnits(raw.UnitIDs...)
	return nil
}
