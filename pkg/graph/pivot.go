package graph

import (
	"strings"

	"github.com/pkg/errors"
)

// pivotTypes maps searchable entity types onto the identifier kind a new
// investigation is seeded with.
var pivotTypes = map[EntityType]string{
	EntityUsername: "username",
	EntityEmail:    "email",
	EntityPhone:    "phone",
	EntityAddress:  "address",
	EntityRelative: "name",
	EntityTarget:   "name",
}

// Pivot returns the pivot event for activating node. The searchable value is
// the node's "value" attribute when present and its label otherwise.
func Pivot(node Node) (PivotEvent, error) {
	kind, ok := pivotTypes[node.Type]
	if !ok {
		return PivotEvent{}, errors.Wrapf(ErrNotSearchable, "node %s has type %s", node.ID, node.Type)
	}

	value := node.Label
	if v, ok := node.Attributes["value"].(string); ok && strings.TrimSpace(v) != "" {
		value = v
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return PivotEvent{}, errors.Wrapf(ErrNotSearchable, "node %s has no identifier value", node.ID)
	}

	return PivotEvent{Type: kind, Value: value}, nil
}
