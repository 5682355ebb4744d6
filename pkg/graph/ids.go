package graph

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// idNamespace scopes every derived node and edge id.
var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/athapong/aio-osint/graph"))

// DeriveID returns a stable identifier for the given key parts. Equal parts
// always produce the same id, so rebuilt graphs keep ids for unchanged nodes.
func DeriveID(parts ...string) string {
	return uuid.NewSHA1(idNamespace, []byte(strings.Join(parts, "\x1f"))).String()
}

// EdgeID returns the id of the edge from source to target with the given relation.
func EdgeID(source, relation, target string) string {
	return fmt.Sprintf("%s-%s-%s", source, strings.ReplaceAll(relation, " ", "_"), target)
}
