package topology

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/crypto/blake2b"

	"nvdiff/internal/domain"
)

// Signature is the digest of an element's connectivity. Two elements with
// equal signatures are linked to the same set of identified neighbors at each
// end, irrespective of orientation.
type Signature string

// IdentifyFunc maps a neighboring element key to the identity used when
// comparing signatures across snapshots. It returns false when the neighbor
// has no usable identity.
type IdentifyFunc func(elementKey string) (string, bool)

// LinkSignature computes the connectivity signature of an element: for each
// bounding junction the sorted identities of the other incident elements,
// combined independently of direction.
func (n *Network) LinkSignature(elementKey string, identify IdentifyFunc) (Signature, error) {
	from, to, err := n.JunctionsOf(elementKey)
	if err != nil {
		return "", err
	}

	a, err := n.endpointIdentity(from, elementKey, identify)
	if err != nil {
		return "", err
	}
	b, err := n.endpointIdentity(to, elementKey, identify)
	if err != nil {
		return "", err
	}
	if b < a {
		a, b = b, a
	}

	sum := blake2b.Sum256([]byte(a + "|" + b))
	return Signature(hex.EncodeToString(sum[:])), nil
}

// Neighbors returns the keys of the other elements incident to each end of
// an element
func (n *Network) Neighbors(elementKey string) (fromSide, toSide []string, err error) {
	from, to, err := n.JunctionsOf(elementKey)
	if err != nil {
		return nil, nil, err
	}
	return others(from, elementKey), others(to, elementKey), nil
}

func (n *Network) endpointIdentity(j *domain.Junction, self string, identify IdentifyFunc) (string, error) {
	keys := others(j, self)
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		id, ok := identify(k)
		if !ok {
			return "", &domain.AmbiguityError{
				Key:    self,
				Reason: fmt.Sprintf("neighbor %s at junction %s has no identity", k, j.Key),
			}
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return strings.Join(ids, ","), nil
}

func others(j *domain.Junction, self string) []string {
	out := make([]string, 0, len(j.Incident))
	for _, k := range j.Incident {
		if k != self {
			out = append(out, k)
		}
	}
	return out
}
