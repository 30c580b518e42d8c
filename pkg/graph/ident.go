package graph

import (
	"crypto/sha256"
	"encoding/hex"
)

// NodeRef computes the content-addressed ref for a (type, name) node.
// Identical identities always produce identical refs, which is what gives
// every store its create-or-get behavior.
func NodeRef(nodeType, name string) Ref {
	return refFor("node", nodeType, name)
}

// LinkRef computes the content-addressed ref for a typed link over an
// ordered tuple of refs.
func LinkRef(linkType string, refs []Ref) Ref {
	parts := make([]string, 0, len(refs)+1)
	parts = append(parts, linkType)
	for _, r := range refs {
		parts = append(parts, string(r))
	}
	return refFor("link", parts...)
}

func refFor(kind string, parts ...string) Ref {
	h := sha256.New()
	h.Write([]byte(kind))
	for _, p := range parts {
		// Length-prefix framing so ("ab","c") and ("a","bc") differ.
		h.Write([]byte{0})
		h.Write([]byte(p))
		h.Write([]byte{byte(len(p)), byte(len(p) >> 8)})
	}
	return Ref(hex.EncodeToString(h.Sum(nil)))
}
