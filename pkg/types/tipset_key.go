package types

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/ipfs/go-cid"
	xerrors "github.com/pkg/errors"
	cbg "github.com/whyrusleeping/cbor-gen"
)

// A TipSetKey names a tipset: the set of block CIDs a header lists as its
// parents. The CIDs are assumed distinct and already in canonical order, so
// two keys holding the same CIDs in different orders are different keys.
//
// The representation is the concatenated binary CIDs wrapped in a string,
// which keeps the key comparable with == and usable as a map key. The empty
// key has value "".
type TipSetKey struct {
	value string
}

// NewTipSetKey builds a key from block CIDs in canonical order.
func NewTipSetKey(cids ...cid.Cid) TipSetKey {
	return TipSetKey{string(encodeKey(cids))}
}

// Cids unpacks the key back into its member CIDs.
func (k TipSetKey) Cids() []cid.Cid {
	cids, err := decodeKey([]byte(k.value))
	if err != nil {
		panic("invalid tipset key: " + err.Error())
	}
	return cids
}

func (k TipSetKey) String() string {
	var b strings.Builder
	b.WriteString("{")
	for _, c := range k.Cids() {
		fmt.Fprintf(&b, " %s", c)
	}
	b.WriteString(" }")
	return b.String()
}

// Equals checks whether the key holds exactly the same CIDs, in the same
// order, as another.
func (k TipSetKey) Equals(other TipSetKey) bool {
	return k.value == other.value
}

// Has checks whether the key contains the given block CID.
func (k TipSetKey) Has(id cid.Cid) bool {
	for _, c := range k.Cids() {
		if c == id {
			return true
		}
	}
	return false
}

// The key crosses the wire as a cbor array of CIDs, embedded in the parents
// field of a block header.

func (k *TipSetKey) UnmarshalCBOR(r io.Reader) error {
	br := cbg.GetPeeker(r)
	scratch := make([]byte, 8)
	maj, extra, err := cbg.CborReadHeaderBuf(br, scratch)
	if err != nil {
		return err
	}
	if maj != cbg.MajArray {
		return fmt.Errorf("expected cbor array")
	}
	if extra > cbg.MaxLength {
		return fmt.Errorf("t.Parents: array too large (%d)", extra)
	}

	if extra > 0 {
		cids := make([]cid.Cid, extra)
		for i := 0; i < int(extra); i++ {
			c, err := cbg.ReadCid(br)
			if err != nil {
				return xerrors.Errorf("reading cid field t.Parents failed: %v", err)
			}
			cids[i] = c
		}
		k.value = string(encodeKey(cids))
	}
	return nil
}

func (k TipSetKey) MarshalCBOR(w io.Writer) error {
	cids := k.Cids()
	if len(cids) > cbg.MaxLength {
		return xerrors.Errorf("Slice value in field t.Parents was too long")
	}
	scratch := make([]byte, 9)

	if err := cbg.WriteMajorTypeHeaderBuf(scratch, w, cbg.MajArray, uint64(len(cids))); err != nil {
		return err
	}
	for _, v := range cids {
		if err := cbg.WriteCidBuf(scratch, w, v); err != nil {
			return xerrors.Errorf("failed writing cid field t.Parents: %v", err)
		}
	}
	return nil
}

func encodeKey(cids []cid.Cid) []byte {
	buffer := new(bytes.Buffer)
	for _, c := range cids {
		// bytes.Buffer.Write() err is documented to be always nil.
		_, _ = buffer.Write(c.Bytes())
	}
	return buffer.Bytes()
}

func decodeKey(encoded []byte) ([]cid.Cid, error) {
	var cids []cid.Cid
	for next := 0; next < len(encoded); {
		nr, c, err := cid.CidFromBytes(encoded[next:])
		if err != nil {
			return nil, err
		}
		cids = append(cids, c)
		next += nr
	}
	return cids, nil
}
