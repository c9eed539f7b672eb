// SPDX-FileCopyrightText: 2018, 2019, 2020 Alvar Penning
// SPDX-FileCopyrightText: 2026 bpcore contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bpv7

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/dtn7/cboring"
)

// Scheme identifies which of the three endpoint schemes (dtn, ipn, imc) an
// EndpointID belongs to.
type Scheme uint64

const (
	// SchemeDTN is the "dtn" URI scheme (scheme code 1), either the
	// sentinel dtn:none or a free-form dtn:<text> SSP.
	SchemeDTN Scheme = 1

	// SchemeIPN is the "ipn" URI scheme (scheme code 2): ipn:<node>.<service>.
	SchemeIPN Scheme = 2

	// SchemeIMC is the "imc" URI scheme (scheme code 3, experimental
	// Interplanetary Multicast): imc:<group>.<service>.
	SchemeIMC Scheme = 3
)

func (s Scheme) String() string {
	switch s {
	case SchemeDTN:
		return "dtn"
	case SchemeIPN:
		return "ipn"
	case SchemeIMC:
		return "imc"
	default:
		return "unknown"
	}
}

// EndpointID names a DTN endpoint as a tagged union over the schemes in
// section 4.2.5.1: dtn:none, dtn:<text>, ipn:<node,service>, imc:<group,
// service>. It encodes as a two-element CBOR array [scheme-code, ssp].
type EndpointID struct {
	Scheme Scheme

	// DtnSSP holds the dtn scheme's service-specific part. An empty string
	// with Scheme == SchemeDTN represents the dtn:none sentinel (SSP 0).
	DtnSSP string

	// Node and Service hold the ipn/imc scheme's two-part SSP.
	Node    uint64
	Service uint64
}

// DtnNone returns the sentinel "dtn:none" endpoint, used as a null endpoint
// (no source, no report-to).
func DtnNone() EndpointID {
	return EndpointID{Scheme: SchemeDTN, DtnSSP: ""}
}

// ImcNone returns the "imc:0.0" endpoint used for group-petition bundles.
func ImcNone() EndpointID {
	return EndpointID{Scheme: SchemeIMC, Node: 0, Service: 0}
}

var (
	dtnURIRe = regexp.MustCompile(`^dtn:(.*)$`)
	ipnURIRe = regexp.MustCompile(`^ipn:(\d+)\.(\d+)$`)
	imcURIRe = regexp.MustCompile(`^imc:(\d+)\.(\d+)$`)
)

// NewEndpointID parses an endpoint URI, e.g. "dtn://foo/bar", "ipn:1.1", or
// "imc:42.0".
func NewEndpointID(uri string) (EndpointID, error) {
	if uri == "dtn:none" || uri == "dtn:none/" {
		return DtnNone(), nil
	}

	if m := ipnURIRe.FindStringSubmatch(uri); m != nil {
		node, _ := strconv.ParseUint(m[1], 10, 64)
		service, _ := strconv.ParseUint(m[2], 10, 64)
		return EndpointID{Scheme: SchemeIPN, Node: node, Service: service}, nil
	}

	if m := imcURIRe.FindStringSubmatch(uri); m != nil {
		node, _ := strconv.ParseUint(m[1], 10, 64)
		service, _ := strconv.ParseUint(m[2], 10, 64)
		return EndpointID{Scheme: SchemeIMC, Node: node, Service: service}, nil
	}

	if m := dtnURIRe.FindStringSubmatch(uri); m != nil {
		ssp := strings.TrimPrefix(m[1], "//")
		return EndpointID{Scheme: SchemeDTN, DtnSSP: ssp}, nil
	}

	return EndpointID{}, fmt.Errorf("endpoint: unsupported or malformed URI %q", uri)
}

// MustNewEndpointID is like NewEndpointID, but panics on error. Intended for
// tests and literal construction of known-good endpoints.
func MustNewEndpointID(uri string) EndpointID {
	eid, err := NewEndpointID(uri)
	if err != nil {
		panic(err)
	}
	return eid
}

// IsZero reports whether this is the dtn:none sentinel.
func (eid EndpointID) IsZero() bool {
	return eid == DtnNone()
}

// SameNode checks whether two endpoints name the same node, ignoring the
// service/path part.
func (eid EndpointID) SameNode(other EndpointID) bool {
	if eid.Scheme != other.Scheme {
		return false
	}
	switch eid.Scheme {
	case SchemeIPN, SchemeIMC:
		return eid.Node == other.Node
	default:
		return eid.DtnSSP == other.DtnSSP
	}
}

// CheckValid returns an error for an endpoint whose scheme code is not dtn,
// ipn or imc. The SSP itself is not checked.
func (eid EndpointID) CheckValid() error {
	switch eid.Scheme {
	case SchemeDTN, SchemeIPN, SchemeIMC:
		return nil
	default:
		return fmt.Errorf("EndpointID: unknown scheme code %d", eid.Scheme)
	}
}

func (eid EndpointID) String() string {
	switch eid.Scheme {
	case SchemeDTN:
		if eid.DtnSSP == "" {
			return "dtn:none"
		}
		return "dtn:" + eid.DtnSSP
	case SchemeIPN:
		return fmt.Sprintf("ipn:%d.%d", eid.Node, eid.Service)
	case SchemeIMC:
		return fmt.Sprintf("imc:%d.%d", eid.Node, eid.Service)
	default:
		return fmt.Sprintf("unknown-scheme(%d)", eid.Scheme)
	}
}

// MarshalCbor writes this EndpointID as the two-element CBOR array
// [scheme-code, ssp] defined in section 4.2.5.1.
func (eid *EndpointID) MarshalCbor(w io.Writer) error {
	if err := cboring.WriteArrayLength(2, w); err != nil {
		return err
	}
	if err := cboring.WriteUInt(uint64(eid.Scheme), w); err != nil {
		return err
	}

	switch eid.Scheme {
	case SchemeDTN:
		if eid.DtnSSP == "" {
			return cboring.WriteUInt(0, w)
		}
		return cboring.WriteTextString(eid.DtnSSP, w)

	case SchemeIPN, SchemeIMC:
		if err := cboring.WriteArrayLength(2, w); err != nil {
			return err
		}
		if err := cboring.WriteUInt(eid.Node, w); err != nil {
			return err
		}
		return cboring.WriteUInt(eid.Service, w)

	default:
		return fmt.Errorf("EndpointID: cannot marshal unknown scheme %d", eid.Scheme)
	}
}

// UnmarshalCbor reads the CBOR representation of an EndpointID.
func (eid *EndpointID) UnmarshalCbor(r io.Reader) error {
	if l, err := cboring.ReadArrayLength(r); err != nil {
		return err
	} else if l != 2 {
		return fmt.Errorf("EndpointID: expected array of length 2, got %d", l)
	}

	scheme, err := cboring.ReadUInt(r)
	if err != nil {
		return err
	}
	eid.Scheme = Scheme(scheme)

	switch eid.Scheme {
	case SchemeDTN:
		// The dtn:none sentinel is encoded as the unsigned integer 0 instead
		// of a text string.
		if txt, isNone, err := readDtnSSP(r); err != nil {
			return err
		} else if isNone {
			eid.DtnSSP = ""
		} else {
			eid.DtnSSP = txt
		}
		return nil

	case SchemeIPN, SchemeIMC:
		if l, err := cboring.ReadArrayLength(r); err != nil {
			return err
		} else if l != 2 {
			return fmt.Errorf("EndpointID: ipn/imc SSP expects array of length 2, got %d", l)
		}
		if n, err := cboring.ReadUInt(r); err != nil {
			return err
		} else {
			eid.Node = n
		}
		if s, err := cboring.ReadUInt(r); err != nil {
			return err
		} else {
			eid.Service = s
		}
		return nil

	default:
		return fmt.Errorf("EndpointID: no decoder for scheme code %d", eid.Scheme)
	}
}

// readDtnSSP reads the dtn scheme's SSP, which is either the unsigned
// integer 0 (dtn:none) or a CBOR text string.
func readDtnSSP(r io.Reader) (text string, isNone bool, err error) {
	major, n, err := cboring.ReadMajors(r)
	if err != nil {
		return
	}

	switch major {
	case cboring.UInt:
		if n != 0 {
			err = fmt.Errorf("EndpointID: dtn SSP integer must be 0, got %d", n)
			return
		}
		isNone = true

	case cboring.TextString:
		var raw []byte
		if raw, err = cboring.ReadRawBytes(n, r); err != nil {
			return
		}
		text = string(raw)

	default:
		err = fmt.Errorf("EndpointID: unexpected major type 0x%x for dtn SSP", major)
	}

	return
}

// MarshalJSON writes a JSON string representation of this EndpointID.
func (eid EndpointID) MarshalJSON() ([]byte, error) {
	return json.Marshal(eid.String())
}
