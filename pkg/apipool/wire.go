package apipool

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// ParamType tags the wire type of one RPC parameter, matching the 1-byte
// type tag in spec.md §6's framing.
type ParamType uint8

const (
	ParamNumber ParamType = iota
	ParamString
	ParamBool
)

// Param is one name/value pair sent as part of an RPC command.
type Param struct {
	Name string
	Type ParamType
	Num  int64
	Str  string
	Bool bool
}

func NumberParam(name string, v int64) Param { return Param{Name: name, Type: ParamNumber, Num: v} }
func StringParam(name string, v string) Param { return Param{Name: name, Type: ParamString, Str: v} }
func BoolParam(name string, v bool) Param     { return Param{Name: name, Type: ParamBool, Bool: v} }

// WriteCommand serializes command and params per spec.md §6: 4-byte
// little-endian total length, 1-byte command-name length, command name,
// 1-byte parameter count, then per parameter a 1-byte type tag, 1-byte
// name length, name, and type-specific payload.
func WriteCommand(w io.Writer, command string, params []Param) error {
	if len(command) > 255 {
		return fmt.Errorf("apipool: command name %q exceeds 255 bytes", command)
	}
	if len(params) > 255 {
		return fmt.Errorf("apipool: %d params exceeds 255 limit", len(params))
	}

	var body []byte
	body = append(body, byte(len(command)))
	body = append(body, command...)
	body = append(body, byte(len(params)))

	for _, p := range params {
		if len(p.Name) > 255 {
			return fmt.Errorf("apipool: param name %q exceeds 255 bytes", p.Name)
		}
		body = append(body, byte(p.Type))
		body = append(body, byte(len(p.Name)))
		body = append(body, p.Name...)
		switch p.Type {
		case ParamNumber:
			var buf [8]byte
			binary.BigEndian.PutUint64(buf[:], uint64(p.Num))
			body = append(body, buf[:]...)
		case ParamString:
			var lbuf [4]byte
			binary.BigEndian.PutUint32(lbuf[:], uint32(len(p.Str)))
			body = append(body, lbuf[:]...)
			body = append(body, p.Str...)
		case ParamBool:
			if p.Bool {
				body = append(body, 1)
			} else {
				body = append(body, 0)
			}
		default:
			return fmt.Errorf("apipool: unknown param type %d", p.Type)
		}
	}

	var lenbuf [4]byte
	binary.LittleEndian.PutUint32(lenbuf[:], uint32(len(body)))
	if _, err := w.Write(lenbuf[:]); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

// NodeType tags one node of a parsed response tree.
type NodeType uint8

const (
	NodeNum NodeType = iota
	NodeString
	NodeBool
	NodeArray
	NodeHash
)

// Node is one value of the response tree: a number, string, bool, array
// of nodes, or name-keyed hash of nodes, matching spec.md §6's
// `{num, string, bool, array, hash}` response shape.
type Node struct {
	Type  NodeType
	Num   int64
	Str   string
	Bool  bool
	Array []*Node
	Hash  map[string]*Node
}

// Get returns the hash entry named key, or nil if n is not a hash or the
// key is absent.
func (n *Node) Get(key string) *Node {
	if n == nil || n.Type != NodeHash {
		return nil
	}
	return n.Hash[key]
}

// NumOr returns n's numeric value, or def if n is nil or not a number.
func (n *Node) NumOr(def int64) int64 {
	if n == nil || n.Type != NodeNum {
		return def
	}
	return n.Num
}

// StrOr returns n's string value, or def if n is nil or not a string.
func (n *Node) StrOr(def string) string {
	if n == nil || n.Type != NodeString {
		return def
	}
	return n.Str
}

// ReadResponse parses one length-framed response node tree from r.
func ReadResponse(r io.Reader) (*Node, error) {
	var lenbuf [4]byte
	if _, err := io.ReadFull(r, lenbuf[:]); err != nil {
		return nil, err
	}
	total := binary.LittleEndian.Uint32(lenbuf[:])
	lr := io.LimitReader(r, int64(total))
	br := bufio.NewReader(lr)
	return readNode(br)
}

func readNode(r *bufio.Reader) (*Node, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	switch NodeType(tag) {
	case NodeNum:
		var buf [8]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return nil, err
		}
		return &Node{Type: NodeNum, Num: int64(binary.BigEndian.Uint64(buf[:]))}, nil
	case NodeString:
		var lbuf [4]byte
		if _, err := io.ReadFull(r, lbuf[:]); err != nil {
			return nil, err
		}
		n := binary.BigEndian.Uint32(lbuf[:])
		strBuf := make([]byte, n)
		if _, err := io.ReadFull(r, strBuf); err != nil {
			return nil, err
		}
		return &Node{Type: NodeString, Str: string(strBuf)}, nil
	case NodeBool:
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		return &Node{Type: NodeBool, Bool: b != 0}, nil
	case NodeArray:
		var cbuf [4]byte
		if _, err := io.ReadFull(r, cbuf[:]); err != nil {
			return nil, err
		}
		count := binary.BigEndian.Uint32(cbuf[:])
		items := make([]*Node, 0, count)
		for i := uint32(0); i < count; i++ {
			item, err := readNode(r)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		return &Node{Type: NodeArray, Array: items}, nil
	case NodeHash:
		var cbuf [4]byte
		if _, err := io.ReadFull(r, cbuf[:]); err != nil {
			return nil, err
		}
		count := binary.BigEndian.Uint32(cbuf[:])
		hash := make(map[string]*Node, count)
		for i := uint32(0); i < count; i++ {
			klen, err := r.ReadByte()
			if err != nil {
				return nil, err
			}
			kbuf := make([]byte, klen)
			if _, err := io.ReadFull(r, kbuf); err != nil {
				return nil, err
			}
			val, err := readNode(r)
			if err != nil {
				return nil, err
			}
			hash[string(kbuf)] = val
		}
		return &Node{Type: NodeHash, Hash: hash}, nil
	default:
		return nil, fmt.Errorf("apipool: unknown node type tag %d", tag)
	}
}

// WriteHash serializes a hash node for tests and for command helpers that
// need to round-trip a response, matching the framing readNode expects.
func WriteHash(w io.Writer, hash map[string]*Node) error {
	var cbuf [4]byte
	binary.BigEndian.PutUint32(cbuf[:], uint32(len(hash)))
	if _, err := w.Write(cbuf[:]); err != nil {
		return err
	}
	for k, v := range hash {
		if len(k) > 255 {
			return fmt.Errorf("apipool: hash key %q exceeds 255 bytes", k)
		}
		if _, err := w.Write([]byte{byte(len(k))}); err != nil {
			return err
		}
		if _, err := w.Write([]byte(k)); err != nil {
			return err
		}
		if err := writeNode(w, v); err != nil {
			return err
		}
	}
	return nil
}

func writeNode(w io.Writer, n *Node) error {
	if _, err := w.Write([]byte{byte(n.Type)}); err != nil {
		return err
	}
	switch n.Type {
	case NodeNum:
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], uint64(n.Num))
		_, err := w.Write(buf[:])
		return err
	case NodeString:
		var lbuf [4]byte
		binary.BigEndian.PutUint32(lbuf[:], uint32(len(n.Str)))
		if _, err := w.Write(lbuf[:]); err != nil {
			return err
		}
		_, err := w.Write([]byte(n.Str))
		return err
	case NodeBool:
		var b byte
		if n.Bool {
			b = 1
		}
		_, err := w.Write([]byte{b})
		return err
	case NodeArray:
		var cbuf [4]byte
		binary.BigEndian.PutUint32(cbuf[:], uint32(len(n.Array)))
		if _, err := w.Write(cbuf[:]); err != nil {
			return err
		}
		for _, item := range n.Array {
			if err := writeNode(w, item); err != nil {
				return err
			}
		}
		return nil
	case NodeHash:
		return WriteHash(w, n.Hash)
	default:
		return fmt.Errorf("apipool: unknown node type %d", n.Type)
	}
}

// WriteFramedResponse wraps a root node with the 4-byte length prefix
// ReadResponse expects, for tests that feed a synthetic server response.
func WriteFramedResponse(w io.Writer, root *Node) error {
	var buf []byte
	bw := &byteBuffer{data: &buf}
	if err := writeNode(bw, root); err != nil {
		return err
	}
	var lenbuf [4]byte
	binary.LittleEndian.PutUint32(lenbuf[:], uint32(len(buf)))
	if _, err := w.Write(lenbuf[:]); err != nil {
		return err
	}
	_, err := w.Write(buf)
	return err
}

type byteBuffer struct{ data *[]byte }

func (b *byteBuffer) Write(p []byte) (int, error) {
	*b.data = append(*b.data, p...)
	return len(p), nil
}
