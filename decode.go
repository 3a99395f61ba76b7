package tune

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DecodeProgram reads a program from the dict-shaped AST document produced by
// the parser. The document can be JSON or YAML. Missing fields decode to nil
// expressions or empty bodies; nodes with unknown type tags become
// *Unsupported.
func DecodeProgram(data []byte) (Program, error) {
	var doc any
	if errJSON := json.Unmarshal(data, &doc); errJSON != nil {
		doc = nil
		if errYaml := yaml.Unmarshal(data, &doc); errYaml != nil {
			return Program{}, fmt.Errorf("the program could not be parsed as .json (%v) or .yml (%v)", errJSON, errYaml)
		}
	}
	switch v := doc.(type) {
	case map[string]any:
		if t := typeOf(v); t != "" && t != string(NodeProgram) {
			return Program{}, fmt.Errorf("root node has type %q, expected %q", t, NodeProgram)
		}
		return Program{Body: decodeBody(v["body"])}, nil
	case []any: // a bare list of statements
		return Program{Body: decodeBody(v)}, nil
	case nil:
		return Program{}, nil
	}
	return Program{}, fmt.Errorf("root node is a %T, expected a mapping", doc)
}

func typeOf(m map[string]any) string {
	s, _ := m["type"].(string)
	return s
}

func decodeBody(v any) []Statement {
	list, _ := v.([]any)
	ret := make([]Statement, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		ret = append(ret, decodeStatement(m))
	}
	return ret
}

func decodeStatement(m map[string]any) Statement {
	switch NodeType(typeOf(m)) {
	case NodeTempo:
		return &Tempo{BPM: decodeExpr(m["bpm"])}
	case NodeVolume:
		return &Volume{Level: decodeExpr(m["volume"])}
	case NodeInstrument:
		return &InstrumentSelect{Name: decodeName(m["instrument"])}
	case NodeNote:
		pitches, seq := decodePitches(m["note_value"])
		return &Note{Pitches: pitches, Sequence: seq, Duration: decodeExpr(m["duration"])}
	case NodeChord:
		pitches, _ := decodePitches(m["chord"])
		return &Chord{Pitches: pitches, Duration: decodeExpr(m["duration"])}
	case NodeRest:
		return &Rest{Duration: decodeExpr(m["duration"])}
	case NodeLoop:
		return &Loop{Count: decodeExpr(m["count"]), Body: decodeBody(m["body"])}
	case NodeWhile:
		return &While{Condition: decodeExpr(m["condition"]), Body: decodeBody(m["body"])}
	case NodeFor:
		f := &For{Var: decodeName(m["variable"]), Body: decodeBody(m["body"])}
		if r, ok := m["range"].(map[string]any); ok {
			f.Start = decodeExpr(r["start"])
			f.End = decodeExpr(r["end"])
		}
		return f
	case NodeIf:
		s := &If{
			Condition: decodeExpr(m["condition"]),
			Then:      decodeBody(m["then_body"]),
			Else:      decodeBody(m["else_body"]),
		}
		clauses, _ := m["elseif_clauses"].([]any)
		for _, c := range clauses {
			cm, ok := c.(map[string]any)
			if !ok {
				continue
			}
			s.ElseIfs = append(s.ElseIfs, ElseIf{Condition: decodeExpr(cm["condition"]), Body: decodeBody(cm["body"])})
		}
		return s
	case NodeFunctionDef:
		d := &FunctionDef{Name: decodeName(m["name"]), Body: decodeBody(m["body"])}
		params, _ := m["params"].([]any)
		for _, p := range params {
			d.Params = append(d.Params, decodeName(p))
		}
		return d
	case NodeFunctionCall:
		return &FunctionCall{Name: decodeName(m["name"]), Args: decodeExprList(m["args"])}
	case NodeRefCall:
		return &RefCall{Name: decodeName(m["name"]), Args: decodeExprList(m["args"])}
	case NodeAssign:
		return &Assign{Var: decodeName(m["var"]), Value: decodeExpr(m["value"])}
	}
	return &Unsupported{Type: typeOf(m)}
}

// decodePitches accepts a single pitch expression, a note_array or
// chord_literal node, or a plain list. The boolean reports the array form.
func decodePitches(v any) ([]Expression, bool) {
	switch p := v.(type) {
	case nil:
		return nil, false
	case []any:
		return decodeExprList(p), true
	case map[string]any:
		switch typeOf(p) {
		case "note_array", "chord_literal":
			return decodeExprList(p["notes"]), true
		}
	}
	return []Expression{decodeExpr(v)}, false
}

func decodeExprList(v any) []Expression {
	list, _ := v.([]any)
	ret := make([]Expression, 0, len(list))
	for _, item := range list {
		if nested, ok := item.([]any); ok { // the parser sometimes nests note lists
			ret = append(ret, decodeExprList(nested)...)
			continue
		}
		ret = append(ret, decodeExpr(item))
	}
	return ret
}

func decodeExpr(v any) Expression {
	switch e := v.(type) {
	case nil:
		return nil
	case bool:
		if e {
			return &Number{Value: 1}
		}
		return &Number{Value: 0}
	case string:
		if _, err := ParseNote(e); err == nil {
			return &NoteLiteral{Value: e}
		}
		return &StringLiteral{Value: e}
	case map[string]any:
		return decodeExprMap(e)
	}
	if f, ok := toFloat(v); ok {
		return &Number{Value: f}
	}
	return &Unsupported{Type: fmt.Sprintf("%T", v)}
}

func decodeExprMap(m map[string]any) Expression {
	switch NodeType(typeOf(m)) {
	case NodeNumber:
		f, _ := toFloat(m["value"])
		return &Number{Value: f}
	case NodeIdentifier, "ref_identifier":
		return &Identifier{Name: decodeName(m)}
	case NodeNoteLiteral:
		s, _ := m["value"].(string)
		return &NoteLiteral{Value: s}
	case NodeStringLiteral, "instrument_name":
		return &StringLiteral{Value: decodeName(m)}
	case NodeBinOp:
		return &BinOp{Op: opOf(m, "+"), Left: decodeExpr(m["left"]), Right: decodeExpr(m["right"])}
	case NodeComparison:
		return &Comparison{Op: opOf(m, "=="), Left: decodeExpr(m["left"]), Right: decodeExpr(m["right"])}
	case NodeLogicalOp:
		return &LogicalOp{Op: opOf(m, "and"), Left: decodeExpr(m["left"]), Right: decodeExpr(m["right"])}
	case NodeUnaryOp:
		return &UnaryOp{Op: opOf(m, "not"), Operand: decodeExpr(m["operand"])}
	}
	return &Unsupported{Type: typeOf(m)}
}

func opOf(m map[string]any, def string) string {
	if s, ok := m["op"].(string); ok && s != "" {
		return s
	}
	return def
}

// decodeName extracts a name from a plain string or from a node carrying it in
// its "name" or "value" field. Surrounding double quotes are removed.
func decodeName(v any) string {
	var s string
	switch n := v.(type) {
	case string:
		s = n
	case map[string]any:
		if name, ok := n["name"].(string); ok {
			s = name
		} else if value, ok := n["value"].(string); ok {
			s = value
		} else if inner, ok := n["name"].(map[string]any); ok {
			s = decodeName(inner)
		}
	default:
		if v != nil {
			s = fmt.Sprint(v)
		}
	}
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		s = s[1 : len(s)-1]
	}
	return s
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}
