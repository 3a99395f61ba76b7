package tune

type NodeType string

const (
	NodeProgram       NodeType = "program"
	NodeTempo         NodeType = "tempo"
	NodeVolume        NodeType = "volume"
	NodeInstrument    NodeType = "instrument"
	NodeNote          NodeType = "note"
	NodeChord         NodeType = "chord"
	NodeRest          NodeType = "rest"
	NodeLoop          NodeType = "loop"
	NodeWhile         NodeType = "while"
	NodeFor           NodeType = "for"
	NodeIf            NodeType = "if"
	NodeFunctionDef   NodeType = "function_def"
	NodeFunctionCall  NodeType = "function_call"
	NodeRefCall       NodeType = "ref_call"
	NodeAssign        NodeType = "assign"
	NodeNumber        NodeType = "number"
	NodeIdentifier    NodeType = "identifier"
	NodeNoteLiteral   NodeType = "note_literal"
	NodeStringLiteral NodeType = "string_literal"
	NodeBinOp         NodeType = "binop"
	NodeComparison    NodeType = "comparison"
	NodeLogicalOp     NodeType = "logical_op"
	NodeUnaryOp       NodeType = "unary_op"
)

type (
	// Node is implemented by every statement and expression of a program.
	Node interface {
		NodeType() NodeType
	}

	// Statement is a node executed for its effect on the performance.
	Statement interface {
		Node
		statementNode()
	}

	// Expression is a node evaluated for a value. A nil Expression is valid
	// anywhere one is expected and means "use the default".
	Expression interface {
		Node
		expressionNode()
	}

	// Program is the root of a parsed music program: an ordered list of
	// statements executed top to bottom.
	Program struct {
		Body []Statement
	}

	statementMarker  struct{}
	expressionMarker struct{}
)

func (statementMarker) statementNode()   {}
func (expressionMarker) expressionNode() {}

// Statements
type (
	Tempo struct {
		statementMarker
		BPM Expression
	}

	Volume struct {
		statementMarker
		Level Expression
	}

	// InstrumentSelect switches the active voice. Name is taken verbatim; the
	// interpreter resolves it.
	InstrumentSelect struct {
		statementMarker
		Name string
	}

	// Note plays its pitches one after another, each for Duration. Sequence is
	// true when the source used the array form, e.g. note [C4, D4, E4].
	Note struct {
		statementMarker
		Pitches  []Expression
		Sequence bool
		Duration Expression
	}

	Chord struct {
		statementMarker
		Pitches  []Expression
		Duration Expression
	}

	Rest struct {
		statementMarker
		Duration Expression
	}

	Loop struct {
		statementMarker
		Count Expression
		Body  []Statement
	}

	While struct {
		statementMarker
		Condition Expression
		Body      []Statement
	}

	// For binds Var to each integer of the half-open range [Start, End).
	For struct {
		statementMarker
		Var   string
		Start Expression
		End   Expression
		Body  []Statement
	}

	If struct {
		statementMarker
		Condition Expression
		Then      []Statement
		ElseIfs   []ElseIf
		Else      []Statement
	}

	ElseIf struct {
		Condition Expression
		Body      []Statement
	}

	FunctionDef struct {
		statementMarker
		Name   string
		Params []string
		Body   []Statement
	}

	FunctionCall struct {
		statementMarker
		Name string
		Args []Expression
	}

	// RefCall invokes one of the fixed built-in functions by name.
	RefCall struct {
		statementMarker
		Name string
		Args []Expression
	}

	Assign struct {
		statementMarker
		Var   string
		Value Expression
	}

	// Unsupported stands in for a node whose type tag is not known. It can
	// appear in statement or expression position and is skipped at run time.
	Unsupported struct {
		statementMarker
		expressionMarker
		Type string
	}
)

// Expressions
type (
	Number struct {
		expressionMarker
		Value float64
	}

	Identifier struct {
		expressionMarker
		Name string
	}

	NoteLiteral struct {
		expressionMarker
		Value string
	}

	StringLiteral struct {
		expressionMarker
		Value string
	}

	// BinOp is one of + - * / %.
	BinOp struct {
		expressionMarker
		Op          string
		Left, Right Expression
	}

	// Comparison is one of == != < > <= >=.
	Comparison struct {
		expressionMarker
		Op          string
		Left, Right Expression
	}

	// LogicalOp is "and" or "or". Both sides are always evaluated.
	LogicalOp struct {
		expressionMarker
		Op          string
		Left, Right Expression
	}

	// UnaryOp is "not" or "-".
	UnaryOp struct {
		expressionMarker
		Op      string
		Operand Expression
	}
)

func (*Tempo) NodeType() NodeType            { return NodeTempo }
func (*Volume) NodeType() NodeType           { return NodeVolume }
func (*InstrumentSelect) NodeType() NodeType { return NodeInstrument }
func (*Note) NodeType() NodeType             { return NodeNote }
func (*Chord) NodeType() NodeType            { return NodeChord }
func (*Rest) NodeType() NodeType             { return NodeRest }
func (*Loop) NodeType() NodeType             { return NodeLoop }
func (*While) NodeType() NodeType            { return NodeWhile }
func (*For) NodeType() NodeType              { return NodeFor }
func (*If) NodeType() NodeType               { return NodeIf }
func (*FunctionDef) NodeType() NodeType      { return NodeFunctionDef }
func (*FunctionCall) NodeType() NodeType     { return NodeFunctionCall }
func (*RefCall) NodeType() NodeType          { return NodeRefCall }
func (*Assign) NodeType() NodeType           { return NodeAssign }
func (u *Unsupported) NodeType() NodeType    { return NodeType(u.Type) }

func (*Number) NodeType() NodeType        { return NodeNumber }
func (*Identifier) NodeType() NodeType    { return NodeIdentifier }
func (*NoteLiteral) NodeType() NodeType   { return NodeNoteLiteral }
func (*StringLiteral) NodeType() NodeType { return NodeStringLiteral }
func (*BinOp) NodeType() NodeType         { return NodeBinOp }
func (*Comparison) NodeType() NodeType    { return NodeComparison }
func (*LogicalOp) NodeType() NodeType     { return NodeLogicalOp }
func (*UnaryOp) NodeType() NodeType       { return NodeUnaryOp }
