package scan

// Kind identifies the lexical class of a Token.
type Kind int

const (
	EndOfStream Kind = iota
	ObjectStart
	ObjectEnd
	ArrayStart
	ArrayEnd
	PropertyName
	String
	Number
	Boolean
	Null
)

var kindNames = [...]string{
	EndOfStream:  "EndOfStream",
	ObjectStart:  "ObjectStart",
	ObjectEnd:    "ObjectEnd",
	ArrayStart:   "ArrayStart",
	ArrayEnd:     "ArrayEnd",
	PropertyName: "PropertyName",
	String:       "String",
	Number:       "Number",
	Boolean:      "Boolean",
	Null:         "Null",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "Unknown"
	}
	return kindNames[k]
}

// Token is a single JSON token with the 1-based position where it begins.
//
// Value holds the unescaped text of PropertyName and String tokens, the
// literal text of Number tokens and "true" or "false" for Boolean tokens.
// It is empty for delimiters, Null and EndOfStream.
type Token struct {
	Kind   Kind
	Value  string
	Line   int
	Column int
}

// Text returns the textual representation of the token used for value
// comparisons. Delimiters render as their marker character and Null renders
// as "null".
func (t Token) Text() string {
	switch t.Kind {
	case ObjectStart:
		return "{"
	case ObjectEnd:
		return "}"
	case ArrayStart:
		return "["
	case ArrayEnd:
		return "]"
	case Null:
		return "null"
	case EndOfStream:
		return ""
	default:
		return t.Value
	}
}
