// Package tools defines the closed set of tools the procurement agent may
// call and dispatches model tool calls to their implementations.
package tools

// Kind identifies one of the agent's tools
type Kind int

const (
	KindUnknown Kind = iota
	KindInspectSchema
	KindTranslateQuery
	KindExecuteQuery
	KindSearchWeb
)

// Tool names as seen by the model
const (
	NameInspectSchema  = "inspect_schema"
	NameTranslateQuery = "translate_query"
	NameExecuteQuery   = "execute_query"
	NameSearchWeb      = "search_web"
)

// UnknownToolObservation is returned for calls to a tool that does not exist
const UnknownToolObservation = "Unknown Tool"

func (k Kind) String() string {
	switch k {
	case KindInspectSchema:
		return NameInspectSchema
	case KindTranslateQuery:
		return NameTranslateQuery
	case KindExecuteQuery:
		return NameExecuteQuery
	case KindSearchWeb:
		return NameSearchWeb
	default:
		return "unknown"
	}
}

// ParseKind maps a tool name to its Kind. Unrecognised names give KindUnknown.
func ParseKind(name string) Kind {
	switch name {
	case NameInspectSchema:
		return KindInspectSchema
	case NameTranslateQuery:
		return KindTranslateQuery
	case NameExecuteQuery:
		return KindExecuteQuery
	case NameSearchWeb:
		return KindSearchWeb
	default:
		return KindUnknown
	}
}
