package wsadapter

import (
	"encoding/json"
	stderrors "errors"
)

// isDecodeError reports whether err came from decoding a message rather
// than from the connection.
func isDecodeError(err error) bool {
	var syntax *json.SyntaxError
	var typ *json.UnmarshalTypeError
	return stderrors.As(err, &syntax) || stderrors.As(err, &typ)
}
