// Package errors provides coded, categorized errors for querystate.
//
// Each error carries a code (e.g. "E300") that maps to a registered template
// with a short message, a longer detail, and a documentation URL. Errors wrap
// their cause so errors.Is and errors.As keep working across package
// boundaries.
//
// # Error Categories
//
//   - config: configuration file and validation errors
//   - parse: query value parse and serialize errors
//   - flush: URL commit failures reported by an adapter
//   - protocol: WebSocket client protocol errors
//   - cli: command line usage errors
//
// # Usage
//
//	err := errors.New("E300").
//	    WithKey("page").
//	    Wrap(cause)
//
//	fmt.Println(err.Format())
//	// Output:
//	// ERROR E300: URL update failed
//	//
//	//   key: page
//	//
//	//   The adapter rejected the batched URL update ...
package errors
