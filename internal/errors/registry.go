package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
	DocURL   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Config Errors (E100-E199)
	// ============================================

	"E100": {
		Category: CategoryConfig,
		Message:  "Configuration file not found",
		Detail:   "No querystate.json or querystate.yaml was found at the given location.",
		DocURL:   "https://vango.dev/docs/querystate/errors/E100",
	},
	"E101": {
		Category: CategoryConfig,
		Message:  "Invalid configuration file",
		Detail:   "The configuration file could not be read or decoded.",
		DocURL:   "https://vango.dev/docs/querystate/errors/E101",
	},
	"E102": {
		Category: CategoryConfig,
		Message:  "Invalid port",
		Detail:   "Port must be between 0 and 65535.",
		DocURL:   "https://vango.dev/docs/querystate/errors/E102",
	},
	"E103": {
		Category: CategoryConfig,
		Message:  "Invalid history mode",
		Detail:   `History mode must be "push" or "replace".`,
		DocURL:   "https://vango.dev/docs/querystate/errors/E103",
	},
	"E104": {
		Category: CategoryConfig,
		Message:  "Invalid duration",
		Detail:   `Durations such as queue.throttle must be non-negative Go durations like "50ms".`,
		DocURL:   "https://vango.dev/docs/querystate/errors/E104",
	},
	"E105": {
		Category: CategoryConfig,
		Message:  "Invalid rate limit factor",
		Detail:   "The rate limit factor multiplies every throttle interval and must be positive.",
		DocURL:   "https://vango.dev/docs/querystate/errors/E105",
	},
	"E106": {
		Category: CategoryConfig,
		Message:  "Invalid log level",
		Detail:   `Log level must be one of "debug", "info", "warn" or "error".`,
		DocURL:   "https://vango.dev/docs/querystate/errors/E106",
	},

	// ============================================
	// Parse Errors (E200-E299)
	// ============================================

	"E200": {
		Category: CategoryParse,
		Message:  "Query value could not be parsed",
		Detail:   "The URL value for this key did not match the configured parser. The key falls back to its default.",
		DocURL:   "https://vango.dev/docs/querystate/errors/E200",
	},
	"E201": {
		Category: CategoryParse,
		Message:  "Value type does not match parser",
		Detail:   "The value passed for this key is not of the type its parser serializes. The key was not updated.",
		DocURL:   "https://vango.dev/docs/querystate/errors/E201",
	},

	// ============================================
	// Flush Errors (E300-E399)
	// ============================================

	"E300": {
		Category: CategoryFlush,
		Message:  "URL update failed",
		Detail:   "The adapter rejected the batched URL update. None of the batched keys were applied; issue the update again to retry.",
		DocURL:   "https://vango.dev/docs/querystate/errors/E300",
	},
	"E301": {
		Category: CategoryFlush,
		Message:  "Adapter panicked during URL update",
		Detail:   "The adapter panicked while committing the batched URL update. The batch was discarded.",
		DocURL:   "https://vango.dev/docs/querystate/errors/E301",
	},
	"E302": {
		Category: CategoryFlush,
		Message:  "No adapter configured",
		Detail:   "A flush was requested without an adapter to commit the URL update.",
		DocURL:   "https://vango.dev/docs/querystate/errors/E302",
	},

	// ============================================
	// Protocol Errors (E400-E499)
	// ============================================

	"E400": {
		Category: CategoryProtocol,
		Message:  "Invalid client message",
		Detail:   "The WebSocket client sent a message that could not be decoded.",
		DocURL:   "https://vango.dev/docs/querystate/errors/E400",
	},
	"E401": {
		Category: CategoryProtocol,
		Message:  "Client connection closed",
		Detail:   "The WebSocket connection was closed before the URL update was delivered.",
		DocURL:   "https://vango.dev/docs/querystate/errors/E401",
	},
	"E402": {
		Category: CategoryProtocol,
		Message:  "Invalid query string",
		Detail:   "The query string reported by the client could not be parsed.",
		DocURL:   "https://vango.dev/docs/querystate/errors/E402",
	},

	// ============================================
	// CLI Errors (E500-E599)
	// ============================================

	"E500": {
		Category: CategoryCLI,
		Message:  "Unknown parser",
		Detail:   `Known parsers: string, int, int64, float, bool, time, timestamp, duration, json, csv and enum(a|b|...).`,
		DocURL:   "https://vango.dev/docs/querystate/errors/E500",
	},
	"E501": {
		Category: CategoryCLI,
		Message:  "Invalid key specification",
		Detail:   `Keys are given as name=parser, optionally followed by :default, e.g. page=int:1.`,
		DocURL:   "https://vango.dev/docs/querystate/errors/E501",
	},
	"E502": {
		Category: CategoryCLI,
		Message:  "Command failed",
		Detail:   `Run with --help for usage.`,
		DocURL:   "https://vango.dev/docs/querystate/errors/E502",
	},
}
