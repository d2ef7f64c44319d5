// Package sym defines the symbols autoblog attaches to log lines and CLI
// output so related events can be filtered together.
package sym

// System infrastructure symbols.
const (
	Pulse      = "꩜" // async jobs, scheduling sweeps
	PulseOpen  = "✿" // graceful startup with orphaned job recovery
	PulseClose = "❀" // graceful shutdown
	DB         = "⊔" // database/storage layer
	AM         = "≡" // configuration
	Publish    = "✎" // generation and publishing pipeline
)

// All returns every symbol keyed by its short name.
func All() map[string]string {
	return map[string]string{
		"pulse":       Pulse,
		"pulse_open":  PulseOpen,
		"pulse_close": PulseClose,
		"db":          DB,
		"am":          AM,
		"publish":     Publish,
	}
}
