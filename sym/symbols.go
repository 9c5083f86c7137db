// Package sym defines the glyphs boss uses as a structured log field and as
// CLI prefixes. They are stable across CLI output and logs.
package sym

// Lifecycle glyphs, one per transition a job goes through.
const (
	Publish  = "⊕" // job inserted in the created state
	Claim    = "⇥" // created -> active
	Complete = "✓" // active -> completed
	Fail     = "✗" // active -> failed
	Notify   = "⚑" // completion listener invoked
	Archive  = "⌫" // terminal job moved to the archive table
)

// System glyphs.
const (
	Boss      = "꩜" // polling loops, subscriptions
	BossOpen  = "✿" // subscription started
	BossClose = "❀" // subscription stopped, draining in-flight handlers
	DB        = "⊔" // database/storage layer
	Config    = "≡" // configuration
)

// CommandToSymbol maps CLI command names to their glyph.
var CommandToSymbol = map[string]string{
	"publish":  Publish,
	"fetch":    Claim,
	"complete": Complete,
	"fail":     Fail,
	"watch":    Notify,
	"archive":  Archive,
	"work":     Boss,
	"db":       DB,
	"config":   Config,
}

// SymbolToCommand is the inverse of CommandToSymbol.
var SymbolToCommand = func() map[string]string {
	m := make(map[string]string, len(CommandToSymbol))
	for cmd, s := range CommandToSymbol {
		m[s] = cmd
	}
	return m
}()

// Prefix returns the glyph for a command followed by a space, or "" when the
// command has no glyph.
func Prefix(command string) string {
	if s, ok := CommandToSymbol[command]; ok {
		return s + " "
	}
	return ""
}
