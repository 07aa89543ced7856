package globals

// Globals holds flags shared by all commands.
type Globals struct {
	Verbose bool `help:"Enable verbose logging" short:"v"`
}
