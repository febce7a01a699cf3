package config

// ConfigFileName is the file FindConfig looks for.
const ConfigFileName = "portaljit.yaml"

// ConfigFileNames are all recognized config file names, in lookup order.
var ConfigFileNames = []string{"portaljit.yaml", "portaljit.yml"}

// JIT defaults
const (
	// DefaultThreshold is how many times a green key must be seen at the
	// merge point before the oracle asks for a trace.
	DefaultThreshold = 3

	// DefaultCompressLimit bounds a monitor's dependent list before dead
	// entries are dropped.
	DefaultCompressLimit = 30

	// DefaultUnitCapacity is the number of compiled units kept in the store
	// before the least recently used one is evicted.
	DefaultUnitCapacity = 256

	// DefaultTraceLimit is the longest trace, in portal iterations, the
	// recorder follows while waiting for it to close on its start.
	DefaultTraceLimit = 64
)

// Logging defaults
const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// DefaultJournalDriver is the database/sql driver of the event journal.
const DefaultJournalDriver = "sqlite"

// Generated names
const (
	PortalSuffix = "$portal"
	RunnerSuffix = "$runner"
	TempPrefix   = "$t"
)

// PortalName returns the name of the extracted portal function for a driver.
func PortalName(driver string) string { return driver + PortalSuffix }

// RunnerName returns the name of the generated portal runner for a driver.
func RunnerName(driver string) string { return driver + RunnerSuffix }
