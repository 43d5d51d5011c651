package schema

// Custom string types for type safety.
type (
	// OutputMode represents the format of the output.
	OutputMode string

	// DatabaseBackend represents the database backend for the experiment store.
	DatabaseBackend string

	// ExperimentStatus represents the lifecycle state of an experiment.
	ExperimentStatus string

	// ExperimentType represents the kind of experiment being run.
	ExperimentType string

	// EventType represents the kind of tracked visitor event.
	EventType string

	// AllocationMode represents how random draws are produced for allocation.
	AllocationMode string

	// TargetingType represents which visitor attribute a targeting rule inspects.
	TargetingType string

	// TargetingCondition represents how a targeting rule compares its value.
	TargetingCondition string
)

// All output modes supported.
const (
	CSVOut     OutputMode = "csv"
	TextOut    OutputMode = "text" // default
	JSONOut    OutputMode = "json"
	ParquetOut OutputMode = "parquet"
)

// All store backends supported.
const (
	SQLiteBackend     DatabaseBackend = "sqlite" // default
	MySQLBackend      DatabaseBackend = "mysql"
	PostgreSQLBackend DatabaseBackend = "postgresql"
	MemoryBackend     DatabaseBackend = "memory"
)

// All experiment states supported.
const (
	DraftStatus     ExperimentStatus = "draft" // default
	RunningStatus   ExperimentStatus = "running"
	PausedStatus    ExperimentStatus = "paused"
	CompletedStatus ExperimentStatus = "completed"
)

// All experiment types supported.
const (
	ABTest       ExperimentType = "ab_test" // default
	Multivariate ExperimentType = "multivariate"
	SplitURL     ExperimentType = "split_url"
)

// All event types supported.
const (
	PageviewEvent   EventType = "pageview"
	ClickEvent      EventType = "click"
	ConversionEvent EventType = "conversion"
	CustomEvent     EventType = "custom"
)

// All allocation modes supported.
const (
	RandomAllocation AllocationMode = "random" // default
	HashAllocation   AllocationMode = "hash"
)

// All targeting rule types supported.
const (
	URLTarget     TargetingType = "url"
	DeviceTarget  TargetingType = "device"
	BrowserTarget TargetingType = "browser"
	CountryTarget TargetingType = "country"
	CustomTarget  TargetingType = "custom"
)

// All targeting conditions supported.
const (
	ContainsCondition   TargetingCondition = "contains"
	EqualsCondition     TargetingCondition = "equals"
	StartsWithCondition TargetingCondition = "starts_with"
	EndsWithCondition   TargetingCondition = "ends_with"
	RegexCondition      TargetingCondition = "regex"
)

// Defaults applied when a field is omitted on create.
const (
	DefaultTrafficAllocation = 100
	DefaultTrafficPercentage = 50
)

// ValidOutputModes lists all valid output modes.
var ValidOutputModes = map[OutputMode]struct{}{
	CSVOut:     {},
	TextOut:    {},
	JSONOut:    {},
	ParquetOut: {},
}

// ValidDatabaseBackends lists all valid store backends.
var ValidDatabaseBackends = map[DatabaseBackend]struct{}{
	SQLiteBackend:     {},
	MySQLBackend:      {},
	PostgreSQLBackend: {},
	MemoryBackend:     {},
}

// ValidExperimentStatuses lists all valid experiment states.
var ValidExperimentStatuses = map[ExperimentStatus]struct{}{
	DraftStatus:     {},
	RunningStatus:   {},
	PausedStatus:    {},
	CompletedStatus: {},
}

// ValidExperimentTypes lists all valid experiment types.
var ValidExperimentTypes = map[ExperimentType]struct{}{
	ABTest:       {},
	Multivariate: {},
	SplitURL:     {},
}

// ValidEventTypes lists all valid event types.
var ValidEventTypes = map[EventType]struct{}{
	PageviewEvent:   {},
	ClickEvent:      {},
	ConversionEvent: {},
	CustomEvent:     {},
}

// ValidAllocationModes lists all valid allocation modes.
var ValidAllocationModes = map[AllocationMode]struct{}{
	RandomAllocation: {},
	HashAllocation:   {},
}

// ValidTargetingTypes lists all valid targeting rule types.
var ValidTargetingTypes = map[TargetingType]struct{}{
	URLTarget:     {},
	DeviceTarget:  {},
	BrowserTarget: {},
	CountryTarget: {},
	CustomTarget:  {},
}

// ValidTargetingConditions lists all valid targeting conditions.
var ValidTargetingConditions = map[TargetingCondition]struct{}{
	ContainsCondition:   {},
	EqualsCondition:     {},
	StartsWithCondition: {},
	EndsWithCondition:   {},
	RegexCondition:      {},
}

// statusTransitions maps a state to the states it may move to.
var statusTransitions = map[ExperimentStatus][]ExperimentStatus{
	DraftStatus:   {RunningStatus},
	RunningStatus: {PausedStatus, CompletedStatus},
	PausedStatus:  {RunningStatus, CompletedStatus},
}

// CanTransition reports whether an experiment may move from one status to another.
// Setting the current status again is always allowed.
func CanTransition(from, to ExperimentStatus) bool {
	if from == to {
		return true
	}
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
